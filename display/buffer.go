package display

import "errors"

// LedBuffer is one frame for a cell's LEDs
type LedBuffer [LEDCount]Led

var ErrInvalidLED = errors.New("display: LED index out of range")

// Sink receives completed frames
type Sink interface {
	UpdateDisplay(buf *LedBuffer)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(buf *LedBuffer)

// UpdateDisplay implements Sink
func (f SinkFunc) UpdateDisplay(buf *LedBuffer) {
	f(buf)
}

// Display is a frame under construction
type Display struct {
	leds LedBuffer
}

// Clear turns every LED off
func (d *Display) Clear() {
	d.leds = LedBuffer{}
}

// SetLED sets one LED
func (d *Display) SetLED(i int, c Led) error {
	if i < 0 || i >= LEDCount {
		return ErrInvalidLED
	}
	d.leds[i] = c
	return nil
}

// SetAll sets every LED to c
func (d *Display) SetAll(c Led) {
	for i := range d.leds {
		d.leds[i] = c
	}
}

// Load replaces the frame
func (d *Display) Load(buf *LedBuffer) {
	d.leds = *buf
}

// Buffer returns a copy of the frame
func (d *Display) Buffer() LedBuffer {
	return d.leds
}

// Commit pushes the frame to sink
func (d *Display) Commit(sink Sink) {
	if sink != nil {
		sink.UpdateDisplay(&d.leds)
	}
}
