// Package spiled drives a cell's nine WS2812 LEDs from Linux SPI, so a
// simulated cell can be mirrored on real hardware.
package spiled

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"

	"hexcell/display"
)

// DefaultFreq is the NRZ bit rate periph encodes at
const DefaultFreq = 2500 * physic.KiloHertz

// Sink is a display.Sink writing frames to an nrzled device
type Sink struct {
	mu         sync.Mutex
	dev        *nrzled.Dev
	closer     spi.PortCloser
	pixels     [display.LEDCount * 3]byte
	brightness uint8
	frames     uint64
	err        error
}

var _ display.Sink = (*Sink)(nil)

type Option func(*Sink)

// WithBrightness scales every frame by b/256; 255 leaves it unscaled
func WithBrightness(b uint8) Option {
	return func(s *Sink) { s.brightness = b }
}

// New drives the LEDs on an already opened SPI port
func New(p spi.Port, freq physic.Frequency, opts ...Option) (*Sink, error) {
	if freq == 0 {
		freq = DefaultFreq
	}
	dev, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: display.LEDCount,
		Channels:  3,
		Freq:      freq,
	})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	s := &Sink{dev: dev, brightness: 255}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open initializes the host drivers and opens the named SPI port
// ("" picks the first one)
func Open(name string, speedHz int, opts ...Option) (*Sink, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", name, err)
	}
	s, err := New(p, physic.Frequency(speedHz)*physic.Hertz, opts...)
	if err != nil {
		p.Close()
		return nil, err
	}
	s.closer = p
	return s, nil
}

// UpdateDisplay writes buf to the strip. Write errors are kept for Err
// and logged once.
func (s *Sink) UpdateDisplay(buf *display.LedBuffer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, led := range buf {
		if s.brightness != 255 {
			led = led.Scale(s.brightness)
		}
		s.pixels[3*i] = led.R
		s.pixels[3*i+1] = led.G
		s.pixels[3*i+2] = led.B
	}
	if _, err := s.dev.Write(s.pixels[:]); err != nil {
		if s.err == nil {
			log.Error().Err(err).Str("dev", s.dev.String()).Msg("led write")
		}
		s.err = err
		return
	}
	s.frames++
}

// Frames returns the number of frames written
func (s *Sink) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Err returns the last write error
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close blanks the LEDs and releases the port if Open created it
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.dev.Halt()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
