//go:build rp2040 && !pio

package main

import (
	"image/color"
	"machine"

	"tinygo.org/x/drivers/ws2812"

	"hexcell/display"
)

// ledSink bit-bangs frames with the ws2812 driver
type ledSink struct {
	dev    ws2812.Device
	colors [display.LEDCount]color.RGBA
}

func newLEDSink(pin machine.Pin) (display.Sink, error) {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &ledSink{dev: ws2812.New(pin)}, nil
}

func (s *ledSink) UpdateDisplay(buf *display.LedBuffer) {
	for i, led := range buf {
		s.colors[i] = led.RGBA()
	}
	s.dev.WriteColors(s.colors[:])
}
