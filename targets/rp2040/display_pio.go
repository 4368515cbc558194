//go:build rp2040 && pio

package main

import (
	"machine"

	"hexcell/display"
	"hexcell/targets/pio"
)

func newLEDSink(pin machine.Pin) (display.Sink, error) {
	return pio.NewWS2812(pin)
}
