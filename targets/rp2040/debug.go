//go:build rp2040

package main

import (
	"machine"

	"hexcell/core"
)

// initUSB configures machine.Serial, which is USB CDC on RP2040
func initUSB() {
	machine.Serial.Configure(machine.UARTConfig{})
}

// usbWriter writes one log line to USB
func usbWriter(line string) {
	machine.Serial.Write([]byte(line))
	machine.Serial.Write([]byte("\r\n"))
}

// newLogger logs to USB through a queue drained by its own goroutine
func newLogger() *core.Logger {
	l := core.NewLogger("hexcell ")
	l.SetLevel(core.LogInfo)
	l.AddSink(core.AsyncSink(usbWriter, 16))
	return l
}
