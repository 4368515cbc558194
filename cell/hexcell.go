// Package cell ties the network state machine and the pattern engine of
// one hexagonal LED cell to its hardware through a single tick.
package cell

import (
	"hexcell/core"
	"hexcell/display"
	"hexcell/network"
	"hexcell/protocol"
)

// HexCell is the hardware surface of a cell, implemented by firmware
// targets and by the simulator
type HexCell interface {
	// UpdateDisplay writes a frame to the LEDs
	UpdateDisplay(buf *display.LedBuffer)
	// SendSignal drives a side-band signal line
	SendSignal(id, value uint8) error
	// SignalHandler is called when a signal arrives
	SignalHandler(id, value uint8)
	PortConnectHandler(port uint8)
	PortDisconnectHandler(port uint8)
	// SetAddress stores the packed coordinate address; 0 means success
	SetAddress(addr uint32) int16
	GetAddress() uint32
	GetUID() uint32
	// GetMessage dequeues a received message without blocking
	GetMessage() (protocol.Message, bool)
	SendMessage(m *protocol.Message) error
	// Update pumps the cell's main logic
	Update(now core.Microseconds)
}

// Transport carries network messages for a Core
type Transport interface {
	network.Link
	network.MessageSource
}

// Clock supplies the time to a cell
type Clock = core.Clock
