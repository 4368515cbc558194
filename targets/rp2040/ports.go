//go:build rp2040

package main

import (
	"machine"

	"hexcell/core"
	"hexcell/network"
	"hexcell/protocol"
)

// Board wiring. Each port has a detect line the neighbor pulls low when
// seated. Only A and D carry a hardware UART.
// TODO: PIO UARTs for ports B, C, E and F.
var portWiring = [network.PortCount]struct {
	uart   *machine.UART
	tx, rx machine.Pin
	detect machine.Pin
}{
	network.PortA: {machine.UART0, machine.GPIO0, machine.GPIO1, machine.GPIO10},
	network.PortB: {detect: machine.GPIO11},
	network.PortC: {detect: machine.GPIO12},
	network.PortD: {machine.UART1, machine.GPIO4, machine.GPIO5, machine.GPIO13},
	network.PortE: {detect: machine.GPIO14},
	network.PortF: {detect: machine.GPIO15},
}

const (
	portBaud = 115200

	// Consecutive samples a detect line must hold before the port changes state
	detectSamples = 8
)

// portLink is one neighbor connection: a UART with its frame decoder and
// a debounced detect line
type portLink struct {
	port   network.Port
	uart   *machine.UART
	detect machine.Pin
	input  *protocol.FifoBuffer
	codec  *protocol.LinkCodec

	connected bool
	samples   uint8
}

// newPortLink wires port p to the board: decoded frames go to its inbox,
// corrupt frames to the cell runtime
func newPortLink(p network.Port, b *board) *portLink {
	w := portWiring[p]
	l := &portLink{port: p, uart: w.uart, detect: w.detect}
	l.detect.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	if l.uart == nil {
		return l
	}
	l.uart.Configure(machine.UARTConfig{BaudRate: portBaud, TX: w.tx, RX: w.rx})
	l.input = protocol.NewFifoBuffer(2 * protocol.FrameMax)
	l.codec = protocol.NewLinkCodec(func(m *protocol.Message) {
		m.Header.Port = uint8(p)
		if !b.inbox.Push(m) {
			b.log.Warn("port " + p.String() + ": inbox full, dropped=" + core.Utoa(b.inbox.Dropped()))
		}
	})
	l.codec.SetErrorHandler(func(err error) {
		if b.core != nil {
			b.core.LinkError(p, err)
		}
	})
	return l
}

// poll drains the UART into the decoder
func (l *portLink) poll() {
	if l.uart == nil {
		return
	}
	var buf [32]byte
	for l.uart.Buffered() > 0 {
		n, err := l.uart.Read(buf[:])
		if err != nil || n == 0 {
			break
		}
		if l.input.Write(buf[:n]) < n {
			// Overrun; the decoder resynchronizes on the next sync byte
			l.input.Reset()
		}
		l.codec.Receive(l.input)
	}
}

// sense samples the detect line and reports a debounced change. Ports
// without a UART never connect.
func (l *portLink) sense() (changed, connected bool) {
	if l.uart == nil {
		return false, false
	}
	seated := !l.detect.Get()
	if seated == l.connected {
		l.samples = 0
		return false, l.connected
	}
	l.samples++
	if l.samples < detectSamples {
		return false, l.connected
	}
	l.samples = 0
	l.connected = seated
	return true, seated
}

func (l *portLink) write(frame []byte) error {
	if l.uart == nil || !l.connected {
		return protocol.Chain(protocol.NotConnected, protocol.DestinationUnreachable)
	}
	if _, err := l.uart.Write(frame); err != nil {
		return protocol.Chain(protocol.UartError, protocol.DestinationUnreachable)
	}
	return nil
}
