//go:build rp2040

package main

import (
	"machine"
	"time"

	"hexcell/cell"
	"hexcell/core"
	"hexcell/display"
	"hexcell/network"
	"hexcell/protocol"
)

const (
	ledPin       = machine.GPIO16
	statusPeriod = 5 * 1000 * 1000 // us
)

// board is the RP2040 HexCell: six port links, a WS2812 chain and the
// cell runtime
type board struct {
	uid     uint32
	ports   [network.PortCount]*portLink
	inbox   protocol.MessageQueue
	out     *protocol.ScratchOutput
	leds    display.Sink
	core    *cell.Core
	log     *core.Logger
	signals uint32
	errors  uint32
}

var _ cell.HexCell = (*board)(nil)

func main() {
	// Disable watchdog on boot to clear any previous state
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})

	initUSB()
	logger := newLogger()

	b := &board{uid: boardUID(), out: protocol.NewScratchOutput(), log: logger}
	for p := network.PortA; p < network.PortCount; p++ {
		b.ports[p] = newPortLink(p, b)
	}

	leds, err := newLEDSink(ledPin)
	if err != nil {
		logger.Error("leds: " + err.Error())
		leds = display.SinkFunc(func(*display.LedBuffer) {})
	}
	b.leds = leds

	clock := hardwareClock{}
	b.core = cell.NewCore(core.NewScheduler(), network.NetworkId{UID: b.uid}, b,
		cell.WithLogger(logger),
		cell.WithEvents(&core.EventRing{}),
		cell.WithStatusInterval(statusPeriod))
	b.core.Init(clock.Now())
	logger.Info("boot uid=" + core.Hex32(b.uid))

	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.errors++
					for _, l := range b.ports {
						if l.input != nil {
							l.input.Reset()
						}
					}
				}
			}()
			b.Update(clock.Now())
		}()

		// Yield to other goroutines
		time.Sleep(100 * time.Microsecond)
	}
}

// boardUID folds the flash unique id into 32 bits, never 0
func boardUID() uint32 {
	var uid uint32
	for i, v := range machine.DeviceID() {
		uid ^= uint32(v) << (8 * (i % 4))
	}
	if uid == network.UIDUnassigned {
		uid = 1
	}
	return uid
}

// Update polls the ports, ticks the runtime and shows the frame
func (b *board) Update(now core.Microseconds) {
	updateSystemTime(now)
	for _, l := range b.ports {
		if changed, connected := l.sense(); changed {
			if connected {
				b.PortConnectHandler(uint8(l.port))
			} else {
				b.PortDisconnectHandler(uint8(l.port))
			}
		}
		l.poll()
	}
	b.core.Tick(now)
	buf := b.core.Buffer()
	b.UpdateDisplay(&buf)
}

func (b *board) UpdateDisplay(buf *display.LedBuffer) {
	b.leds.UpdateDisplay(buf)
}

// SendSignal fails: the detect lines are inputs only on this board
func (b *board) SendSignal(id, value uint8) error {
	return protocol.InvalidSignal
}

func (b *board) SignalHandler(id, value uint8) {
	b.signals++
}

func (b *board) PortConnectHandler(port uint8) {
	b.log.Debug("port " + network.Port(port).String() + " seated")
	b.core.PortConnected(network.Port(port))
}

func (b *board) PortDisconnectHandler(port uint8) {
	b.log.Debug("port " + network.Port(port).String() + " lost")
	b.core.PortDisconnected(network.Port(port))
}

func (b *board) SetAddress(addr uint32) int16 {
	return b.core.SetAddress(addr)
}

func (b *board) GetAddress() uint32 {
	return b.core.Address()
}

func (b *board) GetUID() uint32 {
	return b.uid
}

func (b *board) GetMessage() (protocol.Message, bool) {
	var m protocol.Message
	ok := b.inbox.Pop(&m)
	return m, ok
}

// SendMessage frames m onto the UART of its port
func (b *board) SendMessage(m *protocol.Message) error {
	p := m.Header.Port
	if p >= uint8(network.PortCount) {
		return protocol.Chain(protocol.InvalidPort, protocol.DestinationUnreachable)
	}
	b.out.Reset()
	protocol.EncodeFrame(b.out, m)
	return b.ports[p].write(b.out.Result())
}
