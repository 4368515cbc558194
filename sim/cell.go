// Package sim runs hexcell runtimes in software: single cells behind the
// HexCell interface and a mesh that wires them together on a table.
package sim

import (
	"hexcell/cell"
	"hexcell/core"
	"hexcell/display"
	"hexcell/network"
	"hexcell/protocol"
)

// Cell is a software HexCell. Messages sent out of a port are handed to
// the peer attached to it; messages arriving go through a bounded queue.
type Cell struct {
	uid     uint32
	sched   *core.Scheduler
	core    *cell.Core
	peers   [network.PortCount]network.Link
	flags   uint8 // Connected ports, one bit each
	inbox   protocol.MessageQueue
	display display.Display
	frames  uint64
	signals uint32
	started bool
}

var _ cell.HexCell = (*Cell)(nil)

// NewCell creates a simulated cell with its own scheduler
func NewCell(uid uint32, opts ...cell.Option) *Cell {
	c := &Cell{uid: uid, sched: core.NewScheduler()}
	c.core = cell.NewCore(c.sched, network.NetworkId{UID: uid}, c, opts...)
	return c
}

// Start initializes the runtime at now
func (c *Cell) Start(now core.Microseconds) {
	if c.started {
		return
	}
	c.started = true
	c.core.Init(now)
}

// Update ticks the runtime and pushes the frame to the display
func (c *Cell) Update(now core.Microseconds) {
	if !c.started {
		c.Start(now)
	}
	c.core.Tick(now)
	buf := c.core.Buffer()
	c.UpdateDisplay(&buf)
}

// UpdateDisplay stores the frame
func (c *Cell) UpdateDisplay(buf *display.LedBuffer) {
	c.display.Load(buf)
	c.frames++
}

// SendSignal always fails: a simulated cell has no signal line
func (c *Cell) SendSignal(id, value uint8) error {
	return protocol.InvalidSignal
}

// SignalHandler counts received signals
func (c *Cell) SignalHandler(id, value uint8) {
	c.signals++
}

// PortConnectHandler marks port connected and tells the runtime
func (c *Cell) PortConnectHandler(port uint8) {
	if port >= uint8(network.PortCount) {
		return
	}
	c.flags |= 1 << port
	c.core.PortConnected(network.Port(port))
}

// PortDisconnectHandler marks port disconnected and tells the runtime
func (c *Cell) PortDisconnectHandler(port uint8) {
	if port >= uint8(network.PortCount) {
		return
	}
	c.flags &^= 1 << port
	c.core.PortDisconnected(network.Port(port))
}

// SetAddress overrides the cell coordinates with a packed address
func (c *Cell) SetAddress(addr uint32) int16 {
	return c.core.SetAddress(addr)
}

// GetAddress returns the packed coordinates the mesh assigned
func (c *Cell) GetAddress() uint32 {
	return c.core.Address()
}

// GetUID returns the unique id
func (c *Cell) GetUID() uint32 {
	return c.uid
}

// GetMessage dequeues a received message
func (c *Cell) GetMessage() (protocol.Message, bool) {
	var m protocol.Message
	ok := c.inbox.Pop(&m)
	return m, ok
}

// SendMessage hands m to the peer on its port
func (c *Cell) SendMessage(m *protocol.Message) error {
	p := m.Header.Port
	if p >= uint8(network.PortCount) {
		return protocol.Chain(protocol.InvalidPort, protocol.DestinationUnreachable)
	}
	peer := c.peers[p]
	if peer == nil || c.flags&(1<<p) == 0 {
		return protocol.Chain(protocol.NotConnected, protocol.DestinationUnreachable)
	}
	return peer.SendMessage(m)
}

// Receive queues m as arriving on port
func (c *Cell) Receive(port network.Port, m *protocol.Message) error {
	cp := *m
	cp.Header.Port = uint8(port)
	if !c.inbox.Push(&cp) {
		return protocol.Chain(protocol.RemoteResourceBusy, protocol.InvalidConfiguration)
	}
	return nil
}

// LinkError reports a frame the link on port could not decode
func (c *Cell) LinkError(port network.Port, err error) {
	c.core.LinkError(port, err)
}

// attach binds a peer to port and reports the connection
func (c *Cell) attach(port network.Port, peer network.Link) error {
	if c.peers[port] != nil {
		return protocol.Chain(protocol.LocalResourceBusy, protocol.InvalidConfiguration)
	}
	c.peers[port] = peer
	c.PortConnectHandler(uint8(port))
	return nil
}

func (c *Cell) detach(port network.Port) {
	if c.peers[port] == nil {
		return
	}
	c.peers[port] = nil
	c.PortDisconnectHandler(uint8(port))
}

// Core returns the cell runtime
func (c *Cell) Core() *cell.Core { return c.core }

// Frame returns the last frame shown
func (c *Cell) Frame() display.LedBuffer { return c.display.Buffer() }

// Frames returns the number of frames shown
func (c *Cell) Frames() uint64 { return c.frames }

// Connected returns the connected port bitmask
func (c *Cell) Connected() uint8 { return c.flags }

// Dropped returns the number of inbound messages lost to a full queue
func (c *Cell) Dropped() uint32 { return c.inbox.Dropped() }

// cellPort delivers messages into one port of a cell
type cellPort struct {
	cell *Cell
	port network.Port
}

func (p cellPort) SendMessage(m *protocol.Message) error {
	return p.cell.Receive(p.port, m)
}
