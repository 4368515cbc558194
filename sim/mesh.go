package sim

import (
	"errors"
	"fmt"
	"sort"

	"hexcell/cell"
	"hexcell/core"
	"hexcell/network"
	"hexcell/protocol"
)

var (
	ErrExistingDevice    = errors.New("sim: a device already occupies the coordinate")
	ErrUnknownDevice     = errors.New("sim: no device at coordinate")
	ErrInvalidConnection = errors.New("sim: coordinates are not adjacent devices")
	ErrConnectionExists  = errors.New("sim: connection already exists")
)

// Bridge is a port link leaving the mesh, such as a serial line to a
// physical cell. Messages it receives are drained into the attached cell
// on every step.
type Bridge interface {
	network.Link
	network.MessageSource
}

// ErrorSource is implemented by bridges that report corrupt frames. Each
// error is handed to the attached cell on the next step.
type ErrorSource interface {
	Errors() <-chan error
}

type bridgeAttachment struct {
	coord  Coordinate
	port   network.Port
	bridge Bridge
}

// Option configures a Mesh
type Option func(*Mesh)

// WithCellOptions applies opts to every cell the mesh creates
func WithCellOptions(opts ...cell.Option) Option {
	return func(m *Mesh) { m.cellOpts = append(m.cellOpts, opts...) }
}

// WithCellLogger gives each new cell the logger returned by fn
func WithCellLogger(fn func(uid uint32) *core.Logger) Option {
	return func(m *Mesh) { m.logFor = fn }
}

// Mesh is a table of simulated cells. It is driven from one goroutine.
type Mesh struct {
	clock    *core.ManualClock
	cells    map[Coordinate]*Cell
	links    map[Coordinate]map[Coordinate]bool
	bridges  []bridgeAttachment
	cellOpts []cell.Option
	logFor   func(uid uint32) *core.Logger
	started  bool
}

// NewMesh creates an empty table
func NewMesh(opts ...Option) *Mesh {
	m := &Mesh{
		clock: core.NewManualClock(0),
		cells: map[Coordinate]*Cell{},
		links: map[Coordinate]map[Coordinate]bool{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewDevice places a new cell with unique id uid at coord
func (m *Mesh) NewDevice(coord Coordinate, uid uint32) (*Cell, error) {
	if _, ok := m.cells[coord]; ok {
		return nil, fmt.Errorf("new device at %v: %w", coord, ErrExistingDevice)
	}
	opts := m.cellOpts
	if m.logFor != nil {
		opts = append(append([]cell.Option(nil), opts...), cell.WithLogger(m.logFor(uid)))
	}
	c := NewCell(uid, opts...)
	m.cells[coord] = c
	if m.started {
		c.Start(m.clock.Now())
	}
	return c, nil
}

// Device returns the cell at coord
func (m *Mesh) Device(coord Coordinate) (*Cell, bool) {
	c, ok := m.cells[coord]
	return c, ok
}

// Devices returns every occupied coordinate in row-major order
func (m *Mesh) Devices() []Coordinate {
	out := make([]Coordinate, 0, len(m.cells))
	for coord := range m.cells {
		out = append(out, coord)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// MoveDevice disconnects the cell at from and places it at to
func (m *Mesh) MoveDevice(from, to Coordinate) error {
	if _, ok := m.cells[to]; ok {
		return fmt.Errorf("move device to %v: %w", to, ErrExistingDevice)
	}
	c, ok := m.cells[from]
	if !ok {
		return fmt.Errorf("move device from %v: %w", from, ErrUnknownDevice)
	}
	m.disconnectAll(from)
	delete(m.cells, from)
	m.cells[to] = c
	return nil
}

// RemoveDevice disconnects and removes the cell at coord
func (m *Mesh) RemoveDevice(coord Coordinate) error {
	if _, ok := m.cells[coord]; !ok {
		return fmt.Errorf("remove device at %v: %w", coord, ErrUnknownDevice)
	}
	m.disconnectAll(coord)
	delete(m.cells, coord)
	return nil
}

func (m *Mesh) disconnectAll(coord Coordinate) {
	for other := range m.links[coord] {
		m.DisableConnection(coord, other)
	}
	kept := m.bridges[:0]
	for _, b := range m.bridges {
		if b.coord == coord {
			m.cells[coord].detach(b.port)
			continue
		}
		kept = append(kept, b)
	}
	m.bridges = kept
}

// EnableConnection links two adjacent cells through their facing ports
func (m *Mesh) EnableConnection(from, to Coordinate) error {
	a, okA := m.cells[from]
	b, okB := m.cells[to]
	if !okA || !okB {
		return fmt.Errorf("connect %v-%v: %w", from, to, ErrInvalidConnection)
	}
	pa, adjacent := from.PortTo(to)
	if !adjacent {
		return fmt.Errorf("connect %v-%v: %w", from, to, ErrInvalidConnection)
	}
	if m.links[from][to] || m.links[to][from] {
		return fmt.Errorf("connect %v-%v: %w", from, to, ErrConnectionExists)
	}
	pb := OppositePort(pa)
	if a.peers[pa] != nil {
		return protocol.Chain(protocol.LocalResourceBusy, protocol.InvalidConfiguration)
	}
	if b.peers[pb] != nil {
		return protocol.Chain(protocol.RemoteResourceBusy, protocol.InvalidConfiguration)
	}

	m.insertLink(from, to)
	m.insertLink(to, from)
	a.attach(pa, cellPort{cell: b, port: pb})
	b.attach(pb, cellPort{cell: a, port: pa})
	return nil
}

func (m *Mesh) insertLink(from, to Coordinate) {
	set, ok := m.links[from]
	if !ok {
		set = map[Coordinate]bool{}
		m.links[from] = set
	}
	set[to] = true
}

// DisableConnection unlinks two cells; unknown links are ignored
func (m *Mesh) DisableConnection(from, to Coordinate) {
	if !m.links[from][to] {
		return
	}
	delete(m.links[from], to)
	delete(m.links[to], from)
	pa, _ := from.PortTo(to)
	if a, ok := m.cells[from]; ok {
		a.detach(pa)
	}
	if b, ok := m.cells[to]; ok {
		b.detach(OppositePort(pa))
	}
}

// Connections returns the coordinates linked to at
func (m *Mesh) Connections(at Coordinate) []Coordinate {
	out := make([]Coordinate, 0, len(m.links[at]))
	for _, adj := range at.AdjacentCoordinates() {
		if m.links[at][adj] {
			out = append(out, adj)
		}
	}
	return out
}

// AutoConnect links every pair of adjacent cells not yet linked
func (m *Mesh) AutoConnect() error {
	for _, coord := range m.Devices() {
		for _, adj := range coord.AdjacentCoordinates() {
			if _, ok := m.cells[adj]; !ok || m.links[coord][adj] {
				continue
			}
			if err := m.EnableConnection(coord, adj); err != nil {
				return err
			}
		}
	}
	return nil
}

// AttachBridge connects port of the cell at coord to a link outside the mesh
func (m *Mesh) AttachBridge(coord Coordinate, port network.Port, b Bridge) error {
	c, ok := m.cells[coord]
	if !ok {
		return fmt.Errorf("attach bridge at %v: %w", coord, ErrUnknownDevice)
	}
	if !port.Valid() {
		return protocol.Chain(protocol.InvalidPort, protocol.InvalidConfiguration)
	}
	if err := c.attach(port, b); err != nil {
		return err
	}
	m.bridges = append(m.bridges, bridgeAttachment{coord: coord, port: port, bridge: b})
	return nil
}

// Start initializes every cell. Cells added later start on creation.
func (m *Mesh) Start() {
	m.started = true
	now := m.clock.Now()
	for _, coord := range m.Devices() {
		m.cells[coord].Start(now)
	}
}

// Step advances simulated time by d and updates every cell once
func (m *Mesh) Step(d core.Microseconds) {
	if !m.started {
		m.Start()
	}
	now := m.clock.Advance(d)
	for _, b := range m.bridges {
		c := m.cells[b.coord]
		for {
			msg, ok := b.bridge.GetMessage()
			if !ok {
				break
			}
			c.Receive(b.port, &msg)
		}
		if es, ok := b.bridge.(ErrorSource); ok {
			drainErrors(c, b.port, es.Errors())
		}
	}
	for _, coord := range m.Devices() {
		m.cells[coord].Update(now)
	}
}

func drainErrors(c *Cell, port network.Port, errs <-chan error) {
	for {
		select {
		case err := <-errs:
			c.LinkError(port, err)
		default:
			return
		}
	}
}

// Now returns the simulated time
func (m *Mesh) Now() core.Microseconds {
	return m.clock.Now()
}

// CellState is a snapshot of one cell for rendering and the feed
type CellState struct {
	Coord    Coordinate `json:"coord"`
	UID      uint32     `json:"uid"`
	State    string     `json:"state"`
	NetX     int16      `json:"net_x"`
	NetY     int16      `json:"net_y"`
	Root     uint32     `json:"root"`
	Parent   string     `json:"parent"`
	Ports    uint8      `json:"ports"`
	LEDs     []string   `json:"leds"`
	Frames   uint64     `json:"frames"`
	Dropped  uint32     `json:"dropped"`
	Errors   uint32     `json:"errors"`
	Timeouts uint32     `json:"timeouts"`
}

// Snapshot captures every cell in Devices order
func (m *Mesh) Snapshot() []CellState {
	out := make([]CellState, 0, len(m.cells))
	for _, coord := range m.Devices() {
		c := m.cells[coord]
		fsm := c.core.Network()
		id := fsm.ID()
		stats := fsm.Stats()
		frame := c.Frame()
		leds := make([]string, len(frame))
		for i, led := range frame {
			leds[i] = led.String()
		}
		out = append(out, CellState{
			Coord:    coord,
			UID:      c.uid,
			State:    fsm.State().String(),
			NetX:     id.X,
			NetY:     id.Y,
			Root:     fsm.RootUID(),
			Parent:   fsm.Parent().String(),
			Ports:    c.flags,
			LEDs:     leds,
			Frames:   c.frames,
			Dropped:  c.Dropped(),
			Errors:   stats.Errors,
			Timeouts: stats.Timeouts,
		})
	}
	return out
}
