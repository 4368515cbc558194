package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hexcell/core"
	"hexcell/network"
	"hexcell/protocol"
)

func runMesh(m *Mesh, ms int) {
	for i := 0; i < ms; i++ {
		m.Step(core.Millis(1))
	}
}

// row places cells left to right along y=0; odd-q layout links them as a chain
func row(t *testing.T, uids ...uint32) *Mesh {
	t.Helper()
	m := NewMesh()
	for i, uid := range uids {
		_, err := m.NewDevice(Coordinate{X: i}, uid)
		require.NoError(t, err)
	}
	require.NoError(t, m.AutoConnect())
	return m
}

func TestMeshConvergesOnLowestUID(t *testing.T) {
	m := NewMesh()
	uids := map[Coordinate]uint32{
		{X: 0, Y: 0}: 9,
		{X: 1, Y: 0}: 4,
		{X: 0, Y: 1}: 12,
		{X: 1, Y: 1}: 6,
	}
	for coord, uid := range uids {
		_, err := m.NewDevice(coord, uid)
		require.NoError(t, err)
	}
	require.NoError(t, m.AutoConnect())
	runMesh(m, 3000)

	for _, s := range m.Snapshot() {
		assert.Equal(t, "Idle", s.State, "cell %08x", s.UID)
		assert.Equal(t, uint32(4), s.Root, "cell %08x", s.UID)
	}
	root, _ := m.Device(Coordinate{X: 1, Y: 0})
	assert.Zero(t, root.GetAddress())
}

func TestRemovingRootReroots(t *testing.T) {
	m := row(t, 1, 5, 3)
	runMesh(m, 2000)
	far, _ := m.Device(Coordinate{X: 2})
	require.Equal(t, uint32(1), far.Core().Network().RootUID())

	require.NoError(t, m.RemoveDevice(Coordinate{X: 0}))
	runMesh(m, 4000)

	mid, _ := m.Device(Coordinate{X: 1})
	for _, c := range []*Cell{mid, far} {
		assert.Equal(t, network.Idle, c.Core().Network().State(), "cell %08x", c.GetUID())
		assert.Equal(t, uint32(3), c.Core().Network().RootUID(), "cell %08x", c.GetUID())
	}
	assert.Zero(t, far.GetAddress())
	assert.NotZero(t, mid.GetAddress())
}

func meshSent(m *Mesh) uint32 {
	var n uint32
	for _, coord := range m.Devices() {
		c, _ := m.Device(coord)
		n += c.Core().Network().Stats().Sent
	}
	return n
}

func TestGridRerootSettlesOnOneRoot(t *testing.T) {
	m := NewMesh()
	uids := [3][3]uint32{
		{7, 3, 9},
		{1, 8, 4},
		{6, 2, 5},
	}
	for y, r := range uids {
		for x, uid := range r {
			_, err := m.NewDevice(Coordinate{X: x, Y: y}, uid)
			require.NoError(t, err)
		}
	}
	require.NoError(t, m.AutoConnect())
	runMesh(m, 3000)
	for _, s := range m.Snapshot() {
		require.Equal(t, uint32(1), s.Root, "cell %08x before the cut", s.UID)
	}

	require.NoError(t, m.RemoveDevice(Coordinate{X: 0, Y: 1}))
	runMesh(m, 8000)

	roots := 0
	for _, coord := range m.Devices() {
		c, _ := m.Device(coord)
		net := c.Core().Network()
		assert.Equal(t, network.Idle, net.State(), "cell %08x", c.GetUID())
		assert.Equal(t, uint32(2), net.RootUID(), "cell %08x", c.GetUID())
		if net.Parent() == network.NoPort {
			roots++
		}
	}
	assert.Equal(t, 1, roots)

	before := meshSent(m)
	runMesh(m, 2000)
	assert.Equal(t, before, meshSent(m), "traffic after convergence")
}

func TestMeshEditErrors(t *testing.T) {
	m := NewMesh()
	_, err := m.NewDevice(Coordinate{}, 1)
	require.NoError(t, err)
	_, err = m.NewDevice(Coordinate{}, 2)
	assert.ErrorIs(t, err, ErrExistingDevice)

	_, err = m.NewDevice(Coordinate{X: 2}, 3)
	require.NoError(t, err)
	assert.ErrorIs(t, m.EnableConnection(Coordinate{}, Coordinate{X: 2}), ErrInvalidConnection)
	assert.ErrorIs(t, m.EnableConnection(Coordinate{}, Coordinate{X: 1}), ErrInvalidConnection)

	require.NoError(t, m.MoveDevice(Coordinate{X: 2}, Coordinate{X: 1}))
	require.NoError(t, m.EnableConnection(Coordinate{}, Coordinate{X: 1}))
	assert.ErrorIs(t, m.EnableConnection(Coordinate{X: 1}, Coordinate{}), ErrConnectionExists)
	assert.Equal(t, []Coordinate{{X: 1}}, m.Connections(Coordinate{}))

	a, _ := m.Device(Coordinate{})
	assert.Equal(t, uint8(1)<<network.PortC, a.Connected())

	assert.ErrorIs(t, m.MoveDevice(Coordinate{}, Coordinate{X: 1}), ErrExistingDevice)
	assert.ErrorIs(t, m.MoveDevice(Coordinate{X: 5}, Coordinate{X: 6}), ErrUnknownDevice)
	require.NoError(t, m.MoveDevice(Coordinate{X: 1}, Coordinate{X: 4}))
	assert.Empty(t, m.Connections(Coordinate{}))
	assert.Zero(t, a.Connected())

	assert.ErrorIs(t, m.RemoveDevice(Coordinate{X: 1}), ErrUnknownDevice)
	require.NoError(t, m.RemoveDevice(Coordinate{X: 4}))
	assert.Equal(t, []Coordinate{{}}, m.Devices())
}

func TestCellPortErrors(t *testing.T) {
	c := NewCell(1)
	assert.ErrorIs(t, c.SendSignal(0, 1), protocol.InvalidSignal)

	var msg protocol.Message
	require.NoError(t, msg.Set(2, protocol.StatusQuery, []byte{1, 0}))
	err := c.SendMessage(&msg)
	assert.ErrorIs(t, err, protocol.NotConnected)
	assert.ErrorIs(t, err, protocol.DestinationUnreachable)

	msg.Header.Port = 9
	assert.ErrorIs(t, c.SendMessage(&msg), protocol.InvalidPort)

	for i := 0; i < protocol.QueueLength; i++ {
		require.NoError(t, c.Receive(network.PortA, &msg))
	}
	assert.ErrorIs(t, c.Receive(network.PortA, &msg), protocol.RemoteResourceBusy)
	assert.Equal(t, uint32(1), c.Dropped())

	got, ok := c.GetMessage()
	require.True(t, ok)
	assert.Equal(t, uint8(network.PortA), got.Header.Port)
}

// fakeBridge records what a cell sends out of a bridged port
type fakeBridge struct {
	sent  []protocol.Message
	inbox []protocol.Message
}

func (b *fakeBridge) SendMessage(m *protocol.Message) error {
	b.sent = append(b.sent, *m)
	return nil
}

func (b *fakeBridge) GetMessage() (protocol.Message, bool) {
	if len(b.inbox) == 0 {
		return protocol.Message{}, false
	}
	m := b.inbox[0]
	b.inbox = b.inbox[1:]
	return m, true
}

func TestBridgeCarriesDiscovery(t *testing.T) {
	m := NewMesh()
	_, err := m.NewDevice(Coordinate{}, 7)
	require.NoError(t, err)

	b := &fakeBridge{}
	assert.ErrorIs(t, m.AttachBridge(Coordinate{X: 3}, network.PortB, b), ErrUnknownDevice)
	assert.ErrorIs(t, m.AttachBridge(Coordinate{}, network.Port(8), b), protocol.InvalidPort)
	require.NoError(t, m.AttachBridge(Coordinate{}, network.PortB, b))
	assert.ErrorIs(t, m.AttachBridge(Coordinate{}, network.PortB, &fakeBridge{}), protocol.LocalResourceBusy)

	runMesh(m, 20)
	require.NotEmpty(t, b.sent)
	assert.Equal(t, uint8(network.PortB), b.sent[0].Header.Port)
	assert.Equal(t, byte(network.QueryWhoAmI), b.sent[0].Body()[0])

	var junk protocol.Message
	require.NoError(t, junk.Set(0, protocol.StatusQuery, []byte{byte(network.QueryGetID)}))
	b.inbox = append(b.inbox, junk)
	runMesh(m, 1)
	assert.Empty(t, b.inbox)
}

// noisyBridge also reports frames it could not decode
type noisyBridge struct {
	fakeBridge
	errs chan error
}

func (b *noisyBridge) Errors() <-chan error { return b.errs }

func TestBridgeFrameErrorsReachCell(t *testing.T) {
	m := NewMesh()
	c, err := m.NewDevice(Coordinate{}, 7)
	require.NoError(t, err)
	b := &noisyBridge{errs: make(chan error, 1)}
	require.NoError(t, m.AttachBridge(Coordinate{}, network.PortB, b))

	runMesh(m, 5)
	require.Zero(t, c.Core().Network().Stats().Errors)

	b.errs <- protocol.ChecksumFailure
	runMesh(m, 1)
	assert.Equal(t, network.Error, c.Core().Network().State())
	assert.Equal(t, uint32(1), c.Core().Network().Stats().Errors)
	assert.Empty(t, b.errs)
}

func TestSnapshotShape(t *testing.T) {
	m := row(t, 2, 1)
	runMesh(m, 10)
	snap := m.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, Coordinate{}, snap[0].Coord)
	assert.Equal(t, uint32(2), snap[0].UID)
	assert.Len(t, snap[0].LEDs, 9)
	assert.NotZero(t, snap[1].Frames)
}
