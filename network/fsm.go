package network

import (
	"errors"

	"hexcell/core"
	"hexcell/protocol"
)

// Link sends a message out of the port named in its header
type Link interface {
	SendMessage(m *protocol.Message) error
}

// MessageSource yields inbound messages without blocking
type MessageSource interface {
	GetMessage() (protocol.Message, bool)
}

// outbound is a query waiting for the outstanding one to finish. The body
// is built when it is sent, so it always carries the current identity.
type outbound struct {
	port  Port
	query Query
	x, y  int16
}

type pendingQuery struct {
	active bool
	port   Port
	query  Query
	tag    uint8
	seq    uint32
}

// Option configures an FSM
type Option func(*FSM)

// WithTiming overrides DefaultTiming
func WithTiming(t Timing) Option {
	return func(f *FSM) { f.timing = t }
}

// WithLogger sets the diagnostic logger
func WithLogger(l *core.Logger) Option {
	return func(f *FSM) { f.log = l }
}

// WithEvents records protocol events into r
func WithEvents(r *core.EventRing) Option {
	return func(f *FSM) { f.events = r }
}

// WithStateObserver registers a transition callback
func WithStateObserver(o StateObserver) Option {
	return func(f *FSM) { f.observer = o }
}

// WithPayloadHandler registers the application payload callback
func WithPayloadHandler(h PayloadHandler) Option {
	return func(f *FSM) { f.onPayload = h }
}

// FSM is the network state machine of one cell. It is driven from a
// single goroutine: Update, the task callbacks and the port handlers must
// not be called concurrently.
type FSM struct {
	uid       uint32
	id        NetworkId
	rootUID   uint32
	parent    Port
	parentUID uint32
	hops      uint8 // Distance to the root
	state     State
	ports     [PortCount]PortInfo

	sched  *core.Scheduler
	link   Link
	timing Timing
	now    core.Microseconds

	epoch       uint32
	querySeq    uint32
	tag         uint8
	pollArmed   bool
	discovering bool
	pollCursor  uint8
	excluded    uint8 // Ports whose neighbor named us as parent during reroot
	lowestPeer  uint32

	// After losing its parent the cell refuses offers of the old root
	// from cells no closer to it than it was, until the hold-down ends.
	// Such cells may still be its own descendants.
	staleRoot  uint32
	staleHops  uint8
	staleUntil core.Microseconds
	holdDown   bool
	deferred   bool // An offer was refused during the hold-down

	outstanding  pendingQuery
	pending      [MaxPendingQueries]outbound
	pendingHead  int
	pendingCount int

	seen      floodCache
	enumTag   uint8
	topology  []NetworkId
	lastRoute RouteResult
	stats     Stats

	w   bodyWriter
	msg protocol.Message

	log       *core.Logger
	events    *core.EventRing
	observer  StateObserver
	onPayload PayloadHandler
}

// New creates an FSM for the cell with unique id uid. Tasks are queued on
// sched and messages leave through link.
func New(uid uint32, sched *core.Scheduler, link Link, opts ...Option) *FSM {
	f := &FSM{
		uid:    uid,
		id:     NetworkId{UID: uid},
		parent: NoPort,
		sched:  sched,
		link:   link,
		timing: DefaultTiming(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Init starts discovery. With no connected ports the cell becomes root
// immediately; otherwise it probes neighbors with WHOAMI until one
// answers or the discovery timeout elects a root.
func (f *FSM) Init() {
	if !f.pollArmed {
		if _, err := f.sched.QueueTask(core.TaskNetworkPoll, 0, f.timing.PollInterval, false); err != nil {
			f.log.Error("net: poll task: " + err.Error())
		} else {
			f.pollArmed = true
		}
	}
	f.startDiscovery(Uninitialized)
}

// Update drains up to MaxMessagesPerTick inbound messages
func (f *FSM) Update(now core.Microseconds, src MessageSource) {
	f.now = now
	if src == nil {
		return
	}
	for i := 0; i < MaxMessagesPerTick; i++ {
		m, ok := src.GetMessage()
		if !ok {
			return
		}
		f.HandleMessage(&m)
	}
}

func (f *FSM) startDiscovery(st State) {
	if st == Reroot && f.state.Settled() {
		f.detach()
	}
	f.epoch++
	f.clearQueries()
	f.lowestPeer = 0
	f.pollCursor = 0
	f.excluded = 0
	f.parent = NoPort
	f.parentUID = 0
	f.setState(st)

	if f.connectedCount() == 0 {
		f.becomeRoot()
		return
	}
	f.discovering = true
	f.probe()
	f.queueOnce(core.TaskDiscoveryTimeout, f.epoch, f.timing.DiscoveryTimeout)
}

func (f *FSM) becomeRoot() {
	f.discovering = false
	f.clearOutstanding()
	f.setState(Initializing)
	f.id = NetworkId{X: 0, Y: 0, UID: f.uid}
	f.rootUID = f.uid
	f.hops = 0
	f.parent = NoPort
	f.parentUID = 0
	f.log.Info("net: root " + f.id.String())
	f.setState(Idle)
	f.announce(NoPort)
}

// adopt takes an identity assigned by the neighbor on port p, which is
// fromHops away from root
func (f *FSM) adopt(p Port, assigned NetworkId, root uint32, from NetworkId, fromHops uint8) {
	wasSettled := f.state.Settled()
	if f.discovering {
		f.discovering = false
		f.clearOutstanding()
	}
	if !wasSettled {
		f.setState(Initializing)
	}
	f.id = NetworkId{X: assigned.X, Y: assigned.Y, UID: f.uid}
	f.rootUID = root
	f.hops = childHops(fromHops)
	f.parent = p
	f.parentUID = from.UID
	f.ports[p].Address = from
	f.log.Info("net: id " + f.id.String() + " via port " + p.String() + " root " + core.Hex32(root))
	if !wasSettled {
		f.setState(Idle)
	}
	f.announce(p)
}

// detach starts the hold-down on the current root and tells every
// neighbor that this cell no longer leads to it
func (f *FSM) detach() {
	f.staleRoot = f.rootUID
	f.staleHops = f.hops
	f.staleUntil = f.now + f.timing.DiscoveryTimeout
	f.holdDown = true
	f.deferred = false

	f.w.reset(QueryDetach, f.nextTag())
	f.w.u32(f.rootUID)
	for p := PortA; p < PortCount; p++ {
		if !f.ports[p].Connected() {
			continue
		}
		if err := f.send(p, protocol.StatusQuery, f.w.body()); err != nil {
			f.log.Warn("net: DETACH on " + p.String() + ": " + err.Error())
		}
	}
}

// refuse reports whether an offer of root from a cell hops away from it
// must be turned down during the hold-down
func (f *FSM) refuse(root uint32, hops uint8) bool {
	if !f.holdDown || root != f.staleRoot || hops < f.staleHops {
		return false
	}
	f.deferred = true
	return true
}

// endHoldDown lifts the restriction on the old root. Cells refused during
// the hold-down are offered our identity again, so a surviving path to
// the old root can still win.
func (f *FSM) endHoldDown() {
	f.holdDown = false
	f.staleRoot = 0
	if !f.deferred {
		return
	}
	f.deferred = false
	if f.state.Settled() {
		f.announce(f.parent)
	}
}

func childHops(h uint8) uint8 {
	if h == 0xFF {
		return h
	}
	return h + 1
}

// announce offers our identity to every connected neighbor except skip
func (f *FSM) announce(skip Port) {
	for r := uint8(0); r < uint8(PortCount); r++ {
		p := PortOfRank(r)
		if p == skip || !f.ports[p].Connected() {
			continue
		}
		if err := f.issue(outbound{port: p, query: QuerySetID}); err != nil {
			f.log.Warn("net: SETID to " + p.String() + ": " + err.Error())
		}
	}
}

// probe sends WHOAMI on the next connected port in rank order
func (f *FSM) probe() {
	if f.outstanding.active {
		return
	}
	for i := uint8(0); i < uint8(PortCount); i++ {
		r := (f.pollCursor + i) % uint8(PortCount)
		p := PortOfRank(r)
		if !f.ports[p].Connected() || f.excluded&(1<<p) != 0 {
			continue
		}
		f.pollCursor = (r + 1) % uint8(PortCount)
		f.w.reset(QueryWhoAmI, f.nextTag())
		f.w.u32(f.uid)
		if err := f.request(p, QueryWhoAmI); err != nil {
			f.log.Warn("net: WHOAMI on " + p.String() + ": " + err.Error())
		}
		return
	}
}

// issue sends a query now, or queues it behind the outstanding one
func (f *FSM) issue(o outbound) error {
	if f.outstanding.active {
		if f.pendingCount == MaxPendingQueries {
			return ErrQueryQueueFull
		}
		f.pending[(f.pendingHead+f.pendingCount)%MaxPendingQueries] = o
		f.pendingCount++
		return nil
	}
	return f.startQuery(o)
}

func (f *FSM) startQuery(o outbound) error {
	switch o.query {
	case QuerySetID:
		f.w.reset(QuerySetID, f.nextTag())
		f.w.id(f.id.ComputeExternalID(o.port))
		f.w.u32(f.rootUID)
		f.w.id(f.id)
		f.w.u32(f.parentUID)
		f.w.u8(f.hops)
	case QueryGetID:
		f.w.reset(QueryGetID, f.nextTag())
	case QueryRouteTo:
		o.port = f.nextHop(o.x, o.y, NoPort)
		if o.port == NoPort {
			return protocol.DestinationUnreachable
		}
		f.w.reset(QueryRouteTo, f.nextTag())
		f.w.i16(o.x)
		f.w.i16(o.y)
		f.w.u8(0)
		f.w.id(f.id)
		f.lastRoute = RouteResult{TargetX: o.x, TargetY: o.y}
	default:
		return protocol.InvalidMessageContents
	}
	if err := f.request(o.port, o.query); err != nil {
		return err
	}
	if f.state == Idle {
		f.setState(Busy)
	}
	return nil
}

// request arms a timeout and sends the query in f.w. Nothing is sent
// when the timeout cannot be queued.
func (f *FSM) request(p Port, q Query) error {
	tag := f.w.buf[1]
	timeout := f.timing.QueryTimeout
	if q == QueryRouteTo {
		timeout = f.timing.RouteTimeout
	}
	seq := f.querySeq + 1
	if _, err := f.sched.QueueTask(core.TaskQueryTimeout, seq, timeout, true); err != nil {
		f.stats.SendErrors++
		return err
	}
	f.querySeq = seq
	if err := f.send(p, protocol.StatusQuery, f.w.body()); err != nil {
		return err
	}
	f.outstanding = pendingQuery{active: true, port: p, query: q, tag: tag, seq: seq}
	return nil
}

// complete finishes the outstanding query and starts the next queued one
func (f *FSM) complete() {
	f.outstanding = pendingQuery{}
	if f.state == Busy {
		f.setState(Idle)
	}
	for !f.outstanding.active && f.pendingCount > 0 && f.state.Settled() {
		o := f.pending[f.pendingHead]
		f.pendingHead = (f.pendingHead + 1) % MaxPendingQueries
		f.pendingCount--
		if !f.ports[o.port].Connected() && o.query != QueryRouteTo {
			continue
		}
		if err := f.startQuery(o); err != nil {
			f.log.Warn("net: " + o.query.String() + ": " + err.Error())
		}
	}
}

func (f *FSM) clearOutstanding() {
	f.outstanding = pendingQuery{}
}

func (f *FSM) clearQueries() {
	f.outstanding = pendingQuery{}
	f.pendingHead = 0
	f.pendingCount = 0
}

// OnPoll handles TaskNetworkPoll
func (f *FSM) OnPoll(uint32) {
	if f.holdDown && int32(f.now-f.staleUntil) >= 0 {
		f.endHoldDown()
	}
	switch {
	case f.discovering:
		f.probe()
	case f.state == Idle && f.pendingCount == 0:
		// Learn the address of any neighbor that settled through another port
		for r := uint8(0); r < uint8(PortCount); r++ {
			p := PortOfRank(r)
			if info := f.ports[p]; info.Connected() && !info.Address.Assigned() {
				if err := f.issue(outbound{port: p, query: QueryGetID}); err != nil {
					f.log.Warn("net: GETID to " + p.String() + ": " + err.Error())
				}
				return
			}
		}
	}
}

// OnQueryTimeout handles TaskQueryTimeout; arg is the query sequence number
func (f *FSM) OnQueryTimeout(seq uint32) {
	if !f.outstanding.active || f.outstanding.seq != seq {
		return
	}
	f.stats.Timeouts++
	if f.discovering && f.outstanding.query == QueryWhoAmI {
		// A silent neighbor is skipped; the discovery timeout still elects
		f.clearOutstanding()
		return
	}
	f.record(core.EvtTimeout, uint8(f.outstanding.port), seq, uint32(f.outstanding.query))
	f.enterError(protocol.Timeout, f.outstanding.query.String()+" on "+f.outstanding.port.String())
}

// OnDiscoveryTimeout handles TaskDiscoveryTimeout; arg is the epoch that
// queued it. The cell becomes root only if no lower uid answered NAK.
func (f *FSM) OnDiscoveryTimeout(epoch uint32) {
	if epoch != f.epoch || !f.discovering {
		return
	}
	if f.lowestPeer == 0 || f.uid < f.lowestPeer {
		f.becomeRoot()
		return
	}
	f.lowestPeer = 0
	f.queueOnce(core.TaskDiscoveryTimeout, f.epoch, f.timing.DiscoveryTimeout)
}

// OnRecover handles TaskErrorRecover; arg is the epoch that queued it
func (f *FSM) OnRecover(epoch uint32) {
	if f.state != Error || epoch != f.epoch {
		return
	}
	f.id = NetworkId{UID: f.uid}
	f.setState(Uninitialized)
	f.startDiscovery(Uninitialized)
}

// DispatchTask routes the network task kinds to their handlers
func (f *FSM) DispatchTask(t core.Task) {
	switch t.Kind {
	case core.TaskNetworkPoll:
		f.OnPoll(t.Arg)
	case core.TaskQueryTimeout:
		f.OnQueryTimeout(t.Arg)
	case core.TaskDiscoveryTimeout:
		f.OnDiscoveryTimeout(t.Arg)
	case core.TaskErrorRecover:
		f.OnRecover(t.Arg)
	}
}

// LinkError reports a transport failure on p (corrupt frame, UART fault)
func (f *FSM) LinkError(p Port, err error) {
	var kind protocol.NetworkError
	if !errors.As(err, &kind) {
		err = protocol.Chain(err, protocol.ChecksumFailure)
	}
	f.enterError(err, "link "+p.String())
}

func (f *FSM) enterError(err error, context string) {
	f.stats.Errors++
	f.log.Warn("net: error (" + context + "): " + err.Error())
	if f.state.Settled() {
		// Recovery rediscovers from scratch; our subtree must not be offered back
		f.detach()
	}
	f.epoch++
	f.clearQueries()
	f.discovering = false
	f.setState(Error)
	f.queueOnce(core.TaskErrorRecover, f.epoch, f.timing.RecoverDelay)
}

// PortConnected records a new link. A settled cell offers the neighbor an
// identity; a discovering cell probes it on the next poll.
func (f *FSM) PortConnected(p Port) {
	if !p.Valid() {
		return
	}
	f.ports[p] = PortInfo{State: PortIdle}
	f.record(core.EvtLinkChange, uint8(p), 1, 0)
	if f.state.Settled() {
		if err := f.issue(outbound{port: p, query: QuerySetID}); err != nil {
			f.log.Warn("net: SETID to " + p.String() + ": " + err.Error())
		}
	}
}

// PortDisconnected records a lost link. Losing the parent starts a reroot.
func (f *FSM) PortDisconnected(p Port) {
	if !p.Valid() {
		return
	}
	f.ports[p] = PortInfo{}
	f.excluded &^= 1 << p
	f.record(core.EvtLinkChange, uint8(p), 0, 0)

	if f.outstanding.active && f.outstanding.port == p && f.outstanding.query != QueryRouteTo {
		f.complete()
	}
	if p == f.parent && f.state.Settled() {
		f.log.Info("net: parent lost on " + p.String())
		f.startDiscovery(Reroot)
	}
}

// Assign overrides the cell coordinates and re-announces them
func (f *FSM) Assign(x, y int16) {
	f.id.X, f.id.Y = x, y
	if f.state.Settled() {
		f.announce(f.parent)
	}
}

func (f *FSM) setState(to State) {
	from := f.state
	if from == to {
		return
	}
	f.state = to
	f.record(core.EvtState, 0, uint32(from), uint32(to))
	f.log.Debug("net: " + from.String() + " -> " + to.String())
	if f.observer != nil {
		f.observer(from, to)
	}
}

func (f *FSM) send(p Port, status protocol.Status, body []byte) error {
	if !p.Valid() {
		f.stats.SendErrors++
		return protocol.Chain(protocol.InvalidPort, protocol.DestinationUnreachable)
	}
	if !f.ports[p].Connected() {
		f.stats.SendErrors++
		return protocol.Chain(protocol.NotConnected, protocol.DestinationUnreachable)
	}
	if err := f.msg.Set(uint8(p), status, body); err != nil {
		return err
	}
	if err := f.link.SendMessage(&f.msg); err != nil {
		f.stats.SendErrors++
		return err
	}
	f.stats.Sent++
	f.record(core.EvtMessageOut, uint8(p), uint32(body[0]), uint32(status))
	return nil
}

func (f *FSM) queueOnce(kind core.TaskKind, arg uint32, period core.Microseconds) {
	if _, err := f.sched.QueueTask(kind, arg, period, true); err != nil {
		f.log.Error("net: " + kind.String() + ": " + err.Error())
	}
}

func (f *FSM) record(evt uint8, port uint8, v1, v2 uint32) {
	if f.events != nil {
		f.events.Record(evt, port, f.now, v1, v2)
	}
}

func (f *FSM) nextTag() uint8 {
	f.tag++
	return f.tag
}

func (f *FSM) connectedCount() int {
	n := 0
	for _, info := range f.ports {
		if info.Connected() {
			n++
		}
	}
	return n
}

// State returns the current FSM state
func (f *FSM) State() State { return f.state }

// ID returns the cell's network id
func (f *FSM) ID() NetworkId { return f.id }

// UID returns the cell's unique id
func (f *FSM) UID() uint32 { return f.uid }

// RootUID returns the unique id of the root this cell follows
func (f *FSM) RootUID() uint32 { return f.rootUID }

// Parent returns the port toward the root, or NoPort
func (f *FSM) Parent() Port { return f.parent }

// Ports returns a snapshot of every port
func (f *FSM) Ports() [PortCount]PortInfo { return f.ports }

// Hops returns the distance to the root
func (f *FSM) Hops() uint8 { return f.hops }

// Epoch returns the state generation used to discard stale tasks
func (f *FSM) Epoch() uint32 { return f.epoch }

// Stats returns the protocol counters
func (f *FSM) Stats() Stats { return f.stats }

// PendingQueries returns the number of queries waiting to be sent
func (f *FSM) PendingQueries() int { return f.pendingCount }

// Outstanding reports whether a query awaits its response
func (f *FSM) Outstanding() bool { return f.outstanding.active }

// LastRoute returns the result of the most recent RouteTo
func (f *FSM) LastRoute() RouteResult { return f.lastRoute }

// Topology returns the ids collected by the last Enumerate
func (f *FSM) Topology() []NetworkId {
	out := make([]NetworkId, len(f.topology))
	copy(out, f.topology)
	return out
}
