package cell

import (
	"hexcell/core"
	"hexcell/display"
	"hexcell/network"
	"hexcell/pattern"
)

// Option configures a Core
type Option func(*options)

type options struct {
	timing         network.Timing
	log            *core.Logger
	events         *core.EventRing
	observer       network.StateObserver
	statusInterval core.Microseconds
}

// WithTiming overrides the network timing
func WithTiming(t network.Timing) Option {
	return func(o *options) { o.timing = t }
}

// WithLogger sets the diagnostic logger shared by the cell's subsystems
func WithLogger(l *core.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithEvents records task and protocol events into r
func WithEvents(r *core.EventRing) Option {
	return func(o *options) { o.events = r }
}

// WithStateObserver is told about network state transitions
func WithStateObserver(obs network.StateObserver) Option {
	return func(o *options) { o.observer = obs }
}

// WithStatusInterval logs a status line every interval; zero disables it
func WithStatusInterval(d core.Microseconds) Option {
	return func(o *options) { o.statusInterval = d }
}

// Core owns the network state machine and pattern engine of one cell
type Core struct {
	sched     *core.Scheduler
	net       *network.FSM
	patterns  *pattern.Engine
	transport Transport
	commands  *core.CommandRegistry

	log            *core.Logger
	events         *core.EventRing
	statusInterval core.Microseconds

	lastTick      core.Microseconds
	frame         display.LedBuffer
	commandErrors uint32
}

// Tasks are dispatched by kind through this table
var taskTable = [core.TaskKindCount]func(c *Core, arg uint32){
	core.TaskNetworkPoll:      func(c *Core, arg uint32) { c.net.OnPoll(arg) },
	core.TaskQueryTimeout:     func(c *Core, arg uint32) { c.net.OnQueryTimeout(arg) },
	core.TaskDiscoveryTimeout: func(c *Core, arg uint32) { c.net.OnDiscoveryTimeout(arg) },
	core.TaskErrorRecover:     func(c *Core, arg uint32) { c.net.OnRecover(arg) },
	core.TaskStatusReport:     (*Core).reportStatus,
}

// NewCore creates the runtime of the cell with unique id id.UID. The
// scheduler is shared with the caller; tr carries the cell's messages.
func NewCore(sched *core.Scheduler, id network.NetworkId, tr Transport, opts ...Option) *Core {
	o := options{timing: network.DefaultTiming()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Core{
		sched:          sched,
		patterns:       pattern.NewEngine(),
		transport:      tr,
		commands:       core.NewCommandRegistry(),
		log:            o.log,
		events:         o.events,
		statusInterval: o.statusInterval,
	}
	netOpts := []network.Option{
		network.WithTiming(o.timing),
		network.WithLogger(o.log),
		network.WithPayloadHandler(c.onPayload),
	}
	if o.events != nil {
		netOpts = append(netOpts, network.WithEvents(o.events))
	}
	if o.observer != nil {
		netOpts = append(netOpts, network.WithStateObserver(o.observer))
	}
	c.net = network.New(id.UID, sched, tr, netOpts...)
	c.registerCommands()
	return c
}

// Init starts discovery and pattern playback
func (c *Core) Init(now core.Microseconds) {
	c.sched.Init(now)
	c.net.Init()
	c.patterns.Start()
	c.lastTick = now
	if c.statusInterval > 0 {
		if _, err := c.sched.QueueTask(core.TaskStatusReport, 0, c.statusInterval, false); err != nil {
			c.log.Error("cell: status task: " + err.Error())
		}
	}
}

// Tick runs one iteration: inbound messages, due tasks, then one frame of
// animation
func (c *Core) Tick(now core.Microseconds) {
	delta := core.Since(now, c.lastTick)
	c.net.Update(now, c.transport)
	c.sched.Poll(now, c)
	c.frame = c.patterns.Run(delta)
	c.lastTick = now
}

// DispatchTask implements core.Dispatcher
func (c *Core) DispatchTask(t core.Task) {
	if c.events != nil {
		c.events.Record(core.EvtTaskFire, 0, c.lastTick, uint32(t.Kind), t.Arg)
	}
	if t.Kind < core.TaskKindCount {
		if h := taskTable[t.Kind]; h != nil {
			h(c, t.Arg)
			return
		}
	}
	c.log.Warn("cell: no handler for task " + t.Kind.String())
}

// Buffer returns the frame completed by the last Tick
func (c *Core) Buffer() display.LedBuffer {
	return c.frame
}

// PortConnected reports a new link on p
func (c *Core) PortConnected(p network.Port) {
	c.net.PortConnected(p)
}

// PortDisconnected reports a lost link on p
func (c *Core) PortDisconnected(p network.Port) {
	c.net.PortDisconnected(p)
}

// LinkError reports a discarded frame or transport fault on p
func (c *Core) LinkError(p network.Port, err error) {
	c.net.LinkError(p, err)
}

// SetAddress overrides the cell coordinates with a packed address
func (c *Core) SetAddress(addr uint32) int16 {
	id := network.FromAddress(addr, c.net.UID())
	c.net.Assign(id.X, id.Y)
	return 0
}

// Address returns the packed coordinates of the cell
func (c *Core) Address() uint32 {
	return c.net.ID().Address()
}

// Network returns the cell's network state machine
func (c *Core) Network() *network.FSM { return c.net }

// Patterns returns the cell's pattern engine
func (c *Core) Patterns() *pattern.Engine { return c.patterns }

// Commands returns the registry remote payloads are dispatched through
func (c *Core) Commands() *core.CommandRegistry { return c.commands }

// CommandErrors returns the number of remote commands that failed
func (c *Core) CommandErrors() uint32 { return c.commandErrors }

func (c *Core) reportStatus(uint32) {
	if !c.log.Enabled(core.LogInfo) {
		return
	}
	s := c.net.Stats()
	c.log.Info("cell: " + c.net.State().String() +
		" id=" + c.net.ID().String() +
		" root=" + core.Hex32(c.net.RootUID()) +
		" sent=" + core.Utoa(s.Sent) +
		" recv=" + core.Utoa(s.Received) +
		" relayed=" + core.Utoa(s.Relayed) +
		" errors=" + core.Utoa(s.Errors) +
		" timeouts=" + core.Utoa(s.Timeouts))
}
