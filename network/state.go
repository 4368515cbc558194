package network

import (
	"errors"

	"hexcell/core"
)

// State is the network FSM state of a cell
type State uint8

const (
	Uninitialized State = iota
	Initializing
	Idle
	Busy
	Error
	Reroot
)

var stateNames = [...]string{"Uninitialized", "Initializing", "Idle", "Busy", "Error", "Reroot"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State?"
}

// Settled reports whether the cell has an identity and serves queries
func (s State) Settled() bool {
	return s == Idle || s == Busy
}

// PortState is the link state of one port
type PortState uint8

const (
	PortDisconnected PortState = iota
	PortIdle
	PortLock
	PortError
)

var portStateNames = [...]string{"Disconnected", "Idle", "Lock", "Error"}

func (s PortState) String() string {
	if int(s) < len(portStateNames) {
		return portStateNames[s]
	}
	return "PortState?"
}

// PortInfo is what a cell knows about one port. Address holds the
// neighbor's id once learned; its UID stays unassigned until then.
type PortInfo struct {
	Address NetworkId
	State   PortState
}

// Connected reports whether a link is established on the port
func (p PortInfo) Connected() bool {
	return p.State != PortDisconnected
}

// Query is the first byte of every network message body
type Query uint8

const (
	QueryWhoAmI Query = iota + 1
	QueryGetID
	QuerySetID
	QueryForward
	QueryRouteTo
	QueryEnumerate
	QueryBroadcast
	QueryDetach
)

var queryNames = [...]string{"", "WHOAMI", "GETID", "SETID", "FORWARD", "ROUTETO", "ENUMERATE", "BROADCAST", "DETACH"}

func (q Query) String() string {
	if q >= QueryWhoAmI && int(q) < len(queryNames) {
		return queryNames[q]
	}
	return "QUERY?"
}

// Valid reports whether q is a known query
func (q Query) Valid() bool {
	return q >= QueryWhoAmI && q <= QueryDetach
}

// Timing holds the protocol intervals
type Timing struct {
	PollInterval     core.Microseconds // WHOAMI probe interval during discovery
	QueryTimeout     core.Microseconds // Single-hop response deadline
	RouteTimeout     core.Microseconds // Multi-hop ROUTETO deadline
	DiscoveryTimeout core.Microseconds // Root election deadline
	RecoverDelay     core.Microseconds // Error to Uninitialized delay
}

// DefaultTiming returns the firmware defaults
func DefaultTiming() Timing {
	return Timing{
		PollInterval:     core.Millis(50),
		QueryTimeout:     core.Millis(250),
		RouteTimeout:     core.Millis(1000),
		DiscoveryTimeout: core.Millis(1000),
		RecoverDelay:     core.Millis(500),
	}
}

// Protocol limits
const (
	MaxHops            = 32
	MaxPendingQueries  = 8
	FloodCacheSize     = 16
	MaxTopology        = 64
	MaxMessagesPerTick = 8
)

var (
	ErrNotSettled      = errors.New("network: cell has no identity yet")
	ErrQueryQueueFull  = errors.New("network: pending query queue full")
	ErrPayloadTooLarge = errors.New("network: payload too large")
)

// Stats counts protocol activity
type Stats struct {
	Sent       uint32
	Received   uint32
	Relayed    uint32
	Dropped    uint32
	SendErrors uint32
	Errors     uint32
	Timeouts   uint32
}

// RouteResult is the outcome of the most recent RouteTo
type RouteResult struct {
	TargetX, TargetY int16
	Responder        NetworkId
	Hops             uint8
	Complete         bool
}

// Delivery is an application payload that reached this cell
type Delivery struct {
	Query     Query
	OriginUID uint32
	Payload   []byte
}

// PayloadHandler receives application payloads. The payload slice is only
// valid for the duration of the call.
type PayloadHandler func(d Delivery)

// StateObserver is told about every state transition
type StateObserver func(from, to State)
