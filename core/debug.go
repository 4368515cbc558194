package core

import "errors"

// LogLevel orders diagnostic messages by severity
type LogLevel uint8

const (
	LogOff LogLevel = iota
	LogTrace
	LogDebug
	LogInfo
	LogWarn
	LogError
	LogFatal
)

var logLevelNames = [...]string{"OFF", "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l LogLevel) String() string {
	if int(l) < len(logLevelNames) {
		return logLevelNames[l]
	}
	return "LEVEL" + Itoa(int(l))
}

const (
	MaxLogSinks = 4
	MaxLogLen   = 512
)

// DebugWriter writes one formatted line to a platform output (UART, USB, stdout)
type DebugWriter func(string)

// LogSink receives every message at or above the logger's level
type LogSink func(level LogLevel, msg string)

var ErrLogSinkCapacity = errors.New("log: sink capacity exceeded")

// Logger fans messages out to a fixed set of sinks. Messages are built
// by concatenation so the logger stays usable without fmt on TinyGo.
type Logger struct {
	level  LogLevel
	prefix string
	sinks  [MaxLogSinks]LogSink
	nsinks int
}

// NewLogger creates a logger at LogInfo with no sinks
func NewLogger(prefix string) *Logger {
	return &Logger{level: LogInfo, prefix: prefix}
}

// AddSink registers a sink
func (l *Logger) AddSink(sink LogSink) error {
	if l.nsinks == MaxLogSinks {
		return ErrLogSinkCapacity
	}
	l.sinks[l.nsinks] = sink
	l.nsinks++
	return nil
}

// SetLevel sets the minimum level delivered to sinks; LogOff silences the logger
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
}

// Level returns the current minimum level
func (l *Logger) Level() LogLevel {
	return l.level
}

// Enabled reports whether a message at level would reach the sinks
func (l *Logger) Enabled(level LogLevel) bool {
	return l != nil && l.level != LogOff && level >= l.level && l.nsinks > 0
}

// Log delivers msg to every sink, truncated to MaxLogLen
func (l *Logger) Log(level LogLevel, msg string) {
	if !l.Enabled(level) {
		return
	}
	if l.prefix != "" {
		msg = l.prefix + msg
	}
	if len(msg) > MaxLogLen {
		msg = msg[:MaxLogLen]
	}
	for i := 0; i < l.nsinks; i++ {
		l.sinks[i](level, msg)
	}
}

func (l *Logger) Trace(msg string) { l.Log(LogTrace, msg) }
func (l *Logger) Debug(msg string) { l.Log(LogDebug, msg) }
func (l *Logger) Info(msg string)  { l.Log(LogInfo, msg) }
func (l *Logger) Warn(msg string)  { l.Log(LogWarn, msg) }
func (l *Logger) Error(msg string) { l.Log(LogError, msg) }

// WriterSink formats messages as "[LEVEL] msg" onto a DebugWriter
func WriterSink(w DebugWriter) LogSink {
	return func(level LogLevel, msg string) {
		w("[" + level.String() + "] " + msg)
	}
}

// AsyncSink queues formatted lines on a buffered channel drained by a
// background goroutine. When the channel is full the line is dropped so
// logging never stalls the tick loop.
func AsyncSink(w DebugWriter, depth int) LogSink {
	ch := make(chan string, depth)
	go func() {
		for line := range ch {
			w(line)
		}
	}()
	return func(level LogLevel, msg string) {
		select {
		case ch <- "[" + level.String() + "] " + msg:
		default:
		}
	}
}

// Event captures a runtime event for post-mortem analysis
type Event struct {
	Type   uint8
	Port   uint8
	Clock  Microseconds
	Value1 uint32
	Value2 uint32
}

// Event type codes
const (
	EvtTaskFire    = 1 // Scheduler task fired: v1=kind v2=arg
	EvtState       = 2 // Network state change: v1=from v2=to
	EvtMessageIn   = 3 // Message received: v1=query v2=status
	EvtMessageOut  = 4 // Message sent: v1=query v2=status
	EvtQueueDrop   = 5 // Message dropped: v1=dropped total
	EvtTimeout     = 6 // Query timeout: v1=epoch
	EvtLinkChange  = 7 // Port connected (v1=1) or disconnected (v1=0)
	EvtCommandFail = 8 // Remote command failed: v1=command id
)

// EventRingSize is the number of events kept
const EventRingSize = 32

// EventRing keeps the most recent events. Record may be called from an
// interrupt handler.
type EventRing struct {
	events [EventRingSize]Event
	head   uint8
	total  uint32
}

// Record stores an event, overwriting the oldest
func (r *EventRing) Record(eventType, port uint8, clock Microseconds, value1, value2 uint32) {
	state := disableInterrupts()
	r.events[r.head] = Event{
		Type:   eventType,
		Port:   port,
		Clock:  clock,
		Value1: value1,
		Value2: value2,
	}
	r.head = (r.head + 1) % EventRingSize
	r.total++
	restoreInterrupts(state)
}

// Total returns the number of events recorded since creation
func (r *EventRing) Total() uint32 {
	return r.total
}

// Events returns recorded events from oldest to newest
func (r *EventRing) Events() []Event {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	out := make([]Event, 0, EventRingSize)
	for i := uint8(0); i < EventRingSize; i++ {
		evt := r.events[(r.head+i)%EventRingSize]
		if evt.Type == 0 {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// Clear empties the ring
func (r *EventRing) Clear() {
	state := disableInterrupts()
	r.events = [EventRingSize]Event{}
	r.head = 0
	restoreInterrupts(state)
}

// Dump writes the ring to the logger at LogInfo, oldest first
func (r *EventRing) Dump(l *Logger) {
	l.Info("[EVENTS] === Event Ring Dump ===")
	for _, evt := range r.Events() {
		var name string
		switch evt.Type {
		case EvtTaskFire:
			name = "TASK_FIRE"
		case EvtState:
			name = "STATE"
		case EvtMessageIn:
			name = "MSG_IN"
		case EvtMessageOut:
			name = "MSG_OUT"
		case EvtQueueDrop:
			name = "QUEUE_DROP!"
		case EvtTimeout:
			name = "TIMEOUT!"
		case EvtLinkChange:
			name = "LINK"
		case EvtCommandFail:
			name = "CMD_FAIL"
		default:
			name = "UNKNOWN"
		}
		l.Info("[EVENTS] " + name +
			" port=" + Itoa(int(evt.Port)) +
			" clock=" + Utoa(uint32(evt.Clock)) +
			" v1=" + Utoa(evt.Value1) +
			" v2=" + Utoa(evt.Value2))
	}
	l.Info("[EVENTS] === End Dump ===")
}
