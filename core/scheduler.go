package core

import (
	"context"
	"errors"
	"time"
)

// MaxTasks is the fixed capacity of a Scheduler
const MaxTasks = 32

// TaskKind identifies what a task does when it fires. The set is closed;
// owners dispatch on it through a table.
type TaskKind uint8

const (
	TaskNone TaskKind = iota
	TaskNetworkPoll
	TaskQueryTimeout
	TaskDiscoveryTimeout
	TaskErrorRecover
	TaskStatusReport
	TaskKindCount
)

var taskKindNames = [TaskKindCount]string{
	TaskNone:             "none",
	TaskNetworkPoll:      "network_poll",
	TaskQueryTimeout:     "query_timeout",
	TaskDiscoveryTimeout: "discovery_timeout",
	TaskErrorRecover:     "error_recover",
	TaskStatusReport:     "status_report",
}

func (k TaskKind) String() string {
	if k < TaskKindCount {
		return taskKindNames[k]
	}
	return "task(" + Itoa(int(k)) + ")"
}

// TaskHandle identifies a queued task for logging
type TaskHandle uint32

// Task is a scheduled unit of work. Arg is free for the owner, usually an
// epoch used to ignore tasks that outlived the state that queued them.
type Task struct {
	Kind   TaskKind
	Arg    uint32
	Period Microseconds
	Handle TaskHandle

	elapsed    Microseconds
	autoReload bool
}

// AutoReload reports whether the task re-arms after firing
func (t *Task) AutoReload() bool {
	return t.autoReload
}

// Dispatcher receives fired tasks
type Dispatcher interface {
	DispatchTask(t Task)
}

// DispatchFunc adapts a function to Dispatcher
type DispatchFunc func(Task)

// DispatchTask implements Dispatcher
func (f DispatchFunc) DispatchTask(t Task) {
	f(t)
}

var ErrCapacityExceeded = errors.New("scheduler: task capacity exceeded")

// Scheduler is a fixed-capacity cooperative timer queue. It is polled from
// a single execution context and never blocks.
type Scheduler struct {
	ring     [MaxTasks]Task
	head     int
	count    int
	lastTick Microseconds
	handles  TaskHandle
	fired    uint32
}

// NewScheduler creates an empty scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Init records the reference time for the first Poll
func (s *Scheduler) Init(now Microseconds) {
	s.lastTick = now
}

// QueueTask adds a task firing after period. With once=false the task
// re-arms after each firing. A full scheduler rejects the task and leaves
// the queued ones untouched.
func (s *Scheduler) QueueTask(kind TaskKind, arg uint32, period Microseconds, once bool) (TaskHandle, error) {
	if s.count == MaxTasks {
		return 0, ErrCapacityExceeded
	}
	s.handles++
	s.push(Task{
		Kind:       kind,
		Arg:        arg,
		Period:     period,
		Handle:     s.handles,
		autoReload: !once,
	})
	return s.handles, nil
}

// Poll advances every task pending at the start of the pass by the time
// since the previous poll and dispatches the ones that are due, in FIFO
// order. Tasks queued by a callback wait for the next pass.
func (s *Scheduler) Poll(now Microseconds, d Dispatcher) {
	delta := Since(now, s.lastTick)
	s.lastTick = now

	n := s.count
	for i := 0; i < n; i++ {
		t := s.pop()
		next := t.elapsed + delta
		if next < t.elapsed {
			next = ^Microseconds(0)
		}
		t.elapsed = next
		if t.elapsed < t.Period {
			s.push(t)
			continue
		}

		// Overshoot is dropped: a late task fires once, not once per missed period
		t.elapsed = 0
		if t.autoReload {
			s.push(t)
		}
		s.fired++
		if d != nil {
			d.DispatchTask(t)
		}
	}
}

// Run polls until ctx is done, sleeping idle between passes
func (s *Scheduler) Run(ctx context.Context, clock Clock, d Dispatcher, idle time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.Poll(clock.Now(), d)
		time.Sleep(idle)
	}
}

// Pending returns the number of queued tasks
func (s *Scheduler) Pending() int {
	return s.count
}

// Capacity returns the number of free task slots
func (s *Scheduler) Capacity() int {
	return MaxTasks - s.count
}

// Fired returns the number of task firings since creation
func (s *Scheduler) Fired() uint32 {
	return s.fired
}

// Tasks returns a copy of the queued tasks in service order
func (s *Scheduler) Tasks() []Task {
	out := make([]Task, 0, s.count)
	for i := 0; i < s.count; i++ {
		out = append(out, s.ring[(s.head+i)%MaxTasks])
	}
	return out
}

func (s *Scheduler) push(t Task) {
	s.ring[(s.head+s.count)%MaxTasks] = t
	s.count++
}

func (s *Scheduler) pop() Task {
	t := s.ring[s.head]
	s.ring[s.head] = Task{}
	s.head = (s.head + 1) % MaxTasks
	s.count--
	return t
}
