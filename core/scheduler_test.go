package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recorder struct {
	fired []Task
}

func (r *recorder) DispatchTask(t Task) {
	r.fired = append(r.fired, t)
}

func TestSchedulerOneShot(t *testing.T) {
	s := NewScheduler()
	s.Init(0)
	rec := &recorder{}

	if _, err := s.QueueTask(TaskQueryTimeout, 3, 100, true); err != nil {
		t.Fatalf("QueueTask failed: %v", err)
	}

	s.Poll(50, rec)
	if len(rec.fired) != 0 {
		t.Fatalf("Task fired early")
	}

	s.Poll(100, rec)
	if len(rec.fired) != 1 {
		t.Fatalf("Expected 1 firing, got %d", len(rec.fired))
	}
	if rec.fired[0].Kind != TaskQueryTimeout || rec.fired[0].Arg != 3 {
		t.Errorf("Unexpected task %+v", rec.fired[0])
	}
	if s.Pending() != 0 {
		t.Errorf("One-shot task not retired, %d pending", s.Pending())
	}
}

func TestSchedulerAutoReloadDropsOvershoot(t *testing.T) {
	s := NewScheduler()
	s.Init(0)
	rec := &recorder{}

	s.QueueTask(TaskNetworkPoll, 0, 100, false)

	// A late poll fires once, not three times
	s.Poll(350, rec)
	if len(rec.fired) != 1 {
		t.Fatalf("Expected 1 firing, got %d", len(rec.fired))
	}

	// Elapsed restarted at zero, so the next firing is a full period later
	s.Poll(440, rec)
	if len(rec.fired) != 1 {
		t.Errorf("Task fired before a full period elapsed")
	}
	s.Poll(450, rec)
	if len(rec.fired) != 2 {
		t.Errorf("Expected 2 firings, got %d", len(rec.fired))
	}
	if s.Pending() != 1 {
		t.Errorf("Auto-reload task should stay queued")
	}
}

func TestSchedulerFIFOOrder(t *testing.T) {
	s := NewScheduler()
	s.Init(0)
	rec := &recorder{}

	for i := uint32(0); i < 5; i++ {
		s.QueueTask(TaskStatusReport, i, 10, true)
	}
	s.Poll(10, rec)

	if len(rec.fired) != 5 {
		t.Fatalf("Expected 5 firings, got %d", len(rec.fired))
	}
	for i, task := range rec.fired {
		if task.Arg != uint32(i) {
			t.Errorf("Firing %d has arg %d", i, task.Arg)
		}
	}
}

func TestSchedulerCapacity(t *testing.T) {
	s := NewScheduler()
	for i := 0; i < MaxTasks; i++ {
		if _, err := s.QueueTask(TaskNetworkPoll, uint32(i), 1000, false); err != nil {
			t.Fatalf("QueueTask %d failed: %v", i, err)
		}
	}

	_, err := s.QueueTask(TaskNetworkPoll, 99, 1000, false)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("Expected ErrCapacityExceeded, got %v", err)
	}
	if s.Pending() != MaxTasks || s.Capacity() != 0 {
		t.Errorf("Pending=%d Capacity=%d", s.Pending(), s.Capacity())
	}
	for i, task := range s.Tasks() {
		if task.Arg != uint32(i) {
			t.Errorf("Existing task %d modified: %+v", i, task)
		}
	}
}

func TestSchedulerTaskQueuedFromCallbackWaitsForNextPass(t *testing.T) {
	s := NewScheduler()
	s.Init(0)

	var kinds []TaskKind
	d := DispatchFunc(func(task Task) {
		kinds = append(kinds, task.Kind)
		if task.Kind == TaskQueryTimeout {
			// Period zero would fire immediately if serviced in the same pass
			s.QueueTask(TaskErrorRecover, 0, 0, true)
		}
	})

	s.QueueTask(TaskQueryTimeout, 0, 10, true)
	s.Poll(10, d)
	if len(kinds) != 1 {
		t.Fatalf("Expected only the original task to fire, got %v", kinds)
	}

	s.Poll(11, d)
	if len(kinds) != 2 || kinds[1] != TaskErrorRecover {
		t.Errorf("Expected the queued task on the next pass, got %v", kinds)
	}
}

func TestSchedulerWrappingTime(t *testing.T) {
	s := NewScheduler()
	start := Microseconds(0xFFFFFF00)
	s.Init(start)
	rec := &recorder{}

	s.QueueTask(TaskNetworkPoll, 0, 0x200, true)
	s.Poll(start+0x100, rec)
	if len(rec.fired) != 0 {
		t.Fatalf("Task fired early")
	}
	// now wraps past zero
	s.Poll(start+0x200, rec)
	if len(rec.fired) != 1 {
		t.Errorf("Expected firing across wraparound, got %d", len(rec.fired))
	}
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	s := NewScheduler()
	clock := NewManualClock(0)
	ctx, cancel := context.WithCancel(context.Background())

	var count int
	s.QueueTask(TaskNetworkPoll, 0, 0, false)
	d := DispatchFunc(func(Task) {
		count++
		if count == 3 {
			cancel()
		}
	})

	err := s.Run(ctx, clock, d, time.Microsecond)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 firings, got %d", count)
	}
}
