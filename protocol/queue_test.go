package protocol

import (
	"sync"
	"testing"
)

func TestMessageQueueDropsWhenFull(t *testing.T) {
	var q MessageQueue
	m, _ := NewMessage(0, StatusOK, nil)

	for i := 0; i < QueueLength; i++ {
		m.Header.Port = uint8(i)
		if !q.Push(&m) {
			t.Fatalf("Push %d rejected", i)
		}
	}
	if q.Push(&m) {
		t.Fatal("Push into full queue accepted")
	}
	if q.Dropped() != 1 || q.Len() != QueueLength {
		t.Errorf("Dropped=%d Len=%d", q.Dropped(), q.Len())
	}

	var out Message
	for i := 0; i < QueueLength; i++ {
		if !q.Pop(&out) || out.Header.Port != uint8(i) {
			t.Fatalf("Pop %d returned port %d", i, out.Header.Port)
		}
	}
	if q.Pop(&out) {
		t.Error("Pop from empty queue succeeded")
	}
}

func TestMessageQueueConcurrentProducer(t *testing.T) {
	var q MessageQueue
	const total = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var m Message
		for i := 0; i < total; i++ {
			m.Header.Length = uint16(i)
			for !q.Push(&m) {
			}
		}
	}()

	var out Message
	next := uint16(0)
	for next < total {
		if q.Pop(&out) {
			if out.Header.Length != next {
				t.Fatalf("Out of order: got %d want %d", out.Header.Length, next)
			}
			next++
		}
	}
	wg.Wait()
	if q.Dropped() == 0 && q.Len() != 0 {
		t.Errorf("Queue not drained")
	}
}
