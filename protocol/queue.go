package protocol

import "sync/atomic"

// QueueLength is the capacity of a MessageQueue
const QueueLength = 16

// MessageQueue is a bounded single-producer single-consumer queue of
// messages. The producer (a link receive path) and the consumer (the tick
// loop) may run concurrently; each side only writes its own index.
// A full queue rejects new messages and counts them as dropped.
type MessageQueue struct {
	head    atomic.Uint32 // next slot to read, written by the consumer
	tail    atomic.Uint32 // next slot to write, written by the producer
	dropped atomic.Uint32
	slots   [QueueLength]Message
}

// Push copies m into the queue. It returns false and counts a drop when
// the queue is full.
func (q *MessageQueue) Push(m *Message) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() >= QueueLength {
		q.dropped.Add(1)
		return false
	}
	q.slots[tail%QueueLength] = *m
	q.tail.Store(tail + 1)
	return true
}

// Pop removes the oldest message into m. It returns false when empty.
func (q *MessageQueue) Pop(m *Message) bool {
	head := q.head.Load()
	if head == q.tail.Load() {
		return false
	}
	*m = q.slots[head%QueueLength]
	q.head.Store(head + 1)
	return true
}

// Len returns the number of queued messages
func (q *MessageQueue) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Dropped returns the number of messages rejected because the queue was full
func (q *MessageQueue) Dropped() uint32 {
	return q.dropped.Load()
}
