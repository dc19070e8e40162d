package websocket

import "sync"

// outboundQueue is the bounded per-connection FIFO that isolates producers
// from a slow consumer. When full, the oldest frame is evicted to admit the
// new one; a push never blocks.
//
// Eviction happens only at push time. A concurrent drain observes whatever
// is present when it runs: with capacity 3 and pushes A,B,C,D before any
// drain, the drain sees B,C,D.
type outboundQueue struct {
	mu       sync.Mutex
	frames   [][]byte
	head     int
	size     int
	capacity int
}

func newOutboundQueue(capacity int) *outboundQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &outboundQueue{
		frames:   make([][]byte, capacity),
		capacity: capacity,
	}
}

// push appends a frame, evicting the oldest one if the queue is full.
// Reports whether an eviction happened.
func (q *outboundQueue) push(frame []byte) (evicted bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == q.capacity {
		q.frames[q.head] = nil
		q.head = (q.head + 1) % q.capacity
		q.size--
		evicted = true
	}

	q.frames[(q.head+q.size)%q.capacity] = frame
	q.size++
	return evicted
}

// pop removes and returns the oldest frame, or (nil, false) when empty.
func (q *outboundQueue) pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return nil, false
	}
	frame := q.frames[q.head]
	q.frames[q.head] = nil
	q.head = (q.head + 1) % q.capacity
	q.size--
	return frame, true
}

func (q *outboundQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}
