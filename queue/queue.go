package queue

import "sync"

// pushResult distinguishes a full queue from one destroyed concurrently.
type pushResult int

const (
	pushed pushResult = iota
	pushFull
	pushGone
)

// Queue is a bounded FIFO of packets for one key. It owns its lock, so
// producers of one key never contend with producers of another, and the
// draining tick only contends with producers of the same key.
type Queue struct {
	mu        sync.Mutex
	buf       []*Packet
	head      int
	size      int
	destroyed bool

	// idleTicks is only touched by the manager's tick, which is serialized.
	idleTicks int
}

// NewQueue creates an empty queue holding at most capacity packets.
func NewQueue(capacity uint32) *Queue {
	if capacity == 0 {
		capacity = 1
	}
	return &Queue{
		buf: make([]*Packet, capacity),
	}
}

// Push appends p. It returns false if the queue is full or destroyed; the
// queue is never modified in that case.
func (q *Queue) Push(p *Packet) bool {
	return q.push(p) == pushed
}

func (q *Queue) push(p *Packet) pushResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.destroyed {
		return pushGone
	}
	if q.size == len(q.buf) {
		return pushFull
	}

	q.buf[(q.head+q.size)%len(q.buf)] = p
	q.size++
	return pushed
}

// PopFront removes and returns the head packet.
func (q *Queue) PopFront() (*Packet, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.destroyed || q.size == 0 {
		return nil, false
	}

	p := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return p, true
}

// Len returns the number of queued packets.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Capacity returns the maximum number of packets the queue holds.
func (q *Queue) Capacity() int {
	return len(q.buf)
}

// Remaining returns the number of free slots.
func (q *Queue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.destroyed {
		return 0
	}
	return len(q.buf) - q.size
}

// destroy discards the backlog and makes every later push or pop fail.
// It returns the number of packets discarded.
func (q *Queue) destroy() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.destroyed {
		return 0
	}
	discarded := q.size
	for i := range q.buf {
		q.buf[i] = nil
	}
	q.size = 0
	q.destroyed = true
	return discarded
}

// destroyIfEmpty destroys the queue only when nothing is buffered.
func (q *Queue) destroyIfEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.destroyed || q.size != 0 {
		return false
	}
	q.destroyed = true
	return true
}
