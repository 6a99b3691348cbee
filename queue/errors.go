package queue

import "errors"

var (
	// ErrQueueFull is returned by Enqueue when the key's queue is at capacity.
	// The packet is not queued; the caller decides whether to drop it, wait,
	// or delete the queue to drop the backlog instead.
	ErrQueueFull = errors.New("queue full")

	// ErrManagerClosed is returned by every operation after Close.
	ErrManagerClosed = errors.New("queue manager closed")
)
