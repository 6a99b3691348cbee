package interfaces

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/opd-ai/udpqueue/limits"
)

// Sender defines the transport contract used by the queue manager.
// Implementations must return promptly; a blocking Send delays every other
// queue served in the same tick.
type Sender interface {
	// Send writes payload as a single datagram to addr
	Send(payload []byte, addr net.Addr) error
}

// Recorder receives pacing events for metrics collection.
// All methods must be safe for concurrent use and must not block.
type Recorder interface {
	// PacketEnqueued is called after a packet is accepted into a queue
	PacketEnqueued()

	// PacketRejected is called when an enqueue is refused, with a short reason
	PacketRejected(reason string)

	// PacketSent is called after a successful send
	PacketSent(bytes int)

	// SendFailed is called when a transport returns an error
	SendFailed()

	// PacketsDiscarded is called when a queue is destroyed with backlog
	PacketsDiscarded(count int)

	// QueuesActive reports the number of live queues after a change
	QueuesActive(count int)

	// TickCompleted reports the wall time spent in one tick
	TickCompleted(elapsed time.Duration)
}

// ManagerConfig holds the fixed configuration of a queue manager
type ManagerConfig struct {
	// BufferCapacity is the maximum number of packets held per queue
	BufferCapacity uint32

	// PacketInterval is the target spacing between two sends of the same queue
	PacketInterval time.Duration
}

var (
	// ErrInvalidCapacity indicates a zero or oversized buffer capacity
	ErrInvalidCapacity = errors.New("buffer capacity must be between 1 and 65536")

	// ErrInvalidInterval indicates a non-positive packet interval
	ErrInvalidInterval = errors.New("packet interval must be positive")
)

// Validate checks the configuration bounds.
func (c ManagerConfig) Validate() error {
	if c.BufferCapacity == 0 || c.BufferCapacity > limits.MaxBufferCapacity {
		return fmt.Errorf("%w: got %d", ErrInvalidCapacity, c.BufferCapacity)
	}
	if c.PacketInterval <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidInterval, c.PacketInterval)
	}
	return nil
}

// NoopRecorder discards every event.
type NoopRecorder struct{}

func (NoopRecorder) PacketEnqueued()             {}
func (NoopRecorder) PacketRejected(string)       {}
func (NoopRecorder) PacketSent(int)              {}
func (NoopRecorder) SendFailed()                 {}
func (NoopRecorder) PacketsDiscarded(int)        {}
func (NoopRecorder) QueuesActive(int)            {}
func (NoopRecorder) TickCompleted(time.Duration) {}
