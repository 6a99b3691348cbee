package udpqueue

import (
	"fmt"
	"runtime"
	"time"

	"github.com/opd-ai/udpqueue/interfaces"
	"github.com/opd-ai/udpqueue/limits"
	"github.com/opd-ai/udpqueue/pacer"
	"github.com/opd-ai/udpqueue/transport"
)

// Options configures a Pool.
type Options struct {
	// BufferDuration is how much audio each key may have queued.
	BufferDuration time.Duration
	// FrameDuration is the tick interval, one packet per key per tick.
	FrameDuration time.Duration
	// PoolSize is the number of managers, each with its own pacer goroutine.
	PoolSize int
	// MaxPacketSize bounds a single payload.
	MaxPacketSize int
	// TickBudget caps sends per manager tick; zero means unlimited.
	TickBudget int
	// IdleTickLimit reaps a queue after this many consecutive empty ticks;
	// zero keeps idle queues until deleted.
	IdleTickLimit int

	// Transport is the default sender of every manager. The pool does not
	// close it.
	Transport interfaces.Sender
	// Pair, when set, routes destinations by address family ahead of
	// Transport.
	Pair *transport.Pair
	// Recorder receives pacing events of all managers. A Recorder with a
	// Scope method is scoped per manager.
	Recorder interfaces.Recorder
	// TimeProvider drives the pacers and pollers; nil uses the system clock.
	TimeProvider pacer.TimeProvider
}

// NewOptions returns options with production defaults: a 400ms buffer of
// 20ms frames on twice as many managers as CPUs.
func NewOptions() *Options {
	return &Options{
		BufferDuration: limits.DefaultBufferDuration,
		FrameDuration:  limits.FrameDuration,
		PoolSize:       2 * runtime.NumCPU(),
		MaxPacketSize:  limits.MaxPacketSize,
	}
}

// Capacity returns the per-key queue capacity implied by the durations.
func (o *Options) Capacity() uint32 {
	return limits.CapacityForDuration(o.BufferDuration, o.FrameDuration)
}

func (o *Options) validate() error {
	if o.FrameDuration <= 0 {
		return fmt.Errorf("frame duration must be positive, got %v", o.FrameDuration)
	}
	if o.BufferDuration < o.FrameDuration {
		return fmt.Errorf("buffer duration %v shorter than frame duration %v", o.BufferDuration, o.FrameDuration)
	}
	if o.PoolSize <= 0 {
		return fmt.Errorf("pool size must be positive, got %d", o.PoolSize)
	}
	if o.MaxPacketSize <= 0 || o.MaxPacketSize > limits.MaxUDPPayload {
		return fmt.Errorf("max packet size %d outside (0, %d]", o.MaxPacketSize, limits.MaxUDPPayload)
	}
	if o.TickBudget < 0 || o.IdleTickLimit < 0 {
		return fmt.Errorf("tick budget and idle tick limit cannot be negative")
	}
	if o.Transport == nil && (o.Pair == nil || (o.Pair.IPv4 == nil && o.Pair.IPv6 == nil)) {
		return fmt.Errorf("pool requires a transport")
	}
	return nil
}
