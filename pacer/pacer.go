package pacer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/opd-ai/udpqueue/queue"
	"github.com/opd-ai/udpqueue/transport"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyRunning is returned when Run is called on a running driver.
var ErrAlreadyRunning = errors.New("pacer is already running")

// Target is what a driver ticks. *queue.Manager satisfies it.
type Target interface {
	Tick(pair *transport.Pair) (queue.TickReport, error)
}

// Driver calls Tick on its target once per interval.
//
// Ticks are scheduled against absolute deadlines, so scheduling jitter in
// one cycle is absorbed by the next instead of accumulating. When the loop
// falls behind by more than a full interval (a stalled process, a slow
// send), it resynchronizes to the current time rather than firing a burst
// of catch-up ticks.
type Driver struct {
	target   Target
	interval time.Duration
	pair     *transport.Pair
	clock    TimeProvider
	name     string

	running atomic.Bool
	ticks   atomic.Uint64
	resyncs atomic.Uint64
}

// Option configures a Driver.
type Option func(*Driver)

// WithTransportPair makes every tick use pair for family based selection.
func WithTransportPair(pair *transport.Pair) Option {
	return func(d *Driver) {
		d.pair = pair
	}
}

// WithTimeProvider injects a clock.
func WithTimeProvider(tp TimeProvider) Option {
	return func(d *Driver) {
		if tp != nil {
			d.clock = tp
		}
	}
}

// WithName labels the driver in log output.
func WithName(name string) Option {
	return func(d *Driver) {
		d.name = name
	}
}

// New creates a driver for target. interval must be positive.
func New(target Target, interval time.Duration, opts ...Option) (*Driver, error) {
	if target == nil {
		return nil, fmt.Errorf("pacer target cannot be nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("pacer interval must be positive, got %v", interval)
	}

	d := &Driver{
		target:   target,
		interval: interval,
		clock:    RealTimeProvider{},
		name:     "pacer",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run ticks the target until ctx is cancelled or the target is closed,
// in which case it returns nil. Any other tick error stops the driver and
// is returned.
func (d *Driver) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer d.running.Store(false)

	logrus.WithFields(logrus.Fields{
		"function": "Driver.Run",
		"name":     d.name,
		"interval": d.interval,
	}).Info("Pacer started")

	err := d.loop(ctx)

	logrus.WithFields(logrus.Fields{
		"function": "Driver.Run",
		"name":     d.name,
		"ticks":    d.ticks.Load(),
		"resyncs":  d.resyncs.Load(),
	}).Info("Pacer stopped")

	return err
}

func (d *Driver) loop(ctx context.Context) error {
	next := d.clock.Now()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := d.target.Tick(d.pair); err != nil {
			if errors.Is(err, queue.ErrManagerClosed) {
				return nil
			}
			return fmt.Errorf("pacer tick: %w", err)
		}
		d.ticks.Add(1)

		next = next.Add(d.interval)
		now := d.clock.Now()

		if now.Sub(next) > d.interval {
			d.resyncs.Add(1)
			logrus.WithFields(logrus.Fields{
				"function": "Driver.Run",
				"name":     d.name,
				"behind":   now.Sub(next),
			}).Warn("Pacer fell behind, resynchronizing")
			next = now
		}

		wait := next.Sub(now)
		if wait <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-d.clock.After(wait):
		}
	}
}

// Running reports whether Run is active.
func (d *Driver) Running() bool {
	return d.running.Load()
}

// Ticks returns the number of completed ticks.
func (d *Driver) Ticks() uint64 {
	return d.ticks.Load()
}

// Resyncs returns how many times the driver dropped its schedule to catch up.
func (d *Driver) Resyncs() uint64 {
	return d.resyncs.Load()
}

// Interval returns the tick interval.
func (d *Driver) Interval() time.Duration {
	return d.interval
}
