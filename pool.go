package udpqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/udpqueue/interfaces"
	"github.com/opd-ai/udpqueue/media"
	"github.com/opd-ai/udpqueue/pacer"
	"github.com/opd-ai/udpqueue/queue"
	"github.com/sirupsen/logrus"
)

// scoper is implemented by recorders that can hand out per-manager views.
type scoper interface {
	Scope() interfaces.Recorder
}

// Pool spreads keys over several queue managers, each ticked by its own
// pacer goroutine. Keys map to managers by key modulo pool size.
type Pool struct {
	options  Options
	managers []*queue.Manager
	drivers  []*pacer.Driver

	keySeq atomic.Uint64
	closed atomic.Bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates the managers and starts their pacers. A nil options uses
// NewOptions, which still needs a Transport.
func NewPool(options *Options) (*Pool, error) {
	if options == nil {
		options = NewOptions()
	}
	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	p := &Pool{
		options:  *options,
		managers: make([]*queue.Manager, 0, options.PoolSize),
		drivers:  make([]*pacer.Driver, 0, options.PoolSize),
	}

	cfg := interfaces.ManagerConfig{
		BufferCapacity: options.Capacity(),
		PacketInterval: options.FrameDuration,
	}

	for i := 0; i < options.PoolSize; i++ {
		m, err := queue.NewManager(cfg, p.managerOptions()...)
		if err != nil {
			p.closeManagers()
			return nil, fmt.Errorf("create pool manager %d: %w", i, err)
		}

		driverOpts := []pacer.Option{
			pacer.WithName(fmt.Sprintf("udpqueue-%d", i)),
			pacer.WithTimeProvider(options.TimeProvider),
		}
		if options.Pair != nil {
			driverOpts = append(driverOpts, pacer.WithTransportPair(options.Pair))
		}
		d, err := pacer.New(m, options.FrameDuration, driverOpts...)
		if err != nil {
			_ = m.Close()
			p.closeManagers()
			return nil, fmt.Errorf("create pool pacer %d: %w", i, err)
		}

		p.managers = append(p.managers, m)
		p.drivers = append(p.drivers, d)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	for _, d := range p.drivers {
		p.wg.Add(1)
		go p.drive(ctx, d)
	}

	logrus.WithFields(logrus.Fields{
		"function":        "NewPool",
		"pool_size":       options.PoolSize,
		"capacity":        cfg.BufferCapacity,
		"frame_duration":  options.FrameDuration,
		"buffer_duration": options.BufferDuration,
	}).Info("Queue manager pool started")

	return p, nil
}

func (p *Pool) managerOptions() []queue.Option {
	opts := []queue.Option{
		queue.WithMaxPacketSize(p.options.MaxPacketSize),
		queue.WithTickBudget(p.options.TickBudget),
		queue.WithIdleTickLimit(p.options.IdleTickLimit),
	}
	if p.options.Transport != nil {
		opts = append(opts, queue.WithDefaultTransport(p.options.Transport))
	}
	if r := p.options.Recorder; r != nil {
		if s, ok := r.(scoper); ok {
			r = s.Scope()
		}
		opts = append(opts, queue.WithRecorder(r))
	}
	return opts
}

func (p *Pool) drive(ctx context.Context, d *pacer.Driver) {
	defer p.wg.Done()
	if err := d.Run(ctx); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Pool.drive",
			"error":    err.Error(),
		}).Error("Pacer stopped with error")
	}
}

// Size returns the number of managers.
func (p *Pool) Size() int {
	return len(p.managers)
}

// Capacity returns the per-key queue capacity.
func (p *Pool) Capacity() int {
	return int(p.options.Capacity())
}

// NextWrapper returns a wrapper for a fresh key from the pool's sequence.
func (p *Pool) NextWrapper() *Wrapper {
	return p.WrapperForKey(p.keySeq.Add(1) - 1)
}

// WrapperForKey returns the wrapper binding key to its manager.
func (p *Pool) WrapperForKey(key uint64) *Wrapper {
	return &Wrapper{
		key:     key,
		manager: p.managers[key%uint64(len(p.managers))],
	}
}

// NewPoller creates a frame poller feeding provider's frames to
// address:port through a fresh wrapper. Frames are packetized as Opus RTP
// with the pool's frame duration.
func (p *Pool) NewPoller(provider media.FrameProvider, address string, port uint16, opts ...media.PollerOption) (*media.Poller, *Wrapper, error) {
	packetizer, err := media.NewPacketizer(media.WithFrameDuration(p.options.FrameDuration, media.OpusClockRate))
	if err != nil {
		return nil, nil, err
	}

	w := p.NextWrapper()
	opts = append([]media.PollerOption{
		media.WithWindow(2 * p.options.FrameDuration),
		media.WithClock(p.options.TimeProvider),
	}, opts...)

	poller, err := media.NewPoller(w, provider, packetizer, address, port, opts...)
	if err != nil {
		return nil, nil, err
	}
	return poller, w, nil
}

// Stats sums the statistics of every manager.
func (p *Pool) Stats() queue.Stats {
	var total queue.Stats
	for _, m := range p.managers {
		s := m.Stats()
		total.ActiveQueues += s.ActiveQueues
		total.Enqueued += s.Enqueued
		total.Rejected += s.Rejected
		total.Sent += s.Sent
		total.BytesSent += s.BytesSent
		total.Failed += s.Failed
		total.NoTransport += s.NoTransport
		total.Discarded += s.Discarded
		total.Ticks += s.Ticks
	}
	return total
}

// IsClosed reports whether Close has been called.
func (p *Pool) IsClosed() bool {
	return p.closed.Load()
}

// Close stops every pacer and closes every manager, discarding queued
// packets. It is safe to call more than once.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	p.cancel()
	p.wg.Wait()
	err := p.closeManagers()

	logrus.WithFields(logrus.Fields{
		"function":  "Pool.Close",
		"pool_size": len(p.managers),
	}).Info("Queue manager pool closed")

	return err
}

func (p *Pool) closeManagers() error {
	var errs []error
	for _, m := range p.managers {
		if m.IsClosed() {
			continue
		}
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wrapper binds one key to the manager that owns it.
type Wrapper struct {
	key     uint64
	manager *queue.Manager
}

var _ media.Target = (*Wrapper)(nil)

// Key returns the wrapped key.
func (w *Wrapper) Key() uint64 {
	return w.key
}

// RemainingCapacity returns how many more packets the key can queue. It is
// zero once the pool is closed.
func (w *Wrapper) RemainingCapacity() int {
	remaining, err := w.manager.RemainingCapacity(w.key)
	if err != nil {
		return 0
	}
	return remaining
}

// Enqueue queues payload for address:port under the wrapper's key.
func (w *Wrapper) Enqueue(address string, port uint16, payload []byte) error {
	return w.manager.Enqueue(w.key, address, port, payload, nil)
}

// Delete drops the key's queue and its backlog. It reports whether a queue
// existed.
func (w *Wrapper) Delete() bool {
	existed, err := w.manager.DeleteQueue(w.key)
	return err == nil && existed
}
