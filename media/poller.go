package media

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/udpqueue/pacer"
	"github.com/sirupsen/logrus"
)

// DefaultWindow is how often a Poller refills its queue. Two frames of
// lead keep the queue ahead of the pacer without adding much latency.
const DefaultWindow = 40 * time.Millisecond

// ErrPollerRunning is returned by Start on a running poller.
var ErrPollerRunning = errors.New("poller is already running")

// FrameProvider supplies encoded frames. Provide must not block; a nil
// frame with a nil error means nothing to send right now.
type FrameProvider interface {
	CanProvide() bool
	Provide() ([]byte, error)
}

// Target is the queue a Poller fills. *udpqueue.Wrapper satisfies it.
type Target interface {
	RemainingCapacity() int
	Enqueue(address string, port uint16, payload []byte) error
}

// PollerStats counts poller activity.
type PollerStats struct {
	Windows uint64
	Frames  uint64
	Dropped uint64
	Errors  uint64
	Resyncs uint64
}

// Poller keeps one stream's queue topped up with packetized frames.
//
// Every window it enqueues up to the queue's remaining capacity. Windows are
// scheduled against absolute deadlines; when the poller falls more than
// half a window behind it restarts its schedule from the current time.
type Poller struct {
	target     Target
	provider   FrameProvider
	packetizer *Packetizer
	address    string
	port       uint16
	window     time.Duration
	clock      pacer.TimeProvider

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool

	windows atomic.Uint64
	frames  atomic.Uint64
	dropped atomic.Uint64
	errs    atomic.Uint64
	resyncs atomic.Uint64
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithWindow sets the refill window.
func WithWindow(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.window = d
		}
	}
}

// WithClock injects the time source.
func WithClock(tp pacer.TimeProvider) PollerOption {
	return func(p *Poller) {
		if tp != nil {
			p.clock = tp
		}
	}
}

// NewPoller creates a poller that sends provider's frames, packetized by
// packetizer, to address:port through target.
func NewPoller(target Target, provider FrameProvider, packetizer *Packetizer, address string, port uint16, opts ...PollerOption) (*Poller, error) {
	if target == nil {
		return nil, fmt.Errorf("poller target cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("frame provider cannot be nil")
	}
	if packetizer == nil {
		return nil, fmt.Errorf("packetizer cannot be nil")
	}

	p := &Poller{
		target:     target,
		provider:   provider,
		packetizer: packetizer,
		address:    address,
		port:       port,
		window:     DefaultWindow,
		clock:      pacer.RealTimeProvider{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Start begins polling in a new goroutine. The poller stops when ctx is
// cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running.CompareAndSwap(false, true) {
		return ErrPollerRunning
	}

	if p.cancel != nil {
		// The previous run ended with its parent context; release it.
		p.cancel()
		<-p.done
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	logrus.WithFields(logrus.Fields{
		"function": "Poller.Start",
		"address":  p.address,
		"port":     p.port,
		"ssrc":     p.packetizer.SSRC(),
		"window":   p.window,
	}).Info("Frame poller started")

	go p.run(ctx, p.done)
	return nil
}

// Stop ends polling and waits for the goroutine to exit. Stopping a poller
// that is not running does nothing.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the poller goroutine is active.
func (p *Poller) Running() bool {
	return p.running.Load()
}

// Stats returns a snapshot of the poller counters.
func (p *Poller) Stats() PollerStats {
	return PollerStats{
		Windows: p.windows.Load(),
		Frames:  p.frames.Load(),
		Dropped: p.dropped.Load(),
		Errors:  p.errs.Load(),
		Resyncs: p.resyncs.Load(),
	}
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer p.running.Store(false)

	last := p.clock.Now()
	slip := p.window + p.window/2

	for {
		p.fill()

		if wait := p.window - p.clock.Now().Sub(last); wait > 0 {
			select {
			case <-ctx.Done():
				p.logStopped()
				return
			case <-p.clock.After(wait):
			}
		} else if ctx.Err() != nil {
			p.logStopped()
			return
		}

		if now := p.clock.Now(); now.Before(last.Add(slip)) {
			last = last.Add(p.window)
		} else {
			p.resyncs.Add(1)
			last = now
		}
	}
}

// fill enqueues frames until the target is full or the provider runs dry.
func (p *Poller) fill() {
	p.windows.Add(1)

	remaining := p.target.RemainingCapacity()
	for i := 0; i < remaining; i++ {
		if !p.provider.CanProvide() {
			return
		}

		frame, err := p.provider.Provide()
		if err != nil {
			p.errs.Add(1)
			logrus.WithFields(logrus.Fields{
				"function": "Poller.fill",
				"error":    err.Error(),
			}).Debug("Frame provider failed")
			return
		}
		if len(frame) == 0 {
			continue
		}

		packet, err := p.packetizer.Packetize(frame)
		if err != nil {
			p.errs.Add(1)
			continue
		}

		if err := p.target.Enqueue(p.address, p.port, packet); err != nil {
			p.dropped.Add(1)
			logrus.WithFields(logrus.Fields{
				"function": "Poller.fill",
				"error":    err.Error(),
			}).Debug("Packet not queued")
			return
		}
		p.frames.Add(1)
	}
}

func (p *Poller) logStopped() {
	stats := p.Stats()
	logrus.WithFields(logrus.Fields{
		"function": "Poller.run",
		"ssrc":     p.packetizer.SSRC(),
		"windows":  stats.Windows,
		"frames":   stats.Frames,
		"dropped":  stats.Dropped,
	}).Info("Frame poller stopped")
}
