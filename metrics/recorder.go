package metrics

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/opd-ai/udpqueue/interfaces"
	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "udpqueue"

// Recorder exports pacing events as Prometheus metrics. It implements
// interfaces.Recorder and is safe for concurrent use.
type Recorder struct {
	enqueued   prometheus.Counter
	rejected   *prometheus.CounterVec
	sent       prometheus.Counter
	sentBytes  prometheus.Counter
	failures   prometheus.Counter
	discarded  prometheus.Counter
	active     prometheus.Gauge
	tickLength prometheus.Histogram
}

var _ interfaces.Recorder = (*Recorder)(nil)

// NewRecorder creates the pacing metrics under namespace and registers them
// with reg. A nil reg leaves the metrics unregistered, which is useful when
// the caller collects them some other way.
//
// Registering a second Recorder with the same namespace on the same
// registry reuses the existing collectors.
func NewRecorder(reg prometheus.Registerer, namespace string) (*Recorder, error) {
	r := &Recorder{
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_enqueued_total",
			Help:      "Count of packets accepted into a queue.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_rejected_total",
			Help:      "Count of packets refused, by reason. no_transport counts packets dropped at tick for lack of a transport.",
		}, []string{"reason"}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_sent_total",
			Help:      "Count of packets handed to a transport successfully.",
		}),
		sentBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sent_bytes_total",
			Help:      "Payload bytes handed to a transport successfully.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "send_failures_total",
			Help:      "Count of packets dropped because the transport send failed.",
		}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_discarded_total",
			Help:      "Count of queued packets dropped by queue deletion or manager close.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queues_active",
			Help:      "Number of live per-key queues.",
		}),
		tickLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one pacing cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
	}

	if reg == nil {
		return r, nil
	}

	var err error
	if r.enqueued, err = register(reg, r.enqueued); err != nil {
		return nil, err
	}
	if r.rejected, err = register(reg, r.rejected); err != nil {
		return nil, err
	}
	if r.sent, err = register(reg, r.sent); err != nil {
		return nil, err
	}
	if r.sentBytes, err = register(reg, r.sentBytes); err != nil {
		return nil, err
	}
	if r.failures, err = register(reg, r.failures); err != nil {
		return nil, err
	}
	if r.discarded, err = register(reg, r.discarded); err != nil {
		return nil, err
	}
	if r.active, err = register(reg, r.active); err != nil {
		return nil, err
	}
	if r.tickLength, err = register(reg, r.tickLength); err != nil {
		return nil, err
	}
	return r, nil
}

// register adds c to reg, returning the already registered collector when
// an identical one exists.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("register metric: %w", err)
}

// PacketEnqueued counts an accepted packet.
func (r *Recorder) PacketEnqueued() {
	r.enqueued.Inc()
}

// PacketRejected counts a refused enqueue under its reason label.
func (r *Recorder) PacketRejected(reason string) {
	r.rejected.WithLabelValues(reason).Inc()
}

// PacketSent counts a sent datagram and its payload bytes.
func (r *Recorder) PacketSent(bytes int) {
	r.sent.Inc()
	r.sentBytes.Add(float64(bytes))
}

// SendFailed counts a transport send error.
func (r *Recorder) SendFailed() {
	r.failures.Inc()
}

// PacketsDiscarded counts packets dropped with a destroyed queue.
func (r *Recorder) PacketsDiscarded(count int) {
	r.discarded.Add(float64(count))
}

// QueuesActive sets the live queue gauge. Managers sharing one Recorder
// should each report through their own Scope instead.
func (r *Recorder) QueuesActive(count int) {
	r.active.Set(float64(count))
}

// TickCompleted observes the duration of one pacing cycle.
func (r *Recorder) TickCompleted(elapsed time.Duration) {
	r.tickLength.Observe(elapsed.Seconds())
}

// Scope returns a Recorder view for one of several managers sharing r.
// Its QueuesActive adjusts the shared gauge by the change since its last
// report, so the gauge holds the sum across scopes.
func (r *Recorder) Scope() interfaces.Recorder {
	return &scopedRecorder{Recorder: r}
}

type scopedRecorder struct {
	*Recorder
	last atomic.Int64
}

// QueuesActive applies the change since this scope's last report.
func (s *scopedRecorder) QueuesActive(count int) {
	prev := s.last.Swap(int64(count))
	s.active.Add(float64(int64(count) - prev))
}
