package queue

import (
	"github.com/opd-ai/udpqueue/interfaces"
	"github.com/opd-ai/udpqueue/limits"
)

// Option configures a Manager at creation.
type Option func(*Manager)

// WithDefaultTransport sets the transport used for packets without an
// explicit transport when the tick supplies no matching pair member.
// The caller keeps ownership of s.
func WithDefaultTransport(s interfaces.Sender) Option {
	return func(m *Manager) {
		m.defaultTransport = s
		m.ownsTransport = false
	}
}

// WithOwnedTransport is WithDefaultTransport, except the manager closes s
// on Close when s implements io.Closer.
func WithOwnedTransport(s interfaces.Sender) Option {
	return func(m *Manager) {
		m.defaultTransport = s
		m.ownsTransport = true
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r interfaces.Recorder) Option {
	return func(m *Manager) {
		if r == nil {
			r = interfaces.NoopRecorder{}
		}
		m.recorder = r
	}
}

// WithTickBudget limits how many packets a single tick may send. Zero means
// every non-empty queue is served once per tick. When the budget runs out,
// the next tick resumes at the first queue that was not served.
func WithTickBudget(n int) Option {
	return func(m *Manager) {
		if n < 0 {
			n = 0
		}
		m.tickBudget = n
	}
}

// WithIdleTickLimit removes a queue after it has been empty for n
// consecutive ticks. Zero keeps queues until DeleteQueue or Close.
func WithIdleTickLimit(n int) Option {
	return func(m *Manager) {
		if n < 0 {
			n = 0
		}
		m.idleTickLimit = n
	}
}

// WithMaxPacketSize overrides limits.MaxPacketSize for this manager.
func WithMaxPacketSize(n int) Option {
	return func(m *Manager) {
		if n <= 0 || n > limits.MaxUDPPayload {
			n = limits.MaxPacketSize
		}
		m.maxPacketSize = n
	}
}
