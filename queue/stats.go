package queue

import "sync/atomic"

// counters are updated lock-free from producers and the tick.
type counters struct {
	enqueued    atomic.Uint64
	rejected    atomic.Uint64
	sent        atomic.Uint64
	bytesSent   atomic.Uint64
	failed      atomic.Uint64
	noTransport atomic.Uint64
	discarded   atomic.Uint64
	ticks       atomic.Uint64
}

// Stats is a point-in-time view of a manager's counters.
type Stats struct {
	ActiveQueues int
	Enqueued     uint64
	Rejected     uint64
	Sent         uint64
	BytesSent    uint64
	Failed       uint64
	NoTransport  uint64
	Discarded    uint64
	Ticks        uint64
}

// Stats returns a snapshot of the manager's counters. Counters keep their
// values after Close.
func (m *Manager) Stats() Stats {
	return Stats{
		ActiveQueues: m.Len(),
		Enqueued:     m.stats.enqueued.Load(),
		Rejected:     m.stats.rejected.Load(),
		Sent:         m.stats.sent.Load(),
		BytesSent:    m.stats.bytesSent.Load(),
		Failed:       m.stats.failed.Load(),
		NoTransport:  m.stats.noTransport.Load(),
		Discarded:    m.stats.discarded.Load(),
		Ticks:        m.stats.ticks.Load(),
	}
}
