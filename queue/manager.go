package queue

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/udpqueue/interfaces"
	"github.com/opd-ai/udpqueue/limits"
	"github.com/opd-ai/udpqueue/transport"
	"github.com/sirupsen/logrus"
)

// Rejection reasons reported to the Recorder.
const (
	RejectFull        = "full"
	RejectClosed      = "closed"
	RejectInvalid     = "invalid"
	RejectNoTransport = "no_transport"
)

// Manager owns the key to queue mapping and paces sends across all queues.
//
// Producers call Enqueue from any goroutine. A driver calls Tick once per
// packet interval; each tick sends at most one packet per queue, serving
// queues in round-robin order.
type Manager struct {
	capacity      uint32
	interval      time.Duration
	maxPacketSize int
	tickBudget    int
	idleTickLimit int

	defaultTransport interfaces.Sender
	ownsTransport    bool
	recorder         interfaces.Recorder

	// mu guards the mapping and order. It is never held across a send.
	mu     sync.RWMutex
	queues map[uint64]*Queue
	order  []uint64
	closed atomic.Bool

	// tickMu serializes ticks and guards the round-robin cursor.
	tickMu    sync.Mutex
	resumeKey uint64
	hasResume bool

	stats counters
}

// TickReport summarizes one tick.
type TickReport struct {
	Queues      int
	Sent        int
	Failed      int
	NoTransport int
	Reaped      int
	Elapsed     time.Duration
}

// entry is a queue captured in a tick snapshot.
type entry struct {
	key   uint64
	queue *Queue
}

// NewManager creates a manager with the given geometry. No queues exist
// until the first Enqueue.
func NewManager(cfg interfaces.ManagerConfig, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":        "NewManager",
			"buffer_capacity": cfg.BufferCapacity,
			"packet_interval": cfg.PacketInterval,
			"error":           err.Error(),
		}).Error("Invalid queue manager configuration")
		return nil, fmt.Errorf("create queue manager: %w", err)
	}

	m := &Manager{
		capacity:      cfg.BufferCapacity,
		interval:      cfg.PacketInterval,
		maxPacketSize: limits.MaxPacketSize,
		recorder:      interfaces.NoopRecorder{},
		queues:        make(map[uint64]*Queue),
	}
	for _, opt := range opts {
		opt(m)
	}

	logrus.WithFields(logrus.Fields{
		"function":          "NewManager",
		"buffer_capacity":   m.capacity,
		"packet_interval":   m.interval,
		"tick_budget":       m.tickBudget,
		"idle_tick_limit":   m.idleTickLimit,
		"default_transport": m.defaultTransport != nil,
	}).Info("Created queue manager")

	return m, nil
}

// Capacity returns the per-queue packet capacity.
func (m *Manager) Capacity() int {
	return int(m.capacity)
}

// Interval returns the configured packet interval.
func (m *Manager) Interval() time.Duration {
	return m.interval
}

// IsClosed reports whether Close has been called.
func (m *Manager) IsClosed() bool {
	return m.closed.Load()
}

// Len returns the number of live queues.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.queues)
}

// RemainingCapacity returns the number of free slots in the queue for key.
// A key without a queue reports the full capacity.
func (m *Manager) RemainingCapacity(key uint64) (int, error) {
	if m.closed.Load() {
		return 0, ErrManagerClosed
	}

	m.mu.RLock()
	q, exists := m.queues[key]
	m.mu.RUnlock()

	if !exists {
		return int(m.capacity), nil
	}
	return q.Remaining(), nil
}

// Enqueue copies payload into a new packet for address:port and appends it
// to the queue for key, creating the queue if needed.
//
// It returns ErrQueueFull when the queue is at capacity and
// ErrManagerClosed after Close. explicit, when non-nil, overrides transport
// selection for this packet.
func (m *Manager) Enqueue(key uint64, address string, port uint16, payload []byte, explicit interfaces.Sender) error {
	if m.closed.Load() {
		m.reject(RejectClosed)
		return ErrManagerClosed
	}
	if err := limits.ValidatePacketSize(payload, m.maxPacketSize); err != nil {
		m.reject(RejectInvalid)
		return err
	}
	addr, err := transport.ResolveDestination(address, port)
	if err != nil {
		m.reject(RejectInvalid)
		return err
	}

	packet := NewPacket(addr, payload, explicit)

	for {
		result, err := m.pushTo(key, packet)
		if err != nil {
			m.reject(RejectClosed)
			return err
		}

		switch result {
		case pushed:
			return nil
		case pushFull:
			m.reject(RejectFull)
			return ErrQueueFull
		case pushGone:
			// The queue was deleted or reaped after lookup; look it up again.
		}
	}
}

// pushTo appends packet to key's queue, creating the queue if absent. The
// push and its accounting happen under m.mu, so no packet is accepted once
// Close has started.
func (m *Manager) pushTo(key uint64, packet *Packet) (pushResult, error) {
	m.mu.RLock()
	if m.closed.Load() {
		m.mu.RUnlock()
		return pushGone, ErrManagerClosed
	}
	if q, exists := m.queues[key]; exists {
		result := m.pushLocked(q, packet)
		m.mu.RUnlock()
		return result, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	q, err := m.queueForLocked(key)
	if err != nil {
		return pushGone, err
	}
	return m.pushLocked(q, packet), nil
}

// pushLocked pushes packet and counts an accepted packet. Callers hold m.mu.
func (m *Manager) pushLocked(q *Queue, packet *Packet) pushResult {
	result := q.push(packet)
	if result == pushed {
		m.stats.enqueued.Add(1)
		m.recorder.PacketEnqueued()
	}
	return result
}

// queueForLocked returns the live queue for key, creating it if absent.
// Callers must hold m.mu for writing.
func (m *Manager) queueForLocked(key uint64) (*Queue, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	if q, exists := m.queues[key]; exists {
		return q, nil
	}

	q := NewQueue(m.capacity)
	m.queues[key] = q
	m.order = append(m.order, key)
	m.recorder.QueuesActive(len(m.queues))

	logrus.WithFields(logrus.Fields{
		"function":     "Manager.Enqueue",
		"key":          key,
		"total_queues": len(m.queues),
	}).Debug("Created queue")

	return q, nil
}

// DeleteQueue removes the queue for key and discards its backlog. It
// reports whether a queue existed. No flush is attempted.
func (m *Manager) DeleteQueue(key uint64) (bool, error) {
	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		return false, ErrManagerClosed
	}

	q, exists := m.queues[key]
	if !exists {
		m.mu.Unlock()
		return false, nil
	}
	m.removeLocked(key)
	m.recorder.QueuesActive(len(m.queues))
	m.mu.Unlock()

	discarded := q.destroy()
	m.discard(discarded)

	logrus.WithFields(logrus.Fields{
		"function":  "Manager.DeleteQueue",
		"key":       key,
		"discarded": discarded,
	}).Debug("Deleted queue")

	return true, nil
}

// removeLocked drops key from the mapping and the round-robin order.
// Callers must hold m.mu for writing.
func (m *Manager) removeLocked(key uint64) {
	delete(m.queues, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Tick sends at most one packet from every non-empty queue.
//
// Transport selection per packet: the packet's explicit transport if set,
// else the member of pair matching the destination's address family, else
// the manager's default transport. Pass a nil pair to use the defaults.
//
// A failed send is counted and the packet is dropped, never retried: a
// stale real-time packet is worse than a lost one. Packets for which no
// transport can be found are dropped the same way.
func (m *Manager) Tick(pair *transport.Pair) (TickReport, error) {
	var report TickReport
	if m.closed.Load() {
		return report, ErrManagerClosed
	}

	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	start := time.Now()
	snapshot := m.snapshot()
	report.Queues = len(snapshot)

	var idle []entry
	resumeSet := false

	for _, e := range snapshot {
		if m.tickBudget > 0 && report.Sent+report.Failed+report.NoTransport >= m.tickBudget {
			// Out of budget: the next tick starts with the first unserved queue.
			m.setResume(e.key)
			resumeSet = true
			break
		}

		p, ok := e.queue.PopFront()
		if !ok {
			e.queue.idleTicks++
			if m.idleTickLimit > 0 && e.queue.idleTicks >= m.idleTickLimit {
				idle = append(idle, e)
			}
			continue
		}
		e.queue.idleTicks = 0

		m.send(p, pair, &report)
	}

	if !resumeSet {
		// Rotate the starting point by one so no key is always served first.
		if len(snapshot) > 1 {
			m.setResume(snapshot[1].key)
		} else {
			m.hasResume = false
		}
	}

	if len(idle) > 0 {
		report.Reaped = m.reap(idle)
	}

	report.Elapsed = time.Since(start)
	m.stats.ticks.Add(1)
	m.recorder.TickCompleted(report.Elapsed)

	return report, nil
}

// snapshot captures the live queues in round-robin order, starting at the
// resume key when it still exists.
func (m *Manager) snapshot() []entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.order)
	if n == 0 {
		return nil
	}

	startIdx := 0
	if m.hasResume {
		for i, k := range m.order {
			if k == m.resumeKey {
				startIdx = i
				break
			}
		}
	}

	out := make([]entry, 0, n)
	for i := 0; i < n; i++ {
		key := m.order[(startIdx+i)%n]
		out = append(out, entry{key: key, queue: m.queues[key]})
	}
	return out
}

// setResume records the key the next tick starts from. Callers hold tickMu.
func (m *Manager) setResume(key uint64) {
	m.resumeKey = key
	m.hasResume = true
}

// send dispatches one packet and updates report. The packet is consumed
// whatever the outcome.
func (m *Manager) send(p *Packet, pair *transport.Pair, report *TickReport) {
	sender := m.selectTransport(p, pair)
	if sender == nil {
		report.NoTransport++
		m.stats.noTransport.Add(1)
		m.recorder.PacketRejected(RejectNoTransport)
		logrus.WithFields(logrus.Fields{
			"function": "Manager.Tick",
			"addr":     p.addr.String(),
		}).Debug("No transport for packet, dropping")
		return
	}

	if err := sender.Send(p.payload, p.addr); err != nil {
		report.Failed++
		m.stats.failed.Add(1)
		m.recorder.SendFailed()
		logrus.WithFields(logrus.Fields{
			"function": "Manager.Tick",
			"addr":     p.addr.String(),
			"size":     len(p.payload),
			"timeout":  transport.IsTimeout(err),
			"error":    err.Error(),
		}).Debug("Send failed, packet dropped")
		return
	}

	report.Sent++
	m.stats.sent.Add(1)
	m.stats.bytesSent.Add(uint64(len(p.payload)))
	m.recorder.PacketSent(len(p.payload))
}

// selectTransport picks explicit, then pair, then default.
func (m *Manager) selectTransport(p *Packet, pair *transport.Pair) interfaces.Sender {
	if p.explicit != nil {
		return p.explicit
	}
	if s := pair.Select(p.addr); s != nil {
		return s
	}
	return m.defaultTransport
}

// reap removes idle queues that are still empty and still mapped.
func (m *Manager) reap(idle []entry) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	reaped := 0
	for _, e := range idle {
		if m.queues[e.key] != e.queue {
			continue
		}
		if !e.queue.destroyIfEmpty() {
			continue
		}
		m.removeLocked(e.key)
		reaped++
	}

	if reaped > 0 {
		m.recorder.QueuesActive(len(m.queues))
		logrus.WithFields(logrus.Fields{
			"function":     "Manager.Tick",
			"reaped":       reaped,
			"total_queues": len(m.queues),
		}).Debug("Reaped idle queues")
	}
	return reaped
}

// Close releases every queue, discarding unsent packets, and closes an owned
// default transport. Any later call on the manager returns ErrManagerClosed.
// Calling Close twice is a caller error; it is logged and reported but does
// no harm.
func (m *Manager) Close() error {
	m.mu.Lock()
	if !m.closed.CompareAndSwap(false, true) {
		m.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "Manager.Close",
		}).Error("Queue manager closed twice")
		return ErrManagerClosed
	}

	queues := m.queues
	m.queues = make(map[uint64]*Queue)
	m.order = nil
	discarded := 0
	for _, q := range queues {
		discarded += q.destroy()
	}
	m.recorder.QueuesActive(0)
	m.mu.Unlock()

	m.discard(discarded)

	var closeErr error
	if m.ownsTransport {
		if c, ok := m.defaultTransport.(io.Closer); ok {
			closeErr = c.Close()
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Manager.Close",
		"queues":    len(queues),
		"discarded": discarded,
	}).Info("Closed queue manager")

	if closeErr != nil {
		return fmt.Errorf("close default transport: %w", closeErr)
	}
	return nil
}

// reject counts a refused enqueue.
func (m *Manager) reject(reason string) {
	m.stats.rejected.Add(1)
	m.recorder.PacketRejected(reason)
}

// discard counts packets dropped by queue destruction.
func (m *Manager) discard(n int) {
	if n == 0 {
		return
	}
	m.stats.discarded.Add(uint64(n))
	m.recorder.PacketsDiscarded(n)
}
