package handle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/udpqueue/interfaces"
	"github.com/opd-ai/udpqueue/queue"
	"github.com/opd-ai/udpqueue/transport"
	"github.com/sirupsen/logrus"
)

// InstanceHandle is an opaque reference to a queue manager in a Table.
type InstanceHandle uint64

// TransportHandle is an opaque reference to a registered transport.
type TransportHandle uint64

// NoTransport is the zero TransportHandle: no explicit transport.
const NoTransport TransportHandle = 0

// InvalidCapacity is returned by RemainingCapacity for an invalid handle.
const InvalidCapacity int32 = -1

// ErrInvalidHandle is returned when a handle does not name a live entry,
// for example after Destroy.
var ErrInvalidHandle = errors.New("invalid handle")

// Table maps opaque handles to queue managers and transports.
//
// Every call validates its handle against the slot generation, so a handle
// kept after Destroy is rejected with a sentinel value instead of reaching
// a released manager. All methods are safe for concurrent use.
type Table struct {
	mu          sync.RWMutex
	instances   slots[*queue.Manager]
	transports  slots[interfaces.Sender]
	defaultSend interfaces.Sender
	newSender   func() (transport.Transport, error)
	managerOpts []queue.Option
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithDefaultTransport sets the default transport of every manager created
// by the table. The table does not own it.
func WithDefaultTransport(s interfaces.Sender) TableOption {
	return func(t *Table) {
		t.defaultSend = s
	}
}

// WithTransportFactory gives every created manager its own transport from
// newTransport. The manager owns it and Destroy closes it. A factory error
// fails Create. It takes precedence over WithDefaultTransport.
func WithTransportFactory(newTransport func() (transport.Transport, error)) TableOption {
	return func(t *Table) {
		t.newSender = newTransport
	}
}

// WithManagerOptions appends options applied to every created manager.
func WithManagerOptions(opts ...queue.Option) TableOption {
	return func(t *Table) {
		t.managerOpts = append(t.managerOpts, opts...)
	}
}

// NewTable creates an empty handle table.
func NewTable(opts ...TableOption) *Table {
	t := &Table{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Create allocates a manager and returns its handle. It fails when the
// configuration is invalid or the transport factory cannot allocate a
// transport; the zero handle is never returned with a nil error.
func (t *Table) Create(bufferCapacity uint32, packetInterval time.Duration) (InstanceHandle, error) {
	cfg := interfaces.ManagerConfig{
		BufferCapacity: bufferCapacity,
		PacketInterval: packetInterval,
	}
	if err := cfg.Validate(); err != nil {
		return 0, fmt.Errorf("create: %w", err)
	}

	opts := make([]queue.Option, 0, len(t.managerOpts)+1)
	switch {
	case t.newSender != nil:
		owned, err := t.newSender()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Table.Create",
				"error":    err.Error(),
			}).Error("Failed to allocate transport")
			return 0, fmt.Errorf("create transport: %w", err)
		}
		opts = append(opts, queue.WithOwnedTransport(owned))
	case t.defaultSend != nil:
		opts = append(opts, queue.WithDefaultTransport(t.defaultSend))
	}
	opts = append(opts, t.managerOpts...)

	m, err := queue.NewManager(cfg, opts...)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	h := InstanceHandle(t.instances.insert(m))
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Table.Create",
		"handle":   uint64(h),
	}).Debug("Created queue manager handle")

	return h, nil
}

// Destroy releases the manager behind h and invalidates h. Destroying an
// invalid or already destroyed handle is a caller error: it is logged and
// ErrInvalidHandle is returned, and no state is touched.
func (t *Table) Destroy(h InstanceHandle) error {
	t.mu.Lock()
	m, ok := t.instances.remove(uint64(h))
	t.mu.Unlock()

	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "Table.Destroy",
			"handle":   uint64(h),
		}).Error("Destroy called with invalid handle")
		return fmt.Errorf("destroy %d: %w", uint64(h), ErrInvalidHandle)
	}

	return m.Close()
}

// Manager returns the manager behind h, for callers that want the Go API.
func (t *Table) Manager(h InstanceHandle) (*queue.Manager, error) {
	m, ok := t.lookup(h)
	if !ok {
		return nil, ErrInvalidHandle
	}
	return m, nil
}

// RemainingCapacity returns the free slots of key's queue, the full
// capacity for a key without a queue, or InvalidCapacity for an invalid
// handle.
func (t *Table) RemainingCapacity(h InstanceHandle, key uint64) int32 {
	m, ok := t.lookup(h)
	if !ok {
		return InvalidCapacity
	}
	remaining, err := m.RemainingCapacity(key)
	if err != nil {
		return InvalidCapacity
	}
	return int32(remaining)
}

// Enqueue queues payload for key. It returns false when the queue is full,
// the payload or address is invalid, or either handle is invalid.
func (t *Table) Enqueue(h InstanceHandle, key uint64, address string, port uint16, payload []byte, explicit TransportHandle) bool {
	m, ok := t.lookup(h)
	if !ok {
		return false
	}

	var sender interfaces.Sender
	if explicit != NoTransport {
		if sender, ok = t.transport(explicit); !ok {
			return false
		}
	}

	return m.Enqueue(key, address, port, payload, sender) == nil
}

// DeleteQueue discards the queue for key and reports whether it existed.
// An invalid handle reports false.
func (t *Table) DeleteQueue(h InstanceHandle, key uint64) bool {
	m, ok := t.lookup(h)
	if !ok {
		return false
	}
	existed, err := m.DeleteQueue(key)
	return err == nil && existed
}

// Tick runs one pacing cycle with the manager's default transport. It
// returns false for an invalid handle.
func (t *Table) Tick(h InstanceHandle) bool {
	m, ok := t.lookup(h)
	if !ok {
		return false
	}
	_, err := m.Tick(nil)
	return err == nil
}

// TickWithTransports runs one pacing cycle routing IPv4 destinations to a
// and IPv6 destinations to b. Either may be NoTransport to fall back to the
// default; any other invalid transport handle fails the call.
func (t *Table) TickWithTransports(h InstanceHandle, a, b TransportHandle) bool {
	m, ok := t.lookup(h)
	if !ok {
		return false
	}

	pair := &transport.Pair{}
	if a != NoTransport {
		if pair.IPv4, ok = t.transport(a); !ok {
			return false
		}
	}
	if b != NoTransport {
		if pair.IPv6, ok = t.transport(b); !ok {
			return false
		}
	}

	_, err := m.Tick(pair)
	return err == nil
}

// RegisterTransport stores s and returns a handle for explicit use in
// Enqueue and TickWithTransports. The table does not close s.
func (t *Table) RegisterTransport(s interfaces.Sender) (TransportHandle, error) {
	if s == nil {
		return NoTransport, fmt.Errorf("transport cannot be nil")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return TransportHandle(t.transports.insert(s)), nil
}

// ReleaseTransport invalidates th. Packets already queued with th keep
// using the transport until sent.
func (t *Table) ReleaseTransport(th TransportHandle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.transports.remove(uint64(th))
	return ok
}

// Len returns the number of live manager handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.instances.live
}

// Close destroys every live manager and forgets every transport. Handles
// issued before Close stay invalid; the table remains usable.
func (t *Table) Close() error {
	t.mu.Lock()
	managers := t.instances.clear()
	t.transports.clear()
	t.mu.Unlock()

	var errs []error
	for _, m := range managers {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Table) lookup(h InstanceHandle) (*queue.Manager, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.instances.get(uint64(h))
}

func (t *Table) transport(th TransportHandle) (interfaces.Sender, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.transports.get(uint64(th))
}
