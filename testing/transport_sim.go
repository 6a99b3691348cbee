package testing

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SendRecord represents a send event for testing verification
type SendRecord struct {
	Transport string
	Payload   []byte
	Addr      string
	Timestamp int64
	Success   bool
	Error     error
}

// SimulatedTransport implements an in-memory transport for testing.
// It satisfies interfaces.Sender and transport.Transport.
type SimulatedTransport struct {
	name      string
	local     net.Addr
	sendLog   []SendRecord
	failures  []error
	permanent error
	closed    bool
	mu        sync.Mutex
}

// NewSimulatedTransport creates a new simulated transport identified by name
func NewSimulatedTransport(name string) *SimulatedTransport {
	logrus.WithFields(logrus.Fields{
		"function":  "NewSimulatedTransport",
		"transport": name,
	}).Debug("Creating simulated transport for testing")

	return &SimulatedTransport{
		name:    name,
		local:   &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)},
		sendLog: make([]SendRecord, 0),
	}
}

// Send records the payload. Injected failures are returned in FIFO order,
// before any permanent failure set with FailAlways.
func (s *SimulatedTransport) Send(payload []byte, addr net.Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch {
	case s.closed:
		err = net.ErrClosed
	case len(s.failures) > 0:
		err = s.failures[0]
		s.failures = s.failures[1:]
	default:
		err = s.permanent
	}

	record := SendRecord{
		Transport: s.name,
		Payload:   append([]byte(nil), payload...),
		Timestamp: time.Now().UnixNano(),
		Success:   err == nil,
		Error:     err,
	}
	if addr != nil {
		record.Addr = addr.String()
	}
	s.sendLog = append(s.sendLog, record)

	return err
}

// FailNext makes the next len(errs) sends return the given errors
func (s *SimulatedTransport) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

// FailAlways makes every send return err. Passing nil restores success.
func (s *SimulatedTransport) FailAlways(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permanent = err
}

// Close marks the transport closed; further sends fail with net.ErrClosed
func (s *SimulatedTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return net.ErrClosed
	}
	s.closed = true
	return nil
}

// IsClosed reports whether Close was called
func (s *SimulatedTransport) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// LocalAddr returns a fixed loopback address
func (s *SimulatedTransport) LocalAddr() net.Addr {
	return s.local
}

// Name returns the identifier given at creation
func (s *SimulatedTransport) Name() string {
	return s.name
}

// Records returns a copy of the send log
func (s *SimulatedTransport) Records() []SendRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SendRecord, len(s.sendLog))
	copy(out, s.sendLog)
	return out
}

// Payloads returns the payloads of all sends, successful or not, as strings
func (s *SimulatedTransport) Payloads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.sendLog))
	for _, r := range s.sendLog {
		out = append(out, string(r.Payload))
	}
	return out
}

// PayloadsTo returns the payloads sent to addr in send order
func (s *SimulatedTransport) PayloadsTo(addr string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, r := range s.sendLog {
		if r.Addr == addr {
			out = append(out, string(r.Payload))
		}
	}
	return out
}

// Count returns the number of send attempts
func (s *SimulatedTransport) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sendLog)
}

// ClearLog clears the send log
func (s *SimulatedTransport) ClearLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendLog = make([]SendRecord, 0)
}
