// Package interfaces defines the core abstractions shared by the queue
// manager, its transports and its metrics sinks.
//
// # Core Interfaces
//
// [Sender] is the only thing the queue manager needs from a transport: the
// ability to write one datagram to an address. The transport package provides
// a UDP implementation, and the testing package a simulated one:
//
//	type loggingSender struct{ conn net.PacketConn }
//
//	func (s *loggingSender) Send(payload []byte, addr net.Addr) error {
//	    _, err := s.conn.WriteTo(payload, addr)
//	    return err
//	}
//
// [Recorder] receives pacing events (enqueue, rejection, send, failure,
// discard, tick duration). [NoopRecorder] is used when no metrics sink is
// configured; the metrics package provides a Prometheus-backed one.
//
// # Configuration
//
// [ManagerConfig] holds the two values fixed at manager creation:
//
//	cfg := interfaces.ManagerConfig{
//	    BufferCapacity: 20,
//	    PacketInterval: 20 * time.Millisecond,
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatalf("invalid config: %v", err)
//	}
//
// # Thread Safety
//
// Senders may be called from the draining goroutine while producers enqueue
// on other goroutines. Recorders are called from both and must be safe for
// concurrent use.
//
// # Network Interface Compliance
//
// Addresses are passed as net.Addr. Implementations should not assume a
// concrete *net.UDPAddr beyond what they need to write the datagram.
package interfaces
