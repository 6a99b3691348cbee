package transport

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// DefaultWriteTimeout bounds a single send. A datagram write normally
// completes immediately, the bound only matters when the socket buffer is
// full.
const DefaultWriteTimeout = 5 * time.Millisecond

// DSCPExpedited is the Expedited Forwarding code point used for voice.
const DSCPExpedited = 46

// ErrTransportClosed is returned by Send after Close.
var ErrTransportClosed = errors.New("transport closed")

// UDPTransport implements UDP-based egress for the queue manager.
// It satisfies the Transport interface.
type UDPTransport struct {
	conn         net.PacketConn
	network      string
	writeTimeout time.Duration
	dscp         int
	closed       atomic.Bool
}

var _ Transport = (*UDPTransport)(nil)

// UDPOption configures a UDPTransport.
type UDPOption func(*UDPTransport)

// WithWriteTimeout sets the per-send write deadline. Zero disables the
// deadline and makes sends fully blocking.
func WithWriteTimeout(d time.Duration) UDPOption {
	return func(t *UDPTransport) {
		t.writeTimeout = d
	}
}

// WithDSCP marks outgoing datagrams with the given DSCP value (0-63).
func WithDSCP(dscp int) UDPOption {
	return func(t *UDPTransport) {
		t.dscp = dscp
	}
}

// NewUDPTransport creates a new UDP transport bound to listenAddr.
// network is one of "udp", "udp4" or "udp6".
func NewUDPTransport(network, listenAddr string, opts ...UDPOption) (*UDPTransport, error) {
	switch network {
	case "udp", "udp4", "udp6":
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}

	// Use net.ListenPacket instead of net.ListenUDP for more abstraction
	conn, err := net.ListenPacket(network, listenAddr)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "NewUDPTransport",
			"network":     network,
			"listen_addr": listenAddr,
			"error":       err.Error(),
		}).Error("Failed to bind UDP socket")
		return nil, fmt.Errorf("listen %s %s: %w", network, listenAddr, err)
	}

	t := &UDPTransport{
		conn:         conn,
		network:      network,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.dscp > 0 {
		t.applyDSCP()
	}

	logrus.WithFields(logrus.Fields{
		"function":      "NewUDPTransport",
		"network":       network,
		"local_addr":    conn.LocalAddr().String(),
		"write_timeout": t.writeTimeout,
		"dscp":          t.dscp,
	}).Info("UDP transport ready")

	return t, nil
}

// applyDSCP sets the traffic class on the socket for the families it serves.
// Failures are logged and otherwise ignored: marking is best effort.
func (t *UDPTransport) applyDSCP() {
	tos := (t.dscp & 0x3f) << 2

	if t.network != "udp6" {
		if err := ipv4.NewPacketConn(t.conn).SetTOS(tos); err != nil {
			logDSCPFailure("ipv4", t.dscp, err)
		}
	}
	if t.network != "udp4" {
		if err := ipv6.NewPacketConn(t.conn).SetTrafficClass(tos); err != nil {
			logDSCPFailure("ipv6", t.dscp, err)
		}
	}
}

// logDSCPFailure logs a failed attempt to mark the socket.
func logDSCPFailure(family string, dscp int, err error) {
	logrus.WithFields(logrus.Fields{
		"function": "UDPTransport.applyDSCP",
		"family":   family,
		"dscp":     dscp,
		"error":    err.Error(),
	}).Warn("Failed to set DSCP marking")
}

// Send sends payload as one datagram to addr.
func (t *UDPTransport) Send(payload []byte, addr net.Addr) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}
	if addr == nil {
		return fmt.Errorf("%w: nil address", ErrInvalidAddress)
	}

	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			// Without a deadline the write could block the tick.
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	_, err := t.conn.WriteTo(payload, addr)
	return err
}

// Close shuts down the transport.
func (t *UDPTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return ErrTransportClosed
	}
	return t.conn.Close()
}

// LocalAddr returns the local address the transport is bound to.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// IsTimeout reports whether err is a write deadline expiry, which the queue
// manager treats like any other dropped packet.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
