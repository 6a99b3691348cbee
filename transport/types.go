package transport

import (
	"net"

	"github.com/opd-ai/udpqueue/interfaces"
)

// Transport defines the interface for egress transports used by the queue
// manager. It extends interfaces.Sender with lifecycle methods so owned
// default transports can be released together with their manager.
type Transport interface {
	interfaces.Sender

	// Close shuts down the transport.
	Close() error

	// LocalAddr returns the local address the transport is bound to.
	LocalAddr() net.Addr
}
