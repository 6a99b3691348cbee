package queue

import (
	"net"

	"github.com/opd-ai/udpqueue/interfaces"
)

// Packet is one queued datagram. It is immutable once created: the payload
// is copied from the producer's buffer so the producer may reuse it
// immediately.
type Packet struct {
	addr     *net.UDPAddr
	payload  []byte
	explicit interfaces.Sender
}

// NewPacket creates a packet for addr with a private copy of payload.
// explicit may be nil, in which case the tick chooses the transport.
func NewPacket(addr *net.UDPAddr, payload []byte, explicit interfaces.Sender) *Packet {
	data := make([]byte, len(payload))
	copy(data, payload)

	return &Packet{
		addr:     addr,
		payload:  data,
		explicit: explicit,
	}
}

// Addr returns the destination address.
func (p *Packet) Addr() *net.UDPAddr {
	return p.addr
}

// Payload returns the packet bytes. Callers must not modify them.
func (p *Packet) Payload() []byte {
	return p.payload
}

// Explicit returns the per-packet transport override, or nil.
func (p *Packet) Explicit() interfaces.Sender {
	return p.explicit
}

// Len returns the payload length in bytes.
func (p *Packet) Len() int {
	return len(p.payload)
}
