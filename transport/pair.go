package transport

import (
	"net"

	"github.com/opd-ai/udpqueue/interfaces"
)

// Pair holds one sender per address family. It is supplied to a tick to
// override the manager's default transport for packets without an explicit
// transport.
type Pair struct {
	IPv4 interfaces.Sender
	IPv6 interfaces.Sender
}

// NewPair creates a transport pair. Either member may be nil, in which case
// destinations of that family fall back to the manager default.
func NewPair(ipv4, ipv6 interfaces.Sender) *Pair {
	return &Pair{IPv4: ipv4, IPv6: ipv6}
}

// Select returns the member matching the family of addr, or nil.
func (p *Pair) Select(addr net.Addr) interfaces.Sender {
	if p == nil {
		return nil
	}
	switch FamilyOf(addr) {
	case FamilyIPv4:
		return p.IPv4
	case FamilyIPv6:
		return p.IPv6
	default:
		return nil
	}
}
