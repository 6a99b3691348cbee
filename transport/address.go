package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// Family represents the IP address family of a destination.
type Family uint8

const (
	// FamilyUnknown is returned for addresses that are not IP based
	FamilyUnknown Family = iota
	// FamilyIPv4 represents IPv4 destinations, including IPv4-mapped IPv6
	FamilyIPv4
	// FamilyIPv6 represents IPv6 destinations
	FamilyIPv6
)

// ErrInvalidAddress indicates a destination that is not a literal IP address
// or carries a zero port.
var ErrInvalidAddress = errors.New("invalid destination address")

// String returns a human-readable representation of the Family.
func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "IPv4"
	case FamilyIPv6:
		return "IPv6"
	case FamilyUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Family(%d)", uint8(f))
	}
}

// ResolveDestination parses a literal IP address and port into a UDP address.
// Host names are rejected: resolution is the producer's responsibility and
// must not happen on the enqueue path.
func ResolveDestination(address string, port uint16) (*net.UDPAddr, error) {
	if port == 0 {
		return nil, fmt.Errorf("%w: port must be non-zero", ErrInvalidAddress)
	}

	ip, err := netip.ParseAddr(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, address, err)
	}

	return net.UDPAddrFromAddrPort(netip.AddrPortFrom(ip.Unmap(), port)), nil
}

// FamilyOf returns the address family of addr.
func FamilyOf(addr net.Addr) Family {
	var ip net.IP
	switch a := addr.(type) {
	case *net.UDPAddr:
		ip = a.IP
	case *net.TCPAddr:
		ip = a.IP
	case *net.IPAddr:
		ip = a.IP
	default:
		return familyFromString(addr)
	}
	return familyOfIP(ip)
}

// familyOfIP classifies a parsed IP.
func familyOfIP(ip net.IP) Family {
	if ip == nil {
		return FamilyUnknown
	}
	if ip.To4() != nil {
		return FamilyIPv4
	}
	if ip.To16() != nil {
		return FamilyIPv6
	}
	return FamilyUnknown
}

// familyFromString handles custom net.Addr implementations by parsing their
// string form.
func familyFromString(addr net.Addr) Family {
	if addr == nil {
		return FamilyUnknown
	}
	ap, err := netip.ParseAddrPort(addr.String())
	if err != nil {
		return FamilyUnknown
	}
	if ap.Addr().Unmap().Is4() {
		return FamilyIPv4
	}
	return FamilyIPv6
}
