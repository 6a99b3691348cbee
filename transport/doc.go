// Package transport provides the egress side of the queue manager: a UDP
// sender, destination parsing and per-family transport selection.
//
// # Destinations
//
// ResolveDestination turns an address string and port into a *net.UDPAddr.
// The family is decided by format alone: dotted quads are IPv4, anything
// containing a colon is IPv6, and IPv4-mapped IPv6 addresses are unmapped
// to IPv4. Hostnames are rejected; the pacing hot path never resolves DNS.
//
// # Selection
//
// A packet is sent through the first available of:
//
//  1. the transport set explicitly on the packet
//  2. the Pair member matching the destination family, when the tick was
//     given a Pair
//  3. the manager's default transport
//
// A packet with none of these is dropped and counted.
//
// # UDP
//
// UDPTransport wraps a net.PacketConn with a per-send write deadline, so a
// full socket buffer drops the packet instead of stalling the tick, and
// optional DSCP marking through golang.org/x/net:
//
//	udp, err := transport.NewUDPTransport("udp", ":0",
//	    transport.WithDSCP(transport.DSCPExpedited),
//	    transport.WithWriteTimeout(2*time.Millisecond))
package transport
