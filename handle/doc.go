// Package handle exposes queue managers and transports through opaque
// integer handles, for embedders that cannot hold Go pointers across a
// boundary (a foreign function interface, a plugin host, a scripting
// bridge).
//
// A Table hands out InstanceHandle values from Create and TransportHandle
// values from RegisterTransport. Handles carry a slot generation, so a
// handle used after Destroy or ReleaseTransport is detected and answered
// with a sentinel: -1 from RemainingCapacity, false from the boolean
// calls, ErrInvalidHandle from Destroy.
//
//	table := handle.NewTable(handle.WithDefaultTransport(udp))
//	h, err := table.Create(20, 20*time.Millisecond)
//	if err != nil {
//		return err
//	}
//	defer table.Destroy(h)
//
//	if table.RemainingCapacity(h, key) > 0 {
//		table.Enqueue(h, key, "203.0.113.7", 5004, payload, handle.NoTransport)
//	}
//	table.Tick(h)
package handle
