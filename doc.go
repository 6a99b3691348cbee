// Package udpqueue paces outbound UDP packets for many independent
// real-time streams sharing one process.
//
// Producers queue packets under a connection key; each key has a bounded
// FIFO queue. A driver ticks once per frame interval and sends at most one
// packet per key per tick, serving keys round-robin, so streams neither
// burst nor starve each other. A full queue rejects new packets, which is
// the backpressure signal producers use to stay ahead of the pacer without
// building latency.
//
// # Getting Started
//
// The Pool runs several queue managers, each with its own pacer goroutine,
// and shards keys across them:
//
//	udp, err := transport.NewUDPTransport("udp", ":0", transport.WithDSCP(transport.DSCPExpedited))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer udp.Close()
//
//	options := udpqueue.NewOptions()
//	options.Transport = udp
//
//	pool, err := udpqueue.NewPool(options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Close()
//
//	stream := pool.NextWrapper()
//	for stream.RemainingCapacity() > 0 {
//	    stream.Enqueue("203.0.113.7", 5004, nextFrame())
//	}
//
// A media.Poller automates the refill loop for RTP audio streams; see
// Pool.NewPoller.
//
// # Packages
//
// The engine lives in queue, with queue.Manager as the entry point for
// callers that drive ticks themselves. pacer supplies the drift-free tick
// loop, transport the UDP sender and destination parsing, handle an
// opaque-handle API for foreign callers, metrics a Prometheus recorder and
// config a YAML and environment configuration layer.
package udpqueue
