// Package testing provides simulation-based transport infrastructure for
// deterministic testing of the UDP queue.
//
// # Overview
//
// [SimulatedTransport] mirrors the production UDP transport but operates
// entirely in-memory. Every send is appended to a log that tests inspect to
// verify ordering, fairness and transport selection without opening sockets.
//
// # Usage
//
//	sim := testing.NewSimulatedTransport("default")
//	manager, _ := queue.NewManager(cfg, queue.WithDefaultTransport(sim))
//
//	manager.Enqueue(1, "10.0.0.1", 5000, []byte("aa"), nil)
//	manager.Tick(nil)
//
//	payloads := sim.PayloadsTo("10.0.0.1:5000") // ["aa"]
//
// # Failure Injection
//
// FailNext queues one-shot errors and FailAlways sets a persistent error, to
// exercise the drop-on-failure policy of the queue manager:
//
//	sim.FailNext(errors.New("unreachable"))
//
// # Package Name
//
// The package is named testing to match its purpose. Import it with an alias
// to avoid clashing with the standard library:
//
//	import testsim "github.com/opd-ai/udpqueue/testing"
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package testing
