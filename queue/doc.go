// Package queue implements the pacing engine of the UDP queue: per-key
// bounded packet queues and the round-robin tick that drains them.
//
// # Overview
//
// Many real-time streams (typically one per voice connection) share one
// egress socket. Each stream is identified by a 64-bit key and owns a
// bounded FIFO [Queue]. Producers push packets with [Manager.Enqueue]; a
// driver calls [Manager.Tick] once per packet interval, and every tick sends
// at most one packet from every non-empty queue. Each stream is therefore
// paced at one packet per interval, while the sends of different streams are
// spread across the tick instead of bursting together.
//
//	manager, err := queue.NewManager(interfaces.ManagerConfig{
//	    BufferCapacity: 20,
//	    PacketInterval: 20 * time.Millisecond,
//	}, queue.WithOwnedTransport(udp))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer manager.Close()
//
//	if err := manager.Enqueue(key, "10.0.0.1", 5000, frame, nil); errors.Is(err, queue.ErrQueueFull) {
//	    // backpressure: drop the frame or slow down
//	}
//
// The pacer package provides a driver that calls Tick on a steady clock.
//
// # Backpressure
//
// Queues never overwrite or drop on their own. Enqueue on a full queue
// returns [ErrQueueFull]; [Manager.RemainingCapacity] lets producers fill
// exactly the free slots. A key without a queue reports full capacity.
//
// # Transport Selection
//
// For each dequeued packet the tick uses, in order: the packet's explicit
// transport, the member of the tick's [transport.Pair] matching the
// destination family, the manager's default transport.
//
// # Send Failures
//
// A failed send drops the packet. It is counted in [Stats] and reported to
// the Recorder, and the queue advances. Retrying a late voice packet only
// delays every packet behind it.
//
// # Fairness
//
// Queues are visited in creation order, starting one position later on
// every tick. With [WithTickBudget] a tick sends at most n packets and the
// next tick continues with the first queue that was skipped, so an
// oversubscribed manager degrades to plain round-robin.
//
// # Thread Safety
//
// Enqueue, RemainingCapacity and DeleteQueue may be called from any number
// of goroutines concurrently with Tick. The key mapping is guarded by a
// manager lock that is never held across a send; each queue has its own
// lock, so producers of different keys never contend.
//
// # Lifecycle
//
// [Manager.Close] discards every queue and optionally closes the default
// transport. All later calls return [ErrManagerClosed].
package queue
