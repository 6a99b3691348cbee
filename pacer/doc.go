// Package pacer drives a queue manager on a steady clock.
//
// The queue manager never starts goroutines or timers of its own; a
// [Driver] supplies the clock. It calls Tick once per interval against
// absolute deadlines and resynchronizes instead of bursting when it falls
// behind:
//
//	driver, err := pacer.New(manager, 20*time.Millisecond)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go driver.Run(ctx) // returns when ctx is cancelled or manager is closed
//
// One driver per manager is the intended deployment. Several drivers may
// tick the same manager; ticks are serialized by the manager.
package pacer
