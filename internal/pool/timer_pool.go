// Package pool provides pooled timers for request-timeout accounting.
//
// The protocol engine arms a timer for nearly every task it dispatches;
// pooling avoids allocating a fresh runtime timer per request.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer armed for the given duration d from the pool.
//
// Return the timer to the pool with PutTimer once it is no longer needed.
func GetTimer(d time.Duration) *time.Timer {
	v := timerPool.Get()
	if v == nil {
		return time.NewTimer(d)
	}

	t, _ := v.(*time.Timer) // the pool only ever holds *time.Timer
	if t.Reset(d) {
		// The timer was still active; drain a pending fire so the caller
		// never observes a stale tick.
		select {
		case <-t.C:
		default:
		}
	}

	return t
}

// PutTimer stops the timer and returns it to the pool.
//
// The timer must not be accessed after PutTimer returns.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		// Drain t.C if the fire was not consumed by the caller.
		select {
		case <-t.C:
		default:
		}
	}

	timerPool.Put(t)
}
