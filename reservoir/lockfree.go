/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package reservoir

import (
	"sync/atomic"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// LockFree is the single-producer/single-consumer mode of spec.md §4.1,
// backed by code.hybscloud.com/lfq's SPSC queue (a Lamport ring buffer)
// instead of a hand-rolled Michael–Scott queue with a dummy head node —
// lfq already implements exactly the CAS-free SPSC algorithm spec.md
// describes and ships the matching ErrWouldBlock/backoff contract.
//
// Precondition (spec.md §9 "Design notes"): correct only when each
// LockFree has exactly one producer goroutine (the source filter's
// dispatch path) and one consumer goroutine (the destination filter's
// process task). Violating this is undefined behavior, per lfq's own
// contract.
type LockFree[T any] struct {
	q        *lfq.SPSC[T]
	capacity uint32
	count    atomic.Int64 // approximate; lfq deliberately omits Length()
}

// NewLockFree returns a lock-free SPSC reservoir queue with the given
// capacity, rounded up to a power of two by lfq.
func NewLockFree[T any](capacity int) *LockFree[T] {
	return &LockFree[T]{
		q:        lfq.NewSPSC[T](capacity),
		capacity: uint32(capacity),
	}
}

// Add enqueues item, blocking with a short backoff loop until the queue
// has room. Only the single producer goroutine may call Add.
func (q *LockFree[T]) Add(item T) {
	backoff := iox.Backoff{}
	for {
		if err := q.q.Enqueue(&item); err == nil {
			q.count.Add(1)
			return
		} else if !lfq.IsWouldBlock(err) {
			// lfq only documents ErrWouldBlock for bounded queues; any
			// other error indicates caller misuse (multiple producers).
			return
		}
		backoff.Wait()
	}
}

// Pop removes and returns the head item if one is available. Only the
// single consumer goroutine may call Pop.
func (q *LockFree[T]) Pop() (item T, ok bool) {
	v, err := q.q.Dequeue()
	if err != nil {
		return item, false
	}
	q.count.Add(-1)
	return *v, true
}

// Count reports an approximate queue depth. lfq intentionally does not
// expose an exact length (it would require cross-core synchronization
// that defeats the point of a lock-free queue), so this is a
// best-effort producer/consumer-maintained counter, not a linearizable
// read — fine for backpressure heuristics, not for exact accounting.
func (q *LockFree[T]) Count() int {
	if n := q.count.Load(); n > 0 {
		return int(n)
	}
	return 0
}

// Drain signals the backing queue that no further Add calls will occur,
// letting the consumer fully drain remaining items without lfq's
// livelock-prevention threshold holding some back. Call this only after
// the producer side has stopped (spec.md §4.12 filter removal shutdown
// path: draining a PID's queue on teardown).
func (q *LockFree[T]) Drain() {
	if d, ok := any(q.q).(interface{ Drain() }); ok {
		d.Drain()
	}
}
