/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package reservoir implements the bounded producer/consumer FIFO with an
// attached free-list described in spec.md §4.1, in two modes: a
// mutex-guarded linked list (grounded on ingest.EntryBuffer's bounded ring
// and chancacher.ChanCacher's buffered pipeline) and a lock-free
// single-producer/single-consumer mode built on code.hybscloud.com/lfq.
package reservoir

import (
	"container/list"
	"sync"
)

// maxFreeList caps the free-list depth; spec.md §4.1: "res_add refuses to
// enqueue when free-list holds >= 50 items".
const maxFreeList = 50

// Locked is the mutex-guarded FIFO + free-list mode of spec.md §4.1.
type Locked[T any] struct {
	mu       sync.Mutex
	items    *list.List
	free     *list.List
	popCount int64
	addCount int64
}

// NewLocked returns an empty locked reservoir queue.
func NewLocked[T any]() *Locked[T] {
	return &Locked[T]{items: list.New(), free: list.New()}
}

// Add appends item to the tail of the FIFO, reusing a free-list node if
// one is available.
func (q *Locked[T]) Add(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.addCount++
	if e := q.free.Front(); e != nil {
		q.free.Remove(e)
		e.Value = item
		q.items.PushBack(e.Value)
		return
	}
	q.items.PushBack(item)
}

// Pop removes and returns the head item, if any.
func (q *Locked[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.items.Front()
	if e == nil {
		return item, false
	}
	q.items.Remove(e)
	q.popCount++
	return e.Value.(T), true
}

// Head returns the head item without removing it.
func (q *Locked[T]) Head() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.items.Front()
	if e == nil {
		return item, false
	}
	return e.Value.(T), true
}

// Count reports the number of items currently queued — monotonically
// add-minus-pop, per spec.md §4.1.
func (q *Locked[T]) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Get returns the i-th queued item (0 = head) without removing it.
func (q *Locked[T]) Get(i int) (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.items.Front()
	for n := 0; e != nil && n < i; n++ {
		e = e.Next()
	}
	if e == nil {
		return item, false
	}
	return e.Value.(T), true
}

// Enum calls fn for every queued item in FIFO order, stopping early if fn
// returns false.
func (q *Locked[T]) Enum(fn func(T) bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for e := q.items.Front(); e != nil; e = e.Next() {
		if !fn(e.Value.(T)) {
			return
		}
	}
}

// ResAdd returns a free-list node to the reservoir for reuse, refusing to
// grow the free-list past maxFreeList (spec.md §4.1: prevents unbounded
// reservoir growth during bursts). Reports whether the item was kept.
func (q *Locked[T]) ResAdd(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.free.Len() >= maxFreeList {
		return false
	}
	q.free.PushBack(item)
	return true
}
