/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package reservoir

import "testing"

func TestLockFreeFIFOOrder(t *testing.T) {
	q := NewLockFree[int](16)
	for i := 0; i < 8; i++ {
		q.Add(i)
	}
	for i := 0; i < 8; i++ {
		v, ok := q.Pop()
		if !ok || v != i {
			t.Fatalf("expected %d, got %v (ok=%v)", i, v, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestLockFreeCountApproximatesDepth(t *testing.T) {
	q := NewLockFree[int](16)
	q.Add(1)
	q.Add(2)
	q.Add(3)
	q.Pop()
	if c := q.Count(); c != 2 {
		t.Fatalf("expected approximate count 2, got %d", c)
	}
}

func TestLockFreeSatisfiesQueueInterface(t *testing.T) {
	var _ Queue[int] = NewLockFree[int](4)
}

func TestLockFreeDrainIsSafeWithoutConsumer(t *testing.T) {
	q := NewLockFree[string](4)
	q.Add("a")
	q.Drain()
}
