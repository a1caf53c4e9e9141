/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package reservoir

import "testing"

func TestLockedFIFOOrder(t *testing.T) {
	q := NewLocked[int]()
	for i := 0; i < 5; i++ {
		q.Add(i)
	}
	for i := 0; i < 5; i++ {
		v, ok := q.Pop()
		if !ok || v != i {
			t.Fatalf("expected %d, got %v (ok=%v)", i, v, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestLockedCountTracksAddMinusPop(t *testing.T) {
	q := NewLocked[int]()
	q.Add(1)
	q.Add(2)
	q.Add(3)
	q.Pop()
	if q.Count() != 2 {
		t.Fatalf("expected count 2, got %d", q.Count())
	}
}

func TestResAddCapsFreeListAt50(t *testing.T) {
	q := NewLocked[int]()
	kept := 0
	for i := 0; i < 60; i++ {
		if q.ResAdd(i) {
			kept++
		}
	}
	if kept != maxFreeList {
		t.Fatalf("expected exactly %d accepted, got %d", maxFreeList, kept)
	}
}

func TestHeadDoesNotRemove(t *testing.T) {
	q := NewLocked[string]()
	q.Add("a")
	q.Add("b")
	h, ok := q.Head()
	if !ok || h != "a" {
		t.Fatalf("expected head 'a', got %q", h)
	}
	if q.Count() != 2 {
		t.Fatal("Head must not remove the item")
	}
}
