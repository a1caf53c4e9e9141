/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package pkt

import (
	"testing"

	"github.com/gravwell/fgraph/prop"
)

func TestUnrefDestroysOnlyAtZero(t *testing.T) {
	p := NewAlloc(16)
	p.Ref() // rc=2

	if p.Unref() {
		t.Fatal("must not destroy while a reference remains")
	}
	if !p.Unref() {
		t.Fatal("must destroy once refcount reaches zero")
	}
}

func TestPropsReferenceSurvivesIndependently(t *testing.T) {
	src := NewAlloc(4)
	src.info.CTS = 1000
	pr := NewPropsReference(src)

	if !pr.IsPropsReference() {
		t.Fatal("expected PROPS_REFERENCE flag set")
	}
	if pr.info.CTS != 1000 {
		t.Fatalf("expected timing copied, got %d", pr.info.CTS)
	}
	if len(pr.Data()) != 0 {
		t.Fatal("a property-reference packet must never carry data")
	}
}

// TestUnrefReleasesPropsReferenceViaPckRC covers spec.md §3/§4.8's dual
// refcount: a PROPS_REFERENCE packet's Unref must decrement the holder's
// map through pckRC, not rc, so a PID/filter still holding the map
// normally is unaffected and the map only reaches the both-zero destroy
// condition once every holder and every props-reference packet has let go.
func TestUnrefReleasesPropsReferenceViaPckRC(t *testing.T) {
	holder := prop.New() // rc=1, as if a PID is holding it
	src := NewAlloc(4)
	src.SetProps(holder)
	pr := NewPropsReference(src) // holder.RefPck() -> pckRC=1

	if pr.Unref() != true {
		t.Fatal("expected the props-reference packet itself to reach rc=0")
	}
	// The map must still be alive for the holder: releasing pr must not
	// have touched holder's rc.
	if holder.Unref() != true {
		t.Fatal("expected holder's own Unref to report destroy once pckRC was already released via the packet")
	}
}

func TestReservoirReusesByAllocSize(t *testing.T) {
	r := NewAllocReservoir()
	p1 := r.NewAlloc(64, true)
	p1.Unref()
	r.Release(p1, true)
	if r.Count() != 1 {
		t.Fatalf("expected 1 packet held in reservoir, got %d", r.Count())
	}

	p2 := r.NewAlloc(32, true)
	if p2.AllocSize() < 32 {
		t.Fatalf("reused packet must satisfy requested size, got alloc=%d", p2.AllocSize())
	}
	if r.Count() != 0 {
		t.Fatal("reservoir entry should have been handed out, not duplicated")
	}
}

func TestReservoirCapsAtDestinationLimit(t *testing.T) {
	r := NewAllocReservoir()
	for i := 0; i < 20; i++ {
		p := NewAlloc(8)
		p.Unref()
		r.Release(p, true)
	}
	if r.Count() > 10 {
		t.Fatalf("reservoir with destinations must cap at 10, got %d", r.Count())
	}
}
