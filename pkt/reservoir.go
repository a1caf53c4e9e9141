/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package pkt

import "sync"

// allocCapWithDest and allocCapNoDest are the reservoir size caps spec.md
// §4.7 names: "10 if the PID has destinations, else 1".
const (
	allocCapWithDest = 10
	allocCapNoDest   = 1
)

// AllocReservoir implements spec.md §4.7 packet allocation: a per-filter
// reservoir of recycled owned packets keyed by their previous alloc size,
// picking the smallest packet whose alloc size is big enough, falling
// back to best-fit-below-target, and reallocating the closest entry once
// the cap is reached. Grounded on chancacher's reuse-on-release
// discipline and entry_buff.EntryBuffer's free-list sizing, generalized
// to size-bucketed reuse instead of fixed-size slots.
type AllocReservoir struct {
	mu    sync.Mutex
	slots []*Packet
}

// NewAllocReservoir returns an empty reservoir.
func NewAllocReservoir() *AllocReservoir {
	return &AllocReservoir{}
}

func capFor(hasDestinations bool) int {
	if hasDestinations {
		return allocCapWithDest
	}
	return allocCapNoDest
}

// NewAlloc returns a packet with at least `size` bytes available,
// reusing a reservoir entry when possible instead of allocating fresh
// memory. hasDestinations selects the cap per spec.md §4.7.
func (r *AllocReservoir) NewAlloc(size int, hasDestinations bool) *Packet {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Smallest entry whose alloc_size >= size: sort-free linear scan,
	// since the reservoir is capped at 10 entries.
	bestIdx := -1
	for i, p := range r.slots {
		if p.allocSize >= size {
			if bestIdx < 0 || p.allocSize < r.slots[bestIdx].allocSize {
				bestIdx = i
			}
		}
	}
	if bestIdx >= 0 {
		p := r.take(bestIdx)
		p.Truncate(size)
		p.data = p.data[:size]
		p.rc.Store(1)
		p.own = OwnOwned
		p.info = Info{DTS: NoTimestamp, CTS: NoTimestamp}
		p.props, p.pidProps, p.reference, p.destroy = nil, nil, nil, nil
		return p
	}

	capN := capFor(hasDestinations)
	if len(r.slots) >= capN {
		// Reservoir full: reallocate the entry closest in size (best-fit
		// below target, else the smallest available) rather than grow
		// the reservoir unbounded.
		closest := r.closestIdx(size)
		if closest >= 0 {
			r.take(closest)
		}
	}
	return NewAlloc(size)
}

// Release returns a packet to the reservoir once its reference count has
// dropped to zero (spec.md §4.7: "becomes available for reuse only after
// reference_count == 0"). The caller must not use p after Release.
func (r *AllocReservoir) Release(p *Packet, hasDestinations bool) {
	if p == nil || p.rc.Load() > 0 || p.own != OwnOwned {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	capN := capFor(hasDestinations)
	if len(r.slots) >= capN {
		return // drop it, let GC reclaim
	}
	r.slots = append(r.slots, p)
}

func (r *AllocReservoir) take(idx int) *Packet {
	p := r.slots[idx]
	r.slots[idx] = r.slots[len(r.slots)-1]
	r.slots = r.slots[:len(r.slots)-1]
	return p
}

func (r *AllocReservoir) closestIdx(size int) int {
	best := -1
	bestDelta := -1
	for i, p := range r.slots {
		d := size - p.allocSize
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDelta {
			best, bestDelta = i, d
		}
	}
	return best
}

// Count reports how many packets are currently held in the reservoir.
func (r *AllocReservoir) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// Drain empties the reservoir, releasing every held packet (spec.md
// §4.12 filter destruction path: "pop all reservoir entries").
func (r *AllocReservoir) Drain() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots = nil
}
