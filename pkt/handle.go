/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package pkt

// PidHandle and FilterHandle are arena-style (index, generation) handles
// rather than raw pointers to the owning PID/Filter. spec.md §9 "Design
// notes" calls for this explicitly: it removes the need for an
// is_filter_destroyed heuristic when a packet outlives the filter that
// produced it (property-reference packets, spec.md §3/§4.8) — a stale
// handle's generation simply won't match the arena slot's current
// generation, so a lookup cleanly reports "gone" instead of dereferencing
// freed memory. The fgraph package owns the arenas that hand these out
// and resolve them back to live *Pid/*Filter values.
type PidHandle struct {
	Index      uint32
	Generation uint32
}

type FilterHandle struct {
	Index      uint32
	Generation uint32
}

// Zero handles are never valid arena slots (arena generations start at 1,
// so generation 0 is never issued), so the zero value of either handle
// type doubles as "no PID"/"no filter".
func (h PidHandle) Valid() bool    { return h.Generation != 0 }
func (h FilterHandle) Valid() bool { return h.Generation != 0 }
