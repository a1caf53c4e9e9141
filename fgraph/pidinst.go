/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fgraph

import (
	"sync"
	"time"

	"github.com/gravwell/fgraph/pkt"
	"github.com/gravwell/fgraph/prop"
	"github.com/gravwell/fgraph/reservoir"
)

// PidInstStats mirrors the statistics block spec.md §3 attaches to a
// PidInst (nb_processed, total/max_process_time, bit rates, ...).
type PidInstStats struct {
	NbProcessed     int64
	TotalProcessTime time.Duration
	MaxProcessTime   time.Duration
	AvgBitRate       int64
	MaxBitRate       int64
}

// reassemblyState holds the in-progress BLOCK_START/BLOCK_END fragment
// buffer for a destination that requires full data blocks (spec.md §4.6
// step 6, grounded on entry/block.go's ActiveEntryBlock accumulation
// pattern, generalized from same-key batching to byte-range
// concatenation with flag/timestamp folding).
type reassemblyState struct {
	fragments   [][]byte
	maxDTS      int64
	maxCTS      int64
	maxDuration uint32
	byteOffset  uint64
	contiguous  bool
	flags       pkt.Flags
	started     bool
}

func (r *reassemblyState) reset() {
	*r = reassemblyState{}
}

// PidInst is the per-consumer instance of a connection: one per (Pid,
// destination Filter) pair (spec.md §3 PidInst). Grounded on
// chancacher.ChanCacher's bounded channel consumer side, with its single
// channel replaced by a reservoir.Queue[*pkt.Packet] so the session can
// pick locked or lock-free mode uniformly.
type PidInst struct {
	mu sync.Mutex

	Pid    *Pid
	Filter *Filter

	packets reservoir.Queue[*pkt.Packet]
	held    *pkt.Packet // popped by GetPacket, awaiting a paired DropPacket

	props *prop.Map

	BufferDuration int64

	LastBlockEnded        bool
	FirstBlockStarted     bool
	RequiresFullDataBlock bool
	IsDecoderInput        bool
	DiscardPackets        bool
	DiscardInputs         bool
	HandlesClockRefs      bool

	NbEOSSignaled    int
	NbClocksSignaled int

	Stats PidInstStats

	LastPckFetchTime time.Time
	LastClockValue   int64
	LastClockScale   prop.Fraction
	LastClockType    pkt.ClockType

	ReconfigPidProps *prop.Map

	reassembly reassemblyState
}

// NewPidInst creates a PidInst consuming from pid for the given owning
// filter. useLockFree selects the lock-free SPSC reservoir mode
// (spec.md §4.1, session-level toggle) over the default locked mode.
func NewPidInst(pid *Pid, owner *Filter, useLockFree bool, lockFreeCapacity int) *PidInst {
	var q reservoir.Queue[*pkt.Packet]
	if useLockFree {
		q = reservoir.NewLockFree[*pkt.Packet](lockFreeCapacity)
	} else {
		q = reservoir.NewLocked[*pkt.Packet]()
	}
	return &PidInst{Pid: pid, Filter: owner, packets: q}
}

// Enqueue pushes a dispatched packet-instance onto the destination FIFO.
func (pi *PidInst) Enqueue(p *pkt.Packet) {
	pi.packets.Add(p)
}

// GetPacket returns the head packet, mirroring spec.md §6's
// pid_get_packet (only meaningful from inside the owning filter's process
// call). In both reservoir modes it pops the packet off the queue once and
// holds it on pi.held; repeated calls return the same held packet until
// DropPacket releases it. The held packet still counts toward the
// PidInst's buffer accounting until it is dropped.
func (pi *PidInst) GetPacket() (*pkt.Packet, bool) {
	if pi.held != nil {
		return pi.held, true
	}
	p, ok := pi.packets.Pop()
	if !ok {
		return nil, false
	}
	pi.held = p
	return p, true
}

// DropPacket removes and unrefs the packet most recently returned by
// GetPacket, reversing the buffer accounting Send applied on enqueue
// (spec.md §4.9 backpressure round-trip: "dropping one packet below the
// threshold decrements"). A DropPacket with no preceding GetPacket is a
// no-op rather than popping a second packet off the queue.
func (pi *PidInst) DropPacket() {
	p := pi.held
	if p == nil {
		return
	}
	pi.held = nil
	info := p.Info()
	pi.BufferDuration -= int64(info.Duration)
	if pi.Pid != nil {
		wasBlocked := pi.Pid.ShouldBlock()
		pi.Pid.mu.Lock()
		pi.Pid.BufferDuration -= int64(info.Duration)
		if pi.Pid.NbBufferUnit > 0 {
			pi.Pid.NbBufferUnit--
		}
		pi.Pid.mu.Unlock()
		pi.Pid.UpdateBlockingState(wasBlocked)
	}
	if p.Unref() {
		// destroyed; nothing further to do here, reservoir release
		// happens at the filter's packet-allocation layer (spec.md §4.7).
	}
}

// QueueDepth reports the number of packets currently queued, including one
// currently held by an un-dropped GetPacket (get_packet doesn't remove it
// from the destination's perspective).
func (pi *PidInst) QueueDepth() int {
	n := pi.packets.Count()
	if pi.held != nil {
		n++
	}
	return n
}

// IsEOS reports whether the destination has observed end-of-stream.
func (pi *PidInst) IsEOS() bool {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	return pi.NbEOSSignaled > 0
}

// SetEOS marks end-of-stream observed on this instance.
func (pi *PidInst) SetEOS() {
	pi.mu.Lock()
	pi.NbEOSSignaled++
	pi.mu.Unlock()
}

// beginReassembly starts a new block-reassembly buffer (spec.md §4.6:
// "a BLOCK_START-only packet starts reassembly").
func (pi *PidInst) beginReassembly(p *pkt.Packet) {
	pi.reassembly.reset()
	info := p.Info()
	pi.reassembly.started = true
	pi.reassembly.maxDTS = info.DTS
	pi.reassembly.maxCTS = info.CTS
	pi.reassembly.maxDuration = info.Duration
	pi.reassembly.byteOffset = info.ByteOffset
	pi.reassembly.contiguous = true
	pi.reassembly.flags = info.Flags
	pi.reassembly.fragments = append(pi.reassembly.fragments, p.Data())
}

// appendReassembly folds a continuation fragment into the in-progress
// buffer, tracking the running maxima spec.md §8 testable property 3
// pins for the aggregated packet (DTS/CTS/duration all max-of-fragments;
// spec.md §4.6's prose says "sum-max" for duration, but §8 is the
// verifiable invariant and wins here).
func (pi *PidInst) appendReassembly(p *pkt.Packet) {
	info := p.Info()
	if info.DTS > pi.reassembly.maxDTS {
		pi.reassembly.maxDTS = info.DTS
	}
	if info.CTS > pi.reassembly.maxCTS {
		pi.reassembly.maxCTS = info.CTS
	}
	if info.Duration > pi.reassembly.maxDuration {
		pi.reassembly.maxDuration = info.Duration
	}
	pi.reassembly.flags |= info.Flags
	if pi.reassembly.contiguous {
		expected := pi.reassembly.byteOffset + totalLen(pi.reassembly.fragments)
		if info.ByteOffset != 0 && info.ByteOffset != expected {
			pi.reassembly.contiguous = false
		}
	}
	pi.reassembly.fragments = append(pi.reassembly.fragments, p.Data())
}

// finishReassembly concatenates every buffered fragment into a single
// aggregated packet, per spec.md §4.6's BLOCK_END aggregation rule.
func (pi *PidInst) finishReassembly(alloc *pkt.AllocReservoir) *pkt.Packet {
	if !pi.reassembly.started {
		return nil
	}
	total := int(totalLen(pi.reassembly.fragments))
	agg := alloc.NewAlloc(total, true)
	buf := agg.Data()[:0]
	for _, frag := range pi.reassembly.fragments {
		buf = append(buf, frag...)
	}
	info := pkt.Info{
		DTS:      pi.reassembly.maxDTS,
		CTS:      pi.reassembly.maxCTS,
		Duration: pi.reassembly.maxDuration,
		Flags:    pi.reassembly.flags | pkt.FlagBlockStart | pkt.FlagBlockEnd,
	}
	if pi.reassembly.contiguous {
		info.ByteOffset = pi.reassembly.byteOffset
	}
	agg.SetInfo(info)
	pi.reassembly.reset()
	return agg
}

func totalLen(frags [][]byte) uint64 {
	var n uint64
	for _, f := range frags {
		n += uint64(len(f))
	}
	return n
}
