/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package pkt implements the packet: the unit of data dispatched through
// the filter graph, carrying an owned/shared/read-only/frame-interface
// byte buffer plus per-packet and per-PID property maps and timing info.
// Grounded on entry.Entry (TS/SRC/Tag/Data, entry/entry.go) generalized
// with ownership classes, reference counting, and block reassembly as
// spec.md §3/§4 require.
package pkt

import (
	"errors"
	"sync/atomic"

	"github.com/gravwell/fgraph/prop"
)

var (
	ErrAlreadyOwned   = errors.New("pkt: packet already has a data owner")
	ErrNotOwned       = errors.New("pkt: packet does not own its data buffer")
	ErrZeroReferences = errors.New("pkt: unref called on packet with no references")
	ErrFrameInterface = errors.New("pkt: operation not valid on a frame-interface packet")
)

// Ownership classifies who owns the byte buffer behind a packet, per
// spec.md §3 "Packet" attributes.
type Ownership uint8

const (
	OwnOwned Ownership = iota
	OwnSharedCaller
	OwnReadOnly
	OwnFrameInterface
)

// Flags are the per-packet bit flags spec.md §3 lists under Info.
type Flags uint32

const (
	FlagBlockStart Flags = 1 << iota
	FlagBlockEnd
	FlagSeek
	FlagCorrupted
	FlagPropsChanged
	FlagPropsReference
	FlagCommandEOS
	FlagDependencyFlags // companion bits live in Info.DependencyFlags
)

// NoTimestamp is the spec.md §4.6 sentinel: "Packets with both DTS and CTS
// equal to 'no timestamp' are accepted" — -1 is never a legitimate media
// timestamp, so it is distinguishable from a real (non-negative) value
// without an extra boolean.
const NoTimestamp int64 = -1

// ClockType enumerates the per-packet clock reference kind.
type ClockType uint8

const (
	ClockNone ClockType = iota
	ClockReference
	ClockDiscontinuity
)

// Info carries the timing/classification attributes spec.md §3 groups
// under Pck.info.
type Info struct {
	DTS             int64
	CTS             int64
	Duration        uint32
	ByteOffset      uint64
	SAP             uint8 // 0..4
	Flags           Flags
	Clock           ClockType
	CarouselVersion int32
	DependencyFlags uint8
	SeqNum          uint32
	Roll            int16
}

// FrameInterface is implemented by decoded-frame indirections (including
// GPU textures) a packet may carry instead of owning a byte buffer —
// the "frame interface" of spec.md's GLOSSARY.
type FrameInterface interface {
	FrameData() ([]byte, error)
}

// Destructor is invoked once a shared/frame-interface packet's reference
// count reaches zero, letting the original producer reclaim its buffer.
type Destructor func(p *Packet)

// Packet is the filter graph's dataflow unit (spec.md §3 "Packet").
type Packet struct {
	data      []byte
	allocSize int
	own       Ownership
	frame     FrameInterface
	destroy   Destructor

	props    *prop.Map // optional per-packet properties
	pidProps *prop.Map // the PID PropMap active at send time

	info Info

	rc atomic.Int32

	reference *Packet // for ref/forwarded packets (pck_ref, pck_new_ref)

	srcFilter FilterHandle // nulled after send
	pid       PidHandle    // nulled after destruction
}

// NewAlloc creates an owned packet with a freshly allocated buffer of the
// given size, implementing the allocating half of spec.md §4.7's
// new_alloc (the reservoir/size-selection policy lives in reservoir.go;
// this constructor is what the reservoir calls on a cache miss).
func NewAlloc(size int) *Packet {
	p := &Packet{
		data:      make([]byte, size),
		allocSize: size,
		own:       OwnOwned,
	}
	p.rc.Store(1)
	p.info.DTS = NoTimestamp
	p.info.CTS = NoTimestamp
	return p
}

// NewShared wraps caller-owned bytes; destroy is invoked once the
// reference count drops to zero so the caller can reclaim the buffer
// (spec.md §3 ownership class "shared-caller").
func NewShared(data []byte, destroy Destructor) *Packet {
	p := &Packet{
		data:      data,
		allocSize: len(data),
		own:       OwnSharedCaller,
		destroy:   destroy,
	}
	p.rc.Store(1)
	p.info.DTS = NoTimestamp
	p.info.CTS = NoTimestamp
	return p
}

// NewFrameInterface wraps a decoded-frame indirection instead of a byte
// buffer (spec.md GLOSSARY "Frame interface").
func NewFrameInterface(fi FrameInterface, destroy Destructor) *Packet {
	p := &Packet{
		own:     OwnFrameInterface,
		frame:   fi,
		destroy: destroy,
	}
	p.rc.Store(1)
	p.info.DTS = NoTimestamp
	p.info.CTS = NoTimestamp
	return p
}

// NewRef creates a reference packet pointing at ref, used when a filter
// re-emits a fragment of a packet it received (spec.md §4.8 new_ref). The
// reference packet does not own data; Data() transparently resolves
// through Reference.
func NewRef(ref *Packet) *Packet {
	ref.Ref()
	p := &Packet{
		own:       OwnReadOnly,
		reference: ref,
	}
	p.rc.Store(1)
	p.info = ref.info
	return p
}

// NewPropsReference allocates a packet flagged PROPS_REFERENCE that shares
// the property maps of src (incrementing their pckRC) without carrying
// data, per spec.md §4.8 ref_props. Such a packet remains valid even
// after the source filter/PID is destroyed, and its timing is copied, not
// referenced, from src.
func NewPropsReference(src *Packet) *Packet {
	p := &Packet{
		own: OwnReadOnly,
	}
	p.rc.Store(1)
	p.info = src.info
	p.info.Flags |= FlagPropsReference
	if src.props != nil {
		p.props = src.props.RefPck()
	}
	if src.pidProps != nil {
		p.pidProps = src.pidProps.RefPck()
	}
	return p
}

// Data returns the packet's byte range, resolving through a reference
// chain if this packet doesn't own data directly.
func (p *Packet) Data() []byte {
	if p.reference != nil {
		return p.reference.Data()
	}
	return p.data
}

func (p *Packet) AllocSize() int       { return p.allocSize }
func (p *Packet) Ownership() Ownership { return p.own }
func (p *Packet) Info() Info           { return p.info }
func (p *Packet) SetInfo(i Info)       { p.info = i }

func (p *Packet) Props() *prop.Map        { return p.props }
func (p *Packet) SetProps(m *prop.Map)    { p.props = m }
func (p *Packet) PidProps() *prop.Map     { return p.pidProps }
func (p *Packet) SetPidProps(m *prop.Map) { p.pidProps = m }

func (p *Packet) SrcFilter() FilterHandle     { return p.srcFilter }
func (p *Packet) SetSrcFilter(h FilterHandle) { p.srcFilter = h }
func (p *Packet) ClearSrcFilter()             { p.srcFilter = FilterHandle{} }

func (p *Packet) Pid() PidHandle     { return p.pid }
func (p *Packet) SetPid(h PidHandle) { p.pid = h }

// Expand grows an owned packet's buffer by extra bytes, returning the
// newly-available tail (spec.md §6 pck_expand). Only valid on owned
// packets with no outstanding references.
func (p *Packet) Expand(extra int) ([]byte, error) {
	if p.own != OwnOwned {
		return nil, ErrNotOwned
	}
	old := len(p.data)
	nd := make([]byte, old+extra)
	copy(nd, p.data)
	p.data = nd
	if p.allocSize < len(nd) {
		p.allocSize = len(nd)
	}
	return p.data[old:], nil
}

// Truncate shrinks the visible data length without releasing the backing
// allocation (spec.md §6 pck_truncate) — allocSize is left untouched so
// the reservoir can still bucket this packet by its original capacity.
func (p *Packet) Truncate(size int) error {
	if p.own == OwnFrameInterface {
		return ErrFrameInterface
	}
	if size > len(p.data) {
		size = len(p.data)
	}
	p.data = p.data[:size]
	return nil
}

// Ref increments the reference count, implementing spec.md §4.8 ref(p).
// The caller must pair this with a later Unref.
func (p *Packet) Ref() *Packet {
	p.rc.Add(1)
	return p
}

// RefCount reports the current reference count.
func (p *Packet) RefCount() int32 { return p.rc.Load() }

// Unref decrements the reference count and runs the destruction path
// described in spec.md §3 invariants once it reaches zero: referenced
// packets and property maps are released, and the destructor (if any) is
// invoked so the buffer can be reclaimed (by the reservoir or the
// original owner). Unref reports whether this call destroyed the packet.
func (p *Packet) Unref() bool {
	if p.rc.Add(-1) > 0 {
		return false
	}
	if p.reference != nil {
		p.reference.Unref()
		p.reference = nil
	}
	// A PROPS_REFERENCE packet acquired its maps via RefPck (pckRC), not
	// the ordinary holder Ref (rc) — release through the matching counter
	// or the maps never reach the both-zero destroy condition while an
	// unrelated holder's rc gets wrongly decremented (spec.md §3/§4.8).
	if p.IsPropsReference() {
		if p.props != nil {
			p.props.UnrefPck()
			p.props = nil
		}
		if p.pidProps != nil {
			p.pidProps.UnrefPck()
			p.pidProps = nil
		}
	} else {
		if p.props != nil {
			p.props.Unref()
			p.props = nil
		}
		if p.pidProps != nil {
			p.pidProps.Unref()
			p.pidProps = nil
		}
	}
	if p.destroy != nil {
		p.destroy(p)
	}
	p.ClearSrcFilter()
	p.pid = PidHandle{}
	return true
}

// IsPropsReference reports whether this is a property-reference packet
// (spec.md §3/§4.8): it carries only timing+properties, never owns data,
// and its lifetime is tracked via the property maps' pckRC rather than
// any PID buffer accounting.
func (p *Packet) IsPropsReference() bool {
	return p.info.Flags&FlagPropsReference != 0
}
