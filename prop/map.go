/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package prop

import (
	"errors"
	"sync/atomic"
)

var (
	ErrNilMap      = errors.New("prop: nil map")
	ErrNotFound    = errors.New("prop: key not found")
	ErrBadKeyUsage = errors.New("prop: key must be either a FourCC or a name, not both")
)

// Key identifies a property either by 4-character code or by string name,
// per spec.md §3 ("keyed by 4CC or string name, both hashed together").
// The djb2 hash (prop.hashKey) is used only for the bucket index of the
// backing map, not as the canonical identity — equality always compares
// the original fourCC/name fields.
type Key struct {
	fourCC FourCC
	name   string
	isName bool
}

func Key4CC(f FourCC) Key    { return Key{fourCC: f} }
func KeyName(name string) Key { return Key{name: name, isName: true} }

func (k Key) String() string {
	if k.isName {
		return k.name
	}
	return k.fourCC.String()
}

// hashKey implements the djb2 hash spec.md §4.11 names for set_property,
// folding in a type discriminator so a 4CC key and a same-bytes name key
// never collide in the bucket map.
func hashKey(k Key) uint64 {
	var h uint64 = 5381
	step := func(b byte) {
		h = ((h << 5) + h) + uint64(b)
	}
	if k.isName {
		step(1)
		for i := 0; i < len(k.name); i++ {
			step(k.name[i])
		}
	} else {
		step(0)
		v := uint32(k.fourCC)
		step(byte(v >> 24))
		step(byte(v >> 16))
		step(byte(v >> 8))
		step(byte(v))
	}
	return h
}

type entry struct {
	key Key
	val Value
}

// Map is a shared, reference-counted, insertion-order-irrelevant property
// collection, grounded on entry.evblock (ordered value block with
// Add/Get/Append/Reset) generalized with the dual refcount spec.md §3
// mandates: `rc` for normal holders (PIDs, filters), `pckRC` for
// property-reference packets, which may outlive the PID that produced the
// map. A published map is not to be mutated: Set itself does not check
// this, so writers take a CopyForWrite of a published map and change the
// copy (copy-on-write).
type Map struct {
	entries   []entry
	index     map[uint64][]int // hash bucket -> indices into entries, for collisions
	timescale *Fraction
	rc        atomic.Int32
	pckRC     atomic.Int32
	published atomic.Bool
}

// New returns an empty, unpublished Map with one reference held by the
// caller.
func New() *Map {
	m := &Map{index: make(map[uint64][]int)}
	m.rc.Store(1)
	return m
}

// Ref increments the normal holder refcount and returns the same Map,
// mirroring the pck_ref/ref-counting discipline spec.md §4.8 describes
// for packets, applied here to property maps.
func (m *Map) Ref() *Map {
	if m != nil {
		m.rc.Add(1)
	}
	return m
}

// RefPck increments the property-reference-packet refcount (spec.md §3,
// §4.8 ref_props): held by packets flagged PROPS_REFERENCE that may
// outlive their source PID.
func (m *Map) RefPck() *Map {
	if m != nil {
		m.pckRC.Add(1)
	}
	return m
}

// Unref decrements the normal refcount; Unref returns true when both
// counts have reached zero and the Map should be discarded by the caller.
func (m *Map) Unref() bool {
	if m == nil {
		return false
	}
	return m.rc.Add(-1) <= 0 && m.pckRC.Load() <= 0
}

// UnrefPck decrements the property-reference-packet refcount; same
// destroy-when-both-zero contract as Unref.
func (m *Map) UnrefPck() bool {
	if m == nil {
		return false
	}
	return m.pckRC.Add(-1) <= 0 && m.rc.Load() <= 0
}

// Publish marks the map as immutable going forward. After Publish, Set
// must copy-on-write instead of mutating in place (spec.md §3: "never
// mutated once published").
func (m *Map) Publish() {
	if m != nil {
		m.published.Store(true)
	}
}

// IsPublished reports whether Publish has been called on m.
func (m *Map) IsPublished() bool {
	return m != nil && m.published.Load()
}

func (m *Map) find(k Key) int {
	h := hashKey(k)
	for _, idx := range m.index[h] {
		if m.entries[idx].key == k {
			return idx
		}
	}
	return -1
}

// Get implements spec.md §4.11 get_property: lookup by 4CC or name.
func (m *Map) Get(k Key) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	if idx := m.find(k); idx >= 0 {
		return m.entries[idx].val, true
	}
	return Value{}, false
}

// Set implements spec.md §4.11 set_property on an unpublished (working)
// map: "if present, remove then insert". Set on a published map is a
// programmer error — callers that need the PID-level copy-on-write
// publish-on-write behavior must call CopyForWrite first (the PID layer
// in fgraph does this, implementing `request_property_map`).
func (m *Map) Set(k Key, v Value) {
	h := hashKey(k)
	if idx := m.find(k); idx >= 0 {
		m.entries[idx].val = v
		return
	}
	m.entries = append(m.entries, entry{key: k, val: v})
	m.index[h] = append(m.index[h], len(m.entries)-1)
}

// Delete removes a key if present; no-op otherwise.
func (m *Map) Delete(k Key) {
	if m == nil {
		return
	}
	h := hashKey(k)
	bucket := m.index[h]
	for i, idx := range bucket {
		if m.entries[idx].key == k {
			m.entries[idx] = m.entries[len(m.entries)-1]
			m.entries = m.entries[:len(m.entries)-1]
			m.index[h] = append(bucket[:i], bucket[i+1:]...)
			// the swap above may have moved an entry previously indexed by
			// len(m.entries); fix up its bucket if needed.
			if idx != len(m.entries) {
				m.reindexAfterSwap(idx)
			}
			return
		}
	}
}

func (m *Map) reindexAfterSwap(idx int) {
	moved := m.entries[idx]
	h := hashKey(moved.key)
	for i, b := range m.index[h] {
		if b == len(m.entries) {
			m.index[h][i] = idx
			return
		}
	}
}

// CopyForWrite returns a fresh, unpublished Map containing a shallow copy
// of this map's entries — the copy-on-write step a PID performs before
// rewriting a property once the current Map has been handed out via
// Get/enumeration (spec.md §3 invariant, §5 testable property 5).
func (m *Map) CopyForWrite() *Map {
	n := New()
	if m == nil {
		return n
	}
	n.entries = append([]entry(nil), m.entries...)
	for h, idxs := range m.index {
		n.index[h] = append([]int(nil), idxs...)
	}
	if m.timescale != nil {
		ts := *m.timescale
		n.timescale = &ts
	}
	return n
}

// Merge implements spec.md §4.11 merge_property: copy entries from src
// that dst does not already have, optionally filtered by fn.
func Merge(dst, src *Map, fn func(Key, Value) bool) {
	if dst == nil || src == nil {
		return
	}
	for _, e := range src.entries {
		if _, ok := dst.Get(e.key); ok {
			continue
		}
		if fn != nil && !fn(e.key, e.val) {
			continue
		}
		dst.Set(e.key, e.val)
	}
}

// Len reports the number of properties currently held.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Enum implements spec.md §4.11 enum_property: stable iteration order
// within a given Map value (append order here), not specified across
// versions.
func (m *Map) Enum(fn func(Key, Value) bool) {
	if m == nil {
		return
	}
	for _, e := range m.entries {
		if !fn(e.key, e.val) {
			return
		}
	}
}

// Equal implements spec.md §4.11: elementwise deep equality, independent
// of enumeration order.
func Equal(a, b *Map) bool {
	if a == b {
		return true
	}
	if a.Len() != b.Len() {
		return false
	}
	match := true
	a.Enum(func(k Key, v Value) bool {
		ov, ok := b.Get(k)
		if !ok || !ov.Equal(v) {
			match = false
			return false
		}
		return true
	})
	return match
}

// Timescale returns the cached timescale shortcut, if one was set via
// SetTimescale (spec.md §3 "optional timescale shortcut").
func (m *Map) Timescale() (Fraction, bool) {
	if m == nil || m.timescale == nil {
		return Fraction{}, false
	}
	return *m.timescale, true
}

func (m *Map) SetTimescale(f Fraction) {
	if m == nil {
		return
	}
	ts := f
	m.timescale = &ts
}
