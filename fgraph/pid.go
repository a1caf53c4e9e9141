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

	"github.com/gravwell/fgraph/pkt"
	"github.com/gravwell/fgraph/prop"
)

// backpressureScale is the fixed-point scale applied to buffer-unit and
// buffer-time comparisons, spec.md §4.9.
const backpressureScale = 1000

// TimestampState tracks the DTS/CTS reconstruction bookkeeping spec.md §3
// assigns to a Pid (last_pck_dts/cts, min/max_pck_cts, etc.).
type TimestampState struct {
	LastDTS, LastCTS   int64
	MinCTS, MaxCTS     int64
	MinDuration        uint32
	NbUnreliableDTS    int
	DurationInit       bool
	RecomputeDTS       bool
}

// Pid is the output side of a connection: it lives on exactly one filter
// and fans out to zero or more PidInst consumers (spec.md §3 Pid).
// Grounded on chancacher.ChanCacher's single-producer buffered-pipeline
// shape, generalized from one consumer channel to an N-way destinations
// fan-out plus property-map history.
type Pid struct {
	mu sync.Mutex

	Name   string
	Filter *Filter
	Handle pkt.PidHandle

	destinations []*PidInst

	// properties holds every PropMap version ever published on this PID,
	// most recent last (spec.md §3 "ordered list of PropMap"). The list
	// only grows: older maps are not removed from it when their
	// prop.Map.rc/pckRC holders release them.
	properties          []*prop.Map
	requestPropertyMap  bool

	NbSharedPacketsOut int64
	NbBufferUnit       int64
	BufferDuration     int64 // in PID timescale units
	MaxBufferUnit      int64
	MaxBufferTime      int64
	UserMaxBufferTime  int64
	PlaybackSpeedScaler int64 // fixed-point, backpressureScale == 1.0x

	WouldBlock int

	HasSeenEOS bool
	IsPlaying  bool

	Timestamps TimestampState

	AdaptersBlacklist map[string]bool
	CapsNegotiate     bool

	InitTaskPending     bool
	DiscardInputPackets bool
}

// NewPid allocates a Pid owned by f (spec.md §6 pid_new).
func NewPid(f *Filter, name string) *Pid {
	return &Pid{
		Name:                name,
		Filter:              f,
		PlaybackSpeedScaler: backpressureScale,
		AdaptersBlacklist:   make(map[string]bool),
	}
}

// CurrentProps returns the most recently published property map, if any.
func (p *Pid) CurrentProps() *prop.Map {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.properties) == 0 {
		return nil
	}
	return p.properties[len(p.properties)-1]
}

// RequestNewPropertyMap forces the next SetProperty to copy-on-write a
// fresh map rather than mutating the current one in place (spec.md §3
// request_property_map, §4.11).
func (p *Pid) RequestNewPropertyMap() {
	p.mu.Lock()
	p.requestPropertyMap = true
	p.mu.Unlock()
}

// SetProperty implements spec.md §4.11's set_property at the PID level:
// the first call creates the PID's map; every later call copies the
// current map (it is already published, or a new map was requested),
// sets the key on the copy and publishes it, so readers holding the
// prior map are unaffected (the "never mutated once published" invariant).
func (p *Pid) SetProperty(key prop.Key, v prop.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var target *prop.Map
	if len(p.properties) == 0 {
		target = prop.New()
		p.properties = append(p.properties, target)
	} else {
		cur := p.properties[len(p.properties)-1]
		if p.requestPropertyMap || cur.IsPublished() {
			target = cur.CopyForWrite()
			p.properties = append(p.properties, target)
			p.requestPropertyMap = false
		} else {
			target = cur
		}
	}
	target.Set(key, v)
	target.Publish()
}

// GetProperty looks up key in the most recent property map.
func (p *Pid) GetProperty(key prop.Key) (prop.Value, bool) {
	m := p.CurrentProps()
	if m == nil {
		return prop.Value{}, false
	}
	return m.Get(key)
}

// AddDestination registers inst as a consumer of this PID (spec.md §4.5
// configure_pid Connect).
func (p *Pid) AddDestination(inst *PidInst) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destinations = append(p.destinations, inst)
}

// RemoveDestination detaches inst (spec.md §4.5 configure_pid Remove).
func (p *Pid) RemoveDestination(inst *PidInst) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, d := range p.destinations {
		if d == inst {
			p.destinations = append(p.destinations[:i], p.destinations[i+1:]...)
			return
		}
	}
}

// Destinations returns a snapshot of the current consumer list.
func (p *Pid) Destinations() []*PidInst {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*PidInst, len(p.destinations))
	copy(out, p.destinations)
	return out
}

// Caps returns a PidCaps view of the PID's current properties, for use by
// the resolver and capability matcher (spec.md §4.2/§4.3).
func (p *Pid) Caps() PidCaps {
	return NewPidCaps(p.CurrentProps())
}

// ShouldBlock evaluates the backpressure predicate of spec.md §4.9.
func (p *Pid) ShouldBlock() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.MaxBufferUnit > 0 &&
		p.NbBufferUnit*backpressureScale >= p.MaxBufferUnit*p.PlaybackSpeedScaler {
		return true
	}
	if p.MaxBufferTime > 0 &&
		p.BufferDuration*backpressureScale > p.MaxBufferTime*p.PlaybackSpeedScaler {
		return true
	}
	return false
}

// UpdateBlockingState recomputes the predicate and adjusts WouldBlock
// counters on the PID and its owning filter, posting a process task on
// the filter again once it clears (spec.md §4.9).
func (p *Pid) UpdateBlockingState(wasBlocked bool) (nowBlocked bool) {
	nowBlocked = p.ShouldBlock()
	if nowBlocked == wasBlocked {
		return
	}
	p.mu.Lock()
	if nowBlocked {
		p.WouldBlock++
	} else if p.WouldBlock > 0 {
		p.WouldBlock--
	}
	f := p.Filter
	p.mu.Unlock()

	if f == nil {
		return
	}
	if nowBlocked {
		f.incWouldBlock()
	} else if f.decWouldBlock() {
		f.postProcess()
	}
	return
}
