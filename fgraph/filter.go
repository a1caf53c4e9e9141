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
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gravwell/fgraph/pkt"
)

// Filter is a live instance of a FilterReg (spec.md §3 Filter). Grounded
// on processors.Processor's per-instance wrapping of a shared config,
// generalized with the PID graph edges, reservoirs, and task-queue
// bookkeeping the filter graph core needs.
type Filter struct {
	Reg  *FilterReg
	Name string
	ID   string
	Handle pkt.FilterHandle

	SourceIDs string

	// Args holds this instance's "arg=val" pairs parsed from its CLI
	// token (spec.md §6 CLI surface), consulted by Initialize.
	Args map[string]string

	// LastError is the filter's most recently observed process/configure
	// error, surfaced session-wide as last_process_error (spec.md §7).
	LastError error
	Status    string

	// UserData lets a FilterImpl (shared across every instance of its
	// FilterReg) stash private per-instance state, since Impl itself is
	// one value shared by the whole registered type.
	UserData interface{}

	tasksMx sync.Mutex

	inputPids   []*PidInst
	outputPids  []*Pid
	pendingPids []*Pid

	AllocReservoir  *pkt.AllocReservoir
	SharedReservoir *pkt.AllocReservoir
	InstReservoir   *pkt.AllocReservoir

	Blacklisted map[string]bool

	wouldBlock int32 // atomic

	numEventsQueued      int32
	inPidConnPending     int32
	outPidConnPending    int32
	processTaskQueued    atomic.Bool
	streamResetPending   int32
	Removed              atomic.Bool
	Finalized            atomic.Bool
	Sticky               bool
	DynamicFilter        bool
	DstFilter            *Filter
	TargetFilter         *Filter
	ClonedFrom           *Filter
	ForcedCaps           []CapItem
	CapIdxAtResolution   int
	MaxExtraPids         int
	DetachedPidInst      []*PidInst

	postponedPackets []*pkt.Packet

	session *Session
}

// NewFilter instantiates reg as a live filter owned by sess, assigning a
// fresh UUID identity the way muxer.go stamps each ingest connection with
// a unique ID at accept time.
func NewFilter(sess *Session, reg *FilterReg, name string) *Filter {
	return &Filter{
		Reg:             reg,
		Name:            name,
		ID:              uuid.NewString(),
		Args:            make(map[string]string),
		AllocReservoir:  pkt.NewAllocReservoir(),
		SharedReservoir: pkt.NewAllocReservoir(),
		InstReservoir:   pkt.NewAllocReservoir(),
		Blacklisted:     make(map[string]bool),
		session:         sess,
	}
}

func (f *Filter) incWouldBlock() {
	atomic.AddInt32(&f.wouldBlock, 1)
}

// decWouldBlock decrements the filter's would-block counter and reports
// whether it has dropped below the filter's output-PID count, the
// condition spec.md §4.9 uses to re-post a process task.
func (f *Filter) decWouldBlock() bool {
	n := atomic.AddInt32(&f.wouldBlock, -1)
	if n < 0 {
		atomic.StoreInt32(&f.wouldBlock, 0)
		n = 0
	}
	f.tasksMx.Lock()
	numOut := len(f.outputPids)
	f.tasksMx.Unlock()
	return int(n) < numOut
}

// RequestProcess lets a FilterImpl ask to be scheduled again, the way a
// pull-mode source re-arms itself at the end of its own Process call
// after producing one unit of output.
func (f *Filter) RequestProcess() { f.postProcess() }

// postProcess enqueues a process task for this filter if one is not
// already in flight (spec.md §5 "at most one process task in flight").
func (f *Filter) postProcess() {
	if f.session == nil {
		return
	}
	if f.processTaskQueued.CompareAndSwap(false, true) {
		f.session.scheduler.Post(Task{Kind: TaskProcess, Filter: f})
	}
}

// Session returns the owning session, letting a FilterImpl reach
// session-level operations (new_pid, send, remove_filter) from its own
// package without the core exposing a package-level global (spec.md §9
// "no global mutable state ... callers hold a session handle").
func (f *Filter) Session() *Session { return f.session }

// InputPids returns a snapshot of currently connected input PidInsts.
func (f *Filter) InputPids() []*PidInst {
	f.tasksMx.Lock()
	defer f.tasksMx.Unlock()
	out := make([]*PidInst, len(f.inputPids))
	copy(out, f.inputPids)
	return out
}

// OutputPids returns a snapshot of this filter's output PIDs.
func (f *Filter) OutputPids() []*Pid {
	f.tasksMx.Lock()
	defer f.tasksMx.Unlock()
	out := make([]*Pid, len(f.outputPids))
	copy(out, f.outputPids)
	return out
}

func (f *Filter) addInputPid(pi *PidInst) {
	f.tasksMx.Lock()
	f.inputPids = append(f.inputPids, pi)
	f.tasksMx.Unlock()
}

func (f *Filter) removeInputPid(pi *PidInst) {
	f.tasksMx.Lock()
	defer f.tasksMx.Unlock()
	for i, cur := range f.inputPids {
		if cur == pi {
			f.inputPids = append(f.inputPids[:i], f.inputPids[i+1:]...)
			f.DetachedPidInst = append(f.DetachedPidInst, pi)
			return
		}
	}
}

func (f *Filter) addOutputPid(p *Pid) {
	f.tasksMx.Lock()
	f.outputPids = append(f.outputPids, p)
	f.pendingPids = append(f.pendingPids, p)
	f.tasksMx.Unlock()
}

// HasPendingPids reports whether this filter has output PIDs awaiting
// pid_init (spec.md §3 has_pending_pids).
func (f *Filter) HasPendingPids() bool {
	f.tasksMx.Lock()
	defer f.tasksMx.Unlock()
	return len(f.pendingPids) > 0
}

func (f *Filter) popPendingPid() (*Pid, bool) {
	f.tasksMx.Lock()
	defer f.tasksMx.Unlock()
	if len(f.pendingPids) == 0 {
		return nil, false
	}
	p := f.pendingPids[0]
	f.pendingPids = f.pendingPids[1:]
	return p, true
}

// QueuePostponed buffers a packet that could not be dispatched because
// output connections are still pending (spec.md §4.6 step 2).
func (f *Filter) QueuePostponed(p *pkt.Packet) {
	f.tasksMx.Lock()
	f.postponedPackets = append(f.postponedPackets, p)
	f.tasksMx.Unlock()
}

// DrainPostponed returns and clears buffered postponed packets, called
// once output-connection-pending drops to zero (spec.md §4.5).
func (f *Filter) DrainPostponed() []*pkt.Packet {
	f.tasksMx.Lock()
	defer f.tasksMx.Unlock()
	out := f.postponedPackets
	f.postponedPackets = nil
	return out
}

// IsReassignableSource reports whether f is eligible for the resolver's
// source-registry swap fallback (spec.md §4.3 step "Failure"): no
// inputs, not sticky, no pending outputs.
func (f *Filter) IsReassignableSource() bool {
	f.tasksMx.Lock()
	defer f.tasksMx.Unlock()
	return len(f.inputPids) == 0 && !f.Sticky && len(f.pendingPids) == 0
}

// EligibleForRemoval reports the destruction candidacy predicate of
// spec.md §4.12: dynamic, no inputs, no outputs, no pending connections.
func (f *Filter) EligibleForRemoval() bool {
	f.tasksMx.Lock()
	defer f.tasksMx.Unlock()
	return f.DynamicFilter &&
		len(f.inputPids) == 0 &&
		len(f.outputPids) == 0 &&
		atomic.LoadInt32(&f.inPidConnPending) == 0 &&
		atomic.LoadInt32(&f.outPidConnPending) == 0
}
