/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fgraph

import (
	"strconv"
	"strings"
	"sync"

	"github.com/gravwell/fgraph/pkt"
	"github.com/gravwell/fgraph/prop"
)

// arenaSlot is one entry of a handle arena: the live pointer plus the
// generation that was stamped into every handle referencing it. A slot
// whose live flag is false is freed and reusable
// (spec.md §9 "arena handles with generation counters instead of raw
// pointers").
type arenaSlot[T any] struct {
	val T
	gen uint32
	live bool
}

type handleArena[T any] struct {
	mu    sync.Mutex
	slots []arenaSlot[T]
	free  []uint32
}

func (a *handleArena[T]) alloc(v T) (idx, gen uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[idx].gen++
		a.slots[idx].val = v
		a.slots[idx].live = true
		return idx, a.slots[idx].gen
	}
	idx = uint32(len(a.slots))
	a.slots = append(a.slots, arenaSlot[T]{val: v, gen: 1, live: true})
	return idx, 1
}

func (a *handleArena[T]) resolve(idx, gen uint32) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var zero T
	if int(idx) >= len(a.slots) {
		return zero, false
	}
	s := a.slots[idx]
	if !s.live || s.gen != gen {
		return zero, false
	}
	return s.val, true
}

func (a *handleArena[T]) free_(idx uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(idx) >= len(a.slots) {
		return
	}
	a.slots[idx].live = false
	var zero T
	a.slots[idx].val = zero
	a.free = append(a.free, idx)
}

// Session owns the filter graph's registry, every live Filter and Pid,
// and the task scheduler. Grounded on ingest.Muxer, which plays the
// analogous "owns every connection, every ingest channel, the shared
// wire-format config" role for an ingest pipeline — generalized here
// from a fixed tag/connection set to a dynamically resolved filter
// graph (spec.md §9 "no global mutable state; the session owns
// everything").
type Session struct {
	Registry *Registry

	filterArena handleArena[*Filter]
	pidArena    handleArena[*Pid]

	preferredRegistries map[string]bool
	maxChainLen         int
	useLockFree         bool
	lockFreeCapacity    int
	looseConnect        bool

	scheduler *Scheduler

	mu      sync.Mutex
	filters []*Filter

	errMu             sync.Mutex
	lastConnectError  error
	lastProcessError  error
}

// LastConnectError returns the most recent configure_pid failure observed
// session-wide (spec.md §7 "a single session-wide last_connect_error").
func (s *Session) LastConnectError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastConnectError
}

// LastProcessError returns the most recent process failure observed
// session-wide (spec.md §7 "last_process_error"); the filter that
// produced it continues to be scheduled, per the same section.
func (s *Session) LastProcessError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastProcessError
}

func (s *Session) setLastConnectError(err error) {
	s.errMu.Lock()
	s.lastConnectError = err
	s.errMu.Unlock()
}

func (s *Session) setLastProcessError(err error) {
	s.errMu.Lock()
	s.lastProcessError = err
	s.errMu.Unlock()
}

// SessionOption configures a Session at construction time.
type SessionOption func(*Session)

func WithPreferredRegistries(names ...string) SessionOption {
	return func(s *Session) {
		for _, n := range names {
			s.preferredRegistries[n] = true
		}
	}
}

func WithMaxChainLen(n int) SessionOption {
	return func(s *Session) { s.maxChainLen = n }
}

func WithLockFreeQueues(capacity int) SessionOption {
	return func(s *Session) { s.useLockFree = true; s.lockFreeCapacity = capacity }
}

func WithLooseConnect() SessionOption {
	return func(s *Session) { s.looseConnect = true }
}

// NewSession builds a session around reg, starting a scheduler with
// numWorkers goroutines.
func NewSession(reg *Registry, numWorkers int, opts ...SessionOption) *Session {
	s := &Session{
		Registry:            reg,
		preferredRegistries: make(map[string]bool),
		lockFreeCapacity:    256,
	}
	for _, o := range opts {
		o(s)
	}
	queueDepth := numWorkers * 4
	if queueDepth < 16 {
		queueDepth = 16
	}
	s.scheduler = NewScheduler(s, numWorkers, queueDepth)
	return s
}

// Stop shuts down the scheduler.
func (s *Session) Stop() { s.scheduler.Stop() }

// Filters returns a snapshot of every live filter in the session, for
// callers that need to walk the whole graph (e.g. a CLI driver polling
// for completion).
func (s *Session) Filters() []*Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Filter, len(s.filters))
	copy(out, s.filters)
	return out
}

// AddFilter instantiates regName as a new live filter, running its
// Initialize hook (spec.md §3 FilterReg.initialize).
func (s *Session) AddFilter(regName, instanceName string) (*Filter, error) {
	return s.AddFilterArgs(regName, instanceName, nil)
}

// AddFilterArgs is AddFilter with a CLI-parsed "arg=val" map (spec.md §6)
// stamped onto the filter before Initialize runs, so a filter's
// Initialize hook can read its own configuration (e.g. a source/sink
// filter reading its src/dst URI).
func (s *Session) AddFilterArgs(regName, instanceName string, args map[string]string) (*Filter, error) {
	reg, err := s.Registry.Lookup(regName)
	if err != nil {
		return nil, err
	}
	f := NewFilter(s, reg, instanceName)
	for k, v := range args {
		f.Args[k] = v
	}
	idx, gen := s.filterArena.alloc(f)
	f.Handle = pkt.FilterHandle{Index: idx, Generation: gen}

	s.mu.Lock()
	s.filters = append(s.filters, f)
	s.mu.Unlock()

	if reg.Impl != nil {
		if err := reg.Impl.Initialize(f); err != nil {
			f.LastError = err
			return nil, err
		}
	}
	return f, nil
}

// ResolveFilterHandle turns a handle carried in a packet back into a live
// *Filter, or false if the filter has since been destroyed.
func (s *Session) ResolveFilterHandle(h pkt.FilterHandle) (*Filter, bool) {
	if !h.Valid() {
		return nil, false
	}
	return s.filterArena.resolve(h.Index, h.Generation)
}

// ResolvePidHandle turns a handle carried in a packet back into a live
// *Pid, or false if the PID has since been destroyed.
func (s *Session) ResolvePidHandle(h pkt.PidHandle) (*Pid, bool) {
	if !h.Valid() {
		return nil, false
	}
	return s.pidArena.resolve(h.Index, h.Generation)
}

// NewOutputPid allocates a new output Pid on f and schedules its
// pid_init task (spec.md §6 pid_new, §4.4).
func (s *Session) NewOutputPid(f *Filter, name string) *Pid {
	p := NewPid(f, name)
	idx, gen := s.pidArena.alloc(p)
	p.Handle = pkt.PidHandle{Index: idx, Generation: gen}
	p.InitTaskPending = true
	f.addOutputPid(p)
	s.scheduler.Post(Task{Kind: TaskPidInit, Pid: p})
	return p
}

// sourceIDMatches implements the source-ID scoping predicate of
// spec.md §4.4 step 3: a destination's declared source_ids filter
// (name=value, name-value for less-than, name+value for greater-than, or
// a bare stream-type token) is checked against the source filter's
// effective ID.
func sourceIDMatches(spec string, srcID string, srcProps PidCaps) bool {
	if spec == "" {
		return true
	}
	for _, clause := range strings.Split(spec, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		if clause == srcID {
			return true
		}
		if idx := strings.IndexAny(clause, "=-+"); idx > 0 {
			name, op, val := clause[:idx], clause[idx], clause[idx+1:]
			pv, has := srcProps.get(prop.KeyName(name))
			if !has {
				continue
			}
			s, _ := pv.AsString()
			n, errN := strconv.ParseFloat(s, 64)
			v, errV := strconv.ParseFloat(val, 64)
			switch op {
			case '=':
				if s == val {
					return true
				}
			case '-':
				if errN == nil && errV == nil && n < v {
					return true
				}
			case '+':
				if errN == nil && errV == nil && n > v {
					return true
				}
			}
			continue
		}
		// bare stream-type token, e.g. "audio": compared case-insensitively
		// with the PID's stream_type property and with the source ID. An
		// indexed token such as "video2" is compared as a plain string.
		if st, has := srcProps.get(prop.KeyName("stream_type")); has {
			if name, _ := st.AsString(); strings.EqualFold(clause, name) {
				return true
			}
		}
		if strings.EqualFold(clause, srcID) {
			return true
		}
	}
	return false
}

