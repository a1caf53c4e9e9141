/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fgraph

import (
	"time"

	"github.com/gravwell/fgraph/pkt"
	"github.com/gravwell/fgraph/prop"
)

// runPidInit implements spec.md §4.4's pid_init task, executed on the
// output PID's owner filter.
func (s *Session) runPidInit(p *Pid) {
	defer func() { p.InitTaskPending = false }()

	if p.Filter == nil {
		return
	}
	defer p.Filter.popPendingPid()

	connected := false
	for pass := 0; pass < 2 && !connected; pass++ {
		allowResolver := pass == 1

		s.mu.Lock()
		candidates := make([]*Filter, len(s.filters))
		copy(candidates, s.filters)
		s.mu.Unlock()

		for _, cand := range candidates {
			if cand == p.Filter {
				continue
			}
			if cand.MaxExtraPids > 0 && len(cand.InputPids()) >= cand.MaxExtraPids {
				continue
			}
			if isReentrant(p.Filter, cand) {
				continue
			}
			if cand.SourceIDs != "" && !sourceIDMatches(cand.SourceIDs, p.Filter.ID, p.Caps()) {
				continue
			}

			if MatchInputBundle(cand.Reg, p.Caps()) >= 0 {
				s.scheduler.Post(Task{Kind: TaskPidConnect, Pid: p, Filter: cand})
				connected = true
				continue
			}

			if allowResolver {
				if chain, err := s.ResolveLink(p, cand); err == nil && len(chain) > 0 {
					head, err := s.AddFilter(chain[0].Name, chain[0].Name+"@resolved")
					if err == nil {
						head.DynamicFilter = true
						head.DstFilter = cand
						head.TargetFilter = cand
						head.CapIdxAtResolution = MatchInputBundle(chain[0], p.Caps())
						s.scheduler.Post(Task{Kind: TaskPidConnect, Pid: p, Filter: head})
						connected = true
					}
				}
			}
		}
	}

	if !connected && !s.looseConnect {
		// No warning is emitted for an unconnected PID: the core holds
		// no logger, and no caller reports this case either.
	}
}

// isReentrant reports whether cand appears anywhere in src's ancestor
// chain, the re-entrancy check of spec.md §4.4 step 3.
func isReentrant(src, cand *Filter) bool {
	for f := src; f != nil; f = f.DstFilter {
		if f == cand {
			return true
		}
		if f.DstFilter == f {
			break
		}
	}
	return false
}

// runPidConnect performs the configure_pid Connect transition of
// spec.md §4.5 for (pid, dstFilter).
func (s *Session) runPidConnect(pid *Pid, dstFilter *Filter) {
	s.configurePid(dstFilter, pid, ConfigureConnect)
}

// configurePid implements spec.md §4.5's configure_pid state machine.
func (s *Session) configurePid(f *Filter, pid *Pid, mode ConfigureMode) error {
	switch mode {
	case ConfigureConnect:
		var inst *PidInst
		for _, d := range f.DetachedPidInst {
			if d.Pid == pid {
				inst = d
				break
			}
		}
		if inst == nil {
			inst = NewPidInst(pid, f, s.useLockFree, s.lockFreeCapacity)
		}
		f.addInputPid(inst)
		pid.AddDestination(inst)

		if hasProp(pid, "decoder_input") {
			inst.IsDecoderInput = true
		}

		var err error
		if f.Reg != nil && f.Reg.Impl != nil {
			err = f.Reg.Impl.ConfigurePid(f, inst, ConfigureConnect)
		}
		if err != nil {
			f.LastError = err
			f.Status = err.Error()
			s.setLastConnectError(err)
			if f.Reg.hasFlag(RegReconfigureOutput) {
				clone, cerr := s.AddFilter(f.Reg.Name, f.Name+"#clone")
				if cerr == nil {
					return s.configurePid(clone, pid, ConfigureConnect)
				}
			}
			pid.Filter.Blacklisted[f.Reg.Name] = true
			s.scheduler.Post(Task{Kind: TaskPidInit, Pid: pid})
			return err
		}

		if len(f.DrainPostponed()) > 0 {
			f.postProcess()
		}
		return nil

	case ConfigureReconfig:
		if f.Reg != nil && f.Reg.Impl != nil {
			return f.Reg.Impl.ConfigurePid(f, nil, ConfigureReconfig)
		}
		return nil

	case ConfigureRemove:
		for _, inst := range f.InputPids() {
			if inst.Pid != pid {
				continue
			}
			f.removeInputPid(inst)
			pid.RemoveDestination(inst)
			if f.Reg != nil && f.Reg.Impl != nil {
				f.Reg.Impl.ConfigurePid(f, inst, ConfigureRemove)
			}
		}
		if len(f.InputPids()) == 0 && !f.Sticky {
			f.DynamicFilter = true
		}
		return nil
	}
	return ErrBadParam
}

func hasProp(pid *Pid, name string) bool {
	_, ok := pid.GetProperty(prop.KeyName(name))
	return ok
}

// runPidReconfigure handles a pid_reconfigure task posted when a
// discard_inputs destination observes changed properties (spec.md §4.6
// step 6).
func (s *Session) runPidReconfigure(inst *PidInst) {
	if inst == nil {
		return
	}
	s.configurePid(inst.Filter, inst.Pid, ConfigureReconfig)
}

// runDeletePidInst requeues itself until the PID's shared-packet counter
// drains to zero, then fully detaches the instance (spec.md §5
// "Cancellation/timeouts": delete-pid-instance requeues until
// nb_shared_packets_out == 0).
func (s *Session) runDeletePidInst(inst *PidInst) {
	if inst == nil || inst.Pid == nil {
		return
	}
	if inst.Pid.NbSharedPacketsOut > 0 {
		s.scheduler.PostDelayed(Task{Kind: TaskDeletePidInst, PidInst: inst}, time.Millisecond)
		return
	}
	s.configurePid(inst.Filter, inst.Pid, ConfigureRemove)
}

// runProcess invokes the filter type's Process hook and clears the
// in-flight flag so a future postProcess can schedule again
// (spec.md §5 "at most one process task in flight").
func (s *Session) runProcess(f *Filter) {
	defer f.processTaskQueued.Store(false)
	if f.Reg == nil || f.Reg.Impl == nil {
		return
	}
	if err := f.Reg.Impl.Process(f); err != nil {
		// Transient process errors set the filter's status but do not
		// stop it from being scheduled again (spec.md §7).
		f.LastError = err
		f.Status = err.Error()
		s.setLastProcessError(err)
	}
}

// Send implements spec.md §4.6's packet dispatch state machine from a
// source Pid to every connected destination PidInst.
func (s *Session) Send(pid *Pid, p *pkt.Packet) error {
	if pid.DiscardInputPackets {
		p.Unref()
		return nil
	}

	f := pid.Filter
	if f != nil && f.HasPendingPids() {
		f.QueuePostponed(p)
		return ErrPendingPacket
	}

	info := p.Info()
	if info.Flags&pkt.FlagCommandEOS != 0 {
		pid.HasSeenEOS = true
	} else if pid.HasSeenEOS {
		pid.HasSeenEOS = false
	}

	if p.PidProps() == nil {
		if cur := pid.CurrentProps(); cur != nil {
			p.SetPidProps(cur)
		}
	}

	reconstructTimestamps(pid, &info)
	p.SetInfo(info)

	dests := pid.Destinations()
	delivered := false
	for _, inst := range dests {
		if inst.DiscardInputs {
			if info.Flags&pkt.FlagPropsChanged != 0 {
				inst.ReconfigPidProps = p.PidProps()
				s.scheduler.Post(Task{Kind: TaskPidReconfigure, PidInst: inst})
			}
			continue
		}

		pc := pkt.NewRef(p)

		switch {
		case inst.RequiresFullDataBlock:
			switch {
			case info.Flags&pkt.FlagBlockStart != 0 && info.Flags&pkt.FlagBlockEnd != 0:
				inst.Enqueue(pc)
				delivered = true
			case info.Flags&pkt.FlagBlockStart != 0:
				if inst.reassembly.started {
					if agg := inst.finishReassembly(f.AllocReservoir); agg != nil {
						inst.Enqueue(agg)
						delivered = true
					}
				}
				inst.beginReassembly(pc)
			case info.Flags&pkt.FlagBlockEnd != 0:
				inst.appendReassembly(pc)
				if agg := inst.finishReassembly(f.AllocReservoir); agg != nil {
					inst.Enqueue(agg)
					delivered = true
				}
			default:
				if inst.reassembly.started {
					inst.appendReassembly(pc)
				} else {
					inst.Enqueue(pc)
					delivered = true
				}
			}
		default:
			inst.Enqueue(pc)
			inst.BufferDuration += int64(info.Duration)
			delivered = true
		}

		if f != nil {
			f.postProcess()
		}
		dstFilter := inst.Filter
		if dstFilter != nil {
			dstFilter.postProcess()
		}
	}

	// One Send call advances the PID's own backpressure accounting once,
	// independent of fan-out count (spec.md §4.9): a PID blocks on its own
	// outstanding buffer occupancy, not on how many destinations it has.
	if delivered {
		wasBlocked := pid.ShouldBlock()
		pid.mu.Lock()
		pid.BufferDuration += int64(info.Duration)
		pid.NbBufferUnit++
		pid.mu.Unlock()
		pid.UpdateBlockingState(wasBlocked)
	}

	// Send() consumes the single reference the caller held (spec.md §4.6
	// step 7's "if no destination accepts the packet, destroy it" — and,
	// symmetrically, once distributed via per-destination pkt.NewRef
	// calls above, the dispatcher's own copy of the reference is spent).
	p.Unref()
	return nil
}

// reconstructTimestamps fills in missing DTS/CTS per spec.md §4.6 step 5.
func reconstructTimestamps(pid *Pid, info *pkt.Info) {
	if info.DTS == pkt.NoTimestamp && info.CTS != pkt.NoTimestamp {
		info.DTS = info.CTS
	}
	if info.DTS == pkt.NoTimestamp && info.CTS == pkt.NoTimestamp {
		return
	}
	ts := &pid.Timestamps
	if ts.RecomputeDTS {
		delta := info.CTS - ts.MinCTS
		if delta < 0 {
			delta = -delta
		}
		dur := ts.MinDuration
		if uint32(delta) < dur || dur == 0 {
			dur = uint32(delta)
		}
		if info.DTS <= ts.LastDTS {
			ts.NbUnreliableDTS++
			info.DTS = ts.LastDTS + int64(dur)
		}
	}
	if info.CTS < ts.MinCTS || !ts.DurationInit {
		ts.MinCTS = info.CTS
	}
	if info.CTS > ts.MaxCTS {
		ts.MaxCTS = info.CTS
	}
	if !ts.DurationInit || info.Duration < ts.MinDuration {
		ts.MinDuration = info.Duration
		ts.DurationInit = true
	}
	ts.LastDTS = info.DTS
	ts.LastCTS = info.CTS
}
