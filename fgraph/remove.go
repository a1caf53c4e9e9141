/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fgraph

import "github.com/gravwell/fgraph/pkt"

// RemoveFilter implements spec.md §4.12's filter_remove: breaks every
// input/output edge, emits a removed-EOS packet on each output PID, and
// destroys the filter if it is a removal candidate.
func (s *Session) RemoveFilter(f *Filter) {
	if f == nil || !f.Removed.CompareAndSwap(false, true) {
		return
	}

	for _, pid := range f.OutputPids() {
		eos := pkt.NewAlloc(0)
		info := eos.Info()
		info.Flags |= pkt.FlagCommandEOS
		eos.SetInfo(info)
		s.Send(pid, eos)

		for _, inst := range pid.Destinations() {
			s.configurePid(inst.Filter, pid, ConfigureRemove)
		}
	}

	for _, inst := range f.InputPids() {
		s.configurePid(f, inst.Pid, ConfigureRemove)
	}

	if f.EligibleForRemoval() {
		s.destroyFilter(f)
	}
}

// destroyFilter runs the finalize/reservoir-drain sequence of spec.md
// §4.12's destruction path and frees the filter's arena slot. Property
// maps of the filter's PIDs are not released here.
func (s *Session) destroyFilter(f *Filter) {
	if !f.Finalized.CompareAndSwap(false, true) {
		return
	}
	if f.Reg != nil && f.Reg.Impl != nil {
		f.Reg.Impl.Finalize(f)
	}
	f.AllocReservoir.Drain()
	f.SharedReservoir.Drain()
	f.InstReservoir.Drain()
	s.filterArena.free_(f.Handle.Index)
}
