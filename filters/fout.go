/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package filters

import (
	"os"

	"github.com/gravwell/fgraph/fgraph"
	"github.com/gravwell/fgraph/pkt"
	"github.com/gravwell/fgraph/prop"
)

// foutState is fout's per-instance state.
type foutState struct {
	f *os.File
}

type foutImpl struct{}

func (foutImpl) Initialize(f *fgraph.Filter) error {
	path := f.Args["dst"]
	if path == "" {
		return errNoDst
	}
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	f.UserData = &foutState{f: fh}
	return nil
}

func (foutImpl) Finalize(f *fgraph.Filter) {
	if st, ok := f.UserData.(*foutState); ok && st.f != nil {
		st.f.Close()
	}
}

// ConfigurePid accepts any input connection; fout has no destination
// caps to negotiate beyond "something is arriving".
func (foutImpl) ConfigurePid(f *fgraph.Filter, pid *fgraph.PidInst, mode fgraph.ConfigureMode) error {
	return nil
}

// Process drains every queued packet on every connected input, writing its
// payload and dropping it, the way singleFile/main.go's scan loop writes
// one entry at a time and moves on.
func (foutImpl) Process(f *fgraph.Filter) error {
	st, ok := f.UserData.(*foutState)
	if !ok {
		return nil
	}
	for _, inst := range f.InputPids() {
		for {
			p, has := inst.GetPacket()
			if !has {
				break
			}
			info := p.Info()
			if _, err := st.f.Write(p.Data()); err != nil {
				inst.DropPacket()
				return err
			}
			if info.Flags&pkt.FlagCommandEOS != 0 {
				inst.SetEOS()
			}
			inst.DropPacket()
		}
	}
	return nil
}

func (foutImpl) ProcessEvent(f *fgraph.Filter, evt *fgraph.Event) bool { return false }

// foutReg returns the "fout" FilterReg: a single input bundle that accepts
// any stream_type, or none, via an excluded capability item whose zero
// value no real stream_type equals.
func foutReg() *fgraph.FilterReg {
	return &fgraph.FilterReg{
		Name: "fout",
		Args: "dst=PATH",
		Caps: []fgraph.CapItem{
			{Dir: fgraph.CapInput, Key: prop.KeyName("stream_type"), Flags: fgraph.CapExcluded},
		},
		Impl: foutImpl{},
	}
}
