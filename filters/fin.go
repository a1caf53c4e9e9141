/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package filters provides the minimal generic filter types cmd/fgrun
// needs to run a graph end to end: a file source and a file sink. Concrete
// media-codec filters are out of scope (spec.md §1 Non-goals); these two
// are format-agnostic byte-stream plumbing, grounded on singleFile/main.go's
// open-read-loop-close idiom.
package filters

import (
	"errors"
	"io"
	"os"

	"github.com/gravwell/fgraph/fgraph"
	"github.com/gravwell/fgraph/pkt"
	"github.com/gravwell/fgraph/prop"
)

const finChunkSize = 64 * 1024

var (
	errNoSrc = errors.New("filters: fin requires src=PATH")
	errNoDst = errors.New("filters: fout requires dst=PATH")
)

// finState is fin's per-instance state, held on Filter.UserData since
// finReg.Impl is one value shared by every "fin" instance.
type finState struct {
	f   *os.File
	out *fgraph.Pid
	eos bool
}

type finImpl struct{}

// Initialize opens the source file and creates fin's single output PID,
// mirroring singleFile/main.go's OpenFileReader-then-ingest sequencing.
func (finImpl) Initialize(f *fgraph.Filter) error {
	path := f.Args["src"]
	if path == "" {
		return errNoSrc
	}
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	st := &finState{f: fh}
	f.UserData = st
	st.out = f.Session().NewOutputPid(f, "output")
	st.out.SetProperty(prop.KeyName("stream_type"), prop.String("file", prop.StringOwned))
	return nil
}

func (finImpl) Finalize(f *fgraph.Filter) {
	if st, ok := f.UserData.(*finState); ok && st.f != nil {
		st.f.Close()
	}
}

func (finImpl) ConfigurePid(f *fgraph.Filter, pid *fgraph.PidInst, mode fgraph.ConfigureMode) error {
	return fgraph.ErrNotSupported
}

// Process reads one chunk and sends it, re-arming itself for the next
// chunk until EOF, at which point it sends a single EOS command packet.
func (finImpl) Process(f *fgraph.Filter) error {
	st, ok := f.UserData.(*finState)
	if !ok || st.eos {
		return nil
	}
	buf := make([]byte, finChunkSize)
	n, err := st.f.Read(buf)
	if n > 0 {
		p := pkt.NewAlloc(n)
		copy(p.Data(), buf[:n])
		info := p.Info()
		info.Duration = 1
		p.SetInfo(info)
		f.Session().Send(st.out, p)
	}
	if err != nil {
		st.eos = true
		eosPkt := pkt.NewAlloc(0)
		info := eosPkt.Info()
		info.Flags |= pkt.FlagCommandEOS
		eosPkt.SetInfo(info)
		f.Session().Send(st.out, eosPkt)
		if !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	}
	f.RequestProcess()
	return nil
}

func (finImpl) ProcessEvent(f *fgraph.Filter, evt *fgraph.Event) bool { return false }

// finReg returns the "fin" FilterReg (one output PID, file-backed source).
func finReg() *fgraph.FilterReg {
	return &fgraph.FilterReg{
		Name: "fin",
		Args: "src=PATH",
		Caps: []fgraph.CapItem{
			{Dir: fgraph.CapOutput, Key: prop.KeyName("stream_type"), Value: prop.String("file", prop.StringOwned)},
		},
		Impl: finImpl{},
	}
}
