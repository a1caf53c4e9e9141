/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fgraph

import "sync/atomic"

// fakeImpl is a minimal FilterImpl used across fgraph's tests: it counts
// how many times each lifecycle hook fires and never itself cancels
// events, so tests can assert on propagation without a real codec.
type fakeImpl struct {
	processCalls    atomic.Int32
	configureCalls  atomic.Int32
	initializeCalls atomic.Int32
	finalizeCalls   atomic.Int32
	cancelEvents    bool
}

func (f *fakeImpl) Initialize(*Filter) error {
	f.initializeCalls.Add(1)
	return nil
}

func (f *fakeImpl) Finalize(*Filter) {
	f.finalizeCalls.Add(1)
}

func (f *fakeImpl) ConfigurePid(*Filter, *PidInst, ConfigureMode) error {
	f.configureCalls.Add(1)
	return nil
}

func (f *fakeImpl) Process(*Filter) error {
	f.processCalls.Add(1)
	return nil
}

func (f *fakeImpl) ProcessEvent(*Filter, *Event) bool {
	return f.cancelEvents
}
