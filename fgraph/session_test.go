/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fgraph

import (
	"testing"
	"time"

	"github.com/gravwell/fgraph/pkt"
	"github.com/gravwell/fgraph/prop"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	reg := NewRegistry()
	sess := NewSession(reg, 2)
	t.Cleanup(sess.Stop)
	return sess
}

func TestAddFilterRunsInitialize(t *testing.T) {
	sess := newTestSession(t)
	impl := &fakeImpl{}
	reg := &FilterReg{Name: "src", Impl: impl, Caps: []CapItem{
		{Key: codecKey, Value: prop.String("h264", prop.StringOwned), Dir: CapOutput},
	}}
	if err := sess.Registry.Register(reg); err != nil {
		t.Fatal(err)
	}
	f, err := sess.AddFilter("src", "src#1")
	if err != nil {
		t.Fatal(err)
	}
	if impl.initializeCalls.Load() != 1 {
		t.Fatalf("expected Initialize called once, got %d", impl.initializeCalls.Load())
	}
	if !f.Handle.Valid() {
		t.Fatal("expected a valid filter handle")
	}
}

func newSyncTestSession(t *testing.T) *Session {
	t.Helper()
	reg := NewRegistry()
	// Zero workers: posted tasks (e.g. the automatic pid_init triggered by
	// NewOutputPid) sit in the queue rather than racing with the test's
	// own direct calls into configurePid/Send.
	sess := NewSession(reg, 0)
	t.Cleanup(sess.Stop)
	return sess
}

func TestConfigurePidConnectAndDispatchPassthrough(t *testing.T) {
	sess := newSyncTestSession(t)

	srcImpl := &fakeImpl{}
	srcReg := &FilterReg{Name: "src", Impl: srcImpl, Caps: []CapItem{
		{Key: codecKey, Value: prop.String("h264", prop.StringOwned), Dir: CapOutput},
	}}
	dstImpl := &fakeImpl{}
	dstReg := &FilterReg{Name: "sink", Impl: dstImpl, Caps: []CapItem{
		{Key: codecKey, Value: prop.String("h264", prop.StringOwned), Dir: CapInput},
	}}
	sess.Registry.Register(srcReg)
	sess.Registry.Register(dstReg)

	src, _ := sess.AddFilter("src", "src#1")
	dst, _ := sess.AddFilter("sink", "sink#1")

	// Built directly rather than via sess.NewOutputPid so the test can
	// drive configurePid/Send deterministically without the automatic
	// pid_init task (and its "has pending pids" postponement) in the way.
	pid := NewPid(src, "out0")
	pid.SetProperty(codecKey, prop.String("h264", prop.StringOwned))

	if err := sess.configurePid(dst, pid, ConfigureConnect); err != nil {
		t.Fatalf("configurePid failed: %v", err)
	}
	if dstImpl.configureCalls.Load() != 1 {
		t.Fatalf("expected ConfigurePid called once, got %d", dstImpl.configureCalls.Load())
	}
	if len(pid.Destinations()) != 1 {
		t.Fatalf("expected one destination, got %d", len(pid.Destinations()))
	}

	p := pkt.NewAlloc(4)
	copy(p.Data(), []byte("abcd"))
	if err := sess.Send(pid, p); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	inst := pid.Destinations()[0]
	if inst.QueueDepth() != 1 {
		t.Fatalf("expected 1 queued packet at destination, got %d", inst.QueueDepth())
	}
	got, ok := inst.GetPacket()
	if !ok {
		t.Fatal("expected a packet at destination")
	}
	if string(got.Data()) != "abcd" {
		t.Fatalf("expected passthrough payload abcd, got %q", got.Data())
	}
}

func TestSendDropsWhenDiscardInputPackets(t *testing.T) {
	sess := newSyncTestSession(t)
	srcReg := &FilterReg{Name: "src", Impl: &fakeImpl{}}
	sess.Registry.Register(srcReg)
	src, _ := sess.AddFilter("src", "src#1")
	pid := sess.NewOutputPid(src, "out0")
	pid.InitTaskPending = false
	pid.DiscardInputPackets = true

	p := pkt.NewAlloc(0)
	if err := sess.Send(pid, p); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(pid.Destinations()) != 0 {
		t.Fatal("expected no destinations on a bare pid")
	}
}

func TestBackpressureBlocksOnBufferUnitCeiling(t *testing.T) {
	sess := newTestSession(t)
	_ = sess
	f := &Filter{}
	pid := NewPid(f, "out0")
	pid.MaxBufferUnit = 1
	pid.NbBufferUnit = 1
	if !pid.ShouldBlock() {
		t.Fatal("expected ShouldBlock true at buffer-unit ceiling")
	}
	pid.NbBufferUnit = 0
	if pid.ShouldBlock() {
		t.Fatal("expected ShouldBlock false below ceiling")
	}
}

func TestSendUpdatesPidBackpressureAutomatically(t *testing.T) {
	sess := newSyncTestSession(t)
	srcReg := &FilterReg{Name: "src", Impl: &fakeImpl{}}
	dstReg := &FilterReg{Name: "sink", Impl: &fakeImpl{}}
	sess.Registry.Register(srcReg)
	sess.Registry.Register(dstReg)

	src, _ := sess.AddFilter("src", "src#1")
	dst, _ := sess.AddFilter("sink", "sink#1")

	pid := NewPid(src, "out0")
	pid.MaxBufferTime = 1_000_000
	inst := NewPidInst(pid, dst, false, 0)
	dst.addInputPid(inst)
	pid.AddDestination(inst)

	mkPacket := func(dur uint32) *pkt.Packet {
		p := pkt.NewAlloc(1)
		info := p.Info()
		info.Duration = dur
		p.SetInfo(info)
		return p
	}

	if err := sess.Send(pid, mkPacket(600_000)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if pid.WouldBlock != 0 {
		t.Fatalf("expected would_block 0 after first packet, got %d", pid.WouldBlock)
	}
	if err := sess.Send(pid, mkPacket(600_000)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if pid.WouldBlock != 1 {
		t.Fatalf("expected would_block 1 once max_buffer_time exceeded, got %d", pid.WouldBlock)
	}

	if _, ok := inst.GetPacket(); !ok {
		t.Fatal("expected a queued packet to drop")
	}
	inst.DropPacket()
	if pid.WouldBlock != 0 {
		t.Fatalf("expected would_block back to 0 after dropping a packet, got %d", pid.WouldBlock)
	}
}

// TestSendMarksPidEOSOnCommandPacket covers spec.md §8 scenario 5 (EOS
// propagation): a command packet carrying FlagCommandEOS flips
// Pid.HasSeenEOS, and a subsequent ordinary packet on the same Pid clears
// it again (a PID is "at EOS" only for the most recent packet observed).
func TestSendMarksPidEOSOnCommandPacket(t *testing.T) {
	sess := newSyncTestSession(t)
	srcReg := &FilterReg{Name: "src", Impl: &fakeImpl{}}
	sess.Registry.Register(srcReg)
	src, _ := sess.AddFilter("src", "src#1")

	pid := NewPid(src, "out0")

	eos := pkt.NewAlloc(0)
	info := eos.Info()
	info.Flags |= pkt.FlagCommandEOS
	eos.SetInfo(info)
	if err := sess.Send(pid, eos); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !pid.HasSeenEOS {
		t.Fatal("expected HasSeenEOS true after an EOS command packet")
	}

	p := pkt.NewAlloc(1)
	if err := sess.Send(pid, p); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if pid.HasSeenEOS {
		t.Fatal("expected HasSeenEOS false after a subsequent ordinary packet")
	}
}

func TestAddFilterArgsStampsArgsAndSessionTracksFilters(t *testing.T) {
	sess := newSyncTestSession(t)
	reg := &FilterReg{Name: "src", Impl: &fakeImpl{}}
	sess.Registry.Register(reg)

	f, err := sess.AddFilterArgs("src", "src#1", map[string]string{"src": "in.bin"})
	if err != nil {
		t.Fatal(err)
	}
	if f.Args["src"] != "in.bin" {
		t.Fatalf("expected args stamped on filter, got %+v", f.Args)
	}
	found := false
	for _, cand := range sess.Filters() {
		if cand == f {
			found = true
		}
	}
	if !found {
		t.Fatal("expected Filters() to include the newly added filter")
	}
}

func TestEventDownstreamPropagatesToInputPids(t *testing.T) {
	sess := newSyncTestSession(t)

	upstreamImpl := &fakeImpl{}
	upstreamReg := &FilterReg{Name: "up", Impl: upstreamImpl}
	sess.Registry.Register(upstreamReg)
	midImpl := &fakeImpl{}
	midReg := &FilterReg{Name: "mid", Impl: midImpl}
	sess.Registry.Register(midReg)

	up, _ := sess.AddFilter("up", "up#1")
	mid, _ := sess.AddFilter("mid", "mid#1")

	pid := NewPid(up, "out0")
	inst := NewPidInst(pid, mid, false, 0)
	mid.addInputPid(inst)
	pid.AddDestination(inst)

	evt := &Event{Type: EventPlay, Play: PlayData{StartRange: 0}}
	sess.runDownstreamEvent(mid, evt)

	if midImpl.processCalls.Load() != 0 {
		t.Fatal("ProcessEvent should not invoke Process")
	}

	select {
	case task := <-sess.scheduler.tasks:
		if task.Kind != TaskDownstreamEvent || task.Filter != up || task.Event == nil || task.Event.OnPid != pid {
			t.Fatalf("expected a downstream Play event for %v on the input PID's owner, got %+v", pid.Name, task)
		}
	default:
		t.Fatal("expected the Play event duplicated to the input PID's owning filter")
	}
}

func TestEventCancelStopsPropagation(t *testing.T) {
	sess := newTestSession(t)
	cancelling := &fakeImpl{cancelEvents: true}
	reg := &FilterReg{Name: "canceller", Impl: cancelling}
	sess.Registry.Register(reg)
	f, _ := sess.AddFilter("canceller", "c#1")

	pid := NewPid(f, "out0")
	downstream, _ := sess.AddFilter("canceller", "c#2")
	inst := NewPidInst(pid, downstream, false, 0)
	f.addInputPid(inst)
	pid.AddDestination(inst)

	evt := &Event{Type: EventInfoUpdate}
	sess.runDownstreamEvent(f, evt)
	if !evt.Cancelled() {
		t.Fatal("expected event to be cancelled by ProcessEvent returning true")
	}
}

func TestResolveLinkFindsOneHopChain(t *testing.T) {
	sess := newTestSession(t)
	srcReg := &FilterReg{Name: "src", Impl: &fakeImpl{}, Caps: []CapItem{
		{Key: codecKey, Value: prop.String("raw", prop.StringOwned), Dir: CapOutput},
	}}
	bridgeReg := &FilterReg{Name: "bridge", Impl: &fakeImpl{}, Caps: []CapItem{
		{Key: codecKey, Value: prop.String("raw", prop.StringOwned), Dir: CapInput},
		{Key: codecKey, Value: prop.String("h264", prop.StringOwned), Dir: CapOutput, Flags: CapInBundle},
	}}
	dstReg := &FilterReg{Name: "sink", Impl: &fakeImpl{}, Caps: []CapItem{
		{Key: codecKey, Value: prop.String("h264", prop.StringOwned), Dir: CapInput},
	}}
	sess.Registry.Register(srcReg)
	sess.Registry.Register(bridgeReg)
	sess.Registry.Register(dstReg)

	src, _ := sess.AddFilter("src", "src#1")
	dst, _ := sess.AddFilter("sink", "sink#1")
	pid := NewPid(src, "out0")
	pid.SetProperty(codecKey, prop.String("raw", prop.StringOwned))

	chain, err := sess.ResolveLink(pid, dst)
	if err != nil {
		t.Fatalf("ResolveLink failed: %v", err)
	}
	if len(chain) != 1 || chain[0].Name != "bridge" {
		t.Fatalf("expected one-hop chain through bridge, got %v", chain)
	}
}

// TestResolveLinkTerminatesOnCycle guards spec.md §8 invariant 7 (resolver
// termination): two registries whose caps each accept the other's output
// form a cycle the visited-stack must refuse to loop through forever.
func TestResolveLinkTerminatesOnCycle(t *testing.T) {
	sess := newTestSession(t)
	sess.maxChainLen = 8

	srcReg := &FilterReg{Name: "src", Impl: &fakeImpl{}, Caps: []CapItem{
		{Key: codecKey, Value: prop.String("raw", prop.StringOwned), Dir: CapOutput},
	}}
	// a and b each accept the other's output, forming a two-node cycle
	// that never reaches dst's required codec.
	aReg := &FilterReg{Name: "a", Impl: &fakeImpl{}, Caps: []CapItem{
		{Key: codecKey, Value: prop.String("raw", prop.StringOwned), Dir: CapInput},
		{Key: codecKey, Value: prop.String("mid_b", prop.StringOwned), Dir: CapOutput, Flags: CapInBundle},
	}}
	bReg := &FilterReg{Name: "b", Impl: &fakeImpl{}, Caps: []CapItem{
		{Key: codecKey, Value: prop.String("mid_b", prop.StringOwned), Dir: CapInput},
		{Key: codecKey, Value: prop.String("raw", prop.StringOwned), Dir: CapOutput, Flags: CapInBundle},
	}}
	dstReg := &FilterReg{Name: "sink", Impl: &fakeImpl{}, Caps: []CapItem{
		{Key: codecKey, Value: prop.String("h264", prop.StringOwned), Dir: CapInput},
	}}
	sess.Registry.Register(srcReg)
	sess.Registry.Register(aReg)
	sess.Registry.Register(bReg)
	sess.Registry.Register(dstReg)

	src, _ := sess.AddFilter("src", "src#1")
	dst, _ := sess.AddFilter("sink", "sink#1")
	pid := NewPid(src, "out0")
	pid.SetProperty(codecKey, prop.String("raw", prop.StringOwned))

	done := make(chan struct{})
	var chain []*FilterReg
	var err error
	go func() {
		chain, err = sess.ResolveLink(pid, dst)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ResolveLink did not terminate on a cyclic registry graph")
	}
	if err != ErrNoChain {
		t.Fatalf("expected ErrNoChain for an unreachable dst through a cycle, got chain=%v err=%v", chain, err)
	}
}
