/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fgraph

// EventType discriminates the Event tagged union, spec.md §3 Event.
type EventType uint8

const (
	EventPlay EventType = iota
	EventStop
	EventPause
	EventResume
	EventSetSpeed
	EventSourceSeek
	EventSourceSwitch
	EventSegmentSize
	EventQualitySwitch
	EventVisibilityHint
	EventInfoUpdate
	EventBufferReq
	EventUser
	EventCapsChange
	EventConnectFail
)

// PlayData carries spec.md §3's Play(start_range, speed, flags) payload.
type PlayData struct {
	StartRange float64
	Speed      float64
	Flags      uint32
}

// SourceSeekData carries SourceSeek's payload.
type SourceSeekData struct {
	Offset               uint64
	EndOffset            uint64
	SwitchURL             string
	SkipCacheExpiration   bool
	HintBlockSize         uint32
}

// QualitySwitchData carries QualitySwitch's payload.
type QualitySwitchData struct {
	Up                  bool
	DepGroupIdx         int
	QIdx                int
	TileMode            int
	QualityDegradation  int
}

// VisibilityHintData carries VisibilityHint's payload.
type VisibilityHintData struct {
	MinX, MinY, MaxX, MaxY uint32
	IsGaze                 bool
}

// BufferReqData carries BufferReq's payload.
type BufferReqData struct {
	MaxBufferUS    int64
	MaxPlayoutUS   int64
	MinPlayoutUS   int64
	PidOnly        bool
}

// Event is the tagged union of spec.md §3: every variant shares the
// {type, on_pid} base and carries its own payload struct.
type Event struct {
	Type  EventType
	OnPid *Pid

	Play           PlayData
	SourceSeek     SourceSeekData
	QualitySwitch  QualitySwitchData
	VisibilityHint VisibilityHintData
	BufferReq      BufferReqData
	User           any

	cancelled bool
}

// Cancel marks the event as cancelled; further propagation stops
// (spec.md §5 "ProcessEvent returning true cancels further propagation").
func (e *Event) Cancel() { e.cancelled = true }

// Cancelled reports whether a prior handler cancelled the event.
func (e *Event) Cancelled() bool { return e.cancelled }

// SendEvent posts a downstream event targeting pid's owning filter
// (spec.md §4.10 downstream path, §6 pid_send_event). Grounded on
// bgpfix's pipe package event-handler-table dispatch model: a filter's
// ProcessEvent plays the role of one of bgpfix's registered pipe
// callbacks, with a boolean cancel return instead of an error.
func (s *Session) SendEvent(pid *Pid, evt *Event) {
	evt.OnPid = pid
	if pid.Filter == nil {
		return
	}
	s.scheduler.Post(Task{Kind: TaskDownstreamEvent, Filter: pid.Filter, Event: evt})
}

// FilterSendEvent posts an upstream event from f (spec.md §6
// filter_send_event, §4.10 upstream path).
func (s *Session) FilterSendEvent(f *Filter, evt *Event) {
	s.scheduler.Post(Task{Kind: TaskUpstreamEvent, Filter: f, Event: evt})
}

// runDownstreamEvent implements spec.md §4.10's downstream path.
func (s *Session) runDownstreamEvent(f *Filter, evt *Event) {
	if f == nil || evt == nil {
		return
	}

	handleEventStateTransition(evt)

	if f.Reg != nil && f.Reg.Impl != nil {
		if f.Reg.Impl.ProcessEvent(f, evt) {
			evt.Cancel()
		}
	}

	if evt.Type == EventBufferReq && evt.OnPid != nil {
		pid := evt.OnPid
		applyBufferReq(pid, evt.BufferReq)
		evt.Cancel()
	}

	if evt.Cancelled() {
		return
	}

	for _, inst := range f.InputPids() {
		dup := *evt
		dup.cancelled = false
		dup.OnPid = inst.Pid
		if inst.Pid != nil && inst.Pid.Filter != nil {
			s.scheduler.Post(Task{Kind: TaskDownstreamEvent, Filter: inst.Pid.Filter, Event: &dup})
		}
	}
}

// runUpstreamEvent implements spec.md §4.10's upstream path.
func (s *Session) runUpstreamEvent(f *Filter, evt *Event) {
	if f == nil || evt == nil {
		return
	}
	if f.Reg != nil && f.Reg.Impl != nil {
		if f.Reg.Impl.ProcessEvent(f, evt) {
			evt.Cancel()
		}
	}
	if evt.Cancelled() {
		return
	}
	for _, pid := range f.OutputPids() {
		for _, inst := range pid.Destinations() {
			dup := *evt
			dup.cancelled = false
			dup.OnPid = pid
			if inst.Filter != nil {
				s.scheduler.Post(Task{Kind: TaskUpstreamEvent, Filter: inst.Filter, Event: &dup})
			}
		}
	}
}

// handleEventStateTransition applies spec.md §4.10's Play/Stop/Seek
// side effects on the targeted PID: is_playing flip, reset-on-play.
func handleEventStateTransition(evt *Event) {
	pid := evt.OnPid
	if pid == nil {
		return
	}
	switch evt.Type {
	case EventPlay:
		firstPlay := !pid.IsPlaying
		pid.IsPlaying = true
		if evt.Play.StartRange == 0 && firstPlay {
			return
		}
		if evt.Play.StartRange != 0 {
			resetPidDestinations(pid)
		}
	case EventStop:
		if !pid.IsPlaying {
			evt.Cancel()
			return
		}
		pid.IsPlaying = false
	case EventSourceSeek:
		resetPidDestinations(pid)
	}
}

func resetPidDestinations(pid *Pid) {
	for _, inst := range pid.Destinations() {
		inst.DiscardPackets = true
	}
}

func applyBufferReq(pid *Pid, req BufferReqData) {
	dests := pid.Destinations()
	relevant := false
	for _, inst := range dests {
		if inst.IsDecoderInput {
			relevant = true
			break
		}
	}
	if !relevant && !req.PidOnly {
		return
	}
	if req.MaxBufferUS > 0 {
		pid.MaxBufferTime = req.MaxBufferUS
	}
	pid.UpdateBlockingState(pid.WouldBlock > 0)
}
