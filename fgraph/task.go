/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fgraph

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// TaskKind selects which scheduler handler processes a Task.
type TaskKind uint8

const (
	TaskProcess TaskKind = iota
	TaskPidInit
	TaskPidConnect
	TaskPidReconfigure
	TaskDeletePidInst
	TaskDownstreamEvent
	TaskUpstreamEvent
)

// Task is one unit of scheduled work, spec.md §5's "parallel threads plus
// a work-stealing task pool". Grounded on ingest.Muxer's per-connection
// goroutine supervision, generalized from one task kind (read loop) to
// the filter graph's several posted-task kinds, all funneled through one
// worker pool so "at most one process task per filter" is enforceable
// centrally rather than per-goroutine.
type Task struct {
	Kind    TaskKind
	Filter  *Filter
	Pid     *Pid
	PidInst *PidInst
	Event   *Event

	// requeueAfter is carried on the Task but not read by the scheduler;
	// delayed re-posting of a task goes through PostDelayed.
	requeueAfter time.Duration
}

// Scheduler is the work-stealing task pool of spec.md §5: an unbounded
// work queue drained by a fixed worker pool built on errgroup, following
// the same "spawn N workers, fan results/errors back through one group"
// idiom ingest.Muxer uses for its per-connection goroutines.
type Scheduler struct {
	tasks   chan Task
	group   *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	sess    *Session
}

// NewScheduler starts a scheduler with numWorkers goroutines draining an
// internal task channel. Call Stop to drain and shut down.
func NewScheduler(sess *Session, numWorkers int, queueDepth int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	s := &Scheduler{
		tasks:  make(chan Task, queueDepth),
		group:  group,
		ctx:    gctx,
		cancel: cancel,
		sess:   sess,
	}
	for i := 0; i < numWorkers; i++ {
		group.Go(s.worker)
	}
	return s
}

// Post enqueues a task, never blocking the caller for long: if the queue
// is momentarily full it spills to a short-lived goroutine rather than
// stalling the filter that posted it (mirrors requeue_request semantics
// for a saturated pool).
func (s *Scheduler) Post(t Task) {
	select {
	case s.tasks <- t:
	default:
		go func() { s.tasks <- t }()
	}
}

// PostDelayed schedules t to be posted again after d (spec.md §5
// "requeue_request ... and a delay").
func (s *Scheduler) PostDelayed(t Task, d time.Duration) {
	timer := time.NewTimer(d)
	go func() {
		defer timer.Stop()
		select {
		case <-timer.C:
			s.Post(t)
		case <-s.ctx.Done():
		}
	}()
}

func (s *Scheduler) worker() error {
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case t := <-s.tasks:
			s.dispatch(t)
		}
	}
}

func (s *Scheduler) dispatch(t Task) {
	switch t.Kind {
	case TaskProcess:
		s.sess.runProcess(t.Filter)
	case TaskPidInit:
		s.sess.runPidInit(t.Pid)
	case TaskPidConnect:
		s.sess.runPidConnect(t.Pid, t.Filter)
	case TaskPidReconfigure:
		s.sess.runPidReconfigure(t.PidInst)
	case TaskDeletePidInst:
		s.sess.runDeletePidInst(t.PidInst)
	case TaskDownstreamEvent:
		s.sess.runDownstreamEvent(t.Filter, t.Event)
	case TaskUpstreamEvent:
		s.sess.runUpstreamEvent(t.Filter, t.Event)
	}
}

// Stop cancels outstanding work and waits for workers to exit.
func (s *Scheduler) Stop() {
	s.cancel()
	s.group.Wait()
}
