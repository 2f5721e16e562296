// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

import "sync/atomic"

// SchedulerState represents the lifecycle state of a Kernel's scheduler.
//
// State Machine:
//
//	SchedulerAwaitingStart -> SchedulerRunning   [StartScheduler]
//	SchedulerRunning       -> SchedulerTerminated [context cancellation]
//
// Unlike a host event loop, a kernel never legitimately "sleeps" at this
// layer (that's tickless idle, an explicit Non-goal) and never
// re-enters SchedulerAwaitingStart once started.
type SchedulerState uint32

const (
	// SchedulerAwaitingStart indicates the kernel has been constructed but
	// StartScheduler has not yet been called.
	SchedulerAwaitingStart SchedulerState = 0
	// SchedulerRunning indicates the dispatch loop is active.
	SchedulerRunning SchedulerState = 1
	// SchedulerTerminated indicates the dispatch loop has returned.
	SchedulerTerminated SchedulerState = 2
)

func (s SchedulerState) String() string {
	switch s {
	case SchedulerAwaitingStart:
		return "AwaitingStart"
	case SchedulerRunning:
		return "Running"
	case SchedulerTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine over SchedulerState, adapted from
// the teacher's FastState: pure atomic CAS, no mutex.
type fastState struct {
	v atomic.Uint32
}

func newFastState() *fastState {
	s := &fastState{}
	s.v.Store(uint32(SchedulerAwaitingStart))
	return s
}

func (s *fastState) Load() SchedulerState {
	return SchedulerState(s.v.Load())
}

func (s *fastState) Store(state SchedulerState) {
	s.v.Store(uint32(state))
}

func (s *fastState) TryTransition(from, to SchedulerState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

func (s *fastState) IsTerminal() bool {
	return s.Load() == SchedulerTerminated
}

func (s *fastState) IsRunning() bool {
	return s.Load() == SchedulerRunning
}
