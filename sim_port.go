// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

import (
	"context"
	"math/bits"
	"sync"
	"time"
)

// simFrame is the opaque handle SimPort hands the scheduler in place of a
// real exception frame: a goroutine that runs task code, plus the pair of
// unbuffered channels used to hand the baton back and forth between that
// goroutine and whichever goroutine is driving Dispatch.
type simFrame struct {
	entry func(arg any)
	arg   any

	resume  chan struct{} // driver -> task: run again
	yielded chan struct{} // task -> driver: I've reached a suspension point

	mu      sync.Mutex
	started bool
}

// SimPort is a cooperative, host-side Port implementation. There is no
// real Cortex-M4 to fabricate exception frames for, so each task is backed
// by a goroutine that runs until it calls Suspend on itself (from inside
// Kernel.Yield, Kernel.Delay, or a blocking primitive), at which point
// control passes back to whichever goroutine called Dispatch.
//
// True asynchronous preemption of a CPU-bound task (spec.md scenario B) has
// no host analogue without real hardware interrupts: nothing can force a
// running goroutine to stop except the goroutine itself. Kernel exposes
// CheckPreempt for exactly this gap — a task loop calls it periodically
// and it suspends the caller if a higher-priority task has since become
// ready, approximating a tick-driven preemption check at loop-iteration
// granularity instead of instruction granularity. This is a property of
// the simulation port, not of the core scheduler: a real port backed by
// PendSV delivers preemption immediately, with no task cooperation needed.
type SimPort struct{}

// NewSimPort constructs a SimPort ready for use by NewKernel.
func NewSimPort() *SimPort {
	return &SimPort{}
}

func (p *SimPort) StackInit(words uint32, entry func(arg any), arg any) any {
	_ = words // the simulation has no real stack to size; goroutines grow their own
	return &simFrame{
		entry:   entry,
		arg:     arg,
		resume:  make(chan struct{}),
		yielded: make(chan struct{}),
	}
}

// StartFirstTask performs whatever hardware-specific housekeeping a real
// port needs before the kernel's own dispatch loop starts driving Dispatch
// calls (on real hardware: an SVC trampoline, lowering PendSV/tick
// interrupt priorities). SimPort needs none of that and returns
// immediately; the Kernel's dispatch loop takes it from here.
func (p *SimPort) StartFirstTask(ctx context.Context, frame any) {}

// Dispatch runs frame for the first time, or resumes it if it has already
// started and is parked waiting on resume. Either way it blocks until the
// task calls Suspend on itself again.
func (p *SimPort) Dispatch(frame any) {
	f := frame.(*simFrame)

	f.mu.Lock()
	first := !f.started
	f.started = true
	f.mu.Unlock()

	if first {
		go f.entry(f.arg)
	} else {
		f.resume <- struct{}{}
	}

	<-f.yielded
}

// Suspend is called from inside the goroutine running as frame. It hands
// the baton back to whatever is blocked in Dispatch(frame) and blocks
// until Dispatch(frame) is called again.
func (p *SimPort) Suspend(frame any) {
	f := frame.(*simFrame)
	f.yielded <- struct{}{}
	<-f.resume
}

func (p *SimPort) DisableInterrupts() {}
func (p *SimPort) EnableInterrupts()  {}

func (p *SimPort) CLZ(x uint32) uint32 {
	return uint32(bits.LeadingZeros32(x))
}

func (p *SimPort) StartTick(hz uint32, tick func()) (stop func()) {
	period := time.Second / time.Duration(hz)
	ticker := time.NewTicker(period)
	stopped := make(chan struct{})
	var stopOnce sync.Once
	go func() {
		for {
			select {
			case <-ticker.C:
				tick()
			case <-stopped:
				ticker.Stop()
				return
			}
		}
	}()
	return func() {
		stopOnce.Do(func() { close(stopped) })
	}
}
