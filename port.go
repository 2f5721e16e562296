// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

import "context"

// Port is the small capability trait the scheduler consumes for everything
// that is inherently CPU- and board-specific. Swapping the Port
// implementation is how this kernel core is retargeted to a different MCU
// (or, as shipped here, to a host simulation with no real hardware at
// all). The scheduler never reaches past this interface for anything
// context-switch related.
type Port interface {
	// StackInit builds the initial exception frame for a new task so that,
	// once dispatched, it resumes execution at entry(arg). words is the
	// stack capacity in machine words; the returned handle is opaque to
	// the scheduler and passed back to Dispatch/Suspend verbatim.
	StackInit(words uint32, entry func(arg any), arg any) any

	// StartFirstTask performs the port-specific setup needed before the
	// first task represented by frame runs, then returns. The kernel's own
	// dispatch loop (Kernel.StartScheduler) then runs tasks through
	// Dispatch until ctx is done; SimPort's implementation does nothing.
	StartFirstTask(ctx context.Context, frame any)

	// Dispatch is called by the scheduler's selection point to run or
	// resume the task represented by frame, and blocks until that task
	// next reaches a suspension point (by calling Suspend on itself) or
	// terminates. On real hardware this is the PendSV handler's job.
	Dispatch(frame any)

	// Suspend is called from within the currently running task (identified
	// by frame) to give up the CPU at a suspension point: yield, delay,
	// suspend-self, or a blocking queue/semaphore/mutex wait. It does not
	// return until the scheduler dispatches frame again. On real hardware
	// this corresponds to the pend-SV trap actually firing and the task's
	// own code resuming later, transparently, at its next scheduled run.
	Suspend(frame any)

	// DisableInterrupts and EnableInterrupts gate the hardware interrupt
	// line directly. The simulation port has no interrupts to gate and
	// implements these as no-ops; the kernel's own lock (held by
	// Kernel.EnterCritical/ExitCritical and by every kernel operation) is
	// what actually serializes access to scheduler state on a host with
	// real goroutine concurrency.
	DisableInterrupts()
	EnableInterrupts()

	// CLZ counts leading zero bits, used by the scheduler to pick the
	// highest set bit of the ready bitmap. Never called with x == 0.
	CLZ(x uint32) uint32

	// StartTick programs a periodic source at hz that invokes tick for
	// every period, and returns a function that stops it.
	StartTick(hz uint32, tick func()) (stop func())
}
