// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

import (
	"context"
	"sync"
	"time"

	"github.com/rs/xid"
)

// Kernel is the process-wide scheduler singleton: one Kernel drives one
// simulated CPU. All of its fields below correspond directly to spec.md
// §3's "Scheduler state" data model; every mutation happens with mu held,
// the host-simulation stand-in for the reference firmware's single
// interrupt-disabling critical section (see EnterCritical/ExitCritical).
type Kernel struct {
	mu sync.Mutex

	port Port
	heap *heap
	log  kernelLog
	metrics *kernelMetrics
	registry *objectRegistry

	state *fastState

	readyLists  [maxPriorities]list
	readyBitmap uint32

	suspended   list
	termination list

	delayedA, delayedB         list
	delayedActive, delayedOver *list

	tickCount   uint32
	nextUnblock uint32

	criticalNesting uint32

	current *tcb
	idle    *tcb

	taskCount, maxTasks     uint32
	queueCount, maxQueues   uint32
	mutexCount, maxMutexes  uint32

	idleHook   func()
	tickRateHz uint32

	pending ingressQueue

	tickStop func()
	cancel   context.CancelFunc
}

// NewKernel constructs a Kernel bound to port. It does not start the
// dispatch loop; call StartScheduler for that.
func NewKernel(port Port, opts ...KernelOption) (*Kernel, error) {
	if port == nil {
		return nil, ErrPortNotSet
	}
	cfg, err := resolveKernelOptions(opts)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		port:       port,
		heap:       newHeap(cfg.heapSize),
		log:        kernelLog{l: cfg.logger},
		registry:   newObjectRegistry(),
		state:      newFastState(),
		maxTasks:   cfg.maxTasks,
		maxQueues:  cfg.maxQueues,
		maxMutexes:  cfg.maxMutexes,
		idleHook:    cfg.idleHook,
		tickRateHz:  cfg.tickRateHz,
		nextUnblock: sentinelValue,
	}
	if cfg.registerer != nil {
		k.metrics = newKernelMetrics(k, cfg.registerer)
	}

	for p := range k.readyLists {
		initList(&k.readyLists[p])
	}
	initList(&k.suspended)
	initList(&k.termination)
	initList(&k.delayedA)
	initList(&k.delayedB)
	k.delayedActive = &k.delayedA
	k.delayedOver = &k.delayedB

	idle, err := k.createTaskLocked(idleTaskEntry(k), "IDLE", taskStackMin, nil, 0)
	if err != nil {
		return nil, err
	}
	k.idle = idle

	return k, nil
}

// idleTaskEntry returns the body of the idle task (SUPPLEMENT #2): it runs
// at priority 0, forever, draining the termination list (SUPPLEMENT #3,
// freeing a deleted task's stack back to the heap) and invoking the
// configured idle hook, then yields.
func idleTaskEntry(k *Kernel) func(arg any) {
	return func(arg any) {
		for {
			k.mu.Lock()
			for !k.termination.empty() {
				item := k.termination.front()
				removeListItem(item)
				dead := item.owner
				if dead.stack != nil {
					k.heap.free(dead.stack)
					dead.stack = nil
				}
				k.registry.unregister(dead.id)
			}
			hook := k.idleHook
			k.mu.Unlock()

			if hook != nil {
				hook()
			}

			k.Yield()
		}
	}
}

// clampPriority mirrors the reference firmware's xTaskCreate: a priority
// at or beyond maxPriorities is silently clamped to the highest valid
// value rather than rejected (SUPPLEMENT #1).
func clampPriority(p uint32) uint32 {
	if p >= maxPriorities {
		return maxPriorities - 1
	}
	return p
}

// Task is the opaque handle returned by CreateTask.
type Task struct{ t *tcb }

func (h *Task) Name() string { return h.t.Name() }
func (h *Task) ID() string   { return h.t.id }

// Priority returns a best-effort, unsynchronized snapshot of the task's
// priority: fine for logging, racy against a concurrent SetPriority or
// mutex-driven inheritance change. Use Kernel.TaskPriority where that
// matters.
func (h *Task) Priority() uint32 { return h.t.priority }

// TaskPriority returns task's current priority, synchronized against
// concurrent SetPriority calls and mutex priority-inheritance boosts.
func (k *Kernel) TaskPriority(task *Task) uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return task.t.priority
}

// CreateTask allocates a stack and TCB for entry, inserts the task at the
// tail of its ready list, and returns a handle. Returns a *CapacityError
// if the task pool or heap is exhausted (spec.md §4.2, §7).
func (k *Kernel) CreateTask(entry func(arg any), name string, stackWords uint32, arg any, priority uint32) (*Task, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, err := k.createTaskLocked(entry, name, stackWords, arg, priority)
	if err != nil {
		return nil, err
	}
	return t.handle, nil
}

func (k *Kernel) createTaskLocked(entry func(arg any), name string, stackWords uint32, arg any, priority uint32) (*tcb, error) {
	if k.taskCount >= k.maxTasks {
		k.log.capacityExhausted("tasks")
		return nil, &CapacityError{Resource: "tasks"}
	}
	if stackWords < taskStackMin {
		stackWords = taskStackMin
	}
	stack := k.heap.alloc(stackWords * 4)
	if stack == nil {
		k.log.capacityExhausted("heap")
		return nil, &CapacityError{Resource: "heap"}
	}

	priority = clampPriority(priority)

	t := newTCB(name, priority, stackWords)
	t.stack = stack
	t.id = xid.New().String()
	t.handle = &Task{t: t}
	t.frame = k.port.StackInit(stackWords, entry, arg)

	k.taskCount++
	k.addToReadyLocked(t)
	k.registry.register(t.id, t)
	k.log.taskCreated(t)
	if k.metrics != nil {
		k.metrics.observeTaskCreated()
	}

	return t, nil
}

// CreateTaskAsync submits a task-creation request from a goroutine other
// than the one driving the dispatch loop; it is applied the next time the
// dispatch loop reaches a reschedule point. result, if non-nil, receives
// the outcome.
func (k *Kernel) CreateTaskAsync(entry func(arg any), name string, stackWords uint32, arg any, priority uint32, result chan<- struct {
	Task *Task
	Err  error
}) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pending.push(func(k *Kernel) {
		t, err := k.createTaskLocked(entry, name, stackWords, arg, priority)
		if result == nil {
			return
		}
		r := struct {
			Task *Task
			Err  error
		}{Err: err}
		if t != nil {
			r.Task = t.handle
		}
		result <- r
	})
}

func (k *Kernel) addToReadyLocked(t *tcb) {
	k.readyLists[t.priority].insertTail(&t.stateItem)
	k.readyBitmap |= 1 << t.priority
}

// removeFromStateListLocked unlinks t from whichever of ready/suspended/
// delayed/termination list currently holds it, clearing the ready bitmap
// bit for its priority if that ready list became empty.
func (k *Kernel) removeFromStateListLocked(t *tcb) {
	l := t.stateItem.container
	if l == nil {
		return
	}
	wasReady := l == &k.readyLists[t.priority]
	remaining := removeListItem(&t.stateItem)
	if wasReady && remaining == 0 {
		k.readyBitmap &^= 1 << t.priority
	}
}

// selectHighestPriorityLocked implements spec.md §4.2's selection
// algorithm: pick the highest set bit of the ready bitmap, advance that
// priority's round-robin cursor past the sentinel if needed, and return
// the task now referenced by the cursor.
func (k *Kernel) selectHighestPriorityLocked() *tcb {
	p := 31 - k.port.CLZ(k.readyBitmap)
	rl := &k.readyLists[p]
	rl.cursor = rl.cursor.next
	if rl.cursor == &rl.sentinel {
		rl.cursor = rl.cursor.next
	}
	return rl.cursor.owner
}

// EnterCritical and ExitCritical bracket a kernel critical section. On
// real hardware this disables interrupts and counts nesting depth; on the
// host, Kernel.mu is the actual mutual-exclusion mechanism (task
// goroutines and the tick goroutine run concurrently), with
// criticalNesting kept only so the field exists with the meaning spec.md
// §3 gives it. Calls must not nest within a single goroutine.
func (k *Kernel) EnterCritical() {
	k.port.DisableInterrupts()
	k.mu.Lock()
	k.criticalNesting++
}

func (k *Kernel) ExitCritical() {
	k.criticalNesting--
	nesting := k.criticalNesting
	k.mu.Unlock()
	if nesting == 0 {
		k.port.EnableInterrupts()
	}
}

// TickCount returns the current tick count (SUPPLEMENT #4).
func (k *Kernel) TickCount() uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tickCount
}

// FreeHeapBytes returns the number of bytes currently free in the kernel
// heap arena backing task stacks, queue storage, and mutex/semaphore
// queues.
func (k *Kernel) FreeHeapBytes() uint32 {
	return k.heap.freeBytesRemaining()
}

// MinimumEverFreeHeapBytes returns the smallest FreeHeapBytes has ever
// been, a high-water-mark useful for sizing the heap correctly.
func (k *Kernel) MinimumEverFreeHeapBytes() uint32 {
	return k.heap.minimumEverFreeBytes()
}

// MutexHoldPercentiles returns the estimated p50/p90/p99 durations mutexes
// have been held, or all-zero if WithMetrics was not supplied.
func (k *Kernel) MutexHoldPercentiles() (p50, p90, p99 time.Duration) {
	if k.metrics == nil {
		return 0, 0, 0
	}
	return k.metrics.PercentileHoldTime()
}

// CurrentTask returns a handle to the task the scheduler most recently
// dispatched.
func (k *Kernel) CurrentTask() *Task {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.current == nil {
		return nil
	}
	return k.current.handle
}

// StartScheduler drives the dispatch loop until ctx is cancelled. It
// selects the initial task, hands control to the port, and repeatedly
// dispatches the highest-priority ready task whenever the previous one
// suspends. Mirrors spec.md §4.2's vTaskStartScheduler, minus the parts
// (tick-source programming, pend-SV priority tuning) that are genuinely
// port-specific and already folded into Port.StartTick/StartFirstTask.
func (k *Kernel) StartScheduler(ctx context.Context) {
	if !k.state.TryTransition(SchedulerAwaitingStart, SchedulerRunning) {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	k.cancel = cancel

	k.mu.Lock()
	k.current = k.selectHighestPriorityLocked()
	first := k.current
	k.mu.Unlock()

	k.log.schedulerStarted()
	k.port.StartFirstTask(ctx, first.frame)
	k.tickStop = k.port.StartTick(k.tickRateHzLocked(), func() { k.Tick() })

	for {
		select {
		case <-ctx.Done():
			k.state.Store(SchedulerTerminated)
			return
		default:
		}

		k.port.Dispatch(k.current.frame)

		k.mu.Lock()
		k.pending.drain(k)
		k.current = k.selectHighestPriorityLocked()
		k.mu.Unlock()

		if k.metrics != nil {
			k.metrics.observeContextSwitch()
		}
	}
}

func (k *Kernel) tickRateHzLocked() uint32 {
	return k.tickRateHz
}

// Stop cancels the dispatch loop and the tick source started by
// StartScheduler. Not part of the reference firmware (a real target never
// stops), but necessary for host tests and the demo program to shut down
// cleanly.
func (k *Kernel) Stop() {
	if k.tickStop != nil {
		k.tickStop()
	}
	if k.cancel != nil {
		k.cancel()
	}
}

// Yield requests an immediate reschedule: the calling task's own ready
// list is untouched (spec.md §4.2), so it simply hands control back to the
// dispatch loop, which re-runs the selection algorithm and, for a tied
// priority, advances the round-robin cursor past this task.
func (k *Kernel) Yield() {
	k.mu.Lock()
	self := k.current
	k.mu.Unlock()
	k.port.Suspend(self.frame)
}

// Delay parks the calling task until tick_count reaches tick_count + ticks
// (mod 2^32), per spec.md §4.2. ticks == 0 behaves as Yield.
func (k *Kernel) Delay(ticks uint32) {
	if ticks == 0 {
		k.Yield()
		return
	}

	k.mu.Lock()
	self := k.current
	k.removeFromStateListLocked(self)
	wake := k.tickCount + ticks
	self.stateItem.value = wake
	if wake < k.tickCount {
		k.delayedOver.insertSorted(&self.stateItem)
	} else {
		k.delayedActive.insertSorted(&self.stateItem)
		if wake < k.nextUnblock {
			k.nextUnblock = wake
		}
	}
	k.mu.Unlock()

	k.port.Suspend(self.frame)
}

// Suspend moves task (or the calling task if nil) from its current state
// list to the suspended list.
func (k *Kernel) Suspend(task *Task) {
	k.mu.Lock()
	t := k.resolveSelf(task)
	k.removeFromStateListLocked(t)
	t.stateItem.value = 0
	k.suspended.insertTail(&t.stateItem)
	self := t == k.current
	k.log.taskSuspended(t)
	k.mu.Unlock()

	if self {
		k.port.Suspend(t.frame)
	}
}

// Resume moves task back onto its ready list, but only if it is currently
// on the suspended list (spec.md §4.2).
func (k *Kernel) Resume(task *Task) {
	k.mu.Lock()
	t := task.t
	if t.stateItem.container != &k.suspended {
		k.mu.Unlock()
		return
	}
	removeListItem(&t.stateItem)
	k.addToReadyLocked(t)
	k.log.taskResumed(t)
	k.mu.Unlock()
}

// Delete detaches task from its current state list and, if dynamic
// allocation backs its stack, defers reclamation to the idle task via the
// termination list (SUPPLEMENT #3).
func (k *Kernel) Delete(task *Task) {
	k.mu.Lock()
	t := k.resolveSelf(task)
	k.removeFromStateListLocked(t)
	t.stateItem.value = 0
	k.termination.insertTail(&t.stateItem)
	if t.eventItem.container != nil {
		removeListItem(&t.eventItem)
	}
	k.taskCount--
	self := t == k.current
	k.log.taskDeleted(t)
	k.mu.Unlock()

	if self {
		k.port.Suspend(t.frame)
	}
}

// SetPriority changes task's priority. If it is ready, it is moved to the
// new priority's ready list (bitmap updated accordingly); if blocked, only
// the field changes (its waiter-list position is not priority-ordered).
func (k *Kernel) SetPriority(task *Task, newPriority uint32) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.setPriorityLocked(task.t, clampPriority(newPriority))
}

// setPriorityLocked implements SetPriority's body for callers (mutex
// priority inheritance) that already hold k.mu.
func (k *Kernel) setPriorityLocked(t *tcb, newPriority uint32) {
	old := t.priority
	if old == newPriority {
		return
	}
	wasReady := t.stateItem.container == &k.readyLists[old]
	if wasReady {
		k.removeFromStateListLocked(t)
		t.priority = newPriority
		k.addToReadyLocked(t)
	} else {
		t.priority = newPriority
	}
	k.log.priorityChanged(t, old, newPriority)
}

func (k *Kernel) resolveSelf(task *Task) *tcb {
	if task == nil {
		return k.current
	}
	return task.t
}

// Tick is the tick-ISR entry point (spec.md §4.2). It advances tick_count,
// swaps the dual delayed lists on overflow, and wakes every task whose
// wake tick has arrived.
func (k *Kernel) Tick() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.tickCount++
	if k.tickCount == 0 {
		k.delayedActive, k.delayedOver = k.delayedOver, k.delayedActive
		if k.delayedActive.empty() {
			k.nextUnblock = sentinelValue
		} else {
			k.nextUnblock = k.delayedActive.front().value
		}
		k.log.tickWrapped(k.tickCount)
	}

	for k.tickCount >= k.nextUnblock {
		if k.delayedActive.empty() {
			k.nextUnblock = sentinelValue
			break
		}
		head := k.delayedActive.front()
		if k.tickCount < head.value {
			k.nextUnblock = head.value
			break
		}
		removeListItem(head)
		woken := head.owner
		if woken.eventItem.container != nil {
			removeListItem(&woken.eventItem)
		}
		k.addToReadyLocked(woken)
	}

	if k.metrics != nil {
		k.metrics.observeTick(k.tickCount, k.readyBitmap)
	}
}

// CheckPreempt is a SimPort-specific cooperation point: a CPU-bound task
// calls it periodically inside a tight loop to approximate the instant
// preemption a real PendSV-driven port delivers without any task
// cooperation (see SimPort's doc comment). It suspends the caller, exactly
// as Yield does, only when a strictly higher-priority task has become
// ready since the caller was last dispatched; otherwise it returns
// immediately at negligible cost.
func (k *Kernel) CheckPreempt() {
	k.mu.Lock()
	self := k.current
	topPriority := 31 - k.port.CLZ(k.readyBitmap)
	shouldYield := topPriority > self.priority
	k.mu.Unlock()
	if shouldYield {
		k.port.Suspend(self.frame)
	}
}
