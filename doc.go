// Package minirtos implements the core of a preemptive, priority-based
// real-time scheduler for a single-core target: static-pool task creation,
// a first-fit coalescing heap, blocking message queues, binary/counting
// semaphores, and a priority-inheritance mutex, all driven from a tick
// source and a small [Port] capability trait.
//
// # Architecture
//
// [Kernel] holds all scheduler state behind a single mutex: the
// bitmap-indexed ready lists (one per priority, round-robin within a
// priority via a cursor), the suspended and termination lists, the pair of
// delayed lists used to survive tick-counter wraparound, and the heap used
// to back every task's stack. There is no SMP and no MMU/MPU; one physical
// (or, under [SimPort], goroutine-simulated) CPU runs exactly one task at a
// time. [Kernel.StartScheduler] drives the dispatch loop: select the
// highest-priority ready task, hand it to [Port.Dispatch], drain any
// cross-goroutine creation requests queued while it ran, and reselect.
//
// [Port] is the only hardware-specific seam. A real target implements it
// against PendSV/SysTick and a genuine exception frame; [SimPort] backs
// each task with a goroutine and hands control back and forth over a pair
// of unbuffered channels, so the same scheduler code runs as a host-side
// simulation with no target hardware at all. See [SimPort]'s doc comment
// for the one place that simulation is necessarily imperfect: true
// asynchronous preemption of a CPU-bound task has no goroutine analogue,
// which is why [Kernel.CheckPreempt] exists as a cooperative approximation.
//
// [Queue] is the one blocking primitive with real machinery (a circular
// byte buffer plus FIFO send/receive waiter lists); [Semaphore] and [Mutex]
// are both built on top of it — a semaphore is a zero-item-size queue, and
// a mutex is a capacity-1 zero-item-size queue with owner tracking and
// priority inheritance layered on.
//
// # Usage
//
//	k, err := minirtos.NewKernel(minirtos.NewSimPort(),
//		minirtos.WithMaxTasks(8),
//		minirtos.WithTickRate(1000),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	_, err = k.CreateTask(func(arg any) {
//		for {
//			k.Delay(100)
//			doWork()
//		}
//	}, "worker", 256, nil, 3)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	k.StartScheduler(ctx) // blocks until ctx is done or Kernel.Stop is called
//
// # Thread Safety
//
//   - [Kernel.CreateTask], [Kernel.CreateQueue], [Kernel.CreateMutex] and
//     their sibling constructors are safe to call from any goroutine; they
//     take the kernel's lock and create the object immediately.
//     [Kernel.CreateTaskAsync] is the one queued form: its request is
//     applied at the next reschedule point of the dispatch loop.
//   - [Queue.Send], [Queue.Receive], [Semaphore.Take], [Semaphore.Give],
//     [Mutex.Take], and [Mutex.Give] are safe to call from any task's own
//     goroutine; a blocking call suspends only the calling task, never the
//     dispatch loop.
//   - [Kernel.EnterCritical]/[Kernel.ExitCritical] model the nesting
//     counter a real port tracks around interrupt-disabled sections; on
//     the host simulation the kernel's own mutex is the actual mutual
//     exclusion mechanism, so these must not be called recursively from
//     the same goroutine without an intervening Exit.
//
// # Error Types
//
// Blocking operations and pool exhaustion report errors through sentinels
// matched with [errors.Is]:
//   - [ErrTimeout]: a blocking send/receive/take exhausted its wait.
//   - [ErrCapacityExhausted] (detailed via [*CapacityError]): a static
//     pool or the heap could not satisfy a creation request.
//   - [ErrNotOwner] (detailed via [*OwnershipError]): a mutex was released
//     by a task that does not hold it.
//   - [ErrPortNotSet], [ErrSchedulerNotStarted], [ErrInvalidArgument]:
//     construction and precondition failures.
package minirtos
