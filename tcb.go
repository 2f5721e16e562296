// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

// maxPriorities is the number of distinct priority levels; priority 0 is
// reserved for the idle task and is always the lowest.
const maxPriorities = 8

// taskNameLen mirrors the reference firmware's fixed-width task name field.
const taskNameLen = 16

// taskStackMin is the smallest stack, in machine words, the scheduler will
// allocate for a task.
const taskStackMin = 128

// tcb is a Task Control Block. stateItem links it into one of: a ready
// list, the suspended list, a delayed list, or the termination list; a task
// blocked on a primitive with WaitForever is on none of them.
// eventItem links it into at most one primitive's waiter list, optionally
// at the same time stateItem has it parked in a delayed list (a task
// blocked with a timeout sits on both simultaneously).
//
// A TCB never moves between goroutines by reference without the kernel
// lock held, mirroring the "all kernel state mutation happens inside a
// critical section" invariant from the reference firmware.
type tcb struct {
	stateItem listItem
	eventItem listItem

	priority uint32

	stackWords uint32
	stack      []byte // heap-backed; nil for a statically-described task
	name       [taskNameLen]byte

	frame  any // opaque Port handle (e.g. *simFrame)
	id     string
	handle *Task
}

func newTCB(name string, priority uint32, stackWords uint32) *tcb {
	t := &tcb{priority: priority, stackWords: stackWords}
	initListItem(&t.stateItem)
	initListItem(&t.eventItem)
	t.stateItem.owner = t
	t.eventItem.owner = t
	copy(t.name[:], name)
	return t
}

func (t *tcb) Name() string {
	n := 0
	for n < len(t.name) && t.name[n] != 0 {
		n++
	}
	return string(t.name[:n])
}

func (t *tcb) Priority() uint32 { return t.priority }

func (t *tcb) ID() string { return t.id }
