// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

import "time"

// Mutex is a priority-inheritance mutex built on a capacity-1, size-0
// Queue, exactly as mutex.c layers Mutex_t over Queue_t. Only the current
// owner may release it (Give returns an *OwnershipError otherwise, with
// no side effects — see the open-question resolution in DESIGN.md).
type Mutex struct {
	q *Queue

	owner            *tcb
	originalPriority uint32
	acquiredAt       time.Time
}

// CreateMutex allocates a mutex, initially unlocked.
func (k *Kernel) CreateMutex() (*Mutex, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.mutexCount >= k.maxMutexes {
		k.log.capacityExhausted("mutexes")
		return nil, &CapacityError{Resource: "mutexes"}
	}
	q, err := k.createQueueLocked(1, 0)
	if err != nil {
		return nil, err
	}
	k.mutexCount++
	q.messagesWaiting = 1 // available, unlike a freshly created queue/semaphore
	return &Mutex{q: q}, nil
}

func (m *Mutex) ID() string { return m.q.ID() }

// Owner returns a handle to the task currently holding the mutex, or nil
// if it is unlocked.
func (m *Mutex) Owner() *Task {
	m.q.k.mu.Lock()
	defer m.q.k.mu.Unlock()
	if m.owner == nil {
		return nil
	}
	return m.owner.handle
}

// Take acquires the mutex, blocking up to ticksToWait ticks. If the
// current holder has a lower priority than the caller, its priority is
// boosted to the caller's for the duration of the hold (priority
// inheritance, spec.md §4.5). Only one level of inheritance is modeled:
// each mutex records only its owner's priority at acquire time, so a task
// holding two mutexes can be restored below a waiter still blocked on the
// other one (see DESIGN.md and TestMutexChainedInheritanceCanUnderRestore),
// and a chain of mutex waits does not propagate transitively.
func (m *Mutex) Take(ticksToWait uint32) error {
	k := m.q.k
	for {
		k.mu.Lock()
		if m.q.messagesWaiting > 0 {
			m.q.messagesWaiting = 0
			m.owner = k.current
			m.originalPriority = k.current.priority
			m.acquiredAt = time.Now()
			k.mu.Unlock()
			return nil
		}
		if ticksToWait == 0 {
			k.mu.Unlock()
			return ErrTimeout
		}

		self := k.current
		if m.owner != nil && m.owner.priority < self.priority {
			old := m.owner.priority
			k.setPriorityLocked(m.owner, self.priority)
			k.log.mutexBoosted(m.owner, old, self.priority)
		}

		k.blockCurrentLocked(self, &m.q.recvWaiters, ticksToWait)
		k.mu.Unlock()

		k.port.Suspend(self.frame)
		ticksToWait = 0
	}
}

// Give releases the mutex. Only the current owner may call it; any other
// caller gets an *OwnershipError and the mutex state is left untouched.
func (m *Mutex) Give() error {
	k := m.q.k
	k.mu.Lock()
	if m.owner != k.current {
		k.mu.Unlock()
		return &OwnershipError{Mutex: m.q.id}
	}

	held := time.Since(m.acquiredAt)
	if k.current.priority != m.originalPriority {
		k.setPriorityLocked(k.current, m.originalPriority)
		k.log.mutexRestored(k.current, m.originalPriority)
	}

	m.owner = nil
	m.q.messagesWaiting = 1
	k.wakeWaiterLocked(&m.q.recvWaiters)
	k.mu.Unlock()

	if k.metrics != nil {
		k.metrics.observeMutexHold(held)
	}
	return nil
}
