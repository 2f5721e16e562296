// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

// Semaphore is a thin adapter over Queue with a zero item size: Take is
// Receive(nil, ...), Give is a non-blocking Send(nil, 0), exactly as the
// reference firmware's xSemaphoreTake/xSemaphoreGive macros expand to
// xQueueReceive/xQueueSend.
type Semaphore struct {
	q *Queue
}

// CreateBinarySemaphore returns a semaphore with capacity 1, created
// empty: a Take blocks until some other task Gives it at least once.
func (k *Kernel) CreateBinarySemaphore() (*Semaphore, error) {
	q, err := k.CreateQueue(1, 0)
	if err != nil {
		return nil, err
	}
	return &Semaphore{q: q}, nil
}

// CreateCountingSemaphore returns a semaphore with the given maximum
// count, pre-filled with initialCount tokens.
func (k *Kernel) CreateCountingSemaphore(maxCount, initialCount uint32) (*Semaphore, error) {
	q, err := k.CreateQueue(maxCount, 0)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < initialCount; i++ {
		_ = q.Send(nil, 0)
	}
	return &Semaphore{q: q}, nil
}

func (s *Semaphore) ID() string { return s.q.ID() }

// Take acquires a token, blocking up to ticksToWait ticks if none is
// available.
func (s *Semaphore) Take(ticksToWait uint32) error {
	return s.q.Receive(nil, ticksToWait)
}

// Give releases a token. Non-blocking: a full counting semaphore simply
// reports ErrTimeout, matching xSemaphoreGive's xTicksToWait-is-always-0
// expansion.
func (s *Semaphore) Give() error {
	return s.q.Send(nil, 0)
}

// Count returns the number of tokens currently available.
func (s *Semaphore) Count() uint32 {
	return s.q.MessagesWaiting()
}
