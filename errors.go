// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, matched with errors.Is against the concrete types
// below. Per spec.md §7, none of these are retried by the kernel itself;
// every one surfaces as a returned error the caller must check.
var (
	// ErrCapacityExhausted is returned when a static pool (tasks, queues,
	// mutexes) or the heap cannot satisfy a creation request.
	ErrCapacityExhausted = errors.New("minirtos: capacity exhausted")
	// ErrTimeout is returned by a blocking send/receive/take that waited
	// its full timeout without success.
	ErrTimeout = errors.New("minirtos: operation timed out")
	// ErrNotOwner is returned when a mutex is released by a task other
	// than its current owner.
	ErrNotOwner = errors.New("minirtos: mutex release attempted by non-owner")
	// ErrPortNotSet is returned by NewKernel when constructed without a
	// Port implementation.
	ErrPortNotSet = errors.New("minirtos: port not configured")
	// ErrSchedulerNotStarted reports that an operation needed a running
	// scheduler. No function in this package returns it.
	ErrSchedulerNotStarted = errors.New("minirtos: scheduler not started")
	// ErrInvalidArgument is returned for preconditions violations such as
	// zero capacity queues.
	ErrInvalidArgument = errors.New("minirtos: invalid argument")
)

// CapacityError reports which pool was exhausted.
type CapacityError struct {
	Resource string
	Cause    error
}

func (e *CapacityError) Error() string {
	if e.Resource == "" {
		return ErrCapacityExhausted.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCapacityExhausted.Error(), e.Resource)
}

func (e *CapacityError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrCapacityExhausted
}

// OwnershipError reports a mutex release attempted by a task that does not
// hold it.
type OwnershipError struct {
	Mutex string
	Cause error
}

func (e *OwnershipError) Error() string {
	if e.Mutex == "" {
		return ErrNotOwner.Error()
	}
	return fmt.Sprintf("%s: %s", ErrNotOwner.Error(), e.Mutex)
}

func (e *OwnershipError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrNotOwner
}

// WrapError wraps cause with a message, preserving errors.Is/errors.As
// against cause.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
