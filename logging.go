// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

import (
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logger type accepted by WithLogger. It is a
// [github.com/joeycumines/logiface] Logger bound to stumpy's JSON Event
// implementation, the same pairing the teacher repo's logging.go uses. A
// nil Logger is a fully functional no-op: every call site below guards on
// it.
type Logger = *logiface.Logger[*stumpy.Event]

// NewJSONLogger builds the default Logger: stumpy's JSON encoder writing
// to w at the given minimum level.
func NewJSONLogger(w *os.File, level logiface.Level) Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(),
		logiface.WithLevel[*stumpy.Event](level),
		stumpy.L.WithWriter(w),
	)
}

// kernelLog wraps a possibly-nil Logger with the kernel's event vocabulary.
// Each method is a thin, level-gated field-builder closure, mirroring the
// teacher's logging.go pattern of one small function per distinct event
// kind rather than one generic "log(event, fields...)" entry point.
type kernelLog struct {
	l Logger
}

func (k kernelLog) taskCreated(t *tcb) {
	if k.l == nil {
		return
	}
	k.l.Info().
		Str("event", "task_created").
		Str("task_id", t.id).
		Str("name", t.Name()).
		Uint64("priority", uint64(t.priority)).
		Log("task created")
}

func (k kernelLog) taskDeleted(t *tcb) {
	if k.l == nil {
		return
	}
	k.l.Info().
		Str("event", "task_deleted").
		Str("task_id", t.id).
		Str("name", t.Name()).
		Log("task deleted")
}

func (k kernelLog) taskSuspended(t *tcb) {
	if k.l == nil {
		return
	}
	k.l.Debug().
		Str("event", "task_suspended").
		Str("task_id", t.id).
		Log("task suspended")
}

func (k kernelLog) taskResumed(t *tcb) {
	if k.l == nil {
		return
	}
	k.l.Debug().
		Str("event", "task_resumed").
		Str("task_id", t.id).
		Log("task resumed")
}

func (k kernelLog) priorityChanged(t *tcb, from, to uint32) {
	if k.l == nil {
		return
	}
	k.l.Info().
		Str("event", "priority_changed").
		Str("task_id", t.id).
		Uint64("from", uint64(from)).
		Uint64("to", uint64(to)).
		Log("task priority changed")
}

func (k kernelLog) capacityExhausted(resource string) {
	if k.l == nil {
		return
	}
	k.l.Warning().
		Str("event", "capacity_exhausted").
		Str("resource", resource).
		Log("creation refused: capacity exhausted")
}

func (k kernelLog) mutexBoosted(holder *tcb, from, to uint32) {
	if k.l == nil {
		return
	}
	k.l.Warning().
		Str("event", "mutex_priority_boost").
		Str("task_id", holder.id).
		Uint64("from", uint64(from)).
		Uint64("to", uint64(to)).
		Log("mutex holder priority boosted by inheritance")
}

func (k kernelLog) mutexRestored(holder *tcb, to uint32) {
	if k.l == nil {
		return
	}
	k.l.Debug().
		Str("event", "mutex_priority_restored").
		Str("task_id", holder.id).
		Uint64("to", uint64(to)).
		Log("mutex holder priority restored")
}

func (k kernelLog) tickWrapped(tick uint32) {
	if k.l == nil {
		return
	}
	k.l.Debug().
		Str("event", "tick_wrapped").
		Uint64("tick", uint64(tick)).
		Log("tick counter wrapped")
}

func (k kernelLog) schedulerStarted() {
	if k.l == nil {
		return
	}
	k.l.Info().
		Str("event", "scheduler_started").
		Log("scheduler started")
}
