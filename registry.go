// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

import "sync"

// objectRegistry tracks live kernel objects (tasks, queues, mutexes) keyed
// by their xid-generated correlation ID. Objects are registered at
// creation; a deleted task is removed when the idle task reclaims it, and
// queues and mutexes stay registered for the kernel's lifetime. Neither
// the kernel nor the demo program calls lookup. Unlike the teacher's
// weak-pointer registry, this kernel's objects are never "collected
// implicitly", so strong pointers are correct here; there is no
// scavenging to do.
type objectRegistry struct {
	mu   sync.RWMutex
	objs map[string]any
}

func newObjectRegistry() *objectRegistry {
	return &objectRegistry{objs: make(map[string]any)}
}

func (r *objectRegistry) register(id string, obj any) {
	r.mu.Lock()
	r.objs[id] = obj
	r.mu.Unlock()
}

func (r *objectRegistry) unregister(id string) {
	r.mu.Lock()
	delete(r.objs, id)
	r.mu.Unlock()
}

func (r *objectRegistry) lookup(id string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objs[id]
	return obj, ok
}

func (r *objectRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objs)
}
