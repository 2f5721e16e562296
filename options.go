// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

import "github.com/prometheus/client_golang/prometheus"

// kernelOptions holds configuration resolved from KernelOption values
// before a Kernel is constructed.
type kernelOptions struct {
	tickRateHz  uint32
	heapSize    uint32
	maxTasks    uint32
	maxQueues   uint32
	maxMutexes  uint32
	logger      Logger
	registerer  prometheus.Registerer
	idleHook    func()
}

// KernelOption configures a Kernel instance.
type KernelOption interface {
	applyKernel(*kernelOptions) error
}

// kernelOptionImpl implements KernelOption via a closure, the same shape
// the teacher uses for its own LoopOption.
type kernelOptionImpl struct {
	applyKernelFunc func(*kernelOptions) error
}

func (o *kernelOptionImpl) applyKernel(opts *kernelOptions) error {
	return o.applyKernelFunc(opts)
}

// WithTickRate overrides the default 1kHz tick rate.
func WithTickRate(hz uint32) KernelOption {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		if hz == 0 {
			return WrapError("tick rate", ErrInvalidArgument)
		}
		opts.tickRateHz = hz
		return nil
	}}
}

// WithHeapSize overrides the default 10KiB arena used for task stacks and
// queue/mutex backing buffers.
func WithHeapSize(bytes uint32) KernelOption {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		if bytes == 0 {
			return WrapError("heap size", ErrInvalidArgument)
		}
		opts.heapSize = bytes
		return nil
	}}
}

// WithMaxTasks overrides the default static task-pool size of 4.
func WithMaxTasks(n uint32) KernelOption {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		opts.maxTasks = n
		return nil
	}}
}

// WithMaxQueues overrides the default static queue-pool size of 4. Mutexes
// and semaphores are queues and draw from this same pool.
func WithMaxQueues(n uint32) KernelOption {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		opts.maxQueues = n
		return nil
	}}
}

// WithMaxMutexes overrides the default static mutex-pool size of 4.
func WithMaxMutexes(n uint32) KernelOption {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		opts.maxMutexes = n
		return nil
	}}
}

// WithLogger attaches a structured Logger. A nil logger (the default) is a
// fully functional no-op, matching the teacher's nil-logger handling.
func WithLogger(l Logger) KernelOption {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		opts.logger = l
		return nil
	}}
}

// WithMetrics registers the kernel's Prometheus collectors against reg.
// When omitted, no collectors are registered and
// Kernel.MutexHoldPercentiles reports zero durations.
func WithMetrics(reg prometheus.Registerer) KernelOption {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		opts.registerer = reg
		return nil
	}}
}

// WithIdleHook sets a callback invoked once per idle-task pass, after
// termination-list draining (SUPPLEMENT #6, vApplicationIdleHook in the
// reference firmware).
func WithIdleHook(fn func()) KernelOption {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		opts.idleHook = fn
		return nil
	}}
}

func resolveKernelOptions(opts []KernelOption) (*kernelOptions, error) {
	cfg := &kernelOptions{
		tickRateHz: 1000,
		heapSize:   10 * 1024,
		maxTasks:   4,
		maxQueues:  4,
		maxMutexes: 4,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyKernel(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
