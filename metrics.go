// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// kernelMetrics exports scheduler statistics via Prometheus collectors,
// registered with WithMetrics. Nothing in the core scheduler reads these
// back; they exist purely for external observability, mirroring how the
// teacher's Metrics type is an optional, bolted-on concern rather than
// something the loop's own control flow depends on.
type kernelMetrics struct {
	tasksCreated   prometheus.Counter
	contextSwitches prometheus.Counter
	ticks          prometheus.Counter
	readyTasks     prometheus.Gauge
	heapFreeBytes  prometheus.GaugeFunc
	mutexHold      prometheus.Histogram

	mu      sync.Mutex
	holdP   *durationPercentiles
}

func newKernelMetrics(k *Kernel, reg prometheus.Registerer) *kernelMetrics {
	m := &kernelMetrics{
		tasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minirtos_tasks_created_total",
			Help: "Total number of tasks created.",
		}),
		contextSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minirtos_context_switches_total",
			Help: "Total number of scheduler dispatches.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minirtos_ticks_total",
			Help: "Total number of tick interrupts processed.",
		}),
		readyTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "minirtos_ready_tasks",
			Help: "Number of distinct priority levels with at least one ready task.",
		}),
		mutexHold: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "minirtos_mutex_hold_seconds",
			Help:    "Duration a mutex was held before release.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		holdP: newDurationPercentiles(0.5, 0.9, 0.99),
	}
	m.heapFreeBytes = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "minirtos_heap_free_bytes",
		Help: "Bytes currently free in the kernel heap arena.",
	}, func() float64 {
		return float64(k.heap.freeBytesRemaining())
	})

	reg.MustRegister(m.tasksCreated, m.contextSwitches, m.ticks, m.readyTasks, m.heapFreeBytes, m.mutexHold)
	return m
}

func (m *kernelMetrics) observeTaskCreated() {
	m.tasksCreated.Inc()
}

func (m *kernelMetrics) observeContextSwitch() {
	m.contextSwitches.Inc()
}

func (m *kernelMetrics) observeTick(tick uint32, readyBitmap uint32) {
	m.ticks.Inc()
	count := 0
	for b := readyBitmap; b != 0; b &= b - 1 {
		count++
	}
	m.readyTasks.Set(float64(count))
}

// observeMutexHold records how long a mutex was held, both in the
// Prometheus histogram and in an in-process P-Square estimator so
// PercentileHoldTime can be read back without scraping.
func (m *kernelMetrics) observeMutexHold(d time.Duration) {
	m.mutexHold.Observe(d.Seconds())
	m.mu.Lock()
	m.holdP.Update(float64(d))
	m.mu.Unlock()
}

// PercentileHoldTime returns the estimated p50/p90/p99 mutex hold
// durations observed so far.
func (m *kernelMetrics) PercentileHoldTime() (p50, p90, p99 time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Duration(m.holdP.Quantile(0)), time.Duration(m.holdP.Quantile(1)), time.Duration(m.holdP.Quantile(2))
}
