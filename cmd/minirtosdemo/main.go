// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Command minirtosdemo runs the scheduler core against SimPort and checks a
// handful of the properties a correct priority-preemptive kernel must
// satisfy: round-robin fairness within a priority, queue backpressure with
// bounded blocking, priority inheritance bounding inversion, and heap
// coalescing back to the pre-allocation free-byte count.
package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
	minirtos "github.com/zyf0205/minirtos"
)

func main() {
	logger := minirtos.NewJSONLogger(os.Stdout, logiface.LevelWarning)

	results := []bool{
		runRoundRobin(logger),
		runQueueBackpressure(logger),
		runPriorityInheritance(logger),
		runHeapCoalescing(logger),
	}

	ok := true
	for _, r := range results {
		ok = ok && r
	}
	if !ok {
		os.Exit(1)
	}
}

func report(name string, ok bool, detail string) bool {
	status := "PASS"
	if !ok {
		status = "FAIL"
	}
	fmt.Printf("[%s] %s: %s\n", status, name, detail)
	return ok
}

// runRoundRobin exercises spec scenario A: three same-priority tasks that
// each print a letter and yield must interleave ABCABCABC, never running a
// second time before their peers have run once.
func runRoundRobin(logger minirtos.Logger) bool {
	k, err := minirtos.NewKernel(minirtos.NewSimPort(),
		minirtos.WithMaxTasks(4),
		minirtos.WithLogger(logger),
	)
	if err != nil {
		return report("round-robin", false, err.Error())
	}

	events := make(chan string, 9)
	for _, name := range []string{"A", "B", "C"} {
		name := name
		_, err := k.CreateTask(func(arg any) {
			for i := 0; i < 3; i++ {
				events <- name
				k.Yield()
			}
			k.Delete(nil)
		}, name, 128, nil, 1)
		if err != nil {
			return report("round-robin", false, err.Error())
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go k.StartScheduler(ctx)

	var got []byte
	for i := 0; i < 9; i++ {
		select {
		case v := <-events:
			got = append(got, v[0])
		case <-time.After(time.Second):
			return report("round-robin", false, "timed out waiting for task output")
		}
	}
	k.Stop()

	want := "ABCABCABC"
	return report("round-robin", string(got) == want,
		fmt.Sprintf("got %q, want %q", got, want))
}

// runQueueBackpressure exercises spec scenario C: a capacity-3 queue with a
// producer that sends faster than the consumer drains it must block the
// producer rather than fail, and every send must eventually succeed within
// its timeout once the consumer catches up.
func runQueueBackpressure(logger minirtos.Logger) bool {
	k, err := minirtos.NewKernel(minirtos.NewSimPort(),
		minirtos.WithMaxQueues(4),
		minirtos.WithMaxTasks(4),
		minirtos.WithTickRate(4000),
		minirtos.WithLogger(logger),
	)
	if err != nil {
		return report("queue-backpressure", false, err.Error())
	}

	q, err := k.CreateQueue(3, 1)
	if err != nil {
		return report("queue-backpressure", false, err.Error())
	}

	const rounds = 6
	sendErrs := make(chan error, rounds)
	recvErrs := make(chan error, rounds)

	_, err = k.CreateTask(func(arg any) {
		for i := 0; i < rounds; i++ {
			k.Delay(200)
			sendErrs <- q.Send([]byte{byte(i)}, 5000)
		}
		k.Delete(nil)
	}, "producer", 128, nil, 3)
	if err != nil {
		return report("queue-backpressure", false, err.Error())
	}

	_, err = k.CreateTask(func(arg any) {
		buf := make([]byte, 1)
		for i := 0; i < rounds; i++ {
			k.Delay(1000)
			recvErrs <- q.Receive(buf, 5000)
		}
		k.Delete(nil)
	}, "consumer", 128, nil, 2)
	if err != nil {
		return report("queue-backpressure", false, err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go k.StartScheduler(ctx)

	for i := 0; i < rounds; i++ {
		select {
		case err := <-sendErrs:
			if err != nil {
				k.Stop()
				return report("queue-backpressure", false, fmt.Sprintf("send %d: %v", i, err))
			}
		case <-time.After(5 * time.Second):
			k.Stop()
			return report("queue-backpressure", false, "producer stalled")
		}
	}
	for i := 0; i < rounds; i++ {
		select {
		case err := <-recvErrs:
			if err != nil {
				k.Stop()
				return report("queue-backpressure", false, fmt.Sprintf("receive %d: %v", i, err))
			}
		case <-time.After(5 * time.Second):
			k.Stop()
			return report("queue-backpressure", false, "consumer stalled")
		}
	}
	k.Stop()

	return report("queue-backpressure", true, "all 6 sends and receives completed without a timeout")
}

// runPriorityInheritance exercises spec scenario D: a low-priority holder L
// of a mutex is boosted to the priority of a higher-priority waiter H, which
// must starve an unrelated medium-priority CPU-bound task M for the whole
// window between H's request and L's release.
func runPriorityInheritance(logger minirtos.Logger) bool {
	k, err := minirtos.NewKernel(minirtos.NewSimPort(),
		minirtos.WithMaxTasks(4),
		minirtos.WithMaxMutexes(4),
		minirtos.WithTickRate(2000),
		minirtos.WithLogger(logger),
	)
	if err != nil {
		return report("priority-inheritance", false, err.Error())
	}

	m, err := k.CreateMutex()
	if err != nil {
		return report("priority-inheritance", false, err.Error())
	}

	var mCount int64
	holding := make(chan struct{})
	result := make(chan struct {
		before, after int64
		err           error
	}, 1)

	_, err = k.CreateTask(func(arg any) {
		_ = m.Take(minirtos.WaitForever)
		close(holding)
		for i := 0; i < 200_000; i++ {
			k.CheckPreempt()
		}
		_ = m.Give()
		k.Delete(nil)
	}, "L", 128, nil, 1)
	if err != nil {
		return report("priority-inheritance", false, err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go k.StartScheduler(ctx)

	select {
	case <-holding:
	case <-time.After(time.Second):
		k.Stop()
		return report("priority-inheritance", false, "L never acquired the mutex")
	}

	_, err = k.CreateTask(func(arg any) {
		for {
			atomic.AddInt64(&mCount, 1)
			k.CheckPreempt()
		}
	}, "M", 128, nil, 2)
	if err != nil {
		k.Stop()
		return report("priority-inheritance", false, err.Error())
	}

	_, err = k.CreateTask(func(arg any) {
		k.Delay(200)
		before := atomic.LoadInt64(&mCount)
		err := m.Take(minirtos.WaitForever)
		after := atomic.LoadInt64(&mCount)
		if err == nil {
			_ = m.Give()
		}
		result <- struct {
			before, after int64
			err           error
		}{before, after, err}
		k.Delete(nil)
	}, "H", 128, nil, 3)
	if err != nil {
		k.Stop()
		return report("priority-inheritance", false, err.Error())
	}

	select {
	case r := <-result:
		k.Stop()
		if r.err != nil {
			return report("priority-inheritance", false, r.err.Error())
		}
		return report("priority-inheritance", r.before == r.after,
			fmt.Sprintf("M's loop count before H's request: %d, after H acquired: %d", r.before, r.after))
	case <-time.After(5 * time.Second):
		k.Stop()
		return report("priority-inheritance", false, "H never acquired the mutex")
	}
}

// runHeapCoalescing exercises spec scenario F: allocating and then freeing
// task stacks out of order must return every byte to the free pool, visible
// through FreeHeapBytes.
func runHeapCoalescing(logger minirtos.Logger) bool {
	k, err := minirtos.NewKernel(minirtos.NewSimPort(),
		minirtos.WithMaxTasks(8),
		minirtos.WithHeapSize(4096),
		minirtos.WithLogger(logger),
	)
	if err != nil {
		return report("heap-coalescing", false, err.Error())
	}

	initial := k.FreeHeapBytes()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go k.StartScheduler(ctx)

	parked := func(words uint32, name string) *minirtos.Task {
		t, createErr := k.CreateTask(func(arg any) {
			k.Delay(1_000_000)
		}, name, words, nil, 1)
		if createErr != nil {
			err = createErr
		}
		return t
	}

	p1 := parked(32, "p1")
	p2 := parked(64, "p2")
	p3 := parked(96, "p3")
	if err != nil {
		k.Stop()
		return report("heap-coalescing", false, err.Error())
	}
	time.Sleep(20 * time.Millisecond)

	afterAlloc := k.FreeHeapBytes()

	var prev uint32 = afterAlloc
	increasing := true
	for _, t := range []*minirtos.Task{p2, p1, p3} {
		k.Delete(t)
		time.Sleep(20 * time.Millisecond) // let the idle task drain the termination list
		free := k.FreeHeapBytes()
		if free < prev {
			increasing = false
		}
		prev = free
	}
	k.Stop()

	final := k.FreeHeapBytes()
	return report("heap-coalescing", increasing && final == initial,
		fmt.Sprintf("initial=%d after-alloc=%d final=%d", initial, afterAlloc, final))
}
