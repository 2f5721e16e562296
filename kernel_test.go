// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recvWithTimeout(t *testing.T, ch <-chan string, d time.Duration) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(d):
		t.Fatal("timed out waiting for task output")
		return ""
	}
}

func TestSchedulerRunsHighestPriorityFirst(t *testing.T) {
	events := make(chan string, 8)
	k, err := NewKernel(NewSimPort(), WithMaxTasks(4))
	require.NoError(t, err)

	_, err = k.CreateTask(func(arg any) {
		events <- "high"
		k.Delete(nil)
	}, "high", 128, nil, 5)
	require.NoError(t, err)

	_, err = k.CreateTask(func(arg any) {
		events <- "low"
		k.Delete(nil)
	}, "low", 128, nil, 2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go k.StartScheduler(ctx)

	require.Equal(t, "high", recvWithTimeout(t, events, time.Second))
	require.Equal(t, "low", recvWithTimeout(t, events, time.Second))
}

func TestSchedulerRoundRobinsSamePriority(t *testing.T) {
	events := make(chan string, 8)
	k, err := NewKernel(NewSimPort(), WithMaxTasks(4))
	require.NoError(t, err)

	_, err = k.CreateTask(func(arg any) {
		events <- "a1"
		k.Yield()
		events <- "a2"
		k.Delete(nil)
	}, "a", 128, nil, 3)
	require.NoError(t, err)

	_, err = k.CreateTask(func(arg any) {
		events <- "b1"
		k.Yield()
		events <- "b2"
		k.Delete(nil)
	}, "b", 128, nil, 3)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go k.StartScheduler(ctx)

	got := make([]string, 4)
	for i := range got {
		got[i] = recvWithTimeout(t, events, time.Second)
	}
	require.Equal(t, []string{"a1", "b1", "a2", "b2"}, got)
}

func TestDelayWakesAfterTicksElapse(t *testing.T) {
	woke := make(chan uint32, 1)
	k, err := NewKernel(NewSimPort(), WithMaxTasks(4), WithTickRate(1000))
	require.NoError(t, err)

	_, err = k.CreateTask(func(arg any) {
		k.Delay(5)
		woke <- k.TickCount()
		k.Delete(nil)
	}, "sleeper", 128, nil, 3)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go k.StartScheduler(ctx)

	select {
	case tick := <-woke:
		require.GreaterOrEqual(t, tick, uint32(5))
	case <-time.After(2 * time.Second):
		t.Fatal("delayed task never woke")
	}
}

func TestSuspendedTaskNeverDispatched(t *testing.T) {
	ran := make(chan struct{}, 1)
	k, err := NewKernel(NewSimPort(), WithMaxTasks(4))
	require.NoError(t, err)

	handle, err := k.CreateTask(func(arg any) {
		ran <- struct{}{}
		k.Delete(nil)
	}, "victim", 128, nil, 5)
	require.NoError(t, err)

	k.Suspend(handle)

	marker := make(chan struct{}, 1)
	_, err = k.CreateTask(func(arg any) {
		marker <- struct{}{}
		k.Delete(nil)
	}, "marker", 128, nil, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go k.StartScheduler(ctx)

	<-marker

	select {
	case <-ran:
		t.Fatal("suspended task was dispatched")
	case <-time.After(50 * time.Millisecond):
	}

	k.Resume(handle)
	<-ran
}
