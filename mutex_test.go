// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMutexExcludesConcurrentHolders(t *testing.T) {
	k := newRunningKernel(t, WithMaxTasks(4), WithMaxMutexes(4))

	m, err := k.CreateMutex()
	require.NoError(t, err)

	var order []string
	results := make(chan []string, 1)
	release := make(chan struct{})

	_, err = k.CreateTask(func(arg any) {
		_ = m.Take(WaitForever)
		order = append(order, "a-in")
		<-release
		order = append(order, "a-out")
		_ = m.Give()
		results <- order
		k.Delete(nil)
	}, "a", 128, nil, 3)
	require.NoError(t, err)

	_, err = k.CreateTask(func(arg any) {
		_ = m.Take(WaitForever)
		order = append(order, "b-in")
		order = append(order, "b-out")
		_ = m.Give()
		results <- order
		k.Delete(nil)
	}, "b", 128, nil, 3)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case got := <-results:
		require.Equal(t, []string{"a-in", "a-out", "b-in", "b-out"}, got)
	case <-time.After(time.Second):
		t.Fatal("mutex holders never finished")
	}
}

func TestMutexPriorityInheritance(t *testing.T) {
	k := newRunningKernel(t, WithMaxTasks(4), WithMaxMutexes(4))

	m, err := k.CreateMutex()
	require.NoError(t, err)

	lowHolding := make(chan struct{})
	boosted := make(chan uint32, 1)
	done := make(chan struct{}, 1)

	var lowHandle *Task
	lowHandle, err = k.CreateTask(func(arg any) {
		_ = m.Take(WaitForever)
		close(lowHolding)
		for i := 0; i < 20; i++ {
			k.Yield()
		}
		boosted <- k.TaskPriority(lowHandle)
		_ = m.Give()
		k.Delete(nil)
	}, "low", 128, nil, 1)
	require.NoError(t, err)

	<-lowHolding

	_, err = k.CreateTask(func(arg any) {
		_ = m.Take(WaitForever)
		_ = m.Give()
		done <- struct{}{}
		k.Delete(nil)
	}, "high", 128, nil, 6)
	require.NoError(t, err)

	select {
	case p := <-boosted:
		require.Equal(t, uint32(6), p)
	case <-time.After(time.Second):
		t.Fatal("low-priority holder was never boosted")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("high-priority waiter never acquired the mutex")
	}
}

// TestMutexChainedInheritanceCanUnderRestore demonstrates the accepted
// single-level limitation documented on Mutex: a task holding two mutexes
// records each one's "priority at acquire time" independently, so releasing
// the first can restore a priority that predates a boost still owed to a
// waiter blocked on the second.
func TestMutexChainedInheritanceCanUnderRestore(t *testing.T) {
	k := newRunningKernel(t, WithMaxTasks(4), WithMaxMutexes(4))

	mA, err := k.CreateMutex()
	require.NoError(t, err)
	mB, err := k.CreateMutex()
	require.NoError(t, err)

	bothHeld := make(chan struct{})
	afterGiveA := make(chan uint32, 1)

	var lowHandle *Task
	lowHandle, err = k.CreateTask(func(arg any) {
		_ = mB.Take(WaitForever) // acquired at priority 1: mB's recorded original is 1
		_ = mA.Take(WaitForever) // also acquired at priority 1, before any boost
		close(bothHeld)
		k.Delay(60) // let HA block and the boost to 5 land while asleep
		_ = mA.Give()
		afterGiveA <- k.TaskPriority(lowHandle)
		_ = mB.Give()
		k.Delete(nil)
	}, "low", 128, nil, 1)
	require.NoError(t, err)

	select {
	case <-bothHeld:
	case <-time.After(time.Second):
		t.Fatal("low-priority holder never acquired both mutexes")
	}

	doneA := make(chan struct{}, 1)
	_, err = k.CreateTask(func(arg any) {
		_ = mA.Take(WaitForever)
		doneA <- struct{}{}
		_ = mA.Give()
		k.Delete(nil)
	}, "high-a", 128, nil, 5)
	require.NoError(t, err)

	deadline := time.Now().Add(time.Second)
	for k.TaskPriority(lowHandle) != 5 {
		if time.Now().After(deadline) {
			t.Fatal("holder was never boosted to the priority-5 waiter on mA")
		}
		time.Sleep(time.Millisecond)
	}

	doneB := make(chan struct{}, 1)
	_, err = k.CreateTask(func(arg any) {
		_ = mB.Take(WaitForever)
		doneB <- struct{}{}
		_ = mB.Give()
		k.Delete(nil)
	}, "high-b", 128, nil, 3)
	require.NoError(t, err)

	// HB's block does not raise the holder further (5 already exceeds 3), so
	// mB's recorded original priority stays the stale value captured at
	// acquire time: 1, not the 3 a correct multi-level scheme would need to
	// keep until mB is released.
	select {
	case p := <-afterGiveA:
		require.Equal(t, uint32(1), p,
			"holder drops to its true original priority while still holding mB, even though high-b (priority 3) remains blocked on it")
	case <-time.After(time.Second):
		t.Fatal("holder never gave back mA")
	}

	select {
	case <-doneA:
	case <-time.After(time.Second):
		t.Fatal("high-a never acquired mA")
	}
	select {
	case <-doneB:
	case <-time.After(time.Second):
		t.Fatal("high-b never acquired mB")
	}
}

func TestMutexGiveByNonOwnerFails(t *testing.T) {
	k := newRunningKernel(t, WithMaxTasks(4), WithMaxMutexes(4))

	m, err := k.CreateMutex()
	require.NoError(t, err)

	result := make(chan error, 1)
	_, err = k.CreateTask(func(arg any) {
		result <- m.Give()
		k.Delete(nil)
	}, "bystander", 128, nil, 3)
	require.NoError(t, err)

	select {
	case err := <-result:
		var ownErr *OwnershipError
		require.ErrorAs(t, err, &ownErr)
	case <-time.After(time.Second):
		t.Fatal("non-owner release never returned")
	}
}
