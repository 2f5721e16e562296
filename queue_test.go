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

func newRunningKernel(t *testing.T, opts ...KernelOption) *Kernel {
	t.Helper()
	k, err := NewKernel(NewSimPort(), opts...)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go k.StartScheduler(ctx)
	return k
}

// Task closures run on goroutines SimPort spawns, not the goroutine
// running the test function, so assertions there report results over a
// channel instead of calling testify/require or t.Fatal directly (both
// require the test's own goroutine).

func TestQueueSendReceiveFIFO(t *testing.T) {
	k := newRunningKernel(t, WithMaxTasks(4), WithMaxQueues(4))

	q, err := k.CreateQueue(4, 4) // 4 uint32-sized slots
	require.NoError(t, err)

	done := make(chan []byte, 1)
	sendErrs := make(chan error, 1)

	_, err = k.CreateTask(func(arg any) {
		for _, b := range [][]byte{{1, 0, 0, 0}, {2, 0, 0, 0}, {3, 0, 0, 0}} {
			if err := q.Send(b, WaitForever); err != nil {
				sendErrs <- err
				k.Delete(nil)
				return
			}
		}
		sendErrs <- nil
		k.Delete(nil)
	}, "producer", 128, nil, 3)
	require.NoError(t, err)

	_, err = k.CreateTask(func(arg any) {
		var got []byte
		for i := 0; i < 3; i++ {
			buf := make([]byte, 4)
			if err := q.Receive(buf, WaitForever); err != nil {
				return
			}
			got = append(got, buf[0])
		}
		done <- got
		k.Delete(nil)
	}, "consumer", 128, nil, 2)
	require.NoError(t, err)

	require.NoError(t, <-sendErrs)
	select {
	case got := <-done:
		require.Equal(t, []byte{1, 2, 3}, got)
	case <-time.After(time.Second):
		t.Fatal("consumer never finished")
	}
}

func TestQueueSendBlocksWhenFullUntilReceive(t *testing.T) {
	k := newRunningKernel(t, WithMaxTasks(4), WithMaxQueues(4))

	q, err := k.CreateQueue(1, 0) // capacity 1, zero-size items
	require.NoError(t, err)

	secondSendDone := make(chan error, 1)

	_, err = k.CreateTask(func(arg any) {
		_ = q.Send(nil, WaitForever)           // fills the queue
		secondSendDone <- q.Send(nil, WaitForever) // blocks until receive
		k.Delete(nil)
	}, "producer", 128, nil, 3)
	require.NoError(t, err)

	select {
	case <-secondSendDone:
		t.Fatal("second send completed before any receive")
	case <-time.After(30 * time.Millisecond):
	}

	_, err = k.CreateTask(func(arg any) {
		_ = q.Receive(nil, WaitForever)
		k.Delete(nil)
	}, "consumer", 128, nil, 2)
	require.NoError(t, err)

	select {
	case err := <-secondSendDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second send never unblocked")
	}
}

func TestQueueReceiveTimesOutWhenEmpty(t *testing.T) {
	k := newRunningKernel(t, WithMaxTasks(4), WithMaxQueues(4), WithTickRate(1000))

	q, err := k.CreateQueue(1, 0)
	require.NoError(t, err)

	result := make(chan error, 1)
	_, err = k.CreateTask(func(arg any) {
		result <- q.Receive(nil, 5)
		k.Delete(nil)
	}, "waiter", 128, nil, 3)
	require.NoError(t, err)

	select {
	case err := <-result:
		require.ErrorIs(t, err, ErrTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("receive never timed out")
	}
}

func TestQueueNonBlockingSendFailsWhenFull(t *testing.T) {
	k := newRunningKernel(t, WithMaxTasks(4), WithMaxQueues(4))

	q, err := k.CreateQueue(1, 0)
	require.NoError(t, err)

	result := make(chan error, 1)
	_, err = k.CreateTask(func(arg any) {
		_ = q.Send(nil, 0)
		result <- q.Send(nil, 0)
		k.Delete(nil)
	}, "t", 128, nil, 3)
	require.NoError(t, err)

	select {
	case err := <-result:
		require.ErrorIs(t, err, ErrTimeout)
	case <-time.After(time.Second):
		t.Fatal("non-blocking send never returned")
	}
}
