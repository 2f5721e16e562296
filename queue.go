// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

import "github.com/rs/xid"

// WaitForever passed as ticksToWait blocks until the operation can
// complete, with no timeout. It is numerically the same sentinel the list
// package uses to terminate a sorted chain; a caller will never carry both
// meanings in the same value, so sharing the constant is safe and the
// reference firmware does the same (portMAX_DELAY == 0xFFFFFFFF).
const WaitForever uint32 = sentinelValue

// Queue is a fixed-capacity circular-buffer message queue with two waiter
// lists (senders blocked on a full queue, receivers blocked on an empty
// one). A zero item size turns it into a pure rendezvous/counter with no
// backing storage, which is how Semaphore and Mutex are built on top of it.
type Queue struct {
	k *Kernel

	id string

	buf      []byte
	itemSize uint32
	length   uint32 // capacity, in items

	writeTo, readFrom uint32 // byte offsets into buf
	messagesWaiting   uint32

	sendWaiters, recvWaiters list
}

// CreateQueue allocates a queue able to hold length items of itemSize
// bytes each. Returns a *CapacityError if the queue pool or the backing
// heap cannot satisfy the request.
func (k *Kernel) CreateQueue(length, itemSize uint32) (*Queue, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.createQueueLocked(length, itemSize)
}

func (k *Kernel) createQueueLocked(length, itemSize uint32) (*Queue, error) {
	if length == 0 {
		return nil, WrapError("queue length", ErrInvalidArgument)
	}
	if k.queueCount >= k.maxQueues {
		k.log.capacityExhausted("queues")
		return nil, &CapacityError{Resource: "queues"}
	}

	q := &Queue{
		k:        k,
		id:       xid.New().String(),
		itemSize: itemSize,
		length:   length,
	}
	if need := length * itemSize; need > 0 {
		buf := k.heap.alloc(need)
		if buf == nil {
			k.log.capacityExhausted("heap")
			return nil, &CapacityError{Resource: "heap"}
		}
		q.buf = buf
	}
	initList(&q.sendWaiters)
	initList(&q.recvWaiters)

	k.queueCount++
	k.registry.register(q.id, q)

	return q, nil
}

func (q *Queue) ID() string { return q.id }

// MessagesWaiting returns the number of items currently queued.
func (q *Queue) MessagesWaiting() uint32 {
	q.k.mu.Lock()
	defer q.k.mu.Unlock()
	return q.messagesWaiting
}

func (q *Queue) copyIn(item []byte) {
	if q.itemSize > 0 {
		copy(q.buf[q.writeTo:q.writeTo+q.itemSize], item)
		q.writeTo += q.itemSize
		if q.writeTo >= uint32(len(q.buf)) {
			q.writeTo = 0
		}
	}
	q.messagesWaiting++
}

func (q *Queue) copyOut(out []byte) {
	if q.itemSize > 0 {
		copy(out, q.buf[q.readFrom:q.readFrom+q.itemSize])
		q.readFrom += q.itemSize
		if q.readFrom >= uint32(len(q.buf)) {
			q.readFrom = 0
		}
	}
	q.messagesWaiting--
}

// blockCurrentLocked parks self on waiters and, unless ticksToWait is
// WaitForever, also on the delayed list so a timeout wakes it. Caller
// holds k.mu and must unlock before calling Port.Suspend.
func (k *Kernel) blockCurrentLocked(self *tcb, waiters *list, ticksToWait uint32) {
	k.removeFromStateListLocked(self)
	waiters.insertTail(&self.eventItem)
	if ticksToWait == WaitForever {
		return
	}
	wake := k.tickCount + ticksToWait
	self.stateItem.value = wake
	if wake < k.tickCount {
		k.delayedOver.insertSorted(&self.stateItem)
	} else {
		k.delayedActive.insertSorted(&self.stateItem)
		if wake < k.nextUnblock {
			k.nextUnblock = wake
		}
	}
}

// wakeWaiterLocked pops the head of waiters (FIFO), detaches it from any
// delayed list it is also parked on, and returns it to the ready list.
// Mirrors the repeated "wake the first waiter" block in queue.c's
// xQueueSend/xQueueReceive and mutex.c's xMutexGive.
func (k *Kernel) wakeWaiterLocked(waiters *list) *tcb {
	if waiters.empty() {
		return nil
	}
	item := waiters.front()
	removeListItem(item)
	woken := item.owner
	if woken.stateItem.container != nil {
		removeListItem(&woken.stateItem)
	}
	k.addToReadyLocked(woken)
	return woken
}

// Send writes item (ignored when the queue's item size is 0) to the
// queue, blocking up to ticksToWait ticks if it is full.
func (q *Queue) Send(item []byte, ticksToWait uint32) error {
	k := q.k
	for {
		k.mu.Lock()
		if q.messagesWaiting < q.length {
			q.copyIn(item)
			k.wakeWaiterLocked(&q.recvWaiters)
			k.mu.Unlock()
			return nil
		}
		if ticksToWait == 0 {
			k.mu.Unlock()
			return ErrTimeout
		}
		self := k.current
		k.blockCurrentLocked(self, &q.sendWaiters, ticksToWait)
		k.mu.Unlock()

		k.port.Suspend(self.frame)
		ticksToWait = 0
	}
}

// Receive reads the oldest item into out (ignored when the queue's item
// size is 0), blocking up to ticksToWait ticks if it is empty.
func (q *Queue) Receive(out []byte, ticksToWait uint32) error {
	k := q.k
	for {
		k.mu.Lock()
		if q.messagesWaiting > 0 {
			q.copyOut(out)
			k.wakeWaiterLocked(&q.sendWaiters)
			k.mu.Unlock()
			return nil
		}
		if ticksToWait == 0 {
			k.mu.Unlock()
			return ErrTimeout
		}
		self := k.current
		k.blockCurrentLocked(self, &q.recvWaiters, ticksToWait)
		k.mu.Unlock()

		k.port.Suspend(self.frame)
		ticksToWait = 0
	}
}
