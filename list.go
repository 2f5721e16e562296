// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

// sentinelValue terminates a sorted insertion scan: no real wake tick or
// priority value is ever this large, so inserting it always lands the node
// immediately before a list's own sentinel.
const sentinelValue uint32 = 0xFFFFFFFF

// listItem is an intrusive doubly-linked-list node. A TCB embeds two of
// these (stateItem, eventItem) so it can sit on a ready/delayed/suspended
// list and a primitive's waiter list simultaneously, with no allocation at
// link time.
type listItem struct {
	value     uint32
	next      *listItem
	prev      *listItem
	container *list // nil iff unlinked
	owner     *tcb
}

func initListItem(n *listItem) {
	n.container = nil
}

// list is a circular doubly-linked list closed by an embedded sentinel
// node. An empty list's sentinel points to itself in both directions and
// the cursor references the sentinel.
type list struct {
	count    uint32
	cursor   *listItem
	sentinel listItem
}

func initList(l *list) {
	l.count = 0
	l.sentinel.value = sentinelValue
	l.sentinel.next = &l.sentinel
	l.sentinel.prev = &l.sentinel
	l.cursor = &l.sentinel
}

func (l *list) empty() bool {
	return l.count == 0
}

// front returns the first real (non-sentinel) node, or nil if empty.
func (l *list) front() *listItem {
	if l.count == 0 {
		return nil
	}
	return l.sentinel.next
}

// insertTail places n immediately before the cursor, so that repeatedly
// advancing the cursor visits nodes in insertion order. Used for ready-list
// FIFO ordering at a given priority.
func (l *list) insertTail(n *listItem) {
	n.next = l.cursor
	n.prev = l.cursor.prev
	l.cursor.prev.next = n
	l.cursor.prev = n
	n.container = l
	l.count++
}

// insertSorted finds the first node whose value is strictly greater than
// n.value, scanning from just after the sentinel, and inserts n before it.
// Ties keep FIFO order: n is placed after any existing node with an equal
// value. sentinelValue is always placed immediately before the sentinel.
func (l *list) insertSorted(n *listItem) {
	iter := &l.sentinel
	for iter.next != &l.sentinel && iter.next.value <= n.value {
		iter = iter.next
	}
	n.next = iter.next
	n.prev = iter
	iter.next.prev = n
	iter.next = n
	n.container = l
	l.count++
}

// removeListItem unlinks n from whatever list contains it and returns that list's
// remaining item count. If the cursor pointed at n, the cursor steps back
// to n's predecessor so a subsequent advance does not skip a node.
func removeListItem(n *listItem) uint32 {
	n.next.prev = n.prev
	n.prev.next = n.next

	l := n.container
	if l.cursor == n {
		l.cursor = n.prev
	}
	l.count--

	n.container = nil
	n.next = nil
	n.prev = nil

	return l.count
}
