// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListInsertTailFIFO(t *testing.T) {
	var l list
	initList(&l)

	var a, b, c listItem
	initListItem(&a)
	initListItem(&b)
	initListItem(&c)

	l.insertTail(&a)
	l.insertTail(&b)
	l.insertTail(&c)

	require.Equal(t, uint32(3), l.count)
	require.Same(t, &a, l.front())

	require.Equal(t, uint32(2), removeListItem(&a))
	require.Same(t, &b, l.front())
}

func TestListInsertSortedOrdersByValueWithTiesAfter(t *testing.T) {
	var l list
	initList(&l)

	items := []*listItem{{}, {}, {}, {}}
	values := []uint32{10, 5, 5, 20}
	for i, it := range items {
		initListItem(it)
		it.value = values[i]
		l.insertSorted(it)
	}

	var got []uint32
	for n := l.sentinel.next; n != &l.sentinel; n = n.next {
		got = append(got, n.value)
	}
	require.Equal(t, []uint32{5, 5, 10, 20}, got)
	// Ties: the second 5 (items[2]) must land after the first (items[1]).
	require.Same(t, items[1], l.sentinel.next)
	require.Same(t, items[2], l.sentinel.next.next)
}

func TestListInsertSortedSentinelValueGoesLast(t *testing.T) {
	var l list
	initList(&l)

	var low, wrap listItem
	initListItem(&low)
	low.value = 100
	initListItem(&wrap)
	wrap.value = sentinelValue

	l.insertSorted(&wrap)
	l.insertSorted(&low)

	require.Same(t, &low, l.front())
	require.Same(t, &wrap, l.sentinel.prev)
}

func TestRemoveListItemStepsCursorBack(t *testing.T) {
	var l list
	initList(&l)

	var a, b listItem
	initListItem(&a)
	initListItem(&b)
	l.insertTail(&a)
	l.insertTail(&b)

	l.cursor = &a
	removeListItem(&a)
	require.Same(t, &l.sentinel, l.cursor)
}

func TestListEmpty(t *testing.T) {
	var l list
	initList(&l)
	require.True(t, l.empty())

	var a listItem
	initListItem(&a)
	l.insertTail(&a)
	require.False(t, l.empty())

	removeListItem(&a)
	require.True(t, l.empty())
}
