package minirtos

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeapAllocFreeCoalesces(t *testing.T) {
	h := newHeap(4096)
	initial := h.freeBytesRemaining()

	p1 := h.alloc(100)
	p2 := h.alloc(200)
	p3 := h.alloc(300)
	require.NotNil(t, p1)
	require.NotNil(t, p2)
	require.NotNil(t, p3)
	require.Less(t, h.freeBytesRemaining(), initial)

	h.free(p2)
	afterP2 := h.freeBytesRemaining()
	h.free(p1)
	afterP1 := h.freeBytesRemaining()
	require.Greater(t, afterP1, afterP2)
	h.free(p3)

	require.Equal(t, initial, h.freeBytesRemaining())

	big := h.alloc(100 + 200 + 300)
	require.NotNil(t, big)
}

func TestHeapNoOverlap(t *testing.T) {
	h := newHeap(4096)
	a := h.alloc(64)
	b := h.alloc(64)
	require.NotNil(t, a)
	require.NotNil(t, b)

	for i := range a {
		a[i] = 0xAA
	}
	for i := range b {
		b[i] = 0xBB
	}
	for _, v := range a {
		require.Equal(t, byte(0xAA), v)
	}
}

func TestHeapAllocZeroReturnsNil(t *testing.T) {
	h := newHeap(1024)
	require.Nil(t, h.alloc(0))
}

func TestHeapAllocExhaustion(t *testing.T) {
	h := newHeap(256)
	require.Nil(t, h.alloc(10000))
}

func TestHeapDoubleFreeIgnored(t *testing.T) {
	h := newHeap(4096)
	p := h.alloc(64)
	free1 := h.freeBytesRemaining()
	h.free(p)
	afterFirst := h.freeBytesRemaining()
	require.Greater(t, afterFirst, free1)
	h.free(p)
	require.Equal(t, afterFirst, h.freeBytesRemaining())
}

func TestHeapMinimumEverFreeBytes(t *testing.T) {
	h := newHeap(4096)
	initial := h.minimumEverFreeBytes()
	p := h.alloc(1000)
	require.Less(t, h.minimumEverFreeBytes(), initial)
	h.free(p)
	// minimum-ever never recovers after a free
	require.Less(t, h.minimumEverFreeBytes(), initial)
}
