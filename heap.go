// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package minirtos

// byteAlignment matches the reference port's 8-byte alignment requirement
// for Cortex-M4 stack and heap addresses.
const byteAlignment = 8
const byteAlignmentMask = byteAlignment - 1

// allocatedBit marks a block header's size field as in-use. It occupies
// the top bit of a uint32, the same convention as the reference heap_4
// allocator.
const allocatedBit uint32 = 1 << 31

// blockLink is a free-list node living at the start of every block, free
// or allocated. For allocated blocks, next is always nil and size has
// allocatedBit set; free returns blocks whose next is non-nil or
// allocatedBit clear are rejected as already-free/corrupt.
type blockLink struct {
	next *blockLink
	size uint32
}

// heap is a first-fit, address-ordered, coalescing byte-arena allocator.
// It backs every task stack and queue buffer allocation made by a Kernel;
// TCBs themselves are ordinary Go allocations.
type heap struct {
	arena []byte

	start blockLink // fixed head of the free list, never allocated
	end   *blockLink

	freeBytes        uint32
	minFreeBytes     uint32
	blocksByAddr     map[*blockLink]int // offset into arena, for ordering, merging and pointer validation
	initialized      bool
}

// headerSize is the 8-byte-aligned size of a blockLink header. It is
// computed once from an arbitrary pointer width assumption shared by every
// block in the arena (they're all backed by the same Go slice, so offsets
// rather than unsafe.Sizeof drive the real accounting below).
const headerSize = 16

func newHeap(size uint32) *heap {
	h := &heap{
		arena:        make([]byte, size),
		blocksByAddr: make(map[*blockLink]int),
	}
	h.init()
	return h
}

func alignUp(n uint32) uint32 {
	if n&byteAlignmentMask != 0 {
		n += byteAlignment
		n &^= byteAlignmentMask
	}
	return n
}

// init carves the arena into one large free block followed by a
// zero-size end sentinel, mirroring prvHeapInit's first-call setup in the
// reference allocator.
func (h *heap) init() {
	total := uint32(len(h.arena))

	// place the end sentinel at the (aligned) tail of the arena
	endOffset := alignDown(total - headerSize)
	end := &blockLink{size: 0, next: nil}
	h.end = end
	h.blocksByAddr[end] = int(endOffset)

	first := &blockLink{}
	h.blocksByAddr[first] = 0
	first.size = endOffset
	first.next = end

	h.start.size = 0
	h.start.next = first

	h.freeBytes = first.size
	h.minFreeBytes = first.size
	h.initialized = true
}

func alignDown(n uint32) uint32 {
	return n &^ byteAlignmentMask
}

// insertFree reinserts a free block in address order, merging with its
// physical predecessor and/or successor when they are adjacent in the
// arena. Mirrors prvInsertBlockIntoFreeList from the reference allocator.
func (h *heap) insertFree(block *blockLink) {
	blockAddr := h.blocksByAddr[block]

	iter := &h.start
	for iter.next != nil && h.blocksByAddr[iter.next] < blockAddr {
		iter = iter.next
	}

	// merge with predecessor if adjacent
	if iter != &h.start {
		iterAddr := h.blocksByAddr[iter]
		if iterAddr+int(iter.size) == blockAddr {
			iter.size += block.size
			delete(h.blocksByAddr, block)
			block = iter
			blockAddr = iterAddr
		}
	}

	// merge with successor if adjacent
	if iter.next != nil && blockAddr+int(block.size) == h.blocksByAddr[iter.next] {
		if iter.next != h.end {
			next := iter.next
			block.size += next.size
			block.next = next.next
			delete(h.blocksByAddr, next)
		} else {
			block.next = h.end
		}
	} else {
		block.next = iter.next
	}

	if iter != block {
		iter.next = block
	}
}

// alloc finds the first free block large enough for n bytes plus header
// overhead, splits the remainder back into the free list when the leftover
// is worth keeping, and marks the returned block allocated.
func (h *heap) alloc(n uint32) []byte {
	if !h.initialized {
		h.init()
	}
	if n == 0 {
		return nil
	}

	wanted := n + headerSize
	wanted = alignUp(wanted)

	if wanted&allocatedBit != 0 || wanted > h.freeBytes {
		return nil
	}

	prev := &h.start
	block := h.start.next
	for block.size < wanted && block.next != nil {
		prev = block
		block = block.next
	}

	if block == h.end {
		return nil
	}

	prev.next = block.next
	offset := h.blocksByAddr[block]

	if block.size-wanted > headerSize*2 {
		newBlock := &blockLink{}
		newOffset := offset + int(wanted)
		h.blocksByAddr[newBlock] = newOffset
		newBlock.size = block.size - wanted
		block.size = wanted
		h.insertFree(newBlock)
	}

	h.freeBytes -= block.size &^ allocatedBit
	if h.freeBytes < h.minFreeBytes {
		h.minFreeBytes = h.freeBytes
	}

	block.size |= allocatedBit
	block.next = nil

	dataOffset := offset + headerSize
	dataLen := int(block.size&^allocatedBit) - headerSize
	// Deliberately NOT capped to dataLen: free() recovers the owning block
	// by comparing capacity against the full arena tail, the same way the
	// reference recovers a header via `pv - xHeapStructSize` pointer
	// arithmetic. Capping the slice here would destroy that information.
	return h.arena[dataOffset : dataOffset+dataLen]
}

// blockFor returns the blockLink owning a slice previously returned by
// alloc, used by free. In the reference this is pointer arithmetic
// (`(BlockLink_t*)(pv - xHeapStructSize)`); here it is a reverse lookup over
// the same offset table used by alloc/insertFree, keyed by the slice's
// uncapped offset into the arena. Because Go cannot overlay a struct
// directly onto a byte slice the way the reference C casts a uint8_t* to
// BlockLink_t*, the heap keeps this explicit offset-indexed side table
// (blocksByAddr) mapping each live *blockLink to its arena offset, used
// both to resolve pointers handed back to free and by insertFree to keep
// the free list address-ordered and to detect adjacent blocks.
func (h *heap) blockFor(p []byte) *blockLink {
	if len(p) == 0 {
		return nil
	}
	off := len(h.arena) - cap(p)
	want := off - headerSize
	for b, o := range h.blocksByAddr {
		if o == want {
			return b
		}
	}
	return nil
}

// free returns a previously allocated slice to the heap. A nil or
// zero-length slice is a no-op. A pointer that doesn't resolve to a
// currently-allocated block (already free, or foreign) is silently
// ignored, matching the reference's double-free tolerance.
func (h *heap) free(p []byte) {
	if len(p) == 0 {
		return
	}
	block := h.blockFor(p)
	if block == nil {
		return
	}
	if block.size&allocatedBit == 0 {
		return
	}
	if block.next != nil {
		return
	}

	block.size &^= allocatedBit
	h.freeBytes += block.size
	h.insertFree(block)
}

func (h *heap) freeBytesRemaining() uint32 {
	return h.freeBytes
}

func (h *heap) minimumEverFreeBytes() uint32 {
	return h.minFreeBytes
}
