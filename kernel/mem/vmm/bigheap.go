package vmm

import (
	"github.com/evkrnl/evkrnl/kernel"
	"github.com/evkrnl/evkrnl/kernel/mem"
	"github.com/evkrnl/evkrnl/kernel/sync"
)

// bigBlockMinSplit is the smallest remainder worth splitting off into its
// own free block; smaller remainders are left attached to the satisfying
// allocation to avoid a proliferation of tiny unusable blocks.
const bigBlockMinSplit = 64

var (
	errBigHeapExhausted  = &kernel.Error{Module: "vmm", Message: "kernel heap window exhausted"}
	errDoubleFreeBigHeap = &kernel.Error{Module: "vmm", Message: "double free of big heap block"}
)

// bigBlock describes one block of the big heap. Blocks are bookkeeping-only
// structures kept outside the memory they describe; they are created
// lazily (via the Go runtime allocator) the first time the big heap needs
// to grow, well after package goruntime has bootstrapped make/new support.
type bigBlock struct {
	addr uintptr
	size uintptr
	used bool
	next *bigBlock
}

var (
	bigHeapMu   sync.Spinlock
	bigHeapHead *bigBlock
)

func bigHeapInit() *kernel.Error {
	bigHeapHead = nil
	return nil
}

// bigHeapGrow reserves and maps one mem.HeapBlockSize block of fresh
// virtual memory and links it onto the free list as a single block.
func bigHeapGrow() *kernel.Error {
	virtAddr, err := earlyReserveRegionFn(mem.HeapBlockSize)
	if err != nil {
		return err
	}

	page := PageFromAddress(virtAddr)
	pageCount := uintptr(mem.HeapBlockSize) >> mem.PageShift
	for i := uintptr(0); i < pageCount; i++ {
		frame, err := frameAllocator()
		if err != nil {
			return err
		}
		if err := mapFn(page+Page(i), frame, FlagPresent|FlagRW|FlagNoExecute); err != nil {
			return err
		}
	}

	bigHeapHead = &bigBlock{addr: virtAddr, size: uintptr(mem.HeapBlockSize), next: bigHeapHead}
	return nil
}

// bigHeapAlloc satisfies a big-heap request using first-fit search over the
// free block list. If no block is large enough, the heap grows by one
// mem.HeapBlockSize block and the search is retried once.
func bigHeapAlloc(size uintptr) (uintptr, *kernel.Error) {
	size = (size + 15) &^ 15

	bigHeapMu.Acquire()
	defer bigHeapMu.Release()

	for attempt := 0; attempt < 2; attempt++ {
		for blk := bigHeapHead; blk != nil; blk = blk.next {
			if blk.used || blk.size < size {
				continue
			}

			if blk.size > size+bigBlockMinSplit {
				remainder := &bigBlock{addr: blk.addr + size, size: blk.size - size, next: blk.next}
				blk.next = remainder
				blk.size = size
			}
			blk.used = true
			return blk.addr, nil
		}

		if err := bigHeapGrow(); err != nil {
			return 0, errBigHeapExhausted
		}
	}

	return 0, errBigHeapExhausted
}

// bigHeapFree marks the block starting at addr as free. Adjacent free
// blocks are not coalesced; a block freed and re-requested at the same
// size reuses its own slot immediately, which covers the steady-state
// tagged big allocations this kernel makes (DMA buffers, module scratch).
func bigHeapFree(addr uintptr) {
	bigHeapMu.Acquire()
	defer bigHeapMu.Release()

	for blk := bigHeapHead; blk != nil; blk = blk.next {
		if blk.addr != addr {
			continue
		}
		if !blk.used {
			kernel.Panic(errDoubleFreeBigHeap)
		}
		blk.used = false
		return
	}

	kernel.Panic(errFreeNotOwned)
}
