package vmm

import (
	"github.com/evkrnl/evkrnl/kernel"
	"github.com/evkrnl/evkrnl/kernel/mem"
)

// heapVirtTop is the first address past the kernel heap window. Region
// reservations are carved downward from here, toward mem.HeapVirtBase.
const heapVirtTop = mem.HeapVirtBase + uintptr(mem.HeapVirtSize)

var (
	// earlyReserveLastUsed tracks the lowest address reserved so far
	// within the heap window and is decreased after each reservation.
	earlyReserveLastUsed = heapVirtTop

	errEarlyReserveNoSpace = &kernel.Error{Module: "vmm", Message: "kernel heap window exhausted"}
)

// EarlyReserveRegion reserves a page-aligned contiguous virtual memory
// region of the requested size within the kernel heap window and returns its
// start address. size is rounded up to the nearest page boundary.
//
// Regions are carved from the top of the window downward; once reserved, a
// region is never returned to the pool. It underlies both the big heap's
// block growth and any other early-boot structure that needs a chunk of
// address space distinct from the identity-mapped physical memory region.
func EarlyReserveRegion(size mem.Size) (uintptr, *kernel.Error) {
	size = (size + (mem.PageSize - 1)) &^ (mem.PageSize - 1)

	if uintptr(size) > earlyReserveLastUsed-mem.HeapVirtBase {
		return 0, errEarlyReserveNoSpace
	}

	earlyReserveLastUsed -= uintptr(size)
	return earlyReserveLastUsed, nil
}
