package vmm

import (
	"github.com/evkrnl/evkrnl/kernel"
	"github.com/evkrnl/evkrnl/kernel/cpu"
	"github.com/evkrnl/evkrnl/kernel/mem"
	"github.com/evkrnl/evkrnl/kernel/mem/pmm"
)

var (
	// flushTLBEntryFn is used by tests to override calls to flushTLBEntry
	// which will cause a fault if called outside ring 0.
	flushTLBEntryFn = cpu.FlushTLBEntry

	earlyReserveRegionFn = EarlyReserveRegion
	mapFn                = Map
	unmapFn              = Unmap

	errNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
	errNotMapped         = &kernel.Error{Module: "vmm", Message: "page is not mapped"}
)

// Map establishes a mapping between a virtual page and a physical memory
// frame using the currently active top-level page table. Missing
// intermediate page tables are allocated on demand via the registered frame
// allocator and cleared through the fixed identity mapping before being
// linked in.
func Map(page Page, frame pmm.Frame, flags PageTableEntryFlag) *kernel.Error {
	var err *kernel.Error

	walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		if pteLevel == pageLevels-1 {
			*pte = 0
			pte.SetFrame(frame)
			pte.SetFlags(flags | FlagPresent)
			flushTLBEntryFn(page.Address())
			return true
		}

		if pte.HasFlags(FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		if !pte.HasFlags(FlagPresent) {
			var newTableFrame pmm.Frame
			newTableFrame, err = frameAllocator()
			if err != nil {
				return false
			}

			mem.Memset(PhysToVirt(newTableFrame.Address()), 0, mem.PageSize)

			*pte = 0
			pte.SetFrame(newTableFrame)
			pte.SetFlags(FlagPresent | FlagRW)
		}

		return true
	})

	return err
}

// Remap updates the physical frame and/or flags of an already-present
// mapping without touching any intermediate page table. It is used when a
// page's protection bits change (e.g. the kernel heap marking a freshly
// mapped block executable-never) or when a frame backing a page is swapped
// for another one of the same size.
func Remap(page Page, frame pmm.Frame, flags PageTableEntryFlag) *kernel.Error {
	pte, err := pteForAddress(page.Address())
	if err != nil {
		return err
	}

	*pte = 0
	pte.SetFrame(frame)
	pte.SetFlags(flags | FlagPresent)
	flushTLBEntryFn(page.Address())
	return nil
}

// MapRange establishes mappings for pageCount consecutive pages starting at
// startPage, backed by pageCount consecutive physical frames starting at
// startFrame. If any page in the range fails to map, MapRange stops and
// returns the error; pages mapped before the failure are left in place.
func MapRange(startPage Page, startFrame pmm.Frame, pageCount uintptr, flags PageTableEntryFlag) *kernel.Error {
	for i := uintptr(0); i < pageCount; i++ {
		if err := mapFn(startPage+Page(i), startFrame+pmm.Frame(i), flags); err != nil {
			return err
		}
	}
	return nil
}

// MapRegion reserves the next available region of virtual address space
// large enough to hold size bytes, maps it to the physical memory starting
// at frame and returns the Page at the start of the new mapping. size is
// rounded up to the nearest page boundary.
func MapRegion(frame pmm.Frame, size mem.Size, flags PageTableEntryFlag) (Page, *kernel.Error) {
	size = (size + (mem.PageSize - 1)) &^ (mem.PageSize - 1)
	startPage, err := earlyReserveRegionFn(size)
	if err != nil {
		return 0, err
	}

	page := PageFromAddress(startPage)
	if err := MapRange(page, frame, uintptr(size>>mem.PageShift), flags); err != nil {
		return 0, err
	}

	return page, nil
}

// Unmap clears the present bit for a previously mapped page and flushes its
// TLB entry. The backing physical frame is left allocated; use UnmapClean to
// also release it back to the physical allocator.
func Unmap(page Page) *kernel.Error {
	var err *kernel.Error

	walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		if pteLevel == pageLevels-1 {
			if !pte.HasFlags(FlagPresent) {
				err = errNotMapped
				return false
			}
			pte.ClearFlags(FlagPresent)
			flushTLBEntryFn(page.Address())
			return true
		}

		if !pte.HasFlags(FlagPresent) {
			err = ErrInvalidMapping
			return false
		}

		if pte.HasFlags(FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		return true
	})

	return err
}

// UnmapClean unmaps page and returns its backing physical frame to the
// registered frame allocator via frameReleaser. It is the counterpart to Map
// for mappings the kernel owns outright (heap blocks, slab backing pages)
// rather than ones describing memory owned by someone else (e.g. the
// initramfs image).
func UnmapClean(page Page) *kernel.Error {
	pte, err := pteForAddress(page.Address())
	if err != nil {
		return err
	}
	frame := pte.Frame()

	if err := unmapFn(page); err != nil {
		return err
	}

	return frameReleaser(frame)
}
