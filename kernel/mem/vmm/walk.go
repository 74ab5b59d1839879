package vmm

import (
	"unsafe"

	"github.com/evkrnl/evkrnl/kernel/cpu"
	"github.com/evkrnl/evkrnl/kernel/mem"
)

// x86-64 uses 4 levels of paging (PML4, PDPT, PD, PT), each indexed by 9
// bits of the virtual address, with the bottom 12 bits selecting a byte
// within the final page.
const pageLevels = 4

var (
	pageLevelShifts = [pageLevels]uint{39, 30, 21, 12}
	pageLevelBits   = [pageLevels]uint{9, 9, 9, 9}
)

var (
	// activePDTFn returns the physical address of the currently active
	// top-level page table. Mocked by tests.
	activePDTFn = cpu.ActivePDT

	// ptePtrFn returns a pointer to the page table entry at the given
	// virtual address. Tests override this to walk an in-memory fake
	// page table hierarchy instead of dereferencing real memory. When
	// compiling the kernel this function is automatically inlined.
	ptePtrFn = func(entryAddr uintptr) unsafe.Pointer {
		return unsafe.Pointer(entryAddr)
	}
)

// PhysToVirt returns the virtual address at which the physical address
// physAddr is reachable through the kernel's fixed identity mapping.
func PhysToVirt(physAddr uintptr) uintptr {
	return mem.Offset + physAddr
}

// pageTableWalker is a function that can be passed to the walk method. The
// function receives the current page level and page table entry as its
// arguments. If the function returns false, then the page walk is aborted.
type pageTableWalker func(pteLevel uint8, pte *pageTableEntry) bool

// walk performs a page table walk for the given virtual address, starting at
// the currently active top-level table. Unlike a recursively self-mapped
// scheme, each intermediate table is reached by translating its physical
// frame address through the kernel's fixed identity mapping (PhysToVirt)
// rather than through a dedicated recursive page-table slot: this kernel
// maps all of physical memory up front, so no such slot is needed.
func walk(virtAddr uintptr, walkFn pageTableWalker) {
	tablePhys := uintptr(activePDTFn())

	for level := uint8(0); level < pageLevels; level++ {
		entryIndex := (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
		entryAddr := PhysToVirt(tablePhys) + (entryIndex << mem.PointerShift)

		pte := (*pageTableEntry)(ptePtrFn(entryAddr))
		if ok := walkFn(level, pte); !ok {
			return
		}

		tablePhys = pte.Frame().Address()
	}
}
