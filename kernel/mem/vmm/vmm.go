package vmm

import (
	"github.com/evkrnl/evkrnl/kernel"
	"github.com/evkrnl/evkrnl/kernel/cpu"
	"github.com/evkrnl/evkrnl/kernel/irq"
	"github.com/evkrnl/evkrnl/kernel/kfmt"
	"github.com/evkrnl/evkrnl/kernel/mem"
	"github.com/evkrnl/evkrnl/kernel/mem/pmm"
)

var (
	// frameAllocator supplies physical frames for new page tables and
	// heap growth. It must be registered via SetFrameAllocator before
	// Init is called.
	frameAllocator FrameAllocatorFn

	// frameReleaser returns a physical frame to the allocator it came
	// from. It must be registered via SetFrameReleaser before Init is
	// called.
	frameReleaser FrameReleaserFn

	// the following are mocked by tests and automatically inlined by the
	// compiler when compiling the kernel.
	handleExceptionWithCodeFn = irq.HandleExceptionWithCode
	readCR2Fn                 = cpu.ReadCR2

	errUnrecoverableFault = &kernel.Error{Module: "vmm", Message: "page fault or general protection fault"}
)

// FrameAllocatorFn is a function that can allocate physical frames.
type FrameAllocatorFn func() (pmm.Frame, *kernel.Error)

// FrameReleaserFn is a function that can release a previously allocated
// physical frame.
type FrameReleaserFn func(pmm.Frame) *kernel.Error

// SetFrameAllocator registers the frame allocator function used by the vmm
// package whenever a new physical frame is needed (page tables, heap
// blocks).
func SetFrameAllocator(allocFn FrameAllocatorFn) {
	frameAllocator = allocFn
}

// SetFrameReleaser registers the function used to return a physical frame
// that is no longer referenced by any mapping.
func SetFrameReleaser(freeFn FrameReleaserFn) {
	frameReleaser = freeFn
}

// Init installs paging-related exception handlers and asserts that the
// kernel heap window does not overlap the fixed identity mapping of
// physical memory. It must run after the physical allocator has adopted its
// regions and a frame allocator/releaser pair has been registered.
func Init() *kernel.Error {
	assertHeapWindowDisjointFromIdentityMap()

	handleExceptionWithCodeFn(irq.PageFaultException, pageFaultHandler)
	handleExceptionWithCodeFn(irq.GPFException, generalProtectionFaultHandler)

	return initHeap()
}

// assertHeapWindowDisjointFromIdentityMap panics at boot if the constants in
// kernel/mem ever drift so that the heap window and the physical identity
// map alias the same top-level page table slot - the invariant the whole
// heap design depends on.
func assertHeapWindowDisjointFromIdentityMap() {
	pml4Index := func(addr uintptr) uintptr { return (addr >> 39) & 0x1FF }

	identitySlot := pml4Index(mem.Offset)
	heapSlot := pml4Index(mem.HeapVirtBase)
	heapEndSlot := pml4Index(heapVirtTop - 1)

	if identitySlot == heapSlot || identitySlot == heapEndSlot {
		kernel.Panic(&kernel.Error{Module: "vmm", Message: "kernel heap window overlaps identity-mapped physical memory"})
	}
}

// pageFaultHandler reports diagnostic information about an unexpected page
// fault. Demand paging is out of scope for this kernel, so every page fault
// is unrecoverable: the faulting address is either a programming error (a
// bad pointer) or a real out-of-memory condition, neither of which this
// kernel attempts to repair in place.
func pageFaultHandler(errorCode uint64, frame *irq.Frame, regs *irq.Regs) {
	faultAddress := uintptr(readCR2Fn())

	kfmt.Printf("\nPage fault while accessing address: 0x%16x\nReason: ", faultAddress)
	switch errorCode {
	case 0:
		kfmt.Printf("read from non-present page")
	case 1:
		kfmt.Printf("page protection violation (read)")
	case 2:
		kfmt.Printf("write to non-present page")
	case 3:
		kfmt.Printf("page protection violation (write)")
	case 4:
		kfmt.Printf("page-fault in user-mode")
	case 8:
		kfmt.Printf("page table has reserved bit set")
	case 16:
		kfmt.Printf("instruction fetch")
	default:
		kfmt.Printf("unknown")
	}

	kfmt.Printf("\n\nRegisters:\n")
	regs.Print()
	frame.Print()

	kernel.Panic(errUnrecoverableFault)
}

func generalProtectionFaultHandler(_ uint64, frame *irq.Frame, regs *irq.Regs) {
	kfmt.Printf("\nGeneral protection fault while accessing address: 0x%x\n", readCR2Fn())
	kfmt.Printf("Registers:\n")
	regs.Print()
	frame.Print()

	kernel.Panic(errUnrecoverableFault)
}
