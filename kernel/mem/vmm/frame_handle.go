package vmm

import (
	"unsafe"

	"github.com/evkrnl/evkrnl/kernel"
	"github.com/evkrnl/evkrnl/kernel/mem"
	"github.com/evkrnl/evkrnl/kernel/mem/pmm"
)

var errFrameTypeTooLarge = &kernel.Error{Module: "vmm", Message: "type does not fit in a single physical frame"}

// Frame owns a single physical frame, reached through the fixed identity
// mapping and reinterpreted as a *T. It exists for kernel structures that
// must live at a known, individually releasable physical address - page
// tables, the GDT/IDT/TSS, DMA-visible driver buffers - rather than inside
// the slab/big heap, whose backing frames are not meant to be addressed
// individually.
type Frame[T any] struct {
	frame pmm.Frame
	addr  uintptr
}

// NewFrame allocates a physical frame, stores v at its start and returns a
// handle to it. It fails if T does not fit within a single page.
func NewFrame[T any](v T) (*Frame[T], *kernel.Error) {
	var zero T
	if unsafe.Sizeof(zero) > uintptr(mem.PageSize) {
		return nil, errFrameTypeTooLarge
	}

	frame, err := frameAllocator()
	if err != nil {
		return nil, err
	}

	addr := PhysToVirt(frame.Address())
	*(*T)(unsafe.Pointer(addr)) = v

	return &Frame[T]{frame: frame, addr: addr}, nil
}

// Deref returns a pointer to the value backed by this frame.
func (f *Frame[T]) Deref() *T {
	return (*T)(unsafe.Pointer(f.addr))
}

// Release zeroes the backing value, for parity with dropping an owned
// value in the original implementation, and returns the physical frame to
// the registered frame releaser.
func (f *Frame[T]) Release() *kernel.Error {
	var zero T
	*f.Deref() = zero
	return frameReleaser(f.frame)
}
