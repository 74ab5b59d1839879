package vmm

import (
	"unsafe"

	"github.com/evkrnl/evkrnl/kernel"
)

const maxSlabSize = 4096

// slabSizes enumerates the size classes served by the slab allocator, from
// smallest to largest. A request is rounded up to the first class it fits.
var slabSizes = [...]uintptr{32, 64, 128, 256, 512, 1024, 2048, 4096}

// slabClasses holds one slab per size class in slabSizes, indexed
// identically. Declared as a fixed array of values (not pointers) so that
// initHeap needs no heap allocation of its own: it runs before the Go
// runtime allocator bootstrap has completed.
var slabClasses [len(slabSizes)]slab

var errFreeNotOwned = &kernel.Error{Module: "vmm", Message: "pointer does not belong to the kernel heap"}

// initHeap prepares the slab size classes and the big heap's bookkeeping.
// It performs no Go-heap-dependent allocation: individual slabElementSlab
// and bigBlock instances are created lazily on first use, by which point
// the Go runtime allocator bootstrap (package goruntime) has run.
func initHeap() *kernel.Error {
	for i := range slabSizes {
		slabClasses[i].elemSize = slabSizes[i]
	}
	return bigHeapInit()
}

// slabClassIndex returns the index into slabClasses/slabSizes for the
// smallest size class that can satisfy a request of size bytes. Callers
// must ensure size <= maxSlabSize.
func slabClassIndex(size uintptr) int {
	for i, classSize := range slabSizes {
		if size <= classSize {
			return i
		}
	}
	return len(slabSizes) - 1
}

// Alloc returns a pointer to size bytes of kernel heap memory. Requests of
// up to maxSlabSize bytes are served by the matching slab size class;
// larger requests go to the big heap, which grows itself one
// mem.HeapBlockSize block at a time. Alloc never returns nil for size > 0:
// exhaustion of the kernel heap window is always fatal.
func Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	if size <= maxSlabSize {
		idx := slabClassIndex(size)
		addr, err := slabClasses[idx].allocate()
		if err != nil {
			kernel.Panic(err)
		}
		return unsafe.Pointer(addr)
	}

	addr, err := bigHeapAlloc(size)
	if err != nil {
		kernel.Panic(err)
	}
	return unsafe.Pointer(addr)
}

// Free returns a previously allocated pointer to the kernel heap. size must
// match the value originally passed to Alloc.
func Free(ptr unsafe.Pointer, size uintptr) {
	if ptr == nil || size == 0 {
		return
	}

	addr := uintptr(ptr)
	if size <= maxSlabSize {
		idx := slabClassIndex(size)
		if !slabClasses[idx].tryFree(addr) {
			kernel.Panic(errFreeNotOwned)
		}
		return
	}

	bigHeapFree(addr)
}
