// +build amd64

package mem

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)). The pointer
	// size for this architecture is defined as (1 << PointerShift).
	PointerShift = 3

	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = Size(1 << PageShift)

	// Offset is the virtual address at which all of physical memory is
	// identity-mapped by the bootloader before Kmain runs. Any physical
	// address phys can be reached at Offset+phys without establishing a
	// new page-table mapping.
	Offset = uintptr(0xFFFF_8000_0000_0000)

	// HeapVirtSize is the size of the virtual address window reserved
	// for the kernel heap (slab + big-heap allocations).
	HeapVirtSize = Size(1 << 30) // 1 GiB

	// HeapBlockSize is the granularity at which the big heap grows when
	// a first-fit allocation fails.
	HeapBlockSize = Size(1 << 20) // 1 MiB

	// HeapVirtBase is the first address of the kernel heap window. Region
	// reservations are carved downward from the window's end toward this
	// address.
	HeapVirtBase = uintptr(0xFFFF_FF00_0000_0000)

	// StackSize is the size, in bytes, of each IST/RSP0 stack allocated
	// for exception and interrupt handling.
	StackSize = 100 * 1024

	// MinPhysicalFree is the minimum amount of free physical memory that
	// must remain available after boot for the kernel to consider the
	// machine usable.
	MinPhysicalFree = Size(10 * 1024 * 1024) // 10 MiB
)
