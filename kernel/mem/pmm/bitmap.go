package pmm

import (
	"reflect"
	"unsafe"

	"github.com/evkrnl/evkrnl/kernel/mem"
)

// bitmapSlice overlays a []uint64 bitmap of the given word count on top of
// the physical memory at physAddr, reached through the kernel's fixed
// identity mapping. The bitmap is zeroed before being returned since the
// region it self-hosts in has not been initialized by anyone else yet.
func bitmapSlice(physAddr uintptr, words uint64) []uint64 {
	virtAddr := mem.Offset + physAddr

	s := *(*[]uint64)(unsafe.Pointer(&reflect.SliceHeader{
		Data: virtAddr,
		Len:  int(words),
		Cap:  int(words),
	}))

	for i := range s {
		s[i] = 0
	}
	return s
}
