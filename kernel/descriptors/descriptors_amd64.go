// Package descriptors builds the kernel's single GDT and TSS and loads
// them onto the CPU. Selectors are fixed at compile time; there is exactly
// one of each descriptor, installed once at boot.
package descriptors

import (
	"unsafe"

	"github.com/evkrnl/evkrnl/kernel/cpu"
	"github.com/evkrnl/evkrnl/kernel/mem"
	"github.com/evkrnl/evkrnl/kernel/sync"
)

// Fixed selectors. Each is (index*8)|RPL; RPL 3 marks the user-mode
// segments so far/iretq transitions to ring 3 succeed their privilege
// checks.
const (
	KCS = 1*8 | 0
	KDS = 2*8 | 0
	UDS = 3*8 | 3
	UCS = 4*8 | 3
	TSS = 5*8 | 0
)

// gdtEntryCount covers the null descriptor, KCS, KDS, UDS, UCS and the
// two 8-byte slots a 64-bit TSS descriptor occupies.
const gdtEntryCount = 7

type taskStateSegment struct {
	reserved0 uint32
	rsp       [3]uint64
	reserved1 uint64
	ist       [7]uint64
	reserved2 uint64
	reserved3 uint16
	ioMapBase uint16
}

type pseudoDescriptor struct {
	limit uint16
	base  uint64
}

var (
	loadGDTFn        = cpu.LoadGDT
	loadTSSFn        = cpu.LoadTSS
	reloadSegmentsFn = cpu.ReloadSegments
)

var (
	mu        sync.Spinlock
	installed bool

	gdt [gdtEntryCount]uint64
	tss taskStateSegment

	// doubleFaultStack backs IST[0]; the double-fault handler runs on its
	// own stack so a kernel stack overflow doesn't also corrupt the
	// handler that is supposed to report it.
	doubleFaultStack [mem.StackSize]byte

	// rsp0Stack backs TSS.RSP0, the stack loaded on any ring3->ring0
	// transition that does not go through the IST mechanism.
	rsp0Stack [mem.StackSize]byte
)

func addrOf(p unsafe.Pointer) uint64 {
	return uint64(uintptr(p))
}

// flatSegment encodes a base=0, limit=0xFFFFF code/data segment descriptor.
// Protection comes entirely from paging in long mode; the base/limit are
// present only because the encoding requires them.
func flatSegment(accessByte, flags uint64) uint64 {
	var e uint64
	e |= 0xFFFF
	e |= (flags & 0xF) << 52
	e |= accessByte << 40
	return e
}

// encodeTSSDescriptor splits a 64-bit TSS descriptor across the two GDT
// slots a 64-bit task state segment descriptor occupies.
func encodeTSSDescriptor(base uint64, limit uint32) (low, high uint64) {
	low = uint64(limit & 0xFFFF)
	low |= (base & 0xFFFFFF) << 16
	low |= uint64(0x89) << 40 // present, DPL0, type=9 (64-bit TSS, available)
	low |= uint64((limit>>16)&0xF) << 48
	low |= ((base >> 24) & 0xFF) << 56

	high = (base >> 32) & 0xFFFFFFFF
	return low, high
}

func stackTop(buf *[mem.StackSize]byte) uint64 {
	return addrOf(unsafe.Pointer(buf)) + uint64(len(buf))
}

// Init builds the GDT and TSS, sets up IST[0] and RSP0, loads the GDT,
// reloads DS/SS/CS and finally loads the TSS. Segments are installed
// exactly once; subsequent calls are no-ops.
func Init() {
	mu.Acquire()
	defer mu.Release()

	if installed {
		return
	}

	gdt[0] = 0
	gdt[1] = flatSegment(0x9A, 0xA) // KCS: present, ring0, code, execute/read, long-mode
	gdt[2] = flatSegment(0x92, 0xC) // KDS: present, ring0, data, read/write
	gdt[3] = flatSegment(0xF2, 0xC) // UDS: present, ring3, data, read/write
	gdt[4] = flatSegment(0xFA, 0xA) // UCS: present, ring3, code, execute/read, long-mode

	tss.rsp[0] = stackTop(&rsp0Stack)
	tss.ist[0] = stackTop(&doubleFaultStack)
	tss.ioMapBase = uint16(unsafe.Sizeof(tss))

	gdt[5], gdt[6] = encodeTSSDescriptor(addrOf(unsafe.Pointer(&tss)), uint32(unsafe.Sizeof(tss)-1))

	pd := pseudoDescriptor{
		limit: uint16(gdtEntryCount*8 - 1),
		base:  addrOf(unsafe.Pointer(&gdt)),
	}
	loadGDTFn(uintptr(unsafe.Pointer(&pd)))
	reloadSegmentsFn(KCS, KDS)
	loadTSSFn(TSS)

	installed = true
}
