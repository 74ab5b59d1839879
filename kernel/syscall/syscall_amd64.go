// Package syscall programs the SYSCALL/SYSRET fast system-call entry and
// dispatches incoming syscalls to a single registered handler.
package syscall

import (
	"unsafe"

	"github.com/evkrnl/evkrnl/kernel/cpu"
	"github.com/evkrnl/evkrnl/kernel/descriptors"
	"github.com/evkrnl/evkrnl/kernel/mem"
)

const (
	msrEFER  = 0xC000_0080
	msrSTAR  = 0xC000_0081
	msrLSTAR = 0xC000_0082
	msrFMASK = 0xC000_0084

	eferSCE = 1 << 0

	// rflagsIF and rflagsDF are cleared on syscall entry via SFMASK so the
	// trampoline runs with interrupts disabled and the direction flag
	// clear until it explicitly re-enables interrupts.
	rflagsIF = 1 << 9
	rflagsDF = 1 << 10
)

// gsVars is the per-CPU scratch block addressed via the kernel GS base;
// the trampoline uses it to stash the user RSP across the ring
// transition and to find the dedicated kernel stack.
type gsVars struct {
	userStackScratch uintptr
	kernelStack      uintptr
}

var (
	writeGSBaseFn      = cpu.WriteGSBase
	writeMSRFn         = cpu.WriteMSR
	readMSRFn          = cpu.ReadMSR
	syscallEntryAddrFn = syscallEntryAddr
)

var scratch gsVars

// kernelStack is the trampoline's dedicated stack, distinct from the
// bootstrap stack so a reentrant syscall during IRQ delivery cannot
// clobber whatever the bootstrap stack was doing.
var kernelStack [mem.StackSize]byte

// SyscallArgs packs the six argument registers plus the syscall number in
// the order the trampoline delivers them.
type SyscallArgs struct {
	Number                             uintptr
	Arg0, Arg1, Arg2, Arg3, Arg4, Arg5 uintptr
}

// Handler is called by the trampoline with the decoded syscall arguments
// and must return the value to place in RAX before iretq. It is
// reentrant with respect to timer IRQs: the trampoline unmasks interrupts
// before calling it and remasks them after it returns.
var Handler func(SyscallArgs) uintptr

// syscallEntry is the raw SYSCALL target programmed into LSTAR. Its body
// performs the swapgs/stack-switch/register-save dance described for this
// package and ultimately calls into the Go-level dispatch helper before
// iretq-ing back to user mode.
func syscallEntry()

// syscallEntryAddr returns the linear address of syscallEntry, for
// programming into LSTAR.
func syscallEntryAddr() uintptr

// dispatch is invoked by syscallEntry once the six argument registers and
// the syscall number have been packed into a SyscallArgs value; it exists
// so the trampoline has a single, fixed Go entry point to call into.
func dispatch(args *SyscallArgs) uintptr {
	if Handler == nil {
		return ^uintptr(0)
	}
	return Handler(*args)
}

// Init publishes the per-CPU scratch block and programs STAR, LSTAR,
// SFMASK and EFER.SCE so that a SYSCALL instruction from ring 3 lands at
// syscallEntry.
func Init() {
	scratch.kernelStack = uintptr(unsafe.Pointer(&kernelStack)) + uintptr(len(kernelStack))
	writeGSBaseFn(uintptr(unsafe.Pointer(&scratch)))

	star := packSTAR(descriptors.KCS, descriptors.UCS)
	writeMSRFn(msrSTAR, star)
	writeMSRFn(msrLSTAR, uint64(syscallEntryAddrFn()))
	writeMSRFn(msrFMASK, rflagsIF|rflagsDF)

	efer := readMSRFn(msrEFER)
	writeMSRFn(msrEFER, efer|eferSCE)
}

// packSTAR builds the IA32_STAR layout: bits 32-47 hold the CS SYSCALL
// loads into CS (SS is implicitly that value plus 8); bits 48-63 hold the
// base SYSRET derives the user CS/SS pair from (SS = base+8, CS = base+16
// in 64-bit mode). sysretCS is the selector SYSRET should end up loading
// into CS (UCS); the STAR field itself stores sysretCS-16 so that the
// CPU's +16/+8 derivation lands on UCS/UDS.
func packSTAR(syscallCS, sysretCS uint16) uint64 {
	return uint64(syscallCS)<<32 | uint64(sysretCS-16)<<48
}
