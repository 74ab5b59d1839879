// Package idt builds the kernel's single, general-purpose interrupt
// dispatch table on top of the lower-level per-vector gate mechanism. It
// classifies every incoming vector by CPU exception vs. IRQ and by the
// privilege level the interrupted code was running at, then routes the
// event accordingly.
//
// Vectors 13 (general protection fault) and 14 (page fault) are owned by
// the virtual memory mapper, which installs its own handlers directly
// through the narrower exception-handling package; this package never
// registers those two vectors.
package idt

import (
	"github.com/evkrnl/evkrnl/kernel"
	"github.com/evkrnl/evkrnl/kernel/gate"
	"github.com/evkrnl/evkrnl/kernel/kfmt"
)

// Regs is a snapshot of the general-purpose registers at the time an
// interrupt fired.
type Regs = gate.Registers

// Frame is the portion of Regs that the CPU itself pushes on interrupt
// entry: return address, code segment, flags and (for a ring crossing)
// stack pointer and stack segment.
type Frame struct {
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

const (
	vectorBreakpoint  = uint8(gate.InterruptNumber(3))
	vectorDoubleFault = uint8(gate.DoubleFault)
	vectorGPF         = uint8(gate.GPFException)
	vectorPageFault   = uint8(gate.PageFaultException)

	firstIRQVector = 0x20
	lastIRQVector  = 0x2F

	// doubleFaultIST is the IST slot index the double-fault handler runs
	// on; it is set up by the descriptor package.
	doubleFaultIST = 1
)

var errUnexpectedInterrupt = &kernel.Error{Module: "idt", Message: "unexpected interrupt"}

// IRQHandlerFunc receives IRQ-class vectors (0x20-0x2F) after this package has
// resolved the incoming ring and vector class. kernelMode reports whether
// the interrupted code was running in ring 0.
type IRQHandlerFunc func(vector uint8, kernelMode bool)

var irqHandler IRQHandlerFunc

// SetIRQHandler installs the function that handles IRQ-class vectors; it
// is expected to be the PIC dispatcher.
func SetIRQHandler(fn IRQHandlerFunc) {
	irqHandler = fn
}

// Init installs the general exception/IRQ handler across every vector this
// package owns; the double fault runs on its dedicated IST stack. The
// breakpoint vector gets no special treatment: it is installed like every
// other vector, and gate.HandleInterrupt takes no privilege-level argument,
// so no gate is given a ring-3 privilege level here.
func Init() {
	gate.Init()

	for v := 0; v < 256; v++ {
		vector := uint8(v)
		if vector == vectorGPF || vector == vectorPageFault {
			continue
		}
		if vector == vectorDoubleFault {
			gate.HandleInterrupt(gate.InterruptNumber(vector), doubleFaultIST, generalHandler)
			continue
		}
		gate.HandleInterrupt(gate.InterruptNumber(vector), 0, generalHandler)
	}
}

func isIRQVector(vector uint8) bool {
	return vector >= firstIRQVector && vector <= lastIRQVector
}

// ringOf extracts the requested privilege level from a code-segment
// selector's low two bits.
func ringOf(cs uint64) uint8 {
	return uint8(cs & 0x3)
}

// generalHandler implements the dispatch table: CPU exceptions in ring 0
// panic, IRQs route to the PIC dispatcher tagged with the interrupted
// ring, ring-3 exceptions are logged as unhandled, and anything else is
// fatal.
func generalHandler(regs *gate.Registers) {
	vector := uint8(regs.Info)
	ring := ringOf(regs.CS)

	switch {
	case ring == 0 && vector < 32:
		kfmt.Printf("fatal: unhandled CPU exception, vector=%d\n", vector)
		kernel.Panic(errUnexpectedInterrupt)
	case ring == 0 && isIRQVector(vector):
		if irqHandler != nil {
			irqHandler(vector, true)
		}
	case ring == 3 && vector < 32:
		kfmt.Printf("unhandled user exception, vector=%d\n", vector)
	case ring == 3 && isIRQVector(vector):
		if irqHandler != nil {
			irqHandler(vector, false)
		}
	default:
		kernel.Panic(errUnexpectedInterrupt)
	}
}
