// Package pic programs the legacy 8259 master/slave interrupt controller
// pair and dispatches IRQ lines to per-line handlers once the interrupt
// is identified as IRQ-class by the general handler.
package pic

import (
	"github.com/evkrnl/evkrnl/kernel"
	"github.com/evkrnl/evkrnl/kernel/cpu"
	"github.com/evkrnl/evkrnl/kernel/kfmt"
	"github.com/evkrnl/evkrnl/kernel/sync"
)

const (
	masterCommandPort = 0x20
	masterDataPort    = 0x21
	slaveCommandPort  = 0xA0
	slaveDataPort     = 0xA1

	icw1Init     = 0x11 // ICW1: edge-triggered, cascade mode, ICW4 needed
	icw4Mode8086 = 0x01

	masterVectorOffset = 0x20
	slaveVectorOffset  = 0x28

	masterCascadeIRQ = 0x04 // tell master a slave sits on IRQ2
	slaveIdentity    = 0x02 // tell slave its cascade identity

	eoiCode = 0x20

	// masterMask disables LPT1/2 (IRQ7/5... see bit layout below) and the
	// floppy controller on the master PIC; slaveMask disables the unused
	// Free1/Free2/Free3/Processor lines on the slave (IRQ 9,10,11,13). Bit
	// i corresponds to IRQ i (or IRQ i+8 on the slave).
	masterMaskDisableLPT1LPT2Floppy = 1<<5 | 1<<6 | 1<<7
	slaveMaskDisableProcessorFree   = 1<<1 | 1<<2 | 1<<3 | 1<<5

	// keyboardLine is the only IRQ line allowed to fire with no
	// registered handler: the PS/2 keyboard module is optional, and its
	// absence must be a silent no-op rather than a fatal error.
	keyboardLine = 1
)

var errUnhandledIRQ = &kernel.Error{Module: "pic", Message: "unhandled IRQ"}

var (
	outbFn   = cpu.Outb
	ioWaitFn = cpu.IOWait
)

var mu sync.Spinlock

// HandlerFunc handles a single IRQ line. kernelMode reports whether the
// interrupted code was running in ring 0.
type HandlerFunc func(kernelMode bool)

var handlers [16]HandlerFunc

// Init performs the standard ICW1..ICW4 initialization sequence, remaps
// the master/slave vector bases to 0x20/0x28, and writes fixed masks that
// disable LPT1, LPT2 and the floppy controller on the master and IRQ 9,
// 10, 11 and 13 on the slave. Every other line stays unmasked whether or
// not a handler is registered; HandleIRQ does not change the masks.
func Init() {
	mu.Acquire()
	defer mu.Release()

	outbFn(masterCommandPort, icw1Init)
	ioWaitFn()
	outbFn(slaveCommandPort, icw1Init)
	ioWaitFn()

	outbFn(masterDataPort, masterVectorOffset)
	ioWaitFn()
	outbFn(slaveDataPort, slaveVectorOffset)
	ioWaitFn()

	outbFn(masterDataPort, masterCascadeIRQ)
	ioWaitFn()
	outbFn(slaveDataPort, slaveIdentity)
	ioWaitFn()

	outbFn(masterDataPort, icw4Mode8086)
	ioWaitFn()
	outbFn(slaveDataPort, icw4Mode8086)
	ioWaitFn()

	outbFn(masterDataPort, masterMaskDisableLPT1LPT2Floppy)
	outbFn(slaveDataPort, slaveMaskDisableProcessorFree)
}

// HandleIRQ registers the handler invoked for the given IRQ line (0-15).
func HandleIRQ(line uint8, handler HandlerFunc) {
	if line >= 16 {
		return
	}
	handlers[line] = handler
}

// EOIGuard is the scoped end-of-interrupt guard constructed at the start
// of every PIC interrupt path. Release, normally deferred, releases the
// PIC lock reacquired on the interrupt's behalf and writes the EOI byte to
// the master PIC, and additionally to the slave when the IRQ line is 8 or
// above. This is the only place in the kernel that acquires the PIC lock
// from within interrupt context; it is safe without a force-unlock because
// this kernel is uniprocessor and IRQ handlers never run with interrupts
// enabled, so the lock can never already be held by the code an interrupt
// preempted.
type EOIGuard struct {
	line uint8
}

// NewEOIGuard constructs a guard for the given IRQ line and immediately
// reacquires the PIC lock on the interrupt's behalf.
func NewEOIGuard(line uint8) *EOIGuard {
	mu.Acquire()
	return &EOIGuard{line: line}
}

// Release issues EOI to the correct controller(s) and releases the PIC
// lock. It must run on every exit path, normally via defer.
func (g *EOIGuard) Release() {
	outbFn(masterCommandPort, eoiCode)
	if g.line >= 8 {
		outbFn(slaveCommandPort, eoiCode)
	}
	mu.Release()
}

// Dispatch routes an IRQ-class vector (0x20-0x2F) to its registered
// handler, constructing and releasing the EOI guard around the call. It
// is installed as the idt package's IRQ handler. A line with no
// registered handler is fatal, except for the keyboard line, whose
// handling module is optional and so is a documented no-op when absent;
// an unhandled line must never be silently dropped.
func Dispatch(vector uint8, kernelMode bool) {
	line := vector - masterVectorOffset
	guard := NewEOIGuard(line)
	defer guard.Release()

	if line >= 16 {
		return
	}
	if h := handlers[line]; h != nil {
		h(kernelMode)
		return
	}
	if line == keyboardLine {
		return
	}
	kfmt.Printf("fatal: unhandled IRQ, line=%d\n", line)
	kernel.Panic(errUnhandledIRQ)
}
