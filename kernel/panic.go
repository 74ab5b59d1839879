package kernel

import (
	"sync/atomic"

	"github.com/evkrnl/evkrnl/kernel/cpu"
	"github.com/evkrnl/evkrnl/kernel/kfmt/early"
)

var (
	// cpuHaltFn is mocked by tests and is automatically inlined by the compiler.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}

	// hasPanicked and hasPanickedAgain bound Panic to at most one
	// re-entry: a fault raised while already unwinding a panic (e.g.
	// from within early.Printf or cpuHaltFn itself) is reported once as
	// a double panic and then halts for good, instead of recursing.
	hasPanicked      atomic.Bool
	hasPanickedAgain atomic.Bool
)

// Panic outputs the supplied error (if not nil) to the console and halts the
// CPU. Calls to Panic never return. Panic also works as a redirection target
// for calls to panic() (resolved via runtime.gopanic)
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	if hasPanicked.Load() {
		if hasPanickedAgain.Load() {
			cpuHaltFn()
			return
		}
		hasPanickedAgain.Store(true)

		early.Printf("\n*** double panic: system halted ***\n")
		cpuHaltFn()
		return
	}
	hasPanicked.Store(true)

	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	early.Printf("\n-----------------------------------\n")
	if err != nil {
		early.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	early.Printf("*** kernel panic: system halted ***")
	early.Printf("\n-----------------------------------\n")

	cpuHaltFn()
}
