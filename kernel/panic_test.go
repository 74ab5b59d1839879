package kernel

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/evkrnl/evkrnl/kernel/cpu"
	"github.com/evkrnl/evkrnl/kernel/driver/video/console"
	"github.com/evkrnl/evkrnl/kernel/hal"
)

func resetPanicState() {
	hasPanicked.Store(false)
	hasPanickedAgain.Store(false)
}

func TestPanic(t *testing.T) {
	defer func() {
		cpuHaltFn = cpu.Halt
	}()

	var cpuHaltCalled bool
	cpuHaltFn = func() {
		cpuHaltCalled = true
	}

	t.Run("with error", func(t *testing.T) {
		resetPanicState()
		cpuHaltCalled = false
		fb := mockTTY()
		err := &Error{Module: "test", Message: "panic test"}

		Panic(err)

		exp := "\n-----------------------------------\n[test] unrecoverable error: panic test\n*** kernel panic: system halted ***\n-----------------------------------"

		if got := readTTY(fb); got != exp {
			t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
		}

		if !cpuHaltCalled {
			t.Fatal("expected cpu.Halt() to be called by Panic")
		}
	})

	t.Run("without error", func(t *testing.T) {
		resetPanicState()
		cpuHaltCalled = false
		fb := mockTTY()

		Panic(nil)

		exp := "\n-----------------------------------\n*** kernel panic: system halted ***\n-----------------------------------"

		if got := readTTY(fb); got != exp {
			t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
		}

		if !cpuHaltCalled {
			t.Fatal("expected cpu.Halt() to be called by Panic")
		}
	})
}

func TestPanicIsReentrantAtMostTwice(t *testing.T) {
	defer func() {
		cpuHaltFn = cpu.Halt
	}()
	resetPanicState()

	var haltCount int
	cpuHaltFn = func() {
		haltCount++
	}

	fb := mockTTY()
	err := &Error{Module: "test", Message: "first fault"}

	Panic(err)
	Panic(err)
	Panic(err)

	if haltCount != 3 {
		t.Fatalf("expected cpu.Halt() to be called on every Panic call, got %d calls", haltCount)
	}
	if !hasPanickedAgain.Load() {
		t.Fatal("expected the second Panic call to mark hasPanickedAgain")
	}

	got := readTTY(fb)
	if !bytes.Contains([]byte(got), []byte("double panic")) {
		t.Fatalf("expected output to mention a double panic, got %q", got)
	}
}

func readTTY(fb []byte) string {
	var buf bytes.Buffer
	for i := 0; i < len(fb); i += 2 {
		ch := fb[i]
		if ch == 0 {
			if i+2 < len(fb) && fb[i+2] != 0 {
				buf.WriteByte('\n')
			}
			continue
		}

		buf.WriteByte(ch)
	}

	return buf.String()
}

func mockTTY() []byte {
	// Mock a tty to handle early.Printf output
	mockConsoleFb := make([]byte, 160*25)
	mockConsole := &console.Ega{}
	mockConsole.Init(80, 25, uintptr(unsafe.Pointer(&mockConsoleFb[0])))
	hal.ActiveTerminal.AttachTo(mockConsole)

	return mockConsoleFb
}
