// Package timer drives kernel timekeeping from the legacy 8254 PIT,
// programmed for channel 0, mode 3, at a reload value that yields
// approximately 1 kHz.
package timer

import (
	"sync/atomic"

	"github.com/evkrnl/evkrnl/kernel/cpu"
	"github.com/evkrnl/evkrnl/kernel/pic"
)

const (
	pitChannel0Data = 0x40
	pitCommandPort  = 0x43

	// pitMode3Channel0 selects channel 0, lobyte/hibyte access, mode 3
	// (square wave generator), binary counting.
	pitMode3Channel0 = 0b00110110

	// pitReload of 1193 against the PIT's ~1.193182 MHz input clock yields
	// an interrupt rate of approximately 1000.1524 Hz.
	pitReload = 1193

	// tickStepPs is the number of picoseconds that elapse per PIT tick at
	// the above reload value; carried into BootNs whenever the
	// accumulated fractional part exceeds one nanosecond (1000 ps).
	tickStepPs = 999_847_619

	psPerNs = 1000
)

var (
	bootNs     atomic.Uint64
	bootPsPart atomic.Uint32
)

var (
	outbFn = cpu.Outb
)

// Init programs the PIT for the ~1 kHz tick rate and registers tickStep as
// IRQ0's handler.
func Init() {
	outbFn(pitCommandPort, pitMode3Channel0)
	outbFn(pitChannel0Data, uint8(pitReload&0xFF))
	outbFn(pitChannel0Data, uint8(pitReload>>8))

	pic.HandleIRQ(0, func(bool) { TickStep() })
}

// TickStep accumulates one PIT tick's worth of elapsed time into the
// monotonic boot clock. It is invoked directly from the timer IRQ
// handler, inside the scope of the PIC's EOIGuard; IRQ0 never reenters
// this function concurrently with itself, so plain loads/stores on the
// atomics are sufficient.
func TickStep() {
	part := bootPsPart.Load() + tickStepPs
	if part >= psPerNs {
		bootNs.Add(uint64(part / psPerNs))
		part %= psPerNs
	}
	bootPsPart.Store(part)
}

// BootTimeNs returns the number of nanoseconds elapsed since the timer was
// initialized, at one-tick (~1ms) resolution.
func BootTimeNs() uint64 {
	return bootNs.Load()
}

// TimeoutPollNs busy-polls fn until it returns true or timeoutNs
// nanoseconds of boot time have elapsed, returning fn's final result.
func TimeoutPollNs(timeoutNs uint64, fn func() bool) bool {
	deadline := BootTimeNs() + timeoutNs
	for {
		if fn() {
			return true
		}
		if BootTimeNs() >= deadline {
			return fn()
		}
	}
}

// TimeoutPollUs busy-polls fn for up to timeoutUs microseconds.
func TimeoutPollUs(timeoutUs uint64, fn func() bool) bool {
	return TimeoutPollNs(timeoutUs*1000, fn)
}

// TimeoutPollMs busy-polls fn for up to timeoutMs milliseconds.
func TimeoutPollMs(timeoutMs uint64, fn func() bool) bool {
	return TimeoutPollNs(timeoutMs*1000*1000, fn)
}

// TimeoutPollS busy-polls fn for up to timeoutS seconds.
func TimeoutPollS(timeoutS uint64, fn func() bool) bool {
	return TimeoutPollNs(timeoutS*1000*1000*1000, fn)
}
