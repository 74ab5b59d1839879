// Package kmain brings up every CORE subsystem in dependency order. It is
// kept separate from the top-level kernel package because kernel/mem/pmm,
// kernel/mem/vmm and friends import kernel (for kernel.Error/kernel.Panic);
// wiring them together from inside package kernel itself would create an
// import cycle.
package kmain

import (
	"github.com/evkrnl/evkrnl/kernel"
	"github.com/evkrnl/evkrnl/kernel/cpu"
	"github.com/evkrnl/evkrnl/kernel/descriptors"
	"github.com/evkrnl/evkrnl/kernel/fs/initramfs"
	"github.com/evkrnl/evkrnl/kernel/goruntime"
	"github.com/evkrnl/evkrnl/kernel/hal"
	"github.com/evkrnl/evkrnl/kernel/hal/bootinfo"
	"github.com/evkrnl/evkrnl/kernel/idt"
	"github.com/evkrnl/evkrnl/kernel/kfmt"
	"github.com/evkrnl/evkrnl/kernel/kfmt/early"
	"github.com/evkrnl/evkrnl/kernel/mem/pmm"
	"github.com/evkrnl/evkrnl/kernel/mem/vmm"
	"github.com/evkrnl/evkrnl/kernel/module"
	"github.com/evkrnl/evkrnl/kernel/pic"
	"github.com/evkrnl/evkrnl/kernel/syscall"
	"github.com/evkrnl/evkrnl/kernel/timer"
)

var (
	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

	// frames is the kernel-wide physical frame allocator. vmm borrows
	// its AllocFrame/FreeFrame methods to grow the heap and page
	// tables; it is adopted with the regions the bootloader reports
	// once Init has canonicalized them.
	frames pmm.Allocator

	// regionBuf holds the bootinfo-reported regions converted into
	// pmm.Region form. It is a fixed array, not a slice append, because
	// this conversion runs before goruntime.Init() makes the heap
	// allocator available.
	regionBuf [bootinfo.MaxMemoryRegions]pmm.Region
)

// toPMMRegions converts the bootloader-reported regions (kept in a
// bootinfo-local type so that package bootinfo never has to import pmm,
// which would reintroduce a kernel -> pmm -> kernel import cycle) into the
// pmm.Region form CanonicalizeRegions expects.
func toPMMRegions(regions []bootinfo.Region) []pmm.Region {
	for i, r := range regions {
		kind := pmm.Usable
		if r.Kind == bootinfo.RegionReserved {
			kind = pmm.Reserved
		}
		regionBuf[i] = pmm.Region{Start: r.Start, End: r.End, Kind: kind}
	}
	return regionBuf[:len(regions)]
}

// Kmain is called by the kernel's main function. It receives the boot
// handoff record already parsed into a *bootinfo.Info (main decodes it with
// bootinfo.Parse before the call) and brings up every CORE
// subsystem in dependency order before handing control to the registered
// modules.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the
// CPU.
//
//go:noinline
func Kmain(info *bootinfo.Info) {
	sink := hal.InitTerminal(info.Framebuffer)
	hal.ActiveTerminal.Clear()
	kfmt.SetOutputSink(sink)
	early.Printf("Starting evkrnl\n")

	if err := initramfs.Init(info.RamdiskAddr, info.RamdiskLen); err != nil {
		kernel.Panic(err)
	}

	descriptors.Init()
	idt.Init()
	pic.Init()
	timer.Init()
	idt.SetIRQHandler(pic.Dispatch)

	usable := pmm.CanonicalizeRegions(toPMMRegions(info.MemoryRegions))
	if err := frames.Init(usable); err != nil {
		kernel.Panic(err)
	}
	vmm.SetFrameAllocator(frames.AllocFrame)
	vmm.SetFrameReleaser(frames.FreeFrame)
	goruntime.SetFrameAllocFn(frames.AllocFrame)

	var err *kernel.Error
	if err = vmm.Init(); err != nil {
		kernel.Panic(err)
	} else if err = goruntime.Init(); err != nil {
		kernel.Panic(err)
	}

	syscall.Init()

	cpu.EnableInterrupts()

	ok, total := module.InitAll()
	early.Printf("modules: %d/%d initialized\n", ok, total)

	// Use kernel.Panic instead of panic to prevent the compiler from
	// treating kernel.Panic as dead-code and eliminating it.
	kernel.Panic(errKmainReturned)
}
