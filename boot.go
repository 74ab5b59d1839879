package main

import (
	"github.com/evkrnl/evkrnl/kernel/hal/bootinfo"
	"github.com/evkrnl/evkrnl/kernel/kmain"
)

// main is the only Go symbol that is visible (exported) from the rt0 initialization
// code. This function works as a trampoline for calling the actual kernel entrypoint
// (kmain.Kmain) and its intentionally defined to prevent the Go compiler from
// optimizing away the actual kernel code as its not aware of the presence of the
// rt0 code.
//
// The main function is invoked by the rt0 assembly code after setting up the GDT
// and setting up a a minimal g0 struct that allows Go code using the 4K stack
// allocated by the assembly code. Go's main cannot take arguments, so main
// retrieves the raw handoff pointer and decodes it itself before calling
// into Kmain.
//
// main is not expected to return. If it does, the rt0 code will halt the CPU.
func main() {
	kmain.Kmain(bootinfo.Parse(bootinfo.HandoffPtr()))
}
