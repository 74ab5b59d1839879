package cpu

var (
	cpuidFn = ID
)

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// Halt stops instruction execution.
func Halt()

// FlushTLBEntry flushes a TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr)

// SwitchPDT sets the root page table directory to point to the specified
// physical address and flushes the TLB.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uintptr

// ReadCR2 returns the value stored in the CR2 register.
func ReadCR2() uint64

// Outb writes a single byte to the given I/O port.
func Outb(port uint16, val uint8)

// Inb reads a single byte from the given I/O port.
func Inb(port uint16) uint8

// Outw writes a 16-bit word to the given I/O port.
func Outw(port uint16, val uint16)

// Inw reads a 16-bit word from the given I/O port.
func Inw(port uint16) uint16

// IOWait performs a throwaway write to port 0x80, a discarded POST code
// port, giving the preceding I/O port access time to take effect on
// hardware slow enough to need it.
func IOWait()

// LoadGDT loads the global descriptor table pointed to by gdtPtr (address
// of a 10-byte pseudo-descriptor: 2-byte limit, 8-byte base).
func LoadGDT(gdtPtr uintptr)

// LoadTSS loads the task register with the given TSS selector.
func LoadTSS(selector uint16)

// ReloadSegments reloads CS, DS and SS with the given selectors. csSelector
// is applied via a far return; dsSelector is applied to DS, ES, FS, GS and
// SS.
func ReloadSegments(csSelector, dsSelector uint16)

// WriteMSR writes val to the model-specific register msr.
func WriteMSR(msr uint32, val uint64)

// ReadMSR reads the value stored in the model-specific register msr.
func ReadMSR(msr uint32) uint64

// WriteGSBase sets the kernel-mode GS base (KERNEL_GS_BASE MSR) used as the
// per-CPU scratch pointer after swapgs.
func WriteGSBase(base uintptr)

// ID returns information about the CPU and its features. It
// is implemented as a CPUID instruction with EAX=leaf and
// returns the values in EAX, EBX, ECX and EDX.
func ID(leaf uint32) (uint32, uint32, uint32, uint32)

// IsIntel returns true if the code is running on an Intel processor.
func IsIntel() bool {
	_, ebx, ecx, edx := cpuidFn(0)
	return ebx == 0x756e6547 && // "Genu"
		edx == 0x49656e69 && // "ineI"
		ecx == 0x6c65746e // "ntel"
}
