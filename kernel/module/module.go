// Package module implements the kernel's pluggable subsystem registry.
// Modules are an immutable pair of C-ABI-compatible function pointers -
// one returning identifying metadata, one performing initialization - so
// that optional device drivers (PS/2 keyboard, SATA/AHCI) can be linked in
// without the core kernel knowing their concrete types.
package module

// Metadata identifies a module by name and version.
type Metadata struct {
	Name    string
	Version string
}

// Module pairs a metadata accessor with an initializer. Both fields are
// plain Go function values rather than the raw FFIStr-based C struct
// described for the on-disk module ABI: that layout matters at the
// boundary where a module's code is linked in (extern "C" symbols
// returning POD structs), not for how the registry that calls them is
// shaped in Go.
type Module struct {
	Metadata func() Metadata
	Init     func() bool
}

// maxLateModules bounds the late registry exactly like the original
// kernel's fixed-capacity array; modules discovered after static linking
// (e.g. by a future module-loading mechanism) still can't grow it.
const maxLateModules = 255

var (
	// static lists modules selected at compile time, in link order.
	static []*Module

	late      [maxLateModules]*Module
	lateCount int

	// initialPassDone reports whether InitAll has already run. Register
	// consults it to decide whether a newly-registered module still
	// waits for that pass or must be initialized immediately.
	initialPassDone bool

	// tallyOK/tallyTotal accumulate the (successful, total) counts across
	// the initial InitAll pass and every late registration that happens
	// after it; Tally exposes the running total.
	tallyOK, tallyTotal int
)

// Static registers a module in the compile-time module list. It is meant
// to be called from package-level init() functions of modules that are
// always linked in.
func Static(m *Module) {
	static = append(static, m)
}

// Register adds a module to the late registry. It returns false if the
// registry's fixed capacity has been exhausted. If the initial InitAll
// pass has already completed, Register also runs m.Init() immediately and
// folds the result into the running tally - a module is never left
// uninitialized just because it showed up after boot.
func Register(m *Module) bool {
	if lateCount >= maxLateModules {
		return false
	}

	late[lateCount] = m
	lateCount++

	if initialPassDone {
		tallyTotal++
		if m.Init() {
			tallyOK++
		}
	}
	return true
}

// InitAll runs every registered module's Init function, in registration
// order (static modules first), and tallies how many reported success. A
// module that returns false is logged by the caller and does not stop the
// remaining modules from initializing - module init failure is never
// fatal to the kernel. Modules registered through Register after InitAll
// returns are initialized as they arrive; see Tally for the cumulative
// count.
func InitAll() (ok, total int) {
	for _, m := range static {
		total++
		if m.Init() {
			ok++
		}
	}

	for i := 0; i < lateCount; i++ {
		total++
		if late[i].Init() {
			ok++
		}
	}

	tallyOK, tallyTotal = ok, total
	initialPassDone = true
	return ok, total
}

// Tally returns the cumulative (successful, total) count across the
// initial InitAll pass and any modules registered afterward.
func Tally() (ok, total int) {
	return tallyOK, tallyTotal
}
