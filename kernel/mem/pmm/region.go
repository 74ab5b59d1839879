package pmm

import "github.com/evkrnl/evkrnl/kernel/mem"

// RegionKind classifies a memory region reported by the bootloader.
type RegionKind uint8

const (
	// Usable regions may be adopted by the frame allocator.
	Usable RegionKind = iota

	// Reserved regions are never handed out (MMIO, ACPI tables, the
	// kernel image itself, e.t.c).
	Reserved
)

// Region describes a contiguous span of physical memory as reported by the
// bootloader's memory map.
type Region struct {
	Start uintptr
	End   uintptr
	Kind  RegionKind
}

// minUsableFrames is the smallest region (in frames) worth tracking. Regions
// smaller than this add bookkeeping overhead without contributing meaningful
// capacity, since a singleRegionAllocator self-hosts its bitmap at the start
// of the region it describes.
const minUsableFrames = 8

// size returns the region's length in bytes.
func (r Region) size() uintptr { return r.End - r.Start }

// CanonicalizeRegions rounds each usable region to page boundaries (start up,
// end down) and discards regions that are not usable or that become smaller
// than minUsableFrames pages after rounding. The returned slice is ordered by
// start address, matching the order the bootloader reported them in.
func CanonicalizeRegions(regions []Region) []Region {
	out := make([]Region, 0, len(regions))
	for _, r := range regions {
		if r.Kind != Usable {
			continue
		}

		start := (r.Start + uintptr(mem.PageSize-1)) &^ uintptr(mem.PageSize-1)
		end := r.End &^ uintptr(mem.PageSize-1)
		if end <= start {
			continue
		}

		if (end-start)/uintptr(mem.PageSize) < minUsableFrames {
			continue
		}

		out = append(out, Region{Start: start, End: end, Kind: Usable})
	}

	return out
}
