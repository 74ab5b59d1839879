// Package initramfs provides read-only access to the ramdisk image the
// bootloader hands off alongside the kernel. The image is a flat,
// little-endian blob (count, then one fixed-size header per entry, then a
// raw bytes region holding every name and every file's contents back to
// back) and is never modified after boot, so this package overlays Go
// structs directly onto the blob's bytes via unsafe.Pointer rather than
// copying anything out of it - the same technique the teacher's multiboot
// package uses to walk a bootloader-provided info section in place.
package initramfs

import (
	"iter"
	"unicode/utf8"
	"unsafe"

	"github.com/evkrnl/evkrnl/kernel"
)

var (
	errTruncated   = &kernel.Error{Module: "initramfs", Message: "ramdisk image is truncated or malformed"}
	errInvalidUTF8 = &kernel.Error{Module: "initramfs", Message: "ramdisk entry name is not valid UTF-8"}
)

// entryHeader mirrors one on-disk { name_offset, name_len, data_len } triple.
type entryHeader struct {
	nameOffset uint64
	nameLen    uint64
	dataLen    uint64
}

var (
	base   uintptr
	length uint64
	count  uint64
)

// Init installs the ramdisk image located at addr, spanning length bytes.
// addr is expected to already be reachable (e.g. through the physical
// identity map); Init itself performs no copying.
func Init(addr, imgLength uintptr) *kernel.Error {
	if imgLength < 8 {
		return errTruncated
	}

	n := *(*uint64)(unsafe.Pointer(addr))
	if headerRegionSize(n) > uint64(imgLength) {
		return errTruncated
	}

	base, length, count = addr, uint64(imgLength), n
	return nil
}

func headerRegionSize(n uint64) uint64 {
	return 8 + n*24
}

func header(index uint64) *entryHeader {
	return (*entryHeader)(unsafe.Pointer(base + 8 + uintptr(index)*24))
}

// inBounds reports whether the half-open range [offset, offset+n) lies
// entirely within the installed image, guarding against the offset+n
// addition itself overflowing.
func inBounds(offset, n uint64) bool {
	if offset > length {
		return false
	}
	end := offset + n
	return end >= offset && end <= length
}

// entryName returns the name of the entry described by h. A name offset or
// length that would read outside the image, or bytes that are not valid
// UTF-8, is a fatal error: the wire format guarantees both, so a violation
// means a corrupt or malicious ramdisk.
func entryName(h *entryHeader) string {
	if !inBounds(h.nameOffset, h.nameLen) {
		kernel.Panic(errTruncated)
		return ""
	}

	ptr := (*byte)(unsafe.Pointer(base + uintptr(h.nameOffset)))
	name := unsafe.String(ptr, int(h.nameLen))
	if !utf8.ValidString(name) {
		kernel.Panic(errInvalidUTF8)
		return ""
	}
	return name
}

// entryData returns the raw bytes of the entry described by h. A data
// offset or length that would read outside the image is fatal, matching
// entryName's bounds policy.
func entryData(h *entryHeader) []byte {
	dataOffset := h.nameOffset + h.nameLen
	if dataOffset < h.nameOffset || !inBounds(dataOffset, h.dataLen) {
		kernel.Panic(errTruncated)
		return nil
	}

	ptr := (*byte)(unsafe.Pointer(base + uintptr(dataOffset)))
	return unsafe.Slice(ptr, int(h.dataLen))
}

// Iter returns a finite, non-restartable iterator over every (name, data)
// pair in the ramdisk, in on-disk order. Ranging over Iter before Init has
// run yields nothing.
func Iter() iter.Seq2[string, []byte] {
	return func(yield func(string, []byte) bool) {
		if base == 0 {
			return
		}

		for i := uint64(0); i < count; i++ {
			h := header(i)
			if !yield(entryName(h), entryData(h)) {
				return
			}
		}
	}
}

// OpenFile returns the contents of the named entry, or ok=false if no entry
// with that name exists.
func OpenFile(name string) (data []byte, ok bool) {
	if base == 0 {
		return nil, false
	}

	for i := uint64(0); i < count; i++ {
		h := header(i)
		if entryName(h) == name {
			return entryData(h), true
		}
	}

	return nil, false
}
