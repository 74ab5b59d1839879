package bootinfo

import (
	"encoding/binary"
	"testing"
	"unsafe"
)

// headerSize matches the layout of wireHeader: two uint8+pad(3) pairs,
// three uint32 fields, 4 bytes of alignment padding, then four uint64
// fields.
const headerSize = 4 + 4 + 4 + 4 + 4 + 4 + 8 + 8 + 8 + 8

func buildHandoff(regions []Region) []byte {
	buf := make([]byte, headerSize)
	buf[0] = byte(FramebufferTypeRGB)
	buf[4] = 32 // bpp
	binary.LittleEndian.PutUint32(buf[8:12], 4096)  // pitch
	binary.LittleEndian.PutUint32(buf[12:16], 1024) // width
	binary.LittleEndian.PutUint32(buf[16:20], 768)  // height
	binary.LittleEndian.PutUint64(buf[24:32], 0xFD000000)
	binary.LittleEndian.PutUint64(buf[32:40], 0x200000) // ramdisk addr
	binary.LittleEndian.PutUint64(buf[40:48], 0x8000)   // ramdisk len
	binary.LittleEndian.PutUint64(buf[48:56], uint64(len(regions)))

	for _, r := range regions {
		region := make([]byte, 24)
		binary.LittleEndian.PutUint64(region[0:8], uint64(r.Start))
		binary.LittleEndian.PutUint64(region[8:16], uint64(r.End))
		region[16] = byte(r.Kind)
		buf = append(buf, region...)
	}
	return buf
}

func TestParseReadsFramebufferAndRamdisk(t *testing.T) {
	img := buildHandoff(nil)
	info := Parse(uintptr(unsafe.Pointer(&img[0])))

	if info.Framebuffer.Width != 1024 || info.Framebuffer.Height != 768 {
		t.Fatalf("expected 1024x768 framebuffer; got %dx%d", info.Framebuffer.Width, info.Framebuffer.Height)
	}
	if info.Framebuffer.Type != FramebufferTypeRGB {
		t.Errorf("expected RGB framebuffer type; got %v", info.Framebuffer.Type)
	}
	if info.RamdiskAddr != 0x200000 || info.RamdiskLen != 0x8000 {
		t.Errorf("expected ramdisk at 0x200000 len 0x8000; got addr=%#x len=%#x", info.RamdiskAddr, info.RamdiskLen)
	}
}

func TestParseReadsMemoryRegions(t *testing.T) {
	regions := []Region{
		{Start: 0, End: 0x1000, Kind: RegionReserved},
		{Start: 0x1000, End: 0x100000, Kind: RegionUsable},
	}
	img := buildHandoff(regions)
	info := Parse(uintptr(unsafe.Pointer(&img[0])))

	if len(info.MemoryRegions) != 2 {
		t.Fatalf("expected 2 regions; got %d", len(info.MemoryRegions))
	}
	for i, want := range regions {
		if info.MemoryRegions[i] != want {
			t.Errorf("region %d: expected %+v; got %+v", i, want, info.MemoryRegions[i])
		}
	}
}

func TestParseReturnsEmptyRegionsWhenCountIsZero(t *testing.T) {
	img := buildHandoff(nil)
	info := Parse(uintptr(unsafe.Pointer(&img[0])))

	if len(info.MemoryRegions) != 0 {
		t.Fatalf("expected no regions; got %d", len(info.MemoryRegions))
	}
}
