package initramfs

import (
	"encoding/binary"
	"testing"
	"unsafe"
)

// buildImage assembles a ramdisk blob in the on-disk format for the given
// (name, data) pairs, in order.
func buildImage(entries [][2]string) []byte {
	headerSize := 8 + len(entries)*24
	var names, datas [][]byte
	offset := uint64(headerSize)

	headers := make([]byte, 0, len(entries)*24)
	for _, e := range entries {
		name, data := []byte(e[0]), []byte(e[1])
		h := make([]byte, 24)
		binary.LittleEndian.PutUint64(h[0:8], offset)
		binary.LittleEndian.PutUint64(h[8:16], uint64(len(name)))
		binary.LittleEndian.PutUint64(h[16:24], uint64(len(data)))
		headers = append(headers, h...)
		names = append(names, name)
		datas = append(datas, data)
		offset += uint64(len(name)) + uint64(len(data))
	}

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(len(entries)))
	buf = append(buf, headers...)
	for i := range entries {
		buf = append(buf, names[i]...)
		buf = append(buf, datas[i]...)
	}
	return buf
}

func installImage(t *testing.T, entries [][2]string) {
	t.Helper()
	img := buildImage(entries)
	if err := Init(uintptr(unsafe.Pointer(&img[0])), uintptr(len(img))); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { base, count = 0, 0 })
}

func TestIterVisitsEntriesInOrder(t *testing.T) {
	installImage(t, [][2]string{{"a", "foo"}, {"b", "barz"}})

	var got [][2]string
	for name, data := range Iter() {
		got = append(got, [2]string{name, string(data)})
	}

	want := [][2]string{{"a", "foo"}, {"b", "barz"}}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries; got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %v; got %v", i, want[i], got[i])
		}
	}
}

func TestOpenFile(t *testing.T) {
	installImage(t, [][2]string{{"a", "foo"}, {"b", "barz"}})

	data, ok := OpenFile("b")
	if !ok || string(data) != "barz" {
		t.Fatalf(`expected OpenFile("b") = ("barz", true); got (%q, %v)`, data, ok)
	}

	if _, ok := OpenFile("c"); ok {
		t.Fatal(`expected OpenFile("c") to report ok=false`)
	}
}

func TestIterStopsWhenRangeBreaks(t *testing.T) {
	installImage(t, [][2]string{{"a", "foo"}, {"b", "barz"}})

	var calls int
	for range Iter() {
		calls++
		break
	}

	if calls != 1 {
		t.Fatalf("expected the scan to stop after the first entry; got %d calls", calls)
	}
}

func TestOpenFileBeforeInitReportsNotOk(t *testing.T) {
	base, count = 0, 0

	if _, ok := OpenFile("a"); ok {
		t.Fatal("expected OpenFile to report ok=false before Init")
	}
}

func TestEntryNameOutOfBoundsPanics(t *testing.T) {
	installImage(t, [][2]string{{"a", "foo"}})

	defer func() {
		if err := recover(); err != errTruncated {
			t.Fatalf("expected a panic with errTruncated; got %v", err)
		}
	}()

	h := header(0)
	h.nameLen = length // far past the end of the image
	entryName(h)
}

func TestEntryDataOutOfBoundsPanics(t *testing.T) {
	installImage(t, [][2]string{{"a", "foo"}})

	defer func() {
		if err := recover(); err != errTruncated {
			t.Fatalf("expected a panic with errTruncated; got %v", err)
		}
	}()

	h := header(0)
	h.dataLen = length // far past the end of the image
	entryData(h)
}

func TestEntryNameInvalidUTF8Panics(t *testing.T) {
	installImage(t, [][2]string{{"a", "foo"}})

	defer func() {
		if err := recover(); err != errInvalidUTF8 {
			t.Fatalf("expected a panic with errInvalidUTF8; got %v", err)
		}
	}()

	h := header(0)
	ptr := (*byte)(unsafe.Pointer(base + uintptr(h.nameOffset)))
	*ptr = 0xFF // lone continuation byte, never valid UTF-8 on its own
	entryName(h)
}
