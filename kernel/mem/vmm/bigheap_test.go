package vmm

import (
	"testing"
	"unsafe"

	"github.com/evkrnl/evkrnl/kernel"
	"github.com/evkrnl/evkrnl/kernel/mem"
	"github.com/evkrnl/evkrnl/kernel/mem/pmm"
)

func withHostedBigHeapBacking(t *testing.T) (restore func()) {
	t.Helper()

	origReserve, origAlloc, origMap := earlyReserveRegionFn, frameAllocator, mapFn
	origHead := bigHeapHead

	earlyReserveRegionFn = func(size mem.Size) (uintptr, *kernel.Error) {
		buf := make([]byte, size)
		return uintptr(unsafe.Pointer(&buf[0])), nil
	}
	frameAllocator = func() (pmm.Frame, *kernel.Error) { return pmm.Frame(1), nil }
	mapFn = func(page Page, frame pmm.Frame, flags PageTableEntryFlag) *kernel.Error { return nil }
	bigHeapHead = nil

	return func() {
		earlyReserveRegionFn, frameAllocator, mapFn = origReserve, origAlloc, origMap
		bigHeapHead = origHead
	}
}

func TestBigHeapAllocGrowsOnFirstUse(t *testing.T) {
	defer withHostedBigHeapBacking(t)()

	addr, err := bigHeapAlloc(8192)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr == 0 {
		t.Fatal("expected a non-zero address")
	}
	if bigHeapHead == nil {
		t.Fatal("expected the big heap to have grown a block")
	}
}

func TestBigHeapAllocSplitsRemainder(t *testing.T) {
	defer withHostedBigHeapBacking(t)()

	first, err := bigHeapAlloc(8192)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := bigHeapAlloc(8192)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Fatal("expected the split remainder to satisfy the second allocation")
	}
}

func TestBigHeapFreeThenReallocReusesBlock(t *testing.T) {
	defer withHostedBigHeapBacking(t)()

	addr, err := bigHeapAlloc(4096)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bigHeapFree(addr)

	again, err := bigHeapAlloc(4096)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != addr {
		t.Fatalf("expected the freed block %x to be reused; got %x", addr, again)
	}
}

func TestBigHeapDoubleFreePanics(t *testing.T) {
	defer withHostedBigHeapBacking(t)()

	addr, err := bigHeapAlloc(4096)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bigHeapFree(addr)

	defer func() {
		if err := recover(); err != errDoubleFreeBigHeap {
			t.Errorf("expected panic with errDoubleFreeBigHeap; got %v", err)
		}
	}()
	bigHeapFree(addr)
}
