package wasmmem

import (
	"testing"

	"github.com/caffeineduck/memlimit/budget"
)

const page = 65536

func TestLinearMemoryGrowsThroughSlot(t *testing.T) {
	slot := budget.NewSlot(budget.Heap)
	mem := NewAllocator(slot).Allocate(page, 4*page)

	buf := mem.Reallocate(page)
	if len(buf) != page {
		t.Fatalf("expected %d bytes, got %d", page, len(buf))
	}
	buf[10] = 42

	if _, err := slot.SetLimit(3 * page); err != nil {
		t.Fatalf("SetLimit: %v", err)
	}

	// The first page predates the limit; growing it counts the whole new size.
	buf = mem.Reallocate(2 * page)
	if len(buf) != 2*page || buf[10] != 42 {
		t.Fatal("grow to two pages lost data")
	}
	if used := slot.Stats().Used; used != 2*page {
		t.Errorf("expected used %d, got %d", 2*page, used)
	}

	if mem.Reallocate(3*page) == nil {
		t.Fatal("grow to the limit failed")
	}
	if mem.Reallocate(4*page) != nil {
		t.Fatal("grow past the limit succeeded")
	}
	if used := slot.Stats().Used; used != 3*page {
		t.Errorf("expected used %d after rejection, got %d", 3*page, used)
	}

	mem.Free()
	if used := slot.Stats().Used; used != 0 {
		t.Errorf("expected used 0 after free, got %d", used)
	}
	mem.Free()
}

func TestLinearMemoryMax(t *testing.T) {
	slot := budget.NewSlot(budget.Heap)
	mem := NewAllocator(slot).Allocate(0, page)

	if mem.Reallocate(2*page) != nil {
		t.Error("allocation beyond max succeeded")
	}
	if b := mem.Reallocate(0); b == nil || len(b) != 0 {
		t.Error("zero sized memory should be an empty non-nil buffer")
	}
}

func TestLinearMemoryFreshAllocationRejected(t *testing.T) {
	slot := budget.NewSlot(budget.Heap)
	if _, err := slot.SetLimit(page); err != nil {
		t.Fatalf("SetLimit: %v", err)
	}
	mem := NewAllocator(slot).Allocate(page, 4*page)

	if mem.Reallocate(2*page) != nil {
		t.Fatal("initial allocation above the limit succeeded")
	}
	if mem.Reallocate(page) == nil {
		t.Fatal("initial allocation within the limit failed")
	}
}

func TestLinearMemoryNoAllocator(t *testing.T) {
	mem := NewAllocator(&budget.Slot{}).Allocate(page, page)
	if mem.Reallocate(page) != nil {
		t.Error("expected failure without a configured allocator")
	}
}
