package budget

import (
	"errors"
	"testing"
)

func TestSetLimitIdempotent(t *testing.T) {
	slot := NewSlot(Heap)

	first, err := slot.SetLimit(100)
	if err != nil {
		t.Fatalf("first SetLimit: %v", err)
	}
	if _, err := first.Dispatch(nil, 0, 40); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	second, err := slot.SetLimit(200)
	if err != nil {
		t.Fatalf("second SetLimit: %v", err)
	}
	if first != second {
		t.Fatal("second SetLimit installed a new state")
	}
	if slot.Allocator() != Allocator(first) {
		t.Fatal("slot does not hold the original state")
	}
	if first.delegate != Heap {
		t.Error("state wraps another state instead of the original allocator")
	}
	if got := slot.Stats(); got.Used != 40 || got.Limit != 200 || !got.Installed {
		t.Errorf("unexpected stats %+v", got)
	}
}

func TestSetLimitLowerThanUsage(t *testing.T) {
	slot, st := newLimited(t, Heap, 0)
	block, _ := st.Dispatch(nil, 0, 80)

	if _, err := slot.SetLimit(50); err != nil {
		t.Fatalf("SetLimit: %v", err)
	}
	if _, err := st.Dispatch(nil, 0, 1); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("expected ErrBudgetExceeded, got %v", err)
	}
	if _, err := st.Dispatch(block, 80, 20); err != nil {
		t.Errorf("shrink below the new limit should succeed: %v", err)
	}
	if st.Used() != 20 {
		t.Errorf("expected used 20, got %d", st.Used())
	}
}

func TestSetLimitNoHost(t *testing.T) {
	if _, err := SetLimit(nil, 10); !errors.Is(err, ErrConfigure) {
		t.Errorf("expected ErrConfigure, got %v", err)
	}

	var slot *Slot
	if _, err := slot.SetLimit(10); !errors.Is(err, ErrConfigure) {
		t.Errorf("expected ErrConfigure for nil slot, got %v", err)
	}
}

func TestSetLimitEmptySlot(t *testing.T) {
	slot := &Slot{}

	_, err := slot.SetLimit(10)
	if !errors.Is(err, ErrConfigure) {
		t.Fatalf("expected ErrConfigure, got %v", err)
	}
	if errors.Is(err, ErrBudgetExceeded) {
		t.Error("configure error must not look like a budget rejection")
	}
	if slot.Allocator() != nil {
		t.Error("failed SetLimit modified the slot")
	}
	if slot.Stats().Installed {
		t.Error("expected no state installed")
	}
}

// funcHost is a Host backed by plain fields, standing in for a host
// runtime that is not a Slot.
type funcHost struct {
	alloc Allocator
	sets  int
}

func (h *funcHost) Allocator() Allocator     { return h.alloc }
func (h *funcHost) SetAllocator(a Allocator) { h.alloc = a; h.sets++ }

func TestSetLimitCustomHost(t *testing.T) {
	var freed bool
	base := AllocatorFunc(func(ptr []byte, oldSize, newSize uint64) []byte {
		if newSize == 0 {
			freed = true
			return nil
		}
		return Heap.Realloc(ptr, oldSize, newSize)
	})
	h := &funcHost{alloc: base}

	for _, limit := range []int64{10, 20, 30} {
		if _, err := SetLimit(h, limit); err != nil {
			t.Fatalf("SetLimit(%d): %v", limit, err)
		}
	}
	if h.sets != 1 {
		t.Errorf("expected one install, got %d", h.sets)
	}

	b := h.Allocator().Realloc(nil, 0, 30)
	if b == nil {
		t.Fatal("allocate within the final limit failed")
	}
	h.Allocator().Realloc(b, 30, 0)
	if !freed {
		t.Error("free did not reach the original allocator")
	}
}

func TestSetLimitNilState(t *testing.T) {
	h := &funcHost{alloc: (*State)(nil)}

	if _, err := SetLimit(h, 10); !errors.Is(err, ErrConfigure) {
		t.Fatalf("expected ErrConfigure, got %v", err)
	}
	if h.sets != 0 {
		t.Error("SetLimit replaced a nil state")
	}

	slot := NewSlot((*State)(nil))
	if _, err := slot.SetLimit(10); !errors.Is(err, ErrConfigure) {
		t.Errorf("expected ErrConfigure for slot, got %v", err)
	}
	if slot.Stats().Installed {
		t.Error("nil state reported as installed")
	}
}
