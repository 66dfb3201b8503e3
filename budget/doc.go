// Package budget meters and gates the memory of a host execution context.
//
// # Overview
//
// Every memory operation of a host execution context flows through a single
// [Allocator] callback held in the host's allocator slot (a [Host], usually a
// [Slot]). [SetLimit] installs a [State] into that slot. The State wraps
// whichever allocator was configured before it, counts the bytes that are
// live through it and refuses requests that would push the count past the
// configured limit.
//
//	slot := budget.NewSlot(budget.Heap)
//	if _, err := slot.SetLimit(1 << 20); err != nil {
//	    log.Fatal(err)
//	}
//	buf := slot.Allocator().Realloc(nil, 0, 4096) // nil once the budget is spent
//
// # Callback Conventions
//
// Realloc(ptr, oldSize, newSize) frees when newSize is 0, allocates when ptr
// is nil and resizes otherwise. Failure is a nil result. A rejected resize
// never reaches the wrapped allocator, so the original block stays valid.
//
// # Reconfiguration
//
// Calling SetLimit again on a host whose slot already holds a State only
// changes the limit. Usage counted so far is kept and no second wrapper is
// stacked on top of the first.
//
// Usage starts at zero when the State is installed. Memory handed out before
// that is not counted; freeing it later saturates the counter at zero.
package budget
