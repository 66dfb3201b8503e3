// Package wasmmem backs wazero linear memories with a budget.Host, so every
// allocation a WebAssembly guest makes goes through the host's allocator slot.
//
// Register the allocator on the context used to instantiate a module:
//
//	slot := budget.NewSlot(budget.Heap)
//	ctx = experimental.WithMemoryAllocator(ctx, wasmmem.NewAllocator(slot))
//	mod, err := rt.InstantiateModule(ctx, compiled, cfg)
//
// The backing buffer may move when it grows, so these memories must not back
// shared (threads) memories.
package wasmmem

import (
	"github.com/tetratelabs/wazero/experimental"

	"github.com/caffeineduck/memlimit/budget"
)

// NewAllocator returns a MemoryAllocator whose memories allocate, grow and
// free through whatever allocator h has configured at the time of each call.
func NewAllocator(h budget.Host) experimental.MemoryAllocator {
	return experimental.MemoryAllocatorFunc(func(_, max uint64) experimental.LinearMemory {
		return &linearMemory{host: h, max: max}
	})
}

type linearMemory struct {
	host budget.Host
	buf  []byte
	max  uint64
}

// Reallocate implements experimental.LinearMemory. A nil result leaves the
// current buffer in place and makes memory.grow return -1.
func (m *linearMemory) Reallocate(size uint64) []byte {
	if size > m.max {
		return nil
	}
	if size == 0 {
		m.Free()
		return []byte{}
	}

	alloc := m.host.Allocator()
	if alloc == nil {
		return nil
	}

	var b []byte
	if m.buf == nil {
		b = alloc.Realloc(nil, 0, size)
	} else {
		b = alloc.Realloc(m.buf, uint64(len(m.buf)), size)
	}
	if b == nil {
		return nil
	}
	m.buf = b
	return b
}

// Free implements experimental.LinearMemory.
func (m *linearMemory) Free() {
	if m.buf == nil {
		return
	}
	if alloc := m.host.Allocator(); alloc != nil {
		alloc.Realloc(m.buf, uint64(len(m.buf)), 0)
	}
	m.buf = nil
}
