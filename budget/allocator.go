package budget

import "math"

// Allocator is the allocation callback every memory operation of a host
// execution context goes through.
//
// A newSize of 0 frees ptr and returns nil. A nil ptr with a non-zero newSize
// allocates a fresh block. Anything else resizes ptr from oldSize to newSize.
// Allocation and resize report failure by returning nil; whether ptr is still
// valid after a failed resize is up to the implementation.
type Allocator interface {
	Realloc(ptr []byte, oldSize, newSize uint64) []byte
}

// AllocatorFunc adapts a plain function to the Allocator interface.
type AllocatorFunc func(ptr []byte, oldSize, newSize uint64) []byte

// Realloc implements Allocator.
func (f AllocatorFunc) Realloc(ptr []byte, oldSize, newSize uint64) []byte {
	return f(ptr, oldSize, newSize)
}

// Heap allocates blocks from the Go heap. Freed blocks are left to the
// garbage collector.
var Heap Allocator = heapAllocator{}

type heapAllocator struct{}

func (heapAllocator) Realloc(ptr []byte, _, newSize uint64) []byte {
	if newSize == 0 || newSize > math.MaxInt {
		return nil
	}
	n := int(newSize)
	if ptr == nil {
		return make([]byte, n)
	}
	if n <= cap(ptr) {
		if n > len(ptr) {
			// Bytes past len may be left over from an earlier shrink.
			clear(ptr[len(ptr):n])
		}
		return ptr[:n]
	}
	b := make([]byte, n)
	copy(b, ptr)
	return b
}
