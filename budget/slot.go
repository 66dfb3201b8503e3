package budget

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Host is an execution context whose memory operations all go through one
// allocator slot.
type Host interface {
	// Allocator returns the allocator currently configured, or nil.
	Allocator() Allocator
	// SetAllocator replaces the configured allocator.
	SetAllocator(a Allocator)
}

// SetLimit installs a byte budget on h, or updates it when one is already
// installed. A negative limit is treated as 0, which means unlimited.
//
// When h's slot already holds a State, only its limit changes; usage counted
// so far is kept and no second wrapper is created. Otherwise a new State
// wrapping the current allocator is installed with usage starting at zero.
//
// If h has no usable allocator slot SetLimit returns an error wrapping
// ErrConfigure and leaves h untouched.
func SetLimit(h Host, limit int64) (*State, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: no host", ErrConfigure)
	}
	bytes := uint64(max(limit, 0))

	current := h.Allocator()
	if st, ok := current.(*State); ok {
		if st == nil {
			return nil, fmt.Errorf("%w: host holds a nil state", ErrConfigure)
		}
		st.setLimit(bytes)
		Logger().Debug("memory limit updated", zap.Uint64("limit", bytes), zap.Uint64("used", st.Used()))
		return st, nil
	}
	if current == nil {
		return nil, fmt.Errorf("%w: host has no allocator", ErrConfigure)
	}

	st := newState(current, bytes)
	h.SetAllocator(st)
	Logger().Debug("memory limit installed", zap.Uint64("limit", bytes))
	return st, nil
}

// Slot is the allocator slot of one host execution context.
// The zero value has no allocator; use NewSlot.
type Slot struct {
	mu    sync.RWMutex
	alloc Allocator

	// cfg serializes SetLimit so two concurrent callers cannot both
	// see an unwrapped slot and stack two States.
	cfg sync.Mutex
}

// NewSlot returns a slot configured with a.
func NewSlot(a Allocator) *Slot {
	return &Slot{alloc: a}
}

// Allocator implements Host. It returns nil for a nil slot.
func (s *Slot) Allocator() Allocator {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alloc
}

// SetAllocator implements Host.
func (s *Slot) SetAllocator(a Allocator) {
	s.mu.Lock()
	s.alloc = a
	s.mu.Unlock()
}

// SetLimit installs or updates the byte budget of the slot.
// It is safe to call from any goroutine.
func (s *Slot) SetLimit(limit int64) (*State, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: no host", ErrConfigure)
	}
	s.cfg.Lock()
	defer s.cfg.Unlock()
	return SetLimit(s, limit)
}

// Stats reports the accounting of the State installed in the slot.
// Installed is false when no limit has been set.
func (s *Slot) Stats() Stats {
	if st, ok := s.Allocator().(*State); ok && st != nil {
		return st.Stats()
	}
	return Stats{}
}
