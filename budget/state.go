package budget

import (
	"fmt"
	"math/bits"
	"sync"

	"go.uber.org/zap"
)

// State is the accounting allocator installed into a host slot by SetLimit.
// It forwards every request to the allocator that was configured before it
// and tracks how many bytes are live through it.
type State struct {
	mu       sync.Mutex
	delegate Allocator
	used     uint64
	limit    uint64 // 0 means unlimited
}

// Stats is a snapshot of a host's memory accounting.
type Stats struct {
	Used      uint64
	Limit     uint64
	Installed bool
}

func newState(delegate Allocator, limit uint64) *State {
	return &State{delegate: delegate, limit: limit}
}

// Realloc implements Allocator. Both failure kinds come back as nil, which
// is all the host callback contract can carry.
func (s *State) Realloc(ptr []byte, oldSize, newSize uint64) []byte {
	b, _ := s.Dispatch(ptr, oldSize, newSize)
	return b
}

// Dispatch performs one allocator request and says why it failed.
// A request refused by the budget returns an error wrapping
// ErrBudgetExceeded and never reaches the delegate. A request the delegate
// could not satisfy returns an error wrapping ErrDelegateFailure. In both
// cases the usage counter is unchanged.
func (s *State) Dispatch(ptr []byte, oldSize, newSize uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case newSize == 0:
		s.delegate.Realloc(ptr, oldSize, 0)
		s.used = saturatingSub(s.used, oldSize)
		return nil, nil
	case ptr == nil:
		return s.allocate(newSize)
	default:
		return s.resize(ptr, oldSize, newSize)
	}
}

func (s *State) allocate(size uint64) ([]byte, error) {
	next, ok := checkedAdd(s.used, size)
	if !ok || s.exceeds(next) {
		return nil, s.reject("allocate", size)
	}

	b := s.delegate.Realloc(nil, 0, size)
	if b == nil {
		return nil, fmt.Errorf("%w: allocate %d bytes", ErrDelegateFailure, size)
	}
	s.used = next
	return b, nil
}

func (s *State) resize(ptr []byte, oldSize, newSize uint64) ([]byte, error) {
	next, ok := checkedAdd(saturatingSub(s.used, oldSize), newSize)
	if !ok || s.exceeds(next) {
		return nil, s.reject("resize", newSize)
	}

	b := s.delegate.Realloc(ptr, oldSize, newSize)
	if b == nil {
		return nil, fmt.Errorf("%w: resize %d to %d bytes", ErrDelegateFailure, oldSize, newSize)
	}
	s.used = next
	return b, nil
}

func (s *State) exceeds(n uint64) bool {
	return s.limit != 0 && n > s.limit
}

func (s *State) reject(op string, size uint64) error {
	Logger().Debug("allocation rejected",
		zap.String("op", op),
		zap.Uint64("size", size),
		zap.Uint64("used", s.used),
		zap.Uint64("limit", s.limit))
	return fmt.Errorf("%w: %s %d bytes with %d of %d in use", ErrBudgetExceeded, op, size, s.used, s.limit)
}

func (s *State) setLimit(limit uint64) {
	s.mu.Lock()
	s.limit = limit
	s.mu.Unlock()
}

// Used returns the number of bytes currently live through s.
func (s *State) Used() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

// Limit returns the configured limit; 0 means unlimited.
func (s *State) Limit() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit
}

// Stats returns a snapshot of s.
func (s *State) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Used: s.used, Limit: s.limit, Installed: true}
}

// saturatingSub returns a-b, or 0 when b > a.
func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

// checkedAdd returns a+b and false when the sum does not fit in a uint64.
func checkedAdd(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}
