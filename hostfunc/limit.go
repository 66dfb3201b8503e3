package hostfunc

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/caffeineduck/memlimit/budget"
)

// Limiter is a host execution context whose byte budget a guest may set.
// *budget.Slot implements it.
type Limiter interface {
	SetLimit(limit int64) (*budget.State, error)
}

type limiterKey struct{}

// WithLimiter binds l to ctx. Guest calls made with the returned context
// configure l when they call setlimit.
func WithLimiter(ctx context.Context, l Limiter) context.Context {
	return context.WithValue(ctx, limiterKey{}, l)
}

// LimiterFrom returns the Limiter bound to ctx.
func LimiterFrom(ctx context.Context) (Limiter, bool) {
	l, ok := ctx.Value(limiterKey{}).(Limiter)
	return l, ok && l != nil
}

// SetLimit returns the setlimit(i64) host function. It installs or updates
// the byte budget of the calling guest's host; negative values mean
// unlimited.
//
// When the budget cannot be installed the call traps. Budget rejections are
// not reported here; they surface as failed allocations (memory.grow
// returning -1).
func SetLimit() Func {
	return Func{
		Params: []api.ValueType{api.ValueTypeI64},
		Fn: func(ctx context.Context, _ api.Module, stack []uint64) {
			l, ok := LimiterFrom(ctx)
			if !ok {
				panic(fmt.Errorf("%w: no host bound to this call", budget.ErrConfigure))
			}
			if _, err := l.SetLimit(int64(stack[0])); err != nil {
				panic(err)
			}
		},
	}
}
