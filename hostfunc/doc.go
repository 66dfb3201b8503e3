// Package hostfunc provides the host functions guests can import.
//
// Host functions are exported under the "memlimit" import module. The only
// built-in is setlimit, which lets a guest cap its own memory:
//
//	(import "memlimit" "setlimit" (func $setlimit (param i64)))
//
// setlimit acts on the Limiter bound to the call context with WithLimiter.
// The executor binds each instance's allocator slot automatically.
//
// # Registry
//
// The [Registry] collects the functions to export. Hosts may add their own
// before the executor is created:
//
//	registry := hostfunc.NewRegistry()
//	registry.Register("now", hostfunc.Func{
//	    Results: []api.ValueType{api.ValueTypeI64},
//	    Fn: func(ctx context.Context, _ api.Module, stack []uint64) {
//	        stack[0] = uint64(time.Now().UnixNano())
//	    },
//	})
//
// Guests cannot query their usage; accounting is visible to the host only.
package hostfunc
