// Package memlimit runs WebAssembly guests with a byte budget on their
// linear memory.
//
// # Overview
//
// Every guest instance gets its own allocator slot. All memory the runtime
// allocates for the guest goes through that slot, so installing a budget
// meters every growth request. Requests that would push usage past the
// limit are refused and the guest sees a failed memory.grow, while memory
// it already holds stays intact.
//
// # Basic Usage
//
//	exec, _ := executor.New(hostfunc.NewRegistry())
//	defer exec.Close()
//
//	g, _ := guest.Load("prog.wasm")
//
//	// One-shot run with a 4MB budget
//	result := exec.Run(ctx, g, executor.WithBudget(4<<20), executor.WithEntry("run"))
//	fmt.Println(result.Memory.Used, result.Error)
//
//	// Long-lived instance, budget adjusted while it runs
//	inst, _ := exec.Instantiate(ctx, g)
//	inst.SetLimit(1 << 20)
//	inst.Call(ctx, "work")
//
// # Guest-Side Limits
//
// A guest that imports memlimit.setlimit (i64) can install or change its
// own limit. Calling it twice updates the limit in place without losing
// track of memory already in use.
//
// See the [budget], [wasmmem], [executor], and [hostfunc] packages for
// detailed API documentation.
package memlimit
