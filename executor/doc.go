// Package executor runs WebAssembly guests under a per-instance memory budget.
//
// # Overview
//
// The executor owns a wazero runtime and caches compiled guests. Every
// instance gets its own allocator slot: all of its linear memory is
// allocated, grown and freed through that slot, so a byte budget installed
// on it (by the host with [WithBudget] or [Instance.SetLimit], or by the
// guest itself through the memlimit.setlimit import) covers every
// allocation the guest makes.
//
// # Basic Usage
//
//	exec, err := executor.New(hostfunc.NewRegistry())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	g, _ := guest.Load("prog.wasm")
//	result := exec.Run(ctx, g,
//	    executor.WithBudget(16<<20),
//	    executor.WithEntry("run"))
//	fmt.Println(result.Output, result.Memory.Used)
//
// # Instances
//
// Instances keep state across calls and can be reconfigured while running:
//
//	inst, err := exec.Instantiate(ctx, g)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	inst.SetLimit(1 << 20)
//	inst.Call(ctx, "grow", 1)
//	fmt.Println(inst.Stats())
//
// A refused allocation is not an error of the call: the guest sees it as a
// failed memory.grow and decides what to do. Memory the guest was
// instantiated with is not counted against the budget.
package executor
