// Package bench measures what the memory budget costs compared to an
// unbudgeted allocator.
//
// Run with: go test -v -run=Test ./bench/
// Benchmarks: go test -bench=. ./bench/
package bench

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/caffeineduck/memlimit/budget"
	"github.com/caffeineduck/memlimit/executor"
	"github.com/caffeineduck/memlimit/guest"
	"github.com/caffeineduck/memlimit/internal/wasmtest"
)

// =============================================================================
// ALLOCATOR BENCHMARKS
// =============================================================================

func BenchmarkHeap_AllocFree(b *testing.B) {
	for i := 0; i < b.N; i++ {
		block := budget.Heap.Realloc(nil, 0, 4096)
		budget.Heap.Realloc(block, 4096, 0)
	}
}

func BenchmarkBudget_AllocFree(b *testing.B) {
	slot := budget.NewSlot(budget.Heap)
	if _, err := slot.SetLimit(1 << 30); err != nil {
		b.Fatal(err)
	}
	for i := 0; i < b.N; i++ {
		block := slot.Allocator().Realloc(nil, 0, 4096)
		slot.Allocator().Realloc(block, 4096, 0)
	}
}

func BenchmarkBudget_Rejected(b *testing.B) {
	slot := budget.NewSlot(budget.Heap)
	if _, err := slot.SetLimit(1024); err != nil {
		b.Fatal(err)
	}
	for i := 0; i < b.N; i++ {
		slot.Allocator().Realloc(nil, 0, 4096)
	}
}

func BenchmarkBudget_Parallel(b *testing.B) {
	slot := budget.NewSlot(budget.Heap)
	if _, err := slot.SetLimit(1 << 40); err != nil {
		b.Fatal(err)
	}
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			block := slot.Allocator().Realloc(nil, 0, 256)
			slot.Allocator().Realloc(block, 256, 0)
		}
	})
}

// =============================================================================
// GUEST BENCHMARKS
// =============================================================================

func benchmarkGrow(b *testing.B, opts ...executor.Option) {
	exec, err := executor.New(nil)
	if err != nil {
		b.Fatal(err)
	}
	defer exec.Close()

	g := guest.New("bench", wasmtest.Plain())
	opts = append(opts, executor.WithEntry("grow", 16))

	// First run to compile
	exec.Run(context.Background(), g, opts...)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if res := exec.Run(context.Background(), g, opts...); res.Error != nil {
			b.Fatal(res.Error)
		}
	}
}

func BenchmarkGuest_Grow(b *testing.B) {
	benchmarkGrow(b)
}

func BenchmarkGuest_GrowBudgeted(b *testing.B) {
	benchmarkGrow(b, executor.WithBudget(64<<20))
}

// =============================================================================
// COMPARISON TEST - Human readable output
// =============================================================================

func TestBudgetOverhead(t *testing.T) {
	fmt.Println()
	fmt.Printf("Platform: %s/%s, CPUs: %d\n", runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
	fmt.Println()

	const ops = 100000
	measure := func(alloc budget.Allocator) time.Duration {
		start := time.Now()
		for i := 0; i < ops; i++ {
			block := alloc.Realloc(nil, 0, 1024)
			block = alloc.Realloc(block, 1024, 2048)
			alloc.Realloc(block, 2048, 0)
		}
		return time.Since(start) / ops
	}

	slot := budget.NewSlot(budget.Heap)
	if _, err := slot.SetLimit(1 << 30); err != nil {
		t.Fatal(err)
	}

	heap := measure(budget.Heap)
	budgeted := measure(slot.Allocator())

	fmt.Println("┌────────────────────────┬────────────┐")
	fmt.Println("│ Allocator              │ Per cycle  │")
	fmt.Println("├────────────────────────┼────────────┤")
	fmt.Printf("│ %-22s │ %10s │\n", "heap", heap)
	fmt.Printf("│ %-22s │ %10s │\n", "budgeted heap", budgeted)
	fmt.Println("└────────────────────────┴────────────┘")

	if used := slot.Stats().Used; used != 0 {
		t.Errorf("usage after balanced cycles = %d, want 0", used)
	}
}
