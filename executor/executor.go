package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/caffeineduck/memlimit/budget"
	"github.com/caffeineduck/memlimit/guest"
	"github.com/caffeineduck/memlimit/hostfunc"
)

// ErrExecutorClosed is returned when using an Executor after Close.
var ErrExecutorClosed = errors.New("executor closed")

// Result holds the output and metadata from a run.
type Result struct {
	Output   string
	Values   []uint64
	Memory   budget.Stats
	Duration time.Duration
	Error    error
}

// Executor manages the wazero runtime and compiled module caching.
type Executor struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled map[string]wazero.CompiledModule
	registry *hostfunc.Registry
	mu       sync.RWMutex
	closed   bool
}

// New creates an Executor exporting the functions in registry to guests.
// A nil registry exports only the built-ins.
func New(registry *hostfunc.Registry, opts ...ExecutorOption) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if registry == nil {
		registry = hostfunc.NewRegistry()
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	closeAll := func() {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		closeAll()
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}
	if _, err := registry.Instantiate(ctx, rt); err != nil {
		closeAll()
		return nil, err
	}

	e := &Executor{
		runtime:  rt,
		cache:    cache,
		compiled: make(map[string]wazero.CompiledModule),
		registry: registry,
	}

	for _, g := range cfg.precompile {
		if _, err := e.getCompiled(ctx, g); err != nil {
			e.Close()
			return nil, fmt.Errorf("precompile %s: %w", g.Name(), err)
		}
	}

	Logger().Debug("executor ready",
		zap.Strings("host_functions", registry.List()),
		zap.Uint32("memory_limit_pages", cfg.memoryLimitPages),
		zap.Bool("disk_cache", cache != nil))

	return e, nil
}

// Run instantiates g, calls the entry function if one is set and closes the
// instance again. Memory statistics are taken just before closing.
func (e *Executor) Run(ctx context.Context, g guest.Module, opts ...Option) Result {
	start := time.Now()

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	inst, err := e.instantiate(ctx, g, cfg)
	if err != nil {
		return Result{Error: timeoutErr(ctx, cfg.timeout, err), Duration: time.Since(start)}
	}
	defer inst.Close(context.Background())

	result := Result{}
	if cfg.entry != "" {
		result.Values, err = inst.call(ctx, cfg.entry, cfg.params)
	}

	result.Output = inst.Output()
	result.Memory = inst.Stats()
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = timeoutErr(ctx, cfg.timeout, err)
	}
	return result
}

// timeoutErr replaces err with a timeout error when ctx hit its deadline.
func timeoutErr(ctx context.Context, timeout time.Duration, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("timeout after %v", timeout)
	}
	return err
}

// getCompiled returns a cached compiled module, compiling if necessary.
func (e *Executor) getCompiled(ctx context.Context, g guest.Module) (wazero.CompiledModule, error) {
	name := g.Name()

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ErrExecutorClosed
	}
	if compiled, ok := e.compiled[name]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrExecutorClosed
	}
	if compiled, ok := e.compiled[name]; ok {
		return compiled, nil
	}

	compiled, err := e.runtime.CompileModule(ctx, g.Wasm())
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}

	e.compiled[name] = compiled
	return compiled, nil
}

// Close releases all resources held by the Executor.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	ctx := context.Background()

	var errs []error
	if err := e.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "memlimit")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "memlimit")
	}
	return filepath.Join(os.TempDir(), "memlimit-cache")
}
