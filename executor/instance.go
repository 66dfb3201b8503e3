package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/caffeineduck/memlimit/budget"
	"github.com/caffeineduck/memlimit/guest"
	"github.com/caffeineduck/memlimit/hostfunc"
	"github.com/caffeineduck/memlimit/wasmmem"
)

var (
	ErrInstanceClosed   = errors.New("instance closed")
	ErrFunctionNotFound = errors.New("function not found")
)

// Instance is a live guest with its own allocator slot. Exported functions
// can be called repeatedly and state persists between calls. Calls are
// serialized; SetLimit and Stats may be used from any goroutine, including
// while a call is running.
type Instance struct {
	guest   guest.Module
	slot    *budget.Slot
	module  api.Module
	stdout  *instanceOutput
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// Instantiate starts g in a fresh execution context.
//
// All of the guest's linear memory is allocated through the instance's slot.
// WithBudget is applied after the initial memory exists and before the
// guest's _start function runs.
func (e *Executor) Instantiate(ctx context.Context, g guest.Module, opts ...Option) (*Instance, error) {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return e.instantiate(ctx, g, cfg)
}

func (e *Executor) instantiate(ctx context.Context, g guest.Module, cfg runConfig) (*Instance, error) {
	compiled, err := e.getCompiled(ctx, g)
	if err != nil {
		return nil, err
	}

	inst := &Instance{
		guest:   g,
		slot:    budget.NewSlot(budget.Heap),
		stdout:  &instanceOutput{},
		timeout: cfg.timeout,
	}

	ctx = experimental.WithMemoryAllocator(ctx, wasmmem.NewAllocator(inst.slot))
	ctx = hostfunc.WithLimiter(ctx, inst.slot)

	args := append([]string{g.Name()}, cfg.args...)
	moduleConfig := wazero.NewModuleConfig().
		WithStdout(inst.stdout).
		WithStderr(inst.stdout).
		WithArgs(args...).
		WithName("").
		WithStartFunctions()
	if cfg.stdin != nil {
		moduleConfig = moduleConfig.WithStdin(cfg.stdin)
	}
	for k, v := range cfg.env {
		moduleConfig = moduleConfig.WithEnv(k, v)
	}

	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, ErrExecutorClosed
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, moduleConfig)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", g.Name(), err)
	}
	inst.module = mod

	if cfg.hasBudget {
		if _, err := inst.slot.SetLimit(cfg.budget); err != nil {
			mod.Close(context.Background())
			return nil, err
		}
	}

	if start := mod.ExportedFunction("_start"); start != nil {
		if _, err := start.Call(ctx); err != nil && !exitedCleanly(err) {
			mod.Close(context.Background())
			return nil, fmt.Errorf("start %s: %w", g.Name(), err)
		}
	}

	Logger().Debug("instance started",
		zap.String("guest", g.Name()),
		zap.Bool("budget", cfg.hasBudget),
		zap.Int64("limit", cfg.budget))

	return inst, nil
}

// exitedCleanly reports whether err is a WASI exit with code 0.
func exitedCleanly(err error) bool {
	var exitErr *sys.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == 0
}

// Call invokes an exported function.
func (i *Instance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	res, err := i.call(ctx, name, params)
	if err != nil {
		return nil, timeoutErr(ctx, i.timeout, err)
	}
	return res, nil
}

func (i *Instance) call(ctx context.Context, name string, params []uint64) ([]uint64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil, ErrInstanceClosed
	}

	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}

	res, err := fn.Call(hostfunc.WithLimiter(ctx, i.slot), params...)
	if err != nil {
		if exitedCleanly(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	return res, nil
}

// SetLimit installs or updates the instance's byte budget from the host
// side, with the same effect as the guest calling setlimit.
func (i *Instance) SetLimit(limit int64) error {
	if _, err := i.slot.SetLimit(limit); err != nil {
		return err
	}
	Logger().Info("memory limit set",
		zap.String("guest", i.guest.Name()),
		zap.Int64("limit", limit))
	return nil
}

// Stats returns the instance's memory accounting.
func (i *Instance) Stats() budget.Stats {
	return i.slot.Stats()
}

// Memory returns the guest's exported memory, or nil.
func (i *Instance) Memory() api.Memory {
	return i.module.Memory()
}

// Exports describes the guest's exported functions by name.
func (i *Instance) Exports() map[string]api.FunctionDefinition {
	return i.module.ExportedFunctionDefinitions()
}

// Output returns everything the guest wrote to stdout and stderr.
func (i *Instance) Output() string {
	return i.stdout.String()
}

// Close shuts the guest down. Its memory is released through the slot.
func (i *Instance) Close(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true

	stats := i.slot.Stats()
	Logger().Debug("instance closed",
		zap.String("guest", i.guest.Name()),
		zap.Uint64("used", stats.Used),
		zap.Uint64("limit", stats.Limit))

	return i.module.Close(ctx)
}

type instanceOutput struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (o *instanceOutput) Write(data []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.Write(data)
}

func (o *instanceOutput) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.String()
}
