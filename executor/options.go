package executor

import (
	"io"
	"time"

	"github.com/caffeineduck/memlimit/guest"
)

// Option configures a single run or instance.
type Option func(*runConfig)

type runConfig struct {
	timeout   time.Duration
	budget    int64
	hasBudget bool
	entry     string
	params    []uint64
	args      []string
	env       map[string]string
	stdin     io.Reader
}

func defaultRunConfig() runConfig {
	return runConfig{
		timeout: 30 * time.Second,
		env:     make(map[string]string),
	}
}

// WithTimeout sets the maximum execution time of a run, or of each call
// made on an instance.
func WithTimeout(d time.Duration) Option {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// WithBudget caps the memory the guest may allocate, in bytes. The budget is
// installed before the guest's start function runs, so the guest can raise
// or lower it later with setlimit but never stack a second one.
// Memory the guest is instantiated with is not counted. Negative means
// unlimited, which still meters usage.
func WithBudget(bytes int64) Option {
	return func(c *runConfig) {
		c.budget = bytes
		c.hasBudget = true
	}
}

// WithEntry names the exported function Run calls after instantiation.
func WithEntry(name string, params ...uint64) Option {
	return func(c *runConfig) {
		c.entry = name
		c.params = params
	}
}

// WithArgs sets the WASI command-line arguments.
func WithArgs(args ...string) Option {
	return func(c *runConfig) {
		c.args = args
	}
}

// WithEnv sets a WASI environment variable.
func WithEnv(key, value string) Option {
	return func(c *runConfig) {
		c.env[key] = value
	}
}

// WithStdin sets the guest's standard input.
func WithStdin(r io.Reader) Option {
	return func(c *runConfig) {
		c.stdin = r
	}
}

// ExecutorOption configures the Executor at creation time.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	diskCache        bool
	cacheDir         string
	precompile       []guest.Module // Guests to precompile at startup
	memoryLimitPages uint32         // Max memory pages (each page = 64KB), 0 = default (4GB)
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		diskCache:        false,
		memoryLimitPages: 0, // 0 means use wazero default (65536 pages = 4GB)
	}
}

// WithDiskCache enables persistent compilation cache for faster CLI startup.
// Optionally provide a custom directory; otherwise uses ~/.cache/memlimit or XDG_CACHE_HOME/memlimit.
//
// Examples:
//
//	executor.New(registry, executor.WithDiskCache())            // default dir
//	executor.New(registry, executor.WithDiskCache("/tmp/cache")) // custom dir
func WithDiskCache(dir ...string) ExecutorOption {
	return func(c *executorConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithPrecompile compiles the given guests at Executor creation time.
// This moves the compilation cost to startup rather than first execution.
func WithPrecompile(guests ...guest.Module) ExecutorOption {
	return func(c *executorConfig) {
		c.precompile = guests
	}
}

// WithMemoryLimit sets the hard cap on any single linear memory, in 64KB
// pages. It applies to every guest regardless of its byte budget:
//   - WithMemoryLimit(16) = 1MB max
//   - WithMemoryLimit(256) = 16MB max
//   - WithMemoryLimit(1024) = 64MB max
//   - WithMemoryLimit(4096) = 256MB max
//
// Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) ExecutorOption {
	return func(c *executorConfig) {
		c.memoryLimitPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)
