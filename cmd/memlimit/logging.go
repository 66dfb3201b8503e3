package main

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/caffeineduck/memlimit/budget"
	"github.com/caffeineduck/memlimit/executor"
)

// newLogger builds the CLI logger and hands it to the library packages.
// Logs go to stderr so they never mix with guest output.
func newLogger(level string) (*zap.Logger, error) {
	if level == "" {
		level = "warn"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	budget.SetLogger(logger.Named("budget"))
	executor.SetLogger(logger.Named("executor"))
	return logger, nil
}
