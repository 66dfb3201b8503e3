package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/caffeineduck/memlimit/budget"
	"github.com/caffeineduck/memlimit/executor"
	"github.com/caffeineduck/memlimit/guest"
	"github.com/caffeineduck/memlimit/hostfunc"
)

var runCmd = &cobra.Command{
	Use:   "run <file.wasm> [guest args...]",
	Short: "Run a guest once",
	Long: `Instantiate a WebAssembly guest, run its _start function and optionally
call one exported function.

Sizes accept plain byte counts or kb, mb and gb suffixes. A negative
--limit meters memory without capping it.

Examples:
  memlimit run prog.wasm --limit 4mb
  memlimit run prog.wasm --call grow --param 1 --stats
  memlimit run prog.wasm --config limits.yaml --watch`,
	Args: cobra.ArbitraryArgs,
	RunE: runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("call", "", "Exported function to call after start")
	cmd.Flags().StringSlice("param", nil, "Integer parameter for --call (repeatable)")
	cmd.Flags().Bool("watch", false, "Reload the limit when the config file changes")
	cmd.Flags().Bool("stats", false, "Print memory usage when done")
	addInstanceFlags(cmd)
}

func addInstanceFlags(cmd *cobra.Command) {
	cmd.Flags().String("limit", "", "Memory budget, e.g. 4mb (default: none until the guest sets one)")
	cmd.Flags().String("memory", "256mb", "Hard cap on linear memory size, e.g. 64mb")
	cmd.Flags().Duration("timeout", 30*time.Second, "Execution timeout per call")
}

// newInstance loads the guest and starts it with the resolved settings.
// The returned cleanup closes the instance and its executor.
func newInstance(cmd *cobra.Command, s settings, path string, args []string) (*executor.Instance, func(), error) {
	g, err := guest.Load(path)
	if err != nil {
		return nil, nil, err
	}

	var execOpts []executor.ExecutorOption
	if noCache, _ := cmd.Flags().GetBool("no-cache"); !noCache {
		execOpts = append(execOpts, executor.WithDiskCache())
	}
	if s.memoryPages > 0 {
		execOpts = append(execOpts, executor.WithMemoryLimit(s.memoryPages))
	}

	exec, err := executor.New(hostfunc.NewRegistry(), execOpts...)
	if err != nil {
		return nil, nil, err
	}

	opts := []executor.Option{
		executor.WithTimeout(s.timeout),
		executor.WithArgs(args...),
		executor.WithStdin(cmd.InOrStdin()),
	}
	if s.hasLimit {
		opts = append(opts, executor.WithBudget(s.limit))
	}

	inst, err := exec.Instantiate(context.Background(), g, opts...)
	if err != nil {
		exec.Close()
		return nil, nil, err
	}

	cleanup := func() {
		inst.Close(context.Background())
		exec.Close()
	}
	return inst, cleanup, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(s.logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	inst, cleanup, err := newInstance(cmd, s, args[0], args[1:])
	if err != nil {
		return err
	}
	defer cleanup()

	if s.watch {
		w, err := watchLimit(s.configPath, inst.SetLimit, logger)
		if err != nil {
			return fmt.Errorf("watch %s: %w", s.configPath, err)
		}
		defer w.Close()
		logger.Info("watching config", zap.String("path", s.configPath))
	}

	var values []uint64
	if s.entry != "" {
		values, err = inst.Call(context.Background(), s.entry, s.params...)
	}

	out := inst.Output()
	fmt.Fprint(cmd.OutOrStdout(), out)
	if out != "" && !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	if err == nil && len(values) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), formatValues(inst.Exports()[s.entry], values))
	}
	if s.stats {
		printStats(cmd.ErrOrStderr(), inst.Stats())
	}
	return err
}

// formatValues renders results according to the function's result types.
func formatValues(def api.FunctionDefinition, values []uint64) string {
	var types []api.ValueType
	if def != nil {
		types = def.ResultTypes()
	}

	parts := make([]string, len(values))
	for i, v := range values {
		var t api.ValueType
		if i < len(types) {
			t = types[i]
		}
		switch t {
		case api.ValueTypeI32:
			parts[i] = fmt.Sprint(api.DecodeI32(v))
		case api.ValueTypeI64:
			parts[i] = fmt.Sprint(int64(v))
		case api.ValueTypeF32:
			parts[i] = fmt.Sprint(api.DecodeF32(v))
		case api.ValueTypeF64:
			parts[i] = fmt.Sprint(api.DecodeF64(v))
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, " ")
}

func printStats(w io.Writer, stats budget.Stats) {
	if !stats.Installed {
		fmt.Fprintln(w, "memory: no budget installed")
		return
	}
	limit := "unlimited"
	if stats.Limit > 0 {
		limit = fmt.Sprintf("%d bytes", stats.Limit)
	}
	fmt.Fprintf(w, "memory: %d bytes used, limit %s\n", stats.Used, limit)
}
