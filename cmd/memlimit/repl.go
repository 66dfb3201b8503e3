package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero/api"

	"github.com/caffeineduck/memlimit/executor"
)

var replCmd = &cobra.Command{
	Use:   "repl <file.wasm>",
	Short: "Interactive session against one guest instance",
	Long: `Start an interactive session with a running guest. Memory and the
budget persist between commands.

Commands:
  call <fn> [args...]   Call an exported function
  limit <size>          Set the memory budget (e.g. 4mb, -1 for unlimited)
  stats                 Show memory usage
  exports               List exported functions
  help                  Show this help
  exit                  Leave the session

Line editing, history (up/down) and history search (Ctrl+R) are supported.
Press Ctrl+D to exit.`,
	Args: cobra.ExactArgs(1),
	RunE: runRepl,
}

func init() {
	addInstanceFlags(replCmd)
	replCmd.Flags().String("history", "", "History file path (default: ~/.memlimit_history)")
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(s.logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".memlimit_history")
	}

	inst, cleanup, err := newInstance(cmd, s, args[0], nil)
	if err != nil {
		return err
	}
	defer cleanup()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "memlimit> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(os.Stderr, "memlimit REPL for %s (type 'help' for commands, Ctrl+D to exit)\n", filepath.Base(args[0]))

	r := &repl{inst: inst, out: rl.Stdout()}
	r.flushOutput()
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Println()
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		quit, err := r.eval(context.Background(), line)
		if err != nil {
			fmt.Fprintf(rl.Stderr(), "Error: %v\n", err)
		}
		if quit {
			break
		}
	}
	return nil
}

// repl evaluates session commands against one instance.
type repl struct {
	inst *executor.Instance
	out  io.Writer

	// printed is how much of the instance output has been shown.
	printed int
}

func (r *repl) eval(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch cmd, rest := fields[0], fields[1:]; cmd {
	case "exit", "quit":
		return true, nil

	case "help":
		fmt.Fprint(r.out, replHelp)

	case "stats":
		printStats(r.out, r.inst.Stats())

	case "exports":
		exports := r.inst.Exports()
		names := make([]string, 0, len(exports))
		for name := range exports {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			def := exports[name]
			fmt.Fprintf(r.out, "%s(%s) -> (%s)\n", name, typeNames(def.ParamTypes()), typeNames(def.ResultTypes()))
		}

	case "limit":
		if len(rest) != 1 {
			return false, fmt.Errorf("usage: limit <size>")
		}
		n, err := parseSize(rest[0])
		if err != nil {
			return false, err
		}
		if err := r.inst.SetLimit(n); err != nil {
			return false, err
		}
		printStats(r.out, r.inst.Stats())

	case "call":
		if len(rest) == 0 {
			return false, fmt.Errorf("usage: call <fn> [args...]")
		}
		params, err := parseParams(rest[1:])
		if err != nil {
			return false, err
		}
		values, err := r.inst.Call(ctx, rest[0], params...)
		r.flushOutput()
		if err != nil {
			return false, err
		}
		if len(values) > 0 {
			fmt.Fprintln(r.out, formatValues(r.inst.Exports()[rest[0]], values))
		}

	default:
		return false, fmt.Errorf("unknown command %q (type 'help')", cmd)
	}
	return false, nil
}

// flushOutput prints guest output produced since the last flush.
func (r *repl) flushOutput() {
	out := r.inst.Output()
	if len(out) <= r.printed {
		return
	}
	fresh := out[r.printed:]
	r.printed = len(out)
	fmt.Fprint(r.out, fresh)
	if !strings.HasSuffix(fresh, "\n") {
		fmt.Fprintln(r.out)
	}
}

func typeNames(types []api.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return strings.Join(names, ", ")
}

const replHelp = `call <fn> [args...]   call an exported function
limit <size>          set the memory budget
stats                 show memory usage
exports               list exported functions
help                  show this help
exit                  leave the session
`
