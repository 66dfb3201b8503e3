package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "memlimit [file.wasm]",
	Short: "Run WebAssembly guests under a memory budget",
	Long: `memlimit - Run WebAssembly guests with a byte budget on their memory.

Every allocation the guest makes goes through an accounting allocator.
Requests that would push usage past the limit fail, and the guest sees an
ordinary failed memory.grow. Guests may set their own limit by importing
memlimit.setlimit; the host sets one with --limit or a config file.`,
	Args:          cobra.ArbitraryArgs,
	RunE:          runRun, // Default to run command behavior
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add persistent flags that apply to multiple commands
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")
	rootCmd.PersistentFlags().StringP("config", "f", "", "YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default: warn)")

	// Add run-specific flags to root (for default command)
	addRunFlags(rootCmd)
}
