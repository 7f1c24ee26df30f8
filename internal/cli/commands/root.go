// Package commands implements mcpli's thin CLI surface (spec.md §4.11):
// the primary `<tool> [args...] -- [KEY=VAL...] <server-cmd> [server-args...]`
// invocation plus the `daemon` subcommand group, both acting on the core
// ensure/ipc machinery. Argument parsing and output formatting are
// explicitly out of scope for the core (spec.md §1); this package is
// deliberately thin, following the teacher's internal/cli/commands/root.go
// shape.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpli/mcpli/internal/mcplierr"
)

var (
	flagRaw         bool
	flagDebug       bool
	flagVerbose     bool
	flagTimeout     int
	flagToolTimeout int
)

var rootCmd = &cobra.Command{
	Use:   "mcpli <tool> [tool-args...] -- [KEY=VAL...] <server-cmd> [server-args...]",
	Short: "Run a stdio MCP server as a persistent background daemon",
	Long: `mcpli turns a stdio-based MCP server into a long-lived background
daemon dedicated to one (command, arguments, environment) tuple, fronted
by a thin CLI. Each invocation locates or starts the daemon for the given
server spec and forwards one request to it.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runInvoke,
}

// lastExitCode lets a RunE communicate a non-error, non-zero exit code
// (e.g. exit 3 for a tool-reported error per spec.md §6) back to main,
// since cobra's own exit handling only distinguishes err==nil from
// err!=nil.
var lastExitCode int

// Execute runs the root command, returning the process exit code per
// spec.md §6's CLI exit code table.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return mcplierr.ExitCode(err)
	}
	return lastExitCode
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagRaw, "raw", false, "raw machine-readable output")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug diagnostics for the daemon")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose daemon logging")
	rootCmd.PersistentFlags().IntVar(&flagTimeout, "timeout", 0, "daemon inactivity timeout in seconds")
	rootCmd.PersistentFlags().IntVar(&flagToolTimeout, "tool-timeout", 0, "tool call timeout in seconds")
}
