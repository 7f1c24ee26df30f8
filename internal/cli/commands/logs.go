package commands

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/mcpli/mcpli/internal/identity"
	"github.com/mcpli/mcpli/internal/mcplierr"
)

func init() {
	daemonCmd.AddCommand(daemonLogsCmd, daemonLogCmd)
}

var flagLogLast string

var daemonLogsCmd = &cobra.Command{
	Use:   "logs [id]",
	Short: "Stream live daemon output via the OS log facility",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		predicate, err := logPredicate(args)
		if err != nil {
			return err
		}
		return runLogTool(cmd, "stream", "--predicate", predicate, "--style", "compact")
	},
}

var daemonLogCmd = &cobra.Command{
	Use:   "log [id]",
	Short: "Show past daemon output via the OS log facility (non-interactive)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		predicate, err := logPredicate(args)
		if err != nil {
			return err
		}
		return runLogTool(cmd, "show", "--predicate", predicate, "--style", "compact", "--last", flagLogLast)
	},
}

func init() {
	daemonLogCmd.Flags().StringVar(&flagLogLast, "last", "5m", "how far back to search, passed to `log show --last`")
}

// logPredicate builds the `log` tool's NSPredicate-style filter: scoped to
// one daemon id if given, otherwise to every daemon under this project's
// namespace, per spec.md §4.9/§4.11 ("a predicate matching the daemon's id
// or the namespace prefix").
func logPredicate(args []string) (string, error) {
	env, err := newEnv()
	if err != nil {
		return "", err
	}
	if len(args) == 1 {
		return fmt.Sprintf("eventMessage CONTAINS %q", "[DAEMON:"+args[0]+"]"), nil
	}
	return fmt.Sprintf("eventMessage CONTAINS %q", identity.LabelPrefix(env.cwd)), nil
}

// runLogTool shells out to /usr/bin/log, streaming its output directly to
// this process's stdout/stderr. `log` itself owns the time-window and
// follow semantics; this layer only builds the predicate.
func runLogTool(cmd *cobra.Command, args ...string) error {
	c := exec.CommandContext(cmd.Context(), "/usr/bin/log", args...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return mcplierr.Wrap(mcplierr.KindFatal, err, "log command failed")
	}
	return nil
}
