package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcpli/mcpli/internal/cli/output"
	"github.com/mcpli/mcpli/internal/identity"
	"github.com/mcpli/mcpli/internal/mcplierr"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage mcpli background daemons for this project",
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonRestartCmd, daemonStatusCmd, daemonCleanCmd)
}

var daemonStartCmd = &cobra.Command{
	Use:   "start -- <server-cmd> [server-args...]",
	Short: "Ensure the daemon is loaded and kickstart it immediately",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := parseServerSpec(stripLeadingDash(args))
		if err != nil {
			return err
		}
		env, err := newEnv()
		if err != nil {
			return err
		}
		result, err := env.ensure(cmd.Context(), spec, true)
		if err != nil {
			return err
		}
		fmt.Println(env.formatter.FormatEnsureResult(result))
		return nil
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop [id]",
	Short: "Stop one daemon, or all daemons for this project if no id is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnv()
		if err != nil {
			return err
		}
		var target string
		if len(args) == 1 {
			target = args[0]
		}
		return stopDaemons(cmd.Context(), env, target, true)
	},
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart <id>",
	Short: "Stop then start one daemon, with a brief delay between",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnv()
		if err != nil {
			return err
		}
		id := args[0]
		// Bootout only: leave the plist on disk so Bootstrap below has a
		// file to load. Deleting it here (as `stop` does) would make
		// every restart fail, since launchctl bootstrap requires the
		// plist to exist.
		if err := stopDaemons(cmd.Context(), env, id, false); err != nil {
			return err
		}
		time.Sleep(300 * time.Millisecond)

		scope, err := identity.NewScope(env.cwd, id)
		if err != nil {
			return mcplierr.Wrap(mcplierr.KindUserValidation, err, "invalid daemon id")
		}
		if err := env.engine.Driver.Bootstrap(cmd.Context(), scope.Label, scope.PlistPath); err != nil {
			return mcplierr.Classify(err)
		}
		if err := env.engine.Driver.Kickstart(cmd.Context(), scope.Label, false); err != nil {
			return mcplierr.Classify(err)
		}
		fmt.Printf("restarted %s\n", scope.Label)
		return nil
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report loaded/running state for every daemon in this project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnv()
		if err != nil {
			return err
		}
		entries, err := listDaemons(env.cwd)
		if err != nil {
			return err
		}

		rows := make([]output.StatusRow, 0, len(entries))
		for _, e := range entries {
			loaded, _ := env.engine.Driver.IsLoaded(cmd.Context(), e.Label)
			state, _ := env.engine.Driver.GetRunningState(cmd.Context(), e.Label)
			scope, err := identity.NewScope(env.cwd, e.ID)
			if err != nil {
				continue
			}
			rows = append(rows, output.StatusRow{
				ID: e.ID, Label: e.Label, Loaded: loaded,
				Running: state.Running, PID: state.PID, SocketPath: scope.SocketPath,
			})
		}
		fmt.Println(env.formatter.FormatStatus(rows))
		return nil
	},
}

var daemonCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Stop every daemon and remove this project's mcpli state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnv()
		if err != nil {
			return err
		}
		if err := stopDaemons(cmd.Context(), env, "", true); err != nil {
			return err
		}
		if err := os.RemoveAll(filepath.Join(env.cwd, ".mcpli")); err != nil {
			return mcplierr.Wrap(mcplierr.KindFatal, err, "failed to remove .mcpli directory")
		}
		if err := removeSocketBaseDir(env.cwd); err != nil {
			return err
		}
		fmt.Println("cleaned")
		return nil
	},
}

// daemonEntry is one daemon id discovered under a project's plist
// directory.
type daemonEntry struct {
	ID    string
	Label string
	Path  string
}

// listDaemons enumerates every plist under cwd's namespace, per spec.md
// §4.11's `status`/`stop`/`clean` iteration rule: "filter by cwd-scoped
// label prefix and valid id suffix".
func listDaemons(cwd string) ([]daemonEntry, error) {
	dir := filepath.Join(cwd, ".mcpli", "launchd")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mcplierr.Wrap(mcplierr.KindFatal, err, "failed to list plist directory")
	}

	var out []daemonEntry
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".plist") {
			continue
		}
		label := strings.TrimSuffix(e.Name(), ".plist")
		id, ok := identity.IDFromLabel(cwd, label)
		if !ok {
			continue
		}
		out = append(out, daemonEntry{ID: id, Label: label, Path: filepath.Join(dir, e.Name())})
	}
	return out, nil
}

// stopDaemons implements spec.md §4.11's `stop(id?)`: bootout + delete
// plist + unlink socket for one id, or every id under this project's
// namespace when id is empty. removePlist is false for the stop half of
// `restart`, which needs the plist to still exist for the Bootstrap that
// follows.
func stopDaemons(ctx context.Context, env *cliEnv, id string, removePlist bool) error {
	entries, err := listDaemons(env.cwd)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if id != "" && e.ID != id {
			continue
		}
		env.engine.Driver.Bootout(ctx, e.Label)
		if removePlist {
			_ = os.Remove(e.Path)
		}
		if scope, err := identity.NewScope(env.cwd, e.ID); err == nil {
			_ = os.Remove(scope.SocketPath)
		}
	}
	return nil
}

// removeSocketBaseDir removes <tmp>/mcpli/<cwdHash>, the per-project
// socket directory, per spec.md §4.11's clean step ("remove socket
// directory entries and base dir"). A missing directory is not an error.
func removeSocketBaseDir(cwd string) error {
	if err := os.RemoveAll(identity.SocketDir(cwd)); err != nil {
		return mcplierr.Wrap(mcplierr.KindFatal, err, "failed to remove socket base dir")
	}
	return nil
}

// stripLeadingDash drops a leading "--" separator, accommodating both
// `daemon start -- cmd args` and `daemon start cmd args`.
func stripLeadingDash(args []string) []string {
	if len(args) > 0 && args[0] == "--" {
		return args[1:]
	}
	return args
}

