package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcpli/mcpli/internal/ipc"
	"github.com/mcpli/mcpli/internal/mcplierr"
	"github.com/mcpli/mcpli/internal/mcpsession"
)

// serverSpec is the parsed right-hand side of the `--` separator:
// `[KEY=VAL...] <server-cmd> [server-args...]` (spec.md §4.11/§6).
type serverSpec struct {
	Env     map[string]string
	Command string
	Args    []string
}

// invocation is the fully-parsed primary CLI syntax, per spec.md §6's
// "CLI surface": `<tool> [args...] -- [KEY=VAL...] <server-cmd>
// [server-args...]`. Tool arguments use the same `KEY=VAL` convention as
// server env, since CLI argument parsing is explicitly out of scope for
// the core (spec.md §1) and this keeps the thin layer's two positional
// sections symmetric.
type invocation struct {
	ToolName string
	ToolArgs map[string]interface{}
	Server   serverSpec
}

func parseInvocation(args []string) (invocation, error) {
	sepIdx := -1
	for i, a := range args {
		if a == "--" {
			sepIdx = i
			break
		}
	}
	if sepIdx < 0 {
		return invocation{}, mcplierr.New(mcplierr.KindUserValidation, "missing -- separator before the server command")
	}

	before := args[:sepIdx]
	after := args[sepIdx+1:]
	if len(before) == 0 {
		return invocation{}, mcplierr.New(mcplierr.KindUserValidation, "missing tool name before --")
	}

	inv := invocation{ToolName: before[0], ToolArgs: map[string]interface{}{}}
	for _, a := range before[1:] {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			return invocation{}, mcplierr.New(mcplierr.KindUserValidation, fmt.Sprintf("invalid tool argument %q, expected KEY=VAL", a))
		}
		inv.ToolArgs[k] = v
	}

	spec, err := parseServerSpec(after)
	if err != nil {
		return invocation{}, err
	}
	inv.Server = spec
	return inv, nil
}

// parseServerSpec parses `[KEY=VAL...] <server-cmd> [server-args...]`:
// leading KEY=VAL tokens are env vars, the first non-KEY=VAL token is the
// server command, everything after is the server's own arguments.
func parseServerSpec(args []string) (serverSpec, error) {
	spec := serverSpec{Env: map[string]string{}}
	i := 0
	for ; i < len(args); i++ {
		k, v, ok := strings.Cut(args[i], "=")
		if !ok || strings.ContainsAny(k, "/ ") {
			break
		}
		spec.Env[k] = v
	}
	if i >= len(args) {
		return serverSpec{}, mcplierr.New(mcplierr.KindUserValidation, "missing server command after --")
	}
	spec.Command = args[i]
	spec.Args = append([]string{}, args[i+1:]...)
	return spec, nil
}

// runInvoke implements the primary CLI syntax: ensure the daemon for the
// given server spec exists, then forward one ping/listTools/callTool
// request to it, per spec.md §2's "control flow per user invocation".
func runInvoke(cmd *cobra.Command, args []string) error {
	inv, err := parseInvocation(args)
	if err != nil {
		return err
	}

	// Listen for an interrupt across the whole invocation so a Ctrl-C
	// mid-callTool reaches the daemon as a cancelCall instead of just
	// killing the client silently, per spec.md §4.7's cancellation path.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := newEnv()
	if err != nil {
		return err
	}

	result, err := env.ensureAndDial(ctx, inv.Server)
	if err != nil {
		return err
	}

	method, params, err := buildRequest(inv)
	if err != nil {
		return err
	}

	reqID := requestID()
	resp, err := callCancelable(ctx, result.SocketPath, ipc.DialOptions{
		SocketPath:         result.SocketPath,
		ConnectRetryBudget: env.timeouts.ConnectRetryBudgetFor(string(result.Action)),
		IPCTimeout:         env.timeouts.IPCTimeoutFor(string(method), flagToolTimeout > 0),
	}, ipc.Request{ID: reqID, Method: method, Params: params})
	if err != nil {
		return err
	}
	if resp.Error != "" {
		fmt.Println(env.formatter.FormatError(mcplierr.New(mcplierr.KindToolError, resp.Error)))
		lastExitCode = 3
		return nil
	}

	if method == ipc.MethodListTools {
		var tools []mcpsession.Tool
		if err := decodeResult(resp.Result, &tools); err == nil {
			fmt.Println(env.formatter.FormatTools(tools))
			return nil
		}
	}
	fmt.Println(env.formatter.FormatCallResult(resp.Result))
	return nil
}

// callCancelable runs one ipc.Call in the background and races it against
// ctx: if ctx is cancelled first (SIGINT/SIGTERM during a long-running
// callTool), it sends ipc.CancelCall on a secondary connection, which
// waits at most 2 seconds for the daemon's reply to that cancel, and then
// returns a cancelled error without waiting for the original call's
// response, per spec.md §4.7's "original promise fails with Cancelled" contract.
func callCancelable(ctx context.Context, socketPath string, opts ipc.DialOptions, req ipc.Request) (ipc.Response, error) {
	type outcome struct {
		resp ipc.Response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := ipc.Call(context.Background(), opts, req)
		done <- outcome{resp, err}
	}()

	select {
	case o := <-done:
		return o.resp, o.err
	case <-ctx.Done():
		ipc.CancelCall(socketPath, req.ID, "client interrupted")
		return ipc.Response{}, mcplierr.New(mcplierr.KindCancelled, "request cancelled by client interrupt")
	}
}

func buildRequest(inv invocation) (ipc.Method, json.RawMessage, error) {
	switch inv.ToolName {
	case "":
		return ipc.MethodListTools, nil, nil
	case "ping":
		return ipc.MethodPing, nil, nil
	case "tools", "list-tools":
		return ipc.MethodListTools, nil, nil
	default:
		params, err := json.Marshal(ipc.CallToolParams{Name: inv.ToolName, Arguments: inv.ToolArgs})
		if err != nil {
			return "", nil, mcplierr.Wrap(mcplierr.KindUserValidation, err, "failed to encode tool arguments")
		}
		return ipc.MethodCallTool, params, nil
	}
}

func decodeResult(raw interface{}, v interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func requestID() string {
	return time.Now().UTC().Format("20060102T150405.000000000")
}
