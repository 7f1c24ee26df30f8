package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/mcpli/mcpli/internal/mcplierr"
)

// DialOptions configures one client call, per spec.md §4.7.
type DialOptions struct {
	SocketPath         string
	ConnectRetryBudget time.Duration
	IPCTimeout         time.Duration
}

var connectRetryInterval = 50 * time.Millisecond

// Call connects to the daemon socket, writes one framed request, and
// returns its single response, per spec.md §4.7.
func Call(ctx context.Context, opts DialOptions, req Request) (Response, error) {
	conn, err := dialWithRetryBudget(ctx, opts.SocketPath, opts.ConnectRetryBudget)
	if err != nil {
		return Response{}, mcplierr.Classify(err)
	}
	defer conn.Close()

	return roundTrip(ctx, conn, req, opts.IPCTimeout)
}

// CancelCall opens a short-lived secondary connection and sends a
// cancelCall request with a fixed 2-second timeout, per spec.md §4.7. The
// caller's original request is failed with Cancelled regardless of the
// outcome here.
func CancelCall(socketPath, ipcRequestID, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := dialWithRetryBudget(ctx, socketPath, 2*time.Second)
	if err != nil {
		return
	}
	defer conn.Close()

	params, _ := json.Marshal(CancelCallParams{IPCRequestID: ipcRequestID, Reason: reason})
	req := Request{ID: cancelRequestID(ipcRequestID), Method: MethodCancelCall, Params: params}
	_, _ = roundTrip(ctx, conn, req, 2*time.Second)
}

func cancelRequestID(ipcRequestID string) string {
	return "cancel-" + ipcRequestID
}

func dialWithRetryBudget(ctx context.Context, socketPath string, budget time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(budget)
	var lastErr error

	for {
		conn, err := (&net.Dialer{}).DialContext(ctx, "unix", socketPath)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectRetryInterval):
		}
	}

	return nil, fmt.Errorf("ipc: connect to %s: %w", socketPath, lastErr)
}

func roundTrip(ctx context.Context, conn net.Conn, req Request, timeout time.Duration) (Response, error) {
	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	conn.SetDeadline(deadline)

	data, err := Encode(req)
	if err != nil {
		return Response{}, mcplierr.Wrap(mcplierr.KindFatal, err, "failed to encode request")
	}
	if _, err := conn.Write(data); err != nil {
		return Response{}, mcplierr.Classify(err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		uc.CloseWrite()
	}

	reader := bufio.NewReaderSize(conn, 4096)
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return Response{}, mcplierr.Classify(err)
	}

	var resp Response
	if err := json.Unmarshal(trimNewline(line), &resp); err != nil {
		return Response{}, mcplierr.Wrap(mcplierr.KindIPCFrameError, err, "malformed response frame")
	}
	if resp.Error != "" {
		return resp, mcplierr.New(mcplierr.KindToolError, resp.Error)
	}
	return resp, nil
}

func trimNewline(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		return b[:n-1]
	}
	return b
}
