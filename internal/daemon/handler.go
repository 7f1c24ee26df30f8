package daemon

import (
	"context"
	"encoding/json"

	"github.com/mcpli/mcpli/internal/ipc"
	"github.com/mcpli/mcpli/internal/mcplierr"
	"github.com/mcpli/mcpli/internal/safety"
)

// Handle implements ipc.Handler. Every request resets the inactivity
// timer before dispatch, per spec.md §4.8.
func (w *Wrapper) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	w.resetInactivityTimer()

	switch req.Method {
	case ipc.MethodPing:
		return ipc.OK(req.ID, "pong")
	case ipc.MethodListTools:
		return w.handleListTools(ctx, req)
	case ipc.MethodCallTool:
		return w.handleCallTool(ctx, req)
	default:
		return ipc.Err(req.ID, "daemon: unsupported method "+string(req.Method))
	}
}

func (w *Wrapper) handleListTools(ctx context.Context, req ipc.Request) ipc.Response {
	tools, err := w.session.ListTools(ctx)
	if err != nil {
		return ipc.Err(req.ID, mcplierr.Classify(err).Error())
	}
	return ipc.OK(req.ID, tools)
}

func (w *Wrapper) handleCallTool(ctx context.Context, req ipc.Request) ipc.Response {
	var params ipc.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ipc.Err(req.ID, "daemon: invalid callTool params: "+err.Error())
	}

	args, _ := safety.Sanitize(params.Arguments).(map[string]interface{})

	callCtx, cancel := context.WithTimeout(ctx, w.timeouts.ToolTimeout)
	defer cancel()

	w.registerInFlight(req.ID, cancel)
	defer w.clearInFlight(req.ID)

	result, err := w.session.CallTool(callCtx, params.Name, args)
	if err != nil {
		if callCtx.Err() == context.Canceled {
			return ipc.Err(req.ID, mcplierr.New(mcplierr.KindCancelled, "tool call was cancelled").Error())
		}
		return ipc.Err(req.ID, mcplierr.Classify(err).Error())
	}
	return ipc.OK(req.ID, result)
}

// Cancel implements ipc.Handler. It reports whether the target request
// was still in-flight, per spec.md §4.8's cancelCall contract.
func (w *Wrapper) Cancel(ipcRequestID, reason string) bool {
	w.mu.Lock()
	cancel, ok := w.inFlight[ipcRequestID]
	if ok {
		delete(w.inFlight, ipcRequestID)
	}
	w.mu.Unlock()

	if !ok {
		return false
	}
	cancel()
	w.log.Infof("cancelled in-flight call %s: %s", ipcRequestID, reason)
	return true
}

func (w *Wrapper) registerInFlight(id string, cancel context.CancelFunc) {
	w.mu.Lock()
	w.inFlight[id] = cancel
	w.mu.Unlock()
}

func (w *Wrapper) clearInFlight(id string) {
	w.mu.Lock()
	delete(w.inFlight, id)
	w.mu.Unlock()
}

// cancelAllInFlight cancels every in-flight call, per the shutdown
// sequence in spec.md §4.8: "cancel in-flight tool calls".
func (w *Wrapper) cancelAllInFlight() {
	w.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(w.inFlight))
	for id, cancel := range w.inFlight {
		cancels = append(cancels, cancel)
		delete(w.inFlight, id)
	}
	w.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}
