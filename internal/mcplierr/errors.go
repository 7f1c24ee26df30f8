// Package mcplierr defines the typed error kinds surfaced to mcpli callers.
package mcplierr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for exit-code mapping and user messaging.
type Kind string

const (
	KindUserValidation          Kind = "user_validation"
	KindOrchestratorUnavailable Kind = "orchestrator_unavailable"
	KindOrchestratorRetryable   Kind = "orchestrator_retryable"
	KindIPCConnectFailure       Kind = "ipc_connect_failure"
	KindIPCFrameError           Kind = "ipc_frame_error"
	KindIPCTimeout              Kind = "ipc_timeout"
	KindToolError               Kind = "tool_error"
	KindCancelled               Kind = "cancelled"
	KindIdentityMismatch        Kind = "identity_mismatch"
	KindFatal                   Kind = "fatal"
)

// Error is the typed error value carried through the daemon/client boundary.
type Error struct {
	Kind    Kind
	Message string
	Hint    string
	Cause   error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithHint attaches a user-facing suggestion.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// ExitCode maps an error's Kind to the CLI exit code from spec.md §6.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var me *Error
	if errors.As(err, &me) {
		switch me.Kind {
		case KindUserValidation:
			return 1
		case KindToolError:
			return 3
		default:
			return 2
		}
	}
	return 2
}

// Classify maps a raw, untyped error (e.g. from net or os/exec) onto a Kind
// using the same substring-matching idiom the teacher repo used for its
// own error classifier, extended with the kinds this spec defines.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var me *Error
	if errors.As(err, &me) {
		return me
	}

	msg := err.Error()
	switch {
	case containsAny(msg, "connection refused", "no such file or directory", "econnrefused", "enoent"):
		return Wrap(KindIPCConnectFailure, err, "could not connect to daemon socket").
			WithHint("the daemon may not be running yet; mcpli will start it on next use")
	case containsAny(msg, "i/o timeout", "deadline exceeded", "context deadline exceeded"):
		return Wrap(KindIPCTimeout, err, "no response within the configured timeout")
	case containsAny(msg, "frame too large", "oversize frame"):
		return Wrap(KindIPCFrameError, err, "request or response exceeded the frame size limit")
	default:
		return Wrap(KindFatal, err, msg)
	}
}

func containsAny(haystack string, needles ...string) bool {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}
