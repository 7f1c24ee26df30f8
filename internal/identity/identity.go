// Package identity derives a stable daemon identity from a normalized
// (command, args, env) tuple, per spec.md §3 (DaemonIdentity) and §4.1.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
)

// idPattern is the invariant from spec.md §3: ids are short, path-safe tokens.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Identity is the resolved DaemonIdentity: a normalized command/args/env
// triple plus the 8-hex id derived from it.
type Identity struct {
	Command string
	Args    []string
	Env     map[string]string
	ID      string
}

// ValidID reports whether id matches the path-safety invariant from spec.md §3.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// NormalizeCommand resolves cmd to an absolute path when it looks path-like
// (contains a separator, or starts with "." or "/"), and leaves bare
// executable names (e.g. "node") untouched so PATH lookup happens at
// execution time, per spec.md §4.1.
func NormalizeCommand(cmd string) (string, error) {
	if cmd == "" {
		return "", fmt.Errorf("identity: command must not be empty")
	}
	if !looksLikePath(cmd) {
		return cmd, nil
	}
	abs, err := filepath.Abs(cmd)
	if err != nil {
		return "", fmt.Errorf("identity: resolve command %q: %w", cmd, err)
	}
	clean := filepath.Clean(abs)
	if runtime.GOOS == "windows" {
		clean = strings.ToLower(clean)
	}
	return clean, nil
}

func looksLikePath(cmd string) bool {
	if filepath.IsAbs(cmd) {
		return true
	}
	if strings.HasPrefix(cmd, ".") {
		return true
	}
	return strings.ContainsRune(cmd, filepath.Separator) || strings.ContainsRune(cmd, '/')
}

// NormalizeArgs trims each argument and drops empty strings, preserving order.
func NormalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}

// NormalizeEnv coerces an explicit-only environment map into the canonical
// form used for id derivation: on case-insensitive filesystems (Windows)
// keys are uppercased; iteration order downstream is always sorted-key.
//
// derive_identity_env in spec.md §4.1: only the explicitly supplied env is
// used here. Ambient process environment must never be merged in by the
// caller before calling this function, by design of the id derivation.
func NormalizeEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		if runtime.GOOS == "windows" {
			k = strings.ToUpper(k)
		}
		out[k] = v
	}
	return out
}

// sortedKeys returns env's keys in sorted order, for canonical JSON encoding
// and for deterministic map iteration elsewhere (e.g. building ProgramArguments env).
func sortedKeys(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortedEnv returns env's entries as a slice of [key,value] pairs, sorted by key.
func SortedEnv(env map[string]string) [][2]string {
	keys := sortedKeys(env)
	out := make([][2]string, len(keys))
	for i, k := range keys {
		out[i] = [2]string{k, env[k]}
	}
	return out
}

// ComputeID derives the 8-hex-char daemon id from the canonical JSON
// encoding of [command, ...args, {env}], per spec.md §4.1. env must already
// be normalized (NormalizeEnv); canonicalJSON's sorted-key encoding guarantees
// the same id regardless of Go map iteration order.
func ComputeID(command string, args []string, env map[string]string) string {
	canonical := canonicalJSON(command, args, env)
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:8]
}

// canonicalJSON builds `[cmd, ...args, {k:v sorted}]` using ordered encoding
// so the result is a pure function of the logical (not map-iteration) input.
func canonicalJSON(command string, args []string, env map[string]string) []byte {
	var b strings.Builder
	b.WriteByte('[')
	writeJSONString(&b, command)
	for _, a := range args {
		b.WriteByte(',')
		writeJSONString(&b, a)
	}
	b.WriteByte(',')
	b.WriteByte('{')
	for i, kv := range SortedEnv(env) {
		if i > 0 {
			b.WriteByte(',')
		}
		writeJSONString(&b, kv[0])
		b.WriteByte(':')
		writeJSONString(&b, kv[1])
	}
	b.WriteByte('}')
	b.WriteByte(']')
	return []byte(b.String())
}

func writeJSONString(b *strings.Builder, s string) {
	encoded, _ := json.Marshal(s)
	b.Write(encoded)
}

// New builds the full Identity for a (command, args, env) tuple, applying
// normalization and id derivation in one step.
func New(command string, args []string, env map[string]string) (Identity, error) {
	ncmd, err := NormalizeCommand(command)
	if err != nil {
		return Identity{}, err
	}
	nargs := NormalizeArgs(args)
	nenv := NormalizeEnv(env)
	id := ComputeID(ncmd, nargs, nenv)
	return Identity{Command: ncmd, Args: nargs, Env: nenv, ID: id}, nil
}

// CwdHash returns the first 8 hex chars of SHA-256(cwd), per spec.md §3 (Scope).
func CwdHash(cwd string) string {
	sum := sha256.Sum256([]byte(cwd))
	return hex.EncodeToString(sum[:])[:8]
}

// CurrentDir resolves the absolute working directory, matching spec.md's
// Scope.cwd (always absolute).
func CurrentDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("identity: resolve cwd: %w", err)
	}
	return filepath.Abs(cwd)
}
