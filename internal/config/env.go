package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mcpli/mcpli/internal/mcplilog"
)

// LoadEnv loads a .env file into the process environment, following
// Pocket-Omega's search-then-load pattern: stop at the first candidate
// that exists, and continue silently on system env vars if none is found.
//
// Search order (stops at the first file found):
//  1. Explicit paths passed as arguments (test / --env-file use).
//  2. The target server's working directory (cwd) — a project-scoped
//     .env next to the wrapped MCP server.
//  3. The directory mcpli itself is invoked from.
func LoadEnv(log *mcplilog.Logger, cwd string, paths ...string) {
	if len(paths) > 0 {
		if err := godotenv.Load(paths...); err != nil {
			log.Debugf("no .env at specified path(s): %v", err)
		}
		return
	}

	for _, p := range resolveEnvCandidates(cwd) {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err != nil {
				log.Warnf("failed to load .env from %s: %v", p, err)
			} else {
				log.Debugf("loaded .env from %s", p)
			}
			return
		}
	}
	log.Debugf("no .env file found, using system environment variables")
}

// resolveEnvCandidates returns the ordered, deduplicated list of .env paths
// to probe for a given server working directory.
func resolveEnvCandidates(cwd string) []string {
	var candidates []string
	seen := map[string]bool{}

	add := func(p string) {
		if p == "" {
			return
		}
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			candidates = append(candidates, p)
		}
	}

	if cwd != "" {
		add(filepath.Join(cwd, ".env"))
	}
	if wd, err := os.Getwd(); err == nil {
		add(filepath.Join(wd, ".env"))
	}

	return candidates
}

// EnvFilePath returns a human-readable description of where .env will be
// loaded from, for diagnostic output.
func EnvFilePath(cwd string) string {
	candidates := resolveEnvCandidates(cwd)
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return fmt.Sprintf("(not found; searched %v)", candidates)
}
