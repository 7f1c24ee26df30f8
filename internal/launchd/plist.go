// Package launchd builds macOS launchd service definitions and drives the
// launchctl subprocess that loads, reloads, and kickstarts them (spec.md
// §4.3–§4.4).
package launchd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SockPathMode is the octal 0600 mode launchd applies to the socket it
// creates and binds on the daemon's behalf.
const SockPathMode = 384 // 0600

// SocketName is the single named socket entry every mcpli service
// definition declares, matched by the reserved SOCKET_ENV_KEY the wrapper
// reads at startup.
const SocketName = "mcpli"

// ServiceDefinition is the Go-side model of one launchd plist, per
// spec.md §3 ServiceDefinition / §6.
type ServiceDefinition struct {
	Label            string
	ProgramArguments []string
	WorkingDirectory string
	Env              map[string]string
	SocketPath       string
}

// Render emits the deterministic XML property list for def. Equal inputs
// always produce byte-identical output: keys are walked in a fixed order,
// and EnvironmentVariables entries are sorted by key.
func Render(def ServiceDefinition) []byte {
	var b strings.Builder

	b.WriteString(xmlHeader)
	b.WriteString("<dict>\n")

	writeKeyString(&b, 1, "Label", def.Label)

	writeKey(&b, 1, "ProgramArguments")
	b.WriteString(indent(1) + "<array>\n")
	for _, a := range def.ProgramArguments {
		b.WriteString(indent(2) + "<string>" + escape(a) + "</string>\n")
	}
	b.WriteString(indent(1) + "</array>\n")

	writeKeyString(&b, 1, "WorkingDirectory", def.WorkingDirectory)

	writeKey(&b, 1, "EnvironmentVariables")
	b.WriteString(indent(1) + "<dict>\n")
	keys := make([]string, 0, len(def.Env))
	for k := range def.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeKeyString(&b, 2, k, def.Env[k])
	}
	b.WriteString(indent(1) + "</dict>\n")

	writeKey(&b, 1, "Sockets")
	b.WriteString(indent(1) + "<dict>\n")
	writeKey(&b, 2, SocketName)
	b.WriteString(indent(2) + "<dict>\n")
	writeKeyString(&b, 3, "SockPathName", def.SocketPath)
	writeKeyInt(&b, 3, "SockPathMode", SockPathMode)
	b.WriteString(indent(2) + "</dict>\n")
	b.WriteString(indent(1) + "</dict>\n")

	writeKey(&b, 1, "KeepAlive")
	b.WriteString(indent(1) + "<dict>\n")
	writeKeyBool(&b, 2, "SuccessfulExit", false)
	b.WriteString(indent(1) + "</dict>\n")

	writeKeyString(&b, 1, "ProcessType", "Background")

	b.WriteString("</dict>\n")
	b.WriteString("</plist>\n")

	return []byte(b.String())
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
`

func indent(depth int) string {
	return strings.Repeat("\t", depth)
}

func writeKey(b *strings.Builder, depth int, key string) {
	b.WriteString(indent(depth) + "<key>" + escape(key) + "</key>\n")
}

func writeKeyString(b *strings.Builder, depth int, key, value string) {
	writeKey(b, depth, key)
	b.WriteString(indent(depth) + "<string>" + escape(value) + "</string>\n")
}

func writeKeyInt(b *strings.Builder, depth int, key string, value int) {
	writeKey(b, depth, key)
	b.WriteString(indent(depth) + "<integer>" + strconv.Itoa(value) + "</integer>\n")
}

func writeKeyBool(b *strings.Builder, depth int, key string, value bool) {
	writeKey(b, depth, key)
	if value {
		b.WriteString(indent(depth) + "<true/>\n")
	} else {
		b.WriteString(indent(depth) + "<false/>\n")
	}
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escape(s string) string {
	return escaper.Replace(s)
}

// ArgsJSON and EnvJSON render the ARGS/SERVER_ENV reserved
// environment values the wrapper expects (spec.md §6), using plain
// encoding/json so the values round-trip exactly.
func ArgsJSON(args []string) string {
	data, err := json.Marshal(args)
	if err != nil {
		// args is always a []string; Marshal cannot fail for it.
		panic(fmt.Sprintf("launchd: marshal args: %v", err))
	}
	return string(data)
}

func EnvJSON(env map[string]string) string {
	if env == nil {
		env = map[string]string{}
	}
	data, err := json.Marshal(env)
	if err != nil {
		panic(fmt.Sprintf("launchd: marshal env: %v", err))
	}
	return string(data)
}
