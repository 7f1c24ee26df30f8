// Package output renders mcpli CLI results, following the teacher's
// internal/cli/output/formatter.go split between a raw/JSON mode and a
// colorized text mode (fatih/color + olekukonko/tablewriter).
package output

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/mcpli/mcpli/internal/ensure"
	"github.com/mcpli/mcpli/internal/mcplierr"
	"github.com/mcpli/mcpli/internal/mcpsession"
)

// Formatter renders results either raw (single-line JSON, no color, for
// scripting) or as colorized human-readable text, per spec.md §4.11's
// `--raw` flag.
type Formatter struct {
	Raw   bool
	Color bool
}

func New(raw bool) *Formatter {
	return &Formatter{Raw: raw, Color: !raw && isTTY()}
}

func isTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// FormatCallResult renders the result of a ping/listTools/callTool
// request.
func (f *Formatter) FormatCallResult(result interface{}) string {
	if f.Raw {
		data, _ := json.Marshal(result)
		return string(data)
	}
	data, _ := json.MarshalIndent(result, "", "  ")
	return string(data)
}

// FormatTools renders a tool catalog as a two-column table, or as JSON
// in raw mode.
func (f *Formatter) FormatTools(tools []mcpsession.Tool) string {
	if f.Raw {
		data, _ := json.Marshal(tools)
		return string(data)
	}
	table := tablewriter.NewTable(os.Stdout, tablewriter.WithHeader([]string{"Name", "Description"}))
	for _, t := range tools {
		table.Append([]string{t.Name, t.Description})
	}
	table.Render()
	return ""
}

// FormatError renders a typed mcpli error.
func (f *Formatter) FormatError(err error) string {
	classified := mcplierr.Classify(err)
	if f.Raw {
		data, _ := json.Marshal(classified)
		return string(data)
	}
	msg := fmt.Sprintf("Error [%s]: %s", classified.Kind, classified.Message)
	if classified.Hint != "" {
		msg += "\nHint: " + classified.Hint
	}
	if f.Color {
		msg = color.RedString("Error [%s]: ", classified.Kind) + classified.Message
		if classified.Hint != "" {
			msg += "\n" + color.YellowString("Hint: ") + classified.Hint
		}
	}
	return msg
}

// StatusRow is one line of `daemon status` output, per spec.md §4.11.
type StatusRow struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Loaded     bool   `json:"loaded"`
	Running    bool   `json:"running"`
	PID        int    `json:"pid,omitempty"`
	SocketPath string `json:"socketPath"`
}

// FormatStatus renders the daemon status table for one cwd's namespace.
func (f *Formatter) FormatStatus(rows []StatusRow) string {
	if f.Raw {
		data, _ := json.Marshal(rows)
		return string(data)
	}
	table := tablewriter.NewTable(os.Stdout, tablewriter.WithHeader([]string{"ID", "Loaded", "Running", "PID", "Socket"}))
	for _, r := range rows {
		pid := ""
		if r.PID != 0 {
			pid = fmt.Sprintf("%d", r.PID)
		}
		table.Append([]string{r.ID, boolStr(r.Loaded), boolStr(r.Running), pid, r.SocketPath})
	}
	table.Render()
	return ""
}

func boolStr(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// FormatEnsureResult renders the outcome of `daemon start`/implicit
// ensure, per spec.md §4.5 step 9.
func (f *Formatter) FormatEnsureResult(result ensure.Result) string {
	if f.Raw {
		data, _ := json.Marshal(result)
		return string(data)
	}
	msg := fmt.Sprintf("daemon %s (id=%s, action=%s)", result.Label, result.ID, result.Action)
	if result.Started {
		msg += fmt.Sprintf(", started pid=%d", result.PID)
	}
	if f.Color {
		return color.GreenString(msg)
	}
	return msg
}
