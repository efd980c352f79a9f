package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Output handles command output in either human-readable or JSON mode.
type Output struct {
	writer   io.Writer
	jsonMode bool
}

// NewOutput creates an Output for the given command, honoring the --json flag.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:   cmd.OutOrStdout(),
		jsonMode: jsonMode,
	}
}

// JSONMode reports whether JSON output was requested.
func (o *Output) JSONMode() bool {
	return o.jsonMode
}

// JSON writes the value as indented JSON.
func (o *Output) JSON(v interface{}) error {
	enc := json.NewEncoder(o.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Printf writes formatted text.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Println writes a line.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Success writes a green success message.
func (o *Output) Success(format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(o.writer, "✓ "+format+"\n", args...)
}

// Error writes a red error message.
func (o *Output) Error(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(o.writer, "✗ "+format+"\n", args...)
}

// Warning writes a yellow warning message.
func (o *Output) Warning(format string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(o.writer, "⚠ "+format+"\n", args...)
}

// Info writes a cyan informational message.
func (o *Output) Info(format string, args ...interface{}) {
	color.New(color.FgCyan).Fprintf(o.writer, format+"\n", args...)
}

// Bold writes bold text followed by a newline.
func (o *Output) Bold(format string, args ...interface{}) {
	color.New(color.Bold).Fprintf(o.writer, format+"\n", args...)
}

// Dim writes dimmed text followed by a newline.
func (o *Output) Dim(format string, args ...interface{}) {
	color.New(color.Faint).Fprintf(o.writer, format+"\n", args...)
}

// Table renders rows in aligned columns.
type Table struct {
	output  *Output
	headers []string
	rows    [][]string
}

// NewTable creates a table with the given column headers.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{output: output, headers: headers}
}

// AddRow appends a row. Missing cells render empty.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render writes the table.
func (t *Table) Render() {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = displayWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && displayWidth(cell) > widths[i] {
				widths[i] = displayWidth(cell)
			}
		}
	}

	var sb strings.Builder
	for i, h := range t.headers {
		sb.WriteString(padCell(h, widths[i]))
		if i < len(t.headers)-1 {
			sb.WriteString("  ")
		}
	}
	t.output.Bold("%s", sb.String())

	sb.Reset()
	for i := range t.headers {
		sb.WriteString(strings.Repeat("─", widths[i]))
		if i < len(t.headers)-1 {
			sb.WriteString("  ")
		}
	}
	t.output.Dim("%s", sb.String())

	for _, row := range t.rows {
		sb.Reset()
		for i := range t.headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			sb.WriteString(padCell(cell, widths[i]))
			if i < len(t.headers)-1 {
				sb.WriteString("  ")
			}
		}
		t.output.Println(sb.String())
	}
}

// displayWidth measures the visible width of a cell, ignoring ANSI escapes.
func displayWidth(s string) int {
	return len([]rune(stripANSI(s)))
}

func padCell(s string, width int) string {
	pad := width - displayWidth(s)
	if pad <= 0 {
		return s
	}
	return s + strings.Repeat(" ", pad)
}

func stripANSI(s string) string {
	var sb strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// isTerminal reports whether stdout is a terminal; color output is disabled
// otherwise via fatih/color's own NO_COLOR handling plus this check.
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func init() {
	if !isTerminal() {
		color.NoColor = true
	}
}
