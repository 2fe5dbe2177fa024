package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"price-analyst/internal/analysis"
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates a new Output instance.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	w := cmd.OutOrStdout()
	return &Output{
		writer:       w,
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && isTerminal(w),
	}
}

// isTerminal checks if w is stdout and stdout is a terminal. color.NoColor
// already accounts for NO_COLOR and dumb terminals.
func isTerminal(w io.Writer) bool {
	return w == io.Writer(os.Stdout) && !color.NoColor
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

func (o *Output) line(attrs []color.Attribute, format string, args ...interface{}) {
	fmt.Fprintln(o.writer, o.paint(attrs, fmt.Sprintf(format, args...)))
}

func (o *Output) paint(attrs []color.Attribute, text string) string {
	if !o.colorEnabled {
		return text
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(text)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.line([]color.Attribute{color.FgGreen}, format, args...)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.line([]color.Attribute{color.FgRed}, format, args...)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.line([]color.Attribute{color.FgYellow}, format, args...)
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.line([]color.Attribute{color.FgCyan}, format, args...)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	o.line([]color.Attribute{color.Bold}, format, args...)
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	o.line([]color.Attribute{color.Faint}, format, args...)
}

// Green returns green colored text.
func (o *Output) Green(text string) string { return o.paint([]color.Attribute{color.FgGreen}, text) }

// Red returns red colored text.
func (o *Output) Red(text string) string { return o.paint([]color.Attribute{color.FgRed}, text) }

// Yellow returns yellow colored text.
func (o *Output) Yellow(text string) string { return o.paint([]color.Attribute{color.FgYellow}, text) }

// Cyan returns cyan colored text.
func (o *Output) Cyan(text string) string { return o.paint([]color.Attribute{color.FgCyan}, text) }

// BoldText returns bold text.
func (o *Output) BoldText(text string) string { return o.paint([]color.Attribute{color.Bold}, text) }

// DimText returns dimmed text.
func (o *Output) DimText(text string) string { return o.paint([]color.Attribute{color.Faint}, text) }

// Signal colors a report signal.
func (o *Output) Signal(s analysis.Signal) string {
	switch s {
	case analysis.SignalBullish:
		return o.Green("↑ " + string(s))
	case analysis.SignalBearish:
		return o.Red("↓ " + string(s))
	default:
		return o.Yellow("→ " + string(s))
	}
}

// LiveTag marks whether data came from a live provider.
func (o *Output) LiveTag(live bool, source string) string {
	if live {
		return o.Cyan("[" + strings.ToUpper(source) + "]")
	}
	return o.paint([]color.Attribute{color.FgBlack, color.BgYellow, color.Bold}, " NOT LIVE ") +
		" " + o.DimText("("+source+")")
}

// Table represents a simple table for output.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{
		headers: headers,
		rows:    make([][]string, 0),
		output:  output,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visibleLen(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], visibleLen(cell))
			}
		}
	}

	t.printRow(t.headers, widths, true)
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("─", w)
	}
	t.output.Println(t.output.DimText(strings.Join(parts, "──")))

	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, isHeader bool) {
	var parts []string
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		padded := cell + strings.Repeat(" ", max(0, widths[i]-visibleLen(cell)))
		if isHeader {
			padded = t.output.BoldText(padded)
		}
		parts = append(parts, padded)
	}
	t.output.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripANSI removes ANSI escape codes from a string.
func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func visibleLen(s string) int {
	return utf8.RuneCountInString(stripANSI(s))
}

// Box draws a box around content.
func (o *Output) Box(title string, content []string) {
	width := visibleLen(title)
	for _, line := range content {
		width = max(width, visibleLen(line))
	}
	border := strings.Repeat("─", width+2)

	o.Println(o.DimText("┌" + border + "┐"))
	o.Printf("%s %s%s %s\n", o.DimText("│"), o.BoldText(title), strings.Repeat(" ", width-visibleLen(title)), o.DimText("│"))
	o.Println(o.DimText("├" + border + "┤"))
	for _, line := range content {
		o.Printf("%s %s%s %s\n", o.DimText("│"), line, strings.Repeat(" ", width-visibleLen(line)), o.DimText("│"))
	}
	o.Println(o.DimText("└" + border + "┘"))
}
