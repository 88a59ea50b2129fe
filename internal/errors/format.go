package errors

import (
	"fmt"
	"io"
	"strings"
)

// ANSI color codes for terminal output.
const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorCyan  = "\033[36m"
	colorWhite = "\033[37m"
	colorGray  = "\033[90m"
	colorBold  = "\033[1m"
)

// colorEnabled controls whether ANSI colors are used.
var colorEnabled = true

// DisableColors disables ANSI color output.
func DisableColors() {
	colorEnabled = false
}

// EnableColors enables ANSI color output.
func EnableColors() {
	colorEnabled = true
}

// color wraps text in ANSI color codes if colors are enabled.
func color(code, text string) string {
	if !colorEnabled {
		return text
	}
	return code + text + colorReset
}

func red(text string) string   { return color(colorRed, text) }
func cyan(text string) string  { return color(colorCyan, text) }
func white(text string) string { return color(colorWhite, text) }
func gray(text string) string  { return color(colorGray, text) }
func bold(text string) string  { return color(colorBold, text) }

// maxDetailLines caps how much captured compiler output Format repeats.
// The compiler already printed its diagnostics unmodified.
const maxDetailLines = 20

// maxDiagnostics caps the diagnostic list Format renders.
const maxDiagnostics = 20

// Format returns a formatted error message for terminal display. Every
// compiler diagnostic is listed by location; the source snippet is shown
// for the first one.
func (e *TSBuildError) Format() string {
	var b strings.Builder

	b.WriteString("\n")
	if e.Code != "" {
		b.WriteString(red(bold("ERROR ")))
		b.WriteString(white(bold(e.Code + ": ")))
	} else {
		b.WriteString(red(bold("ERROR: ")))
	}
	b.WriteString(white(e.Message))
	b.WriteString("\n\n")

	switch {
	case len(e.Diagnostics) > 0:
		e.writeDiagnostics(&b)
	case e.Location != nil:
		fmt.Fprintf(&b, "  %s\n\n", cyan(e.Location.String()))
	}
	e.writeSnippet(&b)

	// Captured output is only repeated when no diagnostic could be parsed
	// from it.
	if e.Detail != "" && len(e.Diagnostics) == 0 {
		e.writeDetail(&b)
	}

	if e.Wrapped != nil {
		fmt.Fprintf(&b, "  %s%s\n\n", gray("Cause: "), e.Wrapped.Error())
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "  %s%s\n\n", cyan("Hint: "), e.Suggestion)
	}

	return b.String()
}

func (e *TSBuildError) writeDiagnostics(b *strings.Builder) {
	diags := e.Diagnostics
	if len(diags) > maxDiagnostics {
		diags = diags[:maxDiagnostics]
	}
	for _, d := range diags {
		fmt.Fprintf(b, "  %s  %s\n", cyan(d.Location.String()), d.Message)
	}
	if omitted := len(e.Diagnostics) - len(diags); omitted > 0 {
		fmt.Fprintf(b, "  %s\n", gray(fmt.Sprintf("... %d more diagnostics", omitted)))
	}
	b.WriteString("\n")
}

// writeSnippet renders the context lines around Location with a marker on
// the reported line and a caret under the reported column.
func (e *TSBuildError) writeSnippet(b *strings.Builder) {
	if e.Location == nil || len(e.Context) == 0 {
		return
	}
	first := e.Location.Line - len(e.Context)/2
	if first < 1 {
		first = 1
	}
	for i, line := range e.Context {
		n := first + i
		if n != e.Location.Line {
			fmt.Fprintf(b, "    %4d%s%s\n", n, gray(" │ "), line)
			continue
		}
		fmt.Fprintf(b, "  %s%4d%s%s\n", red("→ "), n, gray(" │ "), line)
		if e.Location.Column > 0 {
			fmt.Fprintf(b, "       %s%s%s\n", gray("│ "), strings.Repeat(" ", e.Location.Column-1), red("^"))
		}
	}
	b.WriteString("\n")
}

func (e *TSBuildError) writeDetail(b *strings.Builder) {
	lines := strings.Split(strings.TrimRight(e.Detail, "\n"), "\n")
	if len(lines) == 1 {
		lines = wrapText(lines[0], 70)
	}
	if len(lines) > maxDetailLines {
		omitted := len(lines) - maxDetailLines
		lines = append(lines[:maxDetailLines], gray(fmt.Sprintf("... %d more lines", omitted)))
	}
	for _, line := range lines {
		fmt.Fprintf(b, "  %s\n", line)
	}
	b.WriteString("\n")
}

// FormatCompact returns a compact single-line error format, counting the
// diagnostics beyond the first.
func (e *TSBuildError) FormatCompact() string {
	var b strings.Builder
	if e.Location != nil {
		b.WriteString(e.Location.String())
		b.WriteString(": ")
	}
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if len(e.Diagnostics) > 1 {
		fmt.Fprintf(&b, " (+%d more)", len(e.Diagnostics)-1)
	}
	return b.String()
}

// wrapText wraps text to the specified width.
func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	words := strings.Fields(text)
	var current strings.Builder

	for _, word := range words {
		if current.Len()+len(word)+1 > width {
			if current.Len() > 0 {
				lines = append(lines, current.String())
				current.Reset()
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}

	if current.Len() > 0 {
		lines = append(lines, current.String())
	}

	return lines
}

// PrintError prints a formatted error to w.
func PrintError(w io.Writer, err error) {
	var te *TSBuildError
	if As(err, &te) {
		fmt.Fprint(w, te.Format())
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", red(bold("ERROR:")), err.Error())
}
