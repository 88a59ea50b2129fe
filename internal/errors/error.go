package errors

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig  Category = "config"
	CategoryCompile Category = "compile"
	CategoryAssets  Category = "assets"
	CategoryPublish Category = "publish"
	CategoryCLI     Category = "cli"
)

// Location represents a source code location.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// TSBuildError is a structured error with an optional source location,
// suggestion and the exit status of a failed child process.
type TSBuildError struct {
	// Code is a unique error identifier (e.g., "E161").
	Code string

	// Category is the error type (config, compile, assets, ...).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation, or the captured compiler output.
	Detail string

	// Location is the first source location reported by the compiler.
	Location *Location

	// Diagnostics are all located compiler messages, in output order.
	Diagnostics []Diagnostic

	// Context contains surrounding source code lines.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// ExitStatus is the exit status of the failed child process, or 0.
	ExitStatus int

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *TSBuildError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *TSBuildError) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds source location to the error.
func (e *TSBuildError) WithLocation(file string, line, column int) *TSBuildError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

// Diagnostic is one compiler message tied to a source location.
type Diagnostic struct {
	Location
	Message string
}

// tsc prints "file.ts(line,col): error TS1234: ..." and, with --pretty,
// "file.ts:line:col - error TS1234: ...". esbuild and most other tools
// print "file.ts:line:col: ...".
var (
	tscDiagnostic     = regexp.MustCompile(`^(\S[^(]*)\((\d+),(\d+)\): error (.*)$`)
	genericDiagnostic = regexp.MustCompile(`^(\S[^:]*):(\d+):(\d+)(?::| -)\s*(.*)$`)
)

// ParseDiagnostics returns every located message in compiler output.
// Lines without a recognizable location are skipped.
func ParseDiagnostics(output string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		m := tscDiagnostic.FindStringSubmatch(line)
		if m == nil {
			m = genericDiagnostic.FindStringSubmatch(line)
		}
		if m == nil {
			continue
		}
		lineNum, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		if lineNum <= 0 {
			continue
		}
		diags = append(diags, Diagnostic{
			Location: Location{File: m[1], Line: lineNum, Column: col},
			Message:  strings.TrimSpace(m[4]),
		})
	}
	return diags
}

// WithDiagnostics records the compiler's diagnostics. The first one becomes
// the error location.
func (e *TSBuildError) WithDiagnostics(diags []Diagnostic) *TSBuildError {
	if len(diags) == 0 {
		return e
	}
	e.Diagnostics = diags
	first := diags[0].Location
	return e.WithLocation(first.File, first.Line, first.Column)
}

// WithSuggestion adds a fix suggestion to the error.
func (e *TSBuildError) WithSuggestion(s string) *TSBuildError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *TSBuildError) WithDetail(d string) *TSBuildError {
	e.Detail = d
	return e
}

// WithExitStatus records the exit status of a failed child process.
func (e *TSBuildError) WithExitStatus(status int) *TSBuildError {
	e.ExitStatus = status
	return e
}

// Wrap wraps another error.
func (e *TSBuildError) Wrap(err error) *TSBuildError {
	e.Wrapped = err
	return e
}

// readContextLines reads lines around the specified line number from a file.
func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	return lines
}

// New creates a TSBuildError from a registered error code.
func New(code string) *TSBuildError {
	template, ok := registry[code]
	if !ok {
		return &TSBuildError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &TSBuildError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates a new TSBuildError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *TSBuildError {
	return &TSBuildError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError returns the TSBuildError in err's chain, or wraps err in a new
// error with the given code.
func FromError(err error, code string) *TSBuildError {
	if err == nil {
		return nil
	}
	var te *TSBuildError
	if As(err, &te) {
		return te
	}
	return New(code).Wrap(err)
}
