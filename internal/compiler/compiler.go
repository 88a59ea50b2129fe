package compiler

import (
	"context"
	"io"
	"time"

	"github.com/vango-dev/tsbuild/internal/config"
	"github.com/vango-dev/tsbuild/internal/errors"
)

// Invocation describes one compiler run.
type Invocation struct {
	// Dir is the working directory, normally the project root.
	Dir string

	// Program is the executable to run. Backends that run in-process
	// ignore it.
	Program string

	// Prefix are arguments placed before the flags, e.g. "tsc" for "npx tsc".
	Prefix []string

	// Flags are the recognized compiler options.
	Flags Flags

	// Extra are additional arguments placed after the flags.
	Extra []string

	// Files are the inputs in the order they are passed.
	Files []string

	// Env are KEY=VALUE entries added to the process environment.
	Env []string

	// Stdout and Stderr receive the compiler output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer
}

// Args returns the full argument list, without the program.
func (inv *Invocation) Args() []string {
	args := append([]string(nil), inv.Prefix...)
	return append(args, BuildArgs(inv.Flags, inv.Extra, inv.Files)...)
}

// CommandLine returns the invocation as a display string.
func (inv *Invocation) CommandLine() string {
	return CommandLine(inv.Program, inv.Args())
}

// Result describes a successful compiler run.
type Result struct {
	// Backend is the name of the compiler that ran.
	Backend string

	// Duration is how long the compiler ran.
	Duration time.Duration

	// Outputs are the files written, when the backend reports them.
	Outputs []string

	// Warnings are diagnostics that did not fail the build.
	Warnings []string
}

// Compiler compiles an invocation.
type Compiler interface {
	// Name returns the backend name.
	Name() string

	// Compile runs the invocation and blocks until it finishes.
	Compile(ctx context.Context, inv *Invocation) (*Result, error)
}

// New returns the compiler backend selected by cfg.
func New(cfg *config.Config) (Compiler, error) {
	switch cfg.Compiler.Backend {
	case "", config.BackendTSC:
		return NewTSC(), nil
	case config.BackendESBuild:
		return NewESBuild(), nil
	default:
		return nil, errors.New("E124").
			WithDetail("Unknown backend \"" + cfg.Compiler.Backend + "\"").
			WithSuggestion("Use \"tsc\" or \"esbuild\"")
	}
}

// writerOrDiscard returns w, or io.Discard when w is nil.
func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
