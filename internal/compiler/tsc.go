package compiler

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/tsbuild/internal/errors"
)

// TSC runs an external tsc-compatible compiler.
type TSC struct {
	// LookPath resolves the program. It defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

// NewTSC creates a TSC backend.
func NewTSC() *TSC {
	return &TSC{LookPath: exec.LookPath}
}

// Name returns "tsc".
func (t *TSC) Name() string {
	return "tsc"
}

// Compile runs the program with the invocation's argument list and waits
// for it to exit. Output is passed through to inv.Stdout and inv.Stderr
// unmodified and also captured for the error detail.
func (t *TSC) Compile(ctx context.Context, inv *Invocation) (*Result, error) {
	start := time.Now()

	lookPath := t.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	path, err := lookPath(programPath(inv.Dir, inv.Program))
	if err != nil {
		return nil, errors.New(errors.CodeCompilerNotFound).
			WithDetail("Could not find \"" + inv.Program + "\" on PATH").
			WithSuggestion("Install TypeScript with 'npm install -g typescript', set \"compiler.command\", or use the esbuild backend").
			Wrap(err)
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, path, inv.Args()...)
	cmd.Dir = inv.Dir
	cmd.Env = append(os.Environ(), inv.Env...)
	cmd.Stdout = io.MultiWriter(writerOrDiscard(inv.Stdout), &output)
	cmd.Stderr = io.MultiWriter(writerOrDiscard(inv.Stderr), &output)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			status := exitErr.ExitCode()
			if status <= 0 {
				status = 1
			}
			e := errors.New("E161").
				WithExitStatus(status).
				Wrap(err)
			if detail := strings.TrimSpace(output.String()); detail != "" {
				e.WithDetail(detail)
			}
			return nil, withDiagnostics(e, inv.Dir, output.String())
		}
		if ctx.Err() != nil {
			return nil, errors.New("E162").
				WithDetail("The compiler was interrupted").
				Wrap(ctx.Err())
		}
		return nil, errors.New("E162").Wrap(err)
	}

	return &Result{
		Backend:  t.Name(),
		Duration: time.Since(start),
	}, nil
}

// programPath resolves a relative program path such as
// node_modules/.bin/tsc against the project directory. Bare names are left
// for the PATH lookup.
func programPath(dir, program string) string {
	if dir == "" || filepath.IsAbs(program) || !strings.ContainsAny(program, `/\`) {
		return program
	}
	return filepath.Join(dir, filepath.FromSlash(program))
}

// withDiagnostics attaches every located diagnostic in output, resolving
// relative file names against dir.
func withDiagnostics(e *errors.TSBuildError, dir, output string) *errors.TSBuildError {
	diags := errors.ParseDiagnostics(output)
	for i := range diags {
		diags[i].File = absolute(dir, diags[i].File)
	}
	return e.WithDiagnostics(diags)
}
