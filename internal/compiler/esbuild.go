package compiler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/vango-dev/tsbuild/internal/errors"
)

// scriptLoaders are the inputs esbuild transpiles. Every other extension
// is copied unchanged.
var scriptLoaders = map[string]api.Loader{
	".ts":  api.LoaderTS,
	".mts": api.LoaderTS,
	".cts": api.LoaderTS,
	".tsx": api.LoaderTSX,
	".js":  api.LoaderJS,
	".mjs": api.LoaderJS,
	".cjs": api.LoaderJS,
	".jsx": api.LoaderJSX,
}

var targets = map[string]api.Target{
	"ES3":    api.ES5,
	"ES5":    api.ES5,
	"ES6":    api.ES2015,
	"ES2015": api.ES2015,
	"ES2016": api.ES2016,
	"ES2017": api.ES2017,
	"ES2018": api.ES2018,
	"ES2019": api.ES2019,
	"ES2020": api.ES2020,
	"ES2021": api.ES2021,
	"ES2022": api.ES2022,
	"ESNEXT": api.ESNext,
}

// ESBuild transpiles inputs in-process with esbuild. Each input becomes
// one output file, nothing is bundled.
type ESBuild struct{}

// NewESBuild creates an ESBuild backend.
func NewESBuild() *ESBuild {
	return &ESBuild{}
}

// Name returns "esbuild".
func (e *ESBuild) Name() string {
	return "esbuild"
}

// Compile transpiles inv.Files into inv.Flags.OutDir.
func (e *ESBuild) Compile(ctx context.Context, inv *Invocation) (*Result, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, errors.New("E162").Wrap(err)
	}

	format, err := esbuildFormat(inv.Flags.Module)
	if err != nil {
		return nil, err
	}
	target, err := esbuildTarget(inv.Flags.Target)
	if err != nil {
		return nil, err
	}

	entries := make([]string, len(inv.Files))
	loaders := make(map[string]api.Loader)
	for i, f := range inv.Files {
		entries[i] = absolute(inv.Dir, f)
		ext := strings.ToLower(filepath.Ext(f))
		if l, ok := scriptLoaders[ext]; ok {
			loaders[ext] = l
		} else if ext != "" {
			loaders[ext] = api.LoaderCopy
		}
	}

	opts := api.BuildOptions{
		EntryPoints:   entries,
		Outdir:        absolute(inv.Dir, inv.Flags.OutDir),
		Outbase:       commonDir(entries),
		AbsWorkingDir: absolute("", inv.Dir),
		Bundle:        false,
		Write:         true,
		Format:        format,
		Target:        target,
		Loader:        loaders,
		LogLevel:      api.LogLevelSilent,
	}
	if inv.Flags.SourceMap {
		opts.Sourcemap = api.SourceMapLinked
	}
	if inv.Flags.AlwaysStrict && format != api.FormatESModule {
		opts.Banner = map[string]string{"js": `"use strict";`}
	}

	result := api.Build(opts)

	res := &Result{
		Backend:  e.Name(),
		Duration: time.Since(start),
	}
	for _, w := range api.FormatMessages(result.Warnings, api.FormatMessagesOptions{Kind: api.WarningMessage}) {
		res.Warnings = append(res.Warnings, strings.TrimSpace(w))
	}
	if len(inv.Extra) > 0 {
		res.Warnings = append(res.Warnings, "esbuild ignores extra compiler arguments: "+strings.Join(inv.Extra, " "))
	}

	if len(result.Errors) > 0 {
		formatted := api.FormatMessages(result.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		detail := strings.TrimSpace(strings.Join(formatted, ""))
		if inv.Stderr != nil {
			fmt.Fprintln(inv.Stderr, detail)
		}
		return nil, errors.New("E161").WithDetail(detail).WithDiagnostics(esbuildDiagnostics(inv.Dir, result.Errors))
	}

	for _, out := range result.OutputFiles {
		res.Outputs = append(res.Outputs, out.Path)
	}
	return res, nil
}

func esbuildFormat(module string) (api.Format, error) {
	switch strings.ToUpper(module) {
	case "", "ES6", "ES2015", "ES2020", "ES2022", "ESNEXT":
		return api.FormatESModule, nil
	case "COMMONJS":
		return api.FormatCommonJS, nil
	case "NONE":
		return api.FormatIIFE, nil
	default:
		return api.FormatDefault, errors.New("E126").
			WithDetail("The esbuild backend does not support module format \"" + module + "\"").
			WithSuggestion("Use ES6, ESNext, CommonJS, or the tsc backend")
	}
}

func esbuildTarget(target string) (api.Target, error) {
	if target == "" {
		return api.ESNext, nil
	}
	t, ok := targets[strings.ToUpper(target)]
	if !ok {
		return api.DefaultTarget, errors.New("E126").
			WithDetail("The esbuild backend does not support target \"" + target + "\"")
	}
	return t, nil
}

// absolute joins path to dir unless it is already absolute.
// esbuildDiagnostics converts located esbuild messages. esbuild columns
// are zero-based.
func esbuildDiagnostics(dir string, msgs []api.Message) []errors.Diagnostic {
	var diags []errors.Diagnostic
	for _, msg := range msgs {
		loc := msg.Location
		if loc == nil || loc.Line <= 0 {
			continue
		}
		diags = append(diags, errors.Diagnostic{
			Location: errors.Location{File: absolute(dir, loc.File), Line: loc.Line, Column: loc.Column + 1},
			Message:  msg.Text,
		})
	}
	return diags
}

func absolute(dir, path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// commonDir returns the deepest directory containing every path, matching
// the rootDir tsc computes when none is configured.
func commonDir(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	common := filepath.Dir(paths[0])
	for _, p := range paths[1:] {
		dir := filepath.Dir(p)
		for !within(dir, common) {
			parent := filepath.Dir(common)
			if parent == common {
				return common
			}
			common = parent
		}
	}
	return common
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
