package build

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/tsbuild/internal/assets"
	"github.com/vango-dev/tsbuild/internal/compiler"
	"github.com/vango-dev/tsbuild/internal/config"
	"github.com/vango-dev/tsbuild/internal/errors"
	"github.com/vango-dev/tsbuild/internal/sources"
)

const tracerName = "github.com/vango-dev/tsbuild/internal/build"

// Result contains the build output.
type Result struct {
	// BuildID uniquely identifies the build.
	BuildID string

	// Duration is how long the build took.
	Duration time.Duration

	// Sources are the compiler inputs, relative to the project root.
	Sources []string

	// Command is the compiler command line, for display.
	Command string

	// Compiler is the backend that ran.
	Compiler string

	// Assets describes the static copy.
	Assets *assets.Report

	// Output is the output directory.
	Output string

	// Manifest is the manifest path, if one was written.
	Manifest string

	// Warnings are non-fatal problems, such as patterns that matched nothing.
	Warnings []string
}

// Options configures the builder.
type Options struct {
	// Compiler overrides the backend selected by the configuration.
	Compiler compiler.Compiler

	// Clean removes the output directory before compiling.
	Clean bool

	// Manifest writes tsbuild-manifest.json into the output directory.
	Manifest bool

	// MetricsFile is a path the metrics textfile is written to after
	// each build.
	MetricsFile string

	// Metrics collects build metrics. A fresh set is created if nil.
	Metrics *Metrics

	// Stdout and Stderr receive the compiler output. They default to the
	// process streams.
	Stdout io.Writer
	Stderr io.Writer

	// Logger receives structured build logs.
	Logger *slog.Logger

	// OnProgress is called with progress updates.
	OnProgress func(step string)

	// OnWarning is called with each warning as it is raised, so warnings
	// reach the caller even when the build fails.
	OnWarning func(msg string)
}

// Builder runs builds of one project.
type Builder struct {
	config  *config.Config
	options Options
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New creates a new builder.
func New(cfg *config.Config, options Options) *Builder {
	// Apply config defaults to options
	if !options.Clean && cfg.Build.Clean {
		options.Clean = true
	}
	if !options.Manifest && cfg.Build.Manifest {
		options.Manifest = true
	}
	if options.MetricsFile == "" && cfg.Build.MetricsFile != "" {
		options.MetricsFile = resolvePath(cfg.Root(), cfg.Build.MetricsFile)
	}
	if options.Metrics == nil {
		options.Metrics = NewMetrics()
	}
	if options.Stdout == nil {
		options.Stdout = os.Stdout
	}
	if options.Stderr == nil {
		options.Stderr = os.Stderr
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Builder{
		config:  cfg,
		options: options,
		logger:  logger.With("component", "build"),
		tracer:  otel.Tracer(tracerName),
	}
}

// Metrics returns the metrics the builder records into.
func (b *Builder) Metrics() *Metrics {
	return b.options.Metrics
}

// Build performs one build.
func (b *Builder) Build(ctx context.Context) (result *Result, err error) {
	start := time.Now()
	cfg := b.config

	ctx, span := b.tracer.Start(ctx, "tsbuild.build",
		trace.WithAttributes(
			attribute.String("tsbuild.preset", cfg.Preset),
			attribute.String("tsbuild.backend", cfg.Compiler.Backend),
		),
	)
	defer func() {
		b.options.Metrics.recordResult(err)
		if b.options.MetricsFile != "" {
			if werr := b.options.Metrics.WriteTextfile(b.options.MetricsFile); werr != nil {
				if err == nil {
					err = werr
				} else {
					b.logger.Warn("metrics not written", "path", b.options.MetricsFile, "error", werr)
				}
			}
		}
		endSpan(span, err)
	}()

	result = &Result{
		BuildID: uuid.NewString(),
		Output:  cfg.OutputPath(),
	}
	span.SetAttributes(attribute.String("tsbuild.build_id", result.BuildID))

	if err := b.step(ctx, "validate", func(context.Context) error {
		return b.validate()
	}); err != nil {
		return nil, err
	}

	if b.options.Clean {
		b.progress("Cleaning output directory...")
		if err := b.step(ctx, "clean", func(context.Context) error {
			return b.Clean()
		}); err != nil {
			return nil, err
		}
	}

	var files []string
	if err := b.step(ctx, "collect", func(context.Context) error {
		var err error
		files, err = b.collect(result)
		return err
	}); err != nil {
		return nil, err
	}
	result.Sources = files
	b.options.Metrics.sourceFiles.Set(float64(len(files)))
	span.SetAttributes(attribute.Int("tsbuild.sources", len(files)))

	comp, inv, err := b.invocation(files)
	if err != nil {
		return nil, err
	}
	result.Compiler = comp.Name()
	result.Command = inv.CommandLine()

	b.progress("Building TypeScript: " + result.Command)
	b.logger.Debug("compiling", "backend", comp.Name(), "files", len(files), "build_id", result.BuildID)

	if err := b.step(ctx, "compile", func(ctx context.Context) error {
		res, err := comp.Compile(ctx, inv)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			b.warn(result, w)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	report, err := b.copyAssets(ctx)
	if err != nil {
		return nil, err
	}
	result.Assets = report

	if b.options.Manifest {
		b.progress("Writing manifest...")
		if err := b.step(ctx, "manifest", func(context.Context) error {
			path, err := b.manifest(result, time.Since(start))
			result.Manifest = path
			return err
		}); err != nil {
			return nil, err
		}
	}

	result.Duration = time.Since(start)
	b.logger.Info("build complete",
		"build_id", result.BuildID,
		"sources", len(result.Sources),
		"static_files", len(report.Files),
		"duration", result.Duration,
	)
	return result, nil
}

// CopyAssets copies the static assets directory into the output directory
// without compiling.
func (b *Builder) CopyAssets(ctx context.Context) (*assets.Report, error) {
	ctx, span := b.tracer.Start(ctx, "tsbuild.copy_assets")
	report, err := b.copyAssets(ctx)
	endSpan(span, err)
	return report, err
}

// Clean removes the output directory.
func (b *Builder) Clean() error {
	out := b.config.OutputPath()
	root := b.config.Root()
	if out == root || within(b.config.SourcePath(), out) {
		return errors.New("E141").
			WithDetail("Refusing to clean " + out + " because it contains the project sources").
			WithSuggestion("Point \"output\" at a dedicated directory such as dist")
	}
	if err := os.RemoveAll(out); err != nil {
		return errors.New("E141").
			WithDetail("Failed to remove " + out).
			Wrap(err)
	}
	return nil
}

// validate checks every input of the build before anything is spawned.
func (b *Builder) validate() error {
	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return err
	}

	src := cfg.SourcePath()
	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return errors.New("E121").
			WithDetail("Source directory " + src + " does not exist or is not a directory").
			WithSuggestion("Set \"source\" in " + config.ConfigFileName + " or pass --dir")
	}

	for _, path := range cfg.RuntimePaths() {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return errors.New("E123").
				WithDetail("Runtime script " + path + " does not exist").
				WithSuggestion("Install it or remove it from \"runtime\"")
		}
	}

	// The copy runs after the compiler; a missing static directory must
	// not leave compiled output behind.
	if static := cfg.StaticPath(); !isDir(static) {
		return errors.New("E170").
			WithDetail("Static directory " + static + " does not exist or is not a directory").
			WithSuggestion("Create it or set \"static\" in " + config.ConfigFileName)
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// collect expands the source and compiler asset patterns and appends the
// runtime scripts. Paths are relative to the project root.
func (b *Builder) collect(result *Result) ([]string, error) {
	cfg := b.config

	srcSet, err := sources.Collect(cfg.SourcePath(), cfg.Sources)
	if err != nil {
		return nil, err
	}
	for _, p := range srcSet.Empty {
		b.warn(result, "source pattern "+p+" matched no files")
	}
	if srcSet.Len() == 0 {
		return nil, errors.New("E125").
			WithDetail("No files in " + cfg.SourcePath() + " match " + strings.Join(cfg.Sources, ", ")).
			WithSuggestion("Check \"sources\" or choose another preset")
	}

	assetSet, err := sources.Collect(cfg.SourcePath(), cfg.CompilerAssets)
	if err != nil {
		return nil, err
	}
	for _, p := range assetSet.Empty {
		b.warn(result, "compiler asset pattern "+p+" matched no files")
	}

	root := cfg.Root()
	var files []string
	for _, p := range srcSet.Paths() {
		files = append(files, relPath(root, p))
	}
	for _, p := range assetSet.Paths() {
		files = append(files, relPath(root, p))
	}
	for _, p := range cfg.RuntimePaths() {
		files = append(files, relPath(root, p))
	}
	return files, nil
}

// invocation selects the compiler and describes the run.
func (b *Builder) invocation(files []string) (compiler.Compiler, *compiler.Invocation, error) {
	cfg := b.config

	comp := b.options.Compiler
	if comp == nil {
		var err error
		if comp, err = compiler.New(cfg); err != nil {
			return nil, nil, err
		}
	}

	env, err := compiler.LoadEnv(cfg.EnvFilePath(), cfg.Compiler.Env)
	if err != nil {
		return nil, nil, err
	}

	inv := &compiler.Invocation{
		Dir:    cfg.Root(),
		Flags:  compiler.FlagsFromConfig(cfg.Flags, relPath(cfg.Root(), cfg.OutputPath())),
		Extra:  cfg.Compiler.Args,
		Files:  files,
		Env:    env,
		Stdout: b.options.Stdout,
		Stderr: b.options.Stderr,
	}

	if comp.Name() == config.BackendESBuild {
		inv.Program = comp.Name()
		return comp, inv, nil
	}

	program, prefix, err := compiler.ParseCommand(cfg.Compiler.Command)
	if err != nil {
		return nil, nil, err
	}
	inv.Program = program
	inv.Prefix = prefix
	return comp, inv, nil
}

func (b *Builder) copyAssets(ctx context.Context) (*assets.Report, error) {
	src := b.config.StaticPath()
	dst := b.config.OutputPath()
	b.progress("Copying static assets...")

	var report *assets.Report
	err := b.step(ctx, "assets", func(context.Context) error {
		var err error
		report, err = assets.CopyStatic(src, dst)
		return err
	})
	if err != nil {
		return nil, err
	}
	b.options.Metrics.assetFiles.Set(float64(len(report.Files)))
	b.options.Metrics.assetBytes.Set(float64(report.Bytes))
	b.logger.Debug("static assets copied", "from", src, "to", dst, "files", len(report.Files), "bytes", report.Bytes)
	return report, nil
}

func (b *Builder) manifest(result *Result, elapsed time.Duration) (string, error) {
	files, err := hashOutputs(result.Output)
	if err != nil {
		return "", errors.New("E143").Wrap(err)
	}
	return writeManifest(result.Output, &Manifest{
		BuildID:   result.BuildID,
		Preset:    b.config.Preset,
		Compiler:  result.Compiler,
		Command:   result.Command,
		Sources:   result.Sources,
		Files:     files,
		Duration:  elapsed.Round(time.Millisecond).String(),
		CreatedAt: time.Now().UTC(),
	})
}

// step runs fn in a span and records its duration.
func (b *Builder) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := b.tracer.Start(ctx, "tsbuild."+name)
	start := time.Now()
	err := fn(ctx)
	b.options.Metrics.observeStep(name, time.Since(start))
	endSpan(span, err)
	return err
}

func (b *Builder) warn(result *Result, msg string) {
	result.Warnings = append(result.Warnings, msg)
	b.logger.Warn(msg)
	if b.options.OnWarning != nil {
		b.options.OnWarning(msg)
	}
}

// progress reports build progress.
func (b *Builder) progress(step string) {
	if b.options.OnProgress != nil {
		b.options.OnProgress(step)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// relPath returns path relative to root when it lies inside root.
func relPath(root, path string) string {
	if within(path, root) {
		if rel, err := filepath.Rel(root, path); err == nil {
			return rel
		}
	}
	return path
}

func resolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
