package dev

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/tsbuild/internal/build"
	"github.com/vango-dev/tsbuild/internal/config"
	"github.com/vango-dev/tsbuild/internal/errors"
)

// BuildKind tells a full rebuild from a static-only copy.
type BuildKind string

const (
	BuildFull   BuildKind = "full"
	BuildAssets BuildKind = "assets"
)

// BuildResult contains the result of a rebuild.
type BuildResult struct {
	// Kind is the kind of rebuild that ran.
	Kind BuildKind

	// BuildID identifies the rebuild in logs and reload messages.
	BuildID string

	// Success indicates if the rebuild succeeded.
	Success bool

	// Duration is how long the rebuild took.
	Duration time.Duration

	// Changed are the files that triggered the rebuild, relative to the
	// project root.
	Changed []string

	// Error is the build error, if any.
	Error error
}

// ServerOptions configures the development server.
type ServerOptions struct {
	// Config is the project configuration.
	Config *config.Config

	// Build configures the builder used for every rebuild.
	Build build.Options

	// Logger receives structured logs. It defaults to slog.Default().
	Logger *slog.Logger

	// Out receives the human-readable status lines. It defaults to
	// os.Stdout.
	Out io.Writer

	// OnBuildStart is called when a rebuild starts.
	OnBuildStart func()

	// OnBuildComplete is called when a rebuild completes.
	OnBuildComplete func(result BuildResult)

	// OnReload is called when browsers are reloaded.
	OnReload func(clients int)
}

// Server is the development server: it builds once, watches the project,
// rebuilds on change and serves the output directory.
type Server struct {
	config       *config.Config
	options      ServerOptions
	builder      *build.Builder
	watcher      *Watcher
	queue        *changeQueue
	reloadServer *ReloadServer
	httpServer   *http.Server
	handler      http.Handler
	logger       *slog.Logger
	out          io.Writer
	mu           sync.Mutex
	buildMu      sync.Mutex
	running      bool
	hotReload    bool
}

// NewServer creates a new development server.
func NewServer(options ServerOptions) *Server {
	cfg := options.Config
	hotReload := cfg.Dev.HotReload

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	out := options.Out
	if out == nil {
		out = os.Stdout
	}

	buildOpts := options.Build
	if buildOpts.Logger == nil {
		buildOpts.Logger = logger
	}
	if buildOpts.Metrics == nil {
		buildOpts.Metrics = build.NewMetrics()
	}
	builder := build.New(cfg, buildOpts)

	watcher := NewWatcher(WatcherConfig{
		Paths:    CollectWatchPaths(cfg),
		Classify: ClassifyFor(cfg),
		Ignore:   CollectIgnore(cfg),
		Interval: cfg.DebounceDuration(),
	})

	var reloadServer *ReloadServer
	if hotReload {
		reloadServer = NewReloadServer()
	}

	s := &Server{
		config:       cfg,
		options:      options,
		builder:      builder,
		watcher:      watcher,
		queue:        newChangeQueue(),
		reloadServer: reloadServer,
		logger:       logger.With("component", "dev"),
		out:          out,
		hotReload:    hotReload,
	}
	s.handler = StaticHandler(cfg.OutputPath(), StaticOptions{
		Reload:  reloadServer,
		Metrics: promhttp.HandlerFor(builder.Metrics().Registry(), promhttp.HandlerOpts{}),
		Logger:  logger,
	})
	return s
}

// Handler returns the HTTP handler serving the output directory.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start runs the initial build, then watches and serves until ctx is done.
// A failing initial build is reported but does not stop the server.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	s.log("Building...")
	s.rebuild(ctx, BuildFull)

	s.watcher.OnChange(s.queue.push)

	go s.watcher.Start(ctx)
	go s.processChanges(ctx)

	s.httpServer = &http.Server{
		Addr:              s.config.DevAddress(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log("Serving %s at %s", s.config.OutputPath(), s.config.DevURL())
	err := listenAndServe(ctx, s.httpServer)
	s.Stop()
	return err
}

// Stop stops the development server.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	s.watcher.Stop()
	if s.reloadServer != nil {
		s.reloadServer.Close()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
}

// processChanges handles queued changes one batch at a time. Changes that
// arrive during a rebuild are picked up by the next one.
func (s *Server) processChanges(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.queue.ready:
			if changes := s.queue.take(); len(changes) > 0 {
				s.handleChanges(ctx, changes)
			}
		}
	}
}

// rebuildPlan is the work a batch of changes needs.
type rebuildPlan struct {
	kind BuildKind

	// changed are the relevant paths, relative to the project root.
	changed []string

	// stylesheets are the output paths of the changed stylesheets, set
	// only when the batch changed nothing else.
	stylesheets []string
}

// plan decides how to rebuild for changes. Any compiler input needs a
// full build; static files alone are copied. It reports false when no
// change touches the build.
func (s *Server) plan(changes []Change) (rebuildPlan, bool) {
	p := rebuildPlan{kind: BuildAssets}
	cssOnly := true
	for _, c := range changes {
		if c.Type == ChangeOther {
			continue
		}
		p.changed = append(p.changed, s.relative(c.Path))
		if c.Type == ChangeSource {
			p.kind = BuildFull
		}
		rel, err := filepath.Rel(s.config.StaticPath(), c.Path)
		if c.Type != ChangeStatic || c.Removed || err != nil || !strings.EqualFold(filepath.Ext(c.Path), ".css") {
			cssOnly = false
			continue
		}
		p.stylesheets = append(p.stylesheets, filepath.ToSlash(rel))
	}
	if !cssOnly {
		p.stylesheets = nil
	}
	return p, len(p.changed) > 0
}

// handleChanges rebuilds for a batch of changes and tells the browsers
// what changed.
func (s *Server) handleChanges(ctx context.Context, changes []Change) BuildResult {
	p, ok := s.plan(changes)
	if !ok {
		s.logger.Debug("changes outside the build inputs", "files", len(changes))
		return BuildResult{Success: true}
	}
	s.log("Changed: %s", strings.Join(p.changed, ", "))

	result := s.rebuild(ctx, p.kind)
	result.Changed = p.changed
	if !result.Success {
		return result
	}
	if len(p.stylesheets) > 0 {
		s.notifyCSS(result.BuildID, p.stylesheets)
	} else {
		s.notifyReload(result.BuildID, p.changed)
	}
	return result
}

// rebuild runs one rebuild and reports the outcome to the terminal and the
// browsers. Rebuilds never overlap.
func (s *Server) rebuild(ctx context.Context, kind BuildKind) BuildResult {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	if s.options.OnBuildStart != nil {
		s.options.OnBuildStart()
	}

	start := time.Now()
	result := BuildResult{Kind: kind, BuildID: uuid.NewString()}
	var err error
	if kind == BuildAssets {
		_, err = s.builder.CopyAssets(ctx)
	} else {
		var res *build.Result
		if res, err = s.builder.Build(ctx); res != nil {
			result.BuildID = res.BuildID
		}
	}
	result.Success = err == nil
	result.Duration = time.Since(start)
	result.Error = err

	if s.options.OnBuildComplete != nil {
		s.options.OnBuildComplete(result)
	}

	if err != nil {
		s.logError("Build failed:\n%s", describe(err))
		s.logger.Debug("rebuild failed", "kind", kind, "build_id", result.BuildID, "error", err)
		s.notifyError(result.BuildID, describe(err))
		return result
	}

	if kind == BuildAssets {
		s.log("Copied static assets in %s", result.Duration.Round(time.Millisecond))
	} else {
		s.log("Built in %s", result.Duration.Round(time.Millisecond))
	}
	s.clearReloadError()
	return result
}

// listenAndServe runs srv until ctx is done or it fails.
func listenAndServe(ctx context.Context, srv *http.Server) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return errors.New("E142").
			WithDetail("Could not listen on " + srv.Addr).
			WithSuggestion("Choose another port with --port").
			Wrap(err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.New("E142").Wrap(err)
		}
		return nil
	}
}

// Preview serves dir at addr with caching disabled until ctx is done.
func Preview(ctx context.Context, dir, addr string, logger *slog.Logger) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return errors.New("E142").
			WithDetail(dir + " does not exist").
			WithSuggestion("Run 'tsbuild build' first")
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           StaticHandler(dir, StaticOptions{Logger: logger}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return listenAndServe(ctx, srv)
}

// describe renders err for the terminal and the browser overlay: one line
// per compiler diagnostic, or the captured output when none was parsed.
func describe(err error) string {
	var te *errors.TSBuildError
	if !errors.As(err, &te) {
		return err.Error()
	}
	var b strings.Builder
	b.WriteString(te.FormatCompact())
	switch {
	case len(te.Diagnostics) > 0:
		for _, d := range te.Diagnostics {
			fmt.Fprintf(&b, "\n%s  %s", d.Location.String(), d.Message)
		}
	case te.Detail != "":
		b.WriteString("\n" + te.Detail)
	}
	return b.String()
}

func (s *Server) relative(path string) string {
	if rel, err := filepath.Rel(s.config.Root(), path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

// log writes a timestamped status line.
func (s *Server) log(format string, args ...any) {
	timestamp := time.Now().Format("15:04:05")
	fmt.Fprintf(s.out, "[%s] %s\n", timestamp, fmt.Sprintf(format, args...))
}

// logError writes a timestamped error line.
func (s *Server) logError(format string, args ...any) {
	timestamp := time.Now().Format("15:04:05")
	fmt.Fprintf(s.out, "[%s] %s%s%s\n", timestamp, "\033[31m", fmt.Sprintf(format, args...), "\033[0m")
}

func (s *Server) reloadEnabled() bool {
	return s.hotReload && s.reloadServer != nil
}

func (s *Server) notifyReload(buildID string, changed []string) {
	if !s.reloadEnabled() {
		return
	}
	s.reloadServer.NotifyReload(buildID, changed)
	s.reported()
	s.log("Reloaded %d browsers", s.reloadServer.ClientCount())
}

func (s *Server) notifyCSS(buildID string, stylesheets []string) {
	if !s.reloadEnabled() {
		return
	}
	s.reloadServer.NotifyCSS(buildID, stylesheets)
	s.reported()
	s.log("Updated %s in %d browsers", strings.Join(stylesheets, ", "), s.reloadServer.ClientCount())
}

func (s *Server) reported() {
	if s.options.OnReload != nil {
		s.options.OnReload(s.reloadServer.ClientCount())
	}
}

func (s *Server) notifyError(buildID, errMsg string) {
	if !s.reloadEnabled() {
		return
	}
	s.reloadServer.NotifyError(buildID, errMsg)
}

func (s *Server) clearReloadError() {
	if !s.reloadEnabled() {
		return
	}
	s.reloadServer.ClearError()
}

func isWithinDir(path, dir string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	absDir = filepath.Clean(absDir)
	if absPath == absDir {
		return true
	}
	if !strings.HasSuffix(absDir, string(os.PathSeparator)) {
		absDir += string(os.PathSeparator)
	}
	return strings.HasPrefix(absPath, absDir)
}
