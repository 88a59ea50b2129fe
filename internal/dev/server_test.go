package dev

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/tsbuild/internal/build"
	"github.com/vango-dev/tsbuild/internal/compiler"
	"github.com/vango-dev/tsbuild/internal/config"
	"github.com/vango-dev/tsbuild/internal/errors"
)

type fakeCompiler struct {
	calls int
	err   error
}

func (f *fakeCompiler) Name() string { return "fake" }

func (f *fakeCompiler) Compile(_ context.Context, inv *compiler.Invocation) (*compiler.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	outDir := filepath.Join(inv.Dir, inv.Flags.OutDir)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}
	return &compiler.Result{Backend: f.Name()}, os.WriteFile(filepath.Join(outDir, "app.js"), []byte("//"), 0644)
}

func newTestServer(t *testing.T, fc *fakeCompiler) (*Server, *config.Config) {
	t.Helper()
	root := t.TempDir()
	for name, content := range map[string]string{
		"src/app.ts":             "export {}\n",
		"src/static/index.html":  "<html><body></body></html>",
		"src/static/css/app.css": "body{}",
		"src/lib/vue/vue.js":     "var Vue = {};\n",
	} {
		full := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	cfg, err := config.Default(root)
	if err != nil {
		t.Fatal(err)
	}
	opts := build.Options{
		Compiler: fc,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	s := NewServer(ServerOptions{
		Config: cfg,
		Build:  opts,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Out:    &bytes.Buffer{},
	})
	return s, cfg
}

func TestServer_HandleChanges(t *testing.T) {
	tests := []struct {
		name     string
		changes  func(cfg *config.Config) []Change
		wantKind BuildKind
		compiles int
	}{
		{
			name: "static only",
			changes: func(cfg *config.Config) []Change {
				return []Change{{Path: filepath.Join(cfg.StaticPath(), "index.html"), Type: ChangeStatic}}
			},
			wantKind: BuildAssets,
			compiles: 0,
		},
		{
			name: "source",
			changes: func(cfg *config.Config) []Change {
				return []Change{{Path: filepath.Join(cfg.SourcePath(), "app.ts"), Type: ChangeSource}}
			},
			wantKind: BuildFull,
			compiles: 1,
		},
		{
			name: "mixed",
			changes: func(cfg *config.Config) []Change {
				return []Change{
					{Path: filepath.Join(cfg.StaticPath(), "css", "app.css"), Type: ChangeStatic},
					{Path: filepath.Join(cfg.SourcePath(), "app.ts"), Type: ChangeSource},
				}
			},
			wantKind: BuildFull,
			compiles: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeCompiler{}
			s, cfg := newTestServer(t, fc)

			result := s.handleChanges(context.Background(), tt.changes(cfg))
			if !result.Success || result.Kind != tt.wantKind {
				t.Fatalf("result = %+v, want successful %s", result, tt.wantKind)
			}
			if fc.calls != tt.compiles {
				t.Errorf("compiler calls = %d, want %d", fc.calls, tt.compiles)
			}
			if _, err := os.Stat(filepath.Join(cfg.OutputPath(), "index.html")); err != nil {
				t.Errorf("static assets not copied: %v", err)
			}
		})
	}
}

func TestServer_RebuildFailure(t *testing.T) {
	fc := &fakeCompiler{err: errors.New("E161").WithExitStatus(2)}
	s, cfg := newTestServer(t, fc)

	var completed []BuildResult
	s.options.OnBuildComplete = func(r BuildResult) { completed = append(completed, r) }

	result := s.rebuild(context.Background(), BuildFull)
	if result.Success || errors.ExitCode(result.Error) != 2 {
		t.Fatalf("result = %+v, want failure with status 2", result)
	}
	if len(completed) != 1 {
		t.Errorf("OnBuildComplete called %d times", len(completed))
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputPath(), "index.html")); !os.IsNotExist(err) {
		t.Errorf("static assets copied after a failed compile: %v", err)
	}
	if out := s.out.(*bytes.Buffer).String(); !strings.Contains(out, "Build failed") {
		t.Errorf("output = %q", out)
	}
}

func TestServer_HandlerServesOutput(t *testing.T) {
	s, _ := newTestServer(t, &fakeCompiler{})
	if res := s.rebuild(context.Background(), BuildFull); !res.Success {
		t.Fatal(res.Error)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), ReloadPath) {
		t.Errorf("GET /: status = %d, body = %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, MetricsPath, nil))
	if !strings.Contains(rec.Body.String(), `tsbuild_builds_total{result="success"} 1`) {
		t.Errorf("metrics = %q", rec.Body.String())
	}
}

// dialReload connects a browser stand-in to the reload endpoint of h.
func dialReload(t *testing.T, h http.Handler, rs *ReloadServer) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+ReloadPath, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(time.Second)
	for rs.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if rs.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", rs.ClientCount())
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) ReloadMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var msg ReloadMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	return msg
}

func reloadMux(rs *ReloadServer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ReloadPath, rs.HandleWebSocket)
	return mux
}

func TestReloadServer_Broadcast(t *testing.T) {
	rs := NewReloadServer()
	conn := dialReload(t, reloadMux(rs), rs)

	rs.NotifyCSS("b1", []string{"css/app.css"})
	rs.NotifyReload("b2", []string{"src/app.ts", "src/lib/vue/vue.js"})

	want := []ReloadMessage{
		{Type: ReloadTypeCSS, BuildID: "b1", Files: []string{"css/app.css"}},
		{Type: ReloadTypeFull, BuildID: "b2", Files: []string{"src/app.ts", "src/lib/vue/vue.js"}},
	}
	for _, w := range want {
		if msg := readMessage(t, conn); !reflect.DeepEqual(msg, w) {
			t.Errorf("message = %+v, want %+v", msg, w)
		}
	}

	rs.Close()
	if rs.ClientCount() != 0 {
		t.Errorf("ClientCount() after Close = %d", rs.ClientCount())
	}
}

func TestReloadServer_ReplaysFailure(t *testing.T) {
	rs := NewReloadServer()
	rs.NotifyError("b7", "E161: Compilation failed")

	conn := dialReload(t, reloadMux(rs), rs)
	want := ReloadMessage{Type: ReloadTypeError, BuildID: "b7", Error: "E161: Compilation failed"}
	if msg := readMessage(t, conn); !reflect.DeepEqual(msg, want) {
		t.Errorf("message = %+v, want %+v", msg, want)
	}

	rs.ClearError()
	if msg := readMessage(t, conn); msg.Type != ReloadTypeClear {
		t.Errorf("message = %+v, want clear", msg)
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.failure != nil {
		t.Error("failure kept after a clear")
	}
}

func TestServer_StylesheetOnlyChange(t *testing.T) {
	fc := &fakeCompiler{}
	s, cfg := newTestServer(t, fc)
	conn := dialReload(t, s.Handler(), s.reloadServer)

	css := filepath.Join(cfg.StaticPath(), "css", "app.css")
	result := s.handleChanges(context.Background(), []Change{{Path: css, Type: ChangeStatic}})
	if !result.Success || result.Kind != BuildAssets || fc.calls != 0 {
		t.Fatalf("result = %+v, compiler calls = %d", result, fc.calls)
	}

	if msg := readMessage(t, conn); msg.Type != ReloadTypeClear {
		t.Fatalf("message = %+v, want clear", msg)
	}
	want := ReloadMessage{Type: ReloadTypeCSS, BuildID: result.BuildID, Files: []string{"css/app.css"}}
	if msg := readMessage(t, conn); !reflect.DeepEqual(msg, want) {
		t.Errorf("message = %+v, want %+v", msg, want)
	}
}

func TestServer_Plan(t *testing.T) {
	s, cfg := newTestServer(t, &fakeCompiler{})
	static := func(name string) string { return filepath.Join(cfg.StaticPath(), filepath.FromSlash(name)) }
	src := func(name string) string { return filepath.Join(cfg.SourcePath(), filepath.FromSlash(name)) }

	tests := []struct {
		name        string
		changes     []Change
		kind        BuildKind
		stylesheets []string
		relevant    bool
	}{
		{
			name:        "stylesheets",
			changes:     []Change{{Path: static("css/app.css"), Type: ChangeStatic}, {Path: static("theme.CSS"), Type: ChangeStatic}},
			kind:        BuildAssets,
			stylesheets: []string{"css/app.css", "theme.CSS"},
			relevant:    true,
		},
		{
			name:     "removed stylesheet",
			changes:  []Change{{Path: static("css/old.css"), Type: ChangeStatic, Removed: true}},
			kind:     BuildAssets,
			relevant: true,
		},
		{
			name:     "stylesheet and page",
			changes:  []Change{{Path: static("css/app.css"), Type: ChangeStatic}, {Path: static("index.html"), Type: ChangeStatic}},
			kind:     BuildAssets,
			relevant: true,
		},
		{
			name:     "module",
			changes:  []Change{{Path: static("css/app.css"), Type: ChangeStatic}, {Path: src("app.ts"), Type: ChangeSource}},
			kind:     BuildFull,
			relevant: true,
		},
		{
			name:    "unrelated",
			changes: []Change{{Path: src("NOTES.md"), Type: ChangeOther}},
			kind:    BuildAssets,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, relevant := s.plan(tt.changes)
			if relevant != tt.relevant || p.kind != tt.kind {
				t.Errorf("plan = %+v, %v; want %s, %v", p, relevant, tt.kind, tt.relevant)
			}
			if !reflect.DeepEqual(p.stylesheets, tt.stylesheets) {
				t.Errorf("stylesheets = %q, want %q", p.stylesheets, tt.stylesheets)
			}
		})
	}
}

func TestServer_IgnoresUnrelatedChanges(t *testing.T) {
	fc := &fakeCompiler{}
	s, cfg := newTestServer(t, fc)

	result := s.handleChanges(context.Background(), []Change{{Path: filepath.Join(cfg.SourcePath(), "NOTES.md"), Type: ChangeOther}})
	if !result.Success || result.Kind != "" || fc.calls != 0 {
		t.Errorf("result = %+v, compiler calls = %d", result, fc.calls)
	}
}

func TestChangeQueue(t *testing.T) {
	q := newChangeQueue()
	for i := 0; i < 1000; i++ {
		q.push([]Change{{Path: fmt.Sprintf("src/m%d.ts", i%10)}})
	}
	q.push([]Change{{Path: "src/m3.ts", Removed: true}})
	q.push(nil)

	if got := q.size(); got != 10 {
		t.Fatalf("size() = %d, want 10", got)
	}
	select {
	case <-q.ready:
	default:
		t.Fatal("queue not signalled")
	}

	changes := q.take()
	if len(changes) != 10 || changes[0].Path != "src/m0.ts" || changes[9].Path != "src/m9.ts" {
		t.Fatalf("take() = %+v", changes)
	}
	if !changes[3].Removed {
		t.Errorf("latest change not kept: %+v", changes[3])
	}
	if q.size() != 0 || len(q.take()) != 0 {
		t.Error("take() left changes behind")
	}
}

func TestServer_ChangesDuringRebuildAreKept(t *testing.T) {
	s, cfg := newTestServer(t, &fakeCompiler{})

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	completed := make(chan BuildResult, 4)
	first := true
	s.options.OnBuildStart = func() {
		if first {
			first = false
			started <- struct{}{}
			<-release
		}
	}
	s.options.OnBuildComplete = func(r BuildResult) { completed <- r }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.processChanges(ctx)

	s.queue.push([]Change{{Path: filepath.Join(cfg.SourcePath(), "app.ts"), Type: ChangeSource}})
	<-started

	// More changes than a rebuild could ever buffer in a fixed channel.
	const burst = 200
	for i := 0; i < burst; i++ {
		s.queue.push([]Change{{Path: filepath.Join(cfg.SourcePath(), fmt.Sprintf("m%d.ts", i)), Type: ChangeSource}})
	}
	close(release)

	for _, want := range []int{1, burst} {
		select {
		case r := <-completed:
			if len(r.Changed) != want || r.Kind != BuildFull {
				t.Errorf("rebuild for %d changes (%s), want %d", len(r.Changed), r.Kind, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("no rebuild for %d changes", want)
		}
	}
}

func TestPreview_MissingDir(t *testing.T) {
	err := Preview(context.Background(), filepath.Join(t.TempDir(), "dist"), "127.0.0.1:0", nil)

	var te *errors.TSBuildError
	if !errors.As(err, &te) || te.Code != "E142" {
		t.Fatalf("Preview() = %v, want E142", err)
	}
}

func TestPreview_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Preview(ctx, t.TempDir(), "127.0.0.1:0", nil)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Preview() = %v", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("Preview did not stop")
	}
}

func TestDescribe(t *testing.T) {
	err := errors.New("E161").WithDetail("error TS5058: The specified path does not exist")
	got := describe(err)
	if !strings.Contains(got, "E161") || !strings.HasSuffix(got, "\nerror TS5058: The specified path does not exist") {
		t.Errorf("describe() = %q", got)
	}

	output := "app.ts(3,7): error TS2322: Type 'string' is not assignable to type 'number'.\nlib/math.ts(1,5): error TS1005: ';' expected.\n"
	err = errors.New("E161").WithDetail(output).WithDiagnostics(errors.ParseDiagnostics(output))
	got = describe(err)
	for _, want := range []string{"app.ts:3:7  TS2322", "lib/math.ts:1:5  TS1005: ';' expected.", "(+1 more)"} {
		if !strings.Contains(got, want) {
			t.Errorf("describe() missing %q: %q", want, got)
		}
	}
	if got := describe(io.EOF); got != "EOF" {
		t.Errorf("describe(io.EOF) = %q", got)
	}
}
