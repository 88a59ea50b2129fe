package dev

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/tsbuild/internal/config"
)

func startWatcher(t *testing.T, cfg WatcherConfig) <-chan []Change {
	t.Helper()
	if cfg.Interval == 0 {
		cfg.Interval = 50 * time.Millisecond
	}
	watcher := NewWatcher(cfg)

	batches := make(chan []Change, 10)
	watcher.OnChange(func(batch []Change) {
		batches <- batch
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		watcher.Stop()
	})
	go watcher.Start(ctx)

	// Wait for initial scan
	time.Sleep(100 * time.Millisecond)
	return batches
}

func waitChange(t *testing.T, batches <-chan []Change) Change {
	t.Helper()
	batch := waitBatch(t, batches)
	if len(batch) != 1 {
		t.Fatalf("batch = %+v, want one change", batch)
	}
	return batch[0]
}

func waitBatch(t *testing.T, batches <-chan []Change) []Change {
	t.Helper()
	select {
	case batch := <-batches:
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for change")
		return nil
	}
}

func TestWatcher_Modify(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "app.ts")
	if err := os.WriteFile(testFile, []byte("export {}"), 0644); err != nil {
		t.Fatal(err)
	}

	changes := startWatcher(t, WatcherConfig{Paths: []string{tmpDir}})

	later := time.Now().Add(time.Second)
	if err := os.WriteFile(testFile, []byte("export const x = 1"), 0644); err != nil {
		t.Fatal(err)
	}
	os.Chtimes(testFile, later, later)

	change := waitChange(t, changes)
	if change.Type != ChangeSource {
		t.Errorf("Expected source change, got %v", change.Type)
	}
	if change.Path != testFile {
		t.Errorf("Expected path %q, got %q", testFile, change.Path)
	}
}

func TestWatcher_NewStaticFile(t *testing.T) {
	tmpDir := t.TempDir()
	staticDir := filepath.Join(tmpDir, "static")
	if err := os.MkdirAll(staticDir, 0755); err != nil {
		t.Fatal(err)
	}

	changes := startWatcher(t, WatcherConfig{Paths: []string{tmpDir}, StaticDir: staticDir})

	newFile := filepath.Join(staticDir, "index.html")
	if err := os.WriteFile(newFile, []byte("<html></html>"), 0644); err != nil {
		t.Fatal(err)
	}

	change := waitChange(t, changes)
	if change.Type != ChangeStatic || change.Path != newFile {
		t.Errorf("change = %+v, want static %s", change, newFile)
	}
}

func TestWatcher_Delete(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "old.ts")
	if err := os.WriteFile(testFile, []byte("export {}"), 0644); err != nil {
		t.Fatal(err)
	}

	changes := startWatcher(t, WatcherConfig{Paths: []string{tmpDir}})

	if err := os.Remove(testFile); err != nil {
		t.Fatal(err)
	}

	change := waitChange(t, changes)
	if change.Path != testFile || !change.Removed {
		t.Errorf("change = %+v, want removal of %s", change, testFile)
	}
}

func TestWatcher_BatchesEveryPath(t *testing.T) {
	tmpDir := t.TempDir()
	staticDir := filepath.Join(tmpDir, "static")
	if err := os.MkdirAll(staticDir, 0755); err != nil {
		t.Fatal(err)
	}

	changes := startWatcher(t, WatcherConfig{Paths: []string{tmpDir}, StaticDir: staticDir, Interval: 100 * time.Millisecond})

	files := []string{
		filepath.Join(tmpDir, "a.ts"),
		filepath.Join(tmpDir, "b.ts"),
		filepath.Join(staticDir, "app.css"),
		filepath.Join(staticDir, "theme.css"),
	}
	for _, f := range files {
		if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	var got []Change
	for len(got) < len(files) {
		got = append(got, waitBatch(t, changes)...)
	}
	var paths []string
	for _, c := range got {
		paths = append(paths, c.Path)
	}
	sort.Strings(paths)
	if !reflect.DeepEqual(paths, files) {
		t.Errorf("paths = %v, want %v", paths, files)
	}
}

func TestWatcher_WatchesSingleFile(t *testing.T) {
	tmpDir := t.TempDir()
	script := filepath.Join(tmpDir, "vue.js")
	if err := os.WriteFile(script, []byte("var Vue"), 0644); err != nil {
		t.Fatal(err)
	}

	changes := startWatcher(t, WatcherConfig{Paths: []string{script}})

	later := time.Now().Add(time.Second)
	if err := os.WriteFile(script, []byte("var Vue = {}"), 0644); err != nil {
		t.Fatal(err)
	}
	os.Chtimes(script, later, later)

	if change := waitChange(t, changes); change.Path != script {
		t.Errorf("Expected path %q, got %q", script, change.Path)
	}
}

func TestWatcher_Ignore(t *testing.T) {
	tmpDir := t.TempDir()
	dist := filepath.Join(tmpDir, "dist")

	watcher := NewWatcher(WatcherConfig{
		Paths:  []string{tmpDir},
		Ignore: []string{"*.d.ts", "node_modules", dist},
	})

	if !watcher.ignored(filepath.Join(tmpDir, "types.d.ts")) {
		t.Error("Should ignore *.d.ts files")
	}
	if !watcher.ignored(filepath.Join(tmpDir, "node_modules", "lib.js")) {
		t.Error("Should ignore node_modules directory")
	}
	if !watcher.ignored(filepath.Join(dist, "app.js")) {
		t.Error("Should ignore the output directory")
	}
	if watcher.ignored(filepath.Join(tmpDir, "distance.ts")) {
		t.Error("Should not ignore a sibling with the output directory as prefix")
	}
	if watcher.ignored(filepath.Join(tmpDir, "app.ts")) {
		t.Error("Should not ignore app.ts")
	}
}

func TestWatcher_IgnoreSegments(t *testing.T) {
	watcher := NewWatcher(WatcherConfig{
		Paths:  []string{"."},
		Ignore: []string{"tmp", "src/generated"},
	})

	if !watcher.ignored(filepath.Join("foo", "tmp", "bar.ts")) {
		t.Error("Should ignore tmp directory segment")
	}
	if watcher.ignored(filepath.Join("foo", "attempt.ts")) {
		t.Error("Should not ignore substring match")
	}
	if !watcher.ignored(filepath.Join("app", "src", "generated", "api.ts")) {
		t.Error("Should ignore multi-segment pattern")
	}
}

func TestClassifyChange(t *testing.T) {
	tests := []struct {
		path string
		want ChangeType
	}{
		{"app.ts", ChangeSource},
		{"view.tsx", ChangeSource},
		{"vue.js", ChangeSource},
		{"brain.png", ChangeOther},
		{"README.md", ChangeOther},
		{"tsconfig.json", ChangeOther},
	}

	for _, tt := range tests {
		got := classifyChange(tt.path)
		if got != tt.want {
			t.Errorf("classifyChange(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWatcher_ClassifyStatic(t *testing.T) {
	static := filepath.Join(t.TempDir(), "src", "static")
	w := NewWatcher(WatcherConfig{StaticDir: static})

	if got := w.classify(filepath.Join(static, "img", "brain.png")); got != ChangeStatic {
		t.Errorf("classify(static png) = %v, want static", got)
	}
	if got := w.classify(filepath.Join(filepath.Dir(static), "brain.ts")); got != ChangeSource {
		t.Errorf("classify(source module) = %v, want source", got)
	}
}

func TestClassifyFor(t *testing.T) {
	root := t.TempDir()
	cfg, err := config.Default(root)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Runtime = []string{"vendor/three.js"}
	cfg.Compiler.EnvFile = ".env"
	classify := ClassifyFor(cfg)

	tests := []struct {
		path string
		want ChangeType
	}{
		{"src/app.ts", ChangeSource},
		{"src/math/vector.ts", ChangeSource},
		{"src/brain.png", ChangeSource},
		{"src/img/brain.png", ChangeOther},
		{"src/README.md", ChangeOther},
		{"src/static/index.html", ChangeStatic},
		{"src/static/app.ts", ChangeStatic},
		{"vendor/three.js", ChangeSource},
		{"vendor/other.js", ChangeOther},
		{".env", ChangeSource},
	}
	for _, tt := range tests {
		if got := classify(filepath.Join(root, filepath.FromSlash(tt.path))); got != tt.want {
			t.Errorf("classify(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestChangeType_String(t *testing.T) {
	if ChangeSource.String() != "source" || ChangeStatic.String() != "static" || ChangeOther.String() != "other" {
		t.Error("unexpected ChangeType names")
	}
}

func TestWatcher_IsRunning(t *testing.T) {
	watcher := NewWatcher(WatcherConfig{
		Paths: []string{"."},
	})

	if watcher.IsRunning() {
		t.Error("Watcher should not be running initially")
	}
}

func TestCollectWatchPaths(t *testing.T) {
	root := t.TempDir()
	cfg, err := config.Default(root)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Runtime = []string{"lib/vue.js", "lib/vue.js", config.DefaultRuntime}

	want := []string{filepath.Join(root, "src"), filepath.Join(root, "lib", "vue.js")}
	if got := CollectWatchPaths(cfg); !reflect.DeepEqual(got, want) {
		t.Errorf("CollectWatchPaths() = %v, want %v", got, want)
	}

	cfg.Static = "../public"
	cfg.Compiler.EnvFile = ".env"
	want = []string{
		filepath.Join(root, "src"),
		filepath.Join(root, "public"),
		filepath.Join(root, "lib", "vue.js"),
		filepath.Join(root, ".env"),
	}
	if got := CollectWatchPaths(cfg); !reflect.DeepEqual(got, want) {
		t.Errorf("CollectWatchPaths() = %v, want %v", got, want)
	}
}

func TestCollectIgnore(t *testing.T) {
	cfg := config.New()
	cfg.Dev.Ignore = []string{"*.generated.ts"}

	ignore := CollectIgnore(cfg)
	joined := strings.Join(ignore, ",")
	if !strings.Contains(joined, "node_modules") || !strings.Contains(joined, "*.generated.ts") {
		t.Errorf("CollectIgnore() = %v", ignore)
	}
	if ignore[len(DefaultIgnore)] != cfg.OutputPath() {
		t.Errorf("output path not ignored: %v", ignore)
	}
}

func TestDevClientScript(t *testing.T) {
	for _, want := range []string{"WebSocket", ReloadPath, "location.reload", "tsbuild-error-overlay"} {
		if !strings.Contains(DevClientScript, want) {
			t.Errorf("DevClientScript should contain %q", want)
		}
	}
}
