package dev

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// ChangeType represents the type of file change.
type ChangeType int

const (
	// ChangeSource is a compiler input: a module, runtime script,
	// compiler asset or the compiler environment file.
	ChangeSource ChangeType = iota

	// ChangeStatic is a file inside the static assets directory.
	ChangeStatic

	// ChangeOther is any other file below a watched directory.
	ChangeOther
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeSource:
		return "source"
	case ChangeStatic:
		return "static"
	default:
		return "other"
	}
}

// Change represents a detected file change.
type Change struct {
	Path    string
	Type    ChangeType
	Removed bool
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Paths are the directories and files to watch.
	Paths []string

	// StaticDir classifies changes below it as ChangeStatic when Classify
	// is nil.
	StaticDir string

	// Classify decides the type of a changed path. It defaults to the
	// static directory check followed by the file extension.
	Classify func(path string) ChangeType

	// Ignore patterns to skip: absolute directories, globs, names or path
	// segments.
	Ignore []string

	// Interval is the poll interval. A batch is reported once a poll finds
	// nothing new, so a burst of saves arrives as one batch.
	Interval time.Duration
}

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	".DS_Store",
	"*.tmp",
	"*.swp",
	"*~",
}

// scriptExts are modules the compiler picks up through imports even when
// no source pattern names them.
var scriptExts = map[string]bool{
	".ts":  true,
	".tsx": true,
	".mts": true,
	".cts": true,
	".js":  true,
	".jsx": true,
	".mjs": true,
	".cjs": true,
}

// Watcher monitors files for changes by polling modification times.
type Watcher struct {
	config   WatcherConfig
	mu       sync.Mutex
	onChange func([]Change)
	running  bool
	stopCh   chan struct{}
	modTimes map[string]time.Time
	pending  map[string]Change
}

// NewWatcher creates a new file watcher.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.Interval == 0 {
		config.Interval = 100 * time.Millisecond
	}
	if len(config.Ignore) == 0 {
		config.Ignore = DefaultIgnore
	}
	w := &Watcher{
		config:  config,
		pending: make(map[string]Change),
	}
	if w.config.Classify == nil {
		w.config.Classify = w.classify
	}
	return w
}

// OnChange sets the callback receiving each settled batch of changes,
// sorted by path.
func (w *Watcher) OnChange(fn func([]Change)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start begins watching for file changes. It blocks until ctx is done or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()

	modTimes := w.scan()
	w.mu.Lock()
	w.modTimes = modTimes
	w.mu.Unlock()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			w.poll()
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		close(w.stopCh)
		w.running = false
	}
}

// IsRunning returns whether the watcher is running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// scan returns the modification time of every watched file.
func (w *Watcher) scan() map[string]time.Time {
	files := make(map[string]time.Time)
	for _, root := range w.config.Paths {
		filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if p != root && w.ignored(p) {
					return filepath.SkipDir
				}
				return nil
			}
			if w.ignored(p) {
				return nil
			}
			if info, err := d.Info(); err == nil {
				files[p] = info.ModTime()
			}
			return nil
		})
	}
	return files
}

// poll diffs a fresh scan against the previous one. New differences are
// held back; the accumulated batch is delivered on the first quiet poll.
func (w *Watcher) poll() {
	current := w.scan()

	w.mu.Lock()
	found := false
	for p, modTime := range current {
		if last, ok := w.modTimes[p]; !ok || !modTime.Equal(last) {
			w.pending[p] = Change{Path: p, Type: w.config.Classify(p)}
			found = true
		}
	}
	for p := range w.modTimes {
		if _, ok := current[p]; !ok {
			w.pending[p] = Change{Path: p, Type: w.config.Classify(p), Removed: true}
			found = true
		}
	}
	w.modTimes = current

	if found || len(w.pending) == 0 || w.onChange == nil {
		w.mu.Unlock()
		return
	}
	batch := make([]Change, 0, len(w.pending))
	for _, c := range w.pending {
		batch = append(batch, c)
	}
	clear(w.pending)
	callback := w.onChange
	w.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	callback(batch)
}

// classify is the default classifier: the static directory first, then
// the file extension.
func (w *Watcher) classify(p string) ChangeType {
	if w.config.StaticDir != "" && isWithinDir(p, w.config.StaticDir) {
		return ChangeStatic
	}
	return classifyChange(p)
}

// classifyChange determines the type of change based on file extension.
func classifyChange(p string) ChangeType {
	if scriptExts[strings.ToLower(filepath.Ext(p))] {
		return ChangeSource
	}
	return ChangeOther
}

// ignored reports whether p matches an ignore pattern. Globs containing a
// slash match the whole path, other globs the base name. Plain patterns
// match a run of path segments.
func (w *Watcher) ignored(p string) bool {
	slashed := filepath.ToSlash(p)
	segments := strings.Split(slashed, "/")

	for _, pattern := range w.config.Ignore {
		pattern = filepath.ToSlash(strings.TrimSpace(pattern))
		switch {
		case pattern == "":
		case filepath.IsAbs(filepath.FromSlash(pattern)):
			if isWithinDir(p, filepath.FromSlash(pattern)) {
				return true
			}
		case strings.ContainsAny(pattern, "*?["):
			target := path.Base(slashed)
			if strings.Contains(pattern, "/") {
				target = slashed
			}
			if ok, _ := path.Match(pattern, target); ok {
				return true
			}
		default:
			if containsRun(segments, strings.Split(strings.Trim(pattern, "/"), "/")) {
				return true
			}
		}
	}
	return false
}

// containsRun reports whether want appears as consecutive elements of parts.
func containsRun(parts, want []string) bool {
	for i := 0; i+len(want) <= len(parts); i++ {
		if slices.Equal(parts[i:i+len(want)], want) {
			return true
		}
	}
	return false
}
