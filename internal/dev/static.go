package dev

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// NoCacheControl disables browser caching, so every reload sees the
// latest build.
const NoCacheControl = "no-store, no-cache, must-revalidate"

// StaticOptions configures StaticHandler.
type StaticOptions struct {
	// Reload mounts the live reload endpoint and injects DevClientScript
	// into HTML responses. Nil disables both.
	Reload *ReloadServer

	// Metrics is mounted at MetricsPath when set.
	Metrics http.Handler

	// Logger receives one line per request at debug level.
	Logger *slog.Logger
}

// MetricsPath serves the build metrics of a dev session.
const MetricsPath = "/_tsbuild/metrics"

// StaticHandler serves the files below dir with caching disabled.
// Directory requests serve their index.html.
func StaticHandler(dir string, opts StaticOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &staticServer{
		dir:    dir,
		reload: opts.Reload,
		logger: logger.With("component", "static"),
	}

	r := chi.NewRouter()
	if opts.Reload != nil {
		r.Get(ReloadPath, opts.Reload.HandleWebSocket)
	}
	if opts.Metrics != nil {
		r.Handle(MetricsPath, opts.Metrics)
	}
	r.Group(func(r chi.Router) {
		r.Use(s.logRequests)
		r.Get("/*", s.serve)
		r.Head("/*", s.serve)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})
	return r
}

type staticServer struct {
	dir    string
	reload *ReloadServer
	logger *slog.Logger
}

func (s *staticServer) serve(w http.ResponseWriter, r *http.Request) {
	rel, ok := staticRelPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err == nil && info.IsDir() {
		rel = path.Join(rel, "index.html")
		full = filepath.Join(full, "index.html")
		info, err = os.Stat(full)
	}
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(full)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	w.Header().Set("Cache-Control", NoCacheControl)
	w.Header().Set("Expires", "0")

	if s.reload != nil && isHTML(rel) {
		body, err := io.ReadAll(f)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		http.ServeContent(w, r, rel, info.ModTime(), bytes.NewReader(injectScript(body, DevClientScript)))
		return
	}

	http.ServeContent(w, r, rel, info.ModTime(), f)
}

func (s *staticServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}

// statusWriter records the response status.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// staticRelPath returns a sanitized relative path for a static file request.
// It rejects traversal and absolute-path tricks so serving cannot escape
// the output directory. The root maps to ".".
func staticRelPath(urlPath string) (string, bool) {
	rel := strings.TrimPrefix(urlPath, "/")
	if rel == "" {
		return ".", true
	}

	// Reject NUL early (can appear via %00).
	if strings.IndexByte(rel, 0) != -1 {
		return "", false
	}

	// Reject platform-dependent separators.
	if strings.Contains(rel, "\\") {
		return "", false
	}

	// A leading "/" after trimming indicates "//etc/passwd".
	if strings.HasPrefix(rel, "/") {
		return "", false
	}

	// Reject dot-segments before cleaning to avoid "cleaning away" traversal
	// attempts and changing the meaning of the request path.
	for _, seg := range strings.Split(strings.TrimSuffix(rel, "/"), "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}

	clean := path.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", false
	}

	osPath := filepath.FromSlash(clean)
	if filepath.IsAbs(osPath) || filepath.VolumeName(osPath) != "" {
		return "", false
	}

	return clean, true
}

func isHTML(rel string) bool {
	ext := strings.ToLower(path.Ext(rel))
	return ext == ".html" || ext == ".htm"
}

// injectScript inserts script before </body>, or </html>, or at the end.
func injectScript(body []byte, script string) []byte {
	s := string(body)
	lower := strings.ToLower(s)
	if idx := strings.LastIndex(lower, "</body>"); idx != -1 {
		return []byte(s[:idx] + script + s[idx:])
	}
	if idx := strings.LastIndex(lower, "</html>"); idx != -1 {
		return []byte(s[:idx] + script + s[idx:])
	}
	return []byte(s + script)
}
