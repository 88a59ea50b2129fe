// Package sources expands glob patterns into the list of files handed to the
// compiler.
//
// Patterns are relative to a root directory and use filepath.Match syntax.
// Results keep pattern order, then the order the filesystem glob returns,
// with duplicates across patterns dropped.
//
//	set, err := sources.Collect("/project/src", []string{"*.ts", "workers/*.ts"})
//	if err != nil {
//	    return err
//	}
//	for _, p := range set.Empty {
//	    log.Printf("pattern %q matched no files", p)
//	}
package sources

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vango-dev/tsbuild/internal/errors"
)

// Globber expands a single absolute glob pattern.
type Globber interface {
	Glob(pattern string) ([]string, error)
}

// FS globs the local filesystem.
type FS struct{}

// Glob implements Globber with filepath.Glob.
func (FS) Glob(pattern string) ([]string, error) {
	return filepath.Glob(pattern)
}

// Set is the result of collecting a list of patterns.
type Set struct {
	// Root is the directory the patterns were resolved against.
	Root string

	// Files are slash-separated paths relative to Root.
	Files []string

	// Empty lists the patterns that matched no files.
	Empty []string
}

// Paths returns the files as absolute paths.
func (s *Set) Paths() []string {
	paths := make([]string, len(s.Files))
	for i, f := range s.Files {
		paths[i] = filepath.Join(s.Root, filepath.FromSlash(f))
	}
	return paths
}

// Len returns the number of collected files.
func (s *Set) Len() int {
	return len(s.Files)
}

// Collector expands patterns with a Globber.
type Collector struct {
	glob Globber
	stat func(string) (os.FileInfo, error)
}

// NewCollector returns a Collector using g. A nil g globs the filesystem.
func NewCollector(g Globber) *Collector {
	if g == nil {
		g = FS{}
	}
	return &Collector{glob: g, stat: os.Stat}
}

// Collect expands patterns against root on the local filesystem.
func Collect(root string, patterns []string) (*Set, error) {
	return NewCollector(nil).Collect(root, patterns)
}

// Collect expands patterns against root.
func (c *Collector) Collect(root string, patterns []string) (*Set, error) {
	set := &Set{Root: root}
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		if filepath.IsAbs(pattern) || escapes(pattern) {
			return nil, errors.New("E126").
				WithDetail("Source pattern \"" + pattern + "\" must stay inside " + root)
		}

		matches, err := c.glob.Glob(filepath.Join(root, filepath.FromSlash(pattern)))
		if err != nil {
			return nil, errors.New("E126").
				WithDetail("Invalid source pattern \"" + pattern + "\"").
				Wrap(err)
		}

		added := 0
		for _, match := range matches {
			if info, err := c.stat(match); err != nil || info.IsDir() {
				continue
			}
			rel, err := filepath.Rel(root, match)
			if err != nil || escapes(rel) {
				continue
			}
			rel = filepath.ToSlash(rel)
			added++
			if seen[rel] {
				continue
			}
			seen[rel] = true
			set.Files = append(set.Files, rel)
		}
		if added == 0 {
			set.Empty = append(set.Empty, pattern)
		}
	}

	return set, nil
}

// escapes reports whether a relative path leaves its root.
func escapes(rel string) bool {
	rel = filepath.ToSlash(filepath.Clean(filepath.FromSlash(rel)))
	return rel == ".." || strings.HasPrefix(rel, "../")
}
