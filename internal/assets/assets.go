// Package assets copies the static assets directory into the build output.
//
// The copy is recursive and merges into whatever the output directory
// already holds: files at the same relative path are overwritten (the
// static directory wins), everything else is left alone. Running it twice
// gives the same result as running it once.
package assets

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/otiai10/copy"

	"github.com/vango-dev/tsbuild/internal/errors"
)

// Report describes a completed copy.
type Report struct {
	// Source and Dest are the directories copied from and to.
	Source string
	Dest   string

	// Files are the copied files, slash-separated and relative to Source.
	Files []string

	// Dirs is the number of directories created or merged, Source included.
	Dirs int

	// Bytes is the total size of the copied files.
	Bytes int64
}

// CopyStatic recursively copies every file and subdirectory of src into
// dst, creating dst and its parents as needed.
func CopyStatic(src, dst string) (*Report, error) {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E170").
				WithDetail("Static assets directory " + src + " does not exist").
				WithSuggestion("Create it, or point \"static\" at the right directory").
				Wrap(err)
		}
		return nil, errors.New("E170").Wrap(err)
	}
	if !info.IsDir() {
		return nil, errors.New("E170").
			WithDetail(src + " is not a directory")
	}

	report := &Report{Source: src, Dest: dst, Dirs: 1}
	opts := copy.Options{
		OnSymlink: func(string) copy.SymlinkAction {
			return copy.Deep
		},
		OnDirExists: func(string, string) copy.DirExistsAction {
			return copy.Merge
		},
		Skip: func(info os.FileInfo, path, _ string) (bool, error) {
			if info.IsDir() {
				report.Dirs++
				return false, nil
			}
			if rel, err := filepath.Rel(src, path); err == nil {
				report.Files = append(report.Files, filepath.ToSlash(rel))
			}
			report.Bytes += info.Size()
			return false, nil
		},
	}

	if err := os.MkdirAll(dst, 0755); err != nil {
		return nil, errors.New("E171").
			WithDetail("Could not create " + dst).
			Wrap(err)
	}
	if err := copy.Copy(src, dst, opts); err != nil {
		return report, errors.New("E171").
			WithDetail("Copying " + src + " to " + dst + " failed after " + strconv.Itoa(len(report.Files)) + " files: " + err.Error()).
			Wrap(err)
	}

	sort.Strings(report.Files)
	return report, nil
}
