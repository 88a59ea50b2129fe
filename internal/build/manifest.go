package build

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vango-dev/tsbuild/internal/errors"
)

// ManifestFileName is written into the output directory.
const ManifestFileName = "tsbuild-manifest.json"

// Manifest records what a build produced.
type Manifest struct {
	BuildID   string            `json:"buildId"`
	Preset    string            `json:"preset"`
	Compiler  string            `json:"compiler"`
	Command   string            `json:"command"`
	Sources   []string          `json:"sources"`
	Files     map[string]string `json:"files"`
	Duration  string            `json:"duration"`
	CreatedAt time.Time         `json:"createdAt"`
}

// ReadManifest reads the manifest of the build in outputDir.
func ReadManifest(outputDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(outputDir, ManifestFileName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// hashOutputs returns the SHA256 of every file below dir, keyed by
// slash-separated relative path.
func hashOutputs(dir string) (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == ManifestFileName {
			return nil
		}
		hash, err := hashFile(path)
		if err != nil {
			return err
		}
		files[rel] = hash
		return nil
	})
	return files, err
}

// writeManifest writes m into outputDir and returns its path.
func writeManifest(outputDir string, m *Manifest) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", errors.New("E143").Wrap(err)
	}

	path := filepath.Join(outputDir, ManifestFileName)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", errors.New("E143").Wrap(err)
	}
	return path, nil
}

// hashFile returns the SHA256 hash of a file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
