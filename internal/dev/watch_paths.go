package dev

import (
	"path/filepath"
	"strings"

	"github.com/vango-dev/tsbuild/internal/config"
)

// CollectWatchPaths returns a normalized list of watch paths for the
// project: the source directory, the static directory when it lies
// elsewhere, and every runtime script outside the source directory.
func CollectWatchPaths(cfg *config.Config) []string {
	paths := []string{cfg.SourcePath()}
	if !isWithinDir(cfg.StaticPath(), cfg.SourcePath()) {
		paths = append(paths, cfg.StaticPath())
	}
	for _, path := range cfg.RuntimePaths() {
		if !isWithinDir(path, cfg.SourcePath()) {
			paths = append(paths, path)
		}
	}
	if cfg.Compiler.EnvFile != "" {
		paths = append(paths, cfg.EnvFilePath())
	}

	unique := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		clean := filepath.Clean(path)
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		unique = append(unique, clean)
	}

	return unique
}

// CollectIgnore returns the ignore patterns for the project: the defaults,
// the output directory and the configured dev.ignore entries.
func CollectIgnore(cfg *config.Config) []string {
	ignore := append([]string(nil), DefaultIgnore...)
	ignore = append(ignore, cfg.OutputPath())
	return append(ignore, cfg.Dev.Ignore...)
}

// ClassifyFor returns the change classifier for the project. Files below
// the static directory are static. Runtime scripts, the environment file,
// files matching a source or compiler asset pattern and any script module
// below the source directory are compiler inputs.
func ClassifyFor(cfg *config.Config) func(path string) ChangeType {
	static := cfg.StaticPath()
	source := cfg.SourcePath()
	inputs := make(map[string]bool)
	for _, p := range cfg.RuntimePaths() {
		inputs[filepath.Clean(p)] = true
	}
	if cfg.Compiler.EnvFile != "" {
		inputs[filepath.Clean(cfg.EnvFilePath())] = true
	}
	patterns := append(append([]string(nil), cfg.Sources...), cfg.CompilerAssets...)

	return func(path string) ChangeType {
		path = filepath.Clean(path)
		switch {
		case isWithinDir(path, static):
			return ChangeStatic
		case inputs[path]:
			return ChangeSource
		case !isWithinDir(path, source):
			return ChangeOther
		}
		rel, err := filepath.Rel(source, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return ChangeOther
		}
		for _, pattern := range patterns {
			if ok, _ := filepath.Match(filepath.FromSlash(pattern), rel); ok {
				return ChangeSource
			}
		}
		return classifyChange(path)
	}
}
