package templates

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/vango-dev/tsbuild/internal/build"
	"github.com/vango-dev/tsbuild/internal/config"
	"github.com/vango-dev/tsbuild/internal/errors"
)

func TestGet(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"classic", false},
		{"workers", false},
		{"nonexistent", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Get(tt.name)
			if tt.wantErr {
				var te *errors.TSBuildError
				if !errors.As(err, &te) || te.Code != "E145" {
					t.Errorf("Expected E145, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tmpl.Name != tt.name {
				t.Errorf("Name = %q, want %q", tmpl.Name, tt.name)
			}
		})
	}
}

func TestList_MatchesPresets(t *testing.T) {
	if got, want := List(), config.PresetNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want one template per preset %v", got, want)
	}
}

func TestCreate(t *testing.T) {
	tmpl, err := Get("classic")
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	written, err := tmpl.Create(dir, Config{ProjectName: "atlas", Output: "public"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !reflect.DeepEqual(written, tmpl.Paths()) {
		t.Errorf("written = %v, want %v", written, tmpl.Paths())
	}

	index, err := os.ReadFile(filepath.Join(dir, "src", "static", "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(index), "<title>atlas</title>") {
		t.Errorf("index.html = %s", index)
	}

	ignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(ignore), "public/") {
		t.Errorf(".gitignore = %s", ignore)
	}
}

func TestCreate_KeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "src", "app.ts")
	if err := os.MkdirAll(filepath.Dir(existing), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(existing, []byte("mine"), 0644); err != nil {
		t.Fatal(err)
	}

	tmpl, _ := Get("classic")
	written, err := tmpl.Create(dir, Config{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, p := range written {
		if p == "src/app.ts" {
			t.Error("existing file reported as written")
		}
	}
	if data, _ := os.ReadFile(existing); string(data) != "mine" {
		t.Errorf("existing file overwritten: %q", data)
	}
}

func TestCreate_RuntimeStubs(t *testing.T) {
	dir := t.TempDir()
	kept := filepath.Join(dir, "vendor", "three.js")
	if err := os.MkdirAll(filepath.Dir(kept), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(kept, []byte("var THREE = {}"), 0644); err != nil {
		t.Fatal(err)
	}

	tmpl, _ := Get("classic")
	written, err := tmpl.Create(dir, Config{Runtime: []string{config.DefaultRuntime, "vendor/three.js"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	want := append(tmpl.Paths(), config.DefaultRuntime)
	if !reflect.DeepEqual(written, want) {
		t.Errorf("written = %v, want %v", written, want)
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(config.DefaultRuntime))); err != nil {
		t.Errorf("runtime stub missing: %v", err)
	}
	if data, _ := os.ReadFile(kept); string(data) != "var THREE = {}" {
		t.Errorf("existing runtime overwritten: %q", data)
	}
}

func TestCreate_DefaultProjectName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nebula")
	tmpl, _ := Get("classic")
	if _, err := tmpl.Create(dir, Config{}); err != nil {
		t.Fatal(err)
	}

	index, _ := os.ReadFile(filepath.Join(dir, "src", "static", "index.html"))
	if !strings.Contains(string(index), "<title>nebula</title>") {
		t.Errorf("index.html = %s", index)
	}
}

func TestTemplates_Build(t *testing.T) {
	tests := []struct {
		name    string
		outputs []string
	}{
		{"classic", []string{"app.js", "lib/vue/vue.js", "index.html", "css/app.css"}},
		{"workers", []string{"app.js", "workers/train.js", "lib/vue/vue.js", "index.html"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg, err := config.Default(dir)
			if err != nil {
				t.Fatal(err)
			}
			if err := cfg.ApplyPreset(tt.name); err != nil {
				t.Fatal(err)
			}

			tmpl, _ := Get(tt.name)
			if _, err := tmpl.Create(dir, Config{ProjectName: "atlas", Runtime: cfg.Runtime}); err != nil {
				t.Fatal(err)
			}
			cfg.Compiler.Backend = config.BackendESBuild

			_, err = build.New(cfg, build.Options{Stdout: io.Discard, Stderr: io.Discard}).Build(context.Background())
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			for _, name := range tt.outputs {
				if _, err := os.Stat(filepath.Join(cfg.OutputPath(), filepath.FromSlash(name))); err != nil {
					t.Errorf("missing %s: %v", name, err)
				}
			}
		})
	}
}
