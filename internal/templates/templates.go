package templates

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/vango-dev/tsbuild/internal/errors"
)

// Config contains template configuration.
type Config struct {
	// ProjectName is the name of the project.
	ProjectName string

	// Output is the build output directory, relative to the project root.
	Output string

	// Runtime are the runtime scripts of the preset, relative to the
	// project root. Create writes a stub for each one that is missing.
	Runtime []string
}

// Template represents a project template.
type Template struct {
	// Name is the template name. It matches a preset name.
	Name string

	// Description describes the template.
	Description string

	// Files is a map of slash-separated relative paths to file contents.
	Files map[string]string
}

// Available templates.
var templates = map[string]*Template{
	"classic": classicTemplate(),
	"workers": workersTemplate(),
}

// Get returns a template by name.
func Get(name string) (*Template, error) {
	tmpl, ok := templates[name]
	if !ok {
		return nil, errors.New("E145").
			WithDetail("Template '" + name + "' not found").
			WithSuggestion("Available templates: " + strings.Join(List(), ", "))
	}
	return tmpl, nil
}

// List returns all available template names in sorted order.
func List() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Paths returns the template's file paths in sorted order.
func (t *Template) Paths() []string {
	paths := make([]string, 0, len(t.Files))
	for p := range t.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Create writes the template files below dir and returns the paths it
// wrote. Files that already exist are left untouched.
func (t *Template) Create(dir string, cfg Config) ([]string, error) {
	if cfg.ProjectName == "" {
		cfg.ProjectName = filepath.Base(dir)
	}
	if cfg.Output == "" {
		cfg.Output = "dist"
	}

	var written []string
	for _, relPath := range t.Paths() {
		fullPath := filepath.Join(dir, filepath.FromSlash(relPath))
		if _, err := os.Stat(fullPath); err == nil {
			continue
		}

		// Execute template
		tmpl, err := template.New(relPath).Parse(t.Files[relPath])
		if err != nil {
			return written, errors.Newf(errors.CategoryCLI, "invalid template %s: %v", relPath, err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, cfg); err != nil {
			return written, errors.Newf(errors.CategoryCLI, "template execute error %s: %v", relPath, err)
		}

		// Write file
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return written, errors.New("E146").WithDetail(relPath).Wrap(err)
		}
		if err := os.WriteFile(fullPath, buf.Bytes(), 0644); err != nil {
			return written, errors.New("E146").WithDetail(relPath).Wrap(err)
		}
		written = append(written, relPath)
	}

	for _, relPath := range cfg.Runtime {
		fullPath := filepath.Join(dir, filepath.FromSlash(relPath))
		if _, err := os.Stat(fullPath); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return written, errors.New("E146").WithDetail(relPath).Wrap(err)
		}
		if err := os.WriteFile(fullPath, []byte(runtimeStub), 0644); err != nil {
			return written, errors.New("E146").WithDetail(relPath).Wrap(err)
		}
		written = append(written, filepath.ToSlash(relPath))
	}

	return written, nil
}

// runtimeStub stands in for a runtime script until the real library is
// installed over it.
const runtimeStub = `// Replace with the runtime library. It is appended to every compile.
`

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{.ProjectName}}</title>
  <link rel="stylesheet" href="css/app.css">
</head>
<body>
  <canvas id="scene"></canvas>
  <script type="module" src="app.js"></script>
</body>
</html>
`

const appCSS = `html, body {
  margin: 0;
  height: 100%;
}

#scene {
  display: block;
  width: 100%;
  height: 100%;
}
`

const gitignore = `node_modules/
{{.Output}}/
`

func classicTemplate() *Template {
	return &Template{
		Name:        "classic",
		Description: "One module drawing on a canvas",
		Files: map[string]string{
			".gitignore":             gitignore,
			"src/static/index.html":  indexHTML,
			"src/static/css/app.css": appCSS,
			"src/app.ts": `const canvas = document.getElementById("scene") as HTMLCanvasElement;
const gl = canvas.getContext("webgl");

if (gl) {
  gl.clearColor(0.1, 0.1, 0.15, 1);
  gl.clear(gl.COLOR_BUFFER_BIT);
}
`,
		},
	}
}

func workersTemplate() *Template {
	return &Template{
		Name:        "workers",
		Description: "A module that offloads work to a web worker",
		Files: map[string]string{
			".gitignore":             gitignore,
			"src/static/index.html":  indexHTML,
			"src/static/css/app.css": appCSS,
			"src/app.ts": `const worker = new Worker("workers/train.js", { type: "module" });

worker.onmessage = (event: MessageEvent<number>) => {
  document.title = "{{.ProjectName}}: " + event.data;
};

worker.postMessage(1000);
`,
			"src/workers/train.ts": `self.onmessage = (event: MessageEvent<number>) => {
  let sum = 0;
  for (let i = 0; i < event.data; i++) {
    sum += Math.random();
  }
  self.postMessage(sum / event.data);
};
`,
		},
	}
}
