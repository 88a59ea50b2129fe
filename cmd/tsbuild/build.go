package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/tsbuild/internal/build"
)

type buildFlags struct {
	output      string
	compiler    string
	clean       bool
	manifest    bool
	metricsFile string
}

func buildCmd(g *globalFlags) *cobra.Command {
	f := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile the sources and copy the static assets",
		Long: `Compile the project and assemble the output directory.

This command:
  • Collects sources, compiler assets and runtime scripts
  • Runs the compiler with an explicit argument list
  • Copies the static assets directory into the output directory
  • Writes tsbuild-manifest.json (with --manifest)

Without a tsbuild.json the default preset is used, rooted at --dir.

Examples:
  tsbuild build
  tsbuild build --preset=workers
  tsbuild build --compiler=esbuild --clean
  tsbuild build --metrics-file=/var/lib/node_exporter/tsbuild.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(g, f)
		},
	}

	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output directory (default from tsbuild.json)")
	cmd.Flags().StringVar(&f.compiler, "compiler", "", "Compiler backend: tsc or esbuild")
	cmd.Flags().BoolVar(&f.clean, "clean", false, "Remove the output directory before building")
	cmd.Flags().BoolVar(&f.manifest, "manifest", false, "Write "+build.ManifestFileName)
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")

	return cmd
}

func runBuild(g *globalFlags, f *buildFlags) error {
	cfg, err := loadProject(g)
	if err != nil {
		return err
	}

	// Apply command-line overrides
	if f.output != "" {
		cfg.Output = f.output
	}
	if f.compiler != "" {
		cfg.Compiler.Backend = f.compiler
	}

	builder := build.New(cfg, build.Options{
		Clean:       f.clean,
		Manifest:    f.manifest,
		MetricsFile: f.metricsFile,
		Stdout:      stdout,
		Stderr:      stderr,
		OnProgress: func(step string) {
			info(step)
		},
		OnWarning: func(msg string) {
			warn("%s", msg)
		},
	})

	ctx, cancel := signalContext(nil)
	defer cancel()

	result, err := builder.Build(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout)
	success("Build complete in %s", result.Duration.Round(time.Millisecond))
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "  Output:")
	fmt.Fprintf(stdout, "    %s/\n", relToRoot(cfg.Root(), result.Output))
	fmt.Fprintf(stdout, "    ├── %d compiled inputs (%s)\n", len(result.Sources), result.Compiler)
	if result.Assets != nil {
		fmt.Fprintf(stdout, "    ├── %d static files (%s)\n", len(result.Assets.Files), formatBytes(result.Assets.Bytes))
	}
	if result.Manifest != "" {
		fmt.Fprintf(stdout, "    └── %s\n", filepath.Base(result.Manifest))
	}
	fmt.Fprintln(stdout)

	return nil
}

func relToRoot(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
