package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vango-dev/tsbuild/internal/dev"
)

func serveCmd(g *globalFlags) *cobra.Command {
	var f serverFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the output directory with caching disabled",
		Long: `Serve the build output as static files.

Every response disables browser caching, so a reload always sees the
latest build. Run 'tsbuild build' first.

Examples:
  tsbuild serve
  tsbuild serve --port=9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(g, f)
		},
	}

	f.register(cmd)

	return cmd
}

func runServe(g *globalFlags, f serverFlags) error {
	cfg, err := loadProject(g)
	if err != nil {
		return err
	}

	// Apply command-line overrides
	if f.port > 0 {
		cfg.Dev.Port = f.port
	}
	if f.host != "" {
		cfg.Dev.Host = f.host
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext(nil)
	defer cancel()

	success("Serving %s at %s", relToRoot(cfg.Root(), cfg.OutputPath()), cfg.DevURL())
	return dev.Preview(ctx, cfg.OutputPath(), cfg.DevAddress(), slog.Default())
}
