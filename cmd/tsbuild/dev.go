package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/tsbuild/internal/build"
	"github.com/vango-dev/tsbuild/internal/dev"
)

type serverFlags struct {
	port int
	host string
}

func (f *serverFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "Port to run on (default from tsbuild.json)")
	cmd.Flags().StringVarP(&f.host, "host", "H", "", "Host to bind to (default from tsbuild.json)")
}

func devCmd(g *globalFlags) *cobra.Command {
	var (
		f        serverFlags
		noReload bool
	)

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Build, watch and serve with live reload",
		Long: `Start the development server.

The dev server builds once, then watches the source directory and the
runtime scripts. A change below the static directory copies the assets
again; any other change runs a full build. Connected browsers reload
after each successful rebuild and show an overlay on failure.

Examples:
  tsbuild dev
  tsbuild dev --port=3000
  tsbuild dev --preset=workers --host=0.0.0.0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(g, f, noReload)
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVar(&noReload, "no-reload", false, "Disable browser live reload")

	return cmd
}

func runDev(g *globalFlags, f serverFlags, noReload bool) error {
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
	if noReload {
		cfg.Dev.HotReload = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Fprintln(stdout, "  tsbuild dev")
	fmt.Fprintln(stdout)

	server := dev.NewServer(dev.ServerOptions{
		Config: cfg,
		Build: build.Options{
			Stdout:    stdout,
			Stderr:    stderr,
			OnWarning: func(msg string) { warn("%s", msg) },
		},
		Out: stdout,
		OnBuildComplete: func(result dev.BuildResult) {
			if result.Success && result.Kind == dev.BuildFull {
				success("Compiled in %s", result.Duration.Round(time.Millisecond))
			}
		},
	})

	ctx, cancel := signalContext(func() {
		fmt.Fprintln(stdout, "\n\n  Shutting down...")
	})
	defer cancel()

	return server.Start(ctx)
}
