package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/tsbuild/internal/config"
	"github.com/vango-dev/tsbuild/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Output streams, replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// globalFlags are shared by every command.
type globalFlags struct {
	dir     string
	preset  string
	verbose bool
	noColor bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the CLI and returns the process exit code.
func run(args []string) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		te := errors.FromError(err, "E147")
		errors.PrintError(stderr, te)
		return errors.ExitCode(te)
	}
	return errors.ExitOK
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "tsbuild",
		Short: "Build TypeScript projects with tsc and a static assets folder",
		Long: `tsbuild compiles a TypeScript project and assembles its output directory.

A build collects sources by glob pattern, runs the compiler with an
explicit argument list, and copies the static assets directory into the
output directory. A failing compiler stops the build before any asset is
copied and tsbuild exits with the compiler's status.

Exit codes:
  0    success
  1    other failure
  2    configuration error
  3    static asset copy failed
  127  compiler not found
  n    the compiler's own exit status`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(g.verbose)
			if g.noColor {
				errors.DisableColors()
			}
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&g.dir, "dir", "C", ".", "Project directory")
	flags.StringVarP(&g.preset, "preset", "P", "", "Preset to apply (see 'tsbuild presets')")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVar(&g.noColor, "no-color", false, "Disable colored error output")

	rootCmd.AddCommand(
		buildCmd(g),
		devCmd(g),
		serveCmd(g),
		publishCmd(g),
		initCmd(g),
		presetsCmd(),
		explainCmd(),
		versionCmd(),
	)

	return rootCmd
}

// setupLogging routes structured logs to stderr.
func setupLogging(verbose bool) {
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
}

// loadProject resolves the configuration for the project directory and
// applies the --preset override.
func loadProject(g *globalFlags) (*config.Config, error) {
	cfg, err := config.Resolve(g.dir)
	if err != nil {
		return nil, err
	}
	if cfg.Path() == "" {
		slog.Debug("no configuration file, using defaults", "root", cfg.Root())
	}
	if g.preset != "" {
		if err := cfg.ApplyPreset(g.preset); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(onSignal func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			if onSignal != nil {
				onSignal()
			}
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Fprintf(stdout, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Fprintf(stdout, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Fprintf(stdout, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
