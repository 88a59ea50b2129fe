package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/tsbuild/internal/config"
	"github.com/vango-dev/tsbuild/internal/errors"
	"github.com/vango-dev/tsbuild/internal/templates"
)

func initCmd(g *globalFlags) *cobra.Command {
	var (
		useYAML  bool
		force    bool
		scaffold bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file for the project",
		Long: `Write tsbuild.json (or tsbuild.yaml) with the defaults of a preset.

With --scaffold, starter sources and a static folder matching the preset
are written too. Existing files are never overwritten.

Examples:
  tsbuild init
  tsbuild init --preset=workers --yaml
  tsbuild init --scaffold`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(g, useYAML, force, scaffold)
		},
	}

	cmd.Flags().BoolVar(&useYAML, "yaml", false, "Write tsbuild.yaml instead of tsbuild.json")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration file")
	cmd.Flags().BoolVar(&scaffold, "scaffold", false, "Also write starter sources for the preset")

	return cmd
}

func runInit(g *globalFlags, useYAML, force, scaffold bool) error {
	dir, err := filepath.Abs(g.dir)
	if err != nil {
		return err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return errors.New("E120").
			WithDetail(g.dir + " is not a directory")
	}
	if config.Exists(dir) && !force {
		return errors.New("E140").
			WithDetail("A configuration file already exists in " + dir).
			WithSuggestion("Pass --force to overwrite it")
	}

	cfg := config.New()
	if g.preset != "" {
		if err := cfg.ApplyPreset(g.preset); err != nil {
			return err
		}
	}

	name := config.ConfigFileName
	if useYAML {
		name = config.YAMLConfigFileName
	}
	path := filepath.Join(dir, name)
	if err := cfg.SaveTo(path); err != nil {
		return err
	}

	success("Created %s (preset %s)", name, cfg.Preset)

	if scaffold {
		tmpl, err := templates.Get(cfg.Preset)
		if err != nil {
			return err
		}
		written, err := tmpl.Create(dir, templates.Config{Output: cfg.Output, Runtime: cfg.Runtime})
		for _, p := range written {
			info("%s", p)
		}
		return err
	}

	if _, err := os.Stat(filepath.Join(dir, cfg.Source)); os.IsNotExist(err) {
		warn("Source directory %s does not exist yet", cfg.Source)
	}
	return nil
}
