package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/tsbuild/internal/compiler"
	"github.com/vango-dev/tsbuild/internal/config"
)

func presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the build presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.PresetNames() {
				p, err := config.LookupPreset(name)
				if err != nil {
					return err
				}
				marker := " "
				if name == config.DefaultPreset {
					marker = "*"
				}
				fmt.Fprintf(stdout, "%s %-10s %s\n", marker, p.Name, p.Description)
				patterns := append(append([]string(nil), p.Sources...), p.CompilerAssets...)
				fmt.Fprintf(stdout, "    sources: %s\n", strings.Join(patterns, " "))
				args := compiler.BuildArgs(compiler.FlagsFromConfig(p.Flags, config.DefaultOutput), nil)
				fmt.Fprintf(stdout, "    flags:   %s\n", compiler.CommandLine(config.DefaultCompiler, args))
				if len(p.Runtime) > 0 {
					fmt.Fprintf(stdout, "    runtime: %s\n", strings.Join(p.Runtime, " "))
				}
			}
			return nil
		},
	}
}
