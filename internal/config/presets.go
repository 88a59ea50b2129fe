package config

import (
	"sort"

	"github.com/vango-dev/tsbuild/internal/errors"
)

// Preset is a named set of source patterns and compiler flags.
type Preset struct {
	// Name identifies the preset.
	Name string

	// Description is shown by `tsbuild presets`.
	Description string

	// Sources are the source patterns, relative to the source directory.
	Sources []string

	// CompilerAssets are non-script files passed to the compiler as inputs.
	CompilerAssets []string

	// Runtime are fixed scripts, relative to the project root, appended to
	// every compiler invocation.
	Runtime []string

	// Flags are the compiler flags.
	Flags FlagsConfig
}

const (
	// PresetClassic globs top-level modules and images and targets ES6.
	PresetClassic = "classic"

	// PresetWorkers adds the workers subdirectory and targets ES2017 with
	// default-import interop.
	PresetWorkers = "workers"

	// DefaultPreset is used when neither the file nor the CLI names one.
	DefaultPreset = PresetClassic

	// DefaultRuntime is the runtime library both presets compile with.
	DefaultRuntime = "src/lib/vue/vue.js"
)

var presets = map[string]Preset{
	PresetClassic: {
		Name:           PresetClassic,
		Description:    "Top-level modules plus images, ES6 modules targeting ES6",
		Sources:        []string{"*.ts"},
		CompilerAssets: []string{"*.png"},
		Runtime:        []string{DefaultRuntime},
		Flags: FlagsConfig{
			AllowJS:      true,
			Module:       "ES6",
			Target:       "ES6",
			SourceMap:    true,
			AlwaysStrict: true,
		},
	},
	PresetWorkers: {
		Name:        PresetWorkers,
		Description: "Top-level modules and workers/, ES6 modules targeting ES2017 with import interop",
		Sources:     []string{"*.ts", "workers/*.ts"},
		Runtime:     []string{DefaultRuntime},
		Flags: FlagsConfig{
			AllowJS:                      true,
			Module:                       "ES6",
			Target:                       "ES2017",
			SourceMap:                    true,
			AlwaysStrict:                 true,
			AllowSyntheticDefaultImports: true,
			ESModuleInterop:              true,
		},
	},
}

// LookupPreset returns the preset with the given name.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, errors.New("E122").
			WithDetail("No preset named \"" + name + "\"").
			WithSuggestion("Run 'tsbuild presets' to list the available presets")
	}
	p.Sources = append([]string(nil), p.Sources...)
	p.CompilerAssets = append([]string(nil), p.CompilerAssets...)
	p.Runtime = append([]string(nil), p.Runtime...)
	return p, nil
}

// PresetNames returns the names of all presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset replaces the patterns, runtime scripts and flags with those
// of the named preset.
func (c *Config) ApplyPreset(name string) error {
	p, err := LookupPreset(name)
	if err != nil {
		return err
	}
	c.Preset = p.Name
	c.Sources = p.Sources
	c.CompilerAssets = p.CompilerAssets
	c.Runtime = p.Runtime
	c.Flags = p.Flags
	return nil
}
