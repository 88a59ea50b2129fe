package compiler

import (
	"github.com/kballard/go-shellquote"

	"github.com/vango-dev/tsbuild/internal/config"
	"github.com/vango-dev/tsbuild/internal/errors"
)

// Flags are the compiler options tsbuild knows how to render.
type Flags struct {
	Module                       string
	Target                       string
	OutDir                       string
	AllowJS                      bool
	SourceMap                    bool
	AlwaysStrict                 bool
	AllowSyntheticDefaultImports bool
	ESModuleInterop              bool
}

// FlagsFromConfig returns the flags of cfg writing into outDir.
func FlagsFromConfig(f config.FlagsConfig, outDir string) Flags {
	return Flags{
		Module:                       f.Module,
		Target:                       f.Target,
		OutDir:                       outDir,
		AllowJS:                      f.AllowJS,
		SourceMap:                    f.SourceMap,
		AlwaysStrict:                 f.AlwaysStrict,
		AllowSyntheticDefaultImports: f.AllowSyntheticDefaultImports,
		ESModuleInterop:              f.ESModuleInterop,
	}
}

// BuildArgs returns the compiler argument list: flags in a fixed order,
// then extra, then the files of each list in order. It has no side effects
// and the same input always yields the same list.
func BuildArgs(flags Flags, extra []string, fileLists ...[]string) []string {
	args := make([]string, 0, 16)

	if flags.AllowJS {
		args = append(args, "--allowJs")
	}
	if flags.Module != "" {
		args = append(args, "-m", flags.Module)
	}
	if flags.Target != "" {
		args = append(args, "-t", flags.Target)
	}
	if flags.OutDir != "" {
		args = append(args, "--outDir", flags.OutDir)
	}
	if flags.SourceMap {
		args = append(args, "--sourceMap")
	}
	if flags.AlwaysStrict {
		args = append(args, "--alwaysStrict")
	}
	if flags.AllowSyntheticDefaultImports {
		args = append(args, "--allowSyntheticDefaultImports")
	}
	if flags.ESModuleInterop {
		args = append(args, "--esModuleInterop")
	}

	args = append(args, extra...)
	for _, files := range fileLists {
		args = append(args, files...)
	}
	return args
}

// CommandLine renders program and args as a single shell-quoted line.
// It is for display only and is never executed.
func CommandLine(program string, args []string) string {
	return shellquote.Join(append([]string{program}, args...)...)
}

// ParseCommand splits a configured compiler command such as "npx tsc" into
// the program and its leading arguments.
func ParseCommand(s string) (string, []string, error) {
	words, err := shellquote.Split(s)
	if err != nil {
		return "", nil, errors.New("E126").
			WithDetail("Invalid compiler command \"" + s + "\": " + err.Error())
	}
	if len(words) == 0 {
		return "", nil, errors.New("E126").
			WithDetail("The compiler command is empty").
			WithSuggestion("Set \"compiler.command\", e.g. \"tsc\" or \"npx tsc\"")
	}
	return words[0], words[1:], nil
}
