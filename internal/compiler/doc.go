// Package compiler turns a collected file list into a compiler invocation
// and runs it.
//
// Two backends exist:
//   - TSC runs an external tsc-compatible program with an explicit
//     argument list. No shell is involved, so paths with spaces or shell
//     metacharacters are passed through as single arguments.
//   - ESBuild transpiles the same inputs in-process with esbuild, for
//     machines without Node.js.
//
// # Arguments
//
// BuildArgs emits the recognized flags in a fixed order, then any extra
// arguments, then every file:
//
//	--allowJs -m ES6 -t ES6 --outDir dist --sourceMap --alwaysStrict \
//	    [--allowSyntheticDefaultImports] [--esModuleInterop] \
//	    <extra...> <files...>
//
// # Errors
//
// A program that cannot be found on PATH returns E160 before anything is
// spawned. A compiler that exits non-zero returns E161 carrying the exit
// status, so the CLI can exit with the same code.
package compiler
