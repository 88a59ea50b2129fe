// Package build drives a single build of a TypeScript project.
//
// A build runs these steps in order and stops at the first failure:
//   - validate the source directory and runtime scripts
//   - clean the output directory (optional)
//   - collect sources and compiler assets by glob pattern
//   - run the compiler with an explicit argument list
//   - copy the static assets directory into the output directory
//   - write the manifest and metrics textfile (optional)
//
// A compiler that is missing or fails aborts the build before any asset
// is copied, so the output directory never mixes stale scripts with fresh
// assets.
//
// # Usage
//
//	builder := build.New(cfg, build.Options{
//	    OnProgress: func(step string) { fmt.Println(step) },
//	})
//	result, err := builder.Build(ctx)
//	if err != nil {
//	    os.Exit(errors.ExitCode(err))
//	}
//	fmt.Printf("Built in %s\n", result.Duration)
//
// # Output Structure
//
//	dist/
//	├── app.js                  # compiled sources
//	├── app.js.map
//	├── index.html              # copied from src/static
//	└── tsbuild-manifest.json   # with Options.Manifest
package build
