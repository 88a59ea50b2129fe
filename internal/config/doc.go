// Package config provides configuration parsing for tsbuild projects.
//
// The configuration is stored in tsbuild.json (or tsbuild.yaml) at the
// project root. Every path in it is resolved against the directory holding
// the file, never against the working directory of the process. A directory
// without a configuration file is built with the defaults of the selected
// preset.
//
// # Configuration File Structure
//
//	{
//	  "preset": "classic",
//	  "source": "src/neural",
//	  "runtime": ["src/lib/vue/vue.js"],
//	  "static": "static",
//	  "output": "dist",
//	  "compiler": {
//	    "backend": "tsc",
//	    "command": "tsc",
//	    "envFile": ".env"
//	  },
//	  "dev": {
//	    "port": 8080,
//	    "hotReload": true
//	  },
//	  "publish": {
//	    "bucket": "my-site",
//	    "prefix": "neural/"
//	  }
//	}
//
// Patterns and compiler flags come from the preset unless the file sets
// "sources", "compilerAssets" or "flags" explicitly.
//
// # Usage
//
//	cfg, err := config.Resolve(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Output:", cfg.OutputPath())
package config
