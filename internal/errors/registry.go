package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// CodeCompilerNotFound is returned when the compiler executable cannot be
// resolved on PATH.
const CodeCompilerNotFound = "E160"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E120-E139)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Message:  "Invalid tsbuild configuration",
		Detail:   "The tsbuild.json or tsbuild.yaml configuration file is malformed.",
	},
	"E121": {
		Category: CategoryConfig,
		Message:  "Source directory not found",
		Detail:   "The configured source directory does not exist or is not a directory.",
	},
	"E122": {
		Category: CategoryConfig,
		Message:  "Unknown preset",
		Detail:   "The requested build preset is not defined.",
	},
	"E123": {
		Category: CategoryConfig,
		Message:  "Runtime script not found",
		Detail:   "A fixed runtime script that is appended to every compiler invocation is missing.",
	},
	"E124": {
		Category: CategoryConfig,
		Message:  "Unknown compiler backend",
		Detail:   "The compiler backend must be \"tsc\" or \"esbuild\".",
	},
	"E125": {
		Category: CategoryConfig,
		Message:  "No sources to compile",
		Detail:   "None of the source patterns matched any file.",
	},
	"E126": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is out of range or malformed.",
	},
	"E127": {
		Category: CategoryConfig,
		Message:  "Invalid environment file",
		Detail:   "The compiler environment file could not be read.",
	},

	// ============================================
	// CLI Errors (E140-E159)
	// ============================================

	"E140": {
		Category: CategoryCLI,
		Message:  "Configuration file already exists",
		Detail:   "A tsbuild configuration file already exists in this directory.",
	},
	"E141": {
		Category: CategoryCLI,
		Message:  "Output directory could not be prepared",
		Detail:   "The build output directory could not be created or cleaned.",
	},
	"E142": {
		Category: CategoryCLI,
		Message:  "Server failed",
		Detail:   "The development or preview server stopped with an error.",
	},
	"E143": {
		Category: CategoryCLI,
		Message:  "Manifest could not be written",
		Detail:   "The build manifest could not be written to the output directory.",
	},
	"E144": {
		Category: CategoryCLI,
		Message:  "Metrics could not be written",
		Detail:   "The build metrics textfile could not be written.",
	},
	"E145": {
		Category: CategoryCLI,
		Message:  "Template not found",
		Detail:   "No scaffold template exists with that name.",
	},
	"E146": {
		Category: CategoryCLI,
		Message:  "Scaffold failed",
		Detail:   "The starter project files could not be written.",
	},
	"E147": {
		Category: CategoryCLI,
		Message:  "Command failed",
		Detail:   "The command stopped with an error that carries no tsbuild code, such as an unknown flag.",
	},
	"E148": {
		Category: CategoryCLI,
		Message:  "Unknown error code",
		Detail:   "No tsbuild error is registered under that code.",
	},

	// ============================================
	// Compile Errors (E160-E169)
	// ============================================

	CodeCompilerNotFound: {
		Category: CategoryCompile,
		Message:  "Compiler not found",
		Detail:   "The compiler executable is not installed or not in PATH.",
	},
	"E161": {
		Category: CategoryCompile,
		Message:  "Compilation failed",
		Detail:   "The compiler reported errors. Check the output above for diagnostics.",
	},
	"E162": {
		Category: CategoryCompile,
		Message:  "Compiler could not be started",
		Detail:   "The compiler process could not be started or was interrupted.",
	},

	// ============================================
	// Asset Errors (E170-E179)
	// ============================================

	"E170": {
		Category: CategoryAssets,
		Message:  "Static assets directory not found",
		Detail:   "The static assets directory does not exist or is not a directory.",
	},
	"E171": {
		Category: CategoryAssets,
		Message:  "Static asset copy failed",
		Detail:   "Copying static assets into the output directory failed partway. The output is incomplete.",
	},

	// ============================================
	// Publish Errors (E180-E189)
	// ============================================

	"E180": {
		Category: CategoryPublish,
		Message:  "Publish failed",
		Detail:   "Uploading the build output failed.",
	},
	"E181": {
		Category: CategoryPublish,
		Message:  "Missing publish target",
		Detail:   "No bucket was configured for publishing.",
	},
}

// Codes returns all registered error codes in sorted order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Lookup returns the template for an error code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
