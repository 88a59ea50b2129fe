package errors

import stderrors "errors"

// Process exit codes for each error category.
const (
	ExitOK               = 0
	ExitFailure          = 1
	ExitConfig           = 2
	ExitAssets           = 3
	ExitCompilerNotFound = 127
)

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// ExitCode maps an error to the process exit code the CLI should use.
//
// A compilation failure propagates the compiler's own exit status so that
// scripts wrapping tsbuild see the same code they would see from tsc.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var te *TSBuildError
	if !As(err, &te) {
		return ExitFailure
	}

	if te.ExitStatus > 0 {
		return te.ExitStatus
	}

	switch {
	case te.Code == CodeCompilerNotFound:
		return ExitCompilerNotFound
	case te.Category == CategoryConfig:
		return ExitConfig
	case te.Category == CategoryAssets:
		return ExitAssets
	default:
		return ExitFailure
	}
}
