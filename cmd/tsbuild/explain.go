package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/tsbuild/internal/errors"
)

func explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain [code]",
		Short: "Describe a tsbuild error code",
		Long: `Describe a tsbuild error code.

Without an argument every registered code is listed with its message.`,
		Example: `  tsbuild explain E161
  tsbuild explain`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, code := range errors.Codes() {
					t, _ := errors.Lookup(code)
					fmt.Fprintf(stdout, "%s  %-8s %s\n", code, t.Category, t.Message)
				}
				return nil
			}

			code := strings.ToUpper(args[0])
			t, ok := errors.Lookup(code)
			if !ok {
				return errors.New("E148").
					WithDetail("No error is registered as " + code).
					WithSuggestion("Run 'tsbuild explain' to list every code")
			}
			fmt.Fprintf(stdout, "%s: %s\n\n", code, t.Message)
			fmt.Fprintf(stdout, "  Category:  %s\n", t.Category)
			fmt.Fprintf(stdout, "  Exit code: %s\n\n", exitDescription(code))
			fmt.Fprintf(stdout, "  %s\n", t.Detail)
			return nil
		},
	}
}

// exitDescription names the process exit code an error maps to.
func exitDescription(code string) string {
	if code == "E161" {
		return "the compiler's own exit status"
	}
	return fmt.Sprint(errors.ExitCode(errors.New(code)))
}
