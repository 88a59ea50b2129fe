// Package errors provides structured, actionable error messages for tsbuild.
//
// Every failure the build driver can surface carries a registered code
// (e.g. "E161") that maps to a category, a short message and a longer
// explanation; `tsbuild explain <code>` prints the registry entry. The
// category decides the process exit code:
//   - config: the project layout or configuration is unusable (exit 2)
//   - compile: the compiler is missing (exit 127) or exited non-zero
//     (its own exit status is propagated)
//   - assets: the static assets directory is missing or copying failed (exit 3)
//   - cli, publish: everything else (exit 1)
//
// # Usage
//
//	err := errors.New("E161").
//	    WithExitStatus(2).
//	    WithDetail(output).
//	    WithDiagnostics(errors.ParseDiagnostics(output))
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E161: Compilation failed
//	//
//	//   src/app.ts:3:7  TS2552: Cannot find name 'Strin'.
//	//   src/lib/math.ts:10:1  TS1005: ';' expected.
//	//
//	//       2 │ export class App {
//	//   →   3 │     x: Strin = "a";
//	//         │       ^
package errors
