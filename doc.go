// Package vmopts turns VM startup options into a frozen configuration.
//
// Quick Start:
//
//	cfg, err := vmopts.NewArguments().
//	    WithToolOptions(sourceenv.New(sourceenv.ToolOptions, sourceenv.Options{})).
//	    WithCommandLine("-Xmx512m", "-XX:+UseSerialGC").
//	    WithExtraOptions(sourceenv.New(sourceenv.ExtraOptions, sourceenv.Options{})).
//	    Parse(context.Background())
//
// Options are applied in precedence order: runtime image resource, tool
// options, command line, extra options and, in AOT create mode, the
// create-mode options. A later source overrides an earlier one. Flags are
// declared in a TOML table (see flags.toml) together with their lifecycle
// markers, so deprecated, obsolete and expired flags are handled without
// code changes.
//
// Parse returns an *ArgumentError for rejected options, a *ValidationError
// when flags contradict each other and an *ExitError when an informational
// option such as -XX:+PrintFlagsInitial asks the launcher to stop. StatusOf
// maps any of these to a launcher status code.
//
// See example_test.go and cmd/vmopts for detailed usage.
package vmopts
