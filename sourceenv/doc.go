// Package sourceenv reads VM options from environment variables.
//
// The value is split on whitespace; single or double quotes group words
// into one option.
//
// Example:
//
//	tool := sourceenv.New(sourceenv.ToolOptions, sourceenv.Options{Logger: logger})
//	args := vmopts.NewArguments().WithToolOptions(tool)
package sourceenv
