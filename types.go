package vmopts

import (
	"context"
	"fmt"
)

// Source provides raw option tokens from one place (environment variable,
// options file, embedded resource).
type Source interface {
	// Load returns the tokens in the order they appear. Missing optional
	// sources return no tokens and no error.
	Load(ctx context.Context) ([]Token, error)

	// Name identifies the source in diagnostics (e.g., "env_var='JAVA_TOOL_OPTIONS'").
	Name() string
}

// Origin records where a flag value came from.
type Origin uint8

const (
	OriginDefault Origin = iota
	OriginCommandLine
	OriginEnvironment
	OriginConfigFile
	OriginErgonomic
	OriginResource
	OriginInternal
)

// String returns the origin as printed in flag listings.
func (o Origin) String() string {
	switch o {
	case OriginDefault:
		return "default"
	case OriginCommandLine:
		return "command line"
	case OriginEnvironment:
		return "environment"
	case OriginConfigFile:
		return "config file"
	case OriginErgonomic:
		return "ergonomic"
	case OriginResource:
		return "jimage"
	case OriginInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// MarshalText lets origins appear as names in JSON and YAML output.
func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses the names produced by MarshalText.
func (o *Origin) UnmarshalText(text []byte) error {
	for c := OriginDefault; c <= OriginInternal; c++ {
		if c.String() == string(text) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown origin %q", text)
}

// Token is one raw option string.
type Token struct {
	Text   string
	Origin Origin

	// Extra carries the hook function for the vfprintf, exit and abort
	// options. Nil for every other token.
	Extra any
}

// Tokens wraps plain strings as tokens with the given origin.
func Tokens(origin Origin, texts ...string) []Token {
	out := make([]Token, len(texts))
	for i, s := range texts {
		out[i] = Token{Text: s, Origin: origin}
	}
	return out
}

// Hook types accepted in Token.Extra.
type (
	VfprintfHook func(format string, args ...any)
	ExitHook     func(code int)
	AbortHook    func()
)

// Hooks holds the process hooks handed over through option tokens.
type Hooks struct {
	Vfprintf VfprintfHook
	Exit     ExitHook
	Abort    AbortHook
}
