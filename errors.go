package vmopts

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the result code handed back to the launcher.
type Status int

// Status codes. Values match the launcher's native interface.
const (
	StatusOK       Status = 0
	StatusErr      Status = -1
	StatusNoMemory Status = -4
	StatusInvalid  Status = -6
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusErr:
		return "error"
	case StatusNoMemory:
		return "no memory"
	case StatusInvalid:
		return "invalid arguments"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Flag access errors.
var (
	// ErrWrongFormat is returned when a value does not parse, or a typed
	// accessor does not match the flag type.
	ErrWrongFormat = errors.New("vmopts: wrong format")

	// ErrOutOfBounds is returned when a value lies outside the flag's range.
	ErrOutOfBounds = errors.New("vmopts: value out of bounds")

	// ErrFrozen is returned when setting a flag after configuration was frozen.
	ErrFrozen = errors.New("vmopts: flag is not writable")

	// ErrInvalidFlag is returned for names that are not declared.
	ErrInvalidFlag = errors.New("vmopts: invalid flag")

	// ErrLocked is returned for diagnostic or experimental flags that were not unlocked.
	ErrLocked = errors.New("vmopts: flag is locked")

	// ErrNoMemory reports resource exhaustion while building the configuration.
	ErrNoMemory = errors.New("vmopts: could not allocate")
)

// ErrorKind classifies argument errors.
type ErrorKind int

const (
	KindSyntax ErrorKind = iota
	KindUnrecognized
	KindInvalidValue
	KindConsistency
	KindResource
	KindIO
)

func (k ErrorKind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindUnrecognized:
		return "unrecognized"
	case KindInvalidValue:
		return "invalid value"
	case KindConsistency:
		return "consistency"
	case KindResource:
		return "resource"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// ArgumentError describes why an option was rejected.
type ArgumentError struct {
	Kind       ErrorKind
	Option     string // Offending option as written (may be empty)
	Message    string // Primary diagnostic
	Suggestion string // Optional hint (e.g., "Did you mean '(+/-)UseG1GC'?")
	Err        error
}

func (e *ArgumentError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Suggestion != "" {
		b.WriteString("\n")
		b.WriteString(e.Suggestion)
	}
	if e.Err != nil && !strings.Contains(e.Message, e.Err.Error()) {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

func argError(kind ErrorKind, option, format string, args ...any) *ArgumentError {
	return &ArgumentError{Kind: kind, Option: option, Message: fmt.Sprintf(format, args...)}
}

// RangeError reports a value outside a flag's declared range.
type RangeError struct {
	Flag  *Flag
	Value string
}

func (e *RangeError) Error() string {
	r, _ := e.Flag.Range()
	return fmt.Sprintf("%s %s=%s is outside the allowed range [ %s ... %s ]",
		e.Flag.Type(), e.Flag.Name(), e.Value, r.Min, r.Max)
}

func (e *RangeError) Unwrap() error {
	return ErrOutOfBounds
}

// Consistency codes.
const (
	CodeConflict    = "conflict"
	CodeInvalid     = "invalid"
	CodeUnsupported = "unsupported"
	CodeHeapOrder   = "heap_order"
)

// ValidationError aggregates violations found by the consistency pass.
type ValidationError struct {
	Violations []Violation
}

// Error formats violations as a multi-line message.
func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "inconsistent VM options: no violations"
	}

	var b strings.Builder
	if len(e.Violations) == 1 {
		b.WriteString("inconsistent VM options: 1 violation\n")
	} else {
		fmt.Fprintf(&b, "inconsistent VM options: %d violations\n", len(e.Violations))
	}
	for _, v := range e.Violations {
		fmt.Fprintf(&b, "  - %s: %s (%s)\n", strings.Join(v.Flags, ","), v.Code, v.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

// First returns the first violation encountered.
func (e *ValidationError) First() Violation {
	if len(e.Violations) == 0 {
		return Violation{}
	}
	return e.Violations[0]
}

// Violation is a single cross-flag consistency failure.
type Violation struct {
	Flags   []string // Flags involved, first is the primary one
	Code    string
	Message string
}

// ExitError asks the caller to terminate with Code after an informational
// option (e.g., -XX:+PrintFlagsInitial) produced its output.
type ExitError struct {
	Code   int
	Reason string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit requested by %s (code %d)", e.Reason, e.Code)
}

// StatusOf maps an error returned by this package to a launcher status.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code == 0 {
		return StatusOK
	}
	if errors.Is(err, ErrNoMemory) {
		return StatusNoMemory
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return StatusErr
	}

	var argErr *ArgumentError
	if errors.As(err, &argErr) {
		switch argErr.Kind {
		case KindResource:
			return StatusNoMemory
		case KindConsistency, KindIO:
			return StatusErr
		default:
			return StatusInvalid
		}
	}
	return StatusErr
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if err == nil {
		return 0
	}
	return 1
}
