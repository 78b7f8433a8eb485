package vmopts

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/Azhovan/vmopts/internal/normalize"
	"github.com/Azhovan/vmopts/internal/tokenize"
)

// Container names used in diagnostics.
const (
	ContainerCommandLine = "cmd_line_args"
	ContainerResource    = "vm_options_args"
)

// MaxOptionsFileSize bounds the size of an options or settings file.
const MaxOptionsFileSize = 64 << 20

// Container is an ordered group of option tokens that came from one place.
type Container struct {
	Name               string
	Origin             Origin
	Tokens             []Token
	IgnoreUnrecognized bool
}

// Texts returns the raw token strings.
func (c *Container) Texts() []string {
	out := make([]string, len(c.Tokens))
	for i, t := range c.Tokens {
		out[i] = t.Text
	}
	return out
}

// Expander splices options files into containers and records the special
// options that must be known before any flag is applied.
type Expander struct {
	reg      *Registry
	out      io.Writer
	readFile func(string) ([]byte, error)

	// Results of scanning, last occurrence wins.
	FlagsFile          string
	PrintVMOptions     bool
	IgnoreUnrecognized bool
}

// NewExpander creates an expander. readFile defaults to os.ReadFile and out
// receives -XX:+PrintFlagsInitial output.
func NewExpander(reg *Registry, out io.Writer, readFile func(string) ([]byte, error)) *Expander {
	if readFile == nil {
		readFile = os.ReadFile
	}
	if out == nil {
		out = io.Discard
	}
	return &Expander{reg: reg, out: out, readFile: readFile}
}

// Expand scans c in order, replacing a -XX:VMOptionsFile=<path> token with
// the tokens of that file. Only one such directive is allowed per container,
// and the file may not contain another. Spliced tokens are scanned too.
// -XX:+PrintFlagsInitial prints the flags and returns an *ExitError.
func (e *Expander) Expand(c *Container) error {
	firstFileOption := ""

	for i := 0; i < len(c.Tokens); i++ {
		opt := c.Tokens[i].Text

		if tail, ok := normalize.MatchOption(opt, "-XX:VMOptionsFile="); ok {
			if firstFileOption != "" {
				return argError(KindSyntax, opt,
					"The option '%s' is already specified in the options container '%s' so the specification of '%s' in the same options container is an error.",
					firstFileOption, c.Name, opt)
			}
			firstFileOption = opt

			tokens, err := e.ReadOptionsFile(tail, c.Name)
			if err != nil {
				return err
			}
			for j := range tokens {
				tokens[j].Origin = c.Origin
			}
			c.Tokens = splice(c.Tokens, i, tokens)
			i--
			continue
		}

		if err := e.matchSpecial(opt); err != nil {
			return err
		}
	}
	return nil
}

func (e *Expander) matchSpecial(opt string) error {
	if tail, ok := normalize.MatchOption(opt, "-XX:Flags="); ok {
		e.FlagsFile = tail
		return nil
	}
	switch opt {
	case "-XX:+PrintVMOptions":
		e.PrintVMOptions = true
	case "-XX:-PrintVMOptions":
		e.PrintVMOptions = false
	case "-XX:+IgnoreUnrecognizedVMOptions":
		e.IgnoreUnrecognized = true
	case "-XX:-IgnoreUnrecognizedVMOptions":
		e.IgnoreUnrecognized = false
	case "-XX:+PrintFlagsInitial":
		if err := PrintFlags(e.out, e.reg, false); err != nil {
			return err
		}
		return &ExitError{Code: 0, Reason: "-XX:+PrintFlagsInitial"}
	}
	return nil
}

// ReadOptionsFile tokenizes an options file. An empty file yields no
// tokens; a file that refers to another options file is an error.
func (e *Expander) ReadOptionsFile(path, container string) ([]Token, error) {
	buf, err := e.readLimited(path)
	if err != nil {
		if errors.Is(err, ErrNoMemory) {
			return nil, &ArgumentError{Kind: KindResource, Option: path,
				Message: fmt.Sprintf("Could not allocate read buffer for options file parse: %s", path), Err: err}
		}
		return nil, &ArgumentError{Kind: KindIO, Option: path,
			Message: fmt.Sprintf("Could not open options file '%s'", path), Err: err}
	}

	texts, err := tokenize.Split(path, string(buf), tokenize.Options{Comments: true})
	if err != nil {
		return nil, &ArgumentError{Kind: KindSyntax, Option: path, Message: err.Error(), Err: err}
	}

	tokens := make([]Token, 0, len(texts))
	for _, t := range texts {
		if _, nested := normalize.MatchOption(t, "-XX:VMOptionsFile"); nested {
			return nil, argError(KindSyntax, t,
				"A VM options file may not refer to a VM options file. Specification of '-XX:VMOptionsFile=<file-name>' in the options file '%s' in options container '%s' is an error.",
				path, container)
		}
		tokens = append(tokens, Token{Text: t})
	}
	return tokens, nil
}

func (e *Expander) readLimited(path string) ([]byte, error) {
	buf, err := e.readFile(path)
	if err != nil {
		return nil, err
	}
	if len(buf) > MaxOptionsFileSize {
		return nil, fmt.Errorf("%s is %d bytes: %w", path, len(buf), ErrNoMemory)
	}
	return buf, nil
}

// ReadSettingsFile tokenizes a settings file (-XX:Flags=). A missing file is
// only an error when shouldExist is set.
func (e *Expander) ReadSettingsFile(path string, shouldExist bool) ([]string, error) {
	buf, err := e.readLimited(path)
	if err != nil {
		if !shouldExist && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if errors.Is(err, ErrNoMemory) {
			return nil, &ArgumentError{Kind: KindResource, Option: path,
				Message: fmt.Sprintf("Could not allocate read buffer for settings file %s", path), Err: err}
		}
		return nil, &ArgumentError{Kind: KindIO, Option: path,
			Message: fmt.Sprintf("Could not open settings file %s", path), Err: err}
	}

	texts, err := tokenize.Split(path, string(buf), tokenize.Options{Comments: true})
	if err != nil {
		return nil, &ArgumentError{Kind: KindSyntax, Option: path, Message: err.Error(), Err: err}
	}
	return texts, nil
}

// splice replaces tokens[i] with repl.
func splice(tokens []Token, i int, repl []Token) []Token {
	out := make([]Token, 0, len(tokens)-1+len(repl))
	out = append(out, tokens[:i]...)
	out = append(out, repl...)
	return append(out, tokens[i+1:]...)
}
