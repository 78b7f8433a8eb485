package sourceenv

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Azhovan/vmopts"
	"github.com/Azhovan/vmopts/internal/tokenize"
	"go.uber.org/zap"
)

// Well-known variables.
const (
	ToolOptions  = "JAVA_TOOL_OPTIONS"
	ExtraOptions = "_JAVA_OPTIONS"
	AOTVMOptions = "JDK_AOT_VM_OPTIONS"
)

// Options configures environment variable source behavior.
type Options struct {
	// Logger receives the "Picked up" notice. Nil discards it.
	Logger *zap.Logger

	// Lookup reads a variable. Defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

type envSource struct {
	name string
	opts Options
}

// New creates a source that splits the value of the variable name into
// option tokens. Quotes group words; there are no comments.
func New(name string, opts Options) vmopts.Source {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Lookup == nil {
		opts.Lookup = os.LookupEnv
	}
	return &envSource{name: name, opts: opts}
}

// Load returns no tokens when the variable is unset or blank.
func (e *envSource) Load(ctx context.Context) ([]vmopts.Token, error) {
	value, ok := e.opts.Lookup(e.name)
	if !ok || strings.TrimSpace(value) == "" {
		return nil, nil
	}
	e.opts.Logger.Info(fmt.Sprintf("Picked up %s: %s", e.name, value), zap.String("variable", e.name))

	texts, err := tokenize.Split(e.name, value, tokenize.Options{})
	if err != nil {
		return nil, &vmopts.ArgumentError{Kind: vmopts.KindSyntax, Option: e.name, Message: err.Error(), Err: err}
	}
	return vmopts.Tokens(vmopts.OriginEnvironment, texts...), nil
}

// Name identifies the variable the way container diagnostics do.
func (e *envSource) Name() string {
	return "env_var='" + e.name + "'"
}
