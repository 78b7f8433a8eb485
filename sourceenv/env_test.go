package sourceenv

import (
	"context"
	"errors"
	"testing"

	"github.com/Azhovan/vmopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func texts(tokens []vmopts.Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}

func TestEnvSource_Load(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		set      bool
		expected []string
	}{
		{
			name:     "unset variable",
			expected: nil,
		},
		{
			name:     "blank variable",
			value:    "  \t ",
			set:      true,
			expected: nil,
		},
		{
			name:     "whitespace separated options",
			value:    "-Xmx1g  -XX:+UseG1GC\t-Dfoo=bar",
			set:      true,
			expected: []string{"-Xmx1g", "-XX:+UseG1GC", "-Dfoo=bar"},
		},
		{
			name:     "quotes group words",
			value:    `-Dmsg="hello world" '-Dother=a b'`,
			set:      true,
			expected: []string{"-Dmsg=hello world", "-Dother=a b"},
		},
		{
			name:     "hash is not a comment",
			value:    "-Dx=1 #-Dy=2",
			set:      true,
			expected: []string{"-Dx=1", "#-Dy=2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := func(name string) (string, bool) {
				if !tt.set {
					return "", false
				}
				return tt.value, name == ToolOptions
			}

			src := New(ToolOptions, Options{Lookup: lookup})
			tokens, err := src.Load(context.Background())
			require.NoError(t, err)
			if tt.expected == nil {
				assert.Empty(t, tokens)
				return
			}
			assert.Equal(t, tt.expected, texts(tokens))
			for _, tok := range tokens {
				assert.Equal(t, vmopts.OriginEnvironment, tok.Origin)
			}
		})
	}
}

func TestEnvSource_ReadsProcessEnvironment(t *testing.T) {
	t.Setenv(ExtraOptions, "-Xss512k")

	tokens, err := New(ExtraOptions, Options{}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"-Xss512k"}, texts(tokens))
}

func TestEnvSource_UnmatchedQuote(t *testing.T) {
	t.Setenv(ToolOptions, `-Dx="unterminated`)

	_, err := New(ToolOptions, Options{}).Load(context.Background())
	require.Error(t, err)

	var argErr *vmopts.ArgumentError
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, vmopts.KindSyntax, argErr.Kind)
	assert.Contains(t, err.Error(), "Unmatched quote in JAVA_TOOL_OPTIONS")
}

func TestEnvSource_PickedUpNotice(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	t.Setenv(ToolOptions, "-Xint")

	_, err := New(ToolOptions, Options{Logger: zap.New(core)}).Load(context.Background())
	require.NoError(t, err)

	entries := logs.FilterMessage("Picked up JAVA_TOOL_OPTIONS: -Xint").All()
	assert.Len(t, entries, 1)
}

func TestEnvSource_Name(t *testing.T) {
	assert.Equal(t, "env_var='JAVA_TOOL_OPTIONS'", New(ToolOptions, Options{}).Name())
	assert.Equal(t, "env_var='JDK_AOT_VM_OPTIONS'", New(AOTVMOptions, Options{}).Name())
}
