package vmopts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedParser(t *testing.T, version Version) (*Parser, *Registry, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	reg := DefaultRegistry()
	return NewParser(reg, version, zap.New(core)), reg, logs
}

func TestParser_ParseArgument(t *testing.T) {
	tests := []struct {
		name  string
		arg   string
		flag  string
		want  string
		parse bool
	}{
		{name: "enable bool", arg: "+UseG1GC", flag: "UseG1GC", want: "true", parse: true},
		{name: "disable bool", arg: "-UseTLAB", flag: "UseTLAB", want: "false", parse: true},
		{name: "size with suffix", arg: "MaxHeapSize=1g", flag: "MaxHeapSize", want: "1073741824", parse: true},
		{name: "hex value", arg: "NewRatio=0x3", flag: "NewRatio", want: "3", parse: true},
		{name: "double", arg: "MaxRAMPercentage=50", flag: "MaxRAMPercentage", want: "50", parse: true},
		{name: "string", arg: "ErrorFile=/tmp/err.log", flag: "ErrorFile", want: "/tmp/err.log", parse: true},
		{name: "bool with value", arg: "UseG1GC=true", flag: "UseG1GC", want: "false"},
		{name: "numeric with sense", arg: "+MaxHeapSize", flag: "MaxHeapSize", want: "134217728"},
		{name: "trailing garbage", arg: "MaxHeapSize=1gb", flag: "MaxHeapSize", want: "134217728"},
		{name: "no separator", arg: "MaxHeapSize", flag: "MaxHeapSize", want: "134217728"},
		{name: "assign to numeric", arg: "MaxHeapSize:=1g", flag: "MaxHeapSize", want: "134217728"},
		{name: "unknown", arg: "+NoSuchFlag"},
		{name: "empty", arg: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, reg, _ := newObservedParser(t, DefaultVersion())
			assert.Equal(t, tt.parse, p.ParseArgument(tt.arg, OriginCommandLine))
			if tt.flag != "" {
				assert.Equal(t, tt.want, reg.Lookup(tt.flag).Value().String())
			}
		})
	}
}

func TestParser_StringListAccumulates(t *testing.T) {
	p, reg, _ := newObservedParser(t, DefaultVersion())

	require.True(t, p.ParseArgument("OnError=echo one", OriginCommandLine))
	require.True(t, p.ParseArgument("OnError=echo two", OriginCommandLine))
	assert.Equal(t, "echo one\necho two", reg.String("OnError"))

	require.True(t, p.ParseArgument("OnError=", OriginCommandLine))
	assert.Equal(t, "echo one\necho two", reg.String("OnError"), "empty value keeps the list")

	require.True(t, p.ParseArgument("OnError:=reset", OriginCommandLine))
	assert.Equal(t, "reset", reg.String("OnError"))
}

func TestParser_LaterValueWins(t *testing.T) {
	p, reg, _ := newObservedParser(t, DefaultVersion())

	require.True(t, p.ParseArgument("NewRatio=3", OriginEnvironment))
	require.True(t, p.ParseArgument("NewRatio=5", OriginCommandLine))

	f := reg.Lookup("NewRatio")
	assert.Equal(t, uint64(5), reg.Uint("NewRatio"))
	assert.Equal(t, OriginCommandLine, f.Origin())
}

func TestParser_ProcessArgument_Diagnostics(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		kind ErrorKind
		msg  string
	}{
		{name: "missing sense", arg: "UseG1GC", kind: KindSyntax, msg: "Missing +/- setting for VM option 'UseG1GC'"},
		{name: "unexpected sense", arg: "+MaxHeapSize", kind: KindSyntax, msg: "Unexpected +/- setting in VM option 'MaxHeapSize'"},
		{name: "bad value", arg: "MaxHeapSize=lots", kind: KindInvalidValue, msg: "Improperly specified VM option 'MaxHeapSize=lots'"},
		{name: "unknown", arg: "+NoSuchFlag", kind: KindUnrecognized, msg: "Unrecognized VM option 'NoSuchFlag'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newObservedParser(t, DefaultVersion())
			err := p.ProcessArgument(tt.arg, false, OriginCommandLine)

			var argErr *ArgumentError
			require.True(t, errors.As(err, &argErr), "got %v", err)
			assert.Equal(t, tt.kind, argErr.Kind)
			assert.Equal(t, tt.arg, argErr.Option)
			assert.Contains(t, argErr.Message, tt.msg)
		})
	}
}

func TestParser_ProcessArgument_Suggestion(t *testing.T) {
	p, _, _ := newObservedParser(t, DefaultVersion())

	err := p.ProcessArgument("+UseG1GCX", false, OriginCommandLine)
	var argErr *ArgumentError
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, "Did you mean '(+/-)UseG1GC'?", argErr.Suggestion)
	assert.Equal(t, "Unrecognized VM option 'UseG1GCX'\nDid you mean '(+/-)UseG1GC'?", err.Error())

	err = p.ProcessArgument("MaxHeapSiz=1g", false, OriginCommandLine)
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, "Did you mean 'MaxHeapSize=<value>'?", argErr.Suggestion)
}

func TestParser_ProcessArgument_Range(t *testing.T) {
	p, reg, _ := newObservedParser(t, DefaultVersion())

	require.NoError(t, p.ProcessArgument("ThreadStackSize=0", false, OriginCommandLine))
	assert.Equal(t, int64(0), reg.Int("ThreadStackSize"))

	err := p.ProcessArgument("ThreadStackSize=-1", false, OriginCommandLine)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.Contains(t, err.Error(), "intx ThreadStackSize=-1 is outside the allowed range [ 0 ... 1048576 ]")
	assert.Equal(t, int64(0), reg.Int("ThreadStackSize"))
}

func TestParser_ProcessArgument_Locked(t *testing.T) {
	p, reg, _ := newObservedParser(t, DefaultVersion())

	err := p.ProcessArgument("+UseObjectMonitorTable", false, OriginCommandLine)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocked)
	assert.Contains(t, err.Error(), "VM option 'UseObjectMonitorTable' is diagnostic and must be enabled via -XX:+UnlockDiagnosticVMOptions.")

	require.NoError(t, p.ProcessArgument("+UnlockDiagnosticVMOptions", false, OriginCommandLine))
	require.NoError(t, p.ProcessArgument("+UseObjectMonitorTable", false, OriginCommandLine))
	assert.True(t, reg.Bool("UseObjectMonitorTable"))
}

func TestParser_ProcessArgument_IgnoreUnrecognized(t *testing.T) {
	p, _, _ := newObservedParser(t, DefaultVersion())

	assert.NoError(t, p.ProcessArgument("+NoSuchFlag", true, OriginCommandLine))
	assert.NoError(t, p.ProcessArgument("# a comment", false, OriginCommandLine))

	// Known flags with bad values are still errors.
	assert.Error(t, p.ProcessArgument("MaxHeapSize=lots", true, OriginCommandLine))
}

func TestParser_Lifecycle(t *testing.T) {
	t.Run("obsolete is ignored with a warning", func(t *testing.T) {
		p, _, logs := newObservedParser(t, V(26))
		require.NoError(t, p.ProcessArgument("+UseOprofile", false, OriginCommandLine))

		entries := logs.All()
		require.Len(t, entries, 1)
		assert.Equal(t, "Ignoring option UseOprofile; support was removed in 26", entries[0].Message)
	})

	t.Run("expired is unrecognized", func(t *testing.T) {
		p, _, logs := newObservedParser(t, V(27))
		err := p.ProcessArgument("+UseOprofile", false, OriginCommandLine)

		var argErr *ArgumentError
		require.True(t, errors.As(err, &argErr))
		assert.Equal(t, KindUnrecognized, argErr.Kind)
		assert.Zero(t, logs.Len())
	})

	t.Run("deprecated is applied with a warning", func(t *testing.T) {
		p, reg, logs := newObservedParser(t, V(26))
		require.NoError(t, p.ProcessArgument("-ParallelRefProcEnabled", false, OriginCommandLine))

		assert.False(t, reg.Bool("ParallelRefProcEnabled"))
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "Option ParallelRefProcEnabled was deprecated in version 26 and will likely be removed in a future release.",
			logs.All()[0].Message)
	})

	t.Run("deprecated alias names the replacement", func(t *testing.T) {
		p, reg, logs := newObservedParser(t, V(26))
		require.NoError(t, p.ProcessArgument("+CreateMinidumpOnCrash", false, OriginCommandLine))

		assert.True(t, reg.Bool("CreateCoredumpOnCrash"))
		require.Equal(t, 1, logs.Len())
		assert.Contains(t, logs.All()[0].Message, "Use option CreateCoredumpOnCrash instead.")
	})

	t.Run("obsolete but declared is processed", func(t *testing.T) {
		p, reg, logs := newObservedParser(t, V(26))
		require.NoError(t, p.ProcessArgument("LockingMode=1", false, OriginCommandLine))

		assert.Equal(t, int64(1), reg.Int("LockingMode"))
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "Temporarily processing option LockingMode; support is scheduled for removal in 26", logs.All()[0].Message)
	})

	t.Run("expired but declared is unrecognized", func(t *testing.T) {
		p, reg, _ := newObservedParser(t, V(27))
		err := p.ProcessArgument("LockingMode=1", false, OriginCommandLine)

		var argErr *ArgumentError
		require.True(t, errors.As(err, &argErr), "got %v", err)
		assert.Equal(t, KindUnrecognized, argErr.Kind)
		assert.Equal(t, "Unrecognized VM option 'LockingMode=1'", argErr.Message)
		assert.True(t, reg.Lookup("LockingMode").IsDefault())
	})

	t.Run("expired but declared is ignorable", func(t *testing.T) {
		p, reg, _ := newObservedParser(t, V(27))
		require.NoError(t, p.ProcessArgument("LockingMode=1", true, OriginCommandLine))
		assert.True(t, reg.Lookup("LockingMode").IsDefault())
	})

	t.Run("before deprecation is silent", func(t *testing.T) {
		p, _, logs := newObservedParser(t, V(25))
		require.NoError(t, p.ProcessArgument("-ParallelRefProcEnabled", false, OriginCommandLine))
		assert.Zero(t, logs.Len())
	})
}
