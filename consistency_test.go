package vmopts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCheckConsistency_DefaultsPass(t *testing.T) {
	reg := DefaultRegistry()
	assert.NoError(t, checkConsistency(reg, StaticHost{GOARCH: "amd64"}, zap.NewNop()))
}

func TestCheckConsistency_Violations(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *Registry)
		arch  string
		code  string
		flags []string
	}{
		{
			name:  "zero refill waste fraction",
			setup: func(r *Registry) { require.NoError(t, r.setUint("TLABRefillWasteFraction", 0, OriginCommandLine)) },
			code:  CodeInvalid,
			flags: []string{"TLABRefillWasteFraction"},
		},
		{
			name:  "monitor locking on unsupported arch",
			setup: func(r *Registry) { require.NoError(t, r.setInt("LockingMode", 0, OriginCommandLine)) },
			arch:  "mips64",
			code:  CodeUnsupported,
			flags: []string{"LockingMode"},
		},
		{
			name: "heavy monitor verification without monitor locking",
			setup: func(r *Registry) {
				require.NoError(t, r.setBool("UnlockDiagnosticVMOptions", true, OriginCommandLine))
				require.NoError(t, r.setBool("VerifyHeavyMonitors", true, OriginCommandLine))
			},
			code:  CodeConflict,
			flags: []string{"VerifyHeavyMonitors", "LockingMode"},
		},
		{
			name: "two collectors",
			setup: func(r *Registry) {
				require.NoError(t, r.setBool("UseSerialGC", true, OriginCommandLine))
				require.NoError(t, r.setBool("UseZGC", true, OriginCommandLine))
			},
			code:  CodeConflict,
			flags: []string{"UseSerialGC", "UseZGC"},
		},
		{
			name:  "unknown compilation mode",
			setup: func(r *Registry) { require.NoError(t, r.setString("CompilationMode", "fast", OriginCommandLine)) },
			code:  CodeInvalid,
			flags: []string{"CompilationMode"},
		},
		{
			name: "initial above max",
			setup: func(r *Registry) {
				require.NoError(t, r.setUint("InitialHeapSize", 512<<20, OriginCommandLine))
				require.NoError(t, r.setUint("MaxHeapSize", 256<<20, OriginCommandLine))
			},
			code:  CodeHeapOrder,
			flags: []string{"InitialHeapSize", "MaxHeapSize"},
		},
		{
			name: "min above initial",
			setup: func(r *Registry) {
				require.NoError(t, r.setUint("MinHeapSize", 512<<20, OriginCommandLine))
				require.NoError(t, r.setUint("InitialHeapSize", 256<<20, OriginCommandLine))
			},
			code:  CodeHeapOrder,
			flags: []string{"MinHeapSize", "InitialHeapSize"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := DefaultRegistry()
			tt.setup(reg)
			arch := tt.arch
			if arch == "" {
				arch = "amd64"
			}

			err := checkConsistency(reg, StaticHost{GOARCH: arch}, zap.NewNop())
			var valErr *ValidationError
			require.True(t, errors.As(err, &valErr), "got %v", err)
			require.Len(t, valErr.Violations, 1)
			assert.Equal(t, tt.code, valErr.First().Code)
			assert.Equal(t, tt.flags, valErr.First().Flags)
			assert.Equal(t, StatusErr, StatusOf(err))
		})
	}
}

func TestCheckConsistency_CollectsAll(t *testing.T) {
	reg := DefaultRegistry()
	require.NoError(t, reg.setUint("TLABRefillWasteFraction", 0, OriginCommandLine))
	require.NoError(t, reg.setString("CompilationMode", "fast", OriginCommandLine))

	err := checkConsistency(reg, StaticHost{}, zap.NewNop())
	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Len(t, valErr.Violations, 2)
	assert.Contains(t, err.Error(), "inconsistent VM options: 2 violations")
}

func TestCheckConsistency_ObjectMonitorTableRepaired(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	reg := DefaultRegistry()
	require.NoError(t, reg.setBool("UnlockDiagnosticVMOptions", true, OriginCommandLine))
	require.NoError(t, reg.setBool("UseObjectMonitorTable", true, OriginCommandLine))
	require.NoError(t, reg.setInt("LockingMode", 1, OriginCommandLine))

	require.NoError(t, checkConsistency(reg, StaticHost{GOARCH: "amd64"}, zap.New(core)))
	assert.False(t, reg.Bool("UseObjectMonitorTable"))
	assert.True(t, reg.Lookup("UseObjectMonitorTable").IsErgonomic())
	assert.Equal(t, 1, logs.FilterMessage("UseObjectMonitorTable requires LM_LIGHTWEIGHT").Len())

	t.Run("repair failure is returned", func(t *testing.T) {
		reg := DefaultRegistry()
		require.NoError(t, reg.setBool("UnlockDiagnosticVMOptions", true, OriginCommandLine))
		require.NoError(t, reg.setBool("UseObjectMonitorTable", true, OriginCommandLine))
		require.NoError(t, reg.setInt("LockingMode", 1, OriginCommandLine))
		reg.Freeze()

		err := checkConsistency(reg, StaticHost{GOARCH: "amd64"}, zap.NewNop())
		assert.ErrorIs(t, err, ErrFrozen)
	})
}

func TestCheckNativeMemoryTracking(t *testing.T) {
	t.Run("bad level", func(t *testing.T) {
		reg := DefaultRegistry()
		require.NoError(t, reg.setString("NativeMemoryTracking", "full", OriginCommandLine))

		err := checkNativeMemoryTracking(reg, zap.NewNop())
		assert.EqualError(t, err, "Syntax error, expecting -XX:NativeMemoryTracking=[off|summary|detail]")
	})

	t.Run("statistics need tracking", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		reg := DefaultRegistry()
		require.NoError(t, reg.setBool("UnlockDiagnosticVMOptions", true, OriginCommandLine))
		require.NoError(t, reg.setBool("PrintNMTStatistics", true, OriginCommandLine))

		require.NoError(t, checkNativeMemoryTracking(reg, zap.New(core)))
		assert.False(t, reg.Bool("PrintNMTStatistics"))
		assert.Equal(t, 1, logs.Len())
	})

	t.Run("summary keeps statistics", func(t *testing.T) {
		reg := DefaultRegistry()
		require.NoError(t, reg.setString("NativeMemoryTracking", "summary", OriginCommandLine))
		require.NoError(t, reg.setBool("PrintNMTStatistics", true, OriginCommandLine))

		require.NoError(t, checkNativeMemoryTracking(reg, zap.NewNop()))
		assert.True(t, reg.Bool("PrintNMTStatistics"))
	})
}
