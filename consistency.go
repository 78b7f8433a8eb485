package vmopts

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// Locking modes.
const (
	lockingMonitor     = 0
	lockingLightweight = 2
)

// monitorLockingArchs are the architectures that fully implement
// LockingMode == 0.
var monitorLockingArchs = map[string]bool{
	"amd64":   true,
	"386":     true,
	"arm64":   true,
	"ppc64":   true,
	"ppc64le": true,
	"riscv64": true,
	"s390x":   true,
}

var compilationModes = []string{"default", "quick-only", "high-only", "high-only-quick-internal"}

var nmtModes = []string{"off", "summary", "detail"}

// checkConsistency validates cross-flag invariants after every source was
// applied. Some conflicts are repaired with a warning; the rest are
// collected into a *ValidationError.
func checkConsistency(reg *Registry, host Host, log *zap.Logger) error {
	var violations []Violation
	add := func(code, msg string, flags ...string) {
		violations = append(violations, Violation{Flags: flags, Code: code, Message: msg})
	}

	if n := reg.Uint("TLABRefillWasteFraction"); n == 0 {
		add(CodeInvalid, fmt.Sprintf("TLABRefillWasteFraction should be a denominator, not %d", n), "TLABRefillWasteFraction")
	}

	if reg.Bool("UseObjectMonitorTable") && reg.Int("LockingMode") != lockingLightweight {
		if err := reg.setBool("UseObjectMonitorTable", false, OriginErgonomic); err != nil {
			return err
		}
		log.Warn("UseObjectMonitorTable requires LM_LIGHTWEIGHT", zap.Int64("lockingMode", reg.Int("LockingMode")))
	}

	if reg.Int("LockingMode") == lockingMonitor && !monitorLockingArchs[host.Arch()] {
		add(CodeUnsupported, "LockingMode == 0 (LM_MONITOR) is not fully implemented on this architecture", "LockingMode")
	}
	if reg.Bool("VerifyHeavyMonitors") && reg.Int("LockingMode") != lockingMonitor {
		add(CodeConflict, "-XX:+VerifyHeavyMonitors requires LockingMode == 0 (LM_MONITOR)", "VerifyHeavyMonitors", "LockingMode")
	}

	var gcs []string
	for _, p := range gcProfiles {
		if reg.Bool(p.flag) {
			gcs = append(gcs, p.flag)
		}
	}
	if len(gcs) > 1 {
		add(CodeConflict, "Multiple garbage collectors selected", gcs...)
	}

	if mode := reg.String("CompilationMode"); !slices.Contains(compilationModes, mode) {
		add(CodeInvalid, fmt.Sprintf("Unsupported compilation mode '%s', available modes are: %s",
			mode, strings.Join(compilationModes, ", ")), "CompilationMode")
	}

	if !reg.IsDefault("InitialHeapSize") && !reg.IsDefault("MaxHeapSize") &&
		reg.Uint("InitialHeapSize") > reg.Uint("MaxHeapSize") {
		add(CodeHeapOrder, "Initial heap size set to a larger value than the maximum heap size", "InitialHeapSize", "MaxHeapSize")
	}
	if !reg.IsDefault("MinHeapSize") && !reg.IsDefault("InitialHeapSize") &&
		reg.Uint("MinHeapSize") > reg.Uint("InitialHeapSize") {
		add(CodeHeapOrder, "Incompatible minimum and initial heap sizes specified", "MinHeapSize", "InitialHeapSize")
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// checkNativeMemoryTracking validates the NMT level and drops
// PrintNMTStatistics when tracking is off.
func checkNativeMemoryTracking(reg *Registry, log *zap.Logger) error {
	level := reg.String("NativeMemoryTracking")
	if !slices.Contains(nmtModes, level) {
		return argError(KindInvalidValue, "-XX:NativeMemoryTracking="+level,
			"Syntax error, expecting -XX:NativeMemoryTracking=[off|summary|detail]")
	}
	if level == "off" && reg.Bool("PrintNMTStatistics") {
		log.Warn("PrintNMTStatistics is disabled, because native memory tracking is not enabled")
		reg.assignBool("PrintNMTStatistics", false)
	}
	return nil
}

