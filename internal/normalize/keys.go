package normalize

import (
	"strconv"
	"strings"
)

// ModulePropertyPrefix prefixes every property the runtime reserves for the
// module system.
const ModulePropertyPrefix = "jdk.module."

// reservedModuleSuffixes are the module property names that can only be set
// through their dedicated options (e.g. --add-reads), never with -D.
var reservedModuleSuffixes = []string{
	"addexports",
	"addopens",
	"addreads",
	"patch",
	"addmods",
	"limitmods",
	"path",
	"upgrade.path",
	"enable.native.access",
	"illegal.native.access",
}

// MatchOption reports whether option starts with prefix and returns the
// remaining tail.
// Examples:
//   - MatchOption("-Xmx1g", "-Xmx") → "1g", true
//   - MatchOption("-Xms", "-Xmx") → "", false
func MatchOption(option, prefix string) (string, bool) {
	if !strings.HasPrefix(option, prefix) {
		return "", false
	}
	return option[len(prefix):], true
}

// MatchExact is MatchOption that also requires the tail to be empty or to
// start with one of the given separators.
// Examples:
//   - MatchExact("-Xshare:on", "-Xshare", ":") → ":on", true
//   - MatchExact("-Xsharefoo", "-Xshare", ":") → "", false
func MatchExact(option, prefix, separators string) (string, bool) {
	tail, ok := MatchOption(option, prefix)
	if !ok {
		return "", false
	}
	if tail == "" || strings.ContainsRune(separators, rune(tail[0])) {
		return tail, true
	}
	return "", false
}

// ModuleProperty builds the numbered property key used to record repeated
// module options.
// Examples:
//   - ModuleProperty("addreads", 0) → "jdk.module.addreads.0"
//   - ModuleProperty("enable.native.access", 3) → "jdk.module.enable.native.access.3"
func ModuleProperty(base string, n int) string {
	return ModulePropertyPrefix + base + "." + strconv.Itoa(n)
}

// IsReservedModuleProperty reports whether key (optionally followed by
// "=value") names a module property that -D must not set.
// Examples:
//   - IsReservedModuleProperty("jdk.module.addmods=foo") → true
//   - IsReservedModuleProperty("jdk.module.main") → false
func IsReservedModuleProperty(key string) bool {
	suffix, ok := MatchOption(key, ModulePropertyPrefix)
	if !ok {
		return false
	}
	for _, name := range reservedModuleSuffixes {
		if tail, ok := MatchOption(suffix, name); ok && (tail == "" || tail[0] == '=') {
			return true
		}
	}
	return false
}
