package vmopts

import (
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"strings"

	"github.com/Azhovan/vmopts/internal/normalize"
	"go.uber.org/zap"
)

// MaxModuleProperties bounds the number of numbered properties per module
// option (e.g. jdk.module.addreads.0 ... jdk.module.addreads.999).
const MaxModuleProperties = 1000

const (
	kilo = 1 << 10
	mega = 1 << 20
	giga = 1 << 30
)

// optionState carries the per-parse state of VM option dispatch.
type optionState struct {
	reg    *Registry
	parser *Parser
	props  *PropertyStore
	cfg    *Config
	log    *zap.Logger
	out    io.Writer

	moduleCounts               map[string]int
	needsModulePropertyWarning bool
	modeFromCommandLine        bool
}

func newOptionState(reg *Registry, parser *Parser, props *PropertyStore, cfg *Config, log *zap.Logger, out io.Writer) *optionState {
	return &optionState{
		reg:          reg,
		parser:       parser,
		props:        props,
		cfg:          cfg,
		log:          log,
		out:          out,
		moduleCounts: make(map[string]int),
	}
}

// applyContainer applies every token of c in order.
func (s *optionState) applyContainer(c *Container) error {
	for _, tok := range c.Tokens {
		if err := s.applyOption(tok, c.Origin, c.IgnoreUnrecognized); err != nil {
			return err
		}
	}
	return nil
}

func (s *optionState) warn(msg string, fields ...zap.Field) {
	s.log.Warn(msg, fields...)
}

// applyOption dispatches one VM option.
func (s *optionState) applyOption(tok Token, origin Origin, ignoreUnrecognized bool) error {
	opt := tok.Text
	if !strings.HasPrefix(opt, "-Djava.class.path") &&
		!strings.HasPrefix(opt, "-Dsun.java.command") &&
		!strings.HasPrefix(opt, "-Dsun.java.launcher") {
		s.cfg.JVMArgs = append(s.cfg.JVMArgs, opt)
	}

	if tail, ok := normalize.MatchOption(opt, "-verbose"); ok {
		switch tail {
		case "", ":class":
			s.cfg.Verbose = append(s.cfg.Verbose, "class")
		case ":module", ":gc", ":jni":
			s.cfg.Verbose = append(s.cfg.Verbose, tail[1:])
		}
		return nil
	}
	if tail, ok := matchAny(opt, ":", "-da", "-ea", "-disableassertions", "-enableassertions"); ok {
		enable := opt[1] == 'e'
		if tail == "" {
			s.cfg.Assertions.UserDefault = enable
		} else {
			s.cfg.Assertions.Options = append(s.cfg.Assertions.Options, AssertionOption{Target: tail[1:], Enable: enable})
		}
		return nil
	}
	if _, ok := matchAny(opt, "", "-dsa", "-esa", "-disablesystemassertions", "-enablesystemassertions"); ok {
		s.cfg.Assertions.SystemDefault = opt[1] == 'e'
		return nil
	}

	if _, ok := normalize.MatchOption(opt, "-Xbootclasspath:"); ok {
		return argError(KindSyntax, opt, "-Xbootclasspath is no longer a supported option.")
	}
	if tail, ok := normalize.MatchOption(opt, "-Xbootclasspath/a:"); ok {
		s.props.appendValue(bootClassPathAppend, tail)
		return nil
	}
	if _, ok := normalize.MatchOption(opt, "-Xbootclasspath/p:"); ok {
		return argError(KindSyntax, opt, "-Xbootclasspath/p is no longer a supported option.")
	}

	for _, m := range numberedModuleOptions {
		if tail, ok := normalize.MatchOption(opt, m.option); ok {
			return s.addNumberedModuleProperty(m.base, tail)
		}
	}
	for _, m := range singleModuleOptions {
		if tail, ok := normalize.MatchOption(opt, m.option); ok {
			s.props.UniqueAdd(normalize.ModulePropertyPrefix+m.base, tail, Replace, false, m.internal)
			return nil
		}
	}
	if tail, ok := normalize.MatchOption(opt, "--patch-module="); ok {
		return s.patchModule(tail)
	}
	if tail, ok := normalize.MatchOption(opt, "--sun-misc-unsafe-memory-access="); ok {
		switch tail {
		case "allow", "warn", "debug", "deny":
			s.props.UniqueAdd("sun.misc.unsafe.memory.access", tail, Replace, true, true)
			return nil
		}
		return argError(KindInvalidValue, opt, "Value specified to --sun-misc-unsafe-memory-access not recognized: '%s'", tail)
	}
	if _, ok := normalize.MatchOption(opt, "--illegal-access="); ok {
		s.warn(fmt.Sprintf("Ignoring option %s; support was removed in %s", opt, V(17)), zap.String("option", opt))
		return nil
	}

	if tail, ok := normalize.MatchOption(opt, "-agentlib:"); ok {
		s.addAgent(tail, false)
		return nil
	}
	if tail, ok := normalize.MatchOption(opt, "-agentpath:"); ok {
		s.addAgent(tail, true)
		return nil
	}
	if tail, ok := normalize.MatchOption(opt, "-javaagent:"); ok {
		s.cfg.Agents = append(s.cfg.Agents, Agent{Name: "instrument", Options: tail})
		return s.addNumberedModuleProperty("addmods", "java.instrument")
	}

	switch opt {
	case "--enable-preview":
		s.cfg.EnablePreview = true
		return nil
	case "-Xnoclassgc":
		return s.set(opt, s.reg.setBool("ClassUnloading", false, origin))
	case "-Xbatch":
		return s.set(opt, s.reg.setBool("BackgroundCompilation", false, origin))
	case "-green":
		return argError(KindInvalidValue, opt, "Green threads support not available")
	case "-native":
		return nil
	case "-Xrs":
		return s.set(opt, s.reg.setBool("ReduceSignalUsage", true, origin))
	case "-Xprof":
		s.warn(fmt.Sprintf("Ignoring option %s; support was removed in %s", opt, V(10)), zap.String("option", opt))
		return nil
	case "-Xint":
		s.modeFromCommandLine = true
		return s.set(opt, s.setMode(ModeInt, origin))
	case "-Xmixed":
		s.modeFromCommandLine = true
		return s.set(opt, s.setMode(ModeMixed, origin))
	case "-Xcomp":
		s.modeFromCommandLine = true
		return s.set(opt, s.setMode(ModeComp, origin))
	case "-Xshare:dump":
		s.cfg.DumpSharedArchive = true
		return nil
	case "-Xshare:on":
		return s.setAll(opt, origin, boolSet("UseSharedSpaces", true), boolSet("RequireSharedSpaces", true))
	case "-Xshare:auto":
		return s.setAll(opt, origin, boolSet("UseSharedSpaces", true), boolSet("RequireSharedSpaces", false))
	case "-Xshare:off":
		return s.setAll(opt, origin, boolSet("UseSharedSpaces", false), boolSet("RequireSharedSpaces", false))
	case "-Xdebug":
		s.warn("Option -Xdebug was deprecated in JDK 22 and will likely be removed in a future release.", zap.String("option", opt))
		return nil
	case "vfprintf", "exit", "abort":
		return s.setHook(opt, tok.Extra)
	case "-XX:+NeverTenure":
		return s.setAll(opt, origin, boolSet("NeverTenure", true), boolSet("AlwaysTenure", false), uintSet("MaxTenuringThreshold", maxAge+1))
	case "-XX:+AlwaysTenure":
		return s.setAll(opt, origin, boolSet("NeverTenure", false), boolSet("AlwaysTenure", true), uintSet("MaxTenuringThreshold", 0))
	case "-XX:+DisplayVMOutputToStderr":
		return s.setAll(opt, origin, boolSet("DisplayVMOutputToStdout", false), boolSet("DisplayVMOutputToStderr", true))
	case "-XX:+DisplayVMOutputToStdout":
		return s.setAll(opt, origin, boolSet("DisplayVMOutputToStderr", false), boolSet("DisplayVMOutputToStdout", true))
	case "-XX:+ErrorFileToStderr":
		return s.setAll(opt, origin, boolSet("ErrorFileToStdout", false), boolSet("ErrorFileToStderr", true))
	case "-XX:+ErrorFileToStdout":
		return s.setAll(opt, origin, boolSet("ErrorFileToStderr", false), boolSet("ErrorFileToStdout", true))
	}

	if tail, ok := normalize.MatchOption(opt, "-Xmn"); ok {
		size, err := s.memorySize(opt, tail, 1, math.MaxUint64, "Invalid initial young generation size: %s")
		if err != nil {
			return err
		}
		return s.setAll(opt, origin, uintSet("MaxNewSize", size), uintSet("NewSize", size))
	}
	if tail, ok := normalize.MatchOption(opt, "-Xms"); ok {
		// Zero means "determine automatically".
		size, err := s.memorySize(opt, tail, 0, math.MaxUint64, "Invalid initial heap size: %s")
		if err != nil {
			return err
		}
		return s.setAll(opt, origin, uintSet("MinHeapSize", size), uintSet("InitialHeapSize", size))
	}
	if tail, ok := matchFirst(opt, "-Xmx", "-XX:MaxHeapSize="); ok {
		size, err := s.memorySize(opt, tail, 1, math.MaxUint64, "Invalid maximum heap size: %s")
		if err != nil {
			return err
		}
		return s.set(opt, s.reg.setUint("MaxHeapSize", size, origin))
	}
	if tail, ok := normalize.MatchOption(opt, "-Xmaxf"); ok {
		return s.heapFreeRatio(opt, tail, "MaxHeapFreeRatio", "Bad max heap free percentage size: %s", origin)
	}
	if tail, ok := normalize.MatchOption(opt, "-Xminf"); ok {
		return s.heapFreeRatio(opt, tail, "MinHeapFreeRatio", "Bad min heap free percentage size: %s", origin)
	}
	if tail, ok := normalize.MatchOption(opt, "-Xss"); ok {
		size, err := s.memorySize(opt, tail, 0, 1*mega*kilo, "Invalid thread stack size: %s")
		if err != nil {
			return err
		}
		return s.set(opt, s.reg.setInt("ThreadStackSize", int64(alignUp(size, kilo)/kilo), origin))
	}
	if tail, ok := matchFirst(opt, "-Xmaxjitcodesize", "-XX:ReservedCodeCacheSize="); ok {
		size, err := s.memorySize(opt, tail, 1, math.MaxUint64, "Invalid maximum code cache size: %s.")
		if err != nil {
			return err
		}
		return s.set(opt, s.reg.setUint("ReservedCodeCacheSize", size, origin))
	}
	if opt == "-Xinternalversion" {
		fmt.Fprintln(s.out, s.internalVersion())
		return &ExitError{Code: 0, Reason: opt}
	}
	if tail, ok := normalize.MatchOption(opt, "-D"); ok {
		return s.addProperty(opt, tail, origin)
	}
	if tail, ok := normalize.MatchOption(opt, "-Xverify"); ok {
		switch tail {
		case "", ":all":
			return s.setAll(opt, origin, boolSet("BytecodeVerificationLocal", true), boolSet("BytecodeVerificationRemote", true))
		case ":remote":
			return s.setAll(opt, origin, boolSet("BytecodeVerificationLocal", false), boolSet("BytecodeVerificationRemote", true))
		case ":none":
			s.warn("Options -Xverify:none and -noverify were deprecated in JDK 13 and will likely be removed in a future release.",
				zap.String("option", opt))
			return s.setAll(opt, origin, boolSet("BytecodeVerificationLocal", false), boolSet("BytecodeVerificationRemote", false))
		}
		return badOption(opt, ignoreUnrecognized, "verification")
	}
	if tail, ok := normalize.MatchOption(opt, "-Xloggc:"); ok {
		s.warn(fmt.Sprintf("-Xloggc is deprecated. Will use -Xlog:gc:%s instead.", tail), zap.String("option", opt))
		s.cfg.GCLogFile = tail
		return nil
	}
	if tail, ok := normalize.MatchOption(opt, "-Xlog"); ok {
		if tail != "" && tail[0] != ':' {
			return argError(KindSyntax, opt, "Invalid -Xlog option '-Xlog%s', see error log for details.", tail)
		}
		s.cfg.LogOptions = append(s.cfg.LogOptions, strings.TrimPrefix(tail, ":"))
		return nil
	}
	if tail, ok := normalize.MatchOption(opt, "-Xcheck"); ok {
		if tail == ":jni" {
			return s.set(opt, s.reg.setBool("CheckJNICalls", true, origin))
		}
		return badOption(opt, ignoreUnrecognized, "check")
	}
	if tail, ok := normalize.MatchOption(opt, "-XX:MaxTenuringThreshold="); ok {
		n, ok := parseUnsigned(tail, 32)
		if !ok {
			return argError(KindInvalidValue, opt, "Improperly specified VM option 'MaxTenuringThreshold=%s'", tail)
		}
		if err := s.set(opt, s.reg.setUint("MaxTenuringThreshold", n, origin)); err != nil {
			return err
		}
		return s.setAll(opt, origin, boolSet("NeverTenure", false), boolSet("AlwaysTenure", n == 0))
	}
	if tail, ok := normalize.MatchOption(opt, "--finalization="); ok {
		switch tail {
		case "enabled":
			s.cfg.FinalizationEnabled = true
		case "disabled":
			s.cfg.FinalizationEnabled = false
		default:
			return argError(KindInvalidValue, opt, "Invalid finalization value '%s', must be 'disabled' or 'enabled'.", tail)
		}
		return nil
	}
	if tail, ok := normalize.MatchOption(opt, "-XX:"); ok {
		if strings.HasPrefix(tail, "Flags=") || strings.HasPrefix(tail, "VMOptionsFile=") {
			return nil
		}
		return s.parser.ProcessArgument(tail, ignoreUnrecognized, origin)
	}
	return badOption(opt, ignoreUnrecognized, "")
}

func (s *optionState) internalVersion() string {
	name, _ := s.props.Get("java.vm.name")
	version, _ := s.props.Get("java.vm.version")
	return fmt.Sprintf("%s (%s) for %s-%s", name, version, runtime.GOOS, runtime.GOARCH)
}

// maxAge is the largest age an object header can record.
const maxAge = 15

type moduleOption struct {
	option   string
	base     string
	internal bool
}

var numberedModuleOptions = []moduleOption{
	{option: "--add-reads=", base: "addreads"},
	{option: "--add-exports=", base: "addexports"},
	{option: "--add-opens=", base: "addopens"},
	{option: "--add-modules=", base: "addmods"},
	{option: "--enable-native-access=", base: "enable.native.access"},
}

var singleModuleOptions = []moduleOption{
	{option: "--illegal-native-access=", base: "illegal.native.access", internal: true},
	{option: "--limit-modules=", base: "limitmods", internal: true},
	{option: "--module-path=", base: "path"},
	{option: "--upgrade-module-path=", base: "upgrade.path"},
}

func (s *optionState) addNumberedModuleProperty(base, value string) error {
	n := s.moduleCounts[base]
	if n >= MaxModuleProperties {
		return &ArgumentError{Kind: KindResource, Option: "--" + base,
			Message: fmt.Sprintf("Property count limit exceeded: %s, limit=%d", normalize.ModulePropertyPrefix+base, MaxModuleProperties),
			Err:     ErrNoMemory}
	}
	s.moduleCounts[base] = n + 1
	s.props.UniqueAdd(normalize.ModuleProperty(base, n), value, Replace, false, true)
	return nil
}

func (s *optionState) patchModule(tail string) error {
	module, path, ok := strings.Cut(tail, "=")
	if !ok {
		return argError(KindSyntax, "--patch-module="+tail, "Missing '=' in --patch-module specification")
	}
	if module == "java.base" {
		for _, p := range s.cfg.Patches {
			if p.Module == "java.base" {
				return argError(KindSyntax, "--patch-module="+tail, "Cannot specify java.base more than once to --patch-module")
			}
		}
	}
	s.cfg.Patches = append(s.cfg.Patches, ModulePatch{Module: module, Path: path})
	return s.addNumberedModuleProperty("patch", tail)
}

func (s *optionState) addAgent(tail string, absolute bool) {
	name, options, _ := strings.Cut(tail, "=")
	s.cfg.Agents = append(s.cfg.Agents, Agent{Name: name, Options: options, AbsolutePath: absolute})
}

func (s *optionState) addProperty(opt, tail string, origin Origin) error {
	for _, unsupported := range []struct{ prefix, msg string }{
		{"java.endorsed.dirs=", "-Djava.endorsed.dirs=%s is not supported. Endorsed standards and standalone APIs\nin modular form will be supported via the concept of upgradeable modules."},
		{"java.ext.dirs=", "-Djava.ext.dirs=%s is not supported.  Use -classpath instead."},
	} {
		if value, ok := normalize.MatchOption(tail, unsupported.prefix); ok && value != "" && value != `""` {
			return argError(KindInvalidValue, opt, unsupported.msg, value)
		}
	}

	if normalize.IsReservedModuleProperty(tail) {
		s.needsModulePropertyWarning = true
		return nil
	}

	s.props.addFromOption(tail)

	if _, ok := normalize.MatchOption(tail, "com.sun.management"); ok {
		if err := s.set(opt, s.reg.setBool("ManagementServer", true, origin)); err != nil {
			return err
		}
		return s.addNumberedModuleProperty("addmods", "jdk.management.agent")
	}
	return nil
}

func (s *optionState) setHook(opt string, extra any) error {
	switch opt {
	case "vfprintf":
		if h, ok := extra.(VfprintfHook); ok {
			s.cfg.Hooks.Vfprintf = h
			return nil
		}
	case "exit":
		if h, ok := extra.(ExitHook); ok {
			s.cfg.Hooks.Exit = h
			return nil
		}
	case "abort":
		if h, ok := extra.(AbortHook); ok {
			s.cfg.Hooks.Abort = h
			return nil
		}
	}
	return argError(KindInvalidValue, opt, "Invalid hook for option '%s': %T", opt, extra)
}

// setMode resets the mode-dependent flags and applies mode. Every flag it
// touches is recorded with origin so the mode survives a flags replay.
func (s *optionState) setMode(mode ExecMode, origin Origin) error {
	s.cfg.Mode = mode
	s.props.UniqueAdd("java.vm.info", mode.String(), Replace, true, false)

	for _, name := range []string{"ClipInlining", "AlwaysCompileLoopMethods", "UseOnStackReplacement", "BackgroundCompilation"} {
		if err := s.reg.resetBool(name, origin); err != nil {
			return err
		}
	}
	setters := []flagSetter{
		boolSet("UseInterpreter", true),
		boolSet("UseCompiler", true),
		boolSet("UseLoopCounter", true),
	}
	switch mode {
	case ModeInt:
		setters = append(setters,
			boolSet("UseCompiler", false),
			boolSet("UseLoopCounter", false),
			boolSet("AlwaysCompileLoopMethods", false),
			boolSet("UseOnStackReplacement", false))
	case ModeComp:
		setters = append(setters,
			boolSet("UseInterpreter", false),
			boolSet("BackgroundCompilation", false),
			boolSet("ClipInlining", false))
	}
	for _, set := range setters {
		if err := set(s.reg, origin); err != nil {
			return err
		}
	}
	return nil
}

func (s *optionState) memorySize(opt, tail string, min, max uint64, format string) (uint64, error) {
	n, err := ParseMemorySize(tail, min, max)
	if err == nil {
		return n, nil
	}
	ae := argError(KindInvalidValue, opt, format, opt)
	ae.Err = err
	if errors.Is(err, ErrOutOfBounds) && n > max {
		ae.Message += "\nThe specified size exceeds the maximum representable size."
	}
	return 0, ae
}

func (s *optionState) heapFreeRatio(opt, tail, flag, format string, origin Origin) error {
	f, ok := parseDouble(tail)
	if !ok || f < 0 || f > 1 {
		return argError(KindInvalidValue, opt, format, opt)
	}
	return s.set(opt, s.reg.setUint(flag, uint64(f*100), origin))
}

// set wraps a flag set failure as an invalid value for opt.
func (s *optionState) set(opt string, err error) error {
	if err == nil {
		return nil
	}
	return &ArgumentError{Kind: KindInvalidValue, Option: opt, Message: err.Error(), Err: err}
}

type flagSetter func(r *Registry, origin Origin) error

func boolSet(name string, v bool) flagSetter {
	return func(r *Registry, origin Origin) error { return r.setBool(name, v, origin) }
}

func uintSet(name string, v uint64) flagSetter {
	return func(r *Registry, origin Origin) error { return r.setUint(name, v, origin) }
}

func (s *optionState) setAll(opt string, origin Origin, setters ...flagSetter) error {
	for _, set := range setters {
		if err := s.set(opt, set(s.reg, origin)); err != nil {
			return err
		}
	}
	return nil
}

// badOption reports an option no dispatcher recognized.
func badOption(opt string, ignore bool, optionType string) error {
	if ignore {
		return nil
	}
	if optionType != "" {
		optionType += " "
	}
	return argError(KindUnrecognized, opt, "Unrecognized %soption: %s", optionType, opt)
}

// matchAny matches opt against each exact name, also allowing a tail that
// starts with one of separators.
func matchAny(opt, separators string, names ...string) (string, bool) {
	for _, n := range names {
		if tail, ok := normalize.MatchExact(opt, n, separators); ok {
			return tail, true
		}
	}
	return "", false
}

// matchFirst returns the tail after the first matching prefix.
func matchFirst(opt string, prefixes ...string) (string, bool) {
	for _, p := range prefixes {
		if tail, ok := normalize.MatchOption(opt, p); ok {
			return tail, true
		}
	}
	return "", false
}
