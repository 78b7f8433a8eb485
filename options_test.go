package vmopts

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type optionsHarness struct {
	state *optionState
	reg   *Registry
	cfg   *Config
	props *PropertyStore
	logs  *observer.ObservedLogs
	out   *bytes.Buffer
}

func newOptionsHarness(t *testing.T) *optionsHarness {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	reg := DefaultRegistry()
	props := NewPropertyStore(":")
	props.InitSystemProperties(SystemInfo{VMName: "TestVM", VMVersion: "26", VMInfo: ModeMixed.String()})
	cfg := newConfig(V(26), reg, props)
	out := &bytes.Buffer{}

	return &optionsHarness{
		state: newOptionState(reg, NewParser(reg, V(26), logger), props, cfg, logger, out),
		reg:   reg,
		cfg:   cfg,
		props: props,
		logs:  logs,
		out:   out,
	}
}

func (h *optionsHarness) apply(opts ...string) error {
	for _, opt := range opts {
		if err := h.state.applyOption(Token{Text: opt}, OriginCommandLine, false); err != nil {
			return err
		}
	}
	return nil
}

func (h *optionsHarness) prop(key string) string {
	v, _ := h.props.Get(key)
	return v
}

func TestOptions_HeapSizes(t *testing.T) {
	h := newOptionsHarness(t)
	require.NoError(t, h.apply("-Xms64m", "-Xmx256m", "-Xmn32m"))

	assert.Equal(t, uint64(64<<20), h.reg.Uint("MinHeapSize"))
	assert.Equal(t, uint64(64<<20), h.reg.Uint("InitialHeapSize"))
	assert.Equal(t, uint64(256<<20), h.reg.Uint("MaxHeapSize"))
	assert.Equal(t, uint64(32<<20), h.reg.Uint("NewSize"))
	assert.Equal(t, uint64(32<<20), h.reg.Uint("MaxNewSize"))
	assert.Equal(t, OriginCommandLine, h.reg.Lookup("MaxHeapSize").Origin())

	require.NoError(t, h.apply("-XX:MaxHeapSize=512m"))
	assert.Equal(t, uint64(512<<20), h.reg.Uint("MaxHeapSize"))
}

func TestOptions_HeapFreeRatio(t *testing.T) {
	h := newOptionsHarness(t)
	require.NoError(t, h.apply("-Xminf0.25", "-Xmaxf1"))

	assert.Equal(t, uint64(25), h.reg.Uint("MinHeapFreeRatio"))
	assert.Equal(t, uint64(100), h.reg.Uint("MaxHeapFreeRatio"))
}

func TestOptions_SizeErrors(t *testing.T) {
	tests := []struct {
		opt  string
		msg  string
		huge bool
	}{
		{opt: "-Xmx0", msg: "Invalid maximum heap size: -Xmx0"},
		{opt: "-Xmxlots", msg: "Invalid maximum heap size: -Xmxlots"},
		{opt: "-Xmn0", msg: "Invalid initial young generation size: -Xmn0"},
		{opt: "-Xss-1", msg: "Invalid thread stack size: -Xss-1"},
		{opt: "-Xss2g", msg: "Invalid thread stack size: -Xss2g", huge: true},
		{opt: "-Xmaxjitcodesize0", msg: "Invalid maximum code cache size: -Xmaxjitcodesize0."},
		{opt: "-Xmaxf1.5", msg: "Bad max heap free percentage size: -Xmaxf1.5"},
		{opt: "-Xminf-0.1", msg: "Bad min heap free percentage size: -Xminf-0.1"},
		{opt: "-Xminfhalf", msg: "Bad min heap free percentage size: -Xminfhalf"},
	}
	for _, tt := range tests {
		t.Run(tt.opt, func(t *testing.T) {
			h := newOptionsHarness(t)
			err := h.apply(tt.opt)

			var argErr *ArgumentError
			require.True(t, errors.As(err, &argErr), "got %v", err)
			assert.Equal(t, KindInvalidValue, argErr.Kind)
			assert.Equal(t, StatusInvalid, StatusOf(err))
			assert.Contains(t, argErr.Message, tt.msg)
			if tt.huge {
				assert.Contains(t, argErr.Message, "The specified size exceeds the maximum representable size.")
			}
		})
	}
}

func TestOptions_ThreadStackSize(t *testing.T) {
	h := newOptionsHarness(t)

	require.NoError(t, h.apply("-Xss1m"))
	assert.Equal(t, int64(1024), h.reg.Int("ThreadStackSize"))

	require.NoError(t, h.apply("-Xss1025"))
	assert.Equal(t, int64(2), h.reg.Int("ThreadStackSize"), "rounded up to whole kilobytes")

	require.NoError(t, h.apply("-Xss0"))
	assert.Equal(t, int64(0), h.reg.Int("ThreadStackSize"))
}

func TestOptions_ExecutionMode(t *testing.T) {
	h := newOptionsHarness(t)

	require.NoError(t, h.apply("-Xint"))
	assert.Equal(t, ModeInt, h.cfg.Mode)
	assert.False(t, h.reg.Bool("UseCompiler"))
	assert.False(t, h.reg.Bool("UseOnStackReplacement"))
	assert.Equal(t, OriginCommandLine, h.reg.Lookup("UseCompiler").Origin())
	assert.Equal(t, "interpreted mode", h.prop("java.vm.info"))

	require.NoError(t, h.apply("-Xcomp"))
	assert.Equal(t, ModeComp, h.cfg.Mode)
	assert.True(t, h.reg.Bool("UseCompiler"))
	assert.False(t, h.reg.Bool("UseInterpreter"))
	assert.False(t, h.reg.Bool("BackgroundCompilation"))

	require.NoError(t, h.apply("-Xmixed"))
	assert.Equal(t, ModeMixed, h.cfg.Mode)
	assert.True(t, h.reg.Bool("UseInterpreter"))
	assert.True(t, h.reg.Bool("BackgroundCompilation"))
	assert.Equal(t, "mixed mode", h.prop("java.vm.info"))
}

func TestOptions_Assertions(t *testing.T) {
	h := newOptionsHarness(t)
	require.NoError(t, h.apply("-ea", "-da:com.example...", "-enableassertions:Main", "-esa"))

	assert.True(t, h.cfg.Assertions.UserDefault)
	assert.True(t, h.cfg.Assertions.SystemDefault)
	assert.Equal(t, []AssertionOption{
		{Target: "com.example...", Enable: false},
		{Target: "Main", Enable: true},
	}, h.cfg.Assertions.Options)

	err := h.apply("-eax")
	assert.EqualError(t, err, "Unrecognized option: -eax")
}

func TestOptions_SystemProperties(t *testing.T) {
	h := newOptionsHarness(t)
	require.NoError(t, h.apply("-Dapp.name=demo", "-Dempty", "-Djava.class.path=/cp"))

	assert.Equal(t, "demo", h.prop("app.name"))
	v, ok := h.props.Get("empty")
	assert.True(t, ok)
	assert.Equal(t, "", v)
	assert.Equal(t, []string{"-Dapp.name=demo", "-Dempty"}, h.cfg.JVMArgs, "class path is not a VM argument")
}

func TestOptions_UnsupportedProperties(t *testing.T) {
	h := newOptionsHarness(t)

	err := h.apply("-Djava.ext.dirs=/ext")
	assert.ErrorContains(t, err, "-Djava.ext.dirs=/ext is not supported.")

	err = h.apply("-Djava.endorsed.dirs=/e")
	assert.ErrorContains(t, err, "-Djava.endorsed.dirs=/e is not supported.")

	assert.NoError(t, h.apply(`-Djava.ext.dirs=""`), "an empty value is tolerated")
}

func TestOptions_ReservedModuleProperty(t *testing.T) {
	h := newOptionsHarness(t)
	require.NoError(t, h.apply("-Djdk.module.addmods=evil"))

	_, ok := h.props.Get("jdk.module.addmods")
	assert.False(t, ok)
	assert.True(t, h.state.needsModulePropertyWarning)
}

func TestOptions_ManagementProperty(t *testing.T) {
	h := newOptionsHarness(t)
	require.NoError(t, h.apply("-Dcom.sun.management.jmxremote"))

	assert.True(t, h.reg.Bool("ManagementServer"))
	assert.Equal(t, "jdk.management.agent", h.prop("jdk.module.addmods.0"))
}

func TestOptions_ModuleOptions(t *testing.T) {
	h := newOptionsHarness(t)
	require.NoError(t, h.apply(
		"--add-modules=java.sql",
		"--add-modules=java.xml",
		"--add-reads=a=b",
		"--module-path=/mods",
		"--limit-modules=java.base",
	))

	assert.Equal(t, "java.sql", h.prop("jdk.module.addmods.0"))
	assert.Equal(t, "java.xml", h.prop("jdk.module.addmods.1"))
	assert.Equal(t, "a=b", h.prop("jdk.module.addreads.0"))
	assert.Equal(t, "/mods", h.prop("jdk.module.path"))

	_, readable := h.props.GetReadable("jdk.module.limitmods")
	assert.False(t, readable)
}

func TestOptions_ModulePropertyLimit(t *testing.T) {
	h := newOptionsHarness(t)
	h.state.moduleCounts["addreads"] = MaxModuleProperties

	err := h.apply("--add-reads=a=b")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMemory)
	assert.Equal(t, StatusNoMemory, StatusOf(err))
	assert.Contains(t, err.Error(), "Property count limit exceeded: jdk.module.addreads, limit=1000")
}

func TestOptions_PatchModule(t *testing.T) {
	h := newOptionsHarness(t)
	require.NoError(t, h.apply("--patch-module=java.base=/patch"))
	assert.Equal(t, []ModulePatch{{Module: "java.base", Path: "/patch"}}, h.cfg.Patches)
	assert.Equal(t, "java.base=/patch", h.prop("jdk.module.patch.0"))

	assert.ErrorContains(t, h.apply("--patch-module=java.base=/other"), "Cannot specify java.base more than once")
	assert.ErrorContains(t, h.apply("--patch-module=nomodule"), "Missing '=' in --patch-module specification")
}

func TestOptions_Agents(t *testing.T) {
	h := newOptionsHarness(t)
	require.NoError(t, h.apply(
		"-agentlib:jdwp=transport=dt_socket,server=y",
		"-agentpath:/opt/agent.so",
		"-javaagent:agent.jar=verbose",
	))

	assert.Equal(t, []Agent{
		{Name: "jdwp", Options: "transport=dt_socket,server=y"},
		{Name: "/opt/agent.so", AbsolutePath: true},
		{Name: "instrument", Options: "agent.jar=verbose"},
	}, h.cfg.Agents)
	assert.Equal(t, "java.instrument", h.prop("jdk.module.addmods.0"))
}

func TestOptions_Tenuring(t *testing.T) {
	h := newOptionsHarness(t)

	require.NoError(t, h.apply("-XX:+NeverTenure"))
	assert.True(t, h.reg.Bool("NeverTenure"))
	assert.Equal(t, uint64(16), h.reg.Uint("MaxTenuringThreshold"))

	require.NoError(t, h.apply("-XX:MaxTenuringThreshold=0"))
	assert.False(t, h.reg.Bool("NeverTenure"))
	assert.True(t, h.reg.Bool("AlwaysTenure"))

	err := h.apply("-XX:MaxTenuringThreshold=17")
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestOptions_ExclusiveOutputFlags(t *testing.T) {
	h := newOptionsHarness(t)

	require.NoError(t, h.apply("-XX:+DisplayVMOutputToStderr", "-XX:+DisplayVMOutputToStdout"))
	assert.True(t, h.reg.Bool("DisplayVMOutputToStdout"))
	assert.False(t, h.reg.Bool("DisplayVMOutputToStderr"))

	require.NoError(t, h.apply("-XX:+ErrorFileToStdout", "-XX:+ErrorFileToStderr"))
	assert.True(t, h.reg.Bool("ErrorFileToStderr"))
	assert.False(t, h.reg.Bool("ErrorFileToStdout"))
}

func TestOptions_Share(t *testing.T) {
	h := newOptionsHarness(t)

	require.NoError(t, h.apply("-Xshare:on"))
	assert.True(t, h.reg.Bool("RequireSharedSpaces"))

	require.NoError(t, h.apply("-Xshare:off"))
	assert.False(t, h.reg.Bool("UseSharedSpaces"))
	assert.False(t, h.reg.Bool("RequireSharedSpaces"))
	assert.Equal(t, OriginCommandLine, h.reg.Lookup("UseSharedSpaces").Origin())

	require.NoError(t, h.apply("-Xshare:dump"))
	assert.True(t, h.cfg.DumpSharedArchive)
}

func TestOptions_Verify(t *testing.T) {
	h := newOptionsHarness(t)

	require.NoError(t, h.apply("-Xverify:none"))
	assert.False(t, h.reg.Bool("BytecodeVerificationLocal"))
	assert.False(t, h.reg.Bool("BytecodeVerificationRemote"))
	assert.Equal(t, 1, h.logs.FilterMessageSnippet("-Xverify:none").Len())

	require.NoError(t, h.apply("-Xverify:remote"))
	assert.True(t, h.reg.Bool("BytecodeVerificationRemote"))

	assert.EqualError(t, h.apply("-Xverify:sometimes"), "Unrecognized verification option: -Xverify:sometimes")
}

func TestOptions_Logging(t *testing.T) {
	h := newOptionsHarness(t)
	require.NoError(t, h.apply("-Xlog", "-Xlog:gc*:file=gc.log", "-Xloggc:old.log"))

	assert.Equal(t, []string{"", "gc*:file=gc.log"}, h.cfg.LogOptions)
	assert.Equal(t, "old.log", h.cfg.GCLogFile)
	assert.Equal(t, 1, h.logs.FilterMessage("-Xloggc is deprecated. Will use -Xlog:gc:old.log instead.").Len())

	assert.ErrorContains(t, h.apply("-Xlogging"), "Invalid -Xlog option '-Xlogging'")
}

func TestOptions_Finalization(t *testing.T) {
	h := newOptionsHarness(t)
	assert.True(t, h.cfg.FinalizationEnabled)

	require.NoError(t, h.apply("--finalization=disabled"))
	assert.False(t, h.cfg.FinalizationEnabled)

	assert.ErrorContains(t, h.apply("--finalization=maybe"), "Invalid finalization value 'maybe'")
}

func TestOptions_Hooks(t *testing.T) {
	h := newOptionsHarness(t)

	exited := -1
	tok := Token{Text: "exit", Extra: ExitHook(func(code int) { exited = code })}
	require.NoError(t, h.state.applyOption(tok, OriginCommandLine, false))
	require.NotNil(t, h.cfg.Hooks.Exit)
	h.cfg.Hooks.Exit(3)
	assert.Equal(t, 3, exited)

	err := h.state.applyOption(Token{Text: "abort", Extra: "not a func"}, OriginCommandLine, false)
	assert.ErrorContains(t, err, "Invalid hook for option 'abort'")
}

func TestOptions_InternalVersion(t *testing.T) {
	h := newOptionsHarness(t)

	err := h.apply("-Xinternalversion")
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 0, exitErr.Code)
	assert.Contains(t, h.out.String(), "TestVM (26) for ")
}

func TestOptions_BootClassPath(t *testing.T) {
	h := newOptionsHarness(t)

	require.NoError(t, h.apply("-Xbootclasspath/a:/one", "-Xbootclasspath/a:/two"))
	v, ok := h.props.GetReadable(bootClassPathAppend)
	assert.True(t, ok)
	assert.Equal(t, "/one:/two", v)

	assert.ErrorContains(t, h.apply("-Xbootclasspath:/x"), "-Xbootclasspath is no longer a supported option.")
	assert.ErrorContains(t, h.apply("-Xbootclasspath/p:/x"), "-Xbootclasspath/p is no longer a supported option.")
}

func TestOptions_Misc(t *testing.T) {
	h := newOptionsHarness(t)
	require.NoError(t, h.apply("-Xnoclassgc", "-Xbatch", "-Xrs", "-Xcheck:jni", "--enable-preview",
		"--sun-misc-unsafe-memory-access=deny", "-verbose:gc", "-verbose", "-native"))

	assert.False(t, h.reg.Bool("ClassUnloading"))
	assert.False(t, h.reg.Bool("BackgroundCompilation"))
	assert.True(t, h.reg.Bool("ReduceSignalUsage"))
	assert.True(t, h.reg.Bool("CheckJNICalls"))
	assert.True(t, h.cfg.EnablePreview)
	assert.Equal(t, "deny", h.prop("sun.misc.unsafe.memory.access"))
	assert.Equal(t, []string{"gc", "class"}, h.cfg.Verbose)

	assert.ErrorContains(t, h.apply("--sun-misc-unsafe-memory-access=maybe"), "not recognized: 'maybe'")
	assert.ErrorContains(t, h.apply("-green"), "Green threads support not available")
	assert.ErrorContains(t, h.apply("-Xcheck:all"), "Unrecognized check option: -Xcheck:all")
}

func TestOptions_RemovedOptionsWarn(t *testing.T) {
	h := newOptionsHarness(t)
	require.NoError(t, h.apply("-Xprof", "--illegal-access=permit", "-Xdebug"))

	assert.Equal(t, 1, h.logs.FilterMessage("Ignoring option -Xprof; support was removed in 10").Len())
	assert.Equal(t, 1, h.logs.FilterMessage("Ignoring option --illegal-access=permit; support was removed in 17").Len())
	assert.Equal(t, 1, h.logs.FilterMessageSnippet("-Xdebug was deprecated").Len())
}

func TestOptions_Unrecognized(t *testing.T) {
	h := newOptionsHarness(t)

	err := h.apply("-Xfoo")
	var argErr *ArgumentError
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, KindUnrecognized, argErr.Kind)
	assert.Equal(t, "Unrecognized option: -Xfoo", argErr.Message)

	assert.NoError(t, h.state.applyOption(Token{Text: "-Xfoo"}, OriginCommandLine, true))
}

func TestOptions_XXPassThrough(t *testing.T) {
	h := newOptionsHarness(t)
	require.NoError(t, h.apply("-XX:+UseSerialGC", "-XX:Flags=.hotspotrc", "-XX:VMOptionsFile=x"))

	assert.True(t, h.reg.Bool("UseSerialGC"))
	assert.Equal(t, OriginCommandLine, h.reg.Lookup("UseSerialGC").Origin())
}
