package vmopts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Azhovan/vmopts/internal/normalize"
	"go.uber.org/zap"
)

// Arguments gathers every option source and turns them into a frozen
// Config. Sources are applied in a fixed precedence order: resource, tool
// options, command line, extra options and, when the AOT create mode was
// requested, create-mode options. Later sources override earlier ones.
type Arguments struct {
	resource   Source
	tool       Source
	extra      Source
	createMode Source
	cmdLine    []Token

	ignoreUnrecognized bool
	reg              *Registry
	host             Host
	log              *zap.Logger
	out              io.Writer
	version          Version
	defaultFlagsFile string
	readFile         func(string) ([]byte, error)
	sysInfo          *SystemInfo
}

// NewArguments creates an orchestrator with no sources, the default flag
// table and the running host.
func NewArguments() *Arguments {
	return &Arguments{
		log:      zap.NewNop(),
		out:      os.Stdout,
		version:  DefaultVersion(),
		readFile: os.ReadFile,
	}
}

// WithResource sets the options embedded in the runtime image.
func (a *Arguments) WithResource(src Source) *Arguments {
	a.resource = src
	return a
}

// WithToolOptions sets the tool options source (JAVA_TOOL_OPTIONS).
func (a *Arguments) WithToolOptions(src Source) *Arguments {
	a.tool = src
	return a
}

// WithCommandLine appends literal command line options.
func (a *Arguments) WithCommandLine(args ...string) *Arguments {
	a.cmdLine = append(a.cmdLine, Tokens(OriginCommandLine, args...)...)
	return a
}

// WithCommandLineTokens appends command line tokens, which may carry hooks.
func (a *Arguments) WithCommandLineTokens(tokens ...Token) *Arguments {
	a.cmdLine = append(a.cmdLine, tokens...)
	return a
}

// WithIgnoreUnrecognized makes unrecognized command line and settings file
// options non-fatal. Environment sources are unaffected.
func (a *Arguments) WithIgnoreUnrecognized(ignore bool) *Arguments {
	a.ignoreUnrecognized = ignore
	return a
}

// WithExtraOptions sets the extra options source (_JAVA_OPTIONS).
func (a *Arguments) WithExtraOptions(src Source) *Arguments {
	a.extra = src
	return a
}

// WithCreateModeOptions sets the source consulted only when
// -XX:AOTMode=create is in effect (JDK_AOT_VM_OPTIONS).
func (a *Arguments) WithCreateModeOptions(src Source) *Arguments {
	a.createMode = src
	return a
}

// WithRegistry sets the flag registry to populate. The registry is frozen
// by Parse.
func (a *Arguments) WithRegistry(r *Registry) *Arguments {
	a.reg = r
	return a
}

// WithHost sets the machine description used by ergonomics.
func (a *Arguments) WithHost(h Host) *Arguments {
	a.host = h
	return a
}

// WithLogger sets the logger receiving VM warnings.
func (a *Arguments) WithLogger(l *zap.Logger) *Arguments {
	if l == nil {
		l = zap.NewNop()
	}
	a.log = l
	return a
}

// WithOutput sets where informational options print.
func (a *Arguments) WithOutput(w io.Writer) *Arguments {
	if w == nil {
		w = io.Discard
	}
	a.out = w
	return a
}

// WithVersion sets the product version lifecycle markers are compared to.
func (a *Arguments) WithVersion(v Version) *Arguments {
	a.version = v
	return a
}

// WithDefaultFlagsFile sets a settings file that is processed when present
// and no -XX:Flags= option names another one.
func (a *Arguments) WithDefaultFlagsFile(path string) *Arguments {
	a.defaultFlagsFile = path
	return a
}

// WithReadFile replaces the function used to read options and settings
// files.
func (a *Arguments) WithReadFile(fn func(string) ([]byte, error)) *Arguments {
	if fn == nil {
		fn = os.ReadFile
	}
	a.readFile = fn
	return a
}

// WithSystemInfo sets the values of the standard system properties.
func (a *Arguments) WithSystemInfo(info SystemInfo) *Arguments {
	a.sysInfo = &info
	return a
}

// Parse processes every source, checks consistency, runs ergonomics and
// returns the frozen configuration. Informational options such as
// -XX:+PrintFlagsInitial end processing with an *ExitError.
func (a *Arguments) Parse(ctx context.Context) (*Config, error) {
	reg := a.reg
	if reg == nil {
		reg = DefaultRegistry()
	}
	host := a.host
	if host == nil {
		host = HostInfo()
	}

	props := NewPropertyStore("")
	props.InitSystemProperties(a.systemInfo())
	cfg := newConfig(a.version, reg, props)

	exp := NewExpander(reg, a.out, a.readFile)

	tool, err := a.loadEnv(ctx, a.tool, host)
	if err != nil {
		return nil, err
	}
	extra, err := a.loadEnv(ctx, a.extra, host)
	if err != nil {
		return nil, err
	}
	resource, err := a.load(ctx, a.resource, ContainerResource, OriginResource)
	if err != nil {
		return nil, err
	}
	cmd := &Container{
		Name:               ContainerCommandLine,
		Origin:             OriginCommandLine,
		Tokens:             withOrigin(a.cmdLine, OriginCommandLine),
		IgnoreUnrecognized: a.ignoreUnrecognized,
	}

	// Files are expanded in a different order than options are applied.
	for _, c := range []*Container{tool, cmd, extra, resource} {
		if err := exp.Expand(c); err != nil {
			return nil, err
		}
	}

	if err := a.processSettingsFile(exp, reg, cfg); err != nil {
		return nil, err
	}

	containers := []*Container{resource, tool, cmd, extra}
	if a.createModeRequested(containers, reg) {
		create, err := a.loadEnv(ctx, a.createMode, host)
		if err != nil {
			return nil, err
		}
		if err := exp.Expand(create); err != nil {
			return nil, err
		}
		for _, opt := range create.Texts() {
			if strings.HasPrefix(opt, "-XX:AOTMode=") && opt != "-XX:AOTMode=create" {
				return nil, argError(KindInvalidValue, opt, "Option %s cannot be specified in JDK_AOT_VM_OPTIONS", opt)
			}
		}
		containers = append(containers, create)
	}

	if exp.IgnoreUnrecognized || reg.Bool("IgnoreUnrecognizedVMOptions") {
		// The resource ships with the runtime and must not carry bad options.
		for _, c := range containers[1:] {
			c.IgnoreUnrecognized = true
		}
	}

	if exp.PrintVMOptions {
		for _, c := range containers[1:] {
			a.printOptions(c)
		}
	}

	parser := NewParser(reg, a.version, a.log)
	state := newOptionState(reg, parser, props, cfg, a.log, a.out)
	for _, c := range containers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := state.applyContainer(c); err != nil {
			return nil, err
		}
	}

	ergo := NewErgonomics(reg, host, a.log)
	if err := a.finalize(state, ergo, host); err != nil {
		return nil, err
	}
	if err := a.postParse(state); err != nil {
		return nil, err
	}

	gc, heap, err := ergo.Apply()
	if err != nil {
		return nil, err
	}
	cfg.GC = gc
	cfg.Heap = heap

	reg.Freeze()

	if reg.Bool("PrintFlagsFinal") {
		if err := PrintFlags(a.out, reg, false); err != nil {
			return nil, err
		}
	}
	if reg.Bool("PrintCommandLineFlags") {
		fmt.Fprintln(a.out, strings.Join(CommandLineFlags(reg), " "))
	}
	return cfg, nil
}

func (a *Arguments) systemInfo() SystemInfo {
	if a.sysInfo != nil {
		return *a.sysInfo
	}
	return SystemInfo{
		VMName:      "vmopts",
		VMVersion:   a.version.String(),
		VMVendor:    "vmopts",
		VMInfo:      ModeMixed.String(),
		SpecVersion: a.version.String(),
	}
}

func (a *Arguments) load(ctx context.Context, src Source, name string, origin Origin) (*Container, error) {
	c := &Container{Name: name, Origin: origin}
	if src == nil {
		return c, nil
	}
	tokens, err := src.Load(ctx)
	if err != nil {
		var ae *ArgumentError
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, &ArgumentError{Kind: KindIO, Option: src.Name(),
			Message: fmt.Sprintf("Could not read options from %s", src.Name()), Err: err}
	}
	c.Tokens = withOrigin(tokens, origin)
	return c, nil
}

// loadEnv loads an environment source. Environment options are ignored for
// processes running with special privileges.
func (a *Arguments) loadEnv(ctx context.Context, src Source, host Host) (*Container, error) {
	if src == nil || host.HasSpecialPrivileges() {
		name := ""
		if src != nil {
			name = src.Name()
		}
		return &Container{Name: name, Origin: OriginEnvironment}, nil
	}
	return a.load(ctx, src, src.Name(), OriginEnvironment)
}

func withOrigin(tokens []Token, origin Origin) []Token {
	out := make([]Token, len(tokens))
	for i, t := range tokens {
		t.Origin = origin
		out[i] = t
	}
	return out
}

// processSettingsFile applies the -XX:Flags= file, or the default settings
// file when one is configured and exists.
func (a *Arguments) processSettingsFile(exp *Expander, reg *Registry, cfg *Config) error {
	path, required := exp.FlagsFile, true
	if path == "" {
		path, required = a.defaultFlagsFile, false
	}
	if path == "" {
		return nil
	}

	texts, err := exp.ReadSettingsFile(path, required)
	if err != nil {
		return err
	}
	if texts == nil && !required {
		return nil
	}

	cfg.FlagsFile = path
	cfg.JVMFlags = texts
	parser := NewParser(reg, a.version, a.log)
	ignore := a.ignoreUnrecognized || exp.IgnoreUnrecognized || reg.Bool("IgnoreUnrecognizedVMOptions")
	for _, t := range texts {
		if err := parser.ProcessArgument(t, ignore, OriginConfigFile); err != nil {
			return err
		}
	}
	return nil
}

// createModeRequested scans the containers backward for the last
// -XX:AOTMode= option. Without one, the current AOTMode flag decides.
func (a *Arguments) createModeRequested(containers []*Container, reg *Registry) bool {
	if a.createMode == nil {
		return false
	}
	for i := len(containers) - 1; i >= 0; i-- {
		tokens := containers[i].Tokens
		for j := len(tokens) - 1; j >= 0; j-- {
			if mode, ok := normalize.MatchOption(tokens[j].Text, "-XX:AOTMode="); ok {
				return mode == "create"
			}
		}
	}
	return reg.String("AOTMode") == "create"
}

func (a *Arguments) printOptions(c *Container) {
	for _, t := range c.Tokens {
		if tail, ok := normalize.MatchOption(t.Text, "-XX:"); ok {
			fmt.Fprintf(a.out, "VM option '%s'\n", tail)
		}
	}
}

// finalize applies the flags that depend on the complete option set and
// runs the consistency checks.
func (a *Arguments) finalize(state *optionState, ergo *Ergonomics, host Host) error {
	reg := state.reg

	if reg.Bool("AggressiveHeap") {
		if err := ergo.setAggressiveHeap(); err != nil {
			return err
		}
	}

	// A zero scaling disables compilation like -Xint.
	if reg.Double("CompileThresholdScaling") == 0 {
		if err := state.setMode(ModeInt, OriginErgonomic); err != nil {
			return err
		}
	}

	if reg.IsDefault("InitialTenuringThreshold") && reg.Uint("InitialTenuringThreshold") > reg.Uint("MaxTenuringThreshold") {
		if err := reg.setUint("InitialTenuringThreshold", reg.Uint("MaxTenuringThreshold"), OriginErgonomic); err != nil {
			return err
		}
	}

	return checkConsistency(reg, host, a.log)
}

func (a *Arguments) postParse(state *optionState) error {
	reg := state.reg

	if state.needsModulePropertyWarning {
		a.log.Warn("Ignoring system property options whose names match the '-Djdk.module.*'. names that are reserved for internal use.")
	}

	if reg.Int("ScavengeRootsInCode") == 0 {
		if !reg.IsDefault("ScavengeRootsInCode") {
			a.log.Warn("Forcing ScavengeRootsInCode non-zero")
		}
		reg.assignInt("ScavengeRootsInCode", 1)
	}

	return checkNativeMemoryTracking(reg, a.log)
}
