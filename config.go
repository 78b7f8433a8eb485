package vmopts

// ExecMode is the execution mode selected by -Xint, -Xmixed or -Xcomp.
type ExecMode uint8

const (
	ModeMixed ExecMode = iota
	ModeInt
	ModeComp
)

func (m ExecMode) String() string {
	switch m {
	case ModeInt:
		return "interpreted mode"
	case ModeComp:
		return "compiled mode"
	default:
		return "mixed mode"
	}
}

// Agent is a native or Java agent requested on the command line.
type Agent struct {
	Name         string `json:"name" yaml:"name"`
	Options      string `json:"options,omitempty" yaml:"options,omitempty"`
	AbsolutePath bool   `json:"absolutePath,omitempty" yaml:"absolutePath,omitempty"`
}

// AssertionOption is one -ea/-da option with a class or package target.
type AssertionOption struct {
	Target string `json:"target" yaml:"target"`
	Enable bool   `json:"enable" yaml:"enable"`
}

// Assertions collects the assertion options.
type Assertions struct {
	UserDefault   bool              `json:"userDefault" yaml:"userDefault"`
	SystemDefault bool              `json:"systemDefault" yaml:"systemDefault"`
	Options       []AssertionOption `json:"options,omitempty" yaml:"options,omitempty"`
}

// ModulePatch is one --patch-module entry.
type ModulePatch struct {
	Module string `json:"module" yaml:"module"`
	Path   string `json:"path" yaml:"path"`
}

// Config is the frozen result of argument processing.
type Config struct {
	Version    Version
	Mode       ExecMode
	GC         string
	Heap       HeapSizing
	Assertions Assertions
	Agents     []Agent
	Patches    []ModulePatch
	Verbose    []string // -verbose categories
	LogOptions []string // -Xlog options, tail after "-Xlog"
	GCLogFile  string   // -Xloggc target
	Hooks      Hooks

	EnablePreview       bool
	FinalizationEnabled bool
	DumpSharedArchive   bool // -Xshare:dump

	// JVMArgs are the options applied from every container, in order,
	// excluding class path and launcher properties.
	JVMArgs []string

	// JVMFlags are the tokens of the settings file.
	JVMFlags []string

	// FlagsFile is the settings file that was processed, if any.
	FlagsFile string

	flags *Registry
	props *PropertyStore
}

func newConfig(version Version, reg *Registry, props *PropertyStore) *Config {
	return &Config{
		Version:             version,
		FinalizationEnabled: true,
		flags:               reg,
		props:               props,
	}
}

// Flags returns the frozen flag registry.
func (c *Config) Flags() *Registry { return c.flags }

// Properties returns the system properties.
func (c *Config) Properties() *PropertyStore { return c.props }

// Flag returns a declared flag.
func (c *Config) Flag(name string) (*Flag, bool) {
	f := c.flags.Lookup(name)
	return f, f != nil
}
