package vmopts

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// PrintFlags writes the unlocked flags as a "[Global flags]" table: type,
// name, value, attribute and origin. withComments appends each flag's doc.
func PrintFlags(w io.Writer, reg *Registry, withComments bool) error {
	if _, err := fmt.Fprintln(w, "[Global flags]"); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	for _, f := range reg.Flags() {
		if !reg.IsUnlocked(f) {
			continue
		}
		value := strings.ReplaceAll(f.Value().String(), "\n", "\\n")
		line := fmt.Sprintf("%9s %-40s = %-41s {%s} {%s}", f.Type(), f.Name(), value, f.Attribute(), f.Origin())
		if withComments && f.Doc() != "" {
			line += " // " + f.Doc()
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("write error: %w", err)
		}
	}
	return nil
}

// CommandLineFlags returns -XX: options that reproduce every non-default
// product flag. Diagnostic and experimental flags are left out.
// An accumulating string flag yields one option per line.
func CommandLineFlags(reg *Registry) []string {
	var out []string
	for _, f := range reg.Flags() {
		if f.IsDefault() || f.Attribute() != AttrProduct {
			continue
		}
		v := f.Value()
		switch f.Type() {
		case TypeBool:
			sign := "-"
			if v.b {
				sign = "+"
			}
			out = append(out, "-XX:"+sign+f.Name())
		case TypeStringList:
			for _, line := range strings.Split(v.s, "\n") {
				out = append(out, "-XX:"+f.Name()+"="+line)
			}
		default:
			out = append(out, "-XX:"+f.Name()+"="+v.String())
		}
	}
	return out
}

// DumpOption configures DumpEffective.
type DumpOption func(*dumpConfig)

type dumpConfig struct {
	withOrigins bool
	asJSON      bool
	asYAML      bool
	indent      string
}

// WithOrigins includes the origin of each flag in the output.
func WithOrigins() DumpOption {
	return func(cfg *dumpConfig) {
		cfg.withOrigins = true
	}
}

// AsJSON outputs the configuration as JSON instead of text.
func AsJSON() DumpOption {
	return func(cfg *dumpConfig) {
		cfg.asJSON = true
	}
}

// AsYAML outputs the configuration as YAML instead of text.
func AsYAML() DumpOption {
	return func(cfg *dumpConfig) {
		cfg.asYAML = true
	}
}

// WithIndent sets the indentation for JSON and YAML output.
// Default is two spaces ("  ").
func WithIndent(indent string) DumpOption {
	return func(cfg *dumpConfig) {
		cfg.indent = indent
	}
}

// effectiveDump is the structured form of a configuration.
type effectiveDump struct {
	Version    string            `json:"version" yaml:"version"`
	GC         string            `json:"gc" yaml:"gc"`
	Mode       string            `json:"mode" yaml:"mode"`
	Heap       HeapSizing        `json:"heap" yaml:"heap"`
	Flags      map[string]any    `json:"flags" yaml:"flags"`
	Origins    map[string]string `json:"origins,omitempty" yaml:"origins,omitempty"`
	Properties map[string]string `json:"properties" yaml:"properties"`
}

// DumpEffective writes the final flag values and readable system
// properties. Text output is one "key: value" line per entry.
func DumpEffective(w io.Writer, cfg *Config, opts ...DumpOption) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	config := dumpConfig{indent: "  "}
	for _, opt := range opts {
		opt(&config)
	}

	switch {
	case config.asJSON:
		return dumpAsJSON(w, buildDump(cfg, config.withOrigins), config)
	case config.asYAML:
		return dumpAsYAML(w, buildDump(cfg, config.withOrigins), config)
	}
	return dumpAsText(w, cfg, config)
}

func buildDump(cfg *Config, withOrigins bool) effectiveDump {
	d := effectiveDump{
		Version:    cfg.Version.String(),
		GC:         cfg.GC,
		Mode:       cfg.Mode.String(),
		Heap:       cfg.Heap,
		Flags:      make(map[string]any),
		Properties: make(map[string]string),
	}
	if withOrigins {
		d.Origins = make(map[string]string)
	}
	for _, f := range cfg.flags.Flags() {
		d.Flags[f.Name()] = f.Value().Interface()
		if withOrigins {
			d.Origins[f.Name()] = f.Origin().String()
		}
	}
	for _, p := range cfg.props.All() {
		if v, ok := cfg.props.GetReadable(p.Key); ok {
			d.Properties[p.Key] = v
		}
	}
	return d
}

func dumpAsText(w io.Writer, cfg *Config, config dumpConfig) error {
	for _, f := range cfg.flags.Flags() {
		line := fmt.Sprintf("flags.%s: %s", f.Name(), formatText(f.Value()))
		if config.withOrigins {
			line += fmt.Sprintf(" (origin: %s)", f.Origin())
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("write error: %w", err)
		}
	}
	for _, p := range cfg.props.All() {
		v, ok := cfg.props.GetReadable(p.Key)
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "properties.%s: %q\n", p.Key, v); err != nil {
			return fmt.Errorf("write error: %w", err)
		}
	}
	return nil
}

func formatText(v Value) string {
	if v.Type().isString() {
		return fmt.Sprintf("%q", v.String())
	}
	return v.String()
}

func dumpAsJSON(w io.Writer, d effectiveDump, config dumpConfig) error {
	var data []byte
	var err error
	if config.indent != "" {
		data, err = json.MarshalIndent(d, "", config.indent)
	} else {
		data, err = json.Marshal(d)
	}
	if err != nil {
		return fmt.Errorf("json marshal error: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	return nil
}

func dumpAsYAML(w io.Writer, d effectiveDump, config dumpConfig) error {
	enc := yaml.NewEncoder(w)
	if n := len(config.indent); n > 0 {
		enc.SetIndent(n)
	}
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("yaml marshal error: %w", err)
	}
	return enc.Close()
}
