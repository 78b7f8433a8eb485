package vmopts

import (
	"fmt"
	"sort"
)

// FlagSpec declares a flag. Default, Min and Max use the option value grammar.
type FlagSpec struct {
	Name      string `toml:"name"`
	Type      string `toml:"type"`
	Default   string `toml:"default"`
	Attribute string `toml:"attribute"`
	Min       string `toml:"min"`
	Max       string `toml:"max"`
	Doc       string `toml:"doc"`
}

// Registry is the set of declared flags plus their lifecycle table.
// It is not safe for concurrent mutation; configuration is built on one
// goroutine and then frozen.
type Registry struct {
	flags     map[string]*Flag
	order     []*Flag
	lifecycle *LifecycleTable
	frozen    bool
}

// NewRegistry declares every flag in specs. A nil table means no flag has
// lifecycle metadata.
func NewRegistry(specs []FlagSpec, table *LifecycleTable) (*Registry, error) {
	if table == nil {
		table = NewLifecycleTable(nil, nil)
	}
	r := &Registry{
		flags:     make(map[string]*Flag, len(specs)),
		lifecycle: table,
	}
	for _, spec := range specs {
		f, err := newFlag(spec)
		if err != nil {
			return nil, err
		}
		if _, dup := r.flags[f.name]; dup {
			return nil, fmt.Errorf("flag %s declared twice", f.name)
		}
		r.flags[f.name] = f
		r.order = append(r.order, f)
	}
	return r, nil
}

func newFlag(spec FlagSpec) (*Flag, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("flag declaration without a name")
	}
	typ, err := ParseFlagType(spec.Type)
	if err != nil {
		return nil, fmt.Errorf("flag %s: %w", spec.Name, err)
	}

	f := &Flag{name: spec.Name, typ: typ, doc: spec.Doc}
	switch spec.Attribute {
	case "", "product":
		f.attr = AttrProduct
	case "diagnostic":
		f.attr = AttrDiagnostic
	case "experimental":
		f.attr = AttrExperimental
	default:
		return nil, fmt.Errorf("flag %s: unknown attribute %q", spec.Name, spec.Attribute)
	}

	def, err := ParseValue(typ, spec.Default)
	if err != nil {
		return nil, fmt.Errorf("flag %s: default %q: %w", spec.Name, spec.Default, err)
	}
	f.def, f.value = def, def

	if spec.Min != "" || spec.Max != "" {
		if !typ.isNumeric() {
			return nil, fmt.Errorf("flag %s: range on %s flag", spec.Name, typ)
		}
		lo, err := ParseValue(typ, spec.Min)
		if err != nil {
			return nil, fmt.Errorf("flag %s: min %q: %w", spec.Name, spec.Min, err)
		}
		hi, err := ParseValue(typ, spec.Max)
		if err != nil {
			return nil, fmt.Errorf("flag %s: max %q: %w", spec.Name, spec.Max, err)
		}
		f.rng = &Range{Min: lo, Max: hi}
		if !f.rng.contains(def) {
			return nil, fmt.Errorf("flag %s: default %s outside [%s, %s]", spec.Name, def, lo, hi)
		}
	}
	return f, nil
}

// Lookup returns the declared flag regardless of lock state.
func (r *Registry) Lookup(name string) *Flag {
	return r.flags[name]
}

// Find returns the flag only if it is usable: diagnostic and experimental
// flags stay hidden until their unlock flag is true.
func (r *Registry) Find(name string) *Flag {
	f := r.flags[name]
	if f == nil || !r.IsUnlocked(f) {
		return nil
	}
	return f
}

// IsUnlocked reports whether f may be set from options.
func (r *Registry) IsUnlocked(f *Flag) bool {
	switch f.attr {
	case AttrDiagnostic:
		return r.Bool("UnlockDiagnosticVMOptions")
	case AttrExperimental:
		return r.Bool("UnlockExperimentalVMOptions")
	default:
		return true
	}
}

// Declared reports whether name is a declared flag.
func (r *Registry) Declared(name string) bool {
	_, ok := r.flags[name]
	return ok
}

// Lifecycle returns the registry's lifecycle table.
func (r *Registry) Lifecycle() *LifecycleTable { return r.lifecycle }

// ResolveName follows the alias table.
func (r *Registry) ResolveName(raw string) string { return r.lifecycle.ResolveName(raw) }

// Classify returns the lifecycle state of raw at version current.
func (r *Registry) Classify(raw string, current Version) Lifecycle {
	return r.lifecycle.Classify(raw, current, r.Declared)
}

// Flags returns all flags sorted by name.
func (r *Registry) Flags() []*Flag {
	out := append([]*Flag(nil), r.order...)
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Names returns the names of all flags that can currently be set.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.order))
	for _, f := range r.order {
		if r.IsUnlocked(f) {
			names = append(names, f.name)
		}
	}
	return names
}

// Freeze makes every flag read-only.
func (r *Registry) Freeze() {
	r.frozen = true
	for _, f := range r.order {
		f.frozen = true
	}
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool { return r.frozen }

// Bool returns the value of a boolean flag, or false if it is not declared.
func (r *Registry) Bool(name string) bool {
	if f := r.flags[name]; f != nil && f.typ == TypeBool {
		return f.value.b
	}
	return false
}

// Int returns the value of a signed integer flag, or 0.
func (r *Registry) Int(name string) int64 {
	if f := r.flags[name]; f != nil && f.typ.isSigned() {
		return f.value.i
	}
	return 0
}

// Uint returns the value of an unsigned integer flag, or 0.
func (r *Registry) Uint(name string) uint64 {
	if f := r.flags[name]; f != nil && f.typ.isUnsigned() {
		return f.value.u
	}
	return 0
}

// Double returns the value of a double flag, or 0.
func (r *Registry) Double(name string) float64 {
	if f := r.flags[name]; f != nil && f.typ == TypeDouble {
		return f.value.f
	}
	return 0
}

// String returns the value of a string flag, or "".
func (r *Registry) String(name string) string {
	if f := r.flags[name]; f != nil && f.typ.isString() {
		return f.value.s
	}
	return ""
}

// IsDefault reports whether name was never set. Undeclared names are default.
func (r *Registry) IsDefault(name string) bool {
	f := r.flags[name]
	return f == nil || f.IsDefault()
}

func (r *Registry) flag(name string) (*Flag, error) {
	f := r.flags[name]
	if f == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrInvalidFlag)
	}
	return f, nil
}

func (r *Registry) setBool(name string, v bool, origin Origin) error {
	f, err := r.flag(name)
	if err != nil {
		return err
	}
	return f.SetBool(v, origin)
}

// setUint stores n in an unsigned flag of any width.
func (r *Registry) setUint(name string, n uint64, origin Origin) error {
	f, err := r.flag(name)
	if err != nil {
		return err
	}
	if !f.typ.isUnsigned() {
		return fmt.Errorf("%s is %s: %w", name, f.typ, ErrWrongFormat)
	}
	if f.typ.bitSize() < 64 && n > uint64(^uint32(0)) {
		return &RangeError{Flag: f, Value: fmt.Sprint(n)}
	}
	return f.Set(Value{typ: f.typ, u: n}, origin)
}

// setInt stores n in a signed flag of any width.
func (r *Registry) setInt(name string, n int64, origin Origin) error {
	f, err := r.flag(name)
	if err != nil {
		return err
	}
	if !f.typ.isSigned() {
		return fmt.Errorf("%s is %s: %w", name, f.typ, ErrWrongFormat)
	}
	if f.typ.bitSize() < 64 && (n < -1<<31 || n > 1<<31-1) {
		return &RangeError{Flag: f, Value: fmt.Sprint(n)}
	}
	return f.Set(Value{typ: f.typ, i: n}, origin)
}

func (r *Registry) setDouble(name string, v float64, origin Origin) error {
	f, err := r.flag(name)
	if err != nil {
		return err
	}
	return f.SetDouble(v, origin)
}

func (r *Registry) setString(name, v string, origin Origin) error {
	f, err := r.flag(name)
	if err != nil {
		return err
	}
	return f.SetString(v, origin)
}

// assignBool changes a boolean flag without recording a new origin.
func (r *Registry) assignBool(name string, v bool) {
	if f := r.flags[name]; f != nil && f.typ == TypeBool && !f.frozen {
		f.value.b = v
	}
}

// resetBool restores a boolean flag to its declared default value and
// records origin as the source of that value.
func (r *Registry) resetBool(name string, origin Origin) error {
	f, err := r.flag(name)
	if err != nil {
		return err
	}
	return f.Set(f.def, origin)
}

// assignInt changes a signed flag without recording a new origin.
func (r *Registry) assignInt(name string, n int64) {
	if f := r.flags[name]; f != nil && f.typ.isSigned() && !f.frozen {
		f.value.i = n
	}
}
