package vmopts

// Provenance lists where every non-default flag value came from.
type Provenance struct {
	Flags []FlagProvenance
}

// FlagProvenance describes the origin of one flag value.
type FlagProvenance struct {
	Name    string `json:"name" yaml:"name"`
	Value   string `json:"value" yaml:"value"`
	Default string `json:"default" yaml:"default"`
	Origin  Origin `json:"origin" yaml:"origin"`
}

// Provenance reports the flags that no longer hold their declared default,
// sorted by name.
func (c *Config) Provenance() *Provenance {
	if c == nil || c.flags == nil {
		return &Provenance{}
	}
	return provenanceOf(c.flags)
}

func provenanceOf(reg *Registry) *Provenance {
	p := &Provenance{}
	for _, f := range reg.Flags() {
		if f.IsDefault() {
			continue
		}
		p.Flags = append(p.Flags, FlagProvenance{
			Name:    f.Name(),
			Value:   f.Value().String(),
			Default: f.Default().String(),
			Origin:  f.Origin(),
		})
	}
	return p
}

// Lookup returns the provenance of name.
func (p *Provenance) Lookup(name string) (FlagProvenance, bool) {
	for _, fp := range p.Flags {
		if fp.Name == name {
			return fp, true
		}
	}
	return FlagProvenance{}, false
}

// ByOrigin returns the flags last set from origin.
func (p *Provenance) ByOrigin(origin Origin) []FlagProvenance {
	var out []FlagProvenance
	for _, fp := range p.Flags {
		if fp.Origin == origin {
			out = append(out, fp)
		}
	}
	return out
}
