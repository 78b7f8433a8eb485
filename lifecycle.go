package vmopts

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a product release. The zero Version is undefined.
type Version struct {
	Major    int
	Minor    int
	Security int
}

// V is shorthand for a feature-release version.
func V(major int) Version { return Version{Major: major} }

// ParseVersion parses "25", "25.0.1" and similar. Empty text yields the
// undefined version.
func ParseVersion(s string) (Version, error) {
	if s == "" {
		return Version{}, nil
	}
	parts := strings.SplitN(s, ".", 3)
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version %q", s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Security: nums[2]}, nil
}

// IsUndefined reports whether v is the zero version.
func (v Version) IsUndefined() bool { return v == Version{} }

// Compare returns -1, 0 or 1.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Security, o.Security)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// reached reports whether marker is defined and v is at or past it.
func (v Version) reached(marker Version) bool {
	return !marker.IsUndefined() && v.Compare(marker) >= 0
}

// before reports whether v precedes marker. An undefined marker is never reached.
func (v Version) before(marker Version) bool {
	return marker.IsUndefined() || v.Compare(marker) < 0
}

func (v Version) String() string {
	switch {
	case v.IsUndefined():
		return "undefined"
	case v.Security != 0:
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Security)
	case v.Minor != 0:
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	default:
		return strconv.Itoa(v.Major)
	}
}

// LifecycleRecord tracks when a flag was deprecated, made obsolete and expired.
type LifecycleRecord struct {
	Name         string
	DeprecatedIn Version
	ObsoleteIn   Version
	ExpiredIn    Version
}

// State is the lifecycle state of a flag name at a given version.
type State uint8

const (
	StateActive State = iota
	StateDeprecated
	StateObsolete
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateDeprecated:
		return "deprecated"
	case StateObsolete:
		return "obsolete"
	case StateExpired:
		return "expired"
	default:
		return "active"
	}
}

// Lifecycle is the classification of a flag name.
type Lifecycle struct {
	State     State
	Since     Version // Marker that produced State (undefined for plain active flags)
	Canonical string  // Name after alias resolution
	Aliased   bool    // Raw name was an alias

	// Grace is set when the flag is past its obsolete-in marker but is still
	// declared; it is processed normally with a warning.
	Grace bool
}

// LifecycleTable holds the special-flag records and the alias table.
type LifecycleTable struct {
	records []LifecycleRecord
	byName  map[string]int
	aliases map[string]string
	order   []string // alias names, declaration order
}

// NewLifecycleTable builds a table. Duplicate names are kept so Verify can
// report them; lookups use the first record.
func NewLifecycleTable(records []LifecycleRecord, aliases map[string]string) *LifecycleTable {
	t := &LifecycleTable{
		records: append([]LifecycleRecord(nil), records...),
		byName:  make(map[string]int, len(records)),
		aliases: make(map[string]string, len(aliases)),
	}
	for i, r := range t.records {
		if _, ok := t.byName[r.Name]; !ok {
			t.byName[r.Name] = i
		}
	}
	for a, target := range aliases {
		t.AddAlias(a, target)
	}
	return t
}

// AddAlias maps alias to canonical.
func (t *LifecycleTable) AddAlias(alias, canonical string) {
	if _, ok := t.aliases[alias]; !ok {
		t.order = append(t.order, alias)
	}
	t.aliases[alias] = canonical
}

// Record returns the lifecycle record for name.
func (t *LifecycleTable) Record(name string) (LifecycleRecord, bool) {
	if t == nil {
		return LifecycleRecord{}, false
	}
	i, ok := t.byName[name]
	if !ok {
		return LifecycleRecord{}, false
	}
	return t.records[i], true
}

// Records returns a copy of all records in declaration order.
func (t *LifecycleTable) Records() []LifecycleRecord {
	return append([]LifecycleRecord(nil), t.records...)
}

// ResolveName follows the alias table one hop.
func (t *LifecycleTable) ResolveName(raw string) string {
	if t == nil {
		return raw
	}
	if c, ok := t.aliases[raw]; ok {
		return c
	}
	return raw
}

// Classify determines the lifecycle state of raw at version current.
// declared reports whether a canonical name is still registered.
func (t *LifecycleTable) Classify(raw string, current Version, declared func(string) bool) Lifecycle {
	canonical := t.ResolveName(raw)
	lc := Lifecycle{State: StateActive, Canonical: canonical, Aliased: canonical != raw}

	rec, ok := t.Record(raw)
	if ok && lc.Aliased {
		// Alias resolution never expires.
		rec.ExpiredIn = Version{}
	} else if !ok {
		rec, ok = t.Record(canonical)
	}
	if !ok {
		return lc
	}

	switch {
	case current.reached(rec.ObsoleteIn):
		switch {
		case current.reached(rec.ExpiredIn):
			lc.State, lc.Since = StateExpired, rec.ExpiredIn
		case declared != nil && declared(canonical):
			lc.Since, lc.Grace = rec.ObsoleteIn, true
		default:
			lc.State, lc.Since = StateObsolete, rec.ObsoleteIn
		}
	case current.reached(rec.ExpiredIn):
		lc.State, lc.Since = StateExpired, rec.ExpiredIn
	case current.reached(rec.DeprecatedIn) && current.before(rec.ObsoleteIn) && current.before(rec.ExpiredIn):
		lc.State, lc.Since = StateDeprecated, rec.DeprecatedIn
	}
	return lc
}

// LifecycleProblem is one inconsistency found by Verify.
type LifecycleProblem struct {
	Name    string
	Message string
	Warning bool // Stale entry rather than a broken one
}

// Verify checks the table for internal consistency. When current is
// defined it also warns about expired records that should have been
// removed and obsolete flags that are still declared.
func (t *LifecycleTable) Verify(current Version, declared func(string) bool) []LifecycleProblem {
	var problems []LifecycleProblem
	add := func(name, format string, args ...any) {
		problems = append(problems, LifecycleProblem{Name: name, Message: fmt.Sprintf(format, args...)})
	}
	warn := func(name, format string, args ...any) {
		problems = append(problems, LifecycleProblem{Name: name, Message: fmt.Sprintf(format, args...), Warning: true})
	}

	seen := make(map[string]bool, len(t.records))
	for _, r := range t.records {
		if seen[r.Name] {
			add(r.Name, "Duplicate special flag declaration %q", r.Name)
		}
		seen[r.Name] = true

		if r.DeprecatedIn.IsUndefined() && r.ObsoleteIn.IsUndefined() {
			add(r.Name, "Special flag entry %q must declare version deprecated and/or obsoleted in.", r.Name)
		}
		if !r.DeprecatedIn.IsUndefined() {
			if !r.ObsoleteIn.IsUndefined() && r.DeprecatedIn.Compare(r.ObsoleteIn) >= 0 {
				add(r.Name, "Special flag entry %q must be deprecated before obsoleted.", r.Name)
			}
			if !r.ExpiredIn.IsUndefined() && r.DeprecatedIn.Compare(r.ExpiredIn) >= 0 {
				add(r.Name, "Special flag entry %q must be deprecated before expired.", r.Name)
			}
		}
		if !r.ObsoleteIn.IsUndefined() && !r.ExpiredIn.IsUndefined() && r.ObsoleteIn.Compare(r.ExpiredIn) >= 0 {
			add(r.Name, "Special flag entry %q must be obsoleted before expired.", r.Name)
		}
		if !r.ExpiredIn.IsUndefined() && r.ObsoleteIn.IsUndefined() {
			add(r.Name, "Special flag entry %q has expired-in without obsolete-in.", r.Name)
		}

		if current.IsUndefined() {
			continue
		}
		if current.reached(r.ExpiredIn) {
			warn(r.Name, "Special flag entry %q has expired in %s and should be removed.", r.Name, r.ExpiredIn)
		}
		if current.reached(r.ObsoleteIn) && current.before(r.ExpiredIn) && declared != nil && declared(r.Name) {
			warn(r.Name, "Special flag entry %q is obsolete in %s but is still declared.", r.Name, r.ObsoleteIn)
		}
	}

	for _, a := range t.order {
		if target := t.aliases[a]; target == a {
			add(a, "Alias %q refers to itself.", a)
		} else if _, chained := t.aliases[target]; chained {
			add(a, "Alias %q refers to another alias %q.", a, target)
		}
	}
	return problems
}
