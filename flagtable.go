package vmopts

import (
	_ "embed"
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

//go:embed flags.toml
var defaultFlagTable []byte

// DefaultVersion is the product version lifecycle decisions are made
// against unless Arguments is given another one.
func DefaultVersion() Version { return V(26) }

type tableFile struct {
	Flags   []FlagSpec    `toml:"flag"`
	Special []specialSpec `toml:"special"`
	Aliases []aliasSpec   `toml:"alias"`
}

type specialSpec struct {
	Name       string `toml:"name"`
	Deprecated string `toml:"deprecated"`
	Obsolete   string `toml:"obsolete"`
	Expired    string `toml:"expired"`
}

type aliasSpec struct {
	Name   string `toml:"name"`
	Target string `toml:"target"`
}

// ParseFlagTable decodes a TOML flag table with [[flag]], [[special]] and
// [[alias]] arrays.
func ParseFlagTable(data []byte) ([]FlagSpec, *LifecycleTable, error) {
	var tf tableFile
	if err := toml.Unmarshal(data, &tf); err != nil {
		return nil, nil, fmt.Errorf("parse flag table: %w", err)
	}

	records := make([]LifecycleRecord, 0, len(tf.Special))
	for _, s := range tf.Special {
		rec := LifecycleRecord{Name: s.Name}
		var err error
		if rec.DeprecatedIn, err = ParseVersion(s.Deprecated); err != nil {
			return nil, nil, fmt.Errorf("special flag %s: %w", s.Name, err)
		}
		if rec.ObsoleteIn, err = ParseVersion(s.Obsolete); err != nil {
			return nil, nil, fmt.Errorf("special flag %s: %w", s.Name, err)
		}
		if rec.ExpiredIn, err = ParseVersion(s.Expired); err != nil {
			return nil, nil, fmt.Errorf("special flag %s: %w", s.Name, err)
		}
		records = append(records, rec)
	}

	table := NewLifecycleTable(records, nil)
	for _, a := range tf.Aliases {
		table.AddAlias(a.Name, a.Target)
	}
	return tf.Flags, table, nil
}

// NewRegistryFromTOML builds a registry from a TOML flag table.
func NewRegistryFromTOML(data []byte) (*Registry, error) {
	specs, table, err := ParseFlagTable(data)
	if err != nil {
		return nil, err
	}
	return NewRegistry(specs, table)
}

// DefaultRegistry returns a fresh registry with the built-in flag table.
// It panics if the embedded table is malformed.
func DefaultRegistry() *Registry {
	r, err := NewRegistryFromTOML(defaultFlagTable)
	if err != nil {
		panic(fmt.Sprintf("vmopts: built-in flag table: %v", err))
	}
	return r
}
