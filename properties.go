package vmopts

import (
	"os"
	"strings"
)

// AppendMode selects how UniqueAdd treats an existing key.
type AppendMode uint8

const (
	Replace AppendMode = iota
	Append
)

// Property is one system property.
type Property struct {
	Key       string `json:"key" yaml:"key"`
	Value     string `json:"value" yaml:"value"`
	Writeable bool   `json:"writeable" yaml:"writeable"`
	Internal  bool   `json:"internal" yaml:"internal"`
}

// bootClassPathAppend is the one internal property that stays readable.
const bootClassPathAppend = "jdk.boot.class.path.append"

// PropertyStore is an ordered map of system properties with unique keys.
type PropertyStore struct {
	entries   []*Property
	index     map[string]int
	separator string
}

// NewPropertyStore creates an empty store. separator joins appended values;
// empty means the host path-list separator.
func NewPropertyStore(separator string) *PropertyStore {
	if separator == "" {
		separator = string(os.PathListSeparator)
	}
	return &PropertyStore{
		index:     make(map[string]int),
		separator: separator,
	}
}

// UniqueAdd adds or updates key. An existing writeable entry is replaced, or
// extended with the path-list separator in Append mode. An existing
// non-writeable entry is left untouched. A new key goes to the end.
func (s *PropertyStore) UniqueAdd(key, value string, mode AppendMode, writeable, internal bool) {
	if i, ok := s.index[key]; ok {
		p := s.entries[i]
		if !p.Writeable {
			return
		}
		if mode == Append && p.Value != "" {
			if value != "" {
				p.Value = p.Value + s.separator + value
			}
			return
		}
		p.Value = value
		return
	}

	s.index[key] = len(s.entries)
	s.entries = append(s.entries, &Property{
		Key:       key,
		Value:     value,
		Writeable: writeable,
		Internal:  internal,
	})
}

// appendValue extends an entry regardless of writeability. Used for values
// the runtime itself owns, such as the boot class path append list.
func (s *PropertyStore) appendValue(key, value string) {
	i, ok := s.index[key]
	if !ok {
		s.UniqueAdd(key, value, Replace, false, true)
		return
	}
	p := s.entries[i]
	if p.Value == "" {
		p.Value = value
	} else if value != "" {
		p.Value = p.Value + s.separator + value
	}
}

// Get returns the value of key.
func (s *PropertyStore) Get(key string) (string, bool) {
	i, ok := s.index[key]
	if !ok {
		return "", false
	}
	return s.entries[i].Value, true
}

// GetReadable is Get that hides internal properties, except the boot class
// path append list.
func (s *PropertyStore) GetReadable(key string) (string, bool) {
	i, ok := s.index[key]
	if !ok {
		return "", false
	}
	p := s.entries[i]
	if p.Internal && p.Key != bootClassPathAppend {
		return "", false
	}
	return p.Value, true
}

// Count returns the number of entries.
func (s *PropertyStore) Count() int { return len(s.entries) }

// ReadableCount returns the number of entries GetReadable can see.
func (s *PropertyStore) ReadableCount() int {
	n := 0
	for _, p := range s.entries {
		if !p.Internal || p.Key == bootClassPathAppend {
			n++
		}
	}
	return n
}

// All returns a copy of every entry in insertion order.
func (s *PropertyStore) All() []Property {
	out := make([]Property, len(s.entries))
	for i, p := range s.entries {
		out[i] = *p
	}
	return out
}

// addFromOption stores a -D key=value option. A value is optional.
func (s *PropertyStore) addFromOption(prop string) (key, value string) {
	key, value, _ = strings.Cut(prop, "=")

	switch key {
	case "sun.boot.library.path":
		s.UniqueAdd(key, value, Append, true, false)
	default:
		s.UniqueAdd(key, value, Replace, true, false)
	}
	return key, value
}

// SystemInfo describes the runtime whose properties are being initialized.
type SystemInfo struct {
	JavaHome    string
	VMName      string
	VMVersion   string
	VMVendor    string
	VMInfo      string
	LibraryPath string
	BootLibPath string
	Debug       bool
	SpecVersion string
}

// InitSystemProperties adds the properties every VM publishes before
// options are parsed.
func (s *PropertyStore) InitSystemProperties(info SystemInfo) {
	s.UniqueAdd("java.vm.specification.name", "Java Virtual Machine Specification", Replace, false, false)
	s.UniqueAdd("java.vm.specification.vendor", "Oracle Corporation", Replace, false, false)
	s.UniqueAdd("java.vm.specification.version", info.SpecVersion, Replace, false, false)
	s.UniqueAdd("java.vm.version", info.VMVersion, Replace, false, false)
	s.UniqueAdd("java.vm.name", info.VMName, Replace, false, false)
	s.UniqueAdd("java.vm.vendor", info.VMVendor, Replace, false, false)
	s.UniqueAdd("java.vm.info", info.VMInfo, Replace, true, false)
	debug := "false"
	if info.Debug {
		debug = "true"
	}
	s.UniqueAdd("jdk.debug", debug, Replace, false, false)
	s.UniqueAdd("sun.boot.library.path", info.BootLibPath, Replace, true, false)
	s.UniqueAdd("java.library.path", info.LibraryPath, Replace, true, false)
	s.UniqueAdd("java.home", info.JavaHome, Replace, true, false)
	s.UniqueAdd("java.class.path", "", Replace, true, false)
	s.UniqueAdd(bootClassPathAppend, "", Replace, false, true)
}
