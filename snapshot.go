package vmopts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// MaxSnapshotSize is the maximum allowed snapshot size (100MB).
const MaxSnapshotSize = 100 * 1024 * 1024

// SnapshotVersion is the current snapshot format version.
const SnapshotVersion = "1.0"

// Snapshot errors.
var (
	// ErrSnapshotTooLarge is returned when a snapshot exceeds MaxSnapshotSize.
	ErrSnapshotTooLarge = errors.New("vmopts: snapshot exceeds 100MB size limit")

	// ErrNilConfig is returned when CreateSnapshot receives a nil config.
	ErrNilConfig = errors.New("vmopts: config is nil")

	// ErrUnsupportedVersion is returned when reading a snapshot with unknown version.
	ErrUnsupportedVersion = errors.New("vmopts: unsupported snapshot version")
)

var supportedVersions = map[string]bool{
	"1.0": true,
}

// ConfigSnapshot is a point-in-time capture of a frozen configuration.
type ConfigSnapshot struct {
	ID         string            `json:"id" yaml:"id"`
	Version    string            `json:"version" yaml:"version"`
	VMVersion  string            `json:"vmVersion" yaml:"vmVersion"`
	Timestamp  time.Time         `json:"timestamp" yaml:"timestamp"`
	GC         string            `json:"gc" yaml:"gc"`
	Mode       string            `json:"mode" yaml:"mode"`
	Heap       HeapSizing        `json:"heap" yaml:"heap"`
	Flags      map[string]string `json:"flags" yaml:"flags"`
	Provenance []FlagProvenance  `json:"provenance" yaml:"provenance"`
	Properties map[string]string `json:"properties" yaml:"properties"`
	JVMArgs    []string          `json:"jvmArgs,omitempty" yaml:"jvmArgs,omitempty"`
}

// SnapshotOption configures snapshot creation behavior.
type SnapshotOption func(*snapshotConfig)

type snapshotConfig struct {
	excludeFlags []string
}

// WithExcludeFlags leaves the named flags out of the snapshot. Matching is
// case-insensitive.
func WithExcludeFlags(names ...string) SnapshotOption {
	return func(cfg *snapshotConfig) {
		cfg.excludeFlags = append(cfg.excludeFlags, names...)
	}
}

// CreateSnapshot captures cfg. The snapshot's Timestamp is captured at
// creation time.
func CreateSnapshot(cfg *Config, opts ...SnapshotOption) (*ConfigSnapshot, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	snapCfg := &snapshotConfig{}
	for _, opt := range opts {
		opt(snapCfg)
	}
	exclude := make(map[string]bool, len(snapCfg.excludeFlags))
	for _, name := range snapCfg.excludeFlags {
		exclude[strings.ToLower(name)] = true
	}

	snap := &ConfigSnapshot{
		ID:         uuid.NewString(),
		Version:    SnapshotVersion,
		VMVersion:  cfg.Version.String(),
		Timestamp:  time.Now().UTC(),
		GC:         cfg.GC,
		Mode:       cfg.Mode.String(),
		Heap:       cfg.Heap,
		Flags:      make(map[string]string),
		Properties: make(map[string]string),
		JVMArgs:    append([]string(nil), cfg.JVMArgs...),
	}
	for _, f := range cfg.flags.Flags() {
		if !exclude[strings.ToLower(f.Name())] {
			snap.Flags[f.Name()] = f.Value().String()
		}
	}
	for _, fp := range cfg.Provenance().Flags {
		if !exclude[strings.ToLower(fp.Name)] {
			snap.Provenance = append(snap.Provenance, fp)
		}
	}
	for _, p := range cfg.props.All() {
		if v, ok := cfg.props.GetReadable(p.Key); ok {
			snap.Properties[p.Key] = v
		}
	}
	return snap, nil
}

// ExpandPath expands template variables using current time.
func ExpandPath(template string) string {
	return ExpandPathWithTime(template, time.Now())
}

// ExpandPathWithTime replaces all {{timestamp}} occurrences with t formatted
// as 20060102-150405.
func ExpandPathWithTime(template string, t time.Time) string {
	timestamp := t.UTC().Format("20060102-150405")
	return strings.ReplaceAll(template, "{{timestamp}}", timestamp)
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// WriteSnapshot persists a snapshot with atomic write semantics. A .yaml or
// .yml path is written as YAML, anything else as indented JSON. The
// {{timestamp}} template uses snapshot.Timestamp so the filename matches
// the content.
func WriteSnapshot(snapshot *ConfigSnapshot, pathTemplate string) error {
	if snapshot == nil {
		return ErrNilConfig
	}

	targetPath := ExpandPathWithTime(pathTemplate, snapshot.Timestamp)

	var data []byte
	var err error
	if isYAMLPath(targetPath) {
		data, err = yaml.Marshal(snapshot)
	} else {
		data, err = json.MarshalIndent(snapshot, "", "  ")
	}
	if err != nil {
		return err
	}
	if len(data) > MaxSnapshotSize {
		return ErrSnapshotTooLarge
	}

	dir := filepath.Dir(targetPath)
	if dir != "" && dir != "." {
		if mkdirErr := os.MkdirAll(dir, 0700); mkdirErr != nil {
			return mkdirErr
		}
	}

	tempPath := targetPath + ".tmp." + uuid.NewString()

	var tempFileCreated bool
	defer func() {
		if tempFileCreated {
			_ = os.Remove(tempPath)
		}
	}()

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return err
	}
	tempFileCreated = true

	if err := os.Rename(tempPath, targetPath); err != nil {
		return err
	}
	tempFileCreated = false
	return nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot.
func ReadSnapshot(path string) (*ConfigSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxSnapshotSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxSnapshotSize {
		return nil, ErrSnapshotTooLarge
	}

	var snap ConfigSnapshot
	if isYAMLPath(path) {
		err = yaml.Unmarshal(data, &snap)
	} else {
		err = json.Unmarshal(data, &snap)
	}
	if err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	if !supportedVersions[snap.Version] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, snap.Version)
	}
	return &snap, nil
}
