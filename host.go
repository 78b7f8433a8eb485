package vmopts

import (
	"math"
	"runtime"
)

// Host describes the machine the VM is being configured for.
type Host interface {
	PhysicalMemory() uint64
	CommitLimit() uint64 // math.MaxUint64 when unlimited
	PageSize() uint64
	AllocationGranularity() uint64
	ProcessorCount() int
	HasSpecialPrivileges() bool
	Arch() string // GOARCH naming
}

// StaticHost is a Host with fixed answers. Zero fields fall back to
// conservative defaults.
type StaticHost struct {
	Memory      uint64
	Commit      uint64
	Page        uint64
	Granularity uint64
	CPUs        int
	Privileged  bool
	GOARCH      string
}

const defaultPageSize = 4 * kilo

func (h StaticHost) PhysicalMemory() uint64 {
	if h.Memory == 0 {
		return 1 * giga
	}
	return h.Memory
}

func (h StaticHost) CommitLimit() uint64 {
	if h.Commit == 0 {
		return math.MaxUint64
	}
	return h.Commit
}

func (h StaticHost) PageSize() uint64 {
	if h.Page == 0 {
		return defaultPageSize
	}
	return h.Page
}

func (h StaticHost) AllocationGranularity() uint64 {
	if h.Granularity == 0 {
		return h.PageSize()
	}
	return h.Granularity
}

func (h StaticHost) ProcessorCount() int {
	if h.CPUs <= 0 {
		return 1
	}
	return h.CPUs
}

func (h StaticHost) HasSpecialPrivileges() bool { return h.Privileged }

func (h StaticHost) Arch() string {
	if h.GOARCH == "" {
		return runtime.GOARCH
	}
	return h.GOARCH
}
