//go:build linux

package vmopts

import (
	"math"
	"runtime"

	"golang.org/x/sys/unix"
)

// HostInfo probes the running machine.
func HostInfo() Host {
	h := StaticHost{
		Page:   uint64(unix.Getpagesize()),
		Commit: math.MaxUint64,
		CPUs:   runtime.NumCPU(),
	}

	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err == nil {
		h.Memory = uint64(si.Totalram) * uint64(si.Unit)
	}

	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &rl); err == nil && rl.Cur != unix.RLIM_INFINITY {
		h.Commit = rl.Cur
	}

	h.Privileged = unix.Getuid() != unix.Geteuid() || unix.Getgid() != unix.Getegid()
	return h
}
