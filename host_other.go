//go:build !linux

package vmopts

import (
	"os"
	"runtime"
)

// HostInfo describes the running machine. Physical memory is not probed on
// this platform and defaults to 1 GiB.
func HostInfo() Host {
	return StaticHost{
		Page: uint64(os.Getpagesize()),
		CPUs: runtime.NumCPU(),
	}
}
