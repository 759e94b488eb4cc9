//go:build linux

// Package sysinfo probes device hardware facts the subsystem keys decisions
// off, currently just total physical memory.
package sysinfo

import "golang.org/x/sys/unix"

// TotalRAM returns total physical memory in bytes, or 0 when the probe
// fails. Callers should treat 0 as "unknown, assume constrained".
func TotalRAM() uint64 {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 0
	}
	return uint64(si.Totalram) * uint64(si.Unit)
}
