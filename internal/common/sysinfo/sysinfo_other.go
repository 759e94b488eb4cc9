//go:build !linux

package sysinfo

// TotalRAM returns 0 on platforms without a memory probe; callers fall back
// to the constrained-device default.
func TotalRAM() uint64 { return 0 }
