//go:build !linux

// clock_stub.go
//
// Portable monotonic reading for platforms without an exposed raw clock.

package hrtimer

// monotonicNanos defers to the Go runtime's monotonic clock.
func monotonicNanos() int64 { return runtimeNanos() }
