//go:build amd64 && !noasm

// cputicks_amd64.go
//
// Go declaration for the TSC read on amd64. The implementation lives in
// cputicks_amd64.s and is a bare RDTSC, deliberately unserialized: the
// calibration window is five orders of magnitude longer than any
// out-of-order skew, and the hot path wants the cheapest possible read.

package hrtimer

const haveCPUTicks = true

// cputicks returns the current value of the time-stamp counter.
//
//go:noescape
func cputicks() int64
