//go:build !amd64 || noasm

// cputicks_stub.go
//
// Portable fallback for targets without a readable cycle counter. Returning
// zero routes calibration straight to the monotonic clock.

package hrtimer

const haveCPUTicks = false

// cputicks is unavailable on this target.
func cputicks() int64 { return 0 }
