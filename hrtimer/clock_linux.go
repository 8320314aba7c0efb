//go:build linux

// clock_linux.go
//
// CLOCK_MONOTONIC_RAW reading for the calibration baseline and the fallback
// mode. Raw avoids NTP slewing, which would otherwise bend the measured TSC
// frequency.

package hrtimer

import "golang.org/x/sys/unix"

// monotonicNanos returns the kernel's raw monotonic clock in nanoseconds,
// degrading to plain CLOCK_MONOTONIC and finally to the runtime's monotonic
// reading if the syscall is refused.
func monotonicNanos() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts); err == nil {
		return ts.Nano()
	}
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err == nil {
		return ts.Nano()
	}
	return runtimeNanos()
}
