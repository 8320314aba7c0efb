// hrtimer.go
//
// Calibrated nanosecond clock for the ticker pipeline. On amd64 the timer
// relates the TSC to CLOCK_MONOTONIC_RAW once at first use, after which every
// NowNanos is a single counter read plus a multiply-add: no syscall on the
// hot path. When the cycle counter or the calibration is unusable the timer
// degrades, silently and permanently, to the raw monotonic clock, and as a
// last resort to the runtime's generic monotonic reading. Degradation is
// never fatal.

package hrtimer

import (
	"sync/atomic"
	"time"
)

// Calibration states.
const (
	calNone uint32 = iota // not yet calibrated
	calBusy               // one goroutine is calibrating, losers spin
	calDone               // fields below are frozen
)

// Clock modes after calibration.
const (
	modeTSC  uint32 = iota // calibrated cycle counter
	modeMono               // OS monotonic-raw syscall per reading
)

// calibrationSleep is how long the two TSC samples are spaced. Longer spacing
// tightens the frequency estimate; 100ms keeps first-use latency tolerable.
const calibrationSleep = 100 * time.Millisecond

// defaultSpinMax is the sleep duration below which SleepNanos busy-spins
// instead of entering the scheduler.
const defaultSpinMax = int64(10_000)

// Timer is a lazily-calibrated monotonic clock. Calibration runs exactly once
// per Timer no matter how many goroutines race into the first reading; the
// guard is a plain atomic state machine, not a mutex, so the post-calibration
// path stays branch-plus-load cheap.
//
// The zero value is ready to use. Construct separate instances in tests that
// need to tune the spin threshold.
type Timer struct {
	state atomic.Uint32
	mode  uint32 // frozen before state becomes calDone

	// Frozen by calibration, read-many afterwards.
	cyclesPerNs float64
	offsetNanos int64

	// SpinMaxNanos is the busy-wait threshold for SleepNanos. Zero means the
	// 10µs default; negative disables spinning entirely (every sleep defers
	// to the OS), which keeps latency-insensitive tests off the hot loop.
	// Set before first use only.
	SpinMaxNanos int64
}

// std is the process-wide default instance.
var std Timer

// Default returns the process-wide timer, for callers that take an injected
// *Timer but were not handed one.
func Default() *Timer { return &std }

// NowNanos returns the current time in nanoseconds since an arbitrary epoch.
func (t *Timer) NowNanos() int64 {
	if t.state.Load() != calDone {
		t.calibrate()
	}
	if t.mode == modeTSC {
		return t.offsetNanos + int64(float64(cputicks())/t.cyclesPerNs)
	}
	return monotonicNanos()
}

// NowMicros returns NowNanos divided down to microseconds.
func (t *Timer) NowMicros() int64 { return t.NowNanos() / 1_000 }

// NowMillis returns NowNanos divided down to milliseconds.
func (t *Timer) NowMillis() int64 { return t.NowNanos() / 1_000_000 }

// NowCycles returns the raw cycle counter, or 0 when unavailable.
func (t *Timer) NowCycles() int64 { return cputicks() }

// CyclesToNanos converts a raw cycle count to nanoseconds using the
// calibrated frequency. Returns 0 before a successful TSC calibration.
func (t *Timer) CyclesToNanos(cycles int64) int64 {
	if t.state.Load() != calDone {
		t.calibrate()
	}
	if t.mode != modeTSC || t.cyclesPerNs <= 0 {
		return 0
	}
	return int64(float64(cycles) / t.cyclesPerNs)
}

// calibrate performs the once-only TSC calibration. Exactly one caller runs
// the measurement; concurrent first users spin until the state flips to done.
func (t *Timer) calibrate() {
	if !t.state.CompareAndSwap(calNone, calBusy) {
		for t.state.Load() != calDone {
			cpuRelax()
		}
		return
	}

	if !haveCPUTicks {
		t.mode = modeMono
		t.state.Store(calDone)
		return
	}

	c0 := cputicks()
	t0 := monotonicNanos()
	time.Sleep(calibrationSleep)
	c1 := cputicks()
	t1 := monotonicNanos()

	dc, dt := c1-c0, t1-t0
	if dc <= 0 || dt <= 0 {
		// Counter not advancing (VM, unsynced sockets): fall back for good.
		t.mode = modeMono
		t.state.Store(calDone)
		return
	}

	t.cyclesPerNs = float64(dc) / float64(dt)
	t.offsetNanos = t0 - int64(float64(c0)/t.cyclesPerNs)
	t.mode = modeTSC
	t.state.Store(calDone)
}

// SleepNanos pauses the calling goroutine for at least n nanoseconds.
// Below the spin threshold it busy-waits on cpuRelax, trading CPU for
// determinism; above it, the OS scheduler takes over.
func (t *Timer) SleepNanos(n int64) {
	if n <= 0 {
		return
	}
	spinMax := t.SpinMaxNanos
	if spinMax == 0 {
		spinMax = defaultSpinMax
	}
	if n > spinMax {
		time.Sleep(time.Duration(n))
		return
	}
	deadline := t.NowNanos() + n
	for t.NowNanos() < deadline {
		cpuRelax()
	}
}

// SleepMicros pauses for at least n microseconds.
func (t *Timer) SleepMicros(n int64) { t.SleepNanos(n * 1_000) }

// Difference helpers. Plain subtraction, present so call sites read in the
// unit they mean.

func DiffNanos(start, end int64) int64  { return end - start }
func DiffMicros(start, end int64) int64 { return (end - start) / 1_000 }
func DiffMillis(start, end int64) int64 { return (end - start) / 1_000_000 }

// NanosToMicros converts nanoseconds to microseconds.
func NanosToMicros(n int64) int64 { return n / 1_000 }

// NanosToMillis converts nanoseconds to milliseconds.
func NanosToMillis(n int64) int64 { return n / 1_000_000 }

// Package-level conveniences over the default instance.

// NowNanos returns the default timer's nanosecond reading.
func NowNanos() int64 { return std.NowNanos() }

// NowMicros returns the default timer's microsecond reading.
func NowMicros() int64 { return std.NowMicros() }

// NowMillis returns the default timer's millisecond reading.
func NowMillis() int64 { return std.NowMillis() }

// SleepNanos sleeps on the default timer.
func SleepNanos(n int64) { std.SleepNanos(n) }

// SleepMicros sleeps on the default timer.
func SleepMicros(n int64) { std.SleepMicros(n) }
