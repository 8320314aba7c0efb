package hrtimer

import (
	"sync"
	"testing"
	"time"
)

// TestNowNanosMonotonic reads the clock back-to-back on one goroutine and
// asserts the sequence never decreases. Covers both the calibrated and the
// fallback mode, whichever this machine ends up in.
func TestNowNanosMonotonic(t *testing.T) {
	var tm Timer
	prev := tm.NowNanos()
	for i := 0; i < 100_000; i++ {
		now := tm.NowNanos()
		if now < prev {
			t.Fatalf("clock went backwards: %d after %d (iteration %d)", now, prev, i)
		}
		prev = now
	}
}

// TestNowNanosAdvances checks the reading actually moves against an OS sleep,
// within generous slack for scheduler noise.
func TestNowNanosAdvances(t *testing.T) {
	var tm Timer
	start := tm.NowNanos()
	time.Sleep(50 * time.Millisecond)
	elapsed := DiffMillis(start, tm.NowNanos())
	if elapsed < 40 || elapsed > 5_000 {
		t.Fatalf("50ms sleep measured as %dms", elapsed)
	}
}

// TestConcurrentFirstUseCalibratesOnce hammers a fresh Timer from many
// goroutines before any calibration has run. All readings must come from one
// consistent calibration: the state machine ends in calDone exactly once and
// every goroutine's readings stay monotonic and mutually sane.
func TestConcurrentFirstUseCalibratesOnce(t *testing.T) {
	var tm Timer
	const workers = 16

	var wg sync.WaitGroup
	firsts := make([]int64, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			prev := tm.NowNanos()
			firsts[id] = prev
			for i := 0; i < 1_000; i++ {
				now := tm.NowNanos()
				if now < prev {
					t.Errorf("worker %d: clock went backwards", id)
					return
				}
				prev = now
			}
		}(w)
	}
	wg.Wait()

	if tm.state.Load() != calDone {
		t.Fatal("timer should be calibrated after first use")
	}
	// All first readings happened within the same few seconds of each other;
	// wildly divergent values would mean two calibrations with different
	// offsets won the race.
	var lo, hi = firsts[0], firsts[0]
	for _, v := range firsts[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if NanosToMillis(hi-lo) > 10_000 {
		t.Fatalf("first readings spread over %dms, calibration raced", NanosToMillis(hi-lo))
	}
}

// TestSleepNanosSpinPath sleeps below the spin threshold and checks the
// elapsed time is at least the request. The upper bound is loose; a
// preemption mid-spin is not a failure.
func TestSleepNanosSpinPath(t *testing.T) {
	var tm Timer
	start := tm.NowNanos()
	tm.SleepNanos(5_000) // under the 10µs threshold: busy-wait
	if got := DiffNanos(start, tm.NowNanos()); got < 5_000 {
		t.Fatalf("spin sleep returned after %dns, want >= 5000ns", got)
	}
}

// TestSleepNanosOSPath sleeps well above the threshold so the OS path runs.
func TestSleepNanosOSPath(t *testing.T) {
	var tm Timer
	start := tm.NowNanos()
	tm.SleepMicros(2_000)
	if got := DiffMicros(start, tm.NowNanos()); got < 1_900 {
		t.Fatalf("OS sleep returned after %dµs, want >= 1900µs", got)
	}
}

// TestSpinDisabled routes every sleep through the scheduler when the
// threshold is negative, the switch tests lean on to avoid burning CPU.
func TestSpinDisabled(t *testing.T) {
	tm := Timer{SpinMaxNanos: -1}
	start := tm.NowNanos()
	tm.SleepNanos(1_000)
	if got := DiffNanos(start, tm.NowNanos()); got < 1_000 {
		t.Fatalf("sleep returned after %dns, want >= 1000ns", got)
	}
}

// TestDiffHelpers pins the unit arithmetic.
func TestDiffHelpers(t *testing.T) {
	if DiffNanos(5, 12) != 7 {
		t.Fatal("DiffNanos")
	}
	if DiffMicros(0, 3_500) != 3 {
		t.Fatal("DiffMicros")
	}
	if DiffMillis(0, 2_000_000) != 2 {
		t.Fatal("DiffMillis")
	}
	if NanosToMicros(9_999) != 9 || NanosToMillis(2_500_000) != 2 {
		t.Fatal("unit conversions")
	}
}
