// runtime_clock.go
//
// Last-resort monotonic source: time.Since over a process-start anchor rides
// the runtime's internal monotonic clock, so it never goes backwards even
// when the wall clock is stepped.

package hrtimer

import "time"

var processStart = time.Now()

// runtimeNanos returns nanoseconds since process start.
func runtimeNanos() int64 { return int64(time.Since(processStart)) }
