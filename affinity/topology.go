// topology.go
//
// Platform-neutral topology helpers: the sysfs cpulist grammar parser and
// the single-node fallback used when NUMA discovery comes up empty.

package affinity

import (
	"runtime"
	"strconv"
	"strings"
)

// singleNodeTopology treats the whole machine as one node holding every
// logical CPU the runtime can see.
func singleNodeTopology() Topology {
	n := runtime.NumCPU()
	cpus := make([]int, n)
	for i := range cpus {
		cpus[i] = i
	}
	return Topology{Nodes: 1, NodeCPUs: [][]int{cpus}}
}

// parseCPUList expands the kernel's cpulist format ("0-3,8,10-11") into an
// explicit id slice. Malformed segments are skipped rather than failing the
// whole list; sysfs is treated as advisory.
func parseCPUList(s string) []int {
	var out []int
	for _, part := range strings.Split(strings.TrimSpace(s), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			a, err1 := strconv.Atoi(lo)
			b, err2 := strconv.Atoi(hi)
			if err1 != nil || err2 != nil || a < 0 || b < a {
				continue
			}
			for c := a; c <= b; c++ {
				out = append(out, c)
			}
			continue
		}
		c, err := strconv.Atoi(part)
		if err != nil || c < 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}
