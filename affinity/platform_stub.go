//go:build !linux

// platform_stub.go
//
// Generic fallback for platforms without the Linux placement syscalls.
// Every capability is reported absent; the pipeline runs unpinned at normal
// priority, which is the documented degradation, not an error.

package affinity

type stubPlatform struct{}

func osPlatform() platform { return stubPlatform{} }

func (stubPlatform) pinToCPU(int) bool                { return false }
func (stubPlatform) setRealtimeFifo(int) bool         { return false }
func (stubPlatform) setThreadName(string) bool        { return false }
func (stubPlatform) setMemoryPolicy(int) bool         { return false }
func (stubPlatform) currentCPUNode() (int, int, bool) { return 0, 0, false }
func (stubPlatform) topology() (Topology, bool)       { return Topology{}, false }
