//go:build linux

// platform_linux.go
//
// Linux capability bindings. Errors are deliberately reduced to booleans: on
// containerised or cgroup-heavy systems these calls commonly come back
// EPERM/EINVAL and the caller's fallback is simply "no pin" / "no priority".

package affinity

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MPOL_PREFERRED from linux/mempolicy.h; x/sys does not wrap the mempolicy
// constants.
const mpolPreferred = 1

// numaSysfsRoot is overridable in tests.
var numaSysfsRoot = "/sys/devices/system/node"

type linuxPlatform struct{}

func osPlatform() platform { return linuxPlatform{} }

// pinToCPU binds the current thread (pid 0) to exactly one logical CPU.
func (linuxPlatform) pinToCPU(cpu int) bool {
	if cpu < 0 {
		return false
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set) == nil
}

// schedParam mirrors struct sched_param for the raw syscall below; x/sys has
// no sched_setscheduler wrapper.
type schedParam struct {
	priority int32
}

// setRealtimeFifo moves the current thread into SCHED_FIFO at priority.
func (linuxPlatform) setRealtimeFifo(priority int) bool {
	if priority < 1 || priority > 99 {
		return false
	}
	p := schedParam{priority: int32(priority)}
	_, _, errno := unix.Syscall(
		unix.SYS_SCHED_SETSCHEDULER,
		0, // pid 0 means the calling thread
		uintptr(unix.SCHED_FIFO),
		uintptr(unsafe.Pointer(&p)),
	)
	return errno == 0
}

// setThreadName sets the kernel comm name (truncated to 15 bytes plus NUL).
func (linuxPlatform) setThreadName(label string) bool {
	var buf [16]byte
	copy(buf[:15], label)
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0, 0, 0) == nil
}

// setMemoryPolicy prefers node for the current thread's new allocations.
// Nodes ≥ 64 are ignored; a one-word nodemask covers every machine this
// pipeline targets.
func (linuxPlatform) setMemoryPolicy(node int) bool {
	if node < 0 || node >= 64 {
		return false
	}
	mask := uint64(1) << uint(node)
	_, _, errno := unix.Syscall(
		unix.SYS_SET_MEMPOLICY,
		uintptr(mpolPreferred),
		uintptr(unsafe.Pointer(&mask)),
		65, // maxnode: one bit past the highest representable node
	)
	return errno == 0
}

// currentCPUNode reports where the calling thread is executing right now.
// x/sys has no getcpu wrapper, so this goes through the raw syscall like
// the scheduler and mempolicy calls above.
func (linuxPlatform) currentCPUNode() (int, int, bool) {
	var cpu, node uint32
	_, _, errno := unix.Syscall(
		unix.SYS_GETCPU,
		uintptr(unsafe.Pointer(&cpu)),
		uintptr(unsafe.Pointer(&node)),
		0,
	)
	if errno != 0 {
		return 0, 0, false
	}
	return int(cpu), int(node), true
}

// topology walks /sys/devices/system/node. Any read failure yields
// (zero, false) and the caller substitutes the single-node view.
func (linuxPlatform) topology() (Topology, bool) {
	entries, err := os.ReadDir(numaSysfsRoot)
	if err != nil {
		return Topology{}, false
	}

	nodeCPUs := map[int][]int{}
	maxNode := -1
	for _, e := range entries {
		name := e.Name()
		if len(name) < 5 || name[:4] != "node" {
			continue
		}
		id := 0
		valid := true
		for _, c := range name[4:] {
			if c < '0' || c > '9' {
				valid = false
				break
			}
			id = id*10 + int(c-'0')
		}
		if !valid {
			continue
		}
		raw, err := os.ReadFile(numaSysfsRoot + "/" + name + "/cpulist")
		if err != nil {
			continue
		}
		cpus := parseCPUList(string(raw))
		if len(cpus) == 0 {
			continue
		}
		nodeCPUs[id] = cpus
		if id > maxNode {
			maxNode = id
		}
	}
	if maxNode < 0 {
		return Topology{}, false
	}

	topo := Topology{Nodes: maxNode + 1, NodeCPUs: make([][]int, maxNode+1)}
	for id, cpus := range nodeCPUs {
		topo.NodeCPUs[id] = cpus
	}
	return topo, true
}
