// manager.go
//
// Thread-placement control for the pipeline's pinned consumer threads: CPU
// affinity, NUMA memory policy, real-time FIFO scheduling, and thread naming.
//
// Every sub-operation is best-effort and reports a plain bool. On a locked-
// down box (containers, missing CAP_SYS_NICE) the priority elevation will be
// refused; that must never stop the pin or the name from taking effect, and
// it is never fatal. The aggregate ConfigureForLowLatency result reflects
// only the pin, the one step correctness actually depends on.

package affinity

import (
	"go.uber.org/zap"
)

// DefaultPriority is the SCHED_FIFO priority requested when the caller does
// not supply one. 99 is the highest Linux allows.
const DefaultPriority = 99

// Auto selects the CPU or NUMA node automatically from the discovered
// topology. Pass it (or any negative value) wherever an explicit id is not
// wanted.
const Auto = -1

// Topology describes the machine's NUMA layout as seen at startup.
type Topology struct {
	Nodes    int     // number of NUMA nodes; 1 when NUMA is unavailable
	NodeCPUs [][]int // logical CPU ids per node, indexed by node id
}

// platform is the narrow OS capability surface the manager drives. Variants:
// Linux (sched_setaffinity, sched_setscheduler, set_mempolicy, prctl, sysfs)
// and a generic fallback where every capability is absent.
type platform interface {
	pinToCPU(cpu int) bool
	setRealtimeFifo(priority int) bool
	setThreadName(label string) bool
	setMemoryPolicy(node int) bool
	currentCPUNode() (cpu, node int, ok bool)
	topology() (Topology, bool)
}

// Manager resolves topology once and hands out placement decisions for the
// lifetime of the process. Safe for concurrent use; it holds no mutable state
// beyond the immutable topology snapshot.
type Manager struct {
	plat   platform
	topo   Topology
	numaOK bool
	log    *zap.Logger
}

// NewManager discovers the topology and returns a ready manager. A nil
// logger is replaced with a no-op one.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return newManager(osPlatform(), log)
}

func newManager(plat platform, log *zap.Logger) *Manager {
	m := &Manager{plat: plat, log: log}
	if topo, ok := plat.topology(); ok && topo.Nodes > 0 {
		m.topo, m.numaOK = topo, true
		return m
	}
	// No NUMA view: one synthetic node holding every logical CPU.
	m.topo = singleNodeTopology()
	return m
}

// ResolveTopology returns the topology snapshot taken at construction.
func (m *Manager) ResolveTopology() Topology { return m.topo }

// NUMAAvailable reports whether a real NUMA topology was discovered.
func (m *Manager) NUMAAvailable() bool { return m.numaOK }

// ChooseCPU picks a CPU for a new pinned thread. When the machine has more
// than one node, nodes other than the calling thread's current one are
// preferred, keeping producer and consumer off the same coherence domain.
// The key round-robins among the remaining candidates so successive threads
// spread out. Falls back to CPU 0 when nothing at all is known.
func (m *Manager) ChooseCPU(key int) int {
	if key < 0 {
		key = -key
	}
	nodes := m.candidateNodes()
	if len(nodes) == 0 {
		return 0
	}
	cpus := m.topo.NodeCPUs[nodes[key%len(nodes)]]
	if len(cpus) == 0 {
		return 0
	}
	return cpus[key%len(cpus)]
}

// NodeOfCPU returns the NUMA node owning cpu, or 0 when unknown.
func (m *Manager) NodeOfCPU(cpu int) int {
	for node, cpus := range m.topo.NodeCPUs {
		for _, c := range cpus {
			if c == cpu {
				return node
			}
		}
	}
	return 0
}

// candidateNodes lists node ids to place a new thread on, preferring nodes
// other than the caller's current one.
func (m *Manager) candidateNodes() []int {
	if m.topo.Nodes <= 0 {
		return nil
	}
	cur := -1
	if m.topo.Nodes > 1 {
		if _, node, ok := m.plat.currentCPUNode(); ok {
			cur = node
		}
	}
	var out []int
	for n := 0; n < m.topo.Nodes; n++ {
		if n != cur {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		out = append(out, cur)
	}
	return out
}

// PinToCPU pins the calling OS thread to one logical CPU. The caller must
// have locked the goroutine to its thread first.
func (m *Manager) PinToCPU(cpu int) bool {
	ok := m.plat.pinToCPU(cpu)
	if !ok {
		m.log.Warn("cpu pin refused", zap.Int("cpu", cpu))
	}
	return ok
}

// SetRealtimeFifo elevates the calling thread to SCHED_FIFO at priority.
// Commonly refused without CAP_SYS_NICE; callers treat false as degradation,
// not failure.
func (m *Manager) SetRealtimeFifo(priority int) bool {
	if priority <= 0 {
		priority = DefaultPriority
	}
	ok := m.plat.setRealtimeFifo(priority)
	if !ok {
		m.log.Warn("realtime priority refused, staying at normal scheduling",
			zap.Int("priority", priority))
	}
	return ok
}

// SetThreadName labels the calling thread for diagnostics (comm, 15 chars).
func (m *Manager) SetThreadName(label string) bool {
	return m.plat.setThreadName(label)
}

// SetMemoryPolicy biases the calling thread's new allocations toward node.
func (m *Manager) SetMemoryPolicy(node int) bool {
	if !m.numaOK {
		return false
	}
	ok := m.plat.setMemoryPolicy(node)
	if !ok {
		m.log.Warn("memory policy refused", zap.Int("node", node))
	}
	return ok
}

// ConfigureForLowLatency applies the full low-latency setup to the calling
// thread, in order: name, CPU pin, memory policy, real-time priority. cpu and
// numaNode may be Auto. Only the pin decides the return value; naming,
// policy, and priority are enhancements whose refusal is logged and ignored.
func (m *Manager) ConfigureForLowLatency(label string, cpu, priority, numaNode int) bool {
	if cpu < 0 {
		cpu = m.ChooseCPU(0)
	}
	if numaNode < 0 {
		numaNode = m.NodeOfCPU(cpu)
	}

	m.plat.setThreadName(label)
	pinned := m.PinToCPU(cpu)
	m.SetMemoryPolicy(numaNode)
	m.SetRealtimeFifo(priority)

	m.log.Info("thread placement",
		zap.String("label", label),
		zap.Int("cpu", cpu),
		zap.Int("numa_node", numaNode),
		zap.Bool("pinned", pinned))
	return pinned
}
