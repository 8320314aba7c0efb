package affinity

import (
	"reflect"
	"testing"

	"go.uber.org/zap"
)

// fakePlatform scripts every capability so placement policy can be tested
// without touching the host scheduler.
type fakePlatform struct {
	topo    Topology
	topoOK  bool
	curCPU  int
	curNode int
	curOK   bool
	pinOK   bool
	fifoOK  bool
	nameOK  bool
	memOK   bool

	pinnedTo  []int
	fifoAsked []int
	namesSet  []string
	memNodes  []int
}

func (f *fakePlatform) pinToCPU(cpu int) bool {
	f.pinnedTo = append(f.pinnedTo, cpu)
	return f.pinOK
}
func (f *fakePlatform) setRealtimeFifo(p int) bool {
	f.fifoAsked = append(f.fifoAsked, p)
	return f.fifoOK
}
func (f *fakePlatform) setThreadName(s string) bool {
	f.namesSet = append(f.namesSet, s)
	return f.nameOK
}
func (f *fakePlatform) setMemoryPolicy(n int) bool {
	f.memNodes = append(f.memNodes, n)
	return f.memOK
}
func (f *fakePlatform) currentCPUNode() (int, int, bool) { return f.curCPU, f.curNode, f.curOK }
func (f *fakePlatform) topology() (Topology, bool)       { return f.topo, f.topoOK }

func twoNodeBox() *fakePlatform {
	return &fakePlatform{
		topo: Topology{
			Nodes:    2,
			NodeCPUs: [][]int{{0, 1, 2, 3}, {4, 5, 6, 7}},
		},
		topoOK: true,
		curCPU: 1, curNode: 0, curOK: true,
		pinOK: true, fifoOK: true, nameOK: true, memOK: true,
	}
}

// TestChooseCPUPrefersRemoteNode verifies the cross-node placement policy:
// with the caller running on node 0, every choice lands on node 1.
func TestChooseCPUPrefersRemoteNode(t *testing.T) {
	m := newManager(twoNodeBox(), zap.NewNop())
	for key := 0; key < 8; key++ {
		cpu := m.ChooseCPU(key)
		if cpu < 4 || cpu > 7 {
			t.Fatalf("key %d chose cpu %d on the caller's own node", key, cpu)
		}
	}
	// Round-robin inside the remote node.
	if a, b := m.ChooseCPU(0), m.ChooseCPU(1); a == b {
		t.Fatalf("keys 0 and 1 both chose cpu %d", a)
	}
}

// TestChooseCPUSingleNodeFallback: no NUMA view means one synthetic node and
// a plain round-robin over every logical CPU.
func TestChooseCPUSingleNodeFallback(t *testing.T) {
	plat := &fakePlatform{} // topology() reports not-ok
	m := newManager(plat, zap.NewNop())
	if m.NUMAAvailable() {
		t.Fatal("no topology was offered, NUMA should read unavailable")
	}
	topo := m.ResolveTopology()
	if topo.Nodes != 1 || len(topo.NodeCPUs) != 1 || len(topo.NodeCPUs[0]) == 0 {
		t.Fatalf("fallback topology malformed: %+v", topo)
	}
	if cpu := m.ChooseCPU(0); cpu != topo.NodeCPUs[0][0] {
		t.Fatalf("key 0 chose %d, want first cpu %d", cpu, topo.NodeCPUs[0][0])
	}
}

// TestConfigureAggregatesOnPinOnly: a refused priority elevation must not
// fail the call, while a refused pin must.
func TestConfigureAggregatesOnPinOnly(t *testing.T) {
	plat := twoNodeBox()
	plat.fifoOK = false // no CAP_SYS_NICE
	m := newManager(plat, zap.NewNop())
	if !m.ConfigureForLowLatency("csvlogger", 5, 99, Auto) {
		t.Fatal("refused priority should not fail configuration")
	}
	if len(plat.pinnedTo) != 1 || plat.pinnedTo[0] != 5 {
		t.Fatalf("pin calls = %v, want [5]", plat.pinnedTo)
	}
	if len(plat.memNodes) != 1 || plat.memNodes[0] != 1 {
		t.Fatalf("memory policy nodes = %v, want [1] (node owning cpu 5)", plat.memNodes)
	}
	if len(plat.namesSet) != 1 || plat.namesSet[0] != "csvlogger" {
		t.Fatalf("names = %v", plat.namesSet)
	}

	plat2 := twoNodeBox()
	plat2.pinOK = false
	m2 := newManager(plat2, zap.NewNop())
	if m2.ConfigureForLowLatency("csvlogger", 5, 99, Auto) {
		t.Fatal("refused pin must fail configuration")
	}
	// Best-effort steps still ran after the failed pin.
	if len(plat2.fifoAsked) != 1 {
		t.Fatal("priority step skipped after pin failure")
	}
}

// TestConfigureAutoSelection resolves Auto cpu and node through the topology.
func TestConfigureAutoSelection(t *testing.T) {
	plat := twoNodeBox()
	m := newManager(plat, zap.NewNop())
	if !m.ConfigureForLowLatency("worker", Auto, 0, Auto) {
		t.Fatal("auto configure should succeed")
	}
	cpu := plat.pinnedTo[0]
	if cpu < 4 || cpu > 7 {
		t.Fatalf("auto pin landed on cpu %d, want remote node 1", cpu)
	}
	if plat.memNodes[0] != 1 {
		t.Fatalf("auto memory node = %d, want 1", plat.memNodes[0])
	}
	if plat.fifoAsked[0] != DefaultPriority {
		t.Fatalf("default priority = %d, want %d", plat.fifoAsked[0], DefaultPriority)
	}
}

// TestParseCPUList covers the sysfs cpulist grammar, including malformed
// segments that must be skipped rather than poisoning the list.
func TestParseCPUList(t *testing.T) {
	cases := []struct {
		in   string
		want []int
	}{
		{"0-3", []int{0, 1, 2, 3}},
		{"0-1,4,6-7\n", []int{0, 1, 4, 6, 7}},
		{"2", []int{2}},
		{"", nil},
		{"x,3-2,5", []int{5}},
	}
	for _, c := range cases {
		if got := parseCPUList(c.in); !reflect.DeepEqual(got, c.want) {
			t.Fatalf("parseCPUList(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
