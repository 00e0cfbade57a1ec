package power

import (
	"testing"
	"time"

	"github.com/railgate-project/railgate-go/internal/testharness"
	"github.com/railgate-project/railgate-go/pkg/bus/memtree"
	"github.com/railgate-project/railgate-go/pkg/firmware/sim"
)

// fixture wires a simulated controller chip and an in-memory device tree
// to a Controller with fast test tunables.
type fixture struct {
	fw   *sim.Controller
	tree *memtree.Tree
	rec  *testharness.Recorder
	ctrl *Controller
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PollAttempts = 5
	cfg.PollMin = 50 * time.Microsecond
	cfg.PollMax = 100 * time.Microsecond
	cfg.SettleDelay = time.Millisecond
	cfg.AutosuspendDelay = 25 * time.Millisecond
	return cfg
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()

	f := &fixture{
		fw:   sim.New(),
		tree: memtree.New("controller"),
		rec:  &testharness.Recorder{},
	}
	mustAdd(t, f.tree, "controller", "port-a")
	mustAdd(t, f.tree, "controller", "port-b")
	mustAdd(t, f.tree, "port-a", "hub")

	cfg := testConfig()
	cfg.EventLogger = f.rec
	if mutate != nil {
		mutate(&cfg)
	}

	ctrl, err := Init(f.fw, f.fw, f.tree, cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	f.ctrl = ctrl
	t.Cleanup(ctrl.Fini)
	return f
}

func mustAdd(t *testing.T, tree *memtree.Tree, parent, id string) {
	t.Helper()
	if _, err := tree.Add(parent, id); err != nil {
		t.Fatalf("add %s under %s: %v", id, parent, err)
	}
}

// suspend drives a clean suspend and fails the test if the controller
// does not land in SUSPENDED.
func (f *fixture) suspend(t *testing.T) {
	t.Helper()
	if err := f.ctrl.RuntimeSuspend(); err != nil {
		t.Fatalf("RuntimeSuspend: %v", err)
	}
	if got := f.ctrl.State(); got != StateSuspended {
		t.Fatalf("state after suspend = %v, want %v", got, StateSuspended)
	}
}

func (f *fixture) savedCount() int {
	f.ctrl.mu.Lock()
	defer f.ctrl.mu.Unlock()
	return len(f.ctrl.saved)
}

func (f *fixture) waitState(t *testing.T, want State) {
	t.Helper()
	testharness.WaitUntil(t, 2*time.Second, func() bool {
		return f.ctrl.State() == want
	}, "controller did not reach "+want.String())
}

func (f *fixture) descendant(t *testing.T, id string) *memtree.Node {
	t.Helper()
	n, ok := f.tree.Device(id)
	if !ok {
		t.Fatalf("device %s missing from tree", id)
	}
	return n
}

var descendantIDs = []string{"port-a", "port-b", "hub"}
