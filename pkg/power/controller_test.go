package power

import (
	"errors"
	"testing"

	"github.com/railgate-project/railgate-go/pkg/bus/memtree"
	"github.com/railgate-project/railgate-go/pkg/firmware"
	"github.com/railgate-project/railgate-go/pkg/firmware/sim"
)

func TestInitResolvesLegacyMethodFirst(t *testing.T) {
	f := newFixture(t, nil)

	// Both generations present: the legacy identifier wins.
	if got := f.ctrl.setPower.Name(); got != sim.MethodSetPowerLegacy {
		t.Errorf("set_power resolved to %s, want %s", got, sim.MethodSetPowerLegacy)
	}
	if got := f.ctrl.getPower.Name(); got != sim.MethodGetPower {
		t.Errorf("get_power resolved to %s, want %s", got, sim.MethodGetPower)
	}
}

func TestInitFallsBackToSuccessorMethod(t *testing.T) {
	fw := sim.New()
	fw.RemoveMethod(sim.MethodSetPowerLegacy)
	tree := memtree.New("controller")

	ctrl, err := Init(fw, fw, tree, testConfig())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer ctrl.Fini()

	if got := ctrl.setPower.Name(); got != sim.MethodSetPower {
		t.Errorf("set_power resolved to %s, want %s", got, sim.MethodSetPower)
	}
}

func TestInitFailsWithoutAnyPowerMethod(t *testing.T) {
	fw := sim.New()
	fw.RemoveMethod(sim.MethodSetPowerLegacy)
	fw.RemoveMethod(sim.MethodSetPower)
	tree := memtree.New("controller")

	ctrl, err := Init(fw, fw, tree, testConfig())
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("Init = %v, want ErrIncomplete", err)
	}
	if ctrl != nil {
		t.Fatal("Init returned a controller despite incomplete discovery")
	}
	if n := len(fw.Calls()); n != 0 {
		t.Errorf("firmware calls during failed discovery = %d, want 0", n)
	}
}

func TestInitFailsWithoutWakeEvent(t *testing.T) {
	fw := sim.New()
	fw.RemoveWakeEvent()
	tree := memtree.New("controller")

	ctrl, err := Init(fw, fw, tree, testConfig())
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("Init = %v, want ErrIncomplete", err)
	}
	if ctrl != nil {
		t.Fatal("Init returned a controller despite incomplete discovery")
	}

	// Discovery is all-or-nothing: the chip was never touched and
	// simply stays active.
	if n := len(fw.Calls()); n != 0 {
		t.Errorf("firmware calls during failed discovery = %d, want 0", n)
	}
	if !fw.Powered() {
		t.Error("chip no longer powered after failed discovery")
	}
}

func TestInitFailsWhenHandlerSlotTaken(t *testing.T) {
	fw := sim.New()
	id, err := fw.WakeEvent(sim.WakeEventName)
	if err != nil {
		t.Fatalf("WakeEvent: %v", err)
	}
	if err := fw.InstallHandler(id, func(firmware.EventID) {}); err != nil {
		t.Fatalf("InstallHandler: %v", err)
	}
	tree := memtree.New("controller")

	if _, err := Init(fw, fw, tree, testConfig()); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("Init = %v, want ErrIncomplete", err)
	}
}

func TestInitRejectsInvalidConfig(t *testing.T) {
	fw := sim.New()
	tree := memtree.New("controller")
	cfg := testConfig()
	cfg.PollAttempts = -1

	if _, err := Init(fw, fw, tree, cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Init = %v, want ErrInvalidConfig", err)
	}
}

func TestFiniReleasesWakeResources(t *testing.T) {
	f := newFixture(t, nil)
	f.suspend(t)

	f.ctrl.Fini()

	if f.fw.Armed() {
		t.Error("wake event still armed after Fini")
	}

	// The handler slot is free again for the next owner.
	id, err := f.fw.WakeEvent(sim.WakeEventName)
	if err != nil {
		t.Fatalf("WakeEvent: %v", err)
	}
	if err := f.fw.InstallHandler(id, func(firmware.EventID) {}); err != nil {
		t.Errorf("handler slot still taken after Fini: %v", err)
	}
}

func TestControllerIDsAreUnique(t *testing.T) {
	a := newFixture(t, nil)
	b := newFixture(t, nil)

	if a.ctrl.ID() == "" {
		t.Fatal("empty controller ID")
	}
	if a.ctrl.ID() == b.ctrl.ID() {
		t.Errorf("two controllers share ID %s", a.ctrl.ID())
	}
}
