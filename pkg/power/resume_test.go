package power

import (
	"errors"
	"testing"
	"time"

	"github.com/railgate-project/railgate-go/pkg/bus"
	"github.com/railgate-project/railgate-go/pkg/firmware"
	"github.com/railgate-project/railgate-go/pkg/log"
)

func TestRuntimeResumeRestoresActive(t *testing.T) {
	f := newFixture(t, nil)
	f.suspend(t)
	f.rec.Reset()

	if err := f.ctrl.RuntimeResume(); err != nil {
		t.Fatalf("RuntimeResume: %v", err)
	}

	if got := f.ctrl.State(); got != StateActive {
		t.Errorf("state = %v, want %v", got, StateActive)
	}
	if !f.fw.Powered() {
		t.Error("chip not powered after resume")
	}
	if f.fw.Armed() {
		t.Error("wake event still armed after resume")
	}
	if got := f.savedCount(); got != 0 {
		t.Errorf("saved snapshots = %d, want 0", got)
	}

	if got := f.tree.Root().PowerState(); got != bus.PowerActive {
		t.Errorf("root power tag = %v, want %v", got, bus.PowerActive)
	}
	for _, id := range descendantIDs {
		if !f.descendant(t, id).ResumePending() {
			t.Errorf("%s has no pending resume request", id)
		}
	}
	if got := f.tree.DrainResumes(); got != 3 {
		t.Errorf("drained resumes = %d, want 3", got)
	}
	for _, id := range descendantIDs {
		if got := f.descendant(t, id).PowerState(); got != bus.PowerActive {
			t.Errorf("%s power tag = %v, want %v", id, got, bus.PowerActive)
		}
	}

	seq := f.rec.StateSequence()
	if len(seq) != 2 || seq[0] != "RESUMING" || seq[1] != "ACTIVE" {
		t.Errorf("state sequence = %v, want [RESUMING ACTIVE]", seq)
	}
}

func TestRuntimeResumeNoopWhenActive(t *testing.T) {
	f := newFixture(t, nil)
	f.fw.ResetCalls()

	if err := f.ctrl.RuntimeResume(); err != nil {
		t.Fatalf("RuntimeResume: %v", err)
	}
	if n := len(f.fw.Calls()); n != 0 {
		t.Errorf("firmware calls = %d, want 0", n)
	}
	if n := len(f.rec.Category(log.CategoryState)); n != 0 {
		t.Errorf("state events = %d, want 0", n)
	}
}

func TestRuntimeResumeRefusedDuringShutdown(t *testing.T) {
	shutdown := false
	f := newFixture(t, func(cfg *Config) {
		cfg.ShutdownCheck = func() bool { return shutdown }
	})
	f.suspend(t)
	f.fw.ResetCalls()

	shutdown = true
	err := f.ctrl.RuntimeResume()
	if !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("RuntimeResume = %v, want ErrShuttingDown", err)
	}
	if got := f.ctrl.State(); got != StateSuspended {
		t.Errorf("state = %v, want %v", got, StateSuspended)
	}
	if n := len(f.fw.Calls()); n != 0 {
		t.Errorf("firmware calls during shutdown = %d, want 0", n)
	}
	if !f.fw.Armed() {
		t.Error("wake event disturbed during shutdown")
	}

	// An aborted shutdown leaves the controller fully resumable.
	shutdown = false
	if err := f.ctrl.RuntimeResume(); err != nil {
		t.Fatalf("RuntimeResume after shutdown cleared: %v", err)
	}
	if got := f.ctrl.State(); got != StateActive {
		t.Errorf("state = %v, want %v", got, StateActive)
	}
}

func TestRuntimeResumeDisarmFailureDisablesAutosuspend(t *testing.T) {
	f := newFixture(t, nil)
	f.suspend(t)
	f.fw.SetFault(firmware.OpDisarmWake, errors.New("ec wedged"))

	// The resume itself still goes through.
	if err := f.ctrl.RuntimeResume(); err != nil {
		t.Fatalf("RuntimeResume: %v", err)
	}
	if got := f.ctrl.State(); got != StateActive {
		t.Errorf("state = %v, want %v", got, StateActive)
	}
	if !f.fw.Powered() {
		t.Error("chip not powered after resume")
	}

	// But the controller now holds a permanent usage reference.
	if got := f.ctrl.Usage(); got != 1 {
		t.Errorf("usage = %d, want 1", got)
	}
	if err := f.ctrl.RuntimeSuspend(); !errors.Is(err, ErrRetry) {
		t.Errorf("RuntimeSuspend = %v, want ErrRetry while disabled", err)
	}

	found := false
	for _, e := range f.rec.Category(log.CategoryFirmware) {
		if e.FirmwareCall.Op == firmware.OpDisarmWake && e.FirmwareCall.Err != "" {
			found = true
		}
	}
	if !found {
		t.Error("disarm failure not recorded in the event trace")
	}
}

func TestRuntimeResumePowerOnFailureIsFatal(t *testing.T) {
	f := newFixture(t, nil)
	f.suspend(t)
	f.rec.Reset()
	f.fw.SetFault(firmware.OpSetPower, errors.New("rail fault"))

	err := f.ctrl.RuntimeResume()
	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("RuntimeResume = %v, want ErrNoDevice", err)
	}
	if got := f.ctrl.State(); got != StateSuspended {
		t.Errorf("state = %v, want %v", got, StateSuspended)
	}
	if got := f.ctrl.Usage(); got != 1 {
		t.Errorf("usage = %d, want 1", got)
	}

	states := f.rec.Category(log.CategoryState)
	if len(states) != 2 {
		t.Fatalf("state events = %d, want 2", len(states))
	}
	last := states[1].StateChange
	if last.NewState != "SUSPENDED" || last.Reason != "power-on failed" {
		t.Errorf("final transition = %+v, want SUSPENDED with reason %q", last, "power-on failed")
	}

	// Further resume attempts never touch the firmware again, even
	// after the fault clears: the hardware is no longer trusted.
	f.fw.ClearFault(firmware.OpSetPower)
	calls := len(f.fw.Calls())
	if err := f.ctrl.RuntimeResume(); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("repeat RuntimeResume = %v, want ErrNoDevice", err)
	}
	if got := len(f.fw.Calls()); got != calls {
		t.Errorf("firmware calls grew from %d to %d on a dead controller", calls, got)
	}
}

func TestRuntimeResumeWaitsForSettle(t *testing.T) {
	const settle = 30 * time.Millisecond
	f := newFixture(t, func(cfg *Config) {
		cfg.SettleDelay = settle
	})
	f.suspend(t)

	start := time.Now()
	if err := f.ctrl.RuntimeResume(); err != nil {
		t.Fatalf("RuntimeResume: %v", err)
	}
	if elapsed := time.Since(start); elapsed < settle {
		t.Errorf("resume returned after %v, want at least %v for hot-plug settle", elapsed, settle)
	}
}
