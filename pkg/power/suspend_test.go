package power

import (
	"errors"
	"testing"

	"github.com/railgate-project/railgate-go/pkg/bus"
	"github.com/railgate-project/railgate-go/pkg/firmware"
	"github.com/railgate-project/railgate-go/pkg/log"
)

func TestRuntimeSuspendPowersDownAndArmsWake(t *testing.T) {
	f := newFixture(t, nil)

	f.suspend(t)

	if f.fw.Powered() {
		t.Error("chip still powered after suspend")
	}
	if !f.fw.Armed() {
		t.Error("wake event not armed after suspend")
	}
	if got := f.fw.SetPowerCalls(0); got != 1 {
		t.Errorf("power-off calls = %d, want 1", got)
	}
	if got := f.fw.CallCount(firmware.OpGetPower); got != 1 {
		t.Errorf("confirmation polls = %d, want 1", got)
	}

	if got := f.tree.Root().PowerState(); got != bus.PowerOff {
		t.Errorf("root power tag = %v, want %v", got, bus.PowerOff)
	}
	for _, id := range descendantIDs {
		if got := f.descendant(t, id).PowerState(); got != bus.PowerDeepOff {
			t.Errorf("%s power tag = %v, want %v", id, got, bus.PowerDeepOff)
		}
	}

	// Root plus three descendants.
	if got := f.savedCount(); got != 4 {
		t.Errorf("saved snapshots = %d, want 4", got)
	}

	seq := f.rec.StateSequence()
	if len(seq) != 2 || seq[0] != "SUSPENDING" || seq[1] != "SUSPENDED" {
		t.Errorf("state sequence = %v, want [SUSPENDING SUSPENDED]", seq)
	}

	// The confirmation poll condenses into a single trace record.
	fwEvents := f.rec.Category(log.CategoryFirmware)
	if len(fwEvents) != 1 {
		t.Fatalf("firmware events = %d, want 1", len(fwEvents))
	}
	fc := fwEvents[0].FirmwareCall
	if fc.Op != firmware.OpGetPower || fc.Attempts != 1 || fc.Err != "" {
		t.Errorf("poll record = %+v, want successful GET_POWER with 1 attempt", fc)
	}
}

func TestRuntimeSuspendIdempotentWhenSuspended(t *testing.T) {
	f := newFixture(t, nil)
	f.suspend(t)
	f.fw.ResetCalls()

	if err := f.ctrl.RuntimeSuspend(); err != nil {
		t.Fatalf("second RuntimeSuspend: %v", err)
	}
	if n := len(f.fw.Calls()); n != 0 {
		t.Errorf("firmware calls on repeat suspend = %d, want 0", n)
	}
}

func TestRuntimeSuspendRejectedWhileInUse(t *testing.T) {
	f := newFixture(t, nil)
	f.ctrl.Get()
	defer f.ctrl.Put()

	err := f.ctrl.RuntimeSuspend()
	if !errors.Is(err, ErrRetry) {
		t.Fatalf("RuntimeSuspend = %v, want ErrRetry", err)
	}
	if got := f.ctrl.State(); got != StateActive {
		t.Errorf("state = %v, want %v", got, StateActive)
	}
	if n := len(f.fw.Calls()); n != 0 {
		t.Errorf("firmware calls = %d, want 0", n)
	}
	if n := len(f.rec.Category(log.CategoryState)); n != 0 {
		t.Errorf("state events = %d, want 0 for a pre-sequence rejection", n)
	}
}

func TestRuntimeSuspendRejectedByPolicy(t *testing.T) {
	f := newFixture(t, nil)
	f.tree.SetDeepOffAllowed(false)

	err := f.ctrl.RuntimeSuspend()
	if !errors.Is(err, ErrRetry) {
		t.Fatalf("RuntimeSuspend = %v, want ErrRetry", err)
	}
	if n := len(f.fw.Calls()); n != 0 {
		t.Errorf("firmware calls = %d, want 0", n)
	}
}

func TestSuspendAbortsWhenDeviceSuspendFails(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.OnDeviceSuspend = func() error { return errors.New("driver busy") }
	})

	err := f.ctrl.RuntimeSuspend()
	if !errors.Is(err, ErrRetry) {
		t.Fatalf("RuntimeSuspend = %v, want ErrRetry", err)
	}
	if got := f.ctrl.State(); got != StateActive {
		t.Errorf("state = %v, want %v", got, StateActive)
	}

	// Power was never touched: the chip stays on and no firmware call
	// is issued, only the already-tagged descendants are nudged back.
	if !f.fw.Powered() {
		t.Error("chip lost power on an aborted suspend")
	}
	if n := len(f.fw.Calls()); n != 0 {
		t.Errorf("firmware calls = %d, want 0", n)
	}
	for _, id := range descendantIDs {
		if !f.descendant(t, id).ResumePending() {
			t.Errorf("%s has no pending resume request", id)
		}
	}
	if got := f.savedCount(); got != 0 {
		t.Errorf("saved snapshots = %d, want 0", got)
	}

	states := f.rec.Category(log.CategoryState)
	if len(states) != 2 {
		t.Fatalf("state events = %d, want 2", len(states))
	}
	last := states[1].StateChange
	if last.NewState != "ACTIVE" || last.Reason != "device suspend failed" {
		t.Errorf("final transition = %+v, want ACTIVE with reason %q", last, "device suspend failed")
	}
}

func TestSuspendRollsBackWhenChipRefusesPowerDown(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.PollAttempts = 300
	})
	f.fw.RefusePowerDown(true)

	err := f.ctrl.RuntimeSuspend()
	if !errors.Is(err, ErrRetry) {
		t.Fatalf("RuntimeSuspend = %v, want ErrRetry", err)
	}
	if got := f.ctrl.State(); got != StateActive {
		t.Errorf("state = %v, want %v", got, StateActive)
	}

	if got := f.fw.CallCount(firmware.OpGetPower); got != 300 {
		t.Errorf("confirmation polls = %d, want the full 300", got)
	}
	if got := f.fw.SetPowerCalls(0); got != 1 {
		t.Errorf("power-off calls = %d, want 1", got)
	}
	// The rollback power-on happens exactly once, never per poll.
	if got := f.fw.SetPowerCalls(1); got != 1 {
		t.Errorf("power-on calls = %d, want 1", got)
	}
	if !f.fw.Powered() {
		t.Error("chip not powered after rollback")
	}
	if f.fw.Armed() {
		t.Error("wake event armed after rollback")
	}

	for _, id := range descendantIDs {
		if !f.descendant(t, id).ResumePending() {
			t.Errorf("%s has no pending resume request", id)
		}
	}
	if got := f.tree.DrainResumes(); got != 3 {
		t.Errorf("drained resumes = %d, want 3", got)
	}
	if got := f.savedCount(); got != 0 {
		t.Errorf("saved snapshots = %d, want 0", got)
	}

	rb, ok := f.rec.LastRollback()
	if !ok {
		t.Fatal("no rollback event recorded")
	}
	if rb.PowerOnFailed {
		t.Error("rollback marked power-on failed, but it succeeded")
	}
	if rb.DevicesResumed != 3 {
		t.Errorf("rollback devices resumed = %d, want 3", rb.DevicesResumed)
	}
	if rb.Cause != ErrConfirmTimeout.Error() {
		t.Errorf("rollback cause = %q, want %q", rb.Cause, ErrConfirmTimeout.Error())
	}

	// The exhausted poll is one condensed record, not 300.
	polls := 0
	for _, e := range f.rec.Category(log.CategoryFirmware) {
		if e.FirmwareCall.Op == firmware.OpGetPower {
			polls++
			if e.FirmwareCall.Attempts != 300 || e.FirmwareCall.Err == "" {
				t.Errorf("poll record = %+v, want 300 attempts with an error", e.FirmwareCall)
			}
		}
	}
	if polls != 1 {
		t.Errorf("poll records = %d, want 1", polls)
	}
}

func TestSuspendRollsBackWhenPowerOffCallFails(t *testing.T) {
	f := newFixture(t, nil)
	f.fw.SetFault(firmware.OpSetPower, errors.New("ec timeout"))

	err := f.ctrl.RuntimeSuspend()
	if !errors.Is(err, ErrRetry) {
		t.Fatalf("RuntimeSuspend = %v, want ErrRetry", err)
	}
	if got := f.ctrl.State(); got != StateActive {
		t.Errorf("state = %v, want %v", got, StateActive)
	}
	if !f.fw.Powered() {
		t.Error("chip lost power despite the power-off call failing")
	}

	// The same fault hits the rollback's best-effort power-on; the
	// rollback still completes and records the double failure.
	rb, ok := f.rec.LastRollback()
	if !ok {
		t.Fatal("no rollback event recorded")
	}
	if !rb.PowerOnFailed {
		t.Error("rollback power-on failure not recorded")
	}
}

func TestSuspendRollsBackWhenQueryFails(t *testing.T) {
	f := newFixture(t, nil)
	f.fw.SetFault(firmware.OpGetPower, errors.New("ec read error"))

	err := f.ctrl.RuntimeSuspend()
	if !errors.Is(err, ErrRetry) {
		t.Fatalf("RuntimeSuspend = %v, want ErrRetry", err)
	}

	// The poll aborts on the first failed query rather than retrying.
	if got := f.fw.CallCount(firmware.OpGetPower); got != 1 {
		t.Errorf("confirmation polls = %d, want 1", got)
	}
	if got := f.fw.SetPowerCalls(1); got != 1 {
		t.Errorf("power-on calls = %d, want 1", got)
	}
	if !f.fw.Powered() {
		t.Error("chip not powered after rollback")
	}
}

func TestSuspendRollsBackWhenArmFails(t *testing.T) {
	f := newFixture(t, nil)
	f.fw.SetFault(firmware.OpArmWake, errors.New("no wake lines"))

	err := f.ctrl.RuntimeSuspend()
	if !errors.Is(err, ErrRetry) {
		t.Fatalf("RuntimeSuspend = %v, want ErrRetry", err)
	}
	if got := f.ctrl.State(); got != StateActive {
		t.Errorf("state = %v, want %v", got, StateActive)
	}
	if f.fw.Armed() {
		t.Error("wake event armed after rollback")
	}
	if !f.fw.Powered() {
		t.Error("chip not powered after rollback")
	}

	rb, ok := f.rec.LastRollback()
	if !ok {
		t.Fatal("no rollback event recorded")
	}
	if rb.PowerOnFailed {
		t.Error("rollback marked power-on failed, but it succeeded")
	}
}

func TestSuspendReleasesSnapshotsEachCycle(t *testing.T) {
	f := newFixture(t, nil)

	for cycle := 0; cycle < 3; cycle++ {
		f.suspend(t)
		if got := f.savedCount(); got != 4 {
			t.Fatalf("cycle %d: saved snapshots while suspended = %d, want 4", cycle, got)
		}
		if err := f.ctrl.RuntimeResume(); err != nil {
			t.Fatalf("cycle %d: RuntimeResume: %v", cycle, err)
		}
		if got := f.savedCount(); got != 0 {
			t.Fatalf("cycle %d: saved snapshots after resume = %d, want 0", cycle, got)
		}
		f.tree.DrainResumes()
	}
}

func TestDeviceHooksRunThroughSuspendCycle(t *testing.T) {
	var suspends, resumes int
	f := newFixture(t, func(cfg *Config) {
		cfg.OnDeviceSuspend = func() error { suspends++; return nil }
		cfg.OnDeviceResume = func() error { resumes++; return nil }
	})

	f.suspend(t)
	if suspends != 1 || resumes != 0 {
		t.Fatalf("after suspend: hooks = %d/%d, want 1/0", suspends, resumes)
	}

	if err := f.ctrl.RuntimeResume(); err != nil {
		t.Fatalf("RuntimeResume: %v", err)
	}
	if suspends != 1 || resumes != 1 {
		t.Fatalf("after resume: hooks = %d/%d, want 1/1", suspends, resumes)
	}

	// A rollback reverses the device suspend too.
	f.fw.RefusePowerDown(true)
	if err := f.ctrl.RuntimeSuspend(); !errors.Is(err, ErrRetry) {
		t.Fatalf("RuntimeSuspend = %v, want ErrRetry", err)
	}
	if suspends != 2 || resumes != 2 {
		t.Fatalf("after rollback: hooks = %d/%d, want 2/2", suspends, resumes)
	}
}
