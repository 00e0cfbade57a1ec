package power

import (
	"github.com/railgate-project/railgate-go/pkg/firmware"
)

// Prepare is the hook invoked before the whole system suspends.
//
// An active controller needs nothing done. A suspended controller has its
// wake event disarmed for the transition window, because a wake firing
// mid-transition cannot be serviced by the host. If disarming fails the
// remedy is a full asynchronous resume rather than proceeding with a wake
// event in an unknown state; Prepare still returns nil in that case.
func (c *Controller) Prepare() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateSuspended {
		return nil
	}

	if err := c.events.Disarm(c.wakeID); err != nil {
		c.errorLog("wake disarm failed before system sleep, requesting resume",
			"controller", c.id, "error", err)
		c.emitFirmware(firmware.OpDisarmWake, "", nil, nil, 0, err)
		c.RequestResume()
	}
	return nil
}

// Complete is the hook invoked after the whole system resumes.
//
// A controller that went into system sleep suspended has lost power
// uncleanly, and the firmware power switch now refuses a direct power-on
// call. Complete resets the switch with one idempotent power-off call so
// that the next RuntimeResume's power-on succeeds, then re-arms the wake
// event. If re-arming fails the fallback is a full asynchronous resume.
func (c *Controller) Complete() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateSuspended {
		return nil
	}

	arg := uint64(0)
	if err := c.setPower.Call(0); err != nil {
		c.warnLog("power switch reset failed after system sleep",
			"controller", c.id, "method", c.setPower.Name(), "error", err)
		c.emitFirmware(firmware.OpSetPower, c.setPower.Name(), &arg, nil, 0, err)
	}

	if err := c.events.Arm(c.wakeID); err != nil {
		c.errorLog("wake re-arm failed after system sleep, requesting resume",
			"controller", c.id, "error", err)
		c.emitFirmware(firmware.OpArmWake, "", nil, nil, 0, err)
		c.RequestResume()
	}
	return nil
}
