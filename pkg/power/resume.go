package power

import (
	"time"

	"github.com/railgate-project/railgate-go/pkg/firmware"
)

// RuntimeResume drives the controller from powered off back to active.
//
// It returns nil when the chip is active again, ErrShuttingDown when the
// host is going down (nothing was touched), and ErrNoDevice when the chip
// refused to power back on, which is fatal: power management is disabled
// and the hardware is not trusted further. A resume request for an
// already-active controller is a no-op, which is how a deferred wake
// request after a rolled-back suspend resolves.
func (c *Controller) RuntimeResume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runtimeResumeLocked()
}

func (c *Controller) runtimeResumeLocked() error {
	if c.state == StateActive {
		return nil
	}
	if c.broken {
		return ErrNoDevice
	}
	if c.shuttingDown() {
		c.debugLog("resume rejected, host shutting down", "controller", c.id)
		return ErrShuttingDown
	}

	c.setStateLocked(StateResuming, "")

	// A wake event that cannot be disarmed risks an interrupt storm the
	// moment the chip powers up. Keep the controller permanently active
	// instead of aborting: the resume itself is still the right move.
	if err := c.events.Disarm(c.wakeID); err != nil {
		c.errorLog("wake disarm failed, disabling runtime power management",
			"controller", c.id, "error", err)
		c.emitFirmware(firmware.OpDisarmWake, "", nil, nil, 0, err)
		c.forbidLocked()
	}

	arg := uint64(1)
	if err := c.setPower.Call(1); err != nil {
		c.errorLog("power-on call failed", "controller", c.id,
			"method", c.setPower.Name(), "error", err)
		c.emitFirmware(firmware.OpSetPower, c.setPower.Name(), &arg, nil, 0, err)
		c.broken = true
		c.forbidLocked()
		c.setStateLocked(StateSuspended, "power-on failed")
		return ErrNoDevice
	}

	c.restoreRootLocked()
	c.restoreDescendantsLocked()
	c.requestResumeAllLocked()
	c.saved = nil

	// On hardware generations where the hot-plug detect event arrives
	// asynchronously after power-up, returning too early loses it.
	if c.cfg.SettleDelay > 0 {
		time.Sleep(c.cfg.SettleDelay)
	}

	c.setStateLocked(StateActive, "")
	c.markBusyLocked()
	return nil
}
