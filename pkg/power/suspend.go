package power

import (
	"math/rand/v2"
	"time"

	"github.com/railgate-project/railgate-go/pkg/firmware"
)

// RuntimeSuspend drives the controller from active to fully powered off.
//
// It returns nil once the chip confirmed power-down and the wake event is
// armed. Any transient obstacle, including a rolled-back failure anywhere
// in the sequence, returns ErrRetry with the controller guaranteed back
// in ACTIVE; the underlying cause is logged and recorded in the event
// trace, never surfaced to the caller.
func (c *Controller) RuntimeSuspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runtimeSuspendLocked()
}

func (c *Controller) runtimeSuspendLocked() error {
	if c.state == StateSuspended {
		return nil
	}

	if c.usage > 0 {
		c.debugLog("suspend rejected, controller in use", "controller", c.id, "usage", c.usage)
		return ErrRetry
	}
	if !c.tree.DeepOffAllowed() {
		c.debugLog("suspend rejected, deep power-off not allowed", "controller", c.id)
		return ErrRetry
	}

	c.setStateLocked(StateSuspending, "")

	// Snapshot and tag the subtree before anything can fail further in,
	// so the chip never loses power with unsaved descendant state.
	if err := c.snapshotDescendantsLocked(); err != nil {
		c.warnLog("descendant snapshot failed", "controller", c.id, "error", err)
		c.emitError("descendant snapshot failed", err.Error())
		c.saved = nil
		c.setStateLocked(StateActive, "snapshot failed")
		return ErrRetry
	}
	c.markDeepOffLocked()

	// Generic suspend of the controller device itself. Power is still
	// on, so descendant configs are intact: undoing only needs resume
	// requests, no restores.
	if err := c.suspendRootLocked(); err != nil {
		c.warnLog("controller device suspend failed", "controller", c.id, "error", err)
		c.emitError("controller device suspend failed", err.Error())
		c.requestResumeAllLocked()
		c.saved = nil
		c.setStateLocked(StateActive, "device suspend failed")
		return ErrRetry
	}

	// Firmware handshake. From here on every failure takes the single
	// rollback path.
	arg := uint64(0)
	if err := c.setPower.Call(0); err != nil {
		c.errorLog("power-off call failed", "controller", c.id, "method", c.setPower.Name(), "error", err)
		c.emitFirmware(firmware.OpSetPower, c.setPower.Name(), &arg, nil, 0, err)
		c.rollbackLocked(err)
		return ErrRetry
	}

	if err := c.confirmPowerDownLocked(); err != nil {
		c.rollbackLocked(err)
		return ErrRetry
	}

	if err := c.events.Arm(c.wakeID); err != nil {
		c.errorLog("wake arm failed", "controller", c.id, "error", err)
		c.emitFirmware(firmware.OpArmWake, "", nil, nil, 0, err)
		c.rollbackLocked(err)
		return ErrRetry
	}

	c.idleTimer.Stop()
	c.setStateLocked(StateSuspended, "")
	return nil
}

// confirmPowerDownLocked polls the power query method until the chip
// reports powered down, for at most PollAttempts with a short random
// sleep between attempts. The poll is condensed into one event record
// carrying the attempt count.
func (c *Controller) confirmPowerDownLocked() error {
	span := c.cfg.PollMax - c.cfg.PollMin

	for attempt := 1; attempt <= c.cfg.PollAttempts; attempt++ {
		down, err := c.getPower.Query()
		if err != nil {
			c.errorLog("power query failed", "controller", c.id,
				"method", c.getPower.Name(), "attempt", attempt, "error", err)
			c.emitFirmware(firmware.OpGetPower, c.getPower.Name(), nil, nil, attempt, err)
			return err
		}
		if down != 0 {
			c.debugLog("power-down confirmed", "controller", c.id, "attempts", attempt)
			c.emitFirmware(firmware.OpGetPower, c.getPower.Name(), nil, &down, attempt, nil)
			return nil
		}

		sleep := c.cfg.PollMin
		if span > 0 {
			sleep += rand.N(span)
		}
		time.Sleep(sleep)
	}

	c.errorLog("power-down confirmation timed out", "controller", c.id,
		"method", c.getPower.Name(), "attempts", c.cfg.PollAttempts)
	c.emitFirmware(firmware.OpGetPower, c.getPower.Name(), nil, nil, c.cfg.PollAttempts, ErrConfirmTimeout)
	return ErrConfirmTimeout
}

// rollbackLocked is the single recovery path for a failed power-down.
// The power-on call is best effort; the controller device and all
// descendants are restored and the descendants asked to resume. The
// controller is back in ACTIVE when this returns.
func (c *Controller) rollbackLocked(cause error) {
	c.warnLog("suspend rolling back", "controller", c.id, "cause", cause)

	powerOnFailed := false
	arg := uint64(1)
	if err := c.setPower.Call(1); err != nil {
		powerOnFailed = true
		c.errorLog("rollback power-on failed", "controller", c.id,
			"method", c.setPower.Name(), "error", err)
		c.emitFirmware(firmware.OpSetPower, c.setPower.Name(), &arg, nil, 0, err)
	}

	c.restoreRootLocked()
	c.restoreDescendantsLocked()
	resumed := c.requestResumeAllLocked()
	c.saved = nil

	c.setStateLocked(StateActive, "rollback")
	c.emitRollback(cause, powerOnFailed, resumed)
}
