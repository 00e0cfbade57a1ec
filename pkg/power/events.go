package power

import (
	"time"

	"github.com/railgate-project/railgate-go/pkg/firmware"
	"github.com/railgate-project/railgate-go/pkg/log"
)

// emitState records a state transition in the event trace.
func (c *Controller) emitState(from, to State, reason string) {
	c.cfg.EventLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ControllerID: c.id,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
}

// emitFirmware records a firmware call outcome. The confirmation poll is
// condensed into a single record carrying the attempt count.
func (c *Controller) emitFirmware(op firmware.Op, method string, arg, result *uint64, attempts int, err error) {
	fc := &log.FirmwareCallEvent{
		Op:       op,
		Method:   method,
		Arg:      arg,
		Result:   result,
		Attempts: attempts,
	}
	if err != nil {
		fc.Err = err.Error()
	}
	c.cfg.EventLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ControllerID: c.id,
		Category:     log.CategoryFirmware,
		FirmwareCall: fc,
	})
}

// emitWake records a serviced wake event.
func (c *Controller) emitWake(id firmware.EventID, coalesced bool) {
	c.cfg.EventLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ControllerID: c.id,
		Category:     log.CategoryWake,
		Wake: &log.WakeEventData{
			EventID:   uint32(id),
			Coalesced: coalesced,
		},
	})
}

// emitRollback records a completed suspend rollback.
func (c *Controller) emitRollback(cause error, powerOnFailed bool, devicesResumed int) {
	c.cfg.EventLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ControllerID: c.id,
		Category:     log.CategoryRollback,
		Rollback: &log.RollbackEvent{
			Cause:          cause.Error(),
			PowerOnFailed:  powerOnFailed,
			DevicesResumed: devicesResumed,
		},
	})
}

// emitError records a non-firmware failure in the event trace.
func (c *Controller) emitError(msg, context string) {
	c.cfg.EventLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ControllerID: c.id,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Message: msg,
			Context: context,
		},
	})
}
