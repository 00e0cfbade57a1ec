package log

import (
	"testing"
	"time"

	"github.com/railgate-project/railgate-go/pkg/firmware"
)

func TestNoopLoggerAcceptsEveryPayload(t *testing.T) {
	events := []Event{
		{},
		{Timestamp: time.Now(), ControllerID: "ctrl-1", Category: CategoryState,
			StateChange: &StateChangeEvent{OldState: "ACTIVE", NewState: "SUSPENDING"}},
		{Timestamp: time.Now(), ControllerID: "ctrl-1", Category: CategoryFirmware,
			FirmwareCall: &FirmwareCallEvent{Op: firmware.OpGetPower, Method: "XRIL", Attempts: 12}},
		{Timestamp: time.Now(), ControllerID: "ctrl-1", Category: CategoryWake,
			Wake: &WakeEventData{EventID: 3, Coalesced: true}},
		{Timestamp: time.Now(), ControllerID: "ctrl-1", Category: CategoryRollback,
			Rollback: &RollbackEvent{Cause: "power-down not confirmed", DevicesResumed: 2}},
		{Timestamp: time.Now(), ControllerID: "ctrl-1", Category: CategoryError,
			Error: &ErrorEventData{Message: "wake disarm failed"}},
	}

	// Must swallow everything, including the zero event, without panic.
	var logger NoopLogger
	for _, e := range events {
		logger.Log(e)
	}
}

func TestNoopLoggerUsableBehindInterface(t *testing.T) {
	// The controller stores its sink as a Logger and never checks for
	// noop, so the zero value must work through the interface.
	var logger Logger = NoopLogger{}
	logger.Log(Event{Timestamp: time.Now(), ControllerID: "ctrl-1", Category: CategoryState})
}
