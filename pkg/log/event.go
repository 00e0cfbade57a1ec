package log

import (
	"time"

	"github.com/railgate-project/railgate-go/pkg/firmware"
)

// Event represents a power lifecycle event for one controller.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ControllerID uniquely identifies the controller instance (UUID).
	ControllerID string `cbor:"2,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"3,keyasint"`

	// Type-specific payload (one of these will be set).
	StateChange  *StateChangeEvent  `cbor:"4,keyasint,omitempty"`
	FirmwareCall *FirmwareCallEvent `cbor:"5,keyasint,omitempty"`
	Wake         *WakeEventData     `cbor:"6,keyasint,omitempty"`
	Rollback     *RollbackEvent     `cbor:"7,keyasint,omitempty"`
	Error        *ErrorEventData    `cbor:"8,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState indicates a power state transition.
	CategoryState Category = 0
	// CategoryFirmware indicates a firmware power call.
	CategoryFirmware Category = 1
	// CategoryWake indicates a wake signal delivery.
	CategoryWake Category = 2
	// CategoryRollback indicates a suspend rollback.
	CategoryRollback Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryFirmware:
		return "FIRMWARE"
	case CategoryWake:
		return "WAKE"
	case CategoryRollback:
		return "ROLLBACK"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures a power state machine transition.
type StateChangeEvent struct {
	// OldState is the previous state.
	OldState string `cbor:"1,keyasint"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// FirmwareCallEvent captures one firmware power call and its outcome.
// Confirmation polls are condensed: a single event carries the final
// result and the number of attempts used.
type FirmwareCallEvent struct {
	// Op is the firmware operation.
	Op firmware.Op `cbor:"1,keyasint"`

	// Method is the resolved firmware identifier (power methods only).
	Method string `cbor:"2,keyasint,omitempty"`

	// Arg is the call argument (set_power only).
	Arg *uint64 `cbor:"3,keyasint,omitempty"`

	// Result is the query result (get_power only).
	Result *uint64 `cbor:"4,keyasint,omitempty"`

	// Attempts is the number of poll attempts used (get_power
	// confirmation polling only).
	Attempts int `cbor:"5,keyasint,omitempty"`

	// Err is the failure message, empty on success.
	Err string `cbor:"6,keyasint,omitempty"`
}

// WakeEventData captures a wake signal delivery.
type WakeEventData struct {
	// EventID is the firmware wake event number.
	EventID uint32 `cbor:"1,keyasint"`

	// Coalesced indicates the firing was merged into a resume request
	// already pending.
	Coalesced bool `cbor:"2,keyasint,omitempty"`
}

// RollbackEvent captures a suspend rollback.
type RollbackEvent struct {
	// Cause is the failure that triggered the rollback.
	Cause string `cbor:"1,keyasint"`

	// PowerOnFailed indicates the best-effort power-on during rollback
	// itself failed.
	PowerOnFailed bool `cbor:"2,keyasint,omitempty"`

	// DevicesResumed is how many descendants had a resume requested.
	DevicesResumed int `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors outside the other categories.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`
}
