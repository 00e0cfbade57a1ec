package firmware

import (
	"errors"
	"fmt"
)

// Firmware errors.
var (
	// ErrNotFound indicates a named firmware object does not exist on
	// this controller's namespace node.
	ErrNotFound = errors.New("firmware object not found")

	// ErrHandlerInstalled indicates a wake event already has a handler.
	ErrHandlerInstalled = errors.New("wake event handler already installed")

	// ErrNoHandler indicates a wake event has no installed handler.
	ErrNoHandler = errors.New("no wake event handler installed")
)

// EventID identifies a firmware wake event.
type EventID uint32

// Op identifies a firmware power operation for error reporting and logging.
type Op uint8

const (
	// OpSetPower is the unary power toggle method.
	OpSetPower Op = iota

	// OpGetPower is the nullary power state query method.
	OpGetPower

	// OpArmWake arms the controller's wake event.
	OpArmWake

	// OpDisarmWake disarms the controller's wake event.
	OpDisarmWake
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpSetPower:
		return "SET_POWER"
	case OpGetPower:
		return "GET_POWER"
	case OpArmWake:
		return "ARM_WAKE"
	case OpDisarmWake:
		return "DISARM_WAKE"
	default:
		return "UNKNOWN"
	}
}

// OpError reports a failed firmware call. The firmware contract varies
// across hardware revisions, so every failure carries the operation and,
// when known, the resolved method identifier.
type OpError struct {
	// Op is the operation that failed.
	Op Op

	// Method is the resolved firmware identifier, empty for wake event
	// operations.
	Method string

	// Err is the underlying backend error.
	Err error
}

// Error returns the formatted error message.
func (e *OpError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("firmware %s (%s): %v", e.Op, e.Method, e.Err)
	}
	return fmt.Sprintf("firmware %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying backend error.
func (e *OpError) Unwrap() error { return e.Err }

// Method is a control method resolved from a controller's firmware node.
// Implementations must be safe for concurrent use; handles are read-only
// after resolution.
type Method interface {
	// Name returns the identifier the method was resolved from.
	Name() string

	// Call evaluates the method with a single integer argument,
	// discarding any result.
	Call(arg uint64) error

	// Query evaluates the method with no arguments and returns its
	// integer result.
	Query() (uint64, error)
}

// Node is the firmware namespace node of one controller.
type Node interface {
	// Method resolves a named control method. Returns an error wrapping
	// ErrNotFound if the node does not carry the identifier.
	Method(name string) (Method, error)

	// WakeEvent resolves a named wake event object to its event number.
	// Returns an error wrapping ErrNotFound if the object is absent.
	WakeEvent(name string) (EventID, error)
}

// Handler is invoked when an armed wake event fires. It runs on the
// backend's dispatch goroutine, which on real hardware is the interrupt
// path: it must not block and must not call back into Events.
type Handler func(EventID)

// Events arms, disarms and dispatches wake events.
type Events interface {
	// Arm enables delivery of the event to the installed handler.
	Arm(id EventID) error

	// Disarm disables delivery of the event.
	Disarm(id EventID) error

	// InstallHandler registers h for id. At most one handler per event.
	InstallHandler(id EventID, h Handler) error

	// RemoveHandler unregisters the handler for id.
	RemoveHandler(id EventID) error
}
