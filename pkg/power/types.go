package power

import (
	"errors"
	"log/slog"
	"time"

	"github.com/railgate-project/railgate-go/pkg/idle"
	"github.com/railgate-project/railgate-go/pkg/log"
)

// Power management errors.
var (
	// ErrRetry signals a transient suspend failure. The controller has
	// been returned to ACTIVE and the attempt may be repeated later.
	ErrRetry = errors.New("controller busy")

	// ErrShuttingDown is returned by resume when the host is shutting
	// down; no hardware was touched.
	ErrShuttingDown = errors.New("host shutdown in progress")

	// ErrNoDevice signals a fatal resume failure: the chip did not power
	// back on and cannot be trusted. Power management is disabled.
	ErrNoDevice = errors.New("controller did not power on")

	// ErrIncomplete is returned by Init when a firmware primitive cannot
	// be resolved. The controller stays permanently active.
	ErrIncomplete = errors.New("firmware discovery incomplete")

	// ErrAlreadyStarted is returned by Start when the runtime worker is
	// already running.
	ErrAlreadyStarted = errors.New("runtime already started")

	// ErrConfirmTimeout is the internal cause recorded when the
	// power-down confirmation poll exhausts its attempts. Callers of
	// RuntimeSuspend only ever see ErrRetry.
	ErrConfirmTimeout = errors.New("power-down confirmation timeout")

	// ErrInvalidConfig is returned for nonsensical configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// State represents the controller power state.
type State uint8

const (
	// StateActive - chip powered, descendants reachable.
	StateActive State = iota

	// StateSuspending - suspend sequence in flight.
	StateSuspending

	// StateSuspended - chip powered down, wake event armed.
	StateSuspended

	// StateResuming - resume sequence in flight.
	StateResuming
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateSuspending:
		return "SUSPENDING"
	case StateSuspended:
		return "SUSPENDED"
	case StateResuming:
		return "RESUMING"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Controller.
type Config struct {
	// SetPowerMethods lists candidate identifiers for the power toggle
	// method, tried in order. The legacy name precedes its successor so
	// older hardware generations resolve first.
	SetPowerMethods []string

	// GetPowerMethods lists candidate identifiers for the power state
	// query method, tried in order.
	GetPowerMethods []string

	// WakeEventName names the firmware wake event object.
	WakeEventName string

	// PollAttempts bounds the power-down confirmation poll.
	PollAttempts int

	// PollMin is the minimum sleep between confirmation poll attempts.
	PollMin time.Duration

	// PollMax is the maximum sleep between confirmation poll attempts.
	PollMax time.Duration

	// SettleDelay blocks resume completion, so a hot-plug detect event
	// arriving asynchronously after power-up is not missed.
	SettleDelay time.Duration

	// AutosuspendDelay is how long the controller must stay idle before
	// the runtime attempts a suspend.
	AutosuspendDelay time.Duration

	// ShutdownCheck reports whether the host is shutting down. Resume
	// refuses to touch hardware while it returns true. Nil means never.
	// Runs with the controller lock held; must not call back into the
	// Controller.
	ShutdownCheck func() bool

	// OnDeviceSuspend runs the generic, non-firmware suspend of the
	// controller's own bus device during a suspend sequence. An error
	// aborts the suspend. Runs with the controller lock held; must not
	// call back into the Controller.
	OnDeviceSuspend func() error

	// OnDeviceResume reverses OnDeviceSuspend during resume and rollback.
	// Errors are logged, not fatal. Same constraints as OnDeviceSuspend.
	OnDeviceResume func() error

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// EventLogger records the diagnostic event trace (optional).
	EventLogger log.Logger
}

// DefaultConfig returns a Config with sensible defaults. The firmware
// object names are those of the first supported hardware generation;
// platform profiles override them for others.
func DefaultConfig() Config {
	return Config{
		SetPowerMethods:  []string{"XRPE", "TRPE"},
		GetPowerMethods:  []string{"XRIL"},
		WakeEventName:    "XRIN",
		PollAttempts:     300,
		PollMin:          800 * time.Microsecond,
		PollMax:          1600 * time.Microsecond,
		SettleDelay:      1500 * time.Millisecond,
		AutosuspendDelay: 10 * time.Second,
	}
}

// Validate checks if the config is valid. Zero tunables are allowed and
// filled from DefaultConfig at Init.
func (c *Config) Validate() error {
	if c.PollAttempts < 0 {
		return ErrInvalidConfig
	}
	if c.PollMin < 0 || c.PollMax < 0 {
		return ErrInvalidConfig
	}
	if c.PollMax != 0 && c.PollMax < c.PollMin {
		return ErrInvalidConfig
	}
	if c.SettleDelay < 0 {
		return ErrInvalidConfig
	}
	if c.AutosuspendDelay != 0 && c.AutosuspendDelay < idle.MinDelay {
		return ErrInvalidConfig
	}
	return nil
}

// applyDefaults fills zero fields from DefaultConfig.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if len(c.SetPowerMethods) == 0 {
		c.SetPowerMethods = def.SetPowerMethods
	}
	if len(c.GetPowerMethods) == 0 {
		c.GetPowerMethods = def.GetPowerMethods
	}
	if c.WakeEventName == "" {
		c.WakeEventName = def.WakeEventName
	}
	if c.PollAttempts == 0 {
		c.PollAttempts = def.PollAttempts
	}
	if c.PollMin == 0 {
		c.PollMin = def.PollMin
	}
	if c.PollMax == 0 {
		c.PollMax = def.PollMax
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = def.SettleDelay
	}
	if c.AutosuspendDelay == 0 {
		c.AutosuspendDelay = def.AutosuspendDelay
	}
	if c.EventLogger == nil {
		c.EventLogger = log.NoopLogger{}
	}
}
