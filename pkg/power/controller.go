package power

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/railgate-project/railgate-go/pkg/bus"
	"github.com/railgate-project/railgate-go/pkg/firmware"
	"github.com/railgate-project/railgate-go/pkg/idle"
)

// Controller owns the power lifecycle of one peripheral controller chip.
type Controller struct {
	mu sync.Mutex

	cfg Config

	// id identifies this instance in logs and events.
	id string

	// Resolved firmware handles. Read-only after Init.
	setPower firmware.Method
	getPower firmware.Method
	wakeID   firmware.EventID

	events firmware.Events
	tree   bus.Tree

	state State

	// saved holds config snapshots keyed by device ID for the duration
	// of a suspend cycle. The controller's own device is keyed by its ID
	// alongside the descendants.
	saved map[string][]byte

	// usage gates suspend: nonzero means the controller is needed.
	// Forbid/Allow are counted holds on the same counter.
	usage int

	// broken is set after a fatal power-on failure. Every further
	// resume attempt short-circuits with ErrNoDevice.
	broken bool

	// Runtime engine
	running    bool
	cancel     context.CancelFunc
	workerDone chan struct{}
	idleTimer  *idle.Timer

	// resumeReq coalesces asynchronous resume requests. The wake handler
	// is its only interrupt-context producer and does nothing but send.
	resumeReq  chan resumeRequest
	suspendReq chan struct{}

	// wakeDrops counts wake firings coalesced into an already-pending
	// resume request.
	wakeDrops atomic.Uint64

	// servicedDrops tracks wakeDrops at the last serviced wake event.
	// Worker goroutine only.
	servicedDrops uint64
}

// resumeRequest is one entry on the coalescing resume channel.
type resumeRequest struct {
	// wake marks a request originating from the wake interrupt.
	wake bool

	// event is the firing wake event (wake requests only).
	event firmware.EventID
}

// Init discovers the firmware primitives for one controller and returns
// its power Controller. Discovery is all-or-nothing: if any method, the
// wake event, or the handler installation fails, Init returns an error
// wrapping ErrIncomplete, no Controller exists, and no power operation is
// ever issued to the chip, which simply stays active.
func Init(node firmware.Node, events firmware.Events, tree bus.Tree, cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	c := &Controller{
		cfg:        cfg,
		id:         uuid.New().String(),
		events:     events,
		tree:       tree,
		state:      StateActive,
		resumeReq:  make(chan resumeRequest, 1),
		suspendReq: make(chan struct{}, 1),
	}

	c.setPower = resolveMethod(node, cfg.SetPowerMethods)
	if c.setPower == nil {
		return nil, fmt.Errorf("%w: no power toggle method among %v", ErrIncomplete, cfg.SetPowerMethods)
	}
	c.getPower = resolveMethod(node, cfg.GetPowerMethods)
	if c.getPower == nil {
		return nil, fmt.Errorf("%w: no power query method among %v", ErrIncomplete, cfg.GetPowerMethods)
	}

	wakeID, err := node.WakeEvent(cfg.WakeEventName)
	if err != nil {
		return nil, fmt.Errorf("%w: wake event %s: %v", ErrIncomplete, cfg.WakeEventName, err)
	}
	c.wakeID = wakeID

	if err := events.InstallHandler(wakeID, c.handleWake); err != nil {
		return nil, fmt.Errorf("%w: wake handler: %v", ErrIncomplete, err)
	}

	timer, err := idle.NewTimerWithDelay(cfg.AutosuspendDelay)
	if err != nil {
		events.RemoveHandler(wakeID)
		return nil, err
	}
	timer.OnIdle(c.handleIdle)
	c.idleTimer = timer

	c.infoLog("runtime power management enabled",
		"controller", c.id,
		"set_power", c.setPower.Name(),
		"get_power", c.getPower.Name(),
		"wake_event", uint32(c.wakeID))

	return c, nil
}

// resolveMethod tries the candidate identifiers in order and returns the
// first that resolves, or nil.
func resolveMethod(node firmware.Node, candidates []string) firmware.Method {
	for _, name := range candidates {
		m, err := node.Method(name)
		if err == nil {
			return m
		}
	}
	return nil
}

// Fini tears the controller down: the runtime worker stops, the wake
// handler is removed, a still-armed wake event is disarmed best effort,
// further suspends are forbidden, and any held snapshots are released.
func (c *Controller) Fini() {
	c.Stop()

	c.mu.Lock()
	if c.state == StateSuspended {
		if err := c.events.Disarm(c.wakeID); err != nil {
			c.warnLog("wake disarm failed during teardown", "error", err)
		}
	}
	c.forbidLocked()
	c.saved = nil
	c.mu.Unlock()

	if err := c.events.RemoveHandler(c.wakeID); err != nil {
		c.warnLog("wake handler removal failed during teardown", "error", err)
	}

	c.infoLog("runtime power management finalized", "controller", c.id)
}

// ID returns the controller instance identifier.
func (c *Controller) ID() string {
	return c.id
}

// State returns the current power state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Usage returns the current usage count, administrative holds included.
func (c *Controller) Usage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// setStateLocked transitions the state machine and records the change.
func (c *Controller) setStateLocked(next State, reason string) {
	prev := c.state
	c.state = next
	c.debugLog("power state changed",
		"controller", c.id,
		"from", prev.String(),
		"to", next.String(),
		"reason", reason)
	c.emitState(prev, next, reason)
}

// shuttingDown reports the host shutdown condition.
func (c *Controller) shuttingDown() bool {
	return c.cfg.ShutdownCheck != nil && c.cfg.ShutdownCheck()
}

// debugLog logs a debug message if logging is enabled.
func (c *Controller) debugLog(msg string, args ...any) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Debug(msg, args...)
	}
}

// infoLog logs an info message if logging is enabled.
func (c *Controller) infoLog(msg string, args ...any) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Info(msg, args...)
	}
}

// warnLog logs a warning if logging is enabled.
func (c *Controller) warnLog(msg string, args ...any) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Warn(msg, args...)
	}
}

// errorLog logs an error if logging is enabled.
func (c *Controller) errorLog(msg string, args ...any) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Error(msg, args...)
	}
}
