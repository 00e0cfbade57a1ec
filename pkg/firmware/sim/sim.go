// Package sim provides an in-memory firmware backend simulating one
// hot-pluggable peripheral controller. It implements firmware.Node and
// firmware.Events with scriptable fault injection, a call log, and the
// power-switch latch behavior real firmware exhibits after an unclean
// power loss. It backs the test suite and cmd/railgate-sim.
package sim

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/railgate-project/railgate-go/pkg/firmware"
)

// Default firmware object names, matching the first hardware generation
// railgate was written for. XRPE is the legacy power toggle identifier,
// TRPE its successor; both are exposed so either candidate resolves.
const (
	MethodSetPowerLegacy = "XRPE"
	MethodSetPower       = "TRPE"
	MethodGetPower       = "XRIL"
	WakeEventName        = "XRIN"
)

// Simulated firmware failures.
var (
	// ErrSwitchLatched is returned by a power-on call while the switch
	// latch is set. Real firmware refuses a direct power-on after an
	// unclean power loss until a power-off call clears the latch.
	ErrSwitchLatched = errors.New("power switch latched")

	// ErrBadArgument is returned when a method is evaluated with the
	// wrong calling convention.
	ErrBadArgument = errors.New("bad method argument")
)

// eventIDs allocates distinct wake event numbers across controllers.
var eventIDs atomic.Uint32

// Call records one firmware power operation for test assertions.
type Call struct {
	// Op is the operation performed.
	Op firmware.Op

	// Method is the method identifier, empty for wake operations.
	Method string

	// Arg is the call argument (set_power only).
	Arg uint64
}

type methodKind uint8

const (
	kindSet methodKind = iota
	kindGet
)

// Controller is one simulated peripheral controller.
// All methods are safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	// Firmware namespace
	methods map[string]methodKind
	wakeID  firmware.EventID
	hasWake bool

	// Power switch state
	powered   bool
	latched   bool
	refuseOff bool

	// Wake event state
	armed   bool
	handler firmware.Handler

	// Injected faults, keyed by operation
	faults map[firmware.Op]error

	calls []Call
}

// New returns a powered-up controller exposing the default firmware
// namespace (XRPE, TRPE, XRIL, XRIN) with a freshly allocated wake event
// number.
func New() *Controller {
	return &Controller{
		methods: map[string]methodKind{
			MethodSetPowerLegacy: kindSet,
			MethodSetPower:       kindSet,
			MethodGetPower:       kindGet,
		},
		wakeID:  firmware.EventID(eventIDs.Add(1)),
		hasWake: true,
		powered: true,
		faults:  make(map[firmware.Op]error),
	}
}

// Method resolves a named control method.
func (c *Controller) Method(name string) (firmware.Method, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kind, ok := c.methods[name]
	if !ok {
		return nil, firmware.ErrNotFound
	}
	return &method{ctrl: c, name: name, kind: kind}, nil
}

// WakeEvent resolves a named wake event object.
func (c *Controller) WakeEvent(name string) (firmware.EventID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasWake || name != WakeEventName {
		return 0, firmware.ErrNotFound
	}
	return c.wakeID, nil
}

// RemoveMethod drops a method from the namespace, simulating a hardware
// generation that does not carry the identifier.
func (c *Controller) RemoveMethod(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.methods, name)
}

// RemoveWakeEvent drops the wake event object from the namespace.
func (c *Controller) RemoveWakeEvent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasWake = false
}

// Arm enables wake event delivery.
func (c *Controller) Arm(id firmware.EventID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.faults[firmware.OpArmWake]; err != nil {
		c.calls = append(c.calls, Call{Op: firmware.OpArmWake})
		return &firmware.OpError{Op: firmware.OpArmWake, Err: err}
	}
	if id != c.wakeID {
		return &firmware.OpError{Op: firmware.OpArmWake, Err: firmware.ErrNotFound}
	}
	c.armed = true
	c.calls = append(c.calls, Call{Op: firmware.OpArmWake})
	return nil
}

// Disarm disables wake event delivery.
func (c *Controller) Disarm(id firmware.EventID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.faults[firmware.OpDisarmWake]; err != nil {
		c.calls = append(c.calls, Call{Op: firmware.OpDisarmWake})
		return &firmware.OpError{Op: firmware.OpDisarmWake, Err: err}
	}
	if id != c.wakeID {
		return &firmware.OpError{Op: firmware.OpDisarmWake, Err: firmware.ErrNotFound}
	}
	c.armed = false
	c.calls = append(c.calls, Call{Op: firmware.OpDisarmWake})
	return nil
}

// InstallHandler registers the wake handler.
func (c *Controller) InstallHandler(id firmware.EventID, h firmware.Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id != c.wakeID {
		return firmware.ErrNotFound
	}
	if c.handler != nil {
		return firmware.ErrHandlerInstalled
	}
	c.handler = h
	return nil
}

// RemoveHandler unregisters the wake handler.
func (c *Controller) RemoveHandler(id firmware.EventID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id != c.wakeID {
		return firmware.ErrNotFound
	}
	if c.handler == nil {
		return firmware.ErrNoHandler
	}
	c.handler = nil
	return nil
}

// FireWake raises the wake event, as plugging in a peripheral would.
// The handler is invoked on the calling goroutine. Reports whether the
// event was delivered (armed with a handler installed).
func (c *Controller) FireWake() bool {
	c.mu.Lock()
	armed, h, id := c.armed, c.handler, c.wakeID
	c.mu.Unlock()

	if !armed || h == nil {
		return false
	}
	h(id)
	return true
}

// SetFault makes every subsequent call of op fail with err until cleared.
func (c *Controller) SetFault(op firmware.Op, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults[op] = err
}

// ClearFault removes the injected fault for op.
func (c *Controller) ClearFault(op firmware.Op) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.faults, op)
}

// RefusePowerDown makes the chip accept power-off calls without ever
// reporting powered-down, so confirmation polling exhausts.
func (c *Controller) RefusePowerDown(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refuseOff = v
}

// UncleanPowerLoss simulates losing rail power without the firmware
// handshake, as happens across system sleep: the chip is off and the
// power switch latch is set, so a direct power-on call fails until a
// power-off call clears it.
func (c *Controller) UncleanPowerLoss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.powered = false
	c.latched = true
}

// Powered reports whether the chip currently has power.
func (c *Controller) Powered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.powered
}

// Armed reports whether the wake event is armed.
func (c *Controller) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// Latched reports whether the power switch latch is set.
func (c *Controller) Latched() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latched
}

// Calls returns a copy of the recorded call log.
func (c *Controller) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns how many calls of op were recorded.
func (c *Controller) CallCount(op firmware.Op) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call.Op == op {
			n++
		}
	}
	return n
}

// SetPowerCalls returns how many set_power calls with the given argument
// were recorded.
func (c *Controller) SetPowerCalls(arg uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call.Op == firmware.OpSetPower && call.Arg == arg {
			n++
		}
	}
	return n
}

// ResetCalls clears the recorded call log.
func (c *Controller) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

// method is a resolved handle into the controller's namespace.
type method struct {
	ctrl *Controller
	name string
	kind methodKind
}

// Name returns the resolved identifier.
func (m *method) Name() string { return m.name }

// Call evaluates the method with one integer argument.
func (m *method) Call(arg uint64) error {
	c := m.ctrl
	c.mu.Lock()
	defer c.mu.Unlock()

	if m.kind != kindSet {
		return &firmware.OpError{Op: firmware.OpSetPower, Method: m.name, Err: ErrBadArgument}
	}

	c.calls = append(c.calls, Call{Op: firmware.OpSetPower, Method: m.name, Arg: arg})

	if err := c.faults[firmware.OpSetPower]; err != nil {
		return &firmware.OpError{Op: firmware.OpSetPower, Method: m.name, Err: err}
	}

	if arg == 0 {
		// A power-off call always clears the switch latch, even when
		// the chip is already off. This is the reset path hosts use
		// after an unclean power loss.
		c.latched = false
		if !c.refuseOff {
			c.powered = false
		}
		return nil
	}

	if c.latched {
		return &firmware.OpError{Op: firmware.OpSetPower, Method: m.name, Err: ErrSwitchLatched}
	}
	c.powered = true
	return nil
}

// Query evaluates the method with no arguments. A nonzero result means
// the chip is powered down.
func (m *method) Query() (uint64, error) {
	c := m.ctrl
	c.mu.Lock()
	defer c.mu.Unlock()

	if m.kind != kindGet {
		return 0, &firmware.OpError{Op: firmware.OpGetPower, Method: m.name, Err: ErrBadArgument}
	}

	c.calls = append(c.calls, Call{Op: firmware.OpGetPower, Method: m.name})

	if err := c.faults[firmware.OpGetPower]; err != nil {
		return 0, &firmware.OpError{Op: firmware.OpGetPower, Method: m.name, Err: err}
	}

	if c.powered {
		return 0, nil
	}
	return 1, nil
}

// Compile-time interface satisfaction checks.
var (
	_ firmware.Node   = (*Controller)(nil)
	_ firmware.Events = (*Controller)(nil)
	_ firmware.Method = (*method)(nil)
)
