// Package firmware defines the control surface railgate uses to drive a
// peripheral controller's power switch through platform firmware.
//
// A controller chip whose rails are switched by firmware rather than by the
// host bus exposes a small namespace node carrying two control methods and
// one wake event object:
//
//   - set_power: unary method, argument 1 powers the controller up,
//     argument 0 powers it down.
//   - get_power: nullary query, a nonzero result means the controller is
//     powered down.
//   - a named wake event that can be armed while the controller is off so
//     that plugging in a peripheral raises an out-of-band signal.
//
// The method identifiers vary across hardware generations; pkg/power
// resolves them once at discovery from an ordered candidate list and the
// rest of the system only sees resolved Method handles.
//
// # Backends
//
// Two implementations ship with railgate:
//
//   - sim: an in-memory scriptable controller with fault injection,
//     used by the test suite and cmd/railgate-sim.
//   - serialec: a framed serial protocol to an embedded controller that
//     proxies the firmware namespace, used by cmd/railgated.
//
// Errors from any backend are reported as *OpError carrying the operation
// and the resolved method name, so field logs identify exactly which
// firmware call failed on which hardware generation.
package firmware
