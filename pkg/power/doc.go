// Package power implements the power-sequencing state machine for a
// hot-pluggable peripheral controller chip whose power rails are switched
// by firmware control methods rather than the host bus.
//
// One Controller instance owns the lifecycle of one chip. The chip's
// descendant bus devices are treated as powered off whenever the chip is
// off, and an out-of-band wake event keeps the chip reachable while fully
// dark, so plugging in a peripheral powers it back up without host polling.
//
// # State Machine
//
// A controller is in exactly one of ACTIVE, SUSPENDING, SUSPENDED or
// RESUMING. Transitions are linear and never skip a phase; a suspend that
// fails anywhere rolls back completely to ACTIVE through a single recovery
// path, so there is no half-off state.
//
// # Operations
//
// Four operations drive the machine, serialized on one mutex:
//   - RuntimeSuspend: active to powered off, with bounded confirmation
//     polling of the firmware power state and wake arming before going dark.
//   - RuntimeResume: powered off back to active, with a settle delay so an
//     asynchronous hot-plug detect event after power-up is not missed.
//   - Prepare/Complete: system-sleep hooks. Complete resets the firmware
//     power switch after the unclean power loss of a sleep transition;
//     without the reset the switch refuses the next power-on.
//
// # Wake Path
//
// The wake handler runs on the firmware backend's dispatch context. It
// never blocks and never takes the controller mutex; it only enqueues a
// coalesced resume request that the runtime worker services. Repeated
// firings while a resume is pending collapse into one resume.
//
// # Runtime Engine
//
// Usage counters (Get/Put/Forbid/Allow) gate suspend, an autosuspend
// timer turns idle periods into suspend attempts, and Start launches the
// worker goroutine that services wake and idle requests. The four
// operations remain directly callable for embedders that bring their own
// power-management framework.
//
// Example usage:
//
//	cfg := power.DefaultConfig()
//	ctrl, err := power.Init(node, events, tree, cfg)
//	if err != nil {
//	    // power management stays disabled, the chip stays on
//	}
//	ctrl.Start(ctx)
//	defer ctrl.Fini()
package power
