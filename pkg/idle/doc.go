// Package idle implements the autosuspend countdown for a powered controller.
//
// When the last active reference to a controller is dropped, the runtime does
// not suspend immediately. It starts an idle countdown instead, so that bursts
// of activity separated by short gaps do not thrash the power switch. Any
// activity restarts the countdown; only a full delay of silence fires the
// idle callback.
//
// # Timer Behavior
//
//   - Starts when the usage count drops to zero
//   - Touch restarts the countdown without firing the callback
//   - Stops when the usage count rises above zero
//   - Fires the idle callback once on expiry, then returns to stopped
//
// A fired countdown does not re-arm itself. If the suspend attempt the
// callback triggers is rejected as busy, the owner restarts the timer.
package idle
