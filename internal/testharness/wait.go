package testharness

import (
	"testing"
	"time"
)

// WaitUntil polls cond every millisecond until it reports true, failing
// the test when the timeout passes first. It is the tool for asserting
// on state reached by the runtime worker goroutine.
func WaitUntil(t testing.TB, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not reached within %v: %s", timeout, msg)
}
