// Package testharness provides shared test support for exercising the
// power sequencer against the in-memory firmware and device tree fakes.
package testharness

import (
	"sync"

	"github.com/railgate-project/railgate-go/pkg/log"
)

// Recorder is a log.Logger capturing events in memory for assertions.
// The zero value is ready to use and safe for concurrent logging.
type Recorder struct {
	mu     sync.Mutex
	events []log.Event
}

var _ log.Logger = (*Recorder)(nil)

// Log records the event.
func (r *Recorder) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of all recorded events in order.
func (r *Recorder) Events() []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]log.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Category returns the recorded events of one category, in order.
func (r *Recorder) Category(cat log.Category) []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []log.Event
	for _, e := range r.events {
		if e.Category == cat {
			out = append(out, e)
		}
	}
	return out
}

// StateSequence returns the NewState of every recorded state change, in
// order. Useful for asserting transition paths.
func (r *Recorder) StateSequence() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.StateChange != nil {
			out = append(out, e.StateChange.NewState)
		}
	}
	return out
}

// LastRollback returns the most recent rollback event, if any.
func (r *Recorder) LastRollback() (*log.RollbackEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Rollback != nil {
			return r.events[i].Rollback, true
		}
	}
	return nil, false
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
