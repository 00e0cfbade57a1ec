package idle

import (
	"errors"
	"sync"
	"time"
)

// Autosuspend timer constants.
const (
	// MinDelay is the minimum autosuspend delay.
	MinDelay = time.Millisecond

	// DefaultDelay is the default autosuspend delay.
	DefaultDelay = 10 * time.Second
)

// Timer errors.
var (
	ErrInvalidDelay = errors.New("invalid autosuspend delay")
)

// State represents the countdown state.
type State uint8

const (
	// StateStopped indicates the countdown is not running.
	StateStopped State = iota

	// StateRunning indicates the countdown is running.
	StateRunning
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateRunning:
		return "RUNNING"
	default:
		return "UNKNOWN"
	}
}

// Timer manages the autosuspend countdown for a controller.
type Timer struct {
	mu sync.RWMutex

	// Current state
	state State

	// Autosuspend delay
	delay time.Duration

	// Timer instance
	timer *time.Timer

	// When the countdown was last (re)started
	startedAt time.Time

	// gen invalidates expiry callbacks from countdowns superseded by Touch.
	gen uint64

	// Callback
	onIdle func()
}

// NewTimer creates a new autosuspend timer with the default delay.
func NewTimer() *Timer {
	return &Timer{
		state: StateStopped,
		delay: DefaultDelay,
	}
}

// NewTimerWithDelay creates an autosuspend timer with a custom delay.
func NewTimerWithDelay(delay time.Duration) (*Timer, error) {
	if delay < MinDelay {
		return nil, ErrInvalidDelay
	}

	return &Timer{
		state: StateStopped,
		delay: delay,
	}, nil
}

// OnIdle sets the callback fired when the countdown expires.
// The callback runs on the timer goroutine, outside the timer lock.
func (t *Timer) OnIdle(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onIdle = fn
}

// State returns the current countdown state.
func (t *Timer) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// IsRunning returns true if the countdown is running.
func (t *Timer) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state == StateRunning
}

// Delay returns the configured autosuspend delay.
func (t *Timer) Delay() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.delay
}

// SetDelay sets the autosuspend delay.
// A running countdown keeps its old deadline; the new delay applies
// from the next Start or Touch.
func (t *Timer) SetDelay(delay time.Duration) error {
	if delay < MinDelay {
		return ErrInvalidDelay
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.delay = delay
	return nil
}

// Start starts the countdown.
// Called when the controller's usage count drops to zero.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateRunning {
		return // Already counting down
	}

	t.state = StateRunning
	t.armLocked()
}

// Touch restarts the countdown from now.
// Called on controller activity while the countdown is running.
// No-op when the countdown is stopped.
func (t *Timer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateRunning {
		return
	}

	if t.timer != nil {
		t.timer.Stop()
	}
	t.armLocked()
}

// Stop cancels the countdown.
// Called when the controller's usage count rises above zero.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateStopped {
		return
	}

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}

	t.state = StateStopped
	t.startedAt = time.Time{}
}

// Remaining returns the time left until the countdown expires.
// Returns 0 if the countdown is not running.
func (t *Timer) Remaining() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.state != StateRunning {
		return 0
	}

	elapsed := time.Since(t.startedAt)
	remaining := t.delay - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// armLocked starts a fresh countdown. Caller holds t.mu.
func (t *Timer) armLocked() {
	t.gen++
	gen := t.gen
	t.startedAt = time.Now()
	t.timer = time.AfterFunc(t.delay, func() {
		t.expire(gen)
	})
}

// expire is called when the countdown elapses.
func (t *Timer) expire(gen uint64) {
	t.mu.Lock()

	if t.state != StateRunning || gen != t.gen {
		t.mu.Unlock()
		return
	}

	t.state = StateStopped
	t.timer = nil
	t.startedAt = time.Time{}

	idleFn := t.onIdle

	t.mu.Unlock()

	if idleFn != nil {
		idleFn()
	}
}
