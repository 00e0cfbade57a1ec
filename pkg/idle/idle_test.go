package idle

import (
	"sync"
	"testing"
	"time"
)

func TestTimerInitialState(t *testing.T) {
	timer := NewTimer()

	if timer.State() != StateStopped {
		t.Errorf("State() = %v, want StateStopped", timer.State())
	}
	if timer.IsRunning() {
		t.Error("IsRunning() = true, want false")
	}
	if timer.Delay() != DefaultDelay {
		t.Errorf("Delay() = %v, want %v", timer.Delay(), DefaultDelay)
	}
}

func TestTimerSetDelay(t *testing.T) {
	timer := NewTimer()

	tests := []struct {
		name    string
		delay   time.Duration
		wantErr bool
	}{
		{"Negative", -time.Second, true},
		{"Zero", 0, true},
		{"MinValid", MinDelay, false},
		{"Normal", 30 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := timer.SetDelay(tt.delay)
			if (err != nil) != tt.wantErr {
				t.Errorf("SetDelay(%v) error = %v, wantErr %v", tt.delay, err, tt.wantErr)
			}
		})
	}
}

func TestTimerWithDelayRejectsInvalid(t *testing.T) {
	_, err := NewTimerWithDelay(0)
	if err != ErrInvalidDelay {
		t.Errorf("NewTimerWithDelay(0) error = %v, want ErrInvalidDelay", err)
	}

	timer, err := NewTimerWithDelay(5 * time.Second)
	if err != nil {
		t.Fatalf("NewTimerWithDelay(5s) error = %v", err)
	}
	if timer.Delay() != 5*time.Second {
		t.Errorf("Delay() = %v, want 5s", timer.Delay())
	}
}

func TestTimerStartStop(t *testing.T) {
	timer := NewTimer()

	timer.Start()

	if timer.State() != StateRunning {
		t.Errorf("State() = %v, want StateRunning", timer.State())
	}
	if !timer.IsRunning() {
		t.Error("IsRunning() = false, want true")
	}

	// Remaining time should be close to delay
	remaining := timer.Remaining()
	if remaining < timer.Delay()-time.Second || remaining > timer.Delay() {
		t.Errorf("Remaining() = %v, expected ~%v", remaining, timer.Delay())
	}

	timer.Stop()

	if timer.State() != StateStopped {
		t.Errorf("State() = %v, want StateStopped", timer.State())
	}
	if timer.Remaining() != 0 {
		t.Errorf("Remaining() = %v, want 0", timer.Remaining())
	}
}

func TestTimerFiresOnIdle(t *testing.T) {
	timer, err := NewTimerWithDelay(30 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewTimerWithDelay failed: %v", err)
	}

	fired := make(chan struct{}, 1)
	timer.OnIdle(func() {
		fired <- struct{}{}
	})

	timer.Start()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("OnIdle callback was not called")
	}

	// After firing the countdown is stopped and does not re-arm
	if timer.State() != StateStopped {
		t.Errorf("State() = %v after expiry, want StateStopped", timer.State())
	}

	select {
	case <-fired:
		t.Error("OnIdle fired a second time without Start")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestTimerStopPreventsFiring(t *testing.T) {
	timer, err := NewTimerWithDelay(30 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewTimerWithDelay failed: %v", err)
	}

	var mu sync.Mutex
	fired := false
	timer.OnIdle(func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	})

	timer.Start()
	timer.Stop()

	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Error("OnIdle fired after Stop")
	}
}

func TestTimerTouchDefersExpiry(t *testing.T) {
	timer, err := NewTimerWithDelay(60 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewTimerWithDelay failed: %v", err)
	}

	fired := make(chan time.Time, 1)
	timer.OnIdle(func() {
		fired <- time.Now()
	})

	start := time.Now()
	timer.Start()

	// Touch halfway through the countdown; expiry should move out
	time.Sleep(35 * time.Millisecond)
	timer.Touch()

	select {
	case at := <-fired:
		elapsed := at.Sub(start)
		if elapsed < 90*time.Millisecond {
			t.Errorf("fired after %v, want at least 90ms (Touch should restart countdown)", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("OnIdle callback was not called")
	}
}

func TestTimerTouchWhileStoppedIsNoop(t *testing.T) {
	timer, err := NewTimerWithDelay(30 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewTimerWithDelay failed: %v", err)
	}

	var mu sync.Mutex
	fired := false
	timer.OnIdle(func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	})

	timer.Touch()

	if timer.State() != StateStopped {
		t.Errorf("State() = %v after Touch while stopped, want StateStopped", timer.State())
	}

	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Error("OnIdle fired after Touch on a stopped timer")
	}
}

func TestTimerIdempotentStart(t *testing.T) {
	timer := NewTimer()

	timer.Start()
	state1 := timer.State()

	// Starting again should be idempotent
	timer.Start()
	state2 := timer.State()

	if state1 != state2 {
		t.Errorf("State changed on second Start(): %v -> %v", state1, state2)
	}

	timer.Stop()
}

func TestTimerIdempotentStop(t *testing.T) {
	timer := NewTimer()

	// Stopping when already stopped should be idempotent
	timer.Stop()

	if timer.State() != StateStopped {
		t.Errorf("State() = %v after Stop on already stopped, want StateStopped", timer.State())
	}
}

func TestTimerRestartAfterExpiry(t *testing.T) {
	timer, err := NewTimerWithDelay(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewTimerWithDelay failed: %v", err)
	}

	fired := make(chan struct{}, 2)
	timer.OnIdle(func() {
		fired <- struct{}{}
	})

	timer.Start()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("first expiry did not fire")
	}

	// A rejected suspend attempt restarts the countdown
	timer.Start()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("second expiry did not fire")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "STOPPED"},
		{StateRunning, "RUNNING"},
		{State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
