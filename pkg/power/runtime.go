package power

import (
	"context"
	"errors"

	"github.com/railgate-project/railgate-go/pkg/firmware"
)

// Get takes a usage reference on the controller, blocking suspend until
// the matching Put. If the controller is suspended, an asynchronous
// resume is requested.
func (c *Controller) Get() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.usage++
	c.idleTimer.Stop()
	if c.state == StateSuspended {
		c.RequestResume()
	}
}

// Put drops a usage reference. When the count reaches zero the
// autosuspend countdown starts.
func (c *Controller) Put() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.usage == 0 {
		c.warnLog("unbalanced usage put", "controller", c.id)
		return
	}
	c.usage--
	if c.usage == 0 {
		c.restartIdleLocked()
	}
}

// Forbid administratively disables suspend by taking a counted hold, and
// powers the controller back up if it is currently suspended.
func (c *Controller) Forbid() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.forbidLocked()
	if c.state == StateSuspended {
		c.RequestResume()
	}
}

// Allow releases a Forbid hold.
func (c *Controller) Allow() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.usage == 0 {
		c.warnLog("unbalanced allow", "controller", c.id)
		return
	}
	c.usage--
	if c.usage == 0 {
		c.restartIdleLocked()
	}
}

// forbidLocked takes a usage hold and stops the idle countdown. Holds
// taken on failure paths are never released, which is how power
// management is permanently disabled for a controller.
func (c *Controller) forbidLocked() {
	c.usage++
	c.idleTimer.Stop()
}

// MarkBusy restarts the autosuspend clock without taking a reference.
// The resume sequencer calls it on completion; embedders may call it on
// activity that should delay the next suspend.
func (c *Controller) MarkBusy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markBusyLocked()
}

func (c *Controller) markBusyLocked() {
	c.restartIdleLocked()
}

// restartIdleLocked arms the idle countdown with a fresh deadline, when
// the controller is eligible for autosuspend at all.
func (c *Controller) restartIdleLocked() {
	if !c.running || c.usage > 0 || c.state != StateActive {
		return
	}
	c.idleTimer.Start()
	c.idleTimer.Touch()
}

// RequestResume enqueues an asynchronous resume request, coalescing with
// any request already pending. Reports whether a new request was
// enqueued. Safe from any goroutine; never blocks.
func (c *Controller) RequestResume() bool {
	select {
	case c.resumeReq <- resumeRequest{}:
		return true
	default:
		return false
	}
}

// WakeDrops returns how many wake firings were coalesced into an
// already-pending resume request.
func (c *Controller) WakeDrops() uint64 {
	return c.wakeDrops.Load()
}

// handleWake is the installed firmware wake handler. It runs on the
// backend's dispatch context, on real hardware the interrupt path: no
// blocking, no locks, no logging. Its only action is the coalescing send.
func (c *Controller) handleWake(id firmware.EventID) {
	select {
	case c.resumeReq <- resumeRequest{wake: true, event: id}:
	default:
		c.wakeDrops.Add(1)
	}
}

// handleIdle is the autosuspend countdown callback. It enqueues a suspend
// attempt for the worker; a pending attempt absorbs duplicates.
func (c *Controller) handleIdle() {
	select {
	case c.suspendReq <- struct{}{}:
	default:
	}
}

// Start launches the runtime worker servicing wake and idle requests,
// and begins the autosuspend countdown if the controller is already
// idle. The context stops the worker between operations, never inside
// one.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.running = true

	workerCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.workerDone = make(chan struct{})
	done := c.workerDone

	c.restartIdleLocked()
	c.mu.Unlock()

	go c.worker(workerCtx, done)

	c.debugLog("runtime worker started", "controller", c.id)
	return nil
}

// Stop halts the runtime worker and the autosuspend countdown. It waits
// for an operation in flight to finish; operations are never cancelled
// mid-sequence.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	done := c.workerDone
	c.idleTimer.Stop()
	c.mu.Unlock()

	cancel()
	<-done

	c.debugLog("runtime worker stopped", "controller", c.id)
}

// worker is the single consumer of asynchronous requests. Because it is
// the only goroutine executing the sequencers on behalf of the runtime, a
// resume request arriving while a suspend is in flight is deferred until
// that suspend completes or rolls back, then honored; after a rollback
// the controller is already active and the resume is a no-op.
func (c *Controller) worker(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return

		case req := <-c.resumeReq:
			if req.wake {
				c.serviceWakeEvent(req.event)
			}
			err := c.RuntimeResume()
			switch {
			case err == nil:
			case errors.Is(err, ErrShuttingDown):
				c.debugLog("deferred resume skipped, host shutting down", "controller", c.id)
			default:
				c.errorLog("deferred resume failed", "controller", c.id, "error", err)
			}

		case <-c.suspendReq:
			err := c.RuntimeSuspend()
			if errors.Is(err, ErrRetry) {
				c.mu.Lock()
				c.restartIdleLocked()
				c.mu.Unlock()
			}
		}
	}
}

// serviceWakeEvent records a wake firing being serviced. The coalesced
// flag is set when further firings were absorbed since the last serviced
// wake.
func (c *Controller) serviceWakeEvent(id firmware.EventID) {
	drops := c.wakeDrops.Load()
	coalesced := drops > c.servicedDrops
	c.servicedDrops = drops

	c.debugLog("wake event", "controller", c.id, "event_id", uint32(id), "coalesced", coalesced)
	c.emitWake(id, coalesced)
}
