package power

import (
	"fmt"

	"github.com/railgate-project/railgate-go/pkg/bus"
)

// snapshotDescendantsLocked captures every descendant's configuration
// into the snapshot set, keyed by device ID.
func (c *Controller) snapshotDescendantsLocked() error {
	c.saved = make(map[string][]byte)
	return c.tree.Walk(func(d bus.Device) error {
		data, err := d.SaveConfig()
		if err != nil {
			return fmt.Errorf("save config of %s: %w", d.ID(), err)
		}
		c.saved[d.ID()] = data
		return nil
	})
}

// markDeepOffLocked tags every descendant as powered off with its
// controller. No firmware interaction; the tag is inherited state.
func (c *Controller) markDeepOffLocked() {
	_ = c.tree.Walk(func(d bus.Device) error {
		d.SetPowerState(bus.PowerDeepOff)
		return nil
	})
}

// restoreDescendantsLocked restores each current descendant from its
// snapshot. Devices hot-added since suspend have no snapshot and devices
// removed since suspend leave stale snapshots behind; both are skipped,
// the former with a debug log, the latter implicitly by walking only
// current devices. Returns the number of devices restored.
func (c *Controller) restoreDescendantsLocked() int {
	restored := 0
	_ = c.tree.Walk(func(d bus.Device) error {
		data, ok := c.saved[d.ID()]
		if !ok {
			c.debugLog("no saved config, skipping restore", "controller", c.id, "device", d.ID())
			return nil
		}
		if err := d.RestoreConfig(data); err != nil {
			c.warnLog("config restore failed", "controller", c.id, "device", d.ID(), "error", err)
			return nil
		}
		restored++
		return nil
	})
	return restored
}

// requestResumeAllLocked asks the device framework to resume every
// descendant asynchronously, at most once per device per batch. Returns
// the number of resume requests issued.
func (c *Controller) requestResumeAllLocked() int {
	requested := make(map[string]bool)
	n := 0
	_ = c.tree.Walk(func(d bus.Device) error {
		if requested[d.ID()] {
			return nil
		}
		requested[d.ID()] = true
		if err := d.RequestResume(); err != nil {
			c.warnLog("resume request failed", "controller", c.id, "device", d.ID(), "error", err)
			return nil
		}
		n++
		return nil
	})
	return n
}

// suspendRootLocked runs the generic, non-firmware suspend of the
// controller's own bus device: config snapshot, embedder hook, power tag.
func (c *Controller) suspendRootLocked() error {
	root := c.tree.Root()
	data, err := root.SaveConfig()
	if err != nil {
		return fmt.Errorf("save config of %s: %w", root.ID(), err)
	}
	c.saved[root.ID()] = data

	if c.cfg.OnDeviceSuspend != nil {
		if err := c.cfg.OnDeviceSuspend(); err != nil {
			delete(c.saved, root.ID())
			return fmt.Errorf("device suspend: %w", err)
		}
	}

	root.SetPowerState(bus.PowerOff)
	return nil
}

// restoreRootLocked reverses suspendRootLocked: config restore, active
// power tag, embedder hook. Failures are logged, never fatal, since this
// runs on paths that must complete.
func (c *Controller) restoreRootLocked() {
	root := c.tree.Root()
	if data, ok := c.saved[root.ID()]; ok {
		if err := root.RestoreConfig(data); err != nil {
			c.warnLog("config restore failed", "controller", c.id, "device", root.ID(), "error", err)
		}
	}
	root.SetPowerState(bus.PowerActive)

	if c.cfg.OnDeviceResume != nil {
		if err := c.cfg.OnDeviceResume(); err != nil {
			c.warnLog("device resume hook failed", "controller", c.id, "error", err)
		}
	}
}
