// Package bus defines the device-framework surface railgate consumes: a
// walkable subtree of bus devices rooted at the controller, with per-device
// configuration save/restore and asynchronous resume requests. The
// enumeration of the tree itself belongs to the embedding driver; railgate
// only sequences power over it. pkg/bus/memtree provides an in-memory
// implementation for tests and the simulator.
package bus

// PowerState is a device's cached power tag. It mirrors what the device
// framework believes, not what the hardware reports.
type PowerState uint8

const (
	// PowerActive indicates the device is fully powered.
	PowerActive PowerState = iota

	// PowerOff indicates the device was suspended through its own path
	// and can be resumed directly.
	PowerOff

	// PowerDeepOff indicates the device lost power together with its
	// controller; resuming it requires the controller powered up first
	// and a full configuration restore.
	PowerDeepOff
)

// String returns the power state name.
func (s PowerState) String() string {
	switch s {
	case PowerActive:
		return "ACTIVE"
	case PowerOff:
		return "OFF"
	case PowerDeepOff:
		return "DEEP_OFF"
	default:
		return "UNKNOWN"
	}
}

// Device is one bus device in the controller's subtree.
type Device interface {
	// ID returns the stable device identifier.
	ID() string

	// PowerState returns the cached power tag.
	PowerState() PowerState

	// SetPowerState updates the cached power tag. It never touches
	// hardware.
	SetPowerState(PowerState)

	// SaveConfig captures the device's configuration as an opaque
	// snapshot that RestoreConfig accepts.
	SaveConfig() ([]byte, error)

	// RestoreConfig reinstates a snapshot captured by SaveConfig.
	RestoreConfig(data []byte) error

	// RequestResume asks the device framework to resume this device
	// asynchronously. It must not block; duplicate requests for a
	// device with a resume already pending coalesce.
	RequestResume() error
}

// Tree is the bus subtree powered by one controller.
type Tree interface {
	// Root returns the controller's own bus device.
	Root() Device

	// DeepOffAllowed reports the externally owned policy flag gating
	// whether the subtree may lose power right now.
	DeepOffAllowed() bool

	// Walk visits every descendant of the root, parent before child.
	// The root itself is not visited. A non-nil error from fn stops
	// the walk and is returned.
	Walk(fn func(Device) error) error
}
