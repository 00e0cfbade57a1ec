// Package platform provides hardware platform profiles: the firmware
// object names and sequencing tunables for each supported controller
// generation. Built-in profiles are embedded; deployments can override
// them from a directory of YAML files.
package platform

import (
	"fmt"
	"time"

	"github.com/railgate-project/railgate-go/pkg/power"
)

// Profile describes one platform's power interface. Durations carry
// their unit in the field name so profile files stay readable.
type Profile struct {
	// Name identifies the profile. Files loaded from a directory
	// override built-ins with the same name.
	Name string `yaml:"name"`

	// Description is free-form documentation.
	Description string `yaml:"description,omitempty"`

	// SetPowerMethods lists candidate identifiers for the power toggle
	// method, tried in order.
	SetPowerMethods []string `yaml:"set_power_methods"`

	// GetPowerMethods lists candidate identifiers for the power query
	// method, tried in order.
	GetPowerMethods []string `yaml:"get_power_methods"`

	// WakeEvent names the firmware wake event object.
	WakeEvent string `yaml:"wake_event"`

	// PollAttempts bounds the power-down confirmation poll. Zero keeps
	// the library default.
	PollAttempts int `yaml:"poll_attempts,omitempty"`

	// PollMinMicros is the minimum sleep between confirmation polls.
	PollMinMicros int `yaml:"poll_min_us,omitempty"`

	// PollMaxMicros is the maximum sleep between confirmation polls.
	PollMaxMicros int `yaml:"poll_max_us,omitempty"`

	// SettleMillis delays resume completion for late hot-plug events.
	SettleMillis int `yaml:"settle_ms,omitempty"`

	// AutosuspendMillis is the idle time before a suspend attempt.
	AutosuspendMillis int `yaml:"autosuspend_ms,omitempty"`
}

// Validate checks that the profile can drive a controller.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile must have a name")
	}
	if len(p.SetPowerMethods) == 0 {
		return fmt.Errorf("profile %s: no set_power_methods", p.Name)
	}
	if len(p.GetPowerMethods) == 0 {
		return fmt.Errorf("profile %s: no get_power_methods", p.Name)
	}
	if p.WakeEvent == "" {
		return fmt.Errorf("profile %s: no wake_event", p.Name)
	}
	if p.PollAttempts < 0 || p.PollMinMicros < 0 || p.PollMaxMicros < 0 ||
		p.SettleMillis < 0 || p.AutosuspendMillis < 0 {
		return fmt.Errorf("profile %s: negative tunable", p.Name)
	}
	return nil
}

// Config translates the profile into a power controller configuration.
// Zero tunables stay zero and fall through to the power defaults.
func (p *Profile) Config() power.Config {
	cfg := power.Config{
		SetPowerMethods:  append([]string(nil), p.SetPowerMethods...),
		GetPowerMethods:  append([]string(nil), p.GetPowerMethods...),
		WakeEventName:    p.WakeEvent,
		PollAttempts:     p.PollAttempts,
		PollMin:          time.Duration(p.PollMinMicros) * time.Microsecond,
		PollMax:          time.Duration(p.PollMaxMicros) * time.Microsecond,
		SettleDelay:      time.Duration(p.SettleMillis) * time.Millisecond,
		AutosuspendDelay: time.Duration(p.AutosuspendMillis) * time.Millisecond,
	}
	return cfg
}
