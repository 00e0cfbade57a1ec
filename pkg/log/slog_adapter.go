package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes power events to an slog.Logger.
// Useful for development when you want to see the event trace in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("controller_id", event.ControllerID),
		slog.String("category", event.Category.String()),
	}

	// Add type-specific attributes
	switch {
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.FirmwareCall != nil:
		attrs = append(attrs, slog.String("op", event.FirmwareCall.Op.String()))
		if event.FirmwareCall.Method != "" {
			attrs = append(attrs, slog.String("method", event.FirmwareCall.Method))
		}
		if event.FirmwareCall.Arg != nil {
			attrs = append(attrs, slog.Uint64("arg", *event.FirmwareCall.Arg))
		}
		if event.FirmwareCall.Result != nil {
			attrs = append(attrs, slog.Uint64("result", *event.FirmwareCall.Result))
		}
		if event.FirmwareCall.Attempts > 0 {
			attrs = append(attrs, slog.Int("attempts", event.FirmwareCall.Attempts))
		}
		if event.FirmwareCall.Err != "" {
			attrs = append(attrs, slog.String("error", event.FirmwareCall.Err))
		}
	case event.Wake != nil:
		attrs = append(attrs,
			slog.Uint64("event_id", uint64(event.Wake.EventID)),
			slog.Bool("coalesced", event.Wake.Coalesced),
		)
	case event.Rollback != nil:
		attrs = append(attrs, slog.String("cause", event.Rollback.Cause))
		if event.Rollback.PowerOnFailed {
			attrs = append(attrs, slog.Bool("power_on_failed", true))
		}
		if event.Rollback.DevicesResumed > 0 {
			attrs = append(attrs, slog.Int("devices_resumed", event.Rollback.DevicesResumed))
		}
	case event.Error != nil:
		attrs = append(attrs, slog.String("error_msg", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "power", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
