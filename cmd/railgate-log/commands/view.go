// Package commands implements the railgate-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/railgate-project/railgate-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Category         *log.Category
	ControllerPrefix string
}

// admits reports whether the view should print the event.
func (f ViewFilter) admits(event log.Event) bool {
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.ControllerPrefix != "" && !strings.HasPrefix(event.ControllerID, f.ControllerPrefix) {
		return false
	}
	return true
}

// headline returns the one-line summary printed next to the category.
func headline(event log.Event) string {
	switch {
	case event.StateChange != nil:
		return event.StateChange.NewState
	case event.FirmwareCall != nil:
		return event.FirmwareCall.Op.String()
	case event.Wake != nil:
		return fmt.Sprintf("event %d", event.Wake.EventID)
	case event.Rollback != nil:
		return "suspend rolled back"
	case event.Error != nil:
		return event.Error.Message
	}
	return ""
}

// formatEvent writes a human-readable representation of the event to w:
// a header line followed by indented payload details and a blank line.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [ctrl:%s] %-8s %s\n", ts, shortenControllerID(event.ControllerID), event.Category, headline(event))

	switch {
	case event.StateChange != nil:
		sc := event.StateChange
		if sc.OldState != "" {
			fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
		} else {
			fmt.Fprintf(w, "  -> %s\n", sc.NewState)
		}
		if sc.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
		}

	case event.FirmwareCall != nil:
		fc := event.FirmwareCall
		if fc.Method != "" {
			fmt.Fprintf(w, "  Method: %s\n", fc.Method)
		}
		if fc.Arg != nil {
			fmt.Fprintf(w, "  Arg: %d\n", *fc.Arg)
		}
		if fc.Result != nil {
			fmt.Fprintf(w, "  Result: %d\n", *fc.Result)
		}
		if fc.Attempts > 0 {
			fmt.Fprintf(w, "  Attempts: %d\n", fc.Attempts)
		}
		if fc.Err != "" {
			fmt.Fprintf(w, "  Error: %s\n", fc.Err)
		}

	case event.Wake != nil:
		fmt.Fprintf(w, "  EventID: %d\n", event.Wake.EventID)
		if event.Wake.Coalesced {
			fmt.Fprintln(w, "  Coalesced: further firings were absorbed")
		}

	case event.Rollback != nil:
		rb := event.Rollback
		fmt.Fprintf(w, "  Cause: %s\n", rb.Cause)
		if rb.PowerOnFailed {
			fmt.Fprintln(w, "  Power-on during rollback FAILED")
		}
		if rb.DevicesResumed > 0 {
			fmt.Fprintf(w, "  Devices resumed: %d\n", rb.DevicesResumed)
		}

	case event.Error != nil:
		fmt.Fprintf(w, "  Message: %s\n", event.Error.Message)
		if event.Error.Context != "" {
			fmt.Fprintf(w, "  Context: %s\n", event.Error.Context)
		}
	}

	fmt.Fprintln(w)
}

// shortenControllerID returns the first 8 characters of the controller ID.
func shortenControllerID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// ParseCategoryFlag parses a category string from a command-line flag
// (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	return parseCategory(s)
}

// parseCategory parses a category string (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "state":
		return log.CategoryState, nil
	case "firmware":
		return log.CategoryFirmware, nil
	case "wake":
		return log.CategoryWake, nil
	case "rollback":
		return log.CategoryRollback, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be state, firmware, wake, rollback, or error)", s)
	}
}

// RunView pretty-prints the trace to output.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if filter.admits(event) {
			formatEvent(output, event)
		}
	}
	return nil
}
