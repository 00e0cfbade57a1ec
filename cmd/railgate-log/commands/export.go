package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/railgate-project/railgate-go/pkg/log"
)

// RunExport exports the trace file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	// Determine output writer
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "controller_id", "category", "type", "detail"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		eventType, detail := summarizeEvent(event)

		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.ControllerID,
			event.Category.String(),
			eventType,
			detail,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

// summarizeEvent returns a short type label and a one-line detail string.
func summarizeEvent(event log.Event) (string, string) {
	switch {
	case event.StateChange != nil:
		sc := event.StateChange
		detail := fmt.Sprintf("%s -> %s", sc.OldState, sc.NewState)
		if sc.Reason != "" {
			detail += " (" + sc.Reason + ")"
		}
		return "state", detail

	case event.FirmwareCall != nil:
		fc := event.FirmwareCall
		detail := fc.Op.String()
		if fc.Method != "" {
			detail += " " + fc.Method
		}
		if fc.Arg != nil {
			detail += fmt.Sprintf(" arg=%d", *fc.Arg)
		}
		if fc.Result != nil {
			detail += fmt.Sprintf(" result=%d", *fc.Result)
		}
		if fc.Attempts > 0 {
			detail += fmt.Sprintf(" attempts=%d", fc.Attempts)
		}
		if fc.Err != "" {
			detail += " error=" + fc.Err
		}
		return "firmware", detail

	case event.Wake != nil:
		detail := fmt.Sprintf("event=%d", event.Wake.EventID)
		if event.Wake.Coalesced {
			detail += " coalesced"
		}
		return "wake", detail

	case event.Rollback != nil:
		rb := event.Rollback
		detail := rb.Cause
		if rb.PowerOnFailed {
			detail += " power_on_failed"
		}
		if rb.DevicesResumed > 0 {
			detail += fmt.Sprintf(" devices_resumed=%d", rb.DevicesResumed)
		}
		return "rollback", detail

	case event.Error != nil:
		detail := event.Error.Message
		if event.Error.Context != "" {
			detail += " (" + event.Error.Context + ")"
		}
		return "error", detail

	default:
		return "unknown", ""
	}
}
