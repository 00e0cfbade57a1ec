package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/railgate-project/railgate-go/pkg/log"
)

// Stats holds aggregate statistics about a trace file.
type Stats struct {
	TotalEvents             int
	EventsByCategory        map[log.Category]int
	Controllers             map[string]*ControllerStats
	StateTransitions        map[string]int
	FirmwareOps             map[string]int
	FirmwareFailures        int
	PollAttemptsMax         int
	Rollbacks               int
	RollbackPowerOnFailures int
	WakeEvents              int
	WakeCoalesced           int
	Errors                  int
	TimeRange               struct {
		Start time.Time
		End   time.Time
	}
}

// ControllerStats holds statistics for a single controller.
type ControllerStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Suspends  int
	Resumes   int
	Rollbacks int
}

// RunStats analyzes the trace file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory: make(map[log.Category]int),
		Controllers:      make(map[string]*ControllerStats),
		StateTransitions: make(map[string]int),
		FirmwareOps:      make(map[string]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByCategory[event.Category]++

		// Track time range
		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		// Track controller stats
		ctrl, ok := stats.Controllers[event.ControllerID]
		if !ok {
			ctrl = &ControllerStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
			}
			stats.Controllers[event.ControllerID] = ctrl
		}
		ctrl.Events++
		if event.Timestamp.After(ctrl.LastSeen) {
			ctrl.LastSeen = event.Timestamp
		}

		switch {
		case event.StateChange != nil:
			sc := event.StateChange
			key := sc.OldState + " -> " + sc.NewState
			stats.StateTransitions[key]++
			if sc.NewState == "SUSPENDED" && sc.OldState == "SUSPENDING" {
				ctrl.Suspends++
			}
			if sc.NewState == "ACTIVE" && sc.OldState == "RESUMING" {
				ctrl.Resumes++
			}

		case event.FirmwareCall != nil:
			fc := event.FirmwareCall
			stats.FirmwareOps[fc.Op.String()]++
			if fc.Err != "" {
				stats.FirmwareFailures++
			}
			if fc.Attempts > stats.PollAttemptsMax {
				stats.PollAttemptsMax = fc.Attempts
			}

		case event.Wake != nil:
			stats.WakeEvents++
			if event.Wake.Coalesced {
				stats.WakeCoalesced++
			}

		case event.Rollback != nil:
			stats.Rollbacks++
			ctrl.Rollbacks++
			if event.Rollback.PowerOnFailed {
				stats.RollbackPowerOnFailures++
			}

		case event.Error != nil:
			stats.Errors++
		}
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Railgate Power Trace Statistics ===")
	fmt.Fprintln(w)

	// Time range
	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	// Events by category
	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryState, log.CategoryFirmware, log.CategoryWake, log.CategoryRollback, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// State transitions
	if len(stats.StateTransitions) > 0 {
		fmt.Fprintln(w, "State Transitions:")
		keys := make([]string, 0, len(stats.StateTransitions))
		for k := range stats.StateTransitions {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %-28s %d\n", k+":", stats.StateTransitions[k])
		}
		fmt.Fprintln(w)
	}

	// Firmware calls
	if len(stats.FirmwareOps) > 0 {
		fmt.Fprintln(w, "Firmware Calls:")
		keys := make([]string, 0, len(stats.FirmwareOps))
		for k := range stats.FirmwareOps {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %-14s %d\n", k+":", stats.FirmwareOps[k])
		}
		if stats.FirmwareFailures > 0 {
			fmt.Fprintf(w, "  Failures: %d\n", stats.FirmwareFailures)
		}
		if stats.PollAttemptsMax > 0 {
			fmt.Fprintf(w, "  Max confirmation poll attempts: %d\n", stats.PollAttemptsMax)
		}
		fmt.Fprintln(w)
	}

	// Wake events
	if stats.WakeEvents > 0 {
		fmt.Fprintf(w, "Wake Events: %d (%d coalesced)\n", stats.WakeEvents, stats.WakeCoalesced)
		fmt.Fprintln(w)
	}

	// Rollbacks
	if stats.Rollbacks > 0 {
		fmt.Fprintf(w, "Rollbacks: %d", stats.Rollbacks)
		if stats.RollbackPowerOnFailures > 0 {
			fmt.Fprintf(w, " (%d with failed power-on)", stats.RollbackPowerOnFailures)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w)
	}

	// Controllers
	fmt.Fprintf(w, "Controllers: %d\n", len(stats.Controllers))
	if len(stats.Controllers) > 0 {
		type ctrlInfo struct {
			id    string
			stats *ControllerStats
		}
		ctrls := make([]ctrlInfo, 0, len(stats.Controllers))
		for id, cs := range stats.Controllers {
			ctrls = append(ctrls, ctrlInfo{id, cs})
		}
		sort.Slice(ctrls, func(i, j int) bool {
			return ctrls[i].stats.FirstSeen.Before(ctrls[j].stats.FirstSeen)
		})

		fmt.Fprintln(w, "")
		for _, c := range ctrls {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenControllerID(c.id), c.stats.Events, duration)
			fmt.Fprintf(w, "           Suspends: %d  Resumes: %d  Rollbacks: %d\n",
				c.stats.Suspends, c.stats.Resumes, c.stats.Rollbacks)
		}
	}

	// Errors
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
