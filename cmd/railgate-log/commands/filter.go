package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/railgate-project/railgate-go/pkg/log"
)

// FilterOptions specifies filtering criteria for the filter command.
// Time bounds are RFC3339 strings as passed on the command line.
type FilterOptions struct {
	Output       string
	ControllerID string
	Category     string
	TimeStart    string
	TimeEnd      string
}

// buildFilter converts command-line criteria into a trace filter.
func buildFilter(opts FilterOptions) (log.Filter, error) {
	filter := log.Filter{ControllerID: opts.ControllerID}

	if opts.Category != "" {
		c, err := parseCategory(opts.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}

	var err error
	if filter.TimeStart, err = parseTimeFlag("time-start", opts.TimeStart); err != nil {
		return log.Filter{}, err
	}
	if filter.TimeEnd, err = parseTimeFlag("time-end", opts.TimeEnd); err != nil {
		return log.Filter{}, err
	}
	return filter, nil
}

// parseTimeFlag parses an optional RFC3339 flag value, nil when unset.
func parseTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s format: %w", name, err)
	}
	return &t, nil
}

// RunFilter copies the matching subset of a trace into a new file.
func RunFilter(path string, opts FilterOptions) error {
	filter, err := buildFilter(opts)
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	out, err := log.NewFileLogger(opts.Output)
	if err != nil {
		return fmt.Errorf("failed to create output trace: %w", err)
	}
	defer out.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		out.Log(event)
		count++
	}

	fmt.Printf("Filtered %d events to %s\n", count, opts.Output)
	return nil
}
