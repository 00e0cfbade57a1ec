// Command railgate-log is a tool for viewing and analyzing railgate
// power event traces.
//
// Trace files are created by passing -event-log to railgate-sim or
// railgated, or by wiring a FileLogger into an embedding driver.
//
// Usage:
//
//	railgate-log <command> [flags] <file.rlog>
//
// Commands:
//
//	view     View trace in human-readable format
//	export   Export trace to JSON or CSV format
//	filter   Filter trace and write to new file
//	stats    Show statistics about the trace
//
// Examples:
//
//	# View all events
//	railgate-log view run.rlog
//
//	# View only firmware calls
//	railgate-log view -category firmware run.rlog
//
//	# Export to JSONL
//	railgate-log export -format jsonl run.rlog
//
//	# Keep one controller's events in a new file
//	railgate-log filter -controller abc12345 -o one.rlog run.rlog
//
//	# Show statistics
//	railgate-log stats run.rlog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/railgate-project/railgate-go/cmd/railgate-log/commands"
)

const usage = `railgate-log - Railgate Power Trace Analyzer

Usage:
  railgate-log <command> [flags] <file.rlog>

Commands:
  view     View trace in human-readable format
  export   Export trace to JSON or CSV format
  filter   Filter trace and write to new file
  stats    Show statistics about the trace

Use "railgate-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	args := os.Args[2:]
	switch cmd := os.Args[1]; cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// newFlagSet builds a subcommand flag set whose -help output carries the
// one-line synopsis above the flag defaults.
func newFlagSet(name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "railgate-log %s - %s\n\nUsage:\n  railgate-log %s [flags] <file.rlog>\n\nFlags:\n", name, synopsis, name)
		fs.PrintDefaults()
	}
	return fs
}

// tracePath parses args and returns the positional trace file argument,
// exiting when it is missing.
func tracePath(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: trace file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs := newFlagSet("view", "View trace in human-readable format")
	category := fs.String("category", "", "Filter by category (state, firmware, wake, rollback, error)")
	controller := fs.String("controller", "", "Filter by controller ID prefix")
	path := tracePath(fs, args)

	filter := commands.ViewFilter{ControllerPrefix: *controller}
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export trace to JSON or CSV format")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := tracePath(fs, args)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Filter trace and write to new file")
	output := fs.String("o", "", "Output file (required)")
	controller := fs.String("controller", "", "Filter by controller ID")
	category := fs.String("category", "", "Filter by category (state, firmware, wake, rollback, error)")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	path := tracePath(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	err := commands.RunFilter(path, commands.FilterOptions{
		Output:       *output,
		ControllerID: *controller,
		Category:     *category,
		TimeStart:    *timeStart,
		TimeEnd:      *timeEnd,
	})
	if err != nil {
		fail(err)
	}
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show statistics about the trace")
	path := tracePath(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
