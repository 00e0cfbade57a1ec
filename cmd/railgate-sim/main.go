// Command railgate-sim runs the power sequencer against a simulated
// peripheral controller.
//
// The simulator wires the sequencer to an in-memory firmware backend and
// device tree, with an interactive console for driving suspend/resume
// cycles and injecting the firmware failures real hardware produces.
//
// Usage:
//
//	railgate-sim [flags]
//
// Flags:
//
//	-profile string      Platform profile name (default "default")
//	-profile-dir string  Directory with additional profile files
//	-state string        Device tree state file (persisted across runs)
//	-event-log string    Write the power event trace to this .rlog file
//	-autosuspend-ms int  Override the profile's autosuspend delay
//	-log-level string    Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Run with defaults and a short autosuspend for demos
//	railgate-sim -autosuspend-ms 3000
//
//	# Run a gen2 controller, capturing the event trace
//	railgate-sim -profile gen2 -event-log run.rlog
//
//	# Persist the simulated device tree between runs
//	railgate-sim -state /tmp/railgate-tree.json
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/railgate-project/railgate-go/cmd/railgate-sim/interactive"
	"github.com/railgate-project/railgate-go/pkg/bus/memtree"
	"github.com/railgate-project/railgate-go/pkg/firmware/sim"
	rlog "github.com/railgate-project/railgate-go/pkg/log"
	"github.com/railgate-project/railgate-go/pkg/platform"
	"github.com/railgate-project/railgate-go/pkg/power"
)

// Config holds the simulator configuration.
type Config struct {
	Profile       string
	ProfileDir    string
	StateFile     string
	EventLogFile  string
	AutosuspendMS int
	LogLevel      string
}

var config Config

func init() {
	flag.StringVar(&config.Profile, "profile", "default", "Platform profile name")
	flag.StringVar(&config.ProfileDir, "profile-dir", "", "Directory with additional profile files")
	flag.StringVar(&config.StateFile, "state", "", "Device tree state file (persisted across runs)")
	flag.StringVar(&config.EventLogFile, "event-log", "", "Write the power event trace to this .rlog file")
	flag.IntVar(&config.AutosuspendMS, "autosuspend-ms", 0, "Override the profile's autosuspend delay")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()
	setupLogging(config.LogLevel)

	log.Println("Railgate Simulator")
	log.Println("==================")
	log.Printf("Profile: %s", config.Profile)

	// Resolve the platform profile
	registry, err := platform.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load built-in profiles: %v", err)
	}
	if config.ProfileDir != "" {
		if err := registry.LoadDir(config.ProfileDir); err != nil {
			log.Fatalf("Failed to load profiles from %s: %v", config.ProfileDir, err)
		}
	}
	profile, ok := registry.Profile(config.Profile)
	if !ok {
		log.Fatalf("Unknown profile %q (available: %v)", config.Profile, registry.Names())
	}

	powerCfg := profile.Config()
	if config.AutosuspendMS > 0 {
		powerCfg.AutosuspendDelay = time.Duration(config.AutosuspendMS) * time.Millisecond
	}
	powerCfg.Logger = newSlogger(config.LogLevel)

	// Event trace capture
	if config.EventLogFile != "" {
		fileLogger, err := rlog.NewFileLogger(config.EventLogFile)
		if err != nil {
			log.Fatalf("Failed to open event log: %v", err)
		}
		defer fileLogger.Close()
		powerCfg.EventLogger = fileLogger
		log.Printf("Event trace: %s", config.EventLogFile)
	}

	// Device tree, restored from the state file when one exists
	var store *memtree.Store
	tree := memtree.New("controller")
	if config.StateFile != "" {
		store = memtree.NewStore(config.StateFile)
		loaded, err := store.Load()
		if err != nil {
			log.Fatalf("Failed to load state file: %v", err)
		}
		if loaded != nil {
			tree = loaded
			log.Printf("Restored device tree from %s", config.StateFile)
		}
	}

	// Simulated firmware and the sequencer itself
	fw := sim.New()
	ctrl, err := power.Init(fw, fw, tree, powerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize controller: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctrl.Start(ctx); err != nil {
		log.Fatalf("Failed to start runtime: %v", err)
	}
	log.Printf("Controller %s started (state: %s)", ctrl.ID(), ctrl.State())

	// Interactive console
	console, err := interactive.New(ctrl, fw, tree)
	if err != nil {
		log.Fatalf("Failed to create console: %v", err)
	}
	// Redirect log output through readline to avoid interfering with input
	log.SetOutput(console.Stdout())
	go console.Run(ctx, cancel)

	// Wait for quit command or shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
		// Context was cancelled by the quit command
	}

	log.Println("Shutting down...")

	if store != nil {
		log.Println("Saving device tree...")
		if err := store.Save(tree); err != nil {
			log.Printf("Warning: Failed to save state: %v", err)
		}
	}

	ctrl.Stop()
	ctrl.Fini()

	log.Println("Goodbye!")
}

func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "warn", "error":
		log.SetFlags(log.Ltime)
	}
}

// newSlogger builds the structured logger handed to the power library.
func newSlogger(level string) *slog.Logger {
	var lv slog.Level
	switch level {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
}
