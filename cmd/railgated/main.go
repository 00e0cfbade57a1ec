// Command railgated runs the power sequencer for a peripheral
// controller attached over a serial embedded-controller link.
//
// The daemon resolves the controller's firmware objects through the
// platform profile, then hands the controller to the runtime: it
// autosuspends when idle, wakes on the firmware wake event, and honors
// system sleep transitions signalled by the service manager.
//
// Usage:
//
//	railgated [flags]
//
// Flags:
//
//	-port string         Serial device of the EC link (required)
//	-profile string      Platform profile name (default "default")
//	-profile-dir string  Directory with additional profile files
//	-event-log string    Write the power event trace to this .rlog file
//	-log-level string    Log level: debug, info, warn, error (default "info")
//
// Signals:
//
//	SIGUSR1   Prepare for system sleep
//	SIGUSR2   Complete system wakeup
//	SIGINT    Graceful shutdown
//	SIGTERM   Graceful shutdown
//
// Examples:
//
//	# Run against the EC on ttyS1 with the gen2 profile
//	railgated -port /dev/ttyS1 -profile gen2
//
//	# Capture the event trace for later analysis with railgate-log
//	railgated -port /dev/ttyS1 -event-log /var/log/railgate/trace.rlog
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/railgate-project/railgate-go/pkg/bus/memtree"
	"github.com/railgate-project/railgate-go/pkg/firmware/serialec"
	rlog "github.com/railgate-project/railgate-go/pkg/log"
	"github.com/railgate-project/railgate-go/pkg/platform"
	"github.com/railgate-project/railgate-go/pkg/power"
)

// Config holds the daemon configuration.
type Config struct {
	Port         string
	Profile      string
	ProfileDir   string
	EventLogFile string
	LogLevel     string
}

var config Config

func init() {
	flag.StringVar(&config.Port, "port", "", "Serial device of the EC link (required)")
	flag.StringVar(&config.Profile, "profile", "default", "Platform profile name")
	flag.StringVar(&config.ProfileDir, "profile-dir", "", "Directory with additional profile files")
	flag.StringVar(&config.EventLogFile, "event-log", "", "Write the power event trace to this .rlog file")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()
	setupLogging(config.LogLevel)

	if config.Port == "" {
		log.Fatal("Serial device required (-port)")
	}

	log.Println("Railgate Daemon")
	log.Println("===============")
	log.Printf("Port: %s", config.Port)
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

	slogger := newSlogger(config.LogLevel)

	powerCfg := profile.Config()
	powerCfg.Logger = slogger

	// Event trace goes to the structured log, and to a file when asked
	eventLoggers := []rlog.Logger{rlog.NewSlogAdapter(slogger)}
	if config.EventLogFile != "" {
		fileLogger, err := rlog.NewFileLogger(config.EventLogFile)
		if err != nil {
			log.Fatalf("Failed to open event log: %v", err)
		}
		defer fileLogger.Close()
		eventLoggers = append(eventLoggers, fileLogger)
		log.Printf("Event trace: %s", config.EventLogFile)
	}
	powerCfg.EventLogger = rlog.NewMultiLogger(eventLoggers...)

	// Resume must not touch hardware once shutdown has begun
	var shuttingDown atomic.Bool
	powerCfg.ShutdownCheck = shuttingDown.Load

	// EC link
	conn, err := serialec.Open(config.Port, serialec.Config{Logger: slogger})
	if err != nil {
		log.Fatalf("Failed to open EC link: %v", err)
	}
	defer conn.Close()

	// The daemon sequences a bare controller; descendant devices belong
	// to the embedding device framework.
	tree := memtree.New("controller")

	ctrl, err := power.Init(conn, conn, tree, powerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize controller: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctrl.Start(ctx); err != nil {
		log.Fatalf("Failed to start runtime: %v", err)
	}
	log.Printf("Controller %s started (state: %s)", ctrl.ID(), ctrl.State())

	// Signal loop: sleep transitions and shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)

	for {
		sig := <-sigCh
		switch sig {
		case syscall.SIGUSR1:
			log.Println("System sleep: preparing")
			if err := ctrl.Prepare(); err != nil {
				log.Printf("Warning: Sleep preparation failed: %v", err)
			}

		case syscall.SIGUSR2:
			log.Println("System wakeup: completing")
			if err := ctrl.Complete(); err != nil {
				log.Printf("Warning: Wakeup completion failed: %v", err)
			}

		default:
			log.Printf("Received signal: %v", sig)
			log.Println("Shutting down...")

			shuttingDown.Store(true)
			ctrl.Stop()
			ctrl.Fini()

			log.Println("Goodbye!")
			return
		}
	}
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

// newSlogger builds the structured logger handed to the power library
// and the EC link.
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
