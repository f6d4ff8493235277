// Command wxnode-agent is the interactive weather telemetry agent.
//
// It simulates a weather station, encodes readings into compact records
// and publishes them to an MQTT broker. A command shell drives the
// connection, one-shot publishes, the periodic publish loop and topic
// subscriptions.
//
// Usage:
//
//	wxnode-agent [flags]
//
// Flags:
//
//	-config string        Configuration file path
//	-device-id string     Device identifier (default "device1")
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  Write protocol events to this .tlog file
//	-metrics-addr string  Serve Prometheus metrics on this address
//	-state-dir string     Persist connection and loop state in this directory
//	-reconnect            Restore the persisted state at startup
//	-interactive          Enable the command shell (default true)
//
// Examples:
//
//	# Start with the shell and connect by hand
//	wxnode-agent -device-id device2
//
//	# Reconnect to the last gateway and resume publishing
//	wxnode-agent -state-dir /var/lib/wxnode -reconnect
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/wxnode/wxnode-go/cmd/wxnode-agent/interactive"
	"github.com/wxnode/wxnode-go/pkg/agent"
	"github.com/wxnode/wxnode-go/pkg/config"
	"github.com/wxnode/wxnode-go/pkg/discovery"
	wxlog "github.com/wxnode/wxnode-go/pkg/log"
	"github.com/wxnode/wxnode-go/pkg/metrics"
	"github.com/wxnode/wxnode-go/pkg/persistence"
	"github.com/wxnode/wxnode-go/pkg/record"
	"github.com/wxnode/wxnode-go/pkg/sensor"
	"github.com/wxnode/wxnode-go/pkg/shell"
	"github.com/wxnode/wxnode-go/pkg/transport"
	"github.com/wxnode/wxnode-go/pkg/transport/mqtt"
)

// Flags holds the command-line settings. Non-empty values override the
// configuration file.
type Flags struct {
	ConfigFile  string
	DeviceID    string
	LogLevel    string
	ProtocolLog string
	MetricsAddr string
	StateDir    string
	Reconnect   bool
	Interactive bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&flags.DeviceID, "device-id", "", "Device identifier (default \"device1\")")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error (default \"info\")")
	flag.StringVar(&flags.ProtocolLog, "protocol-log", "", "Write protocol events to this .tlog file")
	flag.StringVar(&flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	flag.StringVar(&flags.StateDir, "state-dir", "", "Persist connection and loop state in this directory")
	flag.BoolVar(&flags.Reconnect, "reconnect", false, "Restore the persisted state at startup")
	flag.BoolVar(&flags.Interactive, "interactive", true, "Enable the command shell")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	setupLogging(cfg.LogLevel)

	var out io.Writer = os.Stdout
	var term *interactive.Shell
	if flags.Interactive {
		term, err = interactive.New(cfg.DeviceID + "> ")
		if err != nil {
			log.Fatalf("Failed to create interactive shell: %v", err)
		}
		// Redirect log output through readline to avoid interfering with input
		out = term.Stdout()
		log.SetOutput(out)
	}
	logger := newLogger(out, cfg.LogLevel)
	slog.SetDefault(logger)

	log.Println("wxnode weather agent")
	log.Println("====================")
	log.Printf("Device: %s", cfg.DeviceID)
	log.Printf("Publish interval: %s", cfg.Interval())

	events, closeEvents := openEventLog(cfg, logger)
	defer closeEvents()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				log.Printf("Warning: metrics endpoint failed: %v", err)
			}
		}()
	}

	ranges, err := cfg.Ranges()
	if err != nil {
		log.Fatalf("Invalid channel ranges: %v", err)
	}
	sim, err := sensor.NewSimulator(sensor.NewTimeSource(), ranges)
	if err != nil {
		log.Fatalf("Failed to create simulator: %v", err)
	}
	enc, err := record.NewEncoder(cfg.DeviceID, ranges)
	if err != nil {
		log.Fatalf("Failed to create record encoder: %v", err)
	}

	tr := mqtt.New(mqtt.Config{
		ClientID:         cfg.DeviceID,
		KeepAlive:        cfg.MQTT.KeepAlive,
		ConnectTimeout:   cfg.MQTT.ConnectTimeout,
		OperationTimeout: cfg.MQTT.OperationTimeout,
		AutoReconnect:    cfg.MQTT.AutoReconnect,
		Logger:           logger,
	})

	var store *persistence.StateStore
	if cfg.StateDir != "" {
		store = persistence.NewStateStoreInDir(cfg.StateDir)
		log.Printf("State file: %s", store.Path())
	}

	a := agent.New(tr, sim, enc, agent.Config{
		Interval: cfg.Interval(),
		Output:   out,
		Logger:   logger,
		Events:   events,
		Metrics:  m,
		Store:    store,
	})

	startup(ctx, cfg, a, store)

	if term != nil {
		d := shell.New(a,
			shell.WithOutput(out),
			shell.WithQuit(cancel),
			shell.WithDiscovery(func(timeout time.Duration) shell.Discoverer {
				if timeout <= 0 {
					timeout = cfg.Discovery.Timeout
				}
				return discovery.NewBrowser(discovery.BrowserConfig{
					Service: cfg.Discovery.Service,
					Domain:  cfg.Discovery.Domain,
					Timeout: timeout,
				})
			}),
		)
		go term.Run(ctx, cancel, d)
	}

	// Wait for shutdown signal or context cancellation
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
		// Context was cancelled (e.g., by the quit command)
	}

	log.Println("Shutting down...")

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	if err := a.Close(closeCtx); err != nil {
		log.Printf("Error closing agent: %v", err)
	}
	cancel()

	log.Println("Goodbye!")
}

// startup restores the persisted session or connects to the configured
// gateway. Failures are reported; the shell can still be used to connect.
func startup(ctx context.Context, cfg *config.Config, a *agent.Agent, store *persistence.StateStore) {
	if flags.Reconnect && store != nil {
		saved, err := store.Load()
		switch {
		case err != nil:
			log.Printf("Warning: Failed to load state: %v", err)
		case saved != nil:
			log.Println("Restoring previous session...")
			if err := a.Restore(ctx, saved); err != nil {
				log.Printf("Warning: Failed to restore state: %v", err)
			}
			return
		}
	}

	if cfg.MQTT.Gateway == "" {
		return
	}
	ep, err := transport.ParseEndpoint(cfg.MQTT.Gateway, strconv.Itoa(int(cfg.MQTT.Port)))
	if err != nil {
		log.Printf("Warning: %v", err)
		return
	}

	connCtx, cancel := context.WithTimeout(ctx, shell.DefaultTimeout)
	defer cancel()
	if err := a.Connect(connCtx, ep, cfg.InitialWill()); err != nil {
		log.Printf("Warning: unable to connect to %s: %v", ep, err)
		return
	}
	log.Printf("Successfully connected to gateway at %s", ep)

	if cfg.Loop.Autostart {
		if err := a.StartLoop(cfg.Loop.Topic, cfg.LoopQoS()); err != nil {
			log.Printf("Warning: Failed to start publish loop: %v", err)
			return
		}
		log.Printf("[LOOP] Publishing to '%s' every %s", cfg.Loop.Topic, cfg.Interval())
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if flags.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(flags.ConfigFile); err != nil {
			return nil, err
		}
	}
	cfg.Profile = config.ProfileMQTTSN

	if flags.DeviceID != "" {
		cfg.DeviceID = flags.DeviceID
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
	if flags.ProtocolLog != "" {
		cfg.ProtocolLog = flags.ProtocolLog
	}
	if flags.MetricsAddr != "" {
		cfg.Metrics.Addr = flags.MetricsAddr
	}
	if flags.StateDir != "" {
		cfg.StateDir = flags.StateDir
	}
	return cfg, cfg.Validate()
}

// openEventLog builds the protocol event session. Events always reach the
// debug log; with a protocol log configured they are also written to file.
func openEventLog(cfg *config.Config, logger *slog.Logger) (*wxlog.Session, func()) {
	loggers := []wxlog.Logger{wxlog.NewSlogAdapter(logger)}
	closeFn := func() {}

	if cfg.ProtocolLog != "" {
		fl, err := wxlog.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			log.Fatalf("Failed to open protocol log: %v", err)
		}
		log.Printf("Protocol log: %s", cfg.ProtocolLog)
		loggers = append(loggers, fl)
		closeFn = func() {
			if n := fl.Errors(); n > 0 {
				log.Printf("Warning: %d protocol events could not be written", n)
			}
			fl.Close()
		}
	}

	session := wxlog.NewSession(wxlog.NewMultiLogger(loggers...), cfg.DeviceID, cfg.Profile)
	log.Printf("Session: %s", session.ID())
	return session, closeFn
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

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
