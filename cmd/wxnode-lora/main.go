// Command wxnode-lora is the headless LoRaWAN weather node.
//
// It joins the network over an AT-command modem using OTAA, then sends a
// weather record every 20 seconds until interrupted. Join failure aborts
// startup.
//
// Usage:
//
//	wxnode-lora [flags]
//
// Flags:
//
//	-config string        Configuration file path
//	-device-id string     Device identifier (default "device1")
//	-serial string        Modem serial device, e.g. /dev/ttyUSB0
//	-baud int             Modem baud rate (default 115200)
//	-deveui string        Device EUI (16 hex digits)
//	-appeui string        Application EUI (16 hex digits)
//	-appkey string        Application key (32 hex digits)
//	-datarate int         LoRaWAN data rate (default 5)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  Write protocol events to this .tlog file
//	-metrics-addr string  Serve Prometheus metrics on this address
//
// Examples:
//
//	wxnode-lora -serial /dev/ttyUSB0 -deveui 0011223344556677 \
//	    -appeui 70B3D57ED0000000 -appkey 000102030405060708090A0B0C0D0E0F
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wxnode/wxnode-go/pkg/config"
	wxlog "github.com/wxnode/wxnode-go/pkg/log"
	"github.com/wxnode/wxnode-go/pkg/metrics"
	"github.com/wxnode/wxnode-go/pkg/publish"
	"github.com/wxnode/wxnode-go/pkg/record"
	"github.com/wxnode/wxnode-go/pkg/sensor"
	"github.com/wxnode/wxnode-go/pkg/transport"
	"github.com/wxnode/wxnode-go/pkg/transport/lora"
)

// Flags holds the command-line settings. Non-zero values override the
// configuration file.
type Flags struct {
	ConfigFile  string
	DeviceID    string
	Serial      string
	Baud        int
	DevEUI      string
	AppEUI      string
	AppKey      string
	DataRate    int
	LogLevel    string
	ProtocolLog string
	MetricsAddr string
}

var flags Flags

// openModem opens the modem named in the configuration.
var openModem = lora.Open

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&flags.DeviceID, "device-id", "", "Device identifier (default \"device1\")")
	flag.StringVar(&flags.Serial, "serial", "", "Modem serial device, e.g. /dev/ttyUSB0")
	flag.IntVar(&flags.Baud, "baud", 0, "Modem baud rate (default 115200)")
	flag.StringVar(&flags.DevEUI, "deveui", "", "Device EUI (16 hex digits)")
	flag.StringVar(&flags.AppEUI, "appeui", "", "Application EUI (16 hex digits)")
	flag.StringVar(&flags.AppKey, "appkey", "", "Application key (32 hex digits)")
	flag.IntVar(&flags.DataRate, "datarate", 0, "LoRaWAN data rate (default 5)")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error (default \"info\")")
	flag.StringVar(&flags.ProtocolLog, "protocol-log", "", "Write protocol events to this .tlog file")
	flag.StringVar(&flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	setupLogging(cfg.LogLevel)
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	log.Println("wxnode LoRaWAN node")
	log.Println("===================")
	log.Printf("Device: %s", cfg.DeviceID)
	log.Printf("Modem: %s @ %d baud, DR%d", cfg.LoRa.Serial, cfg.LoRa.Baud, cfg.LoRa.DataRate)

	os.Exit(run(cfg, logger))
}

// run drives the node until it is interrupted and returns the exit code.
func run(cfg *config.Config, logger *slog.Logger) int {
	var sinks []wxlog.Logger
	sinks = append(sinks, wxlog.NewSlogAdapter(logger))
	if cfg.ProtocolLog != "" {
		fl, err := wxlog.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			log.Printf("Failed to open protocol log: %v", err)
			return 1
		}
		defer fl.Close()
		sinks = append(sinks, fl)
	}
	events := wxlog.NewSession(wxlog.NewMultiLogger(sinks...), cfg.DeviceID, cfg.Profile)

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
		log.Printf("Invalid channel ranges: %v", err)
		return 1
	}
	sim, err := sensor.NewSimulator(sensor.NewTimeSource(), ranges)
	if err != nil {
		log.Printf("Failed to create simulator: %v", err)
		return 1
	}
	enc, err := record.NewEncoder(cfg.DeviceID, ranges)
	if err != nil {
		log.Printf("Failed to create record encoder: %v", err)
		return 1
	}

	modem, err := openModem(lora.Config{
		Port:           cfg.LoRa.Serial,
		Baud:           cfg.LoRa.Baud,
		DevEUI:         cfg.LoRa.DevEUI,
		AppEUI:         cfg.LoRa.AppEUI,
		AppKey:         cfg.LoRa.AppKey,
		DataRate:       cfg.LoRa.DataRate,
		FPort:          cfg.LoRa.FPort,
		CommandTimeout: cfg.LoRa.CommandTimeout,
		JoinTimeout:    cfg.LoRa.JoinTimeout,
		Logger:         logger,
	})
	if err != nil {
		log.Printf("Failed to open modem: %v", err)
		return 1
	}
	defer modem.Close()

	modem.OnDownlink(func(topic transport.Topic, payload []byte) {
		m.IncInbound()
		log.Printf("[DOWNLINK] port %d: %x", topic.ID, payload)
	})
	modem.OnConnectionLost(func(err error) {
		log.Printf("[EVENT] Modem lost: %v", err)
		cancel()
	})

	log.Println("Starting join procedure")
	if err := modem.Join(ctx); err != nil {
		log.Printf("Join procedure failed: %v", err)
		return 1
	}
	log.Println("Join procedure succeeded")
	m.SetConnected(true)

	loop, err := publish.New(&uplink{modem}, sim, enc, publish.Config{
		Topic:    cfg.Loop.Topic,
		QoS:      cfg.LoopQoS(),
		Interval: cfg.Interval(),
	},
		publish.WithLogger(logger),
		publish.WithEvents(events),
		publish.WithMetrics(m),
	)
	if err != nil {
		log.Printf("Failed to create publish loop: %v", err)
		return 1
	}

	done := make(chan error, 1)
	go func() {
		m.SetLoopRunning(true)
		defer m.SetLoopRunning(false)
		done <- loop.Run(ctx)
	}()
	log.Printf("[LOOP] Sending every %s", cfg.Interval())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
		cancel()
		<-done
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Publish loop stopped: %v", err)
		}
	}

	s := loop.Stats()
	log.Printf("Sent %d of %d records (%d failed)", s.Published, s.Cycles, s.Failed)
	log.Println("Goodbye!")
	return 0
}

// uplink logs each record as it is sent.
type uplink struct {
	*lora.Modem
}

func (u *uplink) Publish(ctx context.Context, topic transport.Topic, data []byte, qos transport.QoS) error {
	log.Printf("Sending message: %s", data)
	if err := u.Modem.Publish(ctx, topic, data, qos); err != nil {
		log.Printf("Cannot send message '%s', ret code: %v", data, err)
		return err
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if flags.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(flags.ConfigFile); err != nil {
			return nil, err
		}
	}
	cfg.Profile = config.ProfileLoRa

	if flags.DeviceID != "" {
		cfg.DeviceID = flags.DeviceID
	}
	if flags.Serial != "" {
		cfg.LoRa.Serial = flags.Serial
	}
	if flags.Baud != 0 {
		cfg.LoRa.Baud = flags.Baud
	}
	if flags.DevEUI != "" {
		cfg.LoRa.DevEUI = flags.DevEUI
	}
	if flags.AppEUI != "" {
		cfg.LoRa.AppEUI = flags.AppEUI
	}
	if flags.AppKey != "" {
		cfg.LoRa.AppKey = flags.AppKey
	}
	if flags.DataRate != 0 {
		cfg.LoRa.DataRate = flags.DataRate
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
	return cfg, cfg.Validate()
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

func newLogger(level string) *slog.Logger {
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
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
