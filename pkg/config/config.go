// Package config loads agent configuration from YAML.
//
// Load reads the file, fills in defaults and validates the result. Binaries
// apply flag overrides afterwards and call Validate again.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wxnode/wxnode-go/pkg/sensor"
	"github.com/wxnode/wxnode-go/pkg/transport"
)

// Deployment profiles.
const (
	ProfileMQTTSN = "mqttsn"
	ProfileLoRa   = "lora"
)

// Profile publish intervals.
const (
	MQTTSNInterval = 5 * time.Second
	LoRaInterval   = 20 * time.Second
)

// Defaults.
const (
	DefaultDeviceID         = "2"
	DefaultTopic            = "weather"
	DefaultLogLevel         = "info"
	DefaultDiscoveryService = "_mqtt._tcp"
	DefaultDiscoveryDomain  = "local."
	DefaultDiscoveryTimeout = 3 * time.Second
)

// ErrInvalid is returned for configuration that fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the agent configuration.
type Config struct {
	DeviceID    string `yaml:"device_id"`
	Profile     string `yaml:"profile"`
	LogLevel    string `yaml:"log_level"`
	ProtocolLog string `yaml:"protocol_log"`
	StateDir    string `yaml:"state_dir"`

	// Channels overrides channel ranges by name.
	Channels map[string]sensor.Range `yaml:"channels"`

	Loop      LoopConfig      `yaml:"loop"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	LoRa      LoRaConfig      `yaml:"lora"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// LoopConfig configures the periodic publisher.
type LoopConfig struct {
	Topic string `yaml:"topic"`
	QoS   int    `yaml:"qos"`

	// Interval overrides the profile interval.
	Interval time.Duration `yaml:"interval"`

	// Autostart starts the loop once connected, without a shell command.
	Autostart bool `yaml:"autostart"`
}

// MQTTConfig configures the MQTT uplink.
type MQTTConfig struct {
	// Gateway and Port, when set, are connected at startup.
	Gateway string `yaml:"gateway"`
	Port    uint16 `yaml:"port"`

	KeepAlive        time.Duration `yaml:"keep_alive"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	AutoReconnect    bool          `yaml:"auto_reconnect"`

	Will WillConfig `yaml:"will"`
}

// WillConfig is the initial last will.
type WillConfig struct {
	Topic   string `yaml:"topic"`
	Message string `yaml:"message"`
	QoS     int    `yaml:"qos"`
}

// LoRaConfig configures the LoRaWAN modem.
type LoRaConfig struct {
	Serial         string        `yaml:"serial"`
	Baud           int           `yaml:"baud"`
	DevEUI         string        `yaml:"dev_eui"`
	AppEUI         string        `yaml:"app_eui"`
	AppKey         string        `yaml:"app_key"`
	DataRate       int           `yaml:"data_rate"`
	FPort          uint8         `yaml:"fport"`
	JoinTimeout    time.Duration `yaml:"join_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// MetricsConfig configures the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DiscoveryConfig configures mDNS gateway browsing.
type DiscoveryConfig struct {
	Service string        `yaml:"service"`
	Domain  string        `yaml:"domain"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DeviceID == "" {
		c.DeviceID = DefaultDeviceID
	}
	if c.Profile == "" {
		c.Profile = ProfileMQTTSN
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Loop.Topic == "" {
		c.Loop.Topic = DefaultTopic
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = transport.DefaultPort
	}
	if c.LoRa.Baud == 0 {
		c.LoRa.Baud = 115200
	}
	if c.LoRa.DataRate == 0 {
		c.LoRa.DataRate = 5
	}
	if c.LoRa.FPort == 0 {
		c.LoRa.FPort = 2
	}
	if c.Discovery.Service == "" {
		c.Discovery.Service = DefaultDiscoveryService
	}
	if c.Discovery.Domain == "" {
		c.Discovery.Domain = DefaultDiscoveryDomain
	}
	if c.Discovery.Timeout == 0 {
		c.Discovery.Timeout = DefaultDiscoveryTimeout
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalid)
	}
	switch c.Profile {
	case ProfileMQTTSN, ProfileLoRa:
	default:
		return fmt.Errorf("%w: unknown profile %q", ErrInvalid, c.Profile)
	}
	if c.Loop.QoS < 0 || c.Loop.QoS > 2 {
		return fmt.Errorf("%w: loop.qos must be 0, 1 or 2", ErrInvalid)
	}
	if c.Loop.Interval < 0 {
		return fmt.Errorf("%w: loop.interval must not be negative", ErrInvalid)
	}
	if c.MQTT.Will.QoS < 0 || c.MQTT.Will.QoS > 2 {
		return fmt.Errorf("%w: mqtt.will.qos must be 0, 1 or 2", ErrInvalid)
	}
	if c.MQTT.Gateway != "" {
		if _, err := transport.ParseEndpoint(c.MQTT.Gateway, ""); err != nil {
			return fmt.Errorf("%w: mqtt.gateway: %v", ErrInvalid, err)
		}
	}
	if _, err := c.Ranges(); err != nil {
		return fmt.Errorf("%w: channels: %v", ErrInvalid, err)
	}
	return nil
}

// Ranges returns the default channel ranges with the configured overrides.
func (c *Config) Ranges() (sensor.Ranges, error) {
	ranges := sensor.DefaultRanges()
	for name, r := range c.Channels {
		id, err := sensor.ParseChannel(name)
		if err != nil {
			return ranges, err
		}
		ranges[id] = r
	}
	return ranges, ranges.Validate()
}

// Interval returns the publish interval: the configured one, or the profile's.
func (c *Config) Interval() time.Duration {
	if c.Loop.Interval > 0 {
		return c.Loop.Interval
	}
	if c.Profile == ProfileLoRa {
		return LoRaInterval
	}
	return MQTTSNInterval
}

// LoopQoS returns the loop delivery class.
func (c *Config) LoopQoS() transport.QoS {
	return transport.QoS(c.Loop.QoS)
}

// InitialWill returns the configured will, or nil if none.
func (c *Config) InitialWill() *transport.Will {
	if c.MQTT.Will.Topic == "" {
		return nil
	}
	return &transport.Will{
		Topic:   c.MQTT.Will.Topic,
		Message: []byte(c.MQTT.Will.Message),
		QoS:     transport.QoS(c.MQTT.Will.QoS),
	}
}
