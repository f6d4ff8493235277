// Package lora drives a RAK811-style LoRaWAN modem over its AT command
// interface.
//
// The modem owns the LoRaWAN stack: keys, join procedure, duty cycle and
// retransmission all happen on the module. This package only configures it,
// asks it to join via OTAA, hands it hex-encoded uplinks and relays downlinks
// (at+recv= lines) to a handler.
//
// Commands are strictly sequential. A background goroutine reads lines from the
// serial port; command responses are matched by their OK/ERROR prefix while
// downlink notifications are dispatched as they arrive.
package lora

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/wxnode/wxnode-go/pkg/transport"
)

// Defaults.
const (
	DefaultBaud           = 115200
	DefaultDataRate       = 5
	DefaultFPort          = 2
	DefaultCommandTimeout = 5 * time.Second
	DefaultJoinTimeout    = 60 * time.Second

	// MaxPayload is the largest application payload at DR5.
	MaxPayload = 242
)

// Modem errors.
var (
	ErrInvalidKey     = errors.New("invalid LoRaWAN key")
	ErrPayloadTooLong = errors.New("payload too long")
)

// Config configures the modem.
type Config struct {
	// Port is the serial device, e.g. /dev/ttyUSB0.
	Port string
	Baud int

	// OTAA credentials as hex strings.
	DevEUI string
	AppEUI string
	AppKey string

	DataRate int
	FPort    uint8

	CommandTimeout time.Duration
	JoinTimeout    time.Duration

	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Baud == 0 {
		c.Baud = DefaultBaud
	}
	if c.DataRate == 0 {
		c.DataRate = DefaultDataRate
	}
	if c.FPort == 0 {
		c.FPort = DefaultFPort
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = DefaultJoinTimeout
	}
}

// Validate checks the OTAA credentials.
func (c *Config) Validate() error {
	for _, k := range []struct {
		name  string
		value string
		size  int
	}{
		{"dev_eui", c.DevEUI, 8},
		{"app_eui", c.AppEUI, 8},
		{"app_key", c.AppKey, 16},
	} {
		b, err := hex.DecodeString(k.value)
		if err != nil || len(b) != k.size {
			return fmt.Errorf("%w: %s must be %d hex bytes", ErrInvalidKey, k.name, k.size)
		}
	}
	if c.DataRate < 0 || c.DataRate > 15 {
		return fmt.Errorf("invalid data rate %d", c.DataRate)
	}
	return nil
}

// Modem is a LoRaWAN end device reached through AT commands. It implements
// transport.Publisher.
type Modem struct {
	cfg    Config
	logger *slog.Logger
	rw     io.ReadWriteCloser

	// cmdMu serializes commands.
	cmdMu sync.Mutex
	lines chan string
	done  chan struct{}

	mu        sync.Mutex
	joined    bool
	closed    bool
	confirmed bool
	topics    map[string]uint16
	nextID    uint16
	handler   transport.Handler
	lost      func(error)
}

var _ transport.Publisher = (*Modem)(nil)

// Open opens the serial port and starts the line reader.
func Open(cfg Config) (*Modem, error) {
	cfg.applyDefaults()
	port, err := serial.OpenPort(&serial.Config{Name: cfg.Port, Baud: cfg.Baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", cfg.Port, err)
	}
	return New(port, cfg), nil
}

// New wraps an already open modem connection and starts the line reader.
func New(rw io.ReadWriteCloser, cfg Config) *Modem {
	cfg.applyDefaults()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Modem{
		cfg:    cfg,
		logger: logger,
		rw:     rw,
		lines:  make(chan string, 16),
		done:   make(chan struct{}),
		topics: make(map[string]uint16),
	}
	go m.readLoop()
	return m
}

// Join configures the OTAA credentials and data rate, then joins the network.
func (m *Modem) Join(ctx context.Context) error {
	if err := m.cfg.Validate(); err != nil {
		return err
	}

	setup := []string{
		"at+set_config=lora:join_mode:0",
		"at+set_config=lora:dev_eui:" + m.cfg.DevEUI,
		"at+set_config=lora:app_eui:" + m.cfg.AppEUI,
		"at+set_config=lora:app_key:" + m.cfg.AppKey,
		"at+set_config=lora:dr:" + strconv.Itoa(m.cfg.DataRate),
		"at+set_config=lora:confirm:0",
	}
	for _, cmd := range setup {
		if _, err := m.command(ctx, cmd, m.cfg.CommandTimeout); err != nil {
			return fmt.Errorf("configure modem: %w", err)
		}
	}

	m.logger.Info("joining LoRaWAN network", "dev_eui", m.cfg.DevEUI, "dr", m.cfg.DataRate)
	resp, err := m.command(ctx, "at+join", m.cfg.JoinTimeout)
	if err != nil {
		return fmt.Errorf("join: %w", err)
	}
	if !strings.Contains(resp, "Join Success") {
		return fmt.Errorf("join: %w: %s", transport.ErrFailed, resp)
	}

	m.mu.Lock()
	m.joined = true
	m.confirmed = false
	m.mu.Unlock()

	m.logger.Info("joined LoRaWAN network")
	return nil
}

// Joined reports whether the modem has joined.
func (m *Modem) Joined() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joined
}

// Register assigns a local identifier to name. LoRaWAN has no topics; every
// uplink goes to the configured FPort.
func (m *Modem) Register(ctx context.Context, name string) (transport.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.usableLocked(); err != nil {
		return transport.Topic{}, err
	}
	id, ok := m.topics[name]
	if !ok {
		m.nextID++
		id = m.nextID
		m.topics[name] = id
	}
	return transport.Topic{Name: name, ID: id}, nil
}

// Publish sends data as one uplink. QoS1 and QoS2 request a confirmed uplink.
func (m *Modem) Publish(ctx context.Context, topic transport.Topic, data []byte, qos transport.QoS) error {
	if len(data) > MaxPayload {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLong, len(data), MaxPayload)
	}

	m.mu.Lock()
	err := m.usableLocked()
	switchConfirm := m.confirmed != (qos > transport.QoS0)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if switchConfirm {
		mode := "0"
		if qos > transport.QoS0 {
			mode = "1"
		}
		if _, err := m.command(ctx, "at+set_config=lora:confirm:"+mode, m.cfg.CommandTimeout); err != nil {
			return fmt.Errorf("set confirm mode: %w", err)
		}
		m.mu.Lock()
		m.confirmed = qos > transport.QoS0
		m.mu.Unlock()
	}

	cmd := fmt.Sprintf("at+send=lora:%d:%s", m.cfg.FPort, strings.ToUpper(hex.EncodeToString(data)))
	if _, err := m.command(ctx, cmd, m.cfg.CommandTimeout); err != nil {
		return fmt.Errorf("send %s: %w", topic.Name, err)
	}
	return nil
}

// OnDownlink sets the handler for downlink messages. The topic name is
// "fport/<n>" and the ID is the port number.
func (m *Modem) OnDownlink(h transport.Handler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// OnConnectionLost sets the callback invoked when the serial link ends.
func (m *Modem) OnConnectionLost(fn func(err error)) {
	m.mu.Lock()
	m.lost = fn
	m.mu.Unlock()
}

// Close closes the serial connection.
func (m *Modem) Close() error {
	m.mu.Lock()
	m.closed = true
	m.joined = false
	m.mu.Unlock()

	err := m.rw.Close()
	select {
	case <-m.done:
	case <-time.After(time.Second):
		// Some serial drivers do not interrupt a blocked read on close.
	}
	return err
}

func (m *Modem) usableLocked() error {
	if m.closed {
		return transport.ErrClosed
	}
	if !m.joined {
		return transport.ErrNoGateway
	}
	return nil
}

// command writes one AT command and waits for its OK or ERROR line.
func (m *Modem) command(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	select {
	case <-m.done:
		return "", transport.ErrClosed
	default:
	}

	// Drop unsolicited output left over from earlier commands.
	for drained := false; !drained; {
		select {
		case <-m.lines:
		default:
			drained = true
		}
	}

	m.logger.Debug("modem command", "cmd", cmd)
	if _, err := io.WriteString(m.rw, cmd+"\r\n"); err != nil {
		return "", fmt.Errorf("%w: write: %v", transport.ErrClosed, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case line := <-m.lines:
			switch {
			case strings.HasPrefix(line, "OK"):
				return line, nil
			case strings.HasPrefix(line, "ERROR"):
				return line, fmt.Errorf("%w: %s", transport.ErrFailed, line)
			default:
				m.logger.Debug("modem output", "line", line)
			}
		case <-timer.C:
			return "", fmt.Errorf("%w: %s", transport.ErrTimeout, cmd)
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %s: %v", transport.ErrTimeout, cmd, ctx.Err())
		case <-m.done:
			return "", transport.ErrClosed
		}
	}
}

func (m *Modem) readLoop() {
	defer close(m.done)

	scanner := bufio.NewScanner(m.rw)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "at+recv=") {
			m.dispatchDownlink(line)
			continue
		}
		select {
		case m.lines <- line:
		default:
			m.logger.Warn("modem output dropped", "line", line)
		}
	}

	m.mu.Lock()
	wasClosed := m.closed
	m.closed = true
	m.joined = false
	fn := m.lost
	m.mu.Unlock()

	if !wasClosed {
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		m.logger.Error("modem connection lost", "error", err)
		if fn != nil {
			fn(fmt.Errorf("%w: %v", transport.ErrClosed, err))
		}
	}
}

// dispatchDownlink handles "at+recv=<port>,<rssi>,<snr>,<len>[:<hex>]".
func (m *Modem) dispatchDownlink(line string) {
	port, payload, err := ParseDownlink(line)
	if err != nil {
		m.logger.Warn("bad downlink", "line", line, "error", err)
		return
	}
	if port == 0 {
		// Port 0 carries MAC commands only.
		return
	}

	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h(transport.Topic{Name: "fport/" + strconv.Itoa(int(port)), ID: uint16(port)}, payload)
	}
}

// ParseDownlink decodes an at+recv= notification.
func ParseDownlink(line string) (uint8, []byte, error) {
	body, ok := strings.CutPrefix(line, "at+recv=")
	if !ok {
		return 0, nil, fmt.Errorf("not a downlink: %q", line)
	}
	meta, data, _ := strings.Cut(body, ":")
	fields := strings.Split(meta, ",")
	if len(fields) != 4 {
		return 0, nil, fmt.Errorf("malformed downlink header %q", meta)
	}
	port, err := strconv.ParseUint(fields[0], 10, 8)
	if err != nil {
		return 0, nil, fmt.Errorf("bad port %q", fields[0])
	}
	size, err := strconv.Atoi(fields[3])
	if err != nil {
		return 0, nil, fmt.Errorf("bad length %q", fields[3])
	}
	payload, err := hex.DecodeString(data)
	if err != nil {
		return 0, nil, fmt.Errorf("bad payload: %w", err)
	}
	if len(payload) != size {
		return 0, nil, fmt.Errorf("length %d, header says %d", len(payload), size)
	}
	return uint8(port), payload, nil
}
