// Package publish runs the periodic telemetry cycle: step the simulated
// channels, stamp and encode a record, and hand it to the uplink.
//
// A Loop has no normal exit. Run returns when its context is cancelled or when
// the transport reports that it is closed for good; every other failure is
// logged and the next cycle proceeds on schedule.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wxnode/wxnode-go/pkg/log"
	"github.com/wxnode/wxnode-go/pkg/metrics"
	"github.com/wxnode/wxnode-go/pkg/record"
	"github.com/wxnode/wxnode-go/pkg/sensor"
	"github.com/wxnode/wxnode-go/pkg/transport"
)

// Loop errors.
var (
	ErrNoTopic         = errors.New("publish topic is empty")
	ErrInvalidInterval = errors.New("publish interval must be positive")
)

// Config configures a loop.
type Config struct {
	Topic    string
	QoS      transport.QoS
	Interval time.Duration
}

// Stats summarizes a loop's progress.
type Stats struct {
	Cycles    uint64
	Published uint64
	Failed    uint64
	LastError error
	LastTS    uint64
}

// Loop drives one publishing cycle per interval.
type Loop struct {
	cfg     Config
	pub     transport.Publisher
	sim     *sensor.Simulator
	enc     *record.Encoder
	now     func() time.Time
	logger  *slog.Logger
	events  *log.Session
	metrics *metrics.Metrics

	// Owned by the goroutine running the loop.
	topic    transport.Topic
	resolved bool

	mu    sync.Mutex
	stats Stats
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces the wall clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithEvents sets the telemetry event log session.
func WithEvents(s *log.Session) Option {
	return func(l *Loop) { l.events = s }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// New creates a loop publishing the simulator's readings through pub.
func New(pub transport.Publisher, sim *sensor.Simulator, enc *record.Encoder, cfg Config, opts ...Option) (*Loop, error) {
	if cfg.Topic == "" {
		return nil, ErrNoTopic
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, cfg.Interval)
	}

	l := &Loop{
		cfg:    cfg,
		pub:    pub,
		sim:    sim,
		enc:    enc,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.events == nil {
		l.events = log.NewSession(nil, enc.Device(), "")
	}
	return l, nil
}

// Config returns the loop configuration.
func (l *Loop) Config() Config {
	return l.cfg
}

// Stats returns a snapshot of the loop's counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Run initializes every channel, then publishes one record per interval until
// ctx is done or the transport is closed. It returns ctx.Err() on
// cancellation and an error wrapping transport.ErrClosed otherwise.
func (l *Loop) Run(ctx context.Context) error {
	initial := l.sim.Init()
	l.logger.Info("publish loop started",
		"topic", l.cfg.Topic, "qos", l.cfg.QoS, "interval", l.cfg.Interval, "initial", initial.String())

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := l.Cycle(ctx); err != nil {
			if errors.Is(err, transport.ErrClosed) {
				l.logger.Error("publish loop stopped: transport closed", "error", err)
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn("publish failed", "topic", l.cfg.Topic, "error", err)
		}

		select {
		case <-ctx.Done():
			l.logger.Info("publish loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle performs one iteration without waiting: step, stamp, encode, resolve
// the topic if needed and publish. The returned error is the publish outcome.
func (l *Loop) Cycle(ctx context.Context) error {
	values := l.sim.Step()
	ts := l.timestamp()
	rs := l.enc.Reading(ts, values)
	data := l.enc.Encode(rs)

	l.mu.Lock()
	l.stats.Cycles++
	cycle := l.stats.Cycles
	l.mu.Unlock()

	l.events.Log(log.Event{
		Direction: log.DirectionLocal,
		Layer:     log.LayerLoop,
		Category:  log.CategoryReading,
		Reading:   &log.ReadingEvent{Cycle: cycle, RecordTS: ts, Values: values[:]},
	})
	l.metrics.ObserveCycle(values, len(data))

	err := l.publish(ctx, data)
	l.record(err)
	return err
}

func (l *Loop) publish(ctx context.Context, data []byte) error {
	if !l.resolved {
		topic, err := l.pub.Register(ctx, l.cfg.Topic)
		l.events.Message(log.DirectionOut, log.LayerLoop, "", log.MessageEvent{
			Op:      log.OpRegister,
			Topic:   l.cfg.Topic,
			TopicID: topic.ID,
			Status:  log.StatusFromError(err),
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", l.cfg.Topic, err)
		}
		l.topic = topic
		l.resolved = true
	}

	start := time.Now()
	err := l.pub.Publish(ctx, l.topic, data, l.cfg.QoS)
	status := log.StatusFromError(err)

	msg := log.MessageEvent{
		Op:      log.OpPublish,
		Topic:   l.topic.Name,
		TopicID: l.topic.ID,
		QoS:     uint8(l.cfg.QoS),
		Status:  status,
	}
	msg.SetPayload(data)
	l.events.Message(log.DirectionOut, log.LayerLoop, "", msg)
	l.metrics.ObservePublish("loop", status.String(), time.Since(start))

	if err != nil {
		if errors.Is(err, transport.ErrNoGateway) {
			// The topic identifier belongs to the lost session.
			l.resolved = false
		}
		return fmt.Errorf("publish to %s [%d]: %w", l.topic.Name, l.topic.ID, err)
	}
	return nil
}

// timestamp returns the record time in ms, never earlier than the previous one.
func (l *Loop) timestamp() uint64 {
	ms := l.now().UnixMilli()
	if ms < 0 {
		ms = 0
	}
	ts := uint64(ms)

	l.mu.Lock()
	defer l.mu.Unlock()
	if ts < l.stats.LastTS {
		ts = l.stats.LastTS
	}
	l.stats.LastTS = ts
	return ts
}

func (l *Loop) record(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		l.stats.Failed++
		l.stats.LastError = err
		return
	}
	l.stats.Published++
	l.stats.LastError = nil
}
