// Package agent owns the telemetry node's shared state: the gateway
// connection, the subscription table, the last will and the publish loop.
//
// Every mutation of that state goes through an Agent method. The shell calls
// them on the command path; the transport reaches the agent only through the
// inbound handler and the connection-lost callback.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/wxnode/wxnode-go/pkg/log"
	"github.com/wxnode/wxnode-go/pkg/metrics"
	"github.com/wxnode/wxnode-go/pkg/persistence"
	"github.com/wxnode/wxnode-go/pkg/publish"
	"github.com/wxnode/wxnode-go/pkg/record"
	"github.com/wxnode/wxnode-go/pkg/sensor"
	"github.com/wxnode/wxnode-go/pkg/subscription"
	"github.com/wxnode/wxnode-go/pkg/transport"
)

// Agent errors.
var (
	ErrAlreadyConnected  = errors.New("already connected to a broker")
	ErrNotConnected      = errors.New("not connected to any broker")
	ErrLoopRunning       = errors.New("publish loop already running")
	ErrLoopNotRunning    = errors.New("publish loop not running")
	ErrUnsubscribeFailed = errors.New("unsubscription failed")
)

// State is the gateway connection state.
type State int

const (
	Disconnected State = iota
	Connected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Config configures an Agent.
type Config struct {
	// Interval is the publish loop period.
	Interval time.Duration

	// Output receives inbound publications. Defaults to io.Discard.
	Output io.Writer

	Logger  *slog.Logger
	Events  *log.Session
	Metrics *metrics.Metrics

	// Store, if set, receives the agent state after every change.
	Store *persistence.StateStore

	// Clock stamps records. Defaults to time.Now.
	Clock func() time.Time
}

// Agent is the single owner of the node's mutable state.
type Agent struct {
	tr   transport.Adapter
	sim  *sensor.Simulator
	enc  *record.Encoder
	subs *subscription.Table
	cfg  Config

	outMu sync.Mutex

	mu       sync.Mutex
	state    State
	gateway  transport.Endpoint
	will     *transport.Will
	loop     *publish.Loop
	loopStop context.CancelFunc
	loopDone chan struct{}
	loopErr  error
}

// New creates an agent and registers for connection-loss notifications.
func New(tr transport.Adapter, sim *sensor.Simulator, enc *record.Encoder, cfg Config) *Agent {
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Events == nil {
		cfg.Events = log.NewSession(nil, enc.Device(), "")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}

	a := &Agent{
		tr:   tr,
		sim:  sim,
		enc:  enc,
		subs: subscription.NewTable(),
		cfg:  cfg,
	}
	tr.OnConnectionLost(a.connectionLost)
	return a
}

// SetOutput redirects inbound publication output.
func (a *Agent) SetOutput(w io.Writer) {
	a.outMu.Lock()
	a.cfg.Output = w
	a.outMu.Unlock()
}

// Connect opens a clean session with the gateway at ep. A nil will uses the
// one last set with SetWill, if any.
func (a *Agent) Connect(ctx context.Context, ep transport.Endpoint, will *transport.Will) error {
	a.mu.Lock()
	if a.state == Connected {
		gw := a.gateway
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, gw)
	}
	if will != nil {
		w := *will
		a.will = &w
	}
	will = a.will
	a.mu.Unlock()

	if err := a.tr.Connect(ctx, ep, true, will); err != nil {
		a.cfg.Events.Failure(log.LayerAgent, ep.String(), "connect", err)
		return err
	}

	a.mu.Lock()
	a.state = Connected
	a.gateway = ep
	a.mu.Unlock()

	a.cfg.Logger.Info("connected", "gateway", ep.String())
	a.cfg.Events.State(log.LayerAgent, ep.String(), log.StateChangeEvent{
		Entity:   log.StateEntityConnection,
		OldState: Disconnected.String(),
		NewState: Connected.String(),
	})
	a.cfg.Metrics.SetConnected(true)
	a.persist()
	return nil
}

// Disconnect closes the gateway session and clears the subscription table.
func (a *Agent) Disconnect(ctx context.Context) error {
	return a.disconnect(ctx, true)
}

func (a *Agent) disconnect(ctx context.Context, save bool) error {
	a.mu.Lock()
	if a.state != Connected {
		a.mu.Unlock()
		return ErrNotConnected
	}
	gw := a.gateway
	a.state = Disconnected
	a.gateway = transport.Endpoint{}
	a.mu.Unlock()

	err := a.tr.Disconnect(ctx)
	a.subs.Clear()

	a.cfg.Logger.Info("disconnected", "gateway", gw.String())
	a.cfg.Events.State(log.LayerAgent, gw.String(), log.StateChangeEvent{
		Entity:   log.StateEntityConnection,
		OldState: Connected.String(),
		NewState: Disconnected.String(),
		Reason:   "disconnect",
	})
	a.cfg.Metrics.SetConnected(false)
	a.cfg.Metrics.SetSubscriptions(0)
	if save {
		a.persist()
	}

	if err != nil && !errors.Is(err, transport.ErrNoGateway) {
		return err
	}
	return nil
}

func (a *Agent) connectionLost(err error) {
	a.mu.Lock()
	if a.state != Connected {
		a.mu.Unlock()
		return
	}
	gw := a.gateway
	a.state = Disconnected
	a.gateway = transport.Endpoint{}
	a.mu.Unlock()

	a.subs.Clear()
	a.cfg.Logger.Warn("gateway connection lost", "gateway", gw.String(), "error", err)
	a.cfg.Events.State(log.LayerTransport, gw.String(), log.StateChangeEvent{
		Entity:   log.StateEntityConnection,
		OldState: Connected.String(),
		NewState: Disconnected.String(),
		Reason:   err.Error(),
	})
	a.cfg.Metrics.SetConnected(false)
	a.cfg.Metrics.SetSubscriptions(0)
}

// PublishOnce registers topic and publishes data to it.
func (a *Agent) PublishOnce(ctx context.Context, name string, data []byte, qos transport.QoS) (transport.Topic, error) {
	gw := a.gatewayString()

	topic, err := a.tr.Register(ctx, name)
	a.cfg.Events.Message(log.DirectionOut, log.LayerAgent, gw, log.MessageEvent{
		Op: log.OpRegister, Topic: name, TopicID: topic.ID, Status: log.StatusFromError(err),
	})
	if err != nil {
		return transport.Topic{}, fmt.Errorf("unable to obtain topic ID: %w", err)
	}

	start := time.Now()
	err = a.tr.Publish(ctx, topic, data, qos)
	status := log.StatusFromError(err)
	msg := log.MessageEvent{Op: log.OpPublish, Topic: topic.Name, TopicID: topic.ID, QoS: uint8(qos), Status: status}
	msg.SetPayload(data)
	a.cfg.Events.Message(log.DirectionOut, log.LayerAgent, gw, msg)
	a.cfg.Metrics.ObservePublish("shell", status.String(), time.Since(start))

	if err != nil {
		return topic, fmt.Errorf("unable to publish data to topic '%s [%d]': %w", topic.Name, topic.ID, err)
	}
	return topic, nil
}

// StartLoop starts the publish loop in the background.
func (a *Agent) StartLoop(name string, qos transport.QoS) error {
	a.mu.Lock()
	if a.loop != nil {
		running := a.loop.Config().Topic
		a.mu.Unlock()
		return fmt.Errorf("%w on '%s'", ErrLoopRunning, running)
	}

	l, err := publish.New(a.tr, a.sim, a.enc,
		publish.Config{Topic: name, QoS: qos, Interval: a.cfg.Interval},
		publish.WithClock(a.cfg.Clock),
		publish.WithLogger(a.cfg.Logger),
		publish.WithEvents(a.cfg.Events),
		publish.WithMetrics(a.cfg.Metrics),
	)
	if err != nil {
		a.mu.Unlock()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.loop = l
	a.loopStop = cancel
	a.loopDone = done
	a.loopErr = nil

	gw := ""
	if a.state == Connected {
		gw = a.gateway.String()
	}
	a.mu.Unlock()

	a.cfg.Events.State(log.LayerAgent, gw, log.StateChangeEvent{
		Entity: log.StateEntityLoop, OldState: "IDLE", NewState: "RUNNING", Reason: name,
	})
	a.cfg.Metrics.SetLoopRunning(true)
	a.persist()

	go func() {
		defer close(done)
		err := l.Run(ctx)
		a.loopExited(l, err)
	}()
	return nil
}

func (a *Agent) loopExited(l *publish.Loop, err error) {
	reason := "stopped"
	if err != nil && !errors.Is(err, context.Canceled) {
		reason = err.Error()
		a.cfg.Logger.Error("publish loop exited", "error", err)
	}

	a.mu.Lock()
	if a.loop == l {
		a.loop = nil
		a.loopStop = nil
		if !errors.Is(err, context.Canceled) {
			a.loopErr = err
		}
	}
	a.mu.Unlock()

	a.cfg.Events.State(log.LayerLoop, "", log.StateChangeEvent{
		Entity: log.StateEntityLoop, OldState: "RUNNING", NewState: "IDLE", Reason: reason,
	})
	a.cfg.Metrics.SetLoopRunning(false)
}

// StopLoop cancels the publish loop and waits for it to exit.
func (a *Agent) StopLoop() error {
	return a.stopLoop(true)
}

func (a *Agent) stopLoop(save bool) error {
	a.mu.Lock()
	stop, done := a.loopStop, a.loopDone
	a.mu.Unlock()

	if stop == nil {
		return ErrLoopNotRunning
	}
	stop()
	<-done
	if save {
		a.persist()
	}
	return nil
}

// Subscribe subscribes to name and records it in the first free slot.
// The slot is claimed before the transport call and released if it fails.
func (a *Agent) Subscribe(ctx context.Context, name string, qos transport.QoS) (transport.Topic, error) {
	slot, err := a.subs.Reserve(name, qos)
	if err != nil {
		return transport.Topic{}, err
	}

	topic, err := a.tr.Subscribe(ctx, name, qos, a.dispatch)
	a.cfg.Events.Message(log.DirectionOut, log.LayerAgent, a.gatewayString(), log.MessageEvent{
		Op: log.OpSubscribe, Topic: name, TopicID: topic.ID, QoS: uint8(qos), Status: log.StatusFromError(err),
	})
	if err != nil {
		a.subs.Release(slot)
		return transport.Topic{}, fmt.Errorf("unable to subscribe to %s: %w", name, err)
	}
	a.subs.Complete(slot, topic, a.printInbound)

	a.cfg.Metrics.SetSubscriptions(a.subs.Active())
	a.persist()
	return topic, nil
}

// Unsubscribe removes the subscription for name. If the transport refuses,
// the slot stays occupied.
func (a *Agent) Unsubscribe(ctx context.Context, name string) error {
	if _, ok := a.subs.Lookup(name); !ok {
		return fmt.Errorf("%w: '%s'", subscription.ErrNotFound, name)
	}

	err := a.tr.Unsubscribe(ctx, name)
	a.cfg.Events.Message(log.DirectionOut, log.LayerAgent, a.gatewayString(), log.MessageEvent{
		Op: log.OpUnsubscribe, Topic: name, Status: log.StatusFromError(err),
	})
	if err != nil {
		return fmt.Errorf("%w: Unsubscription from '%s' failed: %v", ErrUnsubscribeFailed, name, err)
	}

	a.subs.Remove(name)
	a.cfg.Metrics.SetSubscriptions(a.subs.Active())
	a.persist()
	return nil
}

// Subscriptions returns the active subscriptions in slot order.
func (a *Agent) Subscriptions() []subscription.Subscription {
	return a.subs.List()
}

// SetWill updates the last will topic and message.
func (a *Agent) SetWill(ctx context.Context, topic string, msg []byte) error {
	gw := a.gatewayString()

	err := a.tr.UpdateWillTopic(ctx, topic, transport.QoS0)
	a.cfg.Events.Message(log.DirectionOut, log.LayerAgent, gw, log.MessageEvent{
		Op: log.OpWillUpdate, Topic: topic, Status: log.StatusFromError(err),
	})
	if err != nil {
		return fmt.Errorf("unable to update the last will topic: %w", err)
	}

	err = a.tr.UpdateWillMessage(ctx, msg)
	wm := log.MessageEvent{Op: log.OpWillUpdate, Topic: topic, Status: log.StatusFromError(err)}
	wm.SetPayload(msg)
	a.cfg.Events.Message(log.DirectionOut, log.LayerAgent, gw, wm)
	if err != nil {
		return fmt.Errorf("unable to update the last will message: %w", err)
	}

	a.mu.Lock()
	a.will = &transport.Will{Topic: topic, Message: append([]byte(nil), msg...), QoS: transport.QoS0}
	a.mu.Unlock()
	a.persist()
	return nil
}

// SetChannel overrides a simulated channel. The value is clamped to the
// channel's range; the stored value is returned.
func (a *Agent) SetChannel(name string, v float64) (sensor.ChannelID, float64, error) {
	id, err := sensor.ParseChannel(name)
	if err != nil {
		return 0, 0, err
	}
	stored, err := a.sim.Set(id, v)
	if err != nil {
		return 0, 0, err
	}
	a.cfg.Events.State(log.LayerAgent, "", log.StateChangeEvent{
		Entity:   log.StateEntityChannel,
		NewState: fmt.Sprintf("%s=%.2f", id, stored),
		Reason:   "set",
	})
	return id, stored, nil
}

// Close stops the loop and closes the gateway session. The persisted state
// keeps what was active before Close so a restarted agent can restore it.
func (a *Agent) Close(ctx context.Context) error {
	if err := a.stopLoop(false); err != nil && !errors.Is(err, ErrLoopNotRunning) {
		return err
	}
	if err := a.disconnect(ctx, false); err != nil && !errors.Is(err, ErrNotConnected) {
		return err
	}
	return nil
}

func (a *Agent) gatewayString() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Connected {
		return ""
	}
	return a.gateway.String()
}
