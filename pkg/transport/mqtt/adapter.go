// Package mqtt implements transport.Adapter on top of the Eclipse Paho MQTT
// client.
//
// Topic registration is local: the first time a topic name is registered or
// subscribed it is assigned the next free short identifier, and the identifier
// stays stable for the lifetime of the session. A new session starts over.
//
// MQTT fixes the last will at connect time, so UpdateWillTopic and
// UpdateWillMessage record the new will and it takes effect on the next
// Connect that does not supply its own.
//
// With AutoReconnect, paho restores a lost connection by itself. Sessions are
// clean, so the adapter re-subscribes every active subscription once the
// broker accepts the reconnect. If that fails the session is dropped and the
// connection-lost callback fires.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/wxnode/wxnode-go/pkg/transport"
)

// Default timings.
const (
	DefaultKeepAlive        = 30 * time.Second
	DefaultConnectTimeout   = 10 * time.Second
	DefaultOperationTimeout = 5 * time.Second

	// disconnectQuiesce is how long paho may spend flushing on disconnect, in ms.
	disconnectQuiesce = 250
)

// Config configures the adapter.
type Config struct {
	// ClientID is sent to the broker. Usually the device identifier.
	ClientID string

	KeepAlive        time.Duration
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration

	// AutoReconnect lets paho re-establish a lost session on its own.
	AutoReconnect bool

	Logger *slog.Logger
}

// Adapter is a paho-backed transport.Adapter.
type Adapter struct {
	cfg       Config
	logger    *slog.Logger
	newClient func(*paho.ClientOptions) paho.Client

	mu       sync.Mutex
	client   paho.Client
	endpoint transport.Endpoint
	topics   map[string]uint16
	nextID   uint16
	will     *transport.Will
	lost     func(error)
	subs     map[string]activeSub
}

// activeSub is what the adapter needs to subscribe again after a reconnect.
type activeSub struct {
	qos byte
	cb  paho.MessageHandler
}

var _ transport.Adapter = (*Adapter)(nil)

// New creates an adapter. No connection is made until Connect.
func New(cfg Config) *Adapter {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = DefaultOperationTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		cfg:       cfg,
		logger:    logger,
		newClient: paho.NewClient,
		topics:    make(map[string]uint16),
		subs:      make(map[string]activeSub),
	}
}

// BrokerURL returns the paho broker URL for an endpoint.
func BrokerURL(ep transport.Endpoint) string {
	return "tcp://" + ep.String()
}

// Connect opens a session with the broker at ep. A nil will falls back to the
// one recorded by UpdateWillTopic/UpdateWillMessage, if any.
func (a *Adapter) Connect(ctx context.Context, ep transport.Endpoint, cleanSession bool, will *transport.Will) error {
	a.mu.Lock()
	if a.client != nil {
		a.mu.Unlock()
		return fmt.Errorf("%w: already connected to %s", transport.ErrFailed, a.endpoint)
	}
	if will != nil {
		w := *will
		a.will = &w
	}
	will = a.will
	a.mu.Unlock()

	opts := paho.NewClientOptions().
		AddBroker(BrokerURL(ep)).
		SetClientID(a.cfg.ClientID).
		SetCleanSession(cleanSession).
		SetKeepAlive(a.cfg.KeepAlive).
		SetConnectTimeout(a.cfg.ConnectTimeout).
		SetAutoReconnect(a.cfg.AutoReconnect).
		SetConnectionLostHandler(a.onConnectionLost).
		SetOnConnectHandler(a.onConnect)
	if will != nil && will.Topic != "" {
		opts.SetBinaryWill(will.Topic, will.Message, byte(will.QoS), false)
	}

	client := a.newClient(opts)
	if err := a.wait(ctx, client.Connect(), a.cfg.ConnectTimeout); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("connect %s: %w", ep, err)
	}

	a.mu.Lock()
	a.client = client
	a.endpoint = ep
	a.topics = make(map[string]uint16)
	a.nextID = 0
	a.subs = make(map[string]activeSub)
	a.mu.Unlock()

	a.logger.Info("connected to broker", "endpoint", ep.String(), "clean", cleanSession)
	return nil
}

// Disconnect closes the session.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	client := a.client
	a.client = nil
	a.subs = make(map[string]activeSub)
	a.mu.Unlock()

	if client == nil {
		return transport.ErrNoGateway
	}
	client.Disconnect(disconnectQuiesce)
	a.logger.Info("disconnected from broker")
	return nil
}

// Register assigns a topic identifier to name.
func (a *Adapter) Register(ctx context.Context, name string) (transport.Topic, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client == nil {
		return transport.Topic{}, transport.ErrNoGateway
	}
	return transport.Topic{Name: name, ID: a.topicIDLocked(name)}, nil
}

// Publish sends data to topic.
func (a *Adapter) Publish(ctx context.Context, topic transport.Topic, data []byte, qos transport.QoS) error {
	client, err := a.connected()
	if err != nil {
		return err
	}
	if err := a.wait(ctx, client.Publish(topic.Name, byte(qos), false, data), a.cfg.OperationTimeout); err != nil {
		return fmt.Errorf("publish %s: %w", topic.Name, err)
	}
	return nil
}

// Subscribe starts delivering messages on name to h.
func (a *Adapter) Subscribe(ctx context.Context, name string, qos transport.QoS, h transport.Handler) (transport.Topic, error) {
	client, err := a.connected()
	if err != nil {
		return transport.Topic{}, err
	}

	a.mu.Lock()
	topic := transport.Topic{Name: name, ID: a.topicIDLocked(name)}
	a.mu.Unlock()

	cb := func(_ paho.Client, m paho.Message) {
		h(a.inboundTopic(m.Topic()), m.Payload())
	}
	if err := a.wait(ctx, client.Subscribe(name, byte(qos), cb), a.cfg.OperationTimeout); err != nil {
		return transport.Topic{}, fmt.Errorf("subscribe %s: %w", name, err)
	}

	a.mu.Lock()
	a.subs[name] = activeSub{qos: byte(qos), cb: cb}
	a.mu.Unlock()
	return topic, nil
}

// Unsubscribe stops delivery on name.
func (a *Adapter) Unsubscribe(ctx context.Context, name string) error {
	client, err := a.connected()
	if err != nil {
		return err
	}
	if err := a.wait(ctx, client.Unsubscribe(name), a.cfg.OperationTimeout); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", name, err)
	}

	a.mu.Lock()
	delete(a.subs, name)
	a.mu.Unlock()
	return nil
}

// UpdateWillTopic records a new will topic for the next connect.
func (a *Adapter) UpdateWillTopic(ctx context.Context, name string, qos transport.QoS) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.will == nil {
		a.will = &transport.Will{}
	}
	a.will.Topic = name
	a.will.QoS = qos
	return nil
}

// UpdateWillMessage records a new will payload for the next connect.
func (a *Adapter) UpdateWillMessage(ctx context.Context, msg []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.will == nil {
		a.will = &transport.Will{}
	}
	a.will.Message = append([]byte(nil), msg...)
	return nil
}

// Will returns a copy of the will that the next Connect will use.
func (a *Adapter) Will() *transport.Will {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.will == nil {
		return nil
	}
	w := *a.will
	return &w
}

// OnConnectionLost sets the callback for unexpected session loss.
func (a *Adapter) OnConnectionLost(fn func(err error)) {
	a.mu.Lock()
	a.lost = fn
	a.mu.Unlock()
}

func (a *Adapter) onConnectionLost(c paho.Client, err error) {
	a.mu.Lock()
	if a.cfg.AutoReconnect {
		// paho keeps the client and reconnects by itself.
		a.mu.Unlock()
		a.logger.Warn("broker connection lost, reconnecting", "error", err)
		return
	}
	a.client = nil
	a.subs = make(map[string]activeSub)
	fn := a.lost
	a.mu.Unlock()

	a.logger.Warn("broker connection lost", "error", err)
	if fn != nil {
		fn(err)
	}
}

// onConnect runs for the first connect and for every automatic reconnect.
// Nothing is subscribed at the first connect, so only reconnects restore.
func (a *Adapter) onConnect(c paho.Client) {
	a.mu.Lock()
	if a.client != c || len(a.subs) == 0 {
		a.mu.Unlock()
		return
	}
	subs := maps.Clone(a.subs)
	a.mu.Unlock()

	a.logger.Info("broker reconnected, restoring subscriptions", "count", len(subs))
	for name, s := range subs {
		if err := a.wait(context.Background(), c.Subscribe(name, s.qos, s.cb), a.cfg.OperationTimeout); err != nil {
			a.dropSession(c, fmt.Errorf("resubscribe %s: %w", name, err))
			return
		}
	}
}

// dropSession ends the session on c and reports it as lost.
func (a *Adapter) dropSession(c paho.Client, err error) {
	a.mu.Lock()
	if a.client != c {
		a.mu.Unlock()
		return
	}
	a.client = nil
	a.subs = make(map[string]activeSub)
	fn := a.lost
	a.mu.Unlock()

	c.Disconnect(0)
	a.logger.Error("broker session dropped", "error", err)
	if fn != nil {
		fn(err)
	}
}

func (a *Adapter) connected() (paho.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client == nil {
		return nil, transport.ErrNoGateway
	}
	return a.client, nil
}

func (a *Adapter) topicIDLocked(name string) uint16 {
	if id, ok := a.topics[name]; ok {
		return id
	}
	a.nextID++
	a.topics[name] = a.nextID
	return a.nextID
}

// inboundTopic resolves the identifier of an inbound topic. Wildcard
// subscriptions deliver concrete names that were never registered; those
// report ID 0.
func (a *Adapter) inboundTopic(name string) transport.Topic {
	a.mu.Lock()
	defer a.mu.Unlock()
	return transport.Topic{Name: name, ID: a.topics[name]}
}

// wait blocks until tok completes, the timeout elapses or ctx ends,
// whichever is first.
func (a *Adapter) wait(ctx context.Context, tok paho.Token, timeout time.Duration) error {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if err := ctx.Err(); err != nil || timeout <= 0 {
		return transport.ErrTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return transport.ErrTimeout
	case <-timer.C:
		return transport.ErrTimeout
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrFailed, err)
	}
	return nil
}
