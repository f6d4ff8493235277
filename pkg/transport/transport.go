package transport

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
)

// Status errors returned by adapters. A nil error is the OK status.
var (
	// ErrNoGateway means there is no active gateway session.
	ErrNoGateway = errors.New("not connected to any gateway")

	// ErrTimeout means the uplink did not answer in time.
	ErrTimeout = errors.New("transport timeout")

	// ErrFailed is the generic failure status.
	ErrFailed = errors.New("transport failure")

	// ErrClosed means the uplink is gone for good; callers must stop using it.
	ErrClosed = errors.New("transport closed")

	// ErrInvalidAddress means a gateway address could not be parsed.
	ErrInvalidAddress = errors.New("invalid gateway address")
)

// DefaultPort is the gateway port used when none is given.
const DefaultPort uint16 = 1883

// QoS is the delivery class requested for a single message.
type QoS uint8

const (
	QoS0 QoS = 0 // at most once
	QoS1 QoS = 1 // at least once
	QoS2 QoS = 2 // exactly once
)

// ParseQoS maps a delivery-class argument to a QoS level.
// Anything other than "1" or "2" selects QoS0.
func ParseQoS(s string) QoS {
	n, err := strconv.Atoi(s)
	if err != nil {
		return QoS0
	}
	switch n {
	case 1:
		return QoS1
	case 2:
		return QoS2
	default:
		return QoS0
	}
}

// Endpoint is a gateway address.
type Endpoint struct {
	Addr netip.Addr
	Port uint16
}

// ParseEndpoint parses an IP literal and optional port.
// An empty port selects DefaultPort.
func ParseEndpoint(addr, port string) (Endpoint, error) {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
	}
	ep := Endpoint{Addr: ip, Port: DefaultPort}
	if port != "" {
		p, err := strconv.ParseUint(port, 10, 16)
		if err != nil || p == 0 {
			return Endpoint{}, fmt.Errorf("%w: port %s", ErrInvalidAddress, port)
		}
		ep.Port = uint16(p)
	}
	return ep, nil
}

// String formats the endpoint as [addr]:port.
func (e Endpoint) String() string {
	return netip.AddrPortFrom(e.Addr, e.Port).String()
}

// IsValid reports whether the endpoint holds an address.
func (e Endpoint) IsValid() bool {
	return e.Addr.IsValid()
}

// Topic is a registered destination. ID is the short identifier the uplink
// uses on the wire; zero means unregistered.
type Topic struct {
	Name string
	ID   uint16
}

// Will is the message an uplink emits on the agent's behalf when the session
// ends unexpectedly.
type Will struct {
	Topic   string
	Message []byte
	QoS     QoS
}

// Handler receives inbound messages. It runs on the adapter's background
// goroutine and must not block.
type Handler func(topic Topic, payload []byte)

// Publisher is the part of an adapter the publish loop needs.
type Publisher interface {
	// Register resolves a topic name to a wire identifier.
	Register(ctx context.Context, name string) (Topic, error)

	// Publish sends data to a registered topic.
	Publish(ctx context.Context, topic Topic, data []byte, qos QoS) error
}

// Adapter is a full publish/subscribe uplink.
type Adapter interface {
	Publisher

	// Connect opens a session with the gateway.
	Connect(ctx context.Context, ep Endpoint, cleanSession bool, will *Will) error

	// Disconnect closes the session. It returns ErrNoGateway if none is open.
	Disconnect(ctx context.Context) error

	// Subscribe starts delivering messages for name to h.
	Subscribe(ctx context.Context, name string, qos QoS, h Handler) (Topic, error)

	// Unsubscribe stops delivery for name.
	Unsubscribe(ctx context.Context, name string) error

	// UpdateWillTopic changes the last-will topic.
	UpdateWillTopic(ctx context.Context, name string, qos QoS) error

	// UpdateWillMessage changes the last-will payload.
	UpdateWillMessage(ctx context.Context, msg []byte) error

	// OnConnectionLost registers a callback for unexpected session loss.
	OnConnectionLost(fn func(err error))
}
