package log

import (
	"errors"
	"time"

	"github.com/wxnode/wxnode-go/pkg/transport"
)

// MaxPayloadCapture is the number of payload bytes kept in a message event.
const MaxPayloadCapture = 256

// Event is one entry in the telemetry event log.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the agent run (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"5,keyasint"`

	// Profile is the deployment profile (mqttsn or lora).
	Profile string `cbor:"6,keyasint,omitempty"`

	// Gateway is the current gateway address, if any.
	Gateway string `cbor:"7,keyasint,omitempty"`

	// DeviceID identifies the producing node.
	DeviceID string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these is set).
	Message     *MessageEvent     `cbor:"10,keyasint,omitempty"`
	Reading     *ReadingEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn is a message received from the uplink.
	DirectionIn Direction = 0
	// DirectionOut is a message sent over the uplink.
	DirectionOut Direction = 1
	// DirectionLocal is an event with no peer.
	DirectionLocal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which part of the agent captured the event.
type Layer uint8

const (
	// LayerTransport is the uplink adapter.
	LayerTransport Layer = 0
	// LayerLoop is the periodic publish loop.
	LayerLoop Layer = 1
	// LayerAgent is the command path.
	LayerAgent Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerLoop:
		return "LOOP"
	case LayerAgent:
		return "AGENT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage is an uplink or downlink message.
	CategoryMessage Category = 0
	// CategoryReading is a simulated reading set.
	CategoryReading Category = 1
	// CategoryState is a state change.
	CategoryState Category = 2
	// CategoryError is a failure.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryReading:
		return "READING"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory parses a category name as printed by String.
func ParseCategory(s string) (Category, bool) {
	for c := CategoryMessage; c <= CategoryError; c++ {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// ParseLayer parses a layer name as printed by String.
func ParseLayer(s string) (Layer, bool) {
	for l := LayerTransport; l <= LayerAgent; l++ {
		if l.String() == s {
			return l, true
		}
	}
	return 0, false
}

// ParseDirection parses a direction name as printed by String.
func ParseDirection(s string) (Direction, bool) {
	for d := DirectionIn; d <= DirectionLocal; d++ {
		if d.String() == s {
			return d, true
		}
	}
	return 0, false
}

// MessageEvent captures one transport operation.
type MessageEvent struct {
	// Op is the operation performed.
	Op MessageOp `cbor:"1,keyasint"`

	// Topic is the topic name.
	Topic string `cbor:"2,keyasint,omitempty"`

	// TopicID is the identifier the transport assigned.
	TopicID uint16 `cbor:"3,keyasint,omitempty"`

	// QoS is the delivery class.
	QoS uint8 `cbor:"4,keyasint,omitempty"`

	// Size is the full payload size in bytes.
	Size int `cbor:"5,keyasint,omitempty"`

	// Payload holds up to MaxPayloadCapture bytes.
	Payload []byte `cbor:"6,keyasint,omitempty"`

	// Truncated indicates Payload was cut.
	Truncated bool `cbor:"7,keyasint,omitempty"`

	// Status is the outcome.
	Status Status `cbor:"8,keyasint"`
}

// SetPayload stores data, truncated to MaxPayloadCapture.
func (m *MessageEvent) SetPayload(data []byte) {
	m.Size = len(data)
	if len(data) > MaxPayloadCapture {
		data = data[:MaxPayloadCapture]
		m.Truncated = true
	}
	m.Payload = append([]byte(nil), data...)
}

// MessageOp is a transport operation.
type MessageOp uint8

const (
	OpPublish     MessageOp = 0
	OpRegister    MessageOp = 1
	OpSubscribe   MessageOp = 2
	OpUnsubscribe MessageOp = 3
	OpDeliver     MessageOp = 4
	OpWillUpdate  MessageOp = 5
)

// String returns the operation name.
func (o MessageOp) String() string {
	switch o {
	case OpPublish:
		return "PUBLISH"
	case OpRegister:
		return "REGISTER"
	case OpSubscribe:
		return "SUBSCRIBE"
	case OpUnsubscribe:
		return "UNSUBSCRIBE"
	case OpDeliver:
		return "DELIVER"
	case OpWillUpdate:
		return "WILL_UPDATE"
	default:
		return "UNKNOWN"
	}
}

// Status is a transport outcome.
type Status uint8

const (
	StatusOK        Status = 0
	StatusNoGateway Status = 1
	StatusTimeout   Status = 2
	StatusFailed    Status = 3
	StatusClosed    Status = 4
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNoGateway:
		return "NO_GATEWAY"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusFailed:
		return "FAILED"
	case StatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// StatusFromError maps a transport error to a Status.
func StatusFromError(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, transport.ErrNoGateway):
		return StatusNoGateway
	case errors.Is(err, transport.ErrTimeout):
		return StatusTimeout
	case errors.Is(err, transport.ErrClosed):
		return StatusClosed
	default:
		return StatusFailed
	}
}

// ReadingEvent captures one simulated reading set.
type ReadingEvent struct {
	// Cycle counts loop iterations from 1.
	Cycle uint64 `cbor:"1,keyasint"`

	// RecordTS is the record timestamp in ms since the epoch.
	RecordTS uint64 `cbor:"2,keyasint"`

	// Values holds one value per channel in channel order.
	Values []float64 `cbor:"3,keyasint"`
}

// StateChangeEvent captures connection, loop and subscription changes.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	StateEntityConnection   StateEntity = 0
	StateEntityLoop         StateEntity = 1
	StateEntitySubscription StateEntity = 2
	StateEntityChannel      StateEntity = 3
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityLoop:
		return "LOOP"
	case StateEntitySubscription:
		return "SUBSCRIPTION"
	case StateEntityChannel:
		return "CHANNEL"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures a failure.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is a modem or broker error code, if any.
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
