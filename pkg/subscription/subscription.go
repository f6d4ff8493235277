package subscription

import (
	"errors"

	"github.com/wxnode/wxnode-go/pkg/transport"
)

// Limits.
const (
	// DefaultCapacity is the number of subscription slots.
	DefaultCapacity = 16

	// MaxTopicLen is the longest topic name, in bytes.
	MaxTopicLen = 64
)

// Subscription errors.
var (
	ErrTopicTooLong      = errors.New("topic name too long")
	ErrEmptyTopic        = errors.New("empty topic name")
	ErrTableFull         = errors.New("no free subscription slot")
	ErrNotFound          = errors.New("no subscription for topic")
	ErrAlreadySubscribed = errors.New("already subscribed to topic")
	ErrInvalidCapacity   = errors.New("invalid subscription capacity")
)

// Subscription is one occupied slot.
type Subscription struct {
	// Topic is the subscribed name and the identifier the transport assigned.
	Topic transport.Topic

	// QoS is the requested delivery class.
	QoS transport.QoS

	// Handler receives messages for Topic.
	Handler transport.Handler
}

// ValidateTopic checks a topic name against the table's limits.
func ValidateTopic(name string) error {
	if name == "" {
		return ErrEmptyTopic
	}
	if len(name) > MaxTopicLen {
		return ErrTopicTooLong
	}
	return nil
}
