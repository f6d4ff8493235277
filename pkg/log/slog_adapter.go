package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes events to an slog.Logger at Debug level, for watching
// the uplink from a console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device", event.DeviceID))
	}
	if event.Gateway != "" {
		attrs = append(attrs, slog.String("gateway", event.Gateway))
	}

	switch {
	case event.Message != nil:
		m := event.Message
		attrs = append(attrs,
			slog.String("op", m.Op.String()),
			slog.String("topic", m.Topic),
			slog.Uint64("topic_id", uint64(m.TopicID)),
			slog.Uint64("qos", uint64(m.QoS)),
			slog.Int("size", m.Size),
			slog.String("status", m.Status.String()),
		)
	case event.Reading != nil:
		attrs = append(attrs,
			slog.Uint64("cycle", event.Reading.Cycle),
			slog.Uint64("ts", event.Reading.RecordTS),
			slog.Any("values", event.Reading.Values),
		)
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "telemetry", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
