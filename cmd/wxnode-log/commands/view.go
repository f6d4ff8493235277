// Package commands implements the wxnode-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wxnode/wxnode-go/pkg/log"
	"github.com/wxnode/wxnode-go/pkg/sensor"
)

// timeFormat is used for every timestamp the commands print.
const timeFormat = "2006-01-02T15:04:05.000000Z"

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	Topic     string
}

func (f ViewFilter) toFilter() log.Filter {
	return log.Filter{
		Layer:     f.Layer,
		Direction: f.Direction,
		Category:  f.Category,
		Topic:     f.Topic,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [sess:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format(timeFormat)

	fmt.Fprintf(w, "%s [sess:%s] %-5s %s %s\n",
		ts, shortenID(event.SessionID), event.Direction, event.Layer, eventType(event))
	if event.Gateway != "" {
		fmt.Fprintf(w, "  Gateway: %s\n", event.Gateway)
	}

	switch {
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.Reading != nil:
		formatReadingDetails(w, event.Reading)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// eventType returns the label shown in the header and the export type column.
func eventType(event log.Event) string {
	switch {
	case event.Message != nil:
		return event.Message.Op.String()
	case event.Reading != nil:
		return "Reading"
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenID returns the first 8 characters of a session ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	if msg.Topic != "" {
		fmt.Fprintf(w, "  Topic: %s [%d]", msg.Topic, msg.TopicID)
		if msg.Op == log.OpPublish || msg.Op == log.OpSubscribe {
			fmt.Fprintf(w, "  QoS: %d", msg.QoS)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "  Status: %s\n", msg.Status)
	if msg.Size > 0 {
		fmt.Fprintf(w, "  Size: %d bytes\n", msg.Size)
	}
	if len(msg.Payload) > 0 {
		fmt.Fprintf(w, "  Payload: %s", formatPayload(msg.Payload))
		if msg.Truncated {
			fmt.Fprint(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

// formatPayload quotes printable payloads and hex-dumps the rest.
func formatPayload(p []byte) string {
	if utf8.Valid(p) && strings.IndexFunc(string(p), func(r rune) bool {
		return r < 0x20 && r != '\t'
	}) < 0 {
		return strconv.Quote(string(p))
	}
	return fmt.Sprintf("%x", p)
}

func formatReadingDetails(w io.Writer, r *log.ReadingEvent) {
	fmt.Fprintf(w, "  Cycle: %d  ts: %d\n", r.Cycle, r.RecordTS)
	fmt.Fprint(w, "  Values:")
	for i, v := range r.Values {
		id := sensor.ChannelID(i)
		fmt.Fprintf(w, " %s=%.2f%s", id, v, id.Unit())
	}
	fmt.Fprintln(w)
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer)
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseLayerFlag parses a layer string from command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	l, ok := log.ParseLayer(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid layer: %s (must be transport, loop, or agent)", s)
	}
	return l, nil
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	d, ok := log.ParseDirection(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid direction: %s (must be in, out, or local)", s)
	}
	return d, nil
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	c, ok := log.ParseCategory(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid category: %s (must be message, reading, state, or error)", s)
	}
	return c, nil
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.toFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	err = reader.ForEach(func(event log.Event) error {
		formatEvent(output, event)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read event: %w", err)
	}
	return nil
}
