package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/wxnode/wxnode-go/pkg/log"
)

func TestStatsCounts(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: base, SessionID: "sess-a", DeviceID: "device1", Profile: "mqttsn",
			Layer: log.LayerLoop, Category: log.CategoryReading, Direction: log.DirectionLocal,
			Reading: &log.ReadingEvent{Cycle: 1}},
		{Timestamp: base.Add(time.Second), SessionID: "sess-a",
			Layer: log.LayerLoop, Category: log.CategoryMessage, Direction: log.DirectionOut,
			Message: &log.MessageEvent{Op: log.OpPublish, Topic: "weather", Status: log.StatusOK}},
		{Timestamp: base.Add(2 * time.Second), SessionID: "sess-a",
			Layer: log.LayerLoop, Category: log.CategoryMessage, Direction: log.DirectionOut,
			Message: &log.MessageEvent{Op: log.OpPublish, Topic: "weather", Status: log.StatusNoGateway}},
		{Timestamp: base.Add(time.Minute), SessionID: "sess-b", DeviceID: "device2", Profile: "lora",
			Layer: log.LayerTransport, Category: log.CategoryError, Direction: log.DirectionLocal,
			Error: &log.ErrorEventData{Message: "join failed"}},
	}
	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Total Events: 4",
		"Duration:   1m0s",
		"LOOP:        3",
		"READING:     1",
		"OUT:         2",
		"OK:          1",
		"NO_GATEWAY:  1",
		"weather              2",
		"Sessions: 2",
		"Device: device1 (mqttsn)",
		"Readings: 1, published: 1, failed: 1",
		"Device: device2 (lora)",
		"Errors: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}

	// Sessions are listed by first appearance.
	if strings.Index(output, "[sess-a]") > strings.Index(output, "[sess-b]") {
		t.Errorf("sessions out of order:\n%s", output)
	}
}

func TestStatsEmptyLog(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Time Range") {
		t.Errorf("empty log should not report a time range:\n%s", buf.String())
	}
}
