package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/wxnode/wxnode-go/pkg/log"
)

func TestFormatPublishEvent(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 15, 32, 123456000, time.UTC)
	msg := log.MessageEvent{
		Op:      log.OpPublish,
		Topic:   "weather",
		TopicID: 3,
		QoS:     1,
		Status:  log.StatusOK,
	}
	msg.SetPayload([]byte("device1,1772446532123,temperature:21.50"))
	event := log.Event{
		Timestamp: ts,
		SessionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction: log.DirectionOut,
		Layer:     log.LayerLoop,
		Category:  log.CategoryMessage,
		Gateway:   "[fec0:affe::1]:1883",
		Message:   &msg,
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"2026-03-02T10:15:32.123456Z",
		"[sess:abc12345]",
		"OUT",
		"LOOP PUBLISH",
		"Gateway: [fec0:affe::1]:1883",
		"Topic: weather [3]  QoS: 1",
		"Status: OK",
		`Payload: "device1,1772446532123,temperature:21.50"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestFormatBinaryPayload(t *testing.T) {
	msg := &log.MessageEvent{Op: log.OpDeliver, Topic: "cmd", Payload: []byte{0x01, 0xff}, Truncated: true}

	var buf bytes.Buffer
	formatMessageDetails(&buf, msg)

	if !strings.Contains(buf.String(), "Payload: 01ff (truncated)") {
		t.Errorf("expected hex payload, got: %s", buf.String())
	}
}

func TestFormatReadingEvent(t *testing.T) {
	event := log.Event{
		Layer:    log.LayerLoop,
		Category: log.CategoryReading,
		Reading:  &log.ReadingEvent{Cycle: 7, RecordTS: 1000, Values: []float64{21.5, 40}},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "Reading") {
		t.Errorf("expected Reading label, got: %s", output)
	}
	if !strings.Contains(output, "Cycle: 7  ts: 1000") {
		t.Errorf("expected cycle line, got: %s", output)
	}
	if !strings.Contains(output, "temperature=21.50") {
		t.Errorf("expected channel values, got: %s", output)
	}
}

func TestFormatStateChangeEvent(t *testing.T) {
	event := log.Event{
		Direction: log.DirectionLocal,
		Layer:     log.LayerAgent,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: "CONNECTED",
			NewState: "DISCONNECTED",
			Reason:   "connection lost",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "Entity: CONNECTION") {
		t.Errorf("expected entity, got: %s", output)
	}
	if !strings.Contains(output, "CONNECTED -> DISCONNECTED") {
		t.Errorf("expected transition, got: %s", output)
	}
	if !strings.Contains(output, "Reason: connection lost") {
		t.Errorf("expected reason, got: %s", output)
	}
}

func TestFormatErrorEvent(t *testing.T) {
	code := -3
	event := log.Event{
		Layer:    log.LayerTransport,
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: "send failed",
			Code:    &code,
			Context: "uplink",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{"Error", "Message: send failed", "Code: -3", "Context: uplink"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("loop"); err != nil || l != log.LayerLoop {
		t.Errorf("ParseLayerFlag(loop) = %v, %v", l, err)
	}
	if d, err := ParseDirectionFlag("Local"); err != nil || d != log.DirectionLocal {
		t.Errorf("ParseDirectionFlag(Local) = %v, %v", d, err)
	}
	if c, err := ParseCategoryFlag("READING"); err != nil || c != log.CategoryReading {
		t.Errorf("ParseCategoryFlag(READING) = %v, %v", c, err)
	}

	if _, err := ParseLayerFlag("wire"); err == nil {
		t.Error("expected error for unknown layer")
	}
	if _, err := ParseDirectionFlag("up"); err == nil {
		t.Error("expected error for unknown direction")
	}
	if _, err := ParseCategoryFlag("frame"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestRunViewFiltersByTopic(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Category: log.CategoryMessage, Message: &log.MessageEvent{Op: log.OpPublish, Topic: "weather"}},
		{Timestamp: ts, Category: log.CategoryMessage, Message: &log.MessageEvent{Op: log.OpSubscribe, Topic: "alerts"}},
		{Timestamp: ts, Category: log.CategoryReading, Reading: &log.ReadingEvent{Cycle: 1}},
	}
	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Topic: "alerts"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "SUBSCRIBE") {
		t.Errorf("expected alerts event, got: %s", output)
	}
	if strings.Contains(output, "weather") || strings.Contains(output, "Reading") {
		t.Errorf("unexpected events in output: %s", output)
	}
}

func TestRunViewFiltersByCategory(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Category: log.CategoryMessage, Message: &log.MessageEvent{Op: log.OpPublish, Topic: "weather"}},
		{Timestamp: ts, Category: log.CategoryReading, Reading: &log.ReadingEvent{Cycle: 1}},
	}
	path := createTestLogFile(t, events)

	cat := log.CategoryReading
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Category: &cat}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	if strings.Count(buf.String(), "[sess:") != 1 {
		t.Errorf("expected one event, got:\n%s", buf.String())
	}
}

func TestRunViewMissingFile(t *testing.T) {
	var buf bytes.Buffer
	if err := RunView("/nonexistent/events.tlog", ViewFilter{}, &buf); err == nil {
		t.Error("expected error for missing file")
	}
}
