package commands

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wxnode/wxnode-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test"+log.FileExt)

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	for _, e := range events {
		logger.Log(e)
	}
	if n := logger.Errors(); n != 0 {
		t.Fatalf("%d events failed to encode", n)
	}
	logger.Close()

	return path
}

func exportEvents() []log.Event {
	ts := time.Date(2026, 3, 2, 10, 15, 32, 123456000, time.UTC)
	return []log.Event{
		{
			Timestamp: ts,
			SessionID: "sess-1",
			Direction: log.DirectionOut,
			Layer:     log.LayerLoop,
			Category:  log.CategoryMessage,
			DeviceID:  "device1",
			Gateway:   "[fec0:affe::1]:1883",
			Message: &log.MessageEvent{
				Op:      log.OpPublish,
				Topic:   "weather",
				TopicID: 1,
				Size:    64,
				Status:  log.StatusOK,
			},
		},
		{
			Timestamp: ts.Add(time.Second),
			SessionID: "sess-1",
			Direction: log.DirectionLocal,
			Layer:     log.LayerAgent,
			Category:  log.CategoryState,
			DeviceID:  "device1",
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityLoop,
				OldState: "STOPPED",
				NewState: "RUNNING",
			},
		},
	}
}

func TestExportToJSONL(t *testing.T) {
	path := createTestLogFile(t, exportEvents())
	outPath := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", outPath); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	var lines []log.Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e log.Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		lines = append(lines, e)
	}

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Message == nil || lines[0].Message.Topic != "weather" {
		t.Errorf("expected weather publish first, got %+v", lines[0])
	}
	if lines[1].StateChange == nil || lines[1].StateChange.NewState != "RUNNING" {
		t.Errorf("expected loop state change second, got %+v", lines[1])
	}
}

func TestExportToCSV(t *testing.T) {
	path := createTestLogFile(t, exportEvents())
	outPath := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", outPath); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if len(records[0]) != len(csvHeader) || records[0][0] != "timestamp" {
		t.Errorf("unexpected header: %v", records[0])
	}

	pub := records[1]
	want := []string{
		"2026-03-02T10:15:32.123456Z", "sess-1", "OUT", "LOOP", "MESSAGE",
		"device1", "[fec0:affe::1]:1883", "PUBLISH", "weather", "1", "OK", "64",
	}
	for i := range want {
		if pub[i] != want[i] {
			t.Errorf("column %s = %q, want %q", csvHeader[i], pub[i], want[i])
		}
	}

	state := records[2]
	if state[7] != "State" || state[8] != "" {
		t.Errorf("unexpected state row: %v", state)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, exportEvents())

	if err := RunExport(path, "xml", filepath.Join(t.TempDir(), "out.xml")); err == nil {
		t.Error("expected error for unknown format")
	}
}
