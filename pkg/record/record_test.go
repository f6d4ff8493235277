package record

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/wxnode/wxnode-go/pkg/sensor"
)

func newTestEncoder(t *testing.T, device string) *Encoder {
	t.Helper()
	enc, err := NewEncoder(device, sensor.DefaultRanges())
	if err != nil {
		t.Fatalf("NewEncoder(%q) failed: %v", device, err)
	}
	return enc
}

func TestEncodeLayout(t *testing.T) {
	enc := newTestEncoder(t, "2")

	rs := enc.Reading(1700000000000, sensor.Values{1.5, 48.5, 180, 0, 50})
	got := string(enc.Encode(rs))

	want := `{"ts": 1700000000000, "values":{"temperature": "1.50", "humidity": "48.50", "windDirection": "180.00", "windIntensity": "0.00", "rainHeight": "50.00","device": "2"}}`
	if got != want {
		t.Errorf("Encode() =\n%s\nwant\n%s", got, want)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	enc := newTestEncoder(t, "station-7")
	rs := enc.Reading(1234, sensor.Values{-12.345, 0.005, 359.999, 42, 0})

	first := enc.Encode(rs)
	for i := 0; i < 10; i++ {
		if !bytes.Equal(first, enc.Encode(rs)) {
			t.Fatal("Encode() produced different bytes for the same reading set")
		}
	}
}

func TestWorstCaseSize(t *testing.T) {
	enc := newTestEncoder(t, "2")
	if got := enc.MaxEncodedSize(); got != 177 {
		t.Errorf("MaxEncodedSize() = %d, want 177", got)
	}
}

func TestEncodeNeverExceedsMaxSize(t *testing.T) {
	ranges := sensor.DefaultRanges()
	device := strings.Repeat("d", 24)
	enc := newTestEncoder(t, device)

	src := sensor.NewSource(99)
	sim, err := sensor.NewSimulator(src, ranges)
	if err != nil {
		t.Fatalf("NewSimulator failed: %v", err)
	}
	sim.Init()

	for i := 0; i < 5000; i++ {
		rs := enc.Reading(^uint64(0), sim.Step())
		if n := len(enc.Encode(rs)); n > MaxSize {
			t.Fatalf("record %d is %d bytes, limit %d", i, n, MaxSize)
		}
	}

	// Range endpoints are the widest renderings.
	for _, vals := range []sensor.Values{
		{ranges[0].Min, ranges[1].Min, ranges[2].Min, ranges[3].Min, ranges[4].Min},
		{ranges[0].Max, ranges[1].Max, ranges[2].Max, ranges[3].Max, ranges[4].Max},
	} {
		if n := len(enc.Encode(enc.Reading(^uint64(0), vals))); n > MaxSize {
			t.Errorf("endpoint record is %d bytes, limit %d", n, MaxSize)
		}
	}
}

func TestNewEncoderRejectsOversizedDevice(t *testing.T) {
	_, err := NewEncoder(strings.Repeat("d", 25), sensor.DefaultRanges())
	if !errors.Is(err, ErrRecordTooLarge) {
		t.Errorf("NewEncoder() error = %v, want ErrRecordTooLarge", err)
	}
}

func TestNewEncoderRejectsWideRanges(t *testing.T) {
	ranges := sensor.DefaultRanges()
	ranges[sensor.Temperature] = sensor.Range{Min: -1e30, Max: 1e30}

	_, err := NewEncoder("2", ranges)
	if !errors.Is(err, ErrRecordTooLarge) {
		t.Errorf("NewEncoder() error = %v, want ErrRecordTooLarge", err)
	}
}

func TestNewEncoderRejectsBadDeviceID(t *testing.T) {
	for _, id := range []string{"", `dev"1`, `dev\1`, "dev\n1"} {
		if _, err := NewEncoder(id, sensor.DefaultRanges()); !errors.Is(err, ErrInvalidDeviceID) {
			t.Errorf("NewEncoder(%q) error = %v, want ErrInvalidDeviceID", id, err)
		}
	}
}

func TestParse(t *testing.T) {
	enc := newTestEncoder(t, "4")
	in := enc.Reading(1700000005000, sensor.Values{-3.25, 61, 90.5, 12.75, 0.25})

	got, err := Parse(enc.Encode(in))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got != in {
		t.Errorf("Parse() = %+v, want %+v", got, in)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, data := range []string{
		"hello",
		`{"ts": 1, "values":{"temperature": "warm"}}`,
	} {
		if _, err := Parse([]byte(data)); !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q) error = %v, want ErrMalformed", data, err)
		}
	}
}
