package sensor

import (
	"errors"
	"math"
	"testing"
)

// scriptedSource replays a fixed sequence of draws, cycling when exhausted.
type scriptedSource struct {
	draws []int
	pos   int
	calls []int
}

func (s *scriptedSource) IntN(n int) int {
	s.calls = append(s.calls, n)
	v := s.draws[s.pos%len(s.draws)]
	s.pos++
	if v >= n {
		v = n - 1
	}
	return v
}

func TestNextValueStep(t *testing.T) {
	tests := []struct {
		name string
		draw int
		prev float64
		rng  Range
		want float64
	}{
		{"max step up", 10, 0, Range{-50, 50}, 1.5},
		{"max step down", 0, 0, Range{-50, 50}, -1.5},
		{"no step", 5, 12.25, Range{-50, 50}, 12.25},
		{"clamp at max", 10, 50, Range{0, 50}, 50},
		{"clamp at min", 0, 0, Range{0, 100}, 0},
		{"back from max", 0, 360, Range{0, 360}, 354.6},
		{"back from min", 10, -50, Range{-50, 50}, -48.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &scriptedSource{draws: []int{tt.draw}}
			got := NextValue(src, tt.prev, tt.rng)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("NextValue() = %v, want %v", got, tt.want)
			}
			if len(src.calls) != 1 || src.calls[0] != 2*MaxStep+1 {
				t.Errorf("IntN calls = %v, want [%d]", src.calls, 2*MaxStep+1)
			}
		})
	}
}

func TestInitialValueWithinRange(t *testing.T) {
	src := NewSource(7)
	for _, r := range DefaultRanges() {
		for i := 0; i < 1000; i++ {
			v := InitialValue(src, r)
			if !r.Contains(v) {
				t.Fatalf("InitialValue() = %v outside [%v, %v]", v, r.Min, r.Max)
			}
			if v != math.Trunc(v) {
				t.Fatalf("InitialValue() = %v, want a whole number", v)
			}
		}
	}
}

func TestInitialValueEndpoints(t *testing.T) {
	r := Range{Min: -50, Max: 50}

	if got := InitialValue(&scriptedSource{draws: []int{0}}, r); got != -50 {
		t.Errorf("lowest draw = %v, want -50", got)
	}
	if got := InitialValue(&scriptedSource{draws: []int{100}}, r); got != 50 {
		t.Errorf("highest draw = %v, want 50", got)
	}
}

func TestRandomWalkStaysInRange(t *testing.T) {
	src := NewSource(42)
	for id, r := range DefaultRanges() {
		v := InitialValue(src, r)
		for n := 0; n < 10000; n++ {
			v = NextValue(src, v, r)
			if !r.Contains(v) {
				t.Fatalf("%s after %d steps = %v outside [%v, %v]", ChannelID(id), n+1, v, r.Min, r.Max)
			}
		}
	}
}

func TestSimulatorReproducible(t *testing.T) {
	a, err := NewSimulator(NewSource(1234), DefaultRanges())
	if err != nil {
		t.Fatalf("NewSimulator failed: %v", err)
	}
	b, err := NewSimulator(NewSource(1234), DefaultRanges())
	if err != nil {
		t.Fatalf("NewSimulator failed: %v", err)
	}

	if a.Init() != b.Init() {
		t.Fatal("Init() diverged for identical seeds")
	}
	for i := 0; i < 50; i++ {
		if va, vb := a.Step(), b.Step(); va != vb {
			t.Fatalf("Step() %d diverged: %v vs %v", i, va, vb)
		}
	}
}

func TestSimulatorSeededSequence(t *testing.T) {
	sim, err := NewSimulator(NewSource(2024), DefaultRanges())
	if err != nil {
		t.Fatalf("NewSimulator failed: %v", err)
	}

	if got, want := sim.Init(), (Values{10, 62, 334, 55, 3}); got != want {
		t.Fatalf("Init() = %v, want %v", got, want)
	}

	// Steps drawn: +4, -5, -4, -5, +2.
	want := Values{11.2, 60.5, 329.68, 53.5, 3.3}
	got := sim.Step()
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("Step()[%s] = %v, want %v", ChannelID(i), got[i], want[i])
		}
	}
}

func TestSimulatorSetRejectsNonFinite(t *testing.T) {
	sim, err := NewSimulator(NewSource(1), DefaultRanges())
	if err != nil {
		t.Fatalf("NewSimulator failed: %v", err)
	}
	before := sim.Values()

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := sim.Set(Temperature, v); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("Set(Temperature, %v) error = %v, want ErrInvalidValue", v, err)
		}
	}
	if sim.Values() != before {
		t.Errorf("Values() changed after rejected Set: %v", sim.Values())
	}

	r := DefaultRanges()[Temperature]
	for i := 0; i < 3; i++ {
		if v := sim.Step()[Temperature]; !r.Contains(v) {
			t.Fatalf("Step() temperature = %v outside [%v, %v]", v, r.Min, r.Max)
		}
	}
}

func TestClampNaN(t *testing.T) {
	r := Range{Min: -50, Max: 50}
	if got := r.Clamp(math.NaN()); got != -50 {
		t.Errorf("Clamp(NaN) = %v, want -50", got)
	}
}

func TestRangeValidateRejectsNonFinite(t *testing.T) {
	tests := []Range{
		{Min: 0, Max: math.Inf(1)},
		{Min: math.Inf(-1), Max: 0},
		{Min: math.NaN(), Max: 10},
		{Min: 0, Max: math.NaN()},
	}
	for _, r := range tests {
		if err := r.Validate(); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("Range%v.Validate() = %v, want ErrInvalidRange", r, err)
		}
	}
}

func TestSimulatorSetClamps(t *testing.T) {
	sim, err := NewSimulator(NewSource(1), DefaultRanges())
	if err != nil {
		t.Fatalf("NewSimulator failed: %v", err)
	}

	got, err := sim.Set(Rainfall, 80)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got != 50 {
		t.Errorf("Set(Rainfall, 80) = %v, want 50", got)
	}
	if sim.Values()[Rainfall] != 50 {
		t.Errorf("Values()[Rainfall] = %v, want 50", sim.Values()[Rainfall])
	}

	if _, err := sim.Set(ChannelID(9), 1); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("Set(9) error = %v, want ErrUnknownChannel", err)
	}
}

func TestNewSimulatorRejectsEmptyRange(t *testing.T) {
	ranges := DefaultRanges()
	ranges[Humidity] = Range{Min: 10, Max: 10}

	if _, err := NewSimulator(NewSource(1), ranges); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("NewSimulator() error = %v, want ErrInvalidRange", err)
	}
}

func TestParseChannel(t *testing.T) {
	for _, id := range []ChannelID{Temperature, Humidity, WindDirection, WindIntensity, Rainfall} {
		got, err := ParseChannel(id.String())
		if err != nil {
			t.Errorf("ParseChannel(%q) failed: %v", id.String(), err)
			continue
		}
		if got != id {
			t.Errorf("ParseChannel(%q) = %v, want %v", id.String(), got, id)
		}
	}

	if _, err := ParseChannel("pressure"); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("ParseChannel(pressure) error = %v, want ErrUnknownChannel", err)
	}
}
