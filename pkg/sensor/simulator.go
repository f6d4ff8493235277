package sensor

import (
	"fmt"
	"strings"
	"sync"
)

// Values holds one value per channel, indexed by ChannelID.
type Values [NumChannels]float64

// Simulator owns the simulated channel set and its random source.
// It is safe for concurrent use; the publish loop steps it while the shell
// may override individual channels.
type Simulator struct {
	mu     sync.Mutex
	src    Source
	ranges Ranges
	values Values
}

// NewSimulator creates a simulator over the given ranges.
// Values start at each range's lower bound until Init is called.
func NewSimulator(src Source, ranges Ranges) (*Simulator, error) {
	if err := ranges.Validate(); err != nil {
		return nil, err
	}
	s := &Simulator{src: src, ranges: ranges}
	for i, r := range ranges {
		s.values[i] = r.Min
	}
	return s, nil
}

// Ranges returns the configured channel ranges.
func (s *Simulator) Ranges() Ranges {
	return s.ranges
}

// Init draws a fresh initial value for every channel.
func (s *Simulator) Init() Values {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.ranges {
		s.values[i] = InitialValue(s.src, r)
	}
	return s.values
}

// Step advances every channel by one random-walk update, in channel order.
func (s *Simulator) Step() Values {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.ranges {
		s.values[i] = NextValue(s.src, s.values[i], r)
	}
	return s.values
}

// Values returns the current channel values.
func (s *Simulator) Values() Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values
}

// Set overrides a channel value. The value is clamped into the channel's range
// and the stored value is returned. NaN and infinities are rejected.
func (s *Simulator) Set(id ChannelID, v float64) (float64, error) {
	if int(id) >= NumChannels {
		return 0, fmt.Errorf("%w: %d", ErrUnknownChannel, id)
	}
	if !finite(v) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[id] = s.ranges[id].Clamp(v)
	return s.values[id], nil
}

// String renders the values with their units, in channel order.
func (v Values) String() string {
	var b strings.Builder
	for i, val := range v {
		if i > 0 {
			b.WriteString("  ")
		}
		fmt.Fprintf(&b, "%.2f%s", val, ChannelID(i).Unit())
	}
	return b.String()
}
