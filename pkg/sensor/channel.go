package sensor

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Channel errors.
var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrInvalidRange   = errors.New("invalid channel range")
	ErrInvalidValue   = errors.New("invalid channel value")
)

// ChannelID identifies a simulated sensor channel.
// The numeric order is the order channels appear in an encoded record.
type ChannelID uint8

const (
	Temperature ChannelID = iota
	Humidity
	WindDirection
	WindIntensity
	Rainfall

	// NumChannels is the number of channels in a reading set.
	NumChannels = 5
)

// String returns the channel name used in configuration and on the shell.
func (c ChannelID) String() string {
	switch c {
	case Temperature:
		return "temperature"
	case Humidity:
		return "humidity"
	case WindDirection:
		return "wind-direction"
	case WindIntensity:
		return "wind-intensity"
	case Rainfall:
		return "rainfall"
	default:
		return "unknown"
	}
}

// Unit returns the display unit of the channel.
func (c ChannelID) Unit() string {
	switch c {
	case Temperature, WindDirection:
		return "°"
	case Humidity:
		return "%"
	case WindIntensity:
		return "m/s"
	case Rainfall:
		return "mm/h"
	default:
		return ""
	}
}

// ParseChannel resolves a channel name. Short aliases are accepted.
func ParseChannel(s string) (ChannelID, error) {
	switch strings.ToLower(s) {
	case "temperature", "temp", "t":
		return Temperature, nil
	case "humidity", "hum", "h":
		return Humidity, nil
	case "wind-direction", "winddirection", "dir":
		return WindDirection, nil
	case "wind-intensity", "windintensity", "int", "wind":
		return WindIntensity, nil
	case "rainfall", "rain", "r":
		return Rainfall, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownChannel, s)
	}
}

// Range is the closed interval a channel's value is confined to.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Validate checks that the range is finite and non-empty.
func (r Range) Validate() error {
	if !finite(r.Min) || !finite(r.Max) {
		return fmt.Errorf("%w: bounds must be finite, got [%v, %v]", ErrInvalidRange, r.Min, r.Max)
	}
	if !(r.Min < r.Max) {
		return fmt.Errorf("%w: min %.2f must be below max %.2f", ErrInvalidRange, r.Min, r.Max)
	}
	return nil
}

// Clamp confines v to the range. NaN maps to Min.
func (r Range) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	if v < r.Min {
		return r.Min
	}
	return v
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Ranges holds one range per channel, indexed by ChannelID.
type Ranges [NumChannels]Range

// DefaultRanges returns the channel ranges of the reference weather node.
func DefaultRanges() Ranges {
	return Ranges{
		Temperature:   {Min: -50, Max: 50},
		Humidity:      {Min: 0, Max: 100},
		WindDirection: {Min: 0, Max: 360},
		WindIntensity: {Min: 0, Max: 100},
		Rainfall:      {Min: 0, Max: 50},
	}
}

// Validate checks every range.
func (r Ranges) Validate() error {
	for i, rng := range r {
		if err := rng.Validate(); err != nil {
			return fmt.Errorf("%s: %w", ChannelID(i), err)
		}
	}
	return nil
}
