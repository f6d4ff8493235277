// Package record encodes weather reading sets into the single-line record the
// collector ingests.
//
// The layout is fixed, including key order and spacing:
//
//	{"ts": 1700000000000, "values":{"temperature": "1.50", "humidity": "48.50", "windDirection": "180.00", "windIntensity": "0.00", "rainHeight": "50.00","device": "2"}}
//
// Values are rendered as quoted strings with two decimals. Every field has a
// bounded width, so the maximum record length is known once the channel ranges
// and device identifier are fixed; NewEncoder rejects configurations that could
// exceed MaxSize.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wxnode/wxnode-go/pkg/sensor"
)

// MaxSize is the largest record, in bytes, the uplink accepts.
const MaxSize = 200

// Record errors.
var (
	ErrRecordTooLarge  = errors.New("record may exceed maximum size")
	ErrInvalidDeviceID = errors.New("invalid device identifier")
	ErrMalformed       = errors.New("malformed record")
)

// recordFormat is the wire layout. Changing it breaks downstream collectors.
const recordFormat = `{"ts": %d, "values":{"temperature": "%.2f", "humidity": "%.2f", "windDirection": "%.2f", "windIntensity": "%.2f", "rainHeight": "%.2f","device": "%s"}}`

// ReadingSet is one cycle's worth of channel values.
type ReadingSet struct {
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp uint64

	// Values holds one value per channel in channel order.
	Values sensor.Values

	// Device identifies the producing node.
	Device string
}

// Encoder renders reading sets for a fixed device and channel ranges.
type Encoder struct {
	device  string
	ranges  sensor.Ranges
	maxSize int
}

// NewEncoder validates the device identifier and verifies that the widest
// reading set the ranges allow still fits in MaxSize.
func NewEncoder(device string, ranges sensor.Ranges) (*Encoder, error) {
	if err := validateDeviceID(device); err != nil {
		return nil, err
	}
	if err := ranges.Validate(); err != nil {
		return nil, err
	}

	e := &Encoder{device: device, ranges: ranges}
	e.maxSize = e.worstCaseSize()
	if e.maxSize > MaxSize {
		return nil, fmt.Errorf("%w: up to %d bytes, limit %d", ErrRecordTooLarge, e.maxSize, MaxSize)
	}
	return e, nil
}

// Device returns the device identifier stamped on reading sets.
func (e *Encoder) Device() string {
	return e.device
}

// MaxEncodedSize returns the longest record this encoder can produce.
func (e *Encoder) MaxEncodedSize() int {
	return e.maxSize
}

// Reading builds a reading set for this encoder's device.
func (e *Encoder) Reading(ts uint64, values sensor.Values) ReadingSet {
	return ReadingSet{Timestamp: ts, Values: values, Device: e.device}
}

// Encode renders the reading set. Identical inputs yield identical bytes.
func (e *Encoder) Encode(rs ReadingSet) []byte {
	buf := make([]byte, 0, MaxSize)
	return fmt.Appendf(buf, recordFormat,
		rs.Timestamp,
		rs.Values[sensor.Temperature],
		rs.Values[sensor.Humidity],
		rs.Values[sensor.WindDirection],
		rs.Values[sensor.WindIntensity],
		rs.Values[sensor.Rainfall],
		rs.Device,
	)
}

// worstCaseSize renders the widest possible field values.
func (e *Encoder) worstCaseSize() int {
	var widest sensor.Values
	for i, r := range e.ranges {
		widest[i] = widestValue(r)
	}
	return len(e.Encode(ReadingSet{Timestamp: math.MaxUint64, Values: widest, Device: e.device}))
}

// widestValue returns a value whose two-decimal rendering is at least as long
// as that of any value in r.
func widestValue(r sensor.Range) float64 {
	m := math.Max(math.Abs(r.Min), math.Abs(r.Max))
	if r.Min < 0 {
		return -m
	}
	return m
}

func validateDeviceID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidDeviceID)
	}
	for _, c := range id {
		if c < 0x20 || c > 0x7e || c == '"' || c == '\\' {
			return fmt.Errorf("%w: %q", ErrInvalidDeviceID, id)
		}
	}
	return nil
}

// wireRecord mirrors the layout for decoding.
type wireRecord struct {
	TS     uint64 `json:"ts"`
	Values struct {
		Temperature   string `json:"temperature"`
		Humidity      string `json:"humidity"`
		WindDirection string `json:"windDirection"`
		WindIntensity string `json:"windIntensity"`
		RainHeight    string `json:"rainHeight"`
		Device        string `json:"device"`
	} `json:"values"`
}

// Parse decodes a record produced by Encode, typically received from another
// node on a subscribed topic.
func Parse(data []byte) (ReadingSet, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return ReadingSet{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	rs := ReadingSet{Timestamp: w.TS, Device: w.Values.Device}
	fields := [sensor.NumChannels]string{
		sensor.Temperature:   w.Values.Temperature,
		sensor.Humidity:      w.Values.Humidity,
		sensor.WindDirection: w.Values.WindDirection,
		sensor.WindIntensity: w.Values.WindIntensity,
		sensor.Rainfall:      w.Values.RainHeight,
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return ReadingSet{}, fmt.Errorf("%w: %s: %v", ErrMalformed, sensor.ChannelID(i), err)
		}
		rs.Values[i] = v
	}
	return rs, nil
}
