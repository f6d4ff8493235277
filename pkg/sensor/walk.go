package sensor

import (
	"math"
	"math/rand/v2"
	"time"
)

// Random walk parameters.
const (
	// MaxStep bounds the integer step drawn each update to [-MaxStep, +MaxStep].
	MaxStep = 5

	// Scale is the fraction of the range one step unit moves the value.
	Scale = 0.003
)

// Source provides uniformly distributed integers in [0, n).
// *rand.Rand from math/rand/v2 implements it.
type Source interface {
	IntN(n int) int
}

// NewSource returns a PCG-backed source seeded with seed.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewTimeSource returns a source seeded from the current time.
func NewTimeSource() *rand.Rand {
	return NewSource(uint64(time.Now().UnixNano()))
}

// InitialValue draws a whole-unit value uniformly from the range.
func InitialValue(src Source, r Range) float64 {
	lo := math.Ceil(r.Min)
	span := int(math.Floor(r.Max) - lo)
	if span < 0 {
		return r.Clamp(r.Min)
	}
	return r.Clamp(lo + float64(src.IntN(span+1)))
}

// NextValue advances prev by one random-walk step and clamps the result.
func NextValue(src Source, prev float64, r Range) float64 {
	step := src.IntN(2*MaxStep+1) - MaxStep
	v := prev + (r.Max-r.Min)*float64(step)*Scale
	return r.Clamp(v)
}
