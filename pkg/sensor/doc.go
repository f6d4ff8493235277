// Package sensor simulates the environmental sensor channels of a weather node.
//
// Each channel (temperature, humidity, wind direction, wind intensity,
// rainfall) carries a value bounded to a fixed range. Values start from a
// uniform draw over the range and then evolve as a bounded random walk, so
// consecutive readings stay physically plausible instead of jumping around.
//
// # Random Walk
//
// Every update moves a value by
//
//	(max - min) * step * Scale
//
// where step is drawn uniformly from [-MaxStep, +MaxStep]. The result is
// clamped into [min, max], so a value pinned at a bound can always walk back.
//
// # Determinism
//
// All randomness comes from an injected Source. A *rand.Rand from math/rand/v2
// satisfies it, so a fixed seed reproduces a fixed sequence of readings.
//
// The simulation is a stand-in for a real acquisition layer; nothing here
// talks to hardware.
package sensor
