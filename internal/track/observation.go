// Package track stabilizes a stream of noisy, delayed position
// observations of a moving target into a fused position/velocity
// estimate. It is the first stage of the control pipeline: raw sensor
// samples go in, de-noised estimates come out, and corrupt samples are
// rejected before they can perturb the track.
package track

// TargetClass identifies what part of the target an observation refers
// to. The upstream detector labels each sample; unclassified streams
// use ClassUnknown.
type TargetClass int

const (
	ClassUnknown TargetClass = iota
	ClassBody
	ClassHead
)

// Observation is a single raw position sample from the external sensor.
// Immutable once created; timestamps are strictly increasing within a
// session.
type Observation struct {
	X             float64
	Y             float64
	TimeUnixNanos int64
	Confidence    float64 // [0, 1]
	Class         TargetClass

	// Optional detection extents, used for class-dependent aim offsets.
	Width  float64
	Height float64
}

// Estimate is the fused position and instantaneous velocity of the
// tracked target. It is owned exclusively by the Stabilizer and mutated
// only by feeding new observations.
type Estimate struct {
	X             float64
	Y             float64
	VX            float64 // px/s
	VY            float64 // px/s
	TimeUnixNanos int64
}
