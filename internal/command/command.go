// Package command converts the offset between the pointer and the
// predicted target into one or two relative motion commands, applies
// them to the actuator, and records the outcome of each sequence.
package command

// Stage identifies a command's role within a synthesis cycle.
type Stage string

const (
	StageSingle Stage = "single" // Whole correction in one command
	StageCoarse Stage = "coarse" // First, larger share of a dual sequence
	StageFine   Stage = "fine"   // Remainder, issued at a fixed lower gain
)

// MovementCommand is a relative motion instruction in pixel space. The
// vector sum of a cycle's commands equals the correction the cycle was
// synthesized for, up to rounding; gains scale the device deltas, not
// the commands.
type MovementCommand struct {
	DX    float64
	DY    float64
	Stage Stage
}

// PerformanceSample records the outcome of one completed command
// sequence. Samples feed the adaptive gain tuner and the strategy
// performance summaries.
type PerformanceSample struct {
	ErrorPx    float64
	DurationMs float64
	Success    bool
	Bucket     DistanceBucket
}
