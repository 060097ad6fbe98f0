// Package tune adjusts the gain profile from observed command
// outcomes. The adjustment is asymmetric: gains drop quickly when
// accuracy degrades and recover slowly.
package tune

import (
	"github.com/servotrack/servotrack/internal/command"
	"github.com/servotrack/servotrack/internal/monitoring"
	"github.com/servotrack/servotrack/internal/ring"
)

// TunerConfig holds configuration parameters for adaptive gain tuning.
type TunerConfig struct {
	WindowSize       int     // Rolling performance samples retained
	MinBucketSamples int     // Samples required in a bucket before adjusting it
	LowAccuracy      float64 // Below this success fraction, decrease gain
	HighAccuracy     float64 // Above this success fraction, increase gain
	DecreaseFactor   float64 // Applied when accuracy is low
	IncreaseFactor   float64 // Applied when accuracy is high
}

// DefaultTunerConfig returns default tuning configuration.
func DefaultTunerConfig() TunerConfig {
	return TunerConfig{
		WindowSize:       10,
		MinBucketSamples: 3,
		LowAccuracy:      0.5,
		HighAccuracy:     0.9,
		DecreaseFactor:   0.90,
		IncreaseFactor:   1.01,
	}
}

// Tuner owns the gain profile and nudges it between cycles based on
// rolling per-bucket accuracy. It must never run while a synthesis
// cycle is in flight; the arbiter guarantees that ordering.
type Tuner struct {
	config  TunerConfig
	profile command.GainProfile
	samples *ring.Buffer[command.PerformanceSample]
	passes  int
}

// NewTuner creates a tuner owning the given starting profile.
func NewTuner(config TunerConfig, profile command.GainProfile) *Tuner {
	return &Tuner{
		config:  config,
		profile: profile,
		samples: ring.New[command.PerformanceSample](config.WindowSize),
	}
}

// Profile returns the gain profile for the synthesizer to read during
// a cycle. The pointer stays valid across cycles; values change only
// inside Tune.
func (t *Tuner) Profile() *command.GainProfile { return &t.profile }

// Record appends a completed sequence's outcome to the rolling window,
// evicting the oldest when full.
func (t *Tuner) Record(sample command.PerformanceSample) {
	t.samples.Push(sample)
}

// Tune runs one adjustment pass. For each bucket with enough samples
// in the window the success fraction is computed; low accuracy scales
// the bucket's gain down, high accuracy scales it up slightly. Bounds
// are enforced unconditionally after every adjustment.
func (t *Tuner) Tune() {
	t.passes++

	for _, bucket := range []command.DistanceBucket{command.BucketNear, command.BucketMedium, command.BucketFar} {
		total, successes := 0, 0
		for i := 0; i < t.samples.Len(); i++ {
			s := t.samples.At(i)
			if s.Bucket != bucket {
				continue
			}
			total++
			if s.Success {
				successes++
			}
		}
		if total < t.config.MinBucketSamples {
			continue
		}

		accuracy := float64(successes) / float64(total)
		before := t.profile.Gain(bucket)
		switch {
		case accuracy < t.config.LowAccuracy:
			t.profile.Scale(bucket, t.config.DecreaseFactor)
		case accuracy > t.config.HighAccuracy:
			t.profile.Scale(bucket, t.config.IncreaseFactor)
		}
		if after := t.profile.Gain(bucket); after != before {
			monitoring.Logf("tune: %s gain %.3f -> %.3f (accuracy %.0f%% over %d samples)",
				bucket, before, after, accuracy*100, total)
		}
	}

	t.profile.ClampAll()
}

// SampleCount returns the number of samples currently in the window.
func (t *Tuner) SampleCount() int { return t.samples.Len() }

// Passes returns how many tuning passes have run.
func (t *Tuner) Passes() int { return t.passes }
