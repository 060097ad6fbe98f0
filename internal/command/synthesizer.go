package command

import (
	"fmt"
	"math"
	"time"

	"github.com/servotrack/servotrack/internal/actuator"
	"github.com/servotrack/servotrack/internal/monitoring"
)

// SynthesizerConfig holds configuration parameters for command
// synthesis.
type SynthesizerConfig struct {
	NearMaxPx   float64 // Upper edge of the near bucket
	MediumMaxPx float64 // Upper edge of the medium bucket

	CoarseRatio     float64       // Fraction of the correction covered by the coarse stage
	FineGain        float64       // Fixed gain for the fine stage
	InterStagePause time.Duration // Settling pause between coarse and fine

	SatisfiedRadiusPx float64 // Corrections under this emit nothing and count as success
	ConversionFactor  float64 // Base pixel to device-unit conversion
}

// DefaultSynthesizerConfig returns default synthesis configuration.
func DefaultSynthesizerConfig() SynthesizerConfig {
	return SynthesizerConfig{
		NearMaxPx:         30.0,
		MediumMaxPx:       100.0,
		CoarseRatio:       0.75,
		FineGain:          2.0,
		InterStagePause:   2 * time.Millisecond,
		SatisfiedRadiusPx: 3.0,
		ConversionFactor:  1.0,
	}
}

// PositionFeedback re-samples the pointer position in pixel space.
// ok=false means no feedback is available for this cycle.
type PositionFeedback func() (x, y float64, ok bool)

// Result is the outcome of one synthesis cycle.
type Result struct {
	Commands  []MovementCommand
	Sample    PerformanceSample
	Satisfied bool // Correction was under the satisfied radius; nothing emitted
}

// Synthesizer turns target corrections into actuator motion. One
// Execute call is one cycle; the gain profile passed in is read-only
// for the duration of the cycle.
type Synthesizer struct {
	config SynthesizerConfig
	act    actuator.Actuator
}

// NewSynthesizer creates a synthesizer bound to an actuator.
func NewSynthesizer(config SynthesizerConfig, act actuator.Actuator) *Synthesizer {
	return &Synthesizer{config: config, act: act}
}

// ClassifyDistance returns the bucket for a correction magnitude.
func (s *Synthesizer) ClassifyDistance(distPx float64) DistanceBucket {
	switch {
	case distPx < s.config.NearMaxPx:
		return BucketNear
	case distPx <= s.config.MediumMaxPx:
		return BucketMedium
	default:
		return BucketFar
	}
}

// Execute synthesizes and applies the motion for one correction vector
// (predicted target minus current pointer position, pixel space).
//
// Near corrections go out as one Single command at the near gain.
// Medium and Far corrections use the dual-precision path: a Coarse
// command covering CoarseRatio of the vector at the bucket gain, a
// short settling pause, then a Fine command covering the remainder at
// the fixed fine gain. When feedback is available the Fine stage is
// recomputed against the re-sampled pointer position; the Coarse
// stage, once issued, is never retracted.
//
// The returned sample is recorded for every attempted sequence; the
// error is non-nil only for actuator failures, which abort the
// sequence after the failed stage.
func (s *Synthesizer) Execute(corrX, corrY float64, gains *GainProfile, feedback PositionFeedback) (Result, error) {
	start := time.Now()
	dist := math.Hypot(corrX, corrY)

	if dist <= s.config.SatisfiedRadiusPx {
		return Result{
			Satisfied: true,
			Sample: PerformanceSample{
				ErrorPx: dist,
				Success: true,
				Bucket:  BucketNear,
			},
		}, nil
	}

	bucket := s.ClassifyDistance(dist)
	if bucket == BucketNear {
		return s.executeSingle(corrX, corrY, gains, start)
	}
	return s.executeDual(corrX, corrY, bucket, gains, feedback, start)
}

func (s *Synthesizer) executeSingle(corrX, corrY float64, gains *GainProfile, start time.Time) (Result, error) {
	cmd := MovementCommand{DX: corrX, DY: corrY, Stage: StageSingle}
	res := Result{Commands: []MovementCommand{cmd}}

	if err := s.apply(cmd, gains.Gain(BucketNear)); err != nil {
		res.Sample = s.failedSample(corrX, corrY, BucketNear, start)
		return res, fmt.Errorf("single stage: %w", err)
	}

	res.Sample = PerformanceSample{
		DurationMs: milliseconds(start),
		Success:    true,
		Bucket:     BucketNear,
	}
	return res, nil
}

func (s *Synthesizer) executeDual(corrX, corrY float64, bucket DistanceBucket, gains *GainProfile, feedback PositionFeedback, start time.Time) (Result, error) {
	var startX, startY float64
	haveFeedback := false
	if feedback != nil {
		startX, startY, haveFeedback = feedback()
	}

	coarse := MovementCommand{
		DX:    corrX * s.config.CoarseRatio,
		DY:    corrY * s.config.CoarseRatio,
		Stage: StageCoarse,
	}
	res := Result{Commands: []MovementCommand{coarse}}

	if err := s.apply(coarse, gains.Gain(bucket)); err != nil {
		res.Sample = s.failedSample(corrX, corrY, bucket, start)
		return res, fmt.Errorf("coarse stage: %w", err)
	}

	// Short settling pause between stages bounds perceived jitter
	// without blowing the tick budget.
	if s.config.InterStagePause > 0 {
		time.Sleep(s.config.InterStagePause)
	}

	// Default remainder reconstructs the full correction. With pointer
	// feedback the fine stage is instead recomputed from the observed
	// displacement, so it aims at the same point the cycle was
	// synthesized for even if the coarse stage landed short or long.
	fineX := corrX - coarse.DX
	fineY := corrY - coarse.DY
	if haveFeedback {
		if px, py, ok := feedback(); ok {
			fineX = corrX - (px - startX)
			fineY = corrY - (py - startY)
		}
	}

	fine := MovementCommand{DX: fineX, DY: fineY, Stage: StageFine}
	res.Commands = append(res.Commands, fine)

	if err := s.apply(fine, s.config.FineGain); err != nil {
		res.Sample = s.failedSample(corrX, corrY, bucket, start)
		return res, fmt.Errorf("fine stage: %w", err)
	}

	res.Sample = PerformanceSample{
		ErrorPx:    math.Hypot(corrX-coarse.DX-fine.DX, corrY-coarse.DY-fine.DY),
		DurationMs: milliseconds(start),
		Success:    true,
		Bucket:     bucket,
	}
	return res, nil
}

// apply converts a pixel-space command into device units and issues it.
func (s *Synthesizer) apply(cmd MovementCommand, gain float64) error {
	dx := cmd.DX * gain * s.config.ConversionFactor
	dy := cmd.DY * gain * s.config.ConversionFactor
	if err := s.act.ApplyRelativeMotion(dx, dy); err != nil {
		monitoring.Logf("command: %s stage failed for delta (%.1f, %.1f): %v", cmd.Stage, dx, dy, err)
		return err
	}
	return nil
}

func (s *Synthesizer) failedSample(corrX, corrY float64, bucket DistanceBucket, start time.Time) PerformanceSample {
	return PerformanceSample{
		ErrorPx:    math.Hypot(corrX, corrY),
		DurationMs: milliseconds(start),
		Success:    false,
		Bucket:     bucket,
	}
}

func milliseconds(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
