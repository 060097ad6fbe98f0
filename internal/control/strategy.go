// Package control arbitrates between the predictive pipeline and a
// fixed-gain fallback. The arbiter owns per-target tracking contexts,
// runs one full pipeline pass per observation, and suspends the
// predictive strategy after sustained actuator failure.
package control

import (
	"math"
	"time"

	"github.com/servotrack/servotrack/internal/actuator"
	"github.com/servotrack/servotrack/internal/command"
	"github.com/servotrack/servotrack/internal/predict"
	"github.com/servotrack/servotrack/internal/track"
	"github.com/servotrack/servotrack/internal/tune"
)

const (
	StrategyPredictive = "predictive"
	StrategyFallback   = "fallback"
)

// Strategy is one way of turning an observation into actuator motion.
// Both strategies share the entry point so the arbiter can swap them
// without the caller noticing.
type Strategy interface {
	Name() string
	Process(tc *TargetContext, obs track.Observation) (command.Result, error)
}

// PredictiveConfig bundles the configuration of every pipeline stage
// the predictive strategy composes.
type PredictiveConfig struct {
	Stabilizer  track.StabilizerConfig
	Predictor   predict.PredictorConfig
	Synthesizer command.SynthesizerConfig
	Tuner       tune.TunerConfig
	Gains       command.GainProfile

	// AimOffsetRatio shifts body-class observations up by this fraction
	// of the detection height before stabilization. Zero disables the
	// offset, which is the right setting for unclassified streams.
	AimOffsetRatio float64
}

// DefaultPredictiveConfig returns default predictive strategy
// configuration.
func DefaultPredictiveConfig() PredictiveConfig {
	return PredictiveConfig{
		Stabilizer:  track.DefaultStabilizerConfig(),
		Predictor:   predict.DefaultPredictorConfig(),
		Synthesizer: command.DefaultSynthesizerConfig(),
		Tuner:       tune.DefaultTunerConfig(),
		Gains:       command.DefaultGainProfile(),
	}
}

// PredictiveStrategy is the full pipeline: stabilize, predict,
// synthesize, tune. Per-target filter state lives in the
// TargetContext; the synthesizer and tuner are shared across targets.
type PredictiveStrategy struct {
	config PredictiveConfig
	synth  *command.Synthesizer
	tuner  *tune.Tuner
	pos    actuator.PositionReporter
}

// NewPredictiveStrategy creates the predictive pipeline strategy. pos
// must report the pointer position in the same pixel space as the
// observations; corrections are computed against it every tick.
func NewPredictiveStrategy(config PredictiveConfig, act actuator.Actuator, pos actuator.PositionReporter) *PredictiveStrategy {
	return &PredictiveStrategy{
		config: config,
		synth:  command.NewSynthesizer(config.Synthesizer, act),
		tuner:  tune.NewTuner(config.Tuner, config.Gains),
		pos:    pos,
	}
}

// Name implements Strategy.
func (p *PredictiveStrategy) Name() string { return StrategyPredictive }

// NewContext creates per-target filter state for this strategy.
func (p *PredictiveStrategy) NewContext() (*track.Stabilizer, *predict.Predictor) {
	return track.NewStabilizer(p.config.Stabilizer), predict.NewPredictor(p.config.Predictor)
}

// Process implements Strategy: one full pipeline pass for one
// observation. The returned error is non-nil only for actuator
// failures; rejected observations and predictor divergence are
// recovered internally.
func (p *PredictiveStrategy) Process(tc *TargetContext, obs track.Observation) (command.Result, error) {
	est, accepted := tc.Stabilizer.Observe(p.aim(obs))
	if !accepted {
		if _, ok := tc.Stabilizer.Estimate(); !ok {
			// Nothing accepted yet, nothing to correct from.
			return command.Result{}, nil
		}
	}

	pred := tc.Predictor.Predict(est)
	px, py := p.pos.Position()

	res, err := p.synth.Execute(pred.X-px, pred.Y-py, p.tuner.Profile(), p.feedback)
	p.tuner.Record(res.Sample)
	return res, err
}

// Shadow feeds the observation through the stabilizer and predictor
// without issuing commands, keeping the filters warm while the
// strategy is suspended so recovery does not start from cold.
func (p *PredictiveStrategy) Shadow(tc *TargetContext, obs track.Observation) {
	if est, accepted := tc.Stabilizer.Observe(p.aim(obs)); accepted {
		tc.Predictor.Predict(est)
	}
}

// Tune runs one gain adjustment pass. The arbiter calls it strictly
// between ticks.
func (p *PredictiveStrategy) Tune() { p.tuner.Tune() }

// Gains returns the current gain profile for observability.
func (p *PredictiveStrategy) Gains() command.GainProfile { return *p.tuner.Profile() }

func (p *PredictiveStrategy) aim(obs track.Observation) track.Observation {
	if p.config.AimOffsetRatio > 0 && obs.Class == track.ClassBody && obs.Height > 0 {
		obs.Y -= p.config.AimOffsetRatio * obs.Height
	}
	return obs
}

func (p *PredictiveStrategy) feedback() (float64, float64, bool) {
	x, y := p.pos.Position()
	return x, y, true
}

// FallbackConfig holds configuration for the non-predictive fallback.
type FallbackConfig struct {
	Gain              float64 // Fixed gain applied to the raw offset
	SatisfiedRadiusPx float64
	NearMaxPx         float64 // Bucket boundaries, kept for sample labeling
	MediumMaxPx       float64
}

// DefaultFallbackConfig returns default fallback configuration.
func DefaultFallbackConfig() FallbackConfig {
	return FallbackConfig{
		Gain:              2.0,
		SatisfiedRadiusPx: 3.0,
		NearMaxPx:         30.0,
		MediumMaxPx:       100.0,
	}
}

// FallbackStrategy applies a fixed gain directly to the raw offset, no
// filtering or prediction. It is deliberately dumb: its job is to keep
// the pointer roughly on target while the predictive pipeline is
// suspended.
type FallbackStrategy struct {
	config FallbackConfig
	act    actuator.Actuator
	pos    actuator.PositionReporter
}

// NewFallbackStrategy creates the fallback strategy.
func NewFallbackStrategy(config FallbackConfig, act actuator.Actuator, pos actuator.PositionReporter) *FallbackStrategy {
	return &FallbackStrategy{config: config, act: act, pos: pos}
}

// Name implements Strategy.
func (f *FallbackStrategy) Name() string { return StrategyFallback }

// Process implements Strategy.
func (f *FallbackStrategy) Process(tc *TargetContext, obs track.Observation) (command.Result, error) {
	start := time.Now()
	px, py := f.pos.Position()
	corrX, corrY := obs.X-px, obs.Y-py
	dist := math.Hypot(corrX, corrY)

	if dist <= f.config.SatisfiedRadiusPx {
		return command.Result{
			Satisfied: true,
			Sample:    command.PerformanceSample{ErrorPx: dist, Success: true, Bucket: f.bucket(dist)},
		}, nil
	}

	cmd := command.MovementCommand{DX: corrX, DY: corrY, Stage: command.StageSingle}
	res := command.Result{Commands: []command.MovementCommand{cmd}}

	durationMs := func() float64 { return float64(time.Since(start).Microseconds()) / 1000.0 }
	if err := f.act.ApplyRelativeMotion(corrX*f.config.Gain, corrY*f.config.Gain); err != nil {
		res.Sample = command.PerformanceSample{
			ErrorPx:    dist,
			DurationMs: durationMs(),
			Bucket:     f.bucket(dist),
		}
		return res, err
	}

	res.Sample = command.PerformanceSample{
		DurationMs: durationMs(),
		Success:    true,
		Bucket:     f.bucket(dist),
	}
	return res, nil
}

func (f *FallbackStrategy) bucket(dist float64) command.DistanceBucket {
	switch {
	case dist < f.config.NearMaxPx:
		return command.BucketNear
	case dist <= f.config.MediumMaxPx:
		return command.BucketMedium
	default:
		return command.BucketFar
	}
}
