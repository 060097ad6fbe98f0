package track

import (
	"math"

	"github.com/servotrack/servotrack/internal/monitoring"
	"github.com/servotrack/servotrack/internal/ring"
)

// StabilizerConfig holds configuration parameters for the observation
// stabilizer.
type StabilizerConfig struct {
	WindowSize       int     // Sliding window of accepted observations
	RecencyDecay     float64 // Per-frame weight decay, newest frame weighs 1.0
	MaxJumpPx        float64 // Position jump beyond which a sample is an outlier
	MaxSpeedPxPerSec float64 // Implied speed beyond which a sample is an outlier

	ProcessNoise        float64 // Position filter process noise (σ²)
	MeasurementNoise    float64 // Position filter measurement noise (σ²)
	VelProcessNoise     float64 // Velocity filter process noise (σ², px/s scale)
	VelMeasurementNoise float64 // Velocity filter measurement noise (σ², px/s scale)
}

// DefaultStabilizerConfig returns default stabilizer configuration.
func DefaultStabilizerConfig() StabilizerConfig {
	return StabilizerConfig{
		WindowSize:          5,
		RecencyDecay:        0.7,
		MaxJumpPx:           300.0,
		MaxSpeedPxPerSec:    2000.0,
		ProcessNoise:        0.1,
		MeasurementNoise:    1.0,
		VelProcessNoise:     10.0,
		VelMeasurementNoise: 100.0,
	}
}

// RejectionCounts breaks rejected samples down by cause for diagnostics.
type RejectionCounts struct {
	PositionJump  int // Jump beyond MaxJumpPx
	ImpliedSpeed  int // Velocity beyond MaxSpeedPxPerSec
	NonMonotonic  int // Timestamp not after the last accepted sample
	LowConfidence int // Confidence at or below zero
}

// Total returns the total number of rejected samples.
func (r RejectionCounts) Total() int {
	return r.PositionJump + r.ImpliedSpeed + r.NonMonotonic + r.LowConfidence
}

// scalarFilter is a 1-state Kalman filter. The stabilizer runs one per
// axis for position and one per axis for velocity: position is
// predicted forward with the current velocity estimate, velocity is
// measured as the finite difference of consecutive fused positions and
// smoothed the same way.
type scalarFilter struct {
	x float64
	p float64
}

func (f *scalarFilter) init(x, variance float64) {
	f.x = x
	f.p = variance
}

// predict shifts the state and inflates the variance by process noise.
func (f *scalarFilter) predict(shift, q float64) {
	f.x += shift
	f.p += q
}

// update folds in a measurement z with noise r.
func (f *scalarFilter) update(z, r float64) {
	k := f.p / (f.p + r)
	f.x += k * (z - f.x)
	f.p = (1 - k) * f.p
}

// Stabilizer fuses recent raw observations into a de-noised
// position/velocity estimate and rejects outliers. It owns the
// Estimate: callers read it, only Observe mutates it.
type Stabilizer struct {
	config StabilizerConfig

	window         *ring.Buffer[Observation]
	px, py, vx, vy scalarFilter
	prevFusedX     float64
	prevFusedY     float64

	est       Estimate
	hasEst    bool
	rejected  RejectionCounts
	lastNanos int64
}

// NewStabilizer creates a stabilizer with the specified configuration.
func NewStabilizer(config StabilizerConfig) *Stabilizer {
	return &Stabilizer{
		config: config,
		window: ring.New[Observation](config.WindowSize),
	}
}

// Observe feeds one raw observation. It returns the current estimate
// and whether the sample was accepted. Rejected samples leave the
// estimate untouched; the rejection is counted for diagnostics.
func (s *Stabilizer) Observe(obs Observation) (Estimate, bool) {
	if obs.Confidence <= 0 {
		s.rejected.LowConfidence++
		return s.est, false
	}

	// Non-monotonic or zero elapsed time takes the same rejection path
	// as an outlier so we never divide by zero downstream.
	if s.hasEst && obs.TimeUnixNanos <= s.lastNanos {
		s.rejected.NonMonotonic++
		monitoring.Logf("track: rejected sample with non-monotonic timestamp (%d <= %d)", obs.TimeUnixNanos, s.lastNanos)
		return s.est, false
	}

	var dt float64
	if s.hasEst {
		dx := obs.X - s.est.X
		dy := obs.Y - s.est.Y
		jump := math.Hypot(dx, dy)
		if jump > s.config.MaxJumpPx {
			s.rejected.PositionJump++
			monitoring.Logf("track: rejected outlier at (%.1f, %.1f), jump %.1fpx exceeds %.1fpx", obs.X, obs.Y, jump, s.config.MaxJumpPx)
			return s.est, false
		}

		dt = float64(obs.TimeUnixNanos-s.lastNanos) / 1e9
		if speed := jump / dt; speed > s.config.MaxSpeedPxPerSec {
			s.rejected.ImpliedSpeed++
			monitoring.Logf("track: rejected sample implying %.0fpx/s, exceeds %.0fpx/s", speed, s.config.MaxSpeedPxPerSec)
			return s.est, false
		}
	}

	s.window.Push(obs)
	fusedX, fusedY := s.fuseWindow()

	if !s.hasEst {
		s.px.init(fusedX, 10)
		s.py.init(fusedY, 10)
		s.vx.init(0, 100)
		s.vy.init(0, 100)
		s.hasEst = true
	} else {
		// Velocity first: finite difference of fused positions, smoothed.
		fdX := (fusedX - s.prevFusedX) / dt
		fdY := (fusedY - s.prevFusedY) / dt
		s.vx.predict(0, s.config.VelProcessNoise)
		s.vy.predict(0, s.config.VelProcessNoise)
		s.vx.update(fdX, s.config.VelMeasurementNoise)
		s.vy.update(fdY, s.config.VelMeasurementNoise)

		// Position carried forward by the smoothed velocity, then
		// corrected by the fused measurement.
		s.px.predict(s.vx.x*dt, s.config.ProcessNoise)
		s.py.predict(s.vy.x*dt, s.config.ProcessNoise)
		s.px.update(fusedX, s.config.MeasurementNoise)
		s.py.update(fusedY, s.config.MeasurementNoise)
	}

	s.prevFusedX = fusedX
	s.prevFusedY = fusedY
	s.lastNanos = obs.TimeUnixNanos
	s.est = Estimate{
		X:             s.px.x,
		Y:             s.py.x,
		VX:            s.vx.x,
		VY:            s.vy.x,
		TimeUnixNanos: obs.TimeUnixNanos,
	}
	return s.est, true
}

// fuseWindow computes the recency-weighted mean position of the
// accepted observation window. The newest frame weighs 1.0 and each
// older frame decays by RecencyDecay, scaled by sample confidence.
func (s *Stabilizer) fuseWindow() (x, y float64) {
	n := s.window.Len()
	var totalWeight, wx, wy float64
	for i := 0; i < n; i++ {
		obs := s.window.At(i)
		age := n - 1 - i
		weight := math.Pow(s.config.RecencyDecay, float64(age)) * obs.Confidence
		wx += obs.X * weight
		wy += obs.Y * weight
		totalWeight += weight
	}
	if totalWeight <= 0 {
		latest, _ := s.window.Latest()
		return latest.X, latest.Y
	}
	return wx / totalWeight, wy / totalWeight
}

// Estimate returns the current stabilized estimate and whether at
// least one observation has been accepted.
func (s *Stabilizer) Estimate() (Estimate, bool) {
	return s.est, s.hasEst
}

// Rejections returns the rejection diagnostics counters.
func (s *Stabilizer) Rejections() RejectionCounts {
	return s.rejected
}

// Reset discards all track state, returning the stabilizer to cold
// start. Diagnostics counters are preserved.
func (s *Stabilizer) Reset() {
	s.window.Reset()
	s.est = Estimate{}
	s.hasEst = false
	s.lastNanos = 0
	s.prevFusedX = 0
	s.prevFusedY = 0
	s.px = scalarFilter{}
	s.py = scalarFilter{}
	s.vx = scalarFilter{}
	s.vy = scalarFilter{}
}
