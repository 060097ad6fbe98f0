// Package predict projects a stabilized target estimate forward by a
// latency-compensation horizon. Three candidate projections (linear,
// acceleration-aware, trend-fit) are fused with fixed weights, and the
// resulting displacement is clamped so noisy velocity estimates cannot
// cause overshoot.
package predict

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/servotrack/servotrack/internal/monitoring"
	"github.com/servotrack/servotrack/internal/ring"
	"github.com/servotrack/servotrack/internal/track"
)

// PredictorConfig holds configuration parameters for the motion
// predictor.
type PredictorConfig struct {
	HistorySize int // Estimates retained for acceleration and trend fits

	// Compensation horizon. The horizon grows linearly from MinHorizonMs
	// at standstill to MaxHorizonMs at SpeedForMaxHorizon px/s, and is
	// never exceeded.
	MinHorizonMs       float64
	MaxHorizonMs       float64
	SpeedForMaxHorizon float64

	// Candidate fusion weights. They should sum to 1.
	LinearWeight  float64
	AccelWeight   float64
	PatternWeight float64

	MaxOffsetPx float64 // Clamp on total displacement introduced by prediction
}

// DefaultPredictorConfig returns default predictor configuration.
func DefaultPredictorConfig() PredictorConfig {
	return PredictorConfig{
		HistorySize:        8,
		MinHorizonMs:       30.0,
		MaxHorizonMs:       60.0,
		SpeedForMaxHorizon: 500.0,
		LinearWeight:       0.5,
		AccelWeight:        0.3,
		PatternWeight:      0.2,
		MaxOffsetPx:        40.0,
	}
}

// Prediction is the projected target position. It is recomputed every
// cycle and never persisted across ticks.
type Prediction struct {
	X          float64
	Y          float64
	Confidence float64 // [0, 1]
	HorizonMs  float64
}

// Predictor projects stabilized estimates forward in time.
type Predictor struct {
	config  PredictorConfig
	history *ring.Buffer[track.Estimate]
	resets  int
}

// NewPredictor creates a predictor with the specified configuration.
func NewPredictor(config PredictorConfig) *Predictor {
	return &Predictor{
		config:  config,
		history: ring.New[track.Estimate](config.HistorySize),
	}
}

// Predict feeds the latest estimate and returns the projected target.
// With fewer than two historical samples the estimate is passed through
// unmodified (zero-horizon prediction). A non-finite intermediate value
// resets the history and likewise falls back to the passthrough path.
func (p *Predictor) Predict(est track.Estimate) Prediction {
	p.history.Push(est)

	if p.history.Len() < 2 {
		return passthrough(est)
	}

	horizonMs := p.horizonFor(est)
	h := horizonMs / 1000.0

	linX, linY := est.X+est.VX*h, est.Y+est.VY*h
	accX, accY := p.accelerationCandidate(est, h)
	patX, patY := p.patternCandidate(est, h)

	x := p.config.LinearWeight*linX + p.config.AccelWeight*accX + p.config.PatternWeight*patX
	y := p.config.LinearWeight*linY + p.config.AccelWeight*accY + p.config.PatternWeight*patY

	if !isFinite(x) || !isFinite(y) {
		p.resets++
		p.history.Reset()
		p.history.Push(est)
		monitoring.Logf("predict: non-finite projection, history reset (%d resets total)", p.resets)
		return passthrough(est)
	}

	// Clamp the displacement introduced by prediction.
	dx, dy := x-est.X, y-est.Y
	if dist := math.Hypot(dx, dy); dist > p.config.MaxOffsetPx {
		scale := p.config.MaxOffsetPx / dist
		x = est.X + dx*scale
		y = est.Y + dy*scale
	}

	return Prediction{
		X:          x,
		Y:          y,
		Confidence: p.confidence(),
		HorizonMs:  horizonMs,
	}
}

func passthrough(est track.Estimate) Prediction {
	return Prediction{X: est.X, Y: est.Y, Confidence: 0.5, HorizonMs: 0}
}

// horizonFor scales the compensation horizon with observed speed,
// capped at the configured maximum.
func (p *Predictor) horizonFor(est track.Estimate) float64 {
	speed := math.Hypot(est.VX, est.VY)
	frac := 1.0
	if p.config.SpeedForMaxHorizon > 0 {
		frac = math.Min(speed/p.config.SpeedForMaxHorizon, 1.0)
	}
	return p.config.MinHorizonMs + (p.config.MaxHorizonMs-p.config.MinHorizonMs)*frac
}

// accelerationCandidate adds a velocity-change term derived from the
// last two velocity samples: s = x + v·h + ½·a·h².
func (p *Predictor) accelerationCandidate(est track.Estimate, h float64) (float64, float64) {
	n := p.history.Len()
	prev := p.history.At(n - 2)
	dt := float64(est.TimeUnixNanos-prev.TimeUnixNanos) / 1e9
	if dt <= 0 {
		return est.X + est.VX*h, est.Y + est.VY*h
	}
	ax := (est.VX - prev.VX) / dt
	ay := (est.VY - prev.VY) / dt
	return est.X + est.VX*h + 0.5*ax*h*h,
		est.Y + est.VY*h + 0.5*ay*h*h
}

// patternCandidate extrapolates from the position history using a
// linear trend fit over time.
func (p *Predictor) patternCandidate(est track.Estimate, h float64) (float64, float64) {
	n := p.history.Len()
	ts := make([]float64, n)
	xs := make([]float64, n)
	ys := make([]float64, n)
	t0 := p.history.At(0).TimeUnixNanos
	for i := 0; i < n; i++ {
		e := p.history.At(i)
		ts[i] = float64(e.TimeUnixNanos-t0) / 1e9
		xs[i] = e.X
		ys[i] = e.Y
	}

	// Degenerate time base: fall back to the newest position.
	if ts[0] == ts[n-1] {
		return est.X, est.Y
	}

	tPred := float64(est.TimeUnixNanos-t0)/1e9 + h
	ax, bx := stat.LinearRegression(ts, xs, nil, false)
	ay, by := stat.LinearRegression(ts, ys, nil, false)
	return ax + bx*tPred, ay + by*tPred
}

// confidence scores the projection by the consistency of recent speeds:
// a steady speed history predicts well, an erratic one does not.
func (p *Predictor) confidence() float64 {
	n := p.history.Len()
	if n < 3 {
		return 0.5
	}
	speeds := make([]float64, n)
	for i := 0; i < n; i++ {
		e := p.history.At(i)
		speeds[i] = math.Hypot(e.VX, e.VY)
	}
	variance := stat.Variance(speeds, nil)
	consistency := 1.0 / (1.0 + variance/10000.0)
	return math.Max(0, math.Min(1, consistency))
}

// HistoryLen returns the number of retained estimates.
func (p *Predictor) HistoryLen() int { return p.history.Len() }

// Resets returns how many times a non-finite projection forced a
// history reset.
func (p *Predictor) Resets() int { return p.resets }

// Reset discards the estimate history.
func (p *Predictor) Reset() { p.history.Reset() }

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
