package track

import (
	"math"
	"testing"
)

const tickNanos = int64(16_000_000) // ~60Hz observation cadence

func obsAt(x, y float64, tick int) Observation {
	return Observation{
		X:             x,
		Y:             y,
		TimeUnixNanos: int64(tick) * tickNanos,
		Confidence:    1.0,
	}
}

func TestStabilizerFirstObservation(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())

	est, accepted := s.Observe(obsAt(100, 200, 1))
	if !accepted {
		t.Fatal("first observation must be accepted")
	}
	if est.X != 100 || est.Y != 200 {
		t.Errorf("estimate = (%v, %v), want (100, 200)", est.X, est.Y)
	}
	if est.VX != 0 || est.VY != 0 {
		t.Errorf("initial velocity = (%v, %v), want zero", est.VX, est.VY)
	}
}

func TestStabilizerRejectsPositionJump(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())

	s.Observe(obsAt(100, 100, 1))
	before, _ := s.Estimate()

	// 400px away with a 300px threshold: rejected, estimate unchanged.
	est, accepted := s.Observe(obsAt(500, 100, 2))
	if accepted {
		t.Fatal("expected 400px jump to be rejected")
	}
	if est != before {
		t.Errorf("estimate changed on rejected sample: %+v -> %+v", before, est)
	}
	if got := s.Rejections().PositionJump; got != 1 {
		t.Errorf("expected 1 position-jump rejection, got %d", got)
	}
}

func TestStabilizerRejectsNonMonotonicTimestamp(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())

	s.Observe(obsAt(100, 100, 2))
	before, _ := s.Estimate()

	// Same timestamp, then an earlier one: both rejected.
	if _, accepted := s.Observe(obsAt(101, 100, 2)); accepted {
		t.Error("expected duplicate timestamp to be rejected")
	}
	if _, accepted := s.Observe(obsAt(101, 100, 1)); accepted {
		t.Error("expected earlier timestamp to be rejected")
	}

	after, _ := s.Estimate()
	if after != before {
		t.Errorf("estimate changed on rejected samples: %+v -> %+v", before, after)
	}
	if got := s.Rejections().NonMonotonic; got != 2 {
		t.Errorf("expected 2 non-monotonic rejections, got %d", got)
	}
}

func TestStabilizerRejectsImplausibleSpeed(t *testing.T) {
	cfg := DefaultStabilizerConfig()
	cfg.MaxJumpPx = 1000 // let the speed check trip first
	s := NewStabilizer(cfg)

	s.Observe(obsAt(0, 0, 1))
	// 200px in 16ms is 12500 px/s, over the 2000 px/s ceiling.
	if _, accepted := s.Observe(obsAt(200, 0, 2)); accepted {
		t.Fatal("expected implausible speed to be rejected")
	}
	if got := s.Rejections().ImpliedSpeed; got != 1 {
		t.Errorf("expected 1 implied-speed rejection, got %d", got)
	}
}

func TestStabilizerVelocityConvergesToZero(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())

	// Moving target first, so velocity is nonzero.
	for tick := 1; tick <= 5; tick++ {
		s.Observe(obsAt(float64(tick)*5, 0, tick))
	}
	moving, _ := s.Estimate()
	if moving.VX <= 0 {
		t.Fatalf("expected positive velocity while moving, got %v", moving.VX)
	}

	// Then hold position: velocity must converge to ~zero.
	for tick := 6; tick <= 40; tick++ {
		s.Observe(obsAt(25, 0, tick))
	}
	held, _ := s.Estimate()
	if math.Abs(held.VX) > 1.0 {
		t.Errorf("velocity did not converge, VX = %v", held.VX)
	}
}

func TestStabilizerTracksConstantVelocity(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())

	var est Estimate
	for tick := 1; tick <= 30; tick++ {
		est, _ = s.Observe(obsAt(float64(tick)*5, 0, tick))
	}

	// 5px per 16ms tick is 312.5 px/s.
	wantVX := 5.0 / (float64(tickNanos) / 1e9)
	if math.Abs(est.VX-wantVX) > wantVX*0.15 {
		t.Errorf("VX = %v, want within 15%% of %v", est.VX, wantVX)
	}
	if math.Abs(est.VY) > 1.0 {
		t.Errorf("VY = %v, want ~0", est.VY)
	}
}

func TestStabilizerWindowFusionSmoothsJitter(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())

	// Jittered samples around (100, 100).
	jitter := []float64{0, 3, -2, 4, -3, 2, -4, 1}
	var est Estimate
	for i, j := range jitter {
		est, _ = s.Observe(obsAt(100+j, 100-j, i+1))
	}

	if math.Abs(est.X-100) > 3 || math.Abs(est.Y-100) > 3 {
		t.Errorf("fused estimate (%v, %v) strayed from (100, 100)", est.X, est.Y)
	}
}

func TestStabilizerEstimateNeverJumpsBeyondThreshold(t *testing.T) {
	cfg := DefaultStabilizerConfig()
	s := NewStabilizer(cfg)

	prev, _ := s.Observe(obsAt(100, 100, 1))
	inputs := []Observation{
		obsAt(150, 100, 2),
		obsAt(600, 100, 3), // outlier
		obsAt(160, 110, 4),
		obsAt(155, 400, 5), // near-threshold jump
	}
	for _, obs := range inputs {
		est, _ := s.Observe(obs)
		moved := math.Hypot(est.X-prev.X, est.Y-prev.Y)
		if moved > cfg.MaxJumpPx {
			t.Errorf("estimate moved %.1fpx in one tick, threshold %.1fpx", moved, cfg.MaxJumpPx)
		}
		prev = est
	}
}

func TestStabilizerReset(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())
	s.Observe(obsAt(100, 100, 1))
	s.Observe(obsAt(500, 100, 2)) // rejected

	s.Reset()

	if _, ok := s.Estimate(); ok {
		t.Error("expected no estimate after reset")
	}
	if got := s.Rejections().Total(); got != 1 {
		t.Errorf("diagnostics must survive reset, got %d rejections", got)
	}

	// Accepts fresh observations after reset, including older timestamps.
	if _, accepted := s.Observe(obsAt(50, 50, 1)); !accepted {
		t.Error("expected observation after reset to be accepted")
	}
}
