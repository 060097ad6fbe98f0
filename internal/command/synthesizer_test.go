package command

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servotrack/servotrack/internal/actuator"
)

func newTestSynthesizer() (*Synthesizer, *actuator.Mock) {
	cfg := DefaultSynthesizerConfig()
	cfg.InterStagePause = 0 // keep tests fast
	mock := actuator.NewMock()
	return NewSynthesizer(cfg, mock), mock
}

func TestClassifyDistance(t *testing.T) {
	s, _ := newTestSynthesizer()

	cases := []struct {
		dist float64
		want DistanceBucket
	}{
		{5, BucketNear},
		{29.9, BucketNear},
		{30, BucketMedium},
		{100, BucketMedium},
		{100.1, BucketFar},
		{400, BucketFar},
	}
	for _, tc := range cases {
		if got := s.ClassifyDistance(tc.dist); got != tc.want {
			t.Errorf("ClassifyDistance(%v) = %v, want %v", tc.dist, got, tc.want)
		}
	}
}

func TestSatisfiedRadiusEmitsNothing(t *testing.T) {
	s, mock := newTestSynthesizer()
	gains := DefaultGainProfile()

	res, err := s.Execute(2, 1, &gains, nil)
	require.NoError(t, err)

	assert.True(t, res.Satisfied)
	assert.Empty(t, res.Commands)
	assert.True(t, res.Sample.Success)
	assert.Zero(t, mock.CallCount())
}

func TestSinglePathForNearCorrections(t *testing.T) {
	s, mock := newTestSynthesizer()
	gains := DefaultGainProfile()

	res, err := s.Execute(10, -10, &gains, nil)
	require.NoError(t, err)

	require.Len(t, res.Commands, 1)
	cmd := res.Commands[0]
	assert.Equal(t, StageSingle, cmd.Stage)
	assert.Equal(t, 10.0, cmd.DX)
	assert.Equal(t, -10.0, cmd.DY)

	// Device delta carries the near gain.
	applied := mock.Applied()
	require.Len(t, applied, 1)
	assert.InDelta(t, 10*gains.Near, applied[0][0], 1e-9)
	assert.InDelta(t, -10*gains.Near, applied[0][1], 1e-9)

	assert.True(t, res.Sample.Success)
	assert.Equal(t, BucketNear, res.Sample.Bucket)
}

func TestDualPathVectorSumReconstructsCorrection(t *testing.T) {
	s, _ := newTestSynthesizer()
	gains := DefaultGainProfile()

	for _, corr := range [][2]float64{{80, 0}, {60, 45}, {-150, 90}, {0, 101}} {
		res, err := s.Execute(corr[0], corr[1], &gains, nil)
		require.NoError(t, err)
		require.Len(t, res.Commands, 2)

		coarse, fine := res.Commands[0], res.Commands[1]
		assert.Equal(t, StageCoarse, coarse.Stage)
		assert.Equal(t, StageFine, fine.Stage)

		sumX := coarse.DX + fine.DX
		sumY := coarse.DY + fine.DY
		residual := math.Hypot(sumX-corr[0], sumY-corr[1])
		assert.LessOrEqualf(t, residual, 1.0, "correction %v reconstructed with %.3fpx residual", corr, residual)

		// Coarse covers the configured fraction.
		assert.InDelta(t, corr[0]*0.75, coarse.DX, 1e-9)
		assert.InDelta(t, corr[1]*0.75, coarse.DY, 1e-9)
	}
}

func TestDualPathStageGains(t *testing.T) {
	s, mock := newTestSynthesizer()
	gains := DefaultGainProfile()

	_, err := s.Execute(200, 0, &gains, nil) // far bucket
	require.NoError(t, err)

	applied := mock.Applied()
	require.Len(t, applied, 2)
	assert.InDelta(t, 200*0.75*gains.Far, applied[0][0], 1e-9)
	assert.InDelta(t, 200*0.25*2.0, applied[1][0], 1e-9) // fine at the fixed fine gain
}

func TestDualPathFineRecomputedFromFeedback(t *testing.T) {
	cfg := DefaultSynthesizerConfig()
	cfg.InterStagePause = 0
	cfg.ConversionFactor = 1.0
	cfg.FineGain = 1.0
	mock := actuator.NewMock()
	s := NewSynthesizer(cfg, mock)

	// Unity gains so the mock's device units line up with pixels.
	gains := GainProfile{Near: 1, Medium: 1, Far: 1, MinGain: 1, MaxGain: 8}

	feedback := func() (float64, float64, bool) {
		x, y := mock.Position()
		return x, y, true
	}

	res, err := s.Execute(80, 40, &gains, feedback)
	require.NoError(t, err)
	require.Len(t, res.Commands, 2)

	// The pointer moved exactly the coarse share, so the recomputed
	// fine stage still reconstructs the full correction.
	fine := res.Commands[1]
	assert.InDelta(t, 20.0, fine.DX, 1e-9)
	assert.InDelta(t, 10.0, fine.DY, 1e-9)

	x, y := mock.Position()
	assert.InDelta(t, 80.0, x, 1e-9)
	assert.InDelta(t, 40.0, y, 1e-9)
}

func TestActuatorFailureAbortsSequence(t *testing.T) {
	s, mock := newTestSynthesizer()
	gains := DefaultGainProfile()

	// Coarse stage fails: fine must not be issued.
	mock.FailNext(1)
	res, err := s.Execute(200, 0, &gains, nil)
	require.Error(t, err)
	assert.False(t, res.Sample.Success)
	assert.Equal(t, BucketFar, res.Sample.Bucket)
	assert.Zero(t, mock.CallCount())

	// Fine stage fails: coarse stands, sequence reported failed.
	mock2 := actuator.NewMock()
	s2 := NewSynthesizer(DefaultSynthesizerConfig(), mock2)
	calls := 0
	mock2.FailFunc = func(dx, dy float64) error {
		calls++
		if calls == 2 {
			return actuator.ErrRejected
		}
		return nil
	}
	res2, err2 := s2.Execute(200, 0, &gains, nil)
	require.Error(t, err2)
	assert.False(t, res2.Sample.Success)
	assert.Equal(t, 1, mock2.CallCount())
}

func TestFailedSampleRecordsFullError(t *testing.T) {
	s, mock := newTestSynthesizer()
	gains := DefaultGainProfile()

	mock.FailNext(1)
	res, _ := s.Execute(60, 80, &gains, nil)

	assert.InDelta(t, 100.0, res.Sample.ErrorPx, 1e-9)
}
