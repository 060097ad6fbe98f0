package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servotrack/servotrack/internal/command"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "outcomes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)

	id, err := s.StartSession("bench run")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, s.RecordSample(id, "predictive", command.PerformanceSample{
		ErrorPx: 2.5, DurationMs: 4.0, Success: true, Bucket: command.BucketNear,
	}))
	require.NoError(t, s.RecordSample(id, "predictive", command.PerformanceSample{
		ErrorPx: 40, DurationMs: 6.0, Success: false, Bucket: command.BucketFar,
	}))
	require.NoError(t, s.EndSession(id))

	sess, err := s.GetSession(id)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.SampleCount)
	assert.Equal(t, "bench run", sess.Notes)
	require.NotNil(t, sess.EndedAt)
	assert.GreaterOrEqual(t, *sess.EndedAt, sess.StartedAt)
}

func TestBucketAccuracy(t *testing.T) {
	s := openTestStore(t)

	id, err := s.StartSession("")
	require.NoError(t, err)

	record := func(bucket command.DistanceBucket, success bool) {
		require.NoError(t, s.RecordSample(id, "predictive", command.PerformanceSample{
			Success: success, Bucket: bucket,
		}))
	}
	record(command.BucketNear, true)
	record(command.BucketNear, true)
	record(command.BucketMedium, true)
	record(command.BucketMedium, false)
	record(command.BucketMedium, false)
	record(command.BucketMedium, false)

	acc, err := s.BucketAccuracy(id)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, acc[command.BucketNear], 1e-9)
	assert.InDelta(t, 0.25, acc[command.BucketMedium], 1e-9)
	assert.NotContains(t, acc, command.BucketFar)
}

func TestRecentSamplesNewestFirst(t *testing.T) {
	s := openTestStore(t)

	id, err := s.StartSession("")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordSample(id, "fallback", command.PerformanceSample{
			ErrorPx: float64(i), Success: true, Bucket: command.BucketNear,
		}))
	}

	samples, err := s.RecentSamples(id, 3)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, 4.0, samples[0].ErrorPx)
	assert.Equal(t, "fallback", samples[0].Strategy)
	assert.True(t, samples[0].ID > samples[1].ID)
}
