package command

// DistanceBucket classifies a correction magnitude. The bucket selects
// which gain multiplier converts the pixel correction into device
// units.
type DistanceBucket string

const (
	BucketNear   DistanceBucket = "near"   // < 30 px
	BucketMedium DistanceBucket = "medium" // 30–100 px
	BucketFar    DistanceBucket = "far"    // > 100 px
)

// GainProfile maps distance buckets to gain multipliers, bounded by
// [MinGain, MaxGain]. The adaptive tuner owns and mutates it between
// cycles; the synthesizer only reads it during a cycle.
type GainProfile struct {
	Near    float64
	Medium  float64
	Far     float64
	MinGain float64
	MaxGain float64
}

// DefaultGainProfile returns the starting multipliers. The tuner
// adjusts them from observed outcomes.
func DefaultGainProfile() GainProfile {
	return GainProfile{
		Near:    2.0,
		Medium:  4.0,
		Far:     6.0,
		MinGain: 1.0,
		MaxGain: 8.0,
	}
}

// Gain returns the multiplier for a bucket.
func (g *GainProfile) Gain(bucket DistanceBucket) float64 {
	switch bucket {
	case BucketNear:
		return g.Near
	case BucketMedium:
		return g.Medium
	default:
		return g.Far
	}
}

// Scale multiplies a bucket's gain by factor and clamps the result.
// Clamping is unconditional: it runs after every adjustment.
func (g *GainProfile) Scale(bucket DistanceBucket, factor float64) {
	switch bucket {
	case BucketNear:
		g.Near = g.clamp(g.Near * factor)
	case BucketMedium:
		g.Medium = g.clamp(g.Medium * factor)
	case BucketFar:
		g.Far = g.clamp(g.Far * factor)
	}
}

// ClampAll forces every multiplier back inside the configured bounds.
func (g *GainProfile) ClampAll() {
	g.Near = g.clamp(g.Near)
	g.Medium = g.clamp(g.Medium)
	g.Far = g.clamp(g.Far)
}

func (g *GainProfile) clamp(v float64) float64 {
	if v < g.MinGain {
		return g.MinGain
	}
	if v > g.MaxGain {
		return g.MaxGain
	}
	return v
}
