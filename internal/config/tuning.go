// Package config loads the controller tuning file. All fields are
// optional pointers so a partial JSON file overrides only what it
// names; everything else keeps its documented default. Resolve turns
// the file into validated component configurations and is the only
// place configuration errors can surface, before the first tick.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/servotrack/servotrack/internal/control"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root tuning file schema. Fields omitted from the
// JSON retain their defaults, so partial configs are safe.
type TuningConfig struct {
	// Stabilizer params
	WindowSize       *int     `json:"window_size,omitempty"`
	RecencyDecay     *float64 `json:"recency_decay,omitempty"`
	MaxJumpPx        *float64 `json:"max_jump_px,omitempty"`
	MaxSpeedPxPerSec *float64 `json:"max_speed_px_per_sec,omitempty"`
	ProcessNoise     *float64 `json:"process_noise,omitempty"`
	MeasurementNoise *float64 `json:"measurement_noise,omitempty"`

	// Predictor params
	HistorySize        *int     `json:"history_size,omitempty"`
	MinHorizonMs       *float64 `json:"min_horizon_ms,omitempty"`
	MaxHorizonMs       *float64 `json:"max_horizon_ms,omitempty"`
	SpeedForMaxHorizon *float64 `json:"speed_for_max_horizon,omitempty"`
	LinearWeight       *float64 `json:"linear_weight,omitempty"`
	AccelWeight        *float64 `json:"accel_weight,omitempty"`
	PatternWeight      *float64 `json:"pattern_weight,omitempty"`
	MaxOffsetPx        *float64 `json:"max_offset_px,omitempty"`

	// Synthesizer params
	NearMaxPx         *float64 `json:"near_max_px,omitempty"`
	MediumMaxPx       *float64 `json:"medium_max_px,omitempty"`
	CoarseRatio       *float64 `json:"coarse_ratio,omitempty"`
	FineGain          *float64 `json:"fine_gain,omitempty"`
	InterStagePause   *string  `json:"inter_stage_pause,omitempty"` // duration string like "2ms"
	SatisfiedRadiusPx *float64 `json:"satisfied_radius_px,omitempty"`
	ConversionFactor  *float64 `json:"conversion_factor,omitempty"`

	// Gain tuning params
	SampleWindow     *int     `json:"sample_window,omitempty"`
	MinBucketSamples *int     `json:"min_bucket_samples,omitempty"`
	LowAccuracy      *float64 `json:"low_accuracy,omitempty"`
	HighAccuracy     *float64 `json:"high_accuracy,omitempty"`
	DecreaseFactor   *float64 `json:"decrease_factor,omitempty"`
	IncreaseFactor   *float64 `json:"increase_factor,omitempty"`
	NearGain         *float64 `json:"near_gain,omitempty"`
	MediumGain       *float64 `json:"medium_gain,omitempty"`
	FarGain          *float64 `json:"far_gain,omitempty"`
	MinGain          *float64 `json:"min_gain,omitempty"`
	MaxGain          *float64 `json:"max_gain,omitempty"`

	// Arbiter params
	FailureThreshold *int    `json:"failure_threshold,omitempty"`
	Cooldown         *string `json:"cooldown,omitempty"`       // duration string like "5s"
	TargetTimeout    *string `json:"target_timeout,omitempty"` // duration string like "2s"
	SummaryWindow    *int    `json:"summary_window,omitempty"`

	// Strategy params
	FallbackGain   *float64 `json:"fallback_gain,omitempty"`
	AimOffsetRatio *float64 `json:"aim_offset_ratio,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil,
// resolving to the documented defaults.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file
// must have a .json extension and stay under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return cfg, nil
}

// GetInterStagePause parses and returns the inter-stage pause.
func (c *TuningConfig) GetInterStagePause() time.Duration {
	return c.duration(c.InterStagePause, 2*time.Millisecond)
}

// GetCooldown parses and returns the suspension cooldown.
func (c *TuningConfig) GetCooldown() time.Duration {
	return c.duration(c.Cooldown, 5*time.Second)
}

// GetTargetTimeout parses and returns the idle-target timeout.
func (c *TuningConfig) GetTargetTimeout() time.Duration {
	return c.duration(c.TargetTimeout, 2*time.Second)
}

func (c *TuningConfig) duration(field *string, fallback time.Duration) time.Duration {
	if field == nil || *field == "" {
		return fallback
	}
	d, err := time.ParseDuration(*field)
	if err != nil {
		return fallback
	}
	return d
}

// Resolved is the validated component configuration set.
type Resolved struct {
	Predictive control.PredictiveConfig
	Fallback   control.FallbackConfig
	Arbiter    control.ArbiterConfig
}

// constraints mirrors the resolved values that carry hard requirements.
// A violation here is fatal at startup, never at tick time.
type constraints struct {
	WindowSize       int     `validate:"gt=0"`
	RecencyDecay     float64 `validate:"gt=0,lte=1"`
	MaxJumpPx        float64 `validate:"gt=0"`
	MaxSpeedPxPerSec float64 `validate:"gt=0"`

	HistorySize  int     `validate:"gt=1"`
	MinHorizonMs float64 `validate:"gte=0"`
	MaxHorizonMs float64 `validate:"gtefield=MinHorizonMs"`
	WeightSum    float64 `validate:"gt=0.999,lt=1.001"`
	MaxOffsetPx  float64 `validate:"gt=0"`

	NearMaxPx         float64 `validate:"gt=0"`
	MediumMaxPx       float64 `validate:"gtfield=NearMaxPx"`
	CoarseRatio       float64 `validate:"gt=0,lt=1"`
	FineGain          float64 `validate:"gt=0"`
	SatisfiedRadiusPx float64 `validate:"gte=0"`
	ConversionFactor  float64 `validate:"gt=0"`

	SampleWindow   int     `validate:"gt=0"`
	LowAccuracy    float64 `validate:"gte=0,lte=1"`
	HighAccuracy   float64 `validate:"gtefield=LowAccuracy,lte=1"`
	DecreaseFactor float64 `validate:"gt=0,lte=1"`
	IncreaseFactor float64 `validate:"gte=1"`
	MinGain        float64 `validate:"gt=0"`
	MaxGain        float64 `validate:"gtefield=MinGain"`
	NearGain       float64 `validate:"gtefield=MinGain,ltefield=MaxGain"`
	MediumGain     float64 `validate:"gtefield=MinGain,ltefield=MaxGain"`
	FarGain        float64 `validate:"gtefield=MinGain,ltefield=MaxGain"`

	FailureThreshold int     `validate:"gt=0"`
	SummaryWindow    int     `validate:"gt=0"`
	FallbackGain     float64 `validate:"gt=0"`
	AimOffsetRatio   float64 `validate:"gte=0,lt=1"`
}

// Resolve overlays the file's values on the component defaults and
// validates the result. A nil receiver resolves to pure defaults.
func (c *TuningConfig) Resolve() (Resolved, error) {
	if c == nil {
		c = EmptyTuningConfig()
	}

	p := control.DefaultPredictiveConfig()
	overrideInt(&p.Stabilizer.WindowSize, c.WindowSize)
	overrideFloat(&p.Stabilizer.RecencyDecay, c.RecencyDecay)
	overrideFloat(&p.Stabilizer.MaxJumpPx, c.MaxJumpPx)
	overrideFloat(&p.Stabilizer.MaxSpeedPxPerSec, c.MaxSpeedPxPerSec)
	overrideFloat(&p.Stabilizer.ProcessNoise, c.ProcessNoise)
	overrideFloat(&p.Stabilizer.MeasurementNoise, c.MeasurementNoise)

	overrideInt(&p.Predictor.HistorySize, c.HistorySize)
	overrideFloat(&p.Predictor.MinHorizonMs, c.MinHorizonMs)
	overrideFloat(&p.Predictor.MaxHorizonMs, c.MaxHorizonMs)
	overrideFloat(&p.Predictor.SpeedForMaxHorizon, c.SpeedForMaxHorizon)
	overrideFloat(&p.Predictor.LinearWeight, c.LinearWeight)
	overrideFloat(&p.Predictor.AccelWeight, c.AccelWeight)
	overrideFloat(&p.Predictor.PatternWeight, c.PatternWeight)
	overrideFloat(&p.Predictor.MaxOffsetPx, c.MaxOffsetPx)

	overrideFloat(&p.Synthesizer.NearMaxPx, c.NearMaxPx)
	overrideFloat(&p.Synthesizer.MediumMaxPx, c.MediumMaxPx)
	overrideFloat(&p.Synthesizer.CoarseRatio, c.CoarseRatio)
	overrideFloat(&p.Synthesizer.FineGain, c.FineGain)
	overrideFloat(&p.Synthesizer.SatisfiedRadiusPx, c.SatisfiedRadiusPx)
	overrideFloat(&p.Synthesizer.ConversionFactor, c.ConversionFactor)
	p.Synthesizer.InterStagePause = c.GetInterStagePause()

	overrideInt(&p.Tuner.WindowSize, c.SampleWindow)
	overrideInt(&p.Tuner.MinBucketSamples, c.MinBucketSamples)
	overrideFloat(&p.Tuner.LowAccuracy, c.LowAccuracy)
	overrideFloat(&p.Tuner.HighAccuracy, c.HighAccuracy)
	overrideFloat(&p.Tuner.DecreaseFactor, c.DecreaseFactor)
	overrideFloat(&p.Tuner.IncreaseFactor, c.IncreaseFactor)

	overrideFloat(&p.Gains.Near, c.NearGain)
	overrideFloat(&p.Gains.Medium, c.MediumGain)
	overrideFloat(&p.Gains.Far, c.FarGain)
	overrideFloat(&p.Gains.MinGain, c.MinGain)
	overrideFloat(&p.Gains.MaxGain, c.MaxGain)
	overrideFloat(&p.AimOffsetRatio, c.AimOffsetRatio)

	f := control.DefaultFallbackConfig()
	overrideFloat(&f.Gain, c.FallbackGain)
	f.SatisfiedRadiusPx = p.Synthesizer.SatisfiedRadiusPx
	f.NearMaxPx = p.Synthesizer.NearMaxPx
	f.MediumMaxPx = p.Synthesizer.MediumMaxPx

	a := control.DefaultArbiterConfig()
	overrideInt(&a.FailureThreshold, c.FailureThreshold)
	overrideInt(&a.SummaryWindow, c.SummaryWindow)
	a.Cooldown = c.GetCooldown()
	a.TargetTimeout = c.GetTargetTimeout()

	check := constraints{
		WindowSize:       p.Stabilizer.WindowSize,
		RecencyDecay:     p.Stabilizer.RecencyDecay,
		MaxJumpPx:        p.Stabilizer.MaxJumpPx,
		MaxSpeedPxPerSec: p.Stabilizer.MaxSpeedPxPerSec,

		HistorySize:  p.Predictor.HistorySize,
		MinHorizonMs: p.Predictor.MinHorizonMs,
		MaxHorizonMs: p.Predictor.MaxHorizonMs,
		WeightSum:    p.Predictor.LinearWeight + p.Predictor.AccelWeight + p.Predictor.PatternWeight,
		MaxOffsetPx:  p.Predictor.MaxOffsetPx,

		NearMaxPx:         p.Synthesizer.NearMaxPx,
		MediumMaxPx:       p.Synthesizer.MediumMaxPx,
		CoarseRatio:       p.Synthesizer.CoarseRatio,
		FineGain:          p.Synthesizer.FineGain,
		SatisfiedRadiusPx: p.Synthesizer.SatisfiedRadiusPx,
		ConversionFactor:  p.Synthesizer.ConversionFactor,

		SampleWindow:   p.Tuner.WindowSize,
		LowAccuracy:    p.Tuner.LowAccuracy,
		HighAccuracy:   p.Tuner.HighAccuracy,
		DecreaseFactor: p.Tuner.DecreaseFactor,
		IncreaseFactor: p.Tuner.IncreaseFactor,
		MinGain:        p.Gains.MinGain,
		MaxGain:        p.Gains.MaxGain,
		NearGain:       p.Gains.Near,
		MediumGain:     p.Gains.Medium,
		FarGain:        p.Gains.Far,

		FailureThreshold: a.FailureThreshold,
		SummaryWindow:    a.SummaryWindow,
		FallbackGain:     f.Gain,
		AimOffsetRatio:   p.AimOffsetRatio,
	}
	if err := validator.New().Struct(check); err != nil {
		return Resolved{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return Resolved{Predictive: p, Fallback: f, Arbiter: a}, nil
}

func overrideInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func overrideFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}
