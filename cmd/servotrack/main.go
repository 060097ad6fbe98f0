// Package main runs the positioning controller closed-loop against a
// synthetic moving target with a mock actuator. It is the quickest way
// to observe tuning behavior end to end: observations with injected
// noise go in, strategy summaries and adapted gains come out.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/servotrack/servotrack/internal/actuator"
	"github.com/servotrack/servotrack/internal/config"
	"github.com/servotrack/servotrack/internal/control"
	"github.com/servotrack/servotrack/internal/store"
	"github.com/servotrack/servotrack/internal/track"
)

// Config holds configuration for the simulation run.
type Config struct {
	ConfigPath string
	DBPath     string
	Ticks      int
	TickPeriod time.Duration
	Seed       int64
	JitterPx   float64
	SpeedPx    float64
	FailRate   float64
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.ConfigPath, "config", "", "Path to tuning JSON (defaults used when empty)")
	flag.StringVar(&cfg.DBPath, "db", "", "Optional sqlite path for outcome persistence")
	flag.IntVar(&cfg.Ticks, "ticks", 600, "Number of simulation ticks")
	flag.DurationVar(&cfg.TickPeriod, "tick", 16*time.Millisecond, "Simulated tick period")
	flag.Int64Var(&cfg.Seed, "seed", 1, "Random seed")
	flag.Float64Var(&cfg.JitterPx, "jitter", 2.0, "Observation noise, px stddev")
	flag.Float64Var(&cfg.SpeedPx, "speed", 250, "Peak target speed, px/s")
	flag.Float64Var(&cfg.FailRate, "fail-rate", 0, "Probability an actuator call is rejected")
	flag.Parse()
	return cfg
}

func main() {
	if err := run(parseFlags()); err != nil {
		log.Fatal(err)
	}
}

func run(cfg Config) error {
	tuning := config.EmptyTuningConfig()
	if cfg.ConfigPath != "" {
		loaded, err := config.LoadTuningConfig(cfg.ConfigPath)
		if err != nil {
			return err
		}
		tuning = loaded
	}
	resolved, err := tuning.Resolve()
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	mock := actuator.NewMock()
	if cfg.FailRate > 0 {
		mock.FailFunc = func(dx, dy float64) error {
			if rng.Float64() < cfg.FailRate {
				return actuator.ErrRejected
			}
			return nil
		}
	}

	predictive := control.NewPredictiveStrategy(resolved.Predictive, mock, mock)
	fallback := control.NewFallbackStrategy(resolved.Fallback, mock, mock)
	arb := control.NewArbiter(resolved.Arbiter, predictive, fallback)

	var db *store.Store
	var sessionID string
	if cfg.DBPath != "" {
		db, err = store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		sessionID, err = db.StartSession(fmt.Sprintf("simulation seed=%d ticks=%d", cfg.Seed, cfg.Ticks))
		if err != nil {
			return err
		}
		defer db.EndSession(sessionID)
	}

	// The target traces a lissajous figure so speed and direction keep
	// changing; amplitude is sized so the corrections sweep all three
	// distance buckets.
	const cx, cy = 400.0, 300.0
	amp := cfg.SpeedPx // px
	omega := cfg.SpeedPx / amp

	start := time.Now()
	var sumErr float64
	failedTicks := 0
	for i := 0; i < cfg.Ticks; i++ {
		t := float64(i) * cfg.TickPeriod.Seconds()
		targetX := cx + amp*math.Sin(omega*t)
		targetY := cy + 0.6*amp*math.Sin(2*omega*t+math.Pi/3)

		obs := track.Observation{
			X:             targetX + rng.NormFloat64()*cfg.JitterPx,
			Y:             targetY + rng.NormFloat64()*cfg.JitterPx,
			TimeUnixNanos: start.Add(time.Duration(i+1) * cfg.TickPeriod).UnixNano(),
			Confidence:    0.85 + 0.15*rng.Float64(),
		}

		res, err := arb.Advance("sim-target", obs)
		if err != nil {
			failedTicks++
		}

		px, py := mock.Position()
		sumErr += math.Hypot(targetX-px, targetY-py)

		if db != nil && (len(res.Commands) > 0 || res.Satisfied || err != nil) {
			if dbErr := db.RecordSample(sessionID, res.Strategy, res.Sample); dbErr != nil {
				return dbErr
			}
		}
	}

	fmt.Printf("simulated %d ticks at %s (%d actuator failures)\n", cfg.Ticks, cfg.TickPeriod, failedTicks)
	fmt.Printf("mean tracking error: %.1f px\n", sumErr/float64(cfg.Ticks))
	fmt.Printf("final state: %s, live targets: %d\n", arb.State(), arb.TargetCount())

	gains := predictive.Gains()
	fmt.Printf("adapted gains: near=%.2f medium=%.2f far=%.2f (bounds [%.1f, %.1f])\n",
		gains.Near, gains.Medium, gains.Far, gains.MinGain, gains.MaxGain)

	for _, s := range arb.Summaries() {
		fmt.Printf("strategy %-10s success=%5.1f%% mean_latency=%.2fms samples=%d\n",
			s.Strategy, s.SuccessRate*100, s.MeanLatencyMs, s.SamplesConsidered)
	}
	return nil
}
