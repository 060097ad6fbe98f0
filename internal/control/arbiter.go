package control

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/servotrack/servotrack/internal/command"
	"github.com/servotrack/servotrack/internal/monitoring"
	"github.com/servotrack/servotrack/internal/predict"
	"github.com/servotrack/servotrack/internal/ring"
	"github.com/servotrack/servotrack/internal/track"
)

// State is the arbiter's view of the predictive strategy.
type State string

const (
	// StateActive routes ticks to the predictive pipeline.
	StateActive State = "active"
	// StateDegraded is entered when the failure streak hits the
	// threshold; it promotes to StateSuspended on the next tick.
	StateDegraded State = "degraded"
	// StateSuspended routes ticks to the fallback strategy while the
	// predictive pipeline is shadow-evaluated.
	StateSuspended State = "suspended"
)

// TargetContext is the per-target tracking state. It is created when a
// target identity first appears and destroyed on timeout or when the
// satisfied-distance condition releases the target.
type TargetContext struct {
	ID  uuid.UUID
	Key string

	Stabilizer *track.Stabilizer
	Predictor  *predict.Predictor

	FirstSeen time.Time
	LastSeen  time.Time
}

// ArbiterConfig holds configuration parameters for strategy
// arbitration.
type ArbiterConfig struct {
	FailureThreshold int           // Consecutive actuator failures before suspension
	Cooldown         time.Duration // Suspension length before automatic reactivation
	TargetTimeout    time.Duration // Idle time before a target context is destroyed
	SummaryWindow    int           // Outcomes retained per strategy for summaries
}

// DefaultArbiterConfig returns default arbitration configuration.
func DefaultArbiterConfig() ArbiterConfig {
	return ArbiterConfig{
		FailureThreshold: 3,
		Cooldown:         5 * time.Second,
		TargetTimeout:    2 * time.Second,
		SummaryWindow:    50,
	}
}

// TickResult is the outcome of one arbiter tick.
type TickResult struct {
	TargetID uuid.UUID
	Strategy string
	State    State
	Commands []command.MovementCommand
	Sample   command.PerformanceSample

	Satisfied bool // Correction was under the satisfied radius
	Released  bool // Target context was destroyed this tick
}

// PerformanceSummary reports recent reliability per strategy, intended
// for an external logging or metrics collaborator.
type PerformanceSummary struct {
	Strategy          string  `json:"strategy"`
	SuccessRate       float64 `json:"success_rate"`
	MeanLatencyMs     float64 `json:"mean_latency_ms"`
	SamplesConsidered int     `json:"samples_considered"`
}

type outcome struct {
	success   bool
	latencyMs float64
}

// Arbiter owns the strategies and the per-target contexts, and is the
// only component that talks to the actuator and the observation
// source. One Advance call is one full tick; a single mutex serializes
// entry since the pipeline is not designed for concurrent ticks.
type Arbiter struct {
	mu     sync.Mutex
	config ArbiterConfig

	predictive *PredictiveStrategy
	fallback   *FallbackStrategy

	state       State
	failStreak  int
	suspendedAt time.Time

	targets map[string]*TargetContext
	history map[string]*ring.Buffer[outcome]

	now func() time.Time
}

// NewArbiter creates an arbiter over the two strategies, starting with
// the predictive strategy active.
func NewArbiter(config ArbiterConfig, predictive *PredictiveStrategy, fallback *FallbackStrategy) *Arbiter {
	return &Arbiter{
		config:     config,
		predictive: predictive,
		fallback:   fallback,
		state:      StateActive,
		targets:    make(map[string]*TargetContext),
		history:    make(map[string]*ring.Buffer[outcome]),
		now:        time.Now,
	}
}

// Advance processes one observation for one target identity: a full
// pipeline pass through whichever strategy is active, followed by
// failure accounting and a gain tuning pass. The returned error
// reports actuator failure for this tick; the arbiter has already
// absorbed it into the state machine, and the next tick retries with
// fresh data.
func (a *Arbiter) Advance(targetKey string, obs track.Observation) (TickResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.step(now)
	a.sweep(now)

	tc := a.context(targetKey, now)
	tc.LastSeen = now

	var strat Strategy = a.predictive
	suspended := a.state == StateSuspended
	if suspended {
		strat = a.fallback
		a.predictive.Shadow(tc, obs)
	}

	res, err := strat.Process(tc, obs)
	if err != nil || res.Satisfied || len(res.Commands) > 0 {
		a.record(strat.Name(), res.Sample, err)
	}

	if !suspended {
		if err != nil {
			a.failStreak++
			if a.failStreak >= a.config.FailureThreshold && a.state == StateActive {
				a.state = StateDegraded
				monitoring.Logf("control: predictive strategy degraded after %d consecutive failures", a.failStreak)
			}
		} else {
			a.failStreak = 0
		}
		// Gain adjustments happen here, strictly between synthesis
		// cycles.
		a.predictive.Tune()
	}

	out := TickResult{
		TargetID:  tc.ID,
		Strategy:  strat.Name(),
		State:     a.state,
		Commands:  res.Commands,
		Sample:    res.Sample,
		Satisfied: res.Satisfied,
	}
	if res.Satisfied {
		delete(a.targets, targetKey)
		out.Released = true
		monitoring.Logf("control: target %s released, correction under satisfied radius", tc.ID)
	}
	return out, err
}

// step runs the state machine transitions that happen at tick
// boundaries: degraded promotes to suspended, and a suspension past
// its cooldown reactivates.
func (a *Arbiter) step(now time.Time) {
	switch a.state {
	case StateDegraded:
		a.state = StateSuspended
		a.suspendedAt = now
		monitoring.Logf("control: predictive strategy suspended, fallback takes over")
	case StateSuspended:
		if now.Sub(a.suspendedAt) >= a.config.Cooldown {
			a.state = StateActive
			a.failStreak = 0
			monitoring.Logf("control: predictive strategy reactivated after cooldown")
		}
	}
}

// sweep destroys target contexts that have not been observed within
// the timeout.
func (a *Arbiter) sweep(now time.Time) {
	for key, tc := range a.targets {
		if now.Sub(tc.LastSeen) > a.config.TargetTimeout {
			delete(a.targets, key)
			monitoring.Logf("control: target %s released, no observation for %s", tc.ID, a.config.TargetTimeout)
		}
	}
}

func (a *Arbiter) context(key string, now time.Time) *TargetContext {
	if tc, ok := a.targets[key]; ok {
		return tc
	}
	stab, pred := a.predictive.NewContext()
	tc := &TargetContext{
		ID:         uuid.New(),
		Key:        key,
		Stabilizer: stab,
		Predictor:  pred,
		FirstSeen:  now,
		LastSeen:   now,
	}
	a.targets[key] = tc
	monitoring.Logf("control: tracking new target %s (%s)", tc.ID, key)
	return tc
}

func (a *Arbiter) record(strategy string, sample command.PerformanceSample, err error) {
	h, ok := a.history[strategy]
	if !ok {
		h = ring.New[outcome](a.config.SummaryWindow)
		a.history[strategy] = h
	}
	h.Push(outcome{success: err == nil && sample.Success, latencyMs: sample.DurationMs})
}

// Reset manually reactivates the predictive strategy, clearing the
// failure streak.
func (a *Arbiter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateActive
	a.failStreak = 0
	monitoring.Logf("control: predictive strategy manually reset to active")
}

// State returns the predictive strategy's current state.
func (a *Arbiter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// TargetCount returns the number of live tracking contexts.
func (a *Arbiter) TargetCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.targets)
}

// Summaries returns recent success rate and mean latency per strategy.
func (a *Arbiter) Summaries() []PerformanceSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]PerformanceSummary, 0, 2)
	for _, name := range []string{a.predictive.Name(), a.fallback.Name()} {
		s := PerformanceSummary{Strategy: name}
		if h, ok := a.history[name]; ok && h.Len() > 0 {
			latencies := make([]float64, 0, h.Len())
			successes := 0
			for i := 0; i < h.Len(); i++ {
				o := h.At(i)
				latencies = append(latencies, o.latencyMs)
				if o.success {
					successes++
				}
			}
			s.SuccessRate = float64(successes) / float64(h.Len())
			s.MeanLatencyMs = stat.Mean(latencies, nil)
			s.SamplesConsidered = h.Len()
		}
		out = append(out, s)
	}
	return out
}
