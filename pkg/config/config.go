// Package config defines the engine's configuration surface: an immutable
// value built once via a fluent builder and handed by the driver to workers
// as a read-only reference (SPEC_FULL.md §9: "replace the process-wide
// configuration with an immutable config value"). Grounded on the teacher's
// mcts.Limits fluent-builder pattern (pkg/mcts/limits.go), generalized from
// search limits to the whole engine's options (SPEC_FULL.md §6).
package config

import "time"

// Config holds every option named in SPEC_FULL.md §6. Zero value is not
// meaningful; use New() to start from defaults.
type Config struct {
	NumWorkers          int
	PredictionBatchSize int
	SearchThreads       int
	SearchParallelism   int
	NumSimulations      uint32
	MaxMoves            int
	NumSamplingMoves    int

	RootDirichletAlpha      float32
	RootExplorationFraction float32

	ExplorationRateBase          float32
	ExplorationRateInit          float32
	UseSblePuct                  bool
	LinearExplorationRate        float32
	LinearExplorationBase        float32
	VirtualLossCoefficient       float32
	MovingAverageBuild           int32
	MovingAverageCap             int32
	BackpropagationPuctThreshold float32

	PredictionCacheRequestGibibytes float64
	PredictionCacheMinGibibytes     float64
	PredictionCacheMaxPly           int32

	TimeControlSafetyBufferMilliseconds int
	TimeControlFractionOfRemaining      float64

	SearchGuiUpdateIntervalNodes uint32

	EliminationFraction        float64
	EliminationRootVisitCount  uint32

	// PredictorFailureThreshold is the number of consecutive
	// PredictorUnavailable failures (SPEC_FULL.md §7) a driver tolerates
	// before giving up on the configured predictor and substituting the
	// uniform fallback for the rest of the search.
	PredictorFailureThreshold int

	frozen bool
}

// New returns a Config populated with reasonable defaults, matching the
// teacher's DefaultLimits() pattern (pkg/mcts/limits.go).
func New() *Config {
	return &Config{
		NumWorkers:          4,
		PredictionBatchSize: 16,
		SearchThreads:       1,
		SearchParallelism:   16,
		NumSimulations:      800,
		MaxMoves:            512,
		NumSamplingMoves:    30,

		RootDirichletAlpha:      0.3,
		RootExplorationFraction: 0.25,

		ExplorationRateBase:          19652,
		ExplorationRateInit:          1.25,
		VirtualLossCoefficient:       1.0,
		MovingAverageBuild:           8,
		MovingAverageCap:             1 << 20,
		BackpropagationPuctThreshold: 0,

		PredictionCacheRequestGibibytes: 1,
		PredictionCacheMinGibibytes:     0.125,
		PredictionCacheMaxPly:           0,

		TimeControlSafetyBufferMilliseconds: 50,
		TimeControlFractionOfRemaining:      20,

		SearchGuiUpdateIntervalNodes: 2000,

		EliminationFraction:       4,
		EliminationRootVisitCount: 200,

		PredictorFailureThreshold: 3,
	}
}

func (c *Config) clone() *Config {
	cp := *c
	cp.frozen = false
	return &cp
}

func (c *Config) mustNotBeFrozen() {
	if c.frozen {
		panic("config: cannot mutate a frozen Config; call clone-returning setters before Freeze")
	}
}

// Freeze returns an immutable copy of c. Only a frozen Config should be
// handed to a driver; the setters below all refuse to mutate a frozen
// value, matching SPEC_FULL.md §9's "the only mutable process-wide
// resource is the prediction cache" — everything else becomes read-only
// once the engine starts.
func (c *Config) Freeze() *Config {
	cp := c.clone()
	cp.frozen = true
	return cp
}

// SetNumWorkers sets the worker fan-out count.
func (c *Config) SetNumWorkers(n int) *Config {
	c.mustNotBeFrozen()
	cp := c.clone()
	cp.NumWorkers = n
	return cp
}

// SetSearchParallelism sets the per-worker in-flight game count.
func (c *Config) SetSearchParallelism(n int) *Config {
	c.mustNotBeFrozen()
	cp := c.clone()
	cp.SearchParallelism = n
	return cp
}

// SetPredictionBatchSize sets the predictor's fixed batch size.
func (c *Config) SetPredictionBatchSize(n int) *Config {
	c.mustNotBeFrozen()
	cp := c.clone()
	cp.PredictionBatchSize = n
	return cp
}

// SetNumSimulations sets the self-play per-move simulation budget.
func (c *Config) SetNumSimulations(n uint32) *Config {
	c.mustNotBeFrozen()
	cp := c.clone()
	cp.NumSimulations = n
	return cp
}

// SetUseSblePuct toggles the SBLE-PUCT linear exploration term.
func (c *Config) SetUseSblePuct(use bool) *Config {
	c.mustNotBeFrozen()
	cp := c.clone()
	cp.UseSblePuct = use
	return cp
}

// SetPredictionCacheGibibytes sets the requested and minimum cache sizes.
func (c *Config) SetPredictionCacheGibibytes(request, min float64) *Config {
	c.mustNotBeFrozen()
	cp := c.clone()
	cp.PredictionCacheRequestGibibytes = request
	cp.PredictionCacheMinGibibytes = min
	return cp
}

// SetPredictorFailureThreshold sets how many consecutive predictor failures
// are tolerated before the driver falls back to the uniform predictor for
// the remainder of the search.
func (c *Config) SetPredictorFailureThreshold(n int) *Config {
	c.mustNotBeFrozen()
	cp := c.clone()
	cp.PredictorFailureThreshold = n
	return cp
}

// SafetyBuffer returns TimeControlSafetyBufferMilliseconds as a Duration.
func (c *Config) SafetyBuffer() time.Duration {
	return time.Duration(c.TimeControlSafetyBufferMilliseconds) * time.Millisecond
}
