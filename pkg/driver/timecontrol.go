package driver

import (
	"time"

	"github.com/mctschess/engine/pkg/config"
)

// Side identifies which color's clock a TimeControl's per-side fields
// describe.
type Side int

const (
	White Side = iota
	Black
)

// TimeControl is the external time/node/mate budget input described in
// SPEC_FULL.md §6, grounded on hailam-chessplay's UCILimits
// (internal/engine/timeman.go).
type TimeControl struct {
	Infinite  bool
	Nodes     uint64
	Mate      int32 // stop once a mate in <= Mate moves is proven at the root
	MoveTime  time.Duration
	Remaining [2]time.Duration
	Increment [2]time.Duration
	MovesToGo int

	// EliminationFraction/EliminationRootVisitCount override the engine
	// defaults from Config when non-zero (SPEC_FULL.md §9 open question).
	EliminationFraction       float64
	EliminationRootVisitCount uint32
}

// Budget computes the effective per-move time budget for the side to move,
// grounded on TimeManager.Init's sudden-death allocation formula
// (hailam-chessplay's internal/engine/timeman.go): explicit MoveTime wins
// outright; otherwise remaining/fractionOfRemaining plus most of the
// increment, minus the configured safety buffer, floored at zero so a
// caller never computes a negative deadline.
func (tc TimeControl) Budget(us Side, cfg *config.Config) time.Duration {
	if tc.Infinite {
		return time.Hour
	}
	if tc.MoveTime > 0 {
		return tc.MoveTime
	}

	remaining := tc.Remaining[us]
	if remaining <= 0 {
		return time.Hour
	}

	fraction := cfg.TimeControlFractionOfRemaining
	if fraction <= 0 {
		fraction = 1
	}
	budget := time.Duration(float64(remaining) / fraction)
	budget += tc.Increment[us] * 9 / 10
	budget -= cfg.SafetyBuffer()

	if budget < 0 {
		budget = 0
	}
	return budget
}

// eliminationFraction resolves this TimeControl's override, falling back to
// cfg's default.
func (tc TimeControl) eliminationFraction(cfg *config.Config) float64 {
	if tc.EliminationFraction > 0 {
		return tc.EliminationFraction
	}
	return cfg.EliminationFraction
}

func (tc TimeControl) eliminationRootVisitCount(cfg *config.Config) uint32 {
	if tc.EliminationRootVisitCount > 0 {
		return tc.EliminationRootVisitCount
	}
	return cfg.EliminationRootVisitCount
}
