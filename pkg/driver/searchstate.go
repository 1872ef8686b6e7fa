package driver

import (
	"time"

	"github.com/mctschess/engine/pkg/node"
)

// SearchState tracks everything the controller needs to decide when to stop
// and what to print, mirroring the teacher's per-search mutable counters
// (pkg/mcts/limiter.go's Timer + areSetMask bookkeeping) generalized to a
// shared-tree multi-worker search instead of one limiter per tree.
type SearchState struct {
	searchStart time.Time
	lastVisits  int32

	// positionFen and guiLine are written only by the controller while
	// workers are parked at the barrier (SPEC_FULL.md §5's "non-atomic
	// fields" note); every other field here is touched solely by the
	// controller goroutine anyway, so no atomics are needed.
	positionFen string
	guiLine     string
}

// Reset clears counters and captures searchStart, matching §4.H step 2
// ("Reset SearchState: clear counters, set time control, capture
// searchStart").
func (s *SearchState) Reset(fen string) {
	s.searchStart = time.Now()
	s.lastVisits = 0
	s.positionFen = fen
	s.guiLine = ""
}

// Elapsed returns time since Reset.
func (s *SearchState) Elapsed() time.Duration {
	return time.Since(s.searchStart)
}

// shouldEliminate implements the §9 resolution of
// eliminationFraction/eliminationRootVisitCount: once the root has
// accumulated at least eliminationRootVisitCount visits, estimate how many
// more visits the remaining time budget could produce (from the observed
// visits-per-second rate) and stop early if the leading child's visit
// margin over the runner-up already exceeds that remaining capacity divided
// by eliminationFraction — i.e. the outcome is decided with a safety
// margin, not merely ahead on a coin flip.
func shouldEliminate(root *node.Node, elapsed, budget time.Duration, fraction float64, minVisits uint32) bool {
	children := root.Children()
	if len(children) < 2 || fraction <= 0 {
		return false
	}

	var total int32
	var best, second int32
	for i := range children {
		v := children[i].VisitCount()
		total += v
		if v > best {
			second = best
			best = v
		} else if v > second {
			second = v
		}
	}
	if uint32(total) < minVisits || elapsed <= 0 {
		return false
	}

	remaining := budget - elapsed
	if remaining <= 0 {
		return false
	}
	rate := float64(total) / elapsed.Seconds()
	remainingVisits := rate * remaining.Seconds()

	margin := float64(best - second)
	return margin > remainingVisits/fraction
}

