// Package puct implements the PUCT child-selection policy: the AZ and SBLE
// scoring variants, virtual loss application, and terminal/mate/tablebase
// domination rules. Grounded on the cPuct formula in
// _examples/janpfeifer-hiveGo/internal/searchers/mcts/mcts.go and the
// Select method in _examples/Elvenson-alphabeth/mcts/node.go, with the
// apply-virtual-loss-before-descend idiom carried over from the teacher's
// pkg/mcts/ucb.go and pkg/mcts/search.go.
package puct

import (
	"sync"

	math32 "github.com/chewxy/math32"

	"github.com/mctschess/engine/pkg/node"
)

// Config holds the tunables from SPEC_FULL.md §6 that this package reads.
type Config struct {
	ExplorationRateBase          float32
	ExplorationRateInit          float32
	VirtualLossCoefficient       float32
	UseSblePuct                  bool
	LinearExplorationRate        float32
	LinearExplorationBase        float32
	BackpropagationPuctThreshold float32
	MovingAverageCap             int32
	MovingAverageBuild           int32
	MateExplorationRate          float32
}

// DefaultConfig mirrors commonly used AlphaZero-style constants, analogous
// to the teacher's mcts.ExplorationParam default in pkg/mcts/vars.go.
func DefaultConfig() Config {
	return Config{
		ExplorationRateBase:    19652,
		ExplorationRateInit:    1.25,
		VirtualLossCoefficient: 1.0,
		LinearExplorationRate:  0,
		LinearExplorationBase:  0,
		MovingAverageCap:       1 << 20,
		MovingAverageBuild:     8,
		MateExplorationRate:    0.25,
	}
}

// scratchPool holds reusable per-goroutine scratch vectors so SelectChild
// never allocates on the hot path (SPEC_FULL.md §4.C: "computed into a
// thread-local scratch vector to avoid allocation").
var scratchPool = sync.Pool{
	New: func() any { return make([]float32, 0, 64) },
}

// Selection is the result of SelectChild: the chosen child, its index in
// the parent's child array, and the backprop weight to credit it with
// (SPEC_FULL.md §4.C: "SelectChild returns a weighted node").
type Selection struct {
	Child  *node.Node
	Index  int
	Weight int32
}

// SelectChild scores every child of an Expanded parent and returns the
// best, applying virtual loss to the chosen child before returning (so the
// caller can descend immediately). Ties are broken by lower index.
func SelectChild(parent *node.Node, cfg Config) Selection {
	children := parent.Children()
	if len(children) == 0 {
		return Selection{}
	}

	if sel, ok := selectDominatingMate(children); ok {
		sel.Child.ApplyVirtualLoss()
		return sel
	}

	scratch := scratchPool.Get().([]float32)
	scratch = scratch[:0]
	defer func() {
		scratchPool.Put(scratch[:0])
	}()

	var parentVirtualN float32
	for i := range children {
		parentVirtualN += float32(children[i].VisitCount()) + float32(children[i].VisitingCount())
	}

	cPuct := math32.Log((parentVirtualN+cfg.ExplorationRateBase+1)/cfg.ExplorationRateBase) + cfg.ExplorationRateInit

	bestIdx := 0
	bestScore := float32(math32.Inf(-1))
	for i := range children {
		c := &children[i]
		score := score(c, parentVirtualN, cPuct, cfg)
		scratch = append(scratch, score)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	chosen := &children[bestIdx]
	chosen.ApplyVirtualLoss()

	weight := int32(1)
	if isConverged(chosen, parentVirtualN) {
		weight = 2
	}

	return Selection{Child: chosen, Index: bestIdx, Weight: weight}
}

// BackpropWeight implements the backpropagationPuctThreshold skip-credit
// gate (SPEC_FULL.md §4.C/§9): baseWeight is scaled to zero if chosen's
// AZ-PUCT score, re-evaluated against parent's current (post-simulation)
// stats, now falls more than cfg.BackpropagationPuctThreshold below the
// best sibling's score. A threshold of zero (the default) disables the
// gate entirely, matching the teacher library's "apply every sample"
// default. This only affects credit assignment on the way back up; the
// visit/virtual-loss accounting in Node.CreditBackprop always runs
// regardless of the returned weight.
func BackpropWeight(parent, chosen *node.Node, baseWeight int32, cfg Config) int32 {
	if cfg.BackpropagationPuctThreshold <= 0 || parent == nil {
		return baseWeight
	}
	children := parent.Children()
	if len(children) == 0 {
		return baseWeight
	}

	var parentVirtualN float32
	for i := range children {
		parentVirtualN += float32(children[i].VisitCount()) + float32(children[i].VisitingCount())
	}
	cPuct := math32.Log((parentVirtualN+cfg.ExplorationRateBase+1)/cfg.ExplorationRateBase) + cfg.ExplorationRateInit

	bestScore := float32(math32.Inf(-1))
	var chosenScore float32
	found := false
	for i := range children {
		c := &children[i]
		s := score(c, parentVirtualN, cPuct, cfg)
		if c == chosen {
			chosenScore = s
			found = true
		}
		if s > bestScore {
			bestScore = s
		}
	}
	if !found || bestScore-chosenScore > cfg.BackpropagationPuctThreshold {
		return 0
	}
	return baseWeight
}

// score computes one child's AZ (optionally SBLE-augmented) PUCT score.
func score(c *node.Node, parentVirtualN, cPuct float32, cfg Config) float32 {
	if t := c.Terminal(); !t.IsAbsent() {
		return clampTablebase(c, t.MateScore(cfg.MateExplorationRate))
	}

	w := float32(c.ValueWeight())
	vl := float32(c.VisitingCount())
	v := c.Value()
	vPrime := v
	if w+vl > 0 {
		vPrime = (v*w - cfg.VirtualLossCoefficient*vl) / (w + vl)
	}
	vPrime = clampTablebase(c, vPrime)

	n := float32(c.VisitCount())
	nTilde := n + vl

	az := vPrime + cPuct*c.Prior*math32.Sqrt(parentVirtualN)/(1+nTilde)

	if !cfg.UseSblePuct || parentVirtualN <= 0 {
		return az
	}
	linear := cfg.LinearExplorationRate * (cfg.LinearExplorationBase - nTilde/parentVirtualN)
	return az + linear
}

func clampTablebase(c *node.Node, v float32) float32 {
	switch c.TablebaseBound() {
	case node.TablebaseBoundExact:
		return c.TablebaseScore()
	case node.TablebaseBoundLower:
		if v < c.TablebaseScore() {
			return c.TablebaseScore()
		}
	case node.TablebaseBoundUpper:
		if v > c.TablebaseScore() {
			return c.TablebaseScore()
		}
	}
	return v
}

// isConverged reports whether a child subtree has accumulated a dominant
// share of the parent's virtual visits, in which case SelectChild credits
// it with extra backprop weight (SPEC_FULL.md §4.C: "higher when the child
// subtree has converged").
func isConverged(c *node.Node, parentVirtualN float32) bool {
	if parentVirtualN <= 0 {
		return false
	}
	share := (float32(c.VisitCount()) + float32(c.VisitingCount())) / parentVirtualN
	return share > 0.9 && c.VisitCount() > 32
}

// selectDominatingMate implements the "terminal/mate children always
// dominate" rule from SPEC_FULL.md §4.C: if any child is an own-mate, pick
// the shortest; if every child is an opponent-mate, pick the longest
// (most-delaying). Returns ok=false if neither condition holds, so the
// caller falls through to normal PUCT scoring.
func selectDominatingMate(children []node.Node) (Selection, bool) {
	bestOwn := -1
	bestOwnDist := int(^uint(0) >> 1)
	for i := range children {
		if t := children[i].Terminal(); t.IsOwnMate() {
			if d := t.MateDistance(); d < bestOwnDist {
				bestOwnDist = d
				bestOwn = i
			}
		}
	}
	if bestOwn >= 0 {
		return Selection{Child: &children[bestOwn], Index: bestOwn, Weight: 1}, true
	}

	allOpponentMate := true
	bestDelay := -1
	bestDelayDist := -1
	for i := range children {
		t := children[i].Terminal()
		if !t.IsOpponentMate() {
			allOpponentMate = false
			break
		}
		if d := t.MateDistance(); d > bestDelayDist {
			bestDelayDist = d
			bestDelay = i
		}
	}
	if allOpponentMate && bestDelay >= 0 {
		return Selection{Child: &children[bestDelay], Index: bestDelay, Weight: 1}, true
	}
	return Selection{}, false
}
