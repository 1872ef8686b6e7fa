// Package selfplay implements the SelfPlayGame state machine and
// SelfPlayWorker tick loop from SPEC_FULL.md §4.E/§4.F: each game owns a
// working root into the arena and a scratch position advanced move-by-move
// along the current simulation path, suspending only at ExpandAndEvaluate
// on a prediction-cache miss. Grounded on the teacher's apply-virtual-loss-
// before-descend idiom (pkg/mcts/search.go; its runtime.Gosched() retry is
// not carried over: a lost expansion race is not retried) and the
// suspend-for-batch shape of other_examples/.../batched_mcts.go, with the
// root-specific Dirichlet noise step grounded on
// _examples/Elvenson-alphabeth/mcts/tree.go's dirichletSample construction.
package selfplay

import (
	"github.com/IlikeChooros/dragontoothmg"

	"github.com/mctschess/engine/pkg/cache"
	"github.com/mctschess/engine/pkg/config"
	"github.com/mctschess/engine/pkg/node"
	"github.com/mctschess/engine/pkg/position"
	"github.com/mctschess/engine/pkg/predictor"
	"github.com/mctschess/engine/pkg/puct"
)

// State is one game's place in the Working/WaitingForPrediction/Finished
// machine (SPEC_FULL.md §4.F).
type State int32

const (
	StateWorking State = iota
	StateWaitingForPrediction
	StateFinished
)

type pathStep struct {
	node   *node.Node
	parent *node.Node
	weight int32
}

// Game is one SelfPlayGame: a working root into the arena, a scratch
// position advanced along the current simulation path, and the suspended
// state needed to resume an expansion after a predictor round-trip.
type Game struct {
	Arena *node.Arena
	Pos   *position.Position

	cfg  *config.Config
	pcfg puct.Config

	state State
	path  []pathStep

	pendingNode       *node.Node
	pendingHandle     *cache.Handle
	pendingLegalMoves []dragontoothmg.Move

	rootNoiseApplied bool
	simulations      uint32
	movesPlayed      int
	seed             uint64

	// PrincipalVariationChanged is set when the most recent backpropagated
	// sample changed the root's best child (SPEC_FULL.md §4.F step 1.d).
	PrincipalVariationChanged bool
	// FailedNodeCount counts simulations aborted by FailSimulation (§4.F
	// "Failure handling").
	FailedNodeCount uint32
}

// NewGame starts a fresh self-play game at pos, owning its own arena. seed
// seeds this game's Dirichlet-noise draws, so concurrent games in the same
// worker don't share a random source.
func NewGame(pos *position.Position, cfg *config.Config, pcfg puct.Config, seed uint64) *Game {
	return NewGameAt(node.NewArena(), pos, cfg, pcfg, seed)
}

// NewGameAt starts a game against an existing arena rather than allocating a
// fresh one, so a driver searching one position can run SearchParallelism
// concurrent simulation paths against the same shared tree (SPEC_FULL.md
// §4.H): each path gets its own scratch Position (the caller should hand in
// a Position.Clone()) but every path's descent and expansion lands in the
// same Arena, exactly as §5's "the search tree: mutated by all workers"
// concurrency model describes.
func NewGameAt(arena *node.Arena, pos *position.Position, cfg *config.Config, pcfg puct.Config, seed uint64) *Game {
	pos.SetRootPly()
	return &Game{
		Arena: arena,
		Pos:   pos,
		cfg:   cfg,
		pcfg:  pcfg,
		seed:  seed,
	}
}

// State reports the game's current machine state.
func (g *Game) State() State { return g.state }

// Simulations reports how many simulations have completed since the last
// move was played (compared against Config.NumSimulations to decide when to
// pick a move).
func (g *Game) Simulations() uint32 { return g.simulations }

func (g *Game) nextSeed() uint64 {
	g.seed += 0x9e3779b97f4a7c15
	return g.seed
}

// Step runs one MCTS simulation: descend via PUCT selection applying
// virtual loss along the way, then ExpandAndEvaluate the leaf. If the leaf
// is a cache miss the game suspends in StateWaitingForPrediction and Step
// returns without completing the simulation; the caller resumes it via
// ResumeExpansion once the worker's batch predictor call returns.
func (g *Game) Step(cch *cache.Cache) {
	g.path = g.path[:0]
	cur := g.Arena.Root()

	for cur.Expanded() {
		sel := puct.SelectChild(cur, g.pcfg)
		if sel.Child == nil {
			break
		}
		g.path = append(g.path, pathStep{node: sel.Child, parent: cur, weight: sel.Weight})
		g.Pos.ApplyMove(sel.Child.Move)
		cur = sel.Child
	}

	g.expandAndEvaluate(cur, cch)
}

// expandAndEvaluate implements SPEC_FULL.md §4.A's ExpandAndEvaluate: check
// terminal, consult the cache, and either finish the simulation immediately
// (terminal or cache hit) or suspend the game for a predictor round-trip
// (cache miss).
func (g *Game) expandAndEvaluate(leaf *node.Node, cch *cache.Cache) {
	if t := leaf.Terminal(); !t.IsAbsent() {
		g.finishSimulation(leaf, t.ImmediateValue(), t)
		return
	}

	legalMoves := g.Pos.LegalMoves()
	if term, ok := g.Pos.Terminal(len(legalMoves)); ok {
		t := terminalFor(term)
		leaf.SetTerminal(t)
		g.finishSimulation(leaf, t.ImmediateValue(), t)
		return
	}

	fp := g.Pos.Fingerprint()
	if res, ok := cch.Lookup(fp); ok {
		g.publishExpansion(leaf, legalMoves, res)
		return
	}

	g.pendingNode = leaf
	g.pendingHandle = cch.Reserve(fp)
	g.pendingLegalMoves = legalMoves
	g.state = StateWaitingForPrediction
}

// terminalFor classifies a position.Termination into the node package's
// signed Terminal encoding. Checkmate is always "mate in 1" from the
// perspective of the side that just delivered it, i.e. OpponentMateIn(1)
// seen from the side to move at this (now-terminal) node.
func terminalFor(t position.Termination) node.Terminal {
	if t == position.TerminationCheckmate {
		return node.OpponentMateIn(1)
	}
	return node.Draw()
}

// ResumeExpansion is called by the worker once a suspended game's position
// has come back from a batched predictor call. It maps the predictor's raw
// logits onto the pending legal moves, publishes the result into the
// reserved cache slot, and completes the expansion exactly as a cache hit
// would have.
func (g *Game) ResumeExpansion(out predictor.Output, actionSpace int) {
	leaf := g.pendingNode
	legalMoves := g.pendingLegalMoves
	handle := g.pendingHandle

	priors := PriorsFromLogits(out.Logits, legalMoves, actionSpace)
	result := cache.Result{Value: out.Value, Priors: priors}
	if handle != nil {
		handle.Publish(result)
	}

	g.pendingNode = nil
	g.pendingHandle = nil
	g.pendingLegalMoves = nil
	g.state = StateWorking

	g.publishExpansion(leaf, legalMoves, result)
}

// publishExpansion implements §4.A steps 5-7: win the CAS, allocate
// children with (move, renormalized prior), mix in root exploration noise
// on the root's first expansion, and release-publish.
func (g *Game) publishExpansion(leaf *node.Node, legalMoves []dragontoothmg.Move, result cache.Result) {
	if !leaf.BeginExpand() {
		// Lost the expansion race (§7 ExpansionRace): another worker is
		// publishing children for this node. Discard our priors and use
		// the predictor's value for backprop anyway.
		g.finishSimulation(leaf, result.Value, node.TerminalAbsent)
		return
	}

	priors := result.Priors
	if leaf == g.Arena.Root() && !g.rootNoiseApplied {
		mixed := make([]float32, len(priors))
		copy(mixed, priors)
		node.MixDirichletNoise(mixed, g.cfg.RootDirichletAlpha, g.cfg.RootExplorationFraction, g.nextSeed())
		priors = mixed
		g.rootNoiseApplied = true
	}

	children := make([]node.Node, len(legalMoves))
	for i, mv := range legalMoves {
		children[i].Move = mv
		if i < len(priors) {
			children[i].Prior = priors[i]
		}
	}
	leaf.SetChildren(children)
	leaf.FinishExpand()

	g.finishSimulation(leaf, result.Value, node.TerminalAbsent)
}

// finishSimulation backpropagates sample (the value from the perspective of
// the side to move at leaf) up the recorded path, flipping perspective at
// every ply and applying the backpropagationPuctThreshold skip-credit gate
// (SPEC_FULL.md §4.C/§9), then promotes ancestor terminal values if
// leafTerminal is a mate (§4.B).
func (g *Game) finishSimulation(leaf *node.Node, sample float32, leafTerminal node.Terminal) {
	prevBest := g.Arena.Root().BestChild()

	v := sample
	for i := len(g.path) - 1; i >= 0; i-- {
		step := g.path[i]
		weight := puct.BackpropWeight(step.parent, step.node, step.weight, g.pcfg)
		step.node.CreditBackprop(v, weight, g.cfg.MovingAverageCap, g.cfg.MovingAverageBuild)
		v = 1 - v
	}

	if !leafTerminal.IsAbsent() && leaf.Terminal() == leafTerminal {
		g.backpropagateMate()
	}

	updateBestChild(g.Arena.Root())
	if g.Arena.Root().BestChild() != prevBest {
		g.PrincipalVariationChanged = true
	}

	g.simulations++
	g.pendingNode = nil
}

// backpropagateMate promotes ancestor terminal values along the just-played
// path, per SPEC_FULL.md §4.B's promotion rule.
func (g *Game) backpropagateMate() {
	for i := len(g.path) - 2; i >= 0; i-- {
		promoteMate(g.path[i].node)
	}
	promoteMate(g.Arena.Root())
}

// promoteMate re-derives ancestor's terminal classification from its
// children, per SPEC_FULL.md §4.B: "MateIn(k+1) if some child is
// OpponentMateIn(k) and is the best child, or OpponentMateIn(k+1) if all
// children are MateIn(<=k)".
func promoteMate(ancestor *node.Node) {
	children := ancestor.Children()
	if len(children) == 0 {
		return
	}

	bestOppDist := -1
	allOwnMate := true
	worstOwnDist := 0
	for i := range children {
		t := children[i].Terminal()
		if t.IsOpponentMate() {
			if bestOppDist < 0 || t.MateDistance() < bestOppDist {
				bestOppDist = t.MateDistance()
			}
		}
		if !t.IsOwnMate() {
			allOwnMate = false
		} else if t.MateDistance() > worstOwnDist {
			worstOwnDist = t.MateDistance()
		}
	}

	if bestOppDist >= 0 {
		ancestor.SetTerminal(node.MateIn(bestOppDist + 1))
		return
	}
	if allOwnMate {
		ancestor.SetTerminal(node.OpponentMateIn(worstOwnDist + 1))
	}
}

// updateBestChild refreshes the advisory bestChild cache by visit-count
// argmax (SPEC_FULL.md §5: "bestChild is advisory").
func updateBestChild(n *node.Node) {
	children := n.Children()
	if len(children) == 0 {
		return
	}
	best := &children[0]
	for i := 1; i < len(children); i++ {
		if children[i].VisitCount() > best.VisitCount() {
			best = &children[i]
		}
	}
	n.SetBestChild(best)
}

// FailSimulation implements §4.F's FailNode: revert virtual loss along the
// recorded path without crediting any value, count the failure, and drop
// back to Working so the game retries from the root next tick.
func (g *Game) FailSimulation() {
	for _, step := range g.path {
		step.node.RevertVirtualLoss()
	}
	g.FailedNodeCount++
	g.path = g.path[:0]
	g.pendingNode = nil
	g.pendingHandle = nil
	g.pendingLegalMoves = nil
	g.state = StateWorking
}

// ApplyMove plays the chosen root move, prunes every sibling subtree, and
// resets per-move state so the next batch of simulations starts fresh
// (SPEC_FULL.md §4.F step 3). finished reports whether the resulting
// position has no legal continuation.
func (g *Game) ApplyMove(chosen *node.Node) (finished bool) {
	g.Pos.ApplyMove(chosen.Move)
	g.Arena.PruneExcept(chosen)
	g.Pos.SetRootPly()

	g.path = g.path[:0]
	g.pendingNode = nil
	g.pendingHandle = nil
	g.pendingLegalMoves = nil
	g.rootNoiseApplied = false
	g.simulations = 0
	g.movesPlayed++
	g.PrincipalVariationChanged = false

	legalMoves := g.Pos.LegalMoves()
	_, terminal := g.Pos.Terminal(len(legalMoves))
	if terminal {
		g.state = StateFinished
	} else {
		g.state = StateWorking
	}
	return terminal
}

// MovesPlayed reports how many moves this game has played so far, used to
// gate the NumSamplingMoves temperature-sampling window.
func (g *Game) MovesPlayed() int { return g.movesPlayed }
