// Package driver implements the "Driver" component from SPEC_FULL.md §4.H:
// it owns the worker goroutines, the shared search tree, and a controller
// loop that releases work through the coordinator barrier, polls time
// control, and prints the principal variation. Grounded on the teacher's
// pkg/bench/versus_arena.go worker-fan-out shape and pkg/mcts/search.go's
// single-search control flow, generalized from "one goroutine per tree" to
// "many goroutines over one shared tree".
package driver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IlikeChooros/dragontoothmg"
	"k8s.io/klog/v2"

	"github.com/mctschess/engine/pkg/cache"
	"github.com/mctschess/engine/pkg/config"
	"github.com/mctschess/engine/pkg/coordinator"
	"github.com/mctschess/engine/pkg/errs"
	"github.com/mctschess/engine/pkg/node"
	"github.com/mctschess/engine/pkg/position"
	"github.com/mctschess/engine/pkg/predictor"
	"github.com/mctschess/engine/pkg/puct"
	"github.com/mctschess/engine/pkg/selfplay"
)

// Driver owns one search at a time: a shared Arena, the worker pool, and the
// coordinator barrier those workers wait on between rounds.
type Driver struct {
	Config    *config.Config
	PuctCfg   puct.Config
	Predictor predictor.Predictor
	Cache     *cache.Cache

	ActionSpace int
	Features    int

	Listener Listener

	coord *coordinator.WorkCoordinator
	state SearchState

	// activePredictor is the predictor actually used by in-flight Predict
	// calls. It starts out pointing at Predictor, and is swapped to a
	// uniform fallback (never swapped back) once predictorFailureStreak
	// crosses Config.PredictorFailureThreshold (SPEC_FULL.md §7
	// PredictorUnavailable: "if sustained, the driver emits a one-time
	// warning" — the sustained case also needs a predictor that actually
	// keeps succeeding, not just another warning).
	activePredictor        atomic.Pointer[predictor.Predictor]
	predictorFailureStreak atomic.Int32
	predictorFellBack      atomic.Bool

	// abortErr is set by the first worker to observe a fatal
	// PredictorError (§7: "fatal ... driver aborts the search"); Go returns
	// it instead of a best move once every worker has exited.
	abortErr  atomic.Pointer[error]
	abortOnce sync.Once

	predictorWarnOnce sync.Once
	warmUpOnce        sync.Once
}

// New builds a driver ready to run searches. cfg should already be frozen
// (config.Config.Freeze) before being handed to a driver, per SPEC_FULL.md
// §9's "the only mutable process-wide resource is the prediction cache".
func New(cfg *config.Config, pcfg puct.Config, pred predictor.Predictor, cch *cache.Cache, actionSpace, features int) *Driver {
	d := &Driver{
		Config:      cfg,
		PuctCfg:     pcfg,
		Predictor:   pred,
		Cache:       cch,
		ActionSpace: actionSpace,
		Features:    features,
		coord:       coordinator.New(),
	}
	active := pred
	d.activePredictor.Store(&active)
	return d
}

// Go runs one search to completion against pos under tc, implementing
// SPEC_FULL.md §4.H's "go" sequence, and returns the chosen root move.
func (d *Driver) Go(ctx context.Context, pos *position.Position, tc TimeControl) (dragontoothmg.Move, error) {
	d.warmUpOnce.Do(func() {
		if err := d.Predictor.WarmUp(ctx); err != nil {
			d.warnPredictorUnavailable(err)
		}
	})

	d.coord.Reset()
	d.state.Reset(fenOf(pos))
	d.abortErr.Store(nil)
	d.abortOnce = sync.Once{}

	arena := node.NewArena()
	root := arena.Root()

	if err := d.expandRoot(ctx, arena, pos); err != nil {
		return dragontoothmg.Move{}, err
	}

	us := White
	if !pos.WhiteToMove() {
		us = Black
	}
	budget := tc.Budget(us, d.Config)

	games := make([]*selfplay.Game, d.Config.SearchParallelism)
	for i := range games {
		games[i] = selfplay.NewGameAt(arena, pos.Clone(), d.Config, d.PuctCfg, uint64(i)+1)
	}
	// Always launch exactly numWorkersReleased() goroutines, the same count
	// GenerateWork hands to the barrier each round (SPEC_FULL.md §4.G): a
	// worker with more goroutines than games just gets an empty shard and
	// sits idle, which keeps the released/completed counts in lockstep.
	numWorkers := d.numWorkersReleased()

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		shard := gamesForWorker(games, w, numWorkers)
		go d.workerLoop(ctx, &wg, shard)
	}

	d.controllerLoop(ctx, root, budget, tc)
	wg.Wait()

	if errp := d.abortErr.Load(); errp != nil {
		return dragontoothmg.Move{}, *errp
	}
	if failed := sumFailedNodes(games); failed > 0 {
		klog.V(1).InfoS("simulations aborted by FailSimulation this search", "count", failed)
	}

	best := root.BestChild()
	if best == nil {
		return dragontoothmg.Move{}, errs.ErrIllegalPosition
	}
	if d.Listener != nil {
		d.Listener.OnBestMove(best.Move)
	}
	return best.Move, nil
}

// expandRoot implements §4.H step 3: prepare and expand the root on the
// controller before releasing the barrier, avoiding an expansion race on
// the very first tick.
func (d *Driver) expandRoot(ctx context.Context, arena *node.Arena, pos *position.Position) error {
	root := arena.Root()
	if root.Expanded() || !root.Terminal().IsAbsent() {
		return nil
	}

	legalMoves := pos.LegalMoves()
	if term, ok := pos.Terminal(len(legalMoves)); ok {
		root.SetTerminal(terminalForRoot(term))
		return nil
	}

	fp := pos.Fingerprint()
	var result cache.Result
	if res, ok := d.Cache.Lookup(fp); ok {
		result = res
	} else {
		out, err := d.currentPredictor().Predict(ctx, []predictor.Encoded{pos.Encode(d.Features)})
		if err != nil {
			if errs.IsFatal(err) {
				return err
			}
			d.recordPredictorFailure(err)
			out = []predictor.Output{{Value: 0.5, Logits: make([]float32, d.ActionSpace)}}
		} else {
			d.predictorFailureStreak.Store(0)
		}
		priors := selfplay.PriorsFromLogits(out[0].Logits, legalMoves, d.ActionSpace)
		result = cache.Result{Value: out[0].Value, Priors: priors}
		if h := d.Cache.Reserve(fp); h != nil {
			h.Publish(result)
		}
	}

	if !root.BeginExpand() {
		return nil
	}
	children := make([]node.Node, len(legalMoves))
	for i, mv := range legalMoves {
		children[i].Move = mv
		if i < len(result.Priors) {
			children[i].Prior = result.Priors[i]
		}
	}
	root.SetChildren(children)
	root.FinishExpand()
	return nil
}

func terminalForRoot(t position.Termination) node.Terminal {
	if t == position.TerminationCheckmate {
		return node.OpponentMateIn(1)
	}
	return node.Draw()
}

// workerLoop is the per-worker goroutine body: wait at the barrier, step
// every assigned game once, batch-resolve predictions, report completion.
func (d *Driver) workerLoop(ctx context.Context, wg *sync.WaitGroup, games []*selfplay.Game) {
	defer wg.Done()
	var lastGen uint64
	for {
		gen, shouldRun := d.coord.WaitForWorkItems(lastGen)
		lastGen = gen
		if !shouldRun {
			return
		}

		for _, g := range games {
			if g.State() == selfplay.StateWorking {
				g.Step(d.Cache)
			}
		}
		d.resolvePending(ctx, games)

		d.coord.OnWorkItemCompleted()
	}
}

func (d *Driver) resolvePending(ctx context.Context, games []*selfplay.Game) {
	var waiting []*selfplay.Game
	for _, g := range games {
		if g.State() == selfplay.StateWaitingForPrediction {
			waiting = append(waiting, g)
		}
	}
	if len(waiting) == 0 {
		return
	}

	batch := make([]predictor.Encoded, len(waiting))
	for i, g := range waiting {
		batch[i] = g.Pos.Encode(d.Features)
	}

	outputs, err := d.currentPredictor().Predict(ctx, batch)
	if err != nil {
		if errs.IsFatal(err) {
			d.abortSearch(err)
			for _, g := range waiting {
				g.FailSimulation()
			}
			return
		}
		d.recordPredictorFailure(err)
		for _, g := range waiting {
			g.FailSimulation()
		}
		return
	}
	d.predictorFailureStreak.Store(0)
	for i, g := range waiting {
		if i >= len(outputs) {
			g.FailSimulation()
			continue
		}
		g.ResumeExpansion(outputs[i], d.ActionSpace)
	}
}

// currentPredictor returns the predictor in effect for the running search:
// either the one configured at New, or the uniform fallback substituted in
// by recordPredictorFailure once failures crossed the threshold.
func (d *Driver) currentPredictor() predictor.Predictor {
	if p := d.activePredictor.Load(); p != nil {
		return *p
	}
	return d.Predictor
}

// warnPredictorUnavailable logs the one-time "predictor unavailable"
// warning required by SPEC_FULL.md §7, independent of the failure-streak
// accounting in recordPredictorFailure.
func (d *Driver) warnPredictorUnavailable(err error) {
	d.predictorWarnOnce.Do(func() {
		klog.Warning("predictor unavailable, falling back to uniform: ", err)
	})
}

// recordPredictorFailure handles a PredictorUnavailable (soft) error per
// SPEC_FULL.md §7: warn once, and once the consecutive-failure streak
// crosses Config.PredictorFailureThreshold, permanently substitute a
// uniform predictor so subsequent Predict calls actually succeed instead of
// repeating the same failure every tick.
func (d *Driver) recordPredictorFailure(err error) {
	d.warnPredictorUnavailable(err)

	threshold := d.Config.PredictorFailureThreshold
	if threshold <= 0 {
		threshold = 1
	}
	streak := d.predictorFailureStreak.Add(1)
	if streak < int32(threshold) {
		return
	}
	if !d.predictorFellBack.CompareAndSwap(false, true) {
		return
	}
	klog.Warning("predictor failed ", streak, " times in a row, switching to uniform fallback for the rest of this search")
	fallback := predictor.Predictor(predictor.NewUniform(d.Config.PredictionBatchSize))
	d.activePredictor.Store(&fallback)
}

// abortSearch handles a PredictorError (fatal) per SPEC_FULL.md §7: logged
// once, and the coordinator is told to shut down with StopError so every
// worker exits cleanly and Go reports the failure instead of a best move.
func (d *Driver) abortSearch(err error) {
	d.abortOnce.Do(func() {
		klog.Errorf("predictor returned malformed output, aborting search: %v", err)
		d.abortErr.Store(&err)
	})
	d.coord.RequestShutDown(coordinator.StopError)
}

// controllerLoop releases the barrier every round, checks the time budget
// and elimination early-stop, prints the PV when it changes, and finally
// requests shutdown once the round is decided (SPEC_FULL.md §4.H step 4).
func (d *Driver) controllerLoop(ctx context.Context, root *node.Node, budget time.Duration, tc TimeControl) {
	var nodesSinceReport int32
	for {
		select {
		case <-ctx.Done():
			d.coord.RequestShutDown(coordinator.StopInterrupt)
			return
		default:
		}

		d.coord.GenerateWork(d.numWorkersReleased())
		d.coord.WaitForWorkers()

		if d.coord.ShouldShutDown() && d.coord.StopReason()&coordinator.StopError != 0 {
			// A worker hit a fatal predictor error (abortSearch) and already
			// requested shutdown; nothing left to poll for, Go will report
			// the abort error once every worker has exited.
			return
		}

		elapsed := d.state.Elapsed()
		total := sumVisits(root)
		nodesSinceReport += total - d.state.lastVisits
		d.state.lastVisits = total

		if nodesSinceReport >= int32(d.Config.SearchGuiUpdateIntervalNodes) {
			d.reportPV(root, total, elapsed)
			nodesSinceReport = 0
		}

		if tc.Nodes > 0 && uint64(total) >= tc.Nodes {
			d.coord.RequestShutDown(coordinator.StopMovetime)
			return
		}
		if !tc.Infinite && elapsed >= budget {
			d.coord.RequestShutDown(coordinator.StopMovetime)
			return
		}
		if m := root.Terminal(); m.IsOwnMate() && (tc.Mate == 0 || int32(m.MateDistance()) <= tc.Mate) {
			d.coord.RequestShutDown(coordinator.StopMovetime)
			return
		}
		if shouldEliminate(root, elapsed, budget, tc.eliminationFraction(d.Config), tc.eliminationRootVisitCount(d.Config)) {
			d.coord.RequestShutDown(coordinator.StopMovetime)
			return
		}
	}
}

func (d *Driver) numWorkersReleased() int {
	n := d.Config.NumWorkers
	if n < 1 {
		n = 1
	}
	return n
}

func (d *Driver) reportPV(root *node.Node, nodes int32, elapsed time.Duration) {
	mate := int32(0)
	if t := root.Terminal(); !t.IsAbsent() && t.IsOwnMate() {
		mate = int32(t.MateDistance())
	} else if !t.IsAbsent() && t.IsOpponentMate() {
		mate = -int32(t.MateDistance())
	}
	eval := root.Value()
	if best := root.BestChild(); best != nil {
		// Child values are stored from the perspective of the side to move
		// at the child, so the root's side sees the complement.
		eval = 1 - best.Value()
	}
	line := Line{
		Nodes:   nodes,
		Elapsed: elapsed.Seconds(),
		Eval:    eval,
		Mate:    mate,
		PV:      buildPV(root, 32),
	}
	if d.Listener != nil {
		d.Listener.OnPrincipalVariation(line)
	}
	klog.V(1).InfoS("pv", "nodes", line.Nodes, "elapsed", line.Elapsed, "eval", line.Eval, "mate", line.Mate)
}

func sumVisits(root *node.Node) int32 {
	children := root.Children()
	var total int32
	for i := range children {
		total += children[i].VisitCount()
	}
	return total
}

func fenOf(pos *position.Position) string {
	// Position does not expose a FEN accessor (out of scope per
	// SPEC_FULL.md's dragontoothmg adapter contract); SearchState only
	// needs a stable label for logging, so the fingerprint serves fine.
	return fmt.Sprintf("%016x", pos.Fingerprint())
}

func sumFailedNodes(games []*selfplay.Game) uint32 {
	var total uint32
	for _, g := range games {
		total += g.FailedNodeCount
	}
	return total
}

func gamesForWorker(games []*selfplay.Game, worker, numWorkers int) []*selfplay.Game {
	var shard []*selfplay.Game
	for i, g := range games {
		if i%numWorkers == worker {
			shard = append(shard, g)
		}
	}
	return shard
}
