package selfplay

import (
	"context"

	math32 "github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/mctschess/engine/pkg/cache"
	"github.com/mctschess/engine/pkg/config"
	"github.com/mctschess/engine/pkg/errs"
	"github.com/mctschess/engine/pkg/node"
	"github.com/mctschess/engine/pkg/predictor"
)

// Worker owns parallelism independent self-play games and advances all of
// them one tick at a time, batching every game that suspends for a
// prediction into a single predictor call (SPEC_FULL.md §4.F). Grounded on
// the per-worker struct shape of
// _examples/hailam-chessplay/internal/engine/worker.go and the
// suspend-for-batch dispatch loop of other_examples/.../batched_mcts.go.
type Worker struct {
	ID    int
	Games []*Game

	Cache     *cache.Cache
	Predictor predictor.Predictor
	Config    *config.Config

	ActionSpace int
	Features    int

	Errors errs.Accumulator

	rngState uint64
}

// NewWorker builds a worker owning `parallelism` games, each built by
// newGame from a distinct seed (so callers can hand every worker its own
// starting-position generator).
func NewWorker(id, parallelism int, newGame func(seed uint64) *Game, cch *cache.Cache, pred predictor.Predictor, cfg *config.Config, actionSpace, features int) *Worker {
	w := &Worker{
		ID:          id,
		Games:       make([]*Game, parallelism),
		Cache:       cch,
		Predictor:   pred,
		Config:      cfg,
		ActionSpace: actionSpace,
		Features:    features,
		rngState:    uint64(id)*0x2545f4914f6cdd1d + 1,
	}
	for i := range w.Games {
		w.Games[i] = newGame(w.nextSeed())
	}
	return w
}

func (w *Worker) nextSeed() uint64 {
	w.rngState += 0x9e3779b97f4a7c15
	return w.rngState
}

// Tick runs one worker round (SPEC_FULL.md §4.F): step every Working game,
// batch-resolve every WaitingForPrediction game through one predictor call,
// and finalize any game whose root has reached its simulation budget.
func (w *Worker) Tick(ctx context.Context) error {
	for _, g := range w.Games {
		if g.State() == StateWorking {
			g.Step(w.Cache)
		}
	}

	if err := w.resolvePending(ctx); err != nil {
		return err
	}

	for _, g := range w.Games {
		if g.State() == StateWorking && g.Simulations() >= w.Config.NumSimulations {
			w.finishMove(g)
		}
	}
	return nil
}

// resolvePending gathers every WaitingForPrediction game, calls the
// predictor once for the whole batch, and either resumes each game's
// expansion or fails its simulation if the predictor call itself errored
// (SPEC_FULL.md §4.F "Failure handling").
func (w *Worker) resolvePending(ctx context.Context) error {
	var waiting []int
	for i, g := range w.Games {
		if g.State() == StateWaitingForPrediction {
			waiting = append(waiting, i)
		}
	}
	if len(waiting) == 0 {
		return nil
	}

	batch := make([]predictor.Encoded, len(waiting))
	for j, idx := range waiting {
		batch[j] = w.Games[idx].Pos.Encode(w.Features)
	}

	outputs, err := w.Predictor.Predict(ctx, batch)
	if err != nil {
		for _, idx := range waiting {
			w.Games[idx].FailSimulation()
		}
		wrapped := errors.Wrap(errs.ErrPredictorError, err.Error())
		w.Errors.Add(wrapped)
		return wrapped
	}

	for j, idx := range waiting {
		if j >= len(outputs) {
			w.Games[idx].FailSimulation()
			continue
		}
		w.Games[idx].ResumeExpansion(outputs[j], w.ActionSpace)
	}
	return nil
}

// finishMove implements §4.F step 3: pick the best root move via SelectMove
// and advance the game, marking it Finished if the resulting position has
// no legal continuation.
func (w *Worker) finishMove(g *Game) {
	chosen := SelectMove(g, w.Config, w.nextSeed())
	if chosen == nil {
		g.state = StateFinished
		return
	}
	g.ApplyMove(chosen)
}

// Respawn replaces every Finished game in the batch with a fresh one built
// by newGame, keeping the worker's parallelism full for continuous self-play
// generation (SPEC_FULL.md §4.F step 3: a finished game "resets" rather than
// leaving the worker permanently short a slot). Returns how many games were
// replaced; callers that want to inspect a finished game (final position,
// move count) must do so before calling Respawn.
func (w *Worker) Respawn(newGame func(seed uint64) *Game) int {
	replaced := 0
	for i, g := range w.Games {
		if g.State() == StateFinished {
			w.Games[i] = newGame(w.nextSeed())
			replaced++
		}
	}
	return replaced
}

// SelectMove picks the root move to actually play: visit-count argmax past
// the sampling window, or temperature-weighted sampling during the first
// NumSamplingMoves plies, grounded on
// _examples/Elvenson-alphabeth/mcts/tree.go's sampleChild (cumulative
// distribution over (visits+1)^(1/temperature)).
func SelectMove(g *Game, cfg *config.Config, seed uint64) *node.Node {
	children := g.Arena.Root().Children()
	if len(children) == 0 {
		return nil
	}

	if g.MovesPlayed() >= cfg.NumSamplingMoves {
		best := &children[0]
		for i := 1; i < len(children); i++ {
			if children[i].VisitCount() > best.VisitCount() {
				best = &children[i]
			}
		}
		return best
	}

	return sampleByVisits(children, seed)
}

func sampleByVisits(children []node.Node, seed uint64) *node.Node {
	const temperature = float32(1.0)

	var denom float32
	for i := range children {
		denom += math32.Pow(float32(children[i].VisitCount())+1, 1/temperature)
	}
	if denom <= 0 {
		return &children[0]
	}

	r := randFloat32(seed)
	var accum float32
	for i := range children {
		accum += math32.Pow(float32(children[i].VisitCount())+1, 1/temperature) / denom
		if r < accum {
			return &children[i]
		}
	}
	return &children[len(children)-1]
}

// randFloat32 derives a uniform [0,1) float from seed via a splitmix64-style
// mix (the same finalizer position.Encode uses), avoiding a dependency on
// math/rand state for a single draw.
func randFloat32(seed uint64) float32 {
	x := seed
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x = x ^ (x >> 31)
	return float32(x>>40) / float32(1<<24)
}
