package selfplay

import (
	"context"
	"testing"

	"github.com/mctschess/engine/pkg/cache"
	"github.com/mctschess/engine/pkg/config"
	"github.com/mctschess/engine/pkg/node"
	"github.com/mctschess/engine/pkg/position"
	"github.com/mctschess/engine/pkg/predictor"
	"github.com/mctschess/engine/pkg/puct"
)

func newTestWorker(t *testing.T, parallelism int, numSimulations uint32) *Worker {
	t.Helper()
	cfg := config.New().SetNumSimulations(numSimulations)
	pcfg := puct.DefaultConfig()
	cch := cache.New(0.001, 0.0001, 0)
	pred := predictor.NewUniform(parallelism)

	newGame := func(seed uint64) *Game {
		return NewGame(position.NewStarting(), cfg, pcfg, seed)
	}
	return NewWorker(0, parallelism, newGame, cch, pred, cfg, 128, 64)
}

func TestWorkerTickAdvancesGamesThroughSuspension(t *testing.T) {
	w := newTestWorker(t, 4, 8)

	for tick := 0; tick < 20; tick++ {
		if err := w.Tick(context.Background()); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
	}

	for i, g := range w.Games {
		if g.State() == StateWaitingForPrediction {
			t.Fatalf("game %d left suspended after 20 ticks with a synchronous predictor", i)
		}
		if !g.Arena.Root().Expanded() {
			t.Fatalf("game %d root never expanded", i)
		}
	}
}

func TestWorkerFinishesMoveAfterSimulationBudget(t *testing.T) {
	w := newTestWorker(t, 1, 4)

	for tick := 0; tick < 40; tick++ {
		if err := w.Tick(context.Background()); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
	}

	g := w.Games[0]
	if g.MovesPlayed() == 0 {
		t.Fatal("expected at least one move to have been played")
	}
}

func TestRespawnReplacesOnlyFinishedGames(t *testing.T) {
	w := newTestWorker(t, 2, 1)
	cfg := w.Config
	pcfg := puct.DefaultConfig()

	// Force slot 0 to look finished without actually playing it out, so the
	// test doesn't depend on how many ticks it takes a real game to finish.
	w.Games[0].state = StateFinished
	stale := w.Games[1]

	replaced := w.Respawn(func(seed uint64) *Game {
		return NewGame(position.NewStarting(), cfg, pcfg, seed)
	})

	if replaced != 1 {
		t.Fatalf("expected exactly one replacement, got %d", replaced)
	}
	if w.Games[0].State() != StateWorking {
		t.Fatalf("expected slot 0 replaced with a fresh Working game, got state %v", w.Games[0].State())
	}
	if w.Games[1] != stale {
		t.Fatal("Respawn must not touch a game that was not Finished")
	}
}

func TestSelectMovePastSamplingWindowPicksMaxVisits(t *testing.T) {
	cfg := config.New()
	cfg.NumSamplingMoves = 0
	pcfg := puct.DefaultConfig()
	g := NewGame(position.NewStarting(), cfg, pcfg, 7)

	root := g.Arena.Root()
	if !root.BeginExpand() {
		t.Fatal("expected to win BeginExpand")
	}
	children := make([]node.Node, 3)
	root.SetChildren(children)
	root.FinishExpand()

	root.Children()[1].CreditBackprop(0.5, 10, 0, 0)
	root.Children()[2].CreditBackprop(0.5, 3, 0, 0)

	chosen := SelectMove(g, cfg, 99)
	if chosen != &root.Children()[1] {
		t.Fatal("expected SelectMove to pick the child with the most visits")
	}
}
