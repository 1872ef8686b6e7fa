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

func newTestGame(t *testing.T) (*Game, *config.Config) {
	t.Helper()
	cfg := config.New()
	pcfg := puct.DefaultConfig()
	pos := position.NewStarting()
	return NewGame(pos, cfg, pcfg, 42), cfg
}

func TestGameStepSuspendsOnFirstVisit(t *testing.T) {
	g, _ := newTestGame(t)
	cch := cache.New(0.001, 0.0001, 0)

	g.Step(cch)

	if g.State() != StateWaitingForPrediction {
		t.Fatalf("expected first visit to the unexpanded root to suspend, got state %v", g.State())
	}
}

func TestResumeExpansionExpandsRootAndCreditsSimulation(t *testing.T) {
	g, _ := newTestGame(t)
	cch := cache.New(0.001, 0.0001, 0)

	g.Step(cch)
	if g.State() != StateWaitingForPrediction {
		t.Fatal("expected suspension before resume")
	}

	uni := predictor.NewUniform(1)
	out, err := uni.Predict(context.Background(), []predictor.Encoded{g.Pos.Encode(64)})
	if err != nil {
		t.Fatalf("uniform predict: %v", err)
	}

	g.ResumeExpansion(out[0], 128)

	if g.State() != StateWorking {
		t.Fatalf("expected Working after resume, got %v", g.State())
	}
	if !g.Arena.Root().Expanded() {
		t.Fatal("expected root to be expanded after resume")
	}
	if got := g.Simulations(); got != 1 {
		t.Fatalf("expected 1 credited simulation, got %d", got)
	}
	if len(g.Arena.Root().Children()) != 20 {
		t.Fatalf("expected 20 legal starting moves as children, got %d", len(g.Arena.Root().Children()))
	}
}

func TestPriorsFromLogitsSumToOne(t *testing.T) {
	pos := position.NewStarting()
	moves := pos.LegalMoves()
	logits := make([]float32, 256)
	for i := range logits {
		logits[i] = float32(i) * 0.01
	}

	priors := PriorsFromLogits(logits, moves, 256)
	if len(priors) != len(moves) {
		t.Fatalf("expected %d priors, got %d", len(moves), len(priors))
	}
	var sum float32
	for _, p := range priors {
		if p < 0 {
			t.Fatalf("prior must be non-negative, got %f", p)
		}
		sum += p
	}
	if sum < 0.99 || sum > 1.01 {
		t.Fatalf("expected priors to sum to ~1, got %f", sum)
	}
}

func TestPromoteMateOwnMateWhenChildIsOpponentMate(t *testing.T) {
	ancestor := node.NewRoot()
	if !ancestor.BeginExpand() {
		t.Fatal("expected to win BeginExpand on a fresh node")
	}
	children := make([]node.Node, 2)
	children[0].SetTerminal(node.OpponentMateIn(2))
	ancestor.SetChildren(children)
	ancestor.FinishExpand()

	promoteMate(ancestor)

	got := ancestor.Terminal()
	if !got.IsOwnMate() || got.MateDistance() != 3 {
		t.Fatalf("expected ancestor promoted to own-mate-in-3, got %v", got)
	}
}

func TestPromoteMateOpponentMateWhenAllChildrenAreOwnMate(t *testing.T) {
	ancestor := node.NewRoot()
	if !ancestor.BeginExpand() {
		t.Fatal("expected to win BeginExpand on a fresh node")
	}
	children := make([]node.Node, 2)
	children[0].SetTerminal(node.MateIn(2))
	children[1].SetTerminal(node.MateIn(4))
	ancestor.SetChildren(children)
	ancestor.FinishExpand()

	promoteMate(ancestor)

	got := ancestor.Terminal()
	if !got.IsOpponentMate() || got.MateDistance() != 5 {
		t.Fatalf("expected ancestor demoted to opponent-mate-in-5, got %v", got)
	}
}
