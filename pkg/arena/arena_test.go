package arena

import (
	"context"
	"testing"
	"time"

	"github.com/mctschess/engine/pkg/cache"
	"github.com/mctschess/engine/pkg/config"
	"github.com/mctschess/engine/pkg/driver"
	"github.com/mctschess/engine/pkg/position"
	"github.com/mctschess/engine/pkg/predictor"
	"github.com/mctschess/engine/pkg/puct"
)

func newTestContestant(t *testing.T, name string) *Contestant {
	t.Helper()
	cfg := config.New().SetNumWorkers(2).SetSearchParallelism(4)
	pcfg := puct.DefaultConfig()
	cch := cache.New(0.001, 0.0001, 0)
	pred := predictor.NewUniform(4)
	return &Contestant{
		Name:        name,
		Driver:      driver.New(cfg, pcfg, pred, cch, 128, 64),
		TimeControl: driver.TimeControl{MoveTime: 10 * time.Millisecond},
	}
}

type countingListener struct {
	finished  int
	summaries int
	lastSum   Summary
}

func newCountingListener() *countingListener {
	return &countingListener{}
}

func (l *countingListener) OnGameFinished(workerID, finishedGames, totalGames int, stats *Stats) {
	l.finished++
}

func (l *countingListener) OnSummary(s Summary) {
	l.summaries++
	l.lastSum = s
}

func TestArenaPlaysConfiguredGameCount(t *testing.T) {
	p1 := newTestContestant(t, "alpha")
	p2 := newTestContestant(t, "beta")
	a := New(p1, p2, position.NewStarting())
	a.Setup(4, 2)

	listener := newCountingListener()
	a.Start(context.Background(), listener)

	done := make(chan struct{})
	go func() {
		a.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("arena match did not finish: possible deadlock")
	}

	if a.Total() != 4 {
		t.Fatalf("expected 4 games total, got %d", a.Total())
	}
	if listener.summaries != 1 {
		t.Fatalf("expected exactly one summary, got %d", listener.summaries)
	}
	if listener.lastSum.TotalGames != 4 {
		t.Fatalf("summary reported %d games, want 4", listener.lastSum.TotalGames)
	}
	if listener.lastSum.Player1Name != "alpha" || listener.lastSum.Player2Name != "beta" {
		t.Fatalf("summary names wrong: %+v", listener.lastSum)
	}
}

func TestArenaHandlesUnevenGameSplit(t *testing.T) {
	p1 := newTestContestant(t, "alpha")
	p2 := newTestContestant(t, "beta")
	a := New(p1, p2, position.NewStarting())
	a.Setup(5, 3)

	a.Start(context.Background(), nil)

	done := make(chan struct{})
	go func() {
		a.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("arena match did not finish: possible deadlock")
	}

	if a.Total() != 5 {
		t.Fatalf("expected 5 games total, got %d", a.Total())
	}
}
