package driver

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IlikeChooros/dragontoothmg"

	"github.com/mctschess/engine/pkg/cache"
	"github.com/mctschess/engine/pkg/config"
	"github.com/mctschess/engine/pkg/errs"
	"github.com/mctschess/engine/pkg/position"
	"github.com/mctschess/engine/pkg/predictor"
	"github.com/mctschess/engine/pkg/puct"
)

func newTestDriver(t *testing.T, numWorkers int, parallelism int) *Driver {
	t.Helper()
	cfg := config.New().SetNumWorkers(numWorkers).SetSearchParallelism(parallelism)
	pcfg := puct.DefaultConfig()
	cch := cache.New(0.001, 0.0001, 0)
	pred := predictor.NewUniform(parallelism)
	return New(cfg, pcfg, pred, cch, 128, 64)
}

func TestGoReturnsLegalMoveFromStartingPosition(t *testing.T) {
	d := newTestDriver(t, 4, 8)
	pos := position.NewStarting()
	tc := TimeControl{MoveTime: 20 * time.Millisecond}

	move, err := d.Go(context.Background(), pos, tc)
	if err != nil {
		t.Fatalf("Go returned error: %v", err)
	}

	legal := pos.LegalMoves()
	found := false
	for _, m := range legal {
		if m == move {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("Go returned %v, not among legal moves %v", move, legal)
	}
}

func TestGoHonorsMoreWorkersThanGames(t *testing.T) {
	// NumWorkers exceeds SearchParallelism: excess workers must idle on an
	// empty shard instead of deadlocking the barrier (driver.go's
	// numWorkersReleased/GenerateWork lockstep).
	d := newTestDriver(t, 8, 2)
	pos := position.NewStarting()
	tc := TimeControl{MoveTime: 20 * time.Millisecond}

	done := make(chan struct{})
	go func() {
		if _, err := d.Go(context.Background(), pos, tc); err != nil {
			t.Errorf("Go returned error: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Go did not return: barrier appears deadlocked")
	}
}

func TestGoRespectsNodeBudget(t *testing.T) {
	d := newTestDriver(t, 2, 4)
	pos := position.NewStarting()
	tc := TimeControl{Nodes: 50, MoveTime: 2 * time.Second}

	start := time.Now()
	if _, err := d.Go(context.Background(), pos, tc); err != nil {
		t.Fatalf("Go returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Go took %v, expected the node budget to cut the search short", elapsed)
	}
}

func TestGoReportsBestMoveToListener(t *testing.T) {
	d := newTestDriver(t, 2, 4)
	listener := &recordingListener{}
	d.Listener = listener
	pos := position.NewStarting()
	tc := TimeControl{MoveTime: 20 * time.Millisecond}

	move, err := d.Go(context.Background(), pos, tc)
	if err != nil {
		t.Fatalf("Go returned error: %v", err)
	}
	if !listener.sawBestMove {
		t.Fatal("expected OnBestMove to be called")
	}
	if listener.bestMove != move {
		t.Fatalf("listener saw %v, Go returned %v", listener.bestMove, move)
	}
}

// failingPredictor returns err from Predict for every call, counting how
// many times it was invoked, for exercising the fatal/soft error split in
// expandRoot and resolvePending.
type failingPredictor struct {
	err   error
	calls atomic.Int32
}

func (p *failingPredictor) Predict(context.Context, []predictor.Encoded) ([]predictor.Output, error) {
	p.calls.Add(1)
	return nil, p.err
}
func (p *failingPredictor) WarmUp(context.Context) error { return nil }
func (p *failingPredictor) BatchSize() int               { return 8 }

func TestGoAbortsSearchOnFatalPredictorError(t *testing.T) {
	cfg := config.New().SetNumWorkers(2).SetSearchParallelism(4)
	pcfg := puct.DefaultConfig()
	cch := cache.New(0.001, 0.0001, 0)
	pred := &failingPredictor{err: errs.ErrPredictorError}
	d := New(cfg, pcfg, pred, cch, 128, 64)

	pos := position.NewStarting()
	tc := TimeControl{MoveTime: 200 * time.Millisecond}

	_, err := d.Go(context.Background(), pos, tc)
	if err == nil {
		t.Fatal("expected Go to abort with an error on a fatal PredictorError")
	}
}

func TestRecordPredictorFailureSwapsToUniformAfterThreshold(t *testing.T) {
	cfg := config.New().SetNumWorkers(1).SetSearchParallelism(1).SetPredictorFailureThreshold(2)
	pcfg := puct.DefaultConfig()
	cch := cache.New(0.001, 0.0001, 0)
	pred := &failingPredictor{err: errs.ErrPredictorUnavailable}
	d := New(cfg, pcfg, pred, cch, 128, 64)

	if _, ok := d.currentPredictor().(*failingPredictor); !ok {
		t.Fatal("expected the configured predictor to be active before any failure")
	}

	d.recordPredictorFailure(pred.err)
	if _, ok := d.currentPredictor().(*failingPredictor); !ok {
		t.Fatal("one failure below threshold should not swap the predictor yet")
	}

	d.recordPredictorFailure(pred.err)
	if _, ok := d.currentPredictor().(*predictor.Uniform); !ok {
		t.Fatalf("expected predictor swapped to Uniform once the failure streak reached threshold, got %T", d.currentPredictor())
	}
}

type recordingListener struct {
	sawBestMove bool
	bestMove    dragontoothmg.Move
}

func (l *recordingListener) OnPrincipalVariation(Line) {}

func (l *recordingListener) OnBestMove(move dragontoothmg.Move) {
	l.sawBestMove = true
	l.bestMove = move
}
