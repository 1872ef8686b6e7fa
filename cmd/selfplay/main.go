// Command selfplay drives SPEC_FULL.md's component F (SelfPlayWorker) to
// completion: each worker owns a batch of independent self-play games and
// ticks them with Worker.Tick until NumSimulations-driven move selection
// plays the game out, printing a one-line summary per finished game and then
// respawning a fresh one in its place. It does not persist any training
// corpus (§1 Non-goals: "training, supervised data ingestion") — this is a
// thin exerciser for the tick loop itself, the counterpart to
// cmd/mctsengine's one-shot search for the self-play mode of the engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/mctschess/engine/pkg/cache"
	"github.com/mctschess/engine/pkg/config"
	"github.com/mctschess/engine/pkg/position"
	"github.com/mctschess/engine/pkg/predictor"
	"github.com/mctschess/engine/pkg/puct"
	"github.com/mctschess/engine/pkg/selfplay"
)

// actionSpace and featureCount mirror cmd/mctsengine's constants: the
// specific tensor encoding is out of scope (SPEC_FULL.md §1 Non-goals), so
// these just need to be large enough for moveIndex's hash-based slotting.
const (
	actionSpace  = 128
	featureCount = 64
)

func main() {
	numWorkers := flag.Int("workers", 4, "number of self-play worker goroutines")
	parallelism := flag.Int("parallelism", 8, "games each worker advances concurrently")
	targetGames := flag.Int64("games", 100, "total finished games to generate before exiting")
	numSimulations := flag.Uint("simulations", 200, "MCTS simulations per move during self-play")
	flag.Parse()

	cfg := config.New().
		SetSearchParallelism(*parallelism).
		SetNumSimulations(uint32(*numSimulations)).
		Freeze()
	pcfg := puct.DefaultConfig()
	cch := cache.New(cfg.PredictionCacheRequestGibibytes, cfg.PredictionCacheMinGibibytes, cfg.PredictionCacheMaxPly)
	pred := predictor.NewUniform(cfg.PredictionBatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var finished atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < *numWorkers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			runWorker(ctx, cancel, w, *parallelism, cfg, pcfg, pred, cch, *targetGames, &finished)
		}()
	}
	wg.Wait()

	fmt.Printf("generated %d self-play games across %d workers\n", finished.Load(), *numWorkers)
}

// runWorker drives one selfplay.Worker's tick loop until the shared
// finished-game target is reached or ctx is cancelled.
func runWorker(
	ctx context.Context,
	cancel context.CancelFunc,
	id, parallelism int,
	cfg *config.Config,
	pcfg puct.Config,
	pred predictor.Predictor,
	cch *cache.Cache,
	target int64,
	finished *atomic.Int64,
) {
	newGame := func(seed uint64) *selfplay.Game {
		return selfplay.NewGame(position.NewStarting(), cfg, pcfg, seed)
	}
	worker := selfplay.NewWorker(id, parallelism, newGame, cch, pred, cfg, actionSpace, featureCount)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := worker.Tick(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "self-play worker %d: %v\n", id, err)
			cancel()
			return
		}

		for i, g := range worker.Games {
			if g.State() != selfplay.StateFinished {
				continue
			}
			moves := g.MovesPlayed()
			n := finished.Add(1)
			fmt.Printf("worker %d slot %d: game finished after %d moves (%d/%d)\n", id, i, moves, n, target)
			if n >= target {
				cancel()
				return
			}
		}
		worker.Respawn(newGame)
	}
}
