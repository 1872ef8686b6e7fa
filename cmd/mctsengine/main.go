// Command mctsengine is a thin exerciser for the search engine, grounded on
// examples/chess/main.go's shape: build an engine value, feed it a starting
// position, run a search, print the result. It hardcodes a FEN plus a
// "go nodes N" / "go movetime N" style invocation rather than implementing a
// full UCI command loop (SPEC_FULL.md §1 Non-goals).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mctschess/engine/pkg/cache"
	"github.com/mctschess/engine/pkg/config"
	"github.com/mctschess/engine/pkg/driver"
	"github.com/mctschess/engine/pkg/position"
	"github.com/mctschess/engine/pkg/predictor"
	"github.com/mctschess/engine/pkg/puct"
)

// actionSpace and featureCount size the predictor's input/output planes.
// The specific tensor encoding is out of scope (SPEC_FULL.md §1 Non-goals),
// so these are just large enough for moveIndex's hash-based slotting to
// rarely collide in a single position's legal move list.
const (
	actionSpace  = 128
	featureCount = 64
)

func main() {
	fen := flag.String("fen", "", "starting FEN (default: standard chess starting position)")
	nodes := flag.Uint64("nodes", 0, "stop after this many root visits (0: no node limit)")
	moveTimeMs := flag.Int("movetime", 2000, "per-move time budget in milliseconds")
	numWorkers := flag.Int("workers", 4, "number of search worker goroutines")
	parallelism := flag.Int("parallelism", 16, "in-flight games per worker")
	useSble := flag.Bool("sble", false, "use the SBLE-PUCT linear exploration variant")
	quiet := flag.Bool("quiet", false, "suppress live PV output")
	flag.Parse()

	pos := position.NewStarting()
	if *fen != "" {
		p, err := position.NewFromFEN(*fen)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid FEN:", err)
			os.Exit(1)
		}
		pos = p
	}

	cfg := config.New().
		SetNumWorkers(*numWorkers).
		SetSearchParallelism(*parallelism).
		SetUseSblePuct(*useSble).
		Freeze()

	pcfg := puct.DefaultConfig()
	pcfg.UseSblePuct = *useSble

	cch := cache.New(cfg.PredictionCacheRequestGibibytes, cfg.PredictionCacheMinGibibytes, cfg.PredictionCacheMaxPly)
	pred := predictor.NewUniform(cfg.PredictionBatchSize)

	d := driver.New(cfg, pcfg, pred, cch, actionSpace, featureCount)
	if !*quiet {
		d.Listener = driver.NewConsoleListener()
	}

	tc := driver.TimeControl{
		Nodes:    *nodes,
		MoveTime: time.Duration(*moveTimeMs) * time.Millisecond,
	}

	move, err := d.Go(context.Background(), pos, tc)
	if err != nil {
		fmt.Fprintln(os.Stderr, "search failed:", err)
		os.Exit(1)
	}
	if *quiet {
		fmt.Printf("bestmove %s\n", move.String())
	}
}
