// Package arena plays two engine configurations against each other over many
// games, worker-fan-out style. It is not part of SPEC_FULL.md's lettered
// components; it exists to exercise the driver/coordinator machinery
// end-to-end the way the teacher's own evaluation harness does. Grounded on
// the teacher's pkg/bench/versus_arena.go (VersusArena, worker-0-prints-
// summary pattern), generalized from "two generic MCTS configs" to "two
// chess drivers".
package arena

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IlikeChooros/dragontoothmg"

	"github.com/mctschess/engine/pkg/driver"
	"github.com/mctschess/engine/pkg/position"
)

// MatchResult classifies a single game from Player1's perspective, mirroring
// the teacher's VersusMatchResult.
type MatchResult int

const (
	Player1Win MatchResult = 1
	Player2Win MatchResult = -1
	Draw       MatchResult = 0
)

// Stats accumulates match outcomes with the same atomic-counter shape as the
// teacher's VersusArenaStats, so both the per-worker local tally and the
// arena-wide total can be read concurrently without a lock.
type Stats struct {
	p1Wins           atomic.Uint32
	p2Wins           atomic.Uint32
	draws            atomic.Uint32
	firstToMoveWins  atomic.Uint32
	secondToMoveWins atomic.Uint32
}

func (s *Stats) Total() int            { return s.P1Wins() + s.P2Wins() + s.Draws() }
func (s *Stats) P1Wins() int            { return int(s.p1Wins.Load()) }
func (s *Stats) P2Wins() int            { return int(s.p2Wins.Load()) }
func (s *Stats) Draws() int             { return int(s.draws.Load()) }
func (s *Stats) FirstToMoveWins() int   { return int(s.firstToMoveWins.Load()) }
func (s *Stats) SecondToMoveWins() int  { return int(s.secondToMoveWins.Load()) }

func (s *Stats) record(result MatchResult, firstPlayerWon bool) {
	switch result {
	case Player1Win:
		s.p1Wins.Add(1)
	case Player2Win:
		s.p2Wins.Add(1)
	default:
		s.draws.Add(1)
	}
	if result != Draw {
		if firstPlayerWon {
			s.firstToMoveWins.Add(1)
		} else {
			s.secondToMoveWins.Add(1)
		}
	}
}

// Contestant pairs a driver with the time budget it gets per move and a
// display name, so Summary can report which configuration won.
type Contestant struct {
	Name        string
	Driver      *driver.Driver
	TimeControl driver.TimeControl
}

// Summary is the final match report, equivalent to the teacher's
// VersusSummaryInfo.
type Summary struct {
	TotalGames       int
	Player1Wins      int
	Player2Wins      int
	Draws            int
	FirstToMoveWins  int
	SecondToMoveWins int
	Workers          int
	Player1Name      string
	Player2Name      string
}

// Listener observes match progress. A nil Listener is valid.
type Listener interface {
	OnGameFinished(workerID, finishedGames, totalGames int, stats *Stats)
	OnSummary(Summary)
}

// Arena runs NGames games between Player1 and Player2 split across NWorkers
// goroutines, choosing at random which player moves first in each game.
type Arena struct {
	Stats
	Player1 *Contestant
	Player2 *Contestant

	NGames           int
	NWorkers         int
	StartingPosition *position.Position

	wg       sync.WaitGroup
	finished atomic.Bool
}

// New builds an arena ready to Start, defaulting to a single game and a
// single worker (callers should call Setup before Start for a real match).
func New(p1, p2 *Contestant, startingPosition *position.Position) *Arena {
	return &Arena{
		Player1:          p1,
		Player2:          p2,
		NGames:           1,
		NWorkers:         1,
		StartingPosition: startingPosition,
	}
}

// Setup configures game count and worker fan-out, mirroring
// VersusArena.Setup.
func (a *Arena) Setup(nGames, nWorkers int) {
	if nWorkers < 1 {
		nWorkers = 1
	}
	a.NGames = nGames
	a.NWorkers = nWorkers
}

// Wait blocks until every worker, and the worker-0 summary pass, has
// finished.
func (a *Arena) Wait() {
	a.wg.Wait()
	for !a.finished.Load() {
		// worker 0 is still computing the summary after the rest have
		// returned from wg.Done(); yield rather than spin hard.
		time.Sleep(time.Millisecond)
	}
}

// Start launches NWorkers goroutines splitting NGames as evenly as possible,
// worker 0 waiting on the rest and reporting the final Summary when done.
func (a *Arena) Start(ctx context.Context, listener Listener) {
	a.finished.Store(false)

	base := a.NGames / a.NWorkers
	rest := a.NGames % a.NWorkers
	a.wg.Add(a.NWorkers)

	for w := 0; w < a.NWorkers; w++ {
		games := base
		if rest > 0 {
			games++
			rest--
		}
		go a.worker(ctx, w, games, listener)
	}
}

func (a *Arena) worker(ctx context.Context, id, nGames int, listener Listener) {
	defer a.wg.Done()
	rng := rand.New(rand.NewSource(int64(id)*2654435761 + 1))

	for g := 0; g < nGames; g++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		p1First := rng.Intn(2) == 0
		white, black := a.Player1, a.Player2
		if !p1First {
			white, black = a.Player2, a.Player1
		}

		_, outcome := playGame(ctx, white, black, a.StartingPosition)
		result := toMatchResult(outcome, p1First)
		a.record(result, outcome.firstPlayerWon)

		if listener != nil {
			listener.OnGameFinished(id, g+1, nGames, &a.Stats)
		}
	}

	if id == 0 {
		a.wg.Wait()
		a.finished.Store(true)
		if listener != nil {
			listener.OnSummary(Summary{
				TotalGames:       a.Total(),
				Player1Wins:      a.P1Wins(),
				Player2Wins:      a.P2Wins(),
				Draws:            a.Draws(),
				FirstToMoveWins:  a.FirstToMoveWins(),
				SecondToMoveWins: a.SecondToMoveWins(),
				Workers:          a.NWorkers,
				Player1Name:      a.Player1.Name,
				Player2Name:      a.Player2.Name,
			})
		}
	}
}

// gameOutcome is a game's result from the first-mover's perspective.
type gameOutcome struct {
	isDraw         bool
	firstPlayerWon bool
}

// playGame drives white and black's drivers move by move until the position
// terminates or the context is cancelled, returning the move list and the
// outcome from the first-mover's perspective.
func playGame(ctx context.Context, white, black *Contestant, start *position.Position) ([]dragontoothmg.Move, gameOutcome) {
	pos := start.Clone()
	moves := make([]dragontoothmg.Move, 0, 100)

	for {
		legal := pos.LegalMoves()
		if term, ok := pos.Terminal(len(legal)); ok {
			return moves, outcomeFrom(term, len(moves))
		}

		select {
		case <-ctx.Done():
			return moves, gameOutcome{isDraw: true}
		default:
		}

		mover := white
		if !pos.WhiteToMove() {
			mover = black
		}

		move, err := mover.Driver.Go(ctx, pos, mover.TimeControl)
		if err != nil {
			// The position collaborator contract (SPEC_FULL.md §7) treats an
			// illegal-position break as fatal; an arena match simply counts
			// the game as a draw rather than crashing the whole run.
			return moves, gameOutcome{isDraw: true}
		}
		pos.ApplyMove(move)
		moves = append(moves, move)
	}
}

// outcomeFrom classifies a finished game from the first-mover's perspective.
// white in playGame is always the contestant who moves first, so the first
// mover delivered the final move exactly when moveCount is odd (1st, 3rd,
// ... ply), the same parity rule as the teacher's computeOutcome.
func outcomeFrom(t position.Termination, moveCount int) gameOutcome {
	if t != position.TerminationCheckmate {
		return gameOutcome{isDraw: true}
	}
	return gameOutcome{firstPlayerWon: moveCount%2 == 1}
}

func toMatchResult(outcome gameOutcome, p1WentFirst bool) MatchResult {
	if outcome.isDraw {
		return Draw
	}
	if p1WentFirst == outcome.firstPlayerWon {
		return Player1Win
	}
	return Player2Win
}
