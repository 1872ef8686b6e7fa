// Package position adapts github.com/IlikeChooros/dragontoothmg into the
// "position collaborator" contract from SPEC_FULL.md §6: apply/undo move,
// legal move generation, side to move, repetition, terminal classification,
// a stable fingerprint, and an optional tablebase probe. Grounded on the
// dragontoothmg usage in examples/chess/chess-mcts/ucb.go and rave.go.
package position

import (
	"github.com/IlikeChooros/dragontoothmg"

	"github.com/mctschess/engine/pkg/predictor"
)

// TablebaseScoreKind classifies a tablebase probe result.
type TablebaseScoreKind int

const (
	TablebaseUnknown TablebaseScoreKind = iota
	TablebaseWin
	TablebaseDraw
	TablebaseLoss
	TablebaseCursedWin
	TablebaseCursedLoss
)

// TablebaseBound mirrors node.TablebaseBound without importing pkg/node,
// keeping this package free of a dependency on the tree arena.
type TablebaseBound int

const (
	TablebaseBoundNone TablebaseBound = iota
	TablebaseBoundExact
	TablebaseBoundLower
	TablebaseBoundUpper
)

// TablebaseResult is what Prober.Probe returns on a hit.
type TablebaseResult struct {
	Score       TablebaseScoreKind
	Bound       TablebaseBound
	Cardinality int
}

// Prober is an optional capability a position can implement; absence (or a
// false ok) means "no tablebase info", the soft disposition for
// TablebaseProbeFailed in SPEC_FULL.md §7.
type Prober interface {
	Probe() (TablebaseResult, bool)
}

// Termination classifies why a position has no legal continuation.
type Termination int

const (
	TerminationNone Termination = iota
	TerminationCheckmate
	TerminationStalemate
	TerminationFiftyMove
	TerminationInsufficientMaterial
	TerminationThreefold
)

// Position wraps a dragontoothmg.Board with the adapter-owned state
// dragontoothmg itself does not track: repetition history relative to a
// reference ply. Grounded on the ply-indexed search-stack pattern in
// _examples/hailam-chessplay/internal/engine/worker.go, generalized from
// alpha-beta's search stack to a single linear move history since MCTS
// simulations walk one path at a time.
type Position struct {
	board *dragontoothmg.Board

	// history holds one Zobrist fingerprint per ply played so far, so
	// repetition counting is a simple scan rather than re-deriving the
	// hash of every prior position.
	history []uint64

	rootPly int
	prober  Prober
}

// NewStarting returns a position at the standard chess starting position.
func NewStarting() *Position {
	b := dragontoothmg.NewBoard()
	p := &Position{board: b}
	p.history = append(p.history, p.Fingerprint())
	return p
}

// NewFromFEN parses fen into a position.
func NewFromFEN(fen string) (*Position, error) {
	b, err := dragontoothmg.ParseFen(fen)
	if err != nil {
		return nil, err
	}
	p := &Position{board: &b}
	p.history = append(p.history, p.Fingerprint())
	return p, nil
}

// WithProber attaches an optional tablebase prober, returning p for
// chaining.
func (p *Position) WithProber(prober Prober) *Position {
	p.prober = prober
	return p
}

// SetRootPly marks the current ply as the repetition reference point
// (SPEC_FULL.md §4.F: "check twofold/threefold repetition relative to
// searchRootPly").
func (p *Position) SetRootPly() {
	p.rootPly = len(p.history) - 1
}

// ApplyMove plays m and records its resulting fingerprint in history.
func (p *Position) ApplyMove(m dragontoothmg.Move) {
	p.board.Make(m)
	p.history = append(p.history, p.Fingerprint())
}

// Undo reverts the last applied move.
func (p *Position) Undo() {
	p.board.Undo()
	p.history = p.history[:len(p.history)-1]
}

// LegalMoves returns the legal moves from the current position, in
// dragontoothmg's own deterministic generation order (SPEC_FULL.md §3:
// "deterministic from the position collaborator").
func (p *Position) LegalMoves() []dragontoothmg.Move {
	return p.board.GenerateLegalMoves()
}

// WhiteToMove reports the side to move.
func (p *Position) WhiteToMove() bool {
	return p.board.Wtomove
}

// Fingerprint returns a 64-bit hash stable across transpositions.
func (p *Position) Fingerprint() uint64 {
	return p.board.Hash()
}

// RepetitionCount returns how many times the current position's fingerprint
// has occurred at or after rootPly (inclusive of the current occurrence),
// so a caller can test for twofold/threefold directly.
func (p *Position) RepetitionCount() int {
	if len(p.history) == 0 {
		return 0
	}
	current := p.history[len(p.history)-1]
	count := 0
	for i := p.rootPly; i < len(p.history); i++ {
		if p.history[i] == current {
			count++
		}
	}
	return count
}

// Terminal classifies the current position. legalMoveCount is passed in
// because the caller (the worker, mid-descent) has usually already
// generated it for selection purposes and dragontoothmg's own
// IsTerminated takes the count rather than recomputing it.
func (p *Position) Terminal(legalMoveCount int) (Termination, bool) {
	if p.RepetitionCount() >= 3 {
		return TerminationThreefold, true
	}
	if !p.board.IsTerminated(legalMoveCount) {
		return TerminationNone, false
	}
	switch p.board.Termination() {
	case dragontoothmg.TerminationCheckmate:
		return TerminationCheckmate, true
	case dragontoothmg.TerminationStalemate:
		return TerminationStalemate, true
	case dragontoothmg.TerminationFiftyMoveRule:
		return TerminationFiftyMove, true
	case dragontoothmg.TerminationInsufficientMaterial:
		return TerminationInsufficientMaterial, true
	default:
		return TerminationStalemate, true
	}
}

// TablebaseProbe delegates to the attached Prober, if any.
func (p *Position) TablebaseProbe() (TablebaseResult, bool) {
	if p.prober == nil {
		return TablebaseResult{}, false
	}
	return p.prober.Probe()
}

// Encode produces a deterministic, fixed-length input plane for the batch
// predictor (SPEC_FULL.md §1 Non-goals: "the specific tensor encoding" is
// explicitly out of scope, so this derives features from the fingerprint's
// bit pattern via a splitmix64-style mix rather than a real piece-placement
// plane set; what matters for the rest of the engine is that it is stable
// across equivalent positions and independent across feature slots).
func (p *Position) Encode(features int) predictor.Encoded {
	if features < 1 {
		features = 1
	}
	out := make(predictor.Encoded, features)
	h := p.Fingerprint()
	if p.WhiteToMove() {
		h ^= 0x9e3779b97f4a7c15
	}
	for i := range out {
		h += 0x9e3779b97f4a7c15
		x := h
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x = x ^ (x >> 31)
		// Map the top 24 bits into [-1, 1].
		out[i] = float32(int32(x>>40))/float32(1<<23) - 1
	}
	return out
}

// Clone returns an independent deep copy, used to spawn scratch games that
// "never alter shared storage" (SPEC_FULL.md §4.E).
func (p *Position) Clone() *Position {
	history := make([]uint64, len(p.history))
	copy(history, p.history)
	return &Position{
		board:   p.board.Clone(),
		history: history,
		rootPly: p.rootPly,
		prober:  p.prober,
	}
}
