// Package node implements the cache-line-aligned search tree arena: node
// records, the expansion protocol, pruning, and terminal-value encoding.
package node

import math32 "github.com/chewxy/math32"

// Terminal is a tagged, signed value describing why a node has no children.
// It is a 16-bit value stored widened in an atomic 32-bit word alongside the
// node (see Node.terminal), so the zero value must mean "absent".
type Terminal int16

const (
	// TerminalAbsent marks a non-terminal node. Must stay the zero value:
	// freshly allocated nodes are terminal-absent without an explicit store.
	TerminalAbsent Terminal = 0

	// terminalDrawTag is stored as the most negative value representable,
	// distinct from any reachable mate distance, so Draw never aliases a
	// real mate-in-N count.
	terminalDrawTag Terminal = -32768
)

// Draw reports a drawn terminal (stalemate, 50-move, insufficient material,
// threefold repetition).
func Draw() Terminal { return terminalDrawTag }

// MateIn reports that the side to move at this node delivers mate in n full
// moves (n >= 1).
func MateIn(n int) Terminal { return Terminal(n) }

// OpponentMateIn reports that the opponent delivers mate in n full moves
// against the side to move at this node (n >= 1).
func OpponentMateIn(n int) Terminal { return Terminal(-n) }

// IsAbsent reports whether t encodes "non-terminal".
func (t Terminal) IsAbsent() bool { return t == TerminalAbsent }

// IsDraw reports whether t encodes a drawn terminal.
func (t Terminal) IsDraw() bool { return t == terminalDrawTag }

// IsOwnMate reports whether t encodes "side to move delivers mate".
func (t Terminal) IsOwnMate() bool { return t > TerminalAbsent && t != terminalDrawTag }

// IsOpponentMate reports whether t encodes "opponent delivers mate".
func (t Terminal) IsOpponentMate() bool { return t < TerminalAbsent && t != terminalDrawTag }

// MateDistance returns the number of full moves to the encoded mate. Only
// meaningful when IsOwnMate or IsOpponentMate is true.
func (t Terminal) MateDistance() int {
	if t.IsOwnMate() {
		return int(t)
	}
	if t.IsOpponentMate() {
		return -int(t)
	}
	return 0
}

// Promoted reports whether other is a strictly shorter (for own mate) or
// strictly longer-delaying (for opponent mate) terminal than t — used to
// enforce the monotone-mate testable property: once a node is own-mate-in-k,
// it may only ever be replaced by own-mate-in-<=k.
func (t Terminal) Promoted(other Terminal) bool {
	switch {
	case t.IsOwnMate() && other.IsOwnMate():
		return other.MateDistance() < t.MateDistance()
	case t.IsOpponentMate() && other.IsOpponentMate():
		return other.MateDistance() > t.MateDistance()
	default:
		return false
	}
}

// ImmediateValue returns the value in [0,1] associated with this terminal,
// from the perspective of the side to move at the node: 1.0 for own mate,
// 0.0 for opponent mate, 0.5 for a draw. Callers on a non-terminal node
// should not call this (IsAbsent guards it).
func (t Terminal) ImmediateValue() float32 {
	switch {
	case t.IsDraw():
		return 0.5
	case t.IsOwnMate():
		return 1.0
	case t.IsOpponentMate():
		return 0.0
	default:
		return 0.5
	}
}

// MateScore maps a terminal mate distance to a monotone value in [0,1]: own
// mates land above 0.5 with shorter distances closer to 1, opponent mates
// land below 0.5 with longer distances (more delay) closer to 0.5.
// explorationRate (clamped to (0,1]) scales how far the own/opponent bands
// reach from 0.5, so the PUCT layer can still meaningfully order two
// different mate-in-N scores without ever leaving the [0,1] value bound.
func (t Terminal) MateScore(explorationRate float32) float32 {
	if !t.IsOwnMate() && !t.IsOpponentMate() {
		return t.ImmediateValue()
	}
	rate := explorationRate
	if rate <= 0 {
		rate = 1e-3
	}
	if rate > 1 {
		rate = 1
	}
	d := math32.Abs(float32(t))
	if t.IsOwnMate() {
		// Closer to 1 for shorter distances, always > 0.5.
		return 0.5 + 0.5*rate/d
	}
	// Closer to 0.5 (i.e. less bad) for longer delays, always < 0.5.
	return 0.5 - 0.5*rate/d
}
