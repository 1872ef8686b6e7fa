package driver

import (
	"fmt"
	"strings"

	"github.com/IlikeChooros/dragontoothmg"
	"github.com/muesli/termenv"

	"github.com/mctschess/engine/pkg/node"
)

// Line is one reportable snapshot of the search's principal variation,
// shaped after the UCI-style "info ..." line described in SPEC_FULL.md §6,
// grounded on the teacher's ListenerTreeStats/SearchLine
// (pkg/mcts/stats_listener.go) and examples/chess/main.go's OnDepth
// formatting.
type Line struct {
	Nodes   int32
	Elapsed float64 // seconds
	Eval    float32 // [0,1], side to move at root
	Mate    int32   // 0 if not a proven mate
	PV      []dragontoothmg.Move
}

// Listener receives PV updates during a search. A nil Listener is valid:
// callers that don't care about live output just leave Driver.Listener nil.
type Listener interface {
	OnPrincipalVariation(Line)
	OnBestMove(move dragontoothmg.Move)
}

// ConsoleListener prints UCI-shaped lines to stdout, coloring the score the
// way a human-facing CLI (rather than a UCI GUI) wants it: green for an
// advantage, red for a proven mate against the side to move, grounded on the
// teacher's termenv dependency (listed in its go.mod but never wired to any
// output in the teacher itself; this is the first place in the pack it's
// actually exercised).
type ConsoleListener struct{}

// NewConsoleListener builds a listener that prints colored PV lines.
func NewConsoleListener() *ConsoleListener {
	return &ConsoleListener{}
}

func (l *ConsoleListener) OnPrincipalVariation(line Line) {
	score := fmt.Sprintf("cp %d", int(line.Eval*1000)-500)
	color := termenv.ANSIGreen
	if line.Mate != 0 {
		score = fmt.Sprintf("mate %d", line.Mate)
		if line.Mate < 0 {
			color = termenv.ANSIRed
		}
	} else if line.Eval < 0.5 {
		color = termenv.ANSIYellow
	}
	styled := termenv.String(score).Foreground(color).String()

	fmt.Printf("info nodes %d time %.0f score %s pv %s\n",
		line.Nodes, line.Elapsed*1000, styled, movesToString(line.PV))
}

func (l *ConsoleListener) OnBestMove(move dragontoothmg.Move) {
	fmt.Printf("bestmove %s\n", move.String())
}

func movesToString(mvs []dragontoothmg.Move) string {
	parts := make([]string, len(mvs))
	for i, m := range mvs {
		parts[i] = m.String()
	}
	return strings.Join(parts, " ")
}

// buildPV walks root's advisory bestChild chain to produce the principal
// variation, capped at maxLen plies. Grounded on the teacher's
// toListenerStats walking tree.MultiPv, simplified to the single best line
// (SPEC_FULL.md §6: "multipv 1").
func buildPV(root *node.Node, maxLen int) []dragontoothmg.Move {
	pv := make([]dragontoothmg.Move, 0, maxLen)
	cur := root
	for i := 0; i < maxLen; i++ {
		next := cur.BestChild()
		if next == nil {
			break
		}
		pv = append(pv, next.Move)
		if !next.Expanded() {
			break
		}
		cur = next
	}
	return pv
}
