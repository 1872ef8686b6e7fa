package position

import "testing"

func TestNewStartingHasTwentyLegalMoves(t *testing.T) {
	p := NewStarting()
	moves := p.LegalMoves()
	if len(moves) != 20 {
		t.Fatalf("expected 20 legal moves from the starting position, got %d", len(moves))
	}
	if !p.WhiteToMove() {
		t.Fatal("expected white to move from the starting position")
	}
}

func TestApplyMoveAndUndoRoundTrips(t *testing.T) {
	p := NewStarting()
	before := p.Fingerprint()

	moves := p.LegalMoves()
	p.ApplyMove(moves[0])
	if p.Fingerprint() == before {
		t.Fatal("expected fingerprint to change after a move")
	}

	p.Undo()
	if p.Fingerprint() != before {
		t.Fatal("expected fingerprint to be restored after undo")
	}
}

func TestStalemateIsTerminal(t *testing.T) {
	p, err := NewFromFEN("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	if err != nil {
		t.Fatalf("unexpected FEN parse error: %v", err)
	}
	moves := p.LegalMoves()
	term, ok := p.Terminal(len(moves))
	if !ok || term != TerminationStalemate {
		t.Fatalf("expected stalemate, got terminal=%v ok=%v", term, ok)
	}
}

func TestMateInOnePositionHasMatingMove(t *testing.T) {
	p, err := NewFromFEN("6k1/5ppp/8/8/8/8/5PPP/R5K1 w - - 0 1")
	if err != nil {
		t.Fatalf("unexpected FEN parse error: %v", err)
	}
	found := false
	for _, m := range p.LegalMoves() {
		if m.String() == "a1a8" {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected a1a8 to be a legal move in the mate-in-one position")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	p := NewStarting()
	clone := p.Clone()

	moves := p.LegalMoves()
	p.ApplyMove(moves[0])

	if clone.Fingerprint() == p.Fingerprint() {
		t.Fatal("expected clone to be unaffected by moves applied to the original")
	}
}

func TestWithProberAbsentReportsNoTablebaseInfo(t *testing.T) {
	p := NewStarting()
	if _, ok := p.TablebaseProbe(); ok {
		t.Fatal("expected no tablebase info without an attached prober")
	}
}
