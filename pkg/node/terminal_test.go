package node

import "testing"

func TestTerminalClassification(t *testing.T) {
	cases := []struct {
		name string
		t    Terminal
		draw bool
		own  bool
		opp  bool
	}{
		{"absent", TerminalAbsent, false, false, false},
		{"draw", Draw(), true, false, false},
		{"own mate in 1", MateIn(1), false, true, false},
		{"opponent mate in 4", OpponentMateIn(4), false, false, true},
	}
	for _, c := range cases {
		if got := c.t.IsDraw(); got != c.draw {
			t.Errorf("%s: IsDraw() = %v, want %v", c.name, got, c.draw)
		}
		if got := c.t.IsOwnMate(); got != c.own {
			t.Errorf("%s: IsOwnMate() = %v, want %v", c.name, got, c.own)
		}
		if got := c.t.IsOpponentMate(); got != c.opp {
			t.Errorf("%s: IsOpponentMate() = %v, want %v", c.name, got, c.opp)
		}
	}
}

func TestImmediateValue(t *testing.T) {
	if v := Draw().ImmediateValue(); v != 0.5 {
		t.Errorf("draw immediate value = %v, want 0.5", v)
	}
	if v := MateIn(2).ImmediateValue(); v != 1.0 {
		t.Errorf("own mate immediate value = %v, want 1.0", v)
	}
	if v := OpponentMateIn(2).ImmediateValue(); v != 0.0 {
		t.Errorf("opponent mate immediate value = %v, want 0.0", v)
	}
}

func TestMateScoreMonotoneByDistance(t *testing.T) {
	shortMate := MateIn(1).MateScore(0.25)
	longMate := MateIn(5).MateScore(0.25)
	if shortMate <= longMate {
		t.Fatalf("mate-in-1 score (%v) should exceed mate-in-5 score (%v)", shortMate, longMate)
	}
	if shortMate <= 0.5 || shortMate > 1 {
		t.Fatalf("own mate score %v should be in (0.5, 1]", shortMate)
	}

	delayedLoss := OpponentMateIn(5).MateScore(0.25)
	immediateLoss := OpponentMateIn(1).MateScore(0.25)
	if delayedLoss <= immediateLoss {
		t.Fatalf("delayed opponent mate (%v) should score above immediate (%v)", delayedLoss, immediateLoss)
	}
	if immediateLoss < 0 || immediateLoss >= 0.5 {
		t.Fatalf("opponent mate score %v should be in [0, 0.5)", immediateLoss)
	}
}

func TestMateScorePromotion(t *testing.T) {
	if !MateIn(3).Promoted(MateIn(1)) {
		t.Fatal("mate-in-1 should be considered a promotion over mate-in-3")
	}
	if MateIn(1).Promoted(MateIn(3)) {
		t.Fatal("mate-in-3 must not be a promotion over mate-in-1")
	}
	if !OpponentMateIn(1).Promoted(OpponentMateIn(3)) {
		t.Fatal("opponent-mate-in-3 (more delay) should be a promotion over opponent-mate-in-1")
	}
}
