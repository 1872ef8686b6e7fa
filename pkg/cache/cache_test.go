package cache

import "testing"

func TestCacheRoundTrip(t *testing.T) {
	c := New(0.001, 0.001, 0)

	const fp uint64 = 0xdeadbeefcafef00d
	want := Result{Value: 0.73, Priors: []float32{0.2, 0.8}}

	h := c.Reserve(fp)
	if h == nil {
		t.Fatal("expected a reservation handle on an uncontended cache")
	}
	h.Publish(want)

	got, ok := c.Lookup(fp)
	if !ok {
		t.Fatal("expected lookup to hit after publish")
	}
	if got.Value != want.Value {
		t.Fatalf("value mismatch: got %v want %v", got.Value, want.Value)
	}
	if len(got.Priors) != len(want.Priors) || got.Priors[0] != want.Priors[0] {
		t.Fatalf("priors mismatch: got %v want %v", got.Priors, want.Priors)
	}
}

func TestCacheMissBeforePublish(t *testing.T) {
	c := New(0.001, 0.001, 0)
	if _, ok := c.Lookup(12345); ok {
		t.Fatal("expected miss on an empty cache")
	}
}

func TestCacheStaleBeyondMaxPly(t *testing.T) {
	c := New(0.001, 0.001, 4)

	const fp uint64 = 999
	c.SetPly(0)
	h := c.Reserve(fp)
	h.Publish(Result{Value: 0.5})

	c.SetPly(10) // far beyond maxPly=4 relative to the entry's ply
	if _, ok := c.Lookup(fp); ok {
		t.Fatal("expected a stale entry beyond maxPly to be treated as a miss")
	}
}

func TestCacheResetIsThrottled(t *testing.T) {
	c := New(0.001, 0.001, 0)
	if !c.Reset() {
		t.Fatal("expected the first reset to succeed")
	}
	if c.Reset() {
		t.Fatal("expected an immediate second reset to be throttled")
	}
}

func TestRehashIsDeterministic(t *testing.T) {
	a := Rehash([]byte("position-a"))
	b := Rehash([]byte("position-a"))
	c := Rehash([]byte("position-b"))
	if a != b {
		t.Fatal("expected identical input to rehash to the same fingerprint")
	}
	if a == c {
		t.Fatal("expected different input to rehash to different fingerprints (collision is astronomically unlikely here)")
	}
}
