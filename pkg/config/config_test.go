package config

import "testing"

func TestNewHasSaneDefaults(t *testing.T) {
	c := New()
	if c.NumWorkers < 1 {
		t.Fatal("expected at least one worker by default")
	}
	if c.PredictionBatchSize < 1 {
		t.Fatal("expected a positive default batch size")
	}
}

func TestFluentSettersDoNotMutateReceiver(t *testing.T) {
	base := New()
	baseWorkers := base.NumWorkers

	modified := base.SetNumWorkers(baseWorkers + 10)

	if base.NumWorkers != baseWorkers {
		t.Fatalf("expected base config untouched, got %d", base.NumWorkers)
	}
	if modified.NumWorkers != baseWorkers+10 {
		t.Fatalf("expected modified config to carry the new value, got %d", modified.NumWorkers)
	}
}

func TestFreezeRejectsFurtherMutation(t *testing.T) {
	frozen := New().SetNumWorkers(2).Freeze()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected mutating a frozen config to panic")
		}
	}()
	frozen.SetNumWorkers(99)
}

func TestSafetyBufferConversion(t *testing.T) {
	c := New()
	c.TimeControlSafetyBufferMilliseconds = 250
	if got := c.SafetyBuffer().Milliseconds(); got != 250 {
		t.Fatalf("expected 250ms, got %dms", got)
	}
}
