package predictor

import (
	"context"
	"testing"
)

func TestUniformPredictReturnsValueHalf(t *testing.T) {
	u := NewUniform(8)
	out, err := u.Predict(context.Background(), []Encoded{make(Encoded, 4), make(Encoded, 4)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(out))
	}
	for _, o := range out {
		if o.Value != 0.5 {
			t.Errorf("expected uniform value 0.5, got %v", o.Value)
		}
		var sum float32
		for _, l := range o.Logits {
			sum += l
		}
		if sum < 0.99 || sum > 1.01 {
			t.Errorf("expected uniform logits to sum to ~1, got %v", sum)
		}
	}
}

func TestUniformWarmUpIsNoOp(t *testing.T) {
	u := NewUniform(1)
	if err := u.WarmUp(context.Background()); err != nil {
		t.Fatalf("unexpected error from WarmUp: %v", err)
	}
}

func TestUniformBatchSize(t *testing.T) {
	if NewUniform(16).BatchSize() != 16 {
		t.Fatal("expected configured batch size to round-trip")
	}
	if NewUniform(0).BatchSize() != 1 {
		t.Fatal("expected batch size to floor at 1")
	}
}
