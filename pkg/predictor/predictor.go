// Package predictor implements the "batch predictor" capability interface
// from SPEC_FULL.md §4.J/§6/§9: Predict, WarmUp, BatchSize. Two
// implementations ship: Uniform (the offline fallback) and Tensor (a real
// batched neural network evaluator).
package predictor

import "context"

// Encoded is one position's encoded input planes, already produced by the
// caller's encoder (the specific tensor encoding is out of scope per
// SPEC_FULL.md §1 Non-goals; this package only needs a flat float32 slice).
type Encoded []float32

// Output is one position's evaluation: a scalar value in [0,1] and raw
// move-logit scores indexed by the caller's move-index scheme (selfplay
// hashes each move into a slot; masking to legal moves and the softmax
// happen in selfplay.PriorsFromLogits, not here).
type Output struct {
	Value  float32
	Logits []float32
}

// Predictor is the capability interface from SPEC_FULL.md §9's "dynamic
// dispatch over the predictor" design note: a flat interface, no
// inheritance chain, so the real network and the uniform fallback are
// interchangeable.
type Predictor interface {
	Predict(ctx context.Context, batch []Encoded) ([]Output, error)
	WarmUp(ctx context.Context) error
	BatchSize() int
}
