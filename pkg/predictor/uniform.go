package predictor

import "context"

// Uniform is the PredictBatchUniform fallback from SPEC_FULL.md §6: returns
// 0.5 value and equal logits over the slots of each position's encoded
// input (not over its legal moves), used when the real predictor is offline
// (PredictorUnavailable, §7). Zero dependencies, always available.
type Uniform struct {
	batchSize int
}

// NewUniform builds a Uniform predictor advertising the given batch size
// (for worker-side batching accounting; Uniform itself has no batching
// cost and would happily answer any size).
func NewUniform(batchSize int) *Uniform {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Uniform{batchSize: batchSize}
}

// Predict returns 0.5/uniform-prior outputs for every position in batch.
// The legal-move count of a position is not available here, so Uniform
// returns one logit of 1/len(enc) per input plane slot; callers
// renormalize over legal indices the same way they would for a real
// network's output (SPEC_FULL.md §4.A step 6).
func (u *Uniform) Predict(_ context.Context, batch []Encoded) ([]Output, error) {
	out := make([]Output, len(batch))
	for i, enc := range batch {
		n := len(enc)
		if n == 0 {
			n = 1
		}
		logits := make([]float32, n)
		uniform := float32(1.0) / float32(n)
		for j := range logits {
			logits[j] = uniform
		}
		out[i] = Output{Value: 0.5, Logits: logits}
	}
	return out, nil
}

// WarmUp is a no-op: there is no lazy runtime initialization to force.
func (u *Uniform) WarmUp(context.Context) error { return nil }

// BatchSize reports the configured nominal batch size.
func (u *Uniform) BatchSize() int { return u.batchSize }
