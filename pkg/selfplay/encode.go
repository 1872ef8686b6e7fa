package selfplay

import (
	"github.com/IlikeChooros/dragontoothmg"
	"github.com/cespare/xxhash/v2"

	"github.com/mctschess/engine/pkg/node"
)

// moveIndex maps a move into one of actionSpace policy-logit slots. The
// exact AlphaZero-style move-to-plane encoding is out of scope (SPEC_FULL.md
// §1 Non-goals: "the specific tensor encoding"), so this hashes the move's
// algebraic string (the same String() used for PV/UCI output throughout the
// teacher repo) with the cache package's xxhash dependency, already wired
// for fingerprint rehashing, to get a stable, deterministic slot.
func moveIndex(m dragontoothmg.Move, actionSpace int) int {
	if actionSpace <= 0 {
		return 0
	}
	h := xxhash.Sum64String(m.String())
	return int(h % uint64(actionSpace))
}

// PriorsFromLogits renormalizes a predictor's raw policy logits down to one
// prior per legal move, masking out every logit slot not addressed by a
// legal move before the softmax (SPEC_FULL.md §4.A step 6). Two legal moves
// that happen to hash to the same slot share that slot's logit, which is an
// accepted consequence of not encoding a real move-to-plane mapping.
func PriorsFromLogits(logits []float32, legalMoves []dragontoothmg.Move, actionSpace int) []float32 {
	if actionSpace <= 0 {
		actionSpace = len(logits)
	}
	padded := make([]float32, actionSpace)
	copy(padded, logits)

	mask := make([]bool, actionSpace)
	for i := range mask {
		mask[i] = true
	}
	indices := make([]int, len(legalMoves))
	for i, mv := range legalMoves {
		idx := moveIndex(mv, actionSpace)
		indices[i] = idx
		mask[idx] = false
	}

	full := node.Softmax(padded, mask)
	priors := make([]float32, len(legalMoves))
	for i, idx := range indices {
		priors[i] = full[idx]
	}
	return renormalize(priors)
}

func renormalize(priors []float32) []float32 {
	var sum float32
	for _, p := range priors {
		sum += p
	}
	if sum <= 0 {
		uniform := float32(1) / float32(max(1, len(priors)))
		for i := range priors {
			priors[i] = uniform
		}
		return priors
	}
	for i := range priors {
		priors[i] /= sum
	}
	return priors
}
