package node

import (
	math32 "github.com/chewxy/math32"
	distrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distmv"
)

// Softmax renormalizes logits over legal indices only: illegalMask[i] true
// means index i is masked to zero before normalizing, per SPEC_FULL.md
// §4.A step 6 ("illegal move priors are masked to zero before softmax").
func Softmax(logits []float32, illegalMask []bool) []float32 {
	out := make([]float32, len(logits))
	maxLogit := float32(math32.Inf(-1))
	for i, l := range logits {
		if illegalMask != nil && i < len(illegalMask) && illegalMask[i] {
			continue
		}
		if l > maxLogit {
			maxLogit = l
		}
	}
	if math32.IsInf(maxLogit, -1) {
		maxLogit = 0
	}

	var sum float32
	for i, l := range logits {
		if illegalMask != nil && i < len(illegalMask) && illegalMask[i] {
			out[i] = 0
			continue
		}
		e := math32.Exp(l - maxLogit)
		out[i] = e
		sum += e
	}
	if sum == 0 {
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// MixDirichletNoise blends root exploration noise into priors in place,
// grounded on _examples/Elvenson-alphabeth/mcts/tree.go's use of
// gonum.org/v1/gonum/stat/distmv.Dirichlet with a golang.org/x/exp/rand
// source, the one pack example of Dirichlet sampling for MCTS root
// exploration. SPEC_FULL.md §4.A: "apply Dirichlet exploration noise to the
// priors (α = rootDirichletAlpha, mix fraction = rootExplorationFraction)".
func MixDirichletNoise(priors []float32, alpha, fraction float32, seed uint64) {
	if len(priors) == 0 || fraction <= 0 {
		return
	}
	alphaVec := make([]float64, len(priors))
	for i := range alphaVec {
		alphaVec[i] = float64(alpha)
	}
	dist := distmv.NewDirichlet(alphaVec, distrand.NewSource(seed))
	noise := dist.Rand(nil)
	for i := range priors {
		priors[i] = (1-fraction)*priors[i] + fraction*float32(noise[i])
	}
}
