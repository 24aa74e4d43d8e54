package util

import (
	"math"
	"sort"
)

// Mean of a float32 vector.
func Mean(vector []float32) float32 {
	n := 0
	sum := float32(0.0)
	for _, v := range vector {
		sum = sum + v
		n++
	}
	return sum / float32(n)
}

func Sigmoid(s []float32) []float32 {
	sigmoid := make([]float32, 0, len(s))

	for _, v := range s {
		v64 := float64(v)
		sigmoid = append(sigmoid, float32(1.0/(1.0+math.Exp(-v64))))
	}
	return sigmoid
}

// SigmoidCrossEntropy computes binary cross-entropy between a 0/1 label and a
// raw logit, in the numerically stable form
// max(x, 0) - x*z + log(1 + exp(-|x|)).
func SigmoidCrossEntropy(label, logit float32) float32 {
	x := float64(logit)
	z := float64(label)
	return float32(math.Max(x, 0) - x*z + math.Log1p(math.Exp(-math.Abs(x))))
}

// TopK returns the indices of the k largest values in scores, highest first.
// Ties are broken by the lower index, so the selection is deterministic for
// reproducible metrics. k is clamped to len(scores); k <= 0 returns nil.
func TopK(scores []float32, k int) []int {
	if k <= 0 {
		return nil
	}
	if k > len(scores) {
		k = len(scores)
	}
	indices := make([]int, len(scores))
	for i := range indices {
		indices[i] = i
	}
	sort.Slice(indices, func(a, b int) bool {
		ia, ib := indices[a], indices[b]
		if scores[ia] != scores[ib] {
			return scores[ia] > scores[ib]
		}
		return ia < ib
	})
	return indices[:k]
}
