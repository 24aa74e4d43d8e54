package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopK(t *testing.T) {
	scores := []float32{0.1, 5, 3, 5, -2}
	// ties broken by lower index: both 5s come before the 3
	assert.Equal(t, []int{1, 3, 2}, TopK(scores, 3))
	assert.Equal(t, []int{1, 3, 2, 0, 4}, TopK(scores, 10))
	assert.Nil(t, TopK(scores, 0))
	assert.Nil(t, TopK(scores, -1))
}

func TestTopKIsDeterministic(t *testing.T) {
	scores := make([]float32, 100)
	for i := range scores {
		scores[i] = float32(i % 10)
	}
	first := TopK(scores, 20)
	for run := 0; run < 5; run++ {
		assert.Equal(t, first, TopK(scores, 20))
	}
}

func TestSigmoidCrossEntropy(t *testing.T) {
	naive := func(label, logit float64) float64 {
		p := 1.0 / (1.0 + math.Exp(-logit))
		return -(label*math.Log(p) + (1-label)*math.Log(1-p))
	}
	for _, tc := range []struct{ label, logit float32 }{
		{0, 0}, {1, 0}, {0, 2.5}, {1, 2.5}, {0, -7}, {1, -7},
	} {
		assert.InDelta(t, naive(float64(tc.label), float64(tc.logit)),
			float64(SigmoidCrossEntropy(tc.label, tc.logit)), 1e-5,
			"label %f logit %f", tc.label, tc.logit)
	}
	// the stable form must not overflow on large logits
	assert.False(t, math.IsNaN(float64(SigmoidCrossEntropy(1, 1000))))
	assert.False(t, math.IsInf(float64(SigmoidCrossEntropy(0, -1000)), 0))
}

func TestSigmoid(t *testing.T) {
	out := Sigmoid([]float32{0, 100, -100})
	assert.InDelta(t, 0.5, float64(out[0]), 1e-6)
	assert.InDelta(t, 1.0, float64(out[1]), 1e-6)
	assert.InDelta(t, 0.0, float64(out[2]), 1e-6)
}

func TestMean(t *testing.T) {
	assert.Equal(t, float32(2.0), Mean([]float32{1, 2, 3}))
}
