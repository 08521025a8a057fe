// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

package geoclip

import (
	"cmp"
	"math"
	"slices"
)

// Normalize scales v in place to unit L2 norm. A zero vector is left as is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	if sum == 0 {
		return
	}

	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

// Dot returns the inner product of two vectors of equal length.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}

	return sum
}

// Softmax returns exp(x_i) / Σ exp(x_j), computed with the max subtracted.
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}

	peak := slices.Max(logits)
	out := make([]float64, len(logits))

	var sum float64
	for i, x := range logits {
		out[i] = math.Exp(x - peak)
		sum += out[i]
	}

	for i := range out {
		out[i] /= sum
	}

	return out
}

// TopK returns the indices of the k largest scores, highest first. Ties keep
// the gallery order. k is clamped to len(scores).
func TopK(scores []float64, k int) []int {
	k = min(max(k, 0), len(scores))

	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}

	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})

	return idx[:k]
}
