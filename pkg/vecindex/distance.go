package vecindex

import "math"

// SquaredL2 calculates the squared Euclidean distance between two vectors.
// Skipping the final sqrt keeps the scan cheap; the ordering is the same.
// Formula: Σ(a[i] - b[i])²
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := 0; i < len(a); i++ {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// NormalizeL2 scales vec to unit Euclidean norm in place. Zero vectors are
// left unchanged to avoid division by zero.
func NormalizeL2(vec []float32) {
	var sum float32
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(float64(sum)))
	for i := range vec {
		vec[i] /= norm
	}
}

// NormalizeBatchL2 normalizes every vector of the batch in place.
// After normalization, squared Euclidean distance is monotonic with cosine
// similarity, so a flat L2 index effectively ranks by cosine.
func NormalizeBatchL2(vectors [][]float32) {
	for _, vec := range vectors {
		NormalizeL2(vec)
	}
}
