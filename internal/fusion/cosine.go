package fusion

import "math"

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched dimensions and zero vectors score 0.0 so that a malformed
// candidate drops to the bottom of the ranking instead of aborting it.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
