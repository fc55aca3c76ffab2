package match

import "math"

// Cosine returns the cosine distance between two embeddings: 1 - cos(a, b),
// ranging from 0 (identical direction) to 2 (opposite direction).
// If either vector has zero norm, or the lengths differ, it returns 1.0
// rather than failing, so one bad record cannot abort a whole matching run.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1.0
	}

	return 1.0 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// IsZero reports whether the embedding is empty or the all-zero placeholder
// written when no usable face encoding was produced.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Confidence converts a cosine distance into a percentage score,
// rounded to two decimals.
func Confidence(distance float64) float64 {
	return math.Round((1.0-distance)*100.0*100.0) / 100.0
}
