package nlp

import "math"

// Cosine computes the cosine similarity of two vectors. Mismatched lengths or
// a zero-norm side yield 0 rather than an error; similarity over news text is
// treated as effectively [0,1].
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
