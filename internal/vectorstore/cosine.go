package vectorstore

import "math"

// CosineDistance reports how far apart two embeddings point, as 1 minus
// their cosine similarity. Identical directions score 0 and opposite
// directions 2. Mismatched lengths and zero vectors yield the maximum
// distance so a broken gallery entry sorts behind every real candidate
// instead of failing the whole match.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2.0
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Rounding can push the quotient just past the valid range.
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return 1 - similarity
}
