package domain

// EmbeddingResult is the structured outcome of an embedding request.
// It distinguishes "nothing to embed" from "the provider failed".
type EmbeddingResult struct {
	// Vectors holds one vector per non-empty input, in input order.
	Vectors [][]float32

	// Indices maps Vectors[i] back to its position in the original input.
	Indices []int

	// Err is set when the provider failed. It wraps ErrEmbeddingFailure.
	Err error
}

// Failed reports whether the provider failed.
func (r EmbeddingResult) Failed() bool {
	return r.Err != nil
}

// Empty reports whether there was nothing to embed.
func (r EmbeddingResult) Empty() bool {
	return r.Err == nil && len(r.Vectors) == 0
}

// Dimensions returns the vector dimension, or 0 when there are no vectors.
func (r EmbeddingResult) Dimensions() int {
	if len(r.Vectors) == 0 {
		return 0
	}
	return len(r.Vectors[0])
}

// VectorFor returns the vector for input position i, if that input was embedded.
func (r EmbeddingResult) VectorFor(i int) ([]float32, bool) {
	for j, idx := range r.Indices {
		if idx == i {
			return r.Vectors[j], true
		}
	}
	return nil, false
}
