package domain

import "math"

// L2Distance is a Euclidean distance between two vectors. Lower is closer.
type L2Distance float64

// CosineScore is a cosine similarity in [-1, 1]. Higher is more similar.
type CosineScore float64

// VectorHit is a single nearest-neighbour result from one document index.
type VectorHit struct {
	// Position is the chunk position within the document.
	Position int

	// Text is the chunk text stored alongside the vector.
	Text string

	// Distance is the L2 distance from the query.
	Distance L2Distance
}

// RetrievedChunk is a hit tagged with the document it came from.
type RetrievedChunk struct {
	// Document is the filename of the source document.
	Document string

	// Position is the chunk position within the document.
	Position int

	// Text is the chunk text.
	Text string

	// Distance is the L2 distance from the query.
	Distance L2Distance
}

// SkippedDocument records a document left out of a fan-out and why.
type SkippedDocument struct {
	// Document is the filename that was skipped.
	Document string

	// Reason is a short explanation.
	Reason string

	// Err is the underlying error.
	Err error `json:"-"`
}

// RetrievalReport is the ranked outcome of a multi-document retrieval.
type RetrievalReport struct {
	// Query is the question that was embedded.
	Query string

	// Results are ordered by distance ascending, at most k long.
	Results []RetrievedChunk

	// Skipped lists documents whose index could not be searched.
	Skipped []SkippedDocument
}

// Empty reports whether no chunks were retrieved.
func (r *RetrievalReport) Empty() bool {
	return r == nil || len(r.Results) == 0
}

// Answer is a language-model response grounded in retrieved chunks.
type Answer struct {
	// Question is the user's question.
	Question string

	// Text is the model's answer.
	Text string

	// Sources are the chunks given to the model as context.
	Sources []RetrievedChunk

	// Skipped lists documents that could not be searched.
	Skipped []SkippedDocument
}

// SquaredL2 returns the squared Euclidean distance between equal-length vectors.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Cosine returns the cosine similarity of two equal-length vectors.
// A zero vector has similarity 0 with everything.
func Cosine(a, b []float32) CosineScore {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return CosineScore(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
