package driving

import (
	"context"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// RetrievalService ranks chunks across a user's documents.
type RetrievalService interface {
	// Retrieve returns the k chunks closest to query across documents.
	// Documents that cannot be searched are skipped and reported.
	Retrieve(ctx context.Context, user domain.UserContext, query string, documents []string, k int) (*domain.RetrievalReport, error)
}

// AskService answers questions from retrieved context.
type AskService interface {
	// Ask retrieves context and asks the language model to answer from it.
	Ask(ctx context.Context, user domain.UserContext, question string, documents []string) (*domain.Answer, error)
}
