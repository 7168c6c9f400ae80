package driving

import (
	"context"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// IngestService uploads, indexes and manages a user's documents.
type IngestService interface {
	// Ingest stores, extracts, chunks, embeds and indexes an upload.
	// Embedding failure leaves the document unindexed without failing.
	Ingest(ctx context.Context, user domain.UserContext, name string, data []byte) (*domain.IngestResult, error)

	// Reindex rebuilds a document's index from its stored upload.
	Reindex(ctx context.Context, user domain.UserContext, name string) (*domain.IngestResult, error)

	// Delete removes a document, its upload and its index.
	Delete(ctx context.Context, user domain.UserContext, name string) error

	// List returns the user's documents.
	List(ctx context.Context, user domain.UserContext) ([]domain.Document, error)

	// Prune keeps the newest keep indexes and returns the removed names.
	Prune(ctx context.Context, user domain.UserContext, keep int) ([]string, error)
}
