package driven

import (
	"context"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// DocumentStore persists the document catalog.
// Only metadata is stored; text lives in the index artifacts.
type DocumentStore interface {
	// SaveDocument stores or updates a document keyed by owner and name.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by owner namespace and filename.
	GetDocument(ctx context.Context, owner, name string) (*domain.Document, error)

	// DeleteDocument removes a document.
	DeleteDocument(ctx context.Context, owner, name string) error

	// ListDocuments returns all documents in a namespace, ordered by name.
	ListDocuments(ctx context.Context, owner string) ([]domain.Document, error)
}
