package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
	}
}

func key(owner, name string) string {
	return owner + "\x00" + name
}

// SaveDocument stores or updates a document. Content is not kept.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if doc == nil || doc.Name == "" {
		return fmt.Errorf("document name is required: %w", domain.ErrInvalidInput)
	}
	stored := *doc
	stored.Content = ""
	stored.Metadata = copyMetadata(doc.Metadata)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[key(doc.Owner, doc.Name)] = stored
	return nil
}

// GetDocument retrieves a document by owner and name.
func (s *DocumentStore) GetDocument(_ context.Context, owner, name string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[key(owner, name)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc.Metadata = copyMetadata(doc.Metadata)
	return &doc, nil
}

// DeleteDocument removes a document.
func (s *DocumentStore) DeleteDocument(_ context.Context, owner, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(owner, name)
	if _, ok := s.documents[k]; !ok {
		return domain.ErrNotFound
	}
	delete(s.documents, k)
	return nil
}

// ListDocuments returns all documents in a namespace, ordered by name.
func (s *DocumentStore) ListDocuments(_ context.Context, owner string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []domain.Document
	for _, doc := range s.documents {
		if doc.Owner == owner {
			doc.Metadata = copyMetadata(doc.Metadata)
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
