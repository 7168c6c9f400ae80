package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

func TestDocumentStore_SaveAndGet(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	doc := &domain.Document{
		ID:       "d1",
		Owner:    "user_1",
		Name:     "paper.pdf",
		Title:    "Paper",
		Content:  "full text",
		Metadata: map[string]any{"pages": 3},
	}
	require.NoError(t, store.SaveDocument(ctx, doc))

	got, err := store.GetDocument(ctx, "user_1", "paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, "d1", got.ID)
	assert.Equal(t, "Paper", got.Title)
	assert.Empty(t, got.Content)
	assert.Equal(t, 3, got.Metadata["pages"])

	got.Metadata["pages"] = 9
	again, err := store.GetDocument(ctx, "user_1", "paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, 3, again.Metadata["pages"])
}

func TestDocumentStore_NamespacesAreSeparate(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{Owner: "user_1", Name: "a.txt"}))

	_, err := store.GetDocument(ctx, "user_2", "a.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_List(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	for _, name := range []string{"c.txt", "a.txt", "b.txt"} {
		require.NoError(t, store.SaveDocument(ctx, &domain.Document{Owner: "user_1", Name: name}))
	}
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{Owner: "shared", Name: "z.txt"}))

	docs, err := store.ListDocuments(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "a.txt", docs[0].Name)
	assert.Equal(t, "c.txt", docs[2].Name)
}

func TestDocumentStore_Delete(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{Owner: "o", Name: "a.txt"}))

	require.NoError(t, store.DeleteDocument(ctx, "o", "a.txt"))
	assert.ErrorIs(t, store.DeleteDocument(ctx, "o", "a.txt"), domain.ErrNotFound)
}

func TestDocumentStore_SaveRequiresName(t *testing.T) {
	store := NewDocumentStore()
	assert.ErrorIs(t, store.SaveDocument(context.Background(), &domain.Document{}), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.SaveDocument(context.Background(), nil), domain.ErrInvalidInput)
}
