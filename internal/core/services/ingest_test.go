package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/files"
	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/normalisers"
	"github.com/custodia-labs/scholar/internal/postprocessors"
)

type ingestFixture struct {
	svc      *IngestService
	reg      *files.Registry
	docs     *memory.DocumentStore
	provider *mockEmbeddingService
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	pp := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(pp)
	pipeline, err := pp.BuildPipeline(domain.PipelineConfigFor(domain.ChunkSettings{Size: 100, Overlap: 20}))
	require.NoError(t, err)

	f := &ingestFixture{
		reg:      newTestRegistry(t),
		docs:     memory.NewDocumentStore(),
		provider: newMockEmbedder(16),
	}
	f.svc = NewIngestService(
		f.reg,
		normalisers.NewDefaultRegistry(domain.DefaultSettings().Extraction),
		pipeline,
		NewEmbeddingGateway(f.provider, 8, 0),
		f.docs,
	)
	return f
}

var paperText = []byte(strings.Repeat("Neural retrieval improves recall on long documents. ", 12))

func TestIngest_IndexesDocument(t *testing.T) {
	f := newIngestFixture(t)
	user := domain.ForUser("42")

	result, err := f.svc.Ingest(context.Background(), user, "paper.txt", paperText)
	require.NoError(t, err)
	assert.True(t, result.Indexed)
	assert.Empty(t, result.Reason)
	assert.Greater(t, result.Chunks, 1)

	idx, err := f.reg.Load(context.Background(), user, "paper.txt")
	require.NoError(t, err)
	assert.Equal(t, result.Chunks, idx.Len())
	assert.Equal(t, 16, idx.Dimensions())
	assert.Equal(t, domain.Checksum(paperText), idx.SourceChecksum())

	doc, err := f.docs.GetDocument(context.Background(), "user_42", "paper.txt")
	require.NoError(t, err)
	assert.True(t, doc.Indexed)
	assert.Equal(t, result.Chunks, doc.ChunkCount)
	assert.Equal(t, domain.FormatText, doc.Format)
	assert.NotEmpty(t, doc.ID)
	assert.Empty(t, doc.Content)
}

func TestIngest_ReuploadKeepsIdentity(t *testing.T) {
	f := newIngestFixture(t)
	user := domain.Anonymous()
	ctx := context.Background()

	first, err := f.svc.Ingest(ctx, user, "paper.txt", paperText)
	require.NoError(t, err)
	f.svc.now = func() time.Time { return first.Document.CreatedAt.Add(time.Hour) }

	second, err := f.svc.Ingest(ctx, user, "paper.txt", []byte("A different text about something else entirely."))
	require.NoError(t, err)
	assert.Equal(t, first.Document.ID, second.Document.ID)
	assert.Equal(t, first.Document.CreatedAt, second.Document.CreatedAt)
	assert.True(t, second.Document.UpdatedAt.After(first.Document.UpdatedAt))

	idx, err := f.reg.Load(ctx, user, "paper.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
}

func TestIngest_EmbeddingFailureStoresWithoutIndex(t *testing.T) {
	f := newIngestFixture(t)
	f.provider.err = errProviderDown
	user := domain.Anonymous()
	ctx := context.Background()

	result, err := f.svc.Ingest(ctx, user, "paper.txt", paperText)
	require.NoError(t, err)
	assert.False(t, result.Indexed)
	assert.Equal(t, ReasonEmbeddingFailed, result.Reason)

	_, err = f.reg.Load(ctx, user, "paper.txt")
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)
	data, err := f.reg.ReadUpload(ctx, user, "paper.txt")
	require.NoError(t, err)
	assert.Equal(t, paperText, data)

	// Once the provider recovers the stored upload can be indexed.
	f.provider.err = nil
	result, err = f.svc.Reindex(ctx, user, "paper.txt")
	require.NoError(t, err)
	assert.True(t, result.Indexed)

	doc, err := f.docs.GetDocument(ctx, user.Namespace(), "paper.txt")
	require.NoError(t, err)
	assert.True(t, doc.Indexed)
}

func TestIngest_ReuploadWithoutIndexDropsOldIndex(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		down   bool
		reason string
	}{
		{"embedding fails", []byte("A revised draft about dense retrieval and recall."), true, ReasonEmbeddingFailed},
		{"no text", []byte("   \n\n  "), false, ReasonNoText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture(t)
			user := domain.Anonymous()
			ctx := context.Background()

			_, err := f.svc.Ingest(ctx, user, "paper.txt", paperText)
			require.NoError(t, err)

			if tt.down {
				f.provider.err = errProviderDown
			}
			result, err := f.svc.Ingest(ctx, user, "paper.txt", tt.data)
			require.NoError(t, err)
			assert.False(t, result.Indexed)
			assert.Equal(t, tt.reason, result.Reason)

			infos, err := f.reg.List(ctx, user)
			require.NoError(t, err)
			assert.Empty(t, infos)
			_, err = f.reg.Load(ctx, user, "paper.txt")
			assert.ErrorIs(t, err, domain.ErrIndexNotFound)

			data, err := f.reg.ReadUpload(ctx, user, "paper.txt")
			require.NoError(t, err)
			assert.Equal(t, tt.data, data)
		})
	}
}

func TestIngest_NoText(t *testing.T) {
	f := newIngestFixture(t)

	result, err := f.svc.Ingest(context.Background(), domain.Anonymous(), "blank.txt", []byte("   \n\n  "))
	require.NoError(t, err)
	assert.False(t, result.Indexed)
	assert.Equal(t, ReasonNoText, result.Reason)
	assert.Zero(t, f.provider.callCount())
}

func TestIngest_RejectsBeforeWriting(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, domain.Anonymous(), "slides.pptx", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrDocumentFormat)
	_, err = f.reg.ReadUpload(ctx, domain.Anonymous(), "slides.pptx")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Ingest(ctx, domain.Anonymous(), "../escape.txt", paperText)
	assert.ErrorIs(t, err, domain.ErrInvalidNamespace)

	_, err = f.svc.Ingest(ctx, domain.ForUser("a/b"), "paper.txt", paperText)
	assert.ErrorIs(t, err, domain.ErrInvalidNamespace)
}

func TestReindex_ResolvesStaleIndex(t *testing.T) {
	f := newIngestFixture(t)
	user := domain.Anonymous()
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, user, "paper.txt", paperText)
	require.NoError(t, err)
	require.NoError(t, f.reg.SaveUpload(ctx, user, "paper.txt", []byte("Edited outside the pipeline.")))

	_, err = f.reg.Load(ctx, user, "paper.txt")
	assert.ErrorIs(t, err, domain.ErrStaleIndex)

	_, err = f.svc.Reindex(ctx, user, "paper.txt")
	require.NoError(t, err)
	idx, err := f.reg.Load(ctx, user, "paper.txt")
	require.NoError(t, err)
	assert.Equal(t, "Edited outside the pipeline.", idx.Entries()[0].Text)

	_, err = f.svc.Reindex(ctx, user, "ghost.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngest_DeleteAndList(t *testing.T) {
	f := newIngestFixture(t)
	user := domain.ForUser("1")
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, user, "b.txt", paperText)
	require.NoError(t, err)
	_, err = f.svc.Ingest(ctx, user, "a.txt", paperText)
	require.NoError(t, err)
	_, err = f.svc.Ingest(ctx, domain.ForUser("2"), "c.txt", paperText)
	require.NoError(t, err)

	docs, err := f.svc.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.txt", docs[0].Name)
	assert.Equal(t, "b.txt", docs[1].Name)

	require.NoError(t, f.svc.Delete(ctx, user, "a.txt"))
	_, err = f.reg.Load(ctx, user, "a.txt")
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)
	docs, err = f.svc.List(ctx, user)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	assert.ErrorIs(t, f.svc.Delete(ctx, user, "a.txt"), domain.ErrNotFound)
}

func TestIngest_PruneMarksCatalogUnindexed(t *testing.T) {
	f := newIngestFixture(t)
	user := domain.Anonymous()
	ctx := context.Background()

	for _, name := range []string{"old.txt", "new.txt"} {
		_, err := f.svc.Ingest(ctx, user, name, paperText)
		require.NoError(t, err)
	}
	past := time.Now().Add(-time.Hour)
	oldIdx := filepath.Join(f.reg.Root(), "indexes", user.Namespace(), "old.txt.idx")
	require.NoError(t, os.Chtimes(oldIdx, past, past))

	removed, err := f.svc.Prune(ctx, user, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.txt"}, removed)

	doc, err := f.docs.GetDocument(ctx, user.Namespace(), "old.txt")
	require.NoError(t, err)
	assert.False(t, doc.Indexed)
	assert.Zero(t, doc.ChunkCount)

	_, err = f.svc.Reindex(ctx, user, "old.txt")
	require.NoError(t, err)
}
