package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/files"
	"github.com/custodia-labs/scholar/internal/core/domain"
)

const testQuery = "what improves recall"

func newRetrieval(t *testing.T, provider *mockEmbeddingService) (*RetrievalService, *files.Registry) {
	t.Helper()
	reg := newTestRegistry(t)
	cfg := domain.RetrievalSettings{TopK: 5, Concurrency: 2}
	return NewRetrievalService(reg, NewEmbeddingGateway(provider, 0, 0), cfg), reg
}

func TestRetrieve_MergesAcrossDocuments(t *testing.T) {
	svc, reg := newRetrieval(t, newMockEmbedder(2).set(testQuery, 0, 0))
	user := domain.Anonymous()
	saveIndex(t, reg, user, "a.txt", entry(0, "A chunk", 0.1, 0))
	saveIndex(t, reg, user, "b.txt", entry(0, "B chunk", 0.05, 0))

	report, err := svc.Retrieve(context.Background(), user, testQuery, []string{"a.txt", "b.txt"}, 1)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "b.txt", report.Results[0].Document)
	assert.Equal(t, "B chunk", report.Results[0].Text)
	assert.InDelta(t, 0.05, float64(report.Results[0].Distance), 1e-6)
	assert.Empty(t, report.Skipped)
}

func TestRetrieve_IdenticalChunkRanksFirst(t *testing.T) {
	svc, reg := newRetrieval(t, newMockEmbedder(3).set(testQuery, 1, 2, 3))
	user := domain.ForUser("7")
	saveIndex(t, reg, user, "paper.pdf",
		entry(0, "intro", 0, 0, 0),
		entry(1, "exact", 1, 2, 3),
		entry(2, "close", 1, 2, 4),
	)

	report, err := svc.Retrieve(context.Background(), user, testQuery, []string{"paper.pdf"}, 3)
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	assert.Equal(t, "exact", report.Results[0].Text)
	assert.Zero(t, report.Results[0].Distance)
	assert.Equal(t, "close", report.Results[1].Text)
}

func TestRetrieve_Deterministic(t *testing.T) {
	svc, reg := newRetrieval(t, newMockEmbedder(2).set(testQuery, 0, 0))
	user := domain.Anonymous()
	saveIndex(t, reg, user, "a.txt", entry(0, "a0", 1, 0), entry(1, "a1", 0, 2))
	saveIndex(t, reg, user, "b.txt", entry(0, "b0", 0, 1), entry(1, "b1", 3, 0))
	saveIndex(t, reg, user, "c.txt", entry(0, "c0", 1, 0))

	first, err := svc.Retrieve(context.Background(), user, testQuery, []string{"c.txt", "a.txt", "b.txt"}, 4)
	require.NoError(t, err)
	second, err := svc.Retrieve(context.Background(), user, testQuery, []string{"b.txt", "a.txt", "c.txt"}, 4)
	require.NoError(t, err)

	assert.Equal(t, first.Results, second.Results)
	// Equal distances fall back to document name.
	assert.Equal(t, []string{"a0", "b0", "c0", "a1"}, texts(first.Results))
}

func TestRetrieve_PartialFailureSkipsOneDocument(t *testing.T) {
	svc, reg := newRetrieval(t, newMockEmbedder(2).set(testQuery, 0, 0))
	user := domain.Anonymous()
	saveIndex(t, reg, user, "a.txt", entry(0, "from a", 1, 0))
	saveIndex(t, reg, user, "b.txt", entry(0, "from b", 2, 0))
	saveIndex(t, reg, user, "c.txt", entry(0, "from c", 3, 0))

	corrupt := filepath.Join(reg.Root(), "indexes", user.Namespace(), "b.txt.idx")
	require.NoError(t, os.WriteFile(corrupt, []byte("not an index"), 0o600))

	report, err := svc.Retrieve(context.Background(), user, testQuery, []string{"a.txt", "b.txt", "c.txt"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"from a", "from c"}, texts(report.Results))
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "b.txt", report.Skipped[0].Document)
	assert.Equal(t, "corrupt index", report.Skipped[0].Reason)
	assert.ErrorIs(t, report.Skipped[0].Err, domain.ErrCorruptIndex)
}

func TestRetrieve_MissingIndexIsSkipped(t *testing.T) {
	svc, reg := newRetrieval(t, newMockEmbedder(2).set(testQuery, 0, 0))
	user := domain.Anonymous()
	saveIndex(t, reg, user, "a.txt", entry(0, "from a", 1, 0))

	report, err := svc.Retrieve(context.Background(), user, testQuery, []string{"a.txt", "ghost.pdf"}, 5)
	require.NoError(t, err)
	assert.Len(t, report.Results, 1)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "not processed", report.Skipped[0].Reason)
}

func TestRetrieve_DimensionMismatchIsSkipped(t *testing.T) {
	svc, reg := newRetrieval(t, newMockEmbedder(2).set(testQuery, 0, 0))
	user := domain.Anonymous()
	saveIndex(t, reg, user, "old.txt", entry(0, "old model", 1, 0, 0))

	report, err := svc.Retrieve(context.Background(), user, testQuery, []string{"old.txt"}, 5)
	require.NoError(t, err)
	assert.True(t, report.Empty())
	require.Len(t, report.Skipped, 1)
	assert.ErrorIs(t, report.Skipped[0].Err, domain.ErrDimensionMismatch)
}

func TestRetrieve_AllDocumentsWhenNoneNamed(t *testing.T) {
	svc, reg := newRetrieval(t, newMockEmbedder(2).set(testQuery, 0, 0))
	user := domain.ForUser("1")
	saveIndex(t, reg, user, "a.txt", entry(0, "mine", 1, 0))
	saveIndex(t, reg, domain.ForUser("2"), "b.txt", entry(0, "theirs", 0, 0))

	report, err := svc.Retrieve(context.Background(), user, testQuery, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, texts(report.Results))
}

func TestRetrieve_DuplicateTargetsSearchedOnce(t *testing.T) {
	svc, reg := newRetrieval(t, newMockEmbedder(2).set(testQuery, 0, 0))
	user := domain.Anonymous()
	saveIndex(t, reg, user, "a.txt", entry(0, "only", 1, 0))

	report, err := svc.Retrieve(context.Background(), user, testQuery, []string{"a.txt", "a.txt"}, 5)
	require.NoError(t, err)
	assert.Len(t, report.Results, 1)
}

func TestRetrieve_NoTargets(t *testing.T) {
	provider := newMockEmbedder(2)
	svc, _ := newRetrieval(t, provider)

	report, err := svc.Retrieve(context.Background(), domain.Anonymous(), testQuery, nil, 5)
	require.NoError(t, err)
	assert.True(t, report.Empty())
	assert.Zero(t, provider.callCount())
}

func TestRetrieve_Errors(t *testing.T) {
	provider := newMockEmbedder(2)
	svc, reg := newRetrieval(t, provider)
	saveIndex(t, reg, domain.Anonymous(), "a.txt", entry(0, "x", 1, 0))

	_, err := svc.Retrieve(context.Background(), domain.Anonymous(), "   ", nil, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Retrieve(context.Background(), domain.ForUser("../x"), testQuery, nil, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidNamespace)

	provider.err = errProviderDown
	_, err = svc.Retrieve(context.Background(), domain.Anonymous(), testQuery, []string{"a.txt"}, 5)
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailure)
}

func TestSkipReason(t *testing.T) {
	assert.Equal(t, "stale index", SkipReason(domain.ErrStaleIndex))
	assert.Equal(t, "unreadable index", SkipReason(os.ErrPermission))
}

func texts(chunks []domain.RetrievedChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
