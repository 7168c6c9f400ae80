package services

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/files"
	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
)

var errProviderDown = errors.New("provider down")

// mockEmbeddingService returns fixed vectors for known texts and a
// bag-of-words hash vector for everything else.
type mockEmbeddingService struct {
	mu      sync.Mutex
	vectors map[string][]float32
	dims    int
	err     error
	// failOn makes any batch containing this text fail.
	failOn  string
	calls   int
	batches [][]string
}

func newMockEmbedder(dims int) *mockEmbeddingService {
	return &mockEmbeddingService{vectors: map[string][]float32{}, dims: dims}
}

func (m *mockEmbeddingService) set(text string, v ...float32) *mockEmbeddingService {
	m.vectors[text] = v
	return m
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.batches = append(m.batches, append([]string(nil), texts...))
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if m.failOn != "" && strings.Contains(t, m.failOn) {
			return nil, errProviderDown
		}
		if v, ok := m.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = hashVector(t, m.dims)
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int            { return m.dims }
func (m *mockEmbeddingService) ModelName() string          { return "mock-embed" }
func (m *mockEmbeddingService) Ping(context.Context) error { return m.err }
func (m *mockEmbeddingService) Close() error               { return nil }

func (m *mockEmbeddingService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// hashVector buckets lower-cased words, so identical texts get identical
// vectors and texts sharing no words are usually far apart.
func hashVector(text string, dims int) []float32 {
	v := make([]float32, dims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,!?;:")))
		v[h.Sum32()%uint32(dims)]++
	}
	return v
}

// mockLLM records prompts and answers with reply, or blocks until the
// context ends when block is set.
type mockLLM struct {
	mu      sync.Mutex
	reply   func(prompt string) (string, error)
	block   bool
	prompts []string
	temps   []float64
}

func (m *mockLLM) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.temps = append(m.temps, temperature)
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.reply == nil {
		return "ok", nil
	}
	return m.reply(prompt)
}

func (m *mockLLM) ModelName() string          { return "mock-llm" }
func (m *mockLLM) Ping(context.Context) error { return nil }
func (m *mockLLM) Close() error               { return nil }

func (m *mockLLM) promptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// paragraphPipeline turns each blank-line separated paragraph into a chunk.
type paragraphPipeline struct{}

func (paragraphPipeline) Process(_ context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, p := range strings.Split(doc.Content, "\n\n") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: doc.ID,
			Content:    strings.TrimSpace(p),
			Position:   len(chunks),
		})
	}
	return chunks, nil
}

var _ driven.PostProcessorPipeline = paragraphPipeline{}

func newTestRegistry(t *testing.T) *files.Registry {
	t.Helper()
	reg, err := files.New(t.TempDir(), 0)
	require.NoError(t, err)
	return reg
}

// saveIndex stores an index without an upload.
func saveIndex(t *testing.T, reg *files.Registry, user domain.UserContext, name string, entries ...driven.IndexEntry) {
	t.Helper()
	require.NoError(t, reg.Save(context.Background(), user, name, "", entries))
}

func entry(pos int, text string, v ...float32) driven.IndexEntry {
	return driven.IndexEntry{Position: pos, Text: text, Vector: v}
}
