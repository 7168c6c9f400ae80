package postprocessors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// stubProcessor replaces the incoming chunks with fixed ones, or passes
// them through when none are set.
type stubProcessor struct {
	name   string
	chunks []domain.Chunk
	err    error
	calls  int
}

func (s *stubProcessor) Name() string { return s.name }

func (s *stubProcessor) Process(_ context.Context, _ *domain.Document, in []domain.Chunk) ([]domain.Chunk, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.chunks != nil {
		return s.chunks, nil
	}
	return in, nil
}

func chunksOf(texts ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		out[i] = domain.Chunk{ID: text, Content: text, Position: i * 10}
	}
	return out
}

func contents(chunks []domain.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}

func TestPipeline_Process(t *testing.T) {
	paper := &domain.Document{ID: "dpr", Content: "Dense retrieval improves recall."}

	tests := []struct {
		name       string
		processors []*stubProcessor
		want       []string
	}{
		{
			name: "empty pipeline yields no chunks",
			want: nil,
		},
		{
			name:       "single processor",
			processors: []*stubProcessor{{name: "split", chunks: chunksOf("Dense retrieval", "improves recall.")}},
			want:       []string{"Dense retrieval", "improves recall."},
		},
		{
			name: "later processor sees earlier output",
			processors: []*stubProcessor{
				{name: "split", chunks: chunksOf("Dense retrieval improves recall.")},
				{name: "passthrough"},
			},
			want: []string{"Dense retrieval improves recall."},
		},
		{
			name: "last processor wins",
			processors: []*stubProcessor{
				{name: "split", chunks: chunksOf("first")},
				{name: "rewrite", chunks: chunksOf("abstract", "method")},
			},
			want: []string{"abstract", "method"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline()
			for _, proc := range tt.processors {
				p.Add(proc)
			}
			assert.Equal(t, len(tt.processors), p.Len())

			chunks, err := p.Process(context.Background(), paper)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, chunks)
				return
			}
			assert.Equal(t, tt.want, contents(chunks))
			for _, proc := range tt.processors {
				assert.Equal(t, 1, proc.calls)
			}
		})
	}
}

func TestPipeline_Process_NilDocument(t *testing.T) {
	_, err := NewPipeline().Process(context.Background(), nil)
	assert.Error(t, err)
}

func TestPipeline_Process_StopsAtFailingProcessor(t *testing.T) {
	boom := errors.New("tokenizer unavailable")
	failing := &stubProcessor{name: "split", err: boom}
	after := &stubProcessor{name: "after"}

	_, err := NewPipeline(failing, after).Process(context.Background(), &domain.Document{ID: "dpr"})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "processor split")
	assert.Zero(t, after.calls)
}

func TestPipeline_Process_DropsBlankChunksAndRenumbers(t *testing.T) {
	p := NewPipeline(&stubProcessor{name: "split", chunks: chunksOf("alpha", "  \n\t", "gamma", "")})

	chunks, err := p.Process(context.Background(), &domain.Document{ID: "dpr"})
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, "alpha", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Position)
	assert.Equal(t, "gamma", chunks[1].Content)
	assert.Equal(t, 1, chunks[1].Position)
}

func TestPipeline_Process_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proc := &stubProcessor{name: "split"}
	_, err := NewPipeline(proc).Process(ctx, &domain.Document{ID: "dpr"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, proc.calls)
}

func TestPipeline_Process_WithDefaultChunker(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)
	p, err := r.BuildPipeline(domain.PipelineConfigFor(domain.ChunkSettings{Size: 1000, Overlap: 200}))
	require.NoError(t, err)

	paragraph := strings.Repeat("Dense passage retrieval encodes questions and passages. ", 20)
	doc := &domain.Document{ID: "dpr", Content: paragraph + "\n\n" + paragraph + "\n\n" + paragraph}

	chunks, err := p.Process(context.Background(), doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.Position)
		assert.Equal(t, "dpr", c.DocumentID)
		assert.LessOrEqual(t, len(c.Content), 1000)
		assert.NotEmpty(t, strings.TrimSpace(c.Content))
	}
}
