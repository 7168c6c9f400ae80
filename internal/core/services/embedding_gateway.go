package services

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/logger"
)

// EmbeddingGateway wraps an embedding provider. It drops empty inputs,
// keeps outputs aligned with the surviving inputs, and reports provider
// failures as data instead of errors.
type EmbeddingGateway struct {
	provider  driven.EmbeddingService
	batchSize int
	cache     *lru.Cache[[sha256.Size]byte, []float32]
}

// NewEmbeddingGateway creates a gateway. batchSize caps texts per provider
// call (zero means unlimited); cacheSize bounds the embedding cache (zero
// disables it). A nil provider makes every non-empty request fail.
func NewEmbeddingGateway(provider driven.EmbeddingService, batchSize, cacheSize int) *EmbeddingGateway {
	g := &EmbeddingGateway{provider: provider, batchSize: batchSize}
	if cacheSize > 0 {
		if cache, err := lru.New[[sha256.Size]byte, []float32](cacheSize); err == nil {
			g.cache = cache
		}
	}
	return g
}

// ModelName returns the provider's model, or "" without a provider.
func (g *EmbeddingGateway) ModelName() string {
	if g.provider == nil {
		return ""
	}
	return g.provider.ModelName()
}

// Embed embeds the non-blank entries of texts.
//
// Result.Indices[i] is the position in texts of Result.Vectors[i]. An input
// with nothing to embed yields an empty result without calling the provider.
// Every vector in a successful result has the same dimension.
func (g *EmbeddingGateway) Embed(ctx context.Context, texts []string) domain.EmbeddingResult {
	var (
		kept    []string
		indices []int
	)
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		kept = append(kept, t)
		indices = append(indices, i)
	}
	if len(kept) == 0 {
		return domain.EmbeddingResult{}
	}
	if g.provider == nil {
		return g.fail(len(kept), domain.ErrEmbeddingUnavailable)
	}

	vectors := make([][]float32, len(kept))
	var (
		missing []string
		slots   []int
	)
	for i, t := range kept {
		if v, ok := g.cached(t); ok {
			vectors[i] = v
			continue
		}
		missing = append(missing, t)
		slots = append(slots, i)
	}

	for start := 0; start < len(missing); {
		end := len(missing)
		if g.batchSize > 0 && start+g.batchSize < end {
			end = start + g.batchSize
		}
		batch, err := g.provider.EmbedBatch(ctx, missing[start:end])
		if err != nil {
			return g.fail(len(kept), err)
		}
		if len(batch) != end-start {
			return g.fail(len(kept), fmt.Errorf("provider returned %d vectors for %d texts", len(batch), end-start))
		}
		for j, v := range batch {
			vectors[slots[start+j]] = v
			g.store(missing[start+j], v)
		}
		start = end
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return g.fail(len(kept), fmt.Errorf("vector %d has dimension %d, want %d: %w",
				indices[i], len(v), dim, domain.ErrDimensionMismatch))
		}
	}

	logger.Debug("embedding: %d texts (%d cached)", len(kept), len(kept)-len(missing))
	return domain.EmbeddingResult{Vectors: vectors, Indices: indices}
}

// EmbedOne embeds a single text. It fails when the text is blank.
func (g *EmbeddingGateway) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	res := g.Embed(ctx, []string{text})
	if res.Failed() {
		return nil, res.Err
	}
	if res.Empty() {
		return nil, fmt.Errorf("empty text: %w", domain.ErrInvalidInput)
	}
	return res.Vectors[0], nil
}

func (g *EmbeddingGateway) fail(n int, err error) domain.EmbeddingResult {
	logger.With("texts", n, "model", g.ModelName()).Warn("embedding failed", "err", err)
	return domain.EmbeddingResult{Err: fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, err)}
}

func (g *EmbeddingGateway) cached(text string) ([]float32, bool) {
	if g.cache == nil {
		return nil, false
	}
	return g.cache.Get(sha256.Sum256([]byte(text)))
}

func (g *EmbeddingGateway) store(text string, v []float32) {
	if g.cache != nil && len(v) > 0 {
		g.cache.Add(sha256.Sum256([]byte(text)), v)
	}
}
