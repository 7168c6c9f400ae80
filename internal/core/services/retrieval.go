package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
	"github.com/custodia-labs/scholar/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// RetrievalService ranks chunks across several document indexes.
type RetrievalService struct {
	registry driven.IndexRegistry
	gateway  *EmbeddingGateway
	cfg      domain.RetrievalSettings
	tracer   trace.Tracer
}

// NewRetrievalService creates a new retrieval service.
func NewRetrievalService(
	registry driven.IndexRegistry,
	gateway *EmbeddingGateway,
	cfg domain.RetrievalSettings,
) *RetrievalService {
	if cfg.TopK <= 0 {
		cfg.TopK = domain.DefaultSettings().Retrieval.TopK
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &RetrievalService{
		registry: registry,
		gateway:  gateway,
		cfg:      cfg,
		tracer:   otel.Tracer(tracerName),
	}
}

// Retrieve embeds query once, searches every target document and returns the
// k globally closest chunks. An empty documents list targets every indexed
// document in the user's namespace. Documents that cannot be searched are
// reported in Skipped rather than failing the query.
func (s *RetrievalService) Retrieve(
	ctx context.Context, user domain.UserContext, query string, documents []string, k int,
) (*domain.RetrievalReport, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrInvalidInput)
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = s.cfg.TopK
	}

	ctx, span := s.tracer.Start(ctx, "scholar.retrieve", trace.WithAttributes(
		attribute.String("namespace", user.Namespace()),
		attribute.Int("k", k),
	))
	defer span.End()

	report, err := s.retrieve(ctx, user, query, documents, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("results", len(report.Results)),
		attribute.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

func (s *RetrievalService) retrieve(
	ctx context.Context, user domain.UserContext, query string, documents []string, k int,
) (*domain.RetrievalReport, error) {
	targets, err := s.targets(ctx, user, documents)
	if err != nil {
		return nil, err
	}
	report := &domain.RetrievalReport{Query: query, Results: []domain.RetrievedChunk{}}
	if len(targets) == 0 {
		return report, nil
	}

	vector, err := s.gateway.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, skipped, err := s.fanOut(ctx, user, targets, vector, k)
	if err != nil {
		return nil, err
	}

	SortRetrieved(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	report.Results = hits
	report.Skipped = skipped
	logger.Debug("retrieve: %d results from %d documents, %d skipped", len(hits), len(targets), len(skipped))
	return report, nil
}

// targets returns the de-duplicated, sorted document names to search.
func (s *RetrievalService) targets(ctx context.Context, user domain.UserContext, documents []string) ([]string, error) {
	if len(documents) == 0 {
		infos, err := s.registry.List(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("list indexes: %w", err)
		}
		names := make([]string, len(infos))
		for i, info := range infos {
			names[i] = info.Document
		}
		return names, nil
	}

	seen := make(map[string]struct{}, len(documents))
	var names []string
	for _, d := range documents {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		names = append(names, d)
	}
	sort.Strings(names)
	return names, nil
}

// fanOut searches each target concurrently. Per-document failures are
// collected as skipped; only cancellation aborts the whole search.
func (s *RetrievalService) fanOut(
	ctx context.Context, user domain.UserContext, targets []string, vector []float32, k int,
) ([]domain.RetrievedChunk, []domain.SkippedDocument, error) {
	var (
		mu      sync.Mutex
		hits    []domain.RetrievedChunk
		skipped []domain.SkippedDocument
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, name := range targets {
		g.Go(func() error {
			found, err := s.searchOne(gctx, user, name, vector, k)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.With("namespace", user.Namespace(), "document", name).Warn("retrieve: skipping document", "err", err)
				mu.Lock()
				skipped = append(skipped, domain.SkippedDocument{Document: name, Reason: SkipReason(err), Err: err})
				mu.Unlock()
				return nil
			}
			mu.Lock()
			hits = append(hits, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Document < skipped[j].Document })
	return hits, skipped, nil
}

func (s *RetrievalService) searchOne(
	ctx context.Context, user domain.UserContext, name string, vector []float32, k int,
) ([]domain.RetrievedChunk, error) {
	idx, err := s.registry.Load(ctx, user, name)
	if err != nil {
		return nil, err
	}
	found, err := idx.Search(ctx, vector, k)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RetrievedChunk, len(found))
	for i, h := range found {
		out[i] = domain.RetrievedChunk{Document: name, Position: h.Position, Text: h.Text, Distance: h.Distance}
	}
	return out, nil
}

// SortRetrieved orders chunks by distance, then document, then position, so
// the result depends only on the scores and never on search order.
func SortRetrieved(chunks []domain.RetrievedChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Document != b.Document {
			return a.Document < b.Document
		}
		return a.Position < b.Position
	})
}

// SkipReason is a short explanation of why a document was left out.
func SkipReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrIndexNotFound):
		return "not processed"
	case errors.Is(err, domain.ErrStaleIndex):
		return "stale index"
	case errors.Is(err, domain.ErrCorruptIndex):
		return "corrupt index"
	case errors.Is(err, domain.ErrDimensionMismatch):
		return "embedding model changed"
	case errors.Is(err, domain.ErrInvalidNamespace):
		return "invalid name"
	default:
		return "unreadable index"
	}
}
