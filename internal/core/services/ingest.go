package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
	"github.com/custodia-labs/scholar/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

const tracerName = "github.com/custodia-labs/scholar/internal/core/services"

// Reasons recorded when a document is catalogued but not indexed.
const (
	ReasonNoText          = "no extractable text"
	ReasonEmbeddingFailed = "embedding failed"
)

// IngestService turns uploads into per-user vector indexes.
type IngestService struct {
	registry    driven.IndexRegistry
	normalisers driven.NormaliserRegistry
	pipeline    driven.PostProcessorPipeline
	gateway     *EmbeddingGateway
	docStore    driven.DocumentStore
	tracer      trace.Tracer
	now         func() time.Time
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	registry driven.IndexRegistry,
	normalisers driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	gateway *EmbeddingGateway,
	docStore driven.DocumentStore,
) *IngestService {
	return &IngestService{
		registry:    registry,
		normalisers: normalisers,
		pipeline:    pipeline,
		gateway:     gateway,
		docStore:    docStore,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
	}
}

// Ingest stores, extracts, chunks, embeds and indexes an upload.
// Re-ingesting a filename replaces the previous upload and index.
func (s *IngestService) Ingest(
	ctx context.Context, user domain.UserContext, name string, data []byte,
) (*domain.IngestResult, error) {
	if err := validateTarget(user, name); err != nil {
		return nil, err
	}
	logger.Section("Ingest")

	ctx, span := s.tracer.Start(ctx, "scholar.ingest", trace.WithAttributes(
		attribute.String("namespace", user.Namespace()),
		attribute.String("document", name),
		attribute.Int("bytes", len(data)),
	))
	defer span.End()

	result, err := s.process(ctx, user, name, data, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("chunks", result.Chunks), attribute.Bool("indexed", result.Indexed))
	return result, nil
}

// Reindex rebuilds a document's index from its stored upload.
func (s *IngestService) Reindex(ctx context.Context, user domain.UserContext, name string) (*domain.IngestResult, error) {
	if err := validateTarget(user, name); err != nil {
		return nil, err
	}
	data, err := s.registry.ReadUpload(ctx, user, name)
	if err != nil {
		return nil, fmt.Errorf("reindex %s: %w", name, err)
	}
	return s.process(ctx, user, name, data, false)
}

// process runs the ingestion pipeline. store controls whether the upload is
// written, which Reindex skips because the bytes came from the registry.
func (s *IngestService) process(
	ctx context.Context, user domain.UserContext, name string, data []byte, store bool,
) (*domain.IngestResult, error) {
	log := logger.With("namespace", user.Namespace(), "document", name)

	// 1. EXTRACT (fails before anything is written)
	normalised, err := s.normalisers.Normalise(ctx, &domain.RawDocument{Name: name, Content: data})
	if err != nil {
		log.Warn("extraction failed", "err", err)
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}
	doc := normalised.Document
	doc.Owner = user.Namespace()
	doc.Name = name
	doc.Checksum = domain.Checksum(data)
	s.carryIdentity(ctx, &doc)

	// 2. STORE UPLOAD
	if store {
		if err := s.registry.SaveUpload(ctx, user, name, data); err != nil {
			return nil, fmt.Errorf("store %s: %w", name, err)
		}
	}

	// 3. CHUNK
	chunks, err := s.pipeline.Process(ctx, &doc)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", name, err)
	}
	logger.Debug("%s: %d chunks", name, len(chunks))

	result := &domain.IngestResult{Document: &doc, Chunks: len(chunks)}

	// 4. EMBED
	var entries []driven.IndexEntry
	switch {
	case len(chunks) == 0:
		result.Reason = ReasonNoText
	default:
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		embedded := s.gateway.Embed(ctx, texts)
		switch {
		case embedded.Failed():
			result.Reason = ReasonEmbeddingFailed
			log.Warn("document stored without index", "err", embedded.Err)
		case embedded.Empty():
			result.Reason = ReasonNoText
		default:
			for j, idx := range embedded.Indices {
				entries = append(entries, driven.IndexEntry{
					Position: chunks[idx].Position,
					Text:     chunks[idx].Content,
					Vector:   embedded.Vectors[j],
				})
			}
		}
	}

	// 5. PERSIST INDEX
	if len(entries) > 0 {
		if err := s.registry.Save(ctx, user, name, doc.Checksum, entries); err != nil {
			return nil, fmt.Errorf("save index %s: %w", name, err)
		}
		result.Indexed = true
	} else if store {
		// The previous index describes the old upload.
		if err := s.registry.DropIndex(ctx, user, name); err != nil {
			return nil, fmt.Errorf("drop index %s: %w", name, err)
		}
	}

	// 6. CATALOG
	doc.Indexed = result.Indexed
	doc.ChunkCount = len(entries)
	doc.UpdatedAt = s.now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = doc.UpdatedAt
	}
	if err := s.docStore.SaveDocument(ctx, &doc); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", name, err)
	}

	if result.Indexed {
		logger.Info("indexed %s (%d chunks)", name, doc.ChunkCount)
	}
	return result, nil
}

// carryIdentity keeps the ID and creation time of an existing catalog entry.
func (s *IngestService) carryIdentity(ctx context.Context, doc *domain.Document) {
	existing, err := s.docStore.GetDocument(ctx, doc.Owner, doc.Name)
	if err == nil && existing != nil {
		doc.ID = existing.ID
		doc.CreatedAt = existing.CreatedAt
		return
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
}

// Delete removes a document, its upload and its index.
func (s *IngestService) Delete(ctx context.Context, user domain.UserContext, name string) error {
	if err := validateTarget(user, name); err != nil {
		return err
	}

	regErr := s.registry.Delete(ctx, user, name)
	if regErr != nil && !errors.Is(regErr, domain.ErrNotFound) {
		return fmt.Errorf("delete %s: %w", name, regErr)
	}
	catErr := s.docStore.DeleteDocument(ctx, user.Namespace(), name)
	if catErr != nil && !errors.Is(catErr, domain.ErrNotFound) {
		return fmt.Errorf("delete %s from catalog: %w", name, catErr)
	}
	if regErr != nil && catErr != nil {
		return fmt.Errorf("%s: %w", name, domain.ErrNotFound)
	}
	return nil
}

// List returns the user's documents ordered by name.
func (s *IngestService) List(ctx context.Context, user domain.UserContext) ([]domain.Document, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	return s.docStore.ListDocuments(ctx, user.Namespace())
}

// Prune keeps the newest keep indexes. Pruned documents stay in the catalog
// as unindexed so they can be reindexed from their uploads.
func (s *IngestService) Prune(ctx context.Context, user domain.UserContext, keep int) ([]string, error) {
	removed, err := s.registry.Prune(ctx, user, keep)
	if err != nil {
		return removed, err
	}
	for _, name := range removed {
		doc, err := s.docStore.GetDocument(ctx, user.Namespace(), name)
		if err != nil {
			continue
		}
		doc.Indexed = false
		doc.ChunkCount = 0
		doc.UpdatedAt = s.now()
		if err := s.docStore.SaveDocument(ctx, doc); err != nil {
			logger.Warn("prune: update catalog for %s: %v", name, err)
		}
	}
	return removed, nil
}

func validateTarget(user domain.UserContext, name string) error {
	if err := user.Validate(); err != nil {
		return err
	}
	return domain.ValidateFilename(name)
}
