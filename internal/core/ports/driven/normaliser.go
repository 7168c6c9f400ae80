package driven

import (
	"context"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// Normaliser extracts plain text and metadata from an uploaded file.
// Each normaliser handles specific formats (e.g., PDF, DOCX).
type Normaliser interface {
	// SupportedExtensions returns the lower-case file extensions this normaliser handles.
	SupportedExtensions() []string

	// SupportedMIMETypes returns the content types accepted for those extensions.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	Priority() int

	// Normalise extracts a document from raw bytes. Unreadable content
	// returns an error wrapping domain.ErrDocumentFormat.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation.
// Note: Normalisation only produces a Document with Content.
// Chunking is handled by the PostProcessor pipeline.
type NormaliseResult struct {
	// Document is the normalised document with Content field populated.
	Document domain.Document
}
