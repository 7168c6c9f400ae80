// Package plaintext handles plain text and LaTeX sources.
package plaintext

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents. LaTeX is read as text.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the file extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".txt", ".tex"}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
// Any text type qualifies since detection walks up to text/plain.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/plain", "text/x-tex"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 10
}

// Normalise converts a raw document to a normalised document.
// The Content field contains the full text content.
// Chunking is handled by the PostProcessor pipeline.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Content) {
		return nil, fmt.Errorf("%s: not valid UTF-8: %w", raw.Name, domain.ErrDocumentFormat)
	}

	format := domain.FormatText
	if strings.EqualFold(filepath.Ext(raw.Name), ".tex") {
		format = domain.FormatLaTeX
	}

	content := strings.ReplaceAll(string(raw.Content), "\r\n", "\n")

	doc := domain.Document{
		ID:        uuid.New().String(),
		Name:      raw.Name,
		Format:    format,
		Title:     extractTitle(raw.Name),
		Author:    domain.UnknownAuthor,
		Content:   content,
		Metadata:  copyMetadata(raw.Metadata),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	// Add MIME type to metadata for reference
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["mime_type"] = raw.MIMEType
	doc.Metadata["format"] = string(format)

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// extractTitle returns the filename stem.
func extractTitle(name string) string {
	filename := filepath.Base(name)
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// copyMetadata creates a shallow copy of metadata.
func copyMetadata(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
