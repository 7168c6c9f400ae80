package normalisers

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/normalisers/docx"
	"github.com/custodia-labs/scholar/internal/normalisers/pdf"
	"github.com/custodia-labs/scholar/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches on file extension and checks that the sniffed
// content type agrees with it, so a renamed binary is rejected up front.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string][]driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string][]driven.Normaliser)}
}

// NewDefaultRegistry creates a registry with the PDF, DOCX and text normalisers.
func NewDefaultRegistry(cfg domain.ExtractionSettings) *Registry {
	r := NewRegistry()
	r.Register(pdf.New(pdf.WithPDFToText(cfg.PDFToText), pdf.WithOCR(cfg.OCR, cfg.OCRDPI)))
	r.Register(docx.New())
	r.Register(plaintext.New())
	return r
}

// Register adds a normaliser for each extension it supports.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range n.SupportedExtensions() {
		ext = strings.ToLower(ext)
		list := append(r.byExt[ext], n)
		sort.SliceStable(list, func(i, j int) bool { return list[i].Priority() > list[j].Priority() })
		r.byExt[ext] = list
	}
}

// SupportedExtensions returns all registered extensions, sorted.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Normalise selects a normaliser by extension and runs it.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	ext := strings.ToLower(filepath.Ext(raw.Name))
	r.mu.RLock()
	candidates := r.byExt[ext]
	r.mu.RUnlock()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%s: unsupported extension %q: %w", raw.Name, ext, domain.ErrDocumentFormat)
	}

	if len(raw.Content) == 0 {
		return candidates[0].Normalise(ctx, raw)
	}

	detected := mimetype.Detect(raw.Content)
	for _, n := range candidates {
		if accepts(detected, n.SupportedMIMETypes()) {
			raw.MIMEType = detected.String()
			return n.Normalise(ctx, raw)
		}
	}
	return nil, fmt.Errorf("%s: content is %s, not %s: %w", raw.Name, detected.String(), ext, domain.ErrDocumentFormat)
}

// accepts reports whether the detected type, or any type it specialises,
// is in the accepted list. text/html is a text/plain, a docx is a zip.
func accepts(detected *mimetype.MIME, accepted []string) bool {
	for m := detected; m != nil; m = m.Parent() {
		for _, a := range accepted {
			if m.Is(a) {
				return true
			}
		}
	}
	return false
}
