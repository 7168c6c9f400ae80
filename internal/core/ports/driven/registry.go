package driven

import (
	"context"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// NormaliserRegistry selects the appropriate normaliser for a document.
// It dispatches on file extension and verifies the detected content type.
type NormaliserRegistry interface {
	// Normalise transforms a raw document using the best matching normaliser.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// SupportedExtensions returns all extensions that can be normalised.
	SupportedExtensions() []string
}
