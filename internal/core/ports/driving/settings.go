package driving

import "github.com/custodia-labs/scholar/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings, defaults filled in.
	Get() (*domain.Settings, error)

	// Save persists application settings.
	Save(settings *domain.Settings) error

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetLLMProvider configures the language model provider.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// SetMediumThreshold updates the configurable Medium severity bound.
	SetMediumThreshold(score domain.CosineScore) error

	// GetDefaults returns default settings.
	GetDefaults() domain.Settings
}
