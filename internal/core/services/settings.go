package services

import (
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyStorageRoot       = "storage.root"
	keyIndexCacheSize    = "storage.index_cache_size"
	keyKeepIndexes       = "storage.keep_indexes"
	keyChunkSize         = "chunking.size"
	keyChunkOverlap      = "chunking.overlap"
	keyPDFToText         = "extraction.pdftotext"
	keyOCR               = "extraction.ocr"
	keyOCRDPI            = "extraction.ocr_dpi"
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyEmbedBatchSize    = "embedding.batch_size"
	keyEmbedRPS          = "embedding.requests_per_second"
	keyEmbedCacheSize    = "embedding.cache_size"
	keyEmbedTimeout      = "embedding.timeout"
	keyLLMProvider       = "llm.provider"
	keyLLMModel          = "llm.model"
	keyLLMBaseURL        = "llm.base_url"
	keyLLMAPIKey         = "llm.api_key"
	keyLLMTemperature    = "llm.temperature"
	keyLLMTimeout        = "llm.timeout"
	keyTopK              = "retrieval.top_k"
	keyConcurrency       = "retrieval.concurrency"
	keyCritical          = "similarity.critical"
	keyHigh              = "similarity.high"
	keyMedium            = "similarity.medium"
	keyMinSentenceLength = "similarity.min_sentence_length"
	keyParaphraseTimeout = "similarity.paraphrase_timeout"
)

// Environment overrides, applied on top of the config file.
//
//nolint:gosec // G101: These are variable names, not credentials.
const (
	EnvEmbeddingProvider = "SCHOLAR_EMBEDDING_PROVIDER"
	EnvEmbeddingModel    = "SCHOLAR_EMBEDDING_MODEL"
	EnvEmbeddingURL      = "SCHOLAR_EMBEDDING_URL"
	EnvLLMProvider       = "SCHOLAR_LLM_PROVIDER"
	EnvLLMModel          = "SCHOLAR_LLM_MODEL"
	EnvLLMURL            = "SCHOLAR_LLM_URL"
	EnvOpenAIKey         = "OPENAI_API_KEY"
)

const defaultOllamaURL = "http://localhost:11434"

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	root        string
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service. root is the storage
// root used when the config file does not name one.
func NewSettingsService(configStore driven.ConfigStore, root string) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		root:        root,
		lookupEnv:   os.LookupEnv,
	}
}

// Get retrieves current application settings: defaults, overlaid with the
// config file, overlaid with the environment.
func (s *SettingsService) Get() (*domain.Settings, error) {
	d := s.GetDefaults()

	settings := &domain.Settings{
		Storage: domain.StorageSettings{
			Root:           s.getString(keyStorageRoot, d.Storage.Root),
			IndexCacheSize: s.getInt(keyIndexCacheSize, d.Storage.IndexCacheSize),
			KeepIndexes:    s.getInt(keyKeepIndexes, d.Storage.KeepIndexes),
		},
		Chunking: domain.ChunkSettings{
			Size:    s.getInt(keyChunkSize, d.Chunking.Size),
			Overlap: s.getInt(keyChunkOverlap, d.Chunking.Overlap),
		},
		Extraction: domain.ExtractionSettings{
			PDFToText: s.getBool(keyPDFToText, d.Extraction.PDFToText),
			OCR:       s.getBool(keyOCR, d.Extraction.OCR),
			OCRDPI:    s.getInt(keyOCRDPI, d.Extraction.OCRDPI),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:             s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:           s.getString(keyEmbedBaseURL, d.Embedding.BaseURL),
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			BatchSize:         s.getInt(keyEmbedBatchSize, d.Embedding.BatchSize),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, d.Embedding.RequestsPerSecond),
			CacheSize:         s.getInt(keyEmbedCacheSize, d.Embedding.CacheSize),
			Timeout:           s.getDuration(keyEmbedTimeout, d.Embedding.Timeout),
		},
		LLM: domain.LLMSettings{
			Provider:    s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:       s.getString(keyLLMModel, d.LLM.Model),
			BaseURL:     s.getString(keyLLMBaseURL, d.LLM.BaseURL),
			APIKey:      s.configStore.GetString(keyLLMAPIKey),
			Temperature: s.getFloat(keyLLMTemperature, d.LLM.Temperature),
			Timeout:     s.getDuration(keyLLMTimeout, d.LLM.Timeout),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:        s.getInt(keyTopK, d.Retrieval.TopK),
			Concurrency: s.getInt(keyConcurrency, d.Retrieval.Concurrency),
		},
		Similarity: domain.SimilaritySettings{
			Thresholds: domain.Thresholds{
				Critical: domain.CosineScore(s.getFloat(keyCritical, float64(d.Similarity.Thresholds.Critical))),
				High:     domain.CosineScore(s.getFloat(keyHigh, float64(d.Similarity.Thresholds.High))),
				Medium:   domain.CosineScore(s.getFloat(keyMedium, float64(d.Similarity.Thresholds.Medium))),
			},
			MinSentenceLength: s.getInt(keyMinSentenceLength, d.Similarity.MinSentenceLength),
			ParaphraseTimeout: s.getDuration(keyParaphraseTimeout, d.Similarity.ParaphraseTimeout),
		},
	}

	s.applyEnv(settings)

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("settings in %s: %w", s.configStore.Path(), err)
	}
	return settings, nil
}

// applyEnv overlays environment variables.
func (s *SettingsService) applyEnv(settings *domain.Settings) {
	if v, ok := s.env(EnvEmbeddingProvider); ok {
		if p := domain.AIProvider(v); p.IsValid() && p != settings.Embedding.Provider {
			settings.Embedding.Provider = p
			settings.Embedding.Model = domain.DefaultEmbeddingModels()[p]
			settings.Embedding.BaseURL = providerBaseURL(p)
		}
	}
	if v, ok := s.env(EnvEmbeddingModel); ok {
		settings.Embedding.Model = v
	}
	if v, ok := s.env(EnvEmbeddingURL); ok {
		settings.Embedding.BaseURL = v
	}
	if v, ok := s.env(EnvLLMProvider); ok {
		if p := domain.AIProvider(v); p.IsValid() && p != settings.LLM.Provider {
			settings.LLM.Provider = p
			settings.LLM.Model = domain.DefaultLLMModels()[p]
			settings.LLM.BaseURL = providerBaseURL(p)
		}
	}
	if v, ok := s.env(EnvLLMModel); ok {
		settings.LLM.Model = v
	}
	if v, ok := s.env(EnvLLMURL); ok {
		settings.LLM.BaseURL = v
	}
	if v, ok := s.env(EnvOpenAIKey); ok {
		if settings.Embedding.Provider == domain.AIProviderOpenAI && settings.Embedding.APIKey == "" {
			settings.Embedding.APIKey = v
		}
		if settings.LLM.Provider == domain.AIProviderOpenAI && settings.LLM.APIKey == "" {
			settings.LLM.APIKey = v
		}
	}
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	values := []struct {
		key   string
		value any
	}{
		{keyStorageRoot, settings.Storage.Root},
		{keyIndexCacheSize, settings.Storage.IndexCacheSize},
		{keyKeepIndexes, settings.Storage.KeepIndexes},
		{keyChunkSize, settings.Chunking.Size},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyPDFToText, settings.Extraction.PDFToText},
		{keyOCR, settings.Extraction.OCR},
		{keyOCRDPI, settings.Extraction.OCRDPI},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyEmbedRPS, settings.Embedding.RequestsPerSecond},
		{keyEmbedCacheSize, settings.Embedding.CacheSize},
		{keyEmbedTimeout, settings.Embedding.Timeout.String()},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMTemperature, settings.LLM.Temperature},
		{keyLLMTimeout, settings.LLM.Timeout.String()},
		{keyTopK, settings.Retrieval.TopK},
		{keyConcurrency, settings.Retrieval.Concurrency},
		{keyCritical, float64(settings.Similarity.Thresholds.Critical)},
		{keyHigh, float64(settings.Similarity.Thresholds.High)},
		{keyMedium, float64(settings.Similarity.Thresholds.Medium)},
		{keyMinSentenceLength, settings.Similarity.MinSentenceLength},
		{keyParaphraseTimeout, settings.Similarity.ParaphraseTimeout.String()},
	}
	if settings.Embedding.APIKey != "" {
		values = append(values, struct {
			key   string
			value any
		}{keyEmbedAPIKey, settings.Embedding.APIKey})
	}
	if settings.LLM.APIKey != "" {
		values = append(values, struct {
			key   string
			value any
		}{keyLLMAPIKey, settings.LLM.APIKey})
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider. An empty model
// selects the provider's default.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider %q: %w", provider, domain.ErrInvalidInput)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s: %w", provider, domain.ErrInvalidInput)
	}
	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}
	return s.setAll(map[string]any{
		keyEmbedProvider: provider.String(),
		keyEmbedModel:    model,
		keyEmbedBaseURL:  providerBaseURL(provider),
		keyEmbedAPIKey:   apiKey,
	})
}

// SetLLMProvider configures the language model provider. An empty model
// selects the provider's default.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider %q: %w", provider, domain.ErrInvalidInput)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s: %w", provider, domain.ErrInvalidInput)
	}
	if model == "" {
		model = domain.DefaultLLMModels()[provider]
	}
	return s.setAll(map[string]any{
		keyLLMProvider: provider.String(),
		keyLLMModel:    model,
		keyLLMBaseURL:  providerBaseURL(provider),
		keyLLMAPIKey:   apiKey,
	})
}

// SetMediumThreshold updates the configurable Medium severity bound. It must
// stay at or below the High bound.
func (s *SettingsService) SetMediumThreshold(score domain.CosineScore) error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	t := settings.Similarity.Thresholds
	t.Medium = score
	if err := t.Validate(); err != nil {
		return fmt.Errorf("medium threshold %.2f: %w", float64(score), err)
	}
	return s.configStore.Set(keyMedium, float64(score))
}

// GetDefaults returns default settings with the storage root filled in.
func (s *SettingsService) GetDefaults() domain.Settings {
	d := domain.DefaultSettings()
	d.Storage.Root = s.root
	return d
}

func (s *SettingsService) setAll(values map[string]any) error {
	for k, v := range values {
		if err := s.configStore.Set(k, v); err != nil {
			return fmt.Errorf("save %s: %w", k, err)
		}
	}
	return nil
}

func providerBaseURL(p domain.AIProvider) string {
	if p == domain.AIProviderOllama {
		return defaultOllamaURL
	}
	return ""
}

func (s *SettingsService) env(key string) (string, bool) {
	v, ok := s.lookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(s.configStore.GetString(key))
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	p := domain.AIProvider(s.configStore.GetString(key))
	if !p.IsValid() {
		return defaultVal
	}
	return p
}
