package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or the language model.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"
)

// AllAIProviders returns the supported providers, local first.
func AllAIProviders() []AIProvider {
	return []AIProvider{AIProviderOllama, AIProviderOpenAI}
}

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// BatchSize caps the number of texts per provider request.
	BatchSize int

	// RequestsPerSecond throttles provider requests. Zero disables throttling.
	RequestsPerSecond float64

	// CacheSize is the number of embeddings kept in memory. Zero disables the cache.
	CacheSize int

	// Timeout bounds a single provider request.
	Timeout time.Duration
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds language model configuration.
type LLMSettings struct {
	// Provider is the language model provider.
	Provider AIProvider

	// Model is the model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Temperature is the sampling temperature in [0, 1].
	Temperature float64

	// Timeout bounds a single completion.
	Timeout time.Duration
}

// IsConfigured returns true if the language model is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// StorageSettings locates persisted data.
type StorageSettings struct {
	// Root holds uploads/, indexes/ and the catalog database.
	Root string

	// IndexCacheSize is the number of loaded indexes kept in memory.
	IndexCacheSize int

	// KeepIndexes is the number of newest indexes kept by a prune. Zero keeps all.
	KeepIndexes int
}

// ChunkSettings configures the chunker.
type ChunkSettings struct {
	Size    int
	Overlap int
}

// ExtractionSettings configures the PDF fallback chain.
type ExtractionSettings struct {
	// PDFToText enables the pdftotext fallback.
	PDFToText bool

	// OCR enables the rasterise-and-OCR fallback.
	OCR bool

	// OCRDPI is the rasterisation resolution.
	OCRDPI int
}

// RetrievalSettings configures multi-document retrieval.
type RetrievalSettings struct {
	// TopK is the default number of chunks returned.
	TopK int

	// Concurrency bounds the number of indexes searched at once.
	Concurrency int
}

// SimilaritySettings configures the similarity analyzer.
type SimilaritySettings struct {
	Thresholds Thresholds

	// MinSentenceLength drops sentence fragments shorter than this.
	MinSentenceLength int

	// ParaphraseTimeout bounds the best-effort paraphrase check.
	ParaphraseTimeout time.Duration
}

// Settings holds all application settings.
type Settings struct {
	Storage    StorageSettings
	Chunking   ChunkSettings
	Extraction ExtractionSettings
	Embedding  EmbeddingSettings
	LLM        LLMSettings
	Retrieval  RetrievalSettings
	Similarity SimilaritySettings
}

// DefaultSettings returns settings with sensible defaults.
// The root directory is left empty; callers resolve it from the environment.
func DefaultSettings() Settings {
	return Settings{
		Storage: StorageSettings{
			IndexCacheSize: 32,
		},
		Chunking: ChunkSettings{Size: 1000, Overlap: 200},
		Extraction: ExtractionSettings{
			PDFToText: true,
			OCR:       true,
			OCRDPI:    200,
		},
		Embedding: EmbeddingSettings{
			Provider:  AIProviderOllama,
			Model:     DefaultEmbeddingModels()[AIProviderOllama],
			BaseURL:   "http://localhost:11434",
			BatchSize: 64,
			CacheSize: 4096,
			Timeout:   60 * time.Second,
		},
		LLM: LLMSettings{
			Provider:    AIProviderOllama,
			Model:       DefaultLLMModels()[AIProviderOllama],
			BaseURL:     "http://localhost:11434",
			Temperature: 0.7,
			Timeout:     120 * time.Second,
		},
		Retrieval: RetrievalSettings{TopK: 5, Concurrency: 4},
		Similarity: SimilaritySettings{
			Thresholds:        DefaultThresholds(),
			MinSentenceLength: 10,
			ParaphraseTimeout: 30 * time.Second,
		},
	}
}

// Validate checks settings for values that would break the pipelines.
func (s Settings) Validate() error {
	if s.Chunking.Size <= 0 || s.Chunking.Overlap < 0 || s.Chunking.Overlap >= s.Chunking.Size {
		return fmt.Errorf("chunk size %d overlap %d: %w", s.Chunking.Size, s.Chunking.Overlap, ErrInvalidInput)
	}
	if s.LLM.Temperature < 0 || s.LLM.Temperature > 1 {
		return fmt.Errorf("temperature %v outside [0,1]: %w", s.LLM.Temperature, ErrInvalidInput)
	}
	if err := s.Similarity.Thresholds.Validate(); err != nil {
		return fmt.Errorf("similarity thresholds: %w", err)
	}
	if s.Retrieval.TopK <= 0 {
		return fmt.Errorf("top k %d: %w", s.Retrieval.TopK, ErrInvalidInput)
	}
	return nil
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "all-minilm",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each language model provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "llama3.2",
		AIProviderOpenAI: "gpt-4o-mini",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"all-minilm":        384,
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config so new processors can be added
// without modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// PipelineConfigFor returns the pipeline configuration for the chunk settings.
func PipelineConfigFor(c ChunkSettings) PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": c.Size,
				"overlap":    c.Overlap,
			},
		},
	}
}
