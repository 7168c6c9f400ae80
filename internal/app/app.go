// Package app wires the adapters and services into a runnable application.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/scholar/internal/adapters/driven/ai"
	"github.com/custodia-labs/scholar/internal/adapters/driven/config/file"
	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/files"
	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/scholar/internal/adapters/driving/cli"
	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/services"
	"github.com/custodia-labs/scholar/internal/logger"
	"github.com/custodia-labs/scholar/internal/normalisers"
	"github.com/custodia-labs/scholar/internal/normalisers/pdf"
	"github.com/custodia-labs/scholar/internal/postprocessors"
)

// Options controls where the application keeps its state.
type Options struct {
	// Home holds config.toml, prompts/ and, by default, stored data.
	// Empty resolves $SCHOLAR_HOME or ~/.scholar.
	Home string

	// DotEnv lists .env files loaded before settings are read.
	DotEnv []string
}

// App holds the wired services.
type App struct {
	Settings *domain.Settings
	Services cli.Services

	catalog *sqlite.Store
}

// New loads settings and builds every service. A provider that cannot be
// created is logged and left out; commands needing it report it unavailable.
func New(opts Options) (*App, error) {
	if err := file.LoadDotEnv(opts.DotEnv...); err != nil {
		return nil, err
	}

	home := opts.Home
	if home == "" {
		var err error
		if home, err = file.HomeDir(); err != nil {
			return nil, err
		}
	}

	configStore, err := file.NewConfigStore(home)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, home)
	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}
	logger.Debug("storage root %s", settings.Storage.Root)

	registry, err := files.New(settings.Storage.Root, settings.Storage.IndexCacheSize)
	if err != nil {
		return nil, err
	}
	catalog, err := sqlite.NewStore(settings.Storage.Root)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	extractors := normalisers.NewDefaultRegistry(settings.Extraction)
	processors := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(processors)
	pipeline, err := processors.BuildPipeline(domain.PipelineConfigFor(settings.Chunking))
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("build chunking pipeline: %w", err)
	}

	embedder, err := ai.CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		logger.With("provider", settings.Embedding.Provider).Warn("embedding provider unavailable", "err", err)
		embedder = nil
	}
	llm, err := ai.CreateLanguageModel(&settings.LLM)
	if err != nil {
		logger.With("provider", settings.LLM.Provider).Warn("language model unavailable", "err", err)
		llm = nil
	}
	prompts, err := file.NewPromptStore(filepath.Join(home, "prompts"))
	if err != nil {
		catalog.Close()
		return nil, err
	}

	gateway := services.NewEmbeddingGateway(embedder, settings.Embedding.BatchSize, settings.Embedding.CacheSize)
	retrieval := services.NewRetrievalService(registry, gateway, settings.Retrieval)

	a := &App{
		Settings: settings,
		catalog:  catalog,
		Services: cli.Services{
			Ingest:    services.NewIngestService(registry, extractors, pipeline, gateway, catalog.DocumentStore()),
			Retrieval: retrieval,
			Ask:       services.NewAskService(retrieval, llm, prompts, settings.LLM, settings.Retrieval.TopK),
			Similarity: services.NewSimilarityService(gateway, registry, pipeline, llm, prompts,
				settings.Similarity, settings.Retrieval.Concurrency),
			Review:   services.NewReviewService(gateway, llm, prompts, settings.LLM),
			Settings: settingsService,
			Doctor: func(ctx context.Context) []cli.Check {
				return diagnose(ctx, settings)
			},
			Extract: func(ctx context.Context, name string, data []byte) (string, error) {
				result, err := extractors.Normalise(ctx, &domain.RawDocument{Name: name, Content: data})
				if err != nil {
					return "", err
				}
				return result.Document.Content, nil
			},
		},
	}
	return a, nil
}

// diagnose pings both providers and looks for the PDF fallback tools.
func diagnose(ctx context.Context, settings *domain.Settings) []cli.Check {
	checks := make([]cli.Check, 0, 4)

	embedder, err := ai.CreateAndValidateEmbeddingService(ctx, &settings.Embedding)
	if err != nil {
		checks = append(checks, cli.Check{Name: "embedding", Detail: err.Error()})
	} else {
		checks = append(checks, cli.Check{Name: "embedding", OK: true,
			Detail: fmt.Sprintf("%s %s (%d dimensions)", settings.Embedding.Provider, embedder.ModelName(), embedder.Dimensions())})
		embedder.Close()
	}

	llm, err := ai.CreateAndValidateLanguageModel(ctx, &settings.LLM)
	if err != nil {
		checks = append(checks, cli.Check{Name: "llm", Detail: err.Error()})
	} else {
		checks = append(checks, cli.Check{Name: "llm", OK: true,
			Detail: fmt.Sprintf("%s %s", settings.LLM.Provider, llm.ModelName())})
		llm.Close()
	}

	if missing := pdf.MissingTools(); len(missing) > 0 {
		checks = append(checks, cli.Check{Name: "pdf tools",
			Detail: "missing " + strings.Join(missing, ", ") + "; scanned PDFs cannot be read\n" + pdf.InstallInstructions()})
	} else {
		checks = append(checks, cli.Check{Name: "pdf tools", OK: true, Detail: strings.Join(pdf.Tools, ", ")})
	}

	if _, err := os.Stat(settings.Storage.Root); err != nil {
		checks = append(checks, cli.Check{Name: "storage", Detail: err.Error()})
	} else {
		checks = append(checks, cli.Check{Name: "storage", OK: true, Detail: settings.Storage.Root})
	}
	return checks
}

// Close releases the catalog database.
func (a *App) Close() error {
	if a.catalog == nil {
		return nil
	}
	err := a.catalog.Close()
	a.catalog = nil
	return err
}
