package driving

import (
	"context"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// SimilarityService compares texts at document, sentence and corpus level.
type SimilarityService interface {
	// Compare returns the cosine similarity between two whole texts.
	Compare(ctx context.Context, a, b string) (domain.CosineScore, error)

	// CompareSentences matches each checked sentence to its best original sentence.
	CompareSentences(ctx context.Context, original, checked string) (*domain.SentenceReport, error)

	// ScanCorpus compares checked text against the user's indexed documents.
	ScanCorpus(ctx context.Context, user domain.UserContext, checked string, opts domain.CorpusOptions) (*domain.CorpusReport, error)

	// Analyze runs the requested granularities and aggregates the risk.
	Analyze(ctx context.Context, user domain.UserContext, req domain.AnalysisRequest) (*domain.AnalysisReport, error)
}

// ReviewService synthesizes literature reviews.
type ReviewService interface {
	// Synthesize summarises, clusters and reviews papers on a topic.
	Synthesize(ctx context.Context, topic string, papers []domain.Paper) (*domain.LiteratureReview, error)
}
