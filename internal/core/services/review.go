package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
	"github.com/custodia-labs/scholar/internal/logger"
)

// Ensure ReviewService implements the interface.
var _ driving.ReviewService = (*ReviewService)(nil)

const maxReviewClusters = 3

// ReviewService summarises papers, groups similar ones and drafts a review.
type ReviewService struct {
	gateway     *EmbeddingGateway
	llm         driven.LanguageModel
	prompts     driven.PromptStore
	temperature float64
}

// NewReviewService creates a new review service. prompts may be nil.
func NewReviewService(
	gateway *EmbeddingGateway,
	llm driven.LanguageModel,
	prompts driven.PromptStore,
	settings domain.LLMSettings,
) *ReviewService {
	return &ReviewService{
		gateway:     gateway,
		llm:         llm,
		prompts:     prompts,
		temperature: settings.Temperature,
	}
}

// Synthesize summarises each paper, clusters the summaries by embedding and
// asks the language model for a review organised by cluster. A paper whose
// summary fails keeps its abstract. When embedding fails all papers share
// one cluster.
func (s *ReviewService) Synthesize(
	ctx context.Context, topic string, papers []domain.Paper,
) (*domain.LiteratureReview, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" || len(papers) == 0 {
		return nil, fmt.Errorf("review needs a topic and papers: %w", domain.ErrInvalidInput)
	}
	if s.llm == nil {
		return nil, fmt.Errorf("no language model configured: %w", domain.ErrModelUnavailable)
	}
	logger.Section("Literature Review")

	summaries := make([]domain.PaperSummary, len(papers))
	texts := make([]string, len(papers))
	for i, p := range papers {
		summary, err := s.summarise(ctx, p)
		if err != nil {
			return nil, err
		}
		summaries[i] = domain.PaperSummary{Paper: p, Summary: summary}
		texts[i] = summary
	}

	labels := make([]int, len(papers))
	res := s.gateway.Embed(ctx, texts)
	if res.Failed() {
		logger.Warn("review: clustering skipped: %v", res.Err)
	} else if !res.Empty() {
		k := min(maxReviewClusters, len(res.Vectors))
		for j, label := range KMeans(res.Vectors, k) {
			labels[res.Indices[j]] = label
		}
	}

	review := &domain.LiteratureReview{Topic: topic, Clusters: groupClusters(summaries, labels)}
	prompt := renderPrompt(s.prompts, domain.PromptReview, topic, formatClusters(review.Clusters))
	text, err := s.llm.Complete(ctx, prompt, s.temperature)
	if err != nil {
		return nil, fmt.Errorf("review: %w", err)
	}
	review.Text = strings.TrimSpace(text)
	return review, nil
}

func (s *ReviewService) summarise(ctx context.Context, p domain.Paper) (string, error) {
	fallback := strings.TrimSpace(p.Abstract)
	if fallback == "" {
		fallback = strings.TrimSpace(p.Title)
	}
	prompt := renderPrompt(s.prompts, domain.PromptSummarisePaper, p.Title, p.Abstract)
	summary, err := s.llm.Complete(ctx, prompt, s.temperature)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logger.Warn("review: summary of %q failed, using abstract: %v", p.Title, err)
		return fallback, nil
	}
	if summary = strings.TrimSpace(summary); summary == "" {
		return fallback, nil
	}
	return summary, nil
}

// groupClusters collects summaries by label. Clusters are numbered from 1 in
// order of their first paper; empty labels are dropped.
func groupClusters(summaries []domain.PaperSummary, labels []int) []domain.ReviewCluster {
	index := map[int]int{}
	var clusters []domain.ReviewCluster
	for i, label := range labels {
		at, ok := index[label]
		if !ok {
			at = len(clusters)
			index[label] = at
			clusters = append(clusters, domain.ReviewCluster{Label: at + 1})
		}
		clusters[at].Papers = append(clusters[at].Papers, summaries[i])
	}
	return clusters
}

func formatClusters(clusters []domain.ReviewCluster) string {
	var b strings.Builder
	for _, c := range clusters {
		fmt.Fprintf(&b, "Cluster %d:\n", c.Label)
		for _, p := range c.Papers {
			b.WriteString("- ")
			b.WriteString(p.Paper.Title)
			if p.Paper.Year > 0 {
				fmt.Fprintf(&b, " (%d)", p.Paper.Year)
			}
			b.WriteString(": ")
			b.WriteString(p.Summary)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
