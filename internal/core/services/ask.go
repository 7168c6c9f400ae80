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

// Ensure AskService implements the interface.
var _ driving.AskService = (*AskService)(nil)

// AskService answers questions from chunks retrieved across a user's documents.
type AskService struct {
	retrieval   driving.RetrievalService
	llm         driven.LanguageModel
	prompts     driven.PromptStore
	temperature float64
	topK        int
}

// NewAskService creates a new ask service. prompts may be nil.
func NewAskService(
	retrieval driving.RetrievalService,
	llm driven.LanguageModel,
	prompts driven.PromptStore,
	settings domain.LLMSettings,
	topK int,
) *AskService {
	return &AskService{
		retrieval:   retrieval,
		llm:         llm,
		prompts:     prompts,
		temperature: settings.Temperature,
		topK:        topK,
	}
}

// Ask retrieves context for question and has the language model answer from
// it. When nothing relevant is found the model is not called.
func (s *AskService) Ask(
	ctx context.Context, user domain.UserContext, question string, documents []string,
) (*domain.Answer, error) {
	if s.llm == nil {
		return nil, fmt.Errorf("no language model configured: %w", domain.ErrModelUnavailable)
	}
	logger.Section("Ask")

	report, err := s.retrieval.Retrieve(ctx, user, question, documents, s.topK)
	if err != nil {
		return nil, err
	}
	answer := &domain.Answer{Question: strings.TrimSpace(question), Skipped: report.Skipped}
	if report.Empty() {
		return answer, domain.ErrNoRelevantContext
	}
	answer.Sources = report.Results

	prompt := renderPrompt(s.prompts, domain.PromptAnswer, answer.Question, joinContext(report.Results))
	text, err := s.llm.Complete(ctx, prompt, s.temperature)
	if err != nil {
		return answer, fmt.Errorf("answer: %w", err)
	}
	answer.Text = strings.TrimSpace(text)
	return answer, nil
}

func joinContext(chunks []domain.RetrievedChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n\n")
}
