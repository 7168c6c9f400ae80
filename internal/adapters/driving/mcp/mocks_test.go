package mcp

import (
	"context"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

type mockRetrievalService struct {
	report *domain.RetrievalReport
	user   domain.UserContext
	k      int
	err    error
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context, user domain.UserContext, _ string, _ []string, k int,
) (*domain.RetrievalReport, error) {
	m.user, m.k = user, k
	if m.err != nil {
		return nil, m.err
	}
	if m.report == nil {
		return &domain.RetrievalReport{}, nil
	}
	return m.report, nil
}

type mockAskService struct {
	answer *domain.Answer
	err    error
}

func (m *mockAskService) Ask(_ context.Context, _ domain.UserContext, _ string, _ []string) (*domain.Answer, error) {
	return m.answer, m.err
}

type mockSimilarityService struct {
	score  domain.CosineScore
	report *domain.AnalysisReport
	req    domain.AnalysisRequest
	err    error
}

func (m *mockSimilarityService) Compare(_ context.Context, _, _ string) (domain.CosineScore, error) {
	return m.score, m.err
}

func (m *mockSimilarityService) CompareSentences(_ context.Context, _, _ string) (*domain.SentenceReport, error) {
	return &domain.SentenceReport{}, m.err
}

func (m *mockSimilarityService) ScanCorpus(
	_ context.Context, _ domain.UserContext, _ string, _ domain.CorpusOptions,
) (*domain.CorpusReport, error) {
	return &domain.CorpusReport{}, m.err
}

func (m *mockSimilarityService) Analyze(
	_ context.Context, _ domain.UserContext, req domain.AnalysisRequest,
) (*domain.AnalysisReport, error) {
	m.req = req
	return m.report, m.err
}

type mockIngestService struct {
	documents []domain.Document
	user      domain.UserContext
	err       error
}

func (m *mockIngestService) Ingest(
	_ context.Context, _ domain.UserContext, _ string, _ []byte,
) (*domain.IngestResult, error) {
	return nil, m.err
}

func (m *mockIngestService) Reindex(_ context.Context, _ domain.UserContext, _ string) (*domain.IngestResult, error) {
	return nil, m.err
}

func (m *mockIngestService) Delete(_ context.Context, _ domain.UserContext, _ string) error {
	return m.err
}

func (m *mockIngestService) List(_ context.Context, user domain.UserContext) ([]domain.Document, error) {
	m.user = user
	return m.documents, m.err
}

func (m *mockIngestService) Prune(_ context.Context, _ domain.UserContext, _ int) ([]string, error) {
	return nil, m.err
}
