package services

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/adapters/driven/storage/files"
	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
)

func newSimilarity(t *testing.T, provider *mockEmbeddingService, llm *mockLLM) (*SimilarityService, *files.Registry) {
	t.Helper()
	reg := newTestRegistry(t)
	var model driven.LanguageModel
	if llm != nil {
		model = llm
	}
	cfg := domain.DefaultSettings().Similarity
	svc := NewSimilarityService(NewEmbeddingGateway(provider, 0, 0), reg, paragraphPipeline{}, model, nil, cfg, 2)
	return svc, reg
}

// unit returns a 2-d unit vector whose cosine with (1, 0) is c.
func unit(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c))}
}

func TestCompare_IdenticalAndSymmetric(t *testing.T) {
	svc, _ := newSimilarity(t, newMockEmbedder(32), nil)
	a := "Transformers dominate language modelling benchmarks."
	b := "Recurrent networks dominate older benchmarks."

	same, err := svc.Compare(context.Background(), a, a)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, float64(same), 1e-6)

	ab, err := svc.Compare(context.Background(), a, b)
	require.NoError(t, err)
	ba, err := svc.Compare(context.Background(), b, a)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
}

func TestCompare_UnrelatedBelowMedium(t *testing.T) {
	provider := newMockEmbedder(3).
		set("The cat sat on the mat", 0.9, 0.1, 0).
		set("Quarterly revenue increased by 12%", 0.05, 0.2, 0.95)
	svc, _ := newSimilarity(t, provider, nil)

	score, err := svc.Compare(context.Background(), "The cat sat on the mat", "Quarterly revenue increased by 12%")
	require.NoError(t, err)
	assert.Less(t, float64(score), 0.70)
	assert.Equal(t, domain.SeverityLow, domain.DefaultThresholds().Classify(score))
}

func TestCompare_NegativeCosineFloorsAtZero(t *testing.T) {
	provider := newMockEmbedder(2).set("up up up", 1, 0).set("down down", -1, 0)
	svc, _ := newSimilarity(t, provider, nil)

	score, err := svc.Compare(context.Background(), "up up up", "down down")
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestCompare_Errors(t *testing.T) {
	provider := newMockEmbedder(2)
	svc, _ := newSimilarity(t, provider, nil)

	_, err := svc.Compare(context.Background(), "", "text")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	provider.err = errProviderDown
	_, err = svc.Compare(context.Background(), "a", "b")
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailure)
}

func TestCompareSentences_SeverityLadder(t *testing.T) {
	original := "The reference sentence is here."
	provider := newMockEmbedder(2).
		set(original, 1, 0).
		set("Critical copy of the text.", unit(0.95)...).
		set("High similarity sentence.", unit(0.85)...).
		set("Medium similarity sentence.", unit(0.75)...).
		set("Low similarity sentence.", unit(0.50)...)
	svc, _ := newSimilarity(t, provider, nil)

	checked := "Critical copy of the text. High similarity sentence. Medium similarity sentence. Low similarity sentence."
	report, err := svc.CompareSentences(context.Background(), original, checked)
	require.NoError(t, err)
	require.Len(t, report.Matches, 4)

	want := []domain.Severity{domain.SeverityCritical, domain.SeverityHigh, domain.SeverityMedium, domain.SeverityLow}
	for i, m := range report.Matches {
		assert.Equal(t, i, m.CheckedIndex)
		assert.Equal(t, 0, m.OriginalIndex)
		assert.Equal(t, want[i], m.Severity, m.CheckedText)
	}
	assert.Equal(t, 3, report.Flagged)
	assert.False(t, report.Matches[3].Flagged)
	assert.InDelta(t, 0.95, float64(report.MaxScore), 1e-6)
	assert.Equal(t, 1, provider.callCount())
}

func TestCompareSentences_AsymmetricBestMatch(t *testing.T) {
	provider := newMockEmbedder(2).
		set("First original sentence.", 1, 0).
		set("Second original sentence.", 0, 1).
		set("Checked sentence number one.", 0.1, 1).
		set("Checked sentence number two.", 0.2, 1)
	svc, _ := newSimilarity(t, provider, nil)

	report, err := svc.CompareSentences(context.Background(),
		"First original sentence. Second original sentence.",
		"Checked sentence number one. Checked sentence number two.")
	require.NoError(t, err)
	require.Len(t, report.Matches, 2)
	assert.Equal(t, 1, report.Matches[0].OriginalIndex)
	assert.Equal(t, 1, report.Matches[1].OriginalIndex)
	assert.Equal(t, "Second original sentence.", report.Matches[1].OriginalText)
}

func TestCompareSentences_TiesGoToEarliestOriginal(t *testing.T) {
	provider := newMockEmbedder(2).
		set("Duplicate sentence one.", 1, 0).
		set("Duplicate sentence two.", 1, 0).
		set("The sentence being checked.", 1, 0)
	svc, _ := newSimilarity(t, provider, nil)

	report, err := svc.CompareSentences(context.Background(),
		"Duplicate sentence one. Duplicate sentence two.", "The sentence being checked.")
	require.NoError(t, err)
	require.Len(t, report.Matches, 1)
	assert.Equal(t, 0, report.Matches[0].OriginalIndex)
}

func TestCompareSentences_NothingToCompare(t *testing.T) {
	provider := newMockEmbedder(2)
	svc, _ := newSimilarity(t, provider, nil)

	report, err := svc.CompareSentences(context.Background(), "Short.", "A full sentence to check.")
	require.NoError(t, err)
	assert.Empty(t, report.Matches)
	assert.Zero(t, report.MaxScore)
	assert.Zero(t, provider.callCount())
}

// corpusFixture indexes three documents, one of them corrupt.
func corpusFixture(t *testing.T) (*SimilarityService, domain.UserContext) {
	t.Helper()
	provider := newMockEmbedder(2).
		set("checked paragraph one", 1, 0).
		set("checked paragraph two", 0, 1)
	svc, reg := newSimilarity(t, provider, nil)
	user := domain.ForUser("9")

	saveIndex(t, reg, user, "a.txt", entry(0, "A0", 1, 0), entry(1, "A1", 0, 1))
	saveIndex(t, reg, user, "b.txt", entry(0, "B0", 0.5, 0.85))
	saveIndex(t, reg, user, "c.txt", entry(0, "C0", 1, 0))
	corrupt := filepath.Join(reg.Root(), "indexes", user.Namespace(), "c.txt.idx")
	require.NoError(t, os.WriteFile(corrupt, []byte("garbage"), 0o600))
	return svc, user
}

const checkedCorpusText = "checked paragraph one\n\nchecked paragraph two"

func TestScanCorpus_GroupsByDocument(t *testing.T) {
	svc, user := corpusFixture(t)

	report, err := svc.ScanCorpus(context.Background(), user, checkedCorpusText, domain.CorpusOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Scanned)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "c.txt", report.Skipped[0].Document)
	assert.InDelta(t, 1.0, float64(report.MaxScore), 1e-6)

	require.Len(t, report.Documents, 2)
	a, b := report.Documents[0], report.Documents[1]
	assert.Equal(t, "a.txt", a.Document)
	require.Len(t, a.Matches, 2)
	assert.Equal(t, "A0", a.Matches[0].SourceText)
	assert.Equal(t, "checked paragraph one", a.Matches[0].CheckedText)
	assert.Equal(t, "A1", a.Matches[1].SourceText)
	assert.Equal(t, domain.SeverityCritical, a.Matches[0].Severity)

	assert.Equal(t, "b.txt", b.Document)
	require.Len(t, b.Matches, 1)
	assert.Equal(t, 1, b.Matches[0].CheckedPosition)
	assert.InDelta(t, 0.8619, float64(b.MaxScore), 1e-3)
	assert.Equal(t, domain.SeverityHigh, b.Matches[0].Severity)
}

func TestScanCorpus_ExcludeAndThreshold(t *testing.T) {
	svc, user := corpusFixture(t)

	report, err := svc.ScanCorpus(context.Background(), user, checkedCorpusText,
		domain.CorpusOptions{Exclude: "a.txt", Threshold: 0.9})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Empty(t, report.Documents)
	assert.InDelta(t, 0.8619, float64(report.MaxScore), 1e-3)
}

func TestScanCorpus_EmptyTextAndFailure(t *testing.T) {
	provider := newMockEmbedder(2)
	svc, _ := newSimilarity(t, provider, nil)

	report, err := svc.ScanCorpus(context.Background(), domain.Anonymous(), "  ", domain.CorpusOptions{})
	require.NoError(t, err)
	assert.Empty(t, report.Documents)
	assert.Zero(t, provider.callCount())

	provider.err = errProviderDown
	_, err = svc.ScanCorpus(context.Background(), domain.Anonymous(), "some text", domain.CorpusOptions{})
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailure)
}

func TestAnalyze_MaxScoreDominates(t *testing.T) {
	svc, _ := newSimilarity(t, newMockEmbedder(64), nil)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	report, err := svc.Analyze(context.Background(), domain.Anonymous(), domain.AnalysisRequest{
		Original: "Alpha sentence is copied here. Beta sentence stands alone. Delta sentence is unique too.",
		Checked:  "Alpha sentence is copied here. Gamma wording differs entirely. Omega text keeps going on.",
	})
	require.NoError(t, err)

	require.NotNil(t, report.DocumentScore)
	require.NotNil(t, report.Sentences)
	assert.Nil(t, report.Corpus)
	assert.InDelta(t, 1.0, float64(report.Sentences.MaxScore), 1e-6)
	assert.Less(t, float64(*report.DocumentScore), float64(report.MaxScore))
	assert.InDelta(t, 1.0, float64(report.MaxScore), 1e-6)
	assert.Equal(t, domain.SeverityCritical, report.Risk)
	assert.Empty(t, report.Degraded)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, fixed, report.CreatedAt)
}

func TestAnalyze_DegradesFailedGranularity(t *testing.T) {
	provider := newMockEmbedder(16)
	// "Zzz!" is too short to be a sentence, so only the whole-text
	// comparison sees it.
	provider.failOn = "Zzz"
	svc, _ := newSimilarity(t, provider, nil)

	report, err := svc.Analyze(context.Background(), domain.Anonymous(), domain.AnalysisRequest{
		Original: "Alpha sentence is copied here.",
		Checked:  "Alpha sentence is copied here. Zzz!",
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.Granularity{domain.GranularityDocument}, report.Degraded)
	assert.Nil(t, report.DocumentScore)
	require.NotNil(t, report.Sentences)
	assert.Equal(t, domain.SeverityCritical, report.Risk)
}

func TestAnalyze_AllGranularitiesDegraded(t *testing.T) {
	provider := newMockEmbedder(16)
	provider.err = errProviderDown
	svc, _ := newSimilarity(t, provider, nil)

	report, err := svc.Analyze(context.Background(), domain.Anonymous(), domain.AnalysisRequest{
		Original: "Alpha sentence is copied here.",
		Checked:  "Alpha sentence is copied here.",
		Corpus:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.Granularity{
		domain.GranularityDocument, domain.GranularitySentence, domain.GranularityCorpus,
	}, report.Degraded)
	assert.Zero(t, report.MaxScore)
	assert.Equal(t, domain.SeverityLow, report.Risk)
}

func TestAnalyze_CorpusOnly(t *testing.T) {
	svc, user := corpusFixture(t)

	report, err := svc.Analyze(context.Background(), user, domain.AnalysisRequest{
		Checked: checkedCorpusText,
		Corpus:  true,
	})
	require.NoError(t, err)
	assert.Nil(t, report.DocumentScore)
	require.NotNil(t, report.Corpus)
	assert.Equal(t, domain.SeverityCritical, report.Risk)
}

func TestAnalyze_InvalidRequests(t *testing.T) {
	svc, _ := newSimilarity(t, newMockEmbedder(4), nil)

	_, err := svc.Analyze(context.Background(), domain.Anonymous(), domain.AnalysisRequest{Original: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Analyze(context.Background(), domain.Anonymous(), domain.AnalysisRequest{Checked: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAnalyze_ParaphraseNote(t *testing.T) {
	llm := &mockLLM{reply: func(string) (string, error) { return " Synonym substitution. ", nil }}
	svc, _ := newSimilarity(t, newMockEmbedder(16), llm)

	report, err := svc.Analyze(context.Background(), domain.Anonymous(), domain.AnalysisRequest{
		Original:   "The original passage text.",
		Checked:    "The rewritten passage text.",
		Paraphrase: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Synonym substitution.", report.ParaphraseNote)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "The original passage text.")
	assert.Contains(t, llm.prompts[0], "The rewritten passage text.")
}

func TestAnalyze_ParaphraseTimeoutIsBestEffort(t *testing.T) {
	llm := &mockLLM{block: true}
	svc, _ := newSimilarity(t, newMockEmbedder(16), llm)
	svc.cfg.ParaphraseTimeout = 20 * time.Millisecond

	report, err := svc.Analyze(context.Background(), domain.Anonymous(), domain.AnalysisRequest{
		Original:   "The original passage text.",
		Checked:    "The original passage text.",
		Paraphrase: true,
	})
	require.NoError(t, err)
	assert.Empty(t, report.ParaphraseNote)
	assert.Equal(t, domain.SeverityCritical, report.Risk)
}
