package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
	"github.com/custodia-labs/scholar/internal/logger"
)

// Ensure SimilarityService implements the interface.
var _ driving.SimilarityService = (*SimilarityService)(nil)

// checkedDocumentName labels the text under examination when it is chunked.
const checkedDocumentName = "checked"

// SimilarityService compares texts with cosine similarity over embeddings.
// It uses no vector index for direct and sentence comparison.
type SimilarityService struct {
	gateway     *EmbeddingGateway
	registry    driven.IndexRegistry
	pipeline    driven.PostProcessorPipeline
	llm         driven.LanguageModel
	prompts     driven.PromptStore
	cfg         domain.SimilaritySettings
	concurrency int
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSimilarityService creates a new similarity service. llm and prompts may
// be nil, which disables the paraphrase note.
func NewSimilarityService(
	gateway *EmbeddingGateway,
	registry driven.IndexRegistry,
	pipeline driven.PostProcessorPipeline,
	llm driven.LanguageModel,
	prompts driven.PromptStore,
	cfg domain.SimilaritySettings,
	concurrency int,
) *SimilarityService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &SimilarityService{
		gateway:     gateway,
		registry:    registry,
		pipeline:    pipeline,
		llm:         llm,
		prompts:     prompts,
		cfg:         cfg,
		concurrency: concurrency,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
	}
}

// Compare returns the cosine similarity of two whole texts using a single
// batched embedding call. Negative similarities are reported as 0.
func (s *SimilarityService) Compare(ctx context.Context, a, b string) (domain.CosineScore, error) {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0, fmt.Errorf("compare needs two non-empty texts: %w", domain.ErrInvalidInput)
	}
	res := s.gateway.Embed(ctx, []string{a, b})
	if res.Failed() {
		return 0, res.Err
	}
	return similarity(res.Vectors[0], res.Vectors[1]), nil
}

// CompareSentences matches every checked sentence with its most similar
// original sentence. Two checked sentences may match the same original one.
func (s *SimilarityService) CompareSentences(
	ctx context.Context, original, checked string,
) (*domain.SentenceReport, error) {
	orig := SplitSentences(original, s.cfg.MinSentenceLength)
	chk := SplitSentences(checked, s.cfg.MinSentenceLength)
	report := &domain.SentenceReport{Matches: []domain.SentenceMatch{}}
	if len(orig) == 0 || len(chk) == 0 {
		return report, nil
	}

	res := s.gateway.Embed(ctx, append(append([]string{}, orig...), chk...))
	if res.Failed() {
		return nil, res.Err
	}
	origVecs, chkVecs := res.Vectors[:len(orig)], res.Vectors[len(orig):]

	for ci, cv := range chkVecs {
		best, bestScore := 0, domain.CosineScore(-1)
		for oi, ov := range origVecs {
			if score := similarity(cv, ov); score > bestScore {
				best, bestScore = oi, score
			}
		}
		m := domain.SentenceMatch{
			CheckedIndex:  ci,
			CheckedText:   chk[ci],
			OriginalIndex: best,
			OriginalText:  orig[best],
			Score:         bestScore,
			Severity:      s.cfg.Thresholds.Classify(bestScore),
			Flagged:       bestScore >= s.cfg.Thresholds.Medium,
		}
		report.Matches = append(report.Matches, m)
		if m.Flagged {
			report.Flagged++
		}
		if bestScore > report.MaxScore {
			report.MaxScore = bestScore
		}
	}
	return report, nil
}

// ScanCorpus compares the chunks of checked against every stored chunk of the
// user's indexed documents and groups the best matches at or above the
// threshold by source document.
func (s *SimilarityService) ScanCorpus(
	ctx context.Context, user domain.UserContext, checked string, opts domain.CorpusOptions,
) (*domain.CorpusReport, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = s.cfg.Thresholds.Medium
	}

	ctx, span := s.tracer.Start(ctx, "scholar.corpus_scan", trace.WithAttributes(
		attribute.String("namespace", user.Namespace()),
	))
	defer span.End()

	report := &domain.CorpusReport{Documents: []domain.DocumentMatches{}}

	chunks, err := s.pipeline.Process(ctx, &domain.Document{
		ID: checkedDocumentName, Name: checkedDocumentName, Content: checked,
	})
	if err != nil {
		return nil, fmt.Errorf("chunk checked text: %w", err)
	}
	if len(chunks) == 0 {
		return report, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	res := s.gateway.Embed(ctx, texts)
	if res.Failed() {
		return nil, res.Err
	}
	if res.Empty() {
		return report, nil
	}

	infos, err := s.registry.List(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, info := range infos {
		if info.Document == opts.Exclude {
			continue
		}
		g.Go(func() error {
			group, best, err := s.scanDocument(gctx, user, info.Document, chunks, res, threshold)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.With("namespace", user.Namespace(), "document", info.Document).
					Warn("corpus scan: skipping document", "err", err)
				report.Skipped = append(report.Skipped, domain.SkippedDocument{
					Document: info.Document, Reason: SkipReason(err), Err: err,
				})
				return nil
			}
			report.Scanned++
			if best > report.MaxScore {
				report.MaxScore = best
			}
			if len(group.Matches) > 0 {
				report.Documents = append(report.Documents, group)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(report.Documents, func(i, j int) bool {
		a, b := report.Documents[i], report.Documents[j]
		if a.MaxScore != b.MaxScore {
			return a.MaxScore > b.MaxScore
		}
		return a.Document < b.Document
	})
	sort.Slice(report.Skipped, func(i, j int) bool { return report.Skipped[i].Document < report.Skipped[j].Document })
	span.SetAttributes(
		attribute.Int("scanned", report.Scanned),
		attribute.Int("matched", len(report.Documents)),
		attribute.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

// scanDocument finds, for each checked chunk, the most similar chunk of one
// stored document. It returns the matches at or above threshold and the best
// score seen.
func (s *SimilarityService) scanDocument(
	ctx context.Context,
	user domain.UserContext,
	name string,
	chunks []domain.Chunk,
	embedded domain.EmbeddingResult,
	threshold domain.CosineScore,
) (domain.DocumentMatches, domain.CosineScore, error) {
	group := domain.DocumentMatches{Document: name}
	idx, err := s.registry.Load(ctx, user, name)
	if err != nil {
		return group, 0, err
	}
	if idx.Dimensions() != embedded.Dimensions() {
		return group, 0, fmt.Errorf("index has %d dimensions, query %d: %w",
			idx.Dimensions(), embedded.Dimensions(), domain.ErrDimensionMismatch)
	}
	entries := idx.Entries()

	var best domain.CosineScore
	for j, ci := range embedded.Indices {
		vec := embedded.Vectors[j]
		at, score := -1, domain.CosineScore(-1)
		for e := range entries {
			if sc := similarity(vec, entries[e].Vector); sc > score {
				at, score = e, sc
			}
		}
		if at < 0 {
			continue
		}
		if score > best {
			best = score
		}
		if score < threshold {
			continue
		}
		group.Matches = append(group.Matches, domain.ChunkMatch{
			CheckedPosition: chunks[ci].Position,
			CheckedText:     chunks[ci].Content,
			SourcePosition:  entries[at].Position,
			SourceText:      entries[at].Text,
			Score:           score,
			Severity:        s.cfg.Thresholds.Classify(score),
		})
		if score > group.MaxScore {
			group.MaxScore = score
		}
	}
	sort.SliceStable(group.Matches, func(a, b int) bool {
		return group.Matches[a].Score > group.Matches[b].Score
	})
	return group, best, nil
}

// Analyze runs the requested granularities and rates the run by the highest
// score any of them observed. A granularity whose embedding fails contributes
// nothing and is listed in Degraded.
func (s *SimilarityService) Analyze(
	ctx context.Context, user domain.UserContext, req domain.AnalysisRequest,
) (*domain.AnalysisReport, error) {
	if strings.TrimSpace(req.Checked) == "" {
		return nil, fmt.Errorf("nothing to check: %w", domain.ErrInvalidInput)
	}
	hasOriginal := strings.TrimSpace(req.Original) != ""
	if !hasOriginal && !req.Corpus {
		return nil, fmt.Errorf("need an original text or a corpus scan: %w", domain.ErrInvalidInput)
	}
	logger.Section("Similarity Analysis")

	report := &domain.AnalysisReport{ID: uuid.New().String(), CreatedAt: s.now()}
	observe := func(score domain.CosineScore) {
		if score > report.MaxScore {
			report.MaxScore = score
		}
	}
	degrade := func(g domain.Granularity, err error) error {
		if !errors.Is(err, domain.ErrEmbeddingFailure) {
			return err
		}
		logger.Warn("similarity: %s comparison degraded: %v", g, err)
		report.Degraded = append(report.Degraded, g)
		return nil
	}

	if hasOriginal {
		score, err := s.Compare(ctx, req.Original, req.Checked)
		if err != nil {
			if err := degrade(domain.GranularityDocument, err); err != nil {
				return nil, err
			}
		} else {
			report.DocumentScore = &score
			observe(score)
		}

		sentences, err := s.CompareSentences(ctx, req.Original, req.Checked)
		if err != nil {
			if err := degrade(domain.GranularitySentence, err); err != nil {
				return nil, err
			}
		} else {
			report.Sentences = sentences
			observe(sentences.MaxScore)
		}
	}

	if req.Corpus {
		corpus, err := s.ScanCorpus(ctx, user, req.Checked, req.CorpusOptions)
		if err != nil {
			if err := degrade(domain.GranularityCorpus, err); err != nil {
				return nil, err
			}
		} else {
			report.Corpus = corpus
			observe(corpus.MaxScore)
		}
	}

	report.Risk = s.cfg.Thresholds.Classify(report.MaxScore)

	if req.Paraphrase && hasOriginal {
		report.ParaphraseNote = s.paraphraseNote(ctx, req.Original, req.Checked)
	}
	return report, nil
}

// paraphraseNote asks the language model for a paraphrasing assessment. It
// returns "" when the model is unavailable or does not answer in time.
func (s *SimilarityService) paraphraseNote(ctx context.Context, original, checked string) string {
	if s.llm == nil {
		return ""
	}
	if s.cfg.ParaphraseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ParaphraseTimeout)
		defer cancel()
	}
	prompt := renderPrompt(s.prompts, domain.PromptParaphrase, original, checked)
	note, err := s.llm.Complete(ctx, prompt, 0)
	if err != nil {
		logger.Warn("paraphrase check skipped: %v", err)
		return ""
	}
	return strings.TrimSpace(note)
}

// similarity is the cosine of two vectors floored at zero.
func similarity(a, b []float32) domain.CosineScore {
	if len(a) != len(b) {
		return 0
	}
	score := domain.Cosine(a, b)
	if score < 0 {
		return 0
	}
	return score
}
