package domain

import "time"

// Severity is the tier assigned to a similarity score.
type Severity string

// Severity tiers, from most to least serious.
const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// String returns the string representation.
func (s Severity) String() string {
	return string(s)
}

// Rank orders severities, higher is more serious.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Thresholds are inclusive lower bounds for each severity tier.
type Thresholds struct {
	Critical CosineScore
	High     CosineScore
	Medium   CosineScore
}

// DefaultThresholds returns the standard severity ladder.
func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 0.90, High: 0.80, Medium: 0.70}
}

// Validate checks the ladder is ordered and within range.
func (t Thresholds) Validate() error {
	if t.Medium < 0 || t.Critical > 1 || t.Medium > t.High || t.High > t.Critical {
		return ErrInvalidInput
	}
	return nil
}

// Classify maps a score to a severity. Boundaries are inclusive, so a
// score of exactly 0.90 is Critical.
func (t Thresholds) Classify(score CosineScore) Severity {
	switch {
	case score >= t.Critical:
		return SeverityCritical
	case score >= t.High:
		return SeverityHigh
	case score >= t.Medium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Granularity is a level at which similarity is analysed.
type Granularity string

// Analysis granularities.
const (
	GranularityDocument Granularity = "document"
	GranularitySentence Granularity = "sentence"
	GranularityCorpus   Granularity = "corpus"
)

// SentenceMatch pairs a checked sentence with its best original sentence.
type SentenceMatch struct {
	CheckedIndex  int
	CheckedText   string
	OriginalIndex int
	OriginalText  string
	Score         CosineScore
	Severity      Severity
	// Flagged is true when the score reaches the Medium threshold.
	Flagged bool
}

// SentenceReport is the result of sentence-level comparison.
type SentenceReport struct {
	Matches []SentenceMatch
	// MaxScore is the highest match score, 0 when there are no matches.
	MaxScore CosineScore
	Flagged  int
}

// ChunkMatch pairs a chunk of checked text with a stored chunk.
type ChunkMatch struct {
	CheckedPosition int
	CheckedText     string
	SourcePosition  int
	SourceText      string
	Score           CosineScore
	Severity        Severity
}

// DocumentMatches groups corpus matches by source document.
type DocumentMatches struct {
	Document string
	MaxScore CosineScore
	Matches  []ChunkMatch
}

// CorpusReport is the result of a corpus scan.
type CorpusReport struct {
	Documents []DocumentMatches
	MaxScore  CosineScore
	// Scanned is the number of documents compared.
	Scanned int
	Skipped []SkippedDocument
}

// CorpusOptions tunes a corpus scan.
type CorpusOptions struct {
	// Threshold is the minimum score to report. Zero uses the Medium threshold.
	Threshold CosineScore

	// Exclude skips a document by filename, typically the one being checked.
	Exclude string
}

// AnalysisRequest selects what an analysis compares.
type AnalysisRequest struct {
	// Checked is the text under examination.
	Checked string

	// Original is the reference text for document and sentence comparison.
	// When empty only the corpus scan runs.
	Original string

	// Corpus enables the scan against the user's indexed documents.
	Corpus bool

	// CorpusOptions tunes the corpus scan.
	CorpusOptions CorpusOptions

	// Paraphrase asks the language model for a best-effort paraphrase note.
	Paraphrase bool
}

// AnalysisReport aggregates all requested granularities.
type AnalysisReport struct {
	ID string

	// DocumentScore is the direct cosine between the full texts.
	DocumentScore *CosineScore

	Sentences *SentenceReport
	Corpus    *CorpusReport

	// MaxScore is the maximum over all granularities that ran.
	MaxScore CosineScore

	// Risk is the severity of MaxScore.
	Risk Severity

	// Degraded lists granularities that contributed nothing because
	// embedding failed.
	Degraded []Granularity

	// ParaphraseNote is the language model's assessment, if requested and available.
	ParaphraseNote string

	CreatedAt time.Time
}
