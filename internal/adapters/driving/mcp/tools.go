package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query     string   `json:"query" jsonschema:"the question or phrase to find passages for"`
	Documents []string `json:"documents,omitempty" jsonschema:"document filenames to search (default all)"`
	TopK      int      `json:"top_k,omitempty" jsonschema:"maximum number of passages to return (default 5)"`
	User      string   `json:"user,omitempty" jsonschema:"user whose documents are searched (default shared)"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Passages []PassageOutput `json:"passages"`
	Skipped  []SkippedOutput `json:"skipped,omitempty"`
	Count    int             `json:"count"`
}

// PassageOutput is one retrieved chunk.
type PassageOutput struct {
	Document string  `json:"document"`
	Position int     `json:"position"`
	Text     string  `json:"text"`
	Distance float64 `json:"distance"`
}

// SkippedOutput names a document that could not be searched.
type SkippedOutput struct {
	Document string `json:"document"`
	Reason   string `json:"reason"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question  string   `json:"question" jsonschema:"the question to answer from the documents"`
	Documents []string `json:"documents,omitempty" jsonschema:"document filenames to answer from (default all)"`
	User      string   `json:"user,omitempty" jsonschema:"user whose documents are used (default shared)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer  string          `json:"answer"`
	Sources []PassageOutput `json:"sources"`
	Skipped []SkippedOutput `json:"skipped,omitempty"`
}

// CompareInput is the input schema for the compare tool.
type CompareInput struct {
	A string `json:"a" jsonschema:"first text"`
	B string `json:"b" jsonschema:"second text"`
}

// CompareOutput is the output schema for the compare tool.
type CompareOutput struct {
	Score float64 `json:"score"`
}

// PlagiarismInput is the input schema for the check_plagiarism tool.
type PlagiarismInput struct {
	Checked   string  `json:"checked" jsonschema:"the text under examination"`
	Original  string  `json:"original,omitempty" jsonschema:"an original text to compare against"`
	Corpus    bool    `json:"corpus,omitempty" jsonschema:"also scan the user's indexed documents"`
	Threshold float64 `json:"threshold,omitempty" jsonschema:"minimum corpus match score (default medium)"`
	User      string  `json:"user,omitempty" jsonschema:"user whose documents are scanned (default shared)"`
}

// PlagiarismOutput is the output schema for the check_plagiarism tool.
type PlagiarismOutput struct {
	Risk     string   `json:"risk"`
	MaxScore float64  `json:"max_score"`
	Flagged  []string `json:"flagged_sentences,omitempty"`
	Matches  []string `json:"matching_documents,omitempty"`
	Degraded []string `json:"degraded,omitempty"`
}

// registerTools registers the tool handlers whose ports are present.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Find the passages closest to a query across indexed documents",
	}, s.handleRetrieve)

	if s.ports.Ask != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a question using only passages from the indexed documents",
		}, s.handleAsk)
	}

	if s.ports.Similarity != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "compare",
			Description: "Score the semantic similarity of two texts between 0 and 1",
		}, s.handleCompare)
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "check_plagiarism",
			Description: "Check a text against an original and the indexed documents",
		}, s.handlePlagiarism)
	}
}

func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	report, err := s.ports.Retrieval.Retrieve(ctx, domain.ForUser(input.User), input.Query, input.Documents, input.TopK)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		Passages: passages(report.Results),
		Skipped:  skipped(report.Skipped),
		Count:    len(report.Results),
	}
	return nil, output, nil
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.Ask.Ask(ctx, domain.ForUser(input.User), input.Question, input.Documents)
	if errors.Is(err, domain.ErrNoRelevantContext) {
		output := AskOutput{Answer: domain.UserMessage(err), Sources: []PassageOutput{}}
		if answer != nil {
			output.Skipped = skipped(answer.Skipped)
		}
		return nil, output, nil
	}
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		Answer:  answer.Text,
		Sources: passages(answer.Sources),
		Skipped: skipped(answer.Skipped),
	}, nil
}

func (s *Server) handleCompare(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CompareInput,
) (*mcp.CallToolResult, CompareOutput, error) {
	score, err := s.ports.Similarity.Compare(ctx, input.A, input.B)
	if err != nil {
		return nil, CompareOutput{}, err
	}
	return nil, CompareOutput{Score: float64(score)}, nil
}

func (s *Server) handlePlagiarism(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input PlagiarismInput,
) (*mcp.CallToolResult, PlagiarismOutput, error) {
	report, err := s.ports.Similarity.Analyze(ctx, domain.ForUser(input.User), domain.AnalysisRequest{
		Checked:       input.Checked,
		Original:      input.Original,
		Corpus:        input.Corpus,
		CorpusOptions: domain.CorpusOptions{Threshold: domain.CosineScore(input.Threshold)},
	})
	if err != nil {
		return nil, PlagiarismOutput{}, err
	}

	output := PlagiarismOutput{
		Risk:     report.Risk.String(),
		MaxScore: float64(report.MaxScore),
	}
	if report.Sentences != nil {
		for _, m := range report.Sentences.Matches {
			if m.Flagged {
				output.Flagged = append(output.Flagged, m.CheckedText)
			}
		}
	}
	if report.Corpus != nil {
		for _, d := range report.Corpus.Documents {
			output.Matches = append(output.Matches, d.Document)
		}
	}
	for _, g := range report.Degraded {
		output.Degraded = append(output.Degraded, string(g))
	}
	return nil, output, nil
}

func passages(chunks []domain.RetrievedChunk) []PassageOutput {
	out := make([]PassageOutput, len(chunks))
	for i, c := range chunks {
		out[i] = PassageOutput{
			Document: c.Document,
			Position: c.Position,
			Text:     c.Text,
			Distance: float64(c.Distance),
		}
	}
	return out
}

func skipped(docs []domain.SkippedDocument) []SkippedOutput {
	if len(docs) == 0 {
		return nil
	}
	out := make([]SkippedOutput, len(docs))
	for i, d := range docs {
		out[i] = SkippedOutput{Document: d.Document, Reason: d.Reason}
	}
	return out
}
