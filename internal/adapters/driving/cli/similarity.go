package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

var compareSentences bool

var (
	checkOriginal   string
	checkCorpus     bool
	checkExclude    string
	checkThreshold  float64
	checkParaphrase bool
	checkJSON       bool
)

var compareCmd = &cobra.Command{
	Use:   "compare [file-a] [file-b]",
	Short: "Score the similarity of two texts",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompare,
}

var plagiarismCmd = &cobra.Command{
	Use:   "plagiarism [checked-file]",
	Short: "Check a text against an original and your documents",
	Long: `Compares the checked text against an original document, sentence by sentence,
and against your indexed documents. The overall risk is the severity of the
highest score found at any granularity:

  critical  >= 0.90
  high      >= 0.80
  medium    >= 0.70 (configurable)
  low       below medium`,
	Args: cobra.ExactArgs(1),
	RunE: runPlagiarism,
}

func init() {
	compareCmd.Flags().BoolVarP(&compareSentences, "sentences", "s", false, "also match sentence by sentence")

	plagiarismCmd.Flags().StringVarP(&checkOriginal, "original", "o", "", "original file to compare against")
	plagiarismCmd.Flags().BoolVarP(&checkCorpus, "corpus", "c", false, "scan your indexed documents")
	plagiarismCmd.Flags().StringVar(&checkExclude, "exclude", "", "indexed document to leave out of the scan")
	plagiarismCmd.Flags().Float64Var(&checkThreshold, "threshold", 0, "minimum corpus match score (default medium)")
	plagiarismCmd.Flags().BoolVar(&checkParaphrase, "paraphrase", false, "ask the language model about paraphrasing")
	plagiarismCmd.Flags().BoolVar(&checkJSON, "json", false, "output the report as JSON")

	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(plagiarismCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	if similarityService == nil {
		return errors.New("similarity service not configured")
	}

	a, err := readText(cmd, args[0])
	if err != nil {
		return failed("read "+args[0], err)
	}
	b, err := readText(cmd, args[1])
	if err != nil {
		return failed("read "+args[1], err)
	}

	score, err := similarityService.Compare(cmd.Context(), a, b)
	if err != nil {
		return failed("compare", err)
	}
	cmd.Printf("Similarity: %.4f (%s)\n", float64(score), renderSeverity(thresholds().Classify(score)))

	if !compareSentences {
		return nil
	}
	report, err := similarityService.CompareSentences(cmd.Context(), a, b)
	if err != nil {
		return failed("compare sentences", err)
	}
	cmd.Println()
	printSentences(cmd, report, false)
	return nil
}

func runPlagiarism(cmd *cobra.Command, args []string) error {
	if similarityService == nil {
		return errors.New("similarity service not configured")
	}
	if checkOriginal == "" && !checkCorpus {
		return errors.New("nothing to compare against: give --original or --corpus")
	}

	checked, err := readText(cmd, args[0])
	if err != nil {
		return failed("read "+args[0], err)
	}

	req := domain.AnalysisRequest{
		Checked: checked,
		Corpus:  checkCorpus,
		CorpusOptions: domain.CorpusOptions{
			Threshold: domain.CosineScore(checkThreshold),
			Exclude:   checkExclude,
		},
		Paraphrase: checkParaphrase,
	}
	if checkOriginal != "" {
		req.Original, err = readText(cmd, checkOriginal)
		if err != nil {
			return failed("read "+checkOriginal, err)
		}
	}

	report, err := similarityService.Analyze(cmd.Context(), currentUser(), req)
	if err != nil {
		return failed("plagiarism check", err)
	}

	if checkJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	printAnalysis(cmd, report)
	return nil
}

func printAnalysis(cmd *cobra.Command, report *domain.AnalysisReport) {
	heading(cmd, "Plagiarism report "+report.ID)
	cmd.Printf("  Risk:      %s\n", renderSeverity(report.Risk))
	cmd.Printf("  Max score: %.4f\n", float64(report.MaxScore))
	if report.DocumentScore != nil {
		cmd.Printf("  Document:  %.4f\n", float64(*report.DocumentScore))
	}
	for _, g := range report.Degraded {
		cmd.Println(warnStyle.Render(fmt.Sprintf("  %s comparison unavailable: embedding failed", g)))
	}

	if report.Sentences != nil {
		cmd.Println()
		printSentences(cmd, report.Sentences, true)
	}

	if report.Corpus != nil {
		cmd.Println()
		heading(cmd, fmt.Sprintf("Corpus (%d documents scanned):", report.Corpus.Scanned))
		if len(report.Corpus.Documents) == 0 {
			cmd.Println("  No matches.")
		}
		for _, d := range report.Corpus.Documents {
			cmd.Printf("  %s (max %.4f)\n", d.Document, float64(d.MaxScore))
			for _, m := range d.Matches {
				cmd.Printf("    %s %.4f chunk %d ~ #%d: %s\n", renderSeverity(m.Severity), float64(m.Score),
					m.CheckedPosition, m.SourcePosition, mutedStyle.Render(preview(m.SourceText, 80)))
			}
		}
		printSkipped(cmd, report.Corpus.Skipped)
	}

	if report.ParaphraseNote != "" {
		cmd.Println()
		heading(cmd, "Paraphrase note:")
		cmd.Println(report.ParaphraseNote)
	}
}

func printSentences(cmd *cobra.Command, report *domain.SentenceReport, flaggedOnly bool) {
	heading(cmd, fmt.Sprintf("Sentences (%d flagged of %d):", report.Flagged, len(report.Matches)))
	for _, m := range report.Matches {
		if flaggedOnly && !m.Flagged {
			continue
		}
		cmd.Printf("  %s %.4f %q\n", renderSeverity(m.Severity), float64(m.Score), preview(m.CheckedText, 80))
		cmd.Printf("      ~ %s\n", mutedStyle.Render(preview(m.OriginalText, 80)))
	}
}
