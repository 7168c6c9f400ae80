package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

var reviewTopic string

var reviewCmd = &cobra.Command{
	Use:   "review [papers-file]",
	Short: "Draft a literature review",
	Long: `Summarises each paper, groups similar papers and drafts a review on the topic.

The papers file is TOML with one [[papers]] table per paper:

  [[papers]]
  title = "Dense Passage Retrieval"
  authors = ["Karpukhin", "Oguz"]
  year = 2020
  abstract = "..."`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewTopic, "topic", "t", "", "review topic")
	rootCmd.AddCommand(reviewCmd)
}

type papersFile struct {
	Papers []domain.Paper `toml:"papers"`
}

func loadPapers(path string) ([]domain.Paper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f papersFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Papers, nil
}

func runReview(cmd *cobra.Command, args []string) error {
	if reviewService == nil {
		return errors.New("review service not configured")
	}
	if strings.TrimSpace(reviewTopic) == "" {
		return errors.New("a topic is required: use --topic")
	}

	papers, err := loadPapers(args[0])
	if err != nil {
		return failed("load papers", err)
	}
	if len(papers) == 0 {
		return fmt.Errorf("no papers found in %s", args[0])
	}

	review, err := reviewService.Synthesize(cmd.Context(), reviewTopic, papers)
	if err != nil {
		return failed("review", err)
	}

	heading(cmd, "Literature review: "+review.Topic)
	cmd.Println()
	cmd.Println(review.Text)
	cmd.Println()
	for _, c := range review.Clusters {
		heading(cmd, fmt.Sprintf("Cluster %d:", c.Label))
		for _, p := range c.Papers {
			cmd.Printf("  - %s (%d)\n", p.Paper.Title, p.Paper.Year)
		}
	}
	return nil
}
