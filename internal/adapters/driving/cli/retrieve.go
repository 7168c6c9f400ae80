package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

var (
	retrieveDocs []string
	retrieveTopK int
	retrieveJSON bool
	askDocs      []string
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Find the passages closest to a query",
	Long: `Searches the indexes of the selected documents (all documents when none are
given) and prints the closest chunks, nearest first. Documents that cannot be
searched are listed as skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetrieve,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from your documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	retrieveCmd.Flags().StringSliceVarP(&retrieveDocs, "doc", "d", nil, "document to search (repeatable)")
	retrieveCmd.Flags().IntVarP(&retrieveTopK, "top-k", "k", 0, "number of chunks to return (default from settings)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output results as JSON")
	askCmd.Flags().StringSliceVarP(&askDocs, "doc", "d", nil, "document to answer from (repeatable)")

	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(askCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	query := strings.Join(args, " ")
	report, err := retrievalService.Retrieve(cmd.Context(), currentUser(), query, retrieveDocs, retrieveTopK)
	if err != nil {
		return failed("retrieve", err)
	}

	if retrieveJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if report.Empty() {
		cmd.Println("No results found.")
		printSkipped(cmd, report.Skipped)
		return nil
	}

	heading(cmd, "Results:")
	cmd.Println()
	for i, r := range report.Results {
		cmd.Printf("  [%d] %s #%d (distance %.4f)\n", i+1, r.Document, r.Position, float64(r.Distance))
		cmd.Printf("      %s\n", preview(r.Text, 160))
	}
	printSkipped(cmd, report.Skipped)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	if askService == nil {
		return errors.New("ask service not configured")
	}

	question := strings.Join(args, " ")
	answer, err := askService.Ask(cmd.Context(), currentUser(), question, askDocs)
	if errors.Is(err, domain.ErrNoRelevantContext) {
		cmd.Println(domain.UserMessage(err))
		if answer != nil {
			printSkipped(cmd, answer.Skipped)
		}
		return nil
	}
	if err != nil {
		return failed("ask", err)
	}

	cmd.Println(answer.Text)
	cmd.Println()
	heading(cmd, "Sources:")
	for _, s := range answer.Sources {
		cmd.Printf("  %s #%d: %s\n", s.Document, s.Position, mutedStyle.Render(preview(s.Text, 80)))
	}
	printSkipped(cmd, answer.Skipped)
	return nil
}
