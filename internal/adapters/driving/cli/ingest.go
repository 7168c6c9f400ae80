package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Upload and index documents",
	Long: `Stores each file, extracts its text, splits it into chunks and builds a vector index.

Supported formats: .pdf, .docx, .txt and .tex. Uploading a file with the same
name replaces the earlier version.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	user := currentUser()
	failures := 0
	for _, path := range args {
		if !ingestFile(cmd, user, path) {
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d documents failed", failures, len(args))
	}
	return nil
}

// ingestFile uploads one file and prints the outcome. It reports whether
// the upload succeeded.
func ingestFile(cmd *cobra.Command, user domain.UserContext, path string) bool {
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		cmd.Printf("  %s: %v\n", name, err)
		return false
	}

	result, err := ingestService.Ingest(cmd.Context(), user, name, data)
	if err != nil {
		cmd.Printf("  %s: %s\n", name, domain.UserMessage(err))
		return false
	}
	printIngestResult(cmd, result)
	return true
}

func printIngestResult(cmd *cobra.Command, result *domain.IngestResult) {
	name := result.Document.Name
	if result.Indexed {
		cmd.Printf("%s %s (%d chunks)\n", okStyle.Render("Indexed"), name, result.Chunks)
		return
	}
	cmd.Printf("%s %s, not indexed: %s\n", warnStyle.Render("Stored"), name, result.Reason)
	cmd.Println(mutedStyle.Render(fmt.Sprintf("Run 'scholar documents reindex %s' to retry.", name)))
}
