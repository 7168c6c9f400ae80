package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage uploaded documents",
	Long:  `List, delete, or reindex your uploaded documents.`,
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a document and its index",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDelete,
}

var documentsReindexCmd = &cobra.Command{
	Use:   "reindex [name]",
	Short: "Rebuild a document's index from its upload",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsReindex,
}

var pruneKeep int

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove all but the newest indexes",
	Long: `Deletes the oldest vector indexes, keeping the newest ones.
Uploads are kept, so pruned documents can be reindexed later.`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().IntVar(&pruneKeep, "keep", -1, "number of indexes to keep (default from settings)")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	documentsCmd.AddCommand(documentsReindexCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(pruneCmd)
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	docs, err := ingestService.List(cmd.Context(), currentUser())
	if err != nil {
		return failed("list documents", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	heading(cmd, "Documents:")
	cmd.Println()
	for i := range docs {
		status := okStyle.Render("indexed")
		if !docs[i].Indexed {
			status = warnStyle.Render("not indexed")
		}
		cmd.Printf("  %s [%s]\n", docs[i].Name, status)
		cmd.Printf("    Title:  %s\n", docs[i].Title)
		cmd.Printf("    Author: %s\n", docs[i].Author)
		cmd.Printf("    Chunks: %d\n", docs[i].ChunkCount)
		cmd.Printf("    Updated: %s\n", docs[i].UpdatedAt.Format("2006-01-02 15:04:05"))
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	if err := ingestService.Delete(cmd.Context(), currentUser(), args[0]); err != nil {
		return failed("delete document", err)
	}

	cmd.Printf("Deleted %s\n", args[0])
	return nil
}

func runDocumentsReindex(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	result, err := ingestService.Reindex(cmd.Context(), currentUser(), args[0])
	if err != nil {
		return failed("reindex document", err)
	}

	printIngestResult(cmd, result)
	return nil
}

func runPrune(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	keep := pruneKeep
	if keep < 0 {
		keep = 0
		if settingsService != nil {
			if s, err := settingsService.Get(); err == nil {
				keep = s.Storage.KeepIndexes
			}
		}
	}
	if keep == 0 {
		cmd.Println("Nothing to prune: no index limit configured.")
		return nil
	}

	removed, err := ingestService.Prune(cmd.Context(), currentUser(), keep)
	if err != nil {
		return failed("prune", err)
	}

	if len(removed) == 0 {
		cmd.Printf("Nothing to prune: %d or fewer indexes.\n", keep)
		return nil
	}
	for _, name := range removed {
		cmd.Printf("  removed %s\n", name)
	}
	cmd.Println(mutedStyle.Render(fmt.Sprintf("Pruned %d indexes, kept the newest %d.", len(removed), keep)))
	return nil
}
