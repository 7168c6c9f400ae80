package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/scholar/internal/connectors/filesystem"
	"github.com/custodia-labs/scholar/internal/core/domain"
)

var watchSkipExisting bool

var watchCmd = &cobra.Command{
	Use:   "watch [folder]",
	Short: "Keep a folder's documents indexed",
	Long: `Ingests the supported documents in a folder, then watches it until interrupted.
New and changed files are ingested again; removed files are deleted.
Hidden files and subfolders are ignored.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchSkipExisting, "skip-existing", false, "only react to changes, do not ingest current files")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	user := currentUser()
	w := filesystem.New(args[0])
	defer w.Close()

	if !watchSkipExisting {
		paths, err := w.Scan()
		if err != nil {
			return failed("scan folder", err)
		}
		for _, path := range paths {
			ingestFile(cmd, user, path)
		}
	}

	changes, err := w.Watch(cmd.Context())
	if err != nil {
		return failed("watch folder", err)
	}
	cmd.Println(mutedStyle.Render("Watching " + w.Root() + " (Ctrl+C to stop)"))

	for change := range changes {
		applyChange(cmd, user, change)
	}
	return nil
}

func applyChange(cmd *cobra.Command, user domain.UserContext, change filesystem.Change) {
	if change.Type != filesystem.ChangeDeleted {
		ingestFile(cmd, user, change.Path)
		return
	}

	err := ingestService.Delete(cmd.Context(), user, change.Name)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		cmd.Printf("  %s: %s\n", change.Name, domain.UserMessage(err))
	default:
		cmd.Printf("%s %s\n", warnStyle.Render("Removed"), change.Name)
	}
}
