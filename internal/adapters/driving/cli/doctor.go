package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check providers and external tools",
	Long: `Pings the configured embedding provider and language model and looks for the
tools used to extract text from scanned PDFs.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	if diagnose == nil {
		return errors.New("doctor not configured")
	}

	checks := diagnose(cmd.Context())
	failures := 0
	for _, c := range checks {
		status := okStyle.Render("ok  ")
		if !c.OK {
			status = warnStyle.Render("fail")
			failures++
		}
		cmd.Printf("[%s] %-12s %s\n", status, c.Name, c.Detail)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d checks failed", failures, len(checks))
	}
	return nil
}
