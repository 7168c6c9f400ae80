package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB020"))
)

var severityColors = map[domain.Severity]lipgloss.Color{
	domain.SeverityCritical: lipgloss.Color("#FF6B6B"),
	domain.SeverityHigh:     lipgloss.Color("#FF9F43"),
	domain.SeverityMedium:   lipgloss.Color("#FFD166"),
	domain.SeverityLow:      lipgloss.Color("#04B575"),
}

func renderSeverity(s domain.Severity) string {
	style := lipgloss.NewStyle().Bold(true)
	if c, ok := severityColors[s]; ok {
		style = style.Foreground(c)
	}
	return style.Render(strings.ToUpper(s.String()))
}

func heading(cmd *cobra.Command, title string) {
	cmd.Println(headingStyle.Render(title))
}

// preview shortens text to n runes on one line.
func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}

func printSkipped(cmd *cobra.Command, skipped []domain.SkippedDocument) {
	if len(skipped) == 0 {
		return
	}
	cmd.Println()
	cmd.Println(warnStyle.Render("Skipped:"))
	for _, s := range skipped {
		cmd.Printf("  %s: %s\n", s.Document, s.Reason)
	}
}

// thresholds returns the configured severity ladder.
func thresholds() domain.Thresholds {
	if settingsService != nil {
		if s, err := settingsService.Get(); err == nil {
			return s.Similarity.Thresholds
		}
	}
	return domain.DefaultThresholds()
}

// readText loads a file and extracts its text.
func readText(cmd *cobra.Command, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if extractText == nil {
		return string(data), nil
	}
	return extractText(cmd.Context(), filepath.Base(path), data)
}
