package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

var (
	settingsModel  string
	settingsAPIKey string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure storage, AI providers and similarity thresholds.

Environment variables override stored settings for a single run.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding [provider]",
	Short: "Configure embedding provider",
	Long: `Configure the embedding provider used for indexing, retrieval and similarity.
Changing the model invalidates existing indexes; reindex your documents afterwards.
Without a provider argument you are asked to choose one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm [provider]",
	Short: "Configure LLM provider",
	Long:  `Configure the language model used for answers, summaries and paraphrase notes.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSettingsLLM,
}

var settingsThresholdCmd = &cobra.Command{
	Use:   "threshold [score]",
	Short: "Set the medium severity threshold",
	Long: `Set the lowest score reported as a medium similarity.
It must lie between 0 and the high threshold (0.80).`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsThreshold,
}

func init() {
	for _, c := range []*cobra.Command{settingsEmbeddingCmd, settingsLLMCmd} {
		c.Flags().StringVarP(&settingsModel, "model", "m", "", "model name (default for the provider)")
		c.Flags().StringVar(&settingsAPIKey, "api-key", "", "API key for cloud providers")
	}

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsThresholdCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	heading(cmd, "Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Root: %s\n", settings.Storage.Root)
	cmd.Printf("  Index cache: %d\n", settings.Storage.IndexCacheSize)
	if settings.Storage.KeepIndexes > 0 {
		cmd.Printf("  Keep indexes: %d\n", settings.Storage.KeepIndexes)
	} else {
		cmd.Printf("  Keep indexes: all\n")
	}
	cmd.Println()

	cmd.Println("[Chunking]")
	cmd.Printf("  Size: %d\n", settings.Chunking.Size)
	cmd.Printf("  Overlap: %d\n", settings.Chunking.Overlap)
	cmd.Println()

	cmd.Println("[Embedding]")
	printProvider(cmd, settings.Embedding.Provider, settings.Embedding.Model,
		settings.Embedding.BaseURL, settings.Embedding.APIKey, settings.Embedding.IsConfigured())
	cmd.Println()

	cmd.Println("[LLM]")
	printProvider(cmd, settings.LLM.Provider, settings.LLM.Model,
		settings.LLM.BaseURL, settings.LLM.APIKey, settings.LLM.IsConfigured())
	cmd.Printf("  Temperature: %.2f\n", settings.LLM.Temperature)
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Top k: %d\n", settings.Retrieval.TopK)
	cmd.Printf("  Concurrency: %d\n", settings.Retrieval.Concurrency)
	cmd.Println()

	t := settings.Similarity.Thresholds
	cmd.Println("[Similarity]")
	cmd.Printf("  Critical: %.2f\n", float64(t.Critical))
	cmd.Printf("  High: %.2f\n", float64(t.High))
	cmd.Printf("  Medium: %.2f\n", float64(t.Medium))
	cmd.Printf("  Min sentence length: %d\n", settings.Similarity.MinSentenceLength)
	return nil
}

func printProvider(cmd *cobra.Command, p domain.AIProvider, model, baseURL, apiKey string, configured bool) {
	cmd.Printf("  Provider: %s\n", p.Description())
	cmd.Printf("  Model: %s\n", model)
	if baseURL != "" {
		cmd.Printf("  Base URL: %s\n", baseURL)
	}
	if p.RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	status := "configured"
	if !configured {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
}

func runSettingsEmbedding(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	provider, apiKey, err := chooseProvider(cmd, args)
	if err != nil {
		return err
	}
	if err := settingsService.SetEmbeddingProvider(provider, settingsModel, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	cmd.Printf("Embedding provider configured: %s\n", provider.Description())
	cmd.Println(mutedStyle.Render("Reindex your documents if the model changed."))
	return nil
}

func runSettingsLLM(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	provider, apiKey, err := chooseProvider(cmd, args)
	if err != nil {
		return err
	}
	if err := settingsService.SetLLMProvider(provider, settingsModel, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	cmd.Printf("LLM provider configured: %s\n", provider.Description())
	return nil
}

func runSettingsThreshold(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	score, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid score %q", args[0])
	}
	if err := settingsService.SetMediumThreshold(domain.CosineScore(score)); err != nil {
		return fmt.Errorf("failed to set threshold: %w", err)
	}

	cmd.Printf("Medium threshold set to %.2f\n", score)
	return nil
}

// chooseProvider resolves the provider from args or an interactive choice,
// and asks for an API key when the provider needs one and none was given.
func chooseProvider(cmd *cobra.Command, args []string) (domain.AIProvider, string, error) {
	in := cmd.InOrStdin()
	reader := bufio.NewReader(in)

	var provider domain.AIProvider
	if len(args) == 1 {
		provider = domain.AIProvider(strings.ToLower(args[0]))
	} else {
		providers := domain.AllAIProviders()
		cmd.Println("Select Provider")
		for i, p := range providers {
			cmd.Printf("  %d. %s\n", i+1, p.Description())
		}
		cmd.Print("\nEnter choice [1]: ")
		provider = providers[parseChoice(readLine(reader), len(providers), 1)-1]
	}
	if !provider.IsValid() {
		return "", "", fmt.Errorf("unknown provider %q", provider)
	}

	apiKey := settingsAPIKey
	if provider.RequiresAPIKey() && apiKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(in, reader)
		cmd.Println()
		if apiKey == "" {
			return "", "", errors.New("API key is required for this provider")
		}
	}
	return provider, apiKey, nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when in is a terminal.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
