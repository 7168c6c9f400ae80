package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driving"
	"github.com/custodia-labs/scholar/internal/logger"
)

// EnvUser names the user when --user is not given.
const EnvUser = "SCHOLAR_USER"

// version is set at build time.
var version = "dev"

var (
	verbose bool
	userID  string
)

// TextExtractor turns an uploaded file into plain text.
type TextExtractor func(ctx context.Context, name string, data []byte) (string, error)

// Check is one line of the doctor report.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// Diagnoser checks the environment the services depend on.
type Diagnoser func(ctx context.Context) []Check

// Services groups the driving ports the commands call.
type Services struct {
	Ingest     driving.IngestService
	Retrieval  driving.RetrievalService
	Ask        driving.AskService
	Similarity driving.SimilarityService
	Review     driving.ReviewService
	Settings   driving.SettingsService
	Extract    TextExtractor
	Doctor     Diagnoser
}

var (
	ingestService     driving.IngestService
	retrievalService  driving.RetrievalService
	askService        driving.AskService
	similarityService driving.SimilarityService
	reviewService     driving.ReviewService
	settingsService   driving.SettingsService
	extractText       TextExtractor
	diagnose          Diagnoser
)

var rootCmd = &cobra.Command{
	Use:   "scholar",
	Short: "Research assistant for papers and notes",
	Long: `Scholar indexes your papers and notes per user, answers questions from them,
checks texts for similarity and drafts literature reviews.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", os.Getenv(EnvUser),
		"user whose documents are used (empty for the shared namespace)")
}

// SetServices installs the services used by the commands.
func SetServices(s Services) {
	ingestService = s.Ingest
	retrievalService = s.Retrieval
	askService = s.Ask
	similarityService = s.Similarity
	reviewService = s.Review
	settingsService = s.Settings
	extractText = s.Extract
	diagnose = s.Doctor
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func currentUser() domain.UserContext {
	return domain.ForUser(userID)
}

// commandError keeps the underlying error for errors.Is while printing a
// message a user can act on.
type commandError struct {
	action string
	err    error
}

func (e *commandError) Error() string {
	return e.action + ": " + domain.UserMessage(e.err)
}

func (e *commandError) Unwrap() error {
	return e.err
}

func failed(action string, err error) error {
	return &commandError{action: action, err: err}
}
