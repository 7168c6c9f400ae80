// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// LanguageModel completes prompts. It is an external collaborator; answer
// quality is not the core's concern.
//
// Implementations return an error wrapping domain.ErrModelUnavailable when
// the model cannot be reached.
type LanguageModel interface {
	// Complete returns the model's completion for prompt.
	// Temperature is in [0, 1].
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
