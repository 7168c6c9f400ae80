package services

import (
	"fmt"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/logger"
)

// renderPrompt fills the named template. A nil store or a failed load falls
// back to the built-in template.
func renderPrompt(store driven.PromptStore, name string, args ...any) string {
	tmpl := domain.DefaultPrompts()[name]
	if store != nil {
		loaded, err := store.Load(name)
		if err != nil {
			logger.Warn("prompt %s: %v, using built-in", name, err)
		} else {
			tmpl = loaded
		}
	}
	return fmt.Sprintf(tmpl, args...)
}
