package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

func TestNewPromptStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvHome, home)

	store, err := NewPromptStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "prompts"), store.Dir())
}

func TestPromptStore_Load_CreatesDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(domain.PromptAnswer)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPrompts()[domain.PromptAnswer], prompt)

	for name := range domain.DefaultPrompts() {
		assert.FileExists(t, filepath.Join(dir, name+".txt"))
	}
	assert.FileExists(t, filepath.Join(dir, "README.md"))
}

func TestPromptStore_Load_CustomContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "answer.txt"), []byte("  Q: %s C: %s \n"), 0o600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(domain.PromptAnswer)
	require.NoError(t, err)
	assert.Equal(t, "Q: %s C: %s", prompt)

	// Existing files are not overwritten by initialisation.
	data, err := os.ReadFile(filepath.Join(dir, "answer.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Q: %s")
}

func TestPromptStore_Load_EmptyFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "review.txt"), []byte("   "), 0o600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)
	prompt, err := store.Load(domain.PromptReview)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPrompts()[domain.PromptReview], prompt)
}

func TestPromptStore_Load_PlaceholderMismatchFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "answer.txt"), []byte("Answer %s briefly."), 0o600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)
	prompt, err := store.Load(domain.PromptAnswer)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPrompts()[domain.PromptAnswer], prompt)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, 2, placeholders("Answer '%s' using context: %s"))
	assert.Equal(t, 1, placeholders("100%% of %s"))
	assert.Equal(t, 0, placeholders("no verbs"))
	for name, def := range domain.DefaultPrompts() {
		assert.Equal(t, 2, placeholders(def), name)
	}
}

func TestPromptStore_Load_Unknown(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Load("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPromptStore_Reload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(domain.PromptParaphrase)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "paraphrase.txt"), []byte("edited %s %s"), 0o600))
	cached, _ := store.Load(domain.PromptParaphrase)
	assert.NotEqual(t, "edited %s %s", cached)

	store.Reload()
	fresh, err := store.Load(domain.PromptParaphrase)
	require.NoError(t, err)
	assert.Equal(t, "edited %s %s", fresh)
}

func TestPromptStore_ConcurrentLoad(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := store.Load(domain.PromptSummarisePaper)
			assert.NoError(t, err)
			assert.NotEmpty(t, p)
		}()
	}
	wg.Wait()
}
