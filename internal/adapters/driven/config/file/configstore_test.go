package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHomeDir(t *testing.T) {
	t.Setenv(EnvHome, "/srv/scholar")
	dir, err := HomeDir()
	require.NoError(t, err)
	assert.Equal(t, "/srv/scholar", dir)

	t.Setenv(EnvHome, "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}
	dir, err = HomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".scholar"), dir)
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvHome, home)

	store, err := NewConfigStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.toml"), store.Path())
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("s", "hello"))
	require.NoError(t, store.Set("i", 42))
	require.NoError(t, store.Set("f", 0.65))
	require.NoError(t, store.Set("b", true))

	assert.Equal(t, "hello", store.GetString("s"))
	assert.Equal(t, "", store.GetString("missing"))
	assert.Equal(t, 42, store.GetInt("i"))
	assert.Equal(t, 0, store.GetInt("s"))
	assert.InDelta(t, 0.65, store.GetFloat("f"), 1e-9)
	assert.InDelta(t, 42.0, store.GetFloat("i"), 1e-9)
	assert.True(t, store.GetBool("b"))
	assert.False(t, store.GetBool("missing"))
}

func TestConfigStore_PersistsNestedTables(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("embedding.provider", "ollama"))
	require.NoError(t, store.Set("embedding.batch_size", 32))
	require.NoError(t, store.Set("similarity.medium", 0.72))
	require.NoError(t, store.Set("top", "level"))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[embedding]")
	assert.Contains(t, string(data), "[similarity]")

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "ollama", reloaded.GetString("embedding.provider"))
	assert.Equal(t, 32, reloaded.GetInt("embedding.batch_size"))
	assert.InDelta(t, 0.72, reloaded.GetFloat("similarity.medium"), 1e-9)
	assert.Equal(t, "level", reloaded.GetString("top"))
}

func TestConfigStore_ReadsHandWrittenFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[llm]
model = "llama3.2"
temperature = 1

[storage]
keep_indexes = 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", store.GetString("llm.model"))
	assert.InDelta(t, 1.0, store.GetFloat("llm.temperature"), 1e-9)
	assert.Equal(t, 10, store.GetInt("storage.keep_indexes"))
}

func TestNewConfigStore_CorruptedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not toml {{{[["), 0o600))

	store, err := NewConfigStore(dir)
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create")
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_SetUnmarshallableValue(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, store.Set("channel", make(chan int)))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("k", "v"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestUnflattenMap_Clash(t *testing.T) {
	out := unflattenMap(map[string]any{"a": 1, "a.b": 2})
	// One of the two keeps its dotted form; neither value is lost.
	assert.Equal(t, map[string]any{"a": 1, "a.b": 2}, flattenMap(out, ""))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SCHOLAR_TEST_DOTENV=from-file\nSCHOLAR_TEST_PRESET=from-file\n"), 0o600))

	t.Setenv("SCHOLAR_TEST_PRESET", "from-env")
	t.Setenv("SCHOLAR_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("SCHOLAR_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("SCHOLAR_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("SCHOLAR_TEST_PRESET"))
}
