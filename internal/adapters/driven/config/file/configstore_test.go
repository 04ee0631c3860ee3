package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	dir := t.TempDir()

	store, err := NewConfigStore(dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
	assert.Empty(t, store.Keys())
}

func TestNewConfigStore_HomeOverride(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "custom")
	t.Setenv(EnvHome, dir)

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConfigStore_ReadsSections(t *testing.T) {
	dir := t.TempDir()
	content := `
[llm]
provider = "anthropic"
model = "claude-sonnet-4-20250514"

[embedding]
provider = "vertex"
dimensions = 768

[vector]
use_tls = true

[pipeline]
requests_per_second = 2.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(dir)

	require.NoError(t, err)
	assert.Equal(t, "anthropic", store.GetString("llm.provider"))
	assert.Equal(t, 768, store.GetInt("embedding.dimensions"))
	assert.True(t, store.GetBool("vector.use_tls"))
	v, ok := store.Get("pipeline.requests_per_second")
	require.True(t, ok)
	assert.InDelta(t, 2.5, v, 1e-9)
	assert.Equal(t, []string{
		"embedding.dimensions", "embedding.provider", "llm.model", "llm.provider",
		"pipeline.requests_per_second", "vector.use_tls",
	}, store.Keys())
}

func TestConfigStore_TypeMismatchesAreZero(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("llm.model", "x"))

	assert.Zero(t, store.GetInt("llm.model"))
	assert.False(t, store.GetBool("llm.model"))
	assert.Empty(t, store.GetString("missing"))
	_, ok := store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_SetPersistsAsTables(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("llm.provider", "ollama"))
	require.NoError(t, store.Set("github.repository", "acme/api"))
	require.NoError(t, store.Set("embedding.dimensions", 768))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[llm]")
	assert.Contains(t, string(data), "[github]")
	assert.NotContains(t, string(data), `"llm.provider"`)

	reopened, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "ollama", reopened.GetString("llm.provider"))
	assert.Equal(t, "acme/api", reopened.GetString("github.repository"))
	assert.Equal(t, 768, reopened.GetInt("embedding.dimensions"))
}

func TestConfigStore_SetConflictingKey(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("llm.provider", "ollama"))

	err = store.Set("llm", "oops")

	assert.Error(t, err)
	_, ok := store.Get("llm")
	assert.False(t, ok, "failed set is rolled back")
}

func TestConfigStore_SetInvalidKey(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", ".llm", "llm."} {
		assert.Error(t, store.Set(key, "x"), key)
	}
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("llm.api_key", "secret"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestNewConfigStore_CorruptedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[llm\nprovider ="), 0600))

	_, err := NewConfigStore(dir)
	assert.Error(t, err)
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.Set("pipeline.limit", i)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("pipeline.limit")
			_ = store.Keys()
		}()
	}
	wg.Wait()

	_, ok := store.Get("pipeline.limit")
	assert.True(t, ok)
}

func TestNestMap(t *testing.T) {
	nested, err := nestMap(map[string]any{"a.b.c": 1, "a.d": "x", "e": true})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 1}, "d": "x"},
		"e": true,
	}, nested)
	assert.Equal(t, map[string]any{"a.b.c": 1, "a.d": "x", "e": true}, flattenMap(nested, ""))
}
