package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_CopiesInitial(t *testing.T) {
	initial := map[string]any{"llm.provider": "ollama"}
	store := NewConfigStore(initial)

	initial["llm.provider"] = "changed"

	assert.Equal(t, "ollama", store.GetString("llm.provider"))
	assert.Equal(t, ":memory:", store.Path())
	assert.NoError(t, store.Load())
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"a.string": "x",
		"a.int":    42,
		"a.int64":  int64(7),
		"a.bool":   true,
	})

	assert.Equal(t, "x", store.GetString("a.string"))
	assert.Equal(t, 42, store.GetInt("a.int"))
	assert.Equal(t, 7, store.GetInt("a.int64"))
	assert.True(t, store.GetBool("a.bool"))

	assert.Empty(t, store.GetString("a.int"))
	assert.Zero(t, store.GetInt("a.string"))
	assert.False(t, store.GetBool("missing"))
}

func TestConfigStore_SetAndKeys(t *testing.T) {
	store := NewConfigStore(nil)

	require.NoError(t, store.Set("vector.port", 6334))
	require.NoError(t, store.Set("llm.model", "m"))
	require.NoError(t, store.Set("llm.model", "n"))

	assert.Equal(t, []string{"llm.model", "vector.port"}, store.Keys())
	assert.Equal(t, "n", store.GetString("llm.model"))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.Set("pipeline.burst", i)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("pipeline.burst")
			_ = store.Keys()
		}()
	}
	wg.Wait()

	_, ok := store.Get("pipeline.burst")
	assert.True(t, ok)
}
