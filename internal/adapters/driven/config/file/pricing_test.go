package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPricing(t *testing.T) {
	table := DefaultPricing()

	p, err := table.Price("claude-sonnet-4-20250514")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, p.InputPerMTok, 1e-9)
	assert.InDelta(t, 15.0, p.OutputPerMTok, 1e-9)

	haiku, err := table.Price("claude-3-5-haiku-20241022")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, haiku.InputPerMTok, 1e-9)

	for _, model := range []string{"claude-3-5-sonnet-20241022", "gpt-4o-mini", "llama3.2"} {
		_, err := table.Price(model)
		assert.NoError(t, err, model)
	}
}

func TestLoadPricing_EmptyPath(t *testing.T) {
	table, err := LoadPricing("")

	require.NoError(t, err)
	assert.Equal(t, DefaultPricing(), table)
}

func TestLoadPricing_OverridesAndAdds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	content := `
claude-sonnet-4-20250514:
  input: 2.5
  output: 12
qwen2.5:
  input: 0
  output: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	table, err := LoadPricing(path)

	require.NoError(t, err)
	p, err := table.Price("claude-sonnet-4-20250514")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, p.InputPerMTok, 1e-9)
	assert.InDelta(t, 12.0, p.OutputPerMTok, 1e-9)
	_, err = table.Price("qwen2.5")
	assert.NoError(t, err)
	_, err = table.Price("gpt-4o")
	assert.NoError(t, err, "defaults are kept")
}

func TestLoadPricing_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadPricing(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("model: [1, 2"), 0600))
	_, err = LoadPricing(bad)
	assert.Error(t, err)

	negative := filepath.Join(dir, "negative.yaml")
	require.NoError(t, os.WriteFile(negative, []byte("m:\n  input: -1\n  output: 1\n"), 0600))
	_, err = LoadPricing(negative)
	assert.ErrorContains(t, err, "negative price")
}
