package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

func TestNewEmbedder_NilService(t *testing.T) {
	assert.Nil(t, NewEmbedder(nil, noSleepPolicy(), 0))
}

func TestEmbedder_RetriesTransientFailures(t *testing.T) {
	embed := &mockEmbeddingService{
		fallback: []float32{1, 0},
		dims:     2,
		errs:     []error{&domain.ProviderError{Provider: "mock", StatusCode: 503}},
	}
	e := NewEmbedder(embed, noSleepPolicy(), 0)

	vec, err := e.Embed(context.Background(), "text")

	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
	assert.Equal(t, 2, embed.calls)
}

func TestEmbedder_DimensionMismatch(t *testing.T) {
	embed := &mockEmbeddingService{fallback: []float32{1, 0, 0}, dims: 2}
	e := NewEmbedder(embed, noSleepPolicy(), 0)

	_, err := e.Embed(context.Background(), "text")

	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestEmbedder_BatchSplitsAndKeepsOrder(t *testing.T) {
	vectors := make(map[string][]float32)
	texts := make([]string, 70)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
		vectors[texts[i]] = []float32{float32(i), 1}
	}
	embed := &mockEmbeddingService{vectors: vectors, dims: 2}
	e := NewEmbedder(embed, noSleepPolicy(), 0)
	e.batchSize = 32

	out, err := e.EmbedBatch(context.Background(), texts)

	require.NoError(t, err)
	require.Len(t, out, 70)
	for i := range out {
		assert.Equal(t, float32(i), out[i][0])
	}
}

func TestEmbedder_UnknownDimensionsAccepted(t *testing.T) {
	embed := &mockEmbeddingService{fallback: []float32{1, 2, 3}}
	e := NewEmbedder(embed, noSleepPolicy(), 0)

	vec, err := e.Embed(context.Background(), "text")

	require.NoError(t, err)
	assert.Len(t, vec, 3)
}
