package services

import (
	"context"
	"fmt"
	"time"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
	"github.com/gkabbz/github-delivery-visibility/internal/retry"
)

// DefaultEmbedBatchSize bounds the texts sent in one embedding call.
const DefaultEmbedBatchSize = 32

// Embedder wraps an EmbeddingService with the retry policy, a per-call
// timeout and a dimensionality check.
type Embedder struct {
	svc         driven.EmbeddingService
	policy      retry.Policy
	callTimeout time.Duration
	batchSize   int
}

// NewEmbedder creates an embedder. A nil service yields a nil embedder,
// which callers treat as "embeddings not configured".
func NewEmbedder(svc driven.EmbeddingService, policy retry.Policy, callTimeout time.Duration) *Embedder {
	if svc == nil {
		return nil
	}
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &Embedder{
		svc:         svc,
		policy:      policy,
		callTimeout: callTimeout,
		batchSize:   DefaultEmbedBatchSize,
	}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.svc.ModelName()
}

// Embed returns the vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := e.policy.Do(ctx, func(ctx context.Context, _ int) error {
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		defer cancel()

		v, err := e.svc.Embed(callCtx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embed with %s: %w", e.svc.ModelName(), err)
	}
	if err := e.check(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch returns vectors for texts in input order, splitting large
// inputs into several calls.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		chunk := texts[start:end]

		var vecs [][]float32
		err := e.policy.Do(ctx, func(ctx context.Context, _ int) error {
			callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
			defer cancel()

			v, err := e.svc.EmbedBatch(callCtx, chunk)
			if err != nil {
				return err
			}
			vecs = v
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch with %s: %w", e.svc.ModelName(), err)
		}
		if len(vecs) != len(chunk) {
			return nil, fmt.Errorf("embed batch with %s: got %d vectors for %d texts",
				e.svc.ModelName(), len(vecs), len(chunk))
		}
		for _, v := range vecs {
			if err := e.check(v); err != nil {
				return nil, err
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *Embedder) check(vec []float32) error {
	if dims := e.svc.Dimensions(); dims > 0 && len(vec) != dims {
		return fmt.Errorf("%w: %s returned %d values, want %d",
			domain.ErrDimensionMismatch, e.svc.ModelName(), len(vec), dims)
	}
	return nil
}
