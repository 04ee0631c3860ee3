package driven

import (
	"context"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

// VectorIndex is an external similarity index over pull request embeddings.
// Filters are pushed down so candidates are restricted before ranking.
type VectorIndex interface {
	// Upsert stores the embedding of a pull request along with the payload
	// fields needed to evaluate a RecordFilter.
	Upsert(ctx context.Context, pr *domain.PullRequest, embedding []float32) error

	// Search returns up to k hits matching filter, nearest first.
	Search(ctx context.Context, query []float32, filter domain.RecordFilter, k int) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// Key identifies the matched pull request.
	Key domain.RecordKey

	// Similarity is the normalised similarity score (0-1).
	Similarity float64
}
