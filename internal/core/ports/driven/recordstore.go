package driven

import (
	"context"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

// RecordStore answers the three query shapes the retrieval router needs.
// Filter values are always passed to the backend as bound parameters.
type RecordStore interface {
	// Query returns pull requests matching every predicate of filter,
	// most recently created first, at most limit rows.
	Query(ctx context.Context, filter domain.RecordFilter, limit int) ([]domain.PullRequest, error)

	// SimilarityQuery restricts candidates to filter, then ranks them by
	// cosine similarity to vector. Records without an embedding are skipped.
	SimilarityQuery(ctx context.Context, vector []float32, filter domain.RecordFilter, limit int) ([]domain.ScoredRecord, error)

	// GetByIdentifier returns a single pull request. An empty Repository in
	// key matches the number in any repository, most recent first.
	// Returns domain.ErrNotFound when nothing matches.
	GetByIdentifier(ctx context.Context, key domain.RecordKey) (*domain.PullRequest, error)

	// GetMany returns the pull requests for keys in input order, skipping
	// keys that do not exist.
	GetMany(ctx context.Context, keys []domain.RecordKey) ([]domain.PullRequest, error)

	// Close releases resources.
	Close() error
}

// DetailStore returns the child rows of a pull request.
// Stores implementing it let point lookups show reviews, files and labels.
type DetailStore interface {
	Reviews(ctx context.Context, key domain.RecordKey) ([]domain.Review, error)
	Files(ctx context.Context, key domain.RecordKey) ([]domain.FileChange, error)
	Labels(ctx context.Context, key domain.RecordKey) ([]string, error)
}

// RecordWriter persists pull requests. Upsert replaces any previous state
// of the same (repository, number), child rows included.
type RecordWriter interface {
	Upsert(ctx context.Context, pr *domain.PullRequest, embedding []float32) error

	// Count returns the number of stored pull requests in repository,
	// or in all repositories when repository is empty.
	Count(ctx context.Context, repository string) (int, error)
}
