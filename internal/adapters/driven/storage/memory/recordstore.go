package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
)

// Ensure RecordStore implements the interfaces.
var (
	_ driven.RecordStore  = (*RecordStore)(nil)
	_ driven.DetailStore  = (*RecordStore)(nil)
	_ driven.RecordWriter = (*RecordStore)(nil)
)

// RecordStore is an in-memory implementation of the record store ports.
// Similarity is computed exhaustively over the filtered candidates.
type RecordStore struct {
	mu      sync.RWMutex
	records map[domain.RecordKey]*record
}

type record struct {
	pr        domain.PullRequest
	embedding []float32
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[domain.RecordKey]*record),
	}
}

// Upsert stores or replaces a pull request.
func (s *RecordStore) Upsert(_ context.Context, pr *domain.PullRequest, embedding []float32) error {
	cp := *pr
	cp.Reviews = slices.Clone(pr.Reviews)
	cp.Files = slices.Clone(pr.Files)
	cp.Labels = slices.Clone(pr.Labels)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[pr.Key()] = &record{pr: cp, embedding: slices.Clone(embedding)}
	return nil
}

// Count returns the number of stored pull requests.
func (s *RecordStore) Count(_ context.Context, repository string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if repository == "" {
		return len(s.records), nil
	}
	n := 0
	for key := range s.records {
		if key.Repository == repository {
			n++
		}
	}
	return n, nil
}

// Query returns matching pull requests, newest first.
func (s *RecordStore) Query(_ context.Context, filter domain.RecordFilter, limit int) ([]domain.PullRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PullRequest
	for _, r := range s.records {
		if filter.Matches(&r.pr) {
			out = append(out, summary(r.pr))
		}
	}
	sortNewest(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SimilarityQuery ranks the records matching filter by cosine similarity.
func (s *RecordStore) SimilarityQuery(
	_ context.Context, vector []float32, filter domain.RecordFilter, limit int,
) ([]domain.ScoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ScoredRecord
	for _, r := range s.records {
		if r.embedding == nil || !filter.Matches(&r.pr) {
			continue
		}
		d, err := domain.CosineDistance(vector, r.embedding)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ScoredRecord{
			PullRequest: summary(r.pr),
			Similarity:  domain.SimilarityFromCosineDistance(d),
			Scored:      true,
		})
	}
	domain.SortBySimilarity(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetByIdentifier returns one pull request.
func (s *RecordStore) GetByIdentifier(_ context.Context, key domain.RecordKey) (*domain.PullRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if key.Repository != "" {
		r, ok := s.records[key]
		if !ok {
			return nil, domain.ErrNotFound
		}
		pr := summary(r.pr)
		return &pr, nil
	}

	var matches []domain.PullRequest
	for k, r := range s.records {
		if k.Number == key.Number {
			matches = append(matches, summary(r.pr))
		}
	}
	if len(matches) == 0 {
		return nil, domain.ErrNotFound
	}
	sortNewest(matches)
	return &matches[0], nil
}

// GetMany returns the pull requests for keys in input order.
func (s *RecordStore) GetMany(_ context.Context, keys []domain.RecordKey) ([]domain.PullRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PullRequest, 0, len(keys))
	for _, key := range keys {
		if r, ok := s.records[key]; ok {
			out = append(out, summary(r.pr))
		}
	}
	return out, nil
}

// Reviews returns the reviews of a pull request, oldest first.
func (s *RecordStore) Reviews(_ context.Context, key domain.RecordKey) ([]domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := slices.Clone(r.pr.Reviews)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

// Files returns the changed files of a pull request, by path.
func (s *RecordStore) Files(_ context.Context, key domain.RecordKey) ([]domain.FileChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := slices.Clone(r.pr.Files)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Labels returns the labels of a pull request, sorted.
func (s *RecordStore) Labels(_ context.Context, key domain.RecordKey) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := slices.Clone(r.pr.Labels)
	sort.Strings(out)
	return out, nil
}

// Close is a no-op.
func (s *RecordStore) Close() error {
	return nil
}

// summary drops the detail rows, matching what relational stores return
// from list queries.
func summary(pr domain.PullRequest) domain.PullRequest {
	pr.Reviews, pr.Files, pr.Labels = nil, nil, nil
	return pr
}

func sortNewest(prs []domain.PullRequest) {
	sort.SliceStable(prs, func(i, j int) bool {
		a, b := prs[i], prs[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.Repository != b.Repository {
			return a.Repository < b.Repository
		}
		return a.Number > b.Number
	})
}
