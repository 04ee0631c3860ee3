package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
	"github.com/gkabbz/github-delivery-visibility/internal/logger"
)

// RetrievalRouter executes a QueryPlan against the record store.
//
// Routing, first match wins:
//  1. record identifier: point lookup with details
//  2. STRUCTURED: metadata filter, newest first
//  3. SEMANTIC: similarity over the repository scope only
//  4. HYBRID: metadata filter first, then similarity over the survivors
type RetrievalRouter struct {
	store       driven.RecordStore
	details     driven.DetailStore
	vectorIndex driven.VectorIndex
	embedder    *Embedder
}

// NewRetrievalRouter creates a router. The embedder may be nil, in which
// case semantic and hybrid plans fail with domain.ErrEmbeddingUnavailable.
// The vector index may be nil, in which case similarity runs in the store.
func NewRetrievalRouter(
	store driven.RecordStore,
	vectorIndex driven.VectorIndex,
	embedder *Embedder,
) *RetrievalRouter {
	r := &RetrievalRouter{
		store:       store,
		vectorIndex: vectorIndex,
		embedder:    embedder,
	}
	if ds, ok := store.(driven.DetailStore); ok {
		r.details = ds
	}
	return r
}

// Execute runs plan and returns ordered records. Zero matches is an empty
// result, not an error. An invalid plan is rejected with
// domain.ErrPlanValidation before any store call; every other failure
// matches domain.ErrRetrieval.
func (r *RetrievalRouter) Execute(ctx context.Context, plan domain.QueryPlan) (domain.RetrievalResult, error) {
	logger.Section("Retrieval")

	if err := plan.Validate(); err != nil {
		return domain.NewRetrievalResult(routeFor(plan), nil), fmt.Errorf("execute plan: %w", err)
	}

	route := routeFor(plan)
	logger.Debug("Route: %s (%s)", route, plan)

	var (
		records []domain.ScoredRecord
		err     error
	)
	switch route {
	case domain.RouteLookup:
		records, err = r.lookup(ctx, plan)
	case domain.RouteStructured:
		records, err = r.structured(ctx, plan)
	default:
		records, err = r.similarity(ctx, plan)
	}
	if err != nil {
		return domain.NewRetrievalResult(route, nil), fmt.Errorf("%w: %s: %w", domain.ErrRetrieval, route, err)
	}

	logger.Debug("Retrieved %d records", len(records))
	return domain.NewRetrievalResult(route, records), nil
}

func routeFor(plan domain.QueryPlan) domain.Route {
	switch {
	case plan.RecordIdentifier > 0:
		return domain.RouteLookup
	case !plan.QueryType.UsesEmbedding():
		return domain.RouteStructured
	case plan.QueryType == domain.QueryTypeSemantic:
		return domain.RouteSemantic
	default:
		return domain.RouteHybrid
	}
}

// lookup fetches one pull request and its child rows.
func (r *RetrievalRouter) lookup(ctx context.Context, plan domain.QueryPlan) ([]domain.ScoredRecord, error) {
	key := domain.RecordKey{Repository: plan.RepoName, Number: plan.RecordIdentifier}

	pr, err := r.store.GetByIdentifier(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Debug("No record %s", key)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	if err := r.loadDetails(ctx, pr); err != nil {
		return nil, err
	}
	return []domain.ScoredRecord{{PullRequest: *pr}}, nil
}

// loadDetails fills reviews, files and labels when the store keeps them.
func (r *RetrievalRouter) loadDetails(ctx context.Context, pr *domain.PullRequest) error {
	if r.details == nil {
		return nil
	}
	return fillDetails(ctx, r.details, pr)
}

// fillDetails loads reviews, files and labels of pr concurrently.
func fillDetails(ctx context.Context, details driven.DetailStore, pr *domain.PullRequest) error {
	key := pr.Key()

	var (
		reviews []domain.Review
		files   []domain.FileChange
		labels  []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reviews, err = details.Reviews(gctx, key)
		return err
	})
	g.Go(func() error {
		var err error
		files, err = details.Files(gctx, key)
		return err
	})
	g.Go(func() error {
		var err error
		labels, err = details.Labels(gctx, key)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("details of %s: %w", key, err)
	}

	pr.Reviews, pr.Files, pr.Labels = reviews, files, labels
	return nil
}

func (r *RetrievalRouter) structured(ctx context.Context, plan domain.QueryPlan) ([]domain.ScoredRecord, error) {
	prs, err := r.store.Query(ctx, plan.Filter(), plan.Limit)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	records := make([]domain.ScoredRecord, len(prs))
	for i := range prs {
		records[i] = domain.ScoredRecord{PullRequest: prs[i]}
	}
	domain.SortByRecency(records)
	return records, nil
}

// similarity serves SEMANTIC and HYBRID. The plan's Filter already holds
// only the repository scope for SEMANTIC and every predicate for HYBRID,
// so both shapes restrict candidates before ranking.
func (r *RetrievalRouter) similarity(ctx context.Context, plan domain.QueryPlan) ([]domain.ScoredRecord, error) {
	if r.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	vec, err := r.embedder.Embed(ctx, plan.SemanticQuery)
	if err != nil {
		return nil, err
	}

	var records []domain.ScoredRecord
	if r.vectorIndex != nil {
		records, err = r.searchIndex(ctx, vec, plan)
	} else {
		records, err = r.store.SimilarityQuery(ctx, vec, plan.Filter(), plan.Limit)
	}
	if err != nil {
		return nil, err
	}

	for i := range records {
		records[i].Scored = true
	}
	domain.SortBySimilarity(records)
	if len(records) > plan.Limit {
		records = records[:plan.Limit]
	}
	return records, nil
}

// searchIndex queries the external vector index with the filter pushed
// down, then loads the matching records. Hits whose record no longer
// exists are dropped.
func (r *RetrievalRouter) searchIndex(
	ctx context.Context, vec []float32, plan domain.QueryPlan,
) ([]domain.ScoredRecord, error) {
	hits, err := r.vectorIndex.Search(ctx, vec, plan.Filter(), plan.Limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	keys := make([]domain.RecordKey, len(hits))
	for i := range hits {
		keys[i] = hits[i].Key
	}
	prs, err := r.store.GetMany(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hydrate vector hits: %w", err)
	}
	loaded := make(map[domain.RecordKey]domain.PullRequest, len(prs))
	for i := range prs {
		loaded[prs[i].Key()] = prs[i]
	}

	records := make([]domain.ScoredRecord, 0, len(hits))
	for _, hit := range hits {
		pr, ok := loaded[hit.Key]
		if !ok {
			logger.Warn("vector hit %s has no stored record", hit.Key)
			continue
		}
		records = append(records, domain.ScoredRecord{PullRequest: pr, Similarity: hit.Similarity})
	}
	return records, nil
}
