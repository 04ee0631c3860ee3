package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driving"
	"github.com/gkabbz/github-delivery-visibility/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// DefaultIngestConcurrency bounds parallel detail fetches per run.
const DefaultIngestConcurrency = 4

// IngestService copies pull requests from a code host into the stores.
type IngestService struct {
	source      driven.PullRequestSource
	writer      driven.RecordWriter
	vectorIndex driven.VectorIndex
	embedder    *Embedder
	concurrency int
	now         func() time.Time
}

// NewIngestService creates an ingest service. vectorIndex and embedder
// are optional; without an embedder records are stored without vectors.
func NewIngestService(
	source driven.PullRequestSource,
	writer driven.RecordWriter,
	vectorIndex driven.VectorIndex,
	embedder *Embedder,
) *IngestService {
	return &IngestService{
		source:      source,
		writer:      writer,
		vectorIndex: vectorIndex,
		embedder:    embedder,
		concurrency: DefaultIngestConcurrency,
		now:         time.Now,
	}
}

// Ingest fetches pull requests with their reviews, files and labels,
// embeds title and body, and upserts everything. A pull request whose
// details cannot be fetched is counted as failed and skipped.
func (s *IngestService) Ingest(ctx context.Context, opts driving.IngestOptions) (*driving.IngestReport, error) {
	logger.Section("Ingest")
	start := s.now()

	repo := strings.TrimSpace(opts.Repository)
	if repo == "" || !strings.Contains(repo, "/") {
		return nil, fmt.Errorf("%w: repository must be owner/repo, got %q", domain.ErrInvalidInput, opts.Repository)
	}
	report := &driving.IngestReport{Repository: repo}

	prs, err := s.source.ListPullRequests(ctx, repo, opts.Since, opts.Limit)
	if err != nil {
		return report, fmt.Errorf("list pull requests of %s: %w", repo, err)
	}
	report.Fetched = len(prs)
	logger.Info("Fetched %d pull requests from %s", len(prs), repo)

	complete, err := s.fetchDetails(ctx, prs, report)
	if err != nil {
		return report, err
	}

	vectors, err := s.embed(ctx, complete, opts.SkipEmbeddings)
	if err != nil {
		return report, err
	}

	for i := range complete {
		pr := &complete[i]
		var vec []float32
		if vectors != nil {
			vec = vectors[i]
		}
		if err := s.writer.Upsert(ctx, pr, vec); err != nil {
			return report, fmt.Errorf("store %s: %w", pr.Key(), err)
		}
		report.Stored++

		if vec == nil {
			continue
		}
		report.Embedded++
		if s.vectorIndex != nil {
			if err := s.vectorIndex.Upsert(ctx, pr, vec); err != nil {
				return report, fmt.Errorf("index %s: %w", pr.Key(), err)
			}
		}
	}

	report.Elapsed = s.now().Sub(start)
	logger.DebugFields("ingest done", logger.Fields{
		"repo":     repo,
		"fetched":  report.Fetched,
		"stored":   report.Stored,
		"embedded": report.Embedded,
		"failed":   report.Failed,
	})
	return report, nil
}

// fetchDetails loads child rows concurrently and returns the pull
// requests that succeeded, in input order. A failed pull request is
// counted and skipped; cancellation stops the whole batch.
func (s *IngestService) fetchDetails(
	ctx context.Context, prs []domain.PullRequest, report *driving.IngestReport,
) ([]domain.PullRequest, error) {
	ok := make([]bool, len(prs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range prs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pr := &prs[i]
			details, err := s.source.Details(gctx, pr.Key())
			if err != nil {
				if cerr := ctx.Err(); cerr != nil {
					return cerr
				}
				logger.Warn("details of %s: %v", pr.Key(), err)
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return nil
			}
			details.Apply(pr)
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch details: %w", err)
	}

	out := make([]domain.PullRequest, 0, len(prs))
	for i := range prs {
		if ok[i] {
			out = append(out, prs[i])
		}
	}
	return out, nil
}

// embed returns one vector per pull request, or nil when embeddings are
// disabled for this run.
func (s *IngestService) embed(ctx context.Context, prs []domain.PullRequest, skip bool) ([][]float32, error) {
	if skip || s.embedder == nil || len(prs) == 0 {
		if s.embedder == nil && !skip {
			logger.Warn("No embedding provider configured, storing metadata only")
		}
		return nil, nil
	}

	texts := make([]string, len(prs))
	for i := range prs {
		texts[i] = prs[i].EmbeddingText()
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed pull requests: %w", err)
	}
	return vectors, nil
}
