package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driving"
	"github.com/gkabbz/github-delivery-visibility/internal/logger"
)

// Ensure ReviewQueueService implements the interface.
var _ driving.ReviewQueueService = (*ReviewQueueService)(nil)

// OpenPullRequestLimit caps the open pull requests scanned for one queue.
const OpenPullRequestLimit = 100

// ReviewQueueService reads review requests live from the code host. Review
// requests change by the minute, so nothing here goes through the store.
type ReviewQueueService struct {
	host        driven.CodeHost
	rules       domain.ReviewQueueRules
	concurrency int
	now         func() time.Time
}

// NewReviewQueueService creates a review queue service.
func NewReviewQueueService(host driven.CodeHost, rules domain.ReviewQueueRules) *ReviewQueueService {
	return &ReviewQueueService{
		host:        host,
		rules:       rules,
		concurrency: DefaultDetailConcurrency,
		now:         time.Now,
	}
}

// ReviewQueue lists the open pull requests of repository awaiting reviewer.
func (s *ReviewQueueService) ReviewQueue(ctx context.Context, repository, reviewer string) (*domain.ReviewQueue, error) {
	reviewer = strings.TrimPrefix(strings.TrimSpace(reviewer), "@")
	if reviewer == "" {
		return nil, fmt.Errorf("%w: reviewer is required", domain.ErrInvalidInput)
	}
	if repository == "" {
		return nil, fmt.Errorf("%w: repository is required", domain.ErrInvalidInput)
	}

	open, err := s.host.OpenPullRequests(ctx, repository, OpenPullRequestLimit)
	if err != nil {
		return nil, fmt.Errorf("list open pull requests: %w", err)
	}

	var waiting []domain.PullRequest
	for i := range open {
		if open[i].AwaitsReviewFrom(reviewer) {
			waiting = append(waiting, open[i])
		}
	}
	logger.Info("%d of %d open pull requests await %s", len(waiting), len(open), reviewer)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range waiting {
		g.Go(func() error {
			pr := &waiting[i]
			d, err := s.host.Details(gctx, pr.Key())
			if err != nil {
				return fmt.Errorf("details of %s: %w", pr.Key(), err)
			}
			d.Apply(pr)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return domain.BuildReviewQueue(repository, reviewer, waiting, s.rules, s.now()), nil
}

// RepositoryInfo describes repository as the code host sees it now.
func (s *ReviewQueueService) RepositoryInfo(ctx context.Context, repository string) (*domain.RepositoryInfo, error) {
	if repository == "" {
		return nil, fmt.Errorf("%w: repository is required", domain.ErrInvalidInput)
	}
	info, err := s.host.Repository(ctx, repository)
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", repository, err)
	}
	return info, nil
}
