package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driving"
	"github.com/gkabbz/github-delivery-visibility/internal/logger"
)

// Ensure ReportService implements the interface.
var _ driving.ReportService = (*ReportService)(nil)

// DefaultDetailConcurrency bounds the detail lookups of one report.
const DefaultDetailConcurrency = 8

// ReportService builds digests and activity analyses from the record store.
// Themes need changed files and labels, so details are loaded for every
// pull request in the window.
type ReportService struct {
	store       driven.RecordStore
	details     driven.DetailStore
	rules       domain.ThemeRules
	concurrency int
	now         func() time.Time
}

// NewReportService creates a report service. Stores that do not keep
// detail rows theme by title only.
func NewReportService(store driven.RecordStore, rules domain.ThemeRules) *ReportService {
	s := &ReportService{
		store:       store,
		rules:       rules,
		concurrency: DefaultDetailConcurrency,
		now:         time.Now,
	}
	if ds, ok := store.(driven.DetailStore); ok {
		s.details = ds
	}
	return s
}

// Digest groups the pull requests merged in the requested period.
func (s *ReportService) Digest(ctx context.Context, req driving.DigestRequest) (*domain.Digest, error) {
	logger.Section("Digest")

	period := req.Period
	if period == "" {
		period = domain.PeriodDaily
	}
	if !period.IsValid() {
		return nil, fmt.Errorf("%w: period must be daily or biweekly, got %q", domain.ErrInvalidInput, period)
	}
	day := req.Day
	if day.IsZero() {
		day = s.now()
		if period == domain.PeriodDaily {
			day = day.AddDate(0, 0, -1)
		}
	}
	from, to := period.Window(day)

	prs, err := s.merged(ctx, req.Repository, from, to)
	if err != nil {
		return nil, err
	}
	logger.Info("Digest %s %s..%s: %d pull requests", period,
		from.Format(domain.DateLayout), to.Format(domain.DateLayout), len(prs))

	return &domain.Digest{
		Repository: req.Repository,
		Period:     period,
		From:       from,
		To:         to,
		Stats:      domain.ComputeStats(prs),
		Themes:     domain.Categorize(prs, s.rules),
	}, nil
}

// Analyze summarises the pull requests merged in the last req.Days days.
func (s *ReportService) Analyze(ctx context.Context, req driving.AnalyzeRequest) (*domain.ActivityReport, error) {
	logger.Section("Analyze")

	days := req.Days
	if days == 0 {
		days = domain.DefaultAnalysisDays
	}
	if days < 0 {
		return nil, fmt.Errorf("%w: days must be positive, got %d", domain.ErrInvalidInput, days)
	}
	today := req.Today
	if today.IsZero() {
		today = s.now()
	}
	_, to := domain.PeriodDaily.Window(today)
	from := to.AddDate(0, 0, 1-days)

	prs, err := s.merged(ctx, req.Repository, from, to)
	if err != nil {
		return nil, err
	}
	return domain.NewActivityReport(req.Repository, from, to, prs, s.rules), nil
}

// ExplainTheme loads one pull request with its details and explains its theme.
func (s *ReportService) ExplainTheme(ctx context.Context, key domain.RecordKey) (*domain.ThemeExplanation, error) {
	pr, err := s.store.GetByIdentifier(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if s.details != nil {
		if err := fillDetails(ctx, s.details, pr); err != nil {
			return nil, err
		}
	}
	explanation := s.rules.Explain(pr)
	return &explanation, nil
}

// merged returns the pull requests merged between from and to, both
// inclusive days, with their details.
func (s *ReportService) merged(ctx context.Context, repository string, from, to time.Time) ([]domain.PullRequest, error) {
	prs, err := s.store.Query(ctx, domain.RecordFilter{
		Repository: repository,
		MergedFrom: from,
		MergedTo:   to,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("query merged pull requests: %w", err)
	}
	if s.details == nil || len(prs) == 0 {
		return prs, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range prs {
		g.Go(func() error {
			return fillDetails(gctx, s.details, &prs[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return prs, nil
}
