package driving

import (
	"context"
	"time"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

// ReportService builds digests and activity analyses from stored pull requests.
type ReportService interface {
	// Digest groups the pull requests merged in a period into themes.
	Digest(ctx context.Context, req DigestRequest) (*domain.Digest, error)

	// Analyze summarises merge activity over a number of days.
	Analyze(ctx context.Context, req AnalyzeRequest) (*domain.ActivityReport, error)

	// ExplainTheme shows how one stored pull request is themed.
	ExplainTheme(ctx context.Context, key domain.RecordKey) (*domain.ThemeExplanation, error)
}

// DigestRequest selects the pull requests of a digest.
type DigestRequest struct {
	// Repository scopes the digest. Empty means all stored repositories.
	Repository string

	// Period is daily or biweekly. Empty means daily.
	Period domain.DigestPeriod

	// Day is the last day covered. Zero means yesterday for daily digests
	// and today for biweekly ones.
	Day time.Time
}

// AnalyzeRequest selects the window of an activity analysis.
type AnalyzeRequest struct {
	Repository string

	// Days is the window length ending today. Zero means
	// domain.DefaultAnalysisDays.
	Days int

	// Today is the last day covered. Zero means the current date.
	Today time.Time
}

// ReviewQueueService answers live questions from the code host.
type ReviewQueueService interface {
	// ReviewQueue lists open pull requests awaiting reviewer.
	ReviewQueue(ctx context.Context, repository, reviewer string) (*domain.ReviewQueue, error)

	// RepositoryInfo describes repository.
	RepositoryInfo(ctx context.Context, repository string) (*domain.RepositoryInfo, error)
}
