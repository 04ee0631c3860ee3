package driving

import (
	"context"
	"time"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

// AskService answers natural-language questions about pull request activity.
type AskService interface {
	// Ask runs plan, execute and synthesize for one question.
	// On failure the partial Answer is returned alongside a *domain.StageError.
	Ask(ctx context.Context, req domain.AskRequest) (*domain.Answer, error)
}

// PlanService turns a question into a query plan without executing it.
type PlanService interface {
	// Plan returns the validated plan for question as of today, scoped to
	// repository when it is non-empty.
	Plan(ctx context.Context, question string, today time.Time, repository string) (domain.QueryPlan, error)
}

// IngestService loads pull requests from a code host into the store.
type IngestService interface {
	// Ingest fetches and stores pull requests of a repository.
	Ingest(ctx context.Context, opts IngestOptions) (*IngestReport, error)
}

// IngestOptions configures a single ingestion run.
type IngestOptions struct {
	// Repository is the owner/repo to ingest.
	Repository string

	// Since limits ingestion to pull requests updated at or after it.
	// Zero means all history.
	Since time.Time

	// Limit caps the number of pull requests fetched. Zero means no limit.
	Limit int

	// SkipEmbeddings stores metadata only.
	SkipEmbeddings bool
}

// IngestReport summarises an ingestion run.
type IngestReport struct {
	Repository string
	Fetched    int
	Stored     int
	Embedded   int
	Failed     int
	Elapsed    time.Duration
}
