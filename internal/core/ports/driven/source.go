package driven

import (
	"context"
	"time"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

// PullRequestSource fetches pull requests from a code host.
type PullRequestSource interface {
	// ListPullRequests returns pull requests of repository updated at or
	// after since, newest first, at most limit (0 means no limit).
	ListPullRequests(ctx context.Context, repository string, since time.Time, limit int) ([]domain.PullRequest, error)

	// Details fetches reviews, files and labels of a single pull request.
	Details(ctx context.Context, key domain.RecordKey) (*PullRequestDetails, error)
}

// PullRequestDetails holds the child rows fetched for one pull request,
// plus the diff totals list endpoints do not report.
type PullRequestDetails struct {
	Reviews []domain.Review
	Files   []domain.FileChange
	Labels  []string

	Additions    int
	Deletions    int
	ChangedFiles int
}

// Apply copies the details onto pr. Diff totals are kept when the host
// reported no changed files.
func (d *PullRequestDetails) Apply(pr *domain.PullRequest) {
	pr.Reviews, pr.Files, pr.Labels = d.Reviews, d.Files, d.Labels
	if d.ChangedFiles > 0 {
		pr.Additions, pr.Deletions, pr.ChangedFiles = d.Additions, d.Deletions, d.ChangedFiles
	}
}

// CodeHost answers live questions the store cannot: who is currently asked
// to review what, and what the repository looks like today.
type CodeHost interface {
	PullRequestSource

	// OpenPullRequests returns open pull requests of repository with their
	// requested reviewers, most recently updated first, at most limit (0
	// means no limit).
	OpenPullRequests(ctx context.Context, repository string, limit int) ([]domain.PullRequest, error)

	// Repository returns the metadata of repository.
	Repository(ctx context.Context, repository string) (*domain.RepositoryInfo, error)
}
