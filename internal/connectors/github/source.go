package github

import (
	"context"
	"fmt"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
)

// Ensure Source implements the interfaces.
var (
	_ driven.PullRequestSource = (*Source)(nil)
	_ driven.CodeHost          = (*Source)(nil)
)

// Source reads pull requests from the GitHub REST API.
type Source struct {
	client *Client
}

// NewSource creates a pull request source backed by client.
func NewSource(client *Client) *Source {
	return &Source{client: client}
}

// ListPullRequests returns pull requests updated at or after since, most
// recently updated first. Paging stops at the first older pull request.
func (s *Source) ListPullRequests(
	ctx context.Context, repository string, since time.Time, limit int,
) ([]domain.PullRequest, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	var out []domain.PullRequest
	err = s.client.ListPullRequests(ctx, owner, repo, StateAll, func(pr *gh.PullRequest) bool {
		if !since.IsZero() && pr.GetUpdatedAt().Before(since) {
			return false
		}
		out = append(out, toPullRequest(repository, pr))
		return limit <= 0 || len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OpenPullRequests returns open pull requests with their requested
// reviewers, most recently updated first. Team review requests are not
// expanded.
func (s *Source) OpenPullRequests(ctx context.Context, repository string, limit int) ([]domain.PullRequest, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	var out []domain.PullRequest
	err = s.client.ListPullRequests(ctx, owner, repo, StateOpen, func(pr *gh.PullRequest) bool {
		out = append(out, toPullRequest(repository, pr))
		return limit <= 0 || len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Repository returns the metadata of repository.
func (s *Source) Repository(ctx context.Context, repository string) (*domain.RepositoryInfo, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	r, err := s.client.GetRepository(ctx, owner, repo)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		}
		return nil, err
	}
	return &domain.RepositoryInfo{
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		Language:      r.GetLanguage(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		OpenIssues:    r.GetOpenIssuesCount(),
		DefaultBranch: r.GetDefaultBranch(),
		UpdatedAt:     r.GetUpdatedAt().Time.UTC(),
	}, nil
}

// Details fetches reviews, files and labels of one pull request. Diff
// totals are summed from the files.
func (s *Source) Details(ctx context.Context, key domain.RecordKey) (*driven.PullRequestDetails, error) {
	owner, repo, err := splitRepository(key.Repository)
	if err != nil {
		return nil, err
	}

	reviews, err := s.client.ListReviews(ctx, owner, repo, key.Number)
	if err != nil {
		return nil, err
	}
	files, err := s.client.ListFiles(ctx, owner, repo, key.Number)
	if err != nil {
		return nil, err
	}
	labels, err := s.client.ListLabels(ctx, owner, repo, key.Number)
	if err != nil {
		return nil, err
	}

	details := &driven.PullRequestDetails{
		Reviews:      make([]domain.Review, 0, len(reviews)),
		Files:        make([]domain.FileChange, 0, len(files)),
		Labels:       make([]string, 0, len(labels)),
		ChangedFiles: len(files),
	}
	for _, r := range reviews {
		// Pending reviews belong to their author's draft and are invisible to others.
		if r.GetState() == string(domain.ReviewPending) {
			continue
		}
		details.Reviews = append(details.Reviews, domain.Review{
			ID:          r.GetID(),
			Author:      r.GetUser().GetLogin(),
			State:       domain.ReviewState(r.GetState()),
			Body:        r.GetBody(),
			SubmittedAt: r.GetSubmittedAt().Time.UTC(),
		})
	}
	for _, f := range files {
		details.Files = append(details.Files, domain.FileChange{
			Path:      f.GetFilename(),
			Status:    f.GetStatus(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
		})
		details.Additions += f.GetAdditions()
		details.Deletions += f.GetDeletions()
	}
	for _, l := range labels {
		details.Labels = append(details.Labels, l.GetName())
	}
	return details, nil
}

// toPullRequest converts the list representation. Merged state is
// derived from the merge time.
func toPullRequest(repository string, pr *gh.PullRequest) domain.PullRequest {
	out := domain.PullRequest{
		Repository:   repository,
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Body:         pr.GetBody(),
		State:        domain.PRState(pr.GetState()),
		Author:       pr.GetUser().GetLogin(),
		HTMLURL:      pr.GetHTMLURL(),
		CreatedAt:    pr.GetCreatedAt().Time.UTC(),
		UpdatedAt:    pr.GetUpdatedAt().Time.UTC(),
		BaseBranch:   pr.GetBase().GetRef(),
		HeadBranch:   pr.GetHead().GetRef(),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		ChangedFiles: pr.GetChangedFiles(),
		Draft:        pr.GetDraft(),
	}
	if pr.MergedAt != nil {
		t := pr.MergedAt.Time.UTC()
		out.MergedAt = &t
		out.State = domain.PRStateMerged
	}
	if pr.ClosedAt != nil {
		t := pr.ClosedAt.Time.UTC()
		out.ClosedAt = &t
	}
	for _, l := range pr.Labels {
		out.Labels = append(out.Labels, l.GetName())
	}
	for _, u := range pr.RequestedReviewers {
		out.RequestedReviewers = append(out.RequestedReviewers, u.GetLogin())
	}
	return out
}

func splitRepository(repository string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepository, repository)
	}
	return owner, repo, nil
}
