package domain

import (
	"sort"
	"strings"
	"time"
)

// DefaultStaleDays is the age at which a review request counts as stale.
const DefaultStaleDays = 3

// DefaultUrgentKeywords mark a review request as urgent when found in the title.
var DefaultUrgentKeywords = []string{"urgent", "hotfix", "critical", "security"}

// ReviewQueueRules sorts review requests into urgent, stale and recent.
type ReviewQueueRules struct {
	StaleDays      int
	UrgentKeywords []string
}

// ReviewRequest is an open pull request waiting on one reviewer.
type ReviewRequest struct {
	PullRequest

	AgeDays      int         `json:"age_days"`
	LatestReview ReviewState `json:"latest_review_state,omitempty"`
}

// ReviewQueue is what one reviewer has been asked to look at.
type ReviewQueue struct {
	Repository string    `json:"repository"`
	Reviewer   string    `json:"reviewer"`
	StaleDays  int       `json:"stale_days"`
	Generated  time.Time `json:"generated_at"`

	// Urgent requests keep source order, stale ones are oldest first and
	// recent ones newest first.
	Urgent []ReviewRequest `json:"urgent"`
	Stale  []ReviewRequest `json:"stale"`
	Recent []ReviewRequest `json:"recent"`
}

// Total returns the number of requests in the queue.
func (q *ReviewQueue) Total() int {
	return len(q.Urgent) + len(q.Stale) + len(q.Recent)
}

// BuildReviewQueue keeps the pull requests awaiting reviewer and files each
// under urgent (keyword in the title), else stale, else recent.
func BuildReviewQueue(repository, reviewer string, prs []PullRequest, rules ReviewQueueRules, now time.Time) *ReviewQueue {
	if rules.StaleDays <= 0 {
		rules.StaleDays = DefaultStaleDays
	}
	q := &ReviewQueue{
		Repository: repository,
		Reviewer:   reviewer,
		StaleDays:  rules.StaleDays,
		Generated:  now,
		Urgent:     []ReviewRequest{},
		Stale:      []ReviewRequest{},
		Recent:     []ReviewRequest{},
	}

	for i := range prs {
		pr := &prs[i]
		if !pr.AwaitsReviewFrom(reviewer) {
			continue
		}
		req := ReviewRequest{
			PullRequest:  *pr,
			AgeDays:      pr.AgeDays(now),
			LatestReview: pr.LatestReviewState(),
		}
		switch {
		case isUrgent(pr.Title, rules.UrgentKeywords):
			q.Urgent = append(q.Urgent, req)
		case req.AgeDays >= rules.StaleDays:
			q.Stale = append(q.Stale, req)
		default:
			q.Recent = append(q.Recent, req)
		}
	}

	sort.SliceStable(q.Stale, func(i, j int) bool { return q.Stale[i].AgeDays > q.Stale[j].AgeDays })
	sort.SliceStable(q.Recent, func(i, j int) bool { return q.Recent[i].CreatedAt.After(q.Recent[j].CreatedAt) })
	return q
}

func isUrgent(title string, keywords []string) bool {
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// RepositoryInfo is the code host's description of a repository.
type RepositoryInfo struct {
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description,omitempty"`
	Language      string    `json:"language,omitempty"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	OpenIssues    int       `json:"open_issues"`
	DefaultBranch string    `json:"default_branch"`
	UpdatedAt     time.Time `json:"last_updated"`
}
