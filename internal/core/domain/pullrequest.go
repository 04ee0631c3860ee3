package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PRState is the lifecycle state of a pull request.
type PRState string

// Pull request states. Merged is derived from a non-nil merge time.
const (
	PRStateOpen   PRState = "open"
	PRStateClosed PRState = "closed"
	PRStateMerged PRState = "merged"
)

// IsValid returns true if the state is recognised.
func (s PRState) IsValid() bool {
	switch s {
	case PRStateOpen, PRStateClosed, PRStateMerged:
		return true
	default:
		return false
	}
}

// ReviewState is the verdict of a single review.
type ReviewState string

// Review states as reported by GitHub.
const (
	ReviewApproved         ReviewState = "APPROVED"
	ReviewChangesRequested ReviewState = "CHANGES_REQUESTED"
	ReviewCommented        ReviewState = "COMMENTED"
	ReviewDismissed        ReviewState = "DISMISSED"
	ReviewPending          ReviewState = "PENDING"
)

// RecordKey uniquely identifies a pull request across repositories.
type RecordKey struct {
	Repository string `json:"repo_name"`
	Number     int    `json:"number"`
}

// String renders the key as owner/repo#number.
func (k RecordKey) String() string {
	if k.Repository == "" {
		return fmt.Sprintf("#%d", k.Number)
	}
	return fmt.Sprintf("%s#%d", k.Repository, k.Number)
}

// PullRequest is the record the pipeline retrieves and reasons about.
type PullRequest struct {
	Repository   string     `json:"repo_name"`
	Number       int        `json:"number"`
	Title        string     `json:"title"`
	Body         string     `json:"body,omitempty"`
	State        PRState    `json:"state"`
	Author       string     `json:"author"`
	HTMLURL      string     `json:"html_url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	MergedAt     *time.Time `json:"merged_at,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	BaseBranch   string     `json:"base_branch,omitempty"`
	HeadBranch   string     `json:"head_branch,omitempty"`
	Additions    int        `json:"additions"`
	Deletions    int        `json:"deletions"`
	ChangedFiles int        `json:"changed_files"`
	Draft        bool       `json:"draft"`

	// RequestedReviewers are the logins asked to review and not yet done.
	// Only live reads from the code host set it; the store does not keep it.
	RequestedReviewers []string `json:"requested_reviewers,omitempty"`

	// Detail fields, only populated for point lookups and ingestion.
	Reviews []Review     `json:"reviews,omitempty"`
	Files   []FileChange `json:"files,omitempty"`
	Labels  []string     `json:"labels,omitempty"`
}

// Key returns the unique key of the pull request.
func (pr *PullRequest) Key() RecordKey {
	return RecordKey{Repository: pr.Repository, Number: pr.Number}
}

// IsMerged reports whether the pull request has been merged.
func (pr *PullRequest) IsMerged() bool {
	return pr.MergedAt != nil
}

// SizeCategory buckets the pull request by lines changed.
func (pr *PullRequest) SizeCategory() string {
	total := pr.Additions + pr.Deletions
	switch {
	case total <= 10:
		return "XS"
	case total <= 50:
		return "S"
	case total <= 200:
		return "M"
	case total <= 500:
		return "L"
	default:
		return "XL"
	}
}

// DirectoryPrefixes returns the sorted distinct top-level directories touched.
func (pr *PullRequest) DirectoryPrefixes() []string {
	seen := make(map[string]struct{})
	for _, f := range pr.Files {
		if p := f.DirectoryPrefix(); p != "" {
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Reviewers returns the distinct review authors in first-seen order.
func (pr *PullRequest) Reviewers() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range pr.Reviews {
		if _, ok := seen[r.Author]; ok || r.Author == "" {
			continue
		}
		seen[r.Author] = struct{}{}
		out = append(out, r.Author)
	}
	return out
}

// AwaitsReviewFrom reports whether login is among the requested reviewers.
func (pr *PullRequest) AwaitsReviewFrom(login string) bool {
	return containsFold(pr.RequestedReviewers, login)
}

// LatestReviewState returns the state of the most recently submitted
// review, or "" when there is none.
func (pr *PullRequest) LatestReviewState() ReviewState {
	var latest *Review
	for i := range pr.Reviews {
		if latest == nil || pr.Reviews[i].SubmittedAt.After(latest.SubmittedAt) {
			latest = &pr.Reviews[i]
		}
	}
	if latest == nil {
		return ""
	}
	return latest.State
}

// AgeDays returns the whole days between creation and now.
func (pr *PullRequest) AgeDays(now time.Time) int {
	if now.Before(pr.CreatedAt) {
		return 0
	}
	return int(now.Sub(pr.CreatedAt).Hours() / 24)
}

// EmbeddingText is the text embedded for similarity search.
func (pr *PullRequest) EmbeddingText() string {
	return strings.TrimSpace(pr.Title + "\n\n" + pr.Body)
}

// Review is a single review left on a pull request.
type Review struct {
	ID          int64       `json:"id"`
	Author      string      `json:"author"`
	State       ReviewState `json:"state"`
	Body        string      `json:"body,omitempty"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// FileChange is the per-file diff summary of a pull request.
type FileChange struct {
	Path      string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// DirectoryPrefix returns the top-level directory of the file with a trailing slash,
// or "" for files at the repository root.
func (f FileChange) DirectoryPrefix() string {
	i := strings.Index(f.Path, "/")
	if i < 0 {
		return ""
	}
	return f.Path[:i+1]
}

// RecordFilter holds the AND-ed predicates of a structured or hybrid query.
// Empty fields are ignored.
type RecordFilter struct {
	Repository string
	Author     string
	Reviewer   string

	// MergedFrom and MergedTo bound the merge day, both inclusive.
	MergedFrom time.Time
	MergedTo   time.Time

	FilePath        string
	DirectoryPrefix string
}

// IsEmpty reports whether no predicate is set.
func (f RecordFilter) IsEmpty() bool {
	return f == RecordFilter{}
}

// MergedBefore returns the exclusive upper bound derived from MergedTo.
func (f RecordFilter) MergedBefore() time.Time {
	if f.MergedTo.IsZero() {
		return time.Time{}
	}
	return f.MergedTo.AddDate(0, 0, 1)
}

// Matches evaluates the filter against a fully populated pull request.
// Stores that cannot push predicates down use it to filter candidates.
func (f RecordFilter) Matches(pr *PullRequest) bool {
	if f.Repository != "" && pr.Repository != f.Repository {
		return false
	}
	if f.Author != "" && !strings.EqualFold(pr.Author, f.Author) {
		return false
	}
	if f.Reviewer != "" && !containsFold(pr.Reviewers(), f.Reviewer) {
		return false
	}
	if !f.MergedFrom.IsZero() || !f.MergedTo.IsZero() {
		if pr.MergedAt == nil {
			return false
		}
		if !f.MergedFrom.IsZero() && pr.MergedAt.Before(f.MergedFrom) {
			return false
		}
		if !f.MergedTo.IsZero() && !pr.MergedAt.Before(f.MergedBefore()) {
			return false
		}
	}
	if f.FilePath != "" && !pr.touches(func(p string) bool { return p == f.FilePath }) {
		return false
	}
	if f.DirectoryPrefix != "" && !pr.touches(func(p string) bool { return strings.HasPrefix(p, f.DirectoryPrefix) }) {
		return false
	}
	return true
}

func (pr *PullRequest) touches(match func(string) bool) bool {
	for _, f := range pr.Files {
		if match(f.Path) {
			return true
		}
	}
	return false
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
