package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

// setup starts a fake API and returns a source talking to it.
func setup(t *testing.T) (*Source, *http.ServeMux, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), Config{
		Token:             "test-token",
		BaseURL:           server.URL,
		RequestsPerSecond: 1000,
	})
	require.NoError(t, err)
	return NewSource(client), mux, server
}

func TestSource_ListPullRequests_PaginatesAndConverts(t *testing.T) {
	source, mux, server := setup(t)

	mux.HandleFunc("/repos/acme/api/pulls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		assert.Equal(t, "updated", r.URL.Query().Get("sort"))
		assert.Equal(t, "desc", r.URL.Query().Get("direction"))

		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"number": 1, "title": "Old", "state": "closed", "user": {"login": "bob"},
				"created_at": "2024-09-01T00:00:00Z", "updated_at": "2024-09-02T00:00:00Z",
				"closed_at": "2024-09-02T00:00:00Z"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/acme/api/pulls?page=2>; rel="next"`, server.URL))
		fmt.Fprint(w, `[{"number": 2, "title": "Add login", "body": "OAuth", "state": "closed",
			"user": {"login": "alice"}, "html_url": "https://github.com/acme/api/pull/2",
			"created_at": "2024-10-01T10:00:00Z", "updated_at": "2024-10-03T10:00:00Z",
			"merged_at": "2024-10-02T10:00:00Z", "closed_at": "2024-10-02T10:00:00Z",
			"base": {"ref": "main"}, "head": {"ref": "feature/login"}, "draft": false,
			"labels": [{"name": "security"}]}]`)
	})

	prs, err := source.ListPullRequests(context.Background(), "acme/api", time.Time{}, 0)

	require.NoError(t, err)
	require.Len(t, prs, 2)

	first := prs[0]
	assert.Equal(t, "acme/api", first.Repository)
	assert.Equal(t, 2, first.Number)
	assert.Equal(t, domain.PRStateMerged, first.State)
	assert.Equal(t, "alice", first.Author)
	assert.Equal(t, "main", first.BaseBranch)
	assert.Equal(t, "feature/login", first.HeadBranch)
	assert.Equal(t, []string{"security"}, first.Labels)
	require.NotNil(t, first.MergedAt)
	assert.True(t, first.MergedAt.Equal(time.Date(2024, 10, 2, 10, 0, 0, 0, time.UTC)))

	assert.Equal(t, domain.PRStateClosed, prs[1].State)
	assert.Nil(t, prs[1].MergedAt)
}

func TestSource_ListPullRequests_StopsAtSinceAndLimit(t *testing.T) {
	source, mux, _ := setup(t)
	calls := 0
	mux.HandleFunc("/repos/acme/api/pulls", func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprint(w, `[
			{"number": 3, "state": "open", "updated_at": "2024-10-10T00:00:00Z"},
			{"number": 2, "state": "open", "updated_at": "2024-10-05T00:00:00Z"},
			{"number": 1, "state": "open", "updated_at": "2024-09-01T00:00:00Z"}]`)
	})
	ctx := context.Background()

	sinced, err := source.ListPullRequests(ctx, "acme/api", time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	assert.Len(t, sinced, 2)

	limited, err := source.ListPullRequests(ctx, "acme/api", time.Time{}, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, 3, limited[0].Number)
	assert.Equal(t, 2, calls)
}

func TestSource_ListPullRequests_InvalidRepository(t *testing.T) {
	source, _, _ := setup(t)

	for _, repo := range []string{"", "acme", "/api", "acme/", "a/b/c"} {
		_, err := source.ListPullRequests(context.Background(), repo, time.Time{}, 0)
		assert.ErrorIs(t, err, ErrInvalidRepository, repo)
	}
}

func TestSource_Details(t *testing.T) {
	source, mux, _ := setup(t)

	mux.HandleFunc("/repos/acme/api/pulls/2/reviews", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[
			{"id": 11, "user": {"login": "bob"}, "state": "APPROVED", "body": "LGTM",
			 "submitted_at": "2024-10-02T09:00:00Z"},
			{"id": 12, "user": {"login": "carol"}, "state": "PENDING"}]`)
	})
	mux.HandleFunc("/repos/acme/api/pulls/2/files", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[
			{"filename": "src/auth/login.go", "status": "added", "additions": 40, "deletions": 0},
			{"filename": "src/main.go", "status": "modified", "additions": 2, "deletions": 1}]`)
	})
	mux.HandleFunc("/repos/acme/api/issues/2/labels", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"name": "security"}, {"name": "feature"}]`)
	})

	details, err := source.Details(context.Background(), domain.RecordKey{Repository: "acme/api", Number: 2})

	require.NoError(t, err)
	require.Len(t, details.Reviews, 1, "pending reviews are dropped")
	assert.Equal(t, domain.Review{
		ID: 11, Author: "bob", State: domain.ReviewApproved, Body: "LGTM",
		SubmittedAt: time.Date(2024, 10, 2, 9, 0, 0, 0, time.UTC),
	}, details.Reviews[0])
	assert.Equal(t, []domain.FileChange{
		{Path: "src/auth/login.go", Status: "added", Additions: 40},
		{Path: "src/main.go", Status: "modified", Additions: 2, Deletions: 1},
	}, details.Files)
	assert.Equal(t, []string{"security", "feature"}, details.Labels)
	assert.Equal(t, 42, details.Additions)
	assert.Equal(t, 1, details.Deletions)
	assert.Equal(t, 2, details.ChangedFiles)
}

func TestSource_Details_APIError(t *testing.T) {
	source, mux, _ := setup(t)
	mux.HandleFunc("/repos/acme/api/pulls/9/reviews", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})

	_, err := source.Details(context.Background(), domain.RecordKey{Repository: "acme/api", Number: 9})

	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "list reviews")
}

func TestSource_OpenPullRequests(t *testing.T) {
	source, mux, _ := setup(t)
	mux.HandleFunc("/repos/acme/api/pulls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		fmt.Fprint(w, `[
			{"number": 5, "title": "Hotfix login", "state": "open", "user": {"login": "dave"},
				"created_at": "2024-10-15T00:00:00Z", "updated_at": "2024-10-16T00:00:00Z",
				"requested_reviewers": [{"login": "alice"}, {"login": "bob"}]},
			{"number": 4, "title": "Docs", "state": "open", "user": {"login": "erin"},
				"created_at": "2024-10-14T00:00:00Z", "updated_at": "2024-10-15T00:00:00Z"},
			{"number": 3, "title": "Cache", "state": "open", "user": {"login": "erin"},
				"created_at": "2024-10-13T00:00:00Z", "updated_at": "2024-10-14T00:00:00Z"}]`)
	})

	tests := []struct {
		name  string
		limit int
		want  []int
	}{
		{"no limit", 0, []int{5, 4, 3}},
		{"limited", 2, []int{5, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prs, err := source.OpenPullRequests(context.Background(), "acme/api", tt.limit)
			require.NoError(t, err)

			var numbers []int
			for _, pr := range prs {
				numbers = append(numbers, pr.Number)
			}
			assert.Equal(t, tt.want, numbers)
			assert.Equal(t, []string{"alice", "bob"}, prs[0].RequestedReviewers)
			assert.Equal(t, domain.PRStateOpen, prs[0].State)
			assert.Empty(t, prs[1].RequestedReviewers)
		})
	}
}

func TestSource_Repository(t *testing.T) {
	source, mux, _ := setup(t)
	mux.HandleFunc("/repos/acme/api", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"name": "api", "full_name": "acme/api", "description": "Public API",
			"language": "Go", "stargazers_count": 120, "forks_count": 8, "open_issues_count": 3,
			"default_branch": "main", "updated_at": "2024-10-16T09:30:00Z"}`)
	})
	mux.HandleFunc("/repos/acme/gone", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})

	info, err := source.Repository(context.Background(), "acme/api")
	require.NoError(t, err)
	assert.Equal(t, &domain.RepositoryInfo{
		Name:          "api",
		FullName:      "acme/api",
		Description:   "Public API",
		Language:      "Go",
		Stars:         120,
		Forks:         8,
		OpenIssues:    3,
		DefaultBranch: "main",
		UpdatedAt:     time.Date(2024, 10, 16, 9, 30, 0, 0, time.UTC),
	}, info)

	_, err = source.Repository(context.Background(), "acme/gone")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.True(t, IsNotFound(err))

	_, err = source.Repository(context.Background(), "acme")
	assert.ErrorIs(t, err, ErrInvalidRepository)
}

func TestClient_Unauthorized(t *testing.T) {
	source, mux, _ := setup(t)
	mux.HandleFunc("/user", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message": "Bad credentials"}`)
	})

	err := source.client.ValidateCredentials(context.Background())

	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsRateLimited(err))
}

func TestClient_RateLimited(t *testing.T) {
	source, mux, _ := setup(t)
	reset := time.Now().Add(time.Hour).Unix()
	mux.HandleFunc("/repos/acme/api/pulls", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(HeaderRateLimit, "5000")
		w.Header().Set(HeaderRateRemaining, "0")
		w.Header().Set(HeaderRateReset, fmt.Sprint(reset))
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
	})

	_, err := source.ListPullRequests(context.Background(), "acme/api", time.Time{}, 0)

	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, reset, rle.ResetAt.Unix())
}

func TestNewClient_BadBaseURL(t *testing.T) {
	_, err := NewClient(context.Background(), Config{BaseURL: "://bad"})
	assert.Error(t, err)
}
