package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkabbz/github-delivery-visibility/internal/connectors/github"
	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

func sampleQueue(reviewer string) *domain.ReviewQueue {
	now := time.Date(2024, 10, 16, 9, 0, 0, 0, time.UTC)
	prs := []domain.PullRequest{
		{Number: 3, Title: "Hotfix cache stampede", Author: "dave", CreatedAt: now.AddDate(0, 0, -1), RequestedReviewers: []string{reviewer}},
		{Number: 2, Title: "Rework scheduler", Author: "erin", CreatedAt: now.AddDate(0, 0, -5), RequestedReviewers: []string{reviewer}},
	}
	return domain.BuildReviewQueue("acme/api", reviewer, prs, domain.ReviewQueueRules{UrgentKeywords: domain.DefaultUrgentKeywords}, now)
}

func TestReviewQueueCmd_ResolvesReviewer(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		username string
		want     string
	}{
		{"flag", []string{"review-queue", "--repo", "acme/api", "--user", "@alice"}, "bob", "alice"},
		{"configured username", []string{"review-queue", "--repo", "acme/api"}, "bob", "bob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mocks := setupTestServices(t)
			appConfig.GitHub.Username = tt.username
			mocks.review.queue = sampleQueue(tt.want)
			buf := new(bytes.Buffer)
			rootCmd.SetOut(buf)
			rootCmd.SetArgs(tt.args)

			require.NoError(t, rootCmd.Execute())
			assert.Equal(t, tt.want, mocks.review.gotReviewer)
			assert.Equal(t, "acme/api", mocks.review.gotRepo)
			assert.Contains(t, buf.String(), "# Review Queue for @"+tt.want)
		})
	}
}

func TestReviewQueueCmd_Save(t *testing.T) {
	mocks := setupTestServices(t)
	mocks.review.queue = sampleQueue("alice")
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	t.Cleanup(func() { rootCmd.SetErr(nil) })
	rootCmd.SetArgs([]string{"review-queue", "--repo", "acme/api", "-u", "alice", "--save"})

	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(filepath.Join(appConfig.Report.OutputDir, "2024-10-16", "review-queue-alice-2024-10-16.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "### Urgent PRs")
}

func TestReviewQueueCmd_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		err      error
		want     string
		wantCode int
	}{
		{"no reviewer", []string{"review-queue", "--repo", "acme/api"}, nil, "no reviewer", ExitUsage},
		{"no repository", []string{"review-queue", "--user", "alice"}, nil, "no repository", ExitUsage},
		{
			"unknown repository", []string{"review-queue", "--repo", "acme/gone", "--user", "alice"},
			fmt.Errorf("list open pull requests: %w", &github.APIError{StatusCode: 404, Message: "Not Found"}),
			"acme/gone not found", ExitUsage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mocks := setupTestServices(t)
			mocks.review.err = tt.err
			rootCmd.SetOut(new(bytes.Buffer))
			rootCmd.SetArgs(tt.args)

			err := rootCmd.Execute()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, tt.wantCode, exitCode(err))
		})
	}
}

func TestRepoInfoCmd(t *testing.T) {
	mocks := setupTestServices(t)
	mocks.review.info = &domain.RepositoryInfo{
		FullName:      "acme/api",
		Description:   "Public API",
		Language:      "Go",
		Stars:         1520,
		DefaultBranch: "main",
	}
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"repo-info", "--repo", "acme/api"})

	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, "acme/api", mocks.review.gotRepo)
	out := buf.String()
	assert.Contains(t, out, "Public API")
	assert.Contains(t, out, "stars: 1,520")
	assert.Contains(t, out, "default branch: main")
}
