package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driving"
)

// DigestInput is the input schema for the digest tool.
type DigestInput struct {
	Period     string `json:"period,omitempty" jsonschema:"daily or biweekly (default daily)"`
	Date       string `json:"date,omitempty" jsonschema:"last day covered, YYYY-MM-DD (default yesterday for daily, today for biweekly)"`
	Repository string `json:"repository,omitempty" jsonschema:"owner/repo to summarise"`
}

// DigestOutput is a themed digest. Pull requests carry metadata only.
type DigestOutput struct {
	Repository string               `json:"repository,omitempty"`
	Period     string               `json:"period"`
	From       string               `json:"from"`
	To         string               `json:"to"`
	Stats      domain.ActivityStats `json:"metadata"`
	Themes     []ThemeOutput        `json:"themes"`
}

// ThemeOutput is one theme of a digest.
type ThemeOutput struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	PRCount      int            `json:"pr_count"`
	Contributors []string       `json:"contributors"`
	TotalChanges int            `json:"total_changes"`
	PullRequests []RecordOutput `json:"pull_requests"`
}

// TrendsInput is the input schema for the trends tool.
type TrendsInput struct {
	Days       int    `json:"days,omitempty" jsonschema:"number of days to analyse (default 30)"`
	Repository string `json:"repository,omitempty" jsonschema:"owner/repo to analyse"`
	Today      string `json:"today,omitempty" jsonschema:"last day covered, YYYY-MM-DD (default today)"`
}

// TrendsOutput summarises activity over a window.
type TrendsOutput struct {
	Repository string                `json:"repository,omitempty"`
	From       string                `json:"from"`
	To         string                `json:"to"`
	Days       int                   `json:"days"`
	Summary    domain.ActivityStats  `json:"summary"`
	Themes     []domain.ThemeSummary `json:"themes"`
	Hotspots   domain.Tallies        `json:"hotspots"`
	Insights   []domain.Insight      `json:"insights"`
}

// ReviewQueueInput is the input schema for the review_queue tool.
type ReviewQueueInput struct {
	Reviewer   string `json:"reviewer,omitempty" jsonschema:"GitHub login whose queue to list (default the configured username)"`
	Repository string `json:"repository,omitempty" jsonschema:"owner/repo to look in"`
}

// ReviewQueueOutput lists open pull requests awaiting a reviewer.
type ReviewQueueOutput struct {
	Repository string                `json:"repository"`
	Reviewer   string                `json:"reviewer"`
	StaleDays  int                   `json:"stale_days"`
	Total      int                   `json:"total"`
	Urgent     []ReviewRequestOutput `json:"urgent"`
	Stale      []ReviewRequestOutput `json:"stale"`
	Recent     []ReviewRequestOutput `json:"recent"`
}

// ReviewRequestOutput is one pull request in a review queue.
type ReviewRequestOutput struct {
	PullRequest  RecordOutput `json:"pull_request"`
	AgeDays      int          `json:"age_days"`
	Draft        bool         `json:"draft,omitempty"`
	LatestReview string       `json:"latest_review_state,omitempty"`
}

func (s *Server) registerReportTools() {
	if s.ports.Reports != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name: "digest",
			Description: "Group the pull requests merged in a day or two-week period into themes " +
				"with contributor and change statistics",
		}, s.handleDigest)
		s.tools = append(s.tools, "digest")

		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "trends",
			Description: "Analyse merge activity over the last N days: themes, hotspots and insights",
		}, s.handleTrends)
		s.tools = append(s.tools, "trends")
	}

	if s.ports.ReviewQueue != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "review_queue",
			Description: "List open pull requests awaiting a reviewer, grouped into urgent, stale and recent",
		}, s.handleReviewQueue)
		s.tools = append(s.tools, "review_queue")
	}
}

// handleDigest handles the digest tool invocation.
func (s *Server) handleDigest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DigestInput,
) (*mcp.CallToolResult, DigestOutput, error) {
	day, err := parseOptionalDay("date", input.Date)
	if err != nil {
		return nil, DigestOutput{}, err
	}

	digest, err := s.ports.Reports.Digest(ctx, driving.DigestRequest{
		Repository: s.repository(input.Repository),
		Period:     domain.DigestPeriod(strings.ToLower(strings.TrimSpace(input.Period))),
		Day:        day,
	})
	if err != nil {
		return nil, DigestOutput{}, err
	}

	output := DigestOutput{
		Repository: digest.Repository,
		Period:     string(digest.Period),
		From:       digest.From.Format(domain.DateLayout),
		To:         digest.To.Format(domain.DateLayout),
		Stats:      digest.Stats,
		Themes:     make([]ThemeOutput, len(digest.Themes)),
	}
	for i := range digest.Themes {
		t := &digest.Themes[i]
		summary := t.Summarize()
		theme := ThemeOutput{
			Name:         summary.Name,
			Description:  summary.Description,
			PRCount:      summary.PRCount,
			Contributors: summary.Contributors,
			TotalChanges: summary.TotalChanges,
			PullRequests: make([]RecordOutput, len(t.PullRequests)),
		}
		for j := range t.PullRequests {
			theme.PullRequests[j] = recordOutput(&t.PullRequests[j])
		}
		output.Themes[i] = theme
	}
	return nil, output, nil
}

// handleTrends handles the trends tool invocation.
func (s *Server) handleTrends(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TrendsInput,
) (*mcp.CallToolResult, TrendsOutput, error) {
	today, err := s.today(input.Today)
	if err != nil {
		return nil, TrendsOutput{}, err
	}

	report, err := s.ports.Reports.Analyze(ctx, driving.AnalyzeRequest{
		Repository: s.repository(input.Repository),
		Days:       input.Days,
		Today:      today,
	})
	if err != nil {
		return nil, TrendsOutput{}, err
	}

	return nil, TrendsOutput{
		Repository: report.Repository,
		From:       report.From.Format(domain.DateLayout),
		To:         report.To.Format(domain.DateLayout),
		Days:       report.Days,
		Summary:    report.Stats,
		Themes:     report.Themes,
		Hotspots:   report.Hotspots,
		Insights:   report.Insights,
	}, nil
}

// handleReviewQueue handles the review_queue tool invocation.
func (s *Server) handleReviewQueue(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ReviewQueueInput,
) (*mcp.CallToolResult, ReviewQueueOutput, error) {
	reviewer := strings.TrimSpace(input.Reviewer)
	if reviewer == "" {
		reviewer = s.ports.Reviewer
	}
	if reviewer == "" {
		return nil, ReviewQueueOutput{}, ErrMissingReviewer
	}

	queue, err := s.ports.ReviewQueue.ReviewQueue(ctx, s.repository(input.Repository), reviewer)
	if err != nil {
		return nil, ReviewQueueOutput{}, err
	}

	return nil, ReviewQueueOutput{
		Repository: queue.Repository,
		Reviewer:   queue.Reviewer,
		StaleDays:  queue.StaleDays,
		Total:      queue.Total(),
		Urgent:     toReviewRequests(queue.Urgent),
		Stale:      toReviewRequests(queue.Stale),
		Recent:     toReviewRequests(queue.Recent),
	}, nil
}

func toReviewRequests(reqs []domain.ReviewRequest) []ReviewRequestOutput {
	out := make([]ReviewRequestOutput, len(reqs))
	for i := range reqs {
		r := &reqs[i]
		out[i] = ReviewRequestOutput{
			PullRequest:  recordOutput(&r.PullRequest),
			AgeDays:      r.AgeDays,
			Draft:        r.Draft,
			LatestReview: string(r.LatestReview),
		}
	}
	return out
}

// parseOptionalDay parses a YYYY-MM-DD argument; empty gives the zero time.
func parseOptionalDay(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(domain.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD: %w", name, err)
	}
	return t, nil
}
