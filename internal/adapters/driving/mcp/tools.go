package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question   string `json:"question" jsonschema:"the question about pull request activity"`
	Repository string `json:"repository,omitempty" jsonschema:"owner/repo to scope the question to"`
	Today      string `json:"today,omitempty" jsonschema:"date relative expressions resolve against, YYYY-MM-DD (default today)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	RequestID    string         `json:"request_id"`
	Answer       string         `json:"answer"`
	Route        string         `json:"route"`
	Plan         PlanOutput     `json:"plan,omitempty"`
	Records      []RecordOutput `json:"records"`
	Calls        int            `json:"llm_calls"`
	TotalCostUSD float64        `json:"total_cost_usd"`
}

// PlanInput is the input schema for the plan tool.
type PlanInput struct {
	Question   string `json:"question" jsonschema:"the question to plan"`
	Repository string `json:"repository,omitempty" jsonschema:"owner/repo to scope the plan to"`
	Today      string `json:"today,omitempty" jsonschema:"date relative expressions resolve against, YYYY-MM-DD (default today)"`
}

// PlanOutput is a query plan in the same wire JSON the planner accepts
// and the CLI prints. Unset fields are absent.
type PlanOutput map[string]any

// RecordOutput is a retrieved pull request.
type RecordOutput struct {
	Repository string  `json:"repo_name"`
	Number     int     `json:"number"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	State      string  `json:"state"`
	URL        string  `json:"url,omitempty"`
	CreatedAt  string  `json:"created_at"`
	MergedAt   string  `json:"merged_at,omitempty"`
	Size       string  `json:"size"`
	Similarity float64 `json:"similarity,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "ask",
		Description: "Answer a natural-language question about pull request activity " +
			"(who shipped what, reviews, changed files, topics) from the ingested history",
	}, s.handleAsk)
	s.tools = append(s.tools, "ask")

	if s.ports.Plan != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "plan",
			Description: "Show the structured query plan for a question without running it",
		}, s.handlePlan)
		s.tools = append(s.tools, "plan")
	}

	s.registerReportTools()
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, AskOutput{}, ErrEmptyQuestion
	}
	today, err := s.today(input.Today)
	if err != nil {
		return nil, AskOutput{}, err
	}

	answer, err := s.ports.Ask.Ask(ctx, domain.AskRequest{
		Question:   input.Question,
		Repository: s.repository(input.Repository),
		Today:      today,
	})
	if err != nil {
		return nil, AskOutput{}, err
	}

	var plan PlanOutput
	if answer.Plan != nil {
		if plan, err = toPlanOutput(*answer.Plan); err != nil {
			return nil, AskOutput{}, err
		}
	}

	output := AskOutput{
		RequestID:    answer.RequestID,
		Answer:       answer.Text,
		Route:        string(answer.Result.Route),
		Plan:         plan,
		Records:      make([]RecordOutput, len(answer.Result.Records)),
		Calls:        len(answer.Usage),
		TotalCostUSD: answer.TotalCost(),
	}
	for i := range answer.Result.Records {
		output.Records[i] = toRecordOutput(&answer.Result.Records[i])
	}

	return nil, output, nil
}

// handlePlan handles the plan tool invocation.
func (s *Server) handlePlan(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input PlanInput,
) (*mcp.CallToolResult, PlanOutput, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, nil, ErrEmptyQuestion
	}
	today, err := s.today(input.Today)
	if err != nil {
		return nil, nil, err
	}

	plan, err := s.ports.Plan.Plan(ctx, input.Question, today, s.repository(input.Repository))
	if err != nil {
		return nil, nil, err
	}
	output, err := toPlanOutput(plan)
	if err != nil {
		return nil, nil, err
	}
	return nil, output, nil
}

func (s *Server) repository(requested string) string {
	if r := strings.TrimSpace(requested); r != "" {
		return r
	}
	return s.ports.Repository
}

func (s *Server) today(value string) (time.Time, error) {
	if value == "" {
		return s.now(), nil
	}
	t, err := time.Parse(domain.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("today must be YYYY-MM-DD: %w", err)
	}
	return t, nil
}

func toPlanOutput(p domain.QueryPlan) (PlanOutput, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	var out PlanOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return out, nil
}

func toRecordOutput(r *domain.ScoredRecord) RecordOutput {
	out := recordOutput(&r.PullRequest)
	if r.Scored {
		out.Similarity = r.Similarity
	}
	return out
}

func recordOutput(r *domain.PullRequest) RecordOutput {
	out := RecordOutput{
		Repository: r.Repository,
		Number:     r.Number,
		Title:      r.Title,
		Author:     r.Author,
		State:      string(r.State),
		URL:        r.HTMLURL,
		CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339),
		Size:       r.SizeCategory(),
	}
	if r.MergedAt != nil {
		out.MergedAt = r.MergedAt.UTC().Format(time.RFC3339)
	}
	return out
}
