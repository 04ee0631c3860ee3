package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

var fixedNow = time.Date(2024, 10, 22, 9, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	server, err := NewServer(ports)
	require.NoError(t, err)
	server.now = func() time.Time { return fixedNow }
	return server
}

func sampleAnswer() *domain.Answer {
	merged := time.Date(2024, 10, 18, 12, 0, 0, 0, time.UTC)
	plan := domain.QueryPlan{
		QueryType:     domain.QueryTypeHybrid,
		Author:        "alice",
		StartDate:     time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 10, 22, 0, 0, 0, 0, time.UTC),
		SemanticQuery: "database migrations",
		Limit:         10,
	}
	return &domain.Answer{
		RequestID: "req-1",
		Text:      "Alice shipped the migration runner.",
		Plan:      &plan,
		Result: domain.NewRetrievalResult(domain.RouteHybrid, []domain.ScoredRecord{{
			PullRequest: domain.PullRequest{
				Repository: "acme/api",
				Number:     42,
				Title:      "Add migration runner",
				Author:     "alice",
				State:      domain.PRStateMerged,
				CreatedAt:  time.Date(2024, 10, 16, 8, 0, 0, 0, time.UTC),
				MergedAt:   &merged,
				Additions:  30,
				Deletions:  5,
			},
			Similarity: 0.91,
			Scored:     true,
		}}),
		Usage: []domain.UsageRecord{
			{Operation: domain.OperationPlan, CostUSD: 0.001},
			{Operation: domain.OperationSynthesize, CostUSD: 0.002},
		},
	}
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answer with plan and records", func(t *testing.T) {
		ask := &mockAskService{answer: sampleAnswer()}
		server := newTestServer(t, &Ports{Ask: ask, Repository: "acme/api"})

		_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "What did alice ship about migrations?"})

		require.NoError(t, err)
		assert.Equal(t, "req-1", output.RequestID)
		assert.Equal(t, "Alice shipped the migration runner.", output.Answer)
		assert.Equal(t, "hybrid", output.Route)
		assert.Equal(t, "hybrid", output.Plan["query_type"])
		assert.Equal(t, "2024-10-15", output.Plan["start_date"])
		assert.Equal(t, "2024-10-22", output.Plan["end_date"])
		assert.EqualValues(t, 10, output.Plan["limit"])
		require.Len(t, output.Records, 1)
		assert.Equal(t, 42, output.Records[0].Number)
		assert.Equal(t, "S", output.Records[0].Size)
		assert.Equal(t, "2024-10-18T12:00:00Z", output.Records[0].MergedAt)
		assert.InDelta(t, 0.91, output.Records[0].Similarity, 1e-9)
		assert.Equal(t, 2, output.Calls)
		assert.InDelta(t, 0.003, output.TotalCostUSD, 1e-9)

		assert.Equal(t, "acme/api", ask.got.Repository, "default scope applies")
		assert.Equal(t, fixedNow, ask.got.Today)
	})

	t.Run("explicit repository and date win", func(t *testing.T) {
		ask := &mockAskService{answer: sampleAnswer()}
		server := newTestServer(t, &Ports{Ask: ask, Repository: "acme/api"})

		_, _, err := server.handleAsk(ctx, nil, AskInput{
			Question:   "q",
			Repository: "acme/web",
			Today:      "2024-01-31",
		})

		require.NoError(t, err)
		assert.Equal(t, "acme/web", ask.got.Repository)
		assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), ask.got.Today)
	})

	t.Run("empty question is rejected", func(t *testing.T) {
		server := newTestServer(t, &Ports{Ask: &mockAskService{}})

		_, _, err := server.handleAsk(ctx, nil, AskInput{Question: "   "})

		assert.ErrorIs(t, err, ErrEmptyQuestion)
	})

	t.Run("malformed date is rejected", func(t *testing.T) {
		server := newTestServer(t, &Ports{Ask: &mockAskService{}})

		_, _, err := server.handleAsk(ctx, nil, AskInput{Question: "q", Today: "22/10/2024"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "YYYY-MM-DD")
	})

	t.Run("stage errors pass through", func(t *testing.T) {
		stageErr := domain.NewStageError(domain.StateExecuting, domain.ErrRetrieval, errors.New("disk gone"))
		ask := &mockAskService{answer: &domain.Answer{}, err: stageErr}
		server := newTestServer(t, &Ports{Ask: ask})

		_, _, err := server.handleAsk(ctx, nil, AskInput{Question: "q"})

		assert.ErrorIs(t, err, domain.ErrRetrieval)
	})
}

func TestServer_handlePlan(t *testing.T) {
	ctx := context.Background()

	t.Run("returns plan", func(t *testing.T) {
		plans := &mockPlanService{plan: domain.QueryPlan{
			QueryType:        domain.QueryTypeStructured,
			RecordIdentifier: 1234,
			RepoName:         "acme/api",
			Limit:            10,
		}}
		server := newTestServer(t, &Ports{Ask: &mockAskService{}, Plan: plans, Repository: "acme/api"})

		_, output, err := server.handlePlan(ctx, nil, PlanInput{Question: "Show me PR 1234"})

		require.NoError(t, err)
		assert.Equal(t, "structured", output["query_type"])
		assert.EqualValues(t, 1234, output["record_identifier"])
		assert.NotContains(t, output, "start_date")
		assert.Equal(t, "Show me PR 1234", plans.gotQuestion)
		assert.Equal(t, "acme/api", plans.gotRepo)
		assert.Equal(t, fixedNow, plans.gotToday)
	})

	t.Run("planning failure", func(t *testing.T) {
		plans := &mockPlanService{err: fmt.Errorf("%w: bad json", domain.ErrPlanValidation)}
		server := newTestServer(t, &Ports{Ask: &mockAskService{}, Plan: plans})

		_, _, err := server.handlePlan(ctx, nil, PlanInput{Question: "q"})

		assert.ErrorIs(t, err, domain.ErrPlanValidation)
	})

	t.Run("empty question", func(t *testing.T) {
		server := newTestServer(t, &Ports{Ask: &mockAskService{}, Plan: &mockPlanService{}})

		_, _, err := server.handlePlan(ctx, nil, PlanInput{})

		assert.ErrorIs(t, err, ErrEmptyQuestion)
	})
}

func TestToPlanOutput_MatchesDomainWireForm(t *testing.T) {
	tests := []struct {
		name string
		plan domain.QueryPlan
	}{
		{"hybrid with dates", *sampleAnswer().Plan},
		{"record lookup", domain.QueryPlan{QueryType: domain.QueryTypeStructured, RecordIdentifier: 7, RepoName: "acme/api", Limit: 1}},
		{"directory scope", domain.QueryPlan{QueryType: domain.QueryTypeStructured, DirectoryPrefix: "src/auth/", Limit: 25}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, err := json.Marshal(tt.plan)
			require.NoError(t, err)

			out, err := toPlanOutput(tt.plan)
			require.NoError(t, err)
			got, err := json.Marshal(out)
			require.NoError(t, err)

			assert.JSONEq(t, string(want), string(got))
		})
	}
}

func TestToRecordOutput_UnscoredOmitsSimilarity(t *testing.T) {
	rec := domain.ScoredRecord{
		PullRequest: domain.PullRequest{Number: 1, State: domain.PRStateOpen, Additions: 600},
		Similarity:  0.5,
	}

	out := toRecordOutput(&rec)

	assert.Zero(t, out.Similarity)
	assert.Empty(t, out.MergedAt)
	assert.Equal(t, "XL", out.Size)
	assert.Equal(t, "open", out.State)
}
