package mcp

import (
	"context"
	"time"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driving"
)

// mockAskService is a mock implementation of driving.AskService.
type mockAskService struct {
	answer *domain.Answer
	err    error
	got    domain.AskRequest
}

func (m *mockAskService) Ask(_ context.Context, req domain.AskRequest) (*domain.Answer, error) {
	m.got = req
	return m.answer, m.err
}

// mockPlanService is a mock implementation of driving.PlanService.
type mockPlanService struct {
	plan        domain.QueryPlan
	err         error
	gotToday    time.Time
	gotRepo     string
	gotQuestion string
}

func (m *mockPlanService) Plan(_ context.Context, question string, today time.Time, repository string) (domain.QueryPlan, error) {
	m.gotQuestion = question
	m.gotToday = today
	m.gotRepo = repository
	return m.plan, m.err
}

// mockReportService is a mock implementation of driving.ReportService.
type mockReportService struct {
	digest *domain.Digest
	report *domain.ActivityReport
	err    error

	gotDigest  driving.DigestRequest
	gotAnalyze driving.AnalyzeRequest
}

func (m *mockReportService) Digest(_ context.Context, req driving.DigestRequest) (*domain.Digest, error) {
	m.gotDigest = req
	return m.digest, m.err
}

func (m *mockReportService) Analyze(_ context.Context, req driving.AnalyzeRequest) (*domain.ActivityReport, error) {
	m.gotAnalyze = req
	return m.report, m.err
}

func (m *mockReportService) ExplainTheme(context.Context, domain.RecordKey) (*domain.ThemeExplanation, error) {
	return nil, m.err
}

// mockReviewQueueService is a mock implementation of driving.ReviewQueueService.
type mockReviewQueueService struct {
	queue *domain.ReviewQueue
	err   error

	gotRepo     string
	gotReviewer string
}

func (m *mockReviewQueueService) ReviewQueue(_ context.Context, repository, reviewer string) (*domain.ReviewQueue, error) {
	m.gotRepo, m.gotReviewer = repository, reviewer
	return m.queue, m.err
}

func (m *mockReviewQueueService) RepositoryInfo(context.Context, string) (*domain.RepositoryInfo, error) {
	return nil, m.err
}
