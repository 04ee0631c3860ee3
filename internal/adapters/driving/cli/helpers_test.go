package cli

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/gkabbz/github-delivery-visibility/internal/adapters/driven/config/file"
	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driving"
	"github.com/gkabbz/github-delivery-visibility/internal/logger"
)

// mockAskService is a mock implementation of driving.AskService.
type mockAskService struct {
	answer *domain.Answer
	err    error
	got    domain.AskRequest
	calls  int
}

func (m *mockAskService) Ask(_ context.Context, req domain.AskRequest) (*domain.Answer, error) {
	m.calls++
	m.got = req
	return m.answer, m.err
}

// mockPlanService is a mock implementation of driving.PlanService.
type mockPlanService struct {
	plan     domain.QueryPlan
	err      error
	gotToday time.Time
	gotRepo  string
}

func (m *mockPlanService) Plan(_ context.Context, _ string, today time.Time, repository string) (domain.QueryPlan, error) {
	m.gotToday = today
	m.gotRepo = repository
	return m.plan, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	report *driving.IngestReport
	err    error
	got    driving.IngestOptions
}

func (m *mockIngestService) Ingest(_ context.Context, opts driving.IngestOptions) (*driving.IngestReport, error) {
	m.got = opts
	return m.report, m.err
}

// mockReportService is a mock implementation of driving.ReportService.
type mockReportService struct {
	digest      *domain.Digest
	report      *domain.ActivityReport
	explanation *domain.ThemeExplanation
	err         error

	gotDigest  driving.DigestRequest
	gotAnalyze driving.AnalyzeRequest
	gotKey     domain.RecordKey
}

func (m *mockReportService) Digest(_ context.Context, req driving.DigestRequest) (*domain.Digest, error) {
	m.gotDigest = req
	return m.digest, m.err
}

func (m *mockReportService) Analyze(_ context.Context, req driving.AnalyzeRequest) (*domain.ActivityReport, error) {
	m.gotAnalyze = req
	return m.report, m.err
}

func (m *mockReportService) ExplainTheme(_ context.Context, key domain.RecordKey) (*domain.ThemeExplanation, error) {
	m.gotKey = key
	return m.explanation, m.err
}

// mockReviewQueueService is a mock implementation of driving.ReviewQueueService.
type mockReviewQueueService struct {
	queue *domain.ReviewQueue
	info  *domain.RepositoryInfo
	err   error

	gotRepo     string
	gotReviewer string
}

func (m *mockReviewQueueService) ReviewQueue(_ context.Context, repository, reviewer string) (*domain.ReviewQueue, error) {
	m.gotRepo, m.gotReviewer = repository, reviewer
	return m.queue, m.err
}

func (m *mockReviewQueueService) RepositoryInfo(_ context.Context, repository string) (*domain.RepositoryInfo, error) {
	m.gotRepo = repository
	return m.info, m.err
}

// testServices are the mocks installed by setupTestServices.
type testServices struct {
	ask     *mockAskService
	plan    *mockPlanService
	ingest  *mockIngestService
	reports *mockReportService
	review  *mockReviewQueueService
}

// setupTestServices installs mock services and a default configuration,
// and restores every package variable and flag when the test ends.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()

	saved := struct {
		cfg     *file.Config
		ask     driving.AskService
		plan    driving.PlanService
		ingest  driving.IngestService
		reports driving.ReportService
		review  driving.ReviewQueueService
		pricing domain.PricingTable
	}{appConfig, askService, planService, ingestService, reportService, reviewQueueService, pricingTable}

	mocks := &testServices{
		ask:     &mockAskService{answer: &domain.Answer{RequestID: "req-test"}},
		plan:    &mockPlanService{},
		ingest:  &mockIngestService{report: &driving.IngestReport{}},
		reports: &mockReportService{},
		review:  &mockReviewQueueService{},
	}
	appConfig = file.Default(t.TempDir())
	askService = mocks.ask
	planService = mocks.plan
	ingestService = mocks.ingest
	reportService = mocks.reports
	reviewQueueService = mocks.review
	pricingTable = file.DefaultPricing()

	t.Cleanup(func() {
		appConfig = saved.cfg
		askService = saved.ask
		planService = saved.plan
		ingestService = saved.ingest
		reportService = saved.reports
		reviewQueueService = saved.review
		pricingTable = saved.pricing
		configStore = nil
		promptStore = nil
		resetFlags()
		rootCmd.SetArgs(nil)
	})
	return mocks
}

// resetFlags returns every flag variable to its default.
func resetFlags() {
	verbose = false
	configDir = ""
	repoFlag = ""
	askJSON = false
	planToday = ""
	ingestSince = ""
	ingestLimit = 0
	ingestSkipEmbeddings = false
	digestPeriod = string(domain.PeriodDaily)
	digestDate = ""
	digestJSON = false
	digestSave = false
	analyzeDays = domain.DefaultAnalysisDays
	analyzeJSON = false
	reviewUser = ""
	reviewJSON = false
	reviewSave = false
	logger.SetVerbose(false)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// restoreLogger sends log output to w for the rest of the test.
func restoreLogger(t *testing.T, w *bytes.Buffer) {
	t.Helper()
	logger.SetOutput(w)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })
}
