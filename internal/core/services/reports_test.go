package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkabbz/github-delivery-visibility/internal/adapters/driven/storage/memory"
	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driving"
)

var testThemeRules = domain.ThemeRules{
	Directories: map[string]string{"db/": "Database"},
	Labels:      map[string]string{"database": "Data"},
}

// summaryOnly hides the detail methods of a store.
type summaryOnly struct {
	driven.RecordStore
}

// brokenFiles fails every file lookup.
type brokenFiles struct {
	*memory.RecordStore
}

func (brokenFiles) Files(context.Context, domain.RecordKey) ([]domain.FileChange, error) {
	return nil, errors.New("disk I/O error")
}

func newTestReportService(store driven.RecordStore) *ReportService {
	svc := NewReportService(store, testThemeRules)
	svc.now = func() time.Time { return at("2024-10-18T08:00:00Z") }
	return svc
}

func themeNames(themes []domain.Theme) []string {
	out := make([]string, len(themes))
	for i := range themes {
		out[i] = themes[i].Name
	}
	return out
}

func TestReportService_Digest(t *testing.T) {
	tests := []struct {
		name     string
		req      driving.DigestRequest
		from, to string
		themes   []string
	}{
		{
			name:   "daily defaults to yesterday",
			req:    driving.DigestRequest{Repository: "acme/api"},
			from:   "2024-10-17",
			to:     "2024-10-17",
			themes: []string{"Database"},
		},
		{
			name:   "daily on a given day",
			req:    driving.DigestRequest{Repository: "acme/api", Period: domain.PeriodDaily, Day: day("2024-10-19")},
			from:   "2024-10-19",
			to:     "2024-10-19",
			themes: []string{"Documentation"},
		},
		{
			name:   "biweekly",
			req:    driving.DigestRequest{Repository: "acme/api", Period: domain.PeriodBiweekly, Day: day("2024-10-21")},
			from:   "2024-10-08",
			to:     "2024-10-21",
			themes: []string{"Database", "Documentation", domain.DefaultTheme},
		},
		{
			name:   "biweekly defaults to today",
			req:    driving.DigestRequest{Repository: "acme/api", Period: domain.PeriodBiweekly},
			from:   "2024-10-05",
			to:     "2024-10-18",
			themes: []string{"Database"},
		},
		{
			name:   "other repository",
			req:    driving.DigestRequest{Repository: "acme/web", Day: day("2024-10-17")},
			from:   "2024-10-17",
			to:     "2024-10-17",
			themes: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestReportService(seedStore(t))

			digest, err := svc.Digest(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.from, digest.From.Format(domain.DateLayout))
			assert.Equal(t, tt.to, digest.To.Format(domain.DateLayout))
			assert.Equal(t, tt.themes, themeNames(digest.Themes))
			assert.Equal(t, len(digest.PullRequests()), digest.Stats.MergedPRs)
		})
	}
}

func TestReportService_DigestInvalidPeriod(t *testing.T) {
	svc := newTestReportService(seedStore(t))

	_, err := svc.Digest(context.Background(), driving.DigestRequest{Period: "weekly"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReportService_DigestWithoutDetails(t *testing.T) {
	svc := newTestReportService(summaryOnly{seedStore(t)})

	digest, err := svc.Digest(context.Background(), driving.DigestRequest{Day: day("2024-10-17")})
	require.NoError(t, err)
	assert.Equal(t, []string{"New Features"}, themeNames(digest.Themes))
}

func TestReportService_DigestDetailFailure(t *testing.T) {
	svc := newTestReportService(brokenFiles{seedStore(t)})

	_, err := svc.Digest(context.Background(), driving.DigestRequest{Day: day("2024-10-17")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acme/api#101")
}

func TestReportService_Analyze(t *testing.T) {
	tests := []struct {
		name     string
		req      driving.AnalyzeRequest
		from     string
		days     int
		merged   int
		hotspots []string
	}{
		{
			name:     "three days",
			req:      driving.AnalyzeRequest{Repository: "acme/api", Days: 3, Today: day("2024-10-21")},
			from:     "2024-10-19",
			days:     3,
			merged:   2,
			hotspots: []string{domain.RootDirectory, "auth"},
		},
		{
			name:     "default window",
			req:      driving.AnalyzeRequest{Today: day("2024-10-21")},
			from:     "2024-09-22",
			days:     domain.DefaultAnalysisDays,
			merged:   3,
			hotspots: []string{domain.RootDirectory, "auth", "db"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestReportService(seedStore(t))

			report, err := svc.Analyze(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.from, report.From.Format(domain.DateLayout))
			assert.Equal(t, "2024-10-21", report.To.Format(domain.DateLayout))
			assert.Equal(t, tt.days, report.Days)
			assert.Equal(t, tt.merged, report.Stats.MergedPRs)
			assert.Equal(t, tt.hotspots, report.Hotspots.Names())
		})
	}
}

func TestReportService_AnalyzeNegativeDays(t *testing.T) {
	svc := newTestReportService(seedStore(t))

	_, err := svc.Analyze(context.Background(), driving.AnalyzeRequest{Days: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReportService_ExplainTheme(t *testing.T) {
	svc := newTestReportService(seedStore(t))

	got, err := svc.ExplainTheme(context.Background(), domain.RecordKey{Number: 101})
	require.NoError(t, err)
	assert.Equal(t, "Database", got.Theme)
	assert.Equal(t, "Database", got.DirectoryTheme)
	assert.Equal(t, "Data", got.LabelTheme)
	assert.Equal(t, "New Features", got.TitleTheme)
	assert.Equal(t, []string{"db/"}, got.DirectoryPrefixes)

	_, err = svc.ExplainTheme(context.Background(), domain.RecordKey{Repository: "acme/api", Number: 999})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
