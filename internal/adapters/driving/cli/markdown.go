package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

// tableTitleWidth truncates titles in the pull request table.
const tableTitleWidth = 50

// markdownWriter builds a markdown report in memory.
type markdownWriter struct {
	b strings.Builder
}

func (m *markdownWriter) line(format string, args ...any) {
	fmt.Fprintf(&m.b, format, args...)
	m.b.WriteByte('\n')
}

func (m *markdownWriter) blank() { m.b.WriteByte('\n') }

func (m *markdownWriter) flush(w io.Writer) error {
	_, err := io.WriteString(w, m.b.String())
	return err
}

// writeDigestMarkdown renders a digest with at most maxPerTheme pull
// requests listed per theme, followed by the complete table.
func writeDigestMarkdown(w io.Writer, d *domain.Digest, maxPerTheme int, generated time.Time) error {
	var m markdownWriter

	switch d.Period {
	case domain.PeriodBiweekly:
		m.line("# Biweekly Delivery Digest - %s to %s", longDate(d.From), longDate(d.To))
	default:
		m.line("# Daily Delivery Digest - %s", longDate(d.To))
	}
	m.blank()
	if d.Repository != "" {
		m.line("**Repository:** %s", d.Repository)
	}
	m.line("**Generated:** %s", generated.Format("2006-01-02 15:04:05"))
	m.blank()

	m.line("## Summary")
	m.blank()
	s := d.Stats
	if s.MergedPRs == 0 {
		m.line("No pull requests were merged in this period.")
		m.blank()
	} else {
		m.line("- **%d** pull requests merged", s.MergedPRs)
		m.line("- **%d** contributors active", s.Contributors)
		m.line("- **%s** lines added, **%s** lines deleted",
			humanize.Comma(int64(s.Additions)), humanize.Comma(int64(s.Deletions)))
		m.line("- **%.0f** average lines changed per PR", s.AveragePRSize)
		m.blank()

		if len(s.TopContributors) > 0 {
			m.line("### Most Active Contributors")
			m.blank()
			for _, c := range s.TopContributors {
				m.line("- **%s** (%s)", c.Name, prCount(c.Count))
			}
			m.blank()
		}
	}

	if len(d.Themes) == 0 {
		return m.flush(w)
	}

	m.line("## Activity by Theme")
	m.blank()
	for i := range d.Themes {
		writeTheme(&m, &d.Themes[i], maxPerTheme)
	}

	m.line("---")
	m.blank()
	m.line("## Complete PR List")
	m.blank()
	writePRTable(&m, d.PullRequests())
	return m.flush(w)
}

func writeTheme(m *markdownWriter, t *domain.Theme, maxPerTheme int) {
	m.line("### %s", t.Name)
	m.blank()
	if t.Description != "" {
		m.line("*%s*", t.Description)
		m.blank()
	}

	shown := t.PullRequests
	if maxPerTheme > 0 && len(shown) > maxPerTheme {
		shown = shown[:maxPerTheme]
	}
	for i := range shown {
		pr := &shown[i]
		m.line("- **%s** %s", prLink(pr), pr.Title)

		details := []string{"by @" + pr.Author}
		if size := pr.Additions + pr.Deletions; size > 0 {
			details = append(details, fmt.Sprintf("%s (%d lines)", pr.SizeCategory(), size))
		}
		if len(pr.Labels) > 0 {
			details = append(details, "labels: "+strings.Join(pr.Labels, ", "))
		}
		m.line("  *%s*", strings.Join(details, " • "))
	}
	if rest := t.Count() - len(shown); rest > 0 {
		m.blank()
		m.line("*... and %d more PRs in this theme*", rest)
	}
	m.blank()
}

func writePRTable(m *markdownWriter, prs []domain.PullRequest) {
	if len(prs) == 0 {
		m.line("*No pull requests to display.*")
		m.blank()
		return
	}

	m.line("| PR | Title | Author | Size | Labels |")
	m.line("|---|---|---|---|---|")
	for i := range prs {
		pr := &prs[i]

		title := pr.Title
		if r := []rune(title); len(r) > tableTitleWidth {
			title = string(r[:tableTitleWidth]) + "..."
		}
		size := pr.SizeCategory()
		if n := pr.Additions + pr.Deletions; n > 0 {
			size += fmt.Sprintf(" (%d)", n)
		}
		var labels []string
		for j, l := range pr.Labels {
			if j == 3 {
				labels = append(labels, fmt.Sprintf("+%d", len(pr.Labels)-3))
				break
			}
			labels = append(labels, "`"+l+"`")
		}

		m.line("| %s | %s | @%s | %s | %s |",
			prLink(pr), escapeCell(title), pr.Author, size, strings.Join(labels, " "))
	}
	m.blank()
}

// writeReviewQueueMarkdown renders a review queue grouped into urgent,
// stale and recent requests.
func writeReviewQueueMarkdown(w io.Writer, q *domain.ReviewQueue) error {
	var m markdownWriter

	m.line("# Review Queue for @%s", q.Reviewer)
	m.blank()
	m.line("**Repository:** %s", q.Repository)
	m.line("**Generated:** %s", q.Generated.Format("2006-01-02 15:04:05"))
	m.blank()

	if q.Total() == 0 {
		m.line("**No PRs awaiting your review!**")
		m.blank()
		m.line("You're all caught up.")
		return m.flush(w)
	}

	m.line("## %d PRs Awaiting Your Review", q.Total())
	m.blank()

	groups := []struct {
		title string
		reqs  []domain.ReviewRequest
	}{
		{"Urgent PRs", q.Urgent},
		{fmt.Sprintf("Stale PRs (%d+ days old)", q.StaleDays), q.Stale},
		{"Recent Review Requests", q.Recent},
	}
	for _, g := range groups {
		if len(g.reqs) == 0 {
			continue
		}
		m.line("### %s", g.title)
		m.blank()
		for i := range g.reqs {
			writeReviewRequest(&m, &g.reqs[i])
		}
	}
	return m.flush(w)
}

func writeReviewRequest(m *markdownWriter, req *domain.ReviewRequest) {
	pr := &req.PullRequest
	m.line("- **%s** %s", prLink(pr), pr.Title)

	details := []string{"by @" + pr.Author, dayCount(req.AgeDays) + " old"}
	if size := pr.Additions + pr.Deletions; size > 0 {
		details = append(details, fmt.Sprintf("%s (%d lines)", pr.SizeCategory(), size))
	}
	if pr.Draft {
		details = append(details, "DRAFT")
	}
	m.line("  *%s*", strings.Join(details, " • "))

	switch req.LatestReview {
	case "":
	case domain.ReviewApproved:
		m.line("  *Previously approved*")
	case domain.ReviewChangesRequested:
		m.line("  *Changes requested*")
	case domain.ReviewCommented:
		m.line("  *Comments added*")
	default:
		m.line("  *%s*", req.LatestReview)
	}
	m.blank()
}

// saveReport writes content to dir/<date>/name and returns the path.
func saveReport(dir string, day time.Time, name string, write func(io.Writer) error) (string, error) {
	sub := filepath.Join(dir, day.Format(domain.DateLayout))
	if err := os.MkdirAll(sub, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	path := filepath.Join(sub, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	if err := write(f); err != nil {
		f.Close() //nolint:errcheck
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func prLink(pr *domain.PullRequest) string {
	if pr.HTMLURL == "" {
		return fmt.Sprintf("#%d", pr.Number)
	}
	return fmt.Sprintf("[#%d](%s)", pr.Number, pr.HTMLURL)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func longDate(t time.Time) string { return t.Format("January 02, 2006") }

func prCount(n int) string {
	if n == 1 {
		return "1 PR"
	}
	return fmt.Sprintf("%d PRs", n)
}

func dayCount(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
