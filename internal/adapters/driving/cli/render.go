package cli

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gowebpki/jcs"
	"golang.org/x/term"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

// renderer writes command output, styled only when w is a terminal.
type renderer struct {
	w      io.Writer
	styled bool

	heading lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	failure lipgloss.Style
}

func newRenderer(w io.Writer) *renderer {
	styled := false
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		styled = true
	}
	return &renderer{
		w:       w,
		styled:  styled,
		heading: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		failure: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

func (r *renderer) paint(style lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return style.Render(text)
}

func (r *renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

func (r *renderer) section(name string) {
	r.printf("\n%s\n", r.paint(r.heading, "── "+name+" ──"))
}

// canonicalPlan returns the RFC 8785 form of the plan's wire JSON, so the
// same plan always prints and hashes identically.
func canonicalPlan(plan domain.QueryPlan) ([]byte, error) {
	raw, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize plan: %w", err)
	}
	return out, nil
}

// planFingerprint is a short stable identifier of a plan for logs.
func planFingerprint(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:6])
}

// renderPlan prints the canonical plan JSON, indented.
func (r *renderer) renderPlan(plan domain.QueryPlan) error {
	canonical, err := canonicalPlan(plan)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, canonical, "", "  "); err != nil {
		return err
	}
	r.printf("%s\n", buf.String())
	return nil
}

// renderAnswer prints the answer text and, when verbose, the plan, the
// retrieved records and the usage of every model call.
func (r *renderer) renderAnswer(answer *domain.Answer, verbose bool) error {
	if answer.Text != "" {
		r.printf("%s\n", answer.Text)
	}
	if !verbose {
		return nil
	}

	if answer.Plan != nil {
		r.section("Plan")
		canonical, err := canonicalPlan(*answer.Plan)
		if err != nil {
			return err
		}
		r.printf("%s\n", canonical)
		r.printf("%s %s\n", r.paint(r.label, "fingerprint:"), planFingerprint(canonical))
	}

	r.section("Records")
	r.renderRecords(answer.Result)

	r.section("Usage")
	r.renderUsage(answer.Usage)
	r.printf("%s %s in %s\n", r.paint(r.label, "states:"),
		joinStates(answer.States), answer.Elapsed.Round(time.Millisecond))
	return nil
}

func (r *renderer) renderRecords(result domain.RetrievalResult) {
	if result.Route != "" {
		r.printf("%s %s\n", r.paint(r.label, "route:"), result.Route)
	}
	if result.IsEmpty() {
		r.printf("%s\n", r.paint(r.muted, "(none)"))
		return
	}
	for i := range result.Records {
		rec := &result.Records[i]
		line := fmt.Sprintf("  %s #%d %s", rec.Repository, rec.Number, rec.Title)
		if rec.Scored {
			line += r.paint(r.muted, fmt.Sprintf(" (%.3f)", rec.Similarity))
		}
		r.printf("%s\n", line)
	}
}

func (r *renderer) renderUsage(usage []domain.UsageRecord) {
	if len(usage) == 0 {
		r.printf("%s\n", r.paint(r.muted, "(no model calls)"))
		return
	}
	for _, u := range usage {
		line := fmt.Sprintf("  %-10s %s attempt %d  %d in / %d out  %s  $%.6f",
			u.Operation, u.Model, u.Attempt, u.InputTokens, u.OutputTokens,
			u.Latency.Round(time.Millisecond), u.CostUSD)
		if !u.Succeeded() {
			line += "  " + r.paint(r.failure, u.Error)
		}
		r.printf("%s\n", line)
	}
	r.printf("%s $%.6f (%d calls)\n", r.paint(r.label, "total:"), domain.TotalCost(usage), len(usage))
}

func joinStates(states []domain.State) string {
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = s.String()
	}
	return strings.Join(parts, " → ")
}

// answerJSON is the --json form of an answer.
type answerJSON struct {
	RequestID    string               `json:"request_id"`
	Question     string               `json:"question"`
	Answer       string               `json:"answer,omitempty"`
	Plan         json.RawMessage      `json:"plan,omitempty"`
	Route        domain.Route         `json:"route,omitempty"`
	Records      []domain.RecordKey   `json:"records"`
	Usage        []domain.UsageRecord `json:"usage"`
	TotalCostUSD float64              `json:"total_cost_usd"`
	States       []domain.State       `json:"states"`
	ElapsedMS    int64                `json:"elapsed_ms"`
	Error        string               `json:"error,omitempty"`
}

// writeAnswerJSON prints answer as one JSON document. askErr, when set,
// is included so scripts see the partial usage of a failed request.
func writeAnswerJSON(w io.Writer, answer *domain.Answer, askErr error) error {
	out := answerJSON{
		RequestID:    answer.RequestID,
		Question:     answer.Question,
		Answer:       answer.Text,
		Route:        answer.Result.Route,
		Records:      answer.Result.Keys(),
		Usage:        answer.Usage,
		TotalCostUSD: answer.TotalCost(),
		States:       answer.States,
		ElapsedMS:    answer.Elapsed.Milliseconds(),
	}
	if out.Usage == nil {
		out.Usage = []domain.UsageRecord{}
	}
	if answer.Plan != nil {
		canonical, err := canonicalPlan(*answer.Plan)
		if err != nil {
			return err
		}
		out.Plan = canonical
	}
	if askErr != nil {
		out.Error = askErr.Error()
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// renderActivity prints an activity analysis.
func (r *renderer) renderActivity(report *domain.ActivityReport) {
	title := fmt.Sprintf("Activity %s to %s (%d days)",
		report.From.Format(domain.DateLayout), report.To.Format(domain.DateLayout), report.Days)
	if report.Repository != "" {
		title = report.Repository + " " + title
	}
	r.printf("%s\n", r.paint(r.heading, title))

	s := report.Stats
	r.section("Summary")
	r.printf("  %s merged by %s\n", prCount(s.MergedPRs), pluralContributors(s.Contributors))
	r.printf("  +%s / -%s lines, %.0f per PR\n",
		humanize.Comma(int64(s.Additions)), humanize.Comma(int64(s.Deletions)), s.AveragePRSize)
	if len(s.TopContributors) > 0 {
		r.printf("  %s %s\n", r.paint(r.label, "top contributors:"), joinTallies(s.TopContributors))
	}

	r.section("Themes")
	if len(report.Themes) == 0 {
		r.printf("%s\n", r.paint(r.muted, "(none)"))
	}
	for _, t := range report.Themes {
		r.printf("  %-26s %3d  %s\n", t.Name, t.PRCount, r.paint(r.muted, t.Description))
	}

	r.section("Hotspots")
	if len(report.Hotspots) == 0 {
		r.printf("%s\n", r.paint(r.muted, "(none)"))
	}
	for _, h := range report.Hotspots {
		r.printf("  %-40s %s lines\n", h.Name, humanize.Comma(int64(h.Count)))
	}

	if len(report.Insights) > 0 {
		r.section("Insights")
		for _, in := range report.Insights {
			r.printf("  - %s\n", in.Message)
		}
	}
}

// renderThemeExplanation prints what every theme rule makes of one pull request.
func (r *renderer) renderThemeExplanation(e *domain.ThemeExplanation) {
	r.printf("%s %s\n", r.paint(r.heading, e.Key.String()), e.Title)
	r.printf("%s @%s, +%d / -%d\n", r.paint(r.label, "author:"), e.Author, e.Additions, e.Deletions)
	r.printf("%s %s\n", r.paint(r.label, "labels:"), orNone(strings.Join(e.Labels, ", ")))
	r.printf("%s %s\n", r.paint(r.label, "directories:"), orNone(strings.Join(e.Directories, ", ")))
	r.printf("%s %s\n", r.paint(r.label, "extensions:"), orNone(strings.Join(e.Extensions, ", ")))

	r.section("Files")
	if len(e.Files) == 0 {
		r.printf("%s\n", r.paint(r.muted, "(none stored)"))
	}
	for _, f := range e.Files {
		r.printf("  %s (+%d/-%d)\n", f.Path, f.Additions, f.Deletions)
	}

	r.section("Rules")
	r.printf("  %-10s %s\n", "directory", orNone(e.DirectoryTheme))
	r.printf("  %-10s %s\n", "label", orNone(e.LabelTheme))
	r.printf("  %-10s %s\n", "title", orNone(e.TitleTheme))
	r.printf("%s %s\n", r.paint(r.label, "theme:"), e.Theme)
}

// renderRepositoryInfo prints repository metadata.
func (r *renderer) renderRepositoryInfo(info *domain.RepositoryInfo) {
	r.printf("%s\n", r.paint(r.heading, info.FullName))
	if info.Description != "" {
		r.printf("%s\n", info.Description)
	}
	r.printf("%s %s\n", r.paint(r.label, "language:"), orNone(info.Language))
	r.printf("%s %s\n", r.paint(r.label, "stars:"), humanize.Comma(int64(info.Stars)))
	r.printf("%s %s\n", r.paint(r.label, "forks:"), humanize.Comma(int64(info.Forks)))
	r.printf("%s %d\n", r.paint(r.label, "open issues:"), info.OpenIssues)
	r.printf("%s %s\n", r.paint(r.label, "default branch:"), info.DefaultBranch)
	if !info.UpdatedAt.IsZero() {
		r.printf("%s %s (%s)\n", r.paint(r.label, "updated:"),
			info.UpdatedAt.Format(domain.DateLayout), humanize.Time(info.UpdatedAt))
	}
}

func joinTallies(ts domain.Tallies) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = fmt.Sprintf("%s (%d)", t.Name, t.Count)
	}
	return strings.Join(parts, ", ")
}

func pluralContributors(n int) string {
	if n == 1 {
		return "1 contributor"
	}
	return fmt.Sprintf("%d contributors", n)
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
