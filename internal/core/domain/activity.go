package domain

import (
	"fmt"
	"time"
)

// DefaultAnalysisDays is the window analyze covers when none is given.
const DefaultAnalysisDays = 30

// HotspotLimit caps the directories listed as hotspots.
const HotspotLimit = 10

// ThemeSummary is a theme without its pull requests.
type ThemeSummary struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	PRCount      int      `json:"pr_count"`
	Contributors []string `json:"contributors"`
	TotalChanges int      `json:"total_changes"`
}

// Summarize drops the pull requests of t.
func (t *Theme) Summarize() ThemeSummary {
	return ThemeSummary{
		Name:         t.Name,
		Description:  t.Description,
		PRCount:      t.Count(),
		Contributors: t.Contributors(),
		TotalChanges: t.TotalChanges(),
	}
}

// InsightKind classifies an observation about repository activity.
type InsightKind string

// Insight kinds.
const (
	InsightHighActivity InsightKind = "high_activity"
	InsightLowActivity  InsightKind = "low_activity"
	InsightLargeTeam    InsightKind = "large_team"
	InsightSmallTeam    InsightKind = "small_team"
	InsightFocusedWork  InsightKind = "focused_work"
)

// Insight is one observation about repository activity.
type Insight struct {
	Kind    InsightKind `json:"type"`
	Message string      `json:"message"`
}

// ActivityReport analyses the pull requests merged over a number of days.
type ActivityReport struct {
	Repository string         `json:"repository,omitempty"`
	From       time.Time      `json:"from"`
	To         time.Time      `json:"to"`
	Days       int            `json:"days"`
	Stats      ActivityStats  `json:"summary"`
	Themes     []ThemeSummary `json:"themes"`
	Hotspots   Tallies        `json:"hotspots"`
	Insights   []Insight      `json:"insights"`
}

// NewActivityReport builds the report for prs merged between from and to.
func NewActivityReport(repository string, from, to time.Time, prs []PullRequest, rules ThemeRules) *ActivityReport {
	days := int(to.Sub(from).Hours()/24) + 1
	themes := Categorize(prs, rules)
	summaries := make([]ThemeSummary, len(themes))
	for i := range themes {
		summaries[i] = themes[i].Summarize()
	}
	r := &ActivityReport{
		Repository: repository,
		From:       from,
		To:         to,
		Days:       days,
		Stats:      ComputeStats(prs),
		Themes:     summaries,
		Hotspots:   Hotspots(prs, HotspotLimit),
	}
	r.Insights = r.insights()
	return r
}

// insights flags merge velocity above five or below one per day, teams
// above ten or below three contributors, and a theme holding more than
// half of the merged pull requests.
func (r *ActivityReport) insights() []Insight {
	out := []Insight{}
	if r.Days <= 0 {
		return out
	}

	perDay := float64(r.Stats.MergedPRs) / float64(r.Days)
	switch {
	case perDay > 5:
		out = append(out, Insight{InsightHighActivity,
			fmt.Sprintf("High development velocity with %.1f PRs merged per day", perDay)})
	case perDay < 1:
		out = append(out, Insight{InsightLowActivity,
			fmt.Sprintf("Lower development velocity with %.1f PRs merged per day", perDay)})
	}

	switch n := r.Stats.Contributors; {
	case n > 10:
		out = append(out, Insight{InsightLargeTeam, fmt.Sprintf("Large active team with %d contributors", n)})
	case n < 3:
		out = append(out, Insight{InsightSmallTeam, fmt.Sprintf("Small focused team with %d contributors", n)})
	}

	if len(r.Themes) > 0 && r.Stats.MergedPRs > 0 {
		top := r.Themes[0]
		share := float64(top.PRCount) / float64(r.Stats.MergedPRs)
		if share > 0.5 {
			out = append(out, Insight{InsightFocusedWork,
				fmt.Sprintf("Highly focused on %s (%.1f%% of activity)", top.Name, share*100)})
		}
	}
	return out
}
