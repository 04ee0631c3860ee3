package domain

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultTheme collects pull requests no rule claims.
const DefaultTheme = "Other Changes"

// DefaultMaxPRsPerTheme caps the pull requests listed under one theme.
const DefaultMaxPRsPerTheme = 8

// ThemeRules maps pull requests to themes. Directory rules win over label
// rules, label rules over the built-in title keywords.
type ThemeRules struct {
	// Directories maps a path prefix such as "sql/" to a theme name.
	Directories map[string]string `yaml:"directory_themes"`

	// Labels maps a label name to a theme name.
	Labels map[string]string `yaml:"label_themes"`
}

// titleThemes are checked in order against the words of the title.
var titleThemes = []struct {
	theme    string
	keywords []string
}{
	{"SQL & Data Products", []string{"sql", "query", "dataset", "table"}},
	{"Pipeline Infrastructure", []string{"dag", "airflow", "pipeline", "etl"}},
	{"Testing & Quality", []string{"test", "pytest", "unittest"}},
	{"Documentation", []string{"doc", "readme", "comment"}},
	{"Bug Fixes", []string{"fix", "bug", "error", "issue"}},
	{"New Features", []string{"feat", "add", "new"}},
	{"Dependencies & Updates", []string{"update", "upgrade", "bump", "dependency", "dependencies"}},
	{"Code Improvements", []string{"refactor", "cleanup", "improve", "optimize"}},
	{"CI/CD & Infrastructure", []string{"ci", "cd", "github", "action", "workflow"}},
}

// ThemeOf returns the theme of pr.
func (r ThemeRules) ThemeOf(pr *PullRequest) string {
	if t := r.directoryTheme(pr); t != "" {
		return t
	}
	if t := r.labelTheme(pr); t != "" {
		return t
	}
	if t := titleTheme(pr.Title); t != "" {
		return t
	}
	return DefaultTheme
}

// directoryTheme scores every matching rule by the lines each file changed,
// plus one per file, and returns the best. Ties go to the smaller name.
func (r ThemeRules) directoryTheme(pr *PullRequest) string {
	scores := make(map[string]int)
	for _, f := range pr.Files {
		for prefix, theme := range r.Directories {
			if strings.HasPrefix(f.Path, prefix) {
				scores[theme] += f.Additions + f.Deletions + 1
			}
		}
	}
	best, bestScore := "", 0
	for theme, score := range scores {
		if score > bestScore || (score == bestScore && theme < best) {
			best, bestScore = theme, score
		}
	}
	return best
}

func (r ThemeRules) labelTheme(pr *PullRequest) string {
	for _, l := range pr.Labels {
		if t, ok := r.Labels[l]; ok {
			return t
		}
	}
	return ""
}

// titleTheme matches keywords against the start of each title word, so
// "fixes" counts as "fix" but "prefix" does not.
func titleTheme(title string) string {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
	for _, tt := range titleThemes {
		for _, kw := range tt.keywords {
			for _, w := range words {
				if strings.HasPrefix(w, kw) {
					return tt.theme
				}
			}
		}
	}
	return ""
}

// ThemeExplanation shows how every rule sees one pull request.
type ThemeExplanation struct {
	Key               RecordKey    `json:"key"`
	Title             string       `json:"title"`
	Author            string       `json:"author"`
	Additions         int          `json:"additions"`
	Deletions         int          `json:"deletions"`
	Labels            []string     `json:"labels"`
	Files             []FileChange `json:"files"`
	DirectoryPrefixes []string     `json:"directory_prefixes"`
	Theme             string       `json:"theme"`

	// Per-rule results; empty when the rule does not match.
	DirectoryTheme string `json:"directory_theme,omitempty"`
	LabelTheme     string `json:"label_theme,omitempty"`
	TitleTheme     string `json:"title_theme,omitempty"`

	Extensions  []string `json:"extensions"`
	Directories []string `json:"directories"`
}

// Explain reports the theme of pr and what each rule would pick.
func (r ThemeRules) Explain(pr *PullRequest) ThemeExplanation {
	exts := make(map[string]struct{})
	dirs := make(map[string]struct{})
	for _, f := range pr.Files {
		if ext := strings.TrimPrefix(path.Ext(f.Path), "."); ext != "" {
			exts[ext] = struct{}{}
		}
		if i := strings.Index(f.Path, "/"); i > 0 {
			dirs[f.Path[:i]] = struct{}{}
		}
	}
	return ThemeExplanation{
		Key:               pr.Key(),
		Title:             pr.Title,
		Author:            pr.Author,
		Additions:         pr.Additions,
		Deletions:         pr.Deletions,
		Labels:            pr.Labels,
		Files:             pr.Files,
		DirectoryPrefixes: pr.DirectoryPrefixes(),
		Theme:             r.ThemeOf(pr),
		DirectoryTheme:    r.directoryTheme(pr),
		LabelTheme:        r.labelTheme(pr),
		TitleTheme:        titleTheme(pr.Title),
		Extensions:        sortedKeys(exts),
		Directories:       sortedKeys(dirs),
	}
}

// Theme is a group of related pull requests in a digest.
type Theme struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	PullRequests []PullRequest `json:"pull_requests"`
}

// Count returns the number of pull requests in the theme.
func (t *Theme) Count() int { return len(t.PullRequests) }

// Contributors returns the distinct authors, sorted.
func (t *Theme) Contributors() []string {
	seen := make(map[string]struct{})
	for i := range t.PullRequests {
		seen[t.PullRequests[i].Author] = struct{}{}
	}
	return sortedKeys(seen)
}

// TotalChanges returns lines added plus deleted across the theme.
func (t *Theme) TotalChanges() int {
	n := 0
	for i := range t.PullRequests {
		n += t.PullRequests[i].Additions + t.PullRequests[i].Deletions
	}
	return n
}

// Categorize groups prs into themes. Pull requests inside a theme are
// newest first; themes are largest first, ties by name.
func Categorize(prs []PullRequest, rules ThemeRules) []Theme {
	groups := make(map[string][]PullRequest)
	for i := range prs {
		name := rules.ThemeOf(&prs[i])
		groups[name] = append(groups[name], prs[i])
	}

	themes := make([]Theme, 0, len(groups))
	for name, members := range groups {
		sort.SliceStable(members, func(i, j int) bool {
			return activityTime(&members[i]).After(activityTime(&members[j]))
		})
		t := Theme{Name: name, PullRequests: members}
		t.Description = describeTheme(&t)
		themes = append(themes, t)
	}
	sort.Slice(themes, func(i, j int) bool {
		if themes[i].Count() != themes[j].Count() {
			return themes[i].Count() > themes[j].Count()
		}
		return themes[i].Name < themes[j].Name
	})
	return themes
}

// describeTheme renders e.g. "3 PRs by 2 contributors (1,204 lines changed) in sql, *.md".
func describeTheme(t *Theme) string {
	parts := []string{pluralize(t.Count(), "PR", "PRs")}

	if c := t.Contributors(); len(c) == 1 {
		parts = append(parts, "by "+c[0])
	} else {
		parts = append(parts, fmt.Sprintf("by %d contributors", len(c)))
	}
	if changes := t.TotalChanges(); changes > 0 {
		parts = append(parts, fmt.Sprintf("(%s lines changed)", humanize.Comma(int64(changes))))
	}
	if paths := commonPaths(t.PullRequests); len(paths) > 0 {
		if len(paths) > 2 {
			paths = paths[:2]
		}
		parts = append(parts, "in "+strings.Join(paths, ", "))
	}
	return strings.Join(parts, " ")
}

// commonPaths counts, per pull request, the first directory of each file or
// "*.ext" for root files, and returns the most frequent first.
func commonPaths(prs []PullRequest) []string {
	counts := make(map[string]int)
	for i := range prs {
		seen := make(map[string]struct{})
		for _, f := range prs[i].Files {
			if dir, _, ok := strings.Cut(f.Path, "/"); ok {
				seen[dir] = struct{}{}
			} else if ext := strings.TrimPrefix(path.Ext(f.Path), "."); ext != "" {
				seen["*."+ext] = struct{}{}
			}
		}
		for p := range seen {
			counts[p]++
		}
	}
	return topCounts(counts, 5).Names()
}

// Tally is a name with a count, such as a contributor and their pull requests.
type Tally struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Tallies is a ranked list of tallies.
type Tallies []Tally

// Names returns the names in rank order.
func (ts Tallies) Names() []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Name
	}
	return out
}

// topCounts ranks counts descending, ties by name, and keeps at most n.
func topCounts(counts map[string]int, n int) Tallies {
	out := make(Tallies, 0, len(counts))
	for name, c := range counts {
		out = append(out, Tally{Name: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ActivityStats summarises a set of merged pull requests.
type ActivityStats struct {
	MergedPRs       int     `json:"total_merged_prs"`
	Contributors    int     `json:"total_contributors"`
	Additions       int     `json:"total_additions"`
	Deletions       int     `json:"total_deletions"`
	AveragePRSize   float64 `json:"average_pr_size"`
	TopContributors Tallies `json:"top_contributors"`
	TopDirectories  Tallies `json:"top_directories"`
}

// ComputeStats totals prs. Top lists hold at most five entries; a
// directory is credited with the whole size of each pull request touching it.
func ComputeStats(prs []PullRequest) ActivityStats {
	stats := ActivityStats{MergedPRs: len(prs)}
	if len(prs) == 0 {
		return stats
	}

	authors := make(map[string]int)
	dirs := make(map[string]int)
	for i := range prs {
		pr := &prs[i]
		authors[pr.Author]++
		for _, d := range pr.DirectoryPrefixes() {
			dirs[d] += pr.Additions + pr.Deletions
		}
		stats.Additions += pr.Additions
		stats.Deletions += pr.Deletions
	}
	stats.Contributors = len(authors)
	stats.AveragePRSize = float64(stats.Additions+stats.Deletions) / float64(len(prs))
	stats.TopContributors = topCounts(authors, 5)
	stats.TopDirectories = topCounts(dirs, 5)
	return stats
}

// RootDirectory names files at the repository root in hotspot lists.
const RootDirectory = "<root>"

// Hotspots returns the n directories with the most lines changed, using
// the full parent directory of every file.
func Hotspots(prs []PullRequest, n int) Tallies {
	changes := make(map[string]int)
	for i := range prs {
		for _, f := range prs[i].Files {
			dir := path.Dir(f.Path)
			if dir == "." {
				dir = RootDirectory
			}
			changes[dir] += f.Additions + f.Deletions
		}
	}
	return topCounts(changes, n)
}

// DigestPeriod is the window a digest covers.
type DigestPeriod string

// Digest periods.
const (
	PeriodDaily    DigestPeriod = "daily"
	PeriodBiweekly DigestPeriod = "biweekly"
)

// IsValid returns true if the period is recognised.
func (p DigestPeriod) IsValid() bool {
	return p == PeriodDaily || p == PeriodBiweekly
}

// Days returns the number of calendar days the period covers.
func (p DigestPeriod) Days() int {
	if p == PeriodBiweekly {
		return 14
	}
	return 1
}

// Window returns the first and last day, both inclusive, of the period
// ending on day.
func (p DigestPeriod) Window(day time.Time) (from, to time.Time) {
	to = truncateDay(day)
	return to.AddDate(0, 0, 1-p.Days()), to
}

// Digest is the themed summary of pull requests merged in a window.
type Digest struct {
	Repository string        `json:"repository,omitempty"`
	Period     DigestPeriod  `json:"period"`
	From       time.Time     `json:"from"`
	To         time.Time     `json:"to"`
	Stats      ActivityStats `json:"stats"`
	Themes     []Theme       `json:"themes"`
}

// PullRequests returns every pull request of the digest, newest first.
func (d *Digest) PullRequests() []PullRequest {
	var all []PullRequest
	for i := range d.Themes {
		all = append(all, d.Themes[i].PullRequests...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return activityTime(&all[i]).After(activityTime(&all[j]))
	})
	return all
}

// activityTime is the merge time, or the creation time when unmerged.
func activityTime(pr *PullRequest) time.Time {
	if pr.MergedAt != nil {
		return *pr.MergedAt
	}
	return pr.CreatedAt
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
