package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// QueryType selects how a plan is executed.
type QueryType string

// Available query types. The set is closed.
const (
	// QueryTypeStructured filters on metadata only (author, reviewer, dates, paths).
	QueryTypeStructured QueryType = "structured"

	// QueryTypeSemantic ranks records by embedding similarity to free text.
	QueryTypeSemantic QueryType = "semantic"

	// QueryTypeHybrid filters on metadata first, then ranks the survivors by similarity.
	QueryTypeHybrid QueryType = "hybrid"
)

// Plan defaults and bounds.
const (
	DefaultLimit = 10
	MaxLimit     = 100

	// DateLayout is the wire format of plan dates.
	DateLayout = "2006-01-02"
)

// ParseQueryType converts a wire value into a QueryType.
// Values are matched exactly; there is no case folding.
func ParseQueryType(s string) (QueryType, error) {
	t := QueryType(s)
	if !t.IsValid() {
		return "", PlanValidationError("unknown query_type %q", s)
	}
	return t, nil
}

// IsValid returns true if the query type is recognised.
func (t QueryType) IsValid() bool {
	switch t {
	case QueryTypeStructured, QueryTypeSemantic, QueryTypeHybrid:
		return true
	default:
		return false
	}
}

// String returns the wire representation.
func (t QueryType) String() string {
	return string(t)
}

// Label returns the upper-case display name (STRUCTURED, SEMANTIC, HYBRID).
func (t QueryType) Label() string {
	return strings.ToUpper(string(t))
}

// UsesEmbedding reports whether executing this type requires a query vector.
func (t QueryType) UsesEmbedding() bool {
	return t == QueryTypeSemantic || t == QueryTypeHybrid
}

// QueryPlan is the structured retrieval intent derived from a question.
// Zero values mean "not set" for every optional field.
type QueryPlan struct {
	QueryType QueryType

	Author   string
	Reviewer string

	// StartDate and EndDate are inclusive calendar days in UTC.
	StartDate time.Time
	EndDate   time.Time

	FilePath        string
	DirectoryPrefix string

	SemanticQuery string

	// RecordIdentifier is a pull request number. When set it short-circuits
	// every other filter.
	RecordIdentifier int

	// RepoName scopes the plan to one owner/repo.
	RepoName string

	Limit int
}

// HasDateRange reports whether either date bound is set.
func (p QueryPlan) HasDateRange() bool {
	return !p.StartDate.IsZero() || !p.EndDate.IsZero()
}

// HasStructuredFilter reports whether at least one metadata filter is set.
// The repository scope alone does not count: it narrows every plan.
func (p QueryPlan) HasStructuredFilter() bool {
	return p.Author != "" ||
		p.Reviewer != "" ||
		p.HasDateRange() ||
		p.FilePath != "" ||
		p.DirectoryPrefix != "" ||
		p.RecordIdentifier > 0
}

// Normalize canonicalises identities and paths and applies the default
// limit. Out-of-range limits are left for Validate to reject.
func (p QueryPlan) Normalize() QueryPlan {
	p.Author = NormalizeLogin(p.Author)
	p.Reviewer = NormalizeLogin(p.Reviewer)
	p.FilePath = strings.TrimPrefix(strings.TrimSpace(p.FilePath), "./")
	p.DirectoryPrefix = NormalizeDirectory(p.DirectoryPrefix)
	p.SemanticQuery = strings.TrimSpace(p.SemanticQuery)
	p.RepoName = strings.TrimSpace(p.RepoName)
	if !p.StartDate.IsZero() {
		p.StartDate = truncateDay(p.StartDate)
	}
	if !p.EndDate.IsZero() {
		p.EndDate = truncateDay(p.EndDate)
	}
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	return p
}

// Validate checks the plan invariants. Every failure matches ErrPlanValidation.
func (p QueryPlan) Validate() error {
	if !p.QueryType.IsValid() {
		return PlanValidationError("unknown query_type %q", string(p.QueryType))
	}
	if p.Limit <= 0 {
		return PlanValidationError("limit must be positive, got %d", p.Limit)
	}
	if p.Limit > MaxLimit {
		return PlanValidationError("limit must be at most %d, got %d", MaxLimit, p.Limit)
	}
	if p.RecordIdentifier < 0 {
		return PlanValidationError("record_identifier must be positive, got %d", p.RecordIdentifier)
	}
	if !p.StartDate.IsZero() && !p.EndDate.IsZero() && p.StartDate.After(p.EndDate) {
		return PlanValidationError("start_date %s is after end_date %s",
			p.StartDate.Format(DateLayout), p.EndDate.Format(DateLayout))
	}
	if !p.HasStructuredFilter() && p.SemanticQuery == "" {
		return PlanValidationError("plan has no filters and no semantic query")
	}

	switch p.QueryType {
	case QueryTypeStructured:
		if !p.HasStructuredFilter() {
			return PlanValidationError("structured plan requires at least one filter")
		}
	case QueryTypeSemantic, QueryTypeHybrid:
		if p.SemanticQuery == "" && p.RecordIdentifier == 0 {
			return PlanValidationError("%s plan requires semantic_query", p.QueryType)
		}
	}
	return nil
}

// Filter returns the record predicates this plan applies.
// Semantic plans only keep the repository scope.
func (p QueryPlan) Filter() RecordFilter {
	if p.QueryType == QueryTypeSemantic {
		return RecordFilter{Repository: p.RepoName}
	}
	return RecordFilter{
		Repository:      p.RepoName,
		Author:          p.Author,
		Reviewer:        p.Reviewer,
		MergedFrom:      p.StartDate,
		MergedTo:        p.EndDate,
		FilePath:        p.FilePath,
		DirectoryPrefix: p.DirectoryPrefix,
	}
}

// String summarises the set fields for logs.
func (p QueryPlan) String() string {
	parts := []string{p.QueryType.Label()}
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("repo", p.RepoName)
	add("author", p.Author)
	add("reviewer", p.Reviewer)
	if !p.StartDate.IsZero() {
		add("start", p.StartDate.Format(DateLayout))
	}
	if !p.EndDate.IsZero() {
		add("end", p.EndDate.Format(DateLayout))
	}
	add("file", p.FilePath)
	add("dir", p.DirectoryPrefix)
	if p.RecordIdentifier > 0 {
		add("number", fmt.Sprint(p.RecordIdentifier))
	}
	if p.SemanticQuery != "" {
		add("semantic", fmt.Sprintf("%q", p.SemanticQuery))
	}
	add("limit", fmt.Sprint(p.Limit))
	return strings.Join(parts, " ")
}

// planWire is the JSON form exchanged with the language model and shown to users.
// Pointers distinguish absent and null from empty values.
type planWire struct {
	QueryType        *string `json:"query_type"`
	Author           *string `json:"author,omitempty"`
	Reviewer         *string `json:"reviewer,omitempty"`
	StartDate        *string `json:"start_date,omitempty"`
	EndDate          *string `json:"end_date,omitempty"`
	FilePath         *string `json:"file_path,omitempty"`
	DirectoryPrefix  *string `json:"directory_prefix,omitempty"`
	SemanticQuery    *string `json:"semantic_query,omitempty"`
	RecordIdentifier *int    `json:"record_identifier,omitempty"`
	RepoName         *string `json:"repo_name,omitempty"`
	Limit            *int    `json:"limit,omitempty"`
}

// MarshalJSON encodes the plan in its wire form.
func (p QueryPlan) MarshalJSON() ([]byte, error) {
	w := planWire{
		QueryType:       optString(string(p.QueryType)),
		Author:          optString(p.Author),
		Reviewer:        optString(p.Reviewer),
		FilePath:        optString(p.FilePath),
		DirectoryPrefix: optString(p.DirectoryPrefix),
		SemanticQuery:   optString(p.SemanticQuery),
		RepoName:        optString(p.RepoName),
	}
	if !p.StartDate.IsZero() {
		w.StartDate = optString(p.StartDate.Format(DateLayout))
	}
	if !p.EndDate.IsZero() {
		w.EndDate = optString(p.EndDate.Format(DateLayout))
	}
	if p.RecordIdentifier != 0 {
		id := p.RecordIdentifier
		w.RecordIdentifier = &id
	}
	if p.Limit != 0 {
		limit := p.Limit
		w.Limit = &limit
	}
	return json.Marshal(w)
}

// UnmarshalJSON strictly decodes the wire form. Unknown fields, wrong types,
// unknown query types and malformed dates are rejected; nothing is coerced.
// An absent or null query_type decodes to the empty QueryType so that callers
// can apply their own resolution.
func (p *QueryPlan) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w planWire
	if err := dec.Decode(&w); err != nil {
		return PlanValidationError("decode plan: %v", err)
	}
	if dec.More() {
		return PlanValidationError("unexpected data after plan object")
	}

	var plan QueryPlan
	if w.QueryType != nil {
		qt, err := ParseQueryType(*w.QueryType)
		if err != nil {
			return err
		}
		plan.QueryType = qt
	}

	var err error
	if plan.StartDate, err = parseDate("start_date", w.StartDate); err != nil {
		return err
	}
	if plan.EndDate, err = parseDate("end_date", w.EndDate); err != nil {
		return err
	}

	plan.Author = deref(w.Author)
	plan.Reviewer = deref(w.Reviewer)
	plan.FilePath = deref(w.FilePath)
	plan.DirectoryPrefix = deref(w.DirectoryPrefix)
	plan.SemanticQuery = deref(w.SemanticQuery)
	plan.RepoName = deref(w.RepoName)
	if w.RecordIdentifier != nil {
		if *w.RecordIdentifier <= 0 {
			return PlanValidationError("record_identifier must be positive, got %d", *w.RecordIdentifier)
		}
		plan.RecordIdentifier = *w.RecordIdentifier
	}
	if w.Limit != nil {
		if *w.Limit <= 0 {
			return PlanValidationError("limit must be positive, got %d", *w.Limit)
		}
		plan.Limit = *w.Limit
	}

	*p = plan
	return nil
}

// ParseQueryPlan strictly decodes a plan from its wire form.
// Unlike json.Unmarshal, syntax errors are reported as plan validation failures.
func ParseQueryPlan(data []byte) (QueryPlan, error) {
	var p QueryPlan
	if err := p.UnmarshalJSON(data); err != nil {
		return QueryPlan{}, err
	}
	return p, nil
}

// NormalizeLogin lowercases a user login and strips a leading @.
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(login), "@"))
}

// NormalizeDirectory returns dir relative to the repository root with a trailing slash.
func NormalizeDirectory(dir string) string {
	dir = strings.TrimSpace(dir)
	dir = strings.TrimPrefix(dir, "./")
	dir = strings.TrimLeft(dir, "/")
	if dir == "" {
		return ""
	}
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return dir
}

func parseDate(field string, v *string) (time.Time, error) {
	if v == nil || *v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, *v)
	if err != nil {
		return time.Time{}, PlanValidationError("malformed %s %q: want YYYY-MM-DD", field, *v)
	}
	return t, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
