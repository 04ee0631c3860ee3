package domain

import (
	"fmt"
	"math"
	"sort"
)

// Route names the branch of the routing table a plan took.
type Route string

// Routes in evaluation order.
const (
	RouteLookup     Route = "lookup"
	RouteStructured Route = "structured"
	RouteSemantic   Route = "semantic"
	RouteHybrid     Route = "hybrid"
)

// ScoredRecord is a retrieved pull request with its similarity score.
// Scored is false for lookup and structured routes, where Similarity is unused.
type ScoredRecord struct {
	PullRequest
	Similarity float64 `json:"similarity,omitempty"`
	Scored     bool    `json:"-"`
}

// RetrievalResult is the ordered outcome of executing a plan.
// Records is never nil; an empty slice means nothing matched.
type RetrievalResult struct {
	Route   Route          `json:"route"`
	Records []ScoredRecord `json:"records"`
}

// NewRetrievalResult builds a result, replacing a nil slice with an empty one.
func NewRetrievalResult(route Route, records []ScoredRecord) RetrievalResult {
	if records == nil {
		records = []ScoredRecord{}
	}
	return RetrievalResult{Route: route, Records: records}
}

// IsEmpty reports whether no records matched.
func (r RetrievalResult) IsEmpty() bool {
	return len(r.Records) == 0
}

// Keys returns the record keys in result order.
func (r RetrievalResult) Keys() []RecordKey {
	keys := make([]RecordKey, len(r.Records))
	for i := range r.Records {
		keys[i] = r.Records[i].Key()
	}
	return keys
}

// SimilarityFromCosineDistance maps a cosine distance in [0,2] to a similarity
// in [0,1] where 1 is identical. Out-of-range inputs are clamped.
func SimilarityFromCosineDistance(d float64) float64 {
	s := 1 - d/2
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

// CosineDistance returns 1 - cos(a, b), in [0,2]. Vectors of different
// length are an error; a zero vector is at distance 1 from everything.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1, nil
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}

// SortBySimilarity orders records by similarity descending, then by creation
// time descending, then by key so the order is total.
func SortBySimilarity(records []ScoredRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Similarity != records[j].Similarity {
			return records[i].Similarity > records[j].Similarity
		}
		return newerFirst(&records[i].PullRequest, &records[j].PullRequest)
	})
}

// SortByRecency orders records by creation time descending.
func SortByRecency(records []ScoredRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return newerFirst(&records[i].PullRequest, &records[j].PullRequest)
	})
}

func newerFirst(a, b *PullRequest) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	if a.Repository != b.Repository {
		return a.Repository < b.Repository
	}
	return a.Number > b.Number
}
