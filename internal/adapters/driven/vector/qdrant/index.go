// Package qdrant implements the VectorIndex port on a Qdrant server.
package qdrant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

const (
	// DefaultHost is the default Qdrant host.
	DefaultHost = "localhost"

	// DefaultPort is the default Qdrant gRPC port.
	DefaultPort = 6334

	// DefaultCollection holds one point per pull request.
	DefaultCollection = "pull_requests"

	// DefaultTimeout bounds each operation.
	DefaultTimeout = 30 * time.Second
)

// Payload keys. Author and reviewers are stored lowercased.
const (
	fieldRepo      = "repo_name"
	fieldNumber    = "number"
	fieldAuthor    = "author"
	fieldReviewers = "reviewers"
	fieldMergedAt  = "merged_at"
	fieldFiles     = "files"
	fieldDirs      = "dirs"
)

// Config holds configuration for the Qdrant index.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Timeout    time.Duration
}

// Index stores pull request embeddings in a Qdrant collection. The
// collection is created on first upsert, sized to that embedding.
type Index struct {
	client     *qdrant.Client
	collection string
	timeout    time.Duration

	mu    sync.Mutex
	ready bool
}

// New connects to Qdrant. The connection is established lazily.
func New(cfg Config) (*Index, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Host,
		Port:                   cfg.Port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Index{
		client:     client,
		collection: cfg.Collection,
		timeout:    cfg.Timeout,
	}, nil
}

// Upsert stores the embedding of pr with the payload needed for filtering.
func (x *Index) Upsert(ctx context.Context, pr *domain.PullRequest, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("upsert %s: empty embedding", pr.Key())
	}

	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	if err := x.ensureCollection(ctx, uint64(len(embedding))); err != nil {
		return err
	}

	_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(PointID(pr.Key())),
			Vectors: qdrant.NewVectorsDense(embedding),
			Payload: qdrant.NewValueMap(payloadFor(pr)),
		}},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", pr.Key(), err)
	}
	return nil
}

// Search returns up to k hits matching filter, nearest first.
func (x *Index) Search(
	ctx context.Context, query []float32, filter domain.RecordFilter, k int,
) ([]driven.VectorHit, error) {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	points, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.collection,
		Query:          qdrant.NewQueryDense(query),
		Filter:         buildFilter(filter),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	hits := make([]driven.VectorHit, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		hits = append(hits, driven.VectorHit{
			Key: domain.RecordKey{
				Repository: getStringValue(payload, fieldRepo),
				Number:     getIntValue(payload, fieldNumber),
			},
			// Qdrant reports cosine similarity; convert via distance.
			Similarity: domain.SimilarityFromCosineDistance(1 - float64(p.GetScore())),
		})
	}
	return hits, nil
}

// Close closes the client connection.
func (x *Index) Close() error {
	return x.client.Close()
}

// ensureCollection creates the collection and its payload indexes once.
func (x *Index) ensureCollection(ctx context.Context, size uint64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.ready {
		return nil
	}

	exists, err := x.client.CollectionExists(ctx, x.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		err := x.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: x.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     size,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection %s: %w", x.collection, err)
		}
	}

	indexes := []struct {
		field  string
		schema qdrant.FieldType
	}{
		{fieldRepo, qdrant.FieldType_FieldTypeKeyword},
		{fieldAuthor, qdrant.FieldType_FieldTypeKeyword},
		{fieldReviewers, qdrant.FieldType_FieldTypeKeyword},
		{fieldFiles, qdrant.FieldType_FieldTypeKeyword},
		{fieldDirs, qdrant.FieldType_FieldTypeKeyword},
		{fieldMergedAt, qdrant.FieldType_FieldTypeInteger},
	}
	for _, idx := range indexes {
		_, err := x.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: x.collection,
			FieldName:      idx.field,
			FieldType:      qdrant.PtrOf(idx.schema),
		})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create index on %s: %w", idx.field, err)
		}
	}

	x.ready = true
	return nil
}

// PointID derives a stable point UUID from a record key.
func PointID(key domain.RecordKey) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key.String())).String()
}

func payloadFor(pr *domain.PullRequest) map[string]any {
	reviewers := make([]any, 0, len(pr.Reviews))
	seen := make(map[string]struct{})
	for _, r := range pr.Reviewers() {
		lc := strings.ToLower(r)
		if _, ok := seen[lc]; !ok {
			seen[lc] = struct{}{}
			reviewers = append(reviewers, lc)
		}
	}

	files := make([]any, 0, len(pr.Files))
	dirs := make([]any, 0)
	clear(seen)
	for _, f := range pr.Files {
		files = append(files, f.Path)
		for _, d := range directories(f.Path) {
			if _, ok := seen[d]; !ok {
				seen[d] = struct{}{}
				dirs = append(dirs, d)
			}
		}
	}

	payload := map[string]any{
		fieldRepo:      pr.Repository,
		fieldNumber:    int64(pr.Number),
		fieldAuthor:    strings.ToLower(pr.Author),
		fieldReviewers: reviewers,
		fieldFiles:     files,
		fieldDirs:      dirs,
	}
	if pr.MergedAt != nil {
		payload[fieldMergedAt] = pr.MergedAt.Unix()
	}
	return payload
}

// directories returns every ancestor directory of path with a trailing
// slash: "a/b/c.go" gives "a/" and "a/b/".
func directories(path string) []string {
	var out []string
	for i, r := range path {
		if r == '/' {
			out = append(out, path[:i+1])
		}
	}
	return out
}

// buildFilter converts filter into Qdrant conditions. The directory
// prefix is normalized to end in "/" so it matches the stored dirs
// keywords exactly.
func buildFilter(filter domain.RecordFilter) *qdrant.Filter {
	var conditions []*qdrant.Condition
	keyword := func(key, value string) {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: key,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: value},
					},
				},
			},
		})
	}

	if filter.Repository != "" {
		keyword(fieldRepo, filter.Repository)
	}
	if filter.Author != "" {
		keyword(fieldAuthor, strings.ToLower(filter.Author))
	}
	if filter.Reviewer != "" {
		keyword(fieldReviewers, strings.ToLower(filter.Reviewer))
	}
	if filter.FilePath != "" {
		keyword(fieldFiles, filter.FilePath)
	}
	if filter.DirectoryPrefix != "" {
		keyword(fieldDirs, domain.NormalizeDirectory(filter.DirectoryPrefix))
	}
	if !filter.MergedFrom.IsZero() || !filter.MergedTo.IsZero() {
		r := &qdrant.Range{}
		if !filter.MergedFrom.IsZero() {
			r.Gte = qdrant.PtrOf(float64(filter.MergedFrom.Unix()))
		}
		if !filter.MergedTo.IsZero() {
			r.Lt = qdrant.PtrOf(float64(filter.MergedBefore().Unix()))
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{Key: fieldMergedAt, Range: r},
			},
		})
	}

	if len(conditions) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: conditions}
}

func getStringValue(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		if sv, ok := v.GetKind().(*qdrant.Value_StringValue); ok {
			return sv.StringValue
		}
	}
	return ""
}

func getIntValue(payload map[string]*qdrant.Value, key string) int {
	if v, ok := payload[key]; ok {
		if iv, ok := v.GetKind().(*qdrant.Value_IntegerValue); ok {
			return int(iv.IntegerValue)
		}
	}
	return 0
}
