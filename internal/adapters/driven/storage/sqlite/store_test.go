package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "data", "delivery.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func day(d int) time.Time {
	return time.Date(2024, 10, d, 12, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

// seed stores three pull requests:
//
//	acme/api#1 alice, merged Oct 2, reviewed by bob, touches src/auth/login.go
//	acme/api#2 bob,   merged Oct 9, reviewed by carol, touches docs/readme.md
//	acme/web#1 alice, open, no files, no embedding
func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	prs := []struct {
		pr  domain.PullRequest
		vec []float32
	}{
		{domain.PullRequest{
			Repository: "acme/api", Number: 1, Title: "Add login", Body: "OAuth flow",
			State: domain.PRStateMerged, Author: "alice", CreatedAt: day(1), UpdatedAt: day(2),
			MergedAt: ptr(day(2)), ClosedAt: ptr(day(2)), Additions: 30, Deletions: 5, ChangedFiles: 1,
			Reviews: []domain.Review{{ID: 11, Author: "bob", State: domain.ReviewApproved, SubmittedAt: day(2)}},
			Files:   []domain.FileChange{{Path: "src/auth/login.go", Status: "added", Additions: 30, Deletions: 5}},
			Labels:  []string{"security", "feature"},
		}, []float32{1, 0}},
		{domain.PullRequest{
			Repository: "acme/api", Number: 2, Title: "Docs", State: domain.PRStateMerged, Author: "bob",
			CreatedAt: day(8), UpdatedAt: day(9), MergedAt: ptr(day(9)), ClosedAt: ptr(day(9)),
			Reviews: []domain.Review{{ID: 21, Author: "Carol", State: domain.ReviewCommented, SubmittedAt: day(9)}},
			Files:   []domain.FileChange{{Path: "docs/readme.md", Status: "modified"}},
		}, []float32{0, 1}},
		{domain.PullRequest{
			Repository: "acme/web", Number: 1, Title: "Draft UI", State: domain.PRStateOpen, Author: "alice",
			CreatedAt: day(10), UpdatedAt: day(10), Draft: true,
		}, nil},
	}
	for _, p := range prs {
		require.NoError(t, s.Upsert(ctx, &p.pr, p.vec))
	}
}

func keysOf(prs []domain.PullRequest) []domain.RecordKey {
	out := make([]domain.RecordKey, len(prs))
	for i := range prs {
		out[i] = prs[i].Key()
	}
	return out
}

func TestNewStore_CreatesDirectoryAndMigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "delivery.db")

	first, err := NewStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, first.Path())
	require.NoError(t, first.Close())

	second, err := NewStore(path)
	require.NoError(t, err)
	defer second.Close()

	var n int
	require.NoError(t, second.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestNewStore_EmptyPath(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)
}

func TestStore_UpsertAndGetByIdentifier(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)
	ctx := context.Background()

	pr, err := s.GetByIdentifier(ctx, domain.RecordKey{Repository: "acme/api", Number: 1})

	require.NoError(t, err)
	assert.Equal(t, "Add login", pr.Title)
	assert.Equal(t, domain.PRStateMerged, pr.State)
	require.NotNil(t, pr.MergedAt)
	assert.True(t, pr.MergedAt.Equal(day(2)))
	assert.Equal(t, 30, pr.Additions)
	assert.Nil(t, pr.Reviews, "summary rows carry no details")

	web, err := s.GetByIdentifier(ctx, domain.RecordKey{Repository: "acme/web", Number: 1})
	require.NoError(t, err)
	assert.True(t, web.Draft)
	assert.Nil(t, web.MergedAt)
}

func TestStore_GetByIdentifier_AnyRepositoryPrefersNewest(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)

	pr, err := s.GetByIdentifier(context.Background(), domain.RecordKey{Number: 1})

	require.NoError(t, err)
	assert.Equal(t, "acme/web", pr.Repository)
}

func TestStore_GetByIdentifier_NotFound(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)

	_, err := s.GetByIdentifier(context.Background(), domain.RecordKey{Repository: "acme/api", Number: 99})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Query(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)

	api1 := domain.RecordKey{Repository: "acme/api", Number: 1}
	api2 := domain.RecordKey{Repository: "acme/api", Number: 2}
	web1 := domain.RecordKey{Repository: "acme/web", Number: 1}

	tests := []struct {
		name   string
		filter domain.RecordFilter
		limit  int
		want   []domain.RecordKey
	}{
		{"no filter newest first", domain.RecordFilter{}, 0, []domain.RecordKey{web1, api2, api1}},
		{"limit", domain.RecordFilter{}, 2, []domain.RecordKey{web1, api2}},
		{"repository", domain.RecordFilter{Repository: "acme/api"}, 0, []domain.RecordKey{api2, api1}},
		{"author case-insensitive", domain.RecordFilter{Author: "ALICE"}, 0, []domain.RecordKey{web1, api1}},
		{"reviewer", domain.RecordFilter{Reviewer: "carol"}, 0, []domain.RecordKey{api2}},
		{"merged range inclusive end", domain.RecordFilter{MergedFrom: day(2).Truncate(24 * time.Hour), MergedTo: day(9).Truncate(24 * time.Hour)}, 0, []domain.RecordKey{api2, api1}},
		{"merged from", domain.RecordFilter{MergedFrom: time.Date(2024, 10, 5, 0, 0, 0, 0, time.UTC)}, 0, []domain.RecordKey{api2}},
		{"merged to excludes open", domain.RecordFilter{MergedTo: time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC)}, 0, []domain.RecordKey{api2, api1}},
		{"file path", domain.RecordFilter{FilePath: "src/auth/login.go"}, 0, []domain.RecordKey{api1}},
		{"directory prefix", domain.RecordFilter{DirectoryPrefix: "src/"}, 0, []domain.RecordKey{api1}},
		{"directory prefix is case-sensitive", domain.RecordFilter{DirectoryPrefix: "SRC/"}, 0, []domain.RecordKey{}},
		{"directory prefix is not a substring", domain.RecordFilter{DirectoryPrefix: "auth/"}, 0, []domain.RecordKey{}},
		{"combined", domain.RecordFilter{Author: "alice", Reviewer: "bob", DirectoryPrefix: "src/"}, 0, []domain.RecordKey{api1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(context.Background(), tt.filter, tt.limit)

			require.NoError(t, err)
			assert.Equal(t, tt.want, keysOf(got))
		})
	}
}

func TestStore_Query_FilterValuesAreBound(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)

	got, err := s.Query(context.Background(), domain.RecordFilter{Author: "alice' OR '1'='1"}, 0)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_SimilarityQuery(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)
	ctx := context.Background()

	got, err := s.SimilarityQuery(ctx, []float32{1, 0.1}, domain.RecordFilter{}, 10)

	require.NoError(t, err)
	require.Len(t, got, 2, "records without embeddings are skipped")
	assert.Equal(t, 1, got[0].Number)
	assert.True(t, got[0].Scored)
	assert.Greater(t, got[0].Similarity, got[1].Similarity)
	assert.LessOrEqual(t, got[0].Similarity, 1.0)

	filtered, err := s.SimilarityQuery(ctx, []float32{1, 0}, domain.RecordFilter{Author: "bob"}, 10)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, 2, filtered[0].Number)

	limited, err := s.SimilarityQuery(ctx, []float32{1, 0}, domain.RecordFilter{}, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_SimilarityQuery_DimensionMismatch(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)

	_, err := s.SimilarityQuery(context.Background(), []float32{1, 0, 0}, domain.RecordFilter{}, 10)

	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestStore_GetMany_KeepsOrderAndSkipsMissing(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)

	keys := []domain.RecordKey{
		{Repository: "acme/web", Number: 1},
		{Repository: "acme/api", Number: 42},
		{Repository: "acme/api", Number: 1},
	}
	got, err := s.GetMany(context.Background(), keys)

	require.NoError(t, err)
	assert.Equal(t, []domain.RecordKey{keys[0], keys[2]}, keysOf(got))
}

func TestStore_Details(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)
	ctx := context.Background()
	key := domain.RecordKey{Repository: "acme/api", Number: 1}

	reviews, err := s.Reviews(ctx, key)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "bob", reviews[0].Author)
	assert.Equal(t, domain.ReviewApproved, reviews[0].State)
	assert.True(t, reviews[0].SubmittedAt.Equal(day(2)))

	files, err := s.Files(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []domain.FileChange{{Path: "src/auth/login.go", Status: "added", Additions: 30, Deletions: 5}}, files)

	labels, err := s.Labels(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"feature", "security"}, labels)

	_, err = s.Labels(ctx, domain.RecordKey{Repository: "acme/api", Number: 7})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_UpsertReplacesChildRowsAndEmbedding(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)
	ctx := context.Background()

	updated := domain.PullRequest{
		Repository: "acme/api", Number: 1, Title: "Add login (v2)", State: domain.PRStateMerged,
		Author: "alice", CreatedAt: day(1), UpdatedAt: day(3), MergedAt: ptr(day(2)),
		Files: []domain.FileChange{{Path: "src/auth/session.go", Status: "added"}},
	}
	require.NoError(t, s.Upsert(ctx, &updated, nil))

	pr, err := s.GetByIdentifier(ctx, updated.Key())
	require.NoError(t, err)
	assert.Equal(t, "Add login (v2)", pr.Title)

	files, err := s.Files(ctx, updated.Key())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "src/auth/session.go", files[0].Path)

	reviews, err := s.Reviews(ctx, updated.Key())
	require.NoError(t, err)
	assert.Empty(t, reviews)

	scored, err := s.SimilarityQuery(ctx, []float32{1, 0}, domain.RecordFilter{Repository: "acme/api"}, 10)
	require.NoError(t, err)
	assert.Len(t, scored, 1, "nil embedding clears the stored vector")

	n, err := s.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_Count(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)

	seed(t, s)
	n, err = s.Count(ctx, "acme/api")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFloat32Roundtrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3}

	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}
