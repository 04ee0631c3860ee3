package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

// prColumns is the select list scanned by scanPullRequest.
const prColumns = `pr.repo_name, pr.number, pr.title, pr.body, pr.state, pr.author, pr.html_url,
	pr.created_at, pr.updated_at, pr.merged_at, pr.closed_at, pr.base_branch, pr.head_branch,
	pr.additions, pr.deletions, pr.changed_files, pr.draft`

// newestFirst matches domain ordering: created_at desc, then key.
const newestFirst = ` ORDER BY pr.created_at DESC, pr.repo_name ASC, pr.number DESC`

// whereClause renders filter as an AND-ed WHERE clause. Every value is a
// bound parameter.
func whereClause(filter domain.RecordFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Repository != "" {
		conds = append(conds, "pr.repo_name = ?")
		args = append(args, filter.Repository)
	}
	if filter.Author != "" {
		conds = append(conds, "pr.author = ? COLLATE NOCASE")
		args = append(args, filter.Author)
	}
	if filter.Reviewer != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM reviews r
			WHERE r.repo_name = pr.repo_name AND r.number = pr.number AND r.author = ? COLLATE NOCASE)`)
		args = append(args, filter.Reviewer)
	}
	if !filter.MergedFrom.IsZero() {
		conds = append(conds, "pr.merged_at >= ?")
		args = append(args, filter.MergedFrom.Unix())
	}
	if !filter.MergedTo.IsZero() {
		conds = append(conds, "pr.merged_at < ?")
		args = append(args, filter.MergedBefore().Unix())
	}
	if filter.FilePath != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM files f
			WHERE f.repo_name = pr.repo_name AND f.number = pr.number AND f.path = ?)`)
		args = append(args, filter.FilePath)
	}
	if filter.DirectoryPrefix != "" {
		// instr is case-sensitive and needs no LIKE escaping.
		conds = append(conds, `EXISTS (SELECT 1 FROM files f
			WHERE f.repo_name = pr.repo_name AND f.number = pr.number AND instr(f.path, ?) = 1)`)
		args = append(args, filter.DirectoryPrefix)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Query returns pull requests matching filter, newest first.
func (s *Store) Query(ctx context.Context, filter domain.RecordFilter, limit int) ([]domain.PullRequest, error) {
	where, args := whereClause(filter)
	query := "SELECT " + prColumns + " FROM pull_requests pr" + where + newestFirst
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pull requests: %w", err)
	}
	defer rows.Close()

	var out []domain.PullRequest
	for rows.Next() {
		pr, err := scanPullRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *pr)
	}
	return out, rows.Err()
}

// SimilarityQuery restricts candidates with filter in SQL, then ranks them
// by cosine similarity in process.
func (s *Store) SimilarityQuery(
	ctx context.Context, vector []float32, filter domain.RecordFilter, limit int,
) ([]domain.ScoredRecord, error) {
	where, args := whereClause(filter)
	if where == "" {
		where = " WHERE pr.embedding IS NOT NULL"
	} else {
		where += " AND pr.embedding IS NOT NULL"
	}
	query := "SELECT " + prColumns + ", pr.embedding FROM pull_requests pr" + where

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoredRecord
	for rows.Next() {
		var blob []byte
		pr, err := scanPullRequest(rows, &blob)
		if err != nil {
			return nil, err
		}
		d, err := domain.CosineDistance(vector, bytesToFloat32Slice(blob))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pr.Key(), err)
		}
		out = append(out, domain.ScoredRecord{
			PullRequest: *pr,
			Similarity:  domain.SimilarityFromCosineDistance(d),
			Scored:      true,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	domain.SortBySimilarity(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetByIdentifier returns one pull request. Without a repository the most
// recently created pull request with that number wins.
func (s *Store) GetByIdentifier(ctx context.Context, key domain.RecordKey) (*domain.PullRequest, error) {
	var row *sql.Row
	if key.Repository != "" {
		row = s.db.QueryRowContext(ctx,
			"SELECT "+prColumns+" FROM pull_requests pr WHERE pr.repo_name = ? AND pr.number = ?",
			key.Repository, key.Number)
	} else {
		row = s.db.QueryRowContext(ctx,
			"SELECT "+prColumns+" FROM pull_requests pr WHERE pr.number = ?"+newestFirst+" LIMIT 1",
			key.Number)
	}

	pr, err := scanPullRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return pr, nil
}

// GetMany returns the pull requests for keys in input order.
func (s *Store) GetMany(ctx context.Context, keys []domain.RecordKey) ([]domain.PullRequest, error) {
	out := make([]domain.PullRequest, 0, len(keys))
	for _, key := range keys {
		pr, err := s.GetByIdentifier(ctx, key)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *pr)
	}
	return out, nil
}

// Reviews returns the reviews of a pull request, oldest first.
func (s *Store) Reviews(ctx context.Context, key domain.RecordKey) ([]domain.Review, error) {
	if err := s.exists(ctx, key); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT review_id, author, state, body, submitted_at FROM reviews
		WHERE repo_name = ? AND number = ?
		ORDER BY submitted_at ASC, review_id ASC`, key.Repository, key.Number)
	if err != nil {
		return nil, fmt.Errorf("querying reviews: %w", err)
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var (
			r         domain.Review
			state     string
			submitted int64
		)
		if err := rows.Scan(&r.ID, &r.Author, &state, &r.Body, &submitted); err != nil {
			return nil, fmt.Errorf("scanning review: %w", err)
		}
		r.State = domain.ReviewState(state)
		r.SubmittedAt = fromUnix(submitted)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Files returns the changed files of a pull request, by path.
func (s *Store) Files(ctx context.Context, key domain.RecordKey) ([]domain.FileChange, error) {
	if err := s.exists(ctx, key); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, status, additions, deletions FROM files
		WHERE repo_name = ? AND number = ?
		ORDER BY path ASC`, key.Repository, key.Number)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	var out []domain.FileChange
	for rows.Next() {
		var f domain.FileChange
		if err := rows.Scan(&f.Path, &f.Status, &f.Additions, &f.Deletions); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Labels returns the labels of a pull request, sorted.
func (s *Store) Labels(ctx context.Context, key domain.RecordKey) ([]string, error) {
	if err := s.exists(ctx, key); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM labels WHERE repo_name = ? AND number = ? ORDER BY name ASC",
		key.Repository, key.Number)
	if err != nil {
		return nil, fmt.Errorf("querying labels: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning label: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) exists(ctx context.Context, key domain.RecordKey) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM pull_requests WHERE repo_name = ? AND number = ?",
		key.Repository, key.Number).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// Upsert replaces a pull request and all of its child rows in one
// transaction. A nil embedding clears any stored vector.
func (s *Store) Upsert(ctx context.Context, pr *domain.PullRequest, embedding []float32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pull_requests (repo_name, number, title, body, state, author, html_url,
			created_at, updated_at, merged_at, closed_at, base_branch, head_branch,
			additions, deletions, changed_files, draft, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_name, number) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			state = excluded.state,
			author = excluded.author,
			html_url = excluded.html_url,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			merged_at = excluded.merged_at,
			closed_at = excluded.closed_at,
			base_branch = excluded.base_branch,
			head_branch = excluded.head_branch,
			additions = excluded.additions,
			deletions = excluded.deletions,
			changed_files = excluded.changed_files,
			draft = excluded.draft,
			embedding = excluded.embedding
	`, pr.Repository, pr.Number, pr.Title, pr.Body, string(pr.State), pr.Author, pr.HTMLURL,
		pr.CreatedAt.Unix(), pr.UpdatedAt.Unix(), nullUnix(pr.MergedAt), nullUnix(pr.ClosedAt),
		pr.BaseBranch, pr.HeadBranch, pr.Additions, pr.Deletions, pr.ChangedFiles, pr.Draft,
		float32SliceToBytes(embedding))
	if err != nil {
		return fmt.Errorf("upserting %s: %w", pr.Key(), err)
	}

	for _, table := range []string{"reviews", "files", "labels"} {
		//nolint:gosec // table names are constants
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE repo_name = ? AND number = ?",
			pr.Repository, pr.Number); err != nil {
			return fmt.Errorf("clearing %s of %s: %w", table, pr.Key(), err)
		}
	}

	for _, r := range pr.Reviews {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO reviews (repo_name, number, review_id, author, state, body, submitted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			pr.Repository, pr.Number, r.ID, r.Author, string(r.State), r.Body, r.SubmittedAt.Unix()); err != nil {
			return fmt.Errorf("inserting review of %s: %w", pr.Key(), err)
		}
	}
	for _, f := range pr.Files {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO files (repo_name, number, path, status, additions, deletions)
			VALUES (?, ?, ?, ?, ?, ?)`,
			pr.Repository, pr.Number, f.Path, f.Status, f.Additions, f.Deletions); err != nil {
			return fmt.Errorf("inserting file of %s: %w", pr.Key(), err)
		}
	}
	for _, l := range pr.Labels {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO labels (repo_name, number, name) VALUES (?, ?, ?)",
			pr.Repository, pr.Number, l); err != nil {
			return fmt.Errorf("inserting label of %s: %w", pr.Key(), err)
		}
	}

	return tx.Commit()
}

// Count returns the number of stored pull requests.
func (s *Store) Count(ctx context.Context, repository string) (int, error) {
	var (
		n   int
		err error
	)
	if repository == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pull_requests").Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM pull_requests WHERE repo_name = ?", repository).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("counting pull requests: %w", err)
	}
	return n, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPullRequest scans prColumns followed by any extra destinations.
func scanPullRequest(row rowScanner, extra ...any) (*domain.PullRequest, error) {
	var (
		pr               domain.PullRequest
		state            string
		created, updated int64
		merged, closed   sql.NullInt64
	)
	dest := []any{
		&pr.Repository, &pr.Number, &pr.Title, &pr.Body, &state, &pr.Author, &pr.HTMLURL,
		&created, &updated, &merged, &closed, &pr.BaseBranch, &pr.HeadBranch,
		&pr.Additions, &pr.Deletions, &pr.ChangedFiles, &pr.Draft,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning pull request: %w", err)
	}

	pr.State = domain.PRState(state)
	pr.CreatedAt = fromUnix(created)
	pr.UpdatedAt = fromUnix(updated)
	if merged.Valid {
		t := fromUnix(merged.Int64)
		pr.MergedAt = &t
	}
	if closed.Valid {
		t := fromUnix(closed.Int64)
		pr.ClosedAt = &t
	}
	return &pr, nil
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}
