package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/semidx/semidx/internal/model"
	"github.com/semidx/semidx/internal/pkg/dbutil"
	apperr "github.com/semidx/semidx/internal/pkg/errors"
)

type PGVectorStore struct {
	db *sql.DB
}

func NewPGVectorStore(db *sql.DB) *PGVectorStore {
	return &PGVectorStore{db: db}
}

func (s *PGVectorStore) Upsert(ctx context.Context, records []*model.VectorRecord, reconcile map[string][]string) error {
	if len(records) == 0 && len(reconcile) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &apperr.StorageError{Op: "upsert", Err: err}
	}
	defer tx.Rollback()

	// Stale rows fall in the same transaction as the new rows, so readers
	// never observe a source with both the old and the new chunk layout.
	const deleteStale = `
		DELETE FROM vector_records
		WHERE (path = $1 OR path LIKE $2) AND NOT (path = ANY($3))
	`
	for source, keepPaths := range reconcile {
		prefix := EscapeLike(source) + model.ChunkPathSeparator + "%"
		if _, err := tx.ExecContext(ctx, deleteStale, source, prefix, pq.Array(keepPaths)); err != nil {
			return &apperr.StorageError{Op: "upsert", Err: err}
		}
	}

	const withEmbedding = `
		INSERT INTO vector_records (id, path, content, embedding, metadata, preview, indexed_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (path) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			preview = EXCLUDED.preview,
			updated_at = NOW()
	`
	const withoutEmbedding = `
		INSERT INTO vector_records (id, path, content, embedding, metadata, preview, indexed_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, NULL, $3, $4, NOW(), NOW())
		ON CONFLICT (path) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			preview = EXCLUDED.preview,
			updated_at = NOW()
	`
	for _, rec := range records {
		if rec.Path == "" {
			return &apperr.StorageError{Op: "upsert", Err: fmt.Errorf("%w: record path is empty", apperr.ErrInvalid)}
		}
		metadata, err := json.Marshal(rec.Metadata)
		if err != nil {
			return &apperr.StorageError{Op: "upsert", Err: err}
		}
		if rec.Embedding != nil {
			_, err = tx.ExecContext(ctx, withEmbedding,
				rec.Path, rec.Content, pgvector.NewVector(rec.Embedding), metadata, rec.Preview)
		} else {
			_, err = tx.ExecContext(ctx, withoutEmbedding,
				rec.Path, rec.Content, metadata, rec.Preview)
		}
		if err != nil {
			return &apperr.StorageError{Op: "upsert", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &apperr.StorageError{Op: "upsert", Err: err}
	}
	return nil
}

func (s *PGVectorStore) DeleteByPathPrefix(ctx context.Context, pattern string) (int64, error) {
	const query = `DELETE FROM vector_records WHERE path LIKE $1`
	res, err := s.db.ExecContext(ctx, query, pattern)
	if err != nil {
		return 0, &apperr.StorageError{Op: "delete", Err: err}
	}
	return res.RowsAffected()
}

func (s *PGVectorStore) SimilaritySearch(ctx context.Context, queryEmbedding []float32, limit int, threshold float64, filters *SearchFilters) ([]*model.ScoredRecord, error) {
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", apperr.ErrInvalid)
	}
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, path, content, metadata, preview, indexed_at, updated_at,
			1 - (embedding <=> $1) AS score
		FROM vector_records
		WHERE embedding IS NOT NULL
	`)
	args := []interface{}{pgvector.NewVector(queryEmbedding)}
	idx := 2

	if filters != nil && filters.PathContains != "" {
		fmt.Fprintf(&sb, " AND path LIKE $%d", idx)
		args = append(args, "%"+filters.PathContains+"%")
		idx++
	}
	if filters != nil {
		for key, value := range filters.Metadata {
			fmt.Fprintf(&sb, " AND metadata->>$%d = $%d", idx, idx+1)
			args = append(args, key, value)
			idx += 2
		}
	}

	fmt.Fprintf(&sb, " AND (1 - (embedding <=> $1)) >= $%d", idx)
	args = append(args, threshold)
	idx++
	fmt.Fprintf(&sb, " ORDER BY embedding <=> $1 LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, &apperr.StorageError{Op: "similarity_search", Err: err}
	}
	defer rows.Close()
	return scanScored(rows)
}

func (s *PGVectorStore) TextSearch(ctx context.Context, query string, limit int, filters *SearchFilters) ([]*model.ScoredRecord, error) {
	tokens := tokenize(query)

	var sb strings.Builder
	args := make([]interface{}, 0, len(tokens)*2+2)
	idx := 1

	where := "WHERE 1=1"
	if filters != nil && filters.PathContains != "" {
		where += fmt.Sprintf(" AND path LIKE $%d", idx)
		args = append(args, "%"+filters.PathContains+"%")
		idx++
	}

	// Tokens OR together; the token block ANDs with the filters.
	if len(tokens) > 0 {
		var terms []string
		for _, token := range tokens {
			terms = append(terms, fmt.Sprintf("(LOWER(content) LIKE $%d OR LOWER(path) LIKE $%d)", idx, idx))
			args = append(args, "%"+token+"%")
			idx++
		}
		where += " AND (" + strings.Join(terms, " OR ") + ")"
	}

	// Heuristic score: content match beats path match beats filter-only.
	score := "0.4"
	if len(tokens) > 0 {
		var contentPh, pathPh []string
		for _, token := range tokens {
			contentPh = append(contentPh, fmt.Sprintf("$%d", idx))
			args = append(args, "%"+token+"%")
			idx++
		}
		for _, token := range tokens {
			pathPh = append(pathPh, fmt.Sprintf("$%d", idx))
			args = append(args, "%"+token+"%")
			idx++
		}
		score = fmt.Sprintf(`CASE
			WHEN LOWER(content) LIKE ANY(ARRAY[%s]) THEN 0.8
			WHEN LOWER(path) LIKE ANY(ARRAY[%s]) THEN 0.6
			ELSE 0.4
		END`, strings.Join(contentPh, ", "), strings.Join(pathPh, ", "))
	}

	fmt.Fprintf(&sb, `
		SELECT id, path, content, metadata, preview, indexed_at, updated_at,
			%s AS score
		FROM vector_records
		%s
		ORDER BY score DESC
		LIMIT $%d
	`, score, where, idx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, &apperr.StorageError{Op: "text_search", Err: err}
	}
	defer rows.Close()
	return scanScored(rows)
}

func (s *PGVectorStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vector_records`).Scan(&count); err != nil {
		return 0, &apperr.StorageError{Op: "count", Err: err}
	}
	return count, nil
}

func (s *PGVectorStore) HasEmbeddings(ctx context.Context) (bool, error) {
	var count int64
	const query = `SELECT COUNT(*) FROM vector_records WHERE embedding IS NOT NULL`
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return false, &apperr.StorageError{Op: "has_embeddings", Err: err}
	}
	return count > 0, nil
}

func (s *PGVectorStore) AllPaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT path FROM vector_records ORDER BY path`)
	if err != nil {
		return nil, &apperr.StorageError{Op: "all_paths", Err: err}
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

// GetByPath fetches a single record by its exact store path.
func (s *PGVectorStore) GetByPath(ctx context.Context, path string) (*model.VectorRecord, error) {
	where := map[string]interface{}{
		"path": path,
	}
	query, args, err := builder.BuildSelect("vector_records",
		where, []string{"id", "path", "content", "metadata", "preview", "indexed_at", "updated_at"})
	if err != nil {
		return nil, err
	}
	query, args = dbutil.Finalize(query, args)
	row := s.db.QueryRowContext(ctx, query, args...)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, &apperr.StorageError{Op: "get_by_path", Err: err}
	}
	return rec, nil
}

// DeleteOrphanChunks sweeps chunk rows whose ordinal falls beyond the chunk
// count recorded by any newer sibling of the same source file. Write-time
// reconciliation already prevents these; the sweep covers rows left behind
// by older writers.
func (s *PGVectorStore) DeleteOrphanChunks(ctx context.Context) (int64, error) {
	const query = `
		DELETE FROM vector_records r
		WHERE r.path LIKE '%#chunk-%'
		AND EXISTS (
			SELECT 1 FROM vector_records s
			WHERE s.metadata->>'sourceFile' = r.metadata->>'sourceFile'
			AND s.updated_at > r.updated_at
			AND (r.metadata->>'chunkIndex')::int >= (s.metadata->>'totalChunks')::int
		)
	`
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, &apperr.StorageError{Op: "delete_orphans", Err: err}
	}
	return res.RowsAffected()
}

func (s *PGVectorStore) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE TABLE vector_records`); err != nil {
		return &apperr.StorageError{Op: "clear_all", Err: err}
	}
	return nil
}

// tokenize splits a query on whitespace and drops tokens too short to be
// meaningful match terms.
func tokenize(query string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		if len(word) > 2 {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*model.VectorRecord, error) {
	var rec model.VectorRecord
	var metadata []byte
	var preview sql.NullString
	if err := row.Scan(&rec.ID, &rec.Path, &rec.Content, &metadata, &preview, &rec.IndexedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Preview = preview.String
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func scanScored(rows *sql.Rows) ([]*model.ScoredRecord, error) {
	var results []*model.ScoredRecord
	for rows.Next() {
		var item model.ScoredRecord
		var metadata []byte
		var preview sql.NullString
		if err := rows.Scan(&item.ID, &item.Path, &item.Content, &metadata, &preview,
			&item.IndexedAt, &item.UpdatedAt, &item.Score); err != nil {
			return nil, err
		}
		item.Preview = preview.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &item.Metadata); err != nil {
				return nil, err
			}
		}
		results = append(results, &item)
	}
	return results, rows.Err()
}
