// Package store persists vector records in Postgres with pgvector and owns
// the path-based dedup contract: path is the sole identity key, re-upserting
// the same path replaces the row in place.
package store

import (
	"context"
	"strings"

	"github.com/semidx/semidx/internal/model"
)

// SearchFilters narrow similarity and text search; zero value means no
// filtering. Metadata entries are AND-combined key/value equality checks.
type SearchFilters struct {
	PathContains string
	Metadata     map[string]string
}

type VectorStore interface {
	// Upsert commits all records in one transaction or none of them. When
	// reconcile is non-nil it maps a source path to the store paths the write
	// keeps; rows owned by that source outside the keep set are deleted in
	// the same transaction, so a shrinking chunk count cannot orphan stale
	// rows even if the process dies between statements.
	Upsert(ctx context.Context, records []*model.VectorRecord, reconcile map[string][]string) error
	// DeleteByPathPrefix deletes rows whose path matches the SQL LIKE
	// pattern and reports how many were removed. Callers pass literal path
	// segments through EscapeLike.
	DeleteByPathPrefix(ctx context.Context, pattern string) (int64, error)
	// SimilaritySearch scores rows with non-null embeddings as
	// 1 - cosineDistance(embedding, query), excluding rows below threshold.
	SimilaritySearch(ctx context.Context, queryEmbedding []float32, limit int, threshold float64, filters *SearchFilters) ([]*model.ScoredRecord, error)
	// TextSearch is the lexical fallback over lower-cased content and path.
	TextSearch(ctx context.Context, query string, limit int, filters *SearchFilters) ([]*model.ScoredRecord, error)
	Count(ctx context.Context) (int64, error)
	HasEmbeddings(ctx context.Context) (bool, error)
	AllPaths(ctx context.Context) ([]string, error)
	ClearAll(ctx context.Context) error
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE metacharacters so a literal path matches only
// itself inside a pattern. Without it a file named a_b.txt would also match
// its axb.txt sibling.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
