package service

import (
	"context"
	"strings"

	"github.com/semidx/semidx/internal/model"
	"github.com/semidx/semidx/internal/store"
)

// fakeStore is an in-memory VectorStore implementing the same path-identity
// contract as the real one.
type fakeStore struct {
	records       map[string]*model.VectorRecord
	upsertCalls   int
	deleteCalls   int
	similarityErr error
	textCalls     int
	// scores returned by SimilaritySearch, keyed by path
	vectorScores map[string]float64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:      make(map[string]*model.VectorRecord),
		vectorScores: make(map[string]float64),
	}
}

func (f *fakeStore) Upsert(ctx context.Context, records []*model.VectorRecord, reconcile map[string][]string) error {
	f.upsertCalls++
	for source, keepPaths := range reconcile {
		keep := make(map[string]struct{}, len(keepPaths))
		for _, p := range keepPaths {
			keep[p] = struct{}{}
		}
		for path := range f.records {
			if model.SourceOfPath(path) != source {
				continue
			}
			if _, ok := keep[path]; !ok {
				delete(f.records, path)
			}
		}
	}
	for _, rec := range records {
		clone := *rec
		f.records[rec.Path] = &clone
	}
	return nil
}

func (f *fakeStore) DeleteByPathPrefix(ctx context.Context, pattern string) (int64, error) {
	f.deleteCalls++
	var removed int64
	wildcard := strings.HasSuffix(pattern, "%") && !strings.HasSuffix(pattern, `\%`)
	literal := unescapeLike(strings.TrimSuffix(pattern, "%"))
	for path := range f.records {
		if (wildcard && strings.HasPrefix(path, literal)) || (!wildcard && path == literal) {
			delete(f.records, path)
			removed++
		}
	}
	return removed, nil
}

// unescapeLike reverses store.EscapeLike so the fake can compare against the
// literal path the caller meant.
func unescapeLike(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '\\' && i+1 < len(pattern) {
			i++
		}
		b.WriteByte(pattern[i])
	}
	return b.String()
}

func (f *fakeStore) SimilaritySearch(ctx context.Context, queryEmbedding []float32, limit int, threshold float64, filters *store.SearchFilters) ([]*model.ScoredRecord, error) {
	if f.similarityErr != nil {
		return nil, f.similarityErr
	}
	var out []*model.ScoredRecord
	for path, score := range f.vectorScores {
		rec, ok := f.records[path]
		if !ok || score < threshold {
			continue
		}
		out = append(out, &model.ScoredRecord{VectorRecord: *rec, Score: score})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) TextSearch(ctx context.Context, query string, limit int, filters *store.SearchFilters) ([]*model.ScoredRecord, error) {
	f.textCalls++
	q := strings.ToLower(query)
	var out []*model.ScoredRecord
	for _, rec := range f.records {
		if strings.Contains(strings.ToLower(rec.Content), q) || strings.Contains(strings.ToLower(rec.Path), q) {
			out = append(out, &model.ScoredRecord{VectorRecord: *rec, Score: 0.6})
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) Count(ctx context.Context) (int64, error) {
	return int64(len(f.records)), nil
}

func (f *fakeStore) HasEmbeddings(ctx context.Context) (bool, error) {
	for _, rec := range f.records {
		if rec.Embedding != nil {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) AllPaths(ctx context.Context) ([]string, error) {
	paths := make([]string, 0, len(f.records))
	for path := range f.records {
		paths = append(paths, path)
	}
	return paths, nil
}

func (f *fakeStore) ClearAll(ctx context.Context) error {
	f.records = make(map[string]*model.VectorRecord)
	return nil
}
