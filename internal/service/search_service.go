package service

import (
	"context"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/semidx/semidx/internal/ai"
	"github.com/semidx/semidx/internal/config"
	"github.com/semidx/semidx/internal/model"
	"github.com/semidx/semidx/internal/store"
)

// InteractiveThreshold is the looser cutoff interactive callers use so a
// vague query still surfaces something instead of an empty page.
const InteractiveThreshold = 0.25

type SearchOptions struct {
	Limit     int
	Threshold float64
	Filters   *store.SearchFilters
}

type StatusInfo struct {
	DocumentCount  int64 `json:"document_count"`
	WithEmbeddings bool  `json:"with_embeddings"`
	HasIndex       bool  `json:"has_index"`
}

type SearchService struct {
	store    store.VectorStore
	embedder ai.IEmbedder
	cfg      config.SearchConfig
}

// NewSearchService builds the ranker. embedder may be nil; search is then
// always lexical.
func NewSearchService(vs store.VectorStore, embedder ai.IEmbedder, cfg config.SearchConfig) *SearchService {
	return &SearchService{store: vs, embedder: embedder, cfg: cfg}
}

// Search answers a query with vector similarity when embeddings are
// available, falling back to text search on any provider failure rather than
// failing the request. Results are deduplicated per source file, keeping the
// best-scoring chunk, and capped at the presentation limit.
func (s *SearchService) Search(ctx context.Context, query string, opts SearchOptions) ([]*model.SearchResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("query", query))

	limit := opts.Limit
	if limit <= 0 {
		limit = s.cfg.MaxResults
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = s.cfg.VectorThreshold
	}

	if s.embedder != nil {
		hasEmbeddings, err := s.store.HasEmbeddings(ctx)
		if err != nil {
			return nil, err
		}
		if hasEmbeddings {
			results, err := s.vectorSearch(ctx, query, limit, threshold, opts.Filters)
			if err == nil {
				return results, nil
			}
			logger.Warn("vector search failed, falling back to text search", zap.Error(err))
		}
	}
	return s.textSearch(ctx, query, limit, opts.Filters)
}

func (s *SearchService) vectorSearch(ctx context.Context, query string, limit int, threshold float64, filters *store.SearchFilters) ([]*model.SearchResult, error) {
	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	// Fetch more than the presentation cap: chunk dedup can collapse
	// several rows into one result.
	scored, err := s.store.SimilaritySearch(ctx, queryEmbedding, limit*4, threshold, filters)
	if err != nil {
		return nil, err
	}
	return dedupBySource(scored, limit, model.MatchVector), nil
}

func (s *SearchService) textSearch(ctx context.Context, query string, limit int, filters *store.SearchFilters) ([]*model.SearchResult, error) {
	scored, err := s.store.TextSearch(ctx, query, limit*4, filters)
	if err != nil {
		return nil, err
	}
	kept := scored[:0]
	for _, item := range scored {
		if item.Score >= s.cfg.TextThreshold {
			kept = append(kept, item)
		}
	}
	return dedupBySource(kept, limit, model.MatchText), nil
}

func (s *SearchService) Status(ctx context.Context) (*StatusInfo, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	hasEmbeddings, err := s.store.HasEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	return &StatusInfo{
		DocumentCount:  count,
		WithEmbeddings: hasEmbeddings,
		HasIndex:       count > 0,
	}, nil
}

func (s *SearchService) AllPaths(ctx context.Context) ([]string, error) {
	return s.store.AllPaths(ctx)
}

// dedupBySource collapses per-chunk rows into one result per source file,
// keeping the max chunk score, ordered by score descending.
func dedupBySource(scored []*model.ScoredRecord, limit int, via model.MatchKind) []*model.SearchResult {
	best := make(map[string]*model.SearchResult)
	for _, item := range scored {
		source := model.SourceOfPath(item.Path)
		if existing, ok := best[source]; ok && existing.Score >= item.Score {
			continue
		}
		best[source] = &model.SearchResult{
			Path:       source,
			Preview:    item.Preview,
			Score:      item.Score,
			MatchedVia: via,
		}
	}
	results := make([]*model.SearchResult, 0, len(best))
	for _, result := range best {
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
