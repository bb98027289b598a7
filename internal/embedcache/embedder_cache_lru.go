// Package embedcache wraps an embedder with content-hash keyed caches so
// re-indexing unchanged chunks and repeated queries skip provider calls.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/semidx/semidx/internal/ai"
)

func WrapLruCacheToEmbedder(e ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  ai.IEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := l.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// EmbedBatch serves cached texts from memory and forwards only the misses to
// the wrapped embedder, preserving input order in the merged result.
func (l *lruEmbedder) EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	if l == nil || l.next == nil {
		return nil, nil
	}
	result := make([][]float32, len(inputs))
	var missTexts []string
	var missIdx []int
	for i, text := range inputs {
		key := buildCacheKey(l.next.ModelName(), text)
		if cached, ok := l.cache.Get(key); ok {
			result[i] = cloneEmbedding(cached)
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit (lru)", zap.Int("count", len(inputs)))
		return result, nil
	}
	vectors, err := l.next.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, vec := range vectors {
		i := missIdx[j]
		result[i] = vec
		l.cache.Add(buildCacheKey(l.next.ModelName(), inputs[i]), cloneEmbedding(vec))
	}
	return result, nil
}

func (l *lruEmbedder) ModelName() string {
	if l == nil || l.next == nil {
		return ""
	}
	return l.next.ModelName()
}

func (l *lruEmbedder) MaxBatchSize() int {
	if l == nil || l.next == nil {
		return 0
	}
	return l.next.MaxBatchSize()
}

func buildCacheKey(modelName, text string) string {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	return "embed:" + modelName + ":" + contentHash(text)
}

func contentHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
