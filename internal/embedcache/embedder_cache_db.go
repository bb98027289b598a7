package embedcache

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/semidx/semidx/internal/ai"
	"github.com/semidx/semidx/internal/model"
	"github.com/semidx/semidx/internal/store"
)

func WrapDBCacheToEmbedder(e ai.IEmbedder, cacheRepo *store.EmbeddingCacheRepo) ai.IEmbedder {
	if e == nil || cacheRepo == nil {
		return e
	}
	return &dbEmbedder{next: e, repo: cacheRepo}
}

type dbEmbedder struct {
	next ai.IEmbedder
	repo *store.EmbeddingCacheRepo
}

func (d *dbEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := d.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (d *dbEmbedder) EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	if d == nil || d.next == nil {
		return nil, nil
	}
	logger := logutil.GetLogger(ctx)
	result := make([][]float32, len(inputs))
	var missTexts []string
	var missIdx []int
	for i, text := range inputs {
		hash := contentHash(text)
		values, ok, err := d.repo.Get(ctx, d.next.ModelName(), hash)
		if err != nil {
			return nil, err
		}
		if ok {
			result[i] = values
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		logger.Debug("embedding cache hit (db)", zap.Int("count", len(inputs)))
		return result, nil
	}
	vectors, err := d.next.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	for j, vec := range vectors {
		i := missIdx[j]
		result[i] = vec
		if err := d.repo.Save(ctx, &model.EmbeddingCache{
			ModelName:   d.next.ModelName(),
			ContentHash: contentHash(inputs[i]),
			Embedding:   vec,
			Ctime:       now,
		}); err != nil {
			logger.Warn("failed to cache embedding", zap.Error(err))
		}
	}
	return result, nil
}

func (d *dbEmbedder) ModelName() string {
	if d == nil || d.next == nil {
		return ""
	}
	return d.next.ModelName()
}

func (d *dbEmbedder) MaxBatchSize() int {
	if d == nil || d.next == nil {
		return 0
	}
	return d.next.MaxBatchSize()
}
