package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/semidx/semidx/internal/store"
)

type CacheCleanupJob struct {
	repo     *store.EmbeddingCacheRepo
	keepDays int
}

func NewCacheCleanupJob(repo *store.EmbeddingCacheRepo, keepDays int) *CacheCleanupJob {
	return &CacheCleanupJob{repo: repo, keepDays: keepDays}
}

func (j *CacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *CacheCleanupJob) Run(ctx context.Context) error {
	if j.repo == nil || j.keepDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -j.keepDays).Unix()
	removed, err := j.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("expired embedding cache entries removed", zap.Int64("count", removed))
	}
	return nil
}
