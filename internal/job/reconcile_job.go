package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/semidx/semidx/internal/store"
)

// ReconcileJob sweeps orphaned chunk rows that a shrinking re-chunk left
// behind before write-time reconciliation existed, or that a concurrent
// external writer produced.
type ReconcileJob struct {
	store *store.PGVectorStore
}

func NewReconcileJob(vs *store.PGVectorStore) *ReconcileJob {
	return &ReconcileJob{store: vs}
}

func (j *ReconcileJob) Name() string {
	return "chunk_reconcile"
}

func (j *ReconcileJob) Run(ctx context.Context) error {
	if j.store == nil {
		return nil
	}
	removed, err := j.store.DeleteOrphanChunks(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("orphan chunks removed", zap.Int64("count", removed))
	}
	return nil
}
