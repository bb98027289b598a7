package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// interBatchDelay smooths burst rate against the provider between
// consecutive batch calls.
const interBatchDelay = 100 * time.Millisecond

type BatcherOptions struct {
	BatchSize   int
	MaxAttempts int
}

// Batcher groups chunk texts into provider-sized batches and submits each
// batch as one provider call, resubmitting a batch after a rate limit
// without advancing past it.
type Batcher struct {
	embedder IEmbedder
	opts     BatcherOptions
}

func NewBatcher(embedder IEmbedder, opts BatcherOptions) *Batcher {
	return &Batcher{embedder: embedder, opts: opts}
}

// EmbedBatch returns one vector per input text, same order, same length.
func (b *Batcher) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if b.embedder == nil {
		return nil, ErrUnavailable
	}
	if len(texts) == 0 {
		return nil, nil
	}
	logger := logutil.GetLogger(ctx)

	batchSize := b.opts.BatchSize
	providerMax := b.embedder.MaxBatchSize()
	if providerMax <= 0 {
		providerMax = cloudMaxBatchSize
	}
	if batchSize <= 0 || batchSize > providerMax {
		batchSize = providerMax
	}

	batches := splitBatches(texts, batchSize)
	all := make([][]float32, 0, len(texts))
	for i, batch := range batches {
		vectors, err := retryRateLimited(ctx, b.opts.MaxAttempts, func() ([][]float32, error) {
			return b.embedder.EmbedBatch(ctx, batch)
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch %d/%d: %w", i+1, len(batches), err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embed batch %d/%d: got %d vectors for %d texts", i+1, len(batches), len(vectors), len(batch))
		}
		all = append(all, vectors...)

		if len(batches) > 5 {
			logger.Info("generated embeddings batch", zap.Int("batch", i+1), zap.Int("total", len(batches)))
		}
		if i < len(batches)-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interBatchDelay):
			}
		}
	}
	return all, nil
}

func (b *Batcher) ModelName() string {
	if b.embedder == nil {
		return ""
	}
	return b.embedder.ModelName()
}

func splitBatches(texts []string, size int) [][]string {
	if size <= 0 {
		size = cloudMaxBatchSize
	}
	var batches [][]string
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[start:end])
	}
	return batches
}
