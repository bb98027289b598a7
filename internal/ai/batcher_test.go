package ai

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperr "github.com/semidx/semidx/internal/pkg/errors"
)

type fakeEmbedProvider struct {
	maxBatch  int
	calls     [][]string
	failFirst error
	failed    bool
}

func (f *fakeEmbedProvider) Name() string { return "fake" }

func (f *fakeEmbedProvider) MaxBatchSize() int { return f.maxBatch }

func (f *fakeEmbedProvider) EmbedBatch(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	f.calls = append(f.calls, inputs)
	if f.failFirst != nil && !f.failed {
		f.failed = true
		return nil, f.failFirst
	}
	out := make([][]float32, 0, len(inputs))
	for _, input := range inputs {
		out = append(out, []float32{float32(len(input)), 1})
	}
	return out, nil
}

func TestBatcherEmbedBatch_PreservesOrderAndLength(t *testing.T) {
	provider := &fakeEmbedProvider{maxBatch: 2}
	batcher := NewBatcher(NewEmbedder(provider, "test-model"), BatcherOptions{})

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := batcher.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		require.Equal(t, float32(len(text)), vectors[i][0])
	}
	require.Len(t, provider.calls, 3)
	require.Equal(t, []string{"a", "bb"}, provider.calls[0])
	require.Equal(t, []string{"eeeee"}, provider.calls[2])
}

func TestBatcherEmbedBatch_HonorsProviderBatchCap(t *testing.T) {
	provider := &fakeEmbedProvider{maxBatch: 3}
	batcher := NewBatcher(NewEmbedder(provider, "test-model"), BatcherOptions{BatchSize: 100})

	texts := make([]string, 7)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}
	_, err := batcher.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	for _, call := range provider.calls {
		require.LessOrEqual(t, len(call), 3)
	}
}

func TestBatcherEmbedBatch_RetriesRateLimitOnce(t *testing.T) {
	provider := &fakeEmbedProvider{
		maxBatch:  10,
		failFirst: &apperr.RateLimitError{RetryAfter: time.Millisecond},
	}
	batcher := NewBatcher(NewEmbedder(provider, "test-model"), BatcherOptions{MaxAttempts: 3})

	vectors, err := batcher.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	require.Len(t, provider.calls, 2)
}

func TestBatcherEmbedBatch_AuthErrorFailsFast(t *testing.T) {
	provider := &fakeEmbedProvider{
		maxBatch:  10,
		failFirst: fmt.Errorf("check credentials: %w", apperr.ErrAuth),
	}
	batcher := NewBatcher(NewEmbedder(provider, "test-model"), BatcherOptions{MaxAttempts: 3})

	_, err := batcher.EmbedBatch(context.Background(), []string{"one"})
	require.Error(t, err)
	require.True(t, apperr.IsAuth(err))
	require.Len(t, provider.calls, 1)
}

func TestBatcherEmbedBatch_NilEmbedder(t *testing.T) {
	batcher := NewBatcher(nil, BatcherOptions{})
	_, err := batcher.EmbedBatch(context.Background(), []string{"x"})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestBatcherEmbedBatch_EmptyInput(t *testing.T) {
	provider := &fakeEmbedProvider{maxBatch: 10}
	batcher := NewBatcher(NewEmbedder(provider, "test-model"), BatcherOptions{})
	vectors, err := batcher.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, vectors)
	require.Empty(t, provider.calls)
}
