package watcher

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/semidx/semidx/internal/config"
	"github.com/semidx/semidx/internal/model"
	"github.com/semidx/semidx/internal/service"
	"github.com/semidx/semidx/internal/store"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]*model.VectorRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*model.VectorRecord)}
}

func (m *memStore) Upsert(ctx context.Context, records []*model.VectorRecord, reconcile map[string][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for source, keepPaths := range reconcile {
		keep := make(map[string]struct{}, len(keepPaths))
		for _, p := range keepPaths {
			keep[p] = struct{}{}
		}
		for path := range m.records {
			if model.SourceOfPath(path) != source {
				continue
			}
			if _, ok := keep[path]; !ok {
				delete(m.records, path)
			}
		}
	}
	for _, rec := range records {
		clone := *rec
		m.records[rec.Path] = &clone
	}
	return nil
}

func (m *memStore) DeleteByPathPrefix(ctx context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	prefix := strings.TrimSuffix(pattern, "%")
	exact := prefix == pattern
	for path := range m.records {
		if (exact && path == pattern) || (!exact && strings.HasPrefix(path, prefix)) {
			delete(m.records, path)
			removed++
		}
	}
	return removed, nil
}

func (m *memStore) SimilaritySearch(ctx context.Context, queryEmbedding []float32, limit int, threshold float64, filters *store.SearchFilters) ([]*model.ScoredRecord, error) {
	return nil, nil
}

func (m *memStore) TextSearch(ctx context.Context, query string, limit int, filters *store.SearchFilters) ([]*model.ScoredRecord, error) {
	return nil, nil
}

func (m *memStore) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records)), nil
}

func (m *memStore) HasEmbeddings(ctx context.Context) (bool, error) { return false, nil }

func (m *memStore) AllPaths(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.records))
	for path := range m.records {
		paths = append(paths, path)
	}
	return paths, nil
}

func (m *memStore) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*model.VectorRecord)
	return nil
}

func (m *memStore) pathCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func testWatcherConfig() config.IndexingConfig {
	return config.IndexingConfig{
		ChunkSize:        500,
		Overlap:          50,
		MinContentLen:    50,
		MaxChunksPerFile: 5,
		DrainBatchSize:   5,
		DebounceMs:       10,
	}
}

func newTestWatcher(ms *memStore, contents map[string]string) *Watcher {
	cfg := testWatcherConfig()
	w := New(service.NewIndexService(ms, nil, cfg), cfg)
	w.extractFn = func(path string) string {
		return contents[path]
	}
	return w
}

func TestDrain_IndexesQueuedFiles(t *testing.T) {
	ms := newMemStore()
	long := strings.Repeat("plenty of indexable text here. ", 5)
	w := newTestWatcher(ms, map[string]string{
		"a.txt": long,
		"b.txt": long,
	})

	w.queue.Enqueue("a.txt", model.EventAdd)
	w.queue.Enqueue("b.txt", model.EventChange)
	w.isProcessing.Store(true)
	w.drain(context.Background())

	require.Equal(t, 2, ms.pathCount())
	require.False(t, w.isProcessing.Load())
	require.Equal(t, 0, w.queue.Len())
}

func TestDrain_SkipsShortContent(t *testing.T) {
	ms := newMemStore()
	w := newTestWatcher(ms, map[string]string{"tiny.txt": "too small"})

	w.queue.Enqueue("tiny.txt", model.EventAdd)
	w.isProcessing.Store(true)
	w.drain(context.Background())

	require.Equal(t, 0, ms.pathCount())
	require.False(t, w.isProcessing.Load())
}

func TestDrain_CapsChunksPerFile(t *testing.T) {
	ms := newMemStore()
	// enough text for far more than MaxChunksPerFile windows
	huge := strings.Repeat("a long sentence that fills the sliding window nicely. ", 200)
	w := newTestWatcher(ms, map[string]string{"huge.txt": huge})

	w.queue.Enqueue("huge.txt", model.EventAdd)
	w.isProcessing.Store(true)
	w.drain(context.Background())

	require.Equal(t, testWatcherConfig().MaxChunksPerFile, ms.pathCount())
}

func TestDrain_ReschedulesUntilQueueEmpty(t *testing.T) {
	ms := newMemStore()
	long := strings.Repeat("plenty of indexable text here. ", 5)
	contents := map[string]string{}
	paths := []string{"a.txt", "b.txt", "c.txt"}
	for _, path := range paths {
		contents[path] = long
	}
	cfg := testWatcherConfig()
	cfg.DrainBatchSize = 1
	w := New(service.NewIndexService(ms, nil, cfg), cfg)
	w.extractFn = func(path string) string { return contents[path] }

	for _, path := range paths {
		w.queue.Enqueue(path, model.EventAdd)
	}
	w.scheduleDrain()

	require.Eventually(t, func() bool {
		return ms.pathCount() == len(paths) && !w.isProcessing.Load()
	}, 5*time.Second, 50*time.Millisecond)
}

// ctxAwareStore fails writes once the drain's context has been cancelled,
// the way a real database round trip would.
type ctxAwareStore struct {
	*memStore
}

func (c *ctxAwareStore) Upsert(ctx context.Context, records []*model.VectorRecord, reconcile map[string][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memStore.Upsert(ctx, records, reconcile)
}

func TestUnwatch_DoesNotCancelInFlightDrain(t *testing.T) {
	ms := newMemStore()
	cfg := testWatcherConfig()
	w := New(service.NewIndexService(&ctxAwareStore{memStore: ms}, nil, cfg), cfg)
	long := strings.Repeat("plenty of indexable text here. ", 5)
	release := make(chan struct{})
	w.extractFn = func(path string) string {
		<-release
		return long
	}

	root := t.TempDir()
	require.NoError(t, w.Watch(context.Background(), root))

	w.queue.Enqueue("a.txt", model.EventAdd)
	w.scheduleDrain()

	// Stop the root while the drain is blocked inside extraction; the batch
	// must still be committed once it unblocks.
	w.Unwatch(context.Background(), root)
	close(release)

	require.Eventually(t, func() bool {
		return ms.pathCount() == 1 && !w.isProcessing.Load()
	}, 5*time.Second, 20*time.Millisecond)
}

func TestHandleDelete_RemovesAllChunkRecords(t *testing.T) {
	ms := newMemStore()
	ms.records["gone.txt"] = &model.VectorRecord{Path: "gone.txt"}
	ms.records["gone.txt#chunk-0"] = &model.VectorRecord{Path: "gone.txt#chunk-0"}
	ms.records["kept.txt"] = &model.VectorRecord{Path: "kept.txt"}

	w := newTestWatcher(ms, nil)
	w.handleDelete(context.Background(), "gone.txt")

	require.Equal(t, 1, ms.pathCount())
}

func TestShouldIgnore_Patterns(t *testing.T) {
	w := newTestWatcher(newMemStore(), nil)
	require.True(t, w.shouldIgnore("project/node_modules/pkg/index.js"))
	require.True(t, w.shouldIgnore("project/.hidden.txt"))
	require.True(t, w.shouldIgnore("project/photo.png"))
	require.False(t, w.shouldIgnore("project/readme.md"))
}

func TestWatcherStatus_ReflectsQueue(t *testing.T) {
	w := newTestWatcher(newMemStore(), nil)
	w.queue.Enqueue("a.txt", model.EventAdd)
	status := w.Status()
	require.Equal(t, 1, status.QueueSize)
	require.False(t, status.IsProcessing)
	require.Empty(t, status.Watching)
}
