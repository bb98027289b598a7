// Package watcher observes filesystem changes and drives incremental
// indexing: debounced add/change events flow through a deduplicating queue
// into batched index operations, deletes bypass the queue entirely.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/semidx/semidx/internal/chunker"
	"github.com/semidx/semidx/internal/config"
	"github.com/semidx/semidx/internal/extract"
	"github.com/semidx/semidx/internal/model"
	"github.com/semidx/semidx/internal/service"
)

var defaultIgnorePatterns = []string{
	"node_modules", ".git", ".next", ".cache", "dist", "build", "coverage",
	".env", ".DS_Store",
}

const drainRescheduleDelay = time.Second

type rootWatch struct {
	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
}

type Watcher struct {
	indexer *service.IndexService
	cfg     config.IndexingConfig
	ignored []string

	mu    sync.Mutex
	roots map[string]*rootWatch

	// pending tracks debounce timers per path so a file is only queued
	// after its writes have settled.
	pendingMu sync.Mutex
	pending   map[string]*pendingEvent

	queue        *indexQueue
	isProcessing atomic.Bool

	// drainCtx outlives every individual root so stopping one watch never
	// cancels a batch that is already being indexed.
	drainCtx    context.Context
	drainCancel context.CancelFunc

	// extractFn is swapped in tests; production always reads the real file.
	extractFn func(path string) string
}

type pendingEvent struct {
	timer *time.Timer
	event model.QueueEvent
}

func New(indexer *service.IndexService, cfg config.IndexingConfig) *Watcher {
	ignored := defaultIgnorePatterns
	if len(cfg.IgnorePatterns) > 0 {
		ignored = append(append([]string{}, defaultIgnorePatterns...), cfg.IgnorePatterns...)
	}
	drainCtx, drainCancel := context.WithCancel(context.Background())
	return &Watcher{
		indexer:     indexer,
		cfg:         cfg,
		ignored:     ignored,
		roots:       make(map[string]*rootWatch),
		pending:     make(map[string]*pendingEvent),
		queue:       newIndexQueue(),
		drainCtx:    drainCtx,
		drainCancel: drainCancel,
		extractFn:   extract.Extract,
	}
}

// Watch begins observing root and its subdirectories. Watching an already
// watched root is a no-op.
func (w *Watcher) Watch(ctx context.Context, root string) error {
	logger := logutil.GetLogger(ctx).With(zap.String("root", root))
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.roots[root]; ok {
		logger.Info("already watching")
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := addRecursive(fsw, root); err != nil {
		fsw.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	w.roots[root] = &rootWatch{fsw: fsw, cancel: cancel}
	go w.eventLoop(watchCtx, fsw)
	logger.Info("file watcher started")
	return nil
}

// Unwatch stops new events for a root. An in-flight drain of already queued
// items is not cancelled.
func (w *Watcher) Unwatch(ctx context.Context, root string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	watch, ok := w.roots[root]
	if !ok {
		return
	}
	watch.cancel()
	watch.fsw.Close()
	delete(w.roots, root)
	logutil.GetLogger(ctx).Info("file watcher stopped", zap.String("root", root))
}

// StopAll closes every root and cancels the drain loop. Unlike Unwatch it is
// a full shutdown, so queued work is abandoned.
func (w *Watcher) StopAll(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for root, watch := range w.roots {
		watch.cancel()
		watch.fsw.Close()
		delete(w.roots, root)
	}
	w.drainCancel()
	logutil.GetLogger(ctx).Info("all file watchers stopped")
}

type Status struct {
	Watching     []string `json:"watching"`
	QueueSize    int      `json:"queue_size"`
	IsProcessing bool     `json:"is_processing"`
}

func (w *Watcher) Status() Status {
	w.mu.Lock()
	roots := make([]string, 0, len(w.roots))
	for root := range w.roots {
		roots = append(roots, root)
	}
	w.mu.Unlock()
	return Status{
		Watching:     roots,
		QueueSize:    w.queue.Len(),
		IsProcessing: w.isProcessing.Load(),
	}
}

func (w *Watcher) eventLoop(ctx context.Context, fsw *fsnotify.Watcher) {
	logger := logutil.GetLogger(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Error("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	path := extract.NormalizePath(event.Name)

	if event.Op.Has(fsnotify.Create) {
		// New directories join the watch set so the tree stays covered.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.shouldIgnoreDir(path) {
				_ = addRecursive(fsw, event.Name)
			}
			return
		}
	}

	if w.shouldIgnore(path) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		w.cancelPending(path)
		w.handleDelete(ctx, path)
	case event.Op.Has(fsnotify.Create):
		w.debounce(path, model.EventAdd)
	case event.Op.Has(fsnotify.Write):
		w.debounce(path, model.EventChange)
	}
}

// debounce (re)arms the write-stability timer for path. The file is queued
// only after DebounceMs of quiet, so half-written files never reach the
// drain loop. An add event is not downgraded by subsequent writes.
func (w *Watcher) debounce(path string, event model.QueueEvent) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	delay := time.Duration(w.cfg.DebounceMs) * time.Millisecond
	if existing, ok := w.pending[path]; ok {
		if existing.event == model.EventAdd {
			event = model.EventAdd
		}
		existing.timer.Stop()
	}
	pe := &pendingEvent{event: event}
	pe.timer = time.AfterFunc(delay, func() {
		w.pendingMu.Lock()
		delete(w.pending, path)
		w.pendingMu.Unlock()
		w.enqueue(path, event)
	})
	w.pending[path] = pe
}

func (w *Watcher) cancelPending(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if pe, ok := w.pending[path]; ok {
		pe.timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) enqueue(path string, event model.QueueEvent) {
	w.queue.Enqueue(path, event)
	w.scheduleDrain()
}

// handleDelete bypasses the queue: the file's records and all chunk-suffixed
// variants are removed immediately, even while a drain for an earlier add is
// still pending.
func (w *Watcher) handleDelete(ctx context.Context, path string) {
	logger := logutil.GetLogger(ctx).With(zap.String("path", path))
	removed, err := w.indexer.DeleteSource(ctx, path)
	if err != nil {
		logger.Error("failed to remove deleted file from index", zap.Error(err))
		return
	}
	logger.Info("removed from index", zap.Int64("records", removed))
}

// scheduleDrain starts a drain goroutine unless one is already running.
// Drains run on the watcher's own context, not the context of the root that
// produced the event, so Unwatch never aborts a batch mid-flight.
func (w *Watcher) scheduleDrain() {
	if !w.isProcessing.CompareAndSwap(false, true) {
		return
	}
	go w.drain(w.drainCtx)
}

// drain processes one queue batch: extract, chunk, and index every item,
// committing all resulting chunk records in a single upsert. Per-item
// failures are logged and skipped. While the queue remains non-empty the
// next batch is scheduled after a short delay to yield to other work.
func (w *Watcher) drain(ctx context.Context) {
	logger := logutil.GetLogger(ctx)
	batch := w.queue.PopBatch(w.cfg.DrainBatchSize)
	if len(batch) == 0 {
		w.isProcessing.Store(false)
		return
	}

	var files []service.FileInput
	for _, item := range batch {
		content := w.extractFn(item.Path)
		if len(content) < w.cfg.MinContentLen {
			continue
		}
		chunks := chunkForIndexing(content, w.cfg)
		if len(chunks) == 0 {
			continue
		}
		files = append(files, service.FileInput{Path: item.Path, Chunks: chunks})
	}

	if len(files) > 0 {
		if _, err := w.indexer.IndexFiles(ctx, files); err != nil {
			// A failed batch must not kill the watcher; move on to
			// the next one.
			logger.Error("incremental index batch failed", zap.Error(err))
		} else {
			logger.Info("incrementally indexed batch", zap.Int("files", len(files)))
		}
	}

	if w.queue.Len() > 0 {
		time.AfterFunc(drainRescheduleDelay, func() {
			w.drain(ctx)
		})
		return
	}
	w.isProcessing.Store(false)
	// Re-check: an enqueue may have slipped in between the emptiness check
	// and clearing the flag.
	if w.queue.Len() > 0 {
		w.scheduleDrain()
	}
}

func (w *Watcher) shouldIgnore(path string) bool {
	if !extract.IsTextFile(path) {
		return true
	}
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	for _, pattern := range w.ignored {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldIgnoreDir(path string) bool {
	for _, pattern := range w.ignored {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

// chunkForIndexing applies the watcher's stricter minimum chunk length and
// the per-file chunk cap that bounds embedding cost per drained file.
func chunkForIndexing(content string, cfg config.IndexingConfig) []string {
	chunks := chunker.Split(content, chunker.Options{
		ChunkSize: cfg.ChunkSize,
		Overlap:   cfg.Overlap,
		MinLength: cfg.MinContentLen,
	})
	if len(chunks) > cfg.MaxChunksPerFile {
		chunks = chunks[:cfg.MaxChunksPerFile]
	}
	return chunks
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}
