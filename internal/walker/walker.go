// Package walker enumerates indexable files under a root as a lazy sequence
// and drives bulk indexing over them.
package walker

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/semidx/semidx/internal/chunker"
	"github.com/semidx/semidx/internal/config"
	"github.com/semidx/semidx/internal/extract"
	"github.com/semidx/semidx/internal/service"
)

// Progress is reported to the observer at a fixed cadence, independent of
// the walking mechanism.
type Progress struct {
	Scanned int
	Indexed int
	Skipped int
	Current string
}

type ProgressFunc func(Progress)

// progressEvery controls the observer cadence.
const progressEvery = 25

type Walker struct {
	indexer *service.IndexService
	cfg     config.IndexingConfig
	ignored []string
}

func New(indexer *service.IndexService, cfg config.IndexingConfig) *Walker {
	ignored := []string{"node_modules", ".git", ".next", ".cache", "dist", "build", "coverage"}
	ignored = append(ignored, cfg.IgnorePatterns...)
	return &Walker{indexer: indexer, cfg: cfg, ignored: ignored}
}

// Files returns the indexable file paths under root in walk order, lazily
// produced over the returned channel. The channel closes when the walk
// finishes or ctx is cancelled.
func (w *Walker) Files(ctx context.Context, root string) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if w.shouldIgnore(path) || (strings.HasPrefix(d.Name(), ".") && path != root) {
					return filepath.SkipDir
				}
				return nil
			}
			if w.shouldIgnore(path) || strings.HasPrefix(d.Name(), ".") || !extract.IsTextFile(path) {
				return nil
			}
			select {
			case out <- extract.NormalizePath(path):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return out
}

// IndexDir walks root and indexes every indexable file, extracting and
// chunking with bounded parallelism while batching store writes through the
// index service. Per-file failures are logged and skipped.
func (w *Walker) IndexDir(ctx context.Context, root string, onProgress ProgressFunc) (*service.IndexStats, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("root", root))

	var scanned, skipped atomic.Int64
	var mu sync.Mutex
	var files []service.FileInput

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for path := range w.Files(ctx, root) {
		path := path
		n := scanned.Add(1)
		if onProgress != nil && n%progressEvery == 0 {
			onProgress(Progress{
				Scanned: int(n),
				Skipped: int(skipped.Load()),
				Current: path,
			})
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			content := extract.Extract(path)
			if len(content) < w.cfg.MinContentLen {
				skipped.Add(1)
				return nil
			}
			chunks := chunker.Split(content, chunker.Options{
				ChunkSize: w.cfg.ChunkSize,
				Overlap:   w.cfg.Overlap,
				MinLength: w.cfg.MinContentLen,
			})
			if len(chunks) == 0 {
				skipped.Add(1)
				return nil
			}
			mu.Lock()
			files = append(files, service.FileInput{Path: path, Chunks: chunks})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		logger.Info("no indexable files found")
		return &service.IndexStats{}, nil
	}

	stats, err := w.indexer.IndexFiles(ctx, files)
	if err != nil {
		return nil, err
	}
	if onProgress != nil {
		onProgress(Progress{
			Scanned: int(scanned.Load()),
			Indexed: stats.FileCount,
			Skipped: int(skipped.Load()),
		})
	}
	logger.Info("bulk index finished",
		zap.Int64("scanned", scanned.Load()),
		zap.Int("indexed", stats.FileCount),
		zap.Int64("skipped", skipped.Load()),
	)
	return stats, nil
}

func (w *Walker) shouldIgnore(path string) bool {
	for _, pattern := range w.ignored {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}
