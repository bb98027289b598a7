package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/semidx/semidx/internal/ai"
	"github.com/semidx/semidx/internal/chunker"
	"github.com/semidx/semidx/internal/config"
	"github.com/semidx/semidx/internal/model"
	apperr "github.com/semidx/semidx/internal/pkg/errors"
	"github.com/semidx/semidx/internal/store"
)

// FileInput is the ingestion boundary's tagged input shape. Pre-chunked
// input carries Chunks; flat legacy input carries Content. Both normalize
// into one Chunk list before entering the pipeline.
type FileInput struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Content string   `json:"content"`
	Preview string   `json:"preview"`
	Chunks  []string `json:"chunks"`
}

type IndexStats struct {
	FileCount           int  `json:"file_count"`
	ChunkCount          int  `json:"chunk_count"`
	EmbeddingsGenerated bool `json:"embeddings_generated"`
}

type IndexService struct {
	store   store.VectorStore
	batcher *ai.Batcher
	cfg     config.IndexingConfig
}

// NewIndexService builds the indexing front door. batcher may be nil when no
// embedding provider is configured; records are then stored text-only.
func NewIndexService(vs store.VectorStore, batcher *ai.Batcher, cfg config.IndexingConfig) *IndexService {
	return &IndexService{store: vs, batcher: batcher, cfg: cfg}
}

// IndexText chunks raw file content and indexes the result under sourcePath.
func (s *IndexService) IndexText(ctx context.Context, sourcePath, content string) (*IndexStats, error) {
	chunks := chunker.Split(content, chunker.Options{
		ChunkSize: s.cfg.ChunkSize,
		Overlap:   s.cfg.Overlap,
	})
	return s.IndexFiles(ctx, []FileInput{{Path: sourcePath, Chunks: chunks}})
}

// IndexFiles normalizes the inputs into chunk records, generates embeddings
// when a provider is available, reconciles stale chunk rows, and commits the
// records in one upsert transaction.
func (s *IndexService) IndexFiles(ctx context.Context, files []FileInput) (*IndexStats, error) {
	logger := logutil.GetLogger(ctx)

	var records []*model.VectorRecord
	keepBySource := make(map[string][]string)
	for _, file := range files {
		if file.Path == "" {
			return nil, fmt.Errorf("%w: file path is required", apperr.ErrInvalid)
		}
		chunks := normalizeInput(file)
		for _, chunk := range chunks {
			storePath := chunk.StorePath()
			records = append(records, &model.VectorRecord{
				Path:    storePath,
				Content: chunk.Content,
				Preview: chunk.Preview,
				Metadata: map[string]interface{}{
					"sourceFile":  chunk.SourcePath,
					"fileName":    fileName(file),
					"fileType":    fileType(file.Path),
					"chunkIndex":  chunk.Index,
					"totalChunks": chunk.TotalChunks,
				},
			})
			keepBySource[chunk.SourcePath] = append(keepBySource[chunk.SourcePath], storePath)
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no indexable content", apperr.ErrInvalid)
	}

	embedded := s.attachEmbeddings(ctx, records)

	// Re-chunking can shrink a file's chunk count; the keep sets ride along
	// with the upsert so stale chunk rows are purged in the same transaction.
	if err := s.store.Upsert(ctx, records, keepBySource); err != nil {
		return nil, err
	}
	logger.Info("indexed files",
		zap.Int("files", len(files)),
		zap.Int("chunks", len(records)),
		zap.Bool("embeddings", embedded),
	)
	return &IndexStats{
		FileCount:           len(files),
		ChunkCount:          len(records),
		EmbeddingsGenerated: embedded,
	}, nil
}

// DeleteSource removes every record owned by sourcePath, including its
// chunk-suffixed variants.
func (s *IndexService) DeleteSource(ctx context.Context, sourcePath string) (int64, error) {
	// The path is a literal, not a pattern; escape it so names containing
	// LIKE metacharacters cannot delete their neighbors.
	removed, err := s.store.DeleteByPathPrefix(ctx, store.EscapeLike(sourcePath))
	if err != nil {
		return 0, err
	}
	chunkRemoved, err := s.store.DeleteByPathPrefix(ctx, store.EscapeLike(sourcePath)+model.ChunkPathSeparator+"%")
	if err != nil {
		return removed, err
	}
	return removed + chunkRemoved, nil
}

func (s *IndexService) ClearAll(ctx context.Context) error {
	return s.store.ClearAll(ctx)
}

// attachEmbeddings fills record embeddings in place and reports whether any
// were generated. Provider failures degrade to text-only records instead of
// failing the index operation.
func (s *IndexService) attachEmbeddings(ctx context.Context, records []*model.VectorRecord) bool {
	if s.batcher == nil {
		return false
	}
	logger := logutil.GetLogger(ctx)
	texts := make([]string, 0, len(records))
	for _, rec := range records {
		texts = append(texts, rec.Content)
	}
	vectors, err := s.batcher.EmbedBatch(ctx, texts)
	if err != nil {
		logger.Warn("failed to generate embeddings, storing text-only", zap.Error(err))
		return false
	}
	for i, rec := range records {
		rec.Embedding = vectors[i]
	}
	return true
}

func normalizeInput(file FileInput) []model.Chunk {
	var texts []string
	switch {
	case len(file.Chunks) > 0:
		texts = file.Chunks
	case file.Content != "":
		texts = []string{file.Content}
	}
	chunks := make([]model.Chunk, 0, len(texts))
	for i, text := range texts {
		preview := model.Preview(text)
		if i == 0 && len(texts) == 1 && file.Preview != "" {
			preview = file.Preview
		}
		chunks = append(chunks, model.Chunk{
			SourcePath:  file.Path,
			Index:       i,
			TotalChunks: len(texts),
			Content:     text,
			Preview:     preview,
		})
	}
	return chunks
}

func fileName(file FileInput) string {
	if file.Name != "" {
		return file.Name
	}
	return path.Base(file.Path)
}

func fileType(p string) string {
	ext := path.Ext(p)
	if ext == "" {
		return "unknown"
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
