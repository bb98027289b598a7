package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const PreviewMaxLen = 200

// ChunkPathSeparator joins a source path with a chunk ordinal to form the
// unique storage key for multi-chunk files, e.g. "src/app.go#chunk-2".
const ChunkPathSeparator = "#chunk-"

// Chunk is a contiguous slice of a document's text, the unit of embedding
// and storage.
type Chunk struct {
	SourcePath  string
	Index       int
	TotalChunks int
	Content     string
	Preview     string
}

// StorePath returns the unique key the chunk is persisted under. Files that
// produce a single chunk keep their plain source path so legacy non-chunked
// rows stay addressable.
func (c *Chunk) StorePath() string {
	if c.TotalChunks > 1 {
		return fmt.Sprintf("%s%s%d", c.SourcePath, ChunkPathSeparator, c.Index)
	}
	return c.SourcePath
}

// SourceOfPath strips a chunk suffix back to the owning file path.
func SourceOfPath(path string) string {
	if idx := strings.Index(path, ChunkPathSeparator); idx >= 0 {
		return path[:idx]
	}
	return path
}

// VectorRecord is the persisted unit, one row per chunk. Path is the sole
// identity key: re-upserting the same path replaces the row in place.
type VectorRecord struct {
	ID        string
	Path      string
	Content   string
	Preview   string
	Embedding []float32 // nil means text-search-only
	Metadata  map[string]interface{}
	IndexedAt time.Time
	UpdatedAt time.Time
}

// ScoredRecord is a VectorRecord with a relevance score attached by the store.
type ScoredRecord struct {
	VectorRecord
	Score float64
}

type MatchKind string

const (
	MatchVector MatchKind = "vector"
	MatchText   MatchKind = "text"
)

// SearchResult is the deduplicated, presentation-ready unit returned to
// callers: one entry per source file, holding the best chunk score.
type SearchResult struct {
	Path       string    `json:"path"`
	Preview    string    `json:"preview"`
	Score      float64   `json:"score"`
	MatchedVia MatchKind `json:"matched_via"`
}

type QueueEvent string

const (
	EventAdd    QueueEvent = "add"
	EventChange QueueEvent = "change"
)

// QueueItem is an ephemeral indexing queue entry. At most one live entry
// exists per path; a newer event replaces an older one.
type QueueItem struct {
	Path       string
	Event      QueueEvent
	EnqueuedAt time.Time
}

// Preview truncates content to at most PreviewMaxLen bytes, backing up to a
// rune boundary so a multi-byte character is never split.
func Preview(content string) string {
	if len(content) <= PreviewMaxLen {
		return content
	}
	cut := PreviewMaxLen
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}
