package model

// EmbeddingCache is a persisted provider response keyed by model and content
// hash, so unchanged chunks are never re-embedded across restarts.
type EmbeddingCache struct {
	ModelName   string
	ContentHash string
	Embedding   []float32
	Ctime       int64
}
