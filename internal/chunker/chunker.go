// Package chunker splits raw document text into overlapping, boundary-aware
// segments sized for embedding.
package chunker

import "strings"

const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
	DefaultMinLength = 20

	// MaxInputLen caps the text walked in one call; longer inputs are
	// truncated before chunking.
	MaxInputLen = 1 << 20

	maxChunks     = 1000
	maxIterations = 2000
)

type Options struct {
	ChunkSize int
	Overlap   int
	// MinLength is the smallest trimmed chunk worth emitting. Callers
	// indexing whole files use a stricter 50 than the interactive default.
	MinLength int
}

func (o Options) normalized() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Overlap < 0 || o.Overlap >= o.ChunkSize {
		o.Overlap = min(DefaultOverlap, o.ChunkSize/10)
	}
	if o.MinLength <= 0 {
		o.MinLength = DefaultMinLength
	}
	return o
}

// Split walks text with a sliding window of opts.ChunkSize bytes, preferring
// to cut at the last sentence terminator or newline past the midpoint of the
// window so sentences are not split when a boundary exists. Consecutive
// chunks overlap by opts.Overlap bytes except possibly the last. The result
// preserves document order.
//
// Split always terminates: the cursor advances at least one byte per
// iteration and both iteration count and emitted chunks are capped.
func Split(text string, opts Options) []string {
	if text == "" {
		return nil
	}
	opts = opts.normalized()
	if len(text) > MaxInputLen {
		text = text[:MaxInputLen]
	}

	var chunks []string
	start := 0
	for iter := 0; start < len(text); iter++ {
		if iter >= maxIterations || len(chunks) >= maxChunks {
			break
		}
		end := min(start+opts.ChunkSize, len(text))
		chunk := text[start:end]

		// Cut at a sentence boundary when the window does not already
		// reach the end of the text.
		if end < len(text) {
			breakPoint := max(strings.LastIndexByte(chunk, '.'), strings.LastIndexByte(chunk, '\n'))
			if breakPoint > opts.ChunkSize/2 {
				chunk = chunk[:breakPoint+1]
			}
		}

		if trimmed := strings.TrimSpace(chunk); len(trimmed) > opts.MinLength {
			chunks = append(chunks, trimmed)
		}

		// The window that reaches the end of the text is the final chunk;
		// stepping past it would only re-emit suffixes of the tail.
		if end == len(text) {
			break
		}

		advance := len(chunk) - opts.Overlap
		if advance < 1 {
			advance = 1
		}
		start += advance
	}
	return chunks
}
