package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplit_EmptyInput(t *testing.T) {
	require.Nil(t, Split("", Options{}))
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	text := "a reasonably sized paragraph of plain text content"
	chunks := Split(text, Options{ChunkSize: 500, Overlap: 50})
	require.Len(t, chunks, 1)
	require.Equal(t, text, chunks[0])
}

func TestSplit_TinyTextDropped(t *testing.T) {
	chunks := Split("too short", Options{ChunkSize: 500, Overlap: 50})
	require.Empty(t, chunks)
}

func TestSplit_PrefersSentenceBoundary(t *testing.T) {
	text := "Sentence one is here. Sentence two follows after. Sentence three ends it."
	chunks := Split(text, Options{ChunkSize: 30, Overlap: 5, MinLength: 5})
	require.NotEmpty(t, chunks)
	// the first window holds a terminator past its midpoint, so the cut
	// lands exactly on it
	require.Equal(t, "Sentence one is here.", chunks[0])
}

func TestSplit_OverlapCoversWholeText(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog number ")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString(". ")
	}
	text := b.String()
	chunks := Split(text, Options{ChunkSize: 200, Overlap: 20, MinLength: 5})
	require.Greater(t, len(chunks), 1)
	// ordered reassembly: each chunk's content appears in the original at a
	// non-decreasing offset
	last := 0
	for _, chunk := range chunks {
		idx := strings.Index(text[last:], chunk)
		require.GreaterOrEqual(t, idx, 0)
		last += idx
	}
}

func TestSplit_FinalWindowEmittedOnce(t *testing.T) {
	// A text shorter than the window must produce exactly one chunk, not a
	// crawl of near-duplicate suffixes.
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 3)
	chunks := Split(text, Options{ChunkSize: 500, Overlap: 50})
	require.Len(t, chunks, 1)

	// Two windows cover this text; the second reaches the end and stops.
	longer := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 16)
	chunks = Split(longer, Options{ChunkSize: 500, Overlap: 50})
	require.Len(t, chunks, 2)
}

func TestSplit_InvalidOverlapClamped(t *testing.T) {
	text := strings.Repeat("abcdefghij. ", 100)
	// overlap >= chunk size would stall the cursor without clamping
	chunks := Split(text, Options{ChunkSize: 100, Overlap: 100, MinLength: 5})
	require.NotEmpty(t, chunks)
	require.Less(t, len(chunks), maxChunks)
}

func TestSplit_TerminatesOnPathologicalInput(t *testing.T) {
	// no sentence boundaries at all, oversized input
	text := strings.Repeat("a", MaxInputLen+1000)
	chunks := Split(text, Options{ChunkSize: 500, Overlap: 50})
	require.NotEmpty(t, chunks)
	require.LessOrEqual(t, len(chunks), maxChunks)
}

func TestSplit_ChunkNeverExceedsSize(t *testing.T) {
	text := strings.Repeat("word and more words. ", 200)
	chunks := Split(text, Options{ChunkSize: 120, Overlap: 10, MinLength: 5})
	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), 120)
	}
}

func TestOptionsNormalized_Defaults(t *testing.T) {
	opts := Options{}.normalized()
	require.Equal(t, DefaultChunkSize, opts.ChunkSize)
	require.Equal(t, DefaultOverlap, opts.Overlap)
	require.Equal(t, DefaultMinLength, opts.MinLength)
}

func TestOptionsNormalized_SmallChunkClampsOverlap(t *testing.T) {
	opts := Options{ChunkSize: 100, Overlap: 150}.normalized()
	require.Equal(t, 10, opts.Overlap)
}
