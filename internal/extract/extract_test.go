package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsTextFile(t *testing.T) {
	require.True(t, IsTextFile("main.go"))
	require.True(t, IsTextFile("README.MD"))
	require.True(t, IsTextFile("config.yaml"))
	require.False(t, IsTextFile("photo.png"))
	require.False(t, IsTextFile("binary"))
	require.False(t, IsTextFile("archive.tar.gz"))
}

func TestExtract_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello indexing"), 0o644))
	require.Equal(t, "hello indexing", Extract(path))
}

func TestExtract_MissingFile(t *testing.T) {
	require.Equal(t, "", Extract(filepath.Join(t.TempDir(), "absent.txt")))
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50}, 0o644))
	require.Equal(t, "", Extract(path))
}

func TestMarkdownToText_StripsMarkup(t *testing.T) {
	source := []byte("# Title\n\nSome *emphasized* text with a [link](https://example.com).\n")
	out := MarkdownToText(source)
	require.Contains(t, out, "Title")
	require.Contains(t, out, "Some emphasized text with a link.")
	require.NotContains(t, out, "#")
	require.NotContains(t, out, "*")
	require.NotContains(t, out, "https://example.com")
}

func TestMarkdownToText_KeepsFencedCode(t *testing.T) {
	source := []byte("Intro paragraph.\n\n```go\nfunc main() {}\n```\n")
	out := MarkdownToText(source)
	require.Contains(t, out, "Intro paragraph.")
	require.Contains(t, out, "func main() {}")
}

func TestNormalizePath(t *testing.T) {
	require.Equal(t, "a/b/c.txt", NormalizePath("a//b/./c.txt"))
	require.Equal(t, "a/c.txt", NormalizePath("a/b/../c.txt"))
}
