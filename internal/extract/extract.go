// Package extract reads file content as plain text for indexing. Extraction
// never errors into the pipeline: any unreadable or unsupported file yields
// an empty string and the caller skips it.
package extract

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// textExtensions is the allow-list of indexable text formats.
var textExtensions = map[string]struct{}{
	".txt": {}, ".md": {}, ".js": {}, ".ts": {}, ".jsx": {}, ".tsx": {},
	".json": {}, ".py": {}, ".java": {}, ".cpp": {}, ".c": {}, ".h": {},
	".cs": {}, ".go": {}, ".rs": {}, ".rb": {}, ".php": {}, ".swift": {},
	".kt": {}, ".scala": {}, ".sh": {}, ".yaml": {}, ".yml": {}, ".xml": {},
	".html": {}, ".css": {}, ".scss": {}, ".less": {}, ".sql": {}, ".r": {},
	".m": {}, ".pl": {}, ".lua": {}, ".vim": {}, ".clj": {}, ".hs": {},
	".elm": {}, ".ex": {}, ".exs": {}, ".ml": {}, ".fs": {}, ".vb": {},
	".dart": {}, ".pas": {}, ".asm": {},
}

// IsTextFile reports whether the path's extension is in the indexable
// allow-list.
func IsTextFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := textExtensions[ext]
	return ok
}

// Extract returns the file's plain-text content, or "" when the file is
// unreadable or not an indexable text type. Markdown is flattened to plain
// text so markup noise does not pollute embeddings.
func Extract(path string) string {
	if !IsTextFile(path) {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if strings.ToLower(filepath.Ext(path)) == ".md" {
		return MarkdownToText(data)
	}
	return string(data)
}

// MarkdownToText walks the markdown AST collecting text nodes, joining block
// contents with blank lines.
func MarkdownToText(source []byte) string {
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var parts []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if txt := nodeText(node, source); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, "\n\n")
}

func nodeText(n ast.Node, source []byte) string {
	if fenced, ok := n.(*ast.FencedCodeBlock); ok {
		var sb strings.Builder
		for i := 0; i < fenced.Lines().Len(); i++ {
			line := fenced.Lines().At(i)
			sb.Write(line.Value(source))
		}
		return strings.TrimSpace(sb.String())
	}
	var sb strings.Builder
	ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			if node.(*ast.Text).SoftLineBreak() || node.(*ast.Text).HardLineBreak() {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

// NormalizePath canonicalizes a path for use as the storage identity key.
func NormalizePath(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}
