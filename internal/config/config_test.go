package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"database": {"host": "localhost"}}`))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 500, cfg.Indexing.ChunkSize)
	require.Equal(t, 50, cfg.Indexing.Overlap)
	require.Equal(t, 5, cfg.Indexing.MaxChunksPerFile)
	require.Equal(t, 0.7, cfg.Search.VectorThreshold)
	require.Equal(t, 12, cfg.Search.MaxResults)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, 240, cfg.RateLimitPerMin)
}

func TestLoad_RequiresDatabase(t *testing.T) {
	_, err := Load(writeConfig(t, `{}`))
	require.Error(t, err)
}

func TestLoad_RequiresEmbedModelWithProvider(t *testing.T) {
	_, err := Load(writeConfig(t, `{
		"database": {"host": "localhost"},
		"ai": {"provider": "openai"}
	}`))
	require.Error(t, err)
}

func TestLoad_ExplicitValuesKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"port": 9999,
		"database": {"dsn": "postgres://u:p@h/db"},
		"indexing": {"chunk_size": 300, "overlap": 30},
		"search": {"max_results": 5}
	}`))
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.Port)
	require.Equal(t, 300, cfg.Indexing.ChunkSize)
	require.Equal(t, 30, cfg.Indexing.Overlap)
	require.Equal(t, 5, cfg.Search.MaxResults)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
