package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port            int              `json:"port"`
	AllowedOrigins  []string         `json:"allowed_origins"`
	RateLimitPerMin int              `json:"rate_limit_per_min"`
	LogConfig       logger.LogConfig `json:"log_config"`
	Database        DatabaseConfig   `json:"database"`
	AI              AIConfig         `json:"ai"`
	Indexing        IndexingConfig   `json:"indexing"`
	Search          SearchConfig     `json:"search"`
	Jobs            JobsConfig       `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AIConfig struct {
	// Provider is empty when no embedding backend is available; the
	// pipeline then stores text-only records and search stays lexical.
	Provider   string      `json:"provider"`
	EmbedModel string      `json:"embed_model"`
	ChatModel  string      `json:"chat_model"`
	BatchSize  int         `json:"batch_size"`
	Dimensions int         `json:"dimensions"`
	CacheSize  int         `json:"cache_size"`
	CacheTTL   int         `json:"cache_ttl_minutes"`
	DBCache    bool        `json:"db_cache"`
	Data       interface{} `json:"data"`
}

type IndexingConfig struct {
	ChunkSize        int      `json:"chunk_size"`
	Overlap          int      `json:"overlap"`
	MinContentLen    int      `json:"min_content_len"`
	MaxChunksPerFile int      `json:"max_chunks_per_file"`
	DrainBatchSize   int      `json:"drain_batch_size"`
	DebounceMs       int      `json:"debounce_ms"`
	IgnorePatterns   []string `json:"ignore_patterns"`
}

type SearchConfig struct {
	VectorThreshold float64 `json:"vector_threshold"`
	TextThreshold   float64 `json:"text_threshold"`
	MaxResults      int     `json:"max_results"`
}

type JobsConfig struct {
	ReconcileSpec    string `json:"reconcile_spec"`
	CacheCleanupSpec string `json:"cache_cleanup_spec"`
	CacheKeepDays    int    `json:"cache_keep_days"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.AI.Provider != "" && cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required when ai.provider is set")
	}
	if cfg.Indexing.ChunkSize == 0 {
		cfg.Indexing.ChunkSize = 500
	}
	if cfg.Indexing.Overlap == 0 {
		cfg.Indexing.Overlap = 50
	}
	if cfg.Indexing.MinContentLen == 0 {
		cfg.Indexing.MinContentLen = 50
	}
	if cfg.Indexing.MaxChunksPerFile == 0 {
		cfg.Indexing.MaxChunksPerFile = 5
	}
	if cfg.Indexing.DrainBatchSize == 0 {
		cfg.Indexing.DrainBatchSize = 5
	}
	if cfg.Indexing.DebounceMs == 0 {
		cfg.Indexing.DebounceMs = 1000
	}
	if cfg.Search.VectorThreshold == 0 {
		cfg.Search.VectorThreshold = 0.7
	}
	if cfg.Search.TextThreshold == 0 {
		cfg.Search.TextThreshold = 0.05
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 12
	}
	if cfg.AI.CacheSize == 0 {
		cfg.AI.CacheSize = 10000
	}
	if cfg.AI.CacheTTL == 0 {
		cfg.AI.CacheTTL = 120
	}
	if cfg.Jobs.CacheKeepDays == 0 {
		cfg.Jobs.CacheKeepDays = 30
	}
	if cfg.RateLimitPerMin == 0 {
		cfg.RateLimitPerMin = 240
	}
	return &cfg, nil
}
