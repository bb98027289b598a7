package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/semidx/semidx/internal/ai"
	"github.com/semidx/semidx/internal/config"
	"github.com/semidx/semidx/internal/db"
	"github.com/semidx/semidx/internal/embedcache"
	"github.com/semidx/semidx/internal/handler"
	"github.com/semidx/semidx/internal/job"
	"github.com/semidx/semidx/internal/middleware"
	"github.com/semidx/semidx/internal/schedule"
	"github.com/semidx/semidx/internal/service"
	"github.com/semidx/semidx/internal/store"
	"github.com/semidx/semidx/internal/walker"
	"github.com/semidx/semidx/internal/watcher"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "semidx",
		Short: "semidx document indexing and retrieval server",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the semidx server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(configPath)
			if err != nil {
				return err
			}
			defer app.db.Close()
			return runServer(app)
		},
	}

	indexCmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "bulk index a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(configPath)
			if err != nil {
				return err
			}
			defer app.db.Close()
			return runIndex(app, args[0])
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "query the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(configPath)
			if err != nil {
				return err
			}
			defer app.db.Close()
			return runSearch(app, args)
		},
	}

	rootCmd.AddCommand(runCmd, indexCmd, searchCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

type app struct {
	cfg       *config.Config
	db        *sql.DB
	vectors   *store.PGVectorStore
	cacheRepo *store.EmbeddingCacheRepo
	embedder  ai.IEmbedder
	indexer   *service.IndexService
	searcher  *service.SearchService
}

func setup(configPath string) (*app, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	vectors := store.NewPGVectorStore(conn)
	cacheRepo := store.NewEmbeddingCacheRepo(conn)

	embedder, err := buildEmbedder(cfg, cacheRepo)
	if err != nil {
		conn.Close()
		return nil, err
	}

	var batcher *ai.Batcher
	if embedder != nil {
		batcher = ai.NewBatcher(embedder, ai.BatcherOptions{BatchSize: cfg.AI.BatchSize})
	}

	return &app{
		cfg:       cfg,
		db:        conn,
		vectors:   vectors,
		cacheRepo: cacheRepo,
		embedder:  embedder,
		indexer:   service.NewIndexService(vectors, batcher, cfg.Indexing),
		searcher:  service.NewSearchService(vectors, embedder, cfg.Search),
	}, nil
}

// buildEmbedder returns nil when no provider is configured; the pipeline then
// runs text-only.
func buildEmbedder(cfg *config.Config, cacheRepo *store.EmbeddingCacheRepo) (ai.IEmbedder, error) {
	if cfg.AI.Provider == "" {
		logutil.GetLogger(context.Background()).Warn("no embedding provider configured, search will be lexical only")
		return nil, nil
	}
	provider, err := ai.NewEmbedProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return nil, fmt.Errorf("init embed provider: %w", err)
	}
	embedder := ai.NewEmbedder(provider, cfg.AI.EmbedModel)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.CacheSize, time.Duration(cfg.AI.CacheTTL)*time.Minute)
	if cfg.AI.DBCache {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	}
	return embedder, nil
}

func runServer(a *app) error {
	ctx := context.Background()
	logutil.GetLogger(ctx).Info("starting server",
		zap.Int("port", a.cfg.Port),
		zap.String("provider", a.cfg.AI.Provider),
	)

	w := watcher.New(a.indexer, a.cfg.Indexing)

	scheduler := schedule.NewCronScheduler()
	if a.cfg.Jobs.ReconcileSpec != "" {
		if err := scheduler.AddJob(job.NewReconcileJob(a.vectors), a.cfg.Jobs.ReconcileSpec); err != nil {
			return fmt.Errorf("add reconcile job: %w", err)
		}
	}
	if a.cfg.Jobs.CacheCleanupSpec != "" {
		if err := scheduler.AddJob(job.NewCacheCleanupJob(a.cacheRepo, a.cfg.Jobs.CacheKeepDays), a.cfg.Jobs.CacheCleanupSpec); err != nil {
			return fmt.Errorf("add cache cleanup job: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Search: handler.NewSearchHandler(a.searcher),
		Index:  handler.NewIndexHandler(a.indexer, w),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", a.cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(a.cfg.AllowedOrigins),
			middleware.RateLimit(a.cfg.RateLimitPerMin, time.Minute),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", a.cfg.Port)))

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(ctx).Error("server error", zap.Error(err))
		}
	}()

	<-sigCtx.Done()
	logutil.GetLogger(ctx).Info("server stopping...")
	w.StopAll(ctx)
	return nil
}

func runIndex(a *app, dir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wk := walker.New(a.indexer, a.cfg.Indexing)
	stats, err := wk.IndexDir(ctx, dir, func(p walker.Progress) {
		fmt.Printf("scanned=%d indexed=%d skipped=%d %s\n", p.Scanned, p.Indexed, p.Skipped, p.Current)
	})
	if err != nil {
		return err
	}
	fmt.Printf("indexed %d files (%d chunks, embeddings=%v)\n",
		stats.FileCount, stats.ChunkCount, stats.EmbeddingsGenerated)
	return nil
}

func runSearch(a *app, args []string) error {
	ctx := context.Background()
	query := strings.Join(args, " ")
	results, err := a.searcher.Search(ctx, query, service.SearchOptions{
		Threshold: service.InteractiveThreshold,
	})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%.3f  [%s]  %s\n      %s\n", r.Score, r.MatchedVia, r.Path, r.Preview)
	}
	return nil
}
