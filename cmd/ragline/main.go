package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/ragline/internal/ai"
	"github.com/xxxsen/ragline/internal/chunker"
	"github.com/xxxsen/ragline/internal/config"
	"github.com/xxxsen/ragline/internal/db"
	"github.com/xxxsen/ragline/internal/embedcache"
	"github.com/xxxsen/ragline/internal/enhance"
	"github.com/xxxsen/ragline/internal/filestore"
	"github.com/xxxsen/ragline/internal/handler"
	"github.com/xxxsen/ragline/internal/ingest"
	"github.com/xxxsen/ragline/internal/job"
	"github.com/xxxsen/ragline/internal/middleware"
	"github.com/xxxsen/ragline/internal/rag"
	"github.com/xxxsen/ragline/internal/repo"
	"github.com/xxxsen/ragline/internal/retrieval"
	"github.com/xxxsen/ragline/internal/schedule"
	"github.com/xxxsen/ragline/internal/vectorindex"
	memoryindex "github.com/xxxsen/ragline/internal/vectorindex/memory"
	pgvectorindex "github.com/xxxsen/ragline/internal/vectorindex/pgvector"
	qdrantindex "github.com/xxxsen/ragline/internal/vectorindex/qdrant"
)

func main() {
	var configPath string
	var migrationsDir string

	rootCmd := &cobra.Command{
		Use:   "ragline",
		Short: "ragline retrieval augmented answering server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run ragline server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
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

			catalog, err := repo.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open catalog db: %w", err)
			}
			if err := repo.ApplyMigrations(catalog, migrationsDir); err != nil {
				return fmt.Errorf("catalog migrations: %w", err)
			}
			return runServer(cfg, catalog)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	runCmd.Flags().StringVar(&migrationsDir, "migrations", "migrations", "path to catalog migrations")
	rootCmd.AddCommand(runCmd)

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "run one corpus sync round and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			catalog, err := repo.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open catalog db: %w", err)
			}
			if err := repo.ApplyMigrations(catalog, migrationsDir); err != nil {
				return fmt.Errorf("catalog migrations: %w", err)
			}
			app, err := buildApp(cfg, catalog)
			if err != nil {
				return err
			}
			if app.loader == nil {
				return fmt.Errorf("no corpus store configured")
			}
			_, err = app.loader.Sync(context.Background())
			return err
		},
	}
	syncCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	syncCmd.Flags().StringVar(&migrationsDir, "migrations", "migrations", "path to catalog migrations")
	rootCmd.AddCommand(syncCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

type app struct {
	rag       *rag.Service
	ingest    *ingest.Service
	retriever *retrieval.Retriever
	docs      *repo.DocumentRepo
	loader    *ingest.CorpusLoader
	cacheRepo *repo.EmbeddingCacheRepo
}

func buildApp(cfg *config.Config, catalog *sql.DB) (*app, error) {
	timeout := time.Duration(cfg.AI.TimeoutSecs) * time.Second

	genEntries := make([]ai.GeneratorEntry, 0, len(cfg.AI.Chat))
	for _, item := range cfg.AI.Chat {
		provider, err := ai.NewChatProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init chat provider %s: %w", item.Provider, err)
		}
		genEntries = append(genEntries, ai.GeneratorEntry{
			Name: item.Provider + "/" + item.Model,
			Generator: ai.NewGenerator(provider, item.Model, ai.GenOptions{
				Temperature: cfg.Generation.Temperature,
				MaxTokens:   cfg.Generation.MaxTokens,
			}, timeout),
		})
	}
	generator := ai.NewGroupGenerator(genEntries)

	embedEntries := make([]ai.EmbedderEntry, 0, len(cfg.AI.Embed))
	for _, item := range cfg.AI.Embed {
		provider, err := ai.NewEmbedProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init embed provider %s: %w", item.Provider, err)
		}
		embedEntries = append(embedEntries, ai.EmbedderEntry{
			Name:     item.Provider + "/" + item.Model,
			Embedder: ai.NewEmbedder(provider, item.Model, cfg.VectorIndex.Dimension, timeout),
		})
	}
	embedder := ai.NewGroupEmbedder(embedEntries)

	var cacheRepo *repo.EmbeddingCacheRepo
	if cfg.EmbedCache.DBDSN != "" {
		cacheDB, err := db.Open(cfg.EmbedCache.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("open embed cache db: %w", err)
		}
		if err := db.ApplyMigrations(cacheDB); err != nil {
			return nil, fmt.Errorf("embed cache migrations: %w", err)
		}
		cacheRepo = repo.NewEmbeddingCacheRepo(cacheDB)
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	}
	embedder = embedcache.WrapLruCacheToEmbedder(embedder,
		cfg.EmbedCache.LRUSize, time.Duration(cfg.EmbedCache.TTLMinutes)*time.Minute)

	index, err := buildIndex(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.VectorIndex.Type != "none" {
		distance, err := vectorindex.ParseDistance(cfg.VectorIndex.Distance)
		if err != nil {
			return nil, err
		}
		if err := index.EnsureCollection(context.Background(), cfg.VectorIndex.Dimension, distance); err != nil {
			return nil, fmt.Errorf("ensure collection: %w", err)
		}
	}

	enhancer, err := buildEnhancer(cfg)
	if err != nil {
		return nil, err
	}

	retriever := retrieval.New(embedder, index,
		cfg.Retrieval.DefaultTopK, cfg.Retrieval.SimilarityThreshold)
	ragService := rag.New(retriever, generator, enhancer, rag.Options{
		SystemPrompt: cfg.Generation.SystemPrompt,
		SourceTopK:   cfg.Retrieval.DefaultTopK,
		ContextTopK:  cfg.Retrieval.ContextTopK,
		Summarize:    cfg.Enhancer.Type != "none" && cfg.Enhancer.Type != "",
		Rerank:       cfg.Enhancer.Type != "none" && cfg.Enhancer.Type != "" && cfg.Enhancer.Rerank,
	})

	docRepo := repo.NewDocumentRepo(catalog)
	splitter := chunker.NewSplitter(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	ingestService := ingest.New(splitter, embedder, index, docRepo)

	var loader *ingest.CorpusLoader
	if cfg.Corpus.Store.Type != "" {
		store, err := filestore.New(cfg.Corpus.Store)
		if err != nil {
			return nil, fmt.Errorf("init corpus store: %w", err)
		}
		loader = ingest.NewCorpusLoader(store, ingestService, cfg.Corpus)
	}

	return &app{
		rag:       ragService,
		ingest:    ingestService,
		retriever: retriever,
		docs:      docRepo,
		loader:    loader,
		cacheRepo: cacheRepo,
	}, nil
}

func buildIndex(cfg *config.Config) (vectorindex.Index, error) {
	switch cfg.VectorIndex.Type {
	case "qdrant":
		var qcfg qdrantindex.Config
		if err := decodeComponentConfig(cfg.VectorIndex.Data, &qcfg); err != nil {
			return nil, err
		}
		return qdrantindex.New(qcfg, cfg.VectorIndex.Collection)
	case "pgvector":
		var pcfg struct {
			DSN string `json:"dsn"`
		}
		if err := decodeComponentConfig(cfg.VectorIndex.Data, &pcfg); err != nil {
			return nil, err
		}
		conn, err := db.Open(pcfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open pgvector db: %w", err)
		}
		return pgvectorindex.New(conn, cfg.VectorIndex.Collection)
	case "memory":
		return memoryindex.NewStore(), nil
	case "none":
		return vectorindex.Unavailable{}, nil
	}
	return nil, fmt.Errorf("unsupported vector index type: %s", cfg.VectorIndex.Type)
}

func buildEnhancer(cfg *config.Config) (enhance.Enhancer, error) {
	switch cfg.Enhancer.Type {
	case "", "none":
		return enhance.Noop{}, nil
	case "cohere":
		var ccfg enhance.CohereConfig
		if err := decodeComponentConfig(cfg.Enhancer.Data, &ccfg); err != nil {
			return nil, err
		}
		return enhance.NewCohere(ccfg)
	}
	return nil, fmt.Errorf("unsupported enhancer type: %s", cfg.Enhancer.Type)
}

func decodeComponentConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("component config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode component config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode component config: %w", err)
	}
	return nil
}

func runServer(cfg *config.Config, catalog *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_path", cfg.DBPath),
		zap.String("vector_index", cfg.VectorIndex.Type),
	)

	app, err := buildApp(cfg, catalog)
	if err != nil {
		return err
	}

	chatHandler := handler.NewChatHandler(app.rag)
	documentHandler := handler.NewDocumentHandler(app.ingest, app.docs, app.retriever)
	deps := handler.RouterDeps{
		Chat:      chatHandler,
		Documents: documentHandler,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if app.loader != nil && cfg.Jobs.CorpusSyncSpec != "" {
		if err := scheduler.AddJob(job.NewCorpusSyncJob(app.loader), cfg.Jobs.CorpusSyncSpec); err != nil {
			return err
		}
	}
	if app.cacheRepo != nil {
		if err := scheduler.AddJob(
			job.NewEmbeddingCacheCleanupJob(app.cacheRepo, cfg.EmbedCache.MaxAgeDays),
			cfg.Jobs.CacheCleanupSpec,
		); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening",
		zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
