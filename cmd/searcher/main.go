// Command searcher serves the HTTP search API over a built index.
//
// The index is loaded from indexer.dataDir, optionally pulled from the
// snapshot store first. When Kafka is configured the service follows the
// index.complete topic and reloads every new generation.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml] [-index ./index]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/postag"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/batch"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/builder"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	indexDir := flag.String("index", "", "index directory (overrides indexer.dataDir)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *indexDir != "" {
		cfg.Indexer.DataDir = *indexDir
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "data_dir", cfg.Indexer.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, m)
		defer shutdown(context.Background())
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
			)
		}
	}

	store, err := snapshot.New(cfg.Snapshot)
	if err != nil {
		slog.Error("failed to create snapshot store", "error", err)
		os.Exit(1)
	}
	var fetcher reload.Fetcher
	if store != nil {
		fetcher = store
	}

	exec := executor.New(nil)
	reloader := reload.New(exec, cfg.Indexer.DataDir, queryCache, fetcher)
	if err := reloader.Load(ctx); err != nil {
		slog.Error("failed to load index", "error", err)
		os.Exit(1)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		// every replica must see every generation, so each gets its own group
		group := fmt.Sprintf("%s-searcher-%s", cfg.Kafka.ConsumerGroup, uuid.NewString()[:8])
		completions := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, group, reloader.HandleMessage())
		defer completions.Close()
		go func() {
			if err := completions.Start(ctx); err != nil {
				slog.Error("index reload consumer error", "error", err)
			}
		}()
		slog.Info("following index generations", "topic", cfg.Kafka.Topics.IndexComplete, "group", group)
	}

	lexicon, err := postag.Open(cfg.Search.LexiconPath)
	if err != nil {
		slog.Error("failed to load lexicon", "error", err)
		os.Exit(1)
	}
	analyzer := tokenizer.NewSpanish(tokenizer.DefaultConfig())
	p := parser.New(cfg.Search.DefaultField, analyzer)
	infoNeeds := batch.NewRunner(exec, p, builder.NewPOS(analyzer, document.DefaultSchema()), lexicon, 1)

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		r := exec.Reader()
		if r == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no index loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d documents", reloader.Generation(), r.TotalDocs()),
		}
	})
	if redisClient != nil {
		checker.Register("redis", health.Ping(redisClient.Ping, health.StatusDegraded))
	}

	opts := []handler.Option{handler.WithMetrics(m)}
	if queryCache != nil {
		opts = append(opts, handler.WithCache(queryCache))
	}
	h := handler.New(exec, p, infoNeeds, cfg.Search.DefaultLimit, cfg.Search.MaxResults, opts...)

	mux := http.NewServeMux()
	h.Routes(mux)
	checker.Routes(mux)

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Search.Timeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
