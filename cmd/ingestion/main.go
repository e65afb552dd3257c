// Command ingestion feeds metadata records to the indexer through Kafka.
//
// With -docs it publishes every file under a directory and exits. Without
// it, it serves POST /api/v1/records, which validates a single record and
// publishes it. Published records are tracked in the PostgreSQL catalog
// when one is configured.
//
// Usage:
//
//	go run ./cmd/ingestion -docs ./records [-config configs/development.yaml]
//	go run ./cmd/ingestion [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	docsDir := flag.String("docs", "", "publish every record under this directory and exit")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if len(cfg.Kafka.Brokers) == 0 {
		slog.Error("kafka.brokers is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	var cat *catalog.Catalog
	if db != nil {
		cat = catalog.New(db.DB)
		if err := cat.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare catalog", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to postgres", "host", cfg.Postgres.Host)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DocumentIngest)
	pub := publisher.New(producer, cat)

	if *docsDir != "" {
		published, failed := publishDir(ctx, pub, *docsDir)
		fmt.Printf("%d records published, %d failed\n", published, failed)
		if failed > 0 {
			os.Exit(1)
		}
		return
	}

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, m)
		defer shutdown(context.Background())
	}

	checker := health.NewChecker()
	if cat != nil {
		checker.Register("postgres", health.Ping(cat.Ping, health.StatusDown))
	}

	mux := http.NewServeMux()
	handler.New(pub, cat).Routes(mux)
	checker.Routes(mux)

	var chain http.Handler = mux
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
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}

// publishDir publishes every regular file under root in lexical order.
func publishDir(ctx context.Context, pub *publisher.Publisher, root string) (published, failed int) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("skipping unreadable entry", "path", path, "error", err)
			failed++
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if _, err := pub.PublishFile(ctx, path); err != nil {
			slog.Error("failed to publish record", "path", path, "error", err)
			failed++
			return nil
		}
		published++
		return nil
	})
	if err != nil {
		slog.Error("publishing stopped", "error", err)
	}
	return published, failed
}
