// Command indexer builds the search index.
//
// By default it walks a directory of XML metadata records and writes a
// fresh index (or extends the existing one with -update). With -follow it
// instead consumes ingest events from Kafka, flushing periodically and
// announcing every new generation.
//
// Usage:
//
//	go run ./cmd/indexer -docs ./records [-index ./index] [-update]
//	go run ./cmd/indexer -follow [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/announce"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	docsDir := flag.String("docs", "", "directory of XML metadata records to index")
	indexDir := flag.String("index", "", "index directory (overrides indexer.dataDir)")
	update := flag.Bool("update", false, "add to the existing index instead of creating a new one")
	follow := flag.Bool("follow", false, "consume ingest events from Kafka instead of walking -docs")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *indexDir != "" {
		cfg.Indexer.DataDir = *indexDir
	}
	if *update {
		cfg.Indexer.OpenMode = indexer.OpenModeUpdate
	}
	if !*follow && *docsDir == "" {
		fmt.Fprintln(os.Stderr, "usage: indexer -docs DIR [-index DIR] [-update] | indexer -follow")
		os.Exit(2)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled && *follow {
		shutdown := metrics.StartServer(cfg.Metrics.Port, m)
		defer shutdown(context.Background())
	}

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
	}

	store, err := snapshot.New(cfg.Snapshot)
	if err != nil {
		slog.Error("failed to create snapshot store", "error", err)
		os.Exit(1)
	}
	var uploader announce.Uploader
	if store != nil {
		if err := store.EnsureBucket(ctx); err != nil {
			slog.Error("snapshot bucket unavailable", "error", err)
			os.Exit(1)
		}
		uploader = store
	}

	var completions kafka.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		completions = producer
	}
	announcer := announce.New(completions, uploader, cat)
	engineOpts := []indexer.Option{
		indexer.WithMetrics(m),
		indexer.WithFlushHook(announcer.Hook()),
	}

	if *follow {
		if err := runFollow(ctx, cfg, cat, m, engineOpts); err != nil {
			slog.Error("indexer stopped with error", "error", err)
			os.Exit(1)
		}
		return
	}

	extractor := extract.New(cfg.Indexer.KeyField)
	stats, err := indexer.BuildIndex(ctx, extractor.Walk(*docsDir), cfg.Indexer.DataDir, indexer.BuildOptions{
		OpenMode:    cfg.Indexer.OpenMode,
		Compression: cfg.Indexer.Compression,
		KeyField:    cfg.Indexer.KeyField,
		Engine:      engineOpts,
	})
	if err != nil {
		slog.Error("indexing failed", "docs", *docsDir, "error", err)
		os.Exit(1)
	}
	fmt.Printf("%d documents indexed, %d skipped, %d total milliseconds\n",
		stats.Count, stats.Skipped, stats.ElapsedMs)
}

func runFollow(ctx context.Context, cfg *config.Config, cat *catalog.Catalog, m *metrics.Metrics, opts []indexer.Option) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("follow mode needs kafka.brokers")
	}
	eng, err := indexer.NewEngine(cfg.Indexer, tokenizer.NewSpanish(tokenizer.DefaultConfig()), opts...)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	eng.StartFlushLoop(ctx)

	handler := consumer.HandleMessage(eng, extract.New(cfg.Indexer.KeyField), cat, m)
	kafkaConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.DocumentIngest,
		cfg.Kafka.ConsumerGroup,
		handler,
		kafka.FromFirstOffset(),
	)
	indexConsumer := consumer.New(kafkaConsumer)
	defer indexConsumer.Close()

	slog.Info("indexer ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
		"data_dir", cfg.Indexer.DataDir,
	)
	if err := indexConsumer.Start(ctx); err != nil {
		return err
	}
	slog.Info("flushing before shutdown")
	return eng.Close(context.Background())
}
