// Command query runs a file of queries against a built index.
//
// A .xml file is read as a list of information needs; any other file holds
// one query per line, where a line starting with "spatial:" is a bounding
// box search.
//
// Usage:
//
//	go run ./cmd/query -index ./index -queries queries.txt [-output results.txt]
//	go run ./cmd/query -index ./index -queries needs.xml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/postag"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/batch"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/builder"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	indexDir := flag.String("index", "", "index directory (overrides indexer.dataDir)")
	queriesPath := flag.String("queries", "", "query file: one query per line, or .xml information needs")
	outputPath := flag.String("output", "", "result file (default stdout)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *queriesPath == "" {
		fmt.Fprintln(os.Stderr, "usage: query -queries FILE [-index DIR] [-output FILE]")
		os.Exit(2)
	}
	if *indexDir != "" {
		cfg.Indexer.DataDir = *indexDir
	}
	// results go to stdout by default, so logs go to stderr
	slog.SetDefault(logger.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *queriesPath, *outputPath); err != nil {
		slog.Error("query run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, queriesPath, outputPath string) error {
	reader, err := segment.OpenReader(filepath.Join(cfg.Indexer.DataDir, segment.FileName))
	if err != nil {
		return err
	}
	defer reader.Close()

	lexicon, err := postag.Open(cfg.Search.LexiconPath)
	if err != nil {
		return err
	}
	analyzer := tokenizer.NewSpanish(tokenizer.DefaultConfig())
	runner := batch.NewRunner(
		executor.New(reader),
		parser.New(cfg.Search.DefaultField, analyzer),
		builder.NewPOS(analyzer, document.DefaultSchema()),
		lexicon,
		cfg.Search.MaxConcurrentQueries,
	)

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	summary, err := runner.RunFile(ctx, queriesPath, out)
	if err != nil {
		return err
	}
	slog.Info("queries complete",
		"mode", batch.ModeFor(queriesPath),
		"docs", reader.TotalDocs(),
		"queries", summary.Queries,
		"failed", summary.Failed,
		"hits", summary.Hits,
		"elapsed_ms", summary.ElapsedMs,
	)
	if outputPath != "" {
		return out.Sync()
	}
	return nil
}
