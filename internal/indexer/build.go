package indexer

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/config"
)

// Stats summarizes one BuildIndex run.
type Stats struct {
	Count     int   `json:"count"`
	Skipped   int   `json:"skipped"`
	ElapsedMs int64 `json:"elapsed_ms"`
}

// BuildOptions tunes BuildIndex. Zero values select the defaults of
// config.IndexerConfig: create mode, no compression and the path key.
type BuildOptions struct {
	OpenMode    string
	Compression string
	KeyField    string
	Analyzer    tokenizer.Analyzer
	Engine      []Option
}

// BuildIndex indexes every document yielded by docs into the index directory
// targetPath and flushes it. A unit that fails to read or parse is logged
// and counted as skipped; it never aborts the batch. In update mode documents
// replace earlier versions with the same key.
func BuildIndex(ctx context.Context, docs iter.Seq2[*document.Document, error], targetPath string, opts BuildOptions) (Stats, error) {
	start := time.Now()
	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = tokenizer.NewSpanish(tokenizer.DefaultConfig())
	}
	cfg := config.IndexerConfig{
		DataDir:     targetPath,
		OpenMode:    opts.OpenMode,
		Compression: opts.Compression,
		KeyField:    opts.KeyField,
	}
	eng, err := NewEngine(cfg, analyzer, opts.Engine...)
	if err != nil {
		return Stats{}, err
	}
	log := slog.Default().With("component", "build", "target", targetPath)
	log.Info("indexing to directory", "open_mode", cfg.OpenMode)

	var stats Stats
	for doc, err := range docs {
		if ctx.Err() != nil {
			return stats, fmt.Errorf("build cancelled: %w", ctx.Err())
		}
		if err != nil {
			stats.Skipped++
			if eng.metrics != nil {
				eng.metrics.DocsSkippedTotal.WithLabelValues("read").Inc()
			}
			log.Warn("skipping unit", "error", err)
			continue
		}
		if doc == nil {
			continue
		}
		if cfg.OpenMode == OpenModeUpdate {
			_, err = eng.Upsert(doc)
		} else {
			_, err = eng.Insert(doc)
		}
		if err != nil {
			stats.Skipped++
			log.Warn("skipping document", "error", err)
			continue
		}
		stats.Count++
	}

	if err := eng.Close(ctx); err != nil {
		return stats, err
	}
	stats.ElapsedMs = time.Since(start).Milliseconds()
	log.Info("indexing complete",
		"docs", stats.Count,
		"skipped", stats.Skipped,
		"live", eng.TotalDocs(),
		"elapsed_ms", stats.ElapsedMs,
	)
	return stats, nil
}
