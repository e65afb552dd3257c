// Package reload keeps a searcher's executor on the newest index
// generation. It reacts to IndexComplete events, optionally pulling the
// segment from the snapshot store first.
package reload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/kafka"
)

const closeGrace = 30 * time.Second

// Fetcher downloads the newest segment into dir.
type Fetcher interface {
	Fetch(ctx context.Context, dir string) (string, error)
}

type Reloader struct {
	mu         sync.Mutex
	exec       *executor.Executor
	cache      *cache.QueryCache
	fetcher    Fetcher
	dir        string
	generation uint64
	logger     *slog.Logger
}

// New creates a Reloader over the index directory dir. qc and f may be nil.
func New(exec *executor.Executor, dir string, qc *cache.QueryCache, f Fetcher) *Reloader {
	return &Reloader{
		exec:    exec,
		cache:   qc,
		fetcher: f,
		dir:     dir,
		logger:  slog.Default().With("component", "reloader", "dir", dir),
	}
}

// Load opens the segment currently in dir. A missing segment is not an
// error: the executor then answers ErrIndexNotFound until one appears.
func (r *Reloader) Load(ctx context.Context) error {
	if r.fetcher != nil {
		if _, err := r.fetcher.Fetch(ctx, r.dir); err != nil && !errors.Is(err, apperrors.ErrIndexNotFound) {
			r.logger.Warn("snapshot fetch failed, using local index", "error", err)
		}
	}
	err := r.open(ctx, 0)
	if errors.Is(err, apperrors.ErrIndexNotFound) {
		r.logger.Warn("no index yet", "error", err)
		return nil
	}
	return err
}

// HandleMessage returns the Kafka handler for the index.complete topic.
// Generations older than the loaded one are ignored.
func (r *Reloader) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, _ []byte, value []byte) error {
		msg, err := kafka.DecodeJSON[ingestion.IndexComplete](value)
		if err != nil {
			r.logger.Error("failed to decode index complete event", "error", err)
			return nil
		}
		if msg.Generation != 0 && msg.Generation <= r.Generation() {
			r.logger.Debug("ignoring stale generation", "generation", msg.Generation)
			return nil
		}
		if r.fetcher != nil && msg.Object != "" {
			if _, err := r.fetcher.Fetch(ctx, r.dir); err != nil {
				return fmt.Errorf("fetching generation %d: %w", msg.Generation, err)
			}
		}
		return r.open(ctx, msg.Generation)
	}
}

// Generation returns the generation of the installed reader.
func (r *Reloader) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

func (r *Reloader) open(ctx context.Context, gen uint64) error {
	path := filepath.Join(r.dir, segment.FileName)
	reader, err := segment.OpenReader(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen == 0 {
		gen = r.generation + 1
	}
	old := r.exec.Swap(reader)
	r.generation = gen
	if c, ok := old.(io.Closer); ok {
		// queries that loaded the old reader may still be reading it
		time.AfterFunc(closeGrace, func() {
			if err := c.Close(); err != nil {
				r.logger.Warn("closing previous reader", "error", err)
			}
		})
	}
	if r.cache != nil {
		r.cache.SetGeneration(gen)
		if err := r.cache.Invalidate(ctx); err != nil {
			r.logger.Warn("cache invalidation failed", "error", err)
		}
	}
	r.logger.Info("index reloaded",
		"generation", gen,
		"docs", reader.TotalDocs(),
		"terms", reader.Terms(),
	)
	return nil
}
