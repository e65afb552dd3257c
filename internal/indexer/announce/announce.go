// Package announce tells searchers about new index generations. After each
// flush it uploads the segment to the snapshot store, stamps the catalog and
// publishes an IndexComplete event.
package announce

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/kafka"
)

// Uploader stores a flushed segment and returns its object key.
type Uploader interface {
	Upload(ctx context.Context, localPath string, gen uint64) (string, error)
}

type Announcer struct {
	producer kafka.Publisher
	uploader Uploader
	catalog  *catalog.Catalog
	now      func() time.Time
	logger   *slog.Logger
}

// New creates an Announcer. Any of its collaborators may be nil; the
// matching step is then skipped.
func New(producer kafka.Publisher, uploader Uploader, cat *catalog.Catalog) *Announcer {
	return &Announcer{
		producer: producer,
		uploader: uploader,
		catalog:  cat,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default().With("component", "announcer"),
	}
}

// Hook returns the flush hook to register with the engine.
func (a *Announcer) Hook() indexer.FlushHook {
	return a.Announce
}

// Announce handles one flushed generation. Failures are logged: the segment
// is already durable locally and the next flush announces again.
func (a *Announcer) Announce(ctx context.Context, info indexer.FlushInfo) {
	log := a.logger.With("generation", info.Generation)
	msg := ingestion.IndexComplete{
		Generation:  info.Generation,
		Docs:        info.Docs,
		Path:        info.Path,
		CompletedAt: a.now(),
	}
	if a.uploader != nil {
		object, err := a.uploader.Upload(ctx, info.Path, info.Generation)
		if err != nil {
			log.Error("snapshot upload failed", "error", err)
		} else {
			msg.Object = object
		}
	}
	if err := a.catalog.MarkFlushed(ctx, info.Generation); err != nil {
		log.Error("failed to stamp catalog generation", "error", err)
	}
	if a.producer == nil {
		return
	}
	err := a.producer.Publish(ctx, kafka.Event{
		Key:   strconv.FormatUint(info.Generation, 10),
		Value: msg,
	})
	if err != nil {
		log.Error("failed to publish index complete", "error", err)
		return
	}
	log.Info("index generation announced", "docs", info.Docs, "object", msg.Object)
}
