// Package consumer reads ingest events from Kafka, extracts the metadata
// record each one carries and upserts it into the indexer engine.
package consumer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/metrics"
)

// Upserter is the write side of an indexing session.
type Upserter interface {
	Upsert(doc *document.Document) (document.ID, error)
}

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// Close releases the underlying reader.
func (ic *IndexConsumer) Close() error {
	return ic.consumer.Close()
}

// HandleMessage returns a Kafka MessageHandler that indexes every ingest
// event into eng, replacing earlier versions of the same record. Events that
// cannot be decoded or whose checksum does not match are dropped: retrying
// them can never succeed. cat and m may be nil.
func HandleMessage(eng Upserter, x *extract.Extractor, cat *catalog.Catalog, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	skip := func(reason string) {
		if m != nil {
			m.DocsSkippedTotal.WithLabelValues(reason).Inc()
		}
	}
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			skip("decode")
			return nil
		}
		log := logger.With("path", event.Path, "event_id", event.EventID)

		if event.Checksum != "" {
			sum := sha256.Sum256(event.Payload)
			if got := hex.EncodeToString(sum[:]); got != event.Checksum {
				log.Error("payload checksum mismatch, dropping event", "want", event.Checksum, "got", got)
				markFailed(ctx, cat, event, fmt.Errorf("checksum mismatch"), log)
				skip("checksum")
				return nil
			}
		}

		doc, err := x.Extract(event.Path, bytes.NewReader(event.Payload))
		if err != nil {
			markFailed(ctx, cat, event, err, log)
			skip("read")
			return nil
		}

		id, err := eng.Upsert(doc)
		if err != nil {
			markFailed(ctx, cat, event, err, log)
			return fmt.Errorf("indexing %s: %w", event.Path, err)
		}
		if err := cat.MarkIndexed(ctx, event.EventID, uint32(id)); err != nil {
			log.Error("failed to update catalog", "error", err)
		}
		log.Info("record indexed", "doc_id", id, "fields", doc.Len())
		return nil
	}
}

func markFailed(ctx context.Context, cat *catalog.Catalog, event ingestion.IngestEvent, cause error, log *slog.Logger) {
	if err := cat.MarkFailed(ctx, event.EventID, cause); err != nil {
		log.Error("failed to update catalog", "error", err)
	}
}
