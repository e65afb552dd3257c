// Package publisher turns metadata records into ingest events on Kafka and
// records them in the document catalog. Events are keyed by record path so
// every version of a record lands on the same partition, in order.
package publisher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/resilience"
)

// Publisher coordinates catalog bookkeeping and Kafka event production.
type Publisher struct {
	producer kafka.Publisher
	catalog  *catalog.Catalog
	retry    resilience.RetryConfig
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a Publisher. cat may be nil when no catalog is configured.
func New(producer kafka.Publisher, cat *catalog.Catalog) *Publisher {
	return &Publisher{
		producer: producer,
		catalog:  cat,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Ingest publishes the record carried by req.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	ev := p.event(req.Path, []byte(req.Payload))
	if err := p.publish(ctx, ev); err != nil {
		return nil, err
	}
	return &ingestion.IngestResponse{
		EventID:  ev.EventID,
		Path:     ev.Path,
		Checksum: ev.Checksum,
		Status:   ingestion.StatusPending,
	}, nil
}

// PublishFile publishes the record stored at path under its file name.
func (p *Publisher) PublishFile(ctx context.Context, path string) (ingestion.IngestEvent, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return ingestion.IngestEvent{}, fmt.Errorf("reading %s: %w", path, err)
	}
	ev := p.event(filepath.Base(path), payload)
	return ev, p.publish(ctx, ev)
}

func (p *Publisher) event(path string, payload []byte) ingestion.IngestEvent {
	sum := sha256.Sum256(payload)
	return ingestion.IngestEvent{
		EventID:    uuid.New(),
		Path:       path,
		Payload:    payload,
		Checksum:   hex.EncodeToString(sum[:]),
		IngestedAt: p.now(),
	}
}

func (p *Publisher) publish(ctx context.Context, ev ingestion.IngestEvent) error {
	if err := p.catalog.MarkPending(ctx, ev); err != nil {
		return fmt.Errorf("recording %s in catalog: %w", ev.Path, err)
	}
	err := resilience.Retry(ctx, "publish-ingest-event", p.retry, func() error {
		return p.producer.Publish(ctx, kafka.Event{Key: ev.Path, Value: ev})
	})
	if err != nil {
		p.logger.Error("failed to publish ingest event, record stays PENDING",
			"path", ev.Path,
			"event_id", ev.EventID,
			"error", err,
		)
		return fmt.Errorf("publishing %s: %w", ev.Path, err)
	}
	p.logger.Debug("ingest event published",
		"path", ev.Path,
		"event_id", ev.EventID,
		"bytes", len(ev.Payload),
	)
	return nil
}
