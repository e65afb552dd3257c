package publisher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/resilience"
)

type recorder struct {
	mu       sync.Mutex
	events   []kafka.Event
	failures int
}

func (r *recorder) Publish(_ context.Context, ev kafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errors.New("broker unavailable")
	}
	r.events = append(r.events, ev)
	return nil
}

func newPublisher(rec *recorder) *Publisher {
	p := New(rec, nil)
	p.retry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	return p
}

func TestIngest(t *testing.T) {
	rec := &recorder{}
	resp, err := newPublisher(rec).Ingest(context.Background(), &ingestion.IngestRequest{Path: "a.xml", Payload: "<r/>"})
	require.NoError(t, err)
	assert.Equal(t, ingestion.StatusPending, resp.Status)
	assert.Equal(t, "a.xml", resp.Path)
	assert.Len(t, resp.Checksum, 64)

	require.Len(t, rec.events, 1)
	assert.Equal(t, "a.xml", rec.events[0].Key)
	ev := rec.events[0].Value.(ingestion.IngestEvent)
	assert.Equal(t, resp.EventID, ev.EventID)
	assert.Equal(t, []byte("<r/>"), ev.Payload)
}

func TestPublishFileUsesBaseName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "b.xml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("<r/>"), 0o644))

	rec := &recorder{}
	ev, err := newPublisher(rec).PublishFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "b.xml", ev.Path)
	assert.Equal(t, "b.xml", rec.events[0].Key)

	_, err = newPublisher(rec).PublishFile(context.Background(), filepath.Join(dir, "missing.xml"))
	assert.Error(t, err)
}

func TestPublishRetries(t *testing.T) {
	rec := &recorder{failures: 2}
	_, err := newPublisher(rec).Ingest(context.Background(), &ingestion.IngestRequest{Path: "a.xml", Payload: "<r/>"})
	require.NoError(t, err)
	assert.Len(t, rec.events, 1)

	rec = &recorder{failures: 5}
	_, err = newPublisher(rec).Ingest(context.Background(), &ingestion.IngestRequest{Path: "a.xml", Payload: "<r/>"})
	assert.Error(t, err)
	assert.Empty(t, rec.events)
}
