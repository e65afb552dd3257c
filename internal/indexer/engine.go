// Package indexer owns the indexing session: it assigns document IDs,
// enforces replace-by-key uniqueness and persists the in-memory index as a
// segment file.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/metrics"
)

const (
	OpenModeCreate = "create"
	OpenModeUpdate = "update"
)

// FlushInfo describes a segment that was just written.
type FlushInfo struct {
	Path       string
	Generation uint64
	Docs       int
	Header     segment.SegmentHeader
}

// FlushHook is called after every successful flush, outside the engine lock.
type FlushHook func(ctx context.Context, info FlushInfo)

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records indexing metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithFlushHook registers a hook run after each flush.
func WithFlushHook(h FlushHook) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, h) }
}

// Engine is one indexing session. It is the only writer of its index
// directory; Insert, Replace and Flush are safe to call concurrently.
type Engine struct {
	mu         sync.Mutex
	memIndex   *index.MemoryIndex
	writer     *segment.Writer
	path       string
	keyField   string
	nextID     document.ID
	dirty      bool
	flushed    bool
	generation uint64
	cfg        config.IndexerConfig
	logger     *slog.Logger
	metrics    *metrics.Metrics
	hooks      []FlushHook
}

// NewEngine opens an indexing session over cfg.DataDir. In update mode an
// existing segment is loaded and extended; in create mode any existing
// segment is superseded by the first flush.
func NewEngine(cfg config.IndexerConfig, analyzer tokenizer.Analyzer, opts ...Option) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	codec, err := segment.ParseCodec(cfg.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	keyField := cfg.KeyField
	if keyField == "" {
		keyField = document.KeyField
	}
	e := &Engine{
		memIndex: index.NewMemoryIndex(analyzer),
		writer:   segment.NewWriter(codec),
		path:     filepath.Join(cfg.DataDir, segment.FileName),
		keyField: keyField,
		cfg:      cfg,
		logger:   slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}

	switch cfg.OpenMode {
	case "", OpenModeCreate:
		e.logger.Info("creating new index", "path", e.path, "codec", codec.String())
	case OpenModeUpdate:
		if err := e.loadExisting(); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown open mode %q", cfg.OpenMode)
	}
	return e, nil
}

func (e *Engine) loadExisting() error {
	r, err := segment.OpenReader(e.path)
	if errors.Is(err, apperrors.ErrIndexNotFound) {
		e.logger.Info("no existing index, starting empty", "path", e.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading existing index: %w", err)
	}
	defer r.Close()
	snap, err := r.Snapshot()
	if err != nil {
		return fmt.Errorf("reading existing index: %w", err)
	}
	e.memIndex.Restore(snap)
	e.nextID = snap.NextID
	e.flushed = true
	e.logger.Info("loaded existing index",
		"path", e.path,
		"docs", len(snap.Live),
		"terms", r.Terms(),
		"next_id", e.nextID,
	)
	return nil
}

// Insert adds doc under a fresh DocumentId.
func (e *Engine) Insert(doc *document.Document) (document.ID, error) {
	if doc == nil {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "nil document")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.insertLocked(doc), nil
}

func (e *Engine) insertLocked(doc *document.Document) document.ID {
	id := e.nextID
	e.nextID++
	e.memIndex.AddDocument(id, doc)
	e.dirty = true
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
		e.metrics.IndexLiveDocs.Set(float64(e.memIndex.TotalDocs()))
	}
	e.logger.Debug("document indexed in memory",
		"doc_id", id,
		"fields", doc.Len(),
		"mem_size", e.memIndex.Size(),
	)
	return id
}

// Replace atomically removes every live document whose exact field keyField
// equals keyValue and inserts doc. With no match it behaves like Insert.
func (e *Engine) Replace(keyField, keyValue string, doc *document.Document) (document.ID, error) {
	if doc == nil {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "nil document")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	existing := e.memIndex.LookupExact(keyField, keyValue)
	it := existing.Iterator()
	for it.HasNext() {
		e.memIndex.DeleteDocument(document.ID(it.Next()))
	}
	if n := existing.GetCardinality(); n > 0 {
		e.logger.Debug("replacing document", "key_field", keyField, "key", keyValue, "superseded", n)
		if e.metrics != nil {
			e.metrics.DocsReplacedTotal.Add(float64(n))
		}
	}
	return e.insertLocked(doc), nil
}

// Upsert replaces by the engine's key field when doc carries exactly one
// key value and inserts otherwise.
func (e *Engine) Upsert(doc *document.Document) (document.ID, error) {
	if doc == nil {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "nil document")
	}
	if key, ok := doc.Key(e.keyField); ok {
		return e.Replace(e.keyField, key, doc)
	}
	return e.Insert(doc)
}

// LookupExact returns the live documents whose exact field equals value.
func (e *Engine) LookupExact(field, value string) *roaring.Bitmap {
	return e.memIndex.LookupExact(field, value)
}

// Reader exposes the session's in-memory index for searching before a
// flush.
func (e *Engine) Reader() index.Reader {
	return e.memIndex
}

// TotalDocs returns the number of live documents.
func (e *Engine) TotalDocs() int {
	return e.memIndex.TotalDocs()
}

// KeyField returns the exact field used by Upsert.
func (e *Engine) KeyField() string {
	return e.keyField
}

// Path returns the segment file the engine writes.
func (e *Engine) Path() string {
	return e.path
}

// Flush writes the complete live index to the segment file, replacing the
// previous one atomically. Once Flush returns, a new reader sees every
// document inserted before the call.
func (e *Engine) Flush(ctx context.Context) error {
	start := time.Now()
	e.mu.Lock()
	snap := e.memIndex.Snapshot(e.nextID)
	header, err := e.writer.Write(e.path, snap)
	if err != nil {
		e.mu.Unlock()
		if e.metrics != nil {
			e.metrics.IndexFlushesTotal.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("writing segment: %w", err)
	}
	e.dirty = false
	e.flushed = true
	e.generation++
	info := FlushInfo{
		Path:       e.path,
		Generation: e.generation,
		Docs:       len(snap.Live),
		Header:     header,
	}
	hooks := e.hooks
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.IndexFlushesTotal.WithLabelValues("ok").Inc()
		e.metrics.IndexGeneration.Set(float64(info.Generation))
	}
	e.logger.Info("segment flushed",
		"path", e.path,
		"generation", info.Generation,
		"docs", info.Docs,
		"terms", header.TermCount,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	for _, h := range hooks {
		h(ctx, info)
	}
	return nil
}

func (e *Engine) needsFlush() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty || !e.flushed
}

// StartFlushLoop flushes every cfg.FlushInterval while there are unflushed
// changes, and once more when ctx is cancelled.
func (e *Engine) StartFlushLoop(ctx context.Context) {
	interval := e.cfg.FlushInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if e.needsFlush() {
					if err := e.Flush(context.Background()); err != nil {
						e.logger.Error("final flush failed", "error", err)
					}
				}
				return
			case <-ticker.C:
				if e.needsFlush() {
					if err := e.Flush(ctx); err != nil {
						e.logger.Error("periodic flush failed", "error", err)
					}
				}
			}
		}
	}()
}

// Close flushes pending changes. The engine must not be used afterwards.
func (e *Engine) Close(ctx context.Context) error {
	if !e.needsFlush() {
		return nil
	}
	if err := e.Flush(ctx); err != nil {
		return fmt.Errorf("final flush on close: %w", err)
	}
	return nil
}
