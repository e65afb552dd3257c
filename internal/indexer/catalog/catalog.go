// Package catalog records every ingested metadata record in PostgreSQL and
// tracks whether it reached the index. The table is keyed by the record
// path, so re-ingesting a record updates its row.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/resilience"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS metadata_records (
	path        TEXT PRIMARY KEY,
	event_id    UUID NOT NULL,
	checksum    TEXT NOT NULL,
	status      TEXT NOT NULL,
	doc_id      BIGINT,
	generation  BIGINT,
	error       TEXT,
	ingested_at TIMESTAMPTZ NOT NULL,
	indexed_at  TIMESTAMPTZ
)`,
	`CREATE INDEX IF NOT EXISTS metadata_records_status_idx ON metadata_records (status)`,
}

// Record is one row of the catalog.
type Record struct {
	Path       string
	EventID    uuid.UUID
	Checksum   string
	Status     string
	DocID      sql.NullInt64
	Generation sql.NullInt64
	Error      sql.NullString
	IngestedAt time.Time
	IndexedAt  sql.NullTime
}

// Catalog is safe for concurrent use. A nil *Catalog accepts every call and
// does nothing, so callers need not check whether PostgreSQL is configured.
type Catalog struct {
	db     *sql.DB
	retry  resilience.RetryConfig
	logger *slog.Logger
}

func New(db *sql.DB) *Catalog {
	return &Catalog{
		db:     db,
		logger: slog.Default().With("component", "catalog"),
	}
}

// EnsureSchema creates the catalog table when it does not exist.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if c == nil {
		return nil
	}
	err := postgres.InTx(ctx, c.db, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating catalog schema: %w", err)
	}
	c.logger.Info("catalog schema ready")
	return nil
}

// MarkPending records that ev was published for indexing.
func (c *Catalog) MarkPending(ctx context.Context, ev ingestion.IngestEvent) error {
	if c == nil {
		return nil
	}
	return resilience.Retry(ctx, "catalog-mark-pending", c.retry, func() error {
		_, err := c.db.ExecContext(ctx, `
			INSERT INTO metadata_records (path, event_id, checksum, status, ingested_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (path) DO UPDATE SET
				event_id = EXCLUDED.event_id,
				checksum = EXCLUDED.checksum,
				status = EXCLUDED.status,
				ingested_at = EXCLUDED.ingested_at,
				error = NULL`,
			ev.Path, ev.EventID, ev.Checksum, ingestion.StatusPending, ev.IngestedAt)
		if err != nil {
			return fmt.Errorf("marking %s pending: %w", ev.Path, err)
		}
		return nil
	})
}

// MarkIndexed records the document id the record was indexed under. Only
// the row of the same event is updated, so a late acknowledgement never
// overwrites a newer ingestion of the same path.
func (c *Catalog) MarkIndexed(ctx context.Context, eventID uuid.UUID, docID uint32) error {
	if c == nil {
		return nil
	}
	return c.update(ctx, "catalog-mark-indexed", `
		UPDATE metadata_records SET status = $1, doc_id = $2, indexed_at = NOW(), error = NULL
		WHERE event_id = $3`,
		ingestion.StatusIndexed, int64(docID), eventID)
}

// MarkFailed records why the record of eventID could not be indexed.
func (c *Catalog) MarkFailed(ctx context.Context, eventID uuid.UUID, cause error) error {
	if c == nil {
		return nil
	}
	return c.update(ctx, "catalog-mark-failed", `
		UPDATE metadata_records SET status = $1, error = $2 WHERE event_id = $3`,
		ingestion.StatusFailed, cause.Error(), eventID)
}

// MarkFlushed stamps every indexed record without a generation with gen.
func (c *Catalog) MarkFlushed(ctx context.Context, gen uint64) error {
	if c == nil {
		return nil
	}
	return c.update(ctx, "catalog-mark-flushed", `
		UPDATE metadata_records SET generation = $1
		WHERE status = $2 AND generation IS NULL`,
		int64(gen), ingestion.StatusIndexed)
}

func (c *Catalog) update(ctx context.Context, name, stmt string, args ...any) error {
	return resilience.Retry(ctx, name, c.retry, func() error {
		if _, err := c.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
}

// Get returns the catalog row of path.
func (c *Catalog) Get(ctx context.Context, path string) (*Record, error) {
	if c == nil {
		return nil, apperrors.New(apperrors.ErrDocumentNotFound, http.StatusNotFound, "catalog disabled")
	}
	var r Record
	err := c.db.QueryRowContext(ctx, `
		SELECT path, event_id, checksum, status, doc_id, generation, error, ingested_at, indexed_at
		FROM metadata_records WHERE path = $1`, path).
		Scan(&r.Path, &r.EventID, &r.Checksum, &r.Status, &r.DocID, &r.Generation, &r.Error, &r.IngestedAt, &r.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "no catalog record for %q", path)
	}
	if err != nil {
		return nil, fmt.Errorf("querying catalog for %s: %w", path, err)
	}
	return &r, nil
}

// StatusCounts returns the number of records in each status.
func (c *Catalog) StatusCounts(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{}
	if c == nil {
		return counts, nil
	}
	rows, err := c.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM metadata_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting catalog records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning catalog counts: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Ping checks the database connection.
func (c *Catalog) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.db.PingContext(ctx)
}
