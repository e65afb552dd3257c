// Package ingestion defines the request/response types and Kafka event schemas
// used to feed metadata records to the indexer.
package ingestion

import (
	"time"

	"github.com/google/uuid"
)

// Record statuses tracked in the document catalog.
const (
	StatusPending = "PENDING"
	StatusIndexed = "INDEXED"
	StatusFailed  = "FAILED"
)

// IngestRequest is the JSON body accepted by the ingestion HTTP endpoint.
// Path is the record's file name; it is the key that replaces earlier
// versions of the same record.
type IngestRequest struct {
	Path    string `json:"path"`
	Payload string `json:"payload"`
}

// IngestResponse is returned to the caller after a record is accepted.
type IngestResponse struct {
	EventID  uuid.UUID `json:"event_id"`
	Path     string    `json:"path"`
	Checksum string    `json:"checksum"`
	Status   string    `json:"status"`
}

// IngestEvent is the Kafka message carrying one raw metadata record to the
// indexer. Payload is the record's XML, base64 encoded on the wire.
type IngestEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	Path       string    `json:"path"`
	Payload    []byte    `json:"payload"`
	Checksum   string    `json:"checksum"`
	IngestedAt time.Time `json:"ingested_at"`
}

// IndexComplete is published after the indexer flushed a new index
// generation. Searchers reload the index when they receive it. Object names
// the uploaded snapshot when snapshot publication is enabled.
type IndexComplete struct {
	Generation  uint64    `json:"generation"`
	Docs        int       `json:"docs"`
	Path        string    `json:"path"`
	Object      string    `json:"object,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}
