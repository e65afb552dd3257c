// Package handler serves the record ingestion HTTP API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/logger"
)

type Handler struct {
	publisher *publisher.Publisher
	catalog   *catalog.Catalog
	logger    *slog.Logger
}

// New returns a handler that queues records through pub. cat may be nil, in
// which case record lookups report not found.
func New(pub *publisher.Publisher, cat *catalog.Catalog) *Handler {
	return &Handler{
		publisher: pub,
		catalog:   cat,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/records", h.Ingest)
	mux.HandleFunc("GET /api/v1/records/status", h.StatusCounts)
	mux.HandleFunc("GET /api/v1/records/{path}", h.Record)
}

type recordResponse struct {
	Path       string     `json:"path"`
	EventID    string     `json:"event_id"`
	Checksum   string     `json:"checksum"`
	Status     string     `json:"status"`
	DocID      *int64     `json:"doc_id,omitempty"`
	Generation *int64     `json:"generation,omitempty"`
	Error      string     `json:"error,omitempty"`
	IngestedAt time.Time  `json:"ingested_at"`
	IndexedAt  *time.Time `json:"indexed_at,omitempty"`
}

// Record reports the catalog state of a single record.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	rec, err := h.catalog.Get(r.Context(), r.PathValue("path"))
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			logger.FromContext(r.Context()).Error("catalog lookup failed", "error", err)
			h.writeError(w, status, "catalog lookup failed")
			return
		}
		h.writeError(w, status, err.Error())
		return
	}
	resp := recordResponse{
		Path:       rec.Path,
		EventID:    rec.EventID.String(),
		Checksum:   rec.Checksum,
		Status:     rec.Status,
		Error:      rec.Error.String,
		IngestedAt: rec.IngestedAt,
	}
	if rec.DocID.Valid {
		resp.DocID = &rec.DocID.Int64
	}
	if rec.Generation.Valid {
		resp.Generation = &rec.Generation.Int64
	}
	if rec.IndexedAt.Valid {
		resp.IndexedAt = &rec.IndexedAt.Time
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// StatusCounts returns the number of catalog records per status.
func (h *Handler) StatusCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.catalog.StatusCounts(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("catalog counts failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, counts)
}

// Ingest accepts {"path": "<file name>", "payload": "<xml>"} and queues the
// record for indexing.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	var req ingestion.IngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 2<<20)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateIngestRequest(&req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.publisher.Ingest(ctx, &req)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed",
			"path", req.Path,
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "ingestion failed")
		return
	}
	log.Info("record accepted",
		"path", resp.Path,
		"event_id", resp.EventID,
	)
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
