// Package handler exposes the search engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/metrics"
)

type SearchExecutor interface {
	Execute(ctx context.Context, node query.Node, limit int) (*executor.SearchResult, error)
}

// InfoNeedBuilder turns free natural-language text into a query.
type InfoNeedBuilder interface {
	BuildInfoNeed(text string) query.Node
}

type Handler struct {
	executor     SearchExecutor
	parser       *parser.Parser
	infoNeeds    InfoNeedBuilder
	cache        *cache.QueryCache
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

type Option func(*Handler)

// WithCache serves repeated queries from c.
func WithCache(c *cache.QueryCache) Option {
	return func(h *Handler) { h.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func New(exec SearchExecutor, p *parser.Parser, infoNeeds InfoNeedBuilder, defaultLimit, maxResults int, opts ...Option) *Handler {
	h := &Handler{
		executor:     exec,
		parser:       p,
		infoNeeds:    infoNeeds,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/infoneed", h.InfoNeed)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.defaultLimit, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 1 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
	}
	return min(parsed, h.maxResults), nil
}

// Search answers GET /api/v1/search?q=...&limit=... where q uses the query
// grammar, optionally prefixed with spatial:west,east,south,north.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}

	mode := "plain"
	if strings.HasPrefix(q, parser.SpatialPrefix) {
		mode = "spatial"
	}
	node, err := h.parser.ParseLine(q)
	if err != nil {
		h.recordQuery(mode, "error")
		logger.FromContext(r.Context()).Info("rejected query", "query", q, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.run(w, r, mode, q, node, limit)
}

type infoNeedRequest struct {
	Text  string `json:"text"`
	Limit int    `json:"limit"`
}

// InfoNeed answers POST /api/v1/infoneed with a JSON body {"text": ...}.
// The words are tagged and routed to field groups by part of speech.
func (h *Handler) InfoNeed(w http.ResponseWriter, r *http.Request) {
	var req infoNeedRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.writeError(w, http.StatusBadRequest, "field 'text' is required")
		return
	}
	limit := h.defaultLimit
	if req.Limit < 0 {
		h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if req.Limit > 0 {
		limit = min(req.Limit, h.maxResults)
	}
	h.run(w, r, "infoneed", req.Text, h.infoNeeds.BuildInfoNeed(req.Text), limit)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, mode, input string, node query.Node, limit int) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if node == nil {
		h.recordQuery(mode, "empty")
		h.writeJSON(w, http.StatusOK, &executor.SearchResult{Query: "", Results: []ranker.ScoredDoc{}})
		return
	}

	var (
		result   *executor.SearchResult
		err      error
		cacheHit bool
	)
	cacheStatus := "bypass"
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, node.String(), limit, func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, node, limit)
		})
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		result, err = h.executor.Execute(ctx, node, limit)
	}
	if err != nil {
		h.recordQuery(mode, "error")
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
		}
		log.Error("search execution failed", "query", input, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "search failed")
		return
	}

	latency := time.Since(start)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(result.TotalHits))
	}
	if result.TotalHits == 0 {
		h.recordQuery(mode, "empty")
	} else {
		h.recordQuery(mode, "hits")
	}
	log.Info("search completed",
		"mode", mode,
		"query", input,
		"parsed", result.Query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache", cacheStatus,
		"elapsed_ms", latency.Milliseconds(),
	)
	w.Header().Set("X-Cache", cacheStatus)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) recordQuery(mode, resultType string) {
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(mode, resultType).Inc()
	}
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":       hits,
		"misses":     misses,
		"total":      total,
		"hit_rate":   fmt.Sprintf("%.1f%%", hitRate),
		"generation": h.cache.Generation(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
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
