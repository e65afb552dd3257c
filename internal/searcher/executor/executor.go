// Package executor evaluates query trees against an index reader and ranks
// the matching documents.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/errors"
)

// DefaultProbeLimit is the page size of the first pass of SearchAll.
const DefaultProbeLimit = 1000

type SearchResult struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
	ElapsedMs int64              `json:"elapsed_ms"`
}

type readerBox struct {
	r index.Reader
}

// Executor runs queries against the current reader. The reader can be
// swapped while queries are in flight; each query sees one reader.
type Executor struct {
	reader     atomic.Pointer[readerBox]
	similarity ranker.Classic
	logger     *slog.Logger
}

func New(r index.Reader) *Executor {
	e := &Executor{
		logger: slog.Default().With("component", "query-executor"),
	}
	e.reader.Store(&readerBox{r: r})
	return e
}

// Swap installs r for subsequent queries and returns the previous reader.
func (e *Executor) Swap(r index.Reader) index.Reader {
	old := e.reader.Swap(&readerBox{r: r})
	if old == nil {
		return nil
	}
	return old.r
}

// Reader returns the reader queries currently run against.
func (e *Executor) Reader() index.Reader {
	return e.reader.Load().r
}

// matches is the evaluation of one node: the matching documents and the
// score each contributes.
type matches struct {
	docs   *roaring.Bitmap
	scores map[document.ID]float64
}

func emptyMatches() matches {
	return matches{docs: roaring.New(), scores: map[document.ID]float64{}}
}

// Execute evaluates node and returns the exact number of matching documents
// together with the limit best of them. A non-positive limit returns every
// match. A nil node matches nothing.
func (e *Executor) Execute(ctx context.Context, node query.Node, limit int) (*SearchResult, error) {
	start := time.Now()
	result := &SearchResult{Results: []ranker.ScoredDoc{}}
	if node == nil {
		return result, nil
	}
	result.Query = node.String()

	r := e.Reader()
	if r == nil {
		return nil, fmt.Errorf("executing %q: %w", result.Query, apperrors.ErrIndexNotFound)
	}
	ev := &evaluator{ctx: ctx, r: r, sim: e.similarity, total: r.TotalDocs()}
	ev.queryNorm = e.similarity.QueryNorm(ev.sumOfSquaredWeights(node))

	m, err := ev.eval(node)
	if err != nil {
		return nil, err
	}

	topk := merger.NewTopK(limit)
	it := m.docs.Iterator()
	for it.HasNext() {
		id := document.ID(it.Next())
		topk.Push(ranker.ScoredDoc{DocID: id, Score: m.scores[id]})
	}
	result.TotalHits = int(m.docs.GetCardinality())
	result.Results = topk.Results()
	for i := range result.Results {
		if paths := r.StoredFields(result.Results[i].DocID)[document.KeyField]; len(paths) > 0 {
			result.Results[i].Path = paths[0]
		}
	}
	result.ElapsedMs = time.Since(start).Milliseconds()

	e.logger.Debug("query executed",
		"query", result.Query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"elapsed_ms", result.ElapsedMs,
	)
	return result, nil
}

// SearchAll returns every match. It probes with DefaultProbeLimit first and
// re-runs with the exact total when the probe was truncated.
func (e *Executor) SearchAll(ctx context.Context, node query.Node) (*SearchResult, error) {
	res, err := e.Execute(ctx, node, DefaultProbeLimit)
	if err != nil || res.TotalHits <= len(res.Results) {
		return res, err
	}
	return e.Execute(ctx, node, res.TotalHits)
}

type evaluator struct {
	ctx       context.Context
	r         index.Reader
	sim       ranker.Classic
	total     int
	queryNorm float64
}

func (ev *evaluator) idf(field, term string) float64 {
	return ev.sim.IDF(ev.r.DocFreq(field, term), ev.total)
}

func (ev *evaluator) sumOfSquaredWeights(n query.Node) float64 {
	switch q := n.(type) {
	case *query.Term:
		w := ev.idf(q.Field, q.Value)
		return w * w
	case *query.Range:
		return 1
	case *query.Bool:
		var sum float64
		for _, c := range q.Clauses {
			if c.Occur != query.MustNot {
				sum += ev.sumOfSquaredWeights(c.Node)
			}
		}
		return sum
	}
	return 0
}

func (ev *evaluator) eval(n query.Node) (matches, error) {
	if err := ev.ctx.Err(); err != nil {
		return matches{}, fmt.Errorf("query cancelled: %w", err)
	}
	switch q := n.(type) {
	case *query.Term:
		return ev.term(q)
	case *query.Range:
		return ev.rangeQuery(q), nil
	case *query.Bool:
		return ev.boolean(q)
	case nil:
		return emptyMatches(), nil
	}
	return matches{}, fmt.Errorf("%w: unsupported query node %T", apperrors.ErrInternal, n)
}

func (ev *evaluator) term(q *query.Term) (matches, error) {
	m := emptyMatches()
	kind, ok := ev.r.FieldKind(q.Field)
	if !ok || kind == document.KindNumeric {
		return m, nil
	}
	postings, err := ev.r.Postings(q.Field, q.Value)
	if err != nil {
		return matches{}, fmt.Errorf("reading postings for %s: %w", q, err)
	}
	idf := ev.sim.IDF(len(postings), ev.total)
	for _, p := range postings {
		norm := 1.0
		if kind == document.KindText {
			norm = ev.sim.Norm(ev.r.FieldLength(q.Field, p.DocID))
		}
		m.docs.Add(uint32(p.DocID))
		m.scores[p.DocID] = ev.sim.TermScore(p.Frequency, idf, norm, ev.queryNorm)
	}
	return m, nil
}

func (ev *evaluator) rangeQuery(q *query.Range) matches {
	m := matches{docs: ev.r.NumericRange(q.Field, q.Min, q.Max), scores: map[document.ID]float64{}}
	it := m.docs.Iterator()
	for it.HasNext() {
		m.scores[document.ID(it.Next())] = ev.queryNorm
	}
	return m
}

func (ev *evaluator) boolean(q *query.Bool) (matches, error) {
	var must, should []matches
	excluded := roaring.New()
	for _, c := range q.Clauses {
		sub, err := ev.eval(c.Node)
		if err != nil {
			return matches{}, err
		}
		switch c.Occur {
		case query.Must:
			must = append(must, sub)
		case query.Should:
			should = append(should, sub)
		case query.MustNot:
			excluded.Or(sub.docs)
		}
	}
	if len(must) == 0 && len(should) == 0 {
		return emptyMatches(), nil
	}

	var candidates *roaring.Bitmap
	if len(must) > 0 {
		candidates = must[0].docs.Clone()
		for _, sub := range must[1:] {
			candidates.And(sub.docs)
		}
	} else {
		candidates = roaring.New()
		for _, sub := range should {
			candidates.Or(sub.docs)
		}
	}
	candidates.AndNot(excluded)

	m := matches{docs: candidates, scores: make(map[document.ID]float64, candidates.GetCardinality())}
	it := candidates.Iterator()
	for it.HasNext() {
		id := document.ID(it.Next())
		var score float64
		for _, sub := range must {
			score += sub.scores[id]
		}
		for _, sub := range should {
			score += sub.scores[id]
		}
		m.scores[id] = score
	}
	return m, nil
}
