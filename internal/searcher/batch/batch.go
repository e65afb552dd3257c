// Package batch runs query files against an index and writes one result
// block per query. Two input formats are understood: a text file with one
// query per line, and an XML list of information needs.
package batch

import (
	"bufio"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/postag"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/builder"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/metrics"
)

const (
	ModeLines     = "lines"
	ModeInfoNeeds = "infoneeds"
)

// InfoNeed is one entry of an information-needs file.
type InfoNeed struct {
	Identifier string `xml:"identifier"`
	Text       string `xml:"text"`
}

// Summary counts the queries of one run.
type Summary struct {
	Queries   int   `json:"queries"`
	Failed    int   `json:"failed"`
	Hits      int   `json:"hits"`
	ElapsedMs int64 `json:"elapsed_ms"`
}

// Runner evaluates query files. Queries run concurrently, at most
// Concurrency at a time, and their output is written in input order.
type Runner struct {
	Exec        *executor.Executor
	Parser      *parser.Parser
	POS         *builder.POS
	Tagger      postag.Tagger
	Concurrency int
	Metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewRunner(exec *executor.Executor, p *parser.Parser, pos *builder.POS, tagger postag.Tagger, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		Exec:        exec,
		Parser:      p,
		POS:         pos,
		Tagger:      tagger,
		Concurrency: concurrency,
		logger:      slog.Default().With("component", "batch-runner"),
	}
}

// ModeFor picks the input format from the file extension.
func ModeFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		return ModeInfoNeeds
	}
	return ModeLines
}

// RunFile runs the queries in path and writes the results to out.
func (r *Runner) RunFile(ctx context.Context, path string, out io.Writer) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("opening query file: %w", err)
	}
	defer f.Close()
	if ModeFor(path) == ModeInfoNeeds {
		return r.RunInfoNeeds(ctx, f, out)
	}
	return r.RunLines(ctx, f, out)
}

// job is one query of a run. Build returns a nil node when the input holds
// nothing searchable; format renders the hits.
type job struct {
	label  string
	mode   string
	build  func() (query.Node, error)
	format func(*executor.SearchResult) string
}

// RunLines reads one query per line. Reading stops at end of input or at
// the first blank line. A line that fails to parse is logged and skipped.
// For each query with hits it writes the hit count followed by the first
// two characters of every hit's path.
func (r *Runner) RunLines(ctx context.Context, in io.Reader, out io.Writer) (Summary, error) {
	var jobs []job
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			break
		}
		mode := "plain"
		if strings.HasPrefix(line, parser.SpatialPrefix) {
			mode = "spatial"
		}
		n := lineNo
		jobs = append(jobs, job{
			label:  fmt.Sprintf("line %d", n),
			mode:   mode,
			build:  func() (query.Node, error) { return r.Parser.ParseLine(line) },
			format: func(res *executor.SearchResult) string { return formatLine(n, res) },
		})
	}
	if err := sc.Err(); err != nil {
		return Summary{}, fmt.Errorf("reading queries: %w", err)
	}
	return r.run(ctx, jobs, out)
}

func formatLine(lineNo int, res *executor.SearchResult) string {
	if res.TotalHits == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d  ", res.TotalHits)
	for _, hit := range res.Results {
		if hit.Path == "" {
			fmt.Fprintf(&b, "%d  No path for this document\n", lineNo)
			continue
		}
		b.WriteString(prefix(hit.Path, 2))
		b.WriteByte(',')
	}
	b.WriteByte('\n')
	return b.String()
}

func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

// ReadInfoNeeds decodes every informationNeed element of an XML document,
// wherever it appears.
func ReadInfoNeeds(in io.Reader) ([]InfoNeed, error) {
	dec := xml.NewDecoder(in)
	var needs []InfoNeed
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return needs, nil
		}
		if err != nil {
			return needs, fmt.Errorf("reading information needs: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "informationNeed" {
			continue
		}
		var need InfoNeed
		if err := dec.DecodeElement(&need, &se); err != nil {
			return needs, fmt.Errorf("decoding information need: %w", err)
		}
		need.Identifier = strings.TrimSpace(need.Identifier)
		needs = append(needs, need)
	}
}

// BuildInfoNeed tags the whitespace-separated words of text and routes them
// to field groups. It returns nil when no word is routed.
func (r *Runner) BuildInfoNeed(text string) query.Node {
	tokens := tokenizer.Whitespace{}.Tokenize(text)
	return r.POS.Build(postag.Tag(r.Tagger, tokens))
}

// RunInfoNeeds evaluates an information-needs document. Each hit is written
// as "<identifier>  <path>".
func (r *Runner) RunInfoNeeds(ctx context.Context, in io.Reader, out io.Writer) (Summary, error) {
	needs, err := ReadInfoNeeds(in)
	if err != nil {
		return Summary{}, err
	}
	jobs := make([]job, len(needs))
	for i, need := range needs {
		jobs[i] = job{
			label: need.Identifier,
			mode:  "infoneed",
			build: func() (query.Node, error) { return r.BuildInfoNeed(need.Text), nil },
			format: func(res *executor.SearchResult) string {
				var b strings.Builder
				for _, hit := range res.Results {
					path := hit.Path
					if path == "" {
						path = "No path"
					}
					fmt.Fprintf(&b, "%s  %s\n", need.Identifier, path)
				}
				return b.String()
			},
		}
	}
	return r.run(ctx, jobs, out)
}

func (r *Runner) run(ctx context.Context, jobs []job, out io.Writer) (Summary, error) {
	start := time.Now()
	outputs := make([]string, len(jobs))
	failed := make([]bool, len(jobs))
	hits := make([]int, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			node, err := j.build()
			if err != nil {
				r.logger.Warn("skipping query", "query", j.label, "error", err)
				failed[i] = true
				if apperrors.IsQueryError(err) {
					r.record(j.mode, "syntax")
				} else {
					r.record(j.mode, "error")
				}
				return nil
			}
			if node == nil {
				r.logger.Info("query has no searchable terms", "query", j.label)
				r.record(j.mode, "empty")
				return nil
			}
			res, err := r.Exec.SearchAll(gctx, node)
			if err != nil {
				if gctx.Err() != nil {
					return err
				}
				r.logger.Warn("query failed", "query", j.label, "error", err)
				failed[i] = true
				r.record(j.mode, "error")
				return nil
			}
			hits[i] = res.TotalHits
			outputs[i] = j.format(res)
			if res.TotalHits == 0 {
				r.record(j.mode, "empty")
			} else {
				r.record(j.mode, "hits")
			}
			r.logger.Debug("query evaluated", "query", j.label, "parsed", res.Query, "total_hits", res.TotalHits)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("running queries: %w", err)
	}

	summary := Summary{Queries: len(jobs)}
	w := bufio.NewWriter(out)
	for i := range jobs {
		if failed[i] {
			summary.Failed++
		}
		summary.Hits += hits[i]
		if _, err := w.WriteString(outputs[i]); err != nil {
			return summary, fmt.Errorf("writing results: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return summary, fmt.Errorf("writing results: %w", err)
	}
	summary.ElapsedMs = time.Since(start).Milliseconds()
	r.logger.Info("batch finished",
		"queries", summary.Queries,
		"failed", summary.Failed,
		"hits", summary.Hits,
		"elapsed_ms", summary.ElapsedMs,
	)
	return summary, nil
}

func (r *Runner) record(mode, resultType string) {
	if r.Metrics != nil {
		r.Metrics.SearchQueriesTotal.WithLabelValues(mode, resultType).Inc()
	}
}
