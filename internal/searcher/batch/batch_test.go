package batch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/postag"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/builder"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/metrics"
)

func newRunner(t *testing.T, concurrency int) *Runner {
	t.Helper()
	a := tokenizer.NewSpanish(tokenizer.DefaultConfig())
	m := index.NewMemoryIndex(a)
	m.AddDocument(0, document.New(
		document.ExactField(document.FieldPath, "a.xml", true),
		document.TextField(document.FieldTitle, "mapa de españa", true),
		document.NumericField(document.FieldWest, -10),
		document.NumericField(document.FieldEast, 5),
		document.NumericField(document.FieldSouth, 35),
		document.NumericField(document.FieldNorth, 45),
	))
	m.AddDocument(1, document.New(
		document.ExactField(document.FieldPath, "b.xml", true),
		document.TextField(document.FieldTitle, "mapa de francia", true),
		document.NumericField(document.FieldWest, -5),
		document.NumericField(document.FieldEast, 10),
		document.NumericField(document.FieldSouth, 42),
		document.NumericField(document.FieldNorth, 51),
	))
	m.AddDocument(2, document.New(
		document.TextField(document.FieldTitle, "ortofoto", true),
	))
	return NewRunner(
		executor.New(m),
		parser.New(document.FieldTitle, a),
		builder.NewPOS(a, document.DefaultSchema()),
		postag.DefaultLexicon(),
		concurrency,
	)
}

func TestRunLines(t *testing.T) {
	in := strings.Join([]string{
		"mapa",
		"spatial:-8,8,36,46",
		"title:(",
		"  francia  ",
		"italia",
		"ortofoto",
		"",
		"mapa",
	}, "\n")
	var out bytes.Buffer
	sum, err := newRunner(t, 4).RunLines(context.Background(), strings.NewReader(in), &out)
	require.NoError(t, err)

	want := "2  a.,b.,\n" +
		"2  a.,b.,\n" +
		"1  b.,\n" +
		"1  6  No path for this document\n\n"
	assert.Equal(t, want, out.String())
	assert.Equal(t, 6, sum.Queries)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 6, sum.Hits)
}

func TestRunLinesLabelsRejectedQueries(t *testing.T) {
	r := newRunner(t, 2)
	r.Metrics = metrics.New()
	var out bytes.Buffer
	sum, err := r.RunLines(context.Background(), strings.NewReader("title:(\nspatial:x,2,40,43\nmapa\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Failed)

	rec := httptest.NewRecorder()
	r.Metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `search_queries_total{mode="plain",result_type="syntax"} 1`)
	assert.Contains(t, body, `search_queries_total{mode="spatial",result_type="syntax"} 1`)
	assert.NotContains(t, body, `result_type="error"`)
}

func TestRunLinesOrderIndependentOfConcurrency(t *testing.T) {
	var lines []string
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			lines = append(lines, "francia")
		} else {
			lines = append(lines, "españa")
		}
	}
	in := strings.Join(lines, "\n")

	var serial, parallel bytes.Buffer
	_, err := newRunner(t, 1).RunLines(context.Background(), strings.NewReader(in), &serial)
	require.NoError(t, err)
	_, err = newRunner(t, 8).RunLines(context.Background(), strings.NewReader(in), &parallel)
	require.NoError(t, err)
	assert.Equal(t, serial.String(), parallel.String())
	assert.True(t, strings.HasPrefix(serial.String(), "1  b.,\n1  a.,\n"))
}

const needs = `<?xml version="1.0" encoding="UTF-8"?>
<informationNeeds>
  <informationNeed>
    <identifier>1-1</identifier>
    <text>Mapa de Francia</text>
  </informationNeed>
  <informationNeed>
    <identifier>1-2</identifier>
    <text>de la</text>
  </informationNeed>
  <informationNeed>
    <identifier>1-3</identifier>
    <text>ortofoto</text>
  </informationNeed>
</informationNeeds>`

func TestReadInfoNeeds(t *testing.T) {
	got, err := ReadInfoNeeds(strings.NewReader(needs))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "1-1", got[0].Identifier)
	assert.Equal(t, "Mapa de Francia", got[0].Text)
}

func TestRunInfoNeeds(t *testing.T) {
	r := newRunner(t, 2)
	r.Metrics = metrics.New()
	var out bytes.Buffer
	sum, err := r.RunInfoNeeds(context.Background(), strings.NewReader(needs), &out)
	require.NoError(t, err)

	want := "1-1  b.xml\n" +
		"1-1  a.xml\n" +
		"1-3  No path\n"
	assert.Equal(t, want, out.String())
	assert.Equal(t, 3, sum.Queries)
	assert.Equal(t, 0, sum.Failed)
}

func TestBuildInfoNeedNothingRouted(t *testing.T) {
	assert.Nil(t, newRunner(t, 1).BuildInfoNeed("de la en"))
}

func TestRunFileDispatch(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "queries.txt")
	xmlPath := filepath.Join(dir, "needs.XML")
	require.NoError(t, os.WriteFile(txt, []byte("francia\n"), 0o644))
	require.NoError(t, os.WriteFile(xmlPath, []byte(needs), 0o644))

	assert.Equal(t, ModeLines, ModeFor(txt))
	assert.Equal(t, ModeInfoNeeds, ModeFor(xmlPath))

	r := newRunner(t, 2)
	var out bytes.Buffer
	_, err := r.RunFile(context.Background(), txt, &out)
	require.NoError(t, err)
	assert.Equal(t, "1  b.,\n", out.String())

	out.Reset()
	_, err = r.RunFile(context.Background(), xmlPath, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "1-3  No path\n")

	_, err = r.RunFile(context.Background(), filepath.Join(dir, "missing.txt"), &out)
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	_, err := newRunner(t, 2).RunLines(ctx, strings.NewReader("mapa\nfrancia\n"), &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}
