package indexer

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/metrics"
)

func newTestEngine(t *testing.T, dir, mode string, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(config.IndexerConfig{
		DataDir:     dir,
		OpenMode:    mode,
		Compression: "zstd",
	}, tokenizer.NewSpanish(tokenizer.DefaultConfig()), opts...)
	require.NoError(t, err)
	return e
}

func recordDoc(path, title string) *document.Document {
	return document.New(
		document.ExactField("path", path, true),
		document.TextField("title", title, true),
	)
}

func TestEngineReplaceKeepsOneLiveDocumentPerKey(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), OpenModeCreate)

	first, err := e.Replace("path", "a.xml", recordDoc("a.xml", "mapa"))
	require.NoError(t, err)
	second, err := e.Replace("path", "a.xml", recordDoc("a.xml", "mapa corregido"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, []uint32{uint32(second)}, e.LookupExact("path", "a.xml").ToArray())
	assert.Equal(t, 1, e.TotalDocs())
}

func TestEngineDoubleReplaceIsIdempotentOnLiveCount(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), OpenModeCreate)
	_, err := e.Insert(recordDoc("b.xml", "otro"))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := e.Replace("path", "a.xml", recordDoc("a.xml", "mapa"))
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(1), e.LookupExact("path", "a.xml").GetCardinality())
	assert.Equal(t, 2, e.TotalDocs())
}

func TestEngineReplaceWithoutMatchInserts(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), OpenModeCreate)
	id, err := e.Replace("path", "nuevo.xml", recordDoc("nuevo.xml", "mapa"))
	require.NoError(t, err)
	assert.Equal(t, document.ID(0), id)
	assert.Equal(t, 1, e.TotalDocs())
}

func TestEngineInsertKeepsDuplicates(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), OpenModeCreate)
	_, err := e.Insert(recordDoc("a.xml", "uno"))
	require.NoError(t, err)
	_, err = e.Insert(recordDoc("a.xml", "dos"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.LookupExact("path", "a.xml").GetCardinality())

	_, err = e.Insert(nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestEngineFlushThenRead(t *testing.T) {
	dir := t.TempDir()
	var flushed []FlushInfo
	m := metrics.New()
	e := newTestEngine(t, dir, OpenModeCreate,
		WithMetrics(m),
		WithFlushHook(func(_ context.Context, info FlushInfo) { flushed = append(flushed, info) }),
	)
	_, err := e.Upsert(recordDoc("a.xml", "mapa de carreteras"))
	require.NoError(t, err)
	require.NoError(t, e.Flush(context.Background()))

	r, err := segment.OpenReader(e.Path())
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 1, r.TotalDocs())
	mapa := tokenizer.NewSpanish(tokenizer.DefaultConfig()).Tokenize("mapa")
	require.Len(t, mapa, 1)
	assert.Equal(t, 1, r.DocFreq("title", mapa[0]))

	require.Len(t, flushed, 1)
	assert.Equal(t, uint64(1), flushed[0].Generation)
	assert.Equal(t, 1, flushed[0].Docs)

	require.NoError(t, e.Close(context.Background()))
	assert.Len(t, flushed, 1, "close without changes must not flush again")
}

func TestEngineUpdateModeContinuesExistingIndex(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(t, dir, OpenModeCreate)
	first, err := e.Upsert(recordDoc("a.xml", "mapa"))
	require.NoError(t, err)
	_, err = e.Upsert(recordDoc("b.xml", "foto"))
	require.NoError(t, err)
	require.NoError(t, e.Close(context.Background()))

	u := newTestEngine(t, dir, OpenModeUpdate)
	assert.Equal(t, 2, u.TotalDocs())
	id, err := u.Upsert(recordDoc("a.xml", "mapa nuevo"))
	require.NoError(t, err)
	assert.Greater(t, uint32(id), uint32(first), "ids are never reused across sessions")
	assert.Equal(t, 2, u.TotalDocs())
	assert.Equal(t, []uint32{uint32(id)}, u.LookupExact("path", "a.xml").ToArray())
	require.NoError(t, u.Close(context.Background()))

	c := newTestEngine(t, dir, OpenModeCreate)
	assert.Equal(t, 0, c.TotalDocs())
}

func TestEngineUpdateModeWithoutIndexStartsEmpty(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), OpenModeUpdate)
	assert.Equal(t, 0, e.TotalDocs())
}

func TestNewEngineRejectsUnknownMode(t *testing.T) {
	_, err := NewEngine(config.IndexerConfig{DataDir: t.TempDir(), OpenMode: "append"}, tokenizer.Whitespace{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func docsOf(items ...any) iter.Seq2[*document.Document, error] {
	return func(yield func(*document.Document, error) bool) {
		for _, it := range items {
			var ok bool
			switch v := it.(type) {
			case *document.Document:
				ok = yield(v, nil)
			case error:
				ok = yield(nil, v)
			}
			if !ok {
				return
			}
		}
	}
}

func TestBuildIndexSkipsBadUnits(t *testing.T) {
	dir := t.TempDir()
	stats, err := BuildIndex(context.Background(), docsOf(
		recordDoc("a.xml", "mapa"),
		errors.New("reading c.xml: permission denied"),
		recordDoc("b.xml", "foto"),
	), dir, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 1, stats.Skipped)
	assert.GreaterOrEqual(t, stats.ElapsedMs, int64(0))

	r, err := segment.OpenReader(dir + "/" + segment.FileName)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 2, r.TotalDocs())
}

func TestBuildIndexEmptySourceWritesEmptyIndex(t *testing.T) {
	dir := t.TempDir()
	stats, err := BuildIndex(context.Background(), docsOf(), dir, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, Stats{ElapsedMs: stats.ElapsedMs}, stats)

	r, err := segment.OpenReader(dir + "/" + segment.FileName)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 0, r.TotalDocs())
}

func TestBuildIndexHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BuildIndex(ctx, docsOf(recordDoc("a.xml", "x")), t.TempDir(), BuildOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
