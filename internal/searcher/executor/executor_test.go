package executor

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/builder"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/query"
)

func geoDoc(path, title string, w, e, s, n float64) *document.Document {
	return document.New(
		document.ExactField(document.FieldPath, path, true),
		document.TextField(document.FieldTitle, title, true),
		document.NumericField(document.FieldWest, w),
		document.NumericField(document.FieldEast, e),
		document.NumericField(document.FieldSouth, s),
		document.NumericField(document.FieldNorth, n),
	)
}

func twoDocIndex() (*index.MemoryIndex, tokenizer.Analyzer) {
	a := tokenizer.NewSpanish(tokenizer.DefaultConfig())
	m := index.NewMemoryIndex(a)
	m.AddDocument(0, geoDoc("a.xml", "mapa de españa", -10, 5, 35, 45))
	m.AddDocument(1, geoDoc("b.xml", "mapa de francia", -5, 10, 42, 51))
	return m, a
}

func ids(res *SearchResult) []document.ID {
	out := make([]document.ID, len(res.Results))
	for i, d := range res.Results {
		out[i] = d.DocID
	}
	return out
}

func TestSpatialEndToEnd(t *testing.T) {
	m, a := twoDocIndex()
	q, err := parser.New("title", a).ParseLine("spatial:-8,8,36,46")
	require.NoError(t, err)

	res, err := New(m).Execute(context.Background(), q, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalHits)
	assert.Equal(t, []document.ID{0, 1}, ids(res))
	assert.Equal(t, "a.xml", res.Results[0].Path)
	assert.Equal(t, "b.xml", res.Results[1].Path)
	assert.Equal(t, res.Results[0].Score, res.Results[1].Score)
}

func TestPlainTextEndToEnd(t *testing.T) {
	m, a := twoDocIndex()
	q, err := parser.New("title", a).Parse("mapa")
	require.NoError(t, err)

	res, err := New(m).Execute(context.Background(), q, 10)
	require.NoError(t, err)
	require.Equal(t, 2, res.TotalHits)
	for _, d := range res.Results {
		assert.Greater(t, d.Score, 0.0)
	}
	assert.Equal(t, []document.ID{0, 1}, ids(res))
}

func TestHigherFrequencyRanksFirst(t *testing.T) {
	a := tokenizer.NewSpanish(tokenizer.Config{MinTokenLength: 1})
	m := index.NewMemoryIndex(a)
	m.AddDocument(0, document.New(document.TextField("title", "rio valle monte sierra", true)))
	m.AddDocument(1, document.New(document.TextField("title", "rio rio rio sierra", true)))
	m.AddDocument(2, document.New(document.TextField("title", "costa", true)))

	res, err := New(m).Execute(context.Background(), &query.Term{Field: "title", Value: "rio"}, 0)
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, document.ID(1), res.Results[0].DocID)
	assert.Greater(t, res.Results[0].Score, res.Results[1].Score)
}

func TestShorterFieldRanksFirst(t *testing.T) {
	a := tokenizer.NewSpanish(tokenizer.Config{MinTokenLength: 1})
	m := index.NewMemoryIndex(a)
	m.AddDocument(0, document.New(document.TextField("title", "mapa topografico nacional", true)))
	m.AddDocument(1, document.New(document.TextField("title", "mapa nacional", true)))

	res, err := New(m).Execute(context.Background(), &query.Term{Field: "title", Value: "mapa"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []document.ID{1, 0}, ids(res))
}

func TestSpatialOverlapDisjointContain(t *testing.T) {
	m := index.NewMemoryIndex(tokenizer.Whitespace{})
	m.AddDocument(0, geoDoc("sq.xml", "cuadrado", 0, 10, 0, 10))
	exec := New(m)

	tests := []struct {
		name string
		box  builder.Box
		hit  bool
	}{
		{"overlap", builder.Box{West: 5, East: 15, South: 5, North: 15}, true},
		{"disjoint", builder.Box{West: 20, East: 30, South: 20, North: 30}, false},
		{"contains", builder.Box{West: -5, East: 15, South: -5, North: 15}, true},
		{"contained", builder.Box{West: 2, East: 3, South: 2, North: 3}, true},
		{"touching edge", builder.Box{West: 10, East: 20, South: 0, North: 10}, true},
		{"disjoint in latitude only", builder.Box{West: 0, East: 10, South: 11, North: 20}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := exec.Execute(context.Background(), builder.Spatial(tt.box), 10)
			require.NoError(t, err)
			assert.Equal(t, tt.hit, res.TotalHits == 1)
		})
	}
}

func bitmapOf(res *SearchResult) *roaring.Bitmap {
	b := roaring.New()
	for _, d := range res.Results {
		b.Add(uint32(d.DocID))
	}
	return b
}

func randomIndex(t *testing.T, seed int64, n int) *index.MemoryIndex {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	vocab := []string{"a", "b", "c", "d"}
	m := index.NewMemoryIndex(tokenizer.Whitespace{})
	for i := 0; i < n; i++ {
		text := ""
		for j := 0; j < 1+rng.Intn(4); j++ {
			text += vocab[rng.Intn(len(vocab))] + " "
		}
		m.AddDocument(document.ID(i), document.New(document.TextField("body", text, false)))
	}
	return m
}

func TestBooleanSetSemantics(t *testing.T) {
	ctx := context.Background()
	for seed := int64(1); seed <= 5; seed++ {
		m := randomIndex(t, seed, 60)
		exec := New(m)
		termA := &query.Term{Field: "body", Value: "a"}
		termB := &query.Term{Field: "body", Value: "b"}
		termC := &query.Term{Field: "body", Value: "c"}

		resA, err := exec.Execute(ctx, termA, 0)
		require.NoError(t, err)
		resB, err := exec.Execute(ctx, termB, 0)
		require.NoError(t, err)
		setA, setB := bitmapOf(resA), bitmapOf(resB)

		union, err := exec.Execute(ctx, query.AnyOf(termA, termB), 0)
		require.NoError(t, err)
		assert.True(t, roaring.Or(setA, setB).Equals(bitmapOf(union)), "seed %d: SHOULD is union", seed)
		assert.Equal(t, int(roaring.Or(setA, setB).GetCardinality()), union.TotalHits)

		inter, err := exec.Execute(ctx, query.AllOf(termA, termB), 0)
		require.NoError(t, err)
		assert.True(t, roaring.And(setA, setB).Equals(bitmapOf(inter)), "seed %d: MUST is intersection", seed)

		for _, base := range []*query.Bool{query.AnyOf(termA, termB), query.AllOf(termA, termB)} {
			before, err := exec.Execute(ctx, base, 0)
			require.NoError(t, err)
			withNot := &query.Bool{Clauses: append(append([]query.Clause(nil), base.Clauses...), query.Clause{Occur: query.MustNot, Node: termC})}
			after, err := exec.Execute(ctx, withNot, 0)
			require.NoError(t, err)
			beforeSet, afterSet := bitmapOf(before), bitmapOf(after)
			assert.True(t, roaring.AndNot(afterSet, beforeSet).IsEmpty(), "seed %d: MUST_NOT never adds", seed)
			assert.LessOrEqual(t, after.TotalHits, before.TotalHits)
		}
	}
}

func TestMustWithShouldOnlyAddsScore(t *testing.T) {
	m := index.NewMemoryIndex(tokenizer.Whitespace{})
	m.AddDocument(0, document.New(document.TextField("body", "a", false)))
	m.AddDocument(1, document.New(document.TextField("body", "a b", false)))
	m.AddDocument(2, document.New(document.TextField("body", "b", false)))

	q := query.NewBool().
		Add(query.Must, &query.Term{Field: "body", Value: "a"}).
		Add(query.Should, &query.Term{Field: "body", Value: "b"})
	res, err := New(m).Execute(context.Background(), q, 0)
	require.NoError(t, err)
	assert.Equal(t, []document.ID{1, 0}, ids(res))
}

func TestDegenerateQueries(t *testing.T) {
	m, _ := twoDocIndex()
	exec := New(m)
	ctx := context.Background()

	for name, q := range map[string]query.Node{
		"nil":           nil,
		"empty bool":    &query.Bool{},
		"only must not": query.NewBool().Add(query.MustNot, &query.Term{Field: "title", Value: "mapa"}),
		"unknown field": &query.Term{Field: "nope", Value: "mapa"},
		"missing term":  &query.Term{Field: "title", Value: "italia"},
		"inverted":      &query.Range{Field: "west", Min: 5, Max: -5},
	} {
		for _, limit := range []int{10, 0} {
			res, err := exec.Execute(ctx, q, limit)
			require.NoError(t, err, name)
			assert.Equal(t, 0, res.TotalHits, name)
			assert.NotNil(t, res.Results, "%s limit=%d", name, limit)
			assert.Empty(t, res.Results, name)
		}
	}
}

func TestExactFieldMatchesRawValue(t *testing.T) {
	m, _ := twoDocIndex()
	exec := New(m)
	res, err := exec.Execute(context.Background(), &query.Term{Field: "path", Value: "b.xml"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []document.ID{1}, ids(res))

	res, err = exec.Execute(context.Background(), &query.Term{Field: "path", Value: "B.XML"}, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalHits)
}

func TestLimitAndSearchAll(t *testing.T) {
	m := index.NewMemoryIndex(tokenizer.Whitespace{})
	n := DefaultProbeLimit + 5
	for i := 0; i < n; i++ {
		m.AddDocument(document.ID(i), document.New(
			document.ExactField("path", fmt.Sprintf("d%04d.xml", i), true),
			document.TextField("body", "x", false),
		))
	}
	exec := New(m)
	q := &query.Term{Field: "body", Value: "x"}

	res, err := exec.Execute(context.Background(), q, 3)
	require.NoError(t, err)
	assert.Equal(t, n, res.TotalHits)
	assert.Equal(t, []document.ID{0, 1, 2}, ids(res))

	all, err := exec.SearchAll(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, n, all.TotalHits)
	assert.Len(t, all.Results, n)
}

func TestCancelledContext(t *testing.T) {
	m, _ := twoDocIndex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(m).Execute(ctx, &query.Term{Field: "title", Value: "mapa"}, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSegmentReaderMatchesMemoryIndex(t *testing.T) {
	m, a := twoDocIndex()
	path := filepath.Join(t.TempDir(), segment.FileName)
	_, err := segment.NewWriter(segment.CodecLZ4).Write(path, m.Snapshot(2))
	require.NoError(t, err)
	r, err := segment.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	p := parser.New("title", a)
	for _, line := range []string{"mapa", "francia OR españa", "spatial:-8,8,36,46 francia", "+mapa -francia"} {
		q, err := p.ParseLine(line)
		require.NoError(t, err)
		want, err := New(m).Execute(context.Background(), q, 10)
		require.NoError(t, err)
		got, err := New(r).Execute(context.Background(), q, 10)
		require.NoError(t, err)
		assert.Equal(t, want.TotalHits, got.TotalHits, line)
		assert.Equal(t, want.Results, got.Results, line)
	}
}

func TestSwapReader(t *testing.T) {
	m, _ := twoDocIndex()
	exec := New(index.NewMemoryIndex(tokenizer.Whitespace{}))
	q := &query.Term{Field: "path", Value: "a.xml"}

	res, err := exec.Execute(context.Background(), q, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalHits)

	exec.Swap(m)
	res, err = exec.Execute(context.Background(), q, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalHits)
}
