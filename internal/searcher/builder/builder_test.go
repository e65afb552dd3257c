package builder

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/postag"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/errors"
)

func plain() tokenizer.Analyzer {
	return tokenizer.NewSpanish(tokenizer.Config{MinTokenLength: 1})
}

func fieldsOf(t *testing.T, n query.Node) map[string][]string {
	t.Helper()
	b, ok := n.(*query.Bool)
	require.True(t, ok, "expected a disjunction, got %T", n)
	out := map[string][]string{}
	for _, c := range b.Clauses {
		assert.Equal(t, query.Should, c.Occur)
		term, ok := c.Node.(*query.Term)
		require.True(t, ok)
		out[term.Value] = append(out[term.Value], term.Field)
	}
	return out
}

func TestPOSRoutesByCategory(t *testing.T) {
	tagged, err := postag.ParseTaggedText("gato_NC rojo_AQ de_SP")
	require.NoError(t, err)

	q := NewPOS(plain(), document.DefaultSchema()).Build(tagged)
	require.NotNil(t, q)
	got := fieldsOf(t, q)

	assert.ElementsMatch(t, []string{"title", "type", "description", "author", "department", "director"}, got["gato"])
	assert.ElementsMatch(t, []string{"title", "description"}, got["rojo"])
	assert.NotContains(t, got, "de")
}

func TestPOSNumeralUsesRawDate(t *testing.T) {
	q := NewPOS(plain(), document.DefaultSchema()).Build([]postag.Tagged{{Token: "2010", Tag: "Z"}})
	got := fieldsOf(t, q)
	assert.ElementsMatch(t, []string{"title", "date", "description"}, got["2010"])
}

func TestPOSSanitizesTokens(t *testing.T) {
	q := NewPOS(plain(), document.DefaultSchema()).Build([]postag.Tagged{
		{Token: "(mapas),", Tag: "NCMP000"},
		{Token: "+-*", Tag: "NC"},
	})
	got := fieldsOf(t, q)
	assert.Len(t, got["mapas"], 6)
	assert.Len(t, got, 1)
}

func TestPOSNothingRouted(t *testing.T) {
	q := NewPOS(plain(), document.DefaultSchema()).Build([]postag.Tagged{
		{Token: "de", Tag: "SP"},
		{Token: "la", Tag: "DA"},
	})
	assert.Nil(t, q)
	assert.Nil(t, NewPOS(plain(), document.DefaultSchema()).Build(nil))
}

func TestSpatialPredicates(t *testing.T) {
	q := Spatial(Box{West: -3, East: 2, South: 40, North: 43})
	require.Len(t, q.Clauses, 4)
	inf := math.Inf(1)
	want := []query.Range{
		{Field: "west", Min: -inf, Max: 2},
		{Field: "south", Min: -inf, Max: 43},
		{Field: "east", Min: -3, Max: inf},
		{Field: "north", Min: 40, Max: inf},
	}
	for i, c := range q.Clauses {
		assert.Equal(t, query.Must, c.Occur)
		assert.Equal(t, want[i], *c.Node.(*query.Range))
	}
}

func TestParseBox(t *testing.T) {
	b, err := ParseBox("-3.5, 2,40,43.25")
	require.NoError(t, err)
	assert.Equal(t, Box{West: -3.5, East: 2, South: 40, North: 43.25}, b)

	for _, bad := range []string{"1,2,3", "a,2,3,4", "1,2,3,4,5", "", "1,2,NaN,4"} {
		_, err := ParseBox(bad)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCoordinates, bad)
	}
}
