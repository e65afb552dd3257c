package query

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	q := NewBool().
		Add(Must, &Term{Field: "title", Value: "mapa"}).
		Add(MustNot, &Term{Field: "type", Value: "foto"}).
		Add(Should, AnyOf(&Term{Field: "title", Value: "a"}, &Term{Field: "title", Value: "b"})).
		Add(Must, &Range{Field: "west", Min: math.Inf(-1), Max: 8})
	assert.Equal(t, "+title:mapa -type:foto (title:a title:b) +west:[* TO 8]", q.String())
	assert.Equal(t, "MUST_NOT", MustNot.String())
}

func TestFlatten(t *testing.T) {
	a := &Term{Field: "title", Value: "a"}
	b := &Term{Field: "title", Value: "b"}
	c := &Term{Field: "title", Value: "c"}
	nested := AnyOf(c, AnyOf(b, AnyOf(a)))

	flat, ok := Flatten(nested).(*Bool)
	require.True(t, ok)
	require.Len(t, flat.Clauses, 3)
	assert.Equal(t, "title:c title:b title:a", flat.String())
}

func TestFlattenKeepsConjunctions(t *testing.T) {
	inner := AllOf(&Term{Field: "title", Value: "a"}, &Term{Field: "title", Value: "b"})
	q := AnyOf(inner, &Term{Field: "title", Value: "c"})
	flat := Flatten(q).(*Bool)
	require.Len(t, flat.Clauses, 2)
	assert.Same(t, inner, flat.Clauses[0].Node)

	m := AllOf(&Term{Field: "x", Value: "y"})
	assert.Same(t, m, Flatten(m))
}
