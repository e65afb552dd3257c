// Package query defines the boolean query tree evaluated by the executor:
// term leaves, numeric range leaves and boolean combinations of clauses.
package query

import (
	"math"
	"strconv"
	"strings"
)

// Occur is the occurrence requirement of a boolean clause.
type Occur int

const (
	Should Occur = iota
	Must
	MustNot
)

func (o Occur) String() string {
	switch o {
	case Must:
		return "MUST"
	case MustNot:
		return "MUST_NOT"
	default:
		return "SHOULD"
	}
}

func (o Occur) prefix() string {
	switch o {
	case Must:
		return "+"
	case MustNot:
		return "-"
	default:
		return ""
	}
}

// Node is a query tree node.
type Node interface {
	String() string
	node()
}

// Term matches documents containing Value in Field. For text fields Value is
// an analyzed token; for exact fields it is the raw value.
type Term struct {
	Field string
	Value string
}

func (*Term) node() {}

func (t *Term) String() string {
	return t.Field + ":" + t.Value
}

// Range matches documents whose numeric Field lies in [Min, Max]. Infinite
// bounds are unbounded.
type Range struct {
	Field string
	Min   float64
	Max   float64
}

func (*Range) node() {}

func (r *Range) String() string {
	return r.Field + ":[" + formatBound(r.Min) + " TO " + formatBound(r.Max) + "]"
}

func formatBound(v float64) string {
	if math.IsInf(v, 0) {
		return "*"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Clause is an occurrence-qualified sub-query.
type Clause struct {
	Occur Occur
	Node  Node
}

// Bool combines clauses with MUST, SHOULD and MUST_NOT semantics.
type Bool struct {
	Clauses []Clause
}

func (*Bool) node() {}

// NewBool returns a Bool over the given clauses.
func NewBool(clauses ...Clause) *Bool {
	return &Bool{Clauses: clauses}
}

// Add appends a clause and returns b for chaining.
func (b *Bool) Add(occur Occur, n Node) *Bool {
	b.Clauses = append(b.Clauses, Clause{Occur: occur, Node: n})
	return b
}

func (b *Bool) String() string {
	parts := make([]string, 0, len(b.Clauses))
	for _, c := range b.Clauses {
		s := c.Node.String()
		if _, nested := c.Node.(*Bool); nested {
			s = "(" + s + ")"
		}
		parts = append(parts, c.Occur.prefix()+s)
	}
	return strings.Join(parts, " ")
}

// AnyOf returns a pure disjunction of nodes.
func AnyOf(nodes ...Node) *Bool {
	b := &Bool{Clauses: make([]Clause, 0, len(nodes))}
	for _, n := range nodes {
		b.Add(Should, n)
	}
	return b
}

// AllOf returns a pure conjunction of nodes.
func AllOf(nodes ...Node) *Bool {
	b := &Bool{Clauses: make([]Clause, 0, len(nodes))}
	for _, n := range nodes {
		b.Add(Must, n)
	}
	return b
}

// Flatten inlines nested pure-SHOULD Bool clauses of a pure-SHOULD Bool,
// producing one flat disjunction. Other shapes are returned unchanged.
func Flatten(n Node) Node {
	b, ok := n.(*Bool)
	if !ok || !pureShould(b) {
		return n
	}
	out := &Bool{}
	var walk func(*Bool)
	walk = func(cur *Bool) {
		for _, c := range cur.Clauses {
			if inner, ok := c.Node.(*Bool); ok && pureShould(inner) && len(inner.Clauses) > 0 {
				walk(inner)
				continue
			}
			out.Clauses = append(out.Clauses, c)
		}
	}
	walk(b)
	return out
}

func pureShould(b *Bool) bool {
	for _, c := range b.Clauses {
		if c.Occur != Should {
			return false
		}
	}
	return true
}
