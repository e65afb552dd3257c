// Package parser turns query strings into query trees. It understands a
// familiar query-string grammar (terms, "phrases", +/- modifiers, AND/OR/NOT,
// field:value qualifiers, field:[min TO max] ranges and parentheses) and the
// spatial:<west>,<east>,<south>,<north> prefix.
package parser

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/builder"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/errors"
)

// SpatialPrefix introduces a bounding-box query line.
const SpatialPrefix = "spatial:"

// Parser parses plain-text queries. Unqualified terms search DefaultField.
type Parser struct {
	DefaultField string
	Analyzer     tokenizer.Analyzer
	Schema       document.Schema
}

// New returns a parser over the default schema.
func New(defaultField string, a tokenizer.Analyzer) *Parser {
	return &Parser{DefaultField: defaultField, Analyzer: a, Schema: document.DefaultSchema()}
}

// ParseLine dispatches on the spatial prefix.
func (p *Parser) ParseLine(line string) (query.Node, error) {
	if strings.HasPrefix(line, SpatialPrefix) {
		return p.ParseSpatial(line)
	}
	return p.Parse(line)
}

// ParseSpatial parses "spatial:<west>,<east>,<south>,<north> [text]". With
// residual text the result is the disjunction of the spatial predicate and
// the parsed text, so documents matching either are returned.
func (p *Parser) ParseSpatial(line string) (query.Node, error) {
	if !strings.HasPrefix(line, SpatialPrefix) {
		return nil, apperrors.Newf(apperrors.ErrQuerySyntax, http.StatusBadRequest,
			"spatial query must start with %q", SpatialPrefix)
	}
	coords, rest, _ := strings.Cut(line[len(SpatialPrefix):], " ")
	box, err := builder.ParseBox(coords)
	if err != nil {
		return nil, err
	}
	spatial := builder.Spatial(box)
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return spatial, nil
	}
	text, err := p.Parse(rest)
	if err != nil {
		return nil, err
	}
	if text == nil {
		return spatial, nil
	}
	return query.AnyOf(spatial, text), nil
}

// Parse parses a plain-text query. A query whose every term analyzes away
// (only stop-words, say) yields a nil node, which matches nothing.
func (p *Parser) Parse(input string) (query.Node, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	st := &state{p: p, toks: toks}
	if st.peek().kind == tokEOF {
		return nil, syntaxError(st.peek(), "empty query")
	}
	node, err := st.parseQuery(p.DefaultField, false)
	if err != nil {
		return nil, err
	}
	if t := st.peek(); t.kind != tokEOF {
		return nil, syntaxError(t, "unexpected input")
	}
	return node, nil
}

type state struct {
	p    *Parser
	toks []token
	i    int
}

func (s *state) peek() token {
	return s.toks[s.i]
}

func (s *state) next() token {
	t := s.toks[s.i]
	if t.kind != tokEOF {
		s.i++
	}
	return t
}

func syntaxError(t token, msg string) error {
	return apperrors.Newf(apperrors.ErrQuerySyntax, http.StatusBadRequest, "%s at offset %d", msg, t.pos)
}

// parseQuery reads clauses until EOF or, when nested, a closing paren.
// Conjunction handling follows the classic query parser: AND turns the
// preceding and following clauses into MUST, NOT and '-' prohibit the next
// clause, '+' requires it and anything else is SHOULD.
func (s *state) parseQuery(field string, nested bool) (query.Node, error) {
	var clauses []query.Clause
	lastDropped := false
	for {
		t := s.peek()
		if t.kind == tokEOF || (nested && t.kind == tokRParen) {
			break
		}
		conj := query.Should
		explicit := false
		switch t.kind {
		case tokAnd:
			conj, explicit = query.Must, true
			s.next()
		case tokOr:
			explicit = true
			s.next()
		}
		if explicit && len(clauses) == 0 && !lastDropped {
			return nil, syntaxError(t, "operator without left operand")
		}

		mod := query.Should
		modSet := false
		switch s.peek().kind {
		case tokPlus:
			mod, modSet = query.Must, true
			s.next()
		case tokMinus, tokNot:
			mod, modSet = query.MustNot, true
			s.next()
		}

		node, err := s.parseClause(field)
		if err != nil {
			return nil, err
		}
		if conj == query.Must && len(clauses) > 0 && clauses[len(clauses)-1].Occur == query.Should {
			clauses[len(clauses)-1].Occur = query.Must
		}
		if node == nil {
			lastDropped = true
			continue
		}
		lastDropped = false
		occur := conj
		if modSet {
			occur = mod
		}
		clauses = append(clauses, query.Clause{Occur: occur, Node: node})
	}

	switch len(clauses) {
	case 0:
		return nil, nil
	case 1:
		if clauses[0].Occur != query.MustNot {
			return clauses[0].Node, nil
		}
	}
	return &query.Bool{Clauses: clauses}, nil
}

func (s *state) parseClause(field string) (query.Node, error) {
	t := s.next()
	switch t.kind {
	case tokWord:
		if s.peek().kind == tokColon {
			s.next()
			return s.parseFieldValue(t.text)
		}
		return s.term(field, t.text)
	case tokPhrase:
		return s.phrase(field, t.text), nil
	case tokLParen:
		return s.group(field, t)
	case tokLBracket:
		return nil, syntaxError(t, "range without field")
	case tokEOF:
		return nil, syntaxError(t, "unexpected end of query")
	}
	return nil, syntaxError(t, "unexpected token")
}

func (s *state) parseFieldValue(field string) (query.Node, error) {
	if k := s.peek().kind; (k == tokMinus || k == tokPlus) && s.p.Schema.KindOf(field) == document.KindNumeric {
		w, ok := s.signedWord()
		if !ok {
			return nil, syntaxError(w, "missing value for field "+field)
		}
		return s.term(field, w.text)
	}
	t := s.next()
	switch t.kind {
	case tokWord:
		return s.term(field, t.text)
	case tokPhrase:
		return s.phrase(field, t.text), nil
	case tokLParen:
		return s.group(field, t)
	case tokLBracket:
		return s.rangeQuery(field, t)
	}
	return nil, syntaxError(t, "missing value for field "+field)
}

func (s *state) group(field string, open token) (query.Node, error) {
	node, err := s.parseQuery(field, true)
	if err != nil {
		return nil, err
	}
	if s.next().kind != tokRParen {
		return nil, syntaxError(open, "unbalanced parenthesis")
	}
	return node, nil
}

func (s *state) rangeQuery(field string, open token) (query.Node, error) {
	if s.p.Schema.KindOf(field) != document.KindNumeric {
		return nil, syntaxError(open, "range on non-numeric field "+field)
	}
	lo, okLo := s.signedWord()
	to := s.next()
	hi, okHi := s.signedWord()
	closing := s.next()
	if !okLo || to.kind != tokWord || to.text != "TO" || !okHi || closing.kind != tokRBracket {
		return nil, syntaxError(open, "want [min TO max]")
	}
	min, err := bound(lo, math.Inf(-1))
	if err != nil {
		return nil, err
	}
	max, err := bound(hi, math.Inf(1))
	if err != nil {
		return nil, err
	}
	return &query.Range{Field: field, Min: min, Max: max}, nil
}

// signedWord reads a word, folding a leading '+' or '-' token into it so
// that negative coordinates survive lexing.
func (s *state) signedWord() (token, bool) {
	t := s.next()
	sign := ""
	switch t.kind {
	case tokPlus:
		sign = "+"
	case tokMinus:
		sign = "-"
	}
	if sign != "" {
		w := s.next()
		if w.kind != tokWord {
			return w, false
		}
		return token{kind: tokWord, text: sign + w.text, pos: t.pos}, true
	}
	return t, t.kind == tokWord
}

func bound(t token, open float64) (float64, error) {
	if t.text == "*" {
		return open, nil
	}
	v, err := strconv.ParseFloat(t.text, 64)
	if err != nil || math.IsNaN(v) {
		return 0, syntaxError(t, "bad number "+strconv.Quote(t.text))
	}
	return v, nil
}

func (s *state) term(field, text string) (query.Node, error) {
	if s.p.Schema.KindOf(field) == document.KindNumeric {
		v, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsNaN(v) {
			return nil, apperrors.Newf(apperrors.ErrQuerySyntax, http.StatusBadRequest,
				"field %s expects a number, got %q", field, text)
		}
		return &query.Range{Field: field, Min: v, Max: v}, nil
	}
	return builder.FieldQuery(s.p.Analyzer, s.p.Schema, field, text), nil
}

// phrase requires every analyzed token of text. Exact fields take the
// phrase verbatim.
func (s *state) phrase(field, text string) query.Node {
	switch s.p.Schema.KindOf(field) {
	case document.KindExact:
		return &query.Term{Field: field, Value: text}
	case document.KindNumeric:
		return nil
	}
	tokens := s.p.Analyzer.Tokenize(text)
	switch len(tokens) {
	case 0:
		return nil
	case 1:
		return &query.Term{Field: field, Value: tokens[0]}
	}
	terms := make([]query.Node, len(tokens))
	for i, tok := range tokens {
		terms[i] = &query.Term{Field: field, Value: tok}
	}
	return query.AllOf(terms...)
}
