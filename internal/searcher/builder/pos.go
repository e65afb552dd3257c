// Package builder turns tagged information needs and bounding boxes into
// query trees.
package builder

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/postag"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/query"
)

// CategoryFields maps a POS category letter to the fields a token of that
// category is searched in. Categories not listed are ignored.
var CategoryFields = map[byte][]string{
	'N': {document.FieldTitle, document.FieldType, document.FieldDescription,
		document.FieldAuthor, document.FieldDepartment, document.FieldDirector},
	'Z': {document.FieldTitle, document.FieldDate, document.FieldDescription},
	'A': {document.FieldTitle, document.FieldDescription},
	'R': {document.FieldTitle, document.FieldDescription},
	'V': {document.FieldTitle, document.FieldDescription},
}

var sanitizer = strings.NewReplacer(
	"-", "", "+", "", ".", "", "^", "", ":", "", ",", "", "(", "", ")", "", "*", "",
)

// POS builds disjunctive queries routed by part of speech.
type POS struct {
	Analyzer tokenizer.Analyzer
	Schema   document.Schema
	Fields   map[byte][]string
}

// NewPOS returns a builder using the default category routing.
func NewPOS(a tokenizer.Analyzer, s document.Schema) *POS {
	return &POS{Analyzer: a, Schema: s, Fields: CategoryFields}
}

// Build returns the disjunction of every routed token, or nil when no token
// falls into a routed category.
func (p *POS) Build(tagged []postag.Tagged) query.Node {
	fields := p.Fields
	if fields == nil {
		fields = CategoryFields
	}
	var merged query.Node
	for _, t := range tagged {
		targets, ok := fields[t.Category()]
		if !ok {
			continue
		}
		word := sanitizer.Replace(t.Token)
		if word == "" {
			continue
		}
		group := p.tokenQuery(word, targets)
		if group == nil {
			continue
		}
		if merged == nil {
			merged = group
			continue
		}
		merged = query.AnyOf(group, merged)
	}
	if merged == nil {
		return nil
	}
	return query.Flatten(merged)
}

func (p *POS) tokenQuery(word string, fields []string) query.Node {
	group := &query.Bool{}
	for _, f := range fields {
		if n := FieldQuery(p.Analyzer, p.Schema, f, word); n != nil {
			group.Add(query.Should, n)
		}
	}
	if len(group.Clauses) == 0 {
		return nil
	}
	return group
}

// FieldQuery matches word in field according to the field's kind: analyzed
// tokens for text fields, the raw value for exact fields. Numeric fields and
// words that analyze to nothing yield nil.
func FieldQuery(a tokenizer.Analyzer, s document.Schema, field, word string) query.Node {
	switch s.KindOf(field) {
	case document.KindExact:
		return &query.Term{Field: field, Value: word}
	case document.KindText:
		tokens := a.Tokenize(word)
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
		return query.AnyOf(terms...)
	}
	return nil
}
