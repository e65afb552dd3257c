// Package extract reads Dublin Core / OWS metadata records into documents.
//
// Records are decoded as a token stream. Each element named by a Rule
// contributes one field value; an ows:BoundingBox contributes the four
// numeric coordinates west, south, east and north.
package extract

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/errors"
)

// Rule maps an element, written as prefix:local, to a document field.
// Transform, when set, rewrites the element text before it is added.
type Rule struct {
	Element   string
	Field     string
	Kind      document.Kind
	Transform func(string) string
}

// BoxRule locates the bounding box element and its two corners. Each corner
// holds two space separated numbers: longitude then latitude.
type BoxRule struct {
	Element string
	Lower   string
	Upper   string
}

// Namespaces lists the URIs accepted for each element prefix. An element
// whose prefix was never declared in the record matches by prefix alone.
var Namespaces = map[string][]string{
	"dc":      {"http://purl.org/dc/elements/1.1/"},
	"dcterms": {"http://purl.org/dc/terms/"},
	"ows":     {"http://www.opengis.net/ows", "http://www.opengis.net/ows/1.1", "http://www.opengis.net/ows/2.0"},
}

func stripDashes(s string) string {
	return strings.ReplaceAll(s, "-", "")
}

// DefaultRules is the mapping used for indexing metadata records.
func DefaultRules() []Rule {
	return []Rule{
		{Element: "dc:title", Field: document.FieldTitle, Kind: document.KindText},
		{Element: "dc:type", Field: document.FieldType, Kind: document.KindText},
		{Element: "dc:date", Field: document.FieldDate, Kind: document.KindExact},
		{Element: "dc:description", Field: document.FieldDescription, Kind: document.KindText},
		{Element: "dc:creator", Field: document.FieldAuthor, Kind: document.KindText},
		{Element: "dc:publisher", Field: document.FieldDepartment, Kind: document.KindText},
		{Element: "dc:contributor", Field: document.FieldDirector, Kind: document.KindText},
		{Element: "dcterms:issued", Field: document.FieldIssued, Kind: document.KindExact, Transform: stripDashes},
		{Element: "dcterms:created", Field: document.FieldCreated, Kind: document.KindExact, Transform: stripDashes},
	}
}

// DefaultBox is the OWS bounding box layout.
func DefaultBox() BoxRule {
	return BoxRule{Element: "ows:BoundingBox", Lower: "ows:LowerCorner", Upper: "ows:UpperCorner"}
}

// Extractor turns metadata records into documents.
type Extractor struct {
	Rules    []Rule
	Box      BoxRule
	KeyField string
	logger   *slog.Logger
}

// New returns an extractor with the default rules that stores the record
// name under keyField. An empty keyField selects document.KeyField.
func New(keyField string) *Extractor {
	if keyField == "" {
		keyField = document.KeyField
	}
	return &Extractor{
		Rules:    DefaultRules(),
		Box:      DefaultBox(),
		KeyField: keyField,
		logger:   slog.Default().With("component", "extractor"),
	}
}

type qname struct {
	prefix string
	local  string
}

func parseQName(s string) qname {
	prefix, local, ok := strings.Cut(s, ":")
	if !ok {
		return qname{local: s}
	}
	return qname{prefix: prefix, local: local}
}

func (q qname) matches(n xml.Name) bool {
	if q.local != n.Local {
		return false
	}
	if q.prefix == "" || n.Space == q.prefix {
		return true
	}
	for _, uri := range Namespaces[q.prefix] {
		if n.Space == uri {
			return true
		}
	}
	return false
}

// capture collects the text content of the element being read.
type capture struct {
	rule  *Rule
	depth int
	text  strings.Builder
}

type boxState struct {
	depth        int
	lower, upper string
	seenLower    bool
	seenUpper    bool
	corner       *string
	cornerDepth  int
	cornerBuffer strings.Builder
}

// Extract decodes one record named name. The document always carries the
// key field. A malformed record keeps the fields decoded before the syntax
// error and the problem is logged. Only a failure to read r is returned as
// an error.
func (x *Extractor) Extract(name string, r io.Reader) (*document.Document, error) {
	doc := document.New(document.ExactField(x.KeyField, name, true))

	rules := make([]qname, len(x.Rules))
	for i, rule := range x.Rules {
		rules[i] = parseQName(rule.Element)
	}
	boxName := parseQName(x.Box.Element)
	lowerName := parseQName(x.Box.Lower)
	upperName := parseQName(x.Box.Upper)

	dec := xml.NewDecoder(r)
	dec.Strict = true

	var (
		depth int
		open  []*capture
		box   *boxState
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			var syntaxErr *xml.SyntaxError
			if errors.As(err, &syntaxErr) {
				x.logger.Warn("malformed metadata record, keeping parsed fields",
					"path", name,
					"fields", doc.Len(),
					"error", fmt.Errorf("%s: %w: %v", name, apperrors.ErrMalformedMetadata, err),
				)
				return doc, nil
			}
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			for i := range rules {
				if rules[i].matches(t.Name) {
					open = append(open, &capture{rule: &x.Rules[i], depth: depth})
				}
			}
			switch {
			case box == nil && boxName.matches(t.Name):
				box = &boxState{depth: depth}
			case box != nil && box.corner == nil && lowerName.matches(t.Name) && !box.seenLower:
				box.corner, box.cornerDepth, box.seenLower = &box.lower, depth, true
				box.cornerBuffer.Reset()
			case box != nil && box.corner == nil && upperName.matches(t.Name) && !box.seenUpper:
				box.corner, box.cornerDepth, box.seenUpper = &box.upper, depth, true
				box.cornerBuffer.Reset()
			}
		case xml.CharData:
			for _, c := range open {
				c.text.Write(t)
			}
			if box != nil && box.corner != nil {
				box.cornerBuffer.Write(t)
			}
		case xml.EndElement:
			for len(open) > 0 && open[len(open)-1].depth == depth {
				c := open[len(open)-1]
				open = open[:len(open)-1]
				x.addRuleField(doc, c)
			}
			if box != nil {
				if box.corner != nil && box.cornerDepth == depth {
					*box.corner = box.cornerBuffer.String()
					box.corner = nil
				}
				if box.depth == depth {
					x.addBox(doc, name, box)
					box = nil
				}
			}
			depth--
		}
	}
	return doc, nil
}

func (x *Extractor) addRuleField(doc *document.Document, c *capture) {
	value := strings.TrimSpace(c.text.String())
	if c.rule.Transform != nil {
		value = c.rule.Transform(value)
	}
	switch c.rule.Kind {
	case document.KindText:
		doc.Add(document.TextField(c.rule.Field, value, true))
	case document.KindExact:
		doc.Add(document.ExactField(c.rule.Field, value, true))
	case document.KindNumeric:
		if v, err := parseCoordinate(value); err == nil {
			doc.Add(document.NumericField(c.rule.Field, v))
		}
	}
}

// addBox adds the box coordinates when both corners parse. A box with a
// missing or unparsable corner is dropped as a whole.
func (x *Extractor) addBox(doc *document.Document, name string, b *boxState) {
	west, south, err := parseCorner(b.lower)
	if err == nil {
		var east, north float64
		east, north, err = parseCorner(b.upper)
		if err == nil {
			doc.Add(document.NumericField(document.FieldWest, west))
			doc.Add(document.NumericField(document.FieldSouth, south))
			doc.Add(document.NumericField(document.FieldEast, east))
			doc.Add(document.NumericField(document.FieldNorth, north))
			return
		}
	}
	x.logger.Warn("dropping bounding box", "path", name, "error", err)
}

func parseCorner(s string) (float64, float64, error) {
	parts := strings.Fields(s)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("%w: corner %q needs two coordinates", apperrors.ErrMalformedMetadata, s)
	}
	a, err := parseCoordinate(parts[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := parseCoordinate(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func parseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: coordinate %q: %v", apperrors.ErrMalformedMetadata, s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: coordinate %q is not finite", apperrors.ErrMalformedMetadata, s)
	}
	return v, nil
}
