// Package document defines the field model attached to indexed metadata
// records: analyzed text fields, exact-match string fields and numeric
// point fields.
package document

import "fmt"

// ID identifies a document inside one index. IDs are assigned by the
// indexing session in insertion order and are never reused.
type ID uint32

// Kind selects how a field is indexed.
type Kind uint8

const (
	// KindText fields are tokenized by the analyzer and scored.
	KindText Kind = iota
	// KindExact fields are indexed as a single unsplit, case-sensitive token.
	KindExact
	// KindNumeric fields feed the numeric range index only.
	KindNumeric
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindExact:
		return "exact"
	case KindNumeric:
		return "numeric"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Field is a single named value of a document.
type Field struct {
	Name   string
	Kind   Kind
	Text   string
	Number float64
	Stored bool
}

// TextField returns an analyzed field.
func TextField(name, text string, stored bool) Field {
	return Field{Name: name, Kind: KindText, Text: text, Stored: stored}
}

// ExactField returns a field indexed verbatim as one token.
func ExactField(name, value string, stored bool) Field {
	return Field{Name: name, Kind: KindExact, Text: value, Stored: stored}
}

// NumericField returns a point field for range queries. Numeric fields are
// never stored as text.
func NumericField(name string, value float64) Field {
	return Field{Name: name, Kind: KindNumeric, Number: value}
}
