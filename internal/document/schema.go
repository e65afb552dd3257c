package document

// Field names produced by the metadata extractor.
const (
	FieldPath        = "path"
	FieldTitle       = "title"
	FieldType        = "type"
	FieldDate        = "date"
	FieldDescription = "description"
	FieldAuthor      = "author"
	FieldDepartment  = "department"
	FieldDirector    = "director"
	FieldIssued      = "issued"
	FieldCreated     = "created"
	FieldWest        = "west"
	FieldEast        = "east"
	FieldSouth       = "south"
	FieldNorth       = "north"
)

// Schema maps field names to the kind they are indexed with. Query
// construction uses it to decide whether a value is analyzed, matched
// verbatim or treated as a range.
type Schema map[string]Kind

// DefaultSchema describes the fields emitted by the metadata extractor.
func DefaultSchema() Schema {
	return Schema{
		FieldPath:        KindExact,
		FieldDate:        KindExact,
		FieldIssued:      KindExact,
		FieldCreated:     KindExact,
		FieldTitle:       KindText,
		FieldType:        KindText,
		FieldDescription: KindText,
		FieldAuthor:      KindText,
		FieldDepartment:  KindText,
		FieldDirector:    KindText,
		FieldWest:        KindNumeric,
		FieldEast:        KindNumeric,
		FieldSouth:       KindNumeric,
		FieldNorth:       KindNumeric,
	}
}

// KindOf returns the kind of name. Unknown fields are treated as text.
func (s Schema) KindOf(name string) Kind {
	if k, ok := s[name]; ok {
		return k
	}
	return KindText
}
