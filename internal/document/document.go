package document

// KeyField is the exact field used for replace-by-key updates.
const KeyField = "path"

// Document is an ordered list of fields. Field names may repeat.
type Document struct {
	fields []Field
}

// New returns a document holding the given fields in order.
func New(fields ...Field) *Document {
	d := &Document{fields: make([]Field, 0, len(fields))}
	d.fields = append(d.fields, fields...)
	return d
}

// Add appends a field.
func (d *Document) Add(f Field) {
	d.fields = append(d.fields, f)
}

// Fields returns the fields in insertion order. The slice must not be
// modified.
func (d *Document) Fields() []Field {
	return d.fields
}

// Len returns the number of field entries.
func (d *Document) Len() int {
	return len(d.fields)
}

// Values returns the text values of every text or exact entry named name.
func (d *Document) Values(name string) []string {
	var out []string
	for _, f := range d.fields {
		if f.Name == name && f.Kind != KindNumeric {
			out = append(out, f.Text)
		}
	}
	return out
}

// Get returns the first text or exact value named name.
func (d *Document) Get(name string) (string, bool) {
	for _, f := range d.fields {
		if f.Name == name && f.Kind != KindNumeric {
			return f.Text, true
		}
	}
	return "", false
}

// Number returns the first numeric value named name.
func (d *Document) Number(name string) (float64, bool) {
	for _, f := range d.fields {
		if f.Name == name && f.Kind == KindNumeric {
			return f.Number, true
		}
	}
	return 0, false
}

// Key returns the value of the single exact field named keyField. It
// reports false when the document holds zero or several such fields.
func (d *Document) Key(keyField string) (string, bool) {
	var (
		value string
		count int
	)
	for _, f := range d.fields {
		if f.Name == keyField && f.Kind == KindExact {
			value = f.Text
			count++
		}
	}
	return value, count == 1
}
