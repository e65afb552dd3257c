package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentKey(t *testing.T) {
	tests := []struct {
		name   string
		fields []Field
		want   string
		ok     bool
	}{
		{"single key", []Field{ExactField("path", "a.xml", true)}, "a.xml", true},
		{"missing key", []Field{TextField("title", "mapa", true)}, "", false},
		{"text field does not count", []Field{TextField("path", "a.xml", true)}, "", false},
		{"duplicate key", []Field{ExactField("path", "a.xml", true), ExactField("path", "b.xml", true)}, "b.xml", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := New(tt.fields...).Key(KeyField)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDocumentRepeatedFields(t *testing.T) {
	d := New(
		TextField("director", "Ana", true),
		TextField("director", "Luis", true),
		NumericField("west", -3.5),
	)
	require.Equal(t, 3, d.Len())
	assert.Equal(t, []string{"Ana", "Luis"}, d.Values("director"))

	first, ok := d.Get("director")
	require.True(t, ok)
	assert.Equal(t, "Ana", first)

	w, ok := d.Number("west")
	require.True(t, ok)
	assert.Equal(t, -3.5, w)
	assert.Empty(t, d.Values("west"))
}

func TestSchemaKindOf(t *testing.T) {
	s := DefaultSchema()
	assert.Equal(t, KindExact, s.KindOf(FieldDate))
	assert.Equal(t, KindNumeric, s.KindOf(FieldNorth))
	assert.Equal(t, KindText, s.KindOf(FieldTitle))
	assert.Equal(t, KindText, s.KindOf("unknown"))
	assert.Equal(t, "numeric", KindNumeric.String())
}
