package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
)

const record = `<?xml version="1.0" encoding="UTF-8"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:dc="http://purl.org/dc/elements/1.1/"
         xmlns:dcterms="http://purl.org/dc/terms/"
         xmlns:ows="http://www.opengis.net/ows">
  <rdf:Description>
    <dc:title>Mapa geológico de España</dc:title>
    <dc:title>Hoja 559</dc:title>
    <dc:type>Cartografía</dc:type>
    <dc:date>2001</dc:date>
    <dc:description>Escala <b>1:50.000</b></dc:description>
    <dc:creator>Instituto Geológico</dc:creator>
    <dc:publisher>Departamento de Geología</dc:publisher>
    <dc:contributor>Ana Pérez</dc:contributor>
    <dcterms:issued>2001-05-03</dcterms:issued>
    <dcterms:created>1999-12-31</dcterms:created>
    <ows:BoundingBox>
      <ows:LowerCorner>-1.5 40.25</ows:LowerCorner>
      <ows:UpperCorner>-0.75 41</ows:UpperCorner>
    </ows:BoundingBox>
  </rdf:Description>
</rdf:RDF>`

func number(t *testing.T, doc *document.Document, name string) float64 {
	t.Helper()
	v, ok := doc.Number(name)
	require.True(t, ok, "missing %s", name)
	return v
}

func TestExtractRecord(t *testing.T) {
	doc, err := New("").Extract("hoja559.xml", strings.NewReader(record))
	require.NoError(t, err)

	key, ok := doc.Key(document.KeyField)
	require.True(t, ok)
	assert.Equal(t, "hoja559.xml", key)

	assert.Equal(t, []string{"Mapa geológico de España", "Hoja 559"}, doc.Values(document.FieldTitle))
	assert.Equal(t, []string{"Cartografía"}, doc.Values(document.FieldType))
	assert.Equal(t, []string{"2001"}, doc.Values(document.FieldDate))
	assert.Equal(t, []string{"Escala 1:50.000"}, doc.Values(document.FieldDescription))
	assert.Equal(t, []string{"Instituto Geológico"}, doc.Values(document.FieldAuthor))
	assert.Equal(t, []string{"Departamento de Geología"}, doc.Values(document.FieldDepartment))
	assert.Equal(t, []string{"Ana Pérez"}, doc.Values(document.FieldDirector))
	assert.Equal(t, []string{"20010503"}, doc.Values(document.FieldIssued))
	assert.Equal(t, []string{"19991231"}, doc.Values(document.FieldCreated))

	assert.Equal(t, -1.5, number(t, doc, document.FieldWest))
	assert.Equal(t, 40.25, number(t, doc, document.FieldSouth))
	assert.Equal(t, -0.75, number(t, doc, document.FieldEast))
	assert.Equal(t, 41.0, number(t, doc, document.FieldNorth))

	for _, f := range doc.Fields() {
		if f.Kind != document.KindNumeric {
			assert.True(t, f.Stored, f.Name)
		}
	}
}

func TestExtractUndeclaredPrefixes(t *testing.T) {
	in := `<record><dc:title>Plano</dc:title><dcterms:issued>2010-01-01</dcterms:issued></record>`
	doc, err := New("").Extract("p.xml", strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"Plano"}, doc.Values(document.FieldTitle))
	assert.Equal(t, []string{"20100101"}, doc.Values(document.FieldIssued))
}

func TestExtractOtherNamespaceIgnored(t *testing.T) {
	in := `<r xmlns:dc="urn:not-dublin-core"><dc:title>x</dc:title></r>`
	doc, err := New("").Extract("x.xml", strings.NewReader(in))
	require.NoError(t, err)
	assert.Empty(t, doc.Values(document.FieldTitle))
}

func TestExtractMalformedKeepsParsedFields(t *testing.T) {
	in := `<r><dc:title>Primero</dc:title><dc:type>Mapa</dc:type><dc:description>sin cerrar</r>`
	doc, err := New("").Extract("bad.xml", strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"Primero"}, doc.Values(document.FieldTitle))
	assert.Equal(t, []string{"Mapa"}, doc.Values(document.FieldType))
	assert.Empty(t, doc.Values(document.FieldDescription))
	key, _ := doc.Key(document.KeyField)
	assert.Equal(t, "bad.xml", key)
}

func TestExtractNotXML(t *testing.T) {
	doc, err := New("").Extract("notes.txt", strings.NewReader("just some text <<<"))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Len())
}

func TestExtractBoundingBoxDropped(t *testing.T) {
	tests := []struct {
		name string
		box  string
	}{
		{"missing upper", `<ows:LowerCorner>1 2</ows:LowerCorner>`},
		{"one coordinate", `<ows:LowerCorner>1</ows:LowerCorner><ows:UpperCorner>3 4</ows:UpperCorner>`},
		{"not a number", `<ows:LowerCorner>a b</ows:LowerCorner><ows:UpperCorner>3 4</ows:UpperCorner>`},
		{"infinite", `<ows:LowerCorner>-Inf 2</ows:LowerCorner><ows:UpperCorner>3 4</ows:UpperCorner>`},
		{"nan", `<ows:LowerCorner>1 2</ows:LowerCorner><ows:UpperCorner>NaN 4</ows:UpperCorner>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := `<r><dc:title>t</dc:title><ows:BoundingBox>` + tt.box + `</ows:BoundingBox></r>`
			doc, err := New("").Extract("b.xml", strings.NewReader(in))
			require.NoError(t, err)
			for _, name := range []string{document.FieldWest, document.FieldEast, document.FieldSouth, document.FieldNorth} {
				_, ok := doc.Number(name)
				assert.False(t, ok, name)
			}
			assert.Equal(t, []string{"t"}, doc.Values(document.FieldTitle))
		})
	}
}

func TestExtractCustomKeyField(t *testing.T) {
	doc, err := New("id").Extract("a.xml", strings.NewReader("<r/>"))
	require.NoError(t, err)
	key, ok := doc.Key("id")
	require.True(t, ok)
	assert.Equal(t, "a.xml", key)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWalkLexicalOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.xml"), `<r><dc:title>b</dc:title></r>`)
	writeFile(t, filepath.Join(root, "a.xml"), `<r><dc:title>a</dc:title></r>`)
	writeFile(t, filepath.Join(root, "sub", "c.xml"), `<r><dc:title>c</dc:title></r>`)

	var keys []string
	for doc, err := range New("").Walk(root) {
		require.NoError(t, err)
		key, _ := doc.Key(document.KeyField)
		keys = append(keys, key)
	}
	assert.Equal(t, []string{"a.xml", "b.xml", "c.xml"}, keys)
}

func TestWalkMissingRoot(t *testing.T) {
	var errs int
	for doc, err := range New("").Walk(filepath.Join(t.TempDir(), "missing")) {
		assert.Nil(t, doc)
		assert.Error(t, err)
		errs++
	}
	assert.Equal(t, 1, errs)
}

func TestWalkStopsEarly(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"1.xml", "2.xml", "3.xml"} {
		writeFile(t, filepath.Join(root, name), "<r/>")
	}
	n := 0
	for range New("").Walk(root) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}
