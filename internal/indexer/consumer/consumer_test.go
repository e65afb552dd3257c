package consumer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/ingestion"
)

type recordingEngine struct {
	docs []*document.Document
	err  error
}

func (r *recordingEngine) Upsert(doc *document.Document) (document.ID, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.docs = append(r.docs, doc)
	return document.ID(len(r.docs) - 1), nil
}

const record = `<csw:Record xmlns:csw="http://www.opengis.net/cat/csw/2.0.2"
  xmlns:dc="http://purl.org/dc/elements/1.1/">
  <dc:title>Mapa de Aragón</dc:title>
</csw:Record>`

func encode(t *testing.T, path, payload string, tamper bool) []byte {
	t.Helper()
	sum := sha256.Sum256([]byte(payload))
	checksum := hex.EncodeToString(sum[:])
	if tamper {
		checksum = "deadbeef"
	}
	b, err := json.Marshal(ingestion.IngestEvent{
		EventID:  uuid.New(),
		Path:     path,
		Payload:  []byte(payload),
		Checksum: checksum,
	})
	require.NoError(t, err)
	return b
}

func TestHandleMessageIndexesRecord(t *testing.T) {
	eng := &recordingEngine{}
	h := HandleMessage(eng, extract.New(""), nil, nil)

	require.NoError(t, h(context.Background(), []byte("a.xml"), encode(t, "a.xml", record, false)))
	require.Len(t, eng.docs, 1)
	key, ok := eng.docs[0].Key(document.KeyField)
	assert.True(t, ok)
	assert.Equal(t, "a.xml", key)
	title, _ := eng.docs[0].Get(document.FieldTitle)
	assert.Equal(t, "Mapa de Aragón", title)
}

func TestHandleMessageDropsBadEvents(t *testing.T) {
	eng := &recordingEngine{}
	h := HandleMessage(eng, extract.New(""), nil, nil)

	assert.NoError(t, h(context.Background(), nil, []byte("{not json")))
	assert.NoError(t, h(context.Background(), nil, encode(t, "a.xml", record, true)))
	assert.Empty(t, eng.docs)
}

func TestHandleMessageMalformedRecordIsStillIndexed(t *testing.T) {
	eng := &recordingEngine{}
	h := HandleMessage(eng, extract.New(""), nil, nil)

	require.NoError(t, h(context.Background(), nil, encode(t, "b.xml", "<r><dc:title>Ortofoto</dc:title><broken", false)))
	require.Len(t, eng.docs, 1)
	title, ok := eng.docs[0].Get(document.FieldTitle)
	assert.True(t, ok)
	assert.Equal(t, "Ortofoto", title)
}

func TestHandleMessageEngineErrorIsReturned(t *testing.T) {
	eng := &recordingEngine{err: errors.New("disk full")}
	h := HandleMessage(eng, extract.New(""), nil, nil)
	err := h(context.Background(), nil, encode(t, "a.xml", record, false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.xml")
}
