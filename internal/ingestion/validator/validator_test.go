package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/ingestion"
)

func TestValidateIngestRequest(t *testing.T) {
	good := `<r><dc:title>Mapa</dc:title></r>`
	tests := []struct {
		name   string
		req    ingestion.IngestRequest
		fields []string
	}{
		{"valid", ingestion.IngestRequest{Path: "a.xml", Payload: good}, nil},
		{"missing path", ingestion.IngestRequest{Payload: good}, []string{"path"}},
		{"directory in path", ingestion.IngestRequest{Path: "dir/a.xml", Payload: good}, []string{"path"}},
		{"dot dot", ingestion.IngestRequest{Path: "..", Payload: good}, []string{"path"}},
		{"long path", ingestion.IngestRequest{Path: strings.Repeat("p", 256), Payload: good}, []string{"path"}},
		{"empty payload", ingestion.IngestRequest{Path: "a.xml", Payload: "  "}, []string{"payload"}},
		{"malformed payload", ingestion.IngestRequest{Path: "a.xml", Payload: "<r><a></r>"}, []string{"payload"}},
		{"both", ingestion.IngestRequest{}, []string{"path", "payload"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIngestRequest(&tt.req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Len(t, vErr.Fields, len(tt.fields))
			for _, f := range tt.fields {
				assert.Contains(t, vErr.Fields, f)
			}
		})
	}
}
