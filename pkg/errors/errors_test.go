package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInternal, http.StatusTeapot, "x"), http.StatusTeapot},
		{"wrapped syntax", fmt.Errorf("parsing: %w", ErrQuerySyntax), http.StatusBadRequest},
		{"coordinates", ErrInvalidCoordinates, http.StatusBadRequest},
		{"missing index", fmt.Errorf("open: %w", ErrIndexNotFound), http.StatusServiceUnavailable},
		{"not found", ErrDocumentNotFound, http.StatusNotFound},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrQuerySyntax, http.StatusBadRequest, "unexpected %q", ")")
	assert.ErrorIs(t, err, ErrQuerySyntax)
	assert.Equal(t, `query syntax error: unexpected ")"`, err.Error())
	assert.True(t, IsQueryError(err))
	assert.False(t, IsQueryError(ErrInternal))
}
