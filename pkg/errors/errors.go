package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrIndexNotFound      = errors.New("index not found")
	ErrQuerySyntax        = errors.New("query syntax error")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrMalformedMetadata  = errors.New("malformed metadata")
	ErrCorruptSegment     = errors.New("corrupt segment")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// IsQueryError reports whether err is confined to a single query: a syntax
// error or bad coordinates. Batch runners log these and move on.
func IsQueryError(err error) bool {
	return errors.Is(err, ErrQuerySyntax) || errors.Is(err, ErrInvalidCoordinates)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrQuerySyntax),
		errors.Is(err, ErrInvalidCoordinates), errors.Is(err, ErrMalformedMetadata):
		return http.StatusBadRequest
	case errors.Is(err, ErrIndexNotFound), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
