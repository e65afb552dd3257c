// Package validator checks ingestion requests before they are published. It
// enforces path and payload constraints and returns per-field error details.
package validator

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/ingestion"
)

const (
	maxPathLength    = 255
	maxPayloadLength = 1 << 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest checks that the path is a bare file name and that
// the payload is a non-empty, well-formed XML document within size limits.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	path := strings.TrimSpace(req.Path)
	switch {
	case path == "":
		errs["path"] = "path is required"
	case len(path) > maxPathLength:
		errs["path"] = fmt.Sprintf("path must be at most %d characters", maxPathLength)
	case strings.ContainsAny(path, `/\`) || path == "." || path == "..":
		errs["path"] = "path must be a file name without directories"
	}

	switch {
	case strings.TrimSpace(req.Payload) == "":
		errs["payload"] = "payload is required and must not be empty"
	case len(req.Payload) > maxPayloadLength:
		errs["payload"] = fmt.Sprintf("payload must be at most %d bytes", maxPayloadLength)
	default:
		if err := wellFormed(req.Payload); err != nil {
			errs["payload"] = "payload is not well-formed XML: " + err.Error()
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func wellFormed(payload string) error {
	dec := xml.NewDecoder(strings.NewReader(payload))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
