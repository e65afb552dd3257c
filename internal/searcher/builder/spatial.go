package builder

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/errors"
)

// Box is an axis-aligned bounding box in degrees.
type Box struct {
	West  float64 `json:"west"`
	East  float64 `json:"east"`
	South float64 `json:"south"`
	North float64 `json:"north"`
}

// ParseBox parses "west,east,south,north".
func ParseBox(s string) (Box, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Box{}, apperrors.Newf(apperrors.ErrInvalidCoordinates, http.StatusBadRequest,
			"want west,east,south,north, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Box{}, apperrors.Newf(apperrors.ErrInvalidCoordinates, http.StatusBadRequest,
				"coordinate %d of %q is not a number", i+1, s)
		}
		v[i] = f
	}
	return Box{West: v[0], East: v[1], South: v[2], North: v[3]}, nil
}

func (b Box) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.West, b.East, b.South, b.North)
}

// Spatial matches every document whose stored rectangle intersects b,
// boundaries included:
//
//	west <= b.East AND south <= b.North AND east >= b.West AND north >= b.South
func Spatial(b Box) *query.Bool {
	inf := math.Inf(1)
	return query.AllOf(
		&query.Range{Field: document.FieldWest, Min: -inf, Max: b.East},
		&query.Range{Field: document.FieldSouth, Min: -inf, Max: b.North},
		&query.Range{Field: document.FieldEast, Min: b.West, Max: inf},
		&query.Range{Field: document.FieldNorth, Min: b.South, Max: inf},
	)
}
