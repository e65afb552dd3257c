package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/errors"
)

func TestNilCatalogIsNoop(t *testing.T) {
	var c *Catalog
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, c.EnsureSchema(ctx))
	require.NoError(t, c.MarkPending(ctx, ingestion.IngestEvent{EventID: id, Path: "a.xml"}))
	require.NoError(t, c.MarkIndexed(ctx, id, 3))
	require.NoError(t, c.MarkFailed(ctx, id, errors.New("boom")))
	require.NoError(t, c.MarkFlushed(ctx, 1))
	require.NoError(t, c.Ping(ctx))

	counts, err := c.StatusCounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)

	_, err = c.Get(ctx, "a.xml")
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
}
