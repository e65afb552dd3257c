package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "create", cfg.Indexer.OpenMode)
	assert.Equal(t, "zstd", cfg.Indexer.Compression)
	assert.Equal(t, "path", cfg.Indexer.KeyField)
	assert.Equal(t, "title", cfg.Search.DefaultField)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
indexer:
  dataDir: /var/lib/geosearch
  openMode: update
  flushInterval: 30s
search:
  defaultField: description
  maxConcurrentQueries: 2
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("GMS_INDEXER_COMPRESSION", "lz4")
	t.Setenv("GMS_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/geosearch", cfg.Indexer.DataDir)
	assert.Equal(t, "update", cfg.Indexer.OpenMode)
	assert.Equal(t, 30*time.Second, cfg.Indexer.FlushInterval)
	assert.Equal(t, "lz4", cfg.Indexer.Compression)
	assert.Equal(t, "description", cfg.Search.DefaultField)
	assert.Equal(t, 2, cfg.Search.MaxConcurrentQueries)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadRejectsBadOpenMode(t *testing.T) {
	t.Setenv("GMS_INDEXER_OPEN_MODE", "append")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
