// Package config loads application configuration from YAML files with
// environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Indexer, Search, Snapshot, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters. An empty Host
// disables the document catalog.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest string `yaml:"documentIngest"`
	IndexComplete  string `yaml:"indexComplete"`
}

// RedisConfig holds Redis connection and caching parameters. An empty Addr
// disables the result cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexerConfig controls where the index lives, how it is opened and how
// often a following indexer flushes.
type IndexerConfig struct {
	DataDir       string        `yaml:"dataDir"`
	OpenMode      string        `yaml:"openMode"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	Compression   string        `yaml:"compression"`
	KeyField      string        `yaml:"keyField"`
}

// SearchConfig controls query parsing defaults and execution limits.
type SearchConfig struct {
	DefaultField         string        `yaml:"defaultField"`
	DefaultLimit         int           `yaml:"defaultLimit"`
	MaxResults           int           `yaml:"maxResults"`
	MaxConcurrentQueries int           `yaml:"maxConcurrentQueries"`
	Timeout              time.Duration `yaml:"timeout"`
	LexiconPath          string        `yaml:"lexiconPath"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// SnapshotConfig points at the S3-compatible bucket that built segments are
// published to. An empty Endpoint disables publication.
type SnapshotConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSSL"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Indexer.OpenMode {
	case "create", "update":
	default:
		return fmt.Errorf("indexer.openMode must be create or update, got %q", c.Indexer.OpenMode)
	}
	switch c.Indexer.Compression {
	case "none", "zstd", "lz4":
	default:
		return fmt.Errorf("indexer.compression must be none, zstd or lz4, got %q", c.Indexer.Compression)
	}
	if c.Search.MaxConcurrentQueries < 1 {
		return fmt.Errorf("search.maxConcurrentQueries must be positive")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Port:            5432,
			Database:        "geosearch",
			User:            "geosearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "geosearch-indexer",
			Topics: KafkaTopics{
				DocumentIngest: "document-ingest",
				IndexComplete:  "index.complete",
			},
		},
		Redis: RedisConfig{
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Indexer: IndexerConfig{
			DataDir:       "./index",
			OpenMode:      "create",
			FlushInterval: 10 * time.Second,
			Compression:   "zstd",
			KeyField:      "path",
		},
		Search: SearchConfig{
			DefaultField:         "title",
			DefaultLimit:         10,
			MaxResults:           1000,
			MaxConcurrentQueries: 8,
			Timeout:              5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Snapshot: SnapshotConfig{
			Bucket: "geosearch-index",
			Prefix: "segments",
		},
	}
}

// applyEnvOverrides reads GMS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setInt("GMS_SERVER_PORT", &cfg.Server.Port)
	setString("GMS_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("GMS_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("GMS_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("GMS_POSTGRES_USER", &cfg.Postgres.User)
	setString("GMS_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("GMS_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	if v := os.Getenv("GMS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setString("GMS_REDIS_ADDR", &cfg.Redis.Addr)
	setString("GMS_REDIS_PASSWORD", &cfg.Redis.Password)
	setString("GMS_INDEXER_DATA_DIR", &cfg.Indexer.DataDir)
	setString("GMS_INDEXER_OPEN_MODE", &cfg.Indexer.OpenMode)
	setString("GMS_INDEXER_COMPRESSION", &cfg.Indexer.Compression)
	if v := os.Getenv("GMS_INDEXER_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Indexer.FlushInterval = d
		}
	}
	setString("GMS_SEARCH_DEFAULT_FIELD", &cfg.Search.DefaultField)
	setInt("GMS_SEARCH_DEFAULT_LIMIT", &cfg.Search.DefaultLimit)
	setInt("GMS_SEARCH_MAX_CONCURRENT_QUERIES", &cfg.Search.MaxConcurrentQueries)
	setString("GMS_SEARCH_LEXICON_PATH", &cfg.Search.LexiconPath)
	setString("GMS_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("GMS_LOGGING_FORMAT", &cfg.Logging.Format)
	setString("GMS_SNAPSHOT_ENDPOINT", &cfg.Snapshot.Endpoint)
	setString("GMS_SNAPSHOT_BUCKET", &cfg.Snapshot.Bucket)
	setString("GMS_SNAPSHOT_ACCESS_KEY", &cfg.Snapshot.AccessKey)
	setString("GMS_SNAPSHOT_SECRET_KEY", &cfg.Snapshot.SecretKey)
}
