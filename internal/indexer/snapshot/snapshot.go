// Package snapshot publishes flushed index segments to MinIO or any
// S3-compatible object store and fetches the latest one back. Each
// generation is stored under its own key; a small "LATEST" object names the
// most recent one.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/resilience"
)

const latestObject = "LATEST"

// Store uploads and downloads segment snapshots.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// New connects to the object store described by cfg. It returns nil and no
// error when cfg.Endpoint is empty, meaning publication is disabled.
func New(cfg config.SnapshotConfig) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}
	return NewStore(client, cfg.Bucket, cfg.Prefix), nil
}

// NewStore wraps an existing client. prefix is prepended to every key.
func NewStore(client *minio.Client, bucket, prefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: slog.Default().With("component", "snapshot", "bucket", bucket),
	}
}

// ObjectName returns the key of generation gen under prefix. Zero padding
// keeps generations in lexical order.
func ObjectName(prefix string, gen uint64) string {
	return path.Join(prefix, fmt.Sprintf("gen-%020d", gen), segment.FileName)
}

// EnsureBucket creates the bucket when it is missing.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("bucket created")
	return nil
}

// Upload stores the segment file at localPath as generation gen and moves
// the LATEST pointer to it. It returns the object key.
func (s *Store) Upload(ctx context.Context, localPath string, gen uint64) (string, error) {
	key := ObjectName(s.prefix, gen)
	err := resilience.Retry(ctx, "snapshot-upload", s.retry, func() error {
		_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
			ContentType: "application/octet-stream",
			UserMetadata: map[string]string{
				"generation": strconv.FormatUint(gen, 10),
			},
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	pointer := []byte(key)
	err = resilience.Retry(ctx, "snapshot-pointer", s.retry, func() error {
		_, err := s.client.PutObject(ctx, s.bucket, path.Join(s.prefix, latestObject),
			bytes.NewReader(pointer), int64(len(pointer)), minio.PutObjectOptions{ContentType: "text/plain"})
		return err
	})
	if err != nil {
		return key, fmt.Errorf("updating latest pointer: %w", err)
	}
	s.logger.Info("snapshot uploaded", "object", key, "generation", gen)
	return key, nil
}

// Latest returns the key of the newest uploaded generation.
func (s *Store) Latest(ctx context.Context) (string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, path.Join(s.prefix, latestObject), minio.GetObjectOptions{})
	if err != nil {
		return "", s.translate(err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return "", s.translate(err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Fetch downloads the newest snapshot into dir, replacing the local segment
// file, and returns the object key it fetched.
func (s *Store) Fetch(ctx context.Context, dir string) (string, error) {
	key, err := s.Latest(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating index directory: %w", err)
	}
	dst := filepath.Join(dir, segment.FileName)
	tmp := dst + ".download"
	if err := s.client.FGetObject(ctx, s.bucket, key, tmp, minio.GetObjectOptions{}); err != nil {
		return "", s.translate(err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("installing snapshot: %w", err)
	}
	s.logger.Info("snapshot fetched", "object", key, "path", dst)
	return key, nil
}

func (s *Store) translate(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
		return fmt.Errorf("no snapshot in bucket %s: %w", s.bucket, apperrors.ErrIndexNotFound)
	}
	return fmt.Errorf("object store: %w", err)
}
