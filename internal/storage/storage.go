// Package storage keeps uploaded images in an S3-compatible object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// ErrDisabled is returned by Disabled for every upload.
var ErrDisabled = errors.New("image storage is not configured")

// ImageStore stores an image and returns the URL clients should use for it.
type ImageStore interface {
	Put(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error)
}

// Disabled is the ImageStore used when no object store is configured.
type Disabled struct{}

func (Disabled) Put(context.Context, string, string, io.Reader, int64) (string, error) {
	return "", ErrDisabled
}

// Config holds the object store connection settings.
type Config struct {
	Endpoint      string // host:port
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string // prefix for returned URLs; derived from Endpoint when empty
}

type objectPutter interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioStore is an ImageStore backed by MinIO or any S3-compatible service.
type MinioStore struct {
	client  objectPutter
	bucket  string
	baseURL string
	now     func() time.Time
}

// NewMinio connects to the object store and creates the bucket if missing.
func NewMinio(ctx context.Context, cfg Config) (*MinioStore, error) {
	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := cl.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cl.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
		log.Info().Str("bucket", cfg.Bucket).Msg("created upload bucket")
	}
	return newMinioStore(cl, cfg), nil
}

func newMinioStore(p objectPutter, cfg Config) *MinioStore {
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.Endpoint
	}
	return &MinioStore{
		client:  p,
		bucket:  cfg.Bucket,
		baseURL: base + "/" + cfg.Bucket,
		now:     time.Now,
	}
}

// Put uploads r under a fresh key that keeps filename's extension.
func (s *MinioStore) Put(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error) {
	key := s.objectKey(filename)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}

func (s *MinioStore) objectKey(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if len(ext) > 8 {
		ext = ""
	}
	return s.now().UTC().Format("uploads/2006/01/") + uuid.NewString() + ext
}
