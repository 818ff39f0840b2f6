package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectsConfig holds S3/MinIO client configuration.
type ObjectsConfig struct {
	Endpoint        string // "localhost:9000" for MinIO
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	// PublicBaseURL overrides the scheme://endpoint/bucket prefix of public URLs,
	// e.g. a CDN in front of the bucket.
	PublicBaseURL string
}

// MinioStore implements ObjectStore on an S3-compatible bucket.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinioStore creates a client for cfg. It does not contact the server.
func NewMinioStore(cfg ObjectsConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinioStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: publicBase(cfg),
	}, nil
}

func publicBase(cfg ObjectsConfig) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + cfg.Endpoint + "/" + cfg.Bucket
}

// EnsureBucket creates the bucket if it doesn't exist.
func (m *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// PutImage uploads an image under "<userID>/<name>" and returns the object key.
func (m *MinioStore) PutImage(ctx context.Context, userID, name string, r io.Reader, size int64, contentType string) (string, error) {
	key, err := ObjectKey(userID, name)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to put image: %w", err)
	}
	return key, nil
}

// PublicURL returns the public address of key.
func (m *MinioStore) PublicURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return m.baseURL + "/" + strings.Join(parts, "/")
}

// ObjectKey builds "<userID>/<name>" from untrusted parts.
func ObjectKey(userID, name string) (string, error) {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if userID == "" || strings.ContainsAny(userID, "/\\") {
		return "", fmt.Errorf("invalid user id %q", userID)
	}
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("invalid object name")
	}
	return userID + "/" + name, nil
}
