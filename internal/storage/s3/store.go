// Package s3 reads database files from an S3-compatible bucket through
// the MinIO client.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nl2sqlstudio/studio/internal/storage"
)

type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	// Prefix scopes every key to a folder inside the bucket.
	Prefix string
}

// bucket is the subset of the MinIO API the store needs. Keys passed to
// it are already prefixed.
type bucket interface {
	open(ctx context.Context, key string) (io.ReadCloser, error)
	stat(ctx context.Context, key string) (storage.ObjectInfo, error)
	list(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	exists(ctx context.Context) (bool, error)
	name() string
}

type Store struct {
	bucket bucket
	prefix string
}

func New(_ context.Context, cfg Config) (*Store, error) {
	name := strings.TrimSpace(cfg.Bucket)
	if name == "" {
		return nil, errors.New("s3 bucket is required")
	}
	host, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return newStore(&minioBucket{client: client, bucket: name}, cfg.Prefix), nil
}

func newStore(b bucket, prefix string) *Store {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix != "" {
		prefix = path.Clean(prefix)
	}
	if prefix == "." {
		prefix = ""
	}
	return &Store{bucket: b, prefix: prefix}
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	reader, err := s.bucket.open(ctx, full)
	if err != nil {
		return nil, s.wrap("get", full, err)
	}
	return reader, nil
}

func (s *Store) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	full, err := s.resolve(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.bucket.stat(ctx, full)
	if err != nil {
		return storage.ObjectInfo{}, s.wrap("stat", full, err)
	}
	info.Key = s.relative(info.Key)
	return info, nil
}

// List returns objects below prefix with keys relative to the store prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	full := s.prefix
	if prefix = strings.Trim(strings.TrimSpace(prefix), "/"); prefix != "" {
		resolved, err := s.resolve(prefix)
		if err != nil {
			return nil, err
		}
		full = resolved
	}
	if full != "" {
		full += "/"
	}
	objects, err := s.bucket.list(ctx, full)
	if err != nil {
		return nil, s.wrap("list", full, err)
	}
	for i := range objects {
		objects[i].Key = s.relative(objects[i].Key)
	}
	return objects, nil
}

// HealthCheck reports whether the configured bucket is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	exists, err := s.bucket.exists(ctx)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket.name(), err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s.bucket.name())
	}
	return nil
}

func (s *Store) resolve(key string) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(key), "/")
	if trimmed == "" {
		return "", fmt.Errorf("%w: key is required", storage.ErrInvalidObjectKey)
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q escapes the store prefix", storage.ErrInvalidObjectKey, key)
	}
	return path.Join(s.prefix, cleaned), nil
}

func (s *Store) relative(full string) string {
	if s.prefix == "" {
		return full
	}
	return strings.TrimPrefix(strings.TrimPrefix(full, s.prefix), "/")
}

func (s *Store) wrap(op, key string, err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("%s %s/%s: %w", op, s.bucket.name(), key, storage.ErrObjectNotFound)
	}
	return fmt.Errorf("%s %s/%s: %w", op, s.bucket.name(), key, err)
}

// parseEndpoint accepts "host:port" or a URL. An https URL forces TLS on.
func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, errors.New("s3 endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse s3 endpoint: %w", err)
	}
	switch {
	case parsed.Host == "":
		return "", false, fmt.Errorf("s3 endpoint %q has no host", raw)
	case parsed.Scheme == "https":
		return parsed.Host, true, nil
	case parsed.Scheme == "http":
		return parsed.Host, useSSL, nil
	default:
		return "", false, fmt.Errorf("s3 endpoint scheme %q is not supported", parsed.Scheme)
	}
}

type minioBucket struct {
	client *minio.Client
	bucket string
}

func (m *minioBucket) name() string { return m.bucket }

func (m *minioBucket) open(ctx context.Context, key string) (io.ReadCloser, error) {
	object, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFound(err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller
	// starts copying.
	if _, err := object.Stat(); err != nil {
		_ = object.Close()
		return nil, notFound(err)
	}
	return object, nil
}

func (m *minioBucket) stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	info, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return storage.ObjectInfo{}, notFound(err)
	}
	return objectInfo(info), nil
}

func (m *minioBucket) list(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var objects []storage.ObjectInfo
	for info := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, notFound(info.Err)
		}
		objects = append(objects, objectInfo(info))
	}
	return objects, nil
}

func (m *minioBucket) exists(ctx context.Context) (bool, error) {
	return m.client.BucketExists(ctx, m.bucket)
}

func objectInfo(info minio.ObjectInfo) storage.ObjectInfo {
	return storage.ObjectInfo{Key: info.Key, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified}
}

func notFound(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return storage.ErrObjectNotFound
	}
	return err
}
