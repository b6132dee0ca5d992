// Package storage provides object storage for appraisal photos.
//
// A Storage implementation keeps the originals and generated thumbnails:
// LocalStorage writes to the filesystem for development, S3Storage talks to
// any S3-compatible bucket (AWS S3, Cloudflare R2, MinIO) in production.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Storage is the interface photo persistence is written against.
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at the given key. Returns ErrKeyExists when the key
	// is taken and opts.Overwrite is false, ErrTooLarge when data exceeds
	// opts.MaxSize.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the object at the given key. The caller must close the
	// reader. Returns ErrNotFound when the key does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at the given key. Idempotent: deleting a
	// missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a URL for the object. Public buckets get a permanent
	// URL, private ones a presigned URL valid for expires.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an object exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is the MIME type. Auto-detected when empty.
	ContentType string

	// MaxSize caps the object size in bytes. Zero means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool
}

// ObjectInfo holds metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// LocalConfig configures filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory, e.g. "/var/lib/avalia/files".
	BasePath string

	// BaseURL is the public prefix for serving files,
	// e.g. "http://localhost:8080/files".
	BaseURL string
}

// S3Config configures S3-compatible object storage.
type S3Config struct {
	// Endpoint overrides the S3 endpoint for R2/MinIO setups.
	// Leave empty for AWS S3.
	Endpoint string

	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the bucket's public URL when served through a custom
	// domain. When empty, presigned URLs are used for all access.
	PublicURL string

	// Region defaults to "auto", which R2 accepts.
	Region string
}

// Provider identifiers used in configuration.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

// PhotoKey generates a storage key for an uploaded appraisal photo.
// Format: appraisals/{appraisalID}/photos/{uuid}.{ext}
func PhotoKey(appraisalID uuid.UUID, filename string) string {
	ext := filepath.Ext(filename)
	return fmt.Sprintf("appraisals/%s/photos/%s%s", appraisalID, uuid.New(), ext)
}

// ThumbnailKey generates a storage key for a photo thumbnail.
// Format: appraisals/{appraisalID}/thumbnails/{uuid}.{ext}
func ThumbnailKey(appraisalID uuid.UUID, filename string) string {
	ext := filepath.Ext(filename)
	return fmt.Sprintf("appraisals/%s/thumbnails/%s%s", appraisalID, uuid.New(), ext)
}
