// Package storage provides the meal-photo object store: scoped presigned PUT
// uploads, existence checks, byte retrieval for analysis, and cleanup.
package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// Store is the object-store surface the pipeline depends on. Clients write
// photos through presigned grants; the server itself only reads, verifies,
// and deletes.
type Store interface {
	// PresignPut mints a presigned PUT URL scoped to exactly one key, content
	// type, and byte length. The grant is the only write path into the bucket.
	PresignPut(ctx context.Context, key, contentType string, contentLength int64, expiry time.Duration) (*PresignedUpload, error)

	// Head checks that an object exists and returns its metadata without
	// downloading it. Returns ErrNotFound for missing keys.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// Get retrieves object bytes. The caller closes the returned reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns metadata for all objects under the given key prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// PresignedUpload is a short-lived write grant for a single object key.
type PresignedUpload struct {
	// URL is the presigned PUT target.
	URL string

	// Method is always http.MethodPut; included so clients need no S3 knowledge.
	Method string

	// Header carries the signed headers the client must send verbatim.
	Header http.Header

	// ExpiresIn is how long the grant stays valid.
	ExpiresIn time.Duration
}

// MarshalJSON emits the wire shape clients consume: snake_case keys and the
// expiry as whole seconds rather than a duration in nanoseconds.
func (p PresignedUpload) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		URL       string      `json:"url"`
		Method    string      `json:"method"`
		Header    http.Header `json:"header,omitempty"`
		ExpiresIn int64       `json:"expires_in"`
	}{
		URL:       p.URL,
		Method:    p.Method,
		Header:    p.Header,
		ExpiresIn: int64(p.ExpiresIn.Seconds()),
	})
}

// ObjectInfo holds object metadata returned by Head and List.
type ObjectInfo struct {
	Key          string
	ContentType  string
	Size         int64
	LastModified time.Time
}

// Config holds S3-compatible storage configuration.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string `env:"STORAGE_BUCKET,required"`

	// AccessKey and SecretKey are the static credentials (required).
	AccessKey string `env:"STORAGE_ACCESS_KEY,required"`
	SecretKey string `env:"STORAGE_SECRET_KEY,required"`

	// Endpoint overrides the S3 endpoint (for MinIO and friends).
	Endpoint string `env:"STORAGE_ENDPOINT"`

	// Region is the AWS region.
	Region string `env:"STORAGE_REGION" envDefault:"us-east-1"`

	// PathStyle enables path-style URLs (required for MinIO).
	PathStyle bool `env:"STORAGE_PATH_STYLE" envDefault:"false"`
}

func (c *Config) validate() error {
	if c.Bucket == "" || c.AccessKey == "" || c.SecretKey == "" {
		return ErrInvalidConfig
	}
	return nil
}
