// Package grant issues short-lived, narrowly scoped upload credentials for
// meal photos. A grant is bound to one object key, one content type, and one
// byte size; it authorizes a single PUT and nothing else.
package grant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snapmeal/pkg/id"
	"github.com/dmitrymomot/snapmeal/pkg/storage"
)

var (
	ErrUnsupportedMediaType = errors.New("grant: unsupported media type")
	ErrPayloadTooLarge      = errors.New("grant: payload too large")
	ErrInvalidSize          = errors.New("grant: file size must be positive")
)

// Config controls upload limits and grant lifetime.
type Config struct {
	MaxUploadBytes int64         `env:"UPLOAD_MAX_BYTES" envDefault:"10485760"`
	GrantTTL       time.Duration `env:"UPLOAD_GRANT_TTL" envDefault:"10m"`
}

// ObjectPresigner signs a direct upload for a single object.
type ObjectPresigner interface {
	PresignPut(ctx context.Context, key, contentType string, sizeBytes int64, ttl time.Duration) (*storage.PresignedUpload, error)
}

// Grant is a one-shot upload authorization returned to the client.
type Grant struct {
	ObjectKey string                   `json:"object_key"`
	Upload    *storage.PresignedUpload `json:"upload"`
}

// Issuer validates upload requests and mints presigned grants.
type Issuer struct {
	presigner ObjectPresigner
	cfg       Config
	log       *slog.Logger
}

// NewIssuer creates a grant issuer. Zero config fields fall back to
// 10 MiB and 10 minutes.
func NewIssuer(presigner ObjectPresigner, cfg Config, log *slog.Logger) *Issuer {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.GrantTTL <= 0 {
		cfg.GrantTTL = 10 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Issuer{presigner: presigner, cfg: cfg, log: log}
}

// Issue validates the declared file and returns an upload grant scoped to a
// fresh object key under the owner's namespace. The key embeds a sortable
// unique id, not the file name, so two grants never collide and repeated
// requests for the same file produce distinct keys.
func (i *Issuer) Issue(ctx context.Context, ownerID uuid.UUID, fileName, contentType string, sizeBytes int64) (*Grant, error) {
	if sizeBytes <= 0 {
		return nil, ErrInvalidSize
	}
	if !storage.IsPhotoMIME(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, contentType)
	}
	if sizeBytes > i.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrPayloadTooLarge, sizeBytes, i.cfg.MaxUploadBytes)
	}

	key := ObjectKey(ownerID, contentType)
	upload, err := i.presigner.PresignPut(ctx, key, contentType, sizeBytes, i.cfg.GrantTTL)
	if err != nil {
		return nil, fmt.Errorf("grant: presign upload: %w", err)
	}

	i.log.InfoContext(ctx, "issued upload grant",
		slog.String("owner_id", ownerID.String()),
		slog.String("object_key", key),
		slog.String("file_name", fileName),
		slog.Int64("size_bytes", sizeBytes))

	return &Grant{ObjectKey: key, Upload: upload}, nil
}

// ObjectKey builds a namespaced key of the form
// meals/{ownerID}/{ulid}{ext}. The ulid starts with the creation timestamp,
// keeping keys for one owner lexically ordered by upload time.
func ObjectKey(ownerID uuid.UUID, contentType string) string {
	return fmt.Sprintf("meals/%s/%s%s", ownerID, id.NewULID(), storage.ExtForPhotoMIME(contentType))
}

// OwnerPrefix is the key namespace all of an owner's photos live under.
func OwnerPrefix(ownerID uuid.UUID) string {
	return fmt.Sprintf("meals/%s/", ownerID)
}
