package documents

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dvloznov/billflow/internal/domain"
	"github.com/google/uuid"
)

// Object is an uploaded document payload.
type Object struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Store keeps uploaded documents and hands back an opaque reference that
// records carry as documentRef.
type Store interface {
	Put(ctx context.Context, obj Object) (ref string, err error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// CheckProvider reports whether provider can be served with the given bucket.
func CheckProvider(provider domain.StorageProvider, bucket string) error {
	switch provider {
	case "", domain.StorageBillflow:
		return nil
	case domain.StorageGoogle:
		if bucket == "" {
			return fmt.Errorf("documents: %w: storage.bucket is required for provider %q", domain.ErrConfiguration, provider)
		}
		return nil
	default:
		return fmt.Errorf("documents: %w: storage provider %q is not supported", domain.ErrConfiguration, provider)
	}
}

// New builds the store for the organization's storage provider.
func New(ctx context.Context, provider domain.StorageProvider, bucket string) (Store, error) {
	if err := CheckProvider(provider, bucket); err != nil {
		return nil, err
	}
	if provider == domain.StorageGoogle {
		return NewGCS(ctx, bucket)
	}
	return NewMemory(), nil
}

// ObjectName builds the object path uploads/YYYY/MM/DD/<uuid>-<filename>.
func ObjectName(now time.Time, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "document"
	}
	return fmt.Sprintf("uploads/%s/%s-%s", now.Format("2006/01/02"), uuid.NewString(), base)
}

// ParseGSURI splits gs://bucket/path/to/file into bucket and object path.
func ParseGSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("documents: %w: invalid GCS URI: %s", domain.ErrInvalidInput, uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("documents: %w: invalid GCS URI (no object path): %s", domain.ErrInvalidInput, uri)
	}
	return parts[0], parts[1], nil
}

// Filename extracts the file name from a reference.
// e.g. "gs://bucket/uploads/2024/03/01/x-file.pdf" → "x-file.pdf"
func Filename(ref string) string {
	trimmed := ref
	if i := strings.Index(trimmed, "://"); i != -1 {
		trimmed = trimmed[i+3:]
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}
