package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/billflow/internal/domain"
)

// GCS stores documents in a Google Cloud Storage bucket. It assumes
// Application Default Credentials are configured.
type GCS struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

// NewGCS creates a storage client for bucket.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("documents: create storage client: %w: %v", domain.ErrConfiguration, err)
	}
	return &GCS{client: client, bucket: bucket, now: time.Now}, nil
}

// Put uploads obj and returns its gs:// URI.
func (g *GCS) Put(ctx context.Context, obj Object) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	name := ObjectName(g.now(), obj.Filename)
	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = obj.MIMEType
	w.Metadata = map[string]string{"original_filename": obj.Filename}

	if _, err := w.Write(obj.Data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("documents: write gs://%s/%s: %w", g.bucket, name, err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("documents: finalize upload gs://%s/%s: %w", g.bucket, name, err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, name), nil
}

// Get downloads the object behind a gs:// reference.
func (g *GCS) Get(ctx context.Context, ref string) ([]byte, error) {
	bucket, object, err := ParseGSURI(ref)
	if err != nil {
		return nil, err
	}

	rc, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("documents: %s: %w", ref, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("documents: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("documents: reading bytes: %w", err)
	}
	return data, nil
}

// Close releases the storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}

var _ Store = (*GCS)(nil)
