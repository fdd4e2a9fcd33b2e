package snapshot

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
)

// GCSStore uploads snapshots to a Google Cloud Storage bucket. Credentials
// come from Application Default Credentials.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS creates the client and verifies bucket access up front so a
// misconfigured bucket fails at startup, not mid-run.
func NewGCS(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("snapshot bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check bucket %q: %w", bucket, err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

// Put uploads data under the configured prefix and returns a gs:// URI.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	object := path.Join(s.prefix, key)
	wc := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	wc.ContentType = "image/png"
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("write snapshot object %s: %w", object, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("finalize snapshot object %s: %w", object, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, object), nil
}

// Close releases the client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
