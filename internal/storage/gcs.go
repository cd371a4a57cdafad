package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	gcstorage "cloud.google.com/go/storage"
)

// GCS stores artifacts in a Google Cloud Storage bucket and hands out
// signed URLs with a short expiry.
type GCS struct {
	client *gcstorage.Client
	bucket string
}

func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := gcstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Save(ctx context.Context, path string, r io.Reader) error {
	w := g.client.Bucket(g.bucket).Object(path).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close: %w", err)
	}
	return nil
}

func (g *GCS) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	r, err := g.client.Bucket(g.bucket).Object(path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs read: %w", err)
	}
	return r, nil
}

func (g *GCS) URL(_ context.Context, path string) (string, error) {
	u, err := g.client.Bucket(g.bucket).SignedURL(path, &gcstorage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(time.Hour),
	})
	if err != nil {
		return "", fmt.Errorf("gcs signed url: %w", err)
	}
	return u, nil
}
