// Package storage holds finalized recording artifacts. The provider is
// picked by config: local disk for single-node deployments, GCS when a
// bucket is configured.
package storage

import (
	"context"
	"io"
)

// Provider writes and reads artifact blobs by storage path. Failures are
// surfaced to the caller, never retried here.
type Provider interface {
	Save(ctx context.Context, path string, r io.Reader) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// URL returns a fetchable location for an already-saved artifact.
	URL(ctx context.Context, path string) (string, error)
}
