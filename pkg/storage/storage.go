// Package storage defines the Store interface used to archive camera
// snapshots. It abstracts the backend so callers can swap between local disk
// and S3-compatible object stores without changing application code.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Store is a minimal byte-oriented blob store.
//
// Paths are forward-slash separated and relative to the store root; paths
// that would resolve outside the root are rejected.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put writes data to the named path, overwriting any existing blob.
	// Parent directories (where meaningful) are created automatically.
	Put(ctx context.Context, path string, data []byte) error

	// Get reads the blob at the named path.
	// If the blob does not exist, an error wrapping os.ErrNotExist is returned.
	Get(ctx context.Context, path string) ([]byte, error)

	// Delete removes the named blob. Deleting a missing blob returns nil.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named blob exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// SnapshotPath builds the archive path for a camera snapshot:
// snapshots/<room>/<unix-ms>-<id>.jpg
func SnapshotPath(room, id string, at time.Time) string {
	return fmt.Sprintf("snapshots/%s/%d-%s.jpg", room, at.UnixMilli(), id)
}
