// Package content defines the physical payload store behind file nodes.
//
// Payloads are immutable blobs addressed by an opaque ContentRef minted by
// the store on write. The metadata layer owns the mapping from nodes to refs;
// the content store knows nothing about owners, names or hierarchy.
package content

import (
	"context"
	"errors"
	"io"
)

// ErrContentNotFound indicates the requested payload does not exist.
//
// Implementations wrap it with the ref:
//
//	return nil, fmt.Errorf("content %s: %w", ref, content.ErrContentNotFound)
var ErrContentNotFound = errors.New("content not found")

// ContentStore stores file payloads.
//
// Write ordering contract with the metadata layer:
//   - Creation writes the payload first and commits metadata second. If the
//     commit fails the caller deletes the fresh payload.
//   - Deletion commits metadata first and deletes the payload second.
//
// Either way the only possible leftover is an orphaned payload, which the
// garbage collector reclaims (see GarbageCollectableStore).
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type ContentStore interface {
	// WriteContent consumes r until EOF and stores it as a new payload.
	//
	// Returns the ref assigned to the payload and the number of bytes
	// stored. Refs are never reused. On error nothing is left behind that
	// the caller needs to clean up.
	WriteContent(ctx context.Context, r io.Reader) (ref string, size int64, err error)

	// ReadContent opens the payload for reading. The caller closes the
	// reader. Returns ErrContentNotFound for unknown refs.
	ReadContent(ctx context.Context, ref string) (io.ReadCloser, error)

	// Delete removes the payload. Deleting an unknown ref succeeds.
	Delete(ctx context.Context, ref string) error

	// GetContentSize returns the payload size in bytes.
	GetContentSize(ctx context.Context, ref string) (int64, error)

	// ContentExists reports whether the payload is stored.
	ContentExists(ctx context.Context, ref string) (bool, error)

	// GetStorageStats reports aggregate usage of the store.
	GetStorageStats(ctx context.Context) (*StorageStats, error)

	// Close releases backend resources.
	Close() error
}

// GarbageCollectableStore is implemented by stores that can enumerate and
// bulk-delete their payloads.
type GarbageCollectableStore interface {
	ContentStore

	// ListAllContent returns the ref of every stored payload.
	ListAllContent(ctx context.Context) ([]string, error)

	// DeleteBatch removes many payloads at once.
	//
	// The returned map holds per-ref failures; an empty map means every ref
	// was deleted. The error is reserved for failures that aborted the
	// batch as a whole (e.g. context cancellation).
	DeleteBatch(ctx context.Context, refs []string) (failures map[string]error, err error)
}

// StorageStats describes the space used by a content store.
type StorageStats struct {
	// ContentCount is the number of stored payloads
	ContentCount int64

	// UsedSize is the sum of payload sizes in bytes
	UsedSize int64

	// AverageSize is UsedSize / ContentCount (0 when empty)
	AverageSize int64
}

// NewStorageStats fills in the derived fields of StorageStats.
func NewStorageStats(count, used int64) *StorageStats {
	stats := &StorageStats{ContentCount: count, UsedSize: used}
	if count > 0 {
		stats.AverageSize = used / count
	}
	return stats
}
