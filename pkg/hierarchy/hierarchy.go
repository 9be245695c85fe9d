// Package hierarchy implements the per-user file tree: creating, listing,
// renaming, moving and deleting nodes, plus path resolution, search and the
// payload-backed operations (upload, open, overwrite).
//
// Every structural change runs in a single metadata transaction together
// with its quota accounting, so the tree and User.StorageUsed move in
// lockstep. Payloads live in a separate content store and are ordered around
// the metadata commit:
//   - creation writes the payload first and discards it if the commit fails
//   - deletion commits metadata first and removes the payload afterwards
//
// The worst outcome of a crash is therefore an unreferenced payload, which
// the orphan collector in pkg/gc reclaims.
package hierarchy

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/metrics"
	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// DefaultMinSearchLength is the shortest accepted search query.
const DefaultMinSearchLength = 2

// Config tunes the engine.
type Config struct {
	// NotifyOnUpload emits an upload_complete notification to the owner
	// when an upload commits.
	NotifyOnUpload bool

	// MinSearchLength rejects shorter queries (default: 2)
	MinSearchLength int

	// Metrics receives per-operation timings. Nil disables collection.
	Metrics metrics.DriveMetrics
}

// Engine is the hierarchy engine. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	store    metadata.MetadataStore
	payloads content.ContentStore
	config   Config
}

// New creates an Engine over the given stores.
func New(store metadata.MetadataStore, payloads content.ContentStore, config Config) *Engine {
	if config.MinSearchLength <= 0 {
		config.MinSearchLength = DefaultMinSearchLength
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NewNoopDriveMetrics()
	}
	return &Engine{store: store, payloads: payloads, config: config}
}

// observe records the outcome of an operation started at start.
func (e *Engine) observe(op string, start time.Time, err error) {
	e.config.Metrics.RecordOperation(op, time.Since(start), err)
	if metadata.IsCode(err, metadata.ErrQuotaExceeded) {
		e.config.Metrics.RecordQuotaRejection()
	}
}

// loadParent returns the folder a node is placed under. uuid.Nil is the
// owner's root and yields (nil, nil). Anything that is not a folder owned by
// ownerID is reported as not found.
func loadParent(tx metadata.Transaction, ownerID, parentID uuid.UUID) (*metadata.Node, error) {
	if parentID == uuid.Nil {
		return nil, nil
	}
	parent, err := tx.GetNode(parentID)
	if err != nil {
		if metadata.IsNotFound(err) {
			return nil, metadata.NewNotFoundError("folder", parentID.String())
		}
		return nil, err
	}
	if !parent.IsFolder || parent.OwnerID != ownerID {
		return nil, metadata.NewNotFoundError("folder", parentID.String())
	}
	return parent, nil
}

// checkFolderName fails when another folder named name already sits under
// parentID. except is ignored (the node being renamed or moved).
func checkFolderName(tx metadata.Transaction, ownerID, parentID uuid.UUID, name string, except uuid.UUID) error {
	siblings, err := tx.ListChildren(ownerID, parentID)
	if err != nil {
		return err
	}
	for _, s := range siblings {
		if s.IsFolder && s.Name == name && s.ID != except {
			return metadata.NewInvalidOperationError("a folder with this name already exists", name)
		}
	}
	return nil
}

// sortListing orders nodes folders first, then by name.
func sortListing(nodes []*metadata.Node) {
	slices.SortStableFunc(nodes, func(a, b *metadata.Node) int {
		if a.IsFolder != b.IsFolder {
			if a.IsFolder {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}
