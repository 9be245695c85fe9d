package hierarchy

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/quota"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// Stat returns a node's metadata together with the access decision that
// allowed reading it.
func (e *Engine) Stat(ctx context.Context, actor access.Actor, nodeID uuid.UUID) (*access.Decision, error) {
	var decision *access.Decision
	err := e.store.View(ctx, func(tx metadata.Transaction) error {
		var err error
		decision, err = access.ResolveTx(tx, actor, nodeID, metadata.PermissionRead)
		return err
	})
	if err != nil {
		return nil, err
	}
	return decision, nil
}

// Open returns a file's metadata and a reader over its payload. Read access
// (ownership, any share, or admin) is enough. The caller closes the reader.
func (e *Engine) Open(ctx context.Context, actor access.Actor, nodeID uuid.UUID) (node *metadata.Node, rc io.ReadCloser, err error) {
	defer func(start time.Time) { e.observe("download", start, err) }(time.Now())

	decision, err := e.Stat(ctx, actor, nodeID)
	if err != nil {
		return nil, nil, err
	}
	node = decision.Node
	if node.IsFolder {
		return nil, nil, metadata.NewInvalidOperationError("cannot download a folder", nodeID.String())
	}

	rc, err = e.payloads.ReadContent(ctx, node.ContentRef)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open payload of %s: %w", nodeID, err)
	}

	e.config.Metrics.RecordPayloadBytes("download", node.Size)
	return node, rc, nil
}

// Overwrite replaces a file's payload with r. Write access is required, so
// a write share is sufficient here even though it does not allow rename,
// move or delete.
//
// The size difference is charged to (or released from) the owner's quota
// in the same transaction that points the node at the new payload. On
// success the old payload is removed; on failure the new one is.
func (e *Engine) Overwrite(ctx context.Context, actor access.Actor, nodeID uuid.UUID, r io.Reader) (node *metadata.Node, err error) {
	defer func(start time.Time) { e.observe("overwrite", start, err) }(time.Now())

	// Fail fast before streaming the payload
	if err := e.checkWritableFile(ctx, actor, nodeID); err != nil {
		return nil, err
	}

	ref, size, err := e.payloads.WriteContent(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to store payload: %w", err)
	}

	var oldRef string
	err = e.store.Update(ctx, func(tx metadata.Transaction) error {
		decision, err := access.ResolveTx(tx, actor, nodeID, metadata.PermissionWrite)
		if err != nil {
			return err
		}
		n := decision.Node
		if n.IsFolder {
			return metadata.NewInvalidOperationError("cannot overwrite a folder", nodeID.String())
		}
		if err := quota.Adjust(tx, n.OwnerID, size-n.Size); err != nil {
			return err
		}

		oldRef = n.ContentRef
		n.ContentRef = ref
		n.Size = size
		n.UpdatedAt = time.Now()
		if err := tx.PutNode(n); err != nil {
			return err
		}
		node = n
		return nil
	})
	if err != nil {
		e.discardPayload(ctx, ref)
		return nil, err
	}

	if oldRef != "" && oldRef != ref {
		if err := e.payloads.Delete(ctx, oldRef); err != nil {
			logger.Warn("Failed to delete replaced payload %s of node %s: %v", oldRef, nodeID, err)
			e.config.Metrics.RecordPayloadDeleteFailure()
		}
	}

	e.config.Metrics.RecordPayloadBytes("upload", size)
	logger.Debug("Overwrote node %s with %d bytes", nodeID, size)
	return node, nil
}

func (e *Engine) checkWritableFile(ctx context.Context, actor access.Actor, nodeID uuid.UUID) error {
	return e.store.View(ctx, func(tx metadata.Transaction) error {
		decision, err := access.ResolveTx(tx, actor, nodeID, metadata.PermissionWrite)
		if err != nil {
			return err
		}
		if decision.Node.IsFolder {
			return metadata.NewInvalidOperationError("cannot overwrite a folder", nodeID.String())
		}
		return nil
	})
}
