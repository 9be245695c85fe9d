package hierarchy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/internal/validation"
	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// Rename changes a node's name. Owner or admin only; a write share is not
// enough. The payload is untouched.
func (e *Engine) Rename(ctx context.Context, actor access.Actor, nodeID uuid.UUID, newName string) (node *metadata.Node, err error) {
	defer func(start time.Time) { e.observe("rename", start, err) }(time.Now())

	if err := validation.NodeName(newName); err != nil {
		return nil, err
	}

	err = e.store.Update(ctx, func(tx metadata.Transaction) error {
		n, err := access.RequireOwnerOrAdmin(tx, actor, nodeID)
		if err != nil {
			return err
		}
		if n.Name == newName {
			node = n
			return nil
		}
		if n.IsFolder {
			if err := checkFolderName(tx, n.OwnerID, n.ParentID, newName, n.ID); err != nil {
				return err
			}
		}

		n.Name = newName
		n.UpdatedAt = time.Now()
		if err := tx.PutNode(n); err != nil {
			return err
		}
		node = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Renamed node %s to %q", nodeID, newName)
	return node, nil
}

// Move reparents a node under newParentID (uuid.Nil for the root).
//
// Owner or admin only. The destination must be a folder owned by the node's
// owner and must not be the node itself or one of its descendants.
func (e *Engine) Move(ctx context.Context, actor access.Actor, nodeID, newParentID uuid.UUID) (node *metadata.Node, err error) {
	defer func(start time.Time) { e.observe("move", start, err) }(time.Now())

	err = e.store.Update(ctx, func(tx metadata.Transaction) error {
		n, err := access.RequireOwnerOrAdmin(tx, actor, nodeID)
		if err != nil {
			return err
		}
		if n.ParentID == newParentID {
			node = n
			return nil
		}
		if newParentID == n.ID {
			return metadata.NewInvalidOperationError("cannot move a node into itself", nodeID.String())
		}
		if _, err := loadParent(tx, n.OwnerID, newParentID); err != nil {
			return err
		}
		if err := checkNotDescendant(tx, n.ID, newParentID); err != nil {
			return err
		}
		if n.IsFolder {
			if err := checkFolderName(tx, n.OwnerID, newParentID, n.Name, n.ID); err != nil {
				return err
			}
		}

		n.ParentID = newParentID
		n.UpdatedAt = time.Now()
		if err := tx.PutNode(n); err != nil {
			return err
		}
		node = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Moved node %s under %s", nodeID, newParentID)
	return node, nil
}

// checkNotDescendant walks the ancestors of target and fails if nodeID is
// among them, which would close a cycle.
func checkNotDescendant(tx metadata.Transaction, nodeID, target uuid.UUID) error {
	visited := make(map[uuid.UUID]struct{})
	for cur := target; cur != uuid.Nil; {
		if cur == nodeID {
			return metadata.NewInvalidOperationError("cannot move a folder into its own descendant", target.String())
		}
		if _, seen := visited[cur]; seen {
			return metadata.NewCorruptStateError("cycle in parent chain", cur.String())
		}
		visited[cur] = struct{}{}

		n, err := tx.GetNode(cur)
		if err != nil {
			if metadata.IsNotFound(err) {
				return metadata.NewCorruptStateError("dangling parent reference", cur.String())
			}
			return err
		}
		cur = n.ParentID
	}
	return nil
}
