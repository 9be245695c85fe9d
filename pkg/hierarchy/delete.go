package hierarchy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/quota"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// DeleteResult reports what a recursive delete removed.
type DeleteResult struct {
	// DeletedNodes counts files and folders whose metadata was removed
	DeletedNodes int

	// FreedBytes is the quota released to the owner
	FreedBytes int64

	// Skipped counts nodes that had already vanished or had been moved out
	// of the subtree by the time their turn came
	Skipped int

	// PayloadErrors maps content refs that could not be removed after their
	// metadata was deleted. These are left for the orphan collector.
	PayloadErrors map[string]error
}

// subtree is a snapshot of the nodes under a root, in post-order.
type subtree struct {
	rootID uuid.UUID
	order  []*metadata.Node

	// parentOf records each non-root node's parent at snapshot time
	parentOf map[uuid.UUID]uuid.UUID
}

// Delete removes nodeID and, for folders, everything beneath it.
//
// Owner or admin only. The subtree is snapshotted once and then removed
// leaf first, one transaction per node (metadata removal, grant cascade and
// quota release commit together). Payloads are deleted after their node's
// transaction commits; failures are collected in PayloadErrors.
//
// Nodes that disappeared since the snapshot are skipped, so a delete
// interrupted half-way can simply be retried. A folder that gained a child
// since the snapshot stops the delete with ErrInvalidOperation.
func (e *Engine) Delete(ctx context.Context, actor access.Actor, nodeID uuid.UUID) (result *DeleteResult, err error) {
	defer func(start time.Time) { e.observe("delete", start, err) }(time.Now())

	var tree *subtree
	err = e.store.View(ctx, func(tx metadata.Transaction) error {
		root, err := access.RequireOwnerOrAdmin(tx, actor, nodeID)
		if err != nil {
			return err
		}
		tree, err = collectSubtree(tx, root)
		return err
	})
	if err != nil {
		return nil, err
	}

	result = &DeleteResult{PayloadErrors: make(map[string]error)}
	for _, n := range tree.order {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		removed, err := e.deleteOne(ctx, tree, n.ID)
		if err != nil {
			return result, err
		}
		if removed == nil {
			result.Skipped++
			continue
		}

		result.DeletedNodes++
		if removed.IsFolder || removed.ContentRef == "" {
			continue
		}
		result.FreedBytes += removed.Size
		if err := e.payloads.Delete(ctx, removed.ContentRef); err != nil {
			logger.Warn("Failed to delete payload %s of node %s: %v", removed.ContentRef, removed.ID, err)
			result.PayloadErrors[removed.ContentRef] = err
			e.config.Metrics.RecordPayloadDeleteFailure()
		}
	}

	logger.Debug("Deleted node %s: %d nodes, %d bytes freed, %d skipped, %d payload errors",
		nodeID, result.DeletedNodes, result.FreedBytes, result.Skipped, len(result.PayloadErrors))
	return result, nil
}

// deleteOne removes a single node of the snapshot in its own transaction.
// It returns nil (and no error) when the node must be skipped.
func (e *Engine) deleteOne(ctx context.Context, tree *subtree, id uuid.UUID) (*metadata.Node, error) {
	var removed *metadata.Node
	err := e.store.Update(ctx, func(tx metadata.Transaction) error {
		removed = nil

		n, err := tx.GetNode(id)
		if err != nil {
			if metadata.IsNotFound(err) {
				return nil
			}
			return err
		}
		inside, err := tree.stillContains(tx, n)
		if err != nil {
			return err
		}
		if !inside {
			logger.Debug("Node %s left the subtree during delete, skipping", id)
			return nil
		}

		if n.IsFolder {
			children, err := tx.ListChildren(n.OwnerID, n.ID)
			if err != nil {
				return err
			}
			if len(children) > 0 {
				return metadata.NewInvalidOperationError("folder gained new children during delete", id.String())
			}
		}

		if err := tx.DeleteNode(n.ID); err != nil {
			return err
		}
		if !n.IsFolder {
			if err := quota.Release(tx, n.OwnerID, n.Size); err != nil {
				return err
			}
		}
		removed = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// collectSubtree walks the tree under root breadth first and returns it in
// post-order (every node after all of its descendants).
func collectSubtree(tx metadata.Transaction, root *metadata.Node) (*subtree, error) {
	tree := &subtree{rootID: root.ID, parentOf: make(map[uuid.UUID]uuid.UUID)}

	visited := map[uuid.UUID]struct{}{root.ID: {}}
	levelOrder := []*metadata.Node{root}
	for i := 0; i < len(levelOrder); i++ {
		n := levelOrder[i]
		if !n.IsFolder {
			continue
		}
		children, err := tx.ListChildren(n.OwnerID, n.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if _, seen := visited[c.ID]; seen {
				return nil, metadata.NewCorruptStateError("cycle in parent chain", c.ID.String())
			}
			visited[c.ID] = struct{}{}
			tree.parentOf[c.ID] = n.ID
			levelOrder = append(levelOrder, c)
		}
	}

	// Reversed level order puts every child before its parent
	tree.order = make([]*metadata.Node, len(levelOrder))
	for i, n := range levelOrder {
		tree.order[len(levelOrder)-1-i] = n
	}
	return tree, nil
}

// stillContains reports whether n is still linked to the snapshot root
// through the same parents it had when the snapshot was taken.
func (t *subtree) stillContains(tx metadata.Transaction, n *metadata.Node) (bool, error) {
	cur := n
	for steps := 0; cur.ID != t.rootID; steps++ {
		if steps > len(t.order) {
			return false, metadata.NewCorruptStateError("cycle in parent chain", n.ID.String())
		}
		expected, ok := t.parentOf[cur.ID]
		if !ok || cur.ParentID != expected {
			return false, nil
		}
		parent, err := tx.GetNode(expected)
		if err != nil {
			if metadata.IsNotFound(err) {
				return false, nil
			}
			return false, err
		}
		cur = parent
	}
	return true, nil
}
