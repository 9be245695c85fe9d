package hierarchy

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/samber/lo"
)

// PathElement is one step of a breadcrumb.
type PathElement struct {
	ID   uuid.UUID
	Name string
}

// ListChildren returns the nodes directly under parentID (uuid.Nil for the
// root) owned by ownerID, folders first then by name.
func (e *Engine) ListChildren(ctx context.Context, ownerID, parentID uuid.UUID) ([]*metadata.Node, error) {
	var children []*metadata.Node
	err := e.store.View(ctx, func(tx metadata.Transaction) error {
		if _, err := loadParent(tx, ownerID, parentID); err != nil {
			return err
		}
		var err error
		children, err = tx.ListChildren(ownerID, parentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sortListing(children)
	return children, nil
}

// ResolvePath returns the chain from the top-level ancestor down to nodeID.
//
// A cycle or a dangling parent in stored data is reported as
// ErrCorruptState rather than looping or silently truncating.
func (e *Engine) ResolvePath(ctx context.Context, nodeID uuid.UUID) ([]PathElement, error) {
	var path []PathElement
	err := e.store.View(ctx, func(tx metadata.Transaction) error {
		var err error
		path, err = resolvePathTx(tx, nodeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return path, nil
}

func resolvePathTx(tx metadata.Transaction, nodeID uuid.UUID) ([]PathElement, error) {
	node, err := tx.GetNode(nodeID)
	if err != nil {
		return nil, err
	}

	visited := map[uuid.UUID]struct{}{node.ID: {}}
	path := []PathElement{{ID: node.ID, Name: node.Name}}

	for node.ParentID != uuid.Nil {
		if _, seen := visited[node.ParentID]; seen {
			return nil, metadata.NewCorruptStateError("cycle in parent chain", node.ParentID.String())
		}
		parent, err := tx.GetNode(node.ParentID)
		if err != nil {
			if metadata.IsNotFound(err) {
				return nil, metadata.NewCorruptStateError("dangling parent reference", node.ParentID.String())
			}
			return nil, err
		}
		visited[parent.ID] = struct{}{}
		path = append(path, PathElement{ID: parent.ID, Name: parent.Name})
		node = parent
	}

	// Collected leaf to root
	slices.Reverse(path)
	return path, nil
}

// Search returns ownerID's nodes whose name contains query,
// case-insensitively, in listing order.
func (e *Engine) Search(ctx context.Context, ownerID uuid.UUID, query string) ([]*metadata.Node, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < e.config.MinSearchLength {
		return nil, metadata.NewInvalidArgumentError("search query too short", query)
	}
	needle := strings.ToLower(query)

	var nodes []*metadata.Node
	err := e.store.View(ctx, func(tx metadata.Transaction) error {
		var err error
		nodes, err = tx.ListNodesByOwner(ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	matches := lo.Filter(nodes, func(n *metadata.Node, _ int) bool {
		return strings.Contains(strings.ToLower(n.Name), needle)
	})
	sortListing(matches)
	return matches, nil
}
