package memory

import (
	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

func (tx *memoryTx) GetNode(id uuid.UUID) (*metadata.Node, error) {
	n, ok := tx.store.nodes[id]
	if !ok {
		return nil, metadata.NewNotFoundError("node", id.String())
	}
	return n.Clone(), nil
}

func (tx *memoryTx) CreateNode(node *metadata.Node) error {
	if err := tx.checkWrite("CreateNode"); err != nil {
		return err
	}
	s := tx.store

	if _, exists := s.nodes[node.ID]; exists {
		return metadata.NewAlreadyExistsError("node", node.ID.String())
	}
	if s.config.MaxNodes > 0 && len(s.nodes) >= s.config.MaxNodes {
		return metadata.NewInvalidOperationError("node limit reached", node.ID.String())
	}

	setEntry(tx, s.nodes, node.ID, node.Clone())
	return nil
}

func (tx *memoryTx) PutNode(node *metadata.Node) error {
	if err := tx.checkWrite("PutNode"); err != nil {
		return err
	}
	if _, ok := tx.store.nodes[node.ID]; !ok {
		return metadata.NewNotFoundError("node", node.ID.String())
	}
	setEntry(tx, tx.store.nodes, node.ID, node.Clone())
	return nil
}

func (tx *memoryTx) DeleteNode(id uuid.UUID) error {
	if err := tx.checkWrite("DeleteNode"); err != nil {
		return err
	}
	s := tx.store

	if _, ok := s.nodes[id]; !ok {
		return metadata.NewNotFoundError("node", id.String())
	}

	for grantID, g := range s.grants {
		if g.NodeID == id {
			tx.removeGrant(grantID, g)
		}
	}

	deleteEntry(tx, s.nodes, id)
	return nil
}

func (tx *memoryTx) ListChildren(ownerID, parentID uuid.UUID) ([]*metadata.Node, error) {
	var out []*metadata.Node
	for _, n := range tx.store.nodes {
		if n.OwnerID == ownerID && n.ParentID == parentID {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

func (tx *memoryTx) ListNodesByOwner(ownerID uuid.UUID) ([]*metadata.Node, error) {
	var out []*metadata.Node
	for _, n := range tx.store.nodes {
		if n.OwnerID == ownerID {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

func (tx *memoryTx) ListContentRefs() ([]string, error) {
	var refs []string
	for _, n := range tx.store.nodes {
		if !n.IsFolder && n.ContentRef != "" {
			refs = append(refs, n.ContentRef)
		}
	}
	return refs, nil
}
