package badger

import (
	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

func (tx *badgerTx) GetNode(id uuid.UUID) (*metadata.Node, error) {
	n, found, err := getJSON[metadata.Node](tx, keyNode(id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, metadata.NewNotFoundError("node", id.String())
	}
	return n, nil
}

func (tx *badgerTx) CreateNode(node *metadata.Node) error {
	if err := tx.checkWrite("CreateNode"); err != nil {
		return err
	}

	if ok, err := tx.exists(keyNode(node.ID)); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("node", node.ID.String())
	}

	if err := putJSON(tx, keyNode(node.ID), node); err != nil {
		return err
	}
	if err := tx.setMarker(keyChild(node.OwnerID, node.ParentID, node.ID)); err != nil {
		return err
	}
	if err := tx.touchChildren(node.OwnerID, node.ParentID, node.ID); err != nil {
		return err
	}
	return tx.setMarker(keyOwnerNode(node.OwnerID, node.ID))
}

func (tx *badgerTx) PutNode(node *metadata.Node) error {
	if err := tx.checkWrite("PutNode"); err != nil {
		return err
	}

	current, err := tx.GetNode(node.ID)
	if err != nil {
		return err
	}

	if current.OwnerID != node.OwnerID || current.ParentID != node.ParentID {
		if err := tx.del(keyChild(current.OwnerID, current.ParentID, current.ID)); err != nil {
			return err
		}
		if err := tx.setMarker(keyChild(node.OwnerID, node.ParentID, node.ID)); err != nil {
			return err
		}
		if err := tx.touchChildren(current.OwnerID, current.ParentID, node.ID); err != nil {
			return err
		}
		if err := tx.touchChildren(node.OwnerID, node.ParentID, node.ID); err != nil {
			return err
		}
	}
	if current.OwnerID != node.OwnerID {
		if err := tx.del(keyOwnerNode(current.OwnerID, current.ID)); err != nil {
			return err
		}
		if err := tx.setMarker(keyOwnerNode(node.OwnerID, node.ID)); err != nil {
			return err
		}
	}

	return putJSON(tx, keyNode(node.ID), node)
}

func (tx *badgerTx) DeleteNode(id uuid.UUID) error {
	if err := tx.checkWrite("DeleteNode"); err != nil {
		return err
	}

	node, err := tx.GetNode(id)
	if err != nil {
		return err
	}

	grants, err := tx.ListGrantsByNode(id)
	if err != nil {
		return err
	}
	for _, g := range grants {
		if err := tx.removeGrant(g); err != nil {
			return err
		}
	}

	if err := tx.del(keyChild(node.OwnerID, node.ParentID, node.ID)); err != nil {
		return err
	}
	if err := tx.touchChildren(node.OwnerID, node.ParentID, node.ID); err != nil {
		return err
	}
	if err := tx.del(keyChildVersion(node.OwnerID, node.ID)); err != nil {
		return err
	}
	if err := tx.del(keyOwnerNode(node.OwnerID, node.ID)); err != nil {
		return err
	}
	return tx.del(keyNode(id))
}

func (tx *badgerTx) ListChildren(ownerID, parentID uuid.UUID) ([]*metadata.Node, error) {
	// Registers the read so a concurrent child insert conflicts on commit
	if _, err := tx.exists(keyChildVersion(ownerID, parentID)); err != nil {
		return nil, err
	}

	ids, err := tx.scanIDs(keyChildrenPrefix(ownerID, parentID))
	if err != nil {
		return nil, err
	}
	return loadAll[metadata.Node](tx, ids, keyNode)
}

// touchChildren records a change to the children of parentID.
func (tx *badgerTx) touchChildren(ownerID, parentID, changedID uuid.UUID) error {
	return tx.setID(keyChildVersion(ownerID, parentID), changedID)
}

func (tx *badgerTx) ListNodesByOwner(ownerID uuid.UUID) ([]*metadata.Node, error) {
	ids, err := tx.scanIDs(keyOwnerNodesPrefix(ownerID))
	if err != nil {
		return nil, err
	}
	return loadAll[metadata.Node](tx, ids, keyNode)
}

func (tx *badgerTx) ListContentRefs() ([]string, error) {
	nodes, err := scanJSON[metadata.Node](tx, []byte(prefixNode))
	if err != nil {
		return nil, err
	}

	var refs []string
	for _, n := range nodes {
		if !n.IsFolder && n.ContentRef != "" {
			refs = append(refs, n.ContentRef)
		}
	}
	return refs, nil
}
