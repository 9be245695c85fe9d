package memory

import (
	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

func (tx *memoryTx) GetGrant(id uuid.UUID) (*metadata.ShareGrant, error) {
	g, ok := tx.store.grants[id]
	if !ok {
		return nil, metadata.NewNotFoundError("share grant", id.String())
	}
	return g.Clone(), nil
}

func (tx *memoryTx) FindGrant(nodeID, recipientID uuid.UUID) (*metadata.ShareGrant, error) {
	id, ok := tx.store.grantIndex[grantKey{node: nodeID, recipient: recipientID}]
	if !ok {
		return nil, metadata.NewNotFoundError("share grant", nodeID.String()+"/"+recipientID.String())
	}
	return tx.GetGrant(id)
}

func (tx *memoryTx) CreateGrant(grant *metadata.ShareGrant) error {
	if err := tx.checkWrite("CreateGrant"); err != nil {
		return err
	}
	s := tx.store

	if _, exists := s.grants[grant.ID]; exists {
		return metadata.NewAlreadyExistsError("share grant", grant.ID.String())
	}
	key := grantKey{node: grant.NodeID, recipient: grant.RecipientID}
	if _, exists := s.grantIndex[key]; exists {
		return metadata.NewAlreadyExistsError("share grant", grant.NodeID.String()+"/"+grant.RecipientID.String())
	}

	setEntry(tx, s.grants, grant.ID, grant.Clone())
	setEntry(tx, s.grantIndex, key, grant.ID)
	return nil
}

func (tx *memoryTx) PutGrant(grant *metadata.ShareGrant) error {
	if err := tx.checkWrite("PutGrant"); err != nil {
		return err
	}
	s := tx.store

	current, ok := s.grants[grant.ID]
	if !ok {
		return metadata.NewNotFoundError("share grant", grant.ID.String())
	}

	oldKey := grantKey{node: current.NodeID, recipient: current.RecipientID}
	newKey := grantKey{node: grant.NodeID, recipient: grant.RecipientID}
	if oldKey != newKey {
		if _, exists := s.grantIndex[newKey]; exists {
			return metadata.NewAlreadyExistsError("share grant", grant.NodeID.String()+"/"+grant.RecipientID.String())
		}
		deleteEntry(tx, s.grantIndex, oldKey)
		setEntry(tx, s.grantIndex, newKey, grant.ID)
	}

	setEntry(tx, s.grants, grant.ID, grant.Clone())
	return nil
}

func (tx *memoryTx) DeleteGrant(id uuid.UUID) error {
	if err := tx.checkWrite("DeleteGrant"); err != nil {
		return err
	}
	g, ok := tx.store.grants[id]
	if !ok {
		return metadata.NewNotFoundError("share grant", id.String())
	}
	tx.removeGrant(id, g)
	return nil
}

// removeGrant drops a grant and its uniqueness index entry.
func (tx *memoryTx) removeGrant(id uuid.UUID, g *metadata.ShareGrant) {
	deleteEntry(tx, tx.store.grantIndex, grantKey{node: g.NodeID, recipient: g.RecipientID})
	deleteEntry(tx, tx.store.grants, id)
}

func (tx *memoryTx) ListGrantsByNode(nodeID uuid.UUID) ([]*metadata.ShareGrant, error) {
	return tx.filterGrants(func(g *metadata.ShareGrant) bool { return g.NodeID == nodeID }), nil
}

func (tx *memoryTx) ListGrantsByOwner(ownerID uuid.UUID) ([]*metadata.ShareGrant, error) {
	return tx.filterGrants(func(g *metadata.ShareGrant) bool { return g.OwnerID == ownerID }), nil
}

func (tx *memoryTx) ListGrantsByRecipient(recipientID uuid.UUID) ([]*metadata.ShareGrant, error) {
	return tx.filterGrants(func(g *metadata.ShareGrant) bool { return g.RecipientID == recipientID }), nil
}

func (tx *memoryTx) filterGrants(keep func(*metadata.ShareGrant) bool) []*metadata.ShareGrant {
	var out []*metadata.ShareGrant
	for _, g := range tx.store.grants {
		if keep(g) {
			out = append(out, g.Clone())
		}
	}
	return out
}
