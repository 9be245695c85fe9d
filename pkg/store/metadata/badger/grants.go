package badger

import (
	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

func (tx *badgerTx) GetGrant(id uuid.UUID) (*metadata.ShareGrant, error) {
	g, found, err := getJSON[metadata.ShareGrant](tx, keyGrant(id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, metadata.NewNotFoundError("share grant", id.String())
	}
	return g, nil
}

func (tx *badgerTx) FindGrant(nodeID, recipientID uuid.UUID) (*metadata.ShareGrant, error) {
	id, found, err := tx.getID(keyGrantPair(nodeID, recipientID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, metadata.NewNotFoundError("share grant", nodeID.String()+"/"+recipientID.String())
	}
	return tx.GetGrant(id)
}

func (tx *badgerTx) CreateGrant(grant *metadata.ShareGrant) error {
	if err := tx.checkWrite("CreateGrant"); err != nil {
		return err
	}

	if ok, err := tx.exists(keyGrant(grant.ID)); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("share grant", grant.ID.String())
	}
	if ok, err := tx.exists(keyGrantPair(grant.NodeID, grant.RecipientID)); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("share grant", grant.NodeID.String()+"/"+grant.RecipientID.String())
	}

	return tx.writeGrant(grant)
}

func (tx *badgerTx) PutGrant(grant *metadata.ShareGrant) error {
	if err := tx.checkWrite("PutGrant"); err != nil {
		return err
	}

	current, err := tx.GetGrant(grant.ID)
	if err != nil {
		return err
	}

	if current.NodeID != grant.NodeID || current.RecipientID != grant.RecipientID {
		if ok, err := tx.exists(keyGrantPair(grant.NodeID, grant.RecipientID)); err != nil {
			return err
		} else if ok {
			return metadata.NewAlreadyExistsError("share grant", grant.NodeID.String()+"/"+grant.RecipientID.String())
		}
	}

	if err := tx.removeGrant(current); err != nil {
		return err
	}
	return tx.writeGrant(grant)
}

func (tx *badgerTx) DeleteGrant(id uuid.UUID) error {
	if err := tx.checkWrite("DeleteGrant"); err != nil {
		return err
	}
	g, err := tx.GetGrant(id)
	if err != nil {
		return err
	}
	return tx.removeGrant(g)
}

// writeGrant stores a grant with all of its index keys.
func (tx *badgerTx) writeGrant(g *metadata.ShareGrant) error {
	if err := putJSON(tx, keyGrant(g.ID), g); err != nil {
		return err
	}
	if err := tx.setID(keyGrantPair(g.NodeID, g.RecipientID), g.ID); err != nil {
		return err
	}
	if err := tx.setMarker(keyGrantOwner(g.OwnerID, g.ID)); err != nil {
		return err
	}
	return tx.setMarker(keyGrantRecipient(g.RecipientID, g.ID))
}

// removeGrant deletes a grant and all of its index keys.
func (tx *badgerTx) removeGrant(g *metadata.ShareGrant) error {
	for _, key := range [][]byte{
		keyGrantPair(g.NodeID, g.RecipientID),
		keyGrantOwner(g.OwnerID, g.ID),
		keyGrantRecipient(g.RecipientID, g.ID),
		keyGrant(g.ID),
	} {
		if err := tx.del(key); err != nil {
			return err
		}
	}
	return nil
}

func (tx *badgerTx) ListGrantsByNode(nodeID uuid.UUID) ([]*metadata.ShareGrant, error) {
	// Pair index values hold the grant ID; the key suffix is the recipient
	recipients, err := tx.scanIDs(keyGrantPairPrefix(nodeID))
	if err != nil {
		return nil, err
	}

	out := make([]*metadata.ShareGrant, 0, len(recipients))
	for _, recipientID := range recipients {
		g, err := tx.FindGrant(nodeID, recipientID)
		if metadata.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (tx *badgerTx) ListGrantsByOwner(ownerID uuid.UUID) ([]*metadata.ShareGrant, error) {
	ids, err := tx.scanIDs(keyGrantOwnerPrefix(ownerID))
	if err != nil {
		return nil, err
	}
	return loadAll[metadata.ShareGrant](tx, ids, keyGrant)
}

func (tx *badgerTx) ListGrantsByRecipient(recipientID uuid.UUID) ([]*metadata.ShareGrant, error) {
	ids, err := tx.scanIDs(keyGrantRecipientPrefix(recipientID))
	if err != nil {
		return nil, err
	}
	return loadAll[metadata.ShareGrant](tx, ids, keyGrant)
}
