package sqldb

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

func (tx *sqlTx) GetGrant(id uuid.UUID) (*metadata.ShareGrant, error) {
	var m grantModel
	found, err := tx.first(&m, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, metadata.NewNotFoundError("share grant", id.String())
	}
	return m.toGrant(), nil
}

func (tx *sqlTx) FindGrant(nodeID, recipientID uuid.UUID) (*metadata.ShareGrant, error) {
	var m grantModel
	found, err := tx.first(&m, "node_id = ? AND recipient_id = ?", nodeID, recipientID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, metadata.NewNotFoundError("share grant", nodeID.String()+"/"+recipientID.String())
	}
	return m.toGrant(), nil
}

func (tx *sqlTx) CreateGrant(grant *metadata.ShareGrant) error {
	if err := tx.checkWrite("CreateGrant"); err != nil {
		return err
	}
	if ok, err := tx.exists(&grantModel{}, "id = ?", grant.ID); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("share grant", grant.ID.String())
	}
	if ok, err := tx.exists(&grantModel{}, "node_id = ? AND recipient_id = ?", grant.NodeID, grant.RecipientID); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("share grant", grant.NodeID.String()+"/"+grant.RecipientID.String())
	}
	if err := tx.db.Create(toGrantModel(grant)).Error; err != nil {
		return fmt.Errorf("failed to insert share grant: %w", err)
	}
	return nil
}

func (tx *sqlTx) PutGrant(grant *metadata.ShareGrant) error {
	if err := tx.checkWrite("PutGrant"); err != nil {
		return err
	}
	current, err := tx.GetGrant(grant.ID)
	if err != nil {
		return err
	}
	if current.NodeID != grant.NodeID || current.RecipientID != grant.RecipientID {
		if ok, err := tx.exists(&grantModel{}, "node_id = ? AND recipient_id = ?", grant.NodeID, grant.RecipientID); err != nil {
			return err
		} else if ok {
			return metadata.NewAlreadyExistsError("share grant", grant.NodeID.String()+"/"+grant.RecipientID.String())
		}
	}
	if err := tx.db.Save(toGrantModel(grant)).Error; err != nil {
		return fmt.Errorf("failed to update share grant: %w", err)
	}
	return nil
}

func (tx *sqlTx) DeleteGrant(id uuid.UUID) error {
	if err := tx.checkWrite("DeleteGrant"); err != nil {
		return err
	}
	res := tx.db.Where("id = ?", id).Delete(&grantModel{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete share grant: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return metadata.NewNotFoundError("share grant", id.String())
	}
	return nil
}

func (tx *sqlTx) findGrants(query string, args ...any) ([]*metadata.ShareGrant, error) {
	var rows []grantModel
	if err := tx.db.Where(query, args...).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list share grants: %w", err)
	}
	out := make([]*metadata.ShareGrant, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toGrant())
	}
	return out, nil
}

func (tx *sqlTx) ListGrantsByNode(nodeID uuid.UUID) ([]*metadata.ShareGrant, error) {
	return tx.findGrants("node_id = ?", nodeID)
}

func (tx *sqlTx) ListGrantsByOwner(ownerID uuid.UUID) ([]*metadata.ShareGrant, error) {
	return tx.findGrants("owner_id = ?", ownerID)
}

func (tx *sqlTx) ListGrantsByRecipient(recipientID uuid.UUID) ([]*metadata.ShareGrant, error) {
	return tx.findGrants("recipient_id = ?", recipientID)
}
