package sqldb

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

func (tx *sqlTx) GetNode(id uuid.UUID) (*metadata.Node, error) {
	var m nodeModel
	found, err := tx.first(&m, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, metadata.NewNotFoundError("node", id.String())
	}
	return m.toNode(), nil
}

func (tx *sqlTx) CreateNode(node *metadata.Node) error {
	if err := tx.checkWrite("CreateNode"); err != nil {
		return err
	}
	if ok, err := tx.exists(&nodeModel{}, "id = ?", node.ID); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("node", node.ID.String())
	}
	if err := tx.db.Create(toNodeModel(node)).Error; err != nil {
		return fmt.Errorf("failed to insert node: %w", err)
	}
	return nil
}

func (tx *sqlTx) PutNode(node *metadata.Node) error {
	if err := tx.checkWrite("PutNode"); err != nil {
		return err
	}
	if _, err := tx.GetNode(node.ID); err != nil {
		return err
	}
	if err := tx.db.Save(toNodeModel(node)).Error; err != nil {
		return fmt.Errorf("failed to update node: %w", err)
	}
	return nil
}

func (tx *sqlTx) DeleteNode(id uuid.UUID) error {
	if err := tx.checkWrite("DeleteNode"); err != nil {
		return err
	}
	if _, err := tx.GetNode(id); err != nil {
		return err
	}
	if err := tx.db.Where("node_id = ?", id).Delete(&grantModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete grants of node %s: %w", id, err)
	}
	if err := tx.db.Where("id = ?", id).Delete(&nodeModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete node %s: %w", id, err)
	}
	return nil
}

func (tx *sqlTx) findNodes(query string, args ...any) ([]*metadata.Node, error) {
	var rows []nodeModel
	if err := tx.db.Where(query, args...).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	out := make([]*metadata.Node, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toNode())
	}
	return out, nil
}

func (tx *sqlTx) ListChildren(ownerID, parentID uuid.UUID) ([]*metadata.Node, error) {
	return tx.findNodes("owner_id = ? AND parent_id = ?", ownerID, parentID)
}

func (tx *sqlTx) ListNodesByOwner(ownerID uuid.UUID) ([]*metadata.Node, error) {
	return tx.findNodes("owner_id = ?", ownerID)
}

func (tx *sqlTx) ListContentRefs() ([]string, error) {
	var refs []string
	err := tx.db.Model(&nodeModel{}).
		Where("is_folder = ? AND content_ref <> ?", false, "").
		Pluck("content_ref", &refs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list content refs: %w", err)
	}
	return refs, nil
}
