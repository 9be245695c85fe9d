// Package sharing manages share grants: delegated read or write access from
// a node's owner to another user.
//
// At most one grant exists per (node, recipient); granting again updates
// the permission in place. Every change notifies the recipient in the same
// transaction that performs it.
package sharing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/notify"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// GrantOutcome is the result of a single Grant call.
type GrantOutcome struct {
	Grant *metadata.ShareGrant

	// Created is false when an existing grant was updated
	Created bool
}

// Ledger is the share ledger. It is stateless and safe for concurrent use.
type Ledger struct {
	store metadata.MetadataStore
}

// New creates a Ledger over store.
func New(store metadata.MetadataStore) *Ledger {
	return &Ledger{store: store}
}

// Grant shares nodeID with recipient (a username or an email address).
func (l *Ledger) Grant(
	ctx context.Context,
	ownerID, nodeID uuid.UUID,
	recipient string,
	permission metadata.Permission,
) (*GrantOutcome, error) {
	if !permission.Valid() {
		return nil, metadata.NewInvalidArgumentError("invalid permission", string(permission))
	}

	var outcome *GrantOutcome
	err := l.store.Update(ctx, func(tx metadata.Transaction) error {
		var err error
		outcome, err = grantTx(tx, ownerID, nodeID, recipient, permission)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Shared node %s with %s (%s, created=%v)", nodeID, recipient, permission, outcome.Created)
	return outcome, nil
}

func grantTx(
	tx metadata.Transaction,
	ownerID, nodeID uuid.UUID,
	recipient string,
	permission metadata.Permission,
) (*GrantOutcome, error) {
	node, err := tx.GetNode(nodeID)
	if err != nil {
		return nil, err
	}
	if node.OwnerID != ownerID {
		return nil, metadata.NewPermissionDeniedError("only the owner may share a node", nodeID.String())
	}
	owner, err := tx.GetUser(ownerID)
	if err != nil {
		return nil, err
	}
	target, err := lookupRecipient(tx, recipient)
	if err != nil {
		return nil, err
	}
	if target.ID == ownerID {
		return nil, metadata.NewInvalidOperationError("cannot share a node with its owner", recipient)
	}

	now := time.Now()
	meta := map[string]any{
		"fileId":     nodeID.String(),
		"permission": string(permission),
		"ownerId":    ownerID.String(),
	}

	existing, err := tx.FindGrant(nodeID, target.ID)
	switch {
	case err == nil:
		existing.Permission = permission
		existing.UpdatedAt = now
		if err := tx.PutGrant(existing); err != nil {
			return nil, err
		}
		if err := notify.Emit(tx, target.ID, metadata.NotificationPermissionChanged,
			"Permission changed",
			fmt.Sprintf("%s changed your access to %q (%s).", owner.Username, node.Name, describe(permission)),
			meta); err != nil {
			return nil, err
		}
		return &GrantOutcome{Grant: existing, Created: false}, nil

	case metadata.IsNotFound(err):
		grant := &metadata.ShareGrant{
			ID:          uuid.New(),
			NodeID:      nodeID,
			OwnerID:     ownerID,
			RecipientID: target.ID,
			Permission:  permission,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.CreateGrant(grant); err != nil {
			return nil, err
		}
		if err := notify.Emit(tx, target.ID, metadata.NotificationFileShared,
			"New shared file",
			fmt.Sprintf("%s shared %q with you (%s).", owner.Username, node.Name, describe(permission)),
			meta); err != nil {
			return nil, err
		}
		return &GrantOutcome{Grant: grant, Created: true}, nil

	default:
		return nil, err
	}
}

// lookupRecipient resolves a username, falling back to an email address.
func lookupRecipient(tx metadata.Transaction, identifier string) (*metadata.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, metadata.NewInvalidArgumentError("empty recipient", identifier)
	}

	user, err := tx.GetUserByUsername(identifier)
	if err == nil {
		return user, nil
	}
	if !metadata.IsNotFound(err) {
		return nil, err
	}
	if !strings.Contains(identifier, "@") {
		return nil, metadata.NewNotFoundError("user", identifier)
	}

	user, err = tx.GetUserByEmail(strings.ToLower(identifier))
	if err != nil {
		if metadata.IsNotFound(err) {
			return nil, metadata.NewNotFoundError("user", identifier)
		}
		return nil, err
	}
	return user, nil
}

func describe(p metadata.Permission) string {
	if p == metadata.PermissionWrite {
		return "read/write"
	}
	return "read only"
}

// ownedGrant loads a grant and checks ownerID created it.
func ownedGrant(tx metadata.Transaction, ownerID, grantID uuid.UUID) (*metadata.ShareGrant, *metadata.User, error) {
	grant, err := tx.GetGrant(grantID)
	if err != nil {
		return nil, nil, err
	}
	if grant.OwnerID != ownerID {
		return nil, nil, metadata.NewPermissionDeniedError("only the owner may change a share", grantID.String())
	}
	owner, err := tx.GetUser(ownerID)
	if err != nil {
		return nil, nil, err
	}
	return grant, owner, nil
}

// nodeName returns the grant's node name, tolerating a node that vanished.
func nodeName(tx metadata.Transaction, nodeID uuid.UUID) (string, error) {
	node, err := tx.GetNode(nodeID)
	if err != nil {
		if metadata.IsNotFound(err) {
			return nodeID.String(), nil
		}
		return "", err
	}
	return node.Name, nil
}

// UpdatePermission changes the permission of an existing grant.
func (l *Ledger) UpdatePermission(ctx context.Context, ownerID, grantID uuid.UUID, permission metadata.Permission) (*metadata.ShareGrant, error) {
	if !permission.Valid() {
		return nil, metadata.NewInvalidArgumentError("invalid permission", string(permission))
	}

	var updated *metadata.ShareGrant
	err := l.store.Update(ctx, func(tx metadata.Transaction) error {
		grant, owner, err := ownedGrant(tx, ownerID, grantID)
		if err != nil {
			return err
		}
		name, err := nodeName(tx, grant.NodeID)
		if err != nil {
			return err
		}

		grant.Permission = permission
		grant.UpdatedAt = time.Now()
		if err := tx.PutGrant(grant); err != nil {
			return err
		}
		updated = grant

		return notify.Emit(tx, grant.RecipientID, metadata.NotificationPermissionChanged,
			"Permission changed",
			fmt.Sprintf("%s changed your access to %q (%s).", owner.Username, name, describe(permission)),
			map[string]any{
				"fileId":     grant.NodeID.String(),
				"permission": string(permission),
				"ownerId":    ownerID.String(),
			})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Revoke deletes a grant and tells the recipient.
func (l *Ledger) Revoke(ctx context.Context, ownerID, grantID uuid.UUID) error {
	err := l.store.Update(ctx, func(tx metadata.Transaction) error {
		grant, owner, err := ownedGrant(tx, ownerID, grantID)
		if err != nil {
			return err
		}
		name, err := nodeName(tx, grant.NodeID)
		if err != nil {
			return err
		}
		if err := tx.DeleteGrant(grantID); err != nil {
			return err
		}
		return notify.Emit(tx, grant.RecipientID, metadata.NotificationShareRevoked,
			"Access revoked",
			fmt.Sprintf("%s revoked your access to %q.", owner.Username, name),
			map[string]any{
				"fileId":  grant.NodeID.String(),
				"ownerId": ownerID.String(),
			})
	})
	if err != nil {
		return err
	}
	logger.Debug("Revoked grant %s", grantID)
	return nil
}
