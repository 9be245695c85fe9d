// Package access decides whether an actor may act on a node.
//
// There are three ways to hold access to a node:
//   - owner: the actor owns the node (full write access)
//   - admin-override: the actor is an admin (full write access to any node)
//   - shared: the actor holds a ShareGrant on the node (read or write)
//
// Grants apply to the node they name only; they are not inherited by
// descendants. Structural changes (rename, move, delete) need ownership or
// admin rights and are never granted by a share, even a write share.
package access

import (
	"context"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// Type is the basis on which access was granted.
type Type string

const (
	TypeOwner         Type = "owner"
	TypeShared        Type = "shared"
	TypeAdminOverride Type = "admin-override"
)

// Actor is an authenticated caller, as supplied by the auth collaborator.
type Actor struct {
	ID   uuid.UUID
	Role metadata.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == metadata.RoleAdmin
}

// Decision is the outcome of a successful access check.
type Decision struct {
	Node       *metadata.Node
	AccessType Type

	// Permission is the effective permission: write for owners and admins,
	// the grant's permission for shared access.
	Permission metadata.Permission

	// Grant is set only for shared access
	Grant *metadata.ShareGrant
}

// ResolveTx runs the access check inside an existing transaction.
//
// Resolution order:
//  1. missing node: ErrNotFound
//  2. admin: admin-override
//  3. owner: owner
//  4. no grant for the actor: ErrPermissionDenied
//  5. write required but grant is read: ErrPermissionDenied
//  6. otherwise: shared
func ResolveTx(tx metadata.Transaction, actor Actor, nodeID uuid.UUID, required metadata.Permission) (*Decision, error) {
	if !required.Valid() {
		return nil, metadata.NewInvalidArgumentError("invalid permission", string(required))
	}

	node, err := tx.GetNode(nodeID)
	if err != nil {
		return nil, err
	}

	if actor.IsAdmin() {
		return &Decision{Node: node, AccessType: TypeAdminOverride, Permission: metadata.PermissionWrite}, nil
	}
	if node.OwnerID == actor.ID {
		return &Decision{Node: node, AccessType: TypeOwner, Permission: metadata.PermissionWrite}, nil
	}

	grant, err := tx.FindGrant(nodeID, actor.ID)
	if err != nil {
		if metadata.IsNotFound(err) {
			return nil, metadata.NewPermissionDeniedError("no access to node", nodeID.String())
		}
		return nil, err
	}
	if !grant.Permission.Satisfies(required) {
		return nil, metadata.NewPermissionDeniedError("write access required", nodeID.String())
	}

	return &Decision{
		Node:       node,
		AccessType: TypeShared,
		Permission: grant.Permission,
		Grant:      grant,
	}, nil
}

// RequireOwnerOrAdmin loads the node and fails with ErrPermissionDenied
// unless the actor owns it or is an admin. Used for rename, move and delete.
func RequireOwnerOrAdmin(tx metadata.Transaction, actor Actor, nodeID uuid.UUID) (*metadata.Node, error) {
	node, err := tx.GetNode(nodeID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && node.OwnerID != actor.ID {
		return nil, metadata.NewPermissionDeniedError("only the owner may restructure a node", nodeID.String())
	}
	return node, nil
}

// Resolver runs access checks in their own read transactions.
type Resolver struct {
	store metadata.MetadataStore
}

// New creates a Resolver over store.
func New(store metadata.MetadataStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve checks whether actor holds required on nodeID.
func (r *Resolver) Resolve(ctx context.Context, actor Actor, nodeID uuid.UUID, required metadata.Permission) (*Decision, error) {
	var decision *Decision
	err := r.store.View(ctx, func(tx metadata.Transaction) error {
		var err error
		decision, err = ResolveTx(tx, actor, nodeID, required)
		return err
	})
	if err != nil {
		return nil, err
	}
	return decision, nil
}
