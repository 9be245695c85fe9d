package metadata

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// MetadataStore Interface
// ============================================================================

// MetadataStore is the entity store behind the drive: users, nodes, share
// grants, notifications, audit entries and announcements.
//
// The store exposes primitive CRUD through a Transaction. Engines (quota,
// hierarchy, access, sharing, notify, audit, accounts) are stateless and
// compose these primitives inside a single View or Update call, so every
// invariant spanning several records (quota vs. node insert, node removal
// vs. grant cascade) is enforced atomically by the backend.
//
// Transaction semantics:
//   - View runs fn against a consistent read-only snapshot. Mutating
//     methods called inside View fail with ErrInvalidOperation.
//   - Update runs fn in a read-write transaction. If fn returns an error
//     nothing fn did is persisted. Backends with optimistic concurrency may
//     invoke fn more than once; fn must not have side effects outside tx.
//
// Concurrency:
// Two concurrent Update calls touching the same records are serialized
// (write lock, row lock or conflict retry depending on the backend). This is
// what makes quota reservation atomic per user and makes concurrent move and
// delete of the same node resolve deterministically.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// A Transaction must not be used after its callback returns.
type MetadataStore interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx Transaction) error) error

	// Update runs fn in a read-write transaction.
	Update(ctx context.Context, fn func(tx Transaction) error) error

	// Healthcheck verifies the backend is reachable and usable.
	Healthcheck(ctx context.Context) error

	// Close releases backend resources. The store is unusable afterwards.
	Close() error
}

// Transaction is the set of primitive operations available inside View and
// Update.
//
// Error contract:
//   - Get/Put/Delete of a missing record: ErrNotFound
//   - Create or Put violating a uniqueness constraint: ErrAlreadyExists
//   - Any mutation inside View: ErrInvalidOperation
//
// Records passed in and returned are copies; mutating a returned value does
// not change stored state until it is written back with Put.
//
// List methods return records in unspecified order. Ordering is a
// presentation concern of the engines.
type Transaction interface {
	UserTransaction
	NodeTransaction
	GrantTransaction
	NotificationTransaction
	AuditTransaction
	AnnouncementTransaction
}

// UserTransaction covers the users relation.
// Username and Email are unique.
type UserTransaction interface {
	GetUser(id uuid.UUID) (*User, error)
	GetUserByUsername(username string) (*User, error)
	GetUserByEmail(email string) (*User, error)
	ListUsers() ([]*User, error)
	CreateUser(user *User) error
	PutUser(user *User) error

	// DeleteUser removes the user and cascades: every node the user owns
	// (and the grants on them), every grant where the user is owner or
	// recipient, and every notification addressed to the user. Audit entries
	// authored by the user are kept with a nil ActorID.
	DeleteUser(id uuid.UUID) error
}

// NodeTransaction covers the nodes relation.
type NodeTransaction interface {
	GetNode(id uuid.UUID) (*Node, error)
	CreateNode(node *Node) error
	PutNode(node *Node) error

	// DeleteNode removes a single node and every grant referencing it.
	// It does not touch children; recursive removal is the hierarchy
	// engine's job.
	DeleteNode(id uuid.UUID) error

	// ListChildren returns nodes owned by ownerID whose parent is parentID
	// (uuid.Nil for root level).
	ListChildren(ownerID, parentID uuid.UUID) ([]*Node, error)

	// ListNodesByOwner returns every node owned by ownerID.
	ListNodesByOwner(ownerID uuid.UUID) ([]*Node, error)

	// ListContentRefs returns the content reference of every file node.
	ListContentRefs() ([]string, error)
}

// GrantTransaction covers the share_grants relation.
// (NodeID, RecipientID) is unique.
type GrantTransaction interface {
	GetGrant(id uuid.UUID) (*ShareGrant, error)
	FindGrant(nodeID, recipientID uuid.UUID) (*ShareGrant, error)
	CreateGrant(grant *ShareGrant) error
	PutGrant(grant *ShareGrant) error
	DeleteGrant(id uuid.UUID) error
	ListGrantsByNode(nodeID uuid.UUID) ([]*ShareGrant, error)
	ListGrantsByOwner(ownerID uuid.UUID) ([]*ShareGrant, error)
	ListGrantsByRecipient(recipientID uuid.UUID) ([]*ShareGrant, error)
}

// NotificationTransaction covers the notifications relation.
type NotificationTransaction interface {
	GetNotification(id uuid.UUID) (*Notification, error)
	CreateNotification(n *Notification) error
	PutNotification(n *Notification) error
	DeleteNotification(id uuid.UUID) error
	ListNotifications(userID uuid.UUID) ([]*Notification, error)

	// DeleteNotificationsBefore removes notifications created strictly before
	// cutoff and returns how many were removed.
	DeleteNotificationsBefore(cutoff time.Time) (int, error)
}

// AuditTransaction covers the append-only audit_log relation.
type AuditTransaction interface {
	AppendAudit(entry *AuditEntry) error
	ListAudit() ([]*AuditEntry, error)

	// DeleteAuditBefore removes entries created strictly before cutoff and
	// returns how many were removed.
	DeleteAuditBefore(cutoff time.Time) (int, error)
}

// AnnouncementTransaction covers admin broadcasts.
type AnnouncementTransaction interface {
	GetAnnouncement(id uuid.UUID) (*Announcement, error)
	CreateAnnouncement(a *Announcement) error
	PutAnnouncement(a *Announcement) error
	DeleteAnnouncement(id uuid.UUID) error
	ListAnnouncements() ([]*Announcement, error)
}

// ErrReadOnlyTransaction is returned by mutating methods called inside View.
func ErrReadOnlyTransaction(op string) *StoreError {
	return NewInvalidOperationError("mutation in read-only transaction", op)
}
