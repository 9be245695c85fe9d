package metadata

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// DefaultStorageQuota is the quota assigned to new accounts (100 MiB).
const DefaultStorageQuota int64 = 104857600

// ============================================================================
// Enumerations
// ============================================================================

// Role is the account role supplied by the auth collaborator.
type Role string

const (
	RoleAdmin   Role = "admin"
	RolePremium Role = "premium"
	RoleBasic   Role = "basic"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePremium, RoleBasic:
		return true
	}
	return false
}

// Subscription is the billing tier of an account.
type Subscription string

const (
	SubscriptionFree       Subscription = "free"
	SubscriptionPremium    Subscription = "premium"
	SubscriptionEnterprise Subscription = "enterprise"
)

// Valid reports whether s is a known subscription tier.
func (s Subscription) Valid() bool {
	switch s {
	case SubscriptionFree, SubscriptionPremium, SubscriptionEnterprise:
		return true
	}
	return false
}

// Permission is the level of delegated access carried by a ShareGrant.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// Valid reports whether p is read or write.
func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionWrite
}

// Satisfies reports whether holding p is enough for an operation requiring required.
func (p Permission) Satisfies(required Permission) bool {
	if required == PermissionWrite {
		return p == PermissionWrite
	}
	return p.Valid()
}

// NotificationType tags the event that produced a notification.
type NotificationType string

const (
	NotificationFileShared        NotificationType = "file_shared"
	NotificationPermissionChanged NotificationType = "permission_changed"
	NotificationShareRevoked      NotificationType = "share_revoked"
	NotificationUploadComplete    NotificationType = "upload_complete"
	NotificationAnnouncement      NotificationType = "announcement"
)

// AnnouncementType is the severity/kind of an admin broadcast.
type AnnouncementType string

const (
	AnnouncementInfo        AnnouncementType = "info"
	AnnouncementWarning     AnnouncementType = "warning"
	AnnouncementSuccess     AnnouncementType = "success"
	AnnouncementMaintenance AnnouncementType = "maintenance"
)

// Valid reports whether t is a known announcement type.
func (t AnnouncementType) Valid() bool {
	switch t {
	case AnnouncementInfo, AnnouncementWarning, AnnouncementSuccess, AnnouncementMaintenance:
		return true
	}
	return false
}

// ============================================================================
// Entities
// ============================================================================

// User is an account owning a private hierarchy of nodes.
//
// StorageUsed is denormalized: it must always equal the sum of Size over the
// non-folder nodes owned by the user. Only the quota ledger mutates it.
type User struct {
	ID           uuid.UUID    `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	Role         Role         `json:"role"`
	Subscription Subscription `json:"subscription"`
	StorageQuota int64        `json:"storage_quota"`
	StorageUsed  int64        `json:"storage_used"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Clone returns a copy of the user.
func (u *User) Clone() *User {
	c := *u
	return &c
}

// Node is a file or folder.
//
// ParentID == uuid.Nil places the node at the owner's root. Every ancestor
// is a folder owned by OwnerID. ContentRef and Size are only meaningful
// for files.
type Node struct {
	ID         uuid.UUID `json:"id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Name       string    `json:"name"`
	ContentRef string    `json:"content_ref,omitempty"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type,omitempty"`
	IsFolder   bool      `json:"is_folder"`
	ParentID   uuid.UUID `json:"parent_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Clone returns a copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	return &c
}

// IsRoot reports whether the node sits directly at its owner's root.
func (n *Node) IsRoot() bool {
	return n.ParentID == uuid.Nil
}

// ShareGrant gives RecipientID delegated access to a node owned by OwnerID.
// At most one grant exists per (NodeID, RecipientID).
type ShareGrant struct {
	ID          uuid.UUID  `json:"id"`
	NodeID      uuid.UUID  `json:"node_id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	RecipientID uuid.UUID  `json:"recipient_id"`
	Permission  Permission `json:"permission"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Clone returns a copy of the grant.
func (g *ShareGrant) Clone() *ShareGrant {
	c := *g
	return &c
}

// Notification is a message addressed to a single user.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Clone returns a copy of the notification, including its metadata map.
func (n *Notification) Clone() *Notification {
	c := *n
	if n.Metadata != nil {
		c.Metadata = maps.Clone(n.Metadata)
	}
	return &c
}

// AuditEntry is an append-only activity record.
// A nil ActorID denotes a system-originated action (or a deleted actor).
type AuditEntry struct {
	ID        uuid.UUID  `json:"id"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty"`
	Action    string     `json:"action"`
	Detail    string     `json:"detail"`
	Origin    string     `json:"origin"`
	CreatedAt time.Time  `json:"created_at"`
}

// Clone returns a copy of the entry.
func (a *AuditEntry) Clone() *AuditEntry {
	c := *a
	if a.ActorID != nil {
		id := *a.ActorID
		c.ActorID = &id
	}
	return &c
}

// Announcement is an admin broadcast fanned out as notifications.
// An empty TargetUserIDs addresses every user except the sender.
type Announcement struct {
	ID                uuid.UUID        `json:"id"`
	SenderID          uuid.UUID        `json:"sender_id"`
	Title             string           `json:"title"`
	Message           string           `json:"message"`
	Type              AnnouncementType `json:"type"`
	TargetUserIDs     []uuid.UUID      `json:"target_user_ids,omitempty"`
	NotificationCount int              `json:"notification_count"`
	CreatedAt         time.Time        `json:"created_at"`
}

// Clone returns a copy of the announcement.
func (a *Announcement) Clone() *Announcement {
	c := *a
	c.TargetUserIDs = slices.Clone(a.TargetUserIDs)
	return &c
}
