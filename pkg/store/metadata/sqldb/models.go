package sqldb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// Table models. IDs are stored as canonical 36-char strings so the same
// schema works on every dialect; uuid.UUID implements driver.Valuer and
// sql.Scanner.

type userModel struct {
	ID           uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	Username     string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Role         string    `gorm:"type:varchar(16);not null"`
	Subscription string    `gorm:"type:varchar(16);not null"`
	StorageQuota int64     `gorm:"not null"`
	StorageUsed  int64     `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userModel) TableName() string { return "users" }

type nodeModel struct {
	ID         uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	OwnerID    uuid.UUID `gorm:"type:varchar(36);index:idx_nodes_owner_parent,priority:1;not null"`
	ParentID   uuid.UUID `gorm:"type:varchar(36);index:idx_nodes_owner_parent,priority:2;not null"`
	Name       string    `gorm:"type:varchar(255);not null"`
	ContentRef string    `gorm:"type:varchar(255)"`
	Size       int64     `gorm:"not null"`
	MimeType   string    `gorm:"type:varchar(255)"`
	IsFolder   bool      `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (nodeModel) TableName() string { return "nodes" }

type grantModel struct {
	ID          uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	NodeID      uuid.UUID `gorm:"type:varchar(36);uniqueIndex:idx_grants_pair,priority:1;not null"`
	RecipientID uuid.UUID `gorm:"type:varchar(36);uniqueIndex:idx_grants_pair,priority:2;index;not null"`
	OwnerID     uuid.UUID `gorm:"type:varchar(36);index;not null"`
	Permission  string    `gorm:"type:varchar(8);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (grantModel) TableName() string { return "share_grants" }

type notificationModel struct {
	ID        uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	UserID    uuid.UUID `gorm:"type:varchar(36);index;not null"`
	Type      string    `gorm:"type:varchar(32);not null"`
	Title     string    `gorm:"type:varchar(255)"`
	Message   string    `gorm:"type:text"`
	IsRead    bool      `gorm:"column:is_read;not null"`
	Metadata  string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

func (notificationModel) TableName() string { return "notifications" }

type auditModel struct {
	ID        uuid.UUID  `gorm:"type:varchar(36);primaryKey"`
	ActorID   *uuid.UUID `gorm:"type:varchar(36);index"`
	Action    string     `gorm:"type:varchar(64);not null"`
	Detail    string     `gorm:"type:text"`
	Origin    string     `gorm:"type:varchar(64)"`
	CreatedAt time.Time  `gorm:"index"`
}

func (auditModel) TableName() string { return "audit_log" }

type announcementModel struct {
	ID                uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	SenderID          uuid.UUID `gorm:"type:varchar(36);index"`
	Title             string    `gorm:"type:varchar(255)"`
	Message           string    `gorm:"type:text"`
	Type              string    `gorm:"type:varchar(16)"`
	TargetUserIDs     string    `gorm:"type:text"`
	NotificationCount int
	CreatedAt         time.Time
}

func (announcementModel) TableName() string { return "announcements" }

func allModels() []any {
	return []any{
		&userModel{},
		&nodeModel{},
		&grantModel{},
		&notificationModel{},
		&auditModel{},
		&announcementModel{},
	}
}

// ============================================================================
// Conversions
// ============================================================================

func toUserModel(u *metadata.User) *userModel {
	return &userModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Role:         string(u.Role),
		Subscription: string(u.Subscription),
		StorageQuota: u.StorageQuota,
		StorageUsed:  u.StorageUsed,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (m *userModel) toUser() *metadata.User {
	return &metadata.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		Role:         metadata.Role(m.Role),
		Subscription: metadata.Subscription(m.Subscription),
		StorageQuota: m.StorageQuota,
		StorageUsed:  m.StorageUsed,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toNodeModel(n *metadata.Node) *nodeModel {
	return &nodeModel{
		ID:         n.ID,
		OwnerID:    n.OwnerID,
		ParentID:   n.ParentID,
		Name:       n.Name,
		ContentRef: n.ContentRef,
		Size:       n.Size,
		MimeType:   n.MimeType,
		IsFolder:   n.IsFolder,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}

func (m *nodeModel) toNode() *metadata.Node {
	return &metadata.Node{
		ID:         m.ID,
		OwnerID:    m.OwnerID,
		ParentID:   m.ParentID,
		Name:       m.Name,
		ContentRef: m.ContentRef,
		Size:       m.Size,
		MimeType:   m.MimeType,
		IsFolder:   m.IsFolder,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func toGrantModel(g *metadata.ShareGrant) *grantModel {
	return &grantModel{
		ID:          g.ID,
		NodeID:      g.NodeID,
		RecipientID: g.RecipientID,
		OwnerID:     g.OwnerID,
		Permission:  string(g.Permission),
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

func (m *grantModel) toGrant() *metadata.ShareGrant {
	return &metadata.ShareGrant{
		ID:          m.ID,
		NodeID:      m.NodeID,
		RecipientID: m.RecipientID,
		OwnerID:     m.OwnerID,
		Permission:  metadata.Permission(m.Permission),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toNotificationModel(n *metadata.Notification) (*notificationModel, error) {
	var meta string
	if len(n.Metadata) > 0 {
		data, err := json.Marshal(n.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode notification metadata: %w", err)
		}
		meta = string(data)
	}
	return &notificationModel{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.Read,
		Metadata:  meta,
		CreatedAt: n.CreatedAt,
	}, nil
}

func (m *notificationModel) toNotification() (*metadata.Notification, error) {
	n := &metadata.Notification{
		ID:        m.ID,
		UserID:    m.UserID,
		Type:      metadata.NotificationType(m.Type),
		Title:     m.Title,
		Message:   m.Message,
		Read:      m.IsRead,
		CreatedAt: m.CreatedAt,
	}
	if m.Metadata != "" {
		if err := json.Unmarshal([]byte(m.Metadata), &n.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode notification metadata: %w", err)
		}
	}
	return n, nil
}

func toAuditModel(a *metadata.AuditEntry) *auditModel {
	return &auditModel{
		ID:        a.ID,
		ActorID:   a.ActorID,
		Action:    a.Action,
		Detail:    a.Detail,
		Origin:    a.Origin,
		CreatedAt: a.CreatedAt,
	}
}

func (m *auditModel) toAuditEntry() *metadata.AuditEntry {
	return &metadata.AuditEntry{
		ID:        m.ID,
		ActorID:   m.ActorID,
		Action:    m.Action,
		Detail:    m.Detail,
		Origin:    m.Origin,
		CreatedAt: m.CreatedAt,
	}
}

func toAnnouncementModel(a *metadata.Announcement) (*announcementModel, error) {
	targets := "[]"
	if len(a.TargetUserIDs) > 0 {
		data, err := json.Marshal(a.TargetUserIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode announcement targets: %w", err)
		}
		targets = string(data)
	}
	return &announcementModel{
		ID:                a.ID,
		SenderID:          a.SenderID,
		Title:             a.Title,
		Message:           a.Message,
		Type:              string(a.Type),
		TargetUserIDs:     targets,
		NotificationCount: a.NotificationCount,
		CreatedAt:         a.CreatedAt,
	}, nil
}

func (m *announcementModel) toAnnouncement() (*metadata.Announcement, error) {
	a := &metadata.Announcement{
		ID:                m.ID,
		SenderID:          m.SenderID,
		Title:             m.Title,
		Message:           m.Message,
		Type:              metadata.AnnouncementType(m.Type),
		NotificationCount: m.NotificationCount,
		CreatedAt:         m.CreatedAt,
	}
	if m.TargetUserIDs != "" {
		if err := json.Unmarshal([]byte(m.TargetUserIDs), &a.TargetUserIDs); err != nil {
			return nil, fmt.Errorf("failed to decode announcement targets: %w", err)
		}
	}
	if len(a.TargetUserIDs) == 0 {
		a.TargetUserIDs = nil
	}
	return a, nil
}
