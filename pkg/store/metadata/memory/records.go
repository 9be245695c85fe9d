package memory

import (
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// ============================================================================
// Notifications
// ============================================================================

func (tx *memoryTx) GetNotification(id uuid.UUID) (*metadata.Notification, error) {
	n, ok := tx.store.notifications[id]
	if !ok {
		return nil, metadata.NewNotFoundError("notification", id.String())
	}
	return n.Clone(), nil
}

func (tx *memoryTx) CreateNotification(n *metadata.Notification) error {
	if err := tx.checkWrite("CreateNotification"); err != nil {
		return err
	}
	if _, exists := tx.store.notifications[n.ID]; exists {
		return metadata.NewAlreadyExistsError("notification", n.ID.String())
	}
	setEntry(tx, tx.store.notifications, n.ID, n.Clone())
	return nil
}

func (tx *memoryTx) PutNotification(n *metadata.Notification) error {
	if err := tx.checkWrite("PutNotification"); err != nil {
		return err
	}
	if _, ok := tx.store.notifications[n.ID]; !ok {
		return metadata.NewNotFoundError("notification", n.ID.String())
	}
	setEntry(tx, tx.store.notifications, n.ID, n.Clone())
	return nil
}

func (tx *memoryTx) DeleteNotification(id uuid.UUID) error {
	if err := tx.checkWrite("DeleteNotification"); err != nil {
		return err
	}
	if _, ok := tx.store.notifications[id]; !ok {
		return metadata.NewNotFoundError("notification", id.String())
	}
	deleteEntry(tx, tx.store.notifications, id)
	return nil
}

func (tx *memoryTx) ListNotifications(userID uuid.UUID) ([]*metadata.Notification, error) {
	var out []*metadata.Notification
	for _, n := range tx.store.notifications {
		if n.UserID == userID {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

func (tx *memoryTx) DeleteNotificationsBefore(cutoff time.Time) (int, error) {
	if err := tx.checkWrite("DeleteNotificationsBefore"); err != nil {
		return 0, err
	}
	removed := 0
	for id, n := range tx.store.notifications {
		if n.CreatedAt.Before(cutoff) {
			deleteEntry(tx, tx.store.notifications, id)
			removed++
		}
	}
	return removed, nil
}

// ============================================================================
// Audit log
// ============================================================================

func (tx *memoryTx) AppendAudit(entry *metadata.AuditEntry) error {
	if err := tx.checkWrite("AppendAudit"); err != nil {
		return err
	}
	if _, exists := tx.store.audit[entry.ID]; exists {
		return metadata.NewAlreadyExistsError("audit entry", entry.ID.String())
	}
	setEntry(tx, tx.store.audit, entry.ID, entry.Clone())
	return nil
}

func (tx *memoryTx) ListAudit() ([]*metadata.AuditEntry, error) {
	out := make([]*metadata.AuditEntry, 0, len(tx.store.audit))
	for _, a := range tx.store.audit {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (tx *memoryTx) DeleteAuditBefore(cutoff time.Time) (int, error) {
	if err := tx.checkWrite("DeleteAuditBefore"); err != nil {
		return 0, err
	}
	removed := 0
	for id, a := range tx.store.audit {
		if a.CreatedAt.Before(cutoff) {
			deleteEntry(tx, tx.store.audit, id)
			removed++
		}
	}
	return removed, nil
}

// ============================================================================
// Announcements
// ============================================================================

func (tx *memoryTx) GetAnnouncement(id uuid.UUID) (*metadata.Announcement, error) {
	a, ok := tx.store.announcements[id]
	if !ok {
		return nil, metadata.NewNotFoundError("announcement", id.String())
	}
	return a.Clone(), nil
}

func (tx *memoryTx) CreateAnnouncement(a *metadata.Announcement) error {
	if err := tx.checkWrite("CreateAnnouncement"); err != nil {
		return err
	}
	if _, exists := tx.store.announcements[a.ID]; exists {
		return metadata.NewAlreadyExistsError("announcement", a.ID.String())
	}
	setEntry(tx, tx.store.announcements, a.ID, a.Clone())
	return nil
}

func (tx *memoryTx) PutAnnouncement(a *metadata.Announcement) error {
	if err := tx.checkWrite("PutAnnouncement"); err != nil {
		return err
	}
	if _, ok := tx.store.announcements[a.ID]; !ok {
		return metadata.NewNotFoundError("announcement", a.ID.String())
	}
	setEntry(tx, tx.store.announcements, a.ID, a.Clone())
	return nil
}

func (tx *memoryTx) DeleteAnnouncement(id uuid.UUID) error {
	if err := tx.checkWrite("DeleteAnnouncement"); err != nil {
		return err
	}
	if _, ok := tx.store.announcements[id]; !ok {
		return metadata.NewNotFoundError("announcement", id.String())
	}
	deleteEntry(tx, tx.store.announcements, id)
	return nil
}

func (tx *memoryTx) ListAnnouncements() ([]*metadata.Announcement, error) {
	out := make([]*metadata.Announcement, 0, len(tx.store.announcements))
	for _, a := range tx.store.announcements {
		out = append(out, a.Clone())
	}
	return out, nil
}
