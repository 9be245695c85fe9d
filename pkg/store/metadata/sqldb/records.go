package sqldb

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// ============================================================================
// Notifications
// ============================================================================

func (tx *sqlTx) GetNotification(id uuid.UUID) (*metadata.Notification, error) {
	var m notificationModel
	found, err := tx.first(&m, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, metadata.NewNotFoundError("notification", id.String())
	}
	return m.toNotification()
}

func (tx *sqlTx) CreateNotification(n *metadata.Notification) error {
	if err := tx.checkWrite("CreateNotification"); err != nil {
		return err
	}
	if ok, err := tx.exists(&notificationModel{}, "id = ?", n.ID); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("notification", n.ID.String())
	}
	m, err := toNotificationModel(n)
	if err != nil {
		return err
	}
	if err := tx.db.Create(m).Error; err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (tx *sqlTx) PutNotification(n *metadata.Notification) error {
	if err := tx.checkWrite("PutNotification"); err != nil {
		return err
	}
	if _, err := tx.GetNotification(n.ID); err != nil {
		return err
	}
	m, err := toNotificationModel(n)
	if err != nil {
		return err
	}
	if err := tx.db.Save(m).Error; err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return nil
}

func (tx *sqlTx) DeleteNotification(id uuid.UUID) error {
	if err := tx.checkWrite("DeleteNotification"); err != nil {
		return err
	}
	res := tx.db.Where("id = ?", id).Delete(&notificationModel{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return metadata.NewNotFoundError("notification", id.String())
	}
	return nil
}

func (tx *sqlTx) ListNotifications(userID uuid.UUID) ([]*metadata.Notification, error) {
	var rows []notificationModel
	if err := tx.db.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	out := make([]*metadata.Notification, 0, len(rows))
	for i := range rows {
		n, err := rows[i].toNotification()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (tx *sqlTx) DeleteNotificationsBefore(cutoff time.Time) (int, error) {
	if err := tx.checkWrite("DeleteNotificationsBefore"); err != nil {
		return 0, err
	}
	res := tx.db.Where("created_at < ?", cutoff).Delete(&notificationModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune notifications: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// ============================================================================
// Audit log
// ============================================================================

func (tx *sqlTx) AppendAudit(entry *metadata.AuditEntry) error {
	if err := tx.checkWrite("AppendAudit"); err != nil {
		return err
	}
	if ok, err := tx.exists(&auditModel{}, "id = ?", entry.ID); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("audit entry", entry.ID.String())
	}
	if err := tx.db.Create(toAuditModel(entry)).Error; err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func (tx *sqlTx) ListAudit() ([]*metadata.AuditEntry, error) {
	var rows []auditModel
	if err := tx.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	out := make([]*metadata.AuditEntry, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toAuditEntry())
	}
	return out, nil
}

func (tx *sqlTx) DeleteAuditBefore(cutoff time.Time) (int, error) {
	if err := tx.checkWrite("DeleteAuditBefore"); err != nil {
		return 0, err
	}
	res := tx.db.Where("created_at < ?", cutoff).Delete(&auditModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune audit log: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// ============================================================================
// Announcements
// ============================================================================

func (tx *sqlTx) GetAnnouncement(id uuid.UUID) (*metadata.Announcement, error) {
	var m announcementModel
	found, err := tx.first(&m, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, metadata.NewNotFoundError("announcement", id.String())
	}
	return m.toAnnouncement()
}

func (tx *sqlTx) CreateAnnouncement(a *metadata.Announcement) error {
	if err := tx.checkWrite("CreateAnnouncement"); err != nil {
		return err
	}
	if ok, err := tx.exists(&announcementModel{}, "id = ?", a.ID); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("announcement", a.ID.String())
	}
	m, err := toAnnouncementModel(a)
	if err != nil {
		return err
	}
	if err := tx.db.Create(m).Error; err != nil {
		return fmt.Errorf("failed to insert announcement: %w", err)
	}
	return nil
}

func (tx *sqlTx) PutAnnouncement(a *metadata.Announcement) error {
	if err := tx.checkWrite("PutAnnouncement"); err != nil {
		return err
	}
	if _, err := tx.GetAnnouncement(a.ID); err != nil {
		return err
	}
	m, err := toAnnouncementModel(a)
	if err != nil {
		return err
	}
	if err := tx.db.Save(m).Error; err != nil {
		return fmt.Errorf("failed to update announcement: %w", err)
	}
	return nil
}

func (tx *sqlTx) DeleteAnnouncement(id uuid.UUID) error {
	if err := tx.checkWrite("DeleteAnnouncement"); err != nil {
		return err
	}
	res := tx.db.Where("id = ?", id).Delete(&announcementModel{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete announcement: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return metadata.NewNotFoundError("announcement", id.String())
	}
	return nil
}

func (tx *sqlTx) ListAnnouncements() ([]*metadata.Announcement, error) {
	var rows []announcementModel
	if err := tx.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	out := make([]*metadata.Announcement, 0, len(rows))
	for i := range rows {
		a, err := rows[i].toAnnouncement()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
