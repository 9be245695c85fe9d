package badger

import (
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// ============================================================================
// Notifications
// ============================================================================

func (tx *badgerTx) GetNotification(id uuid.UUID) (*metadata.Notification, error) {
	n, found, err := getJSON[metadata.Notification](tx, keyNotification(id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, metadata.NewNotFoundError("notification", id.String())
	}
	return n, nil
}

func (tx *badgerTx) CreateNotification(n *metadata.Notification) error {
	if err := tx.checkWrite("CreateNotification"); err != nil {
		return err
	}
	if ok, err := tx.exists(keyNotification(n.ID)); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("notification", n.ID.String())
	}
	if err := putJSON(tx, keyNotification(n.ID), n); err != nil {
		return err
	}
	return tx.setMarker(keyNotifyUser(n.UserID, n.ID))
}

func (tx *badgerTx) PutNotification(n *metadata.Notification) error {
	if err := tx.checkWrite("PutNotification"); err != nil {
		return err
	}
	current, err := tx.GetNotification(n.ID)
	if err != nil {
		return err
	}
	if current.UserID != n.UserID {
		if err := tx.del(keyNotifyUser(current.UserID, n.ID)); err != nil {
			return err
		}
		if err := tx.setMarker(keyNotifyUser(n.UserID, n.ID)); err != nil {
			return err
		}
	}
	return putJSON(tx, keyNotification(n.ID), n)
}

func (tx *badgerTx) DeleteNotification(id uuid.UUID) error {
	if err := tx.checkWrite("DeleteNotification"); err != nil {
		return err
	}
	n, err := tx.GetNotification(id)
	if err != nil {
		return err
	}
	if err := tx.del(keyNotifyUser(n.UserID, id)); err != nil {
		return err
	}
	return tx.del(keyNotification(id))
}

func (tx *badgerTx) ListNotifications(userID uuid.UUID) ([]*metadata.Notification, error) {
	ids, err := tx.scanIDs(keyNotifyUserPrefix(userID))
	if err != nil {
		return nil, err
	}
	return loadAll[metadata.Notification](tx, ids, keyNotification)
}

func (tx *badgerTx) DeleteNotificationsBefore(cutoff time.Time) (int, error) {
	if err := tx.checkWrite("DeleteNotificationsBefore"); err != nil {
		return 0, err
	}

	all, err := scanJSON[metadata.Notification](tx, []byte(prefixNotification))
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, n := range all {
		if !n.CreatedAt.Before(cutoff) {
			continue
		}
		if err := tx.del(keyNotifyUser(n.UserID, n.ID)); err != nil {
			return removed, err
		}
		if err := tx.del(keyNotification(n.ID)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// ============================================================================
// Audit log
// ============================================================================

func (tx *badgerTx) AppendAudit(entry *metadata.AuditEntry) error {
	if err := tx.checkWrite("AppendAudit"); err != nil {
		return err
	}
	if ok, err := tx.exists(keyAudit(entry.ID)); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("audit entry", entry.ID.String())
	}
	if err := putJSON(tx, keyAudit(entry.ID), entry); err != nil {
		return err
	}
	if entry.ActorID != nil {
		return tx.setMarker(keyAuditActor(*entry.ActorID, entry.ID))
	}
	return nil
}

func (tx *badgerTx) ListAudit() ([]*metadata.AuditEntry, error) {
	return scanJSON[metadata.AuditEntry](tx, []byte(prefixAudit))
}

func (tx *badgerTx) DeleteAuditBefore(cutoff time.Time) (int, error) {
	if err := tx.checkWrite("DeleteAuditBefore"); err != nil {
		return 0, err
	}

	all, err := tx.ListAudit()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, a := range all {
		if !a.CreatedAt.Before(cutoff) {
			continue
		}
		if a.ActorID != nil {
			if err := tx.del(keyAuditActor(*a.ActorID, a.ID)); err != nil {
				return removed, err
			}
		}
		if err := tx.del(keyAudit(a.ID)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// ============================================================================
// Announcements
// ============================================================================

func (tx *badgerTx) GetAnnouncement(id uuid.UUID) (*metadata.Announcement, error) {
	a, found, err := getJSON[metadata.Announcement](tx, keyAnnouncement(id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, metadata.NewNotFoundError("announcement", id.String())
	}
	return a, nil
}

func (tx *badgerTx) CreateAnnouncement(a *metadata.Announcement) error {
	if err := tx.checkWrite("CreateAnnouncement"); err != nil {
		return err
	}
	if ok, err := tx.exists(keyAnnouncement(a.ID)); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError("announcement", a.ID.String())
	}
	return putJSON(tx, keyAnnouncement(a.ID), a)
}

func (tx *badgerTx) PutAnnouncement(a *metadata.Announcement) error {
	if err := tx.checkWrite("PutAnnouncement"); err != nil {
		return err
	}
	if _, err := tx.GetAnnouncement(a.ID); err != nil {
		return err
	}
	return putJSON(tx, keyAnnouncement(a.ID), a)
}

func (tx *badgerTx) DeleteAnnouncement(id uuid.UUID) error {
	if err := tx.checkWrite("DeleteAnnouncement"); err != nil {
		return err
	}
	if _, err := tx.GetAnnouncement(id); err != nil {
		return err
	}
	return tx.del(keyAnnouncement(id))
}

func (tx *badgerTx) ListAnnouncements() ([]*metadata.Announcement, error) {
	return scanJSON[metadata.Announcement](tx, []byte(prefixAnnouncement))
}
