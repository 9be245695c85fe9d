// Package notify stores per-user notifications and admin announcements.
//
// Engines emit notifications with Emit inside the transaction that performs
// the change, so a share and its "file_shared" notification commit
// together. Everything else goes through Service.
package notify

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/samber/lo"
)

// Emit records a notification for userID inside tx.
func Emit(
	tx metadata.Transaction,
	userID uuid.UUID,
	typ metadata.NotificationType,
	title, message string,
	meta map[string]any,
) error {
	n := &metadata.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		Metadata:  meta,
		CreatedAt: time.Now(),
	}
	if err := tx.CreateNotification(n); err != nil {
		return fmt.Errorf("failed to emit %s notification: %w", typ, err)
	}
	return nil
}

// ListOptions filters a notification listing.
type ListOptions struct {
	UnreadOnly bool

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// Service is the notification API for boundary code.
type Service struct {
	store metadata.MetadataStore
}

// New creates a Service over store.
func New(store metadata.MetadataStore) *Service {
	return &Service{store: store}
}

// Create records a notification in its own transaction.
//
// Failures are logged and returned; callers that treat notifications as
// best effort may ignore the error.
func (s *Service) Create(
	ctx context.Context,
	userID uuid.UUID,
	typ metadata.NotificationType,
	title, message string,
	meta map[string]any,
) error {
	err := s.store.Update(ctx, func(tx metadata.Transaction) error {
		if _, err := tx.GetUser(userID); err != nil {
			return err
		}
		return Emit(tx, userID, typ, title, message, meta)
	})
	if err != nil {
		logger.Warn("Failed to create notification for user %s: %v", userID, err)
	}
	return err
}

// List returns userID's notifications, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]*metadata.Notification, error) {
	var result []*metadata.Notification
	err := s.store.View(ctx, func(tx metadata.Transaction) error {
		all, err := tx.ListNotifications(userID)
		if err != nil {
			return err
		}
		result = all
		return nil
	})
	if err != nil {
		return nil, err
	}

	if opts.UnreadOnly {
		result = lo.Filter(result, func(n *metadata.Notification, _ int) bool { return !n.Read })
	}
	sortNewestFirst(result)
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// CountUnread returns how many of userID's notifications are unread.
func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.store.View(ctx, func(tx metadata.Transaction) error {
		all, err := tx.ListNotifications(userID)
		if err != nil {
			return err
		}
		count = lo.CountBy(all, func(n *metadata.Notification) bool { return !n.Read })
		return nil
	})
	return count, err
}

// owned loads a notification and hides it unless it belongs to userID.
func owned(tx metadata.Transaction, userID, id uuid.UUID) (*metadata.Notification, error) {
	n, err := tx.GetNotification(id)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, metadata.NewNotFoundError("notification", id.String())
	}
	return n, nil
}

// MarkRead marks one of userID's notifications as read.
func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.Update(ctx, func(tx metadata.Transaction) error {
		n, err := owned(tx, userID, id)
		if err != nil {
			return err
		}
		if n.Read {
			return nil
		}
		n.Read = true
		return tx.PutNotification(n)
	})
}

// MarkAllRead marks every unread notification of userID as read and returns
// how many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	var changed int
	err := s.store.Update(ctx, func(tx metadata.Transaction) error {
		changed = 0
		all, err := tx.ListNotifications(userID)
		if err != nil {
			return err
		}
		for _, n := range all {
			if n.Read {
				continue
			}
			n.Read = true
			if err := tx.PutNotification(n); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// Delete removes one of userID's notifications.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.Update(ctx, func(tx metadata.Transaction) error {
		if _, err := owned(tx, userID, id); err != nil {
			return err
		}
		return tx.DeleteNotification(id)
	})
}

// DeleteOlderThan removes every notification older than age and returns how
// many were removed.
func (s *Service) DeleteOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)
	var removed int
	err := s.store.Update(ctx, func(tx metadata.Transaction) error {
		var err error
		removed, err = tx.DeleteNotificationsBefore(cutoff)
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func sortNewestFirst(ns []*metadata.Notification) {
	slices.SortStableFunc(ns, func(a, b *metadata.Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}
