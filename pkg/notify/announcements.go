package notify

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/internal/validation"
	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/samber/lo"
)

// AnnouncementInput describes an admin broadcast.
type AnnouncementInput struct {
	Title   string                    `validate:"required,max=200"`
	Message string                    `validate:"required,max=5000"`
	Type    metadata.AnnouncementType `validate:"required,oneof=info warning success maintenance"`

	// TargetUserIDs limits delivery. Empty means every user except the
	// sender. Unknown IDs are skipped.
	TargetUserIDs []uuid.UUID
}

// Broadcast records an announcement and fans it out as one notification per
// recipient, all in one transaction. Admin only.
func (s *Service) Broadcast(ctx context.Context, actor access.Actor, input AnnouncementInput) (*metadata.Announcement, error) {
	if !actor.IsAdmin() {
		return nil, metadata.NewPermissionDeniedError("only admins may send announcements", actor.ID.String())
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	var announcement *metadata.Announcement
	err := s.store.Update(ctx, func(tx metadata.Transaction) error {
		recipients, err := resolveTargets(tx, actor.ID, input.TargetUserIDs)
		if err != nil {
			return err
		}

		a := &metadata.Announcement{
			ID:            uuid.New(),
			SenderID:      actor.ID,
			Title:         input.Title,
			Message:       input.Message,
			Type:          input.Type,
			TargetUserIDs: slices.Clone(input.TargetUserIDs),
			CreatedAt:     time.Now(),
		}

		meta := map[string]any{
			"announcementId":   a.ID.String(),
			"announcementType": string(a.Type),
		}
		for _, userID := range recipients {
			if err := Emit(tx, userID, metadata.NotificationAnnouncement, a.Title, a.Message, meta); err != nil {
				return err
			}
		}
		a.NotificationCount = len(recipients)

		if err := tx.CreateAnnouncement(a); err != nil {
			return err
		}
		announcement = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Announcement %s sent to %d users", announcement.ID, announcement.NotificationCount)
	return announcement, nil
}

func resolveTargets(tx metadata.Transaction, senderID uuid.UUID, targets []uuid.UUID) ([]uuid.UUID, error) {
	if len(targets) == 0 {
		users, err := tx.ListUsers()
		if err != nil {
			return nil, err
		}
		ids := lo.FilterMap(users, func(u *metadata.User, _ int) (uuid.UUID, bool) {
			return u.ID, u.ID != senderID
		})
		slices.SortFunc(ids, func(a, b uuid.UUID) int { return cmp.Compare(a.String(), b.String()) })
		return ids, nil
	}

	var ids []uuid.UUID
	for _, id := range lo.Uniq(targets) {
		if _, err := tx.GetUser(id); err != nil {
			if metadata.IsNotFound(err) {
				logger.Debug("Announcement target %s does not exist, skipping", id)
				continue
			}
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListAnnouncements returns every announcement, newest first.
func (s *Service) ListAnnouncements(ctx context.Context) ([]*metadata.Announcement, error) {
	var result []*metadata.Announcement
	err := s.store.View(ctx, func(tx metadata.Transaction) error {
		var err error
		result, err = tx.ListAnnouncements()
		return err
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(result, func(a, b *metadata.Announcement) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return result, nil
}

// DeleteAnnouncement removes an announcement record. Notifications already
// delivered stay with their recipients. Admin only.
func (s *Service) DeleteAnnouncement(ctx context.Context, actor access.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return metadata.NewPermissionDeniedError("only admins may delete announcements", id.String())
	}
	return s.store.Update(ctx, func(tx metadata.Transaction) error {
		return tx.DeleteAnnouncement(id)
	})
}
