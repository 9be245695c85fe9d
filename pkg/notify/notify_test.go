package notify_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/notify"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/marmos91/dittodrive/pkg/store/metadata/memory"
	storetest "github.com/marmos91/dittodrive/pkg/store/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedNotification(t *testing.T, store metadata.MetadataStore, userID uuid.UUID, title string, createdAt time.Time, read bool) *metadata.Notification {
	t.Helper()
	n := &metadata.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      metadata.NotificationFileShared,
		Title:     title,
		Read:      read,
		CreatedAt: createdAt,
	}
	require.NoError(t, store.Update(t.Context(), func(tx metadata.Transaction) error {
		return tx.CreateNotification(n)
	}))
	return n
}

func TestService_ListAndCount(t *testing.T) {
	store := memory.NewMemoryMetadataStoreWithDefaults()
	svc := notify.New(store)
	alice := storetest.SeedUser(t, store, "alice", 100)
	bob := storetest.SeedUser(t, store, "bob", 100)

	now := time.Now()
	seedNotification(t, store, alice.ID, "old", now.Add(-2*time.Hour), true)
	seedNotification(t, store, alice.ID, "mid", now.Add(-time.Hour), false)
	seedNotification(t, store, alice.ID, "new", now, false)
	seedNotification(t, store, bob.ID, "bob's", now, false)

	all, err := svc.List(t.Context(), alice.ID, notify.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{all[0].Title, all[1].Title, all[2].Title})

	unread, err := svc.List(t.Context(), alice.ID, notify.ListOptions{UnreadOnly: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "new", unread[0].Title)

	count, err := svc.CountUnread(t.Context(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestService_MarkRead(t *testing.T) {
	store := memory.NewMemoryMetadataStoreWithDefaults()
	svc := notify.New(store)
	alice := storetest.SeedUser(t, store, "alice", 100)
	bob := storetest.SeedUser(t, store, "bob", 100)

	n := seedNotification(t, store, alice.ID, "hello", time.Now(), false)
	seedNotification(t, store, alice.ID, "again", time.Now(), false)

	// Someone else's notification looks missing
	storetest.AssertErrorCode(t, metadata.ErrNotFound, svc.MarkRead(t.Context(), bob.ID, n.ID))
	storetest.AssertErrorCode(t, metadata.ErrNotFound, svc.Delete(t.Context(), bob.ID, n.ID))

	require.NoError(t, svc.MarkRead(t.Context(), alice.ID, n.ID))
	count, err := svc.CountUnread(t.Context(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	changed, err := svc.MarkAllRead(t.Context(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	count, err = svc.CountUnread(t.Context(), alice.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, svc.Delete(t.Context(), alice.ID, n.ID))
	all, err := svc.List(t.Context(), alice.ID, notify.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestService_CreateAndDeleteOlderThan(t *testing.T) {
	store := memory.NewMemoryMetadataStoreWithDefaults()
	svc := notify.New(store)
	alice := storetest.SeedUser(t, store, "alice", 100)

	seedNotification(t, store, alice.ID, "ancient", time.Now().Add(-40*24*time.Hour), false)
	require.NoError(t, svc.Create(t.Context(), alice.ID, metadata.NotificationUploadComplete,
		"Upload complete", "report.pdf uploaded", map[string]any{"fileId": "x"}))

	storetest.AssertErrorCode(t, metadata.ErrNotFound,
		svc.Create(t.Context(), uuid.New(), metadata.NotificationUploadComplete, "t", "m", nil))

	removed, err := svc.DeleteOlderThan(t.Context(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	all, err := svc.List(t.Context(), alice.ID, notify.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "x", all[0].Metadata["fileId"])
}

func TestService_Broadcast(t *testing.T) {
	store := memory.NewMemoryMetadataStoreWithDefaults()
	svc := notify.New(store)
	admin := storetest.SeedAdmin(t, store, "root")
	alice := storetest.SeedUser(t, store, "alice", 100)
	bob := storetest.SeedUser(t, store, "bob", 100)
	adminActor := access.Actor{ID: admin.ID, Role: metadata.RoleAdmin}

	t.Run("non_admin", func(t *testing.T) {
		_, err := svc.Broadcast(t.Context(), access.Actor{ID: alice.ID, Role: metadata.RoleBasic},
			notify.AnnouncementInput{Title: "t", Message: "m", Type: metadata.AnnouncementInfo})
		storetest.AssertErrorCode(t, metadata.ErrPermissionDenied, err)
	})

	t.Run("invalid_type", func(t *testing.T) {
		_, err := svc.Broadcast(t.Context(), adminActor,
			notify.AnnouncementInput{Title: "t", Message: "m", Type: "urgent"})
		storetest.AssertErrorCode(t, metadata.ErrInvalidArgument, err)
	})

	t.Run("everyone_but_sender", func(t *testing.T) {
		a, err := svc.Broadcast(t.Context(), adminActor,
			notify.AnnouncementInput{Title: "Maintenance", Message: "Sunday 2am", Type: metadata.AnnouncementMaintenance})
		require.NoError(t, err)
		assert.Equal(t, 2, a.NotificationCount)

		for _, u := range []*metadata.User{alice, bob} {
			count, err := svc.CountUnread(t.Context(), u.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, count, u.Username)
		}
		count, err := svc.CountUnread(t.Context(), admin.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("targeted_skips_unknown", func(t *testing.T) {
		a, err := svc.Broadcast(t.Context(), adminActor, notify.AnnouncementInput{
			Title: "Hi", Message: "Just you", Type: metadata.AnnouncementInfo,
			TargetUserIDs: []uuid.UUID{bob.ID, bob.ID, uuid.New()},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, a.NotificationCount)

		count, err := svc.CountUnread(t.Context(), bob.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("list_and_delete", func(t *testing.T) {
		list, err := svc.ListAnnouncements(t.Context())
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Hi", list[0].Title)

		storetest.AssertErrorCode(t, metadata.ErrPermissionDenied,
			svc.DeleteAnnouncement(t.Context(), access.Actor{ID: bob.ID, Role: metadata.RoleBasic}, list[0].ID))
		require.NoError(t, svc.DeleteAnnouncement(t.Context(), adminActor, list[0].ID))

		list, err = svc.ListAnnouncements(t.Context())
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}
