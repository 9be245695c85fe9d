package testing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunRecordTests(test *testing.T) {
	test.Run("NotificationLifecycle", suite.TestNotification_Lifecycle)
	test.Run("NotificationPrune", suite.TestNotification_Prune)
	test.Run("AuditAppendAndPrune", suite.TestAudit_AppendAndPrune)
	test.Run("AnnouncementLifecycle", suite.TestAnnouncement_Lifecycle)
}

func (suite *StoreTestSuite) TestNotification_Lifecycle(test *testing.T) {
	store := suite.newStore(test)
	alice := newUser("alice")
	n := &metadata.Notification{
		ID:        uuid.New(),
		UserID:    alice.ID,
		Type:      metadata.NotificationFileShared,
		Title:     "File shared",
		Message:   "bob shared report.pdf",
		Metadata:  map[string]any{"fileId": "abc", "permission": "read"},
		CreatedAt: time.Now().UTC(),
	}

	mustUpdate(test, store, func(tx metadata.Transaction) error {
		require.NoError(test, tx.CreateUser(alice))
		return tx.CreateNotification(n)
	})

	read := n.Clone()
	read.Read = true
	mustUpdate(test, store, func(tx metadata.Transaction) error { return tx.PutNotification(read) })

	mustView(test, store, func(tx metadata.Transaction) error {
		got, err := tx.GetNotification(n.ID)
		require.NoError(test, err)
		assert.True(test, got.Read)
		assert.Equal(test, "abc", got.Metadata["fileId"])
		assert.Equal(test, "read", got.Metadata["permission"])

		list, err := tx.ListNotifications(alice.ID)
		require.NoError(test, err)
		assert.Len(test, list, 1)
		return nil
	})

	mustUpdate(test, store, func(tx metadata.Transaction) error { return tx.DeleteNotification(n.ID) })

	err := store.Update(test.Context(), func(tx metadata.Transaction) error { return tx.DeleteNotification(n.ID) })
	AssertErrorCode(test, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) TestNotification_Prune(test *testing.T) {
	store := suite.newStore(test)
	alice := newUser("alice")
	now := time.Now().UTC()

	old := &metadata.Notification{ID: uuid.New(), UserID: alice.ID, Type: metadata.NotificationAnnouncement, CreatedAt: now.Add(-40 * 24 * time.Hour)}
	fresh := &metadata.Notification{ID: uuid.New(), UserID: alice.ID, Type: metadata.NotificationAnnouncement, CreatedAt: now}

	mustUpdate(test, store, func(tx metadata.Transaction) error {
		require.NoError(test, tx.CreateUser(alice))
		require.NoError(test, tx.CreateNotification(old))
		return tx.CreateNotification(fresh)
	})

	var removed int
	mustUpdate(test, store, func(tx metadata.Transaction) error {
		var err error
		removed, err = tx.DeleteNotificationsBefore(now.Add(-30 * 24 * time.Hour))
		return err
	})
	assert.Equal(test, 1, removed)

	mustView(test, store, func(tx metadata.Transaction) error {
		list, err := tx.ListNotifications(alice.ID)
		require.NoError(test, err)
		require.Len(test, list, 1)
		assert.Equal(test, fresh.ID, list[0].ID)
		return nil
	})
}

func (suite *StoreTestSuite) TestAudit_AppendAndPrune(test *testing.T) {
	store := suite.newStore(test)
	now := time.Now().UTC()
	actor := uuid.New()

	old := &metadata.AuditEntry{ID: uuid.New(), ActorID: &actor, Action: "file.upload", Detail: "a.txt", Origin: "10.0.0.1", CreatedAt: now.Add(-100 * 24 * time.Hour)}
	system := &metadata.AuditEntry{ID: uuid.New(), Action: "admin.gc", Detail: "sweep", CreatedAt: now}

	mustUpdate(test, store, func(tx metadata.Transaction) error {
		require.NoError(test, tx.AppendAudit(old))
		return tx.AppendAudit(system)
	})

	err := store.Update(test.Context(), func(tx metadata.Transaction) error { return tx.AppendAudit(system) })
	AssertErrorCode(test, metadata.ErrAlreadyExists, err)

	mustView(test, store, func(tx metadata.Transaction) error {
		entries, err := tx.ListAudit()
		require.NoError(test, err)
		assert.Len(test, entries, 2)
		return nil
	})

	var removed int
	mustUpdate(test, store, func(tx metadata.Transaction) error {
		var err error
		removed, err = tx.DeleteAuditBefore(now.Add(-90 * 24 * time.Hour))
		return err
	})
	assert.Equal(test, 1, removed)

	mustView(test, store, func(tx metadata.Transaction) error {
		entries, err := tx.ListAudit()
		require.NoError(test, err)
		require.Len(test, entries, 1)
		assert.Nil(test, entries[0].ActorID)
		assert.Equal(test, "admin.gc", entries[0].Action)
		return nil
	})
}

func (suite *StoreTestSuite) TestAnnouncement_Lifecycle(test *testing.T) {
	store := suite.newStore(test)
	target := uuid.New()
	a := &metadata.Announcement{
		ID:            uuid.New(),
		SenderID:      uuid.New(),
		Title:         "Maintenance",
		Message:       "Tonight",
		Type:          metadata.AnnouncementMaintenance,
		TargetUserIDs: []uuid.UUID{target},
		CreatedAt:     time.Now().UTC(),
	}

	mustUpdate(test, store, func(tx metadata.Transaction) error { return tx.CreateAnnouncement(a) })

	counted := a.Clone()
	counted.NotificationCount = 1
	mustUpdate(test, store, func(tx metadata.Transaction) error { return tx.PutAnnouncement(counted) })

	mustView(test, store, func(tx metadata.Transaction) error {
		got, err := tx.GetAnnouncement(a.ID)
		require.NoError(test, err)
		assert.Equal(test, 1, got.NotificationCount)
		assert.Equal(test, []uuid.UUID{target}, got.TargetUserIDs)

		all, err := tx.ListAnnouncements()
		require.NoError(test, err)
		assert.Len(test, all, 1)
		return nil
	})

	mustUpdate(test, store, func(tx metadata.Transaction) error { return tx.DeleteAnnouncement(a.ID) })

	err := store.View(test.Context(), func(tx metadata.Transaction) error {
		_, err := tx.GetAnnouncement(a.ID)
		return err
	})
	AssertErrorCode(test, metadata.ErrNotFound, err)
}
