package testing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunUserTests(test *testing.T) {
	test.Run("CreateAndGet", suite.TestUser_CreateAndGet)
	test.Run("UniqueUsernameAndEmail", suite.TestUser_Uniqueness)
	test.Run("PutReindexes", suite.TestUser_PutReindexes)
	test.Run("PutNotFound", suite.TestUser_PutNotFound)
	test.Run("DeleteCascades", suite.TestUser_DeleteCascades)
}

func (suite *StoreTestSuite) TestUser_CreateAndGet(test *testing.T) {
	store := suite.newStore(test)
	alice := newUser("alice")

	mustUpdate(test, store, func(tx metadata.Transaction) error {
		return tx.CreateUser(alice)
	})

	mustView(test, store, func(tx metadata.Transaction) error {
		byID, err := tx.GetUser(alice.ID)
		require.NoError(test, err)
		assert.Equal(test, "alice", byID.Username)
		assert.Equal(test, metadata.RoleBasic, byID.Role)
		assert.Equal(test, metadata.DefaultStorageQuota, byID.StorageQuota)
		assert.WithinDuration(test, alice.CreatedAt, byID.CreatedAt, time.Second)

		byName, err := tx.GetUserByUsername("alice")
		require.NoError(test, err)
		assert.Equal(test, alice.ID, byName.ID)

		byEmail, err := tx.GetUserByEmail("alice@example.com")
		require.NoError(test, err)
		assert.Equal(test, alice.ID, byEmail.ID)

		_, err = tx.GetUser(uuid.New())
		AssertErrorCode(test, metadata.ErrNotFound, err)

		_, err = tx.GetUserByUsername("bob")
		AssertErrorCode(test, metadata.ErrNotFound, err)

		users, err := tx.ListUsers()
		require.NoError(test, err)
		assert.Len(test, users, 1)
		return nil
	})
}

func (suite *StoreTestSuite) TestUser_Uniqueness(test *testing.T) {
	store := suite.newStore(test)
	alice := newUser("alice")
	mustUpdate(test, store, func(tx metadata.Transaction) error { return tx.CreateUser(alice) })

	tests := []struct {
		name string
		user *metadata.User
	}{
		{
			name: "duplicate_username",
			user: func() *metadata.User {
				u := newUser("alice")
				u.Email = "other@example.com"
				return u
			}(),
		},
		{
			name: "duplicate_email",
			user: func() *metadata.User {
				u := newUser("alice2")
				u.Email = "alice@example.com"
				return u
			}(),
		},
	}

	for _, tt := range tests {
		test.Run(tt.name, func(t *testing.T) {
			err := store.Update(t.Context(), func(tx metadata.Transaction) error {
				return tx.CreateUser(tt.user)
			})
			AssertErrorCode(t, metadata.ErrAlreadyExists, err)
		})
	}
}

func (suite *StoreTestSuite) TestUser_PutReindexes(test *testing.T) {
	store := suite.newStore(test)
	alice := newUser("alice")
	bob := newUser("bob")
	mustUpdate(test, store, func(tx metadata.Transaction) error {
		require.NoError(test, tx.CreateUser(alice))
		return tx.CreateUser(bob)
	})

	renamed := alice.Clone()
	renamed.Email = "alice@new.example.com"
	renamed.StorageUsed = 42
	mustUpdate(test, store, func(tx metadata.Transaction) error { return tx.PutUser(renamed) })

	mustView(test, store, func(tx metadata.Transaction) error {
		_, err := tx.GetUserByEmail("alice@example.com")
		AssertErrorCode(test, metadata.ErrNotFound, err)

		u, err := tx.GetUserByEmail("alice@new.example.com")
		require.NoError(test, err)
		assert.Equal(test, int64(42), u.StorageUsed)
		return nil
	})

	// Taking bob's email must fail
	clash := renamed.Clone()
	clash.Email = bob.Email
	err := store.Update(test.Context(), func(tx metadata.Transaction) error { return tx.PutUser(clash) })
	AssertErrorCode(test, metadata.ErrAlreadyExists, err)
}

func (suite *StoreTestSuite) TestUser_PutNotFound(test *testing.T) {
	store := suite.newStore(test)
	err := store.Update(test.Context(), func(tx metadata.Transaction) error {
		return tx.PutUser(newUser("ghost"))
	})
	AssertErrorCode(test, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) TestUser_DeleteCascades(test *testing.T) {
	store := suite.newStore(test)
	alice := newUser("alice")
	bob := newUser("bob")
	carol := newUser("carol")

	aliceFolder := newFolder(alice.ID, uuid.Nil, "Docs")
	aliceFile := newFile(alice.ID, aliceFolder.ID, "a.txt", 10)
	bobFile := newFile(bob.ID, uuid.Nil, "b.txt", 20)

	aliceShares := newGrant(aliceFile, carol.ID, metadata.PermissionRead)
	bobSharesWithAlice := newGrant(bobFile, alice.ID, metadata.PermissionWrite)
	bobSharesWithCarol := newGrant(bobFile, carol.ID, metadata.PermissionRead)

	actor := alice.ID
	entry := &metadata.AuditEntry{ID: uuid.New(), ActorID: &actor, Action: "auth.login", CreatedAt: time.Now().UTC()}
	note := &metadata.Notification{ID: uuid.New(), UserID: alice.ID, Type: metadata.NotificationFileShared, Title: "t", CreatedAt: time.Now().UTC()}

	mustUpdate(test, store, func(tx metadata.Transaction) error {
		for _, u := range []*metadata.User{alice, bob, carol} {
			require.NoError(test, tx.CreateUser(u))
		}
		for _, n := range []*metadata.Node{aliceFolder, aliceFile, bobFile} {
			require.NoError(test, tx.CreateNode(n))
		}
		for _, g := range []*metadata.ShareGrant{aliceShares, bobSharesWithAlice, bobSharesWithCarol} {
			require.NoError(test, tx.CreateGrant(g))
		}
		require.NoError(test, tx.AppendAudit(entry))
		return tx.CreateNotification(note)
	})

	mustUpdate(test, store, func(tx metadata.Transaction) error { return tx.DeleteUser(alice.ID) })

	mustView(test, store, func(tx metadata.Transaction) error {
		_, err := tx.GetUser(alice.ID)
		AssertErrorCode(test, metadata.ErrNotFound, err)
		_, err = tx.GetUserByUsername("alice")
		AssertErrorCode(test, metadata.ErrNotFound, err)

		nodes, err := tx.ListNodesByOwner(alice.ID)
		require.NoError(test, err)
		assert.Empty(test, nodes)

		_, err = tx.GetGrant(aliceShares.ID)
		AssertErrorCode(test, metadata.ErrNotFound, err)
		_, err = tx.GetGrant(bobSharesWithAlice.ID)
		AssertErrorCode(test, metadata.ErrNotFound, err)

		// Unrelated grant survives
		_, err = tx.GetGrant(bobSharesWithCarol.ID)
		require.NoError(test, err)

		notes, err := tx.ListNotifications(alice.ID)
		require.NoError(test, err)
		assert.Empty(test, notes)

		entries, err := tx.ListAudit()
		require.NoError(test, err)
		require.Len(test, entries, 1)
		assert.Nil(test, entries[0].ActorID)
		return nil
	})

	// Username is free again
	mustUpdate(test, store, func(tx metadata.Transaction) error { return tx.CreateUser(newUser("alice")) })
}
