package badger_test

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/marmos91/dittodrive/pkg/store/metadata/badger"
	storetest "github.com/marmos91/dittodrive/pkg/store/metadata/testing"
	"github.com/stretchr/testify/require"
)

func TestBadgerMetadataStore(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func() metadata.MetadataStore {
			store, err := badger.NewBadgerMetadataStore(t.Context(), badger.BadgerMetadataStoreConfig{
				InMemory:           true,
				MaxConflictRetries: 100,
			})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestBadgerMetadataStore_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "meta")
	cfg := badger.BadgerMetadataStoreConfig{DBPath: dir}

	store, err := badger.NewBadgerMetadataStore(t.Context(), cfg)
	require.NoError(t, err)

	user := &metadata.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com", Role: metadata.RoleBasic}
	require.NoError(t, store.Update(t.Context(), func(tx metadata.Transaction) error {
		return tx.CreateUser(user)
	}))
	require.NoError(t, store.Close())

	reopened, err := badger.NewBadgerMetadataStore(t.Context(), cfg)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	require.NoError(t, reopened.View(t.Context(), func(tx metadata.Transaction) error {
		got, err := tx.GetUserByUsername("alice")
		if err != nil {
			return err
		}
		require.Equal(t, user.ID, got.ID)
		return nil
	}))
}

func TestBadgerMetadataStore_RequiresPath(t *testing.T) {
	_, err := badger.NewBadgerMetadataStore(t.Context(), badger.BadgerMetadataStoreConfig{})
	require.Error(t, err)
}
