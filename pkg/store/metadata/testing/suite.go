// Package testing provides a conformance suite that every
// metadata.MetadataStore backend must pass.
//
// Backends wire it from their own _test.go file:
//
//	func TestMemoryStore(t *testing.T) {
//	    suite := &storetest.StoreTestSuite{
//	        NewStore: func() metadata.MetadataStore { return memory.NewMemoryMetadataStoreWithDefaults() },
//	    }
//	    suite.Run(t)
//	}
package testing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite runs the shared behavioral tests against one backend.
type StoreTestSuite struct {
	// NewStore returns a fresh, empty store for each test
	NewStore func() metadata.MetadataStore
}

// Run executes every group of the suite as subtests.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Users", suite.RunUserTests)
	t.Run("Nodes", suite.RunNodeTests)
	t.Run("Grants", suite.RunGrantTests)
	t.Run("Records", suite.RunRecordTests)
	t.Run("Transactions", suite.RunTransactionTests)
}

// newStore builds a store and closes it when the test ends.
func (suite *StoreTestSuite) newStore(t *testing.T) metadata.MetadataStore {
	t.Helper()
	store := suite.NewStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// ============================================================================
// Fixtures
// ============================================================================

func newUser(username string) *metadata.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &metadata.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		Role:         metadata.RoleBasic,
		Subscription: metadata.SubscriptionFree,
		StorageQuota: metadata.DefaultStorageQuota,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func newFolder(owner uuid.UUID, parent uuid.UUID, name string) *metadata.Node {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &metadata.Node{
		ID:        uuid.New(),
		OwnerID:   owner,
		ParentID:  parent,
		Name:      name,
		IsFolder:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newFile(owner uuid.UUID, parent uuid.UUID, name string, size int64) *metadata.Node {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &metadata.Node{
		ID:         uuid.New(),
		OwnerID:    owner,
		ParentID:   parent,
		Name:       name,
		Size:       size,
		MimeType:   "application/octet-stream",
		ContentRef: "ref-" + uuid.NewString(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func newGrant(node *metadata.Node, recipient uuid.UUID, perm metadata.Permission) *metadata.ShareGrant {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &metadata.ShareGrant{
		ID:          uuid.New(),
		NodeID:      node.ID,
		OwnerID:     node.OwnerID,
		RecipientID: recipient,
		Permission:  perm,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// mustUpdate runs fn in an update transaction and fails the test on error.
func mustUpdate(t *testing.T, store metadata.MetadataStore, fn func(tx metadata.Transaction) error) {
	t.Helper()
	require.NoError(t, store.Update(context.Background(), fn))
}

// mustView runs fn in a read transaction and fails the test on error.
func mustView(t *testing.T, store metadata.MetadataStore, fn func(tx metadata.Transaction) error) {
	t.Helper()
	require.NoError(t, store.View(context.Background(), fn))
}

// AssertErrorCode checks that err is a StoreError with the expected code.
func AssertErrorCode(t *testing.T, expected metadata.ErrorCode, err error, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	code, ok := metadata.CodeOf(err)
	require.True(t, ok, "expected StoreError, got %T: %v", err, err)
	require.Equal(t, expected, code, msgAndArgs...)
}
