package testing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunGCTests covers GarbageCollectableStore. Skipped for stores that do
// not implement it.
func (suite *StoreTestSuite) RunGCTests(t *testing.T) {
	t.Run("ListAllContent", suite.testListAllContent)
	t.Run("DeleteBatch", suite.testDeleteBatch)
	t.Run("DeleteBatchCancelled", suite.testDeleteBatchCancelled)
}

func (suite *StoreTestSuite) gcStore(t *testing.T) content.GarbageCollectableStore {
	t.Helper()
	gc, ok := suite.newStore(t).(content.GarbageCollectableStore)
	if !ok {
		t.Skip("store does not implement GarbageCollectableStore")
	}
	return gc
}

func (suite *StoreTestSuite) testListAllContent(t *testing.T) {
	store := suite.gcStore(t)

	refs, err := store.ListAllContent(t.Context())
	require.NoError(t, err)
	assert.Empty(t, refs)

	a := mustWrite(t, store, []byte("a"))
	b := mustWrite(t, store, []byte("b"))

	refs, err = store.ListAllContent(t.Context())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, refs)
}

func (suite *StoreTestSuite) testDeleteBatch(t *testing.T) {
	store := suite.gcStore(t)

	a := mustWrite(t, store, []byte("a"))
	b := mustWrite(t, store, []byte("b"))
	c := mustWrite(t, store, []byte("c"))

	failures, err := store.DeleteBatch(t.Context(), []string{a, b, uuid.NewString()})
	require.NoError(t, err)
	assert.Empty(t, failures)

	refs, err := store.ListAllContent(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{c}, refs)
}

func (suite *StoreTestSuite) testDeleteBatchCancelled(t *testing.T) {
	store := suite.gcStore(t)
	a := mustWrite(t, store, []byte("a"))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	failures, err := store.DeleteBatch(ctx, []string{a})
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, failures, a)

	exists, err := store.ContentExists(t.Context(), a)
	require.NoError(t, err)
	assert.True(t, exists)
}
