package testing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDeleteTests covers single payload deletion.
func (suite *StoreTestSuite) RunDeleteTests(t *testing.T) {
	t.Run("Delete", suite.testDelete)
	t.Run("DeleteIsIdempotent", suite.testDeleteIdempotent)
	t.Run("DeleteLeavesOthers", suite.testDeleteLeavesOthers)
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	store := suite.newStore(t)
	ref := mustWrite(t, store, []byte("bye"))

	require.NoError(t, store.Delete(t.Context(), ref))

	_, err := store.ReadContent(t.Context(), ref)
	AssertErrorIs(t, content.ErrContentNotFound, err)
}

func (suite *StoreTestSuite) testDeleteIdempotent(t *testing.T) {
	store := suite.newStore(t)
	ref := mustWrite(t, store, []byte("bye"))

	require.NoError(t, store.Delete(t.Context(), ref))
	require.NoError(t, store.Delete(t.Context(), ref))
	require.NoError(t, store.Delete(t.Context(), uuid.NewString()))
}

func (suite *StoreTestSuite) testDeleteLeavesOthers(t *testing.T) {
	store := suite.newStore(t)
	gone := mustWrite(t, store, []byte("gone"))
	kept := mustWrite(t, store, []byte("kept"))

	require.NoError(t, store.Delete(t.Context(), gone))
	assert.Equal(t, []byte("kept"), mustRead(t, store, kept))
}
