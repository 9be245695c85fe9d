package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStatsTests covers GetStorageStats.
func (suite *StoreTestSuite) RunStatsTests(t *testing.T) {
	t.Run("Empty", suite.testStatsEmpty)
	t.Run("AfterWritesAndDeletes", suite.testStatsTracksContent)
}

func (suite *StoreTestSuite) testStatsEmpty(t *testing.T) {
	store := suite.newStore(t)

	stats, err := store.GetStorageStats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.ContentCount)
	assert.Equal(t, int64(0), stats.UsedSize)
	assert.Equal(t, int64(0), stats.AverageSize)
}

func (suite *StoreTestSuite) testStatsTracksContent(t *testing.T) {
	store := suite.newStore(t)

	mustWrite(t, store, make([]byte, 100))
	gone := mustWrite(t, store, make([]byte, 300))
	mustWrite(t, store, make([]byte, 200))
	require.NoError(t, store.Delete(t.Context(), gone))

	stats, err := store.GetStorageStats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ContentCount)
	assert.Equal(t, int64(300), stats.UsedSize)
	assert.Equal(t, int64(150), stats.AverageSize)
}
