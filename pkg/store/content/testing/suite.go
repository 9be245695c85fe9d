// Package testing provides the conformance suite for content.ContentStore
// implementations.
//
// Usage:
//
//	func TestMyContentStore(t *testing.T) {
//	    suite := &storetest.StoreTestSuite{
//	        NewStore: func() content.ContentStore { return mystore.New() },
//	    }
//	    suite.Run(t)
//	}
package testing

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite tests the ContentStore contract, not implementation
// details, so it runs unchanged against memory, filesystem and S3.
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test
	NewStore func() content.ContentStore

	// LargeSize is the payload size used by the large-content test.
	// Backends with multipart thresholds set it above one part.
	LargeSize int
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("DeleteOperations", suite.RunDeleteTests)
	t.Run("GarbageCollection", suite.RunGCTests)
	t.Run("Statistics", suite.RunStatsTests)
}

func (suite *StoreTestSuite) newStore(t *testing.T) content.ContentStore {
	t.Helper()
	store := suite.NewStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// mustWrite stores data and returns its ref.
func mustWrite(t *testing.T, store content.ContentStore, data []byte) string {
	t.Helper()
	ref, size, err := store.WriteContent(t.Context(), bytes.NewReader(data))
	require.NoError(t, err)
	require.NotEmpty(t, ref)
	require.Equal(t, int64(len(data)), size)
	return ref
}

// mustRead returns the full payload for ref.
func mustRead(t *testing.T, store content.ContentStore, ref string) []byte {
	t.Helper()
	reader, err := store.ReadContent(t.Context(), ref)
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	return data
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}

// AssertErrorIs checks that err wraps target.
func AssertErrorIs(t *testing.T, target error, err error) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, target)
}
