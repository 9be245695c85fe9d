package testing

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests covers write, read, size and existence checks.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("WriteAndRead", suite.testWriteAndRead)
	t.Run("WriteEmpty", suite.testWriteEmpty)
	t.Run("WriteLarge", suite.testWriteLarge)
	t.Run("RefsAreUnique", suite.testRefsAreUnique)
	t.Run("ReadNotFound", suite.testReadNotFound)
	t.Run("SizeAndExists", suite.testSizeAndExists)
	t.Run("WriteReaderError", suite.testWriteReaderError)
}

func (suite *StoreTestSuite) testWriteAndRead(t *testing.T) {
	store := suite.newStore(t)
	data := []byte("Hello, World!")

	ref := mustWrite(t, store, data)
	assert.Equal(t, data, mustRead(t, store, ref))
}

func (suite *StoreTestSuite) testWriteEmpty(t *testing.T) {
	store := suite.newStore(t)

	ref := mustWrite(t, store, []byte{})
	assert.Empty(t, mustRead(t, store, ref))

	size, err := store.GetContentSize(t.Context(), ref)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func (suite *StoreTestSuite) testWriteLarge(t *testing.T) {
	size := suite.LargeSize
	if size == 0 {
		size = 1 << 20
	}
	store := suite.newStore(t)
	data := randomBytes(t, size)

	ref := mustWrite(t, store, data)
	assert.Equal(t, data, mustRead(t, store, ref))
}

func (suite *StoreTestSuite) testRefsAreUnique(t *testing.T) {
	store := suite.newStore(t)
	data := []byte("same bytes")

	a := mustWrite(t, store, data)
	b := mustWrite(t, store, data)
	assert.NotEqual(t, a, b)
}

func (suite *StoreTestSuite) testReadNotFound(t *testing.T) {
	store := suite.newStore(t)

	for _, ref := range []string{uuid.NewString(), "../../etc/passwd", ""} {
		_, err := store.ReadContent(t.Context(), ref)
		AssertErrorIs(t, content.ErrContentNotFound, err)

		_, err = store.GetContentSize(t.Context(), ref)
		AssertErrorIs(t, content.ErrContentNotFound, err)

		exists, err := store.ContentExists(t.Context(), ref)
		require.NoError(t, err)
		assert.False(t, exists)
	}
}

func (suite *StoreTestSuite) testSizeAndExists(t *testing.T) {
	store := suite.newStore(t)
	ref := mustWrite(t, store, []byte("12345"))

	size, err := store.GetContentSize(t.Context(), ref)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	exists, err := store.ContentExists(t.Context(), ref)
	require.NoError(t, err)
	assert.True(t, exists)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func (suite *StoreTestSuite) testWriteReaderError(t *testing.T) {
	store := suite.newStore(t)

	_, _, err := store.WriteContent(t.Context(), failingReader{})
	require.Error(t, err)

	if gc, ok := store.(content.GarbageCollectableStore); ok {
		refs, err := gc.ListAllContent(t.Context())
		require.NoError(t, err)
		assert.Empty(t, refs, "failed write must not leave a payload behind")
	}
}
