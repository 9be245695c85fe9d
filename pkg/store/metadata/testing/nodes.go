package testing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunNodeTests(test *testing.T) {
	test.Run("CreateAndGet", suite.TestNode_CreateAndGet)
	test.Run("ListChildren", suite.TestNode_ListChildren)
	test.Run("PutMovesBetweenParents", suite.TestNode_PutMovesBetweenParents)
	test.Run("DeleteCascadesGrants", suite.TestNode_DeleteCascadesGrants)
	test.Run("ListContentRefs", suite.TestNode_ListContentRefs)
}

func (suite *StoreTestSuite) TestNode_CreateAndGet(test *testing.T) {
	store := suite.newStore(test)
	alice := newUser("alice")
	file := newFile(alice.ID, uuid.Nil, "report.pdf", 1234)

	mustUpdate(test, store, func(tx metadata.Transaction) error {
		require.NoError(test, tx.CreateUser(alice))
		return tx.CreateNode(file)
	})

	mustView(test, store, func(tx metadata.Transaction) error {
		got, err := tx.GetNode(file.ID)
		require.NoError(test, err)
		assert.Equal(test, "report.pdf", got.Name)
		assert.Equal(test, int64(1234), got.Size)
		assert.Equal(test, file.ContentRef, got.ContentRef)
		assert.Equal(test, uuid.Nil, got.ParentID)
		assert.True(test, got.IsRoot())
		assert.False(test, got.IsFolder)

		_, err = tx.GetNode(uuid.New())
		AssertErrorCode(test, metadata.ErrNotFound, err)
		return nil
	})

	err := store.Update(test.Context(), func(tx metadata.Transaction) error {
		return tx.CreateNode(file)
	})
	AssertErrorCode(test, metadata.ErrAlreadyExists, err)
}

func (suite *StoreTestSuite) TestNode_ListChildren(test *testing.T) {
	store := suite.newStore(test)
	alice := newUser("alice")
	bob := newUser("bob")

	docs := newFolder(alice.ID, uuid.Nil, "Docs")
	rootFile := newFile(alice.ID, uuid.Nil, "top.txt", 1)
	nested := newFile(alice.ID, docs.ID, "inner.txt", 2)
	bobRoot := newFile(bob.ID, uuid.Nil, "bob.txt", 3)

	mustUpdate(test, store, func(tx metadata.Transaction) error {
		require.NoError(test, tx.CreateUser(alice))
		require.NoError(test, tx.CreateUser(bob))
		for _, n := range []*metadata.Node{docs, rootFile, nested, bobRoot} {
			require.NoError(test, tx.CreateNode(n))
		}
		return nil
	})

	mustView(test, store, func(tx metadata.Transaction) error {
		root, err := tx.ListChildren(alice.ID, uuid.Nil)
		require.NoError(test, err)
		assert.ElementsMatch(test, []string{"Docs", "top.txt"}, names(root))

		inside, err := tx.ListChildren(alice.ID, docs.ID)
		require.NoError(test, err)
		assert.ElementsMatch(test, []string{"inner.txt"}, names(inside))

		bobs, err := tx.ListChildren(bob.ID, uuid.Nil)
		require.NoError(test, err)
		assert.ElementsMatch(test, []string{"bob.txt"}, names(bobs))

		owned, err := tx.ListNodesByOwner(alice.ID)
		require.NoError(test, err)
		assert.Len(test, owned, 3)
		return nil
	})
}

func (suite *StoreTestSuite) TestNode_PutMovesBetweenParents(test *testing.T) {
	store := suite.newStore(test)
	alice := newUser("alice")
	a := newFolder(alice.ID, uuid.Nil, "A")
	b := newFolder(alice.ID, uuid.Nil, "B")
	file := newFile(alice.ID, a.ID, "f.txt", 5)

	mustUpdate(test, store, func(tx metadata.Transaction) error {
		require.NoError(test, tx.CreateUser(alice))
		for _, n := range []*metadata.Node{a, b, file} {
			require.NoError(test, tx.CreateNode(n))
		}
		return nil
	})

	moved := file.Clone()
	moved.ParentID = b.ID
	moved.Name = "g.txt"
	mustUpdate(test, store, func(tx metadata.Transaction) error { return tx.PutNode(moved) })

	mustView(test, store, func(tx metadata.Transaction) error {
		inA, err := tx.ListChildren(alice.ID, a.ID)
		require.NoError(test, err)
		assert.Empty(test, inA)

		inB, err := tx.ListChildren(alice.ID, b.ID)
		require.NoError(test, err)
		assert.Equal(test, []string{"g.txt"}, names(inB))
		return nil
	})

	err := store.Update(test.Context(), func(tx metadata.Transaction) error {
		return tx.PutNode(newFile(alice.ID, uuid.Nil, "missing", 1))
	})
	AssertErrorCode(test, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) TestNode_DeleteCascadesGrants(test *testing.T) {
	store := suite.newStore(test)
	alice := newUser("alice")
	bob := newUser("bob")
	file := newFile(alice.ID, uuid.Nil, "shared.txt", 5)
	other := newFile(alice.ID, uuid.Nil, "other.txt", 5)
	grant := newGrant(file, bob.ID, metadata.PermissionRead)
	keep := newGrant(other, bob.ID, metadata.PermissionRead)

	mustUpdate(test, store, func(tx metadata.Transaction) error {
		require.NoError(test, tx.CreateUser(alice))
		require.NoError(test, tx.CreateUser(bob))
		require.NoError(test, tx.CreateNode(file))
		require.NoError(test, tx.CreateNode(other))
		require.NoError(test, tx.CreateGrant(grant))
		return tx.CreateGrant(keep)
	})

	mustUpdate(test, store, func(tx metadata.Transaction) error { return tx.DeleteNode(file.ID) })

	mustView(test, store, func(tx metadata.Transaction) error {
		_, err := tx.GetNode(file.ID)
		AssertErrorCode(test, metadata.ErrNotFound, err)

		_, err = tx.GetGrant(grant.ID)
		AssertErrorCode(test, metadata.ErrNotFound, err)
		_, err = tx.FindGrant(file.ID, bob.ID)
		AssertErrorCode(test, metadata.ErrNotFound, err)

		received, err := tx.ListGrantsByRecipient(bob.ID)
		require.NoError(test, err)
		require.Len(test, received, 1)
		assert.Equal(test, keep.ID, received[0].ID)
		return nil
	})

	err := store.Update(test.Context(), func(tx metadata.Transaction) error { return tx.DeleteNode(file.ID) })
	AssertErrorCode(test, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) TestNode_ListContentRefs(test *testing.T) {
	store := suite.newStore(test)
	alice := newUser("alice")
	folder := newFolder(alice.ID, uuid.Nil, "F")
	f1 := newFile(alice.ID, folder.ID, "1", 1)
	f2 := newFile(alice.ID, uuid.Nil, "2", 2)

	mustUpdate(test, store, func(tx metadata.Transaction) error {
		require.NoError(test, tx.CreateUser(alice))
		for _, n := range []*metadata.Node{folder, f1, f2} {
			require.NoError(test, tx.CreateNode(n))
		}
		return nil
	})

	mustView(test, store, func(tx metadata.Transaction) error {
		refs, err := tx.ListContentRefs()
		require.NoError(test, err)
		assert.ElementsMatch(test, []string{f1.ContentRef, f2.ContentRef}, refs)
		return nil
	})
}

func names(nodes []*metadata.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}
