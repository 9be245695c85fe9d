package testing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunGrantTests(test *testing.T) {
	test.Run("PairIsUnique", suite.TestGrant_PairIsUnique)
	test.Run("PutUpdatesPermission", suite.TestGrant_PutUpdatesPermission)
	test.Run("Listings", suite.TestGrant_Listings)
	test.Run("DeleteNotFound", suite.TestGrant_DeleteNotFound)
}

type grantFixture struct {
	alice, bob, carol *metadata.User
	f1, f2            *metadata.Node
}

func (suite *StoreTestSuite) seedGrantFixture(test *testing.T, store metadata.MetadataStore) grantFixture {
	fx := grantFixture{
		alice: newUser("alice"),
		bob:   newUser("bob"),
		carol: newUser("carol"),
	}
	fx.f1 = newFile(fx.alice.ID, uuid.Nil, "one.txt", 1)
	fx.f2 = newFile(fx.alice.ID, uuid.Nil, "two.txt", 2)

	mustUpdate(test, store, func(tx metadata.Transaction) error {
		for _, u := range []*metadata.User{fx.alice, fx.bob, fx.carol} {
			require.NoError(test, tx.CreateUser(u))
		}
		require.NoError(test, tx.CreateNode(fx.f1))
		return tx.CreateNode(fx.f2)
	})
	return fx
}

func (suite *StoreTestSuite) TestGrant_PairIsUnique(test *testing.T) {
	store := suite.newStore(test)
	fx := suite.seedGrantFixture(test, store)

	mustUpdate(test, store, func(tx metadata.Transaction) error {
		return tx.CreateGrant(newGrant(fx.f1, fx.bob.ID, metadata.PermissionRead))
	})

	err := store.Update(test.Context(), func(tx metadata.Transaction) error {
		return tx.CreateGrant(newGrant(fx.f1, fx.bob.ID, metadata.PermissionWrite))
	})
	AssertErrorCode(test, metadata.ErrAlreadyExists, err)

	mustView(test, store, func(tx metadata.Transaction) error {
		grants, err := tx.ListGrantsByNode(fx.f1.ID)
		require.NoError(test, err)
		require.Len(test, grants, 1)
		assert.Equal(test, metadata.PermissionRead, grants[0].Permission)
		return nil
	})
}

func (suite *StoreTestSuite) TestGrant_PutUpdatesPermission(test *testing.T) {
	store := suite.newStore(test)
	fx := suite.seedGrantFixture(test, store)
	grant := newGrant(fx.f1, fx.bob.ID, metadata.PermissionRead)

	mustUpdate(test, store, func(tx metadata.Transaction) error { return tx.CreateGrant(grant) })

	updated := grant.Clone()
	updated.Permission = metadata.PermissionWrite
	mustUpdate(test, store, func(tx metadata.Transaction) error { return tx.PutGrant(updated) })

	mustView(test, store, func(tx metadata.Transaction) error {
		got, err := tx.FindGrant(fx.f1.ID, fx.bob.ID)
		require.NoError(test, err)
		assert.Equal(test, grant.ID, got.ID)
		assert.Equal(test, metadata.PermissionWrite, got.Permission)
		return nil
	})
}

func (suite *StoreTestSuite) TestGrant_Listings(test *testing.T) {
	store := suite.newStore(test)
	fx := suite.seedGrantFixture(test, store)

	g1 := newGrant(fx.f1, fx.bob.ID, metadata.PermissionRead)
	g2 := newGrant(fx.f1, fx.carol.ID, metadata.PermissionWrite)
	g3 := newGrant(fx.f2, fx.bob.ID, metadata.PermissionWrite)

	mustUpdate(test, store, func(tx metadata.Transaction) error {
		for _, g := range []*metadata.ShareGrant{g1, g2, g3} {
			require.NoError(test, tx.CreateGrant(g))
		}
		return nil
	})

	mustView(test, store, func(tx metadata.Transaction) error {
		byNode, err := tx.ListGrantsByNode(fx.f1.ID)
		require.NoError(test, err)
		assert.ElementsMatch(test, []uuid.UUID{g1.ID, g2.ID}, grantIDs(byNode))

		byOwner, err := tx.ListGrantsByOwner(fx.alice.ID)
		require.NoError(test, err)
		assert.ElementsMatch(test, []uuid.UUID{g1.ID, g2.ID, g3.ID}, grantIDs(byOwner))

		byRecipient, err := tx.ListGrantsByRecipient(fx.bob.ID)
		require.NoError(test, err)
		assert.ElementsMatch(test, []uuid.UUID{g1.ID, g3.ID}, grantIDs(byRecipient))

		none, err := tx.ListGrantsByOwner(fx.bob.ID)
		require.NoError(test, err)
		assert.Empty(test, none)
		return nil
	})
}

func (suite *StoreTestSuite) TestGrant_DeleteNotFound(test *testing.T) {
	store := suite.newStore(test)
	err := store.Update(test.Context(), func(tx metadata.Transaction) error {
		return tx.DeleteGrant(uuid.New())
	})
	AssertErrorCode(test, metadata.ErrNotFound, err)
}

func grantIDs(grants []*metadata.ShareGrant) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(grants))
	for _, g := range grants {
		out = append(out, g.ID)
	}
	return out
}
