package testing

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunTransactionTests(test *testing.T) {
	test.Run("RollbackOnError", suite.TestTransaction_RollbackOnError)
	test.Run("ViewIsReadOnly", suite.TestTransaction_ViewIsReadOnly)
	test.Run("ConcurrentIncrementsAreSerialized", suite.TestTransaction_ConcurrentIncrements)
	test.Run("Healthcheck", suite.TestTransaction_Healthcheck)
}

func (suite *StoreTestSuite) TestTransaction_RollbackOnError(test *testing.T) {
	store := suite.newStore(test)
	alice := newUser("alice")
	mustUpdate(test, store, func(tx metadata.Transaction) error { return tx.CreateUser(alice) })

	boom := errors.New("boom")
	file := newFile(alice.ID, uuid.Nil, "doomed.txt", 10)

	err := store.Update(test.Context(), func(tx metadata.Transaction) error {
		require.NoError(test, tx.CreateNode(file))

		u, err := tx.GetUser(alice.ID)
		require.NoError(test, err)
		u.StorageUsed += file.Size
		require.NoError(test, tx.PutUser(u))

		require.NoError(test, tx.CreateUser(newUser("bob")))
		return boom
	})
	require.ErrorIs(test, err, boom)

	mustView(test, store, func(tx metadata.Transaction) error {
		_, err := tx.GetNode(file.ID)
		AssertErrorCode(test, metadata.ErrNotFound, err)

		u, err := tx.GetUser(alice.ID)
		require.NoError(test, err)
		assert.Equal(test, int64(0), u.StorageUsed)

		_, err = tx.GetUserByUsername("bob")
		AssertErrorCode(test, metadata.ErrNotFound, err)
		return nil
	})
}

func (suite *StoreTestSuite) TestTransaction_ViewIsReadOnly(test *testing.T) {
	store := suite.newStore(test)
	err := store.View(test.Context(), func(tx metadata.Transaction) error {
		return tx.CreateUser(newUser("alice"))
	})
	AssertErrorCode(test, metadata.ErrInvalidOperation, err)
}

// TestTransaction_ConcurrentIncrements checks that read-modify-write cycles
// on one user row never lose updates.
func (suite *StoreTestSuite) TestTransaction_ConcurrentIncrements(test *testing.T) {
	store := suite.newStore(test)
	alice := newUser("alice")
	mustUpdate(test, store, func(tx metadata.Transaction) error { return tx.CreateUser(alice) })

	const (
		workers    = 8
		increments = 5
	)

	var wg sync.WaitGroup
	errs := make(chan error, workers*increments)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < increments; i++ {
				errs <- store.Update(test.Context(), func(tx metadata.Transaction) error {
					u, err := tx.GetUser(alice.ID)
					if err != nil {
						return err
					}
					u.StorageUsed++
					return tx.PutUser(u)
				})
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(test, err)
	}

	mustView(test, store, func(tx metadata.Transaction) error {
		u, err := tx.GetUser(alice.ID)
		require.NoError(test, err)
		assert.Equal(test, int64(workers*increments), u.StorageUsed)
		return nil
	})
}

func (suite *StoreTestSuite) TestTransaction_Healthcheck(test *testing.T) {
	store := suite.newStore(test)
	require.NoError(test, store.Healthcheck(test.Context()))
}
