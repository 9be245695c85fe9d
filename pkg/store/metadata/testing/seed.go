package testing

import (
	"testing"

	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/stretchr/testify/require"
)

// SeedUser creates a basic account named username with the given quota and
// returns it. Engine tests use it to populate a fresh store.
func SeedUser(t *testing.T, store metadata.MetadataStore, username string, quota int64) *metadata.User {
	t.Helper()
	user := newUser(username)
	user.StorageQuota = quota
	require.NoError(t, store.Update(t.Context(), func(tx metadata.Transaction) error {
		return tx.CreateUser(user)
	}))
	return user
}

// SeedAdmin creates an admin account named username.
func SeedAdmin(t *testing.T, store metadata.MetadataStore, username string) *metadata.User {
	t.Helper()
	user := newUser(username)
	user.Role = metadata.RoleAdmin
	require.NoError(t, store.Update(t.Context(), func(tx metadata.Transaction) error {
		return tx.CreateUser(user)
	}))
	return user
}

// LoadUser reads the current state of an account.
func LoadUser(t *testing.T, store metadata.MetadataStore, user *metadata.User) *metadata.User {
	t.Helper()
	var got *metadata.User
	require.NoError(t, store.View(t.Context(), func(tx metadata.Transaction) error {
		var err error
		got, err = tx.GetUser(user.ID)
		return err
	}))
	return got
}
